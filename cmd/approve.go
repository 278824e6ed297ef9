package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"multiswap/pkg/swapper"
)

var (
	approveOpts  tradeFlags
	approveForce bool
)

var approveCmd = &cobra.Command{
	Use:   "approve <amount> <sell-token> to <buy-token>",
	Short: "Approve a venue to spend an ERC-20 sell token",
	Long: `Check the allowance a venue needs for a swap and, when it is insufficient,
send an infinite approval to the venue's allowance contract.

Examples:
  multiswap approve 100 USDC to ETH --swapper 0x
  multiswap approve 100 USDC to ETH --swapper CowSwap --force`,
	Args: cobra.MinimumNArgs(1),
	Run:  runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
	approveOpts.register(approveCmd)

	approveCmd.Flags().BoolVar(&approveForce, "force", false, "Approve even when the current allowance suffices")
}

func runApprove(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	a := mustLoadApp(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.requireWallet(); err != nil {
		printError(err)
		os.Exit(1)
	}

	s, input, err := a.quoteRequest(args, &approveOpts)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	quote, err := fetchQuote(ctx, s, input, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	approval := swapper.ApprovalInput{Quote: quote, Wallet: a.wallet}
	needed, err := s.ApprovalNeeded(ctx, approval)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var txid string
	if needed || approveForce {
		if txid, err = s.ApproveInfinite(ctx, approval); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	if jsonOutput {
		output := map[string]interface{}{
			"swapper":  s.Type(),
			"spender":  quote.AllowanceContract,
			"needed":   needed,
			"tx_id":    txid,
			"asset_id": quote.SellAsset.AssetID,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if txid == "" {
		printSuccess(fmt.Sprintf("%s allowance for %s is sufficient, no approval needed.", quote.SellAsset.Symbol, s.Type()))
		return
	}
	color.Green("\n✓ Infinite approval sent")
	fmt.Printf("  Spender:        %s\n", quote.AllowanceContract)
	fmt.Printf("  Transaction ID: %s\n\n", color.CyanString(txid))
}
