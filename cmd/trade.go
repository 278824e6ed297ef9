package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"multiswap/pkg/journal"
	"multiswap/pkg/settlement"
	"multiswap/pkg/swapper"
)

var (
	tradeOpts    tradeFlags
	noConfirm    bool
	allowApprove bool
)

var tradeCmd = &cobra.Command{
	Use:     "trade <amount> <sell-token> to <buy-token>",
	Aliases: []string{"swap"},
	Short:   "Quote, build and execute a swap",
	Long: `Quote a swap, build the trade for your wallet, sign and broadcast it.

Every execution is recorded in the trade journal, including the settlement
progress of two-leg venues. Use 'multiswap history' and 'multiswap status'
to follow it.

IMPORTANT:
  - ERC-20 sells may need an allowance first. Pass --approve to send an
    infinite approval when one is missing, or run 'multiswap approve'.
  - For cross-chain venues the receive address defaults to your wallet on
    the buy chain; pass --recipient when no adapter can derive it.

Examples:
  multiswap trade 1 ETH to FOX
  multiswap trade 100 USDC to ETH --swapper CowSwap --approve
  multiswap trade 0.5 ETH to BTC --swapper Thorchain --recipient bc1q...
  multiswap trade 1 ETH to BTC --swapper NearIntents --recipient bc1q... --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeOpts.register(tradeCmd)

	tradeCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	tradeCmd.Flags().BoolVar(&allowApprove, "approve", false, "Send an infinite approval when the allowance is insufficient")
}

func runTrade(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	a := mustLoadApp(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.requireWallet(); err != nil {
		printError(err)
		os.Exit(1)
	}

	s, input, err := a.quoteRequest(args, &tradeOpts)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	quote, err := fetchQuote(ctx, s, input, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		a.displayQuote(s.Type(), quote)
	}

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with trade?") {
			fmt.Println("\nTrade cancelled.")
			os.Exit(0)
		}
	}

	approval := swapper.ApprovalInput{Quote: quote, Wallet: a.wallet}
	needed, err := s.ApprovalNeeded(ctx, approval)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if needed {
		if !allowApprove {
			printError(fmt.Errorf("%s allowance for %s is insufficient: rerun with --approve or run 'multiswap approve'",
				quote.SellAsset.Symbol, quote.AllowanceContract))
			os.Exit(1)
		}
		txid, err := s.ApproveInfinite(ctx, approval)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if !jsonOutput {
			color.Green("\n✓ Approval sent")
			fmt.Printf("  Transaction ID: %s\n", color.CyanString(txid))
		}
	}

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		sp.Suffix = " Building trade..."
		sp.Start()
	}
	trade, err := s.BuildTrade(ctx, swapper.BuildTradeInput{
		Quote:             quote,
		Wallet:            a.wallet,
		ReceiveAddress:    input.ReceiveAddress,
		SlippageTolerance: input.SlippageTolerance,
	})
	if !jsonOutput {
		sp.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	entry, err := a.journal.Begin(journal.Entry{
		Swapper:        string(s.Type()),
		SellAssetID:    trade.SellAsset.AssetID,
		BuyAssetID:     trade.BuyAsset.AssetID,
		SellAmount:     trade.SellAmount.String(),
		ReceiveAddress: trade.ReceiveAddress,
		DepositAddress: trade.DepositAddress,
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	a.logger.Debug("journaled trade", "id", entry.ID, "swapper", s.Type())

	if !jsonOutput {
		sp.Suffix = " Signing and broadcasting..."
		sp.Start()
	}
	result, err := s.ExecuteTrade(settlement.WithRunID(ctx, entry.ID), swapper.ExecuteTradeInput{
		Trade:  trade,
		Wallet: a.wallet,
	})
	if !jsonOutput {
		sp.Stop()
	}
	if err != nil {
		if jerr := a.journal.Fail(entry.ID, err); jerr != nil {
			a.logger.Error("failed to journal trade failure", "id", entry.ID, "error", jerr)
		}
		color.Red("\nTrade %s failed", entry.ID)
		printError(err)
		os.Exit(1)
	}
	if err := a.journal.Complete(entry.ID, result.TradeID); err != nil {
		a.logger.Error("failed to journal trade", "id", entry.ID, "error", err)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"id":              entry.ID,
			"swapper":         s.Type(),
			"trade_id":        result.TradeID,
			"receive_address": trade.ReceiveAddress,
			"deposit_address": trade.DepositAddress,
			"buy_amount":      trade.BuyAmount,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	color.Green("\n✓ Trade executed successfully!")
	fmt.Printf("  Journal ID:     %s\n", entry.ID)
	fmt.Printf("  Trade ID:       %s\n", color.CyanString(result.TradeID))
	fmt.Printf("  Receive:        %s\n", trade.ReceiveAddress)
	if trade.DepositAddress != "" {
		fmt.Printf("  Deposit:        %s\n", trade.DepositAddress)
	}

	fmt.Println("\nYou can monitor the trade using:")
	color.Cyan("  multiswap status %s\n", entry.ID)
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
