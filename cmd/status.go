package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"multiswap/pkg/journal"
	"multiswap/pkg/swapper"
	"multiswap/pkg/venue/nearintents"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <journal-id|deposit-address>",
	Short: "Check the status of a trade",
	Long: `Check a trade by its journal id, or a NEAR Intents swap by its deposit address.

Journaled NEAR Intents trades also show the live status reported by the
1Click API.

Examples:
  multiswap status 3f0c2a0e-...
  multiswap status 0x1234...abcd
  multiswap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the swap settles")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	ref := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	a := mustLoadApp(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	depositAddress := ref
	entry, err := a.journal.Get(ref)
	if err == nil {
		if !jsonOutput {
			a.displayEntry(entry)
		}
		depositAddress = entry.DepositAddress
		if entry.Swapper != string(swapper.TypeNearIntents) || depositAddress == "" {
			if jsonOutput {
				jsonData, _ := json.MarshalIndent(entry, "", "  ")
				fmt.Println(string(jsonData))
			}
			return
		}
	}

	near, err := a.nearIntents()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		watchSwapStatus(ctx, near, depositAddress)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking swap status..."
		s.Start()
	}
	status, err := near.Status(ctx, depositAddress)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{"status": status}
		if entry != nil {
			output["entry"] = entry
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayStatus(status)
}

func (a *app) nearIntents() (*nearintents.Swapper, error) {
	s, err := a.manager.BySwapper(swapper.TypeNearIntents)
	if err != nil {
		return nil, err
	}
	near, ok := s.(*nearintents.Swapper)
	if !ok {
		return nil, fmt.Errorf("swapper %s does not report deposit status", s.Type())
	}
	return near, nil
}

func watchSwapStatus(ctx context.Context, near *nearintents.Swapper, depositAddress string) {
	fmt.Printf("\nWatching swap status (Deposit Address: %s)\n", color.CyanString(depositAddress))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		status, err := near.Status(ctx, depositAddress)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayStatus(status)
			if status.Terminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *app) displayEntry(e *journal.Entry) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          TRADE")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Journal ID:      %s\n", color.CyanString(e.ID))
	fmt.Printf("  Swapper:         %s\n", e.Swapper)
	fmt.Printf("  Pair:            %s %s -> %s\n",
		a.displayAmount(e.SellAssetID, e.SellAmount), a.symbolOf(e.SellAssetID), a.symbolOf(e.BuyAssetID))
	fmt.Printf("  State:           %s\n", stateColor(e))
	fmt.Printf("  Receive Address: %s\n", e.ReceiveAddress)
	if e.DepositAddress != "" {
		fmt.Printf("  Deposit Address: %s\n", e.DepositAddress)
	}
	if e.TradeID != "" {
		fmt.Printf("  Trade ID:        %s\n", color.HiBlackString(e.TradeID))
	}
	for i, leg := range e.Legs {
		fmt.Printf("  Leg %d Tx:        %s\n", i+1, color.HiBlackString(leg))
	}
	if e.Error != "" {
		fmt.Printf("  Error:           %s\n", color.RedString(e.Error))
	}
	fmt.Printf("  Last Updated:    %s\n", e.LastUpdated.Format("2006-01-02 15:04:05"))

	if len(e.Transitions) > 0 {
		fmt.Println("\n  Settlement:")
		for _, t := range e.Transitions {
			line := fmt.Sprintf("    %s  %s -> %s", t.At.Format("15:04:05"), t.From, t.To)
			if t.TxID != "" {
				line += "  tx " + t.TxID
			}
			if t.Reason != "" {
				line += "  (" + t.Reason + ")"
			}
			fmt.Println(line)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func displayStatus(status *nearintents.Status) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(status.DepositAddress))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.State))
	if !status.UpdatedAt.IsZero() {
		fmt.Printf("  Last Updated:    %s\n", status.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	for _, hash := range status.DepositTxs {
		fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
	}
	for _, hash := range status.WithdrawalTxs {
		fmt.Printf("  Withdrawal Tx:   %s\n", color.HiBlackString(hash))
	}

	if status.AmountIn != "" {
		fmt.Printf("  Amount In:       %s\n", status.AmountIn)
	}
	if status.AmountOut != "" {
		fmt.Printf("  Amount Out:      %s\n", status.AmountOut)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED":
		return color.GreenString(status)
	case "PENDING_DEPOSIT", "PENDING", "PROCESSING", "KNOWN_DEPOSIT_TX":
		return color.YellowString(status)
	case "FAILED", "REFUNDED":
		return color.RedString(status)
	case "INCOMPLETE_DEPOSIT":
		return color.MagentaString(status)
	default:
		return status
	}
}
