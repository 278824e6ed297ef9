package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"multiswap/pkg/journal"
	"multiswap/pkg/types"
)

var (
	historyAttention bool
	historyState     string
	historyLimit     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled trades",
	Long: `Display the trades recorded in the journal, newest first.

A failed trade that already broadcast a leg needs attention: funds may be
sitting on an intermediate chain.

Examples:
  multiswap history
  multiswap history --attention
  multiswap history --state failed --json`,
	Run: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().BoolVar(&historyAttention, "attention", false, "Only failed trades with broadcast legs")
	historyCmd.Flags().StringVar(&historyState, "state", "", "Filter by state (pending, settling, completed, failed)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Show at most this many entries")
}

// filterEntries applies the history filters to entries, which are newest first
func filterEntries(entries []*journal.Entry, state string, attention bool, limit int) []*journal.Entry {
	var out []*journal.Entry
	for _, e := range entries {
		if state != "" && !strings.EqualFold(string(e.State), state) {
			continue
		}
		if attention && !e.NeedsAttention() {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	a := mustLoadApp(cmd)

	entries := filterEntries(a.journal.List(), historyState, historyAttention, historyLimit)

	if jsonOutput {
		output, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(output))
		return
	}

	if len(entries) == 0 {
		color.Yellow("No trades found.\n")
		fmt.Println("\nExecute a trade with:")
		color.Cyan("  multiswap trade <amount> <token> to <token>\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 120))
	color.Green("                                                TRADE HISTORY")
	fmt.Println(strings.Repeat("=", 120))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nID\tCREATED\tSWAPPER\tPAIR\tAMOUNT\tSTATE\tTRADE ID")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for _, e := range entries {
		pair := fmt.Sprintf("%s -> %s", a.symbolOf(e.SellAssetID), a.symbolOf(e.BuyAssetID))
		state := stateColor(e)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Created.Format("2006-01-02 15:04"), e.Swapper, pair,
			a.displayAmount(e.SellAssetID, e.SellAmount), state, e.TradeID)
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 120) + "\n")
}

// displayAmount converts a journaled base-unit amount for display
func (a *app) displayAmount(assetID, amount string) string {
	found, err := a.assets.ByID(assetID)
	if err != nil {
		return amount
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return amount
	}
	return types.FromBaseUnit(d, found.Precision).String()
}

func stateColor(e *journal.Entry) string {
	state := string(e.State)
	switch {
	case e.NeedsAttention():
		return color.MagentaString(state + " (attention)")
	case e.State == journal.StateCompleted:
		return color.GreenString(state)
	case e.State == journal.StateFailed:
		return color.RedString(state)
	default:
		return color.YellowString(state)
	}
}
