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
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"multiswap/pkg/parser"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// tradeFlags are shared by the commands that start from a swap expression
type tradeFlags struct {
	swapper   string
	sellChain string
	buyChain  string
	recipient string
	slippage  string
	account   int
}

func (f *tradeFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&f.swapper, "swapper", "s", "", "Venue to use (default: first venue supporting the pair)")
	c.Flags().StringVar(&f.sellChain, "sell-chain", "", "CAIP-2 chain of the sell token when the symbol is ambiguous")
	c.Flags().StringVar(&f.buyChain, "buy-chain", "", "CAIP-2 chain of the buy token when the symbol is ambiguous")
	c.Flags().StringVar(&f.recipient, "recipient", "", "Receive address (default: derived from the wallet)")
	c.Flags().StringVar(&f.slippage, "slippage", "", "Slippage tolerance as a fraction, e.g. 0.01 (default: venue default)")
	c.Flags().IntVar(&f.account, "account", 0, "Wallet account number of the sell asset")
}

var quoteFlags tradeFlags

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <sell-token> to <buy-token>",
	Short: "Get a trade quote",
	Long: `Request a quote for selling an amount of one token for another.

Tokens are symbols from the asset registry (see 'multiswap assets') or
CAIP-19 asset ids. The amount is in display units of the sell token.

Examples:
  multiswap quote 1 ETH to FOX
  multiswap quote 1 ETH to FOX --swapper CowSwap --slippage 0.01
  multiswap quote 0.01 BTC to ETH --swapper Thorchain --json`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteFlags.register(quoteCmd)
}

// quoteRequest resolves a swap expression into a venue and quote input
func (a *app) quoteRequest(args []string, f *tradeFlags) (swapper.Swapper, swapper.TradeQuoteInput, error) {
	parsed, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return nil, swapper.TradeQuoteInput{}, err
	}
	sell, buy, err := parsed.Resolve(a.assets, f.sellChain, f.buyChain)
	if err != nil {
		return nil, swapper.TradeQuoteInput{}, err
	}

	var slippage *decimal.Decimal
	if f.slippage != "" {
		d, err := decimal.NewFromString(f.slippage)
		if err != nil {
			return nil, swapper.TradeQuoteInput{}, fmt.Errorf("invalid slippage %q: %w", f.slippage, err)
		}
		slippage = &d
	}

	s, err := a.pick(f.swapper, sell, buy)
	if err != nil {
		return nil, swapper.TradeQuoteInput{}, err
	}

	return s, swapper.TradeQuoteInput{
		SellAsset:              sell,
		BuyAsset:               buy,
		SellAmount:             parsed.SellAmount(sell),
		SellAssetAccountNumber: f.account,
		ReceiveAddress:         f.recipient,
		SlippageTolerance:      slippage,
		Wallet:                 a.wallet,
	}, nil
}

// fetchQuote runs GetTradeQuote behind a spinner
func fetchQuote(ctx context.Context, s swapper.Swapper, input swapper.TradeQuoteInput, jsonOutput bool) (*types.TradeQuote, error) {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		sp.Suffix = fmt.Sprintf(" Fetching quote from %s...", s.Type())
		sp.Start()
	}
	quote, err := s.GetTradeQuote(ctx, input)
	if !jsonOutput {
		sp.Stop()
	}
	return quote, err
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	a := mustLoadApp(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	s, input, err := a.quoteRequest(args, &quoteFlags)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	quote, err := fetchQuote(ctx, s, input, jsonOutput)
	if err != nil {
		a.logger.Debug("quote failed", "swapper", s.Type(), "kind", swapper.KindOf(err), "error", err)
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"swapper": s.Type(),
			"quote":   quote,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	a.displayQuote(s.Type(), quote)
}

func (a *app) displayQuote(t swapper.Type, quote *types.TradeQuote) {
	sellAmount := types.FromBaseUnit(quote.SellAmount, quote.SellAsset.Precision)
	buyAmount := types.FromBaseUnit(quote.BuyAmount, quote.BuyAsset.Precision)

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Swapper:           %s\n", color.CyanString(string(t)))
	fmt.Printf("  From:              %s %s\n", sellAmount, color.YellowString(quote.SellAsset.Symbol))
	fmt.Printf("  To:                ~%s %s\n", buyAmount, color.YellowString(quote.BuyAsset.Symbol))
	fmt.Printf("  Rate:              %s %s per %s\n", quote.Rate, quote.BuyAsset.Symbol, quote.SellAsset.Symbol)
	fmt.Printf("  Limits:            %s - %s %s\n", quote.Minimum, quote.Maximum, quote.SellAsset.Symbol)

	if fee, ok := a.feeAsset(quote.SellAsset.ChainID); ok {
		fmt.Printf("  Network Fee:       %s %s\n", types.FromBaseUnit(quote.FeeData.Fee, fee.Precision), fee.Symbol)
	} else {
		fmt.Printf("  Network Fee:       %s (base units)\n", quote.FeeData.Fee)
	}
	if !quote.FeeData.TradeFee.IsZero() {
		fmt.Printf("  Trade Fee:         %s\n", quote.FeeData.TradeFee)
	}
	if !quote.FeeData.ChainSpecific.ApprovalFee.IsZero() {
		fmt.Printf("  Approval Fee:      %s\n", quote.FeeData.ChainSpecific.ApprovalFee)
	}
	for _, src := range quote.Sources {
		fmt.Printf("  Source:            %s (%s)\n", src.Name, src.Proportion)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
