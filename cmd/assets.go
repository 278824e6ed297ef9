package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

var (
	filterChain   string
	filterSymbol  string
	filterSwapper string
	rateSwapper   string
)

var assetsCmd = &cobra.Command{
	Use:     "assets",
	Aliases: []string{"tokens", "ls"},
	Short:   "List known assets",
	Long: `List the assets in the registry, optionally only those a venue can sell.

Examples:
  multiswap assets
  multiswap assets --chain eip155:1
  multiswap assets --swapper Thorchain`,
	Run: runAssets,
}

var swappersCmd = &cobra.Command{
	Use:   "swappers",
	Short: "List configured venues and the assets they can sell",
	Run:   runSwappers,
}

var rateCmd = &cobra.Command{
	Use:   "rate <token>",
	Short: "Show the USD price of a token",
	Long: `Show the USD price of a token as reported by each venue able to price it.

Examples:
  multiswap rate ETH
  multiswap rate ATOM --swapper Osmosis`,
	Args: cobra.ExactArgs(1),
	Run:  runRate,
}

func init() {
	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(swappersCmd)
	rootCmd.AddCommand(rateCmd)

	assetsCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by CAIP-2 chain id")
	assetsCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	assetsCmd.Flags().StringVar(&filterSwapper, "swapper", "", "Only assets this venue can sell")

	rateCmd.Flags().StringVarP(&rateSwapper, "swapper", "s", "", "Venue to ask (default: every venue that lists the token)")
}

func runAssets(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	a := mustLoadApp(cmd)

	assets := a.assets.All()

	// Apply filters
	if filterSwapper != "" {
		s, err := a.manager.BySwapper(swapper.Type(filterSwapper))
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		sellable := s.FilterAssetIDsBySellable(a.assets.IDs())
		var temp []types.Asset
		for _, as := range assets {
			if swapper.ContainsAsset(sellable, as.AssetID) {
				temp = append(temp, as)
			}
		}
		assets = temp
	}

	if filterChain != "" {
		var temp []types.Asset
		for _, as := range assets {
			if strings.EqualFold(as.ChainID, filterChain) {
				temp = append(temp, as)
			}
		}
		assets = temp
	}

	if filterSymbol != "" {
		var temp []types.Asset
		for _, as := range assets {
			if strings.Contains(strings.ToUpper(as.Symbol), strings.ToUpper(filterSymbol)) {
				temp = append(temp, as)
			}
		}
		assets = temp
	}

	// Output
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(assets, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayAssets(assets)
	}
}

func displayAssets(assets []types.Asset) {
	if len(assets) == 0 {
		fmt.Println("\nNo assets found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              KNOWN ASSETS")
	fmt.Println(strings.Repeat("=", 90))

	// Group assets by chain
	byChain := make(map[string][]types.Asset)
	for _, as := range assets {
		byChain[as.ChainID] = append(byChain[as.ChainID], as)
	}

	chains := make([]string, 0, len(byChain))
	for chainID := range byChain {
		chains = append(chains, chainID)
	}
	sort.Strings(chains)

	for _, chainID := range chains {
		color.Cyan("\n%s", chainID)
		fmt.Println(strings.Repeat("-", 90))

		for _, as := range byChain[chainID] {
			id := as.AssetID
			if len(id) > 60 {
				id = id[:57] + "..."
			}
			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(as.Symbol),
				as.Precision,
				color.HiBlackString(id))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d assets across %d chains\n\n", len(assets), len(chains))
}

type swapperSummary struct {
	Type     swapper.Type `json:"type"`
	Sellable []string     `json:"sellable,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func runSwappers(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	a := mustLoadApp(cmd)

	var summaries []swapperSummary
	for _, t := range a.manager.Swappers() {
		summary := swapperSummary{Type: t}
		s, err := a.manager.BySwapper(t)
		if err != nil {
			summary.Error = err.Error()
		} else {
			for _, id := range s.FilterAssetIDsBySellable(a.assets.IDs()) {
				summary.Sellable = append(summary.Sellable, a.symbolOf(id))
			}
		}
		summaries = append(summaries, summary)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(summaries, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                           SWAPPERS")
	fmt.Println(strings.Repeat("=", 70))
	for _, summary := range summaries {
		if summary.Error != "" {
			fmt.Printf("\n  %-12s %s\n", color.YellowString(string(summary.Type)), color.RedString("unavailable: %s", summary.Error))
			continue
		}
		fmt.Printf("\n  %-12s sells %s\n", color.YellowString(string(summary.Type)), strings.Join(summary.Sellable, ", "))
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

type rateResult struct {
	Swapper swapper.Type    `json:"swapper"`
	USDRate decimal.Decimal `json:"usdRate"`
	Error   string          `json:"error,omitempty"`
}

func runRate(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	a := mustLoadApp(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	target, err := a.assets.Resolve(args[0], "")
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var venues []swapper.Swapper
	if rateSwapper != "" {
		s, err := a.manager.BySwapper(swapper.Type(rateSwapper))
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		venues = append(venues, s)
	} else {
		for _, t := range a.manager.Swappers() {
			s, err := a.manager.BySwapper(t)
			if err != nil {
				a.logger.Debug("skipping swapper", "swapper", t, "error", err)
				continue
			}
			if swapper.ContainsAsset(s.FilterAssetIDsBySellable([]string{target.AssetID}), target.AssetID) {
				venues = append(venues, s)
			}
		}
	}
	if len(venues) == 0 {
		printError(swapper.NewError(swapper.KindUnsupportedPair, "no swapper lists %s", target.Symbol))
		os.Exit(1)
	}

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		sp.Suffix = " Fetching prices..."
		sp.Start()
	}
	results := make([]rateResult, 0, len(venues))
	for _, s := range venues {
		res := rateResult{Swapper: s.Type()}
		if res.USDRate, err = s.GetUsdRate(ctx, target); err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	if !jsonOutput {
		sp.Stop()
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Printf("\n%s (%s)\n", color.YellowString(target.Symbol), color.HiBlackString(target.AssetID))
	for _, res := range results {
		if res.Error != "" {
			fmt.Printf("  %-12s %s\n", res.Swapper, color.RedString(res.Error))
			continue
		}
		fmt.Printf("  %-12s $%s\n", res.Swapper, res.USDRate.StringFixed(4))
	}
	fmt.Println()
}
