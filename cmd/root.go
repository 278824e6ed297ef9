package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "multiswap",
	Short: "A CLI for quoting and executing swaps across chains and venues",
	Long: `multiswap routes token swaps across 0x, CowSwap, THORChain, Osmosis and
NEAR Intents. Pick a venue or let the router choose the first one that
supports the pair, review the quote, and execute it with your wallet.

Examples:
  multiswap quote 1 ETH to FOX
  multiswap trade 0.5 ETH to BTC --swapper Thorchain --recipient bc1q...
  multiswap trade 10 ATOM to OSMO --swapper Osmosis
  multiswap history
  multiswap status <journal-id|deposit-address>
  multiswap serve`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
}

// newLogger writes text logs to stderr so stdout stays parseable with --json
func newLogger(level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
