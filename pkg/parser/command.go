package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"multiswap/pkg/asset"
	"multiswap/pkg/types"
)

// Command is a parsed "<amount> <sell> to <buy>" request. Amount is in
// display units of the sell asset.
type Command struct {
	Amount decimal.Decimal
	Sell   string
	Buy    string
}

var commandPattern = regexp.MustCompile(`(?i)^(\d+\.?\d*)\s+(\S+)\s+TO\s+(\S+)$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 ETH to FOX"
//   - "0.5 ATOM to OSMO"
//   - "100 eip155:1/erc20:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48 to BTC"
func ParseSwapCommand(command string) (*Command, error) {
	command = strings.Join(strings.Fields(command), " ")
	if len(command) >= 5 && strings.EqualFold(command[:5], "swap ") {
		command = command[5:]
	}

	matches := commandPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: '<amount> <token> to <token>' (e.g., '1 ETH to FOX')")
	}

	amount, err := decimal.NewFromString(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", matches[1], err)
	}

	cmd := &Command{
		Amount: amount,
		Sell:   NormalizeTokenSymbol(matches[2]),
		Buy:    NormalizeTokenSymbol(matches[3]),
	}
	if err := ValidateCommand(cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// ValidateCommand validates that a command has all required fields
func ValidateCommand(cmd *Command) error {
	if !cmd.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if cmd.Sell == "" {
		return fmt.Errorf("source token is required")
	}
	if cmd.Buy == "" {
		return fmt.Errorf("destination token is required")
	}
	if strings.EqualFold(cmd.Sell, cmd.Buy) {
		return fmt.Errorf("source and destination token are the same")
	}
	return nil
}

// NormalizeTokenSymbol upper-cases symbols and maps common aliases.
// Asset ids are returned unchanged apart from surrounding space.
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if strings.Contains(symbol, "/") {
		return symbol
	}
	symbol = strings.ToUpper(symbol)

	aliases := map[string]string{
		"XBT":   "BTC",
		"ETHER": "ETH",
		"THOR":  "RUNE",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}

// Resolve looks both sides up in the registry. The chain ids disambiguate
// symbols listed on several chains and may be empty.
func (c *Command) Resolve(registry *asset.Registry, sellChain, buyChain string) (sell, buy types.Asset, err error) {
	if sell, err = registry.Resolve(c.Sell, sellChain); err != nil {
		return types.Asset{}, types.Asset{}, err
	}
	if buy, err = registry.Resolve(c.Buy, buyChain); err != nil {
		return types.Asset{}, types.Asset{}, err
	}
	return sell, buy, nil
}

// SellAmount returns the amount in base units of sell
func (c *Command) SellAmount(sell types.Asset) decimal.Decimal {
	return types.ToBaseUnit(c.Amount, sell.Precision)
}
