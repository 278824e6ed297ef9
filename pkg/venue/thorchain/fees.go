package thorchain

import (
	"github.com/shopspring/decimal"

	"multiswap/pkg/amm"
	"multiswap/pkg/types"
)

// gasAsset describes how a chain's inbound gas_rate converts to a fee in
// hub units of the chain's gas asset: gas_rate * units * scale.
type gasAsset struct {
	poolID    string
	precision int32
	units     decimal.Decimal
	scale     decimal.Decimal
}

var gasAssets = map[string]gasAsset{
	// gas_rate is sats/byte; a swap deposit is ~250 bytes
	ChainBTC: {poolID: "BTC.BTC", precision: 8, units: decimal.NewFromInt(250), scale: decimal.NewFromInt(1)},
	// gas_rate is gwei; 1 gwei of gas is 0.1 hub units of ETH
	ChainETH: {poolID: "ETH.ETH", precision: 18, units: decimal.NewFromInt(35000), scale: decimal.RequireFromString("0.1")},
	// gas_rate is uatom
	ChainGAIA: {poolID: "GAIA.ATOM", precision: 6, units: decimal.NewFromInt(1), scale: decimal.NewFromInt(100)},
}

var (
	// outboundMultiplier is how many times the inbound gas the network charges outbound
	outboundMultiplier = decimal.NewFromInt(3)
	// runeOutboundFee is the native RUNE outbound fee in hub units
	runeOutboundFee = decimal.NewFromInt(2000000)
)

func (g gasAsset) hubFee(gasRate decimal.Decimal) decimal.Decimal {
	return gasRate.Mul(g.units).Mul(g.scale)
}

// toHub converts base units to hub precision, truncating
func toHub(amount decimal.Decimal, precision int32) decimal.Decimal {
	return types.FromBaseUnit(amount, precision).Shift(amm.HubPrecision).Truncate(0)
}

// fromHub converts hub units, truncated to whole hub units, back to base units
func fromHub(amount decimal.Decimal, precision int32) decimal.Decimal {
	return types.ToBaseUnit(amount.Truncate(0).Shift(-amm.HubPrecision), precision)
}
