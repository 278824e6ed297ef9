// Package amm implements constant-product pool math.
//
// All functions are pure. Divisions round half away from zero at
// DivisionPrecision decimal places; callers truncate to base units.
package amm

import (
	"github.com/shopspring/decimal"

	"multiswap/pkg/types"
)

// DivisionPrecision is the number of decimal places kept by divisions
const DivisionPrecision int32 = 20

// HubPrecision is the precision of hub-denominated pool balances
const HubPrecision int32 = 8

var one = decimal.NewFromInt(1)

// reserves returns (input side, output side) of pool for the swap direction.
func reserves(pool types.Pool, toHub bool) (decimal.Decimal, decimal.Decimal) {
	if toHub {
		return pool.AssetBalance, pool.CounterBalance
	}
	return pool.CounterBalance, pool.AssetBalance
}

// SwapOutput returns y = x*Y/(x+X) for input x.
func SwapOutput(input decimal.Decimal, pool types.Pool, toHub bool) decimal.Decimal {
	inBal, outBal := reserves(pool, toHub)
	denom := input.Add(inBal)
	if denom.IsZero() {
		return decimal.Zero
	}
	return input.Mul(outBal).DivRound(denom, DivisionPrecision)
}

// SingleSwapSlippage returns x/(x+X), the fraction lost to price impact.
func SingleSwapSlippage(input decimal.Decimal, pool types.Pool, toHub bool) decimal.Decimal {
	inBal, _ := reserves(pool, toHub)
	denom := input.Add(inBal)
	if denom.IsZero() {
		return decimal.Zero
	}
	return input.DivRound(denom, DivisionPrecision)
}

// DoubleSwapSlippage is the slippage of asset -> hub -> asset. The second hop
// is evaluated on the untruncated hub output, so the result is exactly the sum
// of the two hop slippages.
func DoubleSwapSlippage(input decimal.Decimal, from, to types.Pool) decimal.Decimal {
	first := SingleSwapSlippage(input, from, true)
	hub := SwapOutput(input, from, true)
	second := SingleSwapSlippage(hub, to, false)
	return first.Add(second)
}

// DoubleSwapOutput routes input through the hub. The hub amount is truncated
// to whole base units before the second hop, as the hub chain settles it.
func DoubleSwapOutput(input decimal.Decimal, from, to types.Pool) decimal.Decimal {
	hub := SwapOutput(input, from, true).Truncate(0)
	return SwapOutput(hub, to, false)
}

// DoubleSwapRate returns the realized rate of a double swap as the product of
// the two hop ratios.
func DoubleSwapRate(input decimal.Decimal, from, to types.Pool) decimal.Decimal {
	if input.IsZero() {
		return decimal.Zero
	}
	hub := SwapOutput(input, from, true).Truncate(0)
	if hub.IsZero() {
		return decimal.Zero
	}
	out := SwapOutput(hub, to, false)
	first := hub.DivRound(input, DivisionPrecision)
	second := out.DivRound(hub, DivisionPrecision)
	return first.Mul(second).Round(DivisionPrecision)
}

// SwapOutputWithFee applies a pool fee to the input before the constant-product step.
func SwapOutputWithFee(input decimal.Decimal, pool types.Pool, toHub bool) decimal.Decimal {
	fee := decimal.NewFromInt(pool.SwapFeeBips).Shift(-4)
	return SwapOutput(input.Mul(one.Sub(fee)), pool, toHub)
}

// SpotPrice returns the output-per-input price of pool with no slippage.
func SpotPrice(pool types.Pool, toHub bool) decimal.Decimal {
	inBal, outBal := reserves(pool, toHub)
	if inBal.IsZero() {
		return decimal.Zero
	}
	return outBal.DivRound(inBal, DivisionPrecision)
}

// LimitAmount is the minimum acceptable output: expected*(1-tol) - outboundFee,
// floored at zero and truncated to precision decimal places.
func LimitAmount(expected, tolerance, outboundFee decimal.Decimal, precision int32) decimal.Decimal {
	limit := expected.Mul(one.Sub(tolerance)).Sub(outboundFee)
	if limit.IsNegative() {
		return decimal.Zero
	}
	return limit.Truncate(precision)
}

// MaxInputForSlippage returns the input x at which x/(x+X) equals maxSlippage.
// maxSlippage must be in [0, 1).
func MaxInputForSlippage(pool types.Pool, toHub bool, maxSlippage decimal.Decimal) decimal.Decimal {
	if maxSlippage.IsNegative() || maxSlippage.GreaterThanOrEqual(one) {
		return decimal.Zero
	}
	inBal, _ := reserves(pool, toHub)
	return maxSlippage.Mul(inBal).DivRound(one.Sub(maxSlippage), DivisionPrecision)
}
