package amm

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"multiswap/pkg/types"
)

func genPool(t *rapid.T, label string) types.Pool {
	return types.Pool{
		Asset:          label,
		AssetBalance:   decimal.NewFromInt(rapid.Int64Range(1, 1e15).Draw(t, label+"_asset")),
		CounterBalance: decimal.NewFromInt(rapid.Int64Range(1, 1e15).Draw(t, label+"_counter")),
	}
}

// The pool's constant product is preserved across a swap, within the
// rounding of the 20-place division in either direction.
func TestProperty_ConstantProductPreserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := genPool(t, "pool")
		toHub := rapid.Bool().Draw(t, "toHub")
		x := decimal.NewFromInt(rapid.Int64Range(1, 1e15).Draw(t, "x"))

		inBal, outBal := reserves(pool, toHub)
		y := SwapOutput(x, pool, toHub)

		before := inBal.Mul(outBal)
		after := inBal.Add(x).Mul(outBal.Sub(y))
		tolerance := inBal.Add(x).Shift(-DivisionPrecision)
		if after.Add(tolerance).LessThan(before) {
			t.Fatalf("product decreased: before=%s after=%s", before, after)
		}
		if after.GreaterThan(before.Add(tolerance)) {
			t.Fatalf("product increased: before=%s after=%s", before, after)
		}
		if y.GreaterThan(outBal) {
			t.Fatalf("output %s exceeds reserve %s", y, outBal)
		}
	})
}

func TestProperty_SlippageInUnitInterval(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := genPool(t, "pool")
		x := decimal.NewFromInt(rapid.Int64Range(1, 1e15).Draw(t, "x"))
		s := SingleSwapSlippage(x, pool, rapid.Bool().Draw(t, "toHub"))
		if s.IsNegative() || s.GreaterThanOrEqual(one) {
			t.Fatalf("slippage %s outside [0, 1)", s)
		}
	})
}

func TestProperty_DoubleSlippageIsSum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		from := genPool(t, "from")
		to := genPool(t, "to")
		x := decimal.NewFromInt(rapid.Int64Range(1, 1e15).Draw(t, "x"))

		hub := SwapOutput(x, from, true)
		want := SingleSwapSlippage(x, from, true).Add(SingleSwapSlippage(hub, to, false))
		if got := DoubleSwapSlippage(x, from, to); !got.Equal(want) {
			t.Fatalf("double slippage %s != %s", got, want)
		}
	})
}

func TestProperty_OutputMonotonicInInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := genPool(t, "pool")
		a := rapid.Int64Range(1, 1e14).Draw(t, "a")
		b := rapid.Int64Range(a, 1e15).Draw(t, "b")
		toHub := rapid.Bool().Draw(t, "toHub")

		ya := SwapOutput(decimal.NewFromInt(a), pool, toHub)
		yb := SwapOutput(decimal.NewFromInt(b), pool, toHub)
		if ya.GreaterThan(yb) {
			t.Fatalf("output not monotonic: f(%d)=%s > f(%d)=%s", a, ya, b, yb)
		}
	})
}

func TestProperty_LimitNeverExceedsExpected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		expected := decimal.NewFromInt(rapid.Int64Range(0, 1e15).Draw(t, "expected"))
		tol := decimal.NewFromInt(rapid.Int64Range(0, 10000).Draw(t, "tolBips")).Shift(-4)
		fee := decimal.NewFromInt(rapid.Int64Range(0, 1e12).Draw(t, "fee"))

		limit := LimitAmount(expected, tol, fee, 0)
		if limit.IsNegative() || limit.GreaterThan(expected) {
			t.Fatalf("limit %s outside [0, %s]", limit, expected)
		}
	})
}
