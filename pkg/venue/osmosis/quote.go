package osmosis

import (
	"context"

	"github.com/shopspring/decimal"

	"multiswap/pkg/amm"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// expectedOutput is the pool output for input, truncated to base units
func expectedOutput(input decimal.Decimal, pool types.Pool) decimal.Decimal {
	return amm.SwapOutputWithFee(input, pool, true).Truncate(0)
}

// networkFee is the fee of both legs in base units of the sell asset.
// The Osmosis leg of an ATOM sale pays in OSMO, valued at the pool's spot price.
func (s *Swapper) networkFee(atomIn bool, pool types.Pool) decimal.Decimal {
	if !atomIn {
		return s.osmosisFee.Mul(decimal.NewFromInt(2))
	}
	osmoInATOM := amm.SpotPrice(pool, false)
	return s.cosmosHubFee.Add(s.osmosisFee.Mul(osmoInATOM)).Truncate(0)
}

// GetTradeQuote prices the swap against the configured pool. A zero sell
// amount quotes the minimum.
func (s *Swapper) GetTradeQuote(ctx context.Context, input swapper.TradeQuoteInput) (*types.TradeQuote, error) {
	if _, err := swapper.SlippageTolerance(input.SlippageTolerance, s.defaultSlippage); err != nil {
		return nil, err
	}
	atomIn, err := sellsATOM(input.SellAsset, input.BuyAsset)
	if err != nil {
		return nil, err
	}
	if input.SellAmount.IsNegative() {
		return nil, swapper.NewError(swapper.KindValidationFailed, "sell amount must not be negative")
	}
	fail := func(err error) (*types.TradeQuote, error) {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "quote %s -> %s", input.SellAsset, input.BuyAsset)
	}

	inDenom, outDenom := s.poolDenoms(atomIn)
	pool, err := s.fetchPool(ctx, s.cfg.PoolID, inDenom, outDenom)
	if err != nil {
		return fail(err)
	}
	usdRate, err := s.GetUsdRate(ctx, input.SellAsset)
	if err != nil {
		return fail(err)
	}
	bounds, err := s.minMax(pool, input.SellAsset, usdRate)
	if err != nil {
		return fail(err)
	}

	sellAmount := input.SellAmount.Truncate(0)
	if sellAmount.IsZero() {
		sellAmount = types.ToBaseUnit(bounds.Minimum, input.SellAsset.Precision)
	}
	buyAmount := expectedOutput(sellAmount, pool)

	rate := decimal.Zero
	if sellAmount.IsPositive() {
		rate = types.FromBaseUnit(buyAmount, input.BuyAsset.Precision).
			DivRound(types.FromBaseUnit(sellAmount, input.SellAsset.Precision), amm.DivisionPrecision)
	}

	return &types.TradeQuote{
		Rate:       rate,
		Minimum:    bounds.Minimum,
		Maximum:    bounds.Maximum,
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
		FeeData: types.FeeData{
			Fee:      s.networkFee(atomIn, pool),
			TradeFee: decimal.NewFromInt(pool.SwapFeeBips).Shift(-4).Mul(sellAmount).Truncate(0),
		},
		Sources:                []types.SwapSource{{Name: string(swapper.TypeOsmosis), Proportion: decimal.NewFromInt(1)}},
		SellAsset:              input.SellAsset,
		BuyAsset:               input.BuyAsset,
		SellAssetAccountNumber: input.SellAssetAccountNumber,
	}, nil
}

// ApprovalNeeded is always false: Cosmos assets have no allowances
func (s *Swapper) ApprovalNeeded(context.Context, swapper.ApprovalInput) (bool, error) {
	return false, nil
}

// ApproveInfinite is not supported by Cosmos chains
func (s *Swapper) ApproveInfinite(context.Context, swapper.ApprovalInput) (string, error) {
	return "", swapper.NewError(swapper.KindApproveInfiniteFailed, "osmosis assets do not use allowances")
}
