package osmosis

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"

	"multiswap/pkg/amm"
	"multiswap/pkg/asset"
	"multiswap/pkg/httpjson"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

type poolResponse struct {
	Pool struct {
		ID         string `json:"id"`
		PoolParams struct {
			SwapFee decimal.Decimal `json:"swap_fee"`
		} `json:"pool_params"`
		PoolAssets []struct {
			Token  types.Coin `json:"token"`
			Weight string     `json:"weight"`
		} `json:"pool_assets"`
	} `json:"pool"`
}

func responseError(err error, what string) error {
	if se, ok := httpjson.AsStatus(err); ok {
		return swapper.Wrap(swapper.KindResponseError, err, "osmosis %s responded %d", what, se.StatusCode)
	}
	return swapper.Wrap(swapper.KindResponseError, err, "osmosis %s request failed", what)
}

// fetchPool reads pool id oriented for a swap of inDenom into outDenom:
// AssetBalance is the input reserve and CounterBalance the output reserve.
func (s *Swapper) fetchPool(ctx context.Context, id, inDenom, outDenom string) (types.Pool, error) {
	var resp poolResponse
	if err := s.osmosis.Get(ctx, "/osmosis/gamm/v1beta1/pools/"+url.PathEscape(id), nil, &resp); err != nil {
		return types.Pool{}, responseError(err, "pool "+id)
	}

	pool := types.Pool{
		Asset:       inDenom,
		SwapFeeBips: resp.Pool.PoolParams.SwapFee.Shift(4).IntPart(),
	}
	for _, a := range resp.Pool.PoolAssets {
		amount, err := decimal.NewFromString(a.Token.Amount)
		if err != nil {
			return types.Pool{}, swapper.Wrap(swapper.KindResponseError, err, "pool %s: invalid %s amount", id, a.Token.Denom)
		}
		switch a.Token.Denom {
		case inDenom:
			pool.AssetBalance = amount
		case outDenom:
			pool.CounterBalance = amount
		}
	}
	if !pool.AssetBalance.IsPositive() || !pool.CounterBalance.IsPositive() {
		return types.Pool{}, swapper.NewError(swapper.KindResponseError, "pool %s has no %s/%s liquidity", id, inDenom, outDenom)
	}
	return pool, nil
}

// GetUsdRate prices OSMO from the USD pool and ATOM through the trading pool
func (s *Swapper) GetUsdRate(ctx context.Context, a types.Asset) (decimal.Decimal, error) {
	if !supported(a.AssetID) {
		return decimal.Zero, swapper.NewError(swapper.KindUsdRateFailed, "osmosis does not price %s", a)
	}
	usdPool, err := s.fetchPool(ctx, s.cfg.USDPoolID, denomOSMO, s.cfg.USDDenom)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", a)
	}
	osmoUSD := amm.SpotPrice(usdPool, true)
	if a.AssetID == asset.OSMO.AssetID {
		return osmoUSD, nil
	}

	pool, err := s.fetchPool(ctx, s.cfg.PoolID, s.cfg.AtomDenomOnOsmosis, denomOSMO)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", a)
	}
	return amm.SpotPrice(pool, true).Mul(osmoUSD).Round(amm.DivisionPrecision), nil
}

func (s *Swapper) minMax(pool types.Pool, sell types.Asset, usdRate decimal.Decimal) (*swapper.MinMax, error) {
	if !usdRate.IsPositive() {
		return nil, swapper.NewError(swapper.KindPriceUnavailable, "no usd price for %s", sell)
	}
	return &swapper.MinMax{
		Minimum: s.minTradeUSD.DivRound(usdRate, amm.DivisionPrecision),
		Maximum: types.FromBaseUnit(amm.MaxInputForSlippage(pool, true, s.maxSlippage), sell.Precision),
	}, nil
}

// GetMinMax bounds trades by the minimum USD value and the pool's max slippage
func (s *Swapper) GetMinMax(ctx context.Context, input swapper.MinMaxInput) (*swapper.MinMax, error) {
	atomIn, err := sellsATOM(input.SellAsset, input.BuyAsset)
	if err != nil {
		return nil, err
	}
	inDenom, outDenom := s.poolDenoms(atomIn)
	pool, err := s.fetchPool(ctx, s.cfg.PoolID, inDenom, outDenom)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindMinMaxFailed, err, "min/max for %s", input.SellAsset)
	}
	usdRate, err := s.GetUsdRate(ctx, input.SellAsset)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindMinMaxFailed, err, "min/max for %s", input.SellAsset)
	}
	bounds, err := s.minMax(pool, input.SellAsset, usdRate)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindMinMaxFailed, err, "min/max for %s", input.SellAsset)
	}
	return bounds, nil
}
