package thorchain

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"multiswap/pkg/httpjson"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

const poolStatusAvailable = "Available"

type poolResponse struct {
	Asset        string          `json:"asset"`
	Status       string          `json:"status"`
	BalanceAsset decimal.Decimal `json:"balance_asset"`
	BalanceRune  decimal.Decimal `json:"balance_rune"`
}

type inboundAddress struct {
	Chain              string          `json:"chain"`
	Address            string          `json:"address"`
	Router             string          `json:"router"`
	Halted             bool            `json:"halted"`
	ChainTradingPaused bool            `json:"chain_trading_paused"`
	GasRate            decimal.Decimal `json:"gas_rate"`
	GasRateUnits       string          `json:"gas_rate_units"`
}

func responseError(err error, what string) error {
	if se, ok := httpjson.AsStatus(err); ok {
		return swapper.Wrap(swapper.KindResponseError, err, "thornode %s responded %d", what, se.StatusCode)
	}
	return swapper.Wrap(swapper.KindResponseError, err, "thornode %s request failed", what)
}

// fetchPools returns the available pools keyed by upper-case pool id.
// Pools are read per call and never cached.
func (s *Swapper) fetchPools(ctx context.Context) (map[string]types.Pool, error) {
	var resp []poolResponse
	if err := s.api.Get(ctx, "/thorchain/pools", nil, &resp); err != nil {
		return nil, responseError(err, "pools")
	}
	pools := make(map[string]types.Pool, len(resp))
	for _, p := range resp {
		if p.Status != "" && p.Status != poolStatusAvailable {
			continue
		}
		pools[strings.ToUpper(p.Asset)] = types.Pool{
			Asset:          p.Asset,
			AssetBalance:   p.BalanceAsset,
			CounterBalance: p.BalanceRune,
		}
	}
	return pools, nil
}

func lookupPool(pools map[string]types.Pool, id string) (types.Pool, error) {
	pool, ok := pools[strings.ToUpper(id)]
	if !ok {
		return types.Pool{}, swapper.NewError(swapper.KindResponseError, "no available pool %s", id)
	}
	if !pool.AssetBalance.IsPositive() || !pool.CounterBalance.IsPositive() {
		return types.Pool{}, swapper.NewError(swapper.KindResponseError, "pool %s has no depth", id)
	}
	return pool, nil
}

// fetchInbound returns inbound addresses keyed by chain. Vaults rotate, so
// builders always read them fresh.
func (s *Swapper) fetchInbound(ctx context.Context) (map[string]inboundAddress, error) {
	var resp []inboundAddress
	if err := s.api.Get(ctx, "/thorchain/inbound_addresses", nil, &resp); err != nil {
		return nil, responseError(err, "inbound addresses")
	}
	out := make(map[string]inboundAddress, len(resp))
	for _, in := range resp {
		out[strings.ToUpper(in.Chain)] = in
	}
	return out, nil
}

func lookupInbound(inbound map[string]inboundAddress, chainName string) (inboundAddress, error) {
	in, ok := inbound[chainName]
	if !ok {
		return inboundAddress{}, swapper.NewError(swapper.KindResponseError, "no inbound address for %s", chainName)
	}
	return in, nil
}
