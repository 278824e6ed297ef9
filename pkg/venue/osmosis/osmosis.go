// Package osmosis trades ATOM and OSMO through a single Osmosis pool,
// bridging ATOM over IBC in a second leg.
package osmosis

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/shopspring/decimal"

	"multiswap/config"
	"multiswap/pkg/asset"
	"multiswap/pkg/chain"
	"multiswap/pkg/chain/cosmos"
	"multiswap/pkg/settlement"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

const (
	denomATOM = "uatom"
	denomOSMO = "uosmo"
)

// LCD is the chain state the venue reads
type LCD interface {
	chain.TxStatusReader
	chain.BalanceReader
	Get(ctx context.Context, path string, query url.Values, out any) error
	LatestHeight(ctx context.Context) (int64, error)
	Account(ctx context.Context, address string) (*chain.Account, error)
}

// Deps are the collaborators of the Osmosis swapper. Nil LCD clients are
// created from the configured URLs.
type Deps struct {
	Adapters  chain.Adapters
	Osmosis   LCD
	CosmosHub LCD
	Observer  settlement.Observer
	Logger    *slog.Logger
}

// Swapper is the Osmosis venue
type Swapper struct {
	cfg       config.OsmosisConfig
	adapters  chain.Adapters
	osmosis   LCD
	cosmosHub LCD
	observer  settlement.Observer
	logger    *slog.Logger

	defaultSlippage decimal.Decimal
	maxSlippage     decimal.Decimal
	minTradeUSD     decimal.Decimal
	osmosisFee      decimal.Decimal
	cosmosHubFee    decimal.Decimal
}

// New creates the Osmosis swapper
func New(cfg config.OsmosisConfig, deps Deps) (*Swapper, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Swapper{
		cfg:       cfg,
		adapters:  deps.Adapters,
		osmosis:   deps.Osmosis,
		cosmosHub: deps.CosmosHub,
		observer:  deps.Observer,
		logger:    logger.With("swapper", swapper.TypeOsmosis),
	}
	if s.osmosis == nil {
		s.osmosis = cosmos.NewClient(asset.OsmosisChainID, cfg.OsmosisURL, cfg.RequestTimeout)
	}
	if s.cosmosHub == nil {
		s.cosmosHub = cosmos.NewClient(asset.CosmosHubChainID, cfg.CosmosHubURL, cfg.RequestTimeout)
	}
	if cfg.PoolID == "" || cfg.USDPoolID == "" || cfg.AtomDenomOnOsmosis == "" {
		return nil, fmt.Errorf("osmosis: pool_id, usd_pool_id and atom_denom_on_osmosis are required")
	}

	var err error
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"default_slippage", cfg.DefaultSlippage, &s.defaultSlippage},
		{"max_slippage", cfg.MaxSlippage, &s.maxSlippage},
		{"min_trade_value_usd", cfg.MinTradeValueUSD, &s.minTradeUSD},
		{"osmosis_tx_fee", cfg.OsmosisTxFee, &s.osmosisFee},
		{"cosmoshub_tx_fee", cfg.CosmosHubTxFee, &s.cosmosHubFee},
	} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return nil, fmt.Errorf("osmosis: invalid %s: %w", f.name, err)
		}
	}
	return s, nil
}

// Type returns swapper.TypeOsmosis
func (s *Swapper) Type() swapper.Type {
	return swapper.TypeOsmosis
}

func supported(assetID string) bool {
	return assetID == asset.ATOM.AssetID || assetID == asset.OSMO.AssetID
}

// FilterAssetIDsBySellable keeps ATOM and OSMO
func (s *Swapper) FilterAssetIDsBySellable(assetIDs []string) []string {
	out := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if supported(id) {
			out = append(out, id)
		}
	}
	return out
}

// FilterBuyAssetsBySellAssetID returns the other side of the pool
func (s *Swapper) FilterBuyAssetsBySellAssetID(input swapper.BuyAssetFilterInput) []string {
	if !supported(input.SellAssetID) {
		return nil
	}
	out := make([]string, 0, 1)
	for _, id := range input.AssetIDs {
		if supported(id) && id != input.SellAssetID {
			out = append(out, id)
		}
	}
	return out
}

// sellsATOM reports the trade direction, rejecting anything but ATOM<->OSMO
func sellsATOM(sell, buy types.Asset) (bool, error) {
	switch {
	case sell.AssetID == asset.ATOM.AssetID && buy.AssetID == asset.OSMO.AssetID:
		return true, nil
	case sell.AssetID == asset.OSMO.AssetID && buy.AssetID == asset.ATOM.AssetID:
		return false, nil
	}
	return false, swapper.NewError(swapper.KindUnsupportedPair, "osmosis does not trade %s -> %s", sell, buy)
}

// poolDenoms returns the (input, output) denoms of the pool for a direction
func (s *Swapper) poolDenoms(atomIn bool) (string, string) {
	if atomIn {
		return s.cfg.AtomDenomOnOsmosis, denomOSMO
	}
	return denomOSMO, s.cfg.AtomDenomOnOsmosis
}

var _ swapper.Swapper = (*Swapper)(nil)
