// Package zrx trades through the 0x order-book aggregator.
package zrx

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"multiswap/config"
	"multiswap/pkg/approval"
	"multiswap/pkg/chain"
	"multiswap/pkg/httpjson"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// Deps are the collaborators of the 0x swapper
type Deps struct {
	Adapters chain.Adapters
	Logger   *slog.Logger
}

// Swapper is the 0x venue
type Swapper struct {
	cfg      config.ZrxConfig
	adapters chain.Adapters
	clients  map[string]*httpjson.Client
	logger   *slog.Logger

	minTradeUSD     decimal.Decimal
	maxTrade        decimal.Decimal
	defaultSlippage decimal.Decimal
}

// New creates the 0x swapper. Every chain in cfg.BaseURLs needs a USDC address.
func New(cfg config.ZrxConfig, deps Deps) (*Swapper, error) {
	if len(cfg.BaseURLs) == 0 {
		return nil, fmt.Errorf("zrx: no base urls configured")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Swapper{
		cfg:      cfg,
		adapters: deps.Adapters,
		clients:  make(map[string]*httpjson.Client, len(cfg.BaseURLs)),
		logger:   logger.With("swapper", swapper.TypeZrx),
	}
	for chainID, baseURL := range cfg.BaseURLs {
		if _, ok := cfg.USDCAddresses[chainID]; !ok {
			return nil, fmt.Errorf("zrx: no usdc address for %s", chainID)
		}
		client := httpjson.New(baseURL, cfg.RequestTimeout)
		if cfg.APIKey != "" {
			client.WithHeader("0x-api-key", cfg.APIKey)
		}
		s.clients[chainID] = client
	}

	var err error
	if s.minTradeUSD, err = decimal.NewFromString(cfg.MinTradeValueUSD); err != nil {
		return nil, fmt.Errorf("zrx: invalid min_trade_value_usd: %w", err)
	}
	if s.maxTrade, err = decimal.NewFromString(cfg.MaxTradeAmount); err != nil {
		return nil, fmt.Errorf("zrx: invalid max_trade_amount: %w", err)
	}
	if s.defaultSlippage, err = decimal.NewFromString(cfg.DefaultSlippage); err != nil {
		return nil, fmt.Errorf("zrx: invalid default_slippage: %w", err)
	}
	return s, nil
}

// Type returns swapper.TypeZrx
func (s *Swapper) Type() swapper.Type {
	return swapper.TypeZrx
}

func (s *Swapper) supports(assetID string) bool {
	parts, err := types.ParseAssetID(assetID)
	if err != nil || parts.ChainNamespace != types.NamespaceEIP155 {
		return false
	}
	if _, ok := s.clients[parts.ChainID()]; !ok {
		return false
	}
	return parts.AssetNamespace == types.AssetNamespaceERC20 || parts.AssetNamespace == types.AssetNamespaceSlip44
}

// FilterAssetIDsBySellable keeps EVM assets on chains with a configured API
func (s *Swapper) FilterAssetIDsBySellable(assetIDs []string) []string {
	out := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if s.supports(id) {
			out = append(out, id)
		}
	}
	return out
}

// FilterBuyAssetsBySellAssetID keeps assets on the sell asset's chain
func (s *Swapper) FilterBuyAssetsBySellAssetID(input swapper.BuyAssetFilterInput) []string {
	if !s.supports(input.SellAssetID) {
		return nil
	}
	sellChain := types.ChainIDOf(input.SellAssetID)
	out := make([]string, 0, len(input.AssetIDs))
	for _, id := range input.AssetIDs {
		if id == input.SellAssetID || !s.supports(id) {
			continue
		}
		if types.ChainIDOf(id) == sellChain {
			out = append(out, id)
		}
	}
	return out
}

func (s *Swapper) client(chainID string) (*httpjson.Client, error) {
	client, ok := s.clients[chainID]
	if !ok {
		return nil, swapper.NewError(swapper.KindUnsupportedChain, "0x is not configured for %s", chainID)
	}
	return client, nil
}

func (s *Swapper) checker(chainID string) (*approval.Checker, error) {
	adapter, err := s.adapters.EVM(chainID)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindUnsupportedChain, err, "no adapter for %s", chainID)
	}
	return approval.NewChecker(adapter, s.logger), nil
}

// tokenParam is the token identifier 0x expects: the contract for ERC-20s,
// the symbol for the native asset.
func tokenParam(a types.Asset) string {
	if a.IsERC20() {
		return a.ContractAddress()
	}
	return strings.ToUpper(a.Symbol)
}

var _ swapper.Swapper = (*Swapper)(nil)
