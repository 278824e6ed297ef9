// Package nearintents trades through the NEAR Intents 1Click API: the wallet
// sends the sell asset to a one-time deposit address and solvers deliver the
// buy asset on its chain.
package nearintents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/shopspring/decimal"

	"multiswap/config"
	"multiswap/pkg/chain"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// Deps are the collaborators of the NEAR Intents swapper. A nil API is
// created from the configured base URL and token.
type Deps struct {
	Adapters chain.Adapters
	API      API
	Logger   *slog.Logger
}

// Swapper is the NEAR Intents venue
type Swapper struct {
	cfg      config.NearIntentsConfig
	adapters chain.Adapters
	api      API
	logger   *slog.Logger

	minTrade decimal.Decimal
	maxTrade decimal.Decimal
}

// New creates the NEAR Intents swapper
func New(cfg config.NearIntentsConfig, deps Deps) (*Swapper, error) {
	if len(cfg.Blockchains) == 0 {
		return nil, fmt.Errorf("near intents: no blockchains configured")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Swapper{
		cfg:      cfg,
		adapters: deps.Adapters,
		api:      deps.API,
		logger:   logger.With("swapper", swapper.TypeNearIntents),
	}
	if s.api == nil {
		s.api = NewClient(cfg.BaseURL, cfg.JWTToken, cfg.RequestTimeout)
	}

	var err error
	if s.minTrade, err = decimal.NewFromString(cfg.MinTradeAmount); err != nil {
		return nil, fmt.Errorf("near intents: invalid min_trade_amount: %w", err)
	}
	if s.maxTrade, err = decimal.NewFromString(cfg.MaxTradeAmount); err != nil {
		return nil, fmt.Errorf("near intents: invalid max_trade_amount: %w", err)
	}
	if cfg.SlippageBps < 0 || cfg.SlippageBps > 10000 {
		return nil, fmt.Errorf("near intents: slippage_bps %d outside [0, 10000]", cfg.SlippageBps)
	}
	return s, nil
}

// Type returns swapper.TypeNearIntents
func (s *Swapper) Type() swapper.Type {
	return swapper.TypeNearIntents
}

func (s *Swapper) mapped(assetID string) bool {
	_, ok := s.cfg.Blockchains[types.ChainIDOf(assetID)]
	return ok
}

// sellable assets are native or ERC-20 assets of a mapped EVM chain
func (s *Swapper) sellable(assetID string) bool {
	parts, err := types.ParseAssetID(assetID)
	if err != nil || parts.ChainNamespace != types.NamespaceEIP155 {
		return false
	}
	if parts.AssetNamespace != types.AssetNamespaceSlip44 && parts.AssetNamespace != types.AssetNamespaceERC20 {
		return false
	}
	return s.mapped(assetID)
}

// FilterAssetIDsBySellable keeps EVM assets on chains the API serves
func (s *Swapper) FilterAssetIDsBySellable(assetIDs []string) []string {
	out := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if s.sellable(id) {
			out = append(out, id)
		}
	}
	return out
}

// FilterBuyAssetsBySellAssetID keeps every asset on a mapped chain
func (s *Swapper) FilterBuyAssetsBySellAssetID(input swapper.BuyAssetFilterInput) []string {
	if !s.sellable(input.SellAssetID) {
		return nil
	}
	out := make([]string, 0, len(input.AssetIDs))
	for _, id := range input.AssetIDs {
		if id != input.SellAssetID && s.mapped(id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Swapper) tokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	tokens, err := s.api.Tokens(ctx)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindResponseError, err, "near intents tokens")
	}
	return tokens, nil
}

// matchToken finds an asset in the 1Click token list by blockchain and
// contract, or by symbol for native assets.
func (s *Swapper) matchToken(tokens []oneclick.TokenResponse, a types.Asset) (*oneclick.TokenResponse, error) {
	blockchain, ok := s.cfg.Blockchains[a.ChainID]
	if !ok {
		return nil, swapper.NewError(swapper.KindUnsupportedChain, "near intents does not serve %s", a.ChainID)
	}
	contract := a.ContractAddress()
	for i := range tokens {
		token := &tokens[i]
		if !strings.EqualFold(token.GetBlockchain(), blockchain) {
			continue
		}
		if contract != "" {
			if strings.EqualFold(token.GetContractAddress(), contract) {
				return token, nil
			}
			continue
		}
		if token.GetContractAddress() == "" && strings.EqualFold(token.GetSymbol(), a.Symbol) {
			return token, nil
		}
	}
	return nil, swapper.NewError(swapper.KindUnsupportedPair, "token %s not found on %s", a, blockchain)
}

// GetUsdRate returns the token list price
func (s *Swapper) GetUsdRate(ctx context.Context, a types.Asset) (decimal.Decimal, error) {
	tokens, err := s.tokens(ctx)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", a)
	}
	token, err := s.matchToken(tokens, a)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", a)
	}
	price := decimal.NewFromFloat(float64(token.GetPrice()))
	if !price.IsPositive() {
		return decimal.Zero, swapper.NewError(swapper.KindUsdRateFailed, "no usd price for %s", a)
	}
	return price, nil
}

// GetMinMax returns the configured trade bounds
func (s *Swapper) GetMinMax(_ context.Context, input swapper.MinMaxInput) (*swapper.MinMax, error) {
	if !s.sellable(input.SellAsset.AssetID) || !s.mapped(input.BuyAsset.AssetID) {
		return nil, swapper.NewError(swapper.KindUnsupportedPair, "near intents does not trade %s -> %s", input.SellAsset, input.BuyAsset)
	}
	return &swapper.MinMax{Minimum: s.minTrade, Maximum: s.maxTrade}, nil
}

var _ swapper.Swapper = (*Swapper)(nil)
