// Package cowswap trades through the CoW Protocol batch auction.
package cowswap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"multiswap/config"
	"multiswap/pkg/approval"
	"multiswap/pkg/chain"
	"multiswap/pkg/httpjson"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// Deps are the collaborators of the CowSwap swapper
type Deps struct {
	Adapters chain.Adapters
	Logger   *slog.Logger
}

// Swapper is the CoW Protocol venue
type Swapper struct {
	cfg     config.CowSwapConfig
	chainID string
	adapter chain.EVMAdapter
	api     *httpjson.Client
	logger  *slog.Logger

	minTradeUSD     decimal.Decimal
	maxTrade        decimal.Decimal
	defaultSlippage decimal.Decimal
}

// New creates the CowSwap swapper
func New(cfg config.CowSwapConfig, deps Deps) (*Swapper, error) {
	chainID := fmt.Sprintf("eip155:%d", cfg.ChainID)
	adapter, err := deps.Adapters.EVM(chainID)
	if err != nil {
		return nil, fmt.Errorf("cowswap: %w", err)
	}
	for name, addr := range map[string]string{
		"settlement_contract": cfg.SettlementContract,
		"vault_relayer":       cfg.VaultRelayer,
		"usdc_address":        cfg.USDCAddress,
		"wrapped_native":      cfg.WrappedNative,
	} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("cowswap: invalid %s %q", name, addr)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Swapper{
		cfg:     cfg,
		chainID: chainID,
		adapter: adapter,
		api:     httpjson.New(cfg.BaseURL, cfg.RequestTimeout),
		logger:  logger.With("swapper", swapper.TypeCowSwap),
	}
	if s.minTradeUSD, err = decimal.NewFromString(cfg.MinTradeValueUSD); err != nil {
		return nil, fmt.Errorf("cowswap: invalid min_trade_value_usd: %w", err)
	}
	if s.maxTrade, err = decimal.NewFromString(cfg.MaxTradeAmount); err != nil {
		return nil, fmt.Errorf("cowswap: invalid max_trade_amount: %w", err)
	}
	if s.defaultSlippage, err = decimal.NewFromString(cfg.DefaultSlippage); err != nil {
		return nil, fmt.Errorf("cowswap: invalid default_slippage: %w", err)
	}
	return s, nil
}

// Type returns swapper.TypeCowSwap
func (s *Swapper) Type() swapper.Type {
	return swapper.TypeCowSwap
}

func (s *Swapper) supports(assetID string) bool {
	parts, err := types.ParseAssetID(assetID)
	if err != nil {
		return false
	}
	return parts.ChainID() == s.chainID && parts.AssetNamespace == types.AssetNamespaceERC20
}

// FilterAssetIDsBySellable keeps ERC-20 tokens on the configured chain
func (s *Swapper) FilterAssetIDsBySellable(assetIDs []string) []string {
	out := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if s.supports(id) {
			out = append(out, id)
		}
	}
	return out
}

// FilterBuyAssetsBySellAssetID keeps ERC-20 tokens other than the sell asset
func (s *Swapper) FilterBuyAssetsBySellAssetID(input swapper.BuyAssetFilterInput) []string {
	if !s.supports(input.SellAssetID) {
		return nil
	}
	out := make([]string, 0, len(input.AssetIDs))
	for _, id := range input.AssetIDs {
		if id != input.SellAssetID && s.supports(id) {
			out = append(out, id)
		}
	}
	return out
}

// ApprovalNeeded checks the allowance of the vault relayer
func (s *Swapper) ApprovalNeeded(ctx context.Context, input swapper.ApprovalInput) (bool, error) {
	if input.Quote == nil {
		return false, swapper.NewError(swapper.KindCheckApprovalFailed, "quote is required")
	}
	return approval.NewChecker(s.adapter, s.logger).ApprovalNeeded(ctx, s.withRelayer(input.Quote), input.Wallet)
}

// ApproveInfinite approves the vault relayer for the maximum amount
func (s *Swapper) ApproveInfinite(ctx context.Context, input swapper.ApprovalInput) (string, error) {
	if input.Quote == nil {
		return "", swapper.NewError(swapper.KindApproveInfiniteFailed, "quote is required")
	}
	return approval.NewChecker(s.adapter, s.logger).ApproveInfinite(ctx, s.withRelayer(input.Quote), input.Wallet)
}

func (s *Swapper) withRelayer(quote *types.TradeQuote) *types.TradeQuote {
	q := *quote
	if q.AllowanceContract == "" {
		q.AllowanceContract = s.cfg.VaultRelayer
	}
	return &q
}

// tokenAddress maps native ETH to the wrapped token
func (s *Swapper) tokenAddress(a types.Asset) string {
	if a.IsERC20() {
		return strings.ToLower(a.ContractAddress())
	}
	return strings.ToLower(s.cfg.WrappedNative)
}

var _ swapper.Swapper = (*Swapper)(nil)
