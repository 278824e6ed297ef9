// Package thorchain trades through THORChain's RUNE-hub liquidity pools.
package thorchain

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/shopspring/decimal"

	"multiswap/config"
	"multiswap/pkg/asset"
	"multiswap/pkg/chain"
	"multiswap/pkg/httpjson"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// THORChain chain names
const (
	ChainBTC  = "BTC"
	ChainETH  = "ETH"
	ChainGAIA = "GAIA"
	ChainTHOR = "THOR"
)

// RunePoolID names the hub asset; it has no pool of its own
const RunePoolID = "THOR.RUNE"

const routerABI = `[{"inputs":[{"name":"vault","type":"address"},{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"memo","type":"string"},{"name":"expiration","type":"uint256"}],"name":"depositWithExpiry","outputs":[],"stateMutability":"payable","type":"function"}]`

// Deps are the collaborators of the THORChain swapper
type Deps struct {
	Adapters chain.Adapters
	Logger   *slog.Logger
}

// Swapper is the THORChain venue
type Swapper struct {
	cfg      config.ThorchainConfig
	api      *httpjson.Client
	adapters chain.Adapters
	router   abi.ABI
	logger   *slog.Logger

	defaultSlippage decimal.Decimal
	maxSlippage     decimal.Decimal
	maxFeeFraction  decimal.Decimal
}

// New creates the THORChain swapper
func New(cfg config.ThorchainConfig, deps Deps) (*Swapper, error) {
	if cfg.ThornodeURL == "" {
		return nil, fmt.Errorf("thorchain: thornode_url is required")
	}
	router, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("thorchain: parse router abi: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Swapper{
		cfg:      cfg,
		api:      httpjson.New(cfg.ThornodeURL, cfg.RequestTimeout),
		adapters: deps.Adapters,
		router:   router,
		logger:   logger.With("swapper", swapper.TypeThorchain),
	}
	if s.defaultSlippage, err = decimal.NewFromString(cfg.DefaultSlippage); err != nil {
		return nil, fmt.Errorf("thorchain: invalid default_slippage: %w", err)
	}
	if s.maxSlippage, err = decimal.NewFromString(cfg.MaxSlippage); err != nil {
		return nil, fmt.Errorf("thorchain: invalid max_slippage: %w", err)
	}
	if s.maxFeeFraction, err = decimal.NewFromString(cfg.MaxFeeFraction); err != nil || !s.maxFeeFraction.IsPositive() {
		return nil, fmt.Errorf("thorchain: invalid max_fee_fraction %q", cfg.MaxFeeFraction)
	}
	return s, nil
}

// Type returns swapper.TypeThorchain
func (s *Swapper) Type() swapper.Type {
	return swapper.TypeThorchain
}

// thorChain maps a CAIP-2 chain id to its THORChain chain name
func thorChain(chainID string) (string, bool) {
	switch chainID {
	case asset.BitcoinChainID:
		return ChainBTC, true
	case asset.EthereumChainID:
		return ChainETH, true
	case asset.CosmosHubChainID:
		return ChainGAIA, true
	case asset.ThorchainChainID:
		return ChainTHOR, true
	}
	return "", false
}

// PoolID returns the THORChain pool name of a, e.g. ETH.FOX-0XC770...
func PoolID(a types.Asset) (string, error) {
	parts, err := types.ParseAssetID(a.AssetID)
	if err != nil {
		return "", swapper.Wrap(swapper.KindUnsupportedNamespace, err, "parse asset id")
	}
	name, ok := thorChain(parts.ChainID())
	if !ok {
		return "", swapper.NewError(swapper.KindUnsupportedChain, "thorchain does not support %s", parts.ChainID())
	}

	switch {
	case name == ChainBTC && parts.AssetNamespace == types.AssetNamespaceSlip44:
		return "BTC.BTC", nil
	case name == ChainETH && parts.AssetNamespace == types.AssetNamespaceSlip44:
		return "ETH.ETH", nil
	case name == ChainETH && parts.AssetNamespace == types.AssetNamespaceERC20:
		if a.Symbol == "" {
			return "", swapper.NewError(swapper.KindUnsupportedNamespace, "token %s has no symbol", a.AssetID)
		}
		return fmt.Sprintf("ETH.%s-%s", strings.ToUpper(a.Symbol), strings.ToUpper(parts.AssetReference)), nil
	case name == ChainGAIA && parts.AssetNamespace == types.AssetNamespaceSlip44:
		return "GAIA.ATOM", nil
	case name == ChainTHOR && parts.AssetNamespace == types.AssetNamespaceSlip44:
		return RunePoolID, nil
	}
	return "", swapper.NewError(swapper.KindUnsupportedNamespace, "thorchain does not support %s", a.AssetID)
}

// poolChain returns the chain part of a pool id
func poolChain(poolID string) string {
	name, _, _ := strings.Cut(poolID, ".")
	return name
}

func sellable(assetID string) bool {
	parts, err := types.ParseAssetID(assetID)
	if err != nil {
		return false
	}
	switch parts.ChainID() {
	case asset.BitcoinChainID:
		return parts.AssetNamespace == types.AssetNamespaceSlip44
	case asset.EthereumChainID:
		return parts.AssetNamespace == types.AssetNamespaceSlip44 || parts.AssetNamespace == types.AssetNamespaceERC20
	}
	return false
}

func buyable(assetID string) bool {
	if sellable(assetID) {
		return true
	}
	parts, err := types.ParseAssetID(assetID)
	if err != nil {
		return false
	}
	switch parts.ChainID() {
	case asset.CosmosHubChainID, asset.ThorchainChainID:
		return parts.AssetNamespace == types.AssetNamespaceSlip44
	}
	return false
}

// FilterAssetIDsBySellable keeps BTC, ETH and ERC-20 assets
func (s *Swapper) FilterAssetIDsBySellable(assetIDs []string) []string {
	out := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if sellable(id) {
			out = append(out, id)
		}
	}
	return out
}

// FilterBuyAssetsBySellAssetID keeps pool assets and RUNE other than the sell asset
func (s *Swapper) FilterBuyAssetsBySellAssetID(input swapper.BuyAssetFilterInput) []string {
	if !sellable(input.SellAssetID) {
		return nil
	}
	out := make([]string, 0, len(input.AssetIDs))
	for _, id := range input.AssetIDs {
		if id != input.SellAssetID && buyable(id) {
			out = append(out, id)
		}
	}
	return out
}

var _ swapper.Swapper = (*Swapper)(nil)
