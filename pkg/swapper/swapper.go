package swapper

import (
	"context"

	"github.com/shopspring/decimal"

	"multiswap/pkg/chain"
	"multiswap/pkg/types"
)

// Type identifies a venue
type Type string

const (
	TypeZrx         Type = "0x"
	TypeCowSwap     Type = "CowSwap"
	TypeThorchain   Type = "Thorchain"
	TypeOsmosis     Type = "Osmosis"
	TypeNearIntents Type = "NearIntents"
)

// BuyAssetFilterInput selects buy candidates for a sell asset
type BuyAssetFilterInput struct {
	AssetIDs    []string
	SellAssetID string
}

// MinMaxInput names the pair whose trade bounds are requested
type MinMaxInput struct {
	SellAsset types.Asset
	BuyAsset  types.Asset
}

// MinMax bounds the sell amount in sell asset display units
type MinMax struct {
	Minimum decimal.Decimal `json:"minimum"`
	Maximum decimal.Decimal `json:"maximum"`
}

// TradeQuoteInput requests a quote. SellAmount is in base units.
// Wallet is optional; when set, EVM venues include the approval fee if an allowance gap exists.
type TradeQuoteInput struct {
	SellAsset              types.Asset
	BuyAsset               types.Asset
	SellAmount             decimal.Decimal
	SendMax                bool
	SellAssetAccountNumber int
	ReceiveAddress         string
	SlippageTolerance      *decimal.Decimal
	Wallet                 chain.Wallet
}

// BuildTradeInput binds a quote to a wallet and destination
type BuildTradeInput struct {
	Quote             *types.TradeQuote
	Wallet            chain.Wallet
	ReceiveAddress    string
	SlippageTolerance *decimal.Decimal
}

// ExecuteTradeInput signs and broadcasts a built trade
type ExecuteTradeInput struct {
	Trade  *types.Trade
	Wallet chain.Wallet
}

// ApprovalInput identifies the quote and wallet of an allowance operation
type ApprovalInput struct {
	Quote  *types.TradeQuote
	Wallet chain.Wallet
}

// Swapper is one trading venue
type Swapper interface {
	Type() Type

	// FilterAssetIDsBySellable returns the ids this venue can sell. Pure.
	FilterAssetIDsBySellable(assetIDs []string) []string
	// FilterBuyAssetsBySellAssetID returns the ids buyable for the sell asset. Pure.
	FilterBuyAssetsBySellAssetID(input BuyAssetFilterInput) []string

	GetUsdRate(ctx context.Context, asset types.Asset) (decimal.Decimal, error)
	GetMinMax(ctx context.Context, input MinMaxInput) (*MinMax, error)
	GetTradeQuote(ctx context.Context, input TradeQuoteInput) (*types.TradeQuote, error)

	ApprovalNeeded(ctx context.Context, input ApprovalInput) (bool, error)
	ApproveInfinite(ctx context.Context, input ApprovalInput) (string, error)

	BuildTrade(ctx context.Context, input BuildTradeInput) (*types.Trade, error)
	ExecuteTrade(ctx context.Context, input ExecuteTradeInput) (*types.TradeResult, error)
}
