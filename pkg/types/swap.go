package types

import (
	"github.com/shopspring/decimal"
)

// SwapSource is one liquidity source contributing to a quote
type SwapSource struct {
	Name       string          `json:"name"`
	Proportion decimal.Decimal `json:"proportion"`
}

// ChainSpecificFee carries the chain-dependent parts of a fee estimate.
// Amounts are in base units of the sell chain's fee asset.
type ChainSpecificFee struct {
	EstimatedGas decimal.Decimal `json:"estimatedGas,omitempty"`
	GasPrice     decimal.Decimal `json:"gasPrice,omitempty"`
	ApprovalFee  decimal.Decimal `json:"approvalFee,omitempty"`
	SatsPerByte  decimal.Decimal `json:"satsPerByte,omitempty"`
}

// FeeData describes the fees of a quote. Fee is the cost of the swap itself:
// network fee in fee-asset base units, or the order fee in sell-asset base
// units for batch auctions. ChainSpecific.ApprovalFee is the cost of a prior
// approve transaction and is never included in Fee.
type FeeData struct {
	Fee           decimal.Decimal  `json:"fee"`
	TradeFee      decimal.Decimal  `json:"tradeFee"`
	ChainSpecific ChainSpecificFee `json:"chainSpecific"`
}

// TradeQuote is a venue's price for selling SellAmount of SellAsset.
// SellAmount and BuyAmount are base units; Rate, Minimum and Maximum are display units.
type TradeQuote struct {
	Rate                   decimal.Decimal `json:"rate"`
	Minimum                decimal.Decimal `json:"minimum"`
	Maximum                decimal.Decimal `json:"maximum"`
	SellAmount             decimal.Decimal `json:"sellAmount"`
	BuyAmount              decimal.Decimal `json:"buyAmount"`
	FeeData                FeeData         `json:"feeData"`
	Sources                []SwapSource    `json:"sources"`
	AllowanceContract      string          `json:"allowanceContract,omitempty"`
	SellAsset              Asset           `json:"sellAsset"`
	BuyAsset               Asset           `json:"buyAsset"`
	SellAssetAccountNumber int             `json:"sellAssetAccountNumber"`
}

// Trade is a quote bound to a wallet and destination, ready to sign.
// Exactly one of Tx and Order is set.
type Trade struct {
	TradeQuote
	ReceiveAddress    string          `json:"receiveAddress"`
	SellAddress       string          `json:"sellAddress,omitempty"`
	Tx                *UnsignedTx     `json:"-"`
	Order             *SignableOrder  `json:"-"`
	DepositAddress    string          `json:"depositAddress,omitempty"`
	Memo              string          `json:"memo,omitempty"`
	SlippageTolerance decimal.Decimal `json:"slippageTolerance"`
}

// TradeResult identifies an executed trade on its venue
type TradeResult struct {
	TradeID string `json:"tradeId"`
}

// Pool is a constant-product pool snapshot. For hub pools CounterBalance
// is the hub asset side.
type Pool struct {
	Asset          string          `json:"asset"`
	AssetBalance   decimal.Decimal `json:"assetBalance"`
	CounterBalance decimal.Decimal `json:"counterBalance"`
	SwapFeeBips    int64           `json:"swapFeeBips"`
}
