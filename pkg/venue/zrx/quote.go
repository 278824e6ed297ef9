package zrx

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"multiswap/pkg/httpjson"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// usdQuoteAmount is 1000 USDC in base units
const usdQuoteAmount = "1000000000"

type source struct {
	Name       string          `json:"name"`
	Proportion decimal.Decimal `json:"proportion"`
}

type priceResponse struct {
	Price           decimal.Decimal `json:"price"`
	EstimatedGas    decimal.Decimal `json:"estimatedGas"`
	GasPrice        decimal.Decimal `json:"gasPrice"`
	SellAmount      decimal.Decimal `json:"sellAmount"`
	BuyAmount       decimal.Decimal `json:"buyAmount"`
	AllowanceTarget string          `json:"allowanceTarget"`
	Sources         []source        `json:"sources"`
}

// GetUsdRate prices one display unit of asset in USD via a 1000 USDC buy quote
func (s *Swapper) GetUsdRate(ctx context.Context, asset types.Asset) (decimal.Decimal, error) {
	client, err := s.client(asset.ChainID)
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", asset)
	}
	usdc := s.cfg.USDCAddresses[asset.ChainID]
	if asset.IsERC20() && equalFold(asset.ContractAddress(), usdc) {
		return decimal.NewFromInt(1), nil
	}

	var resp priceResponse
	params := url.Values{
		"buyToken":  {usdc},
		"buyAmount": {usdQuoteAmount},
		"sellToken": {tokenParam(asset)},
	}
	if err := client.Get(ctx, "/swap/v1/price", params, &resp); err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, responseError(err), "usd rate for %s", asset)
	}
	if !resp.Price.IsPositive() {
		return decimal.Zero, swapper.NewError(swapper.KindPriceUnavailable, "0x returned price %s for %s", resp.Price, asset)
	}
	return decimal.NewFromInt(1).DivRound(resp.Price, 20), nil
}

// GetMinMax bounds trades by the minimum USD value and the configured maximum
func (s *Swapper) GetMinMax(ctx context.Context, input swapper.MinMaxInput) (*swapper.MinMax, error) {
	usdRate, err := s.GetUsdRate(ctx, input.SellAsset)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindMinMaxFailed, err, "min/max for %s", input.SellAsset)
	}
	return &swapper.MinMax{
		Minimum: s.minTradeUSD.DivRound(usdRate, 20),
		Maximum: s.maxTrade,
	}, nil
}

// GetTradeQuote prices the trade with /swap/v1/price. A zero sell amount
// quotes the minimum.
func (s *Swapper) GetTradeQuote(ctx context.Context, input swapper.TradeQuoteInput) (*types.TradeQuote, error) {
	slippage, err := swapper.SlippageTolerance(input.SlippageTolerance, s.defaultSlippage)
	if err != nil {
		return nil, err
	}
	if err := swapper.CheckSameChain(input.SellAsset, input.BuyAsset); err != nil {
		return nil, err
	}
	if input.SellAmount.IsNegative() {
		return nil, swapper.NewError(swapper.KindValidationFailed, "sell amount must not be negative")
	}
	client, err := s.client(input.SellAsset.ChainID)
	if err != nil {
		return nil, err
	}

	minMax, err := s.GetMinMax(ctx, swapper.MinMaxInput{SellAsset: input.SellAsset, BuyAsset: input.BuyAsset})
	if err != nil {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "quote %s -> %s", input.SellAsset, input.BuyAsset)
	}

	sellAmount := input.SellAmount.Truncate(0)
	if sellAmount.IsZero() {
		sellAmount = types.ToBaseUnit(minMax.Minimum, input.SellAsset.Precision)
	}

	var resp priceResponse
	params := url.Values{
		"sellToken":          {tokenParam(input.SellAsset)},
		"buyToken":           {tokenParam(input.BuyAsset)},
		"sellAmount":         {sellAmount.String()},
		"slippagePercentage": {slippage.String()},
		"skipValidation":     {"true"},
	}
	if s.cfg.AffiliateAddress != "" {
		params.Set("affiliateAddress", s.cfg.AffiliateAddress)
	}
	if err := client.Get(ctx, "/swap/v1/price", params, &resp); err != nil {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, responseError(err), "quote %s -> %s", input.SellAsset, input.BuyAsset)
	}
	if !resp.Price.IsPositive() {
		return nil, swapper.NewError(swapper.KindPriceUnavailable, "0x returned price %s", resp.Price)
	}

	quote := &types.TradeQuote{
		Rate:                   resp.Price,
		Minimum:                minMax.Minimum,
		Maximum:                minMax.Maximum,
		SellAmount:             sellAmount,
		BuyAmount:              resp.BuyAmount,
		Sources:                sources(resp.Sources),
		AllowanceContract:      resp.AllowanceTarget,
		SellAsset:              input.SellAsset,
		BuyAsset:               input.BuyAsset,
		SellAssetAccountNumber: input.SellAssetAccountNumber,
		FeeData: types.FeeData{
			Fee:      resp.EstimatedGas.Mul(resp.GasPrice),
			TradeFee: decimal.Zero,
			ChainSpecific: types.ChainSpecificFee{
				EstimatedGas: resp.EstimatedGas,
				GasPrice:     resp.GasPrice,
			},
		},
	}

	if !input.SellAsset.IsERC20() {
		quote.AllowanceContract = ""
	}
	if input.Wallet != nil && input.SellAsset.IsERC20() {
		checker, err := s.checker(input.SellAsset.ChainID)
		if err != nil {
			return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "approval fee")
		}
		fee, err := checker.ApprovalFee(ctx, quote, input.Wallet, resp.GasPrice)
		if err != nil {
			return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "approval fee")
		}
		quote.FeeData.ChainSpecific.ApprovalFee = fee
	}

	s.logger.Debug("quote", "sell", input.SellAsset, "buy", input.BuyAsset, "sellAmount", sellAmount, "rate", quote.Rate)
	return quote, nil
}

func sources(in []source) []types.SwapSource {
	out := make([]types.SwapSource, 0, len(in))
	for _, src := range in {
		if src.Proportion.IsPositive() {
			out = append(out, types.SwapSource{Name: src.Name, Proportion: src.Proportion})
		}
	}
	return out
}

func responseError(err error) error {
	if se, ok := httpjson.AsStatus(err); ok {
		return swapper.Wrap(swapper.KindResponseError, err, "0x responded %d", se.StatusCode)
	}
	return swapper.Wrap(swapper.KindResponseError, err, "0x request failed")
}

func equalFold(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
