package cowswap

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"multiswap/pkg/approval"
	"multiswap/pkg/chain"
	"multiswap/pkg/httpjson"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

const (
	kindSell = "sell"
	kindBuy  = "buy"

	// usdQuoteAmount is 1000 USDC in base units
	usdQuoteAmount = "1000000000"
	balanceERC20   = "erc20"
)

var usdQuoteValue = decimal.NewFromInt(1000)

type quoteRequest struct {
	SellToken           string `json:"sellToken"`
	BuyToken            string `json:"buyToken"`
	Receiver            string `json:"receiver"`
	ValidTo             int64  `json:"validTo"`
	AppData             string `json:"appData"`
	PartiallyFillable   bool   `json:"partiallyFillable"`
	From                string `json:"from"`
	Kind                string `json:"kind"`
	SellAmountBeforeFee string `json:"sellAmountBeforeFee,omitempty"`
	BuyAmountAfterFee   string `json:"buyAmountAfterFee,omitempty"`
}

type orderQuote struct {
	SellToken         string          `json:"sellToken"`
	BuyToken          string          `json:"buyToken"`
	Receiver          string          `json:"receiver"`
	SellAmount        decimal.Decimal `json:"sellAmount"`
	BuyAmount         decimal.Decimal `json:"buyAmount"`
	ValidTo           int64           `json:"validTo"`
	AppData           string          `json:"appData"`
	FeeAmount         decimal.Decimal `json:"feeAmount"`
	Kind              string          `json:"kind"`
	PartiallyFillable bool            `json:"partiallyFillable"`
}

type quoteResponse struct {
	Quote      orderQuote `json:"quote"`
	From       string     `json:"from"`
	Expiration string     `json:"expiration"`
	ID         int64      `json:"id"`
}

type apiError struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
}

func responseError(err error) error {
	se, ok := httpjson.AsStatus(err)
	if !ok {
		return swapper.Wrap(swapper.KindResponseError, err, "cowswap request failed")
	}
	var body apiError
	if json.Unmarshal(se.Body, &body) == nil && body.ErrorType != "" {
		return swapper.Wrap(swapper.KindResponseError, err, "cowswap %s: %s", body.ErrorType, body.Description)
	}
	return swapper.Wrap(swapper.KindResponseError, err, "cowswap responded %d", se.StatusCode)
}

func (s *Swapper) validTo() int64 {
	return time.Now().Add(s.cfg.OrderValidity).Unix()
}

func (s *Swapper) requestQuote(ctx context.Context, req quoteRequest) (*quoteResponse, error) {
	var resp quoteResponse
	if err := s.api.Post(ctx, "/v1/quote", req, &resp); err != nil {
		return nil, responseError(err)
	}
	return &resp, nil
}

// GetUsdRate prices asset from a quote buying 1000 USDC. Native ETH is
// priced through the wrapped token.
func (s *Swapper) GetUsdRate(ctx context.Context, asset types.Asset) (decimal.Decimal, error) {
	if asset.ChainID != s.chainID {
		return decimal.Zero, swapper.NewError(swapper.KindUsdRateFailed, "cowswap does not price %s", asset)
	}
	token := s.tokenAddress(asset)
	if strings.EqualFold(token, s.cfg.USDCAddress) {
		return decimal.NewFromInt(1), nil
	}

	resp, err := s.requestQuote(ctx, quoteRequest{
		SellToken:         token,
		BuyToken:          strings.ToLower(s.cfg.USDCAddress),
		Receiver:          s.cfg.DefaultReceiver,
		ValidTo:           s.validTo(),
		AppData:           s.cfg.AppData,
		PartiallyFillable: false,
		From:              s.cfg.DefaultReceiver,
		Kind:              kindBuy,
		BuyAmountAfterFee: usdQuoteAmount,
	})
	if err != nil {
		return decimal.Zero, swapper.Wrap(swapper.KindUsdRateFailed, err, "usd rate for %s", asset)
	}

	sellAmount := types.FromBaseUnit(resp.Quote.SellAmount, asset.Precision)
	if !sellAmount.IsPositive() {
		return decimal.Zero, swapper.NewError(swapper.KindPriceUnavailable, "cowswap returned sell amount %s for %s", resp.Quote.SellAmount, asset)
	}
	return usdQuoteValue.DivRound(sellAmount, 20), nil
}

func (s *Swapper) minMax(usdRate decimal.Decimal) *swapper.MinMax {
	return &swapper.MinMax{
		Minimum: s.minTradeUSD.DivRound(usdRate, 20),
		Maximum: s.maxTrade,
	}
}

// GetMinMax bounds trades by the minimum USD value and the configured maximum
func (s *Swapper) GetMinMax(ctx context.Context, input swapper.MinMaxInput) (*swapper.MinMax, error) {
	usdRate, err := s.GetUsdRate(ctx, input.SellAsset)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindMinMaxFailed, err, "min/max for %s", input.SellAsset)
	}
	return s.minMax(usdRate), nil
}

// rate is buy per sell in display units, from the post-fee sell amount
func rate(q orderQuote, sell, buy types.Asset) decimal.Decimal {
	sellAmount := types.FromBaseUnit(q.SellAmount, sell.Precision)
	if sellAmount.IsZero() {
		return decimal.Zero
	}
	return types.FromBaseUnit(q.BuyAmount, buy.Precision).DivRound(sellAmount, 20)
}

// GetTradeQuote asks the solver network for a sell quote. A zero sell amount
// quotes the minimum.
func (s *Swapper) GetTradeQuote(ctx context.Context, input swapper.TradeQuoteInput) (*types.TradeQuote, error) {
	if _, err := swapper.SlippageTolerance(input.SlippageTolerance, s.defaultSlippage); err != nil {
		return nil, err
	}
	if !s.supports(input.SellAsset.AssetID) || !s.supports(input.BuyAsset.AssetID) || input.SellAsset.AssetID == input.BuyAsset.AssetID {
		return nil, swapper.NewError(swapper.KindUnsupportedPair, "cowswap does not trade %s -> %s", input.SellAsset, input.BuyAsset)
	}
	if input.SellAmount.IsNegative() {
		return nil, swapper.NewError(swapper.KindValidationFailed, "sell amount must not be negative")
	}

	usdRate, err := s.GetUsdRate(ctx, input.SellAsset)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "quote %s -> %s", input.SellAsset, input.BuyAsset)
	}
	bounds := s.minMax(usdRate)

	sellAmount := input.SellAmount.Truncate(0)
	if sellAmount.IsZero() {
		sellAmount = types.ToBaseUnit(bounds.Minimum, input.SellAsset.Precision)
	}

	resp, err := s.requestQuote(ctx, quoteRequest{
		SellToken:           s.tokenAddress(input.SellAsset),
		BuyToken:            s.tokenAddress(input.BuyAsset),
		Receiver:            s.cfg.DefaultReceiver,
		ValidTo:             s.validTo(),
		AppData:             s.cfg.AppData,
		From:                s.cfg.DefaultReceiver,
		Kind:                kindSell,
		SellAmountBeforeFee: sellAmount.String(),
	})
	if err != nil {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "quote %s -> %s", input.SellAsset, input.BuyAsset)
	}

	quote := s.toTradeQuote(input, sellAmount, bounds, usdRate, resp.Quote)
	if input.Wallet != nil && input.SellAsset.IsERC20() {
		fee, err := s.approvalFee(ctx, quote, input.Wallet)
		if err != nil {
			return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "approval fee")
		}
		quote.FeeData.ChainSpecific.ApprovalFee = fee
	}
	return quote, nil
}

// approvalFee prices an approve of the vault relayer at the average gas price
func (s *Swapper) approvalFee(ctx context.Context, quote *types.TradeQuote, wallet chain.Wallet) (decimal.Decimal, error) {
	fees, err := s.adapter.GetFeeData(ctx, chain.FeeDataInput{ContractAddress: quote.SellAsset.ContractAddress()})
	if err != nil {
		return decimal.Zero, err
	}
	gasPrice := decimal.Zero
	if fees.Average.GasPrice != nil {
		gasPrice = decimal.NewFromBigInt(fees.Average.GasPrice, 0)
	}
	return approval.NewChecker(s.adapter, s.logger).ApprovalFee(ctx, s.withRelayer(quote), wallet, gasPrice)
}

func (s *Swapper) toTradeQuote(input swapper.TradeQuoteInput, sellAmount decimal.Decimal, bounds *swapper.MinMax, usdRate decimal.Decimal, q orderQuote) *types.TradeQuote {
	feeUSD := types.FromBaseUnit(q.FeeAmount, input.SellAsset.Precision).Mul(usdRate)
	return &types.TradeQuote{
		Rate:                   rate(q, input.SellAsset, input.BuyAsset),
		Minimum:                bounds.Minimum,
		Maximum:                bounds.Maximum,
		SellAmount:             sellAmount,
		BuyAmount:              q.BuyAmount,
		Sources:                []types.SwapSource{{Name: string(swapper.TypeCowSwap), Proportion: decimal.NewFromInt(1)}},
		AllowanceContract:      s.cfg.VaultRelayer,
		SellAsset:              input.SellAsset,
		BuyAsset:               input.BuyAsset,
		SellAssetAccountNumber: input.SellAssetAccountNumber,
		FeeData: types.FeeData{
			Fee:      q.FeeAmount,
			TradeFee: feeUSD,
		},
	}
}
