package zrx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"multiswap/pkg/chain"
	"multiswap/pkg/httpjson"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// gasEstimationFailed is the 0x error code for a failed gas estimate
const gasEstimationFailed = 111

type quoteResponse struct {
	priceResponse
	To    string          `json:"to"`
	Data  string          `json:"data"`
	Value decimal.Decimal `json:"value"`
	Gas   decimal.Decimal `json:"gas"`
}

type apiError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func isGasEstimationFailure(err error) bool {
	se, ok := httpjson.AsStatus(err)
	if !ok || se.StatusCode != http.StatusBadRequest {
		return false
	}
	var body apiError
	if json.Unmarshal(se.Body, &body) != nil {
		return false
	}
	return body.Code == gasEstimationFailed
}

// fetchQuote requests /swap/v1/quote, retrying only failed gas estimates
func (s *Swapper) fetchQuote(ctx context.Context, client *httpjson.Client, params url.Values) (*quoteResponse, error) {
	var resp quoteResponse
	for attempt := 0; ; attempt++ {
		err := client.Get(ctx, "/swap/v1/quote", params, &resp)
		if err == nil {
			return &resp, nil
		}
		if attempt >= s.cfg.GasRetryAttempts || !isGasEstimationFailure(err) {
			return nil, responseError(err)
		}
		s.logger.Warn("0x gas estimation failed, retrying", "attempt", attempt+1, "max", s.cfg.GasRetryAttempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.GasRetryDelay):
		}
	}
}

// BuildTrade fetches an executable 0x quote for the wallet and builds the
// transaction it describes.
func (s *Swapper) BuildTrade(ctx context.Context, input swapper.BuildTradeInput) (*types.Trade, error) {
	if err := swapper.CheckBounds(input.Quote); err != nil {
		return nil, err
	}
	quote := input.Quote
	slippage, err := swapper.SlippageTolerance(input.SlippageTolerance, s.defaultSlippage)
	if err != nil {
		return nil, err
	}
	client, err := s.client(quote.SellAsset.ChainID)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.EVM(quote.SellAsset.ChainID)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "no adapter")
	}

	taker, err := adapter.GetAddress(ctx, input.Wallet, chain.AddressParams{AccountNumber: quote.SellAssetAccountNumber})
	if err != nil {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "derive taker address")
	}

	params := url.Values{
		"sellToken":          {tokenParam(quote.SellAsset)},
		"buyToken":           {tokenParam(quote.BuyAsset)},
		"sellAmount":         {quote.SellAmount.String()},
		"takerAddress":       {taker},
		"slippagePercentage": {slippage.String()},
		"skipValidation":     {"false"},
	}
	if s.cfg.AffiliateAddress != "" {
		params.Set("affiliateAddress", s.cfg.AffiliateAddress)
	}
	resp, err := s.fetchQuote(ctx, client, params)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "0x quote")
	}

	data, err := hexutil.Decode(resp.Data)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed,
			swapper.Wrap(swapper.KindResponseError, err, "invalid call data"), "0x quote")
	}

	fees, err := adapter.GetFeeData(ctx, chain.FeeDataInput{From: taker, To: resp.To, Value: resp.Value, Data: data})
	if err != nil {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "fee data")
	}
	gasPrice := fees.Average.GasPrice
	if gasPrice == nil {
		gasPrice = resp.GasPrice.BigInt()
	}
	gasLimit := fees.Average.GasLimit
	if g := uint64(resp.Gas.IntPart()); g > gasLimit {
		gasLimit = g
	}

	tx, err := adapter.BuildTransaction(ctx, chain.BuildTxInput{
		Wallet:        input.Wallet,
		AccountNumber: quote.SellAssetAccountNumber,
		To:            resp.To,
		Value:         resp.Value,
		Data:          data,
		GasLimit:      gasLimit,
		GasPrice:      gasPrice,
	})
	if err != nil {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "build tx")
	}

	trade := &types.Trade{
		TradeQuote:        *quote,
		ReceiveAddress:    taker,
		SellAddress:       taker,
		Tx:                tx,
		SlippageTolerance: slippage,
	}
	trade.BuyAmount = resp.BuyAmount
	if resp.Price.IsPositive() {
		trade.Rate = resp.Price
	}
	if quote.SellAsset.IsERC20() && resp.AllowanceTarget != "" {
		trade.AllowanceContract = resp.AllowanceTarget
	}
	trade.Sources = sources(resp.Sources)
	trade.FeeData.ChainSpecific.EstimatedGas = decimal.NewFromInt(int64(gasLimit))
	trade.FeeData.ChainSpecific.GasPrice = decimal.NewFromBigInt(gasPrice, 0)
	trade.FeeData.Fee = trade.FeeData.ChainSpecific.EstimatedGas.Mul(trade.FeeData.ChainSpecific.GasPrice)
	return trade, nil
}

// ExecuteTrade signs and broadcasts the built transaction
func (s *Swapper) ExecuteTrade(ctx context.Context, input swapper.ExecuteTradeInput) (*types.TradeResult, error) {
	if input.Trade == nil || input.Trade.Tx == nil {
		return nil, swapper.NewError(swapper.KindExecuteTradeFailed, "trade has no transaction")
	}
	adapter, err := s.adapters.Get(input.Trade.Tx.ChainID)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindExecuteTradeFailed, err, "no adapter")
	}
	signed, err := adapter.SignTransaction(ctx, input.Trade.Tx, input.Wallet)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindSignAndBroadcastFailed, err, "sign")
	}
	txid, err := adapter.BroadcastTransaction(ctx, signed)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindSignAndBroadcastFailed, err, "broadcast")
	}
	s.logger.Info("trade broadcast", "txid", txid, "sell", input.Trade.SellAsset, "buy", input.Trade.BuyAsset)
	return &types.TradeResult{TradeID: txid}, nil
}

// ApprovalNeeded checks the allowance of the 0x exchange proxy
func (s *Swapper) ApprovalNeeded(ctx context.Context, input swapper.ApprovalInput) (bool, error) {
	if input.Quote == nil {
		return false, swapper.NewError(swapper.KindCheckApprovalFailed, "quote is required")
	}
	checker, err := s.checker(input.Quote.SellAsset.ChainID)
	if err != nil {
		return false, swapper.Wrap(swapper.KindCheckApprovalFailed, err, "approval check")
	}
	return checker.ApprovalNeeded(ctx, input.Quote, input.Wallet)
}

// ApproveInfinite approves the 0x exchange proxy for the maximum amount
func (s *Swapper) ApproveInfinite(ctx context.Context, input swapper.ApprovalInput) (string, error) {
	if input.Quote == nil {
		return "", swapper.NewError(swapper.KindApproveInfiniteFailed, "quote is required")
	}
	checker, err := s.checker(input.Quote.SellAsset.ChainID)
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "approve")
	}
	return checker.ApproveInfinite(ctx, input.Quote, input.Wallet)
}
