package cowswap

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"multiswap/pkg/chain"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

const signingSchemeEIP712 = "eip712"

var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": {
		{Name: "sellToken", Type: "address"},
		{Name: "buyToken", Type: "address"},
		{Name: "receiver", Type: "address"},
		{Name: "sellAmount", Type: "uint256"},
		{Name: "buyAmount", Type: "uint256"},
		{Name: "validTo", Type: "uint32"},
		{Name: "appData", Type: "bytes32"},
		{Name: "feeAmount", Type: "uint256"},
		{Name: "kind", Type: "string"},
		{Name: "partiallyFillable", Type: "bool"},
		{Name: "sellTokenBalance", Type: "string"},
		{Name: "buyTokenBalance", Type: "string"},
	},
}

// orderTypedData is the GPv2 order as EIP-712 typed data
func (s *Swapper) orderTypedData(order orderQuote, receiver string) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Gnosis Protocol",
			Version:           "v2",
			ChainId:           math.NewHexOrDecimal256(s.cfg.ChainID),
			VerifyingContract: s.cfg.SettlementContract,
		},
		Message: apitypes.TypedDataMessage{
			"sellToken":         order.SellToken,
			"buyToken":          order.BuyToken,
			"receiver":          receiver,
			"sellAmount":        order.SellAmount.String(),
			"buyAmount":         order.BuyAmount.String(),
			"validTo":           strconv.FormatInt(order.ValidTo, 10),
			"appData":           order.AppData,
			"feeAmount":         order.FeeAmount.String(),
			"kind":              kindSell,
			"partiallyFillable": false,
			"sellTokenBalance":  balanceERC20,
			"buyTokenBalance":   balanceERC20,
		},
	}
}

// BuildTrade re-quotes for the owner and prepares the order for signing.
// The signed buy amount is the quoted amount reduced by the slippage tolerance.
func (s *Swapper) BuildTrade(ctx context.Context, input swapper.BuildTradeInput) (*types.Trade, error) {
	if err := swapper.CheckBounds(input.Quote); err != nil {
		return nil, err
	}
	quote := input.Quote
	slippage, err := swapper.SlippageTolerance(input.SlippageTolerance, s.defaultSlippage)
	if err != nil {
		return nil, err
	}

	owner, err := s.adapter.GetAddress(ctx, input.Wallet, chain.AddressParams{AccountNumber: quote.SellAssetAccountNumber})
	if err != nil {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "derive owner address")
	}
	receiver := input.ReceiveAddress
	if receiver == "" {
		receiver = owner
	}

	resp, err := s.requestQuote(ctx, quoteRequest{
		SellToken:           s.tokenAddress(quote.SellAsset),
		BuyToken:            s.tokenAddress(quote.BuyAsset),
		Receiver:            receiver,
		ValidTo:             s.validTo(),
		AppData:             s.cfg.AppData,
		From:                owner,
		Kind:                kindSell,
		SellAmountBeforeFee: quote.SellAmount.String(),
	})
	if err != nil {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "re-quote")
	}

	order := resp.Quote
	if order.AppData == "" {
		order.AppData = s.cfg.AppData
	}
	expected := order.BuyAmount
	order.BuyAmount = expected.Mul(decimal.NewFromInt(1).Sub(slippage)).Truncate(0)

	typed := s.orderTypedData(order, receiver)
	body := map[string]any{
		"sellToken":         order.SellToken,
		"buyToken":          order.BuyToken,
		"receiver":          receiver,
		"sellAmount":        order.SellAmount.String(),
		"buyAmount":         order.BuyAmount.String(),
		"validTo":           order.ValidTo,
		"appData":           order.AppData,
		"feeAmount":         order.FeeAmount.String(),
		"kind":              kindSell,
		"partiallyFillable": false,
		"sellTokenBalance":  balanceERC20,
		"buyTokenBalance":   balanceERC20,
		"from":              owner,
	}

	trade := &types.Trade{
		TradeQuote:        *quote,
		ReceiveAddress:    receiver,
		SellAddress:       owner,
		Order:             &types.SignableOrder{TypedData: typed, Body: body},
		SlippageTolerance: slippage,
	}
	trade.Rate = rate(resp.Quote, quote.SellAsset, quote.BuyAsset)
	trade.BuyAmount = expected
	trade.FeeData.Fee = order.FeeAmount
	return trade, nil
}

// ExecuteTrade signs the order as typed data and submits it. The trade id
// is the order uid.
func (s *Swapper) ExecuteTrade(ctx context.Context, input swapper.ExecuteTradeInput) (*types.TradeResult, error) {
	if input.Trade == nil || input.Trade.Order == nil {
		return nil, swapper.NewError(swapper.KindExecuteTradeFailed, "trade has no order")
	}

	signature, err := s.adapter.SignTypedData(ctx, input.Trade.Order.TypedData, input.Wallet)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindSignAndBroadcastFailed, err, "sign order")
	}

	body := make(map[string]any, len(input.Trade.Order.Body)+2)
	for k, v := range input.Trade.Order.Body {
		body[k] = v
	}
	body["signingScheme"] = signingSchemeEIP712
	body["signature"] = signature

	var uid string
	if err := s.api.Post(ctx, "/v1/orders", body, &uid); err != nil {
		return nil, swapper.Wrap(swapper.KindExecuteTradeFailed, responseError(err), "submit order")
	}
	if uid == "" {
		return nil, swapper.NewError(swapper.KindExecuteTradeFailed, "cowswap returned an empty order uid")
	}
	s.logger.Info("order submitted", "uid", uid, "sell", input.Trade.SellAsset, "buy", input.Trade.BuyAsset)
	return &types.TradeResult{TradeID: uid}, nil
}
