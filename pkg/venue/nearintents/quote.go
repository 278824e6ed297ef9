package nearintents

import (
	"context"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/shopspring/decimal"

	"multiswap/pkg/amm"
	"multiswap/pkg/chain"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// pair is a sell/buy pair resolved against the token list
type pair struct {
	sell *oneclick.TokenResponse
	buy  *oneclick.TokenResponse
}

func (s *Swapper) resolve(ctx context.Context, sell, buy types.Asset) (*pair, error) {
	if !s.sellable(sell.AssetID) || !s.mapped(buy.AssetID) || sell.AssetID == buy.AssetID {
		return nil, swapper.NewError(swapper.KindUnsupportedPair, "near intents does not trade %s -> %s", sell, buy)
	}
	tokens, err := s.tokens(ctx)
	if err != nil {
		return nil, err
	}
	p := &pair{}
	if p.sell, err = s.matchToken(tokens, sell); err != nil {
		return nil, err
	}
	if p.buy, err = s.matchToken(tokens, buy); err != nil {
		return nil, err
	}
	return p, nil
}

// slippageBps converts a tolerance fraction to basis points
func (s *Swapper) slippageBps(tol *decimal.Decimal) (int64, error) {
	fallback := decimal.NewFromInt32(s.cfg.SlippageBps).Shift(-4)
	slippage, err := swapper.SlippageTolerance(tol, fallback)
	if err != nil {
		return 0, err
	}
	return slippage.Shift(4).IntPart(), nil
}

// addresses resolves the recipient on the buy chain and the refund address
// on the sell chain. Without a wallet the refund goes to the recipient.
func (s *Swapper) addresses(ctx context.Context, wallet chain.Wallet, receive string, accountNumber int, sell, buy types.Asset) (refund, recipient string, err error) {
	recipient = receive
	params := chain.AddressParams{AccountNumber: accountNumber}
	if wallet != nil {
		if recipient == "" {
			adapter, err := s.adapters.Get(buy.ChainID)
			if err != nil {
				return "", "", err
			}
			if recipient, err = adapter.GetAddress(ctx, wallet, params); err != nil {
				return "", "", err
			}
		}
		adapter, err := s.adapters.Get(sell.ChainID)
		if err != nil {
			return "", "", err
		}
		if refund, err = adapter.GetAddress(ctx, wallet, params); err != nil {
			return "", "", err
		}
	}
	if recipient == "" {
		return "", "", swapper.NewError(swapper.KindValidationFailed, "a receive address or wallet is required")
	}
	if refund == "" {
		refund = recipient
	}
	return refund, recipient, nil
}

func (s *Swapper) quoteRequest(p *pair, amount decimal.Decimal, bps int64, refund, recipient string, dry bool) *oneclick.QuoteRequest {
	return oneclick.NewQuoteRequest(
		dry,
		swapTypeExactInput,
		float32(bps),
		p.sell.GetAssetId(),
		depositTypeOriginChain,
		p.buy.GetAssetId(),
		amount.String(),
		refund,
		refundTypeOriginChain,
		recipient,
		recipientTypeDestination,
		time.Now().Add(s.cfg.Deadline),
	)
}

// networkFee estimates the deposit transfer on the sell chain. Chains
// without an adapter quote no fee.
func (s *Swapper) networkFee(ctx context.Context, sell types.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	adapter, err := s.adapters.Get(sell.ChainID)
	if err != nil {
		return decimal.Zero, nil
	}
	fees, err := adapter.GetFeeData(ctx, chain.FeeDataInput{Value: amount, ContractAddress: sell.ContractAddress()})
	if err != nil {
		return decimal.Zero, err
	}
	return fees.Average.TxFee, nil
}

// rate is the display-unit ratio of a quoted swap
func rate(sellAmount, buyAmount decimal.Decimal, sell, buy types.Asset) decimal.Decimal {
	if !sellAmount.IsPositive() {
		return decimal.Zero
	}
	return types.FromBaseUnit(buyAmount, buy.Precision).
		DivRound(types.FromBaseUnit(sellAmount, sell.Precision), amm.DivisionPrecision)
}

// GetTradeQuote asks 1Click for a dry quote. A zero sell amount quotes the
// configured minimum.
func (s *Swapper) GetTradeQuote(ctx context.Context, input swapper.TradeQuoteInput) (*types.TradeQuote, error) {
	bps, err := s.slippageBps(input.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	if input.SellAmount.IsNegative() {
		return nil, swapper.NewError(swapper.KindValidationFailed, "sell amount must not be negative")
	}
	sellAmount := input.SellAmount.Truncate(0)
	if sellAmount.IsZero() {
		sellAmount = types.ToBaseUnit(s.minTrade, input.SellAsset.Precision)
	}
	if err := swapper.ValidateSellAmount(sellAmount); err != nil {
		return nil, err
	}

	p, err := s.resolve(ctx, input.SellAsset, input.BuyAsset)
	if err != nil {
		if swapper.HasKind(err, swapper.KindUnsupportedPair) {
			return nil, err
		}
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "quote %s -> %s", input.SellAsset, input.BuyAsset)
	}
	refund, recipient, err := s.addresses(ctx, input.Wallet, input.ReceiveAddress, input.SellAssetAccountNumber, input.SellAsset, input.BuyAsset)
	if err != nil {
		if swapper.HasKind(err, swapper.KindValidationFailed) {
			return nil, err
		}
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "resolve addresses")
	}

	resp, err := s.api.Quote(ctx, s.quoteRequest(p, sellAmount, bps, refund, recipient, true))
	if err != nil {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed,
			swapper.Wrap(swapper.KindResponseError, err, "near intents quote"), "quote %s -> %s", input.SellAsset, input.BuyAsset)
	}
	q := resp.GetQuote()
	buyAmount, err := decimal.NewFromString(q.GetAmountOut())
	if err != nil {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed,
			swapper.Wrap(swapper.KindResponseError, err, "invalid amountOut %q", q.GetAmountOut()), "quote")
	}
	fee, err := s.networkFee(ctx, input.SellAsset, sellAmount)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindTradeQuoteFailed, err, "fee data")
	}

	return &types.TradeQuote{
		Rate:       rate(sellAmount, buyAmount, input.SellAsset, input.BuyAsset),
		Minimum:    s.minTrade,
		Maximum:    s.maxTrade,
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
		FeeData: types.FeeData{
			Fee:      fee,
			TradeFee: decimal.Zero,
		},
		Sources:                []types.SwapSource{{Name: string(swapper.TypeNearIntents), Proportion: decimal.NewFromInt(1)}},
		SellAsset:              input.SellAsset,
		BuyAsset:               input.BuyAsset,
		SellAssetAccountNumber: input.SellAssetAccountNumber,
	}, nil
}

// ApprovalNeeded is always false: deposits are plain transfers
func (s *Swapper) ApprovalNeeded(context.Context, swapper.ApprovalInput) (bool, error) {
	return false, nil
}

// ApproveInfinite is not used by deposit-address trades
func (s *Swapper) ApproveInfinite(context.Context, swapper.ApprovalInput) (string, error) {
	return "", swapper.NewError(swapper.KindApproveInfiniteFailed, "near intents deposits need no allowance")
}
