package thorchain

import (
	"context"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"multiswap/pkg/amm"
	"multiswap/pkg/approval"
	"multiswap/pkg/chain"
	"multiswap/pkg/memo"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// deposit is the inbound side of a trade
type deposit struct {
	quote  *types.TradeQuote
	wallet chain.Wallet
	vault  inboundAddress
	memo   string
}

// BuildTrade re-reads pools and vaults, computes the limit and memo and
// builds the deposit into the sell chain's vault.
func (s *Swapper) BuildTrade(ctx context.Context, input swapper.BuildTradeInput) (*types.Trade, error) {
	if err := swapper.CheckBounds(input.Quote); err != nil {
		return nil, err
	}
	quote := input.Quote
	slippage, err := swapper.SlippageTolerance(input.SlippageTolerance, s.defaultSlippage)
	if err != nil {
		return nil, err
	}
	fail := func(err error, what string) (*types.Trade, error) {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "%s", what)
	}

	m, err := s.loadMarket(ctx, quote.SellAsset, quote.BuyAsset)
	if err != nil {
		return fail(err, "load pools")
	}
	sellChain := poolChain(m.sellPoolID)
	vault, err := lookupInbound(m.inbound, sellChain)
	if err != nil {
		return fail(err, "inbound address")
	}
	if vault.Halted || vault.ChainTradingPaused {
		return nil, swapper.NewError(swapper.KindBuildTradeFailed, "trading is halted on %s", sellChain)
	}

	destination := input.ReceiveAddress
	if destination == "" {
		adapter, err := s.adapters.Get(quote.BuyAsset.ChainID)
		if err != nil {
			return nil, swapper.NewError(swapper.KindValidationFailed, "receive address is required for %s", quote.BuyAsset)
		}
		if destination, err = adapter.GetAddress(ctx, input.Wallet, chain.AddressParams{}); err != nil {
			return fail(err, "derive receive address")
		}
	}

	r := m.swap(toHub(quote.SellAmount, quote.SellAsset.Precision))
	outbound, err := m.outboundFee()
	if err != nil {
		return fail(err, "outbound fee")
	}
	limit := amm.LimitAmount(r.output, slippage, outbound, 0)

	encoded, err := memo.Encode(memo.SwapMemo{
		Action:             memo.ActionSwap,
		PoolID:             m.buyPoolID,
		DestinationAddress: destination,
		Limit:              limit.String(),
		Affiliate:          s.cfg.Affiliate,
		AffiliateBps:       s.cfg.AffiliateBps,
	})
	if err != nil {
		return fail(err, "memo")
	}

	d := deposit{quote: quote, wallet: input.Wallet, vault: vault, memo: encoded}
	var (
		tx     *types.UnsignedTx
		sender string
	)
	switch sellChain {
	case ChainETH:
		tx, sender, err = s.routerDeposit(ctx, d)
	case ChainBTC:
		tx, sender, err = s.utxoDeposit(ctx, d)
	default:
		err = swapper.NewError(swapper.KindUnsupportedChain, "thorchain cannot deposit from %s", sellChain)
	}
	if err != nil {
		return fail(err, "deposit")
	}

	trade := &types.Trade{
		TradeQuote:        *quote,
		ReceiveAddress:    destination,
		SellAddress:       sender,
		Tx:                tx,
		DepositAddress:    vault.Address,
		Memo:              encoded,
		SlippageTolerance: slippage,
	}
	trade.Rate = r.rate
	trade.BuyAmount = fromHub(r.output, quote.BuyAsset.Precision)
	trade.FeeData.TradeFee = fromHub(outbound, quote.BuyAsset.Precision)
	trade.AllowanceContract = ""
	if sellChain == ChainETH && quote.SellAsset.IsERC20() {
		trade.AllowanceContract = vault.Router
	}

	s.logger.Info("deposit built", "vault", vault.Address, "memo", encoded, "limit", limit)
	return trade, nil
}

// routerDeposit calls depositWithExpiry on the vault's router. ERC-20 deposits
// carry no value; the router pulls the tokens under the prior approval.
func (s *Swapper) routerDeposit(ctx context.Context, d deposit) (*types.UnsignedTx, string, error) {
	if !common.IsHexAddress(d.vault.Router) || !common.IsHexAddress(d.vault.Address) {
		return nil, "", swapper.NewError(swapper.KindResponseError, "invalid ETH vault %q router %q", d.vault.Address, d.vault.Router)
	}
	adapter, err := s.adapters.EVM(d.quote.SellAsset.ChainID)
	if err != nil {
		return nil, "", err
	}
	from, err := adapter.GetAddress(ctx, d.wallet, chain.AddressParams{AccountNumber: d.quote.SellAssetAccountNumber})
	if err != nil {
		return nil, "", err
	}

	token := common.Address{}
	value := d.quote.SellAmount
	if d.quote.SellAsset.IsERC20() {
		token = common.HexToAddress(d.quote.SellAsset.ContractAddress())
		value = decimal.Zero
	}
	expiry := big.NewInt(time.Now().Add(s.cfg.DepositExpiry).Unix())

	data, err := s.router.Pack("depositWithExpiry",
		common.HexToAddress(d.vault.Address), token, d.quote.SellAmount.BigInt(), d.memo, expiry)
	if err != nil {
		return nil, "", err
	}

	fees, err := adapter.GetFeeData(ctx, chain.FeeDataInput{From: from, To: d.vault.Router, Value: value, Data: data})
	if err != nil {
		return nil, "", err
	}
	tx, err := adapter.BuildTransaction(ctx, chain.BuildTxInput{
		Wallet:        d.wallet,
		AccountNumber: d.quote.SellAssetAccountNumber,
		To:            d.vault.Router,
		Value:         value,
		Data:          data,
		GasLimit:      fees.Average.GasLimit,
		GasPrice:      fees.Average.GasPrice,
	})
	return tx, from, err
}

// utxoDeposit sends to the vault with the memo as OP_RETURN data
func (s *Swapper) utxoDeposit(ctx context.Context, d deposit) (*types.UnsignedTx, string, error) {
	if _, err := btcutil.DecodeAddress(d.vault.Address, &chaincfg.MainNetParams); err != nil {
		return nil, "", swapper.Wrap(swapper.KindResponseError, err, "invalid BTC vault %q", d.vault.Address)
	}
	adapter, err := s.adapters.Get(d.quote.SellAsset.ChainID)
	if err != nil {
		return nil, "", err
	}
	from, err := adapter.GetAddress(ctx, d.wallet, chain.AddressParams{AccountNumber: d.quote.SellAssetAccountNumber})
	if err != nil {
		return nil, "", err
	}

	fees, err := adapter.GetFeeData(ctx, chain.FeeDataInput{
		From: from, To: d.vault.Address, Value: d.quote.SellAmount, OpReturnData: d.memo,
	})
	if err != nil {
		return nil, "", err
	}
	satsPerByte := fees.Average.SatsPerByte
	if !satsPerByte.IsPositive() {
		satsPerByte = d.vault.GasRate
	}
	tx, err := adapter.BuildTransaction(ctx, chain.BuildTxInput{
		Wallet:        d.wallet,
		AccountNumber: d.quote.SellAssetAccountNumber,
		To:            d.vault.Address,
		Value:         d.quote.SellAmount,
		OpReturnData:  d.memo,
		SatsPerByte:   satsPerByte,
	})
	return tx, from, err
}

// ExecuteTrade signs and broadcasts the deposit. The trade id is the inbound txid.
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
	s.logger.Info("deposit broadcast", "txid", txid, "vault", input.Trade.DepositAddress, "memo", input.Trade.Memo)
	return &types.TradeResult{TradeID: txid}, nil
}

// routerQuote fills the allowance contract from the current ETH router
func (s *Swapper) routerQuote(ctx context.Context, quote *types.TradeQuote) (*types.TradeQuote, error) {
	if quote.AllowanceContract != "" {
		return quote, nil
	}
	inbound, err := s.fetchInbound(ctx)
	if err != nil {
		return nil, err
	}
	vault, err := lookupInbound(inbound, ChainETH)
	if err != nil {
		return nil, err
	}
	q := *quote
	q.AllowanceContract = vault.Router
	return &q, nil
}

// ApprovalNeeded checks the router's allowance for ERC-20 sells
func (s *Swapper) ApprovalNeeded(ctx context.Context, input swapper.ApprovalInput) (bool, error) {
	if input.Quote == nil {
		return false, swapper.NewError(swapper.KindCheckApprovalFailed, "quote is required")
	}
	if !input.Quote.SellAsset.IsERC20() {
		return false, nil
	}
	adapter, err := s.adapters.EVM(input.Quote.SellAsset.ChainID)
	if err != nil {
		return false, swapper.Wrap(swapper.KindCheckApprovalFailed, err, "no adapter")
	}
	quote, err := s.routerQuote(ctx, input.Quote)
	if err != nil {
		return false, swapper.Wrap(swapper.KindCheckApprovalFailed, err, "router address")
	}
	return approval.NewChecker(adapter, s.logger).ApprovalNeeded(ctx, quote, input.Wallet)
}

// ApproveInfinite approves the router for the maximum amount
func (s *Swapper) ApproveInfinite(ctx context.Context, input swapper.ApprovalInput) (string, error) {
	if input.Quote == nil {
		return "", swapper.NewError(swapper.KindApproveInfiniteFailed, "quote is required")
	}
	adapter, err := s.adapters.EVM(input.Quote.SellAsset.ChainID)
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "no adapter")
	}
	quote, err := s.routerQuote(ctx, input.Quote)
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "router address")
	}
	return approval.NewChecker(adapter, s.logger).ApproveInfinite(ctx, quote, input.Wallet)
}
