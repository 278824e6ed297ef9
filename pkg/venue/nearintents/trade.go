package nearintents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"multiswap/pkg/chain"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// Gas limits used when the adapter cannot estimate the deposit
const (
	nativeTransferGas = 21000
	tokenTransferGas  = 100000
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

var transferABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ERC20 transfer ABI: %v", err))
	}
	return parsed
}()

// depositTx builds the transfer of amount of sell to the deposit address:
// a value transfer for the native asset, transfer() for ERC-20 tokens.
func depositTx(ctx context.Context, adapter chain.Adapter, wallet chain.Wallet, accountNumber int, from, deposit string, sell types.Asset, amount decimal.Decimal) (*types.UnsignedTx, error) {
	if !common.IsHexAddress(deposit) {
		return nil, fmt.Errorf("invalid deposit address: %s", deposit)
	}

	input := chain.BuildTxInput{
		Wallet:        wallet,
		AccountNumber: accountNumber,
		To:            deposit,
		Value:         amount,
	}
	gasLimit := uint64(nativeTransferGas)
	if contract := sell.ContractAddress(); contract != "" {
		if !common.IsHexAddress(contract) {
			return nil, fmt.Errorf("invalid token contract address: %s", contract)
		}
		data, err := transferABI.Pack("transfer", common.HexToAddress(deposit), amount.BigInt())
		if err != nil {
			return nil, fmt.Errorf("failed to pack transfer data: %w", err)
		}
		input.To, input.Value, input.Data, input.ContractAddress = contract, decimal.Zero, data, contract
		gasLimit = tokenTransferGas
	}

	fees, err := adapter.GetFeeData(ctx, chain.FeeDataInput{From: from, To: input.To, Value: input.Value, Data: input.Data})
	if err != nil {
		return nil, fmt.Errorf("failed to get fee data: %w", err)
	}
	if fees.Average.GasLimit > 0 {
		gasLimit = fees.Average.GasLimit
	}
	input.GasLimit, input.GasPrice = gasLimit, fees.Average.GasPrice
	return adapter.BuildTransaction(ctx, input)
}

// BuildTrade requests a live quote, which reserves a deposit address, and
// builds the deposit transfer.
func (s *Swapper) BuildTrade(ctx context.Context, input swapper.BuildTradeInput) (*types.Trade, error) {
	if err := swapper.CheckBounds(input.Quote); err != nil {
		return nil, err
	}
	quote := input.Quote
	bps, err := s.slippageBps(input.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	if input.Wallet == nil {
		return nil, swapper.NewError(swapper.KindValidationFailed, "wallet is required")
	}
	fail := func(err error, what string) (*types.Trade, error) {
		return nil, swapper.Wrap(swapper.KindBuildTradeFailed, err, "%s", what)
	}

	p, err := s.resolve(ctx, quote.SellAsset, quote.BuyAsset)
	if err != nil {
		return fail(err, "resolve tokens")
	}
	adapter, err := s.adapters.Get(quote.SellAsset.ChainID)
	if err != nil {
		return fail(err, "no adapter")
	}
	refund, recipient, err := s.addresses(ctx, input.Wallet, input.ReceiveAddress, quote.SellAssetAccountNumber, quote.SellAsset, quote.BuyAsset)
	if err != nil {
		return fail(err, "resolve addresses")
	}

	resp, err := s.api.Quote(ctx, s.quoteRequest(p, quote.SellAmount, bps, refund, recipient, false))
	if err != nil {
		return fail(swapper.Wrap(swapper.KindResponseError, err, "near intents quote"), "live quote")
	}
	q := resp.GetQuote()
	deposit := q.GetDepositAddress()
	if deposit == "" {
		return fail(swapper.NewError(swapper.KindResponseError, "quote has no deposit address"), "live quote")
	}
	buyAmount, err := decimal.NewFromString(q.GetAmountOut())
	if err != nil {
		return fail(swapper.Wrap(swapper.KindResponseError, err, "invalid amountOut %q", q.GetAmountOut()), "live quote")
	}

	tx, err := depositTx(ctx, adapter, input.Wallet, quote.SellAssetAccountNumber, refund, deposit, quote.SellAsset, quote.SellAmount)
	if err != nil {
		return fail(err, "build deposit")
	}

	trade := &types.Trade{
		TradeQuote:        *quote,
		ReceiveAddress:    recipient,
		SellAddress:       refund,
		Tx:                tx,
		DepositAddress:    deposit,
		SlippageTolerance: decimal.NewFromInt(bps).Shift(-4),
	}
	if q.HasDepositMemo() {
		trade.Memo = q.GetDepositMemo()
	}
	trade.BuyAmount = buyAmount
	trade.Rate = rate(quote.SellAmount, buyAmount, quote.SellAsset, quote.BuyAsset)
	return trade, nil
}

// ExecuteTrade signs and broadcasts the deposit, then reports its hash to
// 1Click. A failed report is logged: solvers also detect the deposit on chain.
func (s *Swapper) ExecuteTrade(ctx context.Context, input swapper.ExecuteTradeInput) (*types.TradeResult, error) {
	trade := input.Trade
	if trade == nil || trade.Tx == nil {
		return nil, swapper.NewError(swapper.KindExecuteTradeFailed, "trade has no transaction")
	}
	if trade.DepositAddress == "" {
		return nil, swapper.NewError(swapper.KindExecuteTradeFailed, "trade has no deposit address")
	}
	adapter, err := s.adapters.Get(trade.Tx.ChainID)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindExecuteTradeFailed, err, "no adapter")
	}
	signed, err := adapter.SignTransaction(ctx, trade.Tx, input.Wallet)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindSignAndBroadcastFailed, err, "sign")
	}
	txid, err := adapter.BroadcastTransaction(ctx, signed)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindSignAndBroadcastFailed, err, "broadcast")
	}
	s.logger.Info("deposit broadcast", "txid", txid, "deposit", trade.DepositAddress)

	if err := s.api.SubmitDeposit(ctx, trade.DepositAddress, txid); err != nil {
		s.logger.Warn("deposit submission failed", "txid", txid, "deposit", trade.DepositAddress, "error", err)
	}
	return &types.TradeResult{TradeID: txid}, nil
}

// Status is the execution state of a deposit-address swap
type Status struct {
	DepositAddress string    `json:"depositAddress"`
	State          string    `json:"status"`
	UpdatedAt      time.Time `json:"updatedAt"`
	AmountIn       string    `json:"amountIn,omitempty"`
	AmountOut      string    `json:"amountOut,omitempty"`
	DepositTxs     []string  `json:"depositTxs,omitempty"`
	WithdrawalTxs  []string  `json:"withdrawalTxs,omitempty"`
}

// Terminal reports whether the swap can no longer change state
func (st *Status) Terminal() bool {
	switch strings.ToUpper(st.State) {
	case "SUCCESS", "REFUNDED", "FAILED":
		return true
	}
	return false
}

// Status reads the execution status of the swap funded at depositAddress
func (s *Swapper) Status(ctx context.Context, depositAddress string) (*Status, error) {
	if depositAddress == "" {
		return nil, swapper.NewError(swapper.KindValidationFailed, "deposit address is required")
	}
	resp, err := s.api.Status(ctx, depositAddress)
	if err != nil {
		return nil, swapper.Wrap(swapper.KindResponseError, err, "near intents status")
	}

	details := resp.GetSwapDetails()
	st := &Status{
		DepositAddress: depositAddress,
		State:          resp.GetStatus(),
		UpdatedAt:      resp.GetUpdatedAt(),
	}
	if details.HasAmountInFormatted() {
		st.AmountIn = details.GetAmountInFormatted()
	}
	if details.HasAmountOutFormatted() {
		st.AmountOut = details.GetAmountOutFormatted()
	}
	for _, tx := range details.GetOriginChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			st.DepositTxs = append(st.DepositTxs, hash)
		}
	}
	for _, tx := range details.GetDestinationChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			st.WithdrawalTxs = append(st.WithdrawalTxs, hash)
		}
	}
	return st, nil
}
