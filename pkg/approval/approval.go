// Package approval inspects and grants ERC-20 allowances.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"multiswap/pkg/chain"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// GasLimit is the gas budgeted for an approve call when quoting
const GasLimit = 100000

const erc20ABI = `[
{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

var parsedABI = mustParseABI(erc20ABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
	}
	return parsed
}

// MaxAllowance is 2^256-1, the infinite approval amount
func MaxAllowance() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

// PackApprove encodes approve(spender, amount)
func PackApprove(spender string, amount *uint256.Int) ([]byte, error) {
	if !common.IsHexAddress(spender) {
		return nil, fmt.Errorf("invalid spender address: %s", spender)
	}
	return parsedABI.Pack("approve", common.HexToAddress(spender), amount.ToBig())
}

// ReadAllowance calls allowance(owner, spender) on token
func ReadAllowance(ctx context.Context, caller ethereum.ContractCaller, token, owner, spender string) (*uint256.Int, error) {
	if !common.IsHexAddress(token) || !common.IsHexAddress(owner) || !common.IsHexAddress(spender) {
		return nil, fmt.Errorf("invalid address in allowance(%s, %s) on %s", owner, spender, token)
	}

	data, err := parsedABI.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance data: %w", err)
	}

	tokenAddress := common.HexToAddress(token)
	result, err := caller.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}

	out, err := parsedABI.Unpack("allowance", result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode allowance: %w", err)
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", out[0])
	}
	allowance, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, fmt.Errorf("allowance %s overflows uint256", raw)
	}
	return allowance, nil
}

// Checker manages allowances for one EVM chain
type Checker struct {
	adapter chain.EVMAdapter
	logger  *slog.Logger
}

// NewChecker creates a checker backed by adapter
func NewChecker(adapter chain.EVMAdapter, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{adapter: adapter, logger: logger}
}

// ApprovalNeeded reports whether quote.AllowanceContract must be approved to
// spend the sell amount. Fee assets never need approval and cost no network call.
func (c *Checker) ApprovalNeeded(ctx context.Context, quote *types.TradeQuote, wallet chain.Wallet) (bool, error) {
	if quote == nil {
		return false, swapper.NewError(swapper.KindCheckApprovalFailed, "quote is required")
	}
	if !quote.SellAsset.IsERC20() {
		return false, nil
	}

	owner, err := c.adapter.GetAddress(ctx, wallet, chain.AddressParams{AccountNumber: quote.SellAssetAccountNumber})
	if err != nil {
		return false, swapper.Wrap(swapper.KindCheckApprovalFailed, err, "derive owner address")
	}

	allowance, err := ReadAllowance(ctx, c.adapter, quote.SellAsset.ContractAddress(), owner, quote.AllowanceContract)
	if err != nil {
		return false, swapper.Wrap(swapper.KindCheckApprovalFailed, err, "read allowance")
	}

	sell, overflow := uint256.FromBig(quote.SellAmount.BigInt())
	if overflow {
		return false, swapper.NewError(swapper.KindCheckApprovalFailed, "sell amount %s overflows uint256", quote.SellAmount)
	}

	needed := allowance.Cmp(sell) <= 0
	c.logger.Debug("allowance checked",
		"token", quote.SellAsset.Symbol, "owner", owner, "spender", quote.AllowanceContract,
		"allowance", allowance.Dec(), "needed", needed)
	return needed, nil
}

// ApprovalFee is the fee of an approve transaction at gasPrice when one is
// needed, zero otherwise. A nil wallet means the owner is unknown: zero.
func (c *Checker) ApprovalFee(ctx context.Context, quote *types.TradeQuote, wallet chain.Wallet, gasPrice decimal.Decimal) (decimal.Decimal, error) {
	if wallet == nil {
		return decimal.Zero, nil
	}
	needed, err := c.ApprovalNeeded(ctx, quote, wallet)
	if err != nil {
		return decimal.Zero, err
	}
	if !needed {
		return decimal.Zero, nil
	}
	return gasPrice.Mul(decimal.NewFromInt(GasLimit)), nil
}

// ApproveInfinite approves quote.AllowanceContract for 2^256-1 of the sell
// token and returns the broadcast txid.
func (c *Checker) ApproveInfinite(ctx context.Context, quote *types.TradeQuote, wallet chain.Wallet) (string, error) {
	if quote == nil || !quote.SellAsset.IsERC20() {
		return "", swapper.NewError(swapper.KindApproveInfiniteFailed, "sell asset is not an ERC-20 token")
	}
	token := quote.SellAsset.ContractAddress()

	data, err := PackApprove(quote.AllowanceContract, MaxAllowance())
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "pack approve")
	}

	from, err := c.adapter.GetAddress(ctx, wallet, chain.AddressParams{AccountNumber: quote.SellAssetAccountNumber})
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "derive owner address")
	}

	fees, err := c.adapter.GetFeeData(ctx, chain.FeeDataInput{From: from, To: token, Value: decimal.Zero, Data: data})
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "estimate approve fee")
	}

	tx, err := c.adapter.BuildTransaction(ctx, chain.BuildTxInput{
		Wallet:        wallet,
		AccountNumber: quote.SellAssetAccountNumber,
		To:            token,
		Value:         decimal.Zero,
		Data:          data,
		GasLimit:      fees.Average.GasLimit,
		GasPrice:      fees.Average.GasPrice,
	})
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "build approve tx")
	}

	signed, err := c.adapter.SignTransaction(ctx, tx, wallet)
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "sign approve tx")
	}

	txid, err := c.adapter.BroadcastTransaction(ctx, signed)
	if err != nil {
		return "", swapper.Wrap(swapper.KindApproveInfiniteFailed, err, "broadcast approve tx")
	}

	c.logger.Info("infinite approval broadcast", "token", quote.SellAsset.Symbol, "spender", quote.AllowanceContract, "txid", txid)
	return txid, nil
}
