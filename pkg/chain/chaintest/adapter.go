// Package chaintest provides an in-memory chain adapter for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"multiswap/pkg/chain"
	"multiswap/pkg/types"
)

// Wallet is a named test wallet
type Wallet struct {
	Name string
}

// ID returns the wallet name
func (w Wallet) ID() string { return w.Name }

// Adapter records every call and answers from its fields. Safe for concurrent use.
type Adapter struct {
	Chain    string
	FeeAsset string
	Address  string
	Account  chain.Account
	Fees     chain.FeeDataEstimate

	// CallResult answers CallContract
	CallResult []byte
	// TxIDs are returned by successive broadcasts; "tx-N" once exhausted
	TxIDs []string
	// Statuses are returned by successive TxStatus calls per txid; the last repeats
	Statuses map[string][]chain.TxStatus
	// Balances are returned by successive Balance calls per denom; the last repeats
	Balances map[string][]decimal.Decimal
	// Errors fails the named method
	Errors map[string]error

	TypedSignature string

	mu         sync.Mutex
	calls      []string
	built      []chain.BuildTxInput
	broadcasts []string
	typedData  []apitypes.TypedData
	statusIdx  map[string]int
	balanceIdx map[string]int
}

// NewEVM returns an adapter for an EVM chain with sensible fee data
func NewEVM(chainID, feeAssetID, address string) *Adapter {
	return &Adapter{
		Chain:    chainID,
		FeeAsset: feeAssetID,
		Address:  address,
		Fees: chain.FeeDataEstimate{
			Slow:    chain.FeeEstimate{TxFee: decimal.NewFromInt(4200000000000000), GasLimit: 210000, GasPrice: big.NewInt(20000000000)},
			Average: chain.FeeEstimate{TxFee: decimal.NewFromInt(5250000000000000), GasLimit: 210000, GasPrice: big.NewInt(25000000000)},
			Fast:    chain.FeeEstimate{TxFee: decimal.NewFromInt(6300000000000000), GasLimit: 210000, GasPrice: big.NewInt(30000000000)},
		},
		TypedSignature: "0xsig",
	}
}

// New returns an adapter for a non-EVM chain
func New(chainID, feeAssetID, address string) *Adapter {
	return &Adapter{
		Chain:    chainID,
		FeeAsset: feeAssetID,
		Address:  address,
		Fees: chain.FeeDataEstimate{
			Slow:    chain.FeeEstimate{TxFee: decimal.NewFromInt(1000), SatsPerByte: decimal.NewFromInt(5)},
			Average: chain.FeeEstimate{TxFee: decimal.NewFromInt(2000), SatsPerByte: decimal.NewFromInt(10)},
			Fast:    chain.FeeEstimate{TxFee: decimal.NewFromInt(3000), SatsPerByte: decimal.NewFromInt(20)},
		},
	}
}

func (a *Adapter) record(method string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, method)
	return a.Errors[method]
}

// Calls returns the recorded method names in call order
func (a *Adapter) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.calls))
	copy(out, a.calls)
	return out
}

// Called reports how many times method was invoked
func (a *Adapter) Called(method string) int {
	n := 0
	for _, c := range a.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

// Built returns the inputs of every BuildTransaction call
func (a *Adapter) Built() []chain.BuildTxInput {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]chain.BuildTxInput, len(a.built))
	copy(out, a.built)
	return out
}

// Broadcasts returns every signed payload broadcast
func (a *Adapter) Broadcasts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.broadcasts))
	copy(out, a.broadcasts)
	return out
}

// TypedData returns every typed-data payload signed
func (a *Adapter) TypedData() []apitypes.TypedData {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]apitypes.TypedData, len(a.typedData))
	copy(out, a.typedData)
	return out
}

func (a *Adapter) ChainID() string    { return a.Chain }
func (a *Adapter) FeeAssetID() string { return a.FeeAsset }

func (a *Adapter) GetAddress(_ context.Context, _ chain.Wallet, _ chain.AddressParams) (string, error) {
	if err := a.record("GetAddress"); err != nil {
		return "", err
	}
	return a.Address, nil
}

func (a *Adapter) GetAccount(_ context.Context, address string) (*chain.Account, error) {
	if err := a.record("GetAccount"); err != nil {
		return nil, err
	}
	acct := a.Account
	acct.Address = address
	return &acct, nil
}

func (a *Adapter) GetFeeData(_ context.Context, _ chain.FeeDataInput) (*chain.FeeDataEstimate, error) {
	if err := a.record("GetFeeData"); err != nil {
		return nil, err
	}
	fees := a.Fees
	return &fees, nil
}

func (a *Adapter) BuildTransaction(_ context.Context, input chain.BuildTxInput) (*types.UnsignedTx, error) {
	if err := a.record("BuildTransaction"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.built = append(a.built, input)
	a.mu.Unlock()

	tx := &types.UnsignedTx{ChainID: a.Chain}
	switch {
	case strings.HasPrefix(a.Chain, types.NamespaceEIP155+":"):
		to := common.HexToAddress(input.To)
		value := input.Value.BigInt()
		gasPrice := input.GasPrice
		if gasPrice == nil {
			gasPrice = big.NewInt(0)
		}
		tx.EVM = ethtypes.NewTx(&ethtypes.LegacyTx{
			To: &to, Value: value, Data: input.Data, Gas: input.GasLimit, GasPrice: gasPrice,
		})
	case strings.HasPrefix(a.Chain, types.NamespaceBIP122+":"):
		tx.UTXO = &types.UTXOTx{To: input.To, Value: input.Value, OpReturnData: input.OpReturnData, SatsPerByte: input.SatsPerByte}
	default:
		tx.Cosmos = &types.CosmosTx{ChainID: a.Chain, Msgs: input.Msgs, Fee: input.Fee, Gas: input.Gas, Memo: input.Memo}
	}
	return tx, nil
}

func (a *Adapter) SignTransaction(_ context.Context, tx *types.UnsignedTx, wallet chain.Wallet) (string, error) {
	if err := a.record("SignTransaction"); err != nil {
		return "", err
	}
	return fmt.Sprintf("signed:%s:%s", tx.ChainID, wallet.ID()), nil
}

func (a *Adapter) BroadcastTransaction(_ context.Context, signedTx string) (string, error) {
	if err := a.record("BroadcastTransaction"); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.broadcasts = append(a.broadcasts, signedTx)
	n := len(a.broadcasts)
	if n <= len(a.TxIDs) {
		return a.TxIDs[n-1], nil
	}
	return fmt.Sprintf("tx-%d", n), nil
}

func (a *Adapter) SubscribeTxs(ctx context.Context, filter chain.TxFilter, onMessage func(chain.TxMessage), _ func(error)) error {
	if err := a.record("SubscribeTxs"); err != nil {
		return err
	}
	status, err := a.TxStatus(ctx, filter.TxID)
	if err != nil {
		return err
	}
	onMessage(chain.TxMessage{TxID: filter.TxID, Status: status})
	return nil
}

// TxStatus answers from Statuses; unknown txids are confirmed.
func (a *Adapter) TxStatus(_ context.Context, txID string) (chain.TxStatus, error) {
	if err := a.record("TxStatus"); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	seq := a.Statuses[txID]
	if len(seq) == 0 {
		return chain.TxConfirmed, nil
	}
	if a.statusIdx == nil {
		a.statusIdx = make(map[string]int)
	}
	i := a.statusIdx[txID]
	if i >= len(seq) {
		i = len(seq) - 1
	}
	a.statusIdx[txID] = i + 1
	return seq[i], nil
}

// Balance answers from Balances; unknown denoms are zero.
func (a *Adapter) Balance(_ context.Context, _ string, denom string) (decimal.Decimal, error) {
	if err := a.record("Balance"); err != nil {
		return decimal.Zero, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	seq := a.Balances[denom]
	if len(seq) == 0 {
		return decimal.Zero, nil
	}
	if a.balanceIdx == nil {
		a.balanceIdx = make(map[string]int)
	}
	i := a.balanceIdx[denom]
	if i >= len(seq) {
		i = len(seq) - 1
	}
	a.balanceIdx[denom] = i + 1
	return seq[i], nil
}

func (a *Adapter) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := a.record("CallContract"); err != nil {
		return nil, err
	}
	return a.CallResult, nil
}

func (a *Adapter) SignTypedData(_ context.Context, data apitypes.TypedData, _ chain.Wallet) (string, error) {
	if err := a.record("SignTypedData"); err != nil {
		return "", err
	}
	a.mu.Lock()
	a.typedData = append(a.typedData, data)
	a.mu.Unlock()
	return a.TypedSignature, nil
}

var (
	_ chain.EVMAdapter     = (*Adapter)(nil)
	_ chain.TxStatusReader = (*Adapter)(nil)
	_ chain.BalanceReader  = (*Adapter)(nil)
)
