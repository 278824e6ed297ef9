package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"multiswap/pkg/types"
)

// ErrAdapterNotFound is returned when no adapter is registered for a chain
var ErrAdapterNotFound = errors.New("chain adapter not found")

// Wallet is an opaque signing handle. Adapters sign with the wallet kinds they support.
type Wallet interface {
	ID() string
}

// AddressParams selects the account to derive
type AddressParams struct {
	AccountNumber int
}

// Account is the on-chain state of an address
type Account struct {
	Address       string                     `json:"address"`
	Balance       decimal.Decimal            `json:"balance"`
	Nonce         uint64                     `json:"nonce"`
	AccountNumber string                     `json:"accountNumber,omitempty"`
	Sequence      string                     `json:"sequence,omitempty"`
	Tokens        map[string]decimal.Decimal `json:"tokens,omitempty"`
}

// FeeEstimate is one fee tier. Amounts are base units of the fee asset.
type FeeEstimate struct {
	TxFee       decimal.Decimal
	GasLimit    uint64
	GasPrice    *big.Int
	SatsPerByte decimal.Decimal
}

// FeeDataEstimate holds the slow/average/fast fee tiers
type FeeDataEstimate struct {
	Slow    FeeEstimate
	Average FeeEstimate
	Fast    FeeEstimate
}

// FeeDataInput describes the transaction to estimate
type FeeDataInput struct {
	From            string
	To              string
	Value           decimal.Decimal
	Data            []byte
	ContractAddress string
	OpReturnData    string
}

// BuildTxInput describes a transaction to build
type BuildTxInput struct {
	Wallet        Wallet
	AccountNumber int
	To            string
	Value         decimal.Decimal

	// EVM
	Data            []byte
	GasLimit        uint64
	GasPrice        *big.Int
	ContractAddress string

	// UTXO
	SatsPerByte  decimal.Decimal
	OpReturnData string

	// Cosmos
	Msgs    []types.CosmosMsg
	Memo    string
	Gas     string
	Fee     []types.Coin
	Account *Account
}

// TxStatus is the confirmation state of a transaction
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// TxMessage is delivered to SubscribeTxs callbacks
type TxMessage struct {
	TxID   string
	Status TxStatus
	Height int64
}

// TxFilter selects the transactions a subscription reports
type TxFilter struct {
	Address string
	TxID    string
}

// Adapter is the per-chain collaborator used to derive addresses, estimate fees,
// build, sign and broadcast transactions.
type Adapter interface {
	ChainID() string
	FeeAssetID() string
	GetAddress(ctx context.Context, wallet Wallet, params AddressParams) (string, error)
	GetAccount(ctx context.Context, address string) (*Account, error)
	GetFeeData(ctx context.Context, input FeeDataInput) (*FeeDataEstimate, error)
	BuildTransaction(ctx context.Context, input BuildTxInput) (*types.UnsignedTx, error)
	SignTransaction(ctx context.Context, tx *types.UnsignedTx, wallet Wallet) (string, error)
	BroadcastTransaction(ctx context.Context, signedTx string) (string, error)
	SubscribeTxs(ctx context.Context, filter TxFilter, onMessage func(TxMessage), onError func(error)) error
}

// TxStatusReader reports the confirmation state of a transaction
type TxStatusReader interface {
	TxStatus(ctx context.Context, txID string) (TxStatus, error)
}

// BalanceReader reads the balance of a denom held by an address
type BalanceReader interface {
	Balance(ctx context.Context, address, denom string) (decimal.Decimal, error)
}

// EVMAdapter adds contract calls and typed-data signing
type EVMAdapter interface {
	Adapter
	ethereum.ContractCaller
	SignTypedData(ctx context.Context, data apitypes.TypedData, wallet Wallet) (string, error)
}

// Adapters maps CAIP-2 chain ids to adapters
type Adapters map[string]Adapter

// Get returns the adapter for chainID
func (a Adapters) Get(chainID string) (Adapter, error) {
	adapter, ok := a[chainID]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, chainID)
	}
	return adapter, nil
}

// EVM returns the adapter for chainID as an EVMAdapter
func (a Adapters) EVM(chainID string) (EVMAdapter, error) {
	adapter, err := a.Get(chainID)
	if err != nil {
		return nil, err
	}
	evm, ok := adapter.(EVMAdapter)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an EVM adapter", ErrAdapterNotFound, chainID)
	}
	return evm, nil
}
