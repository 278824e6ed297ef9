package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"multiswap/config"
	"multiswap/pkg/chain"
	"multiswap/pkg/types"
)

// ERC20 transfer function ABI
const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

const (
	nativeTransferGas = uint64(21000)
	tokenTransferGas  = uint64(100000)
)

// Client is the subset of ethclient.Client the adapter uses
type Client interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.TransactionSender
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// KeyWallet signs with an in-memory secp256k1 key
type KeyWallet struct {
	key *ecdsa.PrivateKey
}

// NewKeyWallet parses a hex private key, with or without 0x prefix
func NewKeyWallet(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeyWallet{key: key}, nil
}

// Address returns the wallet's account address
func (w *KeyWallet) Address() common.Address {
	return crypto.PubkeyToAddress(w.key.PublicKey)
}

// ID returns the checksummed address
func (w *KeyWallet) ID() string {
	return w.Address().Hex()
}

// Adapter implements chain.EVMAdapter over a JSON-RPC client
type Adapter struct {
	network  config.EVMNetwork
	chainID  *big.Int
	client   Client
	transfer abi.ABI
}

// Dial connects to the network's RPC endpoint
func Dial(network config.EVMNetwork) (*Adapter, error) {
	if network.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %d", network.ChainID)
	}
	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return New(client, network)
}

// New creates an adapter around an existing client
func New(client Client, network config.EVMNetwork) (*Adapter, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	return &Adapter{
		network:  network,
		chainID:  big.NewInt(network.ChainID),
		client:   client,
		transfer: parsed,
	}, nil
}

// ChainID returns the CAIP-2 chain id
func (a *Adapter) ChainID() string {
	return a.network.CAIP2()
}

// FeeAssetID returns the native asset id
func (a *Adapter) FeeAssetID() string {
	if a.network.FeeAssetID != "" {
		return a.network.FeeAssetID
	}
	return a.ChainID() + "/slip44:60"
}

func keyWallet(wallet chain.Wallet) (*KeyWallet, error) {
	w, ok := wallet.(*KeyWallet)
	if !ok || w == nil {
		return nil, fmt.Errorf("unsupported wallet type %T", wallet)
	}
	return w, nil
}

// GetAddress derives the account address. Key wallets hold a single account.
func (a *Adapter) GetAddress(_ context.Context, wallet chain.Wallet, _ chain.AddressParams) (string, error) {
	w, err := keyWallet(wallet)
	if err != nil {
		return "", err
	}
	return w.Address().Hex(), nil
}

// GetAccount returns the native balance and pending nonce of address
func (a *Adapter) GetAccount(ctx context.Context, address string) (*chain.Account, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address: %s", address)
	}
	account := common.HexToAddress(address)

	balance, err := a.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	nonce, err := a.client.PendingNonceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	return &chain.Account{
		Address: account.Hex(),
		Balance: decimal.NewFromBigInt(balance, 0),
		Nonce:   nonce,
	}, nil
}

// gasPrice returns the configured gas price or the node's suggestion
func (a *Adapter) gasPrice(ctx context.Context) (*big.Int, error) {
	if a.network.GasPrice != nil {
		return big.NewInt(*a.network.GasPrice), nil
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

// GetFeeData estimates gas for the call and prices it at three tiers
func (a *Adapter) GetFeeData(ctx context.Context, input chain.FeeDataInput) (*chain.FeeDataEstimate, error) {
	gasPrice, err := a.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	to, data, value, err := a.callTarget(input.To, input.Value, input.Data, input.ContractAddress)
	if err != nil {
		return nil, err
	}

	gasLimit := nativeTransferGas
	if len(data) > 0 {
		gasLimit = tokenTransferGas
	}
	if a.network.GasLimit != nil {
		gasLimit = *a.network.GasLimit
	} else {
		msg := ethereum.CallMsg{To: &to, Data: data, Value: value}
		if common.IsHexAddress(input.From) {
			msg.From = common.HexToAddress(input.From)
		}
		estimated, err := a.client.EstimateGas(ctx, msg)
		if err == nil {
			gasLimit = estimated * 120 / 100 // Add 20% buffer
		}
	}

	tier := func(pct int64) chain.FeeEstimate {
		price := new(big.Int).Div(new(big.Int).Mul(gasPrice, big.NewInt(pct)), big.NewInt(100))
		fee := new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit))
		return chain.FeeEstimate{
			TxFee:    decimal.NewFromBigInt(fee, 0),
			GasLimit: gasLimit,
			GasPrice: price,
		}
	}

	return &chain.FeeDataEstimate{
		Slow:    tier(80),
		Average: tier(100),
		Fast:    tier(120),
	}, nil
}

// callTarget resolves the call destination: token transfers are calls to the
// token contract with transfer(to, value) data and no native value.
func (a *Adapter) callTarget(to string, value decimal.Decimal, data []byte, tokenContract string) (common.Address, []byte, *big.Int, error) {
	if !common.IsHexAddress(to) {
		return common.Address{}, nil, nil, fmt.Errorf("invalid recipient address: %s", to)
	}
	if tokenContract == "" {
		return common.HexToAddress(to), data, value.BigInt(), nil
	}
	if !common.IsHexAddress(tokenContract) {
		return common.Address{}, nil, nil, fmt.Errorf("invalid token contract address: %s", tokenContract)
	}
	packed, err := a.transfer.Pack("transfer", common.HexToAddress(to), value.BigInt())
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return common.HexToAddress(tokenContract), packed, big.NewInt(0), nil
}

// BuildTransaction creates an unsigned legacy transaction
func (a *Adapter) BuildTransaction(ctx context.Context, input chain.BuildTxInput) (*types.UnsignedTx, error) {
	w, err := keyWallet(input.Wallet)
	if err != nil {
		return nil, err
	}

	to, data, value, err := a.callTarget(input.To, input.Value, input.Data, input.ContractAddress)
	if err != nil {
		return nil, err
	}

	nonce, err := a.client.PendingNonceAt(ctx, w.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice := input.GasPrice
	if gasPrice == nil {
		if gasPrice, err = a.gasPrice(ctx); err != nil {
			return nil, err
		}
	}

	gasLimit := input.GasLimit
	if gasLimit == 0 {
		fees, err := a.GetFeeData(ctx, chain.FeeDataInput{From: w.Address().Hex(), To: input.To, Value: input.Value, Data: input.Data, ContractAddress: input.ContractAddress})
		if err != nil {
			return nil, err
		}
		gasLimit = fees.Average.GasLimit
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	return &types.UnsignedTx{ChainID: a.ChainID(), EVM: tx}, nil
}

// SignTransaction signs with EIP-155 replay protection and returns the raw tx hex
func (a *Adapter) SignTransaction(_ context.Context, tx *types.UnsignedTx, wallet chain.Wallet) (string, error) {
	if tx == nil || tx.EVM == nil {
		return "", errors.New("missing EVM transaction")
	}
	w, err := keyWallet(wallet)
	if err != nil {
		return "", err
	}
	signed, err := ethtypes.SignTx(tx.EVM, ethtypes.NewEIP155Signer(a.chainID), w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	return hexutil.Encode(raw), nil
}

// BroadcastTransaction sends a raw signed transaction and returns its hash
func (a *Adapter) BroadcastTransaction(ctx context.Context, signedTx string) (string, error) {
	raw, err := hexutil.Decode(signedTx)
	if err != nil {
		return "", fmt.Errorf("invalid signed transaction: %w", err)
	}
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}
	if err := a.client.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// TxStatus reports a transaction's receipt status. Missing receipts are pending.
func (a *Adapter) TxStatus(ctx context.Context, txID string) (chain.TxStatus, error) {
	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txID))
	if errors.Is(err, ethereum.NotFound) {
		return chain.TxPending, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get transaction receipt: %w", err)
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return chain.TxConfirmed, nil
	}
	return chain.TxFailed, nil
}

// SubscribeTxs polls the receipt of filter.TxID until it is final or ctx ends
func (a *Adapter) SubscribeTxs(ctx context.Context, filter chain.TxFilter, onMessage func(chain.TxMessage), onError func(error)) error {
	if filter.TxID == "" {
		return errors.New("evm subscriptions require a txid")
	}

	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()

	for {
		status, err := a.TxStatus(ctx, filter.TxID)
		switch {
		case err != nil:
			if onError != nil {
				onError(err)
			}
		case status != chain.TxPending:
			onMessage(chain.TxMessage{TxID: filter.TxID, Status: status})
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CallContract executes a read-only call
func (a *Adapter) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return a.client.CallContract(ctx, call, blockNumber)
}

// SignTypedData signs an EIP-712 payload and returns the 65-byte signature hex
func (a *Adapter) SignTypedData(_ context.Context, data apitypes.TypedData, wallet chain.Wallet) (string, error) {
	w, err := keyWallet(wallet)
	if err != nil {
		return "", err
	}
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return "", fmt.Errorf("failed to hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

var (
	_ chain.EVMAdapter     = (*Adapter)(nil)
	_ chain.TxStatusReader = (*Adapter)(nil)
)
