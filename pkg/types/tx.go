package types

import (
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
)

// UnsignedTx is a chain transaction awaiting a signature. Exactly one payload is set.
type UnsignedTx struct {
	ChainID string
	EVM     *ethtypes.Transaction
	UTXO    *UTXOTx
	Cosmos  *CosmosTx
}

// UTXOTx is a bitcoin-like send with an optional OP_RETURN payload
type UTXOTx struct {
	To           string
	Value        decimal.Decimal
	OpReturnData string
	SatsPerByte  decimal.Decimal
}

// Coin is a cosmos-sdk denom/amount pair
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// CosmosMsg is an amino-JSON style message
type CosmosMsg struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// CosmosTx is an unsigned cosmos-sdk transaction
type CosmosTx struct {
	ChainID       string      `json:"chain_id"`
	AccountNumber string      `json:"account_number"`
	Sequence      string      `json:"sequence"`
	Msgs          []CosmosMsg `json:"msg"`
	Fee           []Coin      `json:"fee"`
	Gas           string      `json:"gas"`
	Memo          string      `json:"memo"`
}

// SignableOrder is an off-chain order signed as EIP-712 typed data.
// Body is the order as submitted to the venue, without signature.
type SignableOrder struct {
	TypedData apitypes.TypedData
	Body      map[string]any
}
