package osmosis

import (
	"strconv"

	"multiswap/pkg/types"
)

// Amino message types
const (
	msgTypeTransfer    = "cosmos-sdk/MsgTransfer"
	msgTypeSwapExactIn = "osmosis/gamm/swap-exact-amount-in"
	transferPort       = "transfer"
	noTimeoutTimestamp = "0"
)

type ibcHeight struct {
	RevisionNumber string `json:"revision_number"`
	RevisionHeight string `json:"revision_height"`
}

type msgTransfer struct {
	SourcePort       string     `json:"source_port"`
	SourceChannel    string     `json:"source_channel"`
	Token            types.Coin `json:"token"`
	Sender           string     `json:"sender"`
	Receiver         string     `json:"receiver"`
	TimeoutHeight    ibcHeight  `json:"timeout_height"`
	TimeoutTimestamp string     `json:"timeout_timestamp"`
}

type swapRoute struct {
	PoolID        string `json:"pool_id"`
	TokenOutDenom string `json:"token_out_denom"`
}

type msgSwapExactAmountIn struct {
	Sender            string      `json:"sender"`
	Routes            []swapRoute `json:"routes"`
	TokenIn           types.Coin  `json:"token_in"`
	TokenOutMinAmount string      `json:"token_out_min_amount"`
}

func transferMsg(channel string, token types.Coin, sender, receiver, revision string, height int64) types.CosmosMsg {
	return types.CosmosMsg{
		Type: msgTypeTransfer,
		Value: msgTransfer{
			SourcePort:       transferPort,
			SourceChannel:    channel,
			Token:            token,
			Sender:           sender,
			Receiver:         receiver,
			TimeoutHeight:    ibcHeight{RevisionNumber: revision, RevisionHeight: strconv.FormatInt(height, 10)},
			TimeoutTimestamp: noTimeoutTimestamp,
		},
	}
}

func swapMsg(poolID string, tokenIn types.Coin, outDenom, sender, minOut string) types.CosmosMsg {
	return types.CosmosMsg{
		Type: msgTypeSwapExactIn,
		Value: msgSwapExactAmountIn{
			Sender:            sender,
			Routes:            []swapRoute{{PoolID: poolID, TokenOutDenom: outDenom}},
			TokenIn:           tokenIn,
			TokenOutMinAmount: minOut,
		},
	}
}
