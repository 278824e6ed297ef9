// Package cosmos reads Cosmos SDK chain state over the LCD REST API.
package cosmos

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"multiswap/pkg/chain"
	"multiswap/pkg/httpjson"
)

// Client talks to one chain's LCD endpoint
type Client struct {
	chainID string
	http    *httpjson.Client
}

// NewClient creates an LCD client for chainID (CAIP-2) at baseURL
func NewClient(chainID, baseURL string, timeout time.Duration) *Client {
	return &Client{chainID: chainID, http: httpjson.New(baseURL, timeout)}
}

// ChainID returns the CAIP-2 id of the chain
func (c *Client) ChainID() string {
	return c.chainID
}

// Get exposes raw LCD queries for module-specific endpoints
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.http.Get(ctx, path, query, out)
}

type txResponse struct {
	TxResponse struct {
		TxHash string `json:"txhash"`
		Height string `json:"height"`
		Code   int    `json:"code"`
		RawLog string `json:"raw_log"`
	} `json:"tx_response"`
}

// TxStatus reports a transaction as pending until it is indexed, then
// confirmed or failed by its result code.
func (c *Client) TxStatus(ctx context.Context, txID string) (chain.TxStatus, error) {
	var resp txResponse
	err := c.http.Get(ctx, "/cosmos/tx/v1beta1/txs/"+url.PathEscape(txID), nil, &resp)
	if err != nil {
		// Not yet indexed
		if httpjson.IsStatus(err, http.StatusNotFound) {
			return chain.TxPending, nil
		}
		return "", fmt.Errorf("failed to query tx %s: %w", txID, err)
	}
	if resp.TxResponse.Code != 0 {
		return chain.TxFailed, nil
	}
	return chain.TxConfirmed, nil
}

type blockResponse struct {
	Block struct {
		Header struct {
			Height string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

// LatestHeight returns the height of the latest block
func (c *Client) LatestHeight(ctx context.Context) (int64, error) {
	var resp blockResponse
	if err := c.http.Get(ctx, "/cosmos/base/tendermint/v1beta1/blocks/latest", nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to query latest block: %w", err)
	}
	height, err := strconv.ParseInt(resp.Block.Header.Height, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block height %q: %w", resp.Block.Header.Height, err)
	}
	return height, nil
}

type accountResponse struct {
	Account struct {
		Type          string `json:"@type"`
		Address       string `json:"address"`
		AccountNumber string `json:"account_number"`
		Sequence      string `json:"sequence"`
		// vesting accounts nest the base account
		BaseAccount *struct {
			Address       string `json:"address"`
			AccountNumber string `json:"account_number"`
			Sequence      string `json:"sequence"`
		} `json:"base_account"`
	} `json:"account"`
}

// Account returns the account number and sequence of address
func (c *Client) Account(ctx context.Context, address string) (*chain.Account, error) {
	var resp accountResponse
	if err := c.http.Get(ctx, "/cosmos/auth/v1beta1/accounts/"+url.PathEscape(address), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to query account %s: %w", address, err)
	}

	acct := &chain.Account{
		Address:       address,
		AccountNumber: resp.Account.AccountNumber,
		Sequence:      resp.Account.Sequence,
	}
	if base := resp.Account.BaseAccount; base != nil && acct.AccountNumber == "" {
		acct.AccountNumber = base.AccountNumber
		acct.Sequence = base.Sequence
	}
	if acct.Sequence == "" {
		acct.Sequence = "0"
	}
	return acct, nil
}

type balanceResponse struct {
	Balance struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balance"`
}

// Balance returns the base-unit balance of denom held by address
func (c *Client) Balance(ctx context.Context, address, denom string) (decimal.Decimal, error) {
	var resp balanceResponse
	query := url.Values{"denom": {denom}}
	if err := c.http.Get(ctx, "/cosmos/bank/v1beta1/balances/"+url.PathEscape(address)+"/by_denom", query, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to query %s balance of %s: %w", denom, address, err)
	}
	if resp.Balance.Amount == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(resp.Balance.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q: %w", resp.Balance.Amount, err)
	}
	return amount, nil
}

var (
	_ chain.TxStatusReader = (*Client)(nil)
	_ chain.BalanceReader  = (*Client)(nil)
)
