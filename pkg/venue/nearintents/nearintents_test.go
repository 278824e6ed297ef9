package nearintents

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiswap/config"
	"multiswap/pkg/asset"
	"multiswap/pkg/chain"
	"multiswap/pkg/chain/chaintest"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

const (
	ethAddr        = "0x00000000000000000000000000000000000000aa"
	btcAddr        = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	depositAddress = "0x76b4c56085ED136a8744D52bE956396624a730E8"
)

// fakeOneClick serves the 1Click endpoints the venue calls
type fakeOneClick struct {
	mu          sync.Mutex
	quotes      []map[string]any
	submissions []map[string]any
	submitCode  int
}

func (f *fakeOneClick) lastQuote() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quotes[len(f.quotes)-1]
}

func quoteJSON(req map[string]any) map[string]any {
	dry, _ := req["dry"].(bool)
	quote := map[string]any{
		"amountIn":           req["amount"],
		"amountInFormatted":  "1.0",
		"amountInUsd":        "2500.00",
		"minAmountIn":        req["amount"],
		"amountOut":          "4100000",
		"amountOutFormatted": "0.041",
		"amountOutUsd":       "2460.00",
		"minAmountOut":       "4059000",
		"timeEstimate":       120,
	}
	if !dry {
		quote["amountOut"] = "4090000"
		quote["depositAddress"] = depositAddress
		quote["deadline"] = "2030-01-01T00:00:00Z"
		quote["timeWhenInactive"] = "2030-01-01T00:00:00Z"
	}
	return map[string]any{
		"timestamp":    "2026-10-16T00:00:00Z",
		"signature":    "ed25519:sig",
		"quoteRequest": req,
		"quote":        quote,
	}
}

func (f *fakeOneClick) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v0/tokens", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[
			{"assetId":"nep141:eth.omft.near","decimals":18,"blockchain":"eth","symbol":"ETH","price":2500,"priceUpdatedAt":"2026-10-16T00:00:00Z"},
			{"assetId":"nep141:eth-usdc.omft.near","decimals":6,"blockchain":"eth","symbol":"USDC","price":1,"priceUpdatedAt":"2026-10-16T00:00:00Z","contractAddress":%q},
			{"assetId":"nep141:btc.omft.near","decimals":8,"blockchain":"btc","symbol":"BTC","price":60000,"priceUpdatedAt":"2026-10-16T00:00:00Z"}
		]`, asset.USDC.ContractAddress())
	})
	mux.HandleFunc("/v0/quote", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.quotes = append(f.quotes, req)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(quoteJSON(req))
	})
	mux.HandleFunc("/v0/deposit/submit", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.submissions = append(f.submissions, req)
		code := f.submitCode
		f.mu.Unlock()
		if code != 0 {
			http.Error(w, `{"message":"deposit not found"}`, code)
			return
		}
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/v0/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, depositAddress, r.URL.Query().Get("depositAddress"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"quoteResponse": quoteJSON(map[string]any{"dry": false, "amount": "1000000000000000000"}),
			"status":        "SUCCESS",
			"updatedAt":     "2026-10-16T12:00:00Z",
			"swapDetails": map[string]any{
				"intentHashes":             []string{"intent1"},
				"nearTxHashes":             []string{"near1"},
				"amountIn":                 "1000000000000000000",
				"amountInFormatted":        "1.0",
				"amountInUsd":              "2500.00",
				"amountOut":                "4090000",
				"amountOutFormatted":       "0.0409",
				"amountOutUsd":             "2454.00",
				"slippage":                 20,
				"refundedAmount":           "0",
				"refundedAmountFormatted":  "0",
				"refundedAmountUsd":        "0",
				"originChainTxHashes":      []map[string]string{{"hash": "0xdeposit", "explorerUrl": "https://etherscan.io/tx/0xdeposit"}},
				"destinationChainTxHashes": []map[string]string{{"hash": "btcwithdrawal", "explorerUrl": "https://mempool.space/tx/btcwithdrawal"}},
			},
		})
	})
	return mux
}

type fixture struct {
	swapper *Swapper
	api     *fakeOneClick
	eth     *chaintest.Adapter
	btc     *chaintest.Adapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api: &fakeOneClick{},
		eth: chaintest.NewEVM(asset.EthereumChainID, asset.ETH.AssetID, ethAddr),
		btc: chaintest.New(asset.BitcoinChainID, asset.BTC.AssetID, btcAddr),
	}
	f.eth.TxIDs = []string{"0xdeposittx"}
	srv := httptest.NewServer(f.api.handler(t))
	t.Cleanup(srv.Close)

	s, err := New(config.NearIntentsConfig{
		BaseURL: srv.URL,
		Blockchains: map[string]string{
			asset.EthereumChainID: "eth",
			asset.BitcoinChainID:  "btc",
		},
		SlippageBps:    100,
		Deadline:       time.Hour,
		MinTradeAmount: "0.001",
		MaxTradeAmount: "1000",
		RequestTimeout: time.Second,
	}, Deps{
		Adapters: chain.Adapters{asset.EthereumChainID: f.eth, asset.BitcoinChainID: f.btc},
	})
	require.NoError(t, err)
	f.swapper = s
	return f
}

func TestFilters(t *testing.T) {
	s := newFixture(t).swapper
	ids := []string{asset.ETH.AssetID, asset.USDC.AssetID, asset.FOX.AssetID, asset.BTC.AssetID, asset.ATOM.AssetID}

	assert.Equal(t, []string{asset.ETH.AssetID, asset.USDC.AssetID, asset.FOX.AssetID}, s.FilterAssetIDsBySellable(ids))
	assert.Equal(t, []string{asset.USDC.AssetID, asset.FOX.AssetID, asset.BTC.AssetID},
		s.FilterBuyAssetsBySellAssetID(swapper.BuyAssetFilterInput{AssetIDs: ids, SellAssetID: asset.ETH.AssetID}))
	assert.Nil(t, s.FilterBuyAssetsBySellAssetID(swapper.BuyAssetFilterInput{AssetIDs: ids, SellAssetID: asset.BTC.AssetID}))
}

func TestGetUsdRate(t *testing.T) {
	s := newFixture(t).swapper

	rate, err := s.GetUsdRate(context.Background(), asset.ETH)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(2500)), rate.String())

	_, err = s.GetUsdRate(context.Background(), asset.FOX)
	assert.ErrorIs(t, err, swapper.ErrUsdRateFailed)
}

func TestGetTradeQuote(t *testing.T) {
	f := newFixture(t)
	q, err := f.swapper.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset:      asset.ETH,
		BuyAsset:       asset.BTC,
		SellAmount:     decimal.RequireFromString("1000000000000000000"),
		ReceiveAddress: btcAddr,
	})
	require.NoError(t, err)

	assert.Equal(t, "4100000", q.BuyAmount.String())
	assert.Equal(t, "0.041", q.Rate.String())
	assert.True(t, q.FeeData.Fee.Equal(decimal.NewFromInt(5250000000000000)), q.FeeData.Fee.String())
	assert.Equal(t, "0.001", q.Minimum.String())
	assert.Equal(t, "1000", q.Maximum.String())

	req := f.api.lastQuote()
	assert.Equal(t, true, req["dry"])
	assert.Equal(t, "EXACT_INPUT", req["swapType"])
	assert.EqualValues(t, 100, req["slippageTolerance"])
	assert.Equal(t, "nep141:eth.omft.near", req["originAsset"])
	assert.Equal(t, "nep141:btc.omft.near", req["destinationAsset"])
	assert.Equal(t, "1000000000000000000", req["amount"])
	assert.Equal(t, btcAddr, req["recipient"])
	// no wallet: refunds go to the recipient
	assert.Equal(t, btcAddr, req["refundTo"])
}

func TestGetTradeQuoteRejections(t *testing.T) {
	s := newFixture(t).swapper
	ctx := context.Background()

	_, err := s.GetTradeQuote(ctx, swapper.TradeQuoteInput{
		SellAsset: asset.ETH, BuyAsset: asset.ATOM, SellAmount: decimal.NewFromInt(1), ReceiveAddress: "cosmos1x",
	})
	assert.ErrorIs(t, err, swapper.ErrUnsupportedPair)

	_, err = s.GetTradeQuote(ctx, swapper.TradeQuoteInput{
		SellAsset: asset.ETH, BuyAsset: asset.BTC, SellAmount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, swapper.ErrValidationFailed)

	tol := decimal.NewFromInt(-1)
	_, err = s.GetTradeQuote(ctx, swapper.TradeQuoteInput{
		SellAsset: asset.ETH, BuyAsset: asset.BTC, SlippageTolerance: &tol, ReceiveAddress: btcAddr,
	})
	assert.ErrorIs(t, err, swapper.ErrValidationFailed)
}

func TestZeroAmountQuotesMinimum(t *testing.T) {
	f := newFixture(t)
	q, err := f.swapper.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset: asset.ETH, BuyAsset: asset.BTC, ReceiveAddress: btcAddr,
	})
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000", q.SellAmount.String())
}

func buildTrade(t *testing.T, f *fixture, sell types.Asset, amount string) *types.Trade {
	t.Helper()
	wallet := chaintest.Wallet{Name: "w"}
	q, err := f.swapper.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset: sell, BuyAsset: asset.BTC, SellAmount: decimal.RequireFromString(amount), Wallet: wallet,
	})
	require.NoError(t, err)
	trade, err := f.swapper.BuildTrade(context.Background(), swapper.BuildTradeInput{Quote: q, Wallet: wallet})
	require.NoError(t, err)
	return trade
}

func TestBuildTradeNativeDeposit(t *testing.T) {
	f := newFixture(t)
	trade := buildTrade(t, f, asset.ETH, "1000000000000000000")

	assert.Equal(t, depositAddress, trade.DepositAddress)
	assert.Equal(t, btcAddr, trade.ReceiveAddress)
	assert.Equal(t, ethAddr, trade.SellAddress)
	assert.Equal(t, "4090000", trade.BuyAmount.String())
	assert.Equal(t, "0.0409", trade.Rate.String())

	req := f.api.lastQuote()
	assert.Equal(t, false, req["dry"])
	assert.Equal(t, btcAddr, req["recipient"])
	assert.Equal(t, ethAddr, req["refundTo"])

	built := f.eth.Built()
	require.Len(t, built, 1)
	assert.Equal(t, depositAddress, built[0].To)
	assert.Equal(t, "1000000000000000000", built[0].Value.String())
	assert.Empty(t, built[0].Data)
	assert.Equal(t, uint64(210000), built[0].GasLimit)
	assert.Equal(t, big.NewInt(25000000000), built[0].GasPrice)
}

func TestBuildTradeTokenDeposit(t *testing.T) {
	f := newFixture(t)
	buildTrade(t, f, asset.USDC, "250000000")

	req := f.api.lastQuote()
	assert.Equal(t, "nep141:eth-usdc.omft.near", req["originAsset"])

	built := f.eth.Built()
	require.Len(t, built, 1)
	assert.Equal(t, asset.USDC.ContractAddress(), built[0].To)
	assert.True(t, built[0].Value.IsZero())

	method := transferABI.Methods["transfer"]
	assert.Equal(t, method.ID, built[0].Data[:4])
	args, err := method.Inputs.Unpack(built[0].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(depositAddress), args[0])
	assert.Equal(t, big.NewInt(250000000), args[1])
}

func TestExecuteTradeSubmitsDeposit(t *testing.T) {
	f := newFixture(t)
	trade := buildTrade(t, f, asset.ETH, "1000000000000000000")

	res, err := f.swapper.ExecuteTrade(context.Background(), swapper.ExecuteTradeInput{Trade: trade, Wallet: chaintest.Wallet{Name: "w"}})
	require.NoError(t, err)
	assert.Equal(t, "0xdeposittx", res.TradeID)

	f.api.mu.Lock()
	defer f.api.mu.Unlock()
	require.Len(t, f.api.submissions, 1)
	assert.Equal(t, "0xdeposittx", f.api.submissions[0]["txHash"])
	assert.Equal(t, depositAddress, f.api.submissions[0]["depositAddress"])
}

func TestExecuteTradeToleratesFailedSubmission(t *testing.T) {
	f := newFixture(t)
	f.api.mu.Lock()
	f.api.submitCode = http.StatusNotFound
	f.api.mu.Unlock()
	trade := buildTrade(t, f, asset.ETH, "1000000000000000000")

	res, err := f.swapper.ExecuteTrade(context.Background(), swapper.ExecuteTradeInput{Trade: trade, Wallet: chaintest.Wallet{Name: "w"}})
	require.NoError(t, err)
	assert.Equal(t, "0xdeposittx", res.TradeID)
}

func TestExecuteTradeRequiresDeposit(t *testing.T) {
	s := newFixture(t).swapper
	_, err := s.ExecuteTrade(context.Background(), swapper.ExecuteTradeInput{Trade: &types.Trade{Tx: &types.UnsignedTx{}}})
	assert.ErrorIs(t, err, swapper.ErrExecuteTradeFailed)
}

func TestStatus(t *testing.T) {
	s := newFixture(t).swapper

	st, err := s.Status(context.Background(), depositAddress)
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", st.State)
	assert.True(t, st.Terminal())
	assert.Equal(t, "0.0409", st.AmountOut)
	assert.Equal(t, []string{"0xdeposit"}, st.DepositTxs)
	assert.Equal(t, []string{"btcwithdrawal"}, st.WithdrawalTxs)

	_, err = s.Status(context.Background(), "")
	assert.ErrorIs(t, err, swapper.ErrValidationFailed)
}

func TestApprovalIsNeverNeeded(t *testing.T) {
	s := newFixture(t).swapper
	needed, err := s.ApprovalNeeded(context.Background(), swapper.ApprovalInput{})
	require.NoError(t, err)
	assert.False(t, needed)
}
