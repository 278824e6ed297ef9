package cowswap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
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

const ownerAddress = "0x8a65ac0e23f31979db06ec62af62b132a6df4741"

type fakeAPI struct {
	mu       sync.Mutex
	quotes   []quoteRequest
	orders   []map[string]any
	rejectAs string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req quoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.quotes = append(f.quotes, req)
		f.mu.Unlock()

		if f.rejectAs != "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"errorType":%q,"description":"fee exceeds amount"}`, f.rejectAs)
			return
		}
		if req.Kind == kindBuy {
			fmt.Fprintf(w, `{"quote":{"sellToken":%q,"buyToken":%q,"sellAmount":"500000000000000000","buyAmount":"1000000000","feeAmount":"1000","validTo":%d,"kind":"buy"}}`,
				req.SellToken, req.BuyToken, req.ValidTo)
			return
		}
		fmt.Fprintf(w, `{"quote":{"sellToken":%q,"buyToken":%q,"receiver":%q,"sellAmount":"985442057341242012","buyAmount":"14501811818247595090576","validTo":%d,"appData":%q,"feeAmount":"14557942658757988","kind":"sell","partiallyFillable":false},"from":%q,"id":7}`,
			req.SellToken, req.BuyToken, req.Receiver, req.ValidTo, req.AppData, req.From)
	})
	mux.HandleFunc("/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.orders = append(f.orders, body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `"0xorderuid"`)
	})
	return mux
}

func testConfig(url string) config.CowSwapConfig {
	return config.CowSwapConfig{
		BaseURL:            url,
		ChainID:            1,
		SettlementContract: "0x9008D19f58AAbD9eD0D60971565AA8510560ab41",
		VaultRelayer:       "0xC92E8bdf79f0507f65a392b0ab4667716BFE0110",
		AppData:            "0x0000000000000000000000000000000000000000000000000000000000000000",
		DefaultReceiver:    "0x0000000000000000000000000000000000000000",
		MinTradeValueUSD:   "20",
		MaxTradeAmount:     "100000000000000000000000000",
		DefaultSlippage:    "0.005",
		OrderValidity:      30 * time.Minute,
		USDCAddress:        "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		WrappedNative:      "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		RequestTimeout:     time.Second,
	}
}

func newTestSwapper(t *testing.T, api *fakeAPI) (*Swapper, *chaintest.Adapter) {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	adapter := chaintest.NewEVM(asset.EthereumChainID, asset.ETH.AssetID, ownerAddress)
	s, err := New(testConfig(srv.URL), Deps{Adapters: chain.Adapters{asset.EthereumChainID: adapter}})
	require.NoError(t, err)
	return s, adapter
}

func oneWETH(t *testing.T, s *Swapper) *types.TradeQuote {
	t.Helper()
	quote, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset:  asset.WETH,
		BuyAsset:   asset.FOX,
		SellAmount: decimal.RequireFromString("1000000000000000000"),
	})
	require.NoError(t, err)
	return quote
}

func TestNewValidatesAddresses(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.VaultRelayer = "nope"
	adapter := chaintest.NewEVM(asset.EthereumChainID, asset.ETH.AssetID, ownerAddress)
	_, err := New(cfg, Deps{Adapters: chain.Adapters{asset.EthereumChainID: adapter}})
	assert.ErrorContains(t, err, "vault_relayer")

	_, err = New(testConfig("http://localhost"), Deps{})
	assert.Error(t, err)
}

func TestFilters(t *testing.T) {
	s, _ := newTestSwapper(t, &fakeAPI{})
	ids := []string{asset.ETH.AssetID, asset.WETH.AssetID, asset.FOX.AssetID, asset.AVAX.AssetID}

	assert.Equal(t, []string{asset.WETH.AssetID, asset.FOX.AssetID}, s.FilterAssetIDsBySellable(ids))
	assert.Equal(t, []string{asset.FOX.AssetID},
		s.FilterBuyAssetsBySellAssetID(swapper.BuyAssetFilterInput{AssetIDs: ids, SellAssetID: asset.WETH.AssetID}))
	assert.Nil(t, s.FilterBuyAssetsBySellAssetID(swapper.BuyAssetFilterInput{AssetIDs: ids, SellAssetID: asset.ETH.AssetID}))
}

func TestGetUsdRate(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSwapper(t, api)

	rate, err := s.GetUsdRate(context.Background(), asset.ETH)
	require.NoError(t, err)
	assert.Equal(t, "2000", rate.String())
	require.Len(t, api.quotes, 1)
	assert.Equal(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", api.quotes[0].SellToken)
	assert.Equal(t, usdQuoteAmount, api.quotes[0].BuyAmountAfterFee)

	rate, err = s.GetUsdRate(context.Background(), asset.USDC)
	require.NoError(t, err)
	assert.Equal(t, "1", rate.String())
	assert.Len(t, api.quotes, 1)
}

func TestGetTradeQuoteGolden(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSwapper(t, api)
	quote := oneWETH(t, s)

	assert.Equal(t, "14716.04718939437505555958", quote.Rate.String())
	assert.Equal(t, "14557942658757988", quote.FeeData.Fee.String())
	assert.True(t, quote.FeeData.TradeFee.Equal(decimal.RequireFromString("29.115885317515976")))
	assert.Equal(t, "14501811818247595090576", quote.BuyAmount.String())
	assert.Equal(t, "1000000000000000000", quote.SellAmount.String())
	assert.Equal(t, "0.01", quote.Minimum.String())
	assert.Equal(t, "0xC92E8bdf79f0507f65a392b0ab4667716BFE0110", quote.AllowanceContract)

	require.Len(t, api.quotes, 2)
	assert.Equal(t, kindSell, api.quotes[1].Kind)
	assert.Equal(t, "1000000000000000000", api.quotes[1].SellAmountBeforeFee)
}

func TestGetTradeQuoteApprovalFee(t *testing.T) {
	s, adapter := newTestSwapper(t, &fakeAPI{})
	adapter.CallResult = make([]byte, 32)

	quote, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset:  asset.WETH,
		BuyAsset:   asset.FOX,
		SellAmount: decimal.RequireFromString("1000000000000000000"),
		Wallet:     chaintest.Wallet{Name: "w"},
	})
	require.NoError(t, err)

	// 100000 gas at the 25 gwei average; the order fee stays in sell units
	assert.Equal(t, "2500000000000000", quote.FeeData.ChainSpecific.ApprovalFee.String())
	assert.Equal(t, "14557942658757988", quote.FeeData.Fee.String())
	assert.Equal(t, 1, adapter.Called("GetFeeData"))
	assert.Equal(t, 1, adapter.Called("CallContract"))

	quote = oneWETH(t, s)
	assert.True(t, quote.FeeData.ChainSpecific.ApprovalFee.IsZero())
	assert.Equal(t, 1, adapter.Called("CallContract"))
}

func TestGetTradeQuoteRejections(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSwapper(t, api)
	ctx := context.Background()

	bad := decimal.NewFromInt(-1)
	_, err := s.GetTradeQuote(ctx, swapper.TradeQuoteInput{SellAsset: asset.WETH, BuyAsset: asset.FOX, SlippageTolerance: &bad})
	assert.ErrorIs(t, err, swapper.ErrValidationFailed)

	_, err = s.GetTradeQuote(ctx, swapper.TradeQuoteInput{SellAsset: asset.ETH, BuyAsset: asset.FOX, SellAmount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, swapper.ErrUnsupportedPair)
	assert.Empty(t, api.quotes)
}

func TestGetTradeQuoteAPIError(t *testing.T) {
	api := &fakeAPI{rejectAs: "SellAmountDoesNotCoverFee"}
	s, _ := newTestSwapper(t, api)

	_, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset: asset.WETH, BuyAsset: asset.FOX, SellAmount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, swapper.ErrTradeQuoteFailed)
	assert.ErrorIs(t, err, swapper.ErrResponseError)
	assert.ErrorContains(t, err, "SellAmountDoesNotCoverFee")
}

func TestBuildAndExecuteTrade(t *testing.T) {
	api := &fakeAPI{}
	s, adapter := newTestSwapper(t, api)
	wallet := chaintest.Wallet{Name: "w"}
	quote := oneWETH(t, s)

	trade, err := s.BuildTrade(context.Background(), swapper.BuildTradeInput{Quote: quote, Wallet: wallet})
	require.NoError(t, err)
	require.NotNil(t, trade.Order)
	assert.Nil(t, trade.Tx)
	assert.Equal(t, ownerAddress, trade.ReceiveAddress)

	msg := trade.Order.TypedData.Message
	assert.Equal(t, "14429302759156357115123", msg["buyAmount"])
	assert.Equal(t, "985442057341242012", msg["sellAmount"])
	assert.Equal(t, "14557942658757988", msg["feeAmount"])
	assert.Equal(t, ownerAddress, msg["receiver"])

	_, _, err = apitypes.TypedDataAndHash(trade.Order.TypedData)
	require.NoError(t, err)

	adapter.TypedSignature = "0xfeed"
	res, err := s.ExecuteTrade(context.Background(), swapper.ExecuteTradeInput{Trade: trade, Wallet: wallet})
	require.NoError(t, err)
	assert.Equal(t, "0xorderuid", res.TradeID)

	require.Len(t, api.orders, 1)
	order := api.orders[0]
	assert.Equal(t, "0xfeed", order["signature"])
	assert.Equal(t, signingSchemeEIP712, order["signingScheme"])
	assert.Equal(t, "14429302759156357115123", order["buyAmount"])
	assert.Equal(t, ownerAddress, order["from"])
	require.Len(t, adapter.TypedData(), 1)
}

func TestBuildTradeBelowMinimum(t *testing.T) {
	api := &fakeAPI{}
	s, adapter := newTestSwapper(t, api)
	quote := oneWETH(t, s)
	quote.SellAmount = decimal.NewFromInt(1000)

	_, err := s.BuildTrade(context.Background(), swapper.BuildTradeInput{Quote: quote, Wallet: chaintest.Wallet{Name: "w"}})
	assert.ErrorIs(t, err, swapper.ErrValidationFailed)
	assert.Empty(t, adapter.Calls())
}

func TestApprovalUsesVaultRelayer(t *testing.T) {
	s, adapter := newTestSwapper(t, &fakeAPI{})
	adapter.CallResult = make([]byte, 32)

	needed, err := s.ApprovalNeeded(context.Background(), swapper.ApprovalInput{
		Quote:  &types.TradeQuote{SellAsset: asset.WETH, SellAmount: decimal.NewFromInt(1)},
		Wallet: chaintest.Wallet{Name: "w"},
	})
	require.NoError(t, err)
	assert.True(t, needed)
}
