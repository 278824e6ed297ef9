package zrx

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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
	usdcAddress  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	exchangeAddr = "0xdef1c0ded9bec7f1a1670819833240f027b25eff"
	takerAddress = "0x8a65ac0e23f31979db06ec62af62b132a6df4741"
)

type fakeAPI struct {
	priceCalls  atomic.Int32
	quoteCalls  atomic.Int32
	failQuotes  int32
	failCode    int
	lastSellAmt atomic.Value
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/swap/v1/price", func(w http.ResponseWriter, r *http.Request) {
		f.priceCalls.Add(1)
		q := r.URL.Query()
		if q.Get("buyAmount") == usdQuoteAmount {
			assert.Equal(t, usdcAddress, q.Get("buyToken"))
			switch q.Get("sellToken") {
			case "ETH":
				fmt.Fprint(w, `{"price":"0.0005"}`)
			default:
				fmt.Fprint(w, `{"price":"5"}`)
			}
			return
		}
		f.lastSellAmt.Store(q.Get("sellAmount"))
		assert.Equal(t, "true", q.Get("skipValidation"))
		fmt.Fprint(w, `{
			"price":"1500.5","estimatedGas":"150000","gasPrice":"20000000000",
			"sellAmount":"1000000000000000000","buyAmount":"1500500000",
			"allowanceTarget":"`+exchangeAddr+`",
			"sources":[{"name":"Uniswap_V3","proportion":"1"},{"name":"Curve","proportion":"0"}]
		}`)
	})
	mux.HandleFunc("/swap/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		n := f.quoteCalls.Add(1)
		assert.Equal(t, takerAddress, r.URL.Query().Get("takerAddress"))
		if n <= f.failQuotes {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"code":%d,"reason":"Gas estimation failed"}`, f.failCode)
			return
		}
		fmt.Fprint(w, `{
			"price":"1499.9","gasPrice":"20000000000","buyAmount":"1499900000",
			"allowanceTarget":"`+exchangeAddr+`",
			"to":"`+exchangeAddr+`","data":"0xdeadbeef","value":"1000000000000000000","gas":"200000",
			"sources":[{"name":"Uniswap_V3","proportion":"1"}]
		}`)
	})
	return mux
}

func newTestSwapper(t *testing.T, api *fakeAPI) (*Swapper, *chaintest.Adapter) {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	adapter := chaintest.NewEVM(asset.EthereumChainID, asset.ETH.AssetID, takerAddress)
	s, err := New(config.ZrxConfig{
		BaseURLs:         map[string]string{asset.EthereumChainID: srv.URL},
		USDCAddresses:    map[string]string{asset.EthereumChainID: usdcAddress},
		MinTradeValueUSD: "1",
		MaxTradeAmount:   "1000000",
		DefaultSlippage:  "0.002",
		GasRetryAttempts: 3,
		GasRetryDelay:    time.Millisecond,
		RequestTimeout:   time.Second,
	}, Deps{Adapters: chain.Adapters{asset.EthereumChainID: adapter}})
	require.NoError(t, err)
	return s, adapter
}

func TestNewRequiresUSDC(t *testing.T) {
	_, err := New(config.ZrxConfig{BaseURLs: map[string]string{"eip155:1": "http://x"}}, Deps{})
	assert.Error(t, err)
}

func TestFilters(t *testing.T) {
	s, _ := newTestSwapper(t, &fakeAPI{})
	ids := []string{asset.ETH.AssetID, asset.FOX.AssetID, asset.AVAX.AssetID, asset.BTC.AssetID, "garbage"}

	assert.Equal(t, []string{asset.ETH.AssetID, asset.FOX.AssetID}, s.FilterAssetIDsBySellable(ids))
	assert.Equal(t, []string{asset.FOX.AssetID},
		s.FilterBuyAssetsBySellAssetID(swapper.BuyAssetFilterInput{AssetIDs: ids, SellAssetID: asset.ETH.AssetID}))
	assert.Empty(t, s.FilterBuyAssetsBySellAssetID(swapper.BuyAssetFilterInput{AssetIDs: ids, SellAssetID: asset.BTC.AssetID}))
}

func TestGetUsdRate(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSwapper(t, api)

	rate, err := s.GetUsdRate(context.Background(), asset.ETH)
	require.NoError(t, err)
	assert.Equal(t, "2000", rate.String())

	rate, err = s.GetUsdRate(context.Background(), asset.USDC)
	require.NoError(t, err)
	assert.Equal(t, "1", rate.String())
	assert.Equal(t, int32(1), api.priceCalls.Load())

	_, err = s.GetUsdRate(context.Background(), asset.BTC)
	assert.ErrorIs(t, err, swapper.ErrUsdRateFailed)
}

func TestGetTradeQuote(t *testing.T) {
	s, _ := newTestSwapper(t, &fakeAPI{})
	quote, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset:  asset.ETH,
		BuyAsset:   asset.USDC,
		SellAmount: decimal.RequireFromString("1000000000000000000"),
	})
	require.NoError(t, err)

	assert.Equal(t, "1500.5", quote.Rate.String())
	assert.Equal(t, "0.0005", quote.Minimum.String())
	assert.Equal(t, "1000000", quote.Maximum.String())
	assert.Equal(t, "1500500000", quote.BuyAmount.String())
	assert.Equal(t, "3000000000000000", quote.FeeData.Fee.String())
	assert.Empty(t, quote.AllowanceContract)
	require.Len(t, quote.Sources, 1)
	assert.Equal(t, "Uniswap_V3", quote.Sources[0].Name)
	assert.True(t, quote.FeeData.ChainSpecific.ApprovalFee.IsZero())
}

func TestGetTradeQuoteZeroAmountUsesMinimum(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSwapper(t, api)
	quote, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset: asset.ETH,
		BuyAsset:  asset.USDC,
	})
	require.NoError(t, err)
	assert.Equal(t, "500000000000000", quote.SellAmount.String())
	assert.Equal(t, "500000000000000", api.lastSellAmt.Load())
}

func TestGetTradeQuoteRejectsSlippageBeforeNetwork(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSwapper(t, api)
	bad := decimal.NewFromFloat(1.5)
	_, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset: asset.ETH, BuyAsset: asset.USDC, SellAmount: decimal.NewFromInt(1), SlippageTolerance: &bad,
	})
	assert.ErrorIs(t, err, swapper.ErrValidationFailed)
	assert.Equal(t, int32(0), api.priceCalls.Load())
}

func TestGetTradeQuoteCrossChain(t *testing.T) {
	s, _ := newTestSwapper(t, &fakeAPI{})
	_, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset: asset.ETH, BuyAsset: asset.AVAX, SellAmount: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, swapper.ErrUnsupportedPair)
}

func TestGetTradeQuoteApprovalFee(t *testing.T) {
	s, adapter := newTestSwapper(t, &fakeAPI{})
	adapter.CallResult = common.LeftPadBytes(big.NewInt(0).Bytes(), 32)

	quote, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset:  asset.FOX,
		BuyAsset:   asset.USDC,
		SellAmount: decimal.RequireFromString("100000000000000000000"),
		Wallet:     chaintest.Wallet{Name: "w"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000", quote.FeeData.ChainSpecific.ApprovalFee.String())
	assert.Equal(t, "3000000000000000", quote.FeeData.Fee.String())
	assert.Equal(t, exchangeAddr, quote.AllowanceContract)
	assert.Equal(t, 1, adapter.Called("CallContract"))
}

func quoteFor(t *testing.T, s *Swapper) *types.TradeQuote {
	t.Helper()
	quote, err := s.GetTradeQuote(context.Background(), swapper.TradeQuoteInput{
		SellAsset:  asset.ETH,
		BuyAsset:   asset.USDC,
		SellAmount: decimal.RequireFromString("1000000000000000000"),
	})
	require.NoError(t, err)
	return quote
}

func TestBuildTradeRetriesGasEstimation(t *testing.T) {
	api := &fakeAPI{failQuotes: 2, failCode: gasEstimationFailed}
	s, adapter := newTestSwapper(t, api)

	trade, err := s.BuildTrade(context.Background(), swapper.BuildTradeInput{
		Quote:  quoteFor(t, s),
		Wallet: chaintest.Wallet{Name: "w"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), api.quoteCalls.Load())

	require.NotNil(t, trade.Tx)
	require.NotNil(t, trade.Tx.EVM)
	assert.Equal(t, common.HexToAddress(exchangeAddr), *trade.Tx.EVM.To())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, trade.Tx.EVM.Data())
	assert.Equal(t, uint64(210000), trade.Tx.EVM.Gas())
	assert.Equal(t, "1499.9", trade.Rate.String())
	assert.Equal(t, takerAddress, trade.ReceiveAddress)
	assert.Empty(t, trade.AllowanceContract)
	assert.Equal(t, 1, adapter.Called("GetFeeData"))
}

func TestBuildTradeRetryIsBounded(t *testing.T) {
	api := &fakeAPI{failQuotes: 100, failCode: gasEstimationFailed}
	s, adapter := newTestSwapper(t, api)

	_, err := s.BuildTrade(context.Background(), swapper.BuildTradeInput{Quote: quoteFor(t, s), Wallet: chaintest.Wallet{Name: "w"}})
	assert.ErrorIs(t, err, swapper.ErrBuildTradeFailed)
	assert.ErrorIs(t, err, swapper.ErrResponseError)
	assert.Equal(t, int32(4), api.quoteCalls.Load())
	assert.Equal(t, 0, adapter.Called("BuildTransaction"))
}

func TestBuildTradeDoesNotRetryOtherErrors(t *testing.T) {
	api := &fakeAPI{failQuotes: 100, failCode: 100}
	s, _ := newTestSwapper(t, api)

	_, err := s.BuildTrade(context.Background(), swapper.BuildTradeInput{Quote: quoteFor(t, s), Wallet: chaintest.Wallet{Name: "w"}})
	assert.ErrorIs(t, err, swapper.ErrBuildTradeFailed)
	assert.Equal(t, int32(1), api.quoteCalls.Load())
}

func TestBuildTradeChecksBounds(t *testing.T) {
	api := &fakeAPI{}
	s, adapter := newTestSwapper(t, api)
	quote := quoteFor(t, s)
	quote.SellAmount = decimal.NewFromInt(1000)

	_, err := s.BuildTrade(context.Background(), swapper.BuildTradeInput{Quote: quote, Wallet: chaintest.Wallet{Name: "w"}})
	assert.ErrorIs(t, err, swapper.ErrValidationFailed)
	assert.Equal(t, int32(0), api.quoteCalls.Load())
	assert.Empty(t, adapter.Calls())
}

func TestExecuteTrade(t *testing.T) {
	s, adapter := newTestSwapper(t, &fakeAPI{})
	adapter.TxIDs = []string{"0xhash"}
	wallet := chaintest.Wallet{Name: "w"}

	trade, err := s.BuildTrade(context.Background(), swapper.BuildTradeInput{Quote: quoteFor(t, s), Wallet: wallet})
	require.NoError(t, err)

	res, err := s.ExecuteTrade(context.Background(), swapper.ExecuteTradeInput{Trade: trade, Wallet: wallet})
	require.NoError(t, err)
	assert.Equal(t, "0xhash", res.TradeID)
	assert.Equal(t, []string{"signed:eip155:1:w"}, adapter.Broadcasts())
}

func TestApprovalNeeded(t *testing.T) {
	s, adapter := newTestSwapper(t, &fakeAPI{})
	quote := &types.TradeQuote{
		SellAsset:         asset.FOX,
		SellAmount:        decimal.NewFromInt(100),
		AllowanceContract: exchangeAddr,
	}

	adapter.CallResult = common.LeftPadBytes(big.NewInt(100).Bytes(), 32)
	needed, err := s.ApprovalNeeded(context.Background(), swapper.ApprovalInput{Quote: quote, Wallet: chaintest.Wallet{Name: "w"}})
	require.NoError(t, err)
	assert.True(t, needed)

	adapter.CallResult = common.LeftPadBytes(big.NewInt(101).Bytes(), 32)
	needed, err = s.ApprovalNeeded(context.Background(), swapper.ApprovalInput{Quote: quote, Wallet: chaintest.Wallet{Name: "w"}})
	require.NoError(t, err)
	assert.False(t, needed)

	txid, err := s.ApproveInfinite(context.Background(), swapper.ApprovalInput{Quote: quote, Wallet: chaintest.Wallet{Name: "w"}})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", txid)
}
