package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multiswap/pkg/asset"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// stubSwapper trades ETH for FOX at a fixed rate
type stubSwapper struct {
	typ     swapper.Type
	quoted  []swapper.TradeQuoteInput
	quoteFn func(swapper.TradeQuoteInput) (*types.TradeQuote, error)
}

func (s *stubSwapper) Type() swapper.Type { return s.typ }

func (s *stubSwapper) FilterAssetIDsBySellable(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id == asset.ETH.AssetID {
			out = append(out, id)
		}
	}
	return out
}

func (s *stubSwapper) FilterBuyAssetsBySellAssetID(input swapper.BuyAssetFilterInput) []string {
	var out []string
	for _, id := range input.AssetIDs {
		if id == asset.FOX.AssetID {
			out = append(out, id)
		}
	}
	return out
}

func (s *stubSwapper) GetUsdRate(_ context.Context, a types.Asset) (decimal.Decimal, error) {
	if a.AssetID != asset.ETH.AssetID {
		return decimal.Zero, swapper.NewError(swapper.KindUsdRateFailed, "no price for %s", a)
	}
	return decimal.NewFromInt(2500), nil
}

func (s *stubSwapper) GetMinMax(context.Context, swapper.MinMaxInput) (*swapper.MinMax, error) {
	return &swapper.MinMax{}, nil
}

func (s *stubSwapper) GetTradeQuote(_ context.Context, input swapper.TradeQuoteInput) (*types.TradeQuote, error) {
	s.quoted = append(s.quoted, input)
	if s.quoteFn != nil {
		return s.quoteFn(input)
	}
	return &types.TradeQuote{
		Rate:       decimal.NewFromInt(15000),
		SellAmount: input.SellAmount,
		BuyAmount:  input.SellAmount.Mul(decimal.NewFromInt(15000)),
		SellAsset:  input.SellAsset,
		BuyAsset:   input.BuyAsset,
	}, nil
}

func (s *stubSwapper) ApprovalNeeded(context.Context, swapper.ApprovalInput) (bool, error) {
	return false, nil
}

func (s *stubSwapper) ApproveInfinite(context.Context, swapper.ApprovalInput) (string, error) {
	return "", nil
}

func (s *stubSwapper) BuildTrade(context.Context, swapper.BuildTradeInput) (*types.Trade, error) {
	return nil, nil
}

func (s *stubSwapper) ExecuteTrade(context.Context, swapper.ExecuteTradeInput) (*types.TradeResult, error) {
	return nil, nil
}

type testEnv struct {
	router http.Handler
	stub   *stubSwapper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := swapper.NewManager(logger)
	stub := &stubSwapper{typ: swapper.TypeZrx}
	require.NoError(t, manager.AddSwapper(swapper.TypeZrx, func() (swapper.Swapper, error) { return stub, nil }))
	return &testEnv{router: NewRouter(manager, asset.Default(), logger), stub: stub}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestListSwappers(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/swappers", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{"0x"}, decode(t, rr)["swappers"])
}

func TestGetRate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/rates/0x?assetId="+asset.ETH.AssetID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "2500", body["usdRate"])
	assert.Equal(t, asset.ETH.AssetID, body["assetId"])

	rr = env.do(t, http.MethodGet, "/rates/0x", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/rates/Nope?assetId="+asset.ETH.AssetID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NotFound", decode(t, rr)["kind"])

	rr = env.do(t, http.MethodGet, "/rates/0x?assetId="+asset.FOX.AssetID, nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "UsdRateFailed", decode(t, rr)["kind"])
}

func TestQuotePicksSupportingSwapper(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/quote", map[string]any{
		"sellAssetId": asset.ETH.AssetID,
		"buyAssetId":  asset.FOX.AssetID,
		"sellAmount":  "1000000000000000000",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "0x", body["swapper"])
	quote := body["quote"].(map[string]any)
	assert.Equal(t, "15000", quote["rate"])
	assert.Equal(t, "15000000000000000000000", quote["buyAmount"])

	require.Len(t, env.stub.quoted, 1)
	assert.Equal(t, asset.FOX, env.stub.quoted[0].BuyAsset)
}

func TestQuoteErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		kind   string
	}{
		{"missing assets", map[string]any{"sellAmount": "1"}, http.StatusBadRequest, "ValidationFailed"},
		{"unknown asset", map[string]any{"sellAssetId": "eip155:1/erc20:0xdead", "buyAssetId": asset.FOX.AssetID}, http.StatusNotFound, "NotFound"},
		{"unsupported pair", map[string]any{"sellAssetId": asset.BTC.AssetID, "buyAssetId": asset.FOX.AssetID}, http.StatusUnprocessableEntity, "UnsupportedPair"},
		{"unknown field", map[string]any{"sellAssetId": asset.ETH.AssetID, "bogus": true}, http.StatusBadRequest, "ValidationFailed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/quote", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.kind, decode(t, rr)["kind"])
		})
	}
}

func TestQuoteMapsSwapperErrors(t *testing.T) {
	env := newTestEnv(t)
	env.stub.quoteFn = func(swapper.TradeQuoteInput) (*types.TradeQuote, error) {
		return nil, swapper.NewError(swapper.KindValidationFailed, "sell amount below minimum")
	}

	rr := env.do(t, http.MethodPost, "/quote", map[string]any{
		"swapper":     "0x",
		"sellAssetId": asset.ETH.AssetID,
		"buyAssetId":  asset.FOX.AssetID,
		"sellAmount":  "1",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr)["message"], "below minimum")
}

func TestQuoteRequiresJSON(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader("sell=eth"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(swapper.KindValidationFailed))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(swapper.KindUnsupportedNamespace))
	assert.Equal(t, http.StatusNotFound, StatusOf(swapper.KindNotFound))
	assert.Equal(t, http.StatusBadGateway, StatusOf(swapper.KindResponseError))
}
