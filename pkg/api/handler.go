package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"multiswap/pkg/asset"
	"multiswap/pkg/swapper"
	"multiswap/pkg/types"
)

// Handler serves the swapper endpoints
type Handler struct {
	manager *swapper.Manager
	assets  *asset.Registry
	logger  *slog.Logger
}

type swappersResponse struct {
	Swappers []swapper.Type `json:"swappers"`
}

// ListSwappers handles GET /swappers
func (h *Handler) ListSwappers(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, swappersResponse{Swappers: h.manager.Swappers()})
}

type rateResponse struct {
	Swapper swapper.Type    `json:"swapper"`
	AssetID string          `json:"assetId"`
	USDRate decimal.Decimal `json:"usdRate"`
}

// GetRate handles GET /rates/{swapper}?assetId=
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	assetID := r.URL.Query().Get("assetId")
	if assetID == "" {
		WriteError(w, http.StatusBadRequest, swapper.KindValidationFailed, "assetId is required")
		return
	}
	a, err := h.assets.ByID(assetID)
	if err != nil {
		WriteError(w, http.StatusNotFound, swapper.KindNotFound, err.Error())
		return
	}
	s, err := h.manager.BySwapper(swapper.Type(chi.URLParam(r, "swapper")))
	if err != nil {
		writeSwapperError(w, err)
		return
	}

	rate, err := s.GetUsdRate(r.Context(), a)
	if err != nil {
		h.logger.Warn("usd rate failed", "swapper", s.Type(), "asset", a.AssetID, "error", err)
		writeSwapperError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rateResponse{Swapper: s.Type(), AssetID: a.AssetID, USDRate: rate})
}

type quoteRequest struct {
	Swapper           string           `json:"swapper,omitempty"`
	SellAssetID       string           `json:"sellAssetId"`
	BuyAssetID        string           `json:"buyAssetId"`
	SellAmount        decimal.Decimal  `json:"sellAmount"`
	SlippageTolerance *decimal.Decimal `json:"slippageTolerance,omitempty"`
	ReceiveAddress    string           `json:"receiveAddress,omitempty"`
}

type quoteResponse struct {
	Swapper swapper.Type      `json:"swapper"`
	Quote   *types.TradeQuote `json:"quote"`
}

// Quote handles POST /quote. Without a swapper the first venue supporting
// the pair is used.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, swapper.KindValidationFailed, "request body must be a valid quote request")
		return
	}
	if req.SellAssetID == "" || req.BuyAssetID == "" {
		WriteError(w, http.StatusBadRequest, swapper.KindValidationFailed, "sellAssetId and buyAssetId are required")
		return
	}

	sell, err := h.assets.ByID(req.SellAssetID)
	if err != nil {
		WriteError(w, http.StatusNotFound, swapper.KindNotFound, err.Error())
		return
	}
	buy, err := h.assets.ByID(req.BuyAssetID)
	if err != nil {
		WriteError(w, http.StatusNotFound, swapper.KindNotFound, err.Error())
		return
	}

	var s swapper.Swapper
	if req.Swapper != "" {
		s, err = h.manager.BySwapper(swapper.Type(req.Swapper))
	} else {
		s, err = h.manager.GetBestSwapper(sell.AssetID, buy.AssetID)
	}
	if err != nil {
		writeSwapperError(w, err)
		return
	}

	quote, err := s.GetTradeQuote(r.Context(), swapper.TradeQuoteInput{
		SellAsset:         sell,
		BuyAsset:          buy,
		SellAmount:        req.SellAmount,
		SlippageTolerance: req.SlippageTolerance,
		ReceiveAddress:    req.ReceiveAddress,
	})
	if err != nil {
		h.logger.Warn("quote failed", "swapper", s.Type(), "sell", sell.AssetID, "buy", buy.AssetID, "error", err)
		writeSwapperError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quoteResponse{Swapper: s.Type(), Quote: quote})
}
