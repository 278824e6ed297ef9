package api

import (
	"encoding/json"
	"net/http"

	"multiswap/pkg/swapper"
)

// WriteJSON writes data with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteError writes an error body with an explicit kind
func WriteError(w http.ResponseWriter, status int, kind swapper.Kind, message string) {
	WriteJSON(w, status, errorResponse{Kind: string(kind), Message: message})
}

// StatusOf maps a swapper error kind to an HTTP status
func StatusOf(kind swapper.Kind) int {
	switch kind {
	case swapper.KindValidationFailed:
		return http.StatusBadRequest
	case swapper.KindUnsupportedPair, swapper.KindUnsupportedChain, swapper.KindUnsupportedNamespace:
		return http.StatusUnprocessableEntity
	case swapper.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// writeSwapperError maps err by the outermost kind in its chain
func writeSwapperError(w http.ResponseWriter, err error) {
	kind := swapper.KindOf(err)
	if kind == "" {
		kind = swapper.KindResponseError
	}
	WriteError(w, StatusOf(kind), kind, err.Error())
}
