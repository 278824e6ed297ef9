package httpjson

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("0x-api-key"))
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "/v1/price", r.URL.Path)
			assert.Equal(t, "ETH", r.URL.Query().Get("sellToken"))
			fmt.Fprint(w, `{"price":"1.5"}`)
		case http.MethodPost:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			fmt.Fprintf(w, `{"echo":%q}`, body["kind"])
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second).WithHeader("0x-api-key", "secret")

	var price struct{ Price string }
	require.NoError(t, c.Get(context.Background(), "v1/price", map[string][]string{"sellToken": {"ETH"}}, &price))
	assert.Equal(t, "1.5", price.Price)

	var echo struct{ Echo string }
	require.NoError(t, c.Post(context.Background(), "/v1/quote", map[string]string{"kind": "sell"}, &echo))
	assert.Equal(t, "sell", echo.Echo)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":111,"reason":"Gas estimation failed"}`)
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).Get(context.Background(), "/x", nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	assert.False(t, IsStatus(err, http.StatusNotFound))

	wrapped := fmt.Errorf("quote: %w", err)
	se, ok := AsStatus(wrapped)
	require.True(t, ok)
	assert.Contains(t, string(se.Body), "111")
}
