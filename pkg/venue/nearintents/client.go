package nearintents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
)

// Enum values of the 1Click quote request
const (
	swapTypeExactInput       = "EXACT_INPUT"
	depositTypeOriginChain   = "ORIGIN_CHAIN"
	refundTypeOriginChain    = "ORIGIN_CHAIN"
	recipientTypeDestination = "DESTINATION_CHAIN"
)

// API is the subset of the 1Click API the venue uses
type API interface {
	Tokens(ctx context.Context) ([]oneclick.TokenResponse, error)
	Quote(ctx context.Context, req *oneclick.QuoteRequest) (*oneclick.QuoteResponse, error)
	SubmitDeposit(ctx context.Context, depositAddress, txHash string) error
	Status(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error)
}

// Client wraps the 1Click SDK
type Client struct {
	api      *oneclick.APIClient
	jwtToken string
}

// NewClient creates a 1Click client for baseURL. An empty jwtToken sends
// unauthenticated requests, which the API serves with a surcharge.
func NewClient(baseURL, jwtToken string, timeout time.Duration) *Client {
	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: baseURL}}
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:      oneclick.NewAPIClient(config),
		jwtToken: jwtToken,
	}
}

func (c *Client) authed(ctx context.Context) context.Context {
	if c.jwtToken == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
}

// apiError extracts the message of a failed call from the response body
func apiError(what string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(body) == 0 {
		return fmt.Errorf("failed to %s (status %d): %w", what, httpResp.StatusCode, err)
	}
	var errorResp map[string]any
	if json.Unmarshal(body, &errorResp) == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("failed to %s (status %d): %s", what, httpResp.StatusCode, message)
		}
	}
	return fmt.Errorf("failed to %s (status %d): %s", what, httpResp.StatusCode, string(body))
}

func checkStatus(what string, httpResp *http.Response) error {
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("failed to %s: API returned status code %d", what, httpResp.StatusCode)
	}
	return nil
}

// Tokens retrieves all supported tokens
func (c *Client) Tokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetTokens(c.authed(ctx)).Execute()
	if err != nil {
		return nil, apiError("get tokens", httpResp, err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus("get tokens", httpResp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Quote requests a quote. Non-dry quotes reserve a deposit address.
func (c *Client) Quote(ctx context.Context, req *oneclick.QuoteRequest) (*oneclick.QuoteResponse, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetQuote(c.authed(ctx)).QuoteRequest(*req).Execute()
	if err != nil {
		return nil, apiError("get quote", httpResp, err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus("get quote", httpResp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}
	return resp, nil
}

// SubmitDeposit tells the API which transaction funded depositAddress
func (c *Client) SubmitDeposit(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequestWithDefaults()
	req.SetTxHash(txHash)
	req.SetDepositAddress(depositAddress)

	_, httpResp, err := c.api.OneClickAPI.SubmitDepositTx(c.authed(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return apiError("submit deposit", httpResp, err)
	}
	defer httpResp.Body.Close()

	return checkStatus("submit deposit", httpResp)
}

// Status checks the execution status of the swap funded at depositAddress
func (c *Client) Status(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.api.OneClickAPI.GetExecutionStatus(c.authed(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, apiError("get status", httpResp, err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus("get status", httpResp); err != nil {
		return nil, err
	}
	return resp, nil
}

var _ API = (*Client)(nil)
