package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nonyonah/hedwig/internal/config"
)

// OfframpClient talks to the fiat liquidity vendor: rate quotes, bank
// account verification, and settlement order creation.
type OfframpClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// RateQuote is the vendor's crypto-to-fiat conversion quote.
type RateQuote struct {
	Asset        string `json:"asset"`
	FiatCurrency string `json:"fiat_currency"`
	Rate         string `json:"rate"`
	ExpiresAt    string `json:"expires_at"`
}

// BankAccount identifies a fiat settlement destination.
type BankAccount struct {
	Institution   string `json:"institution"`
	AccountNumber string `json:"account_identifier"`
	AccountName   string `json:"account_name,omitempty"`
}

// CreateOrderRequest opens a settlement order at the vendor.
type CreateOrderRequest struct {
	Amount       string      `json:"amount"`
	Asset        string      `json:"token"`
	Network      string      `json:"network"`
	FiatCurrency string      `json:"currency"`
	Rate         string      `json:"rate"`
	Recipient    BankAccount `json:"recipient"`
	Reference    string      `json:"reference"`
}

// Order is the vendor's settlement order state.
type Order struct {
	ID             string `json:"id"`
	Reference      string `json:"reference"`
	Status         string `json:"status"`
	ReceiveAddress string `json:"receive_address"`
	FiatAmount     string `json:"recipient_amount"`
}

type offrampEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewOfframpClient creates an off-ramp vendor client.
func NewOfframpClient(cfg config.OfframpConfig) *OfframpClient {
	return &OfframpClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// GetRate quotes the conversion rate for an asset/fiat pair.
func (c *OfframpClient) GetRate(ctx context.Context, asset, fiatCurrency, amount string) (*RateQuote, error) {
	defer observeVendor("offramp", "get_rate", time.Now())
	path := fmt.Sprintf("/v1/rates/%s/%s/%s", asset, amount, fiatCurrency)
	data, err := c.makeRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("get rate: %w", err)
	}

	// The rate endpoint returns a bare decimal string in data.
	var rate string
	if err := json.Unmarshal(data, &rate); err != nil {
		return nil, fmt.Errorf("parse rate: %w", err)
	}
	return &RateQuote{Asset: asset, FiatCurrency: fiatCurrency, Rate: rate}, nil
}

// VerifyBankAccount resolves an account number to the holder's name. A
// verification failure is a rejection, not a transport error.
func (c *OfframpClient) VerifyBankAccount(ctx context.Context, account BankAccount) (*BankAccount, error) {
	defer observeVendor("offramp", "verify_account", time.Now())
	data, err := c.makeRequest(ctx, http.MethodPost, "/v1/verify-account", account)
	if err != nil {
		return nil, fmt.Errorf("verify bank account: %w", err)
	}

	var verified BankAccount
	if err := json.Unmarshal(data, &verified); err != nil {
		// Some deployments return just the resolved name.
		var name string
		if json.Unmarshal(data, &name) == nil && name != "" {
			account.AccountName = name
			return &account, nil
		}
		return nil, fmt.Errorf("parse verification response: %w", err)
	}
	if verified.AccountName == "" {
		return nil, &RejectedError{Reason: "bank account could not be verified"}
	}
	return &verified, nil
}

// CreateOrder opens a settlement order and returns the deposit address the
// crypto leg must be sent to.
func (c *OfframpClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	defer observeVendor("offramp", "create_order", time.Now())
	data, err := c.makeRequest(ctx, http.MethodPost, "/v1/sender/orders", req)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var order Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}
	return &order, nil
}

// GetOrder fetches the current state of a settlement order.
func (c *OfframpClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	defer observeVendor("offramp", "get_order", time.Now())
	data, err := c.makeRequest(ctx, http.MethodGet, "/v1/sender/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	var order Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}
	return &order, nil
}

func (c *OfframpClient) makeRequest(ctx context.Context, method, path string, data interface{}) (json.RawMessage, error) {
	url := c.baseURL + path

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("offramp request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope offrampEnvelope
	if err := json.Unmarshal(responseBody, &envelope); err != nil {
		return nil, fmt.Errorf("parse response envelope: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || envelope.Status == "error" {
		if envelope.Message != "" {
			return nil, &RejectedError{Reason: envelope.Message}
		}
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: url, Body: string(responseBody)}
	}
	return envelope.Data, nil
}
