package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/config"
)

// CustodyClient talks to the wallet custody vendor: wallet creation, lookup,
// and the RPC proxy used for signing and broadcasting transactions.
type CustodyClient struct {
	baseURL    string
	appID      string
	appSecret  string
	httpClient *http.Client
}

// CreateWalletRequest asks the vendor to create a wallet of the given type.
type CreateWalletRequest struct {
	ChainType string `json:"chain_type"` // "ethereum" | "solana"
}

// VendorWallet is the vendor's view of a custodial wallet.
type VendorWallet struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chain_type"`
}

// RPCRequest is the vendor RPC-proxy envelope. CAIP2 selects the network,
// Method the signing operation, Params the chain-specific payload.
type RPCRequest struct {
	CAIP2  string      `json:"caip2"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// EVMTransactionParams is the payload for eth_sendTransaction.
type EVMTransactionParams struct {
	Transaction EVMTransaction `json:"transaction"`
}

// EVMTransaction is the {from,to,value,data} wire shape the vendor signs.
type EVMTransaction struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"` // 0x-prefixed hex quantity
	Data  string `json:"data,omitempty"`
}

// SolanaTransactionParams is the payload for signAndSendTransaction.
type SolanaTransactionParams struct {
	Transaction string `json:"transaction"` // base64-serialized
	Encoding    string `json:"encoding"`
}

// RPCResponse is the vendor acknowledgement. Data shapes vary across vendor
// versions; the normalizer in services deals with that.
type RPCResponse struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
}

type vendorErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewCustodyClient creates a custody vendor client.
func NewCustodyClient(cfg config.CustodyConfig, timeout time.Duration) *CustodyClient {
	return &CustodyClient{
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateWallet provisions a new custodial wallet at the vendor.
func (c *CustodyClient) CreateWallet(ctx context.Context, chainType string) (*VendorWallet, error) {
	defer observeVendor("custody", "create_wallet", time.Now())
	body, err := c.makeRequest(ctx, http.MethodPost, "/v1/wallets", CreateWalletRequest{ChainType: chainType})
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	var wallet VendorWallet
	if err := json.Unmarshal(body, &wallet); err != nil {
		return nil, fmt.Errorf("parse create wallet response: %w", err)
	}
	if wallet.Address == "" {
		return nil, &RejectedError{Reason: "vendor returned wallet without address"}
	}
	return &wallet, nil
}

// GetWallet verifies a wallet id is still known to the vendor.
func (c *CustodyClient) GetWallet(ctx context.Context, walletID string) (*VendorWallet, error) {
	defer observeVendor("custody", "get_wallet", time.Now())
	body, err := c.makeRequest(ctx, http.MethodGet, "/v1/wallets/"+walletID, nil)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	var wallet VendorWallet
	if err := json.Unmarshal(body, &wallet); err != nil {
		return nil, fmt.Errorf("parse wallet response: %w", err)
	}
	return &wallet, nil
}

// SendTransaction submits a sign-and-broadcast request through the vendor
// RPC proxy. Vendor-reported failures come back typed: *TransientError for
// the retryable blockhash class, *RejectedError otherwise.
func (c *CustodyClient) SendTransaction(ctx context.Context, walletID string, req RPCRequest) (*RPCResponse, error) {
	defer observeVendor("custody", "send_transaction", time.Now())
	body, err := c.makeRequest(ctx, http.MethodPost, "/v1/wallets/"+walletID+"/rpc", req)
	if err != nil {
		return nil, err
	}

	var resp RPCResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse rpc response: %w", err)
	}
	if resp.Error != "" {
		return nil, classifyVendorError(resp.Error, nil)
	}
	return &resp, nil
}

// authToken mints a short-lived HS256 token from the app secret. The vendor
// validates the iss/sub pair against the registered application.
func (c *CustodyClient) authToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": "hedwig",
		"sub": c.appID,
		"iat": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.appSecret))
	if err != nil {
		return "", fmt.Errorf("sign auth token: %w", err)
	}
	return signed, nil
}

func (c *CustodyClient) makeRequest(ctx context.Context, method, path string, data interface{}) ([]byte, error) {
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

	token, err := c.authToken()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-App-ID", c.appID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custody request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Vendor errors on the RPC proxy carry a message body worth
		// classifying; everything else surfaces as a status error.
		var vendorErr vendorErrorBody
		if json.Unmarshal(responseBody, &vendorErr) == nil {
			msg := vendorErr.Error
			if msg == "" {
				msg = vendorErr.Message
			}
			if msg != "" {
				logrus.WithFields(logrus.Fields{
					"status": resp.StatusCode,
					"path":   path,
					"error":  msg,
				}).Warn("custody vendor rejected request")
				return nil, classifyVendorError(msg, &HTTPStatusError{
					StatusCode: resp.StatusCode,
					URL:        url,
					Body:       string(responseBody),
				})
			}
		}
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: url, Body: string(responseBody)}
	}

	return responseBody, nil
}
