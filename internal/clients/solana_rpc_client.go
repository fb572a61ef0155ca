package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SolanaRPCClient speaks the subset of the Solana JSON-RPC API the bot
// needs: recent blockhash, lamport balance, and signature status.
type SolanaRPCClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewSolanaRPCClient creates a Solana JSON-RPC client.
func NewSolanaRPCClient(endpoint string) *SolanaRPCClient {
	return &SolanaRPCClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type solanaRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type solanaRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// LatestBlockhash fetches a fresh blockhash for transaction building.
func (c *SolanaRPCClient) LatestBlockhash(ctx context.Context) (string, error) {
	raw, err := c.call(ctx, "getLatestBlockhash", []interface{}{
		map[string]string{"commitment": "finalized"},
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("parse blockhash response: %w", err)
	}
	if result.Value.Blockhash == "" {
		return "", fmt.Errorf("empty blockhash in response")
	}
	return result.Value.Blockhash, nil
}

// Balance returns the lamport balance of an account.
func (c *SolanaRPCClient) Balance(ctx context.Context, address string) (uint64, error) {
	raw, err := c.call(ctx, "getBalance", []interface{}{address})
	if err != nil {
		return 0, err
	}

	var result struct {
		Value uint64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("parse balance response: %w", err)
	}
	return result.Value, nil
}

// SignatureConfirmed reports whether a signature has been finalized and
// whether it succeeded. confirmed=false means the cluster has not finalized
// it yet (or has dropped it).
func (c *SolanaRPCClient) SignatureConfirmed(ctx context.Context, signature string) (confirmed bool, ok bool, err error) {
	raw, err := c.call(ctx, "getSignatureStatuses", []interface{}{
		[]string{signature},
		map[string]bool{"searchTransactionHistory": true},
	})
	if err != nil {
		return false, false, err
	}

	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return false, false, fmt.Errorf("parse signature status: %w", err)
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return false, false, nil
	}
	status := result.Value[0]
	if status.ConfirmationStatus != "finalized" && status.ConfirmationStatus != "confirmed" {
		return false, false, nil
	}
	failed := len(status.Err) > 0 && string(status.Err) != "null"
	return true, !failed, nil
}

func (c *SolanaRPCClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	defer observeVendor("solana_rpc", method, time.Now())
	reqBody, err := json.Marshal(solanaRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solana rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: c.endpoint, Body: string(body)}
	}

	var rpcResp solanaRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("parse rpc envelope: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, classifyVendorError(rpcResp.Error.Message, nil)
	}
	return rpcResp.Result, nil
}
