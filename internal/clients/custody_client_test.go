package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonyonah/hedwig/internal/config"
)

func newTestCustodyClient(t *testing.T, handler http.HandlerFunc) *CustodyClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCustodyClient(config.CustodyConfig{
		BaseURL:   srv.URL,
		AppID:     "app-123",
		AppSecret: "test-secret",
	}, 5*time.Second)
}

func TestCustodyCreateWallet(t *testing.T) {
	var gotAuth, gotAppID string
	client := newTestCustodyClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/wallets", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotAppID = r.Header.Get("X-App-ID")

		var req CreateWalletRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "solana", req.ChainType)

		json.NewEncoder(w).Encode(VendorWallet{
			ID:        "w-1",
			Address:   "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
			ChainType: "solana",
		})
	})

	wallet, err := client.CreateWallet(context.Background(), "solana")
	require.NoError(t, err)
	assert.Equal(t, "w-1", wallet.ID)
	assert.Equal(t, "app-123", gotAppID)

	// The bearer token is a short-lived HS256 JWT over the app secret.
	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	token, err := jwt.Parse(strings.TrimPrefix(gotAuth, "Bearer "), func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "app-123", claims["sub"])
}

func TestCustodyCreateWalletWithoutAddressIsRejected(t *testing.T) {
	client := newTestCustodyClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(VendorWallet{ID: "w-1"})
	})

	_, err := client.CreateWallet(context.Background(), "ethereum")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
}

func TestCustodySendTransactionClassifiesBlockhashErrors(t *testing.T) {
	client := newTestCustodyClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/wallets/w-1/rpc", r.URL.Path)
		json.NewEncoder(w).Encode(RPCResponse{Error: "Blockhash not found"})
	})

	_, err := client.SendTransaction(context.Background(), "w-1", RPCRequest{
		CAIP2:  "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
		Method: "signAndSendTransaction",
	})
	var transient *TransientError
	require.ErrorAs(t, err, &transient)
	assert.Contains(t, transient.Reason, "Blockhash")
}

func TestCustodySendTransactionOtherErrorsAreRejections(t *testing.T) {
	client := newTestCustodyClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RPCResponse{Error: "insufficient funds for transfer"})
	})

	_, err := client.SendTransaction(context.Background(), "w-1", RPCRequest{Method: "eth_sendTransaction"})
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	var transient *TransientError
	assert.False(t, errors.As(err, &transient))
}

func TestCustodyNon2xxWithVendorBodyIsClassified(t *testing.T) {
	client := newTestCustodyClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "blockhash expired"})
	})

	_, err := client.SendTransaction(context.Background(), "w-1", RPCRequest{})
	var transient *TransientError
	require.ErrorAs(t, err, &transient)

	// The underlying status error stays reachable for logging.
	var status *HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusBadRequest, status.StatusCode)
}

func TestCustodyNon2xxWithoutBodyIsStatusError(t *testing.T) {
	client := newTestCustodyClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetWallet(context.Background(), "w-1")
	var status *HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusBadGateway, status.StatusCode)
}

func TestClassifyVendorError(t *testing.T) {
	for _, msg := range []string{
		"Blockhash not found",
		"block height exceeded; please rebuild",
		"the blockhash expired",
	} {
		var transient *TransientError
		assert.ErrorAs(t, classifyVendorError(msg, nil), &transient, "message %q", msg)
	}

	var rejected *RejectedError
	assert.ErrorAs(t, classifyVendorError("invalid signature", nil), &rejected)
}
