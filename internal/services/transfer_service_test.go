package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/utils"
)

const (
	testEVMRecipient = "0x52908400098527886E0F7030069857D2E4169EE7"
	testSolRecipient = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	testSolSender    = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
)

// fakeWalletRepo is an in-memory WalletRepository. onCreate, when set,
// replaces the insert behavior so tests can stage constraint violations.
type fakeWalletRepo struct {
	wallets  map[string]*models.Wallet // key: userID|chain
	creates  int
	onCreate func(*models.Wallet) error
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[string]*models.Wallet)}
}

func (f *fakeWalletRepo) key(userID string, chain models.Chain) string {
	return userID + "|" + string(chain)
}

func (f *fakeWalletRepo) Create(_ context.Context, wallet *models.Wallet) error {
	if f.onCreate != nil {
		return f.onCreate(wallet)
	}
	f.creates++
	f.wallets[f.key(wallet.UserID, wallet.Chain)] = wallet
	return nil
}

func (f *fakeWalletRepo) GetByUserAndChain(_ context.Context, userID string, chain models.Chain) (*models.Wallet, error) {
	if w, ok := f.wallets[f.key(userID, chain)]; ok {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeWalletRepo) GetByAddress(_ context.Context, address string) (*models.Wallet, error) {
	for _, w := range f.wallets {
		if w.Address == address {
			return w, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeWalletRepo) ListByUser(_ context.Context, userID string) ([]*models.Wallet, error) {
	var out []*models.Wallet
	for _, w := range f.wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

// fakeTxRepo is an in-memory TransactionRepository.
type fakeTxRepo struct {
	records map[string]*models.TransactionRecord
}

func newFakeTxRepo() *fakeTxRepo {
	return &fakeTxRepo{records: make(map[string]*models.TransactionRecord)}
}

func (f *fakeTxRepo) Create(_ context.Context, tx *models.TransactionRecord) error {
	cp := *tx
	f.records[tx.ID] = &cp
	return nil
}

func (f *fakeTxRepo) GetByID(_ context.Context, id string) (*models.TransactionRecord, error) {
	if r, ok := f.records[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTxRepo) GetByTxHash(_ context.Context, txHash string) (*models.TransactionRecord, error) {
	for _, r := range f.records {
		if r.TxHash != nil && *r.TxHash == txHash {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTxRepo) ListByUser(_ context.Context, userID string, _ int) ([]*models.TransactionRecord, error) {
	var out []*models.TransactionRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTxRepo) FindPendingOlderThan(_ context.Context, cutoff time.Time) ([]*models.TransactionRecord, error) {
	var out []*models.TransactionRecord
	for _, r := range f.records {
		if r.Status == models.TxStatusPending && r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTxRepo) SetHash(_ context.Context, id, txHash string) error {
	if r, ok := f.records[id]; ok && r.TxHash == nil {
		r.TxHash = &txHash
	}
	return nil
}

func (f *fakeTxRepo) SetStatus(_ context.Context, id string, status models.TransactionStatus, errMsg string) error {
	if r, ok := f.records[id]; ok {
		r.Status = status
		if errMsg != "" {
			r.ErrorMsg = errMsg
		}
	}
	return nil
}

func (f *fakeTxRepo) UpsertByTxHash(_ context.Context, tx *models.TransactionRecord) error {
	for _, r := range f.records {
		if r.TxHash != nil && tx.TxHash != nil && *r.TxHash == *tx.TxHash {
			r.Status = tx.Status
			return nil
		}
	}
	cp := *tx
	f.records[tx.ID] = &cp
	return nil
}

func (f *fakeTxRepo) single(t *testing.T) *models.TransactionRecord {
	t.Helper()
	require.Len(t, f.records, 1)
	for _, r := range f.records {
		return r
	}
	return nil
}

// fakeCustody scripts SendTransaction outcomes per attempt.
type fakeCustody struct {
	requests  []clients.RPCRequest
	deadlines []bool // per call: did ctx carry a deadline
	responses []sendOutcome
}

type sendOutcome struct {
	resp *clients.RPCResponse
	err  error
}

func (f *fakeCustody) SendTransaction(ctx context.Context, _ string, req clients.RPCRequest) (*clients.RPCResponse, error) {
	_, hasDeadline := ctx.Deadline()
	f.deadlines = append(f.deadlines, hasDeadline)
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i].resp, f.responses[i].err
}

// fakeBlockhashes serves a different blockhash per call.
type fakeBlockhashes struct {
	calls int
}

func (f *fakeBlockhashes) LatestBlockhash(_ context.Context) (string, error) {
	f.calls++
	// Distinct valid 32-byte base58 values per attempt.
	raw := make([]byte, 32)
	raw[0] = byte(f.calls)
	return base58.Encode(raw), nil
}

func ackWithHash(hash string) *clients.RPCResponse {
	data, _ := json.Marshal(map[string]string{"hash": hash})
	return &clients.RPCResponse{Data: data}
}

func newTransferFixture(t *testing.T, custody *fakeCustody) (*TransferService, *fakeWalletRepo, *fakeTxRepo, *fakeBlockhashes) {
	t.Helper()
	walletRepo := newFakeWalletRepo()
	txRepo := newFakeTxRepo()
	blockhashes := &fakeBlockhashes{}
	registry := utils.NewChainRegistry()
	wallets := NewWalletService(walletRepo, nil, registry)
	svc := NewTransferService(custody, blockhashes, wallets, txRepo, registry, nil, nil, 3, 0, time.Minute)
	return svc, walletRepo, txRepo, blockhashes
}

func seedWallet(repo *fakeWalletRepo, userID string, chain models.Chain, address string) {
	repo.wallets[repo.key(userID, chain)] = &models.Wallet{
		ID:             "wallet-" + string(chain),
		UserID:         userID,
		Chain:          chain,
		Address:        address,
		VendorWalletID: "vendor-" + string(chain),
	}
}

func TestSendEVMNative(t *testing.T) {
	custody := &fakeCustody{responses: []sendOutcome{{resp: ackWithHash("0xhash1")}}}
	svc, walletRepo, txRepo, _ := newTransferFixture(t, custody)
	seedWallet(walletRepo, "u1", "base", "0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

	result, err := svc.Send(context.Background(), TransferRequest{
		UserID:    "u1",
		Chain:     "base",
		Recipient: testEVMRecipient,
		Amount:    "0.5",
		Asset:     "ETH",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xhash1", result.TxHash)
	assert.Equal(t, "https://basescan.org/tx/0xhash1", result.ExplorerURL)

	require.Len(t, custody.requests, 1)
	req := custody.requests[0]
	assert.Equal(t, "eip155:8453", req.CAIP2)
	assert.Equal(t, "eth_sendTransaction", req.Method)
	params := req.Params.(clients.EVMTransactionParams)
	assert.Equal(t, testEVMRecipient, params.Transaction.To)
	assert.Equal(t, "0x6f05b59d3b20000", params.Transaction.Value)
	assert.Empty(t, params.Transaction.Data)

	record := txRepo.single(t)
	assert.Equal(t, models.TxStatusPending, record.Status)
	require.NotNil(t, record.TxHash)
	assert.Equal(t, "0xhash1", *record.TxHash)
}

func TestSendERC20EncodesTransferCall(t *testing.T) {
	custody := &fakeCustody{responses: []sendOutcome{{resp: ackWithHash("0xhash2")}}}
	svc, walletRepo, _, _ := newTransferFixture(t, custody)
	seedWallet(walletRepo, "u1", "base", "0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

	_, err := svc.Send(context.Background(), TransferRequest{
		UserID:    "u1",
		Chain:     "base",
		Recipient: testEVMRecipient,
		Amount:    "25",
		Asset:     "USDC",
	})
	require.NoError(t, err)

	require.Len(t, custody.requests, 1)
	params := custody.requests[0].Params.(clients.EVMTransactionParams)
	// ERC20 transfers target the contract with a zero native value.
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", params.Transaction.To)
	assert.Equal(t, "0x0", params.Transaction.Value)
	assert.True(t, strings.HasPrefix(params.Transaction.Data, "0xa9059cbb"))
	// 25 USDC = 25e6 minor units, right-aligned in the second argument word.
	assert.True(t, strings.HasSuffix(params.Transaction.Data, fmt.Sprintf("%064x", 25_000_000)))
}

func TestSendSolanaRetriesOnlyTransientErrors(t *testing.T) {
	custody := &fakeCustody{responses: []sendOutcome{
		{err: &clients.TransientError{Reason: "blockhash not found"}},
		{resp: ackWithHash("solsig1")},
	}}
	svc, walletRepo, txRepo, blockhashes := newTransferFixture(t, custody)
	seedWallet(walletRepo, "u1", "solana", testSolSender)

	result, err := svc.Send(context.Background(), TransferRequest{
		UserID:    "u1",
		Chain:     "solana",
		Recipient: testSolRecipient,
		Amount:    "1",
		Asset:     "SOL",
	})
	require.NoError(t, err)
	assert.Equal(t, "solsig1", result.TxHash)

	// Two broadcasts, each built with a fresh blockhash.
	require.Len(t, custody.requests, 2)
	assert.Equal(t, 2, blockhashes.calls)
	first := custody.requests[0].Params.(clients.SolanaTransactionParams)
	second := custody.requests[1].Params.(clients.SolanaTransactionParams)
	assert.NotEqual(t, first.Transaction, second.Transaction)
	assert.Equal(t, "signAndSendTransaction", custody.requests[0].Method)

	assert.Equal(t, models.TxStatusPending, txRepo.single(t).Status)
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	custody := &fakeCustody{responses: []sendOutcome{
		{err: &clients.TransientError{Reason: "blockhash not found"}},
	}}
	svc, walletRepo, txRepo, _ := newTransferFixture(t, custody)
	seedWallet(walletRepo, "u1", "solana", testSolSender)

	_, err := svc.Send(context.Background(), TransferRequest{
		UserID:    "u1",
		Chain:     "solana",
		Recipient: testSolRecipient,
		Amount:    "1",
		Asset:     "SOL",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Len(t, custody.requests, 3)

	record := txRepo.single(t)
	assert.Equal(t, models.TxStatusFailed, record.Status)
	assert.NotEmpty(t, record.ErrorMsg)
}

func TestSendBoundsEachBroadcastAttempt(t *testing.T) {
	custody := &fakeCustody{responses: []sendOutcome{
		{err: &clients.TransientError{Reason: "blockhash not found"}},
		{resp: ackWithHash("0xok")},
	}}
	svc, walletRepo, _, _ := newTransferFixture(t, custody)
	seedWallet(walletRepo, "u1", "solana", testSolSender)

	_, err := svc.Send(context.Background(), TransferRequest{
		UserID:    "u1",
		Chain:     "solana",
		Recipient: testSolRecipient,
		Amount:    "1",
		Asset:     "SOL",
	})
	require.NoError(t, err)
	// Every attempt, retries included, runs under its own deadline even when
	// the caller's context has none.
	require.Len(t, custody.deadlines, 2)
	assert.Equal(t, []bool{true, true}, custody.deadlines)
}

func TestSendRejectionShortCircuits(t *testing.T) {
	custody := &fakeCustody{responses: []sendOutcome{
		{err: &clients.RejectedError{Reason: "insufficient funds"}},
	}}
	svc, walletRepo, txRepo, _ := newTransferFixture(t, custody)
	seedWallet(walletRepo, "u1", "base", "0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

	_, err := svc.Send(context.Background(), TransferRequest{
		UserID:    "u1",
		Chain:     "base",
		Recipient: testEVMRecipient,
		Amount:    "1",
		Asset:     "ETH",
	})
	require.Error(t, err)
	// A rejection is final on the first attempt; no rebuild, no retry.
	assert.Len(t, custody.requests, 1)
	assert.Equal(t, models.TxStatusFailed, txRepo.single(t).Status)
}

func TestSendWithoutWalletFails(t *testing.T) {
	custody := &fakeCustody{}
	svc, _, txRepo, _ := newTransferFixture(t, custody)

	_, err := svc.Send(context.Background(), TransferRequest{
		UserID:    "u1",
		Chain:     "base",
		Recipient: testEVMRecipient,
		Amount:    "1",
		Asset:     "ETH",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no base wallet")
	assert.Empty(t, custody.requests)
	assert.Empty(t, txRepo.records)
}

func TestSendValidatesRequestUpfront(t *testing.T) {
	custody := &fakeCustody{}
	svc, walletRepo, _, _ := newTransferFixture(t, custody)
	seedWallet(walletRepo, "u1", "base", "0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	seedWallet(walletRepo, "u1", "solana", testSolSender)

	cases := []TransferRequest{
		{UserID: "u1", Chain: "dogecoin", Recipient: testEVMRecipient, Amount: "1", Asset: "DOGE"},
		{UserID: "u1", Chain: "base", Recipient: testEVMRecipient, Amount: "1", Asset: "SHIB"},
		{UserID: "u1", Chain: "base", Recipient: "not-an-address", Amount: "1", Asset: "ETH"},
		{UserID: "u1", Chain: "base", Recipient: testEVMRecipient, Amount: "-1", Asset: "ETH"},
		{UserID: "u1", Chain: "solana", Recipient: testEVMRecipient, Amount: "1", Asset: "SOL"},
	}
	for _, req := range cases {
		_, err := svc.Send(context.Background(), req)
		assert.Error(t, err, "request %+v", req)
	}
	assert.Empty(t, custody.requests)
}

func TestNormalizeTxHash(t *testing.T) {
	mk := func(raw string) *clients.RPCResponse {
		return &clients.RPCResponse{Data: json.RawMessage(raw)}
	}

	assert.Equal(t, "0xabc", normalizeTxHash(mk(`{"hash":"0xabc"}`)))
	assert.Equal(t, "0xdef", normalizeTxHash(mk(`{"transaction_hash":"0xdef"}`)))
	assert.Equal(t, "0xabc", normalizeTxHash(mk(`{"hash":"0xabc","transaction_hash":"0xdef"}`)))
	assert.Equal(t, "baresig", normalizeTxHash(mk(`"baresig"`)))
	assert.Equal(t, "", normalizeTxHash(mk(`{"something":"else"}`)))
	assert.Equal(t, "", normalizeTxHash(mk(`12345`)))
	assert.Equal(t, "", normalizeTxHash(mk(``)))
	assert.Equal(t, "", normalizeTxHash(nil))
}
