package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/events"
	"github.com/nonyonah/hedwig/internal/metrics"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
	"github.com/nonyonah/hedwig/internal/solana"
	"github.com/nonyonah/hedwig/internal/utils"
)

// erc20TransferSelector is the 4-byte selector for transfer(address,uint256).
var erc20TransferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// transactionSender is the subset of the custody client the dispatcher uses.
type transactionSender interface {
	SendTransaction(ctx context.Context, walletID string, req clients.RPCRequest) (*clients.RPCResponse, error)
}

// blockhashSource provides fresh blockhashes for Solana transaction builds.
type blockhashSource interface {
	LatestBlockhash(ctx context.Context) (string, error)
}

// eventPublisher is satisfied by the NATS client; nil-safe by design.
type eventPublisher interface {
	Publish(subject string, payload interface{})
}

// statusPusher streams transaction updates to connected dashboard sessions.
type statusPusher interface {
	PushTransaction(userID string, event events.TransactionEvent)
}

// TransferRequest is one user-initiated transfer. Chain is an explicit tag;
// the dispatcher never infers the chain from which fields are set.
type TransferRequest struct {
	UserID    string
	Chain     models.Chain
	Recipient string
	Amount    string
	Asset     string
	Action    models.TransactionAction
}

// TransferResult is the normalized outcome of a dispatch.
type TransferResult struct {
	TransactionID string
	TxHash        string
	ExplorerURL   string
}

// TransferService formats, dispatches, and records outbound transactions.
// The dispatch path is: build payload -> send via custody vendor -> on a
// transient blockhash error, rebuild with a fresh blockhash and retry up to
// the configured bound -> normalize the acknowledgement.
type TransferService struct {
	custody      transactionSender
	solanaRPC    blockhashSource
	wallets      *WalletService
	transactions repository.TransactionRepository
	registry     *utils.ChainRegistry
	bus          eventPublisher
	push         statusPusher

	maxAttempts int
	retryDelay  time.Duration
	sendTimeout time.Duration
}

// NewTransferService creates a TransferService. bus and push may be nil.
func NewTransferService(
	custody transactionSender,
	solanaRPC blockhashSource,
	wallets *WalletService,
	transactions repository.TransactionRepository,
	registry *utils.ChainRegistry,
	bus eventPublisher,
	push statusPusher,
	maxAttempts int,
	retryDelay time.Duration,
	sendTimeout time.Duration,
) *TransferService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &TransferService{
		custody:      custody,
		solanaRPC:    solanaRPC,
		wallets:      wallets,
		transactions: transactions,
		registry:     registry,
		bus:          bus,
		push:         push,
		maxAttempts:  maxAttempts,
		retryDelay:   retryDelay,
		sendTimeout:  sendTimeout,
	}
}

// Send dispatches a transfer from the user's custodial wallet. The
// transaction record is created optimistically before broadcast and the
// hash is attached once the vendor acknowledges.
func (s *TransferService) Send(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	kind, ok := s.registry.Kind(string(req.Chain))
	if !ok {
		return nil, fmt.Errorf("unsupported chain: %s", req.Chain)
	}
	token, ok := s.registry.Token(string(req.Chain), req.Asset)
	if !ok {
		return nil, fmt.Errorf("unsupported asset %s on %s", req.Asset, req.Chain)
	}
	if err := validateRecipient(kind, req.Recipient); err != nil {
		return nil, err
	}

	wallet, err := s.wallets.Get(ctx, req.UserID, req.Chain)
	if err != nil {
		return nil, fmt.Errorf("resolve wallet: %w", err)
	}
	if wallet == nil {
		return nil, fmt.Errorf("no %s wallet for user %s", req.Chain, req.UserID)
	}

	amount, err := utils.ToMinorUnits(req.Amount, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}

	action := req.Action
	if action == "" {
		action = models.ActionSend
	}
	record := &models.TransactionRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		WalletID:  wallet.ID,
		Chain:     req.Chain,
		Action:    action,
		Status:    models.TxStatusPending,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Asset:     token.Symbol,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.transactions.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	resp, err := s.dispatch(ctx, kind, wallet, token, req.Recipient, amount)
	if err != nil {
		if stErr := s.transactions.SetStatus(ctx, record.ID, models.TxStatusFailed, err.Error()); stErr != nil {
			logrus.WithError(stErr).WithField("transaction_id", record.ID).Error("mark transaction failed")
		}
		s.publish(record, "", models.TxStatusFailed)
		return nil, err
	}

	hash := normalizeTxHash(resp)
	if hash != "" {
		if err := s.transactions.SetHash(ctx, record.ID, hash); err != nil {
			logrus.WithError(err).WithField("transaction_id", record.ID).Error("attach tx hash")
		}
	} else {
		logrus.WithFields(logrus.Fields{
			"transaction_id": record.ID,
			"chain":          req.Chain,
		}).Warn("vendor acknowledgement contained no recognizable hash")
	}

	s.publish(record, hash, models.TxStatusPending)

	return &TransferResult{
		TransactionID: record.ID,
		TxHash:        hash,
		ExplorerURL:   s.registry.ExplorerTxURL(string(req.Chain), hash),
	}, nil
}

// dispatch runs the bounded retry loop. Only *clients.TransientError (the
// expired-blockhash class) triggers a rebuild; every other error is final
// on the first attempt.
func (s *TransferService) dispatch(
	ctx context.Context,
	kind utils.ChainKind,
	wallet *models.Wallet,
	token *utils.TokenInfo,
	recipient string,
	amount *big.Int,
) (*clients.RPCResponse, error) {
	chain := string(wallet.Chain)
	network := s.registry.VendorNetwork(chain)

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		payload, err := s.buildPayload(ctx, kind, wallet, token, recipient, amount)
		if err != nil {
			return nil, fmt.Errorf("format transaction: %w", err)
		}

		// One stalled vendor call must not eat the whole retry budget.
		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		resp, err := s.custody.SendTransaction(sendCtx, wallet.VendorWalletID, clients.RPCRequest{
			CAIP2:  network,
			Method: payload.method,
			Params: payload.params,
		})
		cancel()
		if err == nil {
			metrics.DispatchAttempts.WithLabelValues(chain, "success").Inc()
			return resp, nil
		}

		var transient *clients.TransientError
		if !errors.As(err, &transient) {
			metrics.DispatchAttempts.WithLabelValues(chain, "rejected").Inc()
			return nil, err
		}

		lastErr = err
		metrics.DispatchAttempts.WithLabelValues(chain, "transient").Inc()
		if attempt < s.maxAttempts {
			metrics.DispatchRetries.WithLabelValues(chain).Inc()
			logrus.WithFields(logrus.Fields{
				"chain":   chain,
				"attempt": attempt,
				"reason":  transient.Reason,
			}).Warn("transient dispatch error, rebuilding transaction")
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("dispatch failed after %d attempts: %w", s.maxAttempts, lastErr)
}

// builtPayload pairs the vendor RPC method with its chain-specific params.
type builtPayload struct {
	method string
	params interface{}
}

// buildPayload converts the validated request into the vendor wire shape.
// EVM amounts are hex-encoded minor units; Solana transfers are serialized
// with a blockhash fetched fresh for this attempt.
func (s *TransferService) buildPayload(
	ctx context.Context,
	kind utils.ChainKind,
	wallet *models.Wallet,
	token *utils.TokenInfo,
	recipient string,
	amount *big.Int,
) (*builtPayload, error) {
	switch kind {
	case utils.ChainKindEVM:
		tx := clients.EVMTransaction{From: wallet.Address}
		if token.Contract == "" {
			tx.To = recipient
			tx.Value = utils.EncodeHexValue(amount)
		} else {
			tx.To = token.Contract
			tx.Value = "0x0"
			tx.Data = encodeERC20Transfer(recipient, amount)
		}
		return &builtPayload{
			method: "eth_sendTransaction",
			params: clients.EVMTransactionParams{Transaction: tx},
		}, nil

	case utils.ChainKindSolana:
		if token.Contract != "" {
			return nil, fmt.Errorf("SPL token transfers are not supported yet: %s", token.Symbol)
		}
		blockhash, err := s.solanaRPC.LatestBlockhash(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch blockhash: %w", err)
		}
		if !amount.IsUint64() {
			return nil, fmt.Errorf("amount out of range for lamports")
		}
		serialized, err := solana.BuildTransferTransaction(solana.TransferParams{
			From:            wallet.Address,
			To:              recipient,
			Lamports:        amount.Uint64(),
			RecentBlockhash: blockhash,
		})
		if err != nil {
			return nil, err
		}
		return &builtPayload{
			method: "signAndSendTransaction",
			params: clients.SolanaTransactionParams{Transaction: serialized, Encoding: "base64"},
		}, nil

	default:
		return nil, fmt.Errorf("unknown chain kind: %s", kind)
	}
}

func validateRecipient(kind utils.ChainKind, recipient string) error {
	switch kind {
	case utils.ChainKindEVM:
		if !common.IsHexAddress(recipient) {
			return fmt.Errorf("invalid EVM recipient address: %s", recipient)
		}
	case utils.ChainKindSolana:
		if !solana.ValidAddress(recipient) {
			return fmt.Errorf("invalid Solana recipient address: %s", recipient)
		}
	}
	return nil
}

func encodeERC20Transfer(recipient string, amount *big.Int) string {
	data := make([]byte, 0, 68)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(recipient).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return hexutil.Encode(data)
}

// normalizeTxHash extracts the transaction hash from the acknowledgement.
// Vendor response shapes vary across versions: an object carrying "hash",
// one carrying "transaction_hash", or a bare string. Unknown shapes yield
// an empty hash, never an error.
func normalizeTxHash(resp *clients.RPCResponse) string {
	if resp == nil || len(resp.Data) == 0 {
		return ""
	}

	var obj struct {
		Hash            string `json:"hash"`
		TransactionHash string `json:"transaction_hash"`
	}
	if err := json.Unmarshal(resp.Data, &obj); err == nil {
		if obj.Hash != "" {
			return obj.Hash
		}
		if obj.TransactionHash != "" {
			return obj.TransactionHash
		}
	}

	var raw string
	if err := json.Unmarshal(resp.Data, &raw); err == nil {
		return raw
	}
	return ""
}

func (s *TransferService) publish(record *models.TransactionRecord, hash string, status models.TransactionStatus) {
	event := events.TransactionEvent{
		TransactionID: record.ID,
		UserID:        record.UserID,
		Chain:         string(record.Chain),
		TxHash:        hash,
		Action:        string(record.Action),
		Status:        string(status),
		Amount:        record.Amount,
		Asset:         record.Asset,
		OccurredAt:    time.Now(),
	}
	subject := events.SubjectTxSubmitted
	if status == models.TxStatusFailed {
		subject = events.SubjectTxFailed
	}
	if s.bus != nil {
		s.bus.Publish(subject, event)
	}
	if s.push != nil {
		s.push.PushTransaction(record.UserID, event)
	}
}
