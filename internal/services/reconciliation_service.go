package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/events"
	"github.com/nonyonah/hedwig/internal/metrics"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
	"github.com/nonyonah/hedwig/internal/utils"
)

// evmReceiptReader is the subset of the EVM RPC client the reconciler uses.
type evmReceiptReader interface {
	TransactionConfirmed(ctx context.Context, chain, txHash string) (mined bool, ok bool, err error)
}

// solanaSignatureReader is the subset of the Solana RPC client the reconciler uses.
type solanaSignatureReader interface {
	SignatureConfirmed(ctx context.Context, signature string) (confirmed bool, ok bool, err error)
}

// ReconciliationService periodically finalizes transaction records that are
// still pending: webhook deliveries can be lost, so chain state is the source
// of truth. Records without a hash past the stale cutoff are marked failed;
// they were never acknowledged by the vendor.
type ReconciliationService struct {
	transactions repository.TransactionRepository
	evm          evmReceiptReader
	sol          solanaSignatureReader
	registry     *utils.ChainRegistry
	bus          eventPublisher
	push         statusPusher

	interval   time.Duration
	pendingAge time.Duration
	staleAge   time.Duration

	scheduler gocron.Scheduler
}

// NewReconciliationService creates a ReconciliationService. bus and push may
// be nil. pendingAge is how long a record must have been pending before it is
// checked; staleAge is when a hashless record is given up on.
func NewReconciliationService(
	transactions repository.TransactionRepository,
	evm evmReceiptReader,
	sol solanaSignatureReader,
	registry *utils.ChainRegistry,
	bus eventPublisher,
	push statusPusher,
	interval, pendingAge, staleAge time.Duration,
) *ReconciliationService {
	if interval <= 0 {
		interval = time.Minute
	}
	if pendingAge <= 0 {
		pendingAge = 2 * time.Minute
	}
	if staleAge <= 0 {
		staleAge = time.Hour
	}
	return &ReconciliationService{
		transactions: transactions,
		evm:          evm,
		sol:          sol,
		registry:     registry,
		bus:          bus,
		push:         push,
		interval:     interval,
		pendingAge:   pendingAge,
		staleAge:     staleAge,
	}
}

// Start runs the reconciliation loop on its own scheduler.
func (s *ReconciliationService) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.scheduler = sched

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			defer cancel()
			s.RunOnce(ctx)
		}),
	)
	if err != nil {
		return err
	}

	sched.Start()
	logrus.WithField("interval", s.interval.String()).Info("reconciliation job started")
	return nil
}

// Stop shuts the scheduler down.
func (s *ReconciliationService) Stop() {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			logrus.WithError(err).Warn("reconciliation scheduler shutdown")
		}
	}
}

// RunOnce reconciles one batch of stale pending records. Per-record failures
// are logged and skipped so one bad row cannot stall the batch.
func (s *ReconciliationService) RunOnce(ctx context.Context) {
	pending, err := s.transactions.FindPendingOlderThan(ctx, time.Now().Add(-s.pendingAge))
	if err != nil {
		logrus.WithError(err).Error("load pending transactions for reconciliation")
		return
	}

	for _, record := range pending {
		if err := s.reconcile(ctx, record); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"transaction_id": record.ID,
				"chain":          record.Chain,
			}).Warn("reconcile transaction")
		}
	}
}

func (s *ReconciliationService) reconcile(ctx context.Context, record *models.TransactionRecord) error {
	if record.TxHash == nil || *record.TxHash == "" {
		// Never acknowledged by the vendor. Give the webhook a generous
		// window, then close the record out.
		if time.Since(record.CreatedAt) > s.staleAge {
			return s.finalize(ctx, record, models.TxStatusFailed, "no broadcast acknowledgement received")
		}
		return nil
	}

	chain := string(record.Chain)
	kind, known := s.registry.Kind(chain)
	if !known {
		return s.finalize(ctx, record, models.TxStatusFailed, "unknown chain")
	}

	var settled, succeeded bool
	var err error
	switch kind {
	case utils.ChainKindEVM:
		settled, succeeded, err = s.evm.TransactionConfirmed(ctx, chain, *record.TxHash)
	case utils.ChainKindSolana:
		settled, succeeded, err = s.sol.SignatureConfirmed(ctx, *record.TxHash)
	}
	if err != nil {
		return err
	}
	if !settled {
		if time.Since(record.CreatedAt) > s.staleAge {
			return s.finalize(ctx, record, models.TxStatusFailed, "not found on chain within reconciliation window")
		}
		return nil
	}

	if succeeded {
		return s.finalize(ctx, record, models.TxStatusConfirmed, "")
	}
	return s.finalize(ctx, record, models.TxStatusFailed, "reverted on chain")
}

func (s *ReconciliationService) finalize(ctx context.Context, record *models.TransactionRecord, status models.TransactionStatus, errMsg string) error {
	if err := s.transactions.SetStatus(ctx, record.ID, status, errMsg); err != nil {
		return err
	}
	metrics.ReconciledTransactions.WithLabelValues(string(record.Chain), string(status)).Inc()

	hash := ""
	if record.TxHash != nil {
		hash = *record.TxHash
	}
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
	subject := events.SubjectTxConfirmed
	if status == models.TxStatusFailed {
		subject = events.SubjectTxFailed
	}
	if s.bus != nil {
		s.bus.Publish(subject, event)
	}
	if s.push != nil {
		s.push.PushTransaction(record.UserID, event)
	}
	return nil
}
