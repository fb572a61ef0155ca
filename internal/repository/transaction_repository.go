package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nonyonah/hedwig/internal/models"
)

// TransactionRepository defines data access for transaction records.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.TransactionRecord) error
	GetByID(ctx context.Context, id string) (*models.TransactionRecord, error)
	GetByTxHash(ctx context.Context, txHash string) (*models.TransactionRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.TransactionRecord, error)
	FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.TransactionRecord, error)
	SetHash(ctx context.Context, id, txHash string) error
	SetStatus(ctx context.Context, id string, status models.TransactionStatus, errMsg string) error
	UpsertByTxHash(ctx context.Context, tx *models.TransactionRecord) error
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a TransactionRepository backed by gorm.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.TransactionRecord) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.TransactionRecord, error) {
	var tx models.TransactionRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) GetByTxHash(ctx context.Context, txHash string) (*models.TransactionRecord, error) {
	var tx models.TransactionRecord
	err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.TransactionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var txs []*models.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func (r *transactionRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.TransactionRecord, error) {
	var txs []*models.TransactionRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.TxStatusPending, cutoff).
		Find(&txs).Error
	return txs, err
}

// SetHash records the broadcast hash on a pending row. It refuses to
// overwrite an existing hash: once set, a tx hash is immutable.
func (r *transactionRepository) SetHash(ctx context.Context, id, txHash string) error {
	return r.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Where("id = ? AND tx_hash IS NULL", id).
		Update("tx_hash", txHash).Error
}

func (r *transactionRepository) SetStatus(ctx context.Context, id string, status models.TransactionStatus, errMsg string) error {
	updates := map[string]interface{}{"status": status}
	if errMsg != "" {
		updates["error_msg"] = errMsg
	}
	return r.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpsertByTxHash inserts a record keyed by tx hash, updating only the status
// on conflict. Used by the deposit webhook, which may deliver the same event
// more than once.
func (r *transactionRepository) UpsertByTxHash(ctx context.Context, tx *models.TransactionRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		Create(tx).Error
}
