package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/models"
)

// PaymentLinkRepository defines data access for payment links.
type PaymentLinkRepository interface {
	Create(ctx context.Context, link *models.PaymentLink) error
	GetByToken(ctx context.Context, token string) (*models.PaymentLink, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PaymentLink, error)
	MarkPaid(ctx context.Context, token, txHash string) error
}

type paymentLinkRepository struct {
	db *gorm.DB
}

// NewPaymentLinkRepository creates a PaymentLinkRepository backed by gorm.
func NewPaymentLinkRepository(db *gorm.DB) PaymentLinkRepository {
	return &paymentLinkRepository{db: db}
}

func (r *paymentLinkRepository) Create(ctx context.Context, link *models.PaymentLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *paymentLinkRepository) GetByToken(ctx context.Context, token string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *paymentLinkRepository) ListByUser(ctx context.Context, userID string) ([]*models.PaymentLink, error) {
	var links []*models.PaymentLink
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&links).Error
	return links, err
}

// MarkPaid transitions an open link to paid exactly once.
func (r *paymentLinkRepository) MarkPaid(ctx context.Context, token, txHash string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentLink{}).
		Where("token = ? AND status = ?", token, models.PaymentLinkStatusOpen).
		Updates(map[string]interface{}{
			"status":       models.PaymentLinkStatusPaid,
			"paid_tx_hash": txHash,
		}).Error
}
