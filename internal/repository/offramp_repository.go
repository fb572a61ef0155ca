package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/models"
)

// OfframpRepository defines data access for fiat off-ramp orders.
type OfframpRepository interface {
	Create(ctx context.Context, order *models.OfframpOrder) error
	GetByOrderRef(ctx context.Context, orderRef string) (*models.OfframpOrder, error)
	ListByUser(ctx context.Context, userID string) ([]*models.OfframpOrder, error)
	SetStatus(ctx context.Context, orderRef string, status models.OfframpStatus) error
}

type offrampRepository struct {
	db *gorm.DB
}

// NewOfframpRepository creates an OfframpRepository backed by gorm.
func NewOfframpRepository(db *gorm.DB) OfframpRepository {
	return &offrampRepository{db: db}
}

func (r *offrampRepository) Create(ctx context.Context, order *models.OfframpOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *offrampRepository) GetByOrderRef(ctx context.Context, orderRef string) (*models.OfframpOrder, error) {
	var order models.OfframpOrder
	err := r.db.WithContext(ctx).Where("order_ref = ?", orderRef).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *offrampRepository) ListByUser(ctx context.Context, userID string) ([]*models.OfframpOrder, error) {
	var orders []*models.OfframpOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *offrampRepository) SetStatus(ctx context.Context, orderRef string, status models.OfframpStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.OfframpOrder{}).
		Where("order_ref = ?", orderRef).
		Update("status", status).Error
}
