// Package repository provides data access interfaces and implementations.
package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/models"
)

// ErrDuplicateWallet signals the (user, chain) unique constraint fired on
// insert: another request created the wallet first and the caller should
// re-read instead of failing.
var ErrDuplicateWallet = errors.New("wallet already exists for user and chain")

// WalletRepository defines data access for custodial wallets.
type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByUserAndChain(ctx context.Context, userID string, chain models.Chain) (*models.Wallet, error)
	GetByAddress(ctx context.Context, address string) (*models.Wallet, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Wallet, error)
}

type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a WalletRepository backed by gorm.
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

// Create inserts a wallet row. A unique violation on (user_id, chain) is
// translated to ErrDuplicateWallet.
func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	err := r.db.WithContext(ctx).Create(wallet).Error
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateWallet
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateWallet
	}
	return err
}

func (r *walletRepository) GetByUserAndChain(ctx context.Context, userID string, chain models.Chain) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND chain = ?", userID, chain).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) GetByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepository) ListByUser(ctx context.Context, userID string) ([]*models.Wallet, error) {
	var wallets []*models.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&wallets).Error
	return wallets, err
}
