// Package services contains the orchestration layer between chat/API
// handlers and the vendor clients.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/metrics"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
	"github.com/nonyonah/hedwig/internal/utils"
)

// custodyAPI is the subset of the custody client the wallet service uses.
type custodyAPI interface {
	CreateWallet(ctx context.Context, chainType string) (*clients.VendorWallet, error)
	GetWallet(ctx context.Context, walletID string) (*clients.VendorWallet, error)
}

// WalletService resolves custodial wallets, creating them at the vendor on
// first use.
type WalletService struct {
	wallets  repository.WalletRepository
	custody  custodyAPI
	registry *utils.ChainRegistry
}

// NewWalletService creates a WalletService.
func NewWalletService(wallets repository.WalletRepository, custody custodyAPI, registry *utils.ChainRegistry) *WalletService {
	return &WalletService{wallets: wallets, custody: custody, registry: registry}
}

// GetOrCreate returns the user's wallet for a chain, creating it at the
// vendor and persisting it if this is the first request. A duplicate-key
// race on insert means another request won; the loser re-reads.
func (s *WalletService) GetOrCreate(ctx context.Context, userID string, chain models.Chain) (*models.Wallet, error) {
	kind, ok := s.registry.Kind(string(chain))
	if !ok {
		return nil, fmt.Errorf("unsupported chain: %s", chain)
	}

	wallet, err := s.wallets.GetByUserAndChain(ctx, userID, chain)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up wallet: %w", err)
	}

	chainType := "ethereum"
	if kind == utils.ChainKindSolana {
		chainType = "solana"
	}

	vendorWallet, err := s.custody.CreateWallet(ctx, chainType)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"chain":   chain,
		}).WithError(err).Error("custody wallet creation failed")
		return nil, fmt.Errorf("create wallet at custody vendor: %w", err)
	}

	wallet = &models.Wallet{
		ID:             uuid.NewString(),
		UserID:         userID,
		Chain:          chain,
		Address:        vendorWallet.Address,
		VendorWalletID: vendorWallet.ID,
		CreatedAt:      time.Now(),
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		if errors.Is(err, repository.ErrDuplicateWallet) {
			// Lost the race; the winner's row is authoritative.
			return s.wallets.GetByUserAndChain(ctx, userID, chain)
		}
		return nil, fmt.Errorf("persist wallet: %w", err)
	}

	metrics.WalletsCreated.WithLabelValues(string(chain)).Inc()
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"chain":   chain,
		"address": wallet.Address,
	}).Info("custodial wallet created")
	return wallet, nil
}

// Get returns the user's wallet for a chain without creating one. A miss is
// reported as (nil, nil): it is a normal branch, not an error.
func (s *WalletService) Get(ctx context.Context, userID string, chain models.Chain) (*models.Wallet, error) {
	wallet, err := s.wallets.GetByUserAndChain(ctx, userID, chain)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// List returns all of the user's wallets.
func (s *WalletService) List(ctx context.Context, userID string) ([]*models.Wallet, error) {
	return s.wallets.ListByUser(ctx, userID)
}

// Verify confirms the stored wallet is still known to the vendor.
func (s *WalletService) Verify(ctx context.Context, wallet *models.Wallet) error {
	vendorWallet, err := s.custody.GetWallet(ctx, wallet.VendorWalletID)
	if err != nil {
		return fmt.Errorf("verify wallet with vendor: %w", err)
	}
	if vendorWallet.Address != wallet.Address {
		return fmt.Errorf("vendor address mismatch for wallet %s", wallet.ID)
	}
	return nil
}
