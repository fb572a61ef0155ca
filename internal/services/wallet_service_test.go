package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
	"github.com/nonyonah/hedwig/internal/utils"
)

// fakeCustodyAPI records wallet creations.
type fakeCustodyAPI struct {
	created    []string
	nextWallet *clients.VendorWallet
	err        error
}

func (f *fakeCustodyAPI) CreateWallet(_ context.Context, chainType string) (*clients.VendorWallet, error) {
	f.created = append(f.created, chainType)
	if f.err != nil {
		return nil, f.err
	}
	return f.nextWallet, nil
}

func (f *fakeCustodyAPI) GetWallet(_ context.Context, walletID string) (*clients.VendorWallet, error) {
	return &clients.VendorWallet{ID: walletID, Address: f.nextWallet.Address}, nil
}

func TestGetOrCreateProvisionsOnFirstUse(t *testing.T) {
	repo := newFakeWalletRepo()
	custody := &fakeCustodyAPI{nextWallet: &clients.VendorWallet{
		ID:      "vendor-1",
		Address: "0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	}}
	svc := NewWalletService(repo, custody, utils.NewChainRegistry())

	wallet, err := svc.GetOrCreate(context.Background(), "u1", "base")
	require.NoError(t, err)
	assert.Equal(t, "0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", wallet.Address)
	assert.Equal(t, "vendor-1", wallet.VendorWalletID)
	// EVM chains all map to the vendor's "ethereum" key type.
	assert.Equal(t, []string{"ethereum"}, custody.created)

	// Second call reuses the stored wallet, no vendor round trip.
	again, err := svc.GetOrCreate(context.Background(), "u1", "base")
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, again.ID)
	assert.Len(t, custody.created, 1)
}

func TestGetOrCreateSolanaUsesSolanaKeyType(t *testing.T) {
	repo := newFakeWalletRepo()
	custody := &fakeCustodyAPI{nextWallet: &clients.VendorWallet{
		ID:      "vendor-2",
		Address: testSolSender,
	}}
	svc := NewWalletService(repo, custody, utils.NewChainRegistry())

	_, err := svc.GetOrCreate(context.Background(), "u1", "solana")
	require.NoError(t, err)
	assert.Equal(t, []string{"solana"}, custody.created)
}

func TestGetOrCreateUnsupportedChain(t *testing.T) {
	svc := NewWalletService(newFakeWalletRepo(), &fakeCustodyAPI{}, utils.NewChainRegistry())

	_, err := svc.GetOrCreate(context.Background(), "u1", "dogecoin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported chain")
}

func TestGetOrCreateDuplicateRaceReturnsWinner(t *testing.T) {
	repo := newFakeWalletRepo()
	custody := &fakeCustodyAPI{nextWallet: &clients.VendorWallet{
		ID:      "vendor-loser",
		Address: "0x1111111111111111111111111111111111111111",
	}}
	svc := NewWalletService(repo, custody, utils.NewChainRegistry())

	winner := &models.Wallet{
		ID:             "wallet-winner",
		UserID:         "u1",
		Chain:          "base",
		Address:        "0x2222222222222222222222222222222222222222",
		VendorWalletID: "vendor-winner",
	}

	// The first read misses, the vendor call succeeds, and then the insert
	// collides with a concurrent request that won the unique constraint.
	// The winner's row lands just before the duplicate error comes back.
	repo.onCreate = func(_ *models.Wallet) error {
		repo.wallets[repo.key("u1", "base")] = winner
		return repository.ErrDuplicateWallet
	}

	wallet, err := svc.GetOrCreate(context.Background(), "u1", "base")
	require.NoError(t, err)
	// The loser adopts the winner's row instead of erroring or duplicating.
	assert.Equal(t, "wallet-winner", wallet.ID)
	assert.Equal(t, "vendor-winner", wallet.VendorWalletID)
	assert.Len(t, custody.created, 1)
}

func TestGetReturnsNilOnMiss(t *testing.T) {
	svc := NewWalletService(newFakeWalletRepo(), &fakeCustodyAPI{}, utils.NewChainRegistry())

	wallet, err := svc.Get(context.Background(), "u1", "base")
	require.NoError(t, err)
	assert.Nil(t, wallet)
}
