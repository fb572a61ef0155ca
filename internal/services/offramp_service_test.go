package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/models"
)

type fakeOfframpVendor struct {
	rate           string
	accountName    string
	receiveAddress string
	orders         []clients.CreateOrderRequest
}

func (f *fakeOfframpVendor) GetRate(_ context.Context, asset, fiat, _ string) (*clients.RateQuote, error) {
	return &clients.RateQuote{Asset: asset, FiatCurrency: fiat, Rate: f.rate}, nil
}

func (f *fakeOfframpVendor) VerifyBankAccount(_ context.Context, account clients.BankAccount) (*clients.BankAccount, error) {
	if f.accountName == "" {
		return nil, &clients.RejectedError{Reason: "bank account could not be verified"}
	}
	account.AccountName = f.accountName
	return &account, nil
}

func (f *fakeOfframpVendor) CreateOrder(_ context.Context, req clients.CreateOrderRequest) (*clients.Order, error) {
	f.orders = append(f.orders, req)
	return &clients.Order{
		ID:             "ord-1",
		Reference:      req.Reference,
		Status:         "initiated",
		ReceiveAddress: f.receiveAddress,
		FiatAmount:     "153250.00",
	}, nil
}

type fakeOfframpRepo struct {
	orders map[string]*models.OfframpOrder // key: order ref
}

func newFakeOfframpRepo() *fakeOfframpRepo {
	return &fakeOfframpRepo{orders: make(map[string]*models.OfframpOrder)}
}

func (f *fakeOfframpRepo) Create(_ context.Context, order *models.OfframpOrder) error {
	cp := *order
	f.orders[order.OrderRef] = &cp
	return nil
}

func (f *fakeOfframpRepo) GetByOrderRef(_ context.Context, orderRef string) (*models.OfframpOrder, error) {
	if o, ok := f.orders[orderRef]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOfframpRepo) ListByUser(_ context.Context, userID string) ([]*models.OfframpOrder, error) {
	var out []*models.OfframpOrder
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOfframpRepo) SetStatus(_ context.Context, orderRef string, status models.OfframpStatus) error {
	if o, ok := f.orders[orderRef]; ok {
		o.Status = status
	}
	return nil
}

func TestCreateOrderDispatchesCryptoLeg(t *testing.T) {
	custody := &fakeCustody{responses: []sendOutcome{{resp: ackWithHash("0xleg")}}}
	transfers, walletRepo, txRepo, _ := newTransferFixture(t, custody)
	seedWallet(walletRepo, "u1", "base", "0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

	vendor := &fakeOfframpVendor{
		rate:           "1532.50",
		accountName:    "ADA LOVELACE",
		receiveAddress: testEVMRecipient,
	}
	repo := newFakeOfframpRepo()
	svc := NewOfframpService(vendor, repo, transfers, nil)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:       "u1",
		Chain:        "base",
		Amount:       "100",
		Asset:        "USDC",
		FiatCurrency: "NGN",
		BankAccount:  clients.BankAccount{Institution: "GTB", AccountNumber: "0123456789"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OfframpStatusProcessing, order.Status)
	assert.Equal(t, "153250.00", order.FiatAmount)
	assert.Contains(t, order.BankAccount, "ADA LOVELACE")

	// The crypto leg goes to the vendor's receive address as an offramp
	// action on the user's own wallet.
	record := txRepo.single(t)
	assert.Equal(t, models.ActionOfframp, record.Action)
	assert.Equal(t, testEVMRecipient, record.Recipient)

	require.Len(t, vendor.orders, 1)
	assert.Equal(t, "1532.50", vendor.orders[0].Rate)

	stored := repo.orders[order.OrderRef]
	require.NotNil(t, stored)
	assert.Equal(t, models.OfframpStatusProcessing, stored.Status)
}

func TestCreateOrderRejectsUnverifiableAccount(t *testing.T) {
	transfers, _, txRepo, _ := newTransferFixture(t, &fakeCustody{})
	vendor := &fakeOfframpVendor{rate: "1532.50"} // no account name: verification fails
	svc := NewOfframpService(vendor, newFakeOfframpRepo(), transfers, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:       "u1",
		Chain:        "base",
		Amount:       "100",
		Asset:        "USDC",
		FiatCurrency: "NGN",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify bank account")
	assert.Empty(t, vendor.orders)
	assert.Empty(t, txRepo.records)
}

func TestCreateOrderRejectsMissingReceiveAddress(t *testing.T) {
	transfers, _, txRepo, _ := newTransferFixture(t, &fakeCustody{})
	vendor := &fakeOfframpVendor{rate: "1532.50", accountName: "ADA LOVELACE"}
	svc := NewOfframpService(vendor, newFakeOfframpRepo(), transfers, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:       "u1",
		Chain:        "base",
		Amount:       "100",
		Asset:        "USDC",
		FiatCurrency: "NGN",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "receive address")
	assert.Empty(t, txRepo.records)
}

func TestUpdateOrderStatusMapsVendorVocabulary(t *testing.T) {
	repo := newFakeOfframpRepo()
	repo.orders["ref-1"] = &models.OfframpOrder{
		ID:       "o1",
		UserID:   "u1",
		OrderRef: "ref-1",
		Status:   models.OfframpStatusProcessing,
	}
	svc := NewOfframpService(&fakeOfframpVendor{}, repo, nil, nil)

	order, err := svc.UpdateOrderStatus(context.Background(), "ref-1", "fulfilled")
	require.NoError(t, err)
	assert.Equal(t, models.OfframpStatusSettled, order.Status)
	assert.Equal(t, models.OfframpStatusSettled, repo.orders["ref-1"].Status)
}

func TestUpdateOrderStatusUnknownReference(t *testing.T) {
	svc := NewOfframpService(&fakeOfframpVendor{}, newFakeOfframpRepo(), nil, nil)

	_, err := svc.UpdateOrderStatus(context.Background(), "missing", "fulfilled")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMapOfframpStatus(t *testing.T) {
	assert.Equal(t, models.OfframpStatusSettled, mapOfframpStatus("settled"))
	assert.Equal(t, models.OfframpStatusSettled, mapOfframpStatus("delivered"))
	assert.Equal(t, models.OfframpStatusRefunded, mapOfframpStatus("refunded"))
	assert.Equal(t, models.OfframpStatusExpired, mapOfframpStatus("cancelled"))
	assert.Equal(t, models.OfframpStatusProcessing, mapOfframpStatus("anything else"))
}
