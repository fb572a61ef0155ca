package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/events"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
)

// offrampAPI is the subset of the off-ramp client the service uses.
type offrampAPI interface {
	GetRate(ctx context.Context, asset, fiatCurrency, amount string) (*clients.RateQuote, error)
	VerifyBankAccount(ctx context.Context, account clients.BankAccount) (*clients.BankAccount, error)
	CreateOrder(ctx context.Context, req clients.CreateOrderRequest) (*clients.Order, error)
}

// OfframpService orchestrates crypto-to-fiat settlements: quote the rate,
// verify the destination bank account, open the vendor order, and move the
// crypto leg to the vendor's receive address through the dispatcher.
type OfframpService struct {
	vendor    offrampAPI
	orders    repository.OfframpRepository
	transfers *TransferService
	bus       eventPublisher
}

// NewOfframpService creates an OfframpService. bus may be nil.
func NewOfframpService(vendor offrampAPI, orders repository.OfframpRepository, transfers *TransferService, bus eventPublisher) *OfframpService {
	return &OfframpService{vendor: vendor, orders: orders, transfers: transfers, bus: bus}
}

// QuoteRate returns the vendor's current conversion rate.
func (s *OfframpService) QuoteRate(ctx context.Context, asset, fiatCurrency, amount string) (*clients.RateQuote, error) {
	return s.vendor.GetRate(ctx, asset, fiatCurrency, amount)
}

// VerifyBankAccount resolves the destination account holder's name so the
// user can confirm before funds move.
func (s *OfframpService) VerifyBankAccount(ctx context.Context, account clients.BankAccount) (*clients.BankAccount, error) {
	return s.vendor.VerifyBankAccount(ctx, account)
}

// CreateOrderInput is a validated off-ramp request.
type CreateOrderInput struct {
	UserID       string
	Chain        models.Chain
	Amount       string
	Asset        string
	FiatCurrency string
	BankAccount  clients.BankAccount
}

// CreateOrder opens the vendor order and dispatches the crypto leg to the
// vendor's receive address. The order row is persisted before the transfer
// so a dispatch failure leaves an auditable initiated order.
func (s *OfframpService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.OfframpOrder, error) {
	verified, err := s.vendor.VerifyBankAccount(ctx, in.BankAccount)
	if err != nil {
		return nil, fmt.Errorf("verify bank account: %w", err)
	}

	quote, err := s.vendor.GetRate(ctx, in.Asset, in.FiatCurrency, in.Amount)
	if err != nil {
		return nil, fmt.Errorf("quote rate: %w", err)
	}

	reference := uuid.NewString()
	vendorOrder, err := s.vendor.CreateOrder(ctx, clients.CreateOrderRequest{
		Amount:       in.Amount,
		Asset:        in.Asset,
		Network:      string(in.Chain),
		FiatCurrency: in.FiatCurrency,
		Rate:         quote.Rate,
		Recipient:    *verified,
		Reference:    reference,
	})
	if err != nil {
		return nil, fmt.Errorf("create vendor order: %w", err)
	}
	if vendorOrder.ReceiveAddress == "" {
		return nil, fmt.Errorf("vendor order %s has no receive address", vendorOrder.ID)
	}

	bankJSON, err := json.Marshal(verified)
	if err != nil {
		return nil, err
	}
	order := &models.OfframpOrder{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		OrderRef:     reference,
		Amount:       in.Amount,
		Asset:        in.Asset,
		Chain:        in.Chain,
		FiatCurrency: in.FiatCurrency,
		FiatAmount:   vendorOrder.FiatAmount,
		Rate:         quote.Rate,
		BankAccount:  string(bankJSON),
		Status:       models.OfframpStatusInitiated,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	if _, err := s.transfers.Send(ctx, TransferRequest{
		UserID:    in.UserID,
		Chain:     in.Chain,
		Recipient: vendorOrder.ReceiveAddress,
		Amount:    in.Amount,
		Asset:     in.Asset,
		Action:    models.ActionOfframp,
	}); err != nil {
		return nil, fmt.Errorf("dispatch crypto leg: %w", err)
	}

	if err := s.orders.SetStatus(ctx, reference, models.OfframpStatusProcessing); err != nil {
		logrus.WithError(err).WithField("order_ref", reference).Error("mark order processing")
	}
	order.Status = models.OfframpStatusProcessing
	return order, nil
}

// UpdateOrderStatus applies a vendor webhook status update.
func (s *OfframpService) UpdateOrderStatus(ctx context.Context, orderRef, vendorStatus string) (*models.OfframpOrder, error) {
	order, err := s.orders.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	status := mapOfframpStatus(vendorStatus)
	if err := s.orders.SetStatus(ctx, orderRef, status); err != nil {
		return nil, err
	}
	order.Status = status

	if s.bus != nil {
		s.bus.Publish(events.SubjectOfframpState, events.OfframpEvent{
			OrderRef:   orderRef,
			UserID:     order.UserID,
			Status:     string(status),
			OccurredAt: time.Now(),
		})
	}
	return order, nil
}

// ListOrders returns the user's off-ramp history.
func (s *OfframpService) ListOrders(ctx context.Context, userID string) ([]*models.OfframpOrder, error) {
	return s.orders.ListByUser(ctx, userID)
}

// mapOfframpStatus folds the vendor's status vocabulary onto ours.
func mapOfframpStatus(vendorStatus string) models.OfframpStatus {
	switch vendorStatus {
	case "fulfilled", "settled", "delivered", "completed":
		return models.OfframpStatusSettled
	case "refunded", "reverted":
		return models.OfframpStatusRefunded
	case "expired", "cancelled":
		return models.OfframpStatusExpired
	default:
		return models.OfframpStatusProcessing
	}
}
