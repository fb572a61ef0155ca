package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/events"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
	"github.com/nonyonah/hedwig/internal/templates"
	"github.com/nonyonah/hedwig/internal/utils"
)

// chatSender is the subset of the Telegram client the notifier uses.
type chatSender interface {
	SendMessage(ctx context.Context, chatID, text string, buttons []clients.InlineButton) error
}

// DepositEvent is a custody-vendor transaction event for an incoming
// transfer to one of our wallets.
type DepositEvent struct {
	ToAddress string
	From      string
	TxHash    string
	Chain     string
	Amount    string
	Asset     string
}

// NotificationService turns custody webhook events into chat notifications.
type NotificationService struct {
	wallets      repository.WalletRepository
	users        repository.UserRepository
	transactions repository.TransactionRepository
	chat         chatSender
	registry     *utils.ChainRegistry
	bus          eventPublisher
}

// NewNotificationService creates a NotificationService. bus may be nil.
func NewNotificationService(
	wallets repository.WalletRepository,
	users repository.UserRepository,
	transactions repository.TransactionRepository,
	chat chatSender,
	registry *utils.ChainRegistry,
	bus eventPublisher,
) *NotificationService {
	return &NotificationService{
		wallets:      wallets,
		users:        users,
		transactions: transactions,
		chat:         chat,
		registry:     registry,
		bus:          bus,
	}
}

// HandleDeposit records an incoming transfer and notifies the wallet owner.
// The record is upserted by tx hash, so redelivered webhook events are
// harmless. A deposit to an address we do not hold is ignored.
func (s *NotificationService) HandleDeposit(ctx context.Context, event DepositEvent) error {
	wallet, err := s.wallets.GetByAddress(ctx, event.ToAddress)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("address", event.ToAddress).Debug("deposit to unknown address, ignoring")
			return nil
		}
		return err
	}

	txHash := event.TxHash
	record := &models.TransactionRecord{
		ID:        uuid.NewString(),
		UserID:    wallet.UserID,
		WalletID:  wallet.ID,
		Chain:     models.Chain(event.Chain),
		TxHash:    &txHash,
		Action:    models.ActionDeposit,
		Status:    models.TxStatusConfirmed,
		Recipient: event.ToAddress,
		Amount:    event.Amount,
		Asset:     event.Asset,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.transactions.UpsertByTxHash(ctx, record); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, wallet.UserID)
	if err != nil {
		return err
	}

	msg := templates.RenderDeposit(templates.StatusData{
		Amount:      event.Amount,
		Asset:       event.Asset,
		Chain:       event.Chain,
		ExplorerURL: s.registry.ExplorerTxURL(event.Chain, event.TxHash),
	}, event.From)

	if err := s.chat.SendMessage(ctx, user.PlatformChatID, msg.Text, toInlineButtons(msg.Buttons)); err != nil {
		// The row is already persisted; notification failure is logged,
		// not propagated, so the webhook can still ack.
		logrus.WithError(err).WithField("user_id", user.ID).Warn("deposit notification failed")
	}

	if s.bus != nil {
		s.bus.Publish(events.SubjectDeposit, events.TransactionEvent{
			TransactionID: record.ID,
			UserID:        wallet.UserID,
			Chain:         event.Chain,
			TxHash:        event.TxHash,
			Action:        string(models.ActionDeposit),
			Status:        string(models.TxStatusConfirmed),
			Amount:        event.Amount,
			Asset:         event.Asset,
			OccurredAt:    time.Now(),
		})
	}
	return nil
}

// toInlineButtons converts template buttons to the Telegram wire shape.
func toInlineButtons(buttons []templates.Button) []clients.InlineButton {
	out := make([]clients.InlineButton, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, clients.InlineButton{Text: b.Label, URL: b.URL, CallbackData: b.Data})
	}
	return out
}
