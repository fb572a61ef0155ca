package models

import (
	"time"
)

// Platform identifies the chat surface a user talks to the bot on.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
)

// Chain is the internal chain label. The full chain table lives in the
// chain registry; models only carry the label.
type Chain string

// TransactionAction is what the user asked the dispatcher to do.
type TransactionAction string

const (
	ActionSend    TransactionAction = "send"
	ActionSwap    TransactionAction = "swap"
	ActionBridge  TransactionAction = "bridge"
	ActionOfframp TransactionAction = "offramp"
	ActionDeposit TransactionAction = "deposit"
)

// TransactionStatus is the lifecycle state of a broadcast transaction.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusConfirmed TransactionStatus = "confirmed"
	TxStatusFailed    TransactionStatus = "failed"
)

// User is one chat identity across platforms.
type User struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	Platform       Platform  `json:"platform" gorm:"not null;uniqueIndex:idx_platform_chat"`
	PlatformChatID string    `json:"platform_chat_id" gorm:"not null;uniqueIndex:idx_platform_chat"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Wallet is a custodial wallet held by the vendor for one user on one chain.
// At most one wallet per (user, chain); the unique index makes the invariant
// a real constraint rather than a best-effort convention.
type Wallet struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	UserID         string    `json:"user_id" gorm:"not null;uniqueIndex:idx_user_chain"`
	Chain          Chain     `json:"chain" gorm:"not null;uniqueIndex:idx_user_chain"`
	Address        string    `json:"address" gorm:"not null;index"`
	VendorWalletID string    `json:"vendor_wallet_id" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// TransactionRecord is created optimistically before broadcast and finalized
// by the confirmation webhook or the reconciliation job. TxHash is unique
// when set and never overwritten.
type TransactionRecord struct {
	ID        string            `json:"id" gorm:"primaryKey"`
	UserID    string            `json:"user_id" gorm:"not null;index"`
	WalletID  string            `json:"wallet_id" gorm:"index"`
	Chain     Chain             `json:"chain" gorm:"not null"`
	TxHash    *string           `json:"tx_hash" gorm:"uniqueIndex:idx_tx_hash,where:tx_hash IS NOT NULL"`
	Action    TransactionAction `json:"action" gorm:"not null"`
	Status    TransactionStatus `json:"status" gorm:"not null;index"`
	Recipient string            `json:"recipient"`
	Amount    string            `json:"amount"`
	Asset     string            `json:"asset"`
	ErrorMsg  string            `json:"error_message" gorm:"type:text"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SessionContext holds per-user conversational state for slot-filling.
// Version implements an optimistic-concurrency check so two rapid messages
// from the same user cannot silently clobber each other.
type SessionContext struct {
	UserID          string         `json:"user_id" gorm:"primaryKey"`
	PendingIntent   string         `json:"pending_intent"`
	CollectedParams string         `json:"collected_params" gorm:"type:jsonb"`
	Version         int            `json:"version" gorm:"not null;default:0"`
	LastActive      time.Time      `json:"last_active"`
}

// InvoiceStatus lifecycle of an invoice or proposal.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
)

// Invoice is a billing document the user sends to a client.
type Invoice struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	UserID      string         `json:"user_id" gorm:"not null;index"`
	Number      string         `json:"number" gorm:"not null;uniqueIndex"`
	ClientName  string         `json:"client_name"`
	ClientEmail string         `json:"client_email"`
	Items       string         `json:"items" gorm:"type:jsonb"`
	Amount      string         `json:"amount" gorm:"not null"`
	Asset       string         `json:"asset" gorm:"not null"`
	Chain       Chain          `json:"chain"`
	Status      InvoiceStatus  `json:"status" gorm:"not null;default:'draft'"`
	PDFURL      string         `json:"pdf_url"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PaymentLinkStatus lifecycle of a payment link.
type PaymentLinkStatus string

const (
	PaymentLinkStatusOpen    PaymentLinkStatus = "open"
	PaymentLinkStatusPaid    PaymentLinkStatus = "paid"
	PaymentLinkStatusExpired PaymentLinkStatus = "expired"
)

// PaymentLink is a shareable request-for-payment.
type PaymentLink struct {
	ID         string            `json:"id" gorm:"primaryKey"`
	UserID     string            `json:"user_id" gorm:"not null;index"`
	Token      string            `json:"token" gorm:"not null;uniqueIndex"`
	Amount     string            `json:"amount" gorm:"not null"`
	Asset      string            `json:"asset" gorm:"not null"`
	Chain      Chain             `json:"chain" gorm:"not null"`
	Status     PaymentLinkStatus `json:"status" gorm:"not null;default:'open'"`
	PaidTxHash string            `json:"paid_tx_hash"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// OfframpStatus lifecycle of a crypto-to-fiat order at the liquidity vendor.
type OfframpStatus string

const (
	OfframpStatusInitiated  OfframpStatus = "initiated"
	OfframpStatusProcessing OfframpStatus = "processing"
	OfframpStatusSettled    OfframpStatus = "settled"
	OfframpStatusRefunded   OfframpStatus = "refunded"
	OfframpStatusExpired    OfframpStatus = "expired"
)

// OfframpOrder tracks a fiat settlement order.
type OfframpOrder struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	UserID       string         `json:"user_id" gorm:"not null;index"`
	OrderRef     string         `json:"order_ref" gorm:"not null;uniqueIndex"`
	Amount       string         `json:"amount" gorm:"not null"`
	Asset        string         `json:"asset" gorm:"not null"`
	Chain        Chain          `json:"chain" gorm:"not null"`
	FiatCurrency string         `json:"fiat_currency" gorm:"not null"`
	FiatAmount   string         `json:"fiat_amount"`
	Rate         string         `json:"rate"`
	BankAccount  string         `json:"bank_account" gorm:"type:jsonb"`
	Status       OfframpStatus  `json:"status" gorm:"not null;default:'initiated'"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
