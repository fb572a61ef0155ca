// Package events defines the NATS subjects and payloads published on
// transaction lifecycle transitions.
package events

import "time"

// Subjects for transaction lifecycle events.
const (
	SubjectTxSubmitted  = "hedwig.tx.submitted"
	SubjectTxConfirmed  = "hedwig.tx.confirmed"
	SubjectTxFailed     = "hedwig.tx.failed"
	SubjectDeposit      = "hedwig.deposit.received"
	SubjectOfframpState = "hedwig.offramp.status"
)

// TransactionEvent is published when a dispatched transaction changes state.
type TransactionEvent struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Chain         string    `json:"chain"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount,omitempty"`
	Asset         string    `json:"asset,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// OfframpEvent is published when a settlement order changes state.
type OfframpEvent struct {
	OrderRef   string    `json:"order_ref"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}
