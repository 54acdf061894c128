package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEventType names a ledger event published after commit
type LedgerEventType string

const (
	EventTransferCompleted       LedgerEventType = "transfer.completed"
	EventTransferPending         LedgerEventType = "transfer.pending"
	EventWithdrawalStatusChanged LedgerEventType = "withdrawal.status_changed"
	EventWithdrawalRefunded      LedgerEventType = "withdrawal.refunded"
)

// LedgerEvent is the payload published for downstream consumers
type LedgerEvent struct {
	ID            uuid.UUID         `json:"id"`
	Type          LedgerEventType   `json:"type"`
	UserID        uuid.UUID         `json:"user_id"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	Status        TransactionStatus `json:"status"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// NewLedgerEvent builds an event for tx
func NewLedgerEvent(eventType LedgerEventType, tx *Transaction, currency string) LedgerEvent {
	return LedgerEvent{
		ID:            uuid.New(),
		Type:          eventType,
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      currency,
		OccurredAt:    time.Now().UTC(),
	}
}
