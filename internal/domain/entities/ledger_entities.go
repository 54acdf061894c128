package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
)

// TransactionType represents the kind of balance movement
type TransactionType string

const (
	TransactionTypeDeposit          TransactionType = "DEPOSIT"
	TransactionTypeWithdraw         TransactionType = "WITHDRAW"
	TransactionTypeIncomingTransfer TransactionType = "INCOMING_TRANSFER"
	TransactionTypeOutgoingTransfer TransactionType = "OUTGOING_TRANSFER"
)

// Validate checks if the transaction type is valid
func (t TransactionType) Validate() error {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw,
		TransactionTypeIncomingTransfer, TransactionTypeOutgoingTransfer:
		return nil
	default:
		return fmt.Errorf("invalid transaction type: %s", t)
	}
}

// TransactionStatus represents the status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusTimeout    TransactionStatus = "TIMEOUT"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
	TransactionStatusRejected   TransactionStatus = "REJECTED"
	TransactionStatusRefunded   TransactionStatus = "REFUNDED"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled,
		TransactionStatusRejected, TransactionStatusRefunded, TransactionStatusProcessing,
		TransactionStatusTimeout,
	},
	TransactionStatusProcessing: {
		TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled,
		TransactionStatusRejected, TransactionStatusRefunded, TransactionStatusTimeout,
	},
	TransactionStatusTimeout: {
		TransactionStatusProcessing, TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusRejected, TransactionStatusRefunded,
	},
}

// Validate checks if the transaction status is valid
func (s TransactionStatus) Validate() error {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusTimeout,
		TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled,
		TransactionStatusRejected, TransactionStatusRefunded:
		return nil
	default:
		return fmt.Errorf("invalid transaction status: %s", s)
	}
}

// IsTerminal reports whether no further transition is allowed
func (s TransactionStatus) IsTerminal() bool {
	_, ok := transactionTransitions[s]
	return !ok
}

// CanTransitionTo reports whether s may move to next
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MetadataKind tags which payload a TransactionMetadata carries
type MetadataKind string

const (
	MetadataKindTransfer   MetadataKind = "transfer"
	MetadataKindWithdrawal MetadataKind = "withdrawal"
)

// TransactionMetadata is stored as JSONB; exactly one payload matches Kind
type TransactionMetadata struct {
	Kind       MetadataKind        `json:"kind"`
	Transfer   *TransferMetadata   `json:"transfer,omitempty"`
	Withdrawal *WithdrawalMetadata `json:"withdrawal,omitempty"`
}

// TransferMetadata links the two legs of a transfer
type TransferMetadata struct {
	TransferType     TransferType    `json:"transfer_type"`
	FromWalletID     uuid.UUID       `json:"from_wallet_id"`
	ToWalletID       uuid.UUID       `json:"to_wallet_id"`
	FromCurrency     string          `json:"from_currency"`
	ToCurrency       string          `json:"to_currency"`
	FromType         WalletType      `json:"from_type"`
	ToType           WalletType      `json:"to_type"`
	Rate             decimal.Decimal `json:"rate"`
	ReceiveAmount    decimal.Decimal `json:"receive_amount"`
	RequiresLedger   bool            `json:"requires_ledger"`
	CounterpartLegID *uuid.UUID      `json:"counterpart_leg_id,omitempty"`
}

// WithdrawalMetadata keeps what is needed to submit, reconcile or refund a withdrawal
type WithdrawalMetadata struct {
	Provider       string           `json:"provider"`
	Chain          string           `json:"chain"`
	Network        string           `json:"network,omitempty"`
	ToAddress      string           `json:"to_address"`
	Memo           string           `json:"memo,omitempty"`
	InternalFee    decimal.Decimal  `json:"internal_fee"`
	ExternalFee    decimal.Decimal  `json:"external_fee"`
	NetAmount      decimal.Decimal  `json:"net_amount"`
	TotalDeduction decimal.Decimal  `json:"total_deduction"`
	ProviderStatus string           `json:"provider_status,omitempty"`
	ProviderFee    *decimal.Decimal `json:"provider_fee,omitempty"`
	Error          string           `json:"error,omitempty"`
	RejectReason   string           `json:"reject_reason,omitempty"`
}

// Transaction is one row per logical balance movement
type Transaction struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	UserID      uuid.UUID           `json:"user_id" db:"user_id"`
	WalletID    uuid.UUID           `json:"wallet_id" db:"wallet_id"`
	Type        TransactionType     `json:"type" db:"type"`
	Amount      decimal.Decimal     `json:"amount" db:"amount"`
	Fee         decimal.Decimal     `json:"fee" db:"fee"`
	Status      TransactionStatus   `json:"status" db:"status"`
	Metadata    TransactionMetadata `json:"metadata" db:"-"`
	ReferenceID *string             `json:"reference_id,omitempty" db:"reference_id"`
	Description string              `json:"description" db:"description"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
}

// Validate validates the transaction
func (t *Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("transaction ID is required")
	}
	if t.WalletID == uuid.Nil {
		return fmt.Errorf("wallet ID is required")
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if t.Fee.IsNegative() {
		return fmt.Errorf("fee cannot be negative")
	}
	switch t.Metadata.Kind {
	case MetadataKindTransfer:
		if t.Metadata.Transfer == nil {
			return fmt.Errorf("transfer metadata is required")
		}
	case MetadataKindWithdrawal:
		if t.Metadata.Withdrawal == nil {
			return fmt.Errorf("withdrawal metadata is required")
		}
	case "":
	default:
		return fmt.Errorf("invalid metadata kind: %s", t.Metadata.Kind)
	}
	return nil
}

// TransitionTo moves the transaction to next or reports an illegal transition
func (t *Transaction) TransitionTo(next TransactionStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return apperrors.InvalidStatusTransitionError(string(t.Status), string(next))
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.Metadata.Transfer != nil {
		tm := *t.Metadata.Transfer
		c.Metadata.Transfer = &tm
	}
	if t.Metadata.Withdrawal != nil {
		wm := *t.Metadata.Withdrawal
		c.Metadata.Withdrawal = &wm
	}
	if t.ReferenceID != nil {
		ref := *t.ReferenceID
		c.ReferenceID = &ref
	}
	return &c
}

// AdminProfitType names the operation a platform fee came from
type AdminProfitType string

const (
	AdminProfitTypeTransfer AdminProfitType = "TRANSFER"
	AdminProfitTypeWithdraw AdminProfitType = "WITHDRAW"
)

// AdminProfit records a platform fee
type AdminProfit struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Type          AdminProfitType `json:"type" db:"type"`
	TransactionID uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	Description   string          `json:"description" db:"description"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// PrivateLedgerEntry tracks the off-chain difference of one wallet on one chain
type PrivateLedgerEntry struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	WalletID           uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	Index              int             `json:"index" db:"idx"`
	Currency           string          `json:"currency" db:"currency"`
	Chain              string          `json:"chain" db:"chain"`
	Network            string          `json:"network" db:"network"`
	OffchainDifference decimal.Decimal `json:"offchain_difference" db:"offchain_difference"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// PrivateLedgerKey is the unique identity of a PrivateLedgerEntry
type PrivateLedgerKey struct {
	WalletID uuid.UUID
	Index    int
	Currency string
	Chain    string
	Network  string
}

// Key returns the entry's unique key
func (e *PrivateLedgerEntry) Key() PrivateLedgerKey {
	return PrivateLedgerKey{
		WalletID: e.WalletID,
		Index:    e.Index,
		Currency: e.Currency,
		Chain:    e.Chain,
		Network:  e.Network,
	}
}
