package adapters

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

func newLogEmailService(t *testing.T) (*EmailService, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	svc, err := NewEmailService(zap.New(core), EmailServiceConfig{
		Provider:  "log",
		FromEmail: "no-reply@ledger.local",
		BaseURL:   "https://app.example.com/",
	})
	require.NoError(t, err)
	return svc, logs
}

func TestNewEmailService_Validation(t *testing.T) {
	_, err := NewEmailService(zap.NewNop(), EmailServiceConfig{Provider: "sendgrid", FromEmail: "a@b.c"})
	assert.Error(t, err)
	_, err = NewEmailService(zap.NewNop(), EmailServiceConfig{Provider: "pigeon", FromEmail: "a@b.c"})
	assert.Error(t, err)
	_, err = NewEmailService(zap.NewNop(), EmailServiceConfig{Provider: "log"})
	assert.Error(t, err)
}

func transferLegs(status entities.TransactionStatus) (*entities.Transaction, *entities.Transaction) {
	meta := &entities.TransferMetadata{
		TransferType:  entities.TransferTypeClient,
		FromCurrency:  "USDT",
		ToCurrency:    "USD",
		FromType:      entities.WalletTypeSpot,
		ToType:        entities.WalletTypeFiat,
		ReceiveAmount: decimal.NewFromInt(98),
	}
	from := &entities.Transaction{
		ID:       uuid.New(),
		Amount:   decimal.NewFromInt(100),
		Fee:      decimal.NewFromInt(2),
		Status:   status,
		Metadata: entities.TransactionMetadata{Kind: entities.MetadataKindTransfer, Transfer: meta},
	}
	to := &entities.Transaction{ID: uuid.New(), Amount: decimal.NewFromInt(98), Status: status}
	return from, to
}

func TestSendTransferEmails_ClientTransferNotifiesBoth(t *testing.T) {
	svc, logs := newLogEmailService(t)
	sender := &entities.User{ID: uuid.New(), Email: "alice@example.com", FirstName: "Alice"}
	receiver := &entities.User{ID: uuid.New(), Email: "bob@example.com"}
	from, to := transferLegs(entities.TransactionStatusCompleted)

	require.NoError(t, svc.SendTransferEmails(context.Background(), sender, receiver, from, to))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "alice@example.com", entries[0].ContextMap()["to"])
	assert.Equal(t, "Transfer of 100 USDT", entries[0].ContextMap()["subject"])
	assert.Contains(t, entries[0].ContextMap()["body"], "https://app.example.com/finance/transactions/"+from.ID.String())
	assert.Equal(t, "bob@example.com", entries[1].ContextMap()["to"])
	assert.Equal(t, "You received 98 USD", entries[1].ContextMap()["subject"])
	assert.Contains(t, entries[1].ContextMap()["body"], "Hi there,")
}

func TestSendTransferEmails_WalletTransferNotifiesOnce(t *testing.T) {
	svc, logs := newLogEmailService(t)
	user := &entities.User{ID: uuid.New(), Email: "alice@example.com"}
	from, to := transferLegs(entities.TransactionStatusCompleted)

	require.NoError(t, svc.SendTransferEmails(context.Background(), user, user, from, to))
	assert.Len(t, logs.All(), 1)
}

func TestSendTransactionStatusUpdateEmail(t *testing.T) {
	svc, logs := newLogEmailService(t)
	ref := "wd-9"
	tx := &entities.Transaction{
		ID:          uuid.New(),
		Amount:      decimal.NewFromInt(100),
		Fee:         decimal.RequireFromString("0.5"),
		Status:      entities.TransactionStatusRejected,
		ReferenceID: &ref,
		Metadata: entities.TransactionMetadata{
			Kind:       entities.MetadataKindWithdrawal,
			Withdrawal: &entities.WithdrawalMetadata{Chain: "TRC20", ToAddress: "TAddr", RejectReason: "address flagged"},
		},
	}

	require.NoError(t, svc.SendTransactionStatusUpdateEmail(context.Background(), &entities.User{Email: "alice@example.com"}, tx))

	entry := logs.All()[0].ContextMap()
	assert.Equal(t, "Withdrawal rejected", entry["subject"])
	assert.Contains(t, entry["body"], "Reason: address flagged")
	assert.Contains(t, entry["body"], "Reference: wd-9")
}

func TestMessageHTMLEscapes(t *testing.T) {
	m := message{subject: "s", lines: []string{"<script>"}}
	assert.Contains(t, m.html(), "&lt;script&gt;")
	assert.NotContains(t, m.html(), "<script>")
}
