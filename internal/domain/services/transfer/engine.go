// Package transfer moves value between wallets of one user or between users.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/internal/domain/services/fees"
	"github.com/rail-service/ledger_service/internal/domain/services/ledger"
	"github.com/rail-service/ledger_service/pkg/logger"
	"github.com/rail-service/ledger_service/pkg/metrics"
)

// RateSource converts between currencies held in different wallet types
type RateSource interface {
	ExchangeRate(ctx context.Context, from string, fromType entities.WalletType, to string, toType entities.WalletType) (decimal.Decimal, error)
}

// Notifier sends transfer e-mails
type Notifier interface {
	SendTransferEmails(ctx context.Context, sender, receiver *entities.User, from, to *entities.Transaction) error
}

// EventPublisher publishes ledger events after commit
type EventPublisher interface {
	Publish(ctx context.Context, event entities.LedgerEvent) error
}

// walletTransferPairs lists the wallet types each type may send to
var walletTransferPairs = map[entities.WalletType][]entities.WalletType{
	entities.WalletTypeFiat:    {entities.WalletTypeSpot, entities.WalletTypeEco},
	entities.WalletTypeSpot:    {entities.WalletTypeFiat, entities.WalletTypeEco},
	entities.WalletTypeEco:     {entities.WalletTypeFiat, entities.WalletTypeSpot, entities.WalletTypeFutures},
	entities.WalletTypeFutures: {entities.WalletTypeEco},
}

type ledgerRoute struct {
	transferType entities.TransferType
	from, to     entities.WalletType
}

// privateLedgerRoutes are the transfers settled PENDING with chain bookkeeping
var privateLedgerRoutes = func() map[ledgerRoute]bool {
	routes := map[ledgerRoute]bool{
		{entities.TransferTypeWallet, entities.WalletTypeEco, entities.WalletTypeFutures}: true,
		{entities.TransferTypeWallet, entities.WalletTypeFutures, entities.WalletTypeEco}: true,
	}
	for _, t := range []entities.WalletType{entities.WalletTypeFiat, entities.WalletTypeSpot, entities.WalletTypeEco, entities.WalletTypeFutures} {
		routes[ledgerRoute{entities.TransferTypeClient, entities.WalletTypeEco, t}] = true
		routes[ledgerRoute{entities.TransferTypeClient, t, entities.WalletTypeEco}] = true
	}
	return routes
}()

// IsAllowedPair reports whether from may send to to
func IsAllowedPair(from, to entities.WalletType) bool {
	for _, allowed := range walletTransferPairs[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RequiresPrivateLedger reports whether a transfer needs chain bookkeeping
func RequiresPrivateLedger(transferType entities.TransferType, from, to entities.WalletType) bool {
	return privateLedgerRoutes[ledgerRoute{transferType, from, to}]
}

// Engine executes transfers
type Engine struct {
	store      repositories.Store
	currencies repositories.CurrencyRepository
	rates      RateSource
	chains     *ledger.PrivateLedger
	notifier   Notifier
	events     EventPublisher
	logger     *logger.Logger
	tracer     trace.Tracer
}

// NewEngine creates a transfer engine
func NewEngine(
	store repositories.Store,
	currencies repositories.CurrencyRepository,
	rates RateSource,
	chains *ledger.PrivateLedger,
	notifier Notifier,
	events EventPublisher,
	logger *logger.Logger,
) *Engine {
	return &Engine{
		store:      store,
		currencies: currencies,
		rates:      rates,
		chains:     chains,
		notifier:   notifier,
		events:     events,
		logger:     logger,
		tracer:     otel.Tracer("ledger/transfer"),
	}
}

// quote is everything computed before the balance-mutating transaction
type quote struct {
	req            entities.TransferRequest
	recipientID    uuid.UUID
	fromPrecision  entities.Precision
	toPrecision    entities.Precision
	rate           decimal.Decimal
	fee            decimal.Decimal
	receive        decimal.Decimal
	requiresLedger bool
}

// Transfer debits the source wallet and credits (or parks) the destination.
// Everything from the balance change to the profit record commits atomically.
func (e *Engine) Transfer(ctx context.Context, settings entities.FinanceSettings, req entities.TransferRequest) (*entities.TransferResult, error) {
	ctx, span := e.tracer.Start(ctx, "transfer.Transfer")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("transfer").Observe(time.Since(start).Seconds())
	}()

	q, err := e.prepare(ctx, settings, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.TransfersTotal.WithLabelValues(string(req.TransferType), "rejected").Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.String("transfer.type", string(q.req.TransferType)),
		attribute.String("transfer.from", string(q.req.FromType)+":"+q.req.FromCurrency),
		attribute.String("transfer.to", string(q.req.ToType)+":"+q.req.ToCurrency),
		attribute.Bool("transfer.private_ledger", q.requiresLedger),
	)

	var result *entities.TransferResult
	err = e.store.WithinTx(ctx, func(repos repositories.Repositories) error {
		var err error
		result, err = e.apply(ctx, repos, q)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.TransfersTotal.WithLabelValues(string(q.req.TransferType), "failed").Inc()
		e.logger.Warn("Transfer failed",
			"user_id", q.req.UserID,
			"from", q.req.FromType, "to", q.req.ToType,
			"amount", q.req.Amount.String(),
			"error", err)
		return nil, err
	}

	status := result.FromTransaction.Status
	metrics.TransfersTotal.WithLabelValues(string(q.req.TransferType), string(status)).Inc()
	e.logger.Info("Transfer recorded",
		"outgoing_tx", result.FromTransaction.ID,
		"incoming_tx", result.ToTransaction.ID,
		"status", status,
		"fee", q.fee.String(),
		"receive", q.receive.String())

	e.afterCommit(ctx, q, result)
	return result, nil
}

func (e *Engine) prepare(ctx context.Context, settings entities.FinanceSettings, req entities.TransferRequest) (*quote, error) {
	req.FromCurrency = entities.NormalizeCurrency(req.FromCurrency)
	req.ToCurrency = entities.NormalizeCurrency(req.ToCurrency)

	if !req.Amount.IsPositive() {
		return nil, apperrors.ValidationError("amount", "amount must be greater than zero")
	}
	if err := req.FromType.Validate(); err != nil {
		return nil, apperrors.ValidationError("from_type", err.Error())
	}
	if err := req.ToType.Validate(); err != nil {
		return nil, apperrors.ValidationError("to_type", err.Error())
	}

	recipientID := req.UserID
	switch req.TransferType {
	case entities.TransferTypeWallet:
		if req.FromType == req.ToType {
			return nil, apperrors.ValidationError("to_type", "wallet transfers need different wallet types")
		}
		if !IsAllowedPair(req.FromType, req.ToType) {
			return nil, apperrors.ValidationError("to_type", fmt.Sprintf("transfers from %s to %s are not supported", req.FromType, req.ToType))
		}
	case entities.TransferTypeClient:
		if req.ClientID == nil || *req.ClientID == uuid.Nil {
			return nil, apperrors.ValidationError("client_id", "recipient is required")
		}
		if *req.ClientID == req.UserID {
			return nil, apperrors.ValidationError("client_id", "cannot transfer to yourself")
		}
		if req.FromType != req.ToType && !IsAllowedPair(req.FromType, req.ToType) {
			return nil, apperrors.ValidationError("to_type", fmt.Sprintf("transfers from %s to %s are not supported", req.FromType, req.ToType))
		}
		recipient, err := e.store.Repositories().Users.GetByID(ctx, *req.ClientID)
		if err != nil {
			return nil, err
		}
		if !recipient.IsActive() {
			return nil, apperrors.ValidationError("client_id", "recipient cannot receive transfers")
		}
		recipientID = recipient.ID
	default:
		return nil, apperrors.ValidationError("transfer_type", fmt.Sprintf("unsupported transfer type %q", req.TransferType))
	}

	fromCurrency, err := ledger.ActiveCurrency(ctx, e.currencies, req.FromCurrency, req.FromType)
	if err != nil {
		return nil, err
	}
	toCurrency, err := ledger.ActiveCurrency(ctx, e.currencies, req.ToCurrency, req.ToType)
	if err != nil {
		return nil, err
	}

	rate := decimal.NewFromInt(1)
	if req.FromCurrency != req.ToCurrency {
		rate, err = e.rates.ExchangeRate(ctx, req.FromCurrency, req.FromType, req.ToCurrency, req.ToType)
		if err != nil {
			return nil, err
		}
	}

	q := &quote{
		req:            req,
		recipientID:    recipientID,
		fromPrecision:  fromCurrency.DecimalPrecision(),
		toPrecision:    toCurrency.DecimalPrecision(),
		rate:           rate,
		requiresLedger: RequiresPrivateLedger(req.TransferType, req.FromType, req.ToType),
	}
	if !q.fromPrecision.Fits(req.Amount) {
		return nil, apperrors.ValidationError("amount", fmt.Sprintf("amount has more than %d decimal places", q.fromPrecision))
	}
	q.fee = q.fromPrecision.Round(fees.TransferFee(req.Amount, settings.WalletTransferFeePercentage))
	q.receive = q.toPrecision.Round(req.Amount.Sub(q.fee).Mul(rate))
	if !q.receive.IsPositive() {
		return nil, apperrors.ValidationError("amount", "amount is too small to cover the transfer fee")
	}
	return q, nil
}

func (e *Engine) apply(ctx context.Context, repos repositories.Repositories, q *quote) (*entities.TransferResult, error) {
	req := q.req
	source, err := repos.Wallets.GetByKey(ctx, entities.WalletKey{UserID: req.UserID, Currency: req.FromCurrency, Type: req.FromType})
	if err != nil {
		return nil, err
	}
	dest, err := ledger.GetOrCreateWallet(ctx, repos.Wallets, entities.WalletKey{UserID: q.recipientID, Currency: req.ToCurrency, Type: req.ToType})
	if err != nil {
		return nil, err
	}

	locked, err := ledger.LockWallets(ctx, repos.Wallets, source.ID, dest.ID)
	if err != nil {
		return nil, err
	}
	source, dest = locked[source.ID], locked[dest.ID]

	if err := ledger.Debit(ctx, repos.Wallets, source, req.Amount, q.fromPrecision); err != nil {
		return nil, err
	}

	status := entities.TransactionStatusCompleted
	if q.requiresLedger {
		status = entities.TransactionStatusPending
		if err := e.moveChainBalances(ctx, repos, source, dest, q); err != nil {
			return nil, err
		}
	} else if err := ledger.Credit(ctx, repos.Wallets, dest, q.receive, q.toPrecision); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	meta := entities.TransferMetadata{
		TransferType:   req.TransferType,
		FromWalletID:   source.ID,
		ToWalletID:     dest.ID,
		FromCurrency:   req.FromCurrency,
		ToCurrency:     req.ToCurrency,
		FromType:       req.FromType,
		ToType:         req.ToType,
		Rate:           q.rate,
		ReceiveAmount:  q.receive,
		RequiresLedger: q.requiresLedger,
	}
	outgoing := &entities.Transaction{
		ID:          uuid.New(),
		UserID:      req.UserID,
		WalletID:    source.ID,
		Type:        entities.TransactionTypeOutgoingTransfer,
		Amount:      req.Amount,
		Fee:         q.fee,
		Status:      status,
		Description: fmt.Sprintf("Transfer %s %s %s to %s %s", req.Amount, req.FromType, req.FromCurrency, req.ToType, req.ToCurrency),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	incoming := &entities.Transaction{
		ID:          uuid.New(),
		UserID:      q.recipientID,
		WalletID:    dest.ID,
		Type:        entities.TransactionTypeIncomingTransfer,
		Amount:      q.receive,
		Fee:         decimal.Zero,
		Status:      status,
		Description: fmt.Sprintf("Transfer %s %s %s from %s %s", q.receive, req.ToType, req.ToCurrency, req.FromType, req.FromCurrency),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	outMeta, inMeta := meta, meta
	outMeta.CounterpartLegID = &incoming.ID
	inMeta.CounterpartLegID = &outgoing.ID
	outgoing.Metadata = entities.TransactionMetadata{Kind: entities.MetadataKindTransfer, Transfer: &outMeta}
	incoming.Metadata = entities.TransactionMetadata{Kind: entities.MetadataKindTransfer, Transfer: &inMeta}

	if err := repos.Transactions.Create(ctx, outgoing); err != nil {
		return nil, fmt.Errorf("create outgoing transaction: %w", err)
	}
	if err := repos.Transactions.Create(ctx, incoming); err != nil {
		return nil, fmt.Errorf("create incoming transaction: %w", err)
	}

	if q.fee.IsPositive() {
		profit := &entities.AdminProfit{
			ID:            uuid.New(),
			Amount:        q.fee,
			Currency:      req.FromCurrency,
			Type:          entities.AdminProfitTypeTransfer,
			TransactionID: outgoing.ID,
			Description:   fmt.Sprintf("Transfer fee %s %s from %s to %s", q.fee, req.FromCurrency, req.FromType, req.ToType),
			CreatedAt:     now,
		}
		if err := repos.AdminProfits.Create(ctx, profit); err != nil {
			return nil, fmt.Errorf("create admin profit: %w", err)
		}
	}

	return &entities.TransferResult{FromTransaction: outgoing, ToTransaction: incoming}, nil
}

// moveChainBalances keeps the ECO chain attribution in step with a
// private-ledger transfer. Value only moves between chain maps when both
// sides are ECO in the same currency; otherwise it leaves the source.
func (e *Engine) moveChainBalances(ctx context.Context, repos repositories.Repositories, source, dest *entities.Wallet, q *quote) error {
	if source.Type != entities.WalletTypeEco {
		return nil
	}
	if dest.Type == entities.WalletTypeEco && source.Currency == dest.Currency {
		if _, err := e.chains.TransferAcrossChains(ctx, repos, source, dest, q.req.Amount.Sub(q.fee)); err != nil {
			return err
		}
		if q.fee.IsPositive() {
			if _, err := e.chains.DebitAcrossChains(ctx, repos, source, q.fee); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := e.chains.DebitAcrossChains(ctx, repos, source, q.req.Amount)
	return err
}

// CompletePendingTransfer settles a PENDING private-ledger transfer by
// crediting the destination and completing both legs.
func (e *Engine) CompletePendingTransfer(ctx context.Context, outgoingTxID uuid.UUID) (*entities.TransferResult, error) {
	ctx, span := e.tracer.Start(ctx, "transfer.CompletePendingTransfer")
	defer span.End()

	peek, err := e.store.Repositories().Transactions.GetByID(ctx, outgoingTxID)
	if err != nil {
		return nil, err
	}
	meta := peek.Metadata.Transfer
	if peek.Type != entities.TransactionTypeOutgoingTransfer || meta == nil || meta.CounterpartLegID == nil {
		return nil, apperrors.ValidationError("transaction", "not the outgoing leg of a transfer")
	}
	toCurrency, err := e.currencies.GetCurrency(ctx, meta.ToCurrency, meta.ToType)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("get currency: %w", err)
	}
	precision := entities.DefaultPrecision
	if toCurrency != nil {
		precision = toCurrency.DecimalPrecision()
	}

	var result *entities.TransferResult
	err = e.store.WithinTx(ctx, func(repos repositories.Repositories) error {
		outgoing, err := repos.Transactions.GetForUpdate(ctx, outgoingTxID)
		if err != nil {
			return err
		}
		if outgoing.Status != entities.TransactionStatusPending {
			return apperrors.InvalidStatusTransitionError(string(outgoing.Status), string(entities.TransactionStatusCompleted))
		}
		incoming, err := repos.Transactions.GetForUpdate(ctx, *outgoing.Metadata.Transfer.CounterpartLegID)
		if err != nil {
			return err
		}

		locked, err := ledger.LockWallets(ctx, repos.Wallets, incoming.WalletID)
		if err != nil {
			return err
		}
		if err := ledger.Credit(ctx, repos.Wallets, locked[incoming.WalletID], incoming.Amount, precision); err != nil {
			return err
		}

		for _, tx := range []*entities.Transaction{outgoing, incoming} {
			if err := tx.TransitionTo(entities.TransactionStatusCompleted); err != nil {
				return err
			}
			if err := repos.Transactions.Update(ctx, tx); err != nil {
				return fmt.Errorf("update transaction %s: %w", tx.ID, err)
			}
		}
		result = &entities.TransferResult{FromTransaction: outgoing, ToTransaction: incoming}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.TransfersTotal.WithLabelValues(string(meta.TransferType), string(entities.TransactionStatusCompleted)).Inc()
	e.logger.Info("Pending transfer completed", "outgoing_tx", outgoingTxID, "incoming_tx", result.ToTransaction.ID)
	e.publish(ctx, entities.NewLedgerEvent(entities.EventTransferCompleted, result.FromTransaction, meta.FromCurrency))
	return result, nil
}

// afterCommit sends e-mails and the ledger event. Failures are logged only.
func (e *Engine) afterCommit(ctx context.Context, q *quote, result *entities.TransferResult) {
	eventType := entities.EventTransferCompleted
	if result.FromTransaction.Status == entities.TransactionStatusPending {
		eventType = entities.EventTransferPending
	}
	e.publish(ctx, entities.NewLedgerEvent(eventType, result.FromTransaction, q.req.FromCurrency))

	if e.notifier == nil {
		return
	}
	users := e.store.Repositories().Users
	sender, err := users.GetByID(ctx, q.req.UserID)
	if err != nil {
		e.logger.Warn("Skipping transfer e-mails, sender lookup failed", "user_id", q.req.UserID, "error", err)
		return
	}
	receiver := sender
	if q.recipientID != q.req.UserID {
		if receiver, err = users.GetByID(ctx, q.recipientID); err != nil {
			e.logger.Warn("Skipping transfer e-mails, recipient lookup failed", "user_id", q.recipientID, "error", err)
			return
		}
	}
	if err := e.notifier.SendTransferEmails(ctx, sender, receiver, result.FromTransaction, result.ToTransaction); err != nil {
		e.logger.Error("Failed to send transfer e-mails", "outgoing_tx", result.FromTransaction.ID, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, event entities.LedgerEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Error("Failed to publish ledger event", "type", event.Type, "transaction_id", event.TransactionID, "error", err)
	}
}
