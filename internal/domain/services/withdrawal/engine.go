// Package withdrawal reserves wallet balance, submits withdrawals to an
// exchange provider and refunds the reservation when submission fails.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rail-service/ledger_service/internal/adapters/exchange"
	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/internal/domain/repositories"
	"github.com/rail-service/ledger_service/internal/domain/services/fees"
	"github.com/rail-service/ledger_service/internal/domain/services/ledger"
	"github.com/rail-service/ledger_service/pkg/circuitbreaker"
	"github.com/rail-service/ledger_service/pkg/logger"
	"github.com/rail-service/ledger_service/pkg/metrics"
	"github.com/rail-service/ledger_service/pkg/retry"
)

// Notifier sends withdrawal status e-mails
type Notifier interface {
	SendTransactionStatusUpdateEmail(ctx context.Context, user *entities.User, tx *entities.Transaction) error
}

// EventPublisher publishes ledger events after commit
type EventPublisher interface {
	Publish(ctx context.Context, event entities.LedgerEvent) error
}

// ProviderRegistry resolves exchange providers by id
type ProviderRegistry interface {
	Get(id exchange.ProviderID) (exchange.Provider, error)
}

// Config holds withdrawal engine settings
type Config struct {
	Provider exchange.ProviderID
	// RefundPolicy retries the compensating refund. MaxRetries is forced to retry.Unlimited.
	RefundPolicy retry.Policy
	Breaker      circuitbreaker.Config
}

// DefaultConfig returns the production defaults for provider
func DefaultConfig(provider exchange.ProviderID) Config {
	return Config{
		Provider: provider,
		RefundPolicy: retry.Policy{
			MaxRetries:     retry.Unlimited,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2,
			Jitter:         true,
		},
		Breaker: circuitbreaker.Config{
			Name:             "withdrawal-provider",
			MaxRequests:      3,
			Interval:         time.Minute,
			Timeout:          60 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		},
	}
}

// Engine executes withdrawals
type Engine struct {
	store      repositories.Store
	currencies repositories.CurrencyRepository
	providers  ProviderRegistry
	provider   exchange.ProviderID
	breaker    *circuitbreaker.CircuitBreaker
	refunds    *retry.Retrier
	notifier   Notifier
	events     EventPublisher
	logger     *logger.Logger
	tracer     trace.Tracer
}

// NewEngine creates a withdrawal engine
func NewEngine(
	store repositories.Store,
	currencies repositories.CurrencyRepository,
	providers ProviderRegistry,
	config Config,
	notifier Notifier,
	events EventPublisher,
	logger *logger.Logger,
) *Engine {
	policy := config.RefundPolicy
	policy.MaxRetries = retry.Unlimited
	policy.RetryableFunc = isRefundRetryable

	return &Engine{
		store:      store,
		currencies: currencies,
		providers:  providers,
		provider:   config.Provider,
		breaker:    circuitbreaker.New(config.Breaker),
		refunds:    retry.NewRetrier(policy, logger.Zap()),
		notifier:   notifier,
		events:     events,
		logger:     logger,
		tracer:     otel.Tracer("ledger/withdrawal"),
	}
}

// isRefundRetryable stops retrying only when the refund can never succeed
func isRefundRetryable(err error) bool {
	return !errors.Is(err, apperrors.ErrInvalidStatusChange) &&
		!apperrors.IsNotFound(err) &&
		!apperrors.IsConflict(err) &&
		!apperrors.IsInvalidInput(err)
}

// refundStatus maps a terminal provider status other than COMPLETED to the
// status a refunded withdrawal ends in.
func refundStatus(status entities.TransactionStatus) (entities.TransactionStatus, bool) {
	switch {
	case !status.IsTerminal(), status == entities.TransactionStatusCompleted:
		return "", false
	case status == entities.TransactionStatusFailed:
		return entities.TransactionStatusCancelled, true
	default:
		return status, true
	}
}

// plan is the validated withdrawal before any mutation
type plan struct {
	req       entities.WithdrawalRequest
	precision entities.Precision
	fees      fees.WithdrawalBreakdown
}

// Withdraw validates and reserves a withdrawal, then submits it unless it
// needs approval. A provider failure refunds the reservation and returns an
// ExternalProvider error carrying the generic user message.
func (e *Engine) Withdraw(ctx context.Context, settings entities.FinanceSettings, req entities.WithdrawalRequest) (*entities.WithdrawalResult, error) {
	ctx, span := e.tracer.Start(ctx, "withdrawal.Withdraw")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("withdraw").Observe(time.Since(start).Seconds())
	}()

	p, err := e.validate(ctx, settings, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.WithdrawalsTotal.WithLabelValues(string(e.provider), "rejected").Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.String("withdrawal.currency", p.req.Currency),
		attribute.String("withdrawal.chain", p.req.Chain),
		attribute.String("withdrawal.wallet_type", string(p.req.WalletType)),
	)

	tx, err := e.reserve(ctx, p)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.WithdrawalsTotal.WithLabelValues(string(e.provider), "failed").Inc()
		return nil, err
	}
	e.logger.Info("Withdrawal reserved",
		"transaction_id", tx.ID,
		"user_id", tx.UserID,
		"total_deduction", p.fees.TotalDeduction.String())

	if settings.WithdrawApproval || p.req.WalletType == entities.WalletTypeFiat {
		metrics.WithdrawalsTotal.WithLabelValues(string(e.provider), string(entities.TransactionStatusPending)).Inc()
		e.publish(ctx, entities.NewLedgerEvent(entities.EventWithdrawalStatusChanged, tx, p.req.Currency))
		return &entities.WithdrawalResult{Transaction: tx}, nil
	}

	claimed, err := e.claim(ctx, tx.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result, err := e.submit(ctx, claimed)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (e *Engine) validate(ctx context.Context, settings entities.FinanceSettings, req entities.WithdrawalRequest) (*plan, error) {
	req.Currency = entities.NormalizeCurrency(req.Currency)

	if req.WalletType != entities.WalletTypeSpot && req.WalletType != entities.WalletTypeFiat {
		return nil, apperrors.ValidationError("wallet_type", "withdrawals are supported from SPOT and FIAT wallets only")
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.ValidationError("amount", "amount must be greater than zero")
	}
	if req.ToAddress == "" {
		return nil, apperrors.ValidationError("to_address", "destination address is required")
	}

	currency, err := ledger.ActiveCurrency(ctx, e.currencies, req.Currency, req.WalletType)
	if err != nil {
		return nil, err
	}
	network, ok := currency.Network(req.Chain)
	if !ok || !network.Active || !network.Withdraw {
		return nil, apperrors.ValidationError("chain", fmt.Sprintf("withdrawals of %s on %s are disabled", req.Currency, req.Chain))
	}

	precision := currency.NetworkPrecision(network)
	if !precision.Fits(req.Amount) {
		return nil, apperrors.ValidationError("amount", fmt.Sprintf("amount has more than %d decimal places", precision))
	}
	minimum, maximum := currency.WithdrawLimits(network)
	if minimum != nil && req.Amount.LessThan(*minimum) {
		return nil, apperrors.ValidationError("amount", fmt.Sprintf("minimum withdrawal is %s", minimum.String()))
	}
	if maximum != nil && maximum.IsPositive() && req.Amount.GreaterThan(*maximum) {
		return nil, apperrors.ValidationError("amount", fmt.Sprintf("maximum withdrawal is %s", maximum.String()))
	}

	pct := fees.PercentageFee{Platform: currency.PlatformPercentage(network)}
	if req.WalletType == entities.WalletTypeSpot {
		pct.Surcharge = settings.SpotWithdrawFee
	}
	breakdown := fees.WithdrawalFees(req.Amount, precision, pct, network.Fee, !settings.WithdrawChainFee)
	if !breakdown.NetAmount.IsPositive() {
		return nil, apperrors.ValidationError("amount", "amount does not cover the network fee")
	}

	return &plan{req: req, precision: precision, fees: breakdown}, nil
}

// reserve debits the total deduction and records the PENDING withdrawal in one transaction
func (e *Engine) reserve(ctx context.Context, p *plan) (*entities.Transaction, error) {
	req := p.req
	var tx *entities.Transaction

	err := e.store.WithinTx(ctx, func(repos repositories.Repositories) error {
		wallet, err := repos.Wallets.GetByKey(ctx, entities.WalletKey{UserID: req.UserID, Currency: req.Currency, Type: req.WalletType})
		if err != nil {
			return err
		}
		locked, err := ledger.LockWallets(ctx, repos.Wallets, wallet.ID)
		if err != nil {
			return err
		}
		wallet = locked[wallet.ID]

		if err := ledger.Debit(ctx, repos.Wallets, wallet, p.fees.TotalDeduction, p.precision); err != nil {
			return err
		}

		now := time.Now().UTC()
		tx = &entities.Transaction{
			ID:       uuid.New(),
			UserID:   req.UserID,
			WalletID: wallet.ID,
			Type:     entities.TransactionTypeWithdraw,
			Amount:   req.Amount,
			Fee:      p.fees.InternalFee,
			Status:   entities.TransactionStatusPending,
			Metadata: entities.TransactionMetadata{
				Kind: entities.MetadataKindWithdrawal,
				Withdrawal: &entities.WithdrawalMetadata{
					Provider:       string(e.provider),
					Chain:          req.Chain,
					ToAddress:      req.ToAddress,
					Memo:           req.Memo,
					InternalFee:    p.fees.InternalFee,
					ExternalFee:    p.fees.ExternalFee,
					NetAmount:      p.fees.NetAmount,
					TotalDeduction: p.fees.TotalDeduction,
				},
			},
			Description: fmt.Sprintf("Withdrawal of %s %s to %s", req.Amount, req.Currency, req.ToAddress),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Transactions.Create(ctx, tx); err != nil {
			return fmt.Errorf("create withdrawal transaction: %w", err)
		}

		if p.fees.InternalFee.IsPositive() {
			profit := &entities.AdminProfit{
				ID:            uuid.New(),
				Amount:        p.fees.InternalFee,
				Currency:      req.Currency,
				Type:          entities.AdminProfitTypeWithdraw,
				TransactionID: tx.ID,
				Description:   fmt.Sprintf("Withdrawal fee %s %s", p.fees.InternalFee, req.Currency),
				CreatedAt:     now,
			}
			if err := repos.AdminProfits.Create(ctx, profit); err != nil {
				return fmt.Errorf("create admin profit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// claim moves a PENDING withdrawal to PROCESSING under its row lock. Only
// the caller that wins the claim may submit it to the provider.
func (e *Engine) claim(ctx context.Context, txID uuid.UUID) (*entities.Transaction, error) {
	var claimed *entities.Transaction
	err := e.store.WithinTx(ctx, func(repos repositories.Repositories) error {
		tx, err := repos.Transactions.GetForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if tx.Type != entities.TransactionTypeWithdraw || tx.Metadata.Withdrawal == nil {
			return apperrors.ValidationError("transaction", "not a withdrawal")
		}
		if tx.Status != entities.TransactionStatusPending {
			return apperrors.InvalidStatusTransitionError(string(tx.Status), string(entities.TransactionStatusProcessing))
		}
		if tx.ReferenceID != nil {
			return apperrors.ConflictError("WITHDRAWAL", "withdrawal was already submitted")
		}
		if err := tx.TransitionTo(entities.TransactionStatusProcessing); err != nil {
			return err
		}
		if err := repos.Transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("claim withdrawal: %w", err)
		}
		claimed = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// submit sends a claimed withdrawal to its provider and reconciles or refunds it
func (e *Engine) submit(ctx context.Context, tx *entities.Transaction) (*entities.WithdrawalResult, error) {
	meta := tx.Metadata.Withdrawal
	providerID := exchange.ProviderID(meta.Provider)
	currency, err := e.walletCurrency(ctx, tx.WalletID)
	if err != nil {
		return nil, err
	}

	provider, err := e.providers.Get(providerID)
	if err != nil {
		return nil, e.failAndRefund(ctx, tx, providerID, entities.TransactionStatusCancelled, err)
	}

	var receipt *exchange.WithdrawalReceipt
	err = e.breaker.Execute(ctx, func() error {
		available, err := provider.AvailableBalance(ctx, currency)
		if err != nil {
			e.logger.Warn("Provider balance check failed", "provider", providerID, "error", apperrors.Sanitize(err.Error()))
		} else if available.LessThan(meta.NetAmount) {
			return fmt.Errorf("provider balance %s below withdrawal amount %s", available, meta.NetAmount)
		}

		receipt, err = provider.SubmitWithdrawal(ctx, exchange.WithdrawalOrder{
			Currency: currency,
			Amount:   meta.NetAmount,
			Address:  meta.ToAddress,
			Memo:     meta.Memo,
			Chain:    meta.Chain,
		})
		return err
	})
	if err != nil {
		return nil, e.failAndRefund(ctx, tx, providerID, entities.TransactionStatusCancelled, err)
	}

	if status, ok := refundStatus(receipt.Status); ok {
		cause := fmt.Errorf("provider reported status %s", receipt.NativeStatus)
		return nil, e.failAndRefund(ctx, tx, providerID, status, cause)
	}

	updated, err := e.recordReceipt(ctx, tx.ID, receipt)
	if err != nil {
		// The provider accepted the withdrawal; it must not be refunded.
		e.logger.Error("Failed to record provider receipt",
			"transaction_id", tx.ID,
			"provider_ref", receipt.ProviderRef,
			"error", err)
		return nil, apperrors.InternalError("withdrawal submitted but not recorded", err)
	}

	metrics.WithdrawalsTotal.WithLabelValues(string(providerID), string(updated.Status)).Inc()
	e.logger.Info("Withdrawal submitted",
		"transaction_id", updated.ID,
		"provider", providerID,
		"provider_ref", receipt.ProviderRef,
		"status", updated.Status)
	e.notifyStatus(ctx, updated)
	e.publish(ctx, entities.NewLedgerEvent(entities.EventWithdrawalStatusChanged, updated, currency))

	ref := receipt.ProviderRef
	return &entities.WithdrawalResult{Transaction: updated, ProviderRef: &ref}, nil
}

func (e *Engine) walletCurrency(ctx context.Context, walletID uuid.UUID) (string, error) {
	wallet, err := e.store.Repositories().Wallets.GetByID(ctx, walletID)
	if err != nil {
		return "", fmt.Errorf("get withdrawal wallet: %w", err)
	}
	return wallet.Currency, nil
}

// recordReceipt stores the provider reference and mapped status
func (e *Engine) recordReceipt(ctx context.Context, txID uuid.UUID, receipt *exchange.WithdrawalReceipt) (*entities.Transaction, error) {
	var updated *entities.Transaction
	err := e.store.WithinTx(ctx, func(repos repositories.Repositories) error {
		tx, err := repos.Transactions.GetForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if receipt.ProviderRef != "" {
			ref := receipt.ProviderRef
			tx.ReferenceID = &ref
		}
		meta := tx.Metadata.Withdrawal
		meta.ProviderStatus = receipt.NativeStatus
		if receipt.Network != "" {
			meta.Network = receipt.Network
		}
		if receipt.Fee != nil {
			meta.ProviderFee = receipt.Fee
		}
		// a claimed withdrawal stays PROCESSING while the provider reports it pending
		if receipt.Status != tx.Status && receipt.Status != entities.TransactionStatusPending {
			if err := tx.TransitionTo(receipt.Status); err != nil {
				return err
			}
		}
		if err := repos.Transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		updated = tx
		return nil
	})
	return updated, err
}

// failAndRefund compensates a failed submission and returns the user-facing error
func (e *Engine) failAndRefund(ctx context.Context, tx *entities.Transaction, providerID exchange.ProviderID, status entities.TransactionStatus, cause error) error {
	metrics.ProviderErrorsTotal.WithLabelValues(string(providerID), "submit").Inc()
	metrics.WithdrawalsTotal.WithLabelValues(string(providerID), string(status)).Inc()
	e.logger.Error("Withdrawal submission failed, refunding",
		"transaction_id", tx.ID,
		"provider", providerID,
		"error", apperrors.Sanitize(cause.Error()))

	if _, err := e.refund(ctx, tx.ID, "", status, cause.Error(), ""); err != nil {
		e.logger.Error("Withdrawal refund abandoned", "transaction_id", tx.ID, "error", err)
		return apperrors.InternalError("withdrawal refund failed", err)
	}
	return apperrors.ExternalProviderError(string(providerID), cause)
}

// refund returns the reserved total deduction to the wallet, moves the
// transaction to status and drops its AdminProfit. A non-empty from requires
// the locked transaction to still be in that status. It is retried on a
// cancellation-detached context until it succeeds.
func (e *Engine) refund(ctx context.Context, txID uuid.UUID, from, status entities.TransactionStatus, cause, reason string) (*entities.Transaction, error) {
	ctx = context.WithoutCancel(ctx)
	var refunded *entities.Transaction
	var currency string

	err := e.refunds.Do(ctx, func() error {
		return e.store.WithinTx(ctx, func(repos repositories.Repositories) error {
			tx, err := repos.Transactions.GetForUpdate(ctx, txID)
			if err != nil {
				return err
			}
			if from != "" && tx.Status != from {
				return apperrors.InvalidStatusTransitionError(string(tx.Status), string(status))
			}
			if from != "" && tx.ReferenceID != nil {
				return apperrors.ConflictError("WITHDRAWAL", "withdrawal was already submitted")
			}
			if tx.Status == status {
				refunded = tx
				return nil
			}
			if tx.Metadata.Withdrawal == nil {
				return apperrors.ValidationError("transaction", "not a withdrawal")
			}
			if err := tx.TransitionTo(status); err != nil {
				return err
			}
			meta := tx.Metadata.Withdrawal
			if cause != "" {
				meta.Error = apperrors.Sanitize(cause)
			}
			if reason != "" {
				meta.RejectReason = reason
			}

			locked, err := ledger.LockWallets(ctx, repos.Wallets, tx.WalletID)
			if err != nil {
				return err
			}
			wallet := locked[tx.WalletID]
			currency = wallet.Currency
			credit := meta.TotalDeduction
			if err := repos.Wallets.UpdateBalance(ctx, wallet.ID, wallet.Balance.Add(credit)); err != nil {
				return fmt.Errorf("refund wallet: %w", err)
			}
			if err := repos.AdminProfits.DeleteByTransactionID(ctx, tx.ID); err != nil {
				return fmt.Errorf("delete admin profit: %w", err)
			}
			if err := repos.Transactions.Update(ctx, tx); err != nil {
				return fmt.Errorf("update withdrawal: %w", err)
			}
			refunded = tx
			return nil
		})
	})
	if err != nil {
		metrics.RefundsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.RefundsTotal.WithLabelValues("succeeded").Inc()
	e.logger.Info("Withdrawal refunded", "transaction_id", txID, "status", status)
	e.notifyStatus(ctx, refunded)
	e.publish(ctx, entities.NewLedgerEvent(entities.EventWithdrawalRefunded, refunded, currency))
	return refunded, nil
}

// Approve claims a withdrawal held for approval and submits it
func (e *Engine) Approve(ctx context.Context, txID uuid.UUID) (*entities.WithdrawalResult, error) {
	ctx, span := e.tracer.Start(ctx, "withdrawal.Approve")
	defer span.End()

	tx, err := e.claim(ctx, txID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	e.logger.Info("Withdrawal approved", "transaction_id", txID)
	return e.submit(ctx, tx)
}

// Reject refunds a withdrawal still held for approval and marks it REJECTED.
// A withdrawal already claimed by Approve cannot be rejected.
func (e *Engine) Reject(ctx context.Context, txID uuid.UUID, reason string) (*entities.Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "withdrawal.Reject")
	defer span.End()

	tx, err := e.refund(ctx, txID, entities.TransactionStatusPending, entities.TransactionStatusRejected, "", reason)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return tx, nil
}

// Reconcile polls the provider for a submitted withdrawal and applies its
// status, refunding on any terminal status other than COMPLETED.
func (e *Engine) Reconcile(ctx context.Context, txID uuid.UUID) (*entities.Transaction, error) {
	tx, err := e.store.Repositories().Transactions.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Type != entities.TransactionTypeWithdraw || tx.Metadata.Withdrawal == nil {
		return nil, apperrors.ValidationError("transaction", "not a withdrawal")
	}
	if tx.Status.IsTerminal() || tx.ReferenceID == nil {
		return tx, nil
	}

	providerID := exchange.ProviderID(tx.Metadata.Withdrawal.Provider)
	provider, err := e.providers.Get(providerID)
	if err != nil {
		return nil, err
	}
	currency, err := e.walletCurrency(ctx, tx.WalletID)
	if err != nil {
		return nil, err
	}

	var receipt *exchange.WithdrawalReceipt
	err = e.breaker.Execute(ctx, func() error {
		var err error
		receipt, err = provider.WithdrawalStatus(ctx, currency, *tx.ReferenceID)
		return err
	})
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues(string(providerID), "status").Inc()
		return nil, apperrors.ServiceUnavailableError(string(providerID), errors.New(apperrors.Sanitize(err.Error())))
	}

	if receipt.Status == tx.Status || receipt.Status == entities.TransactionStatusPending {
		return tx, nil
	}
	if status, ok := refundStatus(receipt.Status); ok {
		return e.refund(ctx, tx.ID, "", status, "provider reported status "+receipt.NativeStatus, "")
	}

	updated, err := e.recordReceipt(ctx, tx.ID, receipt)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsTotal.WithLabelValues(string(providerID), string(updated.Status)).Inc()
	e.notifyStatus(ctx, updated)
	e.publish(ctx, entities.NewLedgerEvent(entities.EventWithdrawalStatusChanged, updated, currency))
	return updated, nil
}

// ReconcilePending reconciles up to limit submitted withdrawals still in
// flight and returns how many changed status.
func (e *Engine) ReconcilePending(ctx context.Context, limit int) (int, error) {
	pending, err := e.store.Repositories().Transactions.ListByStatus(ctx,
		entities.TransactionTypeWithdraw,
		[]entities.TransactionStatus{entities.TransactionStatusPending, entities.TransactionStatusProcessing, entities.TransactionStatusTimeout},
		limit)
	if err != nil {
		return 0, fmt.Errorf("list pending withdrawals: %w", err)
	}

	changed := 0
	for _, tx := range pending {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		if tx.ReferenceID == nil {
			continue
		}
		updated, err := e.Reconcile(ctx, tx.ID)
		if err != nil {
			e.logger.Warn("Withdrawal reconciliation failed", "transaction_id", tx.ID, "error", err)
			continue
		}
		if updated.Status != tx.Status {
			changed++
		}
	}
	return changed, nil
}

// Quote returns the fee breakdown a withdrawal would have without reserving it
func (e *Engine) Quote(ctx context.Context, settings entities.FinanceSettings, req entities.WithdrawalRequest) (fees.WithdrawalBreakdown, error) {
	p, err := e.validate(ctx, settings, req)
	if err != nil {
		return fees.WithdrawalBreakdown{}, err
	}
	return p.fees, nil
}

func (e *Engine) notifyStatus(ctx context.Context, tx *entities.Transaction) {
	if e.notifier == nil || tx == nil {
		return
	}
	user, err := e.store.Repositories().Users.GetByID(ctx, tx.UserID)
	if err != nil {
		e.logger.Warn("Skipping withdrawal e-mail, user lookup failed", "user_id", tx.UserID, "error", err)
		return
	}
	if err := e.notifier.SendTransactionStatusUpdateEmail(ctx, user, tx); err != nil {
		e.logger.Error("Failed to send withdrawal status e-mail", "transaction_id", tx.ID, "error", err)
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
