package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	"github.com/rail-service/ledger_service/pkg/logger"
)

// WithdrawalAdminService drives approval-held and in-flight withdrawals
type WithdrawalAdminService interface {
	Approve(ctx context.Context, txID uuid.UUID) (*entities.WithdrawalResult, error)
	Reject(ctx context.Context, txID uuid.UUID, reason string) (*entities.Transaction, error)
	Reconcile(ctx context.Context, txID uuid.UUID) (*entities.Transaction, error)
}

// TransferAdminService settles transfers parked as PENDING
type TransferAdminService interface {
	CompletePendingTransfer(ctx context.Context, outgoingTxID uuid.UUID) (*entities.TransferResult, error)
}

// WalletAdminService deactivates wallets
type WalletAdminService interface {
	Deactivate(ctx context.Context, walletID uuid.UUID) error
}

// RejectWithdrawalRequest carries the reason shown to the user
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// AdminFinanceHandlers serves the back-office ledger endpoints
type AdminFinanceHandlers struct {
	withdrawals WithdrawalAdminService
	transfers   TransferAdminService
	wallets     WalletAdminService
	validator   *validator.Validate
	logger      *logger.Logger
}

// NewAdminFinanceHandlers creates new admin finance handlers
func NewAdminFinanceHandlers(
	withdrawals WithdrawalAdminService,
	transfers TransferAdminService,
	wallets WalletAdminService,
	logger *logger.Logger,
) *AdminFinanceHandlers {
	return &AdminFinanceHandlers{
		withdrawals: withdrawals,
		transfers:   transfers,
		wallets:     wallets,
		validator:   validator.New(),
		logger:      logger,
	}
}

// ApproveWithdrawal handles POST /api/v1/admin/withdrawals/:id/approve
func (h *AdminFinanceHandlers) ApproveWithdrawal(c *gin.Context) {
	txID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.withdrawals.Approve(c.Request.Context(), txID)
	if err != nil {
		SendDomainError(c, h.logger, "approve_withdrawal", err)
		return
	}

	h.logger.Info("Withdrawal approved",
		"request_id", getRequestID(c),
		"transaction_id", txID,
		"status", result.Transaction.Status)
	SendSuccess(c, result)
}

// RejectWithdrawal handles POST /api/v1/admin/withdrawals/:id/reject
func (h *AdminFinanceHandlers) RejectWithdrawal(c *gin.Context) {
	txID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req RejectWithdrawalRequest
	if !bindAndValidate(c, h.validator, &req) {
		return
	}

	tx, err := h.withdrawals.Reject(c.Request.Context(), txID, req.Reason)
	if err != nil {
		SendDomainError(c, h.logger, "reject_withdrawal", err)
		return
	}

	h.logger.Info("Withdrawal rejected",
		"request_id", getRequestID(c),
		"transaction_id", txID)
	SendSuccess(c, tx)
}

// ReconcileWithdrawal handles POST /api/v1/admin/withdrawals/:id/reconcile
func (h *AdminFinanceHandlers) ReconcileWithdrawal(c *gin.Context) {
	txID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	tx, err := h.withdrawals.Reconcile(c.Request.Context(), txID)
	if err != nil {
		SendDomainError(c, h.logger, "reconcile_withdrawal", err)
		return
	}
	SendSuccess(c, tx)
}

// CompleteTransfer handles POST /api/v1/admin/transfers/:id/complete
func (h *AdminFinanceHandlers) CompleteTransfer(c *gin.Context) {
	txID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.transfers.CompletePendingTransfer(c.Request.Context(), txID)
	if err != nil {
		SendDomainError(c, h.logger, "complete_transfer", err)
		return
	}

	h.logger.Info("Pending transfer completed",
		"request_id", getRequestID(c),
		"transaction_id", txID)
	SendSuccess(c, result)
}

// DeactivateWallet handles POST /api/v1/admin/wallets/:id/deactivate
func (h *AdminFinanceHandlers) DeactivateWallet(c *gin.Context) {
	walletID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.wallets.Deactivate(c.Request.Context(), walletID); err != nil {
		SendDomainError(c, h.logger, "deactivate_wallet", err)
		return
	}
	SendNoContent(c)
}
