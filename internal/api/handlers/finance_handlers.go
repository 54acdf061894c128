package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	"github.com/rail-service/ledger_service/internal/domain/services/fees"
	"github.com/rail-service/ledger_service/pkg/logger"
)

// TransferService executes wallet and client transfers
type TransferService interface {
	Transfer(ctx context.Context, settings entities.FinanceSettings, req entities.TransferRequest) (*entities.TransferResult, error)
}

// WithdrawalService reserves and submits external withdrawals
type WithdrawalService interface {
	Withdraw(ctx context.Context, settings entities.FinanceSettings, req entities.WithdrawalRequest) (*entities.WithdrawalResult, error)
	Quote(ctx context.Context, settings entities.FinanceSettings, req entities.WithdrawalRequest) (fees.WithdrawalBreakdown, error)
}

// WalletService answers wallet reads
type WalletService interface {
	ListWallets(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error)
	GetTransaction(ctx context.Context, userID, txID uuid.UUID) (*entities.Transaction, error)
	DepositAddress(ctx context.Context, userID uuid.UUID, walletType entities.WalletType, currency, chain string) (*entities.DepositAddress, error)
}

// SettingsSource returns the finance settings snapshot for a request
type SettingsSource interface {
	Current() entities.FinanceSettings
}

// FinanceHandlers serves the user-facing ledger endpoints
type FinanceHandlers struct {
	transfers   TransferService
	withdrawals WithdrawalService
	wallets     WalletService
	settings    SettingsSource
	validator   *validator.Validate
	logger      *logger.Logger
}

// NewFinanceHandlers creates new finance handlers
func NewFinanceHandlers(
	transfers TransferService,
	withdrawals WithdrawalService,
	wallets WalletService,
	settings SettingsSource,
	logger *logger.Logger,
) *FinanceHandlers {
	return &FinanceHandlers{
		transfers:   transfers,
		withdrawals: withdrawals,
		wallets:     wallets,
		settings:    settings,
		validator:   validator.New(),
		logger:      logger,
	}
}

// WithdrawalQuoteResponse is the fee breakdown of a prospective withdrawal
type WithdrawalQuoteResponse struct {
	Amount         decimal.Decimal `json:"amount"`
	InternalFee    decimal.Decimal `json:"internal_fee"`
	ExternalFee    decimal.Decimal `json:"external_fee"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	TotalDeduction decimal.Decimal `json:"total_deduction"`
}

// CreateTransfer handles POST /api/v1/finance/transfers
func (h *FinanceHandlers) CreateTransfer(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req entities.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	req.UserID = userID
	req.FromType = normalizeWalletType(req.FromType)
	req.ToType = normalizeWalletType(req.ToType)
	req.TransferType = entities.TransferType(strings.ToLower(strings.TrimSpace(string(req.TransferType))))
	if !validateRequest(c, h.validator, &req) {
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), h.settings.Current(), req)
	if err != nil {
		SendDomainError(c, h.logger, "transfer", err)
		return
	}

	h.logger.Info("Transfer created",
		"request_id", getRequestID(c),
		"user_id", userID,
		"transaction_id", result.FromTransaction.ID,
		"status", result.FromTransaction.Status)
	SendCreated(c, result)
}

// CreateWithdrawal handles POST /api/v1/finance/withdrawals. A withdrawal held
// for approval answers 202, a submitted one 201.
func (h *FinanceHandlers) CreateWithdrawal(c *gin.Context) {
	req, ok := h.bindWithdrawal(c)
	if !ok {
		return
	}

	result, err := h.withdrawals.Withdraw(c.Request.Context(), h.settings.Current(), req)
	if err != nil {
		SendDomainError(c, h.logger, "withdraw", err)
		return
	}

	h.logger.Info("Withdrawal created",
		"request_id", getRequestID(c),
		"user_id", req.UserID,
		"transaction_id", result.Transaction.ID,
		"status", result.Transaction.Status)
	if result.Transaction.Status == entities.TransactionStatusPending {
		SendAccepted(c, result)
		return
	}
	SendCreated(c, result)
}

// QuoteWithdrawal handles POST /api/v1/finance/withdrawals/quote
func (h *FinanceHandlers) QuoteWithdrawal(c *gin.Context) {
	req, ok := h.bindWithdrawal(c)
	if !ok {
		return
	}

	breakdown, err := h.withdrawals.Quote(c.Request.Context(), h.settings.Current(), req)
	if err != nil {
		SendDomainError(c, h.logger, "withdrawal_quote", err)
		return
	}
	SendSuccess(c, WithdrawalQuoteResponse{
		Amount:         req.Amount,
		InternalFee:    breakdown.InternalFee,
		ExternalFee:    breakdown.ExternalFee,
		NetAmount:      breakdown.NetAmount,
		TotalDeduction: breakdown.TotalDeduction,
	})
}

func (h *FinanceHandlers) bindWithdrawal(c *gin.Context) (entities.WithdrawalRequest, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return entities.WithdrawalRequest{}, false
	}
	var req entities.WithdrawalRequest
	if !bindJSON(c, &req) {
		return entities.WithdrawalRequest{}, false
	}
	req.UserID = userID
	req.WalletType = normalizeWalletType(req.WalletType)
	if !validateRequest(c, h.validator, &req) {
		return entities.WithdrawalRequest{}, false
	}
	return req, true
}

func normalizeWalletType(t entities.WalletType) entities.WalletType {
	return entities.WalletType(strings.ToUpper(strings.TrimSpace(string(t))))
}

// ListWallets handles GET /api/v1/finance/wallets
func (h *FinanceHandlers) ListWallets(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	wallets, err := h.wallets.ListWallets(c.Request.Context(), userID)
	if err != nil {
		SendDomainError(c, h.logger, "list_wallets", err)
		return
	}
	SendSuccess(c, gin.H{"wallets": wallets})
}

// GetDepositAddress handles GET /api/v1/finance/wallets/:type/:currency/deposit-address?chain=
func (h *FinanceHandlers) GetDepositAddress(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	walletType, err := entities.ParseWalletType(c.Param("type"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, err.Error())
		return
	}
	chain := strings.TrimSpace(c.Query("chain"))
	if chain == "" {
		SendBadRequest(c, ErrCodeInvalidRequest, "chain query parameter is required")
		return
	}

	address, err := h.wallets.DepositAddress(c.Request.Context(), userID, walletType, c.Param("currency"), chain)
	if err != nil {
		SendDomainError(c, h.logger, "deposit_address", err)
		return
	}
	SendSuccess(c, address)
}

// GetTransaction handles GET /api/v1/finance/transactions/:id
func (h *FinanceHandlers) GetTransaction(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	txID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	tx, err := h.wallets.GetTransaction(c.Request.Context(), userID, txID)
	if err != nil {
		SendDomainError(c, h.logger, "get_transaction", err)
		return
	}
	SendSuccess(c, tx)
}
