package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/ledger_service/internal/domain/entities"
	apperrors "github.com/rail-service/ledger_service/internal/domain/errors"
	"github.com/rail-service/ledger_service/pkg/logger"
)

// Error codes for consistent API responses
const (
	// Request errors
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeInvalidID       = "INVALID_ID"
	ErrCodeUnauthorized    = "UNAUTHORIZED"

	// Ledger errors
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidRate         = "INVALID_RATE"
	ErrCodePriceUnavailable    = "PRICE_UNAVAILABLE"
	ErrCodeWithdrawalFailed    = "WITHDRAWAL_FAILED"
	ErrCodeInvalidStatusChange = "INVALID_STATUS_TRANSITION"
	ErrCodeLedgerInvariant     = "LEDGER_INVARIANT"

	// Server errors
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	c.JSON(http.StatusBadRequest, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: det,
	})
}

// SendUnauthorized sends a 401 Unauthorized error
func SendUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, entities.ErrorResponse{
		Code:    ErrCodeUnauthorized,
		Message: message,
	})
}

// SendInternalError sends a 500 Internal Server Error
func SendInternalError(c *gin.Context, code, message string) {
	c.JSON(http.StatusInternalServerError, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendSuccess sends a 200 OK response with data
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendCreated sends a 201 Created response with data
func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// SendAccepted sends a 202 Accepted response with data
func SendAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, data)
}

// SendNoContent sends a 204 No Content response
func SendNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// SendValidationError sends a validation error with field details
func SendValidationError(c *gin.Context, message string, fieldErrors map[string]string) {
	c.JSON(http.StatusBadRequest, entities.ErrorResponse{
		Code:    ErrCodeValidationError,
		Message: message,
		Details: map[string]interface{}{
			"fields": fieldErrors,
		},
	})
}

// statusFor maps a domain error onto an HTTP status and a fallback code
func statusFor(err error) (int, string) {
	switch {
	case apperrors.IsInvalidInput(err):
		return http.StatusBadRequest, ErrCodeValidationError
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apperrors.ErrInvalidStatusChange):
		return http.StatusConflict, ErrCodeInvalidStatusChange
	case apperrors.IsConflict(err):
		return http.StatusConflict, ErrCodeConflict
	case apperrors.IsInsufficientFunds(err):
		return http.StatusUnprocessableEntity, ErrCodeInsufficientFunds
	case errors.Is(err, apperrors.ErrInvalidRate):
		return http.StatusUnprocessableEntity, ErrCodeInvalidRate
	case apperrors.IsInvariant(err):
		return http.StatusUnprocessableEntity, ErrCodeLedgerInvariant
	case apperrors.IsPriceUnavailable(err):
		return http.StatusServiceUnavailable, ErrCodePriceUnavailable
	case apperrors.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case apperrors.IsExternalProvider(err):
		return http.StatusBadGateway, ErrCodeWithdrawalFailed
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// SendDomainError translates err into an ErrorResponse. Internal errors are
// logged and never echoed to the caller.
func SendDomainError(c *gin.Context, log *logger.Logger, operation string, err error) {
	status, code := statusFor(err)

	var domainErr *apperrors.DomainError
	if status == http.StatusInternalServerError || !errors.As(err, &domainErr) {
		log.Error("Request failed",
			"operation", operation,
			"request_id", getRequestID(c),
			"error", err)
		if status == http.StatusInternalServerError {
			SendInternalError(c, ErrCodeInternalError, "An internal error occurred")
			return
		}
		c.JSON(status, entities.ErrorResponse{Code: code, Message: http.StatusText(status)})
		return
	}

	if status >= http.StatusInternalServerError {
		log.Warn("Request failed",
			"operation", operation,
			"request_id", getRequestID(c),
			"code", domainErr.Code,
			"error", err)
	}

	details := domainErr.Details
	if status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
		// provider causes stay in the logs
		details = nil
	}
	if domainErr.Code != "" {
		code = domainErr.Code
	}
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: domainErr.Error(),
		Details: details,
	})
}
