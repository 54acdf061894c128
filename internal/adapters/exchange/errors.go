package exchange

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse represents an exchange gateway error response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("exchange error [%d]: %s (code: %s)", e.StatusCode, e.Message, e.Code)
}

func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusTeapot
}

var (
	// ErrNoAddress indicates the exchange returned no deposit address
	ErrNoAddress = errors.New("exchange returned no deposit address")

	// ErrUnknownProvider indicates a provider id with no registered implementation
	ErrUnknownProvider = errors.New("unknown exchange provider")
)
