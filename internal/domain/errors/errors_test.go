package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("debit: %w", InsufficientFundsError("1", "2"))

	assert.True(t, IsInsufficientFunds(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(NotFoundError("WALLET")))
	assert.True(t, IsInvalidInput(ValidationError("amount", "must be positive")))
	assert.True(t, IsConflict(ConflictError("withdrawal", "already submitted")))
	assert.True(t, IsPriceUnavailable(PriceUnavailableError("BTC", "SPOT")))
	assert.True(t, IsInvariant(InsufficientChainBalanceError("w1", "3")))
	assert.True(t, IsInvariant(NetworkNotConfiguredError("TRC20")))
	assert.True(t, errors.Is(InvalidStatusTransitionError("COMPLETED", "FAILED"), ErrInvalidStatusChange))
	assert.True(t, IsRetryable(ServiceUnavailableError("exchange", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestExternalProviderError(t *testing.T) {
	err := ExternalProviderError("binance", errors.New("POST https://api.example.com/withdraw?apiKey=abc123 failed"))

	assert.True(t, IsExternalProvider(err))
	assert.Equal(t, WithdrawalFailedMessage, err.Error())
	cause := err.Details["cause"].(string)
	assert.NotContains(t, cause, "abc123")
	assert.NotContains(t, cause, "api.example.com")
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		notWant string
	}{
		{"url", "request to http://gateway:8090/withdraw timed out", "request to [url] timed out", ""},
		{"secret", `{"secret": "s3cr3t", "code": 1}`, "", "s3cr3t"},
		{"token", "token=xyz rejected", "token=[redacted] rejected", ""},
		{"whitespace", "a\n\n  b\tc", "a b c", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			if tt.notWant != "" {
				assert.NotContains(t, got, tt.notWant)
			}
		})
	}

	long := Sanitize(strings.Repeat("x", 500))
	assert.Len(t, long, maxSanitizedLength+3)
}
