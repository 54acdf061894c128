package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// HeaderIdempotencyKey is the HTTP header for idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// MaxBodySize is the maximum request body size for idempotency (1MB)
	MaxBodySize = 1 << 20

	// DefaultTTL is how long a stored response is replayed
	DefaultTTL = 24 * time.Hour

	// InFlightTTL bounds how long a crashed request can hold its key
	InFlightTTL = 2 * time.Minute

	maxKeyLength = 255
)

// ErrKeyExists is returned by Store.Reserve when the key is already held
var ErrKeyExists = errors.New("idempotency key already stored")

// Record is a stored response for one idempotency key. An InFlight record
// marks a request that is still executing.
type Record struct {
	Key            string    `json:"key"`
	RequestPath    string    `json:"request_path"`
	RequestMethod  string    `json:"request_method"`
	RequestHash    string    `json:"request_hash"`
	InFlight       bool      `json:"in_flight,omitempty"`
	ResponseStatus int       `json:"response_status"`
	ResponseBody   []byte    `json:"response_body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists idempotency records
type Store interface {
	// Reserve stores record only if key is free and returns ErrKeyExists otherwise
	Reserve(ctx context.Context, record *Record, ttl time.Duration) error
	Get(ctx context.Context, key string) (*Record, error)
	// Complete overwrites the reservation with the final response
	Complete(ctx context.Context, record *Record, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// ScopeFunc namespaces a client key, typically by caller identity
type ScopeFunc func(c *gin.Context) string

// responseWriter wraps gin.ResponseWriter to capture response
type responseWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// ValidateKey checks the client supplied key
func ValidateKey(key string) error {
	if len(key) > maxKeyLength {
		return fmt.Errorf("idempotency key must be at most %d characters", maxKeyLength)
	}
	for _, r := range key {
		if r < 0x21 || r > 0x7e {
			return fmt.Errorf("idempotency key must be printable ASCII without spaces")
		}
	}
	return nil
}

// HashRequest fingerprints a request body
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ReadBody reads at most limit bytes and fails on larger bodies
func ReadBody(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("request body exceeds %d bytes", limit)
	}
	return data, nil
}

// Middleware replays the stored response of a repeated POST carrying the same
// Idempotency-Key. The key is reserved before the handler runs, so a
// concurrent duplicate gets 409 instead of executing twice. Only 2xx and 4xx
// responses are stored so that 5xx outcomes can be retried.
func Middleware(store Store, ttl time.Duration, scope ScopeFunc, logger *zap.Logger) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		clientKey := c.GetHeader(HeaderIdempotencyKey)
		if clientKey == "" {
			c.Next()
			return
		}

		if err := ValidateKey(clientKey); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_IDEMPOTENCY_KEY",
				"message": err.Error(),
			})
			return
		}

		bodyBytes, err := ReadBody(c.Request.Body, MaxBodySize)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Failed to read request body",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		key := c.Request.URL.Path + ":" + clientKey
		if scope != nil {
			key = scope(c) + ":" + key
		}
		requestHash := HashRequest(bodyBytes)
		ctx := context.WithoutCancel(c.Request.Context())

		reservation := &Record{
			Key:           key,
			RequestPath:   c.Request.URL.Path,
			RequestMethod: c.Request.Method,
			RequestHash:   requestHash,
			InFlight:      true,
			CreatedAt:     time.Now().UTC(),
		}
		err = store.Reserve(ctx, reservation, InFlightTTL)
		switch {
		case errors.Is(err, ErrKeyExists):
			replay(c, store, key, clientKey, requestHash, logger)
			return
		case err != nil:
			// fail open
			logger.Error("Failed to reserve idempotency key",
				zap.String("idempotency_key", clientKey),
				zap.Error(err))
			c.Next()
			return
		}

		completed := false
		defer func() {
			if completed {
				return
			}
			if err := store.Release(ctx, key); err != nil {
				logger.Error("Failed to release idempotency key",
					zap.String("idempotency_key", clientKey),
					zap.Error(err))
			}
		}()

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
			status:         http.StatusOK,
		}
		c.Writer = writer

		c.Next()

		if writer.status >= http.StatusInternalServerError {
			return
		}

		record := *reservation
		record.InFlight = false
		record.ResponseStatus = writer.status
		record.ResponseBody = writer.body.Bytes()
		if err := store.Complete(ctx, &record, ttl); err != nil {
			logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", clientKey),
				zap.Error(err))
			return
		}
		completed = true
	}
}

// replay answers a request whose key is already held
func replay(c *gin.Context, store Store, key, clientKey, requestHash string, logger *zap.Logger) {
	existing, err := store.Get(c.Request.Context(), key)
	if err != nil {
		logger.Error("Failed to check idempotency key",
			zap.String("idempotency_key", clientKey),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"code":    "SERVICE_UNAVAILABLE",
			"message": "Idempotency check failed, retry later",
		})
		return
	}

	switch {
	case existing == nil || (existing.InFlight && existing.RequestHash == requestHash):
		logger.Warn("Request with the same idempotency key is in progress",
			zap.String("idempotency_key", clientKey))
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"code":    "IDEMPOTENCY_REQUEST_IN_PROGRESS",
			"message": "A request with this idempotency key is still being processed",
		})
	case existing.RequestHash != requestHash:
		logger.Warn("Idempotency key reused with a different body",
			zap.String("idempotency_key", clientKey))
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"code":    "IDEMPOTENCY_KEY_CONFLICT",
			"message": "Idempotency key was already used with a different request",
		})
	default:
		logger.Info("Replaying stored response",
			zap.String("idempotency_key", clientKey),
			zap.Int("status", existing.ResponseStatus))
		c.Header("Idempotent-Replayed", "true")
		c.Data(existing.ResponseStatus, "application/json; charset=utf-8", existing.ResponseBody)
		c.Abort()
	}
}
