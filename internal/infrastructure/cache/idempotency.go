package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rail-service/ledger_service/pkg/idempotency"
)

const idempotencyPrefix = "idempotency:"

// IdempotencyStore keeps replayable responses in Redis
type IdempotencyStore struct {
	client RedisClient
}

// NewIdempotencyStore creates a Redis backed idempotency store
func NewIdempotencyStore(client RedisClient) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Get returns the stored record or nil when the key is unknown or expired
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	var record idempotency.Record
	if err := s.client.Get(ctx, idempotencyPrefix+key, &record); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return &record, nil
}

// Reserve stores record unless the key is already taken
func (s *IdempotencyStore) Reserve(ctx context.Context, record *idempotency.Record, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+record.Key, record, ttl)
	if err != nil {
		return fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !ok {
		return idempotency.ErrKeyExists
	}
	return nil
}

// Complete replaces the reservation with the final response
func (s *IdempotencyStore) Complete(ctx context.Context, record *idempotency.Record, ttl time.Duration) error {
	if err := s.client.Set(ctx, idempotencyPrefix+record.Key, record, ttl); err != nil {
		return fmt.Errorf("store idempotency key: %w", err)
	}
	return nil
}

// Release drops a reservation so the request can be retried
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyPrefix+key)
}
