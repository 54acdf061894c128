package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const exchangeBanKey = "exchange:ban_until"

// BanStore remembers until when the spot exchange refuses our requests.
// The gateway client writes it, the price oracle reads it.
type BanStore struct {
	client RedisClient
	key    string
	logger *zap.Logger
	now    func() time.Time
}

// NewBanStore creates a ban store for one exchange
func NewBanStore(client RedisClient, exchange string, logger *zap.Logger) *BanStore {
	key := exchangeBanKey
	if exchange != "" {
		key = fmt.Sprintf("%s:%s", exchangeBanKey, exchange)
	}
	return &BanStore{client: client, key: key, logger: logger, now: time.Now}
}

// Ban records until; the key expires with the ban
func (b *BanStore) Ban(ctx context.Context, until time.Time) error {
	ttl := until.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.key, until.Unix(), ttl); err != nil {
		return fmt.Errorf("record exchange ban: %w", err)
	}
	return nil
}

// IsBanned reports whether a ban is in force
func (b *BanStore) IsBanned(ctx context.Context) (bool, error) {
	var until int64
	if err := b.client.Get(ctx, b.key, &until); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("read exchange ban: %w", err)
	}
	banned := b.now().Unix() < until
	if banned {
		b.logger.Debug("Exchange ban in force", zap.Time("until", time.Unix(until, 0)))
	}
	return banned, nil
}
