package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/pkg/idempotency"
)

type fakeClient struct {
	values map[string][]byte
	ttls   map[string]time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = data
	f.ttls[key] = expiration
	return nil
}

func (f *fakeClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	return true, f.Set(ctx, key, value, expiration)
}

func (f *fakeClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := f.values[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (f *fakeClient) Del(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) Close() error                   { return nil }

func TestBanStore(t *testing.T) {
	client := newFakeClient()
	store := NewBanStore(client, "binance", zap.NewNop())
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	banned, err := store.IsBanned(ctx)
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, store.Ban(ctx, now.Add(90*time.Second)))
	assert.Equal(t, 90*time.Second, client.ttls["exchange:ban_until:binance"])

	banned, err = store.IsBanned(ctx)
	require.NoError(t, err)
	assert.True(t, banned)

	now = now.Add(2 * time.Minute)
	banned, err = store.IsBanned(ctx)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestBanStore_PastBanIgnored(t *testing.T) {
	client := newFakeClient()
	store := NewBanStore(client, "", zap.NewNop())
	require.NoError(t, store.Ban(context.Background(), time.Now().Add(-time.Second)))
	assert.Empty(t, client.values)
}

func TestIdempotencyStore(t *testing.T) {
	client := newFakeClient()
	store := NewIdempotencyStore(client)
	ctx := context.Background()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	reservation := &idempotency.Record{Key: "k", RequestHash: "h", InFlight: true}
	require.NoError(t, store.Reserve(ctx, reservation, time.Minute))
	assert.ErrorIs(t, store.Reserve(ctx, reservation, time.Minute), idempotency.ErrKeyExists)

	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, got.InFlight)

	record := &idempotency.Record{Key: "k", RequestHash: "h", ResponseStatus: 201, ResponseBody: []byte(`{"ok":true}`)}
	require.NoError(t, store.Complete(ctx, record, time.Hour))
	assert.Equal(t, time.Hour, client.ttls["idempotency:k"])

	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, got.InFlight)
	assert.Equal(t, 201, got.ResponseStatus)
	assert.JSONEq(t, `{"ok":true}`, string(got.ResponseBody))

	require.NoError(t, store.Release(ctx, "k"))
	require.NoError(t, store.Reserve(ctx, reservation, time.Minute))
}
