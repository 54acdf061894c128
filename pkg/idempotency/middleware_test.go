package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*Record)}
}

func (s *fakeStore) Get(ctx context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[key], nil
}

func (s *fakeStore) Reserve(ctx context.Context, record *Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.Key]; ok {
		return ErrKeyExists
	}
	s.records[record.Key] = record
	return nil
}

func (s *fakeStore) Complete(ctx context.Context, record *Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Key] = record
	return nil
}

func (s *fakeStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func setupRouter(store Store, status *int, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(store, time.Hour, func(c *gin.Context) string { return c.GetHeader("X-User-ID") }, zap.NewNop()))
	r.POST("/transfers", func(c *gin.Context) {
		*calls++
		c.JSON(*status, gin.H{"call": *calls})
	})
	return r
}

func post(r *gin.Engine, key, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/transfers", strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	req.Header.Set("X-User-ID", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	status, calls := http.StatusCreated, 0
	r := setupRouter(newFakeStore(), &status, &calls)

	first := post(r, "key-1", "u1", `{"amount":"10"}`)
	second := post(r, "key-1", "u1", `{"amount":"10"}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestMiddleware_ScopesKeysByCaller(t *testing.T) {
	status, calls := http.StatusCreated, 0
	r := setupRouter(newFakeStore(), &status, &calls)

	post(r, "key-1", "u1", `{}`)
	post(r, "key-1", "u2", `{}`)
	assert.Equal(t, 2, calls)
}

func TestMiddleware_ConflictOnDifferentBody(t *testing.T) {
	status, calls := http.StatusCreated, 0
	r := setupRouter(newFakeStore(), &status, &calls)

	post(r, "key-1", "u1", `{"amount":"10"}`)
	w := post(r, "key-1", "u1", `{"amount":"11"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, calls)
}

func TestMiddleware_ServerErrorsAreNotStored(t *testing.T) {
	status, calls := http.StatusServiceUnavailable, 0
	store := newFakeStore()
	r := setupRouter(store, &status, &calls)

	post(r, "key-1", "u1", `{}`)
	post(r, "key-1", "u1", `{}`)
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.records)
}

func TestMiddleware_ConcurrentDuplicateIsRefused(t *testing.T) {
	gin.SetMode(gin.TestMode)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	r := gin.New()
	r.Use(Middleware(newFakeStore(), time.Hour, nil, zap.NewNop()))
	r.POST("/transfers", func(c *gin.Context) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post(r, "key-1", "u1", `{"amount":"10"}`) }()
	<-started

	duplicate := post(r, "key-1", "u1", `{"amount":"10"}`)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Contains(t, duplicate.Body.String(), "IDEMPOTENCY_REQUEST_IN_PROGRESS")
	assert.Equal(t, "1", duplicate.Header().Get("Retry-After"))

	close(release)
	first := <-done
	assert.Equal(t, http.StatusCreated, first.Code)

	replayed := post(r, "key-1", "u1", `{"amount":"10"}`)
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "true", replayed.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestMiddleware_PanicReleasesKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, _ any) { c.AbortWithStatus(http.StatusInternalServerError) }))
	r.Use(Middleware(store, time.Hour, nil, zap.NewNop()))
	r.POST("/transfers", func(c *gin.Context) { panic("boom") })

	w := post(r, "key-1", "u1", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, store.records)
}

func TestMiddleware_WithoutKeyPassesThrough(t *testing.T) {
	status, calls := http.StatusCreated, 0
	r := setupRouter(newFakeStore(), &status, &calls)

	post(r, "", "u1", `{}`)
	post(r, "", "u1", `{}`)
	assert.Equal(t, 2, calls)
}

func TestValidateKey(t *testing.T) {
	require.NoError(t, ValidateKey("3f1c-abc_01"))
	assert.Error(t, ValidateKey("has space"))
	assert.Error(t, ValidateKey(strings.Repeat("a", 256)))
}
