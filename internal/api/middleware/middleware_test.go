package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw...)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.Value("user_id"),
			"role":    c.GetString("user_role"),
		})
	})
	return router
}

func serve(router *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdentity(t *testing.T) {
	router := newTestRouter(Identity())
	userID := uuid.New()

	w := serve(router, map[string]string{HeaderUserID: userID.String(), HeaderUserRole: "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
	assert.Contains(t, w.Body.String(), "admin")

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"malformed", "user-42"},
		{"nil uuid", uuid.Nil.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, map[string]string{HeaderUserID: tt.header})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestAdminOnly(t *testing.T) {
	router := newTestRouter(Identity(), AdminOnly())
	userID := uuid.New().String()

	tests := []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"super_admin", http.StatusOK},
		{"user", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run("role "+tt.role, func(t *testing.T) {
			w := serve(router, map[string]string{HeaderUserID: userID, HeaderUserRole: tt.role})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRateLimit_BlocksExcessRequests(t *testing.T) {
	router := newTestRouter(RateLimit(3))
	caller := map[string]string{HeaderUserID: uuid.New().String()}

	for i := 0; i < 3; i++ {
		w := serve(router, caller)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should be allowed", i+1)
	}

	w := serve(router, caller)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	// another caller has its own budget
	w = serve(router, map[string]string{HeaderUserID: uuid.New().String()})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	router := newTestRouter(RateLimit(0))
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, serve(router, nil).Code)
	}
}

func TestRequestID(t *testing.T) {
	router := newTestRouter(RequestID())

	w := serve(router, map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = serve(router, nil)
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}
