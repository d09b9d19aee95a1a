package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"example.com/backstage/services/rental/internal/core"
)

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func ok(c *gin.Context) { c.Status(http.StatusNoContent) }

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	withRole := func(role core.Role) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(sessionKey, &core.Session{UserID: uuid.New(), Role: role})
		}
	}

	router := gin.New()
	router.GET("/anonymous", RequireRole(core.RoleAdmin), ok)
	router.GET("/guest", withRole(core.RoleGuest), RequireRole(core.RoleHost, core.RoleAdmin), ok)
	router.GET("/host", withRole(core.RoleHost), RequireRole(core.RoleHost, core.RoleAdmin), ok)

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/anonymous").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/guest").Code)
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/host").Code)
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := quietLogger()

	router := gin.New()
	router.Use(RateLimiter(newMemoryCounter(), 2, logger))
	router.GET("/", ok)

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/").Code)
	w := serve(router, http.MethodGet, "/")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")
}

type brokenCounter struct{}

func (brokenCounter) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimiter(brokenCounter{}, 1, quietLogger()))
	router.GET("/", ok)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/").Code)
	}
}

func TestMemoryCounterExpiresWindows(t *testing.T) {
	counter := newMemoryCounter()
	ctx := context.Background()

	n, err := counter.Increment(ctx, "a", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, _ = counter.Increment(ctx, "a", time.Minute)
	assert.Equal(t, int64(2), n)

	n, _ = counter.Increment(ctx, "b", -time.Second)
	assert.Equal(t, int64(1), n)
	n, _ = counter.Increment(ctx, "b", -time.Second)
	assert.Equal(t, int64(1), n)
}

func (m *memoryCounter) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counts)
}

func TestMemoryCounterSweepsOncePerWindow(t *testing.T) {
	counter := newMemoryCounter()
	ctx := context.Background()

	_, err := counter.Increment(ctx, "old", time.Minute)
	assert.NoError(t, err)
	counter.expires["old"] = time.Now().Add(-time.Second)

	// The sweep already ran for this window, so the stale key stays until
	// the next one.
	_, _ = counter.Increment(ctx, "new", time.Minute)
	assert.Equal(t, 2, counter.size())

	counter.nextSweep = time.Now().Add(-time.Second)
	_, _ = counter.Increment(ctx, "new", time.Minute)
	assert.Equal(t, 1, counter.size())
	_, ok := counter.counts["old"]
	assert.False(t, ok)
}

func TestRecoveryTurnsPanicsInto500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Recovery(quietLogger()))
	router.GET("/", func(*gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, serve(router, http.MethodGet, "/").Code)
}
