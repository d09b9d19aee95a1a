package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/rental/internal/core"
	"example.com/backstage/services/rental/internal/metrics"
)

const sessionKey = "session"

// RequestLogger logs HTTP requests and records request metrics.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(statusCode)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())

		if raw != "" {
			path = path + "?" + raw
		}

		fields := logrus.Fields{
			"status":     statusCode,
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"user_agent": c.Request.UserAgent(),
		}
		if session := currentSession(c); session != nil {
			fields["user_id"] = session.UserID
		}
		logger.WithFields(fields).Info("HTTP Request")
	}
}

// SessionAuthentication resolves the bearer token to a session.
func SessionAuthentication(authService *core.AuthenticationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		session, err := authService.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, core.ErrSessionExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			if errors.Is(err, core.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
			return
		}

		scoped := *session
		scoped.IPAddress = c.ClientIP()
		c.Set(sessionKey, &scoped)
		c.Next()
	}
}

// RequireRole rejects sessions whose role is not listed.
func RequireRole(roles ...core.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := currentSession(c)
		if session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no session found"})
			return
		}

		for _, role := range roles {
			if session.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

func currentSession(c *gin.Context) *core.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*core.Session)
	return session
}

// CORS enables cross-origin requests from the configured origins.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposeHeaders:    []string{"Link"},
		AllowCredentials: true,
		MaxAge:           5 * time.Minute,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

// RateCounter counts requests per key within a window.
type RateCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter limits requests per client IP per minute. Counter errors let
// the request through.
func RateLimiter(counter RateCounter, requestsPerMinute int, logger *logrus.Logger) gin.HandlerFunc {
	if counter == nil {
		counter = newMemoryCounter()
	}

	return func(c *gin.Context) {
		if requestsPerMinute <= 0 {
			c.Next()
			return
		}

		window := time.Now().Truncate(time.Minute)
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), window.Unix())

		n, err := counter.Increment(c.Request.Context(), key, time.Minute)
		if err != nil {
			logger.WithError(err).Warn("Rate limiter unavailable")
			c.Next()
			return
		}

		if n > int64(requestsPerMinute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(time.Until(window.Add(time.Minute)).Seconds()),
			})
			return
		}
		c.Next()
	}
}

// memoryCounter is the single-instance fallback when Redis is unavailable.
// Expired keys are swept at most once per window.
type memoryCounter struct {
	mu        sync.Mutex
	counts    map[string]int64
	expires   map[string]time.Time
	nextSweep time.Time
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
	}
}

func (m *memoryCounter) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !now.Before(m.nextSweep) {
		for k, exp := range m.expires {
			if now.After(exp) {
				delete(m.counts, k)
				delete(m.expires, k)
			}
		}
		m.nextSweep = now.Add(window)
	}

	if exp, ok := m.expires[key]; !ok || now.After(exp) {
		m.counts[key] = 0
		m.expires[key] = now.Add(window)
	}
	m.counts[key]++
	return m.counts[key], nil
}

// Recovery handles panics and prevents server crashes
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithFields(logrus.Fields{
					"error":  err,
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
