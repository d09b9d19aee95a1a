// services/rental/internal/core/cache.go
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// Cache is the key/value store used for read-through caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// cacheJSON stores v under key. Errors are logged, never returned.
func cacheJSON(ctx context.Context, cache Cache, logger *logrus.Logger, key string, v interface{}, ttl time.Duration) {
	if cache == nil || ttl <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, string(data), ttl); err != nil {
		logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

// cachedJSON loads key into v and reports whether it was found.
func cachedJSON(ctx context.Context, cache Cache, key string, v interface{}) bool {
	if cache == nil {
		return false
	}
	data, err := cache.Get(ctx, key)
	if err != nil || data == "" {
		return false
	}
	return json.Unmarshal([]byte(data), v) == nil
}

func evict(ctx context.Context, cache Cache, logger *logrus.Logger, keys ...string) {
	if cache == nil {
		return
	}
	for _, key := range keys {
		if err := cache.Delete(ctx, key); err != nil {
			logger.WithError(err).WithField("key", key).Warn("Cache eviction failed")
		}
	}
}
