package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "widget:"

// CacheClient is the subset of *redis.Client the cache uses.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedRepository caches single-widget reads in Redis in front of another
// Repository. Writes go to the inner repository and invalidate the cached
// entry. Redis failures are logged and never fail a request.
type CachedRepository struct {
	Repository

	client CacheClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository wraps inner with a read-through cache whose entries
// expire after ttl.
func NewCachedRepository(inner Repository, client CacheClient, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{Repository: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, id)
}

func (r *CachedRepository) Get(ctx context.Context, id int64) (*Widget, error) {
	key := cacheKey(id)

	b, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var w Widget
		if err := json.Unmarshal(b, &w); err == nil {
			return &w, nil
		}
		r.logger.Warn("discarding undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("widget cache read failed", "key", key, "error", err)
	}

	w, err := r.Repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(w); err == nil {
		if err := r.client.Set(ctx, key, b, r.ttl).Err(); err != nil {
			r.logger.Warn("widget cache write failed", "key", key, "error", err)
		}
	}
	return w, nil
}

func (r *CachedRepository) SetSpecsheetURL(ctx context.Context, id int64, url string) (*Widget, error) {
	w, err := r.Repository.SetSpecsheetURL(ctx, id, url)
	r.invalidate(ctx, id)
	return w, err
}

func (r *CachedRepository) Delete(ctx context.Context, id int64) error {
	err := r.Repository.Delete(ctx, id)
	r.invalidate(ctx, id)
	return err
}

func (r *CachedRepository) invalidate(ctx context.Context, id int64) {
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.logger.Warn("widget cache invalidation failed", "key", cacheKey(id), "error", err)
	}
}
