// internal/posts/cache.go
// Time-boxed cache of a user's own posts, kept in local persisted state
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/database"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
)

// OwnPostsKeyPrefix is followed by the backend user id
const OwnPostsKeyPrefix = "user_posts_cache_"

// DefaultOwnPostsTTL is how long a cached list is served
const DefaultOwnPostsTTL = 5 * time.Minute

type ownPostsEntry struct {
	Timestamp int64   `json:"timestamp"` // unix milliseconds
	Posts     []*Post `json:"posts"`
}

// OwnPostsCache has no write-through invalidation: a cached list can lag behind the
// backend by up to the TTL.
type OwnPostsCache struct {
	kv     database.Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewOwnPostsCache(kv database.Store, ttl time.Duration, log *zap.Logger) *OwnPostsCache {
	if ttl <= 0 {
		ttl = DefaultOwnPostsTTL
	}
	return &OwnPostsCache{
		kv:     kv,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.OrNop(log),
	}
}

// Get returns the cached posts if they are younger than the TTL
func (c *OwnPostsCache) Get(ctx context.Context, userID string) ([]*Post, bool) {
	entry, err := c.read(ctx, OwnPostsKeyPrefix+userID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			c.logger.Warn("Failed to read posts cache", zap.String("user_id", userID), zap.Error(err))
		}
		cacheLookups.WithLabelValues("own_posts", "miss").Inc()
		return nil, false
	}
	if !c.fresh(entry) {
		cacheLookups.WithLabelValues("own_posts", "expired").Inc()
		return nil, false
	}
	cacheLookups.WithLabelValues("own_posts", "hit").Inc()
	return entry.Posts, true
}

// Put stores posts with the current time
func (c *OwnPostsCache) Put(ctx context.Context, userID string, posts []*Post) error {
	if posts == nil {
		posts = []*Post{}
	}
	data, err := json.Marshal(ownPostsEntry{
		Timestamp: c.now().UnixMilli(),
		Posts:     posts,
	})
	if err != nil {
		return fmt.Errorf("failed to encode posts cache: %w", err)
	}
	return c.kv.Set(ctx, OwnPostsKeyPrefix+userID, data, 0)
}

func (c *OwnPostsCache) Invalidate(ctx context.Context, userID string) error {
	return c.kv.Delete(ctx, OwnPostsKeyPrefix+userID)
}

// Sweep deletes expired and unreadable entries and returns how many were removed
func (c *OwnPostsCache) Sweep(ctx context.Context) (int, error) {
	keys, err := c.kv.Keys(ctx, OwnPostsKeyPrefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, OwnPostsKeyPrefix) {
			continue
		}
		entry, err := c.read(ctx, key)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err == nil && c.fresh(entry) {
			continue
		}
		if err := c.kv.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (c *OwnPostsCache) read(ctx context.Context, key string) (*ownPostsEntry, error) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var entry ownPostsEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt posts cache entry: %w", err)
	}
	return &entry, nil
}

func (c *OwnPostsCache) fresh(entry *ownPostsEntry) bool {
	age := c.now().Sub(time.UnixMilli(entry.Timestamp))
	return age < c.ttl
}

// CacheJanitor periodically sweeps the own-posts cache
type CacheJanitor struct {
	cache    *OwnPostsCache
	interval time.Duration
	logger   *zap.Logger
}

func NewCacheJanitor(cache *OwnPostsCache, interval time.Duration, log *zap.Logger) *CacheJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CacheJanitor{
		cache:    cache,
		interval: interval,
		logger:   logger.OrNop(log),
	}
}

// Start runs a sweep immediately and then on every tick until ctx is done
func (j *CacheJanitor) Start(ctx context.Context) {
	j.logger.Info("Starting posts cache janitor", zap.Duration("interval", j.interval))

	j.runSweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.runSweep(ctx)
		case <-ctx.Done():
			j.logger.Info("Stopping posts cache janitor")
			return
		}
	}
}

func (j *CacheJanitor) runSweep(ctx context.Context) {
	startTime := time.Now()
	removed, err := j.cache.Sweep(ctx)
	if err != nil {
		j.logger.Warn("Failed to sweep posts cache", zap.Error(err))
		return
	}
	j.logger.Debug("Posts cache sweep completed",
		zap.Int("removed", removed),
		zap.Duration("duration", time.Since(startTime)),
	)
}
