package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache caches access snapshots for the read-optimized status
// endpoint. Implementations must treat misses and backend failures the same
// way: the caller falls through to the store.
type SnapshotCache interface {
	Get(ctx context.Context, userID string) (*Snapshot, bool)
	Set(ctx context.Context, userID string, snap Snapshot)
	Invalidate(ctx context.Context, userID string)
}

// NoopSnapshotCache disables caching; every read hits the store.
type NoopSnapshotCache struct{}

func (NoopSnapshotCache) Get(context.Context, string) (*Snapshot, bool) { return nil, false }
func (NoopSnapshotCache) Set(context.Context, string, Snapshot)         {}
func (NoopSnapshotCache) Invalidate(context.Context, string)            {}

const snapshotKeyPrefix = "billing:snapshot:"

// RedisSnapshotCache caches snapshots in Redis with a short TTL. The TTL
// bounds staleness between webhook-driven invalidations, so it should stay
// well under a minute.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshotCache returns a Redis-backed cache. A non-positive ttl
// defaults to 30 seconds.
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func (c *RedisSnapshotCache) Get(ctx context.Context, userID string) (*Snapshot, bool) {
	data, err := c.client.Get(ctx, snapshotKeyPrefix+userID).Bytes()
	if err != nil {
		return nil, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (c *RedisSnapshotCache) Set(ctx context.Context, userID string, snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, snapshotKeyPrefix+userID, data, c.ttl).Err()
}

func (c *RedisSnapshotCache) Invalidate(ctx context.Context, userID string) {
	_ = c.client.Del(ctx, snapshotKeyPrefix+userID).Err()
}
