package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KuwadaKouhei/todo-app/domain/todo"
)

const (
	defaultCachePrefix = "todos:"
	defaultCacheTTL    = 5 * time.Minute
)

// snapshotCache caches per-owner task snapshots in Redis (cache-aside).
// Every write for an owner invalidates that owner's entry. The cache is
// optional: a nil *snapshotCache is valid and disables caching.
type snapshotCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func newSnapshotCache(client *redis.Client, prefix string, ttl time.Duration) *snapshotCache {
	return &snapshotCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *snapshotCache) key(ownerID string) string {
	return c.prefix + ownerID
}

// get returns the cached snapshot for ownerID and whether it was found.
func (c *snapshotCache) get(ctx context.Context, ownerID string) ([]todo.Task, bool, error) {
	if c == nil {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, c.key(ownerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // cache miss
		}
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var tasks []todo.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return tasks, true, nil
}

// set stores a snapshot for ownerID with the configured TTL.
func (c *snapshotCache) set(ctx context.Context, ownerID string, tasks []todo.Task) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, c.key(ownerID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// invalidate drops the cached snapshot for ownerID.
func (c *snapshotCache) invalidate(ctx context.Context, ownerID string) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key(ownerID)).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// ping checks the Redis connection.
func (c *snapshotCache) ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// close closes the underlying Redis client.
func (c *snapshotCache) close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
