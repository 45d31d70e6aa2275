// Package redis implements catalog.SharedCache on Redis, so several
// booking-engine processes share one snapshot of the task catalog between
// refreshes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/factory"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey holds the encoded task list.
const DefaultKey = "booking:catalog:tasks"

// Commander is the subset of the go-redis client the cache uses.
type Commander interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// TaskCache stores the catalog as JSON under a single key.
type TaskCache struct {
	client Commander
	key    string
}

// NewTaskCache wraps a connected client. An empty key uses DefaultKey.
func NewTaskCache(client Commander, key string) *TaskCache {
	if key == "" {
		key = DefaultKey
	}
	return &TaskCache{client: client, key: key}
}

// Connect opens a client for addr and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// GetTasks returns the cached list. A missing key is a miss, not an error.
func (c *TaskCache) GetTasks(ctx context.Context) ([]catalog.Task, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get from cache: %w", err)
	}
	tasks, err := factory.UnmarshalTasks(data)
	if err != nil {
		return nil, false, err
	}
	return tasks, true, nil
}

// SetTasks stores the list with expiration ttl.
func (c *TaskCache) SetTasks(ctx context.Context, tasks []catalog.Task, ttl time.Duration) error {
	data, err := factory.MarshalTasks(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

func (c *TaskCache) InvalidateTasks(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}
