package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"
)

const cursorKey = "poller:last_update_id"

// RedisCursorStore persists the inbound poller's cursor so a restart does not
// re-fetch already-delivered messages. A nil Redis client is tolerated: the
// cursor then lives in memory only, matching how the rest of the stack treats
// Redis as optional.
type RedisCursorStore struct {
	redis *redis.Client

	mu     sync.Mutex
	cached int64
}

func NewRedisCursorStore(client *redis.Client) *RedisCursorStore {
	return &RedisCursorStore{redis: client}
}

// Load returns the last persisted cursor, or 0 when none was saved yet.
func (c *RedisCursorStore) Load(ctx context.Context) (int64, error) {
	if c.redis == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.cached, nil
	}

	val, err := c.redis.Get(ctx, cursorKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	cursor, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %q: %w", val, err)
	}
	return cursor, nil
}

// Save stores the cursor. Best effort: the poller treats failures as
// non-fatal and keeps its in-process cursor authoritative.
func (c *RedisCursorStore) Save(ctx context.Context, cursor int64) error {
	if c.redis == nil {
		c.mu.Lock()
		c.cached = cursor
		c.mu.Unlock()
		return nil
	}

	if err := c.redis.Set(ctx, cursorKey, strconv.FormatInt(cursor, 10), 0).Err(); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
