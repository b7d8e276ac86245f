package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"lossreview/internal/pipeline"
)

// Cache shares recent run states across API instances via Redis, so a chat
// request can land on any replica after the analysis ran on another.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache connects to Redis at addr ("host:port").
func NewCache(addr string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func cacheKey(requestID string) string { return "lossreview:run:" + requestID }

// PutRun stores a run state under its request id.
func (c *Cache) PutRun(ctx context.Context, st *pipeline.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(st.RequestID), b, c.ttl).Err()
}

// GetRun loads a cached run state; the second return is false on a miss.
func (c *Cache) GetRun(ctx context.Context, requestID string) (pipeline.State, bool, error) {
	var st pipeline.State
	b, err := c.rdb.Get(ctx, cacheKey(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return st, false, nil
		}
		return st, false, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, false, err
	}
	return st, true, nil
}
