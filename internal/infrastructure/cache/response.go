// Package cache provides the read-through response accelerator.
//
// The cache is never authoritative: a miss must be resolved against the
// idempotency store, and entries exist only for completed charges.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one cached replay: the hash guards against key reuse with a
// different body, the rest is the exact response to repeat.
type Entry struct {
	RequestHash  string          `json:"requestHash"`
	HTTPStatus   int             `json:"httpStatus"`
	ResponseBody json.RawMessage `json:"responseBody"`
}

// ResponseCache maps (scope, key) to completed responses in Redis.
type ResponseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a response cache. TTL is an operational knob with no
// correctness role.
func New(rdb *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{rdb: rdb, ttl: ttl}
}

func cacheKey(scope, key string) string {
	return "idem:" + scope + ":" + key
}

// Get returns the cached entry or (nil, nil) on miss.
func (c *ResponseCache) Get(ctx context.Context, scope, key string) (*Entry, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry behaves like a miss; the store is authoritative.
		return nil, nil
	}
	return &entry, nil
}

// Put stores a completed response. Called best-effort after commit.
func (c *ResponseCache) Put(ctx context.Context, scope, key, requestHash string, httpStatus int, body []byte) error {
	raw, err := json.Marshal(Entry{
		RequestHash:  requestHash,
		HTTPStatus:   httpStatus,
		ResponseBody: body,
	})
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}

	if err := c.rdb.Set(ctx, cacheKey(scope, key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}
