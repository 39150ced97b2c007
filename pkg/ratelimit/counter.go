package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is an atomic increment-with-expiry store.
// Incr adds one to key, sets its expiry to ttl when the key is new,
// and returns the value after the increment.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// incrScript increments and arms the expiry in one round trip.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisCounter is a Counter backed by Redis.
type RedisCounter struct {
	client redis.Scripter
}

// NewRedisCounter creates a counter using the given client.
func NewRedisCounter(client redis.Scripter) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrScript.Run(ctx, c.client, []string{key}, ttl.Milliseconds()).Int64()
}

// MemoryCounter is an in-process Counter.
type MemoryCounter struct {
	now     func() time.Time
	entries map[string]memoryEntry
	mu      sync.Mutex
}

type memoryEntry struct {
	expiresAt time.Time
	count     int64
}

// NewMemoryCounter creates an empty in-process counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = memoryEntry{expiresAt: now.Add(ttl)}
	}
	e.count++
	c.entries[key] = e

	// Drop expired keys once the map grows.
	if len(c.entries) > 1024 {
		for k, v := range c.entries {
			if !now.Before(v.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	return e.count, nil
}
