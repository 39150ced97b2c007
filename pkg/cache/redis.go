package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared across processes. Values are stored as JSON.
type Redis[V any] struct {
	client redis.UniversalClient
	opts   options
}

func NewRedis[V any](client redis.UniversalClient, opts ...Option) *Redis[V] {
	return &Redis[V]{client: client, opts: newOptions(opts)}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		var zero V
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return unmarshal[V](b)
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	b, err := marshal(value)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = r.opts.defaultTTL
	}
	// go-redis treats 0 as "no expiry".
	return r.client.Set(ctx, r.key(key), b, max(ttl, 0)).Err()
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *Redis[V]) key(k string) string {
	if r.opts.prefix == "" {
		return k
	}
	return r.opts.prefix + ":" + k
}

var _ Cache[any] = (*Redis[any])(nil)
