// Package cache is a small typed TTL cache with in-memory and Redis backends.
//
// herald uses it to keep delivery stats of finished broadcasts out of the
// database on repeated operator polls:
//
//	stats := cache.NewRedis[store.DeliveryStats](client, cache.WithPrefix("herald:stats"))
//	v, err := cache.GetOrSet(ctx, stats, broadcastID, func(ctx context.Context) (store.DeliveryStats, time.Duration, error) {
//	    s, err := st.DeliveryStats(ctx, broadcastID)
//	    return s, time.Minute, err
//	})
//
// GetOrSet collapses concurrent misses for the same key into one load.
// Cache write failures are ignored; the loaded value is still returned.
package cache
