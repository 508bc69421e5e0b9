// Package memo memoises expensive calls behind an explicit key and a TTL.
//
// Values are stored msgpack-encoded and every caller receives its own decoded
// copy, so a cached result can be mutated freely without corrupting the entry.
// Concurrent misses on the same key share a single computation.
package memo

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/syncx"
)

// Key identifies a cache entry. Build keys with dedicated constructors rather
// than by hand.
type Key string

// String returns the raw key.
func (k Key) String() string { return string(k) }

// Store persists encoded entries with an expiry.
type Store interface {
	// Get returns the live payload stored under key. Expired entries are
	// reported as missing.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores payload under key for ttl.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// Cache couples a Store with per-key single flight.
type Cache struct {
	store  Store
	flight syncx.SingleFlight
}

// New returns a cache over store. A nil store disables caching.
func New(store Store) *Cache {
	if store == nil {
		store = NopStore{}
	}
	return &Cache{store: store, flight: syncx.NewSingleFlight()}
}

// Do returns the value cached under key, computing it with fn on a miss. A
// non-positive ttl bypasses the store but still collapses concurrent calls.
// Errors from fn are returned as is and never cached.
func Do[T any](ctx context.Context, c *Cache, key Key, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return fn(ctx)
	}
	k := key.String()

	if ttl > 0 {
		if payload, ok := c.lookup(ctx, k); ok {
			var out T
			err := msgpack.Unmarshal(payload, &out)
			if err == nil {
				return out, nil
			}
			logx.WithContext(ctx).Errorf("memo: decode key=%s err=%v", k, err)
		}
	}

	shared, err := c.flight.Do(k, func() (any, error) {
		// A flight that finished after our lookup may have filled the entry.
		if ttl > 0 {
			if payload, ok := c.lookup(ctx, k); ok {
				var cached T
				if msgpack.Unmarshal(payload, &cached) == nil {
					return payload, nil
				}
			}
		}
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("memo: encode key=%s: %w", k, err)
		}
		if ttl > 0 {
			if err := c.store.Set(ctx, k, payload, ttl); err != nil {
				logx.WithContext(ctx).Errorf("memo: store key=%s err=%v", k, err)
			}
		}
		return payload, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := msgpack.Unmarshal(shared.([]byte), &out); err != nil {
		return zero, fmt.Errorf("memo: decode key=%s: %w", k, err)
	}
	return out, nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	payload, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logx.WithContext(ctx).Errorf("memo: load key=%s err=%v", key, err)
		return nil, false
	}
	return payload, ok
}
