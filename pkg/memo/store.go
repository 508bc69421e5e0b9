package memo

import (
	"context"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/stores/redis"
)

const sweepEvery = 128

type entry struct {
	payload []byte
	expires time.Time
}

// MemoryStore is an in-process Store. Entries live until their TTL elapses;
// there is no size bound.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	writes  int
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.payload, true, nil
}

// Set implements Store. The payload is retained, not copied.
func (s *MemoryStore) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.entries[key] = entry{payload: payload, expires: now.Add(ttl)}
	s.writes++
	if s.writes%sweepEvery == 0 {
		for k, e := range s.entries {
			if !now.Before(e.expires) {
				delete(s.entries, k)
			}
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included until they
// are swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisStore keeps entries in Redis and delegates expiry to SETEX.
type RedisStore struct {
	rds *redis.Redis
}

// NewRedisStore wraps an existing go-zero Redis client.
func NewRedisStore(rds *redis.Redis) *RedisStore {
	return &RedisStore{rds: rds}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rds.GetCtx(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if val == "" {
		return nil, false, nil
	}
	return []byte(val), true, nil
}

// Set implements Store. Sub-second TTLs are rounded up to one second.
func (s *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	seconds := int((ttl + time.Second - 1) / time.Second)
	return s.rds.SetexCtx(ctx, key, string(payload), seconds)
}

// NopStore never stores anything.
type NopStore struct{}

// Get implements Store.
func (NopStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set implements Store.
func (NopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
