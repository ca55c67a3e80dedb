package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers which request keys were already processed.
type IdempotencyStore interface {
	// Reserve records value under key unless the key is already taken, in
	// which case it returns the stored value and false.
	Reserve(ctx context.Context, key, value string, ttl time.Duration) (existing string, reserved bool, err error)
	// Release forgets key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// RedisIdempotencyStore keeps keys under idem:cart:<key>.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (r *RedisIdempotencyStore) getIdemKey(key string) string {
	return "idem:cart:" + key
}

func (r *RedisIdempotencyStore) Reserve(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	ok, err := r.client.SetNX(ctx, r.getIdemKey(key), value, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis SETNX idempotency key: %w", err)
	}
	if ok {
		return value, true, nil
	}
	existing, err := r.client.Get(ctx, r.getIdemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller may simply retry
		return "", false, fmt.Errorf("idempotency key %s expired during reservation", key)
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET idempotency key: %w", err)
	}
	return existing, false, nil
}

func (r *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.getIdemKey(key)).Err()
}

type memoryIdemEntry struct {
	value   string
	expires time.Time
}

// idemSweepInterval is the minimum gap between sweeps of expired keys.
const idemSweepInterval = time.Minute

// MemoryIdempotencyStore is the in-process IdempotencyStore. Expired keys
// are swept from Reserve.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	entries   map[string]memoryIdemEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]memoryIdemEntry),
		now:     time.Now,
	}
}

// WithClock overrides the time source used for expiry.
func (m *MemoryIdempotencyStore) WithClock(now func() time.Time) *MemoryIdempotencyStore {
	m.now = now
	return m
}

// Len reports how many keys are held, expired or not.
func (m *MemoryIdempotencyStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryIdempotencyStore) Reserve(_ context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) >= idemSweepInterval {
		m.sweep(now)
	}
	if e, ok := m.entries[key]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return e.value, false, nil
	}
	e := memoryIdemEntry{value: value}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.entries[key] = e
	return value, true, nil
}

// sweep drops expired keys. Callers hold mu.
func (m *MemoryIdempotencyStore) sweep(now time.Time) {
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

func (m *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
