// Package cache holds the application-state layer: JSON snapshots of the
// inventory collections, loaded on demand and dropped whenever a write
// touches them. The backing store is pluggable (in-process or Redis).
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MiRedo238/Chemsphere-sub000/internal/config"
)

// Backend stores opaque snapshot bytes under string keys, next to a
// per-key generation counter that invalidation bumps.
type Backend interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// Generation returns the counter for key, zero when never bumped.
	Generation(ctx context.Context, key string) (int64, error)
	// Bump increments the counters for keys.
	Bump(ctx context.Context, keys ...string) error
	// SetIfGeneration stores val only while the counter for key still equals
	// gen, and reports whether it stored.
	SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error)
}

type memoryEntry struct {
	val     []byte
	expires time.Time
}

// MemoryBackend keeps snapshots in process memory. It is the default and
// suits a single replica.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	gens    map[string]int64
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), gens: make(map[string]int64), now: time.Now}
}

// Get returns a copy-free view of the stored bytes; callers must not mutate it.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *MemoryBackend) entry(val []byte, ttl time.Duration) memoryEntry {
	e := memoryEntry{val: val}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	return e
}

// Set stores val; a ttl of zero or less never expires.
func (m *MemoryBackend) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	e := m.entry(val, ttl)
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Generation(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gens[key], nil
}

func (m *MemoryBackend) Bump(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		m.gens[k]++
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) SetIfGeneration(_ context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error) {
	e := m.entry(val, ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[key] != gen {
		return false, nil
	}
	m.entries[key] = e
	return true, nil
}

// Delete removes keys; missing keys are ignored.
func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

// RedisBackend shares snapshots between replicas through Redis.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg config.RedisConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisBackendWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

// Client exposes the underlying client so the rate limiter can share it.
func (r *RedisBackend) Client() redis.UniversalClient {
	return r.client
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+key, val, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.client.Del(ctx, full...).Err()
}

func genKey(key string) string {
	return key + ":gen"
}

func (r *RedisBackend) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := r.client.Get(ctx, r.prefix+genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *RedisBackend) Bump(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Incr(ctx, r.prefix+genKey(k))
		}
		return nil
	})
	return err
}

// SetIfGeneration watches the counter so a Bump from any replica between the
// check and the write aborts the transaction.
func (r *RedisBackend) SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	gk := r.prefix + genKey(key)
	stored := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.prefix+key, val, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, gk)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Close releases the Redis connection pool.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
