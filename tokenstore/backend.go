package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/qoeplatform/qoe/db"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MemoryBackend keeps the session in process memory only.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryBackend returns an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Save(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// DBBackend stores the session in the local SQLite database.
type DBBackend struct {
	repo db.SettingRepository
}

// NewDBBackend wraps a setting repository.
func NewDBBackend(repo db.SettingRepository) *DBBackend {
	return &DBBackend{repo: repo}
}

func (b *DBBackend) Load(ctx context.Context, key string) ([]byte, error) {
	return b.repo.Get(ctx, key)
}

func (b *DBBackend) Save(ctx context.Context, key string, value []byte) error {
	return b.repo.Put(ctx, key, value)
}

func (b *DBBackend) Delete(ctx context.Context, key string) error {
	return b.repo.Delete(ctx, key)
}

// RedisBackend stores the session in Redis so several shells or machines can share one login.
type RedisBackend struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend stores keys as prefix+key. A positive ttl expires the record;
// zero keeps it until deleted.
func NewRedisBackend(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "qoe:"
	}
	return &RedisBackend{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := b.rdb.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		log.Error().Err(err).Str("key", b.prefix+key).Msg("Failed to read session from redis")
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (b *RedisBackend) Save(ctx context.Context, key string, value []byte) error {
	if err := b.rdb.Set(ctx, b.prefix+key, value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.rdb.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
