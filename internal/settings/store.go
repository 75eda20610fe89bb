package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned by a Backend when nothing is stored under the key.
var ErrNotFound = errors.New("settings: not found")

// Backend persists the serialized settings record.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// RedisBackend stores settings as a single Redis string.
type RedisBackend struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	if client == nil {
		panic("settings: redis client cannot be nil")
	}
	return &RedisBackend{
		redis:  client,
		tracer: otel.Tracer("appointment-insights.internal.settings"),
	}
}

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, span := b.tracer.Start(ctx, "settings.redis.load",
		trace.WithAttributes(attribute.String("settings.key", key)))
	defer span.End()

	data, err := b.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("settings: redis get: %w", err)
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, key string, data []byte) error {
	ctx, span := b.tracer.Start(ctx, "settings.redis.save",
		trace.WithAttributes(attribute.String("settings.key", key)))
	defer span.End()

	if err := b.redis.Set(ctx, key, data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("settings: redis set: %w", err)
	}
	return nil
}

// MemoryBackend keeps settings for the life of the process.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Save(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), data...)
	return nil
}
