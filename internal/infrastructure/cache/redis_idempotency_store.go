package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "__en_curso__"

// RedisIdempotencyStore implementa IdempotencyStore con SETNX, compartido entre instancias.
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore construye el store sobre un cliente existente.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "osiris:idempotency:"
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

var _ IdempotencyStore = (*RedisIdempotencyStore)(nil)

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (*StoredResponse, bool, error) {
	k := s.keyPrefix + key
	ok, err := s.client.SetNX(ctx, k, pendingMarker, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis: reservar clave: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	raw, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expiró entre SETNX y GET: se trata como en curso, el cliente reintenta.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: leer clave: %w", err)
	}
	if raw == pendingMarker {
		return nil, false, nil
	}
	var resp StoredResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, false, fmt.Errorf("redis: respuesta guardada inválida: %w", err)
	}
	return &resp, false, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: guardar respuesta: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis: liberar clave: %w", err)
	}
	return nil
}
