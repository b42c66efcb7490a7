package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rail-service/crosschain_transfer/pkg/idempotency"
)

const idempotencyKeyPrefix = "idempotency:"

// IdempotencyStore keeps idempotency records in Redis so replays survive
// restarts and are shared between API replicas
type IdempotencyStore struct {
	client RedisClient
}

func NewIdempotencyStore(client RedisClient) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func (s *IdempotencyStore) Reserve(ctx context.Context, rec idempotency.Record, ttl time.Duration) (bool, error) {
	rec.Pending = true
	return s.client.SetNX(ctx, idempotencyKeyPrefix+rec.Key, rec, ttl)
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*idempotency.Record, bool, error) {
	var rec idempotency.Record
	err := s.client.Get(ctx, idempotencyKeyPrefix+key, &rec)
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, rec idempotency.Record, ttl time.Duration) error {
	rec.Pending = false
	return s.client.Set(ctx, idempotencyKeyPrefix+rec.Key, rec, ttl)
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key)
}
