package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
)

type memoryRedis struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	m.ttls[key] = expiration
	return nil
}

func (m *memoryRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	_, exists := m.data[key]
	m.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, m.Set(ctx, key, value, expiration)
}

func (m *memoryRedis) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return fmt.Errorf("key %q: %w", key, ErrCacheMiss)
	}
	return json.Unmarshal(b, dest)
}

func (m *memoryRedis) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryRedis) Ping(context.Context) error { return nil }
func (m *memoryRedis) Close() error               { return nil }

func TestBalanceSnapshotCache_RoundTrip(t *testing.T) {
	rdb := newMemoryRedis()
	c := NewBalanceSnapshotCache(rdb, time.Minute)
	ctx := context.Background()

	snap := entities.NetworkBalanceSnapshot{
		Network:       entities.NetworkFuji,
		HolderAddress: "0xAbC0000000000000000000000000000000000001",
		Balance:       "12.5",
		FetchedAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, c.Set(ctx, snap))

	got, err := c.Get(ctx, entities.NetworkFuji, "0xabc0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "12.5", got.Balance)
	assert.True(t, snap.FetchedAt.Equal(got.FetchedAt))
	assert.Equal(t, time.Minute, rdb.ttls["balance:fuji:0xabc0000000000000000000000000000000000001"])
}

func TestBalanceSnapshotCache_SkipsStale(t *testing.T) {
	rdb := newMemoryRedis()
	c := NewBalanceSnapshotCache(rdb, 0)

	require.NoError(t, c.Set(context.Background(), entities.NetworkBalanceSnapshot{
		Network: entities.NetworkSepolia, HolderAddress: "0x01", Balance: "0", Stale: true,
	}))
	assert.Empty(t, rdb.data)

	_, err := c.Get(context.Background(), entities.NetworkSepolia, "0x01")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
