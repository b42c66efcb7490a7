package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
)

const balanceKeyPrefix = "balance"

// DefaultSnapshotTTL applies when no TTL is configured
const DefaultSnapshotTTL = 10 * time.Minute

// BalanceSnapshotCache mirrors the latest balance per network and holder in Redis
type BalanceSnapshotCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewBalanceSnapshotCache(client RedisClient, ttl time.Duration) *BalanceSnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &BalanceSnapshotCache{client: client, ttl: ttl}
}

func balanceKey(network entities.Network, address string) string {
	return fmt.Sprintf("%s:%s:%s", balanceKeyPrefix, network, strings.ToLower(address))
}

func (c *BalanceSnapshotCache) Get(ctx context.Context, network entities.Network, address string) (*entities.NetworkBalanceSnapshot, error) {
	var snap entities.NetworkBalanceSnapshot
	if err := c.client.Get(ctx, balanceKey(network, address), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Set stores only fresh snapshots; stale fallbacks would overwrite real data.
func (c *BalanceSnapshotCache) Set(ctx context.Context, snapshot entities.NetworkBalanceSnapshot) error {
	if snapshot.Stale {
		return nil
	}
	return c.client.Set(ctx, balanceKey(snapshot.Network, snapshot.HolderAddress), snapshot, c.ttl)
}
