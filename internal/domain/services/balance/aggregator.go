package balance

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/pkg/metrics"
)

// DefaultDelay spaces sequential balance queries to stay under RPC rate limits
const DefaultDelay = 200 * time.Millisecond

// Reader returns the USDC balance of an address on one network
type Reader interface {
	Network() entities.Network
	GetBalance(ctx context.Context, address string) (string, error)
}

// SnapshotCache mirrors snapshots outside the process, e.g. in Redis
type SnapshotCache interface {
	Get(ctx context.Context, network entities.Network, address string) (*entities.NetworkBalanceSnapshot, error)
	Set(ctx context.Context, snapshot entities.NetworkBalanceSnapshot) error
}

// Result is the outcome for one network in a refresh
type Result struct {
	Network  entities.Network
	Snapshot entities.NetworkBalanceSnapshot
	Err      error
}

type key struct {
	network entities.Network
	address string
}

// Aggregator fetches balances network by network and keeps the latest snapshot.
// It is the only writer of its cache.
type Aggregator struct {
	readers []Reader
	delay   time.Duration
	cache   SnapshotCache
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	snapshots map[key]entities.NetworkBalanceSnapshot
}

// NewAggregator queries readers in the given order. cache may be nil.
func NewAggregator(readers []Reader, delay time.Duration, cache SnapshotCache, logger *zap.Logger) *Aggregator {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Aggregator{
		readers:   readers,
		delay:     delay,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
		snapshots: make(map[key]entities.NetworkBalanceSnapshot),
	}
}

func normalize(address string) string {
	return strings.ToLower(address)
}

// RefreshAllBalances queries every network sequentially with a fixed delay between calls.
// A failing network is logged and reported in its Result; the rest still run.
func (a *Aggregator) RefreshAllBalances(ctx context.Context, address string) []Result {
	results := make([]Result, 0, len(a.readers))

	for i, reader := range a.readers {
		if i > 0 && a.delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(a.delay):
			}
		}

		if err := ctx.Err(); err != nil {
			results = append(results, a.failed(ctx, reader.Network(), address, err))
			continue
		}

		raw, err := reader.GetBalance(ctx, address)
		if err != nil {
			metrics.BalanceFetchFailures.WithLabelValues(string(reader.Network())).Inc()
			a.logger.Warn("Balance fetch failed",
				zap.String("network", string(reader.Network())),
				zap.String("address", address),
				zap.Error(err))
			results = append(results, a.failed(ctx, reader.Network(), address, err))
			continue
		}

		snap := entities.NetworkBalanceSnapshot{
			Network:       reader.Network(),
			HolderAddress: address,
			Balance:       raw,
			FetchedAt:     a.now(),
		}
		a.store(snap)
		if a.cache != nil {
			if err := a.cache.Set(ctx, snap); err != nil {
				a.logger.Debug("Balance snapshot cache write failed", zap.Error(err))
			}
		}
		results = append(results, Result{Network: reader.Network(), Snapshot: snap})
	}

	return results
}

// failed falls back to the last known balance, then to zero
func (a *Aggregator) failed(ctx context.Context, network entities.Network, address string, cause error) Result {
	snap, ok := a.Snapshot(network, address)
	if !ok && a.cache != nil && ctx.Err() == nil {
		if cached, err := a.cache.Get(ctx, network, address); err == nil && cached != nil {
			snap, ok = *cached, true
		}
	}
	if !ok {
		snap = entities.NetworkBalanceSnapshot{
			Network:       network,
			HolderAddress: address,
			Balance:       "0",
		}
	}
	snap.Stale = true
	snap.Error = cause.Error()
	a.store(snap)
	return Result{Network: network, Snapshot: snap, Err: cause}
}

func (a *Aggregator) store(snap entities.NetworkBalanceSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots[key{snap.Network, normalize(snap.HolderAddress)}] = snap
}

// Snapshot returns the latest snapshot for a network and address
func (a *Aggregator) Snapshot(network entities.Network, address string) (entities.NetworkBalanceSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snapshots[key{network, normalize(address)}]
	return snap, ok
}

// Snapshots returns the known snapshots for address in network order
func (a *Aggregator) Snapshots(address string) []entities.NetworkBalanceSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]entities.NetworkBalanceSnapshot, 0, len(a.readers))
	for _, r := range a.readers {
		if snap, ok := a.snapshots[key{r.Network(), normalize(address)}]; ok {
			out = append(out, snap)
		}
	}
	return out
}
