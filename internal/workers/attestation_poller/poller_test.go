package attestation_poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

const hash = "0xabc"

func TestRegistry_StopsWhenDone(t *testing.T) {
	r := NewRegistry(5*time.Millisecond, logger.NewNop())
	var calls int32

	started := r.Start(context.Background(), hash, func(ctx context.Context) (bool, error) {
		return atomic.AddInt32(&calls, 1) >= 3, nil
	})
	require.True(t, started)

	require.Eventually(t, func() bool { return !r.Active(hash) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRegistry_OnePollerPerHash(t *testing.T) {
	r := NewRegistry(time.Hour, logger.NewNop())
	defer r.StopAll()

	check := func(ctx context.Context) (bool, error) { return false, nil }

	assert.True(t, r.Start(context.Background(), hash, check))
	assert.False(t, r.Start(context.Background(), hash, check))
	assert.True(t, r.Start(context.Background(), "0xdef", check))
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_ChecksNeverOverlap(t *testing.T) {
	r := NewRegistry(time.Millisecond, logger.NewNop())
	var inFlight, maxInFlight, calls int32

	r.Start(context.Background(), hash, func(ctx context.Context) (bool, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond) // slower than the interval
		atomic.AddInt32(&inFlight, -1)
		return atomic.AddInt32(&calls, 1) >= 5, nil
	})

	require.Eventually(t, func() bool { return !r.Active(hash) }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestRegistry_ErrorsKeepPolling(t *testing.T) {
	r := NewRegistry(time.Millisecond, logger.NewNop())
	var calls int32

	r.Start(context.Background(), hash, func(ctx context.Context) (bool, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return false, errors.New("attestation service unavailable")
		}
		return true, nil
	})

	require.Eventually(t, func() bool { return !r.Active(hash) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRegistry_Stop(t *testing.T) {
	r := NewRegistry(time.Millisecond, logger.NewNop())
	var calls int32

	r.Start(context.Background(), hash, func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) > 0 }, time.Second, time.Millisecond)

	assert.True(t, r.Stop(hash))
	assert.False(t, r.Active(hash))
	assert.False(t, r.Stop(hash))

	after := atomic.LoadInt32(&calls)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))

	// the hash can be polled again after a stop
	assert.True(t, r.Start(context.Background(), hash, func(ctx context.Context) (bool, error) { return true, nil }))
}

func TestRegistry_ParentCancel(t *testing.T) {
	r := NewRegistry(time.Hour, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	r.Start(ctx, hash, func(ctx context.Context) (bool, error) { return false, nil })
	cancel()

	require.Eventually(t, func() bool { return !r.Active(hash) }, time.Second, time.Millisecond)
}
