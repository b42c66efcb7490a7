package graceful

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

func TestShutdown_RunsHooksInOrder(t *testing.T) {
	sm := NewShutdownManager(&http.Server{}, time.Second, logger.NewNop())

	var order []string
	sm.Register("worker", func(context.Context) error {
		order = append(order, "worker")
		return nil
	})
	sm.Register("cache", func(context.Context) error {
		order = append(order, "cache")
		return errors.New("already closed")
	})
	sm.Register("tracer", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		order = append(order, "tracer")
		return nil
	})

	sm.Shutdown()

	assert.Equal(t, []string{"worker", "cache", "tracer"}, order)
}

func TestWaitForShutdown_ContextCancel(t *testing.T) {
	sm := NewShutdownManager(nil, 0, logger.NewNop())
	stopped := false
	sm.Register("controller", func(context.Context) error {
		stopped = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sm.WaitForShutdown(ctx)

	assert.True(t, stopped)
	assert.Equal(t, 30*time.Second, sm.timeout)
}
