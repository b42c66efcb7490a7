package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

// Hook releases one component during shutdown
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// ShutdownManager stops the HTTP server first, then the registered
// components in registration order.
type ShutdownManager struct {
	server  *http.Server
	hooks   []namedHook
	timeout time.Duration
	logger  *logger.Logger
}

func NewShutdownManager(server *http.Server, timeout time.Duration, logger *logger.Logger) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		server:  server,
		timeout: timeout,
		logger:  logger,
	}
}

func (sm *ShutdownManager) Register(name string, fn Hook) {
	sm.hooks = append(sm.hooks, namedHook{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, or until ctx is done,
// then runs Shutdown.
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		sm.logger.Info("Shutting down gracefully...", "signal", sig.String())
	case <-ctx.Done():
		sm.logger.Info("Shutting down gracefully...", "reason", ctx.Err())
	}

	sm.Shutdown()
}

// Shutdown drains in-flight requests and releases every registered component.
// Component errors are logged; one failing hook does not stop the rest.
func (sm *ShutdownManager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	for _, h := range sm.hooks {
		if err := h.fn(ctx); err != nil {
			sm.logger.Warn("Component shutdown error", "component", h.name, "error", err)
			continue
		}
		sm.logger.Debug("Component stopped", "component", h.name)
	}

	sm.logger.Info("Shutdown complete")
}
