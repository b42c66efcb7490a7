package attestation_poller

import (
	"context"
	"sync"
	"time"

	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

// CheckFunc performs one status check. done=true stops polling.
// An error is logged and the next check is still scheduled.
type CheckFunc func(ctx context.Context) (done bool, err error)

// DefaultInterval is the re-check interval when none is configured
const DefaultInterval = 20 * time.Second

// Registry runs at most one poller per key: a message hash, or a burn tx
// hash while the burn awaits its receipt
type Registry struct {
	interval time.Duration
	logger   *logger.Logger

	mu      sync.Mutex
	pollers map[string]*poller
	wg      sync.WaitGroup
}

type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistry creates a poller registry
func NewRegistry(interval time.Duration, logger *logger.Logger) *Registry {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Registry{
		interval: interval,
		logger:   logger,
		pollers:  make(map[string]*poller),
	}
}

// Start launches a poller for key. It returns false when one is already running.
// The first check runs after one interval; the next timer is armed only after a check returns.
func (r *Registry) Start(parent context.Context, key string, check CheckFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pollers[key]; exists {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	p := &poller{cancel: cancel, done: make(chan struct{})}
	r.pollers[key] = p
	r.wg.Add(1)

	go r.run(ctx, key, p, check)

	r.logger.Info("Polling started",
		"key", key,
		"interval", r.interval.String())
	return true
}

func (r *Registry) run(ctx context.Context, key string, p *poller, check CheckFunc) {
	defer r.wg.Done()
	defer close(p.done)
	defer r.remove(key, p)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Polling cancelled", "key", key)
			return
		case <-timer.C:
		}

		attempt++
		done, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("Status check failed",
				"key", key,
				"attempt", attempt,
				"error", err)
		}
		if done {
			r.logger.Info("Polling finished",
				"key", key,
				"attempts", attempt)
			return
		}

		timer.Reset(r.interval)
	}
}

func (r *Registry) remove(key string, p *poller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.pollers[key]; ok && current == p {
		delete(r.pollers, key)
	}
}

// Stop cancels the poller for key and waits for it to exit.
// It reports whether a poller was running.
func (r *Registry) Stop(key string) bool {
	r.mu.Lock()
	p, ok := r.pollers[key]
	if ok {
		delete(r.pollers, key)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	p.cancel()
	<-p.done
	return true
}

// Active reports whether a poller is running for key
func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pollers[key]
	return ok
}

// Count returns the number of running pollers
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pollers)
}

// StopAll cancels every poller and waits for them to exit
func (r *Registry) StopAll() {
	r.mu.Lock()
	for key, p := range r.pollers {
		p.cancel()
		delete(r.pollers, key)
	}
	r.mu.Unlock()

	r.wg.Wait()
}
