package stranded_recovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	domainerrors "github.com/rail-service/crosschain_transfer/internal/domain/errors"
	"github.com/rail-service/crosschain_transfer/pkg/metrics"
	"github.com/rail-service/crosschain_transfer/pkg/retry"
)

const (
	DefaultSchedule    = "@every 5m"
	DefaultMaxAttempts = 3
	sweepTimeout       = 4 * time.Minute
)

// Store lists sessions whose burn executed and whose mint has not completed
type Store interface {
	ListStranded(ctx context.Context) ([]*entities.TransferSession, error)
}

// Minter is the controller surface the sweep retries mints through
type Minter interface {
	Session(id uuid.UUID) (*entities.TransferSession, error)
	CompleteMint(ctx context.Context, id uuid.UUID) (*entities.TransferSession, error)
}

type Config struct {
	Schedule      string
	AutoRetryMint bool
	// MaxAttempts bounds how many sweeps retry the mint of one session
	MaxAttempts int
	Retry       retry.Policy
}

// Report summarizes one sweep
type Report struct {
	Stranded            int
	AwaitingBurn        int
	AwaitingAttestation int
	NotTracked          int
	MintsRetried        int
	MintsRecovered      int
}

// Worker periodically surfaces stranded sessions and, when enabled,
// retries their mint with the stored message and attestation.
type Worker struct {
	store  Store
	minter Minter
	cfg    Config
	cron   *cron.Cron
	logger *zap.Logger

	mu       sync.Mutex
	attempts map[uuid.UUID]int
}

func NewWorker(store Store, minter Minter, cfg Config, logger *zap.Logger) *Worker {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Worker{
		store:    store,
		minter:   minter,
		cfg:      cfg,
		cron:     cron.New(),
		logger:   logger,
		attempts: make(map[uuid.UUID]int),
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		if _, err := w.Sweep(ctx); err != nil {
			w.logger.Error("Stranded session sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Stranded recovery worker started",
		zap.String("schedule", w.cfg.Schedule),
		zap.Bool("auto_retry_mint", w.cfg.AutoRetryMint))
	return nil
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("Stranded recovery worker stopped")
}

// Sweep runs one recovery pass
func (w *Worker) Sweep(ctx context.Context) (Report, error) {
	var report Report

	stranded, err := w.store.ListStranded(ctx)
	if err != nil {
		return report, err
	}
	report.Stranded = len(stranded)
	metrics.StrandedSessions.Set(float64(len(stranded)))

	seen := make(map[uuid.UUID]struct{}, len(stranded))
	for _, s := range stranded {
		seen[s.ID] = struct{}{}

		w.logger.Warn("Stranded transfer",
			zap.String("session_id", s.ID.String()),
			zap.String("phase", string(s.Phase)),
			zap.String("recovery", string(s.Recovery())),
			zap.String("message_hash", s.Result.MessageHash),
			zap.String("burn_tx", s.Result.SourceTxHash),
			zap.String("unconfirmed_burn_tx", s.Result.UnconfirmedBurnTx),
			zap.String("to", string(s.Params.ToNetwork)))

		if s.BurnUnconfirmed() {
			report.AwaitingBurn++
			continue
		}
		if s.Recovery() != entities.RecoveryRetryMint {
			report.AwaitingAttestation++
			continue
		}
		if !w.cfg.AutoRetryMint {
			continue
		}

		live, err := w.minter.Session(s.ID)
		if err != nil {
			report.NotTracked++
			w.logger.Info("Stranded session not tracked, resume it to retry the mint",
				zap.String("session_id", s.ID.String()))
			continue
		}
		if live.Recovery() != entities.RecoveryRetryMint {
			continue
		}

		if !w.takeAttempt(s.ID) {
			continue
		}
		report.MintsRetried++
		if w.retryMint(ctx, s.ID) {
			report.MintsRecovered++
		}
	}

	w.forget(seen)
	return report, nil
}

func (w *Worker) retryMint(ctx context.Context, id uuid.UUID) bool {
	err := retry.Do(ctx, w.cfg.Retry, w.logger, func() error {
		_, err := w.minter.CompleteMint(ctx, id)
		return err
	})

	switch {
	case err == nil:
		metrics.RecoveryMints.WithLabelValues("recovered").Inc()
		w.logger.Info("Stranded mint recovered", zap.String("session_id", id.String()))
		return true
	case errors.Is(err, domainerrors.ErrConflict):
		metrics.RecoveryMints.WithLabelValues("busy").Inc()
	default:
		metrics.RecoveryMints.WithLabelValues("failed").Inc()
		w.logger.Error("Stranded mint retry failed",
			zap.String("session_id", id.String()),
			zap.Int("attempts_used", w.attemptsUsed(id)),
			zap.Int("max_attempts", w.cfg.MaxAttempts),
			zap.Error(err))
	}
	return false
}

func (w *Worker) takeAttempt(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attempts[id] >= w.cfg.MaxAttempts {
		return false
	}
	w.attempts[id]++
	return true
}

func (w *Worker) attemptsUsed(id uuid.UUID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts[id]
}

// forget drops counters of sessions that are no longer stranded
func (w *Worker) forget(current map[uuid.UUID]struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.attempts {
		if _, ok := current[id]; !ok {
			delete(w.attempts, id)
		}
	}
}
