package limits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
)

var (
	ErrPerTransferLimitExceeded = errors.New("per-transfer limit exceeded")
	ErrDailyLimitExceeded       = errors.New("daily transfer limit exceeded")
)

// Config holds the holder limits in whole USDC. Zero disables a limit.
type Config struct {
	MaxPerTransfer decimal.Decimal
	DailyLimit     decimal.Decimal
}

// Usage is the amount a holder has burned in the current daily window
type Usage struct {
	DailyUsed    decimal.Decimal
	DailyResetAt time.Time
}

// UsageStore persists per-holder usage
type UsageStore interface {
	Get(ctx context.Context, holder string) (Usage, bool, error)
	Put(ctx context.Context, holder string, usage Usage) error
}

// Service enforces holder transfer limits before any burn is submitted
type Service struct {
	config Config
	store  UsageStore
	logger *logger.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewService creates a new limits service; a nil store keeps usage in memory
func NewService(config Config, store UsageStore, logger *logger.Logger) *Service {
	if store == nil {
		store = NewMemoryUsageStore()
	}
	return &Service{
		config: config,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// BeforeTransfer checks req against the limits and reserves its amount.
// Amount syntax is the validator's concern; an unparsable amount passes through.
func (s *Service) BeforeTransfer(ctx context.Context, req entities.TransferRequest, holder string) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil
	}

	if s.config.MaxPerTransfer.IsPositive() && amount.GreaterThan(s.config.MaxPerTransfer) {
		return fmt.Errorf("%w: %s USDC exceeds %s USDC", ErrPerTransferLimitExceeded,
			amount.String(), s.config.MaxPerTransfer.String())
	}
	if !s.config.DailyLimit.IsPositive() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(holder)
	usage, err := s.current(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get usage: %w", err)
	}

	next := usage.DailyUsed.Add(amount)
	if next.GreaterThan(s.config.DailyLimit) {
		remaining := s.config.DailyLimit.Sub(usage.DailyUsed)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		return fmt.Errorf("%w: %s USDC remaining until %s", ErrDailyLimitExceeded,
			remaining.String(), usage.DailyResetAt.Format(time.RFC3339))
	}

	usage.DailyUsed = next
	if err := s.store.Put(ctx, key, usage); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	s.logger.Debug("Transfer within limits",
		"holder", key,
		"amount", amount.String(),
		"daily_used", next.String())
	return nil
}

// Remaining returns how much holder can still transfer today
func (s *Service) Remaining(ctx context.Context, holder string) (decimal.Decimal, error) {
	if !s.config.DailyLimit.IsPositive() {
		return decimal.Zero, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, err := s.current(ctx, strings.ToLower(holder))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Max(s.config.DailyLimit.Sub(usage.DailyUsed), decimal.Zero), nil
}

// current loads usage, starting a new window when the stored one expired
func (s *Service) current(ctx context.Context, holder string) (Usage, error) {
	now := s.now()
	usage, ok, err := s.store.Get(ctx, holder)
	if err != nil {
		return Usage{}, err
	}
	if !ok || !now.Before(usage.DailyResetAt) {
		usage = Usage{
			DailyUsed:    decimal.Zero,
			DailyResetAt: now.Truncate(24 * time.Hour).Add(24 * time.Hour),
		}
	}
	return usage, nil
}

// MemoryUsageStore keeps usage in process memory
type MemoryUsageStore struct {
	mu    sync.RWMutex
	usage map[string]Usage
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{usage: make(map[string]Usage)}
}

func (m *MemoryUsageStore) Get(_ context.Context, holder string) (Usage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.usage[holder]
	return u, ok, nil
}

func (m *MemoryUsageStore) Put(_ context.Context, holder string, usage Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[holder] = usage
	return nil
}
