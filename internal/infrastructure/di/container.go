package di

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_transfer/internal/domain/entities"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/balance"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/limits"
	"github.com/rail-service/crosschain_transfer/internal/domain/services/transfer"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/adapters/cctp"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/adapters/evm"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/cache"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/config"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/database"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/events"
	"github.com/rail-service/crosschain_transfer/internal/infrastructure/repositories"
	"github.com/rail-service/crosschain_transfer/internal/workers/stranded_recovery"
	"github.com/rail-service/crosschain_transfer/pkg/idempotency"
	"github.com/rail-service/crosschain_transfer/pkg/logger"
	"github.com/rail-service/crosschain_transfer/pkg/retry"
)

// Container holds every long-lived dependency of the transfer engine.
// Optional stores (postgres, redis, nats) are nil when not configured.
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Stores
	DB          *sqlx.DB
	RedisClient cache.RedisClient
	NATSConn    *nats.Conn
	SessionRepo transfer.SessionRepository
	Idempotency idempotency.Store

	// Chains
	Signer            evm.Signer
	Adapters          map[entities.Network]*evm.Adapter
	AttestationClient *cctp.Client
	ethClients        []*ethclient.Client

	// Domain services
	Validator      *transfer.Validator
	Coordinator    *transfer.Coordinator
	Balances       *balance.Aggregator
	Limits         *limits.Service
	Controller     *transfer.Controller
	RecoveryWorker *stranded_recovery.Worker
}

// NewContainer connects to every configured backend and builds the controller.
// The chains are dialed once here; adapters are immutable afterwards.
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Logger:   log,
		ZapLog:   log.Zap(),
		Adapters: make(map[entities.Network]*evm.Adapter),
	}

	if err := c.initializeStores(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initializeChains(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initializeDomainServices(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) initializeStores() error {
	cfg := c.Config

	if cfg.Database.Enabled() {
		db, err := database.NewConnection(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db
		if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			return err
		}
		c.SessionRepo = repositories.NewTransferRepository(db)
		c.Logger.Info("Transfer sessions persisted to postgres")
	} else {
		c.SessionRepo = repositories.NewMemoryTransferRepository()
		c.Logger.Warn("No database configured, transfer sessions will not survive a restart")
	}

	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(cfg.Redis, c.ZapLog)
		if err != nil {
			// balances still work without the mirror
			c.Logger.Warn("Redis unavailable, balance snapshots stay in memory", "error", err)
		} else {
			c.RedisClient = client
		}
	}

	if c.RedisClient != nil {
		c.Idempotency = cache.NewIdempotencyStore(c.RedisClient)
	} else {
		c.Idempotency = idempotency.NewMemoryStore()
	}

	if cfg.NATS.Enabled() && cfg.Transfer.PublishEvents {
		conn, err := events.Connect(cfg.NATS, c.ZapLog)
		if err != nil {
			c.Logger.Warn("NATS unavailable, lifecycle events disabled", "error", err)
		} else {
			c.NATSConn = conn
		}
	}
	return nil
}

func (c *Container) initializeChains(ctx context.Context) error {
	cfg := c.Config

	if cfg.Signer.PrivateKey != "" {
		signer, err := evm.NewLocalSigner(cfg.Signer.PrivateKey)
		if err != nil {
			return fmt.Errorf("invalid signer key: %w", err)
		}
		c.Signer = signer
		c.Logger.Info("Signer bound", "address", signer.Address().Hex())
	} else {
		c.Logger.Warn("No signer configured, transfers are read-only")
	}

	for _, network := range entities.SupportedNetworks {
		nc, ok := cfg.Networks.Lookup(string(network))
		if !ok {
			continue
		}
		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		adapter, client, err := evm.Dial(dialCtx, evm.Config{
			Network:        network,
			Chain:          nc,
			ReceiptTimeout: cfg.Transfer.ReceiptTimeoutDuration(),
		}, c.ZapLog)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to initialize %s: %w", network, err)
		}
		c.Adapters[network] = adapter
		c.ethClients = append(c.ethClients, client)
	}
	if len(c.Adapters) < 2 {
		return fmt.Errorf("at least two networks are required, %d configured", len(c.Adapters))
	}

	c.AttestationClient = cctp.NewClient(cctp.Config{
		BaseURL:     cfg.Attestation.BaseURL,
		Environment: cfg.Attestation.Environment,
		Timeout:     time.Duration(cfg.Attestation.Timeout) * time.Second,
		RateLimit:   cfg.Attestation.RateLimit,
	}, c.ZapLog)
	return nil
}

func (c *Container) initializeDomainServices() error {
	cfg := c.Config

	thresholds, err := parseThresholds(cfg.Transfer)
	if err != nil {
		return err
	}
	holderLimits, err := parseLimits(cfg.Transfer)
	if err != nil {
		return err
	}

	adapters := make(map[entities.Network]transfer.NetworkAdapter, len(c.Adapters))
	readers := make([]balance.Reader, 0, len(c.Adapters))
	for _, network := range entities.SupportedNetworks {
		if a, ok := c.Adapters[network]; ok {
			adapters[network] = a
			readers = append(readers, a)
		}
	}

	var snapshotCache balance.SnapshotCache
	if c.RedisClient != nil {
		snapshotCache = cache.NewBalanceSnapshotCache(c.RedisClient, time.Duration(cfg.Redis.SnapshotTTL)*time.Second)
	}

	var publisher transfer.EventPublisher = transfer.NopEventPublisher{}
	if c.NATSConn != nil {
		publisher = events.NewNATSPublisher(c.NATSConn, cfg.NATS.SubjectPrefix, c.ZapLog)
	}

	c.Validator = transfer.NewValidator(adapters, thresholds, c.ZapLog)
	c.Coordinator = transfer.NewCoordinator(adapters, c.AttestationClient, c.ZapLog)
	c.Balances = balance.NewAggregator(readers, cfg.Transfer.BalanceDelay(), snapshotCache, c.ZapLog)
	c.Limits = limits.NewService(holderLimits, nil, c.Logger)

	c.Controller = transfer.NewController(c.Validator, c.Coordinator, c.Balances, transfer.ControllerOptions{
		Signer:       c.Signer,
		Repository:   c.SessionRepo,
		Events:       publisher,
		Hooks:        []transfer.PreTransferHook{c.Limits},
		PollInterval: cfg.Transfer.PollIntervalDuration(),
		AutoMint:     cfg.Transfer.AutoMint,
	}, c.Logger)

	if cfg.Recovery.Enabled {
		c.RecoveryWorker = stranded_recovery.NewWorker(c.SessionRepo, c.Controller, stranded_recovery.Config{
			Schedule:      cfg.Recovery.Schedule,
			AutoRetryMint: cfg.Recovery.AutoRetryMint && c.Signer != nil,
			MaxAttempts:   cfg.Recovery.MaxAttempts,
			Retry:         retry.DefaultPolicy(),
		}, c.ZapLog)
	}
	return nil
}

// HealthChecks returns the readiness checks of the configured backends
func (c *Container) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if c.DB != nil {
		checks["database"] = func(ctx context.Context) error { return database.HealthCheck(ctx, c.DB) }
	}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient.Ping
	}
	if c.NATSConn != nil {
		checks["nats"] = func(context.Context) error {
			if !c.NATSConn.IsConnected() {
				return fmt.Errorf("nats status %s", c.NATSConn.Status())
			}
			return nil
		}
	}
	return checks
}

// Networks lists the networks with a live adapter, in display order
func (c *Container) Networks() []entities.Network {
	out := make([]entities.Network, 0, len(c.Adapters))
	for n := range c.Adapters {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return networkIndex(out[i]) < networkIndex(out[j]) })
	return out
}

// Close releases every connection the container opened
func (c *Container) Close() {
	if c.Controller != nil {
		c.Controller.Shutdown()
	}
	for _, client := range c.ethClients {
		client.Close()
	}
	if c.NATSConn != nil {
		if err := c.NATSConn.Drain(); err != nil {
			c.Logger.Warn("NATS drain failed", "error", err)
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("Redis close failed", "error", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("Database close error", "error", err)
		}
	}
}

func networkIndex(n entities.Network) int {
	for i, s := range entities.SupportedNetworks {
		if s == n {
			return i
		}
	}
	return len(entities.SupportedNetworks)
}

func parseThresholds(cfg config.TransferConfig) (transfer.Thresholds, error) {
	t := transfer.DefaultThresholds()
	if cfg.MinAmountWarning != "" {
		v, err := decimal.NewFromString(cfg.MinAmountWarning)
		if err != nil {
			return t, fmt.Errorf("invalid transfer.min_amount_warning: %w", err)
		}
		t.MinAmount = v
	}
	if cfg.MaxAmountWarning != "" {
		v, err := decimal.NewFromString(cfg.MaxAmountWarning)
		if err != nil {
			return t, fmt.Errorf("invalid transfer.max_amount_warning: %w", err)
		}
		t.MaxAmount = v
	}
	return t, nil
}

func parseLimits(cfg config.TransferConfig) (limits.Config, error) {
	var l limits.Config
	parse := func(name, raw string) (decimal.Decimal, error) {
		if raw == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid transfer.%s: %w", name, err)
		}
		return v, nil
	}

	var err error
	if l.MaxPerTransfer, err = parse("max_per_transfer", cfg.MaxPerTransfer); err != nil {
		return l, err
	}
	if l.DailyLimit, err = parse("daily_limit", cfg.DailyLimit); err != nil {
		return l, err
	}
	return l, nil
}
