package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Attestation AttestationConfig `mapstructure:"attestation"`
	Networks    NetworksConfig    `mapstructure:"networks"`
	Transfer    TransferConfig    `mapstructure:"transfer"`
	Recovery    RecoveryConfig    `mapstructure:"recovery"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Signer      SignerConfig      `mapstructure:"signer"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`

	// AllowedOrigins is the CORS allow list for the UI
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
	IdempotencyTTL  int      `mapstructure:"idempotency_ttl"` // seconds
}

func (s ServerConfig) IdempotencyTTLDuration() time.Duration {
	return time.Duration(s.IdempotencyTTL) * time.Second
}

// DatabaseConfig is optional; an empty URL keeps sessions in memory
type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// Enabled reports whether a durable session store is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// SnapshotTTL in seconds
	SnapshotTTL int `mapstructure:"snapshot_ttl"`
}

// Enabled reports whether balance snapshots are mirrored to Redis
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// AttestationConfig points at the Iris attestation API
type AttestationConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Environment string `mapstructure:"environment"` // sandbox or production
	Timeout     int    `mapstructure:"timeout"`     // seconds
	RateLimit   int    `mapstructure:"rate_limit"`  // requests per second
}

// NetworkConfig is the immutable per-chain binding handed to one adapter
type NetworkConfig struct {
	RPCURL             string  `mapstructure:"rpc_url"`
	ChainID            int64   `mapstructure:"chain_id"`
	Domain             uint32  `mapstructure:"domain"`
	USDC               string  `mapstructure:"usdc"`
	TokenMessenger     string  `mapstructure:"token_messenger"`
	MessageTransmitter string  `mapstructure:"message_transmitter"`
	GasLimit           uint64  `mapstructure:"gas_limit"`
	GasPriceMultiplier float64 `mapstructure:"gas_price_multiplier"`
	Explorer           string  `mapstructure:"explorer"`
}

// NetworksConfig is keyed by network id (sepolia, fuji, ...)
type NetworksConfig map[string]NetworkConfig

// Lookup matches a network id against the keys case-insensitively
func (n NetworksConfig) Lookup(network string) (NetworkConfig, bool) {
	for name, nc := range n {
		if strings.EqualFold(name, network) {
			return nc, true
		}
	}
	return NetworkConfig{}, false
}

type TransferConfig struct {
	PollInterval     int    `mapstructure:"poll_interval"`      // seconds between attestation checks
	BalanceDelayMs   int    `mapstructure:"balance_delay_ms"`   // delay between sequential balance queries
	MinAmountWarning string `mapstructure:"min_amount_warning"` // whole USDC
	MaxAmountWarning string `mapstructure:"max_amount_warning"` // whole USDC
	ReceiptTimeout   int    `mapstructure:"receipt_timeout"`    // seconds to wait for a mined receipt
	PublishEvents    bool   `mapstructure:"publish_events"`
	AutoMint         bool   `mapstructure:"auto_mint"` // mint as soon as the attestation lands

	// Holder limits in whole USDC, "0" disables
	MaxPerTransfer string `mapstructure:"max_per_transfer"`
	DailyLimit     string `mapstructure:"daily_limit"`
}

func (t TransferConfig) PollIntervalDuration() time.Duration {
	return time.Duration(t.PollInterval) * time.Second
}

func (t TransferConfig) BalanceDelay() time.Duration {
	return time.Duration(t.BalanceDelayMs) * time.Millisecond
}

func (t TransferConfig) ReceiptTimeoutDuration() time.Duration {
	return time.Duration(t.ReceiptTimeout) * time.Second
}

type RecoveryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Schedule      string `mapstructure:"schedule"`
	AutoRetryMint bool   `mapstructure:"auto_retry_mint"`
	MaxAttempts   int    `mapstructure:"max_attempts"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// Enabled reports whether lifecycle events are published
func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

// SignerConfig holds the development signer key. Testnets only.
type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.Networks = mergeNetworkDefaults(config.Networks)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_per_min", 120)
	viper.SetDefault("server.idempotency_ttl", 86400)

	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 3600)
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.snapshot_ttl", 300)

	viper.SetDefault("attestation.environment", "sandbox")
	viper.SetDefault("attestation.timeout", 30)
	viper.SetDefault("attestation.rate_limit", 35)

	viper.SetDefault("transfer.poll_interval", 20)
	viper.SetDefault("transfer.balance_delay_ms", 200)
	viper.SetDefault("transfer.min_amount_warning", "1")
	viper.SetDefault("transfer.max_amount_warning", "10000")
	viper.SetDefault("transfer.receipt_timeout", 180)
	viper.SetDefault("transfer.publish_events", true)
	viper.SetDefault("transfer.auto_mint", true)
	viper.SetDefault("transfer.max_per_transfer", "0")
	viper.SetDefault("transfer.daily_limit", "0")

	viper.SetDefault("recovery.enabled", true)
	viper.SetDefault("recovery.schedule", "@every 5m")
	viper.SetDefault("recovery.auto_retry_mint", false)
	viper.SetDefault("recovery.max_attempts", 3)

	viper.SetDefault("nats.subject_prefix", "transfer")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if redisURL := os.Getenv("REDIS_ADDR"); redisURL != "" {
		viper.Set("redis.addr", redisURL)
	}

	if irisURL := os.Getenv("IRIS_BASE_URL"); irisURL != "" {
		viper.Set("attestation.base_url", irisURL)
	}
	if irisEnv := os.Getenv("IRIS_ENVIRONMENT"); irisEnv != "" {
		viper.Set("attestation.environment", irisEnv)
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		viper.Set("nats.url", natsURL)
	}

	if key := os.Getenv("SIGNER_PRIVATE_KEY"); key != "" {
		viper.Set("signer.private_key", key)
	}

	if autoRetry := os.Getenv("RECOVERY_AUTO_RETRY_MINT"); autoRetry != "" {
		if v, err := strconv.ParseBool(autoRetry); err == nil {
			viper.Set("recovery.auto_retry_mint", v)
		}
	}

	// Per-network RPC overrides, e.g. SEPOLIA_RPC_URL, FUJI_RPC_URL
	for name := range DefaultNetworks() {
		if rpc := os.Getenv(strings.ToUpper(name) + "_RPC_URL"); rpc != "" {
			viper.Set("networks."+strings.ToLower(name)+".rpc_url", rpc)
		}
	}
}

// mergeNetworkDefaults fills unset fields of configured networks from the
// testnet defaults and adds any network the config file left out.
// viper lowercases map keys, so lookups are case-insensitive.
func mergeNetworkDefaults(configured NetworksConfig) NetworksConfig {
	lowered := make(map[string]NetworkConfig, len(configured))
	for k, v := range configured {
		lowered[strings.ToLower(k)] = v
	}

	out := make(NetworksConfig)
	for name, def := range DefaultNetworks() {
		nc, ok := lowered[strings.ToLower(name)]
		if !ok {
			out[name] = def
			continue
		}
		if nc.RPCURL == "" {
			nc.RPCURL = def.RPCURL
		}
		if nc.ChainID == 0 {
			nc.ChainID = def.ChainID
		}
		if nc.Domain == 0 {
			nc.Domain = def.Domain
		}
		if nc.USDC == "" {
			nc.USDC = def.USDC
		}
		if nc.TokenMessenger == "" {
			nc.TokenMessenger = def.TokenMessenger
		}
		if nc.MessageTransmitter == "" {
			nc.MessageTransmitter = def.MessageTransmitter
		}
		if nc.GasLimit == 0 {
			nc.GasLimit = def.GasLimit
		}
		if nc.GasPriceMultiplier == 0 {
			nc.GasPriceMultiplier = def.GasPriceMultiplier
		}
		if nc.Explorer == "" {
			nc.Explorer = def.Explorer
		}
		out[name] = nc
	}
	return out
}

func validate(config *Config) error {
	if config.Attestation.BaseURL == "" && config.Attestation.Environment != "sandbox" && config.Attestation.Environment != "production" {
		return fmt.Errorf("attestation environment must be sandbox or production, got %q", config.Attestation.Environment)
	}

	if config.Transfer.PollInterval <= 0 {
		return fmt.Errorf("transfer poll interval must be positive")
	}

	if config.Transfer.BalanceDelayMs < 0 {
		return fmt.Errorf("transfer balance delay must not be negative")
	}

	if len(config.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}

	for name, nc := range config.Networks {
		if nc.RPCURL == "" {
			return fmt.Errorf("network %s: rpc_url is required", name)
		}
		if nc.ChainID <= 0 {
			return fmt.Errorf("network %s: chain_id is required", name)
		}
		if nc.USDC == "" || nc.TokenMessenger == "" || nc.MessageTransmitter == "" {
			return fmt.Errorf("network %s: contract addresses are incomplete", name)
		}
	}

	if config.Recovery.Enabled && config.Recovery.Schedule == "" {
		return fmt.Errorf("recovery schedule is required when recovery is enabled")
	}

	if config.Recovery.MaxAttempts < 0 {
		return fmt.Errorf("recovery max attempts must not be negative")
	}

	return nil
}
