package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	id "tokenledger/pkg/domain"
	strutil "tokenledger/pkg/platform/strings"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the full process configuration, built once in main.
type Config struct {
	Server   Server
	Auth     Auth
	Ledger   Ledger
	Storage  Storage
	Redis    RedisConfig
	Kafka    KafkaConfig
	Oracle   Oracle
	Throttle Throttle
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration
}

// Ledger holds the owner and the economic limits of the engine.
type Ledger struct {
	Owner             id.AccountID
	MinTransfer       *uint256.Int
	MaxSingleTransfer *uint256.Int
	MaxDailyTransfer  *uint256.Int
	TransferFeeBps    uint64
	WithdrawalFee     *uint256.Int
	Cooldown          time.Duration
	TxTimeout         time.Duration
}

type Storage struct {
	Backend     string
	DatabaseURL string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateTTL      time.Duration
}

type KafkaConfig struct {
	Brokers        []string
	Topic          string
	RelayInterval  time.Duration
	RelayBatchSize int
}

// Enabled reports whether events should be relayed to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type Oracle struct {
	Ref             string
	RefreshSchedule string
	HTTPTimeout     time.Duration
}

// Throttle limits requests per client IP at the HTTP edge.
type Throttle struct {
	RequestsPerSecond float64
	Burst             int
}

type Log struct {
	Level  string
	Format string
}

// Default limits.
var (
	DefaultMinTransfer       = id.MustUnits("0.01")
	DefaultMaxSingleTransfer = id.MustUnits("500")
	DefaultMaxDailyTransfer  = id.MustUnits("1000")
	DefaultWithdrawalFee     = id.MustUnits("0.005")
)

const (
	DefaultTransferFeeBps = 50
	DefaultCooldown       = 60 * time.Second
)

// DefaultLedger returns the production ledger limits with the given owner.
func DefaultLedger(owner id.AccountID) Ledger {
	return Ledger{
		Owner:             owner,
		MinTransfer:       new(uint256.Int).Set(DefaultMinTransfer),
		MaxSingleTransfer: new(uint256.Int).Set(DefaultMaxSingleTransfer),
		MaxDailyTransfer:  new(uint256.Int).Set(DefaultMaxDailyTransfer),
		TransferFeeBps:    DefaultTransferFeeBps,
		WithdrawalFee:     new(uint256.Int).Set(DefaultWithdrawalFee),
		Cooldown:          DefaultCooldown,
		TxTimeout:         5 * time.Second,
	}
}

// Validate checks cross-field constraints.
func (l Ledger) Validate() error {
	if l.Owner.IsNil() {
		return fmt.Errorf("ledger owner is required")
	}
	if l.MinTransfer.IsZero() {
		return fmt.Errorf("minimum transfer must be positive")
	}
	if l.MinTransfer.Gt(l.MaxSingleTransfer) {
		return fmt.Errorf("minimum transfer exceeds maximum single transfer")
	}
	if l.MaxSingleTransfer.Gt(l.MaxDailyTransfer) {
		return fmt.Errorf("maximum single transfer exceeds daily cap")
	}
	if l.TransferFeeBps >= 10000 {
		return fmt.Errorf("transfer fee must be below 10000 bps")
	}
	return nil
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	owner, err := id.ParseAccountID(getEnv("LEDGER_OWNER", "admin"))
	if err != nil {
		return Config{}, fmt.Errorf("LEDGER_OWNER: %w", err)
	}
	ledger := DefaultLedger(owner)

	for _, f := range []struct {
		key string
		dst **uint256.Int
	}{
		{"LEDGER_MIN_TRANSFER", &ledger.MinTransfer},
		{"LEDGER_MAX_SINGLE_TRANSFER", &ledger.MaxSingleTransfer},
		{"LEDGER_MAX_DAILY_TRANSFER", &ledger.MaxDailyTransfer},
		{"LEDGER_WITHDRAWAL_FEE", &ledger.WithdrawalFee},
	} {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		amount, err := id.ParseUnits(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = amount
	}
	if ledger.TransferFeeBps, err = getUint("LEDGER_TRANSFER_FEE_BPS", DefaultTransferFeeBps); err != nil {
		return Config{}, err
	}
	if ledger.Cooldown, err = getDuration("LEDGER_COOLDOWN", DefaultCooldown); err != nil {
		return Config{}, err
	}
	if ledger.TxTimeout, err = getDuration("LEDGER_TX_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if err := ledger.Validate(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: Server{
			Addr:            getEnv("LEDGER_ADDR", ":8080"),
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getEnv("JWT_ISSUER", "tokenledger"),
			TokenTTL:      time.Hour,
		},
		Ledger: ledger,
		Storage: Storage{
			Backend:     getEnv("STORAGE_BACKEND", BackendMemory),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			RateTTL:      30 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:          getEnv("KAFKA_TOPIC", "ledger-events"),
			RelayInterval:  time.Second,
			RelayBatchSize: 100,
		},
		Oracle: Oracle{
			Ref:             getEnv("ORACLE_REF", "static:1000000000000000000"),
			RefreshSchedule: getEnv("ORACLE_REFRESH_SCHEDULE", "@every 15s"),
			HTTPTimeout:     3 * time.Second,
		},
		Throttle: Throttle{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Log: Log{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	cfg.Kafka.Brokers = strutil.SplitList(os.Getenv("KAFKA_BROKERS"), ",")
	if cfg.Redis.RateTTL, err = getDuration("REDIS_RATE_TTL", cfg.Redis.RateTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("THROTTLE_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("THROTTLE_RPS: %w", err)
		}
		cfg.Throttle.RequestsPerSecond = rps
	}
	burst, err := getUint("THROTTLE_BURST", uint64(cfg.Throttle.Burst))
	if err != nil {
		return Config{}, err
	}
	cfg.Throttle.Burst = int(burst)

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.Storage.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
