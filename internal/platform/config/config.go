package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr     string
	LogLevel string
	// DatabaseURL selects the postgres stores; empty runs the ledger on
	// in-memory stores.
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Admin       AdminConfig
	Ledger      LedgerConfig
}

// RedisConfig tunes the optional cache client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig tunes the event relay. No brokers disables the outbox worker.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AdminConfig holds the externally configured privileged addresses. These are
// compared against the caller address; there is no separate credential.
type AdminConfig struct {
	FeeAdmin      string
	TreasuryAdmin string
	// FeeRecipient receives marketplace fees. Empty routes fees to the
	// internal platform account.
	FeeRecipient string
}

// LedgerConfig holds the tunable domain parameters.
type LedgerConfig struct {
	MarketFeeBps         uint64
	StakeFeeBps          uint64
	MinResurrectionPrice uint64
	BackupMinInterval    time.Duration
	BackupMaxHistory     int
	// StrictLifecycle requires a soul to be DEAD before rebirth or merge.
	StrictLifecycle  bool
	StakeMinDuration time.Duration
	StakeMaxDuration time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envString("SOULLEDGER_ADDR", ":8080"),
		LogLevel:    envString("SOULLEDGER_LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("SOULLEDGER_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("SOULLEDGER_REDIS_URL"),
			PoolSize:     envInt("SOULLEDGER_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SOULLEDGER_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("SOULLEDGER_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SOULLEDGER_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SOULLEDGER_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("SOULLEDGER_KAFKA_BROKERS"),
			Topic:   envString("SOULLEDGER_KAFKA_TOPIC", "soulledger.events"),
		},
		Admin: AdminConfig{
			FeeAdmin:      os.Getenv("SOULLEDGER_FEE_ADMIN"),
			TreasuryAdmin: os.Getenv("SOULLEDGER_TREASURY_ADMIN"),
			FeeRecipient:  os.Getenv("SOULLEDGER_FEE_RECIPIENT"),
		},
		Ledger: LedgerConfig{
			MarketFeeBps:         envUint64("SOULLEDGER_MARKET_FEE_BPS", 250),
			StakeFeeBps:          envUint64("SOULLEDGER_STAKE_FEE_BPS", 500),
			MinResurrectionPrice: envUint64("SOULLEDGER_MIN_RESURRECTION_PRICE", 1000),
			BackupMinInterval:    envDuration("SOULLEDGER_BACKUP_MIN_INTERVAL", time.Hour),
			BackupMaxHistory:     envInt("SOULLEDGER_BACKUP_MAX_HISTORY", 100),
			StrictLifecycle:      os.Getenv("SOULLEDGER_STRICT_LIFECYCLE") == "true",
			StakeMinDuration:     envDuration("SOULLEDGER_STAKE_MIN_DURATION", time.Hour),
			StakeMaxDuration:     envDuration("SOULLEDGER_STAKE_MAX_DURATION", 365*24*time.Hour),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envUint64(key string, fallback uint64) uint64 {
	v, err := strconv.ParseUint(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
