package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config carries every tunable of both services. It is built once at
// startup and passed to the components that need it; nothing reads the
// environment after Load returns.
type Config struct {
	CatalogPort int
	PricingPort int

	// Store selects the book repository backing: memory, mysql or redis.
	Store     string
	MySQLDSN  string
	RedisAddr string

	// Pricing dependency and its failure simulation knobs.
	PricingURL      string
	SimulateDelay   bool
	DelayMs         int
	SimulateFailure bool
	FailureRate     int // 0-100, percentage chance per call

	// Circuit breaker around the pricing dependency.
	BreakerFailureRatio float64
	BreakerWindowSize   int
	BreakerCooldown     time.Duration

	// Retry policy and per-attempt timeout for price lookups.
	RetryMaxAttempts int
	RetryDelay       time.Duration
	CallTimeout      time.Duration
}

func Load() Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := Config{
		CatalogPort: envInt("CATALOG_PORT", 8080),
		PricingPort: envInt("PRICING_PORT", 8081),

		Store:     env("STORE", "memory"),
		MySQLDSN:  env("MYSQL_DSN", "root:root@tcp(localhost:3306)/bookcatalog?parseTime=true"),
		RedisAddr: env("REDIS_ADDR", "localhost:6379"),

		PricingURL:      env("PRICING_URL", "http://localhost:8081"),
		SimulateDelay:   envBool("PRICING_SIMULATE_DELAY", false),
		DelayMs:         envInt("PRICING_DELAY_MS", 0),
		SimulateFailure: envBool("PRICING_SIMULATE_FAILURE", false),
		FailureRate:     envInt("PRICING_FAILURE_RATE", 0),

		BreakerFailureRatio: envFloat("BREAKER_FAILURE_RATIO", 0.5),
		BreakerWindowSize:   envInt("BREAKER_WINDOW_SIZE", 10),
		BreakerCooldown:     envDuration("BREAKER_COOLDOWN", 10*time.Second),

		RetryMaxAttempts: envInt("RETRY_MAX_ATTEMPTS", 3),
		RetryDelay:       envDuration("RETRY_DELAY", 100*time.Millisecond),
		CallTimeout:      envDuration("PRICING_TIMEOUT", 2*time.Second),
	}

	log.Info().
		Str("store", cfg.Store).
		Str("pricing_url", cfg.PricingURL).
		Int("breaker_window", cfg.BreakerWindowSize).
		Float64("breaker_ratio", cfg.BreakerFailureRatio).
		Msg("config loaded")

	return cfg
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid int, using default")
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid bool, using default")
		return fallback
	}
	return b
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid float, using default")
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}
