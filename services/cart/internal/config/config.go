package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
)

const devJWTSecret = "dev-secret-change-me"

// Idempotency store backends.
const (
	IdempotencyRedis  = "redis"
	IdempotencyMemory = "memory"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int `env:"CART_HTTP_PORT" envDefault:"8003"`
	RequestTimeoutS int `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours (default: 7 days)
	CartTTL int `env:"CART_TTL_HOURS" envDefault:"168"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"cart-service"`
	IdempotencyTTLH    int      `env:"KAFKA_IDEMPOTENCY_TTL_HOURS" envDefault:"24"`

	// Where processed event IDs are remembered: "redis" shares them across
	// replicas, "memory" keeps up to IdempotencySize per process.
	IdempotencyStore string `env:"KAFKA_IDEMPOTENCY_STORE" envDefault:"redis"`
	IdempotencySize  int    `env:"KAFKA_IDEMPOTENCY_CACHE_SIZE" envDefault:"10000"`

	// Catalog service
	CatalogURL       string `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8001"`
	CatalogTimeoutMs int    `env:"CATALOG_TIMEOUT_MS" envDefault:"3000"`

	// Auth
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	// Orphan sweeper schedule (five-field cron or @every). "off" disables it.
	SweepSchedule string `env:"CART_SWEEP_SCHEDULE" envDefault:"@every 1h"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Rate limiting per client IP; 0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	return cfg, nil
}

// Validate checks the parsed values. pkgconfig.Load calls it.
func (c *Config) Validate() error {
	if !pkgconfig.ValidPort(c.HTTPPort) {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.CartTTL < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTL)
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaConsumerGroup == "" {
		return errors.New("KAFKA_CONSUMER_GROUP is required")
	}
	switch c.IdempotencyStore {
	case IdempotencyRedis:
	case IdempotencyMemory:
		if c.IdempotencySize < 1 {
			return fmt.Errorf("KAFKA_IDEMPOTENCY_CACHE_SIZE must be positive, got %d", c.IdempotencySize)
		}
	default:
		return fmt.Errorf("KAFKA_IDEMPOTENCY_STORE must be %q or %q, got %q", IdempotencyRedis, IdempotencyMemory, c.IdempotencyStore)
	}
	u, err := url.Parse(c.CatalogURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CATALOG_SERVICE_URL must be an absolute URL, got %q", c.CatalogURL)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWTSecret == devJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.SweepEnabled() {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return fmt.Errorf("invalid CART_SWEEP_SCHEDULE %q: %w", c.SweepSchedule, err)
		}
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Redis returns the connection settings for the cart store.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPass, DB: c.RedisDB}
}

// SweepEnabled reports whether the orphan sweeper should run.
func (c *Config) SweepEnabled() bool {
	return c.SweepSchedule != "" && c.SweepSchedule != "off"
}

// IdempotencyTTL is how long a processed event ID is remembered.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLH) * time.Hour
}

func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}
