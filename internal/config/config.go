// Package config loads the storefront's runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/inviteu/internal/store"
	"github.com/shopspring/decimal"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"

	CatalogStatic = "static"
	CatalogSQLite = "sqlite"
)

type Config struct {
	HTTPPort string
	GRPCPort string

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	Postgres      store.Credentials
	MongoURI      string
	MongoDBName   string

	CatalogBackend string
	CatalogDBPath  string

	TaxRate        decimal.Decimal
	PaymentDelay   time.Duration
	PaymentTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration

	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string
}

// Load reads every setting, falling back to defaults for unset keys.
// Set but unparsable values are an error.
func Load() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50060"),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "inviteu.db"),
		Postgres: store.Credentials{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     p.intEnv("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:   getEnv("POSTGRES_DB", "inviteu"),
		},
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "inviteu"),

		CatalogBackend: strings.ToLower(getEnv("CATALOG_BACKEND", CatalogStatic)),
		CatalogDBPath:  getEnv("CATALOG_DB_PATH", "catalog.db"),

		TaxRate:        p.decimalEnv("TAX_RATE", "0.10"),
		PaymentDelay:   p.durationEnv("PAYMENT_DELAY", 2*time.Second),
		PaymentTimeout: p.durationEnv("PAYMENT_TIMEOUT", 10*time.Second),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "storefront-events"),

		SessionIdleTimeout:   p.durationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepInterval: p.durationEnv("SESSION_SWEEP_INTERVAL", time.Minute),

		RequestTimeout:     p.durationEnv("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    p.durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendSQLite, BackendPostgres, BackendMongo:
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}
	switch c.CatalogBackend {
	case CatalogStatic, CatalogSQLite:
	default:
		return fmt.Errorf("CATALOG_BACKEND: unknown backend %q", c.CatalogBackend)
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("TAX_RATE: %s is outside [0, 1]", c.TaxRate)
	}
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT: must be positive")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT: must be positive")
	}
	if c.SessionSweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL: must be positive")
	}
	return nil
}

// KafkaEnabled reports whether events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: invalid value %q: %w", key, value, err)
	}
}

func (p *parser) intEnv(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) durationEnv(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) decimalEnv(key, def string) decimal.Decimal {
	v := getEnv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, v, err)
		return decimal.RequireFromString(def)
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
