package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/validation"
	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Links     LinksConfig
	Security  SecurityConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	SQLite    SQLiteConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	OTel      OTelConfig
}

type AppConfig struct {
	Name     string `env:"APP_NAME" validate:"notblank"`
	Version  string `env:"APP_VERSION"`
	Env      string `env:"APP_ENV" validate:"oneof=development staging production test"`
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

type ServerConfig struct {
	Port            string        `env:"APP_PORT" validate:"notblank"`
	Host            string        `env:"APP_HOST"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" validate:"min=0"`
}

type LinksConfig struct {
	RedirectStatus   int           `env:"REDIRECT_STATUS" validate:"oneof=301 302"`
	AsyncEvents      bool          `env:"ASYNC_EVENTS"`
	ViewWriteTimeout time.Duration `env:"VIEW_WRITE_TIMEOUT" validate:"min=0"`
	RejectSelfHost   bool          `env:"REJECT_SELF_HOST"`
	// PublicHost is compared against destinations when the request carries no
	// usable Host header.
	PublicHost string `env:"PUBLIC_HOST"`
}

type SecurityConfig struct {
	// AuthToken is the single shared secret for mutations. Empty rejects them all.
	AuthToken string `env:"AUTH_TOKEN"`
}

type StoreConfig struct {
	Backend         string        `env:"STORE_BACKEND" validate:"oneof=memory redis mongo postgres sqlite"`
	KeyPrefix       string        `env:"STORE_KEY_PREFIX"`
	TTLHints        bool          `env:"STORE_TTL_HINTS"`
	TTLGrace        time.Duration `env:"STORE_TTL_GRACE" validate:"min=0"`
	Timeout         time.Duration `env:"STORE_TIMEOUT" validate:"min=0"`
	BreakerFailures int           `env:"STORE_BREAKER_FAILURES" validate:"min=0"`
	BreakerCooldown time.Duration `env:"STORE_BREAKER_COOLDOWN" validate:"min=0"`
	PurgeInterval   time.Duration `env:"STORE_PURGE_INTERVAL" validate:"min=0"`
}

type MongoDBConfig struct {
	URI      string `env:"MONGODB_URI"`
	Database string `env:"MONGODB_DATABASE"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" validate:"min=0"`
}

type PostgresConfig struct {
	DSN      string `env:"DB_DSN"`
	MaxConns int    `env:"DB_MAX_CONNS" validate:"min=0"`
}

type SQLiteConfig struct {
	DSN string `env:"SQLITE_DSN"`
}

type KafkaConfig struct {
	Enabled   bool     `env:"KAFKA_ENABLED"`
	Brokers   []string `env:"KAFKA_BROKERS"`
	LinkTopic string   `env:"KAFKA_LINK_TOPIC"`
	ClientID  string   `env:"KAFKA_CLIENT_ID"`
}

type RateLimitConfig struct {
	Enabled   bool `env:"RATE_LIMIT_ENABLED"`
	PerMinute int  `env:"RATE_LIMIT_PER_MINUTE" validate:"min=1"`
}

type OTelConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" validate:"min=0,max=1"`
}

// Load reads .env when present, then the process environment, and validates
// the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "link-redirector"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:            GetEnv("APP_PORT", "8080"),
			Host:            GetEnv("APP_HOST", ""),
			CORSOrigins:     SplitCSV(GetEnv("CORS_ALLOWED_ORIGINS", "*")),
			ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Links: LinksConfig{
			RedirectStatus:   GetEnvInt("REDIRECT_STATUS", 302),
			AsyncEvents:      GetEnvBool("ASYNC_EVENTS", true),
			ViewWriteTimeout: GetEnvDuration("VIEW_WRITE_TIMEOUT", 2*time.Second),
			RejectSelfHost:   GetEnvBool("REJECT_SELF_HOST", true),
			PublicHost:       GetEnv("PUBLIC_HOST", ""),
		},
		Security: SecurityConfig{
			AuthToken: GetEnv("AUTH_TOKEN", ""),
		},
		Store: StoreConfig{
			Backend:         GetEnv("STORE_BACKEND", BackendMemory),
			KeyPrefix:       GetEnv("STORE_KEY_PREFIX", "link:"),
			TTLHints:        GetEnvBool("STORE_TTL_HINTS", true),
			TTLGrace:        GetEnvDuration("STORE_TTL_GRACE", 72*time.Hour),
			Timeout:         GetEnvDuration("STORE_TIMEOUT", 3*time.Second),
			BreakerFailures: GetEnvInt("STORE_BREAKER_FAILURES", 5),
			BreakerCooldown: GetEnvDuration("STORE_BREAKER_COOLDOWN", 10*time.Second),
			PurgeInterval:   GetEnvDuration("STORE_PURGE_INTERVAL", 5*time.Minute),
		},
		MongoDB: MongoDBConfig{
			URI:      GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: GetEnv("MONGODB_DATABASE", "links"),
		},
		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			DSN:      GetEnv("DB_DSN", DefaultPostgresDSN()),
			MaxConns: GetEnvInt("DB_MAX_CONNS", 10),
		},
		SQLite: SQLiteConfig{
			DSN: GetEnv("SQLITE_DSN", "file:links.db"),
		},
		Kafka: KafkaConfig{
			Enabled:   GetEnvBool("KAFKA_ENABLED", false),
			Brokers:   SplitCSV(GetEnv("KAFKA_BROKERS", "localhost:9092")),
			LinkTopic: GetEnv("KAFKA_LINK_TOPIC", "link-events"),
			ClientID:  GetEnv("KAFKA_CLIENT_ID", DefaultWorkerID("link-redirector")),
		},
		RateLimit: RateLimitConfig{
			Enabled:   GetEnvBool("RATE_LIMIT_ENABLED", false),
			PerMinute: GetEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		OTel: OTelConfig{
			Enabled:     GetEnvBool("OTEL_ENABLED", false),
			Endpoint:    GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			SampleRatio: GetEnvFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		if field, reason, ok := validation.Describe(err); ok {
			return fmt.Errorf("invalid config: %s %s", field, reason)
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.LinkTopic == "") {
		return errors.New("invalid config: KAFKA_BROKERS and KAFKA_LINK_TOPIC are required when KAFKA_ENABLED is set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
