package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/catalogsearch/pkg/config"
	"github.com/utafrali/catalogsearch/pkg/database"
	"github.com/utafrali/catalogsearch/pkg/httpclient"
)

// Storage and search backends.
const (
	BackendPostgres     = "postgres"
	BackendMemory       = "memory"
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
	SyncModeInline      = "inline"
	SyncModeKafka       = "kafka"
)

const (
	serviceName    = "catalog"
	serviceVersion = "0.1.0"
)

// Config holds all configuration for the catalog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort            int           `env:"CATALOG_HTTP_PORT" envDefault:"8020"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	HTTPRequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"10s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Authoritative store selection (postgres or memory)
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"catalog_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"catalog"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Search engine selection (elasticsearch or memory)
	SearchEngine       string `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"catalog_items"`

	// Highlight markers wrapped around matched name fragments
	HighlightPreTag  string `env:"HIGHLIGHT_PRE_TAG" envDefault:"<b>"`
	HighlightPostTag string `env:"HIGHLIGHT_POST_TAG" envDefault:"</b>"`

	// Elasticsearch circuit breaker
	ESBreakerMaxRequests  uint32        `env:"ES_BREAKER_MAX_REQUESTS" envDefault:"1"`
	ESBreakerInterval     time.Duration `env:"ES_BREAKER_INTERVAL" envDefault:"60s"`
	ESBreakerTimeout      time.Duration `env:"ES_BREAKER_TIMEOUT" envDefault:"30s"`
	ESBreakerFailureRatio float64       `env:"ES_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	ESBreakerMinRequests  uint32        `env:"ES_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// Event delivery to the index synchronizer (inline or kafka)
	SyncMode      string   `env:"SYNC_MODE" envDefault:"inline"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"catalog.item.changed"`
	KafkaGroupID  string   `env:"KAFKA_GROUP_ID" envDefault:"catalog-indexer"`
	KafkaDLQ      bool     `env:"KAFKA_DLQ_ENABLED" envDefault:"true"`
	DedupTTLHours int      `env:"KAFKA_DEDUP_TTL_HOURS" envDefault:"24"`

	// Redis (consumer deduplication in kafka mode)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"5s"`
	OutboxGracePeriod  time.Duration `env:"OUTBOX_GRACE_PERIOD" envDefault:"10s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Index synchronizer
	SyncSequenceTTL time.Duration `env:"SYNC_SEQUENCE_TTL" envDefault:"1h"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{BackendPostgres, BackendMemory}, c.StoreBackend) {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}
	if !slices.Contains([]string{EngineElasticsearch, EngineMemory}, c.SearchEngine) {
		return fmt.Errorf("SEARCH_ENGINE must be %q or %q, got %q", EngineElasticsearch, EngineMemory, c.SearchEngine)
	}
	if !slices.Contains([]string{SyncModeInline, SyncModeKafka}, c.SyncMode) {
		return fmt.Errorf("SYNC_MODE must be %q or %q, got %q", SyncModeInline, SyncModeKafka, c.SyncMode)
	}
	if c.StoreBackend == BackendPostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if c.SearchEngine == EngineElasticsearch {
		if c.ElasticsearchURL == "" {
			return fmt.Errorf("ELASTICSEARCH_URL is required")
		}
		if c.ElasticsearchIndex == "" {
			return fmt.Errorf("ELASTICSEARCH_INDEX is required")
		}
	}
	if c.SyncMode == SyncModeKafka {
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required")
		}
		if c.KafkaTopic == "" {
			return fmt.Errorf("KAFKA_TOPIC is required")
		}
	}
	if c.HighlightPreTag == "" || c.HighlightPostTag == "" {
		return fmt.Errorf("HIGHLIGHT_PRE_TAG and HIGHLIGHT_POST_TAG must not be empty")
	}
	if c.OutboxPollInterval < 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be >= 0, got %s", c.OutboxPollInterval)
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be > 0, got %d", c.OutboxBatchSize)
	}
	if c.SyncSequenceTTL <= 0 {
		return fmt.Errorf("SYNC_SEQUENCE_TTL must be > 0, got %s", c.SyncSequenceTTL)
	}
	if c.ESBreakerFailureRatio <= 0 || c.ESBreakerFailureRatio > 1.0 {
		return fmt.Errorf("ES_BREAKER_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.ESBreakerFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// ServiceName is the name reported in logs, metrics and traces.
func (c *Config) ServiceName() string { return serviceName }

// ServiceVersion is the version reported to the trace exporter.
func (c *Config) ServiceVersion() string { return serviceVersion }

// Postgres returns the connection pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPassword
	cfg.DB = c.RedisDB
	return cfg
}

// ElasticsearchBreaker returns the circuit breaker settings for the search
// index transport.
func (c *Config) ElasticsearchBreaker() httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         "elasticsearch",
		MaxRequests:  c.ESBreakerMaxRequests,
		Interval:     c.ESBreakerInterval,
		Timeout:      c.ESBreakerTimeout,
		FailureRatio: c.ESBreakerFailureRatio,
		MinRequests:  c.ESBreakerMinRequests,
	}
}

// DedupTTL is how long consumed event ids are remembered.
func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLHours) * time.Hour
}
