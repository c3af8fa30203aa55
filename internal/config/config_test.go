package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8020, cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, "elasticsearch", cfg.SearchEngine)
	assert.Equal(t, "http://localhost:9200", cfg.ElasticsearchURL)
	assert.Equal(t, "catalog_items", cfg.ElasticsearchIndex)
	assert.Equal(t, "<b>", cfg.HighlightPreTag)
	assert.Equal(t, "</b>", cfg.HighlightPostTag)
	assert.Equal(t, "inline", cfg.SyncMode)
	assert.Equal(t, 5*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"CATALOG_HTTP_PORT":    "9000",
		"STORE_BACKEND":        "memory",
		"SEARCH_ENGINE":        "memory",
		"HIGHLIGHT_PRE_TAG":    "<em>",
		"HIGHLIGHT_POST_TAG":   "</em>",
		"OUTBOX_POLL_INTERVAL": "0s",
		"KAFKA_BROKERS":        "k1:9092,k2:9092",
	})

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, EngineMemory, cfg.SearchEngine)
	assert.Equal(t, "<em>", cfg.HighlightPreTag)
	assert.Equal(t, time.Duration(0), cfg.OutboxPollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"port zero", map[string]string{"CATALOG_HTTP_PORT": "0"}, "invalid HTTP port"},
		{"port too large", map[string]string{"CATALOG_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"unknown backend", map[string]string{"STORE_BACKEND": "mysql"}, "STORE_BACKEND"},
		{"unknown engine", map[string]string{"SEARCH_ENGINE": "solr"}, "SEARCH_ENGINE"},
		{"unknown sync mode", map[string]string{"SYNC_MODE": "nats"}, "SYNC_MODE"},
		{"negative poll interval", map[string]string{"OUTBOX_POLL_INTERVAL": "-1s"}, "OUTBOX_POLL_INTERVAL"},
		{"zero batch size", map[string]string{"OUTBOX_BATCH_SIZE": "0"}, "OUTBOX_BATCH_SIZE"},
		{"breaker ratio", map[string]string{"ES_BREAKER_FAILURE_RATIO": "1.5"}, "ES_BREAKER_FAILURE_RATIO"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
		{"not a number", map[string]string{"CATALOG_HTTP_PORT": "abc"}, "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFrom(tt.env)

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ELASTICSEARCH_URL", "http://es.prod:9200")
	t.Setenv("SYNC_MODE", "kafka")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://es.prod:9200", cfg.ElasticsearchURL)
	assert.Equal(t, SyncModeKafka, cfg.SyncMode)
}

func TestConfig_Postgres(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"POSTGRES_HOST":                "db",
		"POSTGRES_PASSWORD":            "p@ss",
		"DB_MAX_CONN_LIFETIME_MINUTES": "5",
	})
	require.NoError(t, err)

	pg := cfg.Postgres()

	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, 5*time.Minute, pg.MaxConnLifetime)
	assert.Equal(t, "postgres://catalog:p%40ss@db:5432/catalog?sslmode=disable", pg.DSN())
}

func TestConfig_ElasticsearchBreaker(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"ES_BREAKER_TIMEOUT": "5s"})
	require.NoError(t, err)

	cb := cfg.ElasticsearchBreaker()

	assert.Equal(t, "elasticsearch", cb.Name)
	assert.Equal(t, 5*time.Second, cb.Timeout)
	assert.InDelta(t, 0.5, cb.FailureRatio, 1e-9)
}

func TestConfig_Redis(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"REDIS_HOST": "cache", "REDIS_DB": "2"})
	require.NoError(t, err)

	r := cfg.Redis()

	assert.Equal(t, "cache:6379", r.Addr())
	assert.Equal(t, 2, r.DB)
	assert.Equal(t, 24*time.Hour, cfg.DedupTTL())
}
