package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utafrali/catalogsearch/internal/config"
	"github.com/utafrali/catalogsearch/internal/engine"
	esengine "github.com/utafrali/catalogsearch/internal/engine/elasticsearch"
	memengine "github.com/utafrali/catalogsearch/internal/engine/memory"
	"github.com/utafrali/catalogsearch/internal/repository"
	memstore "github.com/utafrali/catalogsearch/internal/repository/memory"
	"github.com/utafrali/catalogsearch/internal/repository/postgres"
	"github.com/utafrali/catalogsearch/migrations"
	"github.com/utafrali/catalogsearch/pkg/database"
	"github.com/utafrali/catalogsearch/pkg/httpclient"
)

// Store is the authoritative store together with the pool backing it. Pool
// is nil for the in-memory backend.
type Store struct {
	repository.Store
	Pool *pgxpool.Pool
}

// Close releases the connection pool, if any.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStore connects the configured authoritative store. With migrate set the
// embedded SQL migrations are applied first.
func OpenStore(ctx context.Context, cfg *config.Config, migrate bool, logger *slog.Logger) (*Store, error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Info("in-memory item store initialized")
		return &Store{Store: memstore.New()}, nil
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if migrate {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	return &Store{Store: postgres.NewStore(pool), Pool: pool}, nil
}

// OpenIndex connects the configured search index. The Elasticsearch client
// sends every request through a circuit breaker so an outage surfaces as
// engine.ErrUnavailable instead of piling up timeouts.
func OpenIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.IndexStore, error) {
	if cfg.SearchEngine == config.EngineMemory {
		logger.Info("in-memory search index initialized")
		return memengine.New(), nil
	}

	transport := httpclient.NewBreakerTransport(
		httpclient.NewTransport(httpclient.DefaultConfig()),
		cfg.ElasticsearchBreaker(),
		logger,
	)

	idx, err := esengine.New(ctx, esengine.Config{
		URL:       cfg.ElasticsearchURL,
		Index:     cfg.ElasticsearchIndex,
		Transport: transport,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch index: %w", err)
	}
	logger.Info("elasticsearch search index initialized",
		slog.String("url", cfg.ElasticsearchURL),
		slog.String("index", idx.IndexName()),
	)
	return idx, nil
}
