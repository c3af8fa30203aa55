package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalogsearch/internal/config"
	"github.com/utafrali/catalogsearch/internal/event"
	handler "github.com/utafrali/catalogsearch/internal/handler/http"
	"github.com/utafrali/catalogsearch/internal/indexsync"
	"github.com/utafrali/catalogsearch/internal/service"
	"github.com/utafrali/catalogsearch/pkg/database"
	"github.com/utafrali/catalogsearch/pkg/health"
	pkgkafka "github.com/utafrali/catalogsearch/pkg/kafka"
	"github.com/utafrali/catalogsearch/pkg/middleware"
	"github.com/utafrali/catalogsearch/pkg/tracing"
)

// dedupKeyPrefix namespaces consumed event ids in Redis.
const dedupKeyPrefix = "catalog:dedup:"

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *Store
	relay          *indexsync.Relay
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	redis          *redis.Client
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName(),
		ServiceVersion: cfg.ServiceVersion(),
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	// Authoritative store.
	a.store, err = OpenStore(ctx, cfg, true, logger)
	if err != nil {
		return nil, err
	}
	if a.store.Pool != nil {
		database.RegisterPoolMetrics(a.store.Pool, cfg.ServiceName())
	}

	// Search index.
	index, err := OpenIndex(ctx, cfg, logger)
	if err != nil {
		a.store.Close()
		return nil, err
	}

	// Event delivery: committed mutations are published on the bus, which
	// either applies them inline or forwards them to Kafka.
	bus := event.NewBus(logger)
	syncer := indexsync.New(index, a.store, cfg.SyncSequenceTTL, logger)

	switch cfg.SyncMode {
	case config.SyncModeKafka:
		a.wireKafka(ctx, bus, syncer)
	default:
		bus.Subscribe(syncer.Apply)
		logger.Info("inline index synchronization enabled")
	}

	a.relay = indexsync.NewRelay(a.store, bus, indexsync.RelayConfig{
		Interval:    cfg.OutboxPollInterval,
		GracePeriod: cfg.OutboxGracePeriod,
		BatchSize:   cfg.OutboxBatchSize,
	}, logger)

	// Build the service layer.
	catalogService := service.NewCatalogService(a.store, bus, logger)
	searchService := service.NewSearchService(index, service.SearchConfig{
		PreTag:  cfg.HighlightPreTag,
		PostTag: cfg.HighlightPostTag,
	}, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	if a.store.Pool != nil {
		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return a.store.Pool.Ping(ctx)
		})
	}
	healthHandler.RegisterCritical(cfg.SearchEngine, index.Ping)
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(catalogService, searchService, healthHandler, handler.RouterConfig{
		RequestTimeout:    cfg.HTTPRequestTimeout,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		CORS:              middleware.DefaultCORSConfig(),
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// wireKafka forwards bus events to Kafka and feeds the synchronizer from a
// deduplicating consumer. Redis backs the dedup store when reachable; the
// service falls back to an in-process store otherwise.
func (a *App) wireKafka(ctx context.Context, bus *event.Bus, syncer *indexsync.Synchronizer) {
	cfg := a.cfg

	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), a.logger)
	if err := a.producer.Ping(ctx); err != nil {
		a.logger.Warn("kafka producer ping failed, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	}
	bus.Subscribe(event.NewForwarder(a.producer, cfg.KafkaTopic, a.logger).Publish)

	var dedup pkgkafka.IdempotencyStore
	client, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		a.logger.Warn("redis unavailable, deduplicating consumed events in memory",
			slog.String("error", err.Error()),
		)
		dedup = pkgkafka.NewMemoryIdempotencyStore(cfg.DedupTTL())
	} else {
		a.redis = client
		dedup = pkgkafka.NewRedisIdempotencyStore(client, dedupKeyPrefix, cfg.DedupTTL())
	}

	consumerCfg := pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaTopic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10 MB
	}
	if cfg.KafkaDLQ {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, a.logger)
		consumerCfg.DLQ = a.dlq
	}
	a.consumer = pkgkafka.NewConsumer(consumerCfg, event.NewConsumer(syncer, a.logger).Handler(dedup), a.logger)

	a.logger.Info("kafka index synchronization enabled",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group_id", cfg.KafkaGroupID),
	)
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server, the Kafka consumer and the outbox relay, then
// blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start Kafka consumer.
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("item event consumer: %w", err)
			}
		}()
	}

	// Start outbox relay.
	go a.relay.Run(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumer and producers
// 4. Redis client
// 5. Store connection pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka clients.
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Redis.
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close the store pool.
	a.store.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
