package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/analytics"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/config"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/event"
	handler "github.com/AGtheOG/ikarus3d-advisorBot/internal/handler/http"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/service"
	"github.com/AGtheOG/ikarus3d-advisorBot/migrations"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/database"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/health"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/middleware"
	pkgkafka "github.com/AGtheOG/ikarus3d-advisorBot/pkg/kafka"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/tracing"
)

// ServiceName labels logs, traces and metrics.
const ServiceName = "advisor-api"

// App wires together all dependencies and runs the advisor API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	vectorPool     *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	closers        []func() error
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Failing external clients do not stop startup: requests that need them
// answer 503 until the process is restarted with a working configuration.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.TracingConfig(ServiceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	healthHandler := health.NewHandler()

	if cfg.NeedsPostgres() {
		a.connectPostgres(ctx, healthHandler)
	}
	if cfg.EmbeddingCache == config.CacheRedis {
		a.connectRedis(ctx, healthHandler)
	}

	variant := cfg.RecommendVariant()
	embedder := a.buildEmbedder(variant)
	index := a.buildIndex(ctx, variant.Dimensions())
	healthHandler.Register("vector_index", index.Ping)
	describer := a.buildGenerator(ctx, variant)
	queryLogs := a.buildQueryLog()
	publisher := a.buildPublisher(ctx, healthHandler)

	recommendations := service.NewRecommendationService(
		service.RecommendationConfig{
			Variant:     variant,
			TopK:        cfg.TopK,
			Concurrency: cfg.GenerationConcurrency,
		},
		embedder, index, describer, queryLogs, publisher, logger,
	)

	analyticsStore := analytics.NewFileStore(cfg.AnalyticsFile)
	healthHandler.RegisterOptional("analytics_file", analyticsStore.Check)
	analyticsService := service.NewAnalyticsService(analyticsStore, logger)

	// HTTP router.
	requestTimeout := time.Duration(cfg.RequestTimeoutSecs) * time.Second
	router := handler.NewRouter(
		handler.RouterConfig{
			ServiceName:       ServiceName,
			AllowedOrigins:    cfg.CORSAllowedOrigins,
			AdminAllowedCIDRs: cfg.AdminAllowedCIDRs,
			RequestTimeout:    requestTimeout,
			RecommendLimit: middleware.RateLimitConfig{
				RPS:               cfg.RecommendRateLimitRPS,
				Burst:             cfg.RecommendRateLimitBurst,
				TrustProxyHeaders: cfg.TrustProxyHeaders,
			},
		},
		handler.NewAdvisorHandler(recommendations, analyticsService, logger),
		healthHandler,
		logger,
	)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("advisor api initialized",
		slog.String("variant", string(variant)),
		slog.String("vector_store", cfg.VectorStore),
		slog.Int("top_k", cfg.TopK),
		slog.Any("health_checks", healthHandler.Names()),
	)
	return a, nil
}

// connectPostgres opens the main pool and applies migrations. Failures are
// logged and leave a.pool nil.
func (a *App) connectPostgres(ctx context.Context, h *health.Handler) {
	pgCfg := a.cfg.PostgresConfig()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		a.logger.Error("postgres unavailable, continuing without it", slog.String("error", err.Error()))
		return
	}
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		a.logger.Error("database migrations failed, continuing without postgres", slog.String("error", err.Error()))
		pool.Close()
		return
	}
	a.logger.Info("database migrations completed")

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServiceName); err != nil {
		a.logger.Warn("register pool metrics", slog.String("error", err.Error()))
	}
	h.RegisterOptional("postgres", pool.Ping)
	a.pool = pool
}

// connectRedis opens the embedding cache connection. Failures are logged and
// leave a.redis nil.
func (a *App) connectRedis(ctx context.Context, h *health.Handler) {
	client, err := database.NewRedisClient(ctx, a.cfg.RedisConfig())
	if err != nil {
		a.logger.Warn("redis unavailable, using in-memory embedding cache", slog.String("error", err.Error()))
		return
	}
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.RedisConfig().Addr()))
	h.RegisterOptional("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	a.redis = client
}

// buildPublisher returns the Kafka event publisher, or a no-op when no
// brokers are configured.
func (a *App) buildPublisher(ctx context.Context, h *health.Handler) event.Publisher {
	if !a.cfg.EventsEnabled() {
		a.logger.Info("kafka brokers not configured, recommendation events disabled")
		return event.Noop{}
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	if err := producer.Ping(ctx); err != nil {
		a.logger.Warn("kafka producer ping failed, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	}
	h.RegisterOptional("kafka", producer.Ping)
	a.producer = producer
	return event.NewProducer(producer, a.cfg.KafkaTopicRecommendation, a.logger)
}

// Run starts the HTTP server, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka producer, external clients, Redis and finally the PostgreSQL pools.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(httpCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// Flush spans after the HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Error("client close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.vectorPool != nil {
		a.vectorPool.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
