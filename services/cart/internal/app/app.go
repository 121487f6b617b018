package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/pkg/auth"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/tracing"
	"github.com/utafrali/storefront/services/cart/internal/catalog"
	"github.com/utafrali/storefront/services/cart/internal/config"
	"github.com/utafrali/storefront/services/cart/internal/event"
	handler "github.com/utafrali/storefront/services/cart/internal/handler/http"
	redisrepo "github.com/utafrali/storefront/services/cart/internal/repository/redis"
	"github.com/utafrali/storefront/services/cart/internal/service"
	"github.com/utafrali/storefront/services/cart/internal/sweeper"
)

const (
	serviceName       = "cart-service"
	idempotencyPrefix = "idem:cart:"
)

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	sweeper        *sweeper.Sweeper
	httpServer     *http.Server
	tracerShutdown tracing.Shutdown
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Catalog lookups go through retries and a circuit breaker.
	catalogHTTP := httpclient.New(httpclient.Config{
		Timeout:      time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond,
		MaxRetries:   2,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: time.Second,
	})
	catalogClient := catalog.NewClient(cfg.CatalogURL,
		httpclient.NewCircuitBreakerClient(catalogHTTP, httpclient.DefaultCircuitBreakerConfig("catalog"), logger))

	// Build the dependency graph.
	repo := redisrepo.NewCartRepository(rdb, cfg.CartTTLDuration())
	eventProducer := event.NewProducer(producer, logger)
	cartService := service.NewCartService(repo, catalogClient, eventProducer, logger)

	// product.deleted cascade.
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	dedupe := newIdempotencyStore(cfg, rdb)
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.KafkaBrokers,
		GroupID:    cfg.KafkaConsumerGroup,
		Topic:      event.TopicProductDeleted,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}, pkgkafka.IdempotentHandler(dedupe, event.NewProductDeletedHandler(repo, logger), logger), dlq, logger)

	var sw *sweeper.Sweeper
	if cfg.SweepEnabled() {
		sw, err = sweeper.New(cfg.SweepSchedule, cartService, logger)
		if err != nil {
			_ = rdb.Close()
			_ = tracerShutdown(context.Background())
			return nil, err
		}
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 0, 0)
	router := handler.NewRouter(cartService, healthHandler, handler.RouterConfig{
		Tokens:         jwtManager.TokenValidator(),
		CORSOrigins:    cfg.CORSAllowedOrigins,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		ErrorDetail:    !cfg.IsProduction(),
		RequestTimeout: time.Duration(cfg.RequestTimeoutS) * time.Second,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.RequestTimeoutS+5) * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		producer:       producer,
		dlq:            dlq,
		consumer:       consumer,
		sweeper:        sw,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server, the product.deleted consumer and the sweeper,
// and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.consumer.Run(consumerCtx); err != nil {
			a.logger.Error("product.deleted consumer stopped", slog.String("error", err.Error()))
		}
	}()

	if a.sweeper != nil {
		a.sweeper.Start()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopConsumer()
	wg.Wait()

	if err := a.Shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// Shutdown stops components in order: HTTP server, sweeper, tracer, kafka
// writers, then Redis.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.sweeper != nil {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer sweepCancel()
		a.sweeper.Stop(sweepCtx)
	}

	tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer tracerCancel()
	if err := a.tracerShutdown(tracerCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.consumer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// newIdempotencyStore picks where the product.deleted consumer remembers
// processed event IDs.
func newIdempotencyStore(cfg *config.Config, rdb redis.Cmdable) pkgkafka.IdempotencyStore {
	if cfg.IdempotencyStore == config.IdempotencyMemory {
		return pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencySize, cfg.IdempotencyTTL())
	}
	return pkgkafka.NewRedisIdempotencyStore(rdb, idempotencyPrefix, cfg.IdempotencyTTL())
}
