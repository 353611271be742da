package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/fern/config"
	assignmentrepo "github.com/Ramsey-B/fern/internal/repositories/assignment"
	templaterepo "github.com/Ramsey-B/fern/internal/repositories/template"
	assignmentsvc "github.com/Ramsey-B/fern/internal/services/assignment"
	"github.com/Ramsey-B/fern/internal/services/profile"
	"github.com/Ramsey-B/fern/internal/services/resolver"
	templatesvc "github.com/Ramsey-B/fern/internal/services/template"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/objectstore"
	"github.com/Ramsey-B/fern/pkg/ratelimit"
	"github.com/Ramsey-B/fern/pkg/redis"
	assignmentroutes "github.com/Ramsey-B/fern/pkg/routes/assignment"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/measurementtemplate"
	"github.com/Ramsey-B/fern/pkg/routes/sizechart"
	templateroutes "github.com/Ramsey-B/fern/pkg/routes/template"
	"github.com/Ramsey-B/fern/pkg/startup"
)

const shutdownTimeout = 15 * time.Second

func migrateOnly(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, sync, err := newLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return err
	}
	defer sync()

	db := newDatabaseDependency(cfg, logger)
	s := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	s.AddDependency(db)
	s.AddDependency(newMigrationDependency(cfg, db, logger))

	err = s.Start(ctx)
	if stopErr := s.Stop(context.WithoutCancel(ctx)); err == nil {
		err = stopErr
	}
	return err
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, sync, err := newLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return err
	}
	defer sync()

	shutdownTracing, err := setupTracing(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	// dependencies
	s := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	db := newDatabaseDependency(cfg, logger)
	s.AddDependency(db)
	s.AddDependency(newMigrationDependency(cfg, db, logger))

	var chartCache cache.ChartCache = cache.NoopCache{}
	var redisClient *redis.Client
	var limiter *ratelimit.Limiter
	if cfg.RedisHost != "" {
		redisClient = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		s.AddDependency(redisClient)
		chartCache = cache.NewRedisCache(redisClient, time.Duration(cfg.CacheTTLSeconds)*time.Second, logger)
		limiter = ratelimit.NewLimiter(redisClient, cfg.PublicWriteLimit, time.Duration(cfg.PublicWriteWindowSeconds)*time.Second, logger)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.KafkaEnabled {
		producer, err := events.NewProducer(events.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaEventsTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			MaxAttempts:  events.DefaultProducerConfig().MaxAttempts,
			WriteTimeout: events.DefaultProducerConfig().WriteTimeout,
			Compression:  cfg.KafkaCompression,
			Async:        cfg.KafkaAsync,
		}, logger)
		if err != nil {
			return err
		}
		s.AddDependency(producer)
		publisher = producer
	}

	if err := s.Start(ctx); err != nil {
		_ = s.Stop(context.WithoutCancel(ctx))
		return err
	}
	defer func() {
		if err := s.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies")
		}
	}()

	// services
	normalizer := objectstore.NewNormalizer(cfg.S3Bucket, cfg.S3Region)
	emitter := events.NewEmitter(publisher, logger)
	templates := templaterepo.NewRepository(db.db, logger)
	assignments := assignmentrepo.NewRepository(db.db, logger)

	resolverService := resolver.NewService(logger, templates, assignments, chartCache, normalizer)
	profileService := profile.NewService(logger, templates, chartCache, emitter, normalizer)
	templateService := templatesvc.NewService(logger, db.db, templates, assignments, chartCache, emitter)
	assignmentService := assignmentsvc.NewService(logger, db.db, templates, assignments, chartCache, emitter)

	auth, err := authMiddleware(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// routes
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(Version)
	checker.AddCheck("database", health.PingFunc(db.db.PingContext), true)
	if redisClient != nil {
		checker.AddCheck("redis", redisClient, false)
	}
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	cors := echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	})
	showDetails := cfg.IsDevelopment()
	sizechart.NewHandler(resolverService, logger, showDetails).Register(e.Group("/size-chart", cors))
	profileRoutes := e.Group("/measurement-template", cors)
	if limiter != nil {
		profileRoutes.Use(ratelimit.Writes(limiter))
	}
	measurementtemplate.NewHandler(profileService, logger, showDetails).Register(profileRoutes)

	api := e.Group("/api/v1", auth)
	templateroutes.NewHandler(templateService).Register(api.Group("/templates"))
	assignmentroutes.NewHandler(assignmentService).Register(api.Group("/products/:product_id/assignments"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(map[string]any{
			"port":        cfg.Port,
			"environment": cfg.Environment,
			"version":     Version,
		}).Info("HTTP server listening")
		checker.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		checker.SetReady(false)
		logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// authMiddleware verifies OIDC bearer tokens when auth is enabled and trusts
// the shop header otherwise.
func authMiddleware(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (echo.MiddlewareFunc, error) {
	if !cfg.AuthEnabled {
		logger.Warn("Authentication is disabled; the admin API trusts the X-Shop-Domain header")
		return middleware.TestAuth(), nil
	}

	verifier, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC verifier: %w", err)
	}
	return middleware.Authentication(logger, verifier), nil
}
