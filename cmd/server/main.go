package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	financeapp "github.com/storefront/ledger/internal/application/finance"
	"github.com/storefront/ledger/internal/domain/finance"
	"github.com/storefront/ledger/internal/domain/shared"
	"github.com/storefront/ledger/internal/infrastructure/cache"
	"github.com/storefront/ledger/internal/infrastructure/config"
	"github.com/storefront/ledger/internal/infrastructure/event"
	csvimport "github.com/storefront/ledger/internal/infrastructure/import"
	"github.com/storefront/ledger/internal/infrastructure/lock"
	"github.com/storefront/ledger/internal/infrastructure/logger"
	"github.com/storefront/ledger/internal/infrastructure/persistence"
	"github.com/storefront/ledger/internal/infrastructure/storage"
	"github.com/storefront/ledger/internal/infrastructure/telemetry"
	"github.com/storefront/ledger/internal/interfaces/http/handler"
	"github.com/storefront/ledger/internal/interfaces/http/middleware"
	"github.com/storefront/ledger/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const multipartOverhead = 1 << 20

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	// Telemetry: log export, tracing, metrics and continuous profiling
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer shutdownWithTimeout(log, "logger provider", loggerProvider.Shutdown)
	if loggerProvider.IsEnabled() {
		log = telemetry.NewBridgedLogger(log.Core(), telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          log.Level(),
		}), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownWithTimeout(log, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer shutdownWithTimeout(log, "meter provider", meterProvider.Shutdown)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeURL,
		ApplicationName: cfg.Telemetry.ServiceName,
		Memory:          true,
		Goroutines:      true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Warn("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Database with zap-backed GORM logging
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Postgres schemas are owned by cmd/migrate; sqlite is migrated in place
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	dbSystem := "postgresql"
	if cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	dbPlugin, err := telemetry.NewDBPlugin(meterProvider.Meter("ledger.db"), telemetry.DBConfig{
		TracingEnabled:  cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err != nil {
		log.Fatal("Failed to create database telemetry plugin", zap.Error(err))
	}
	if err := db.DB.Use(dbPlugin); err != nil {
		log.Fatal("Failed to register database telemetry plugin", zap.Error(err))
	}
	defer func() {
		_ = dbPlugin.Close()
	}()

	// Initialize repositories
	documentRepo := persistence.NewGormLedgerDocumentRepository(db.DB)
	accountRepo := persistence.NewGormBankAccountRepository(db.DB)
	transactionRepo := persistence.NewGormBankTransactionRepository(db.DB)
	reconciliationRepo := persistence.NewGormReconciliationRepository(db.DB)
	eventLog := persistence.NewGormEventLog(db.DB)

	// Idempotency store and locker share Redis when it is configured
	idempotencyStore, redisClient, err := cache.NewIdempotencyStoreFactory(
		cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		cache.WithLogger(log),
		cache.WithKeyPrefix(cfg.Idempotency.KeyPrefix),
		cache.WithInMemoryFallback(!cfg.Idempotency.RequireRedis),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Warn("Error closing idempotency store", zap.Error(err))
		}
	}()
	locker := newLocker(redisClient, cfg.Lock, log)

	archive, err := storage.NewArchive(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize statement archive", zap.Error(err))
	}

	// Event bus: audit trail plus logging and metrics for every ledger event
	ledgerMetrics, err := telemetry.NewLedgerMetrics(meterProvider.Meter("ledger"))
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}
	eventBus := event.NewInMemoryEventBus(log)
	eventSerializer := event.NewLedgerEventSerializer()
	eventBus.Subscribe(event.NewAuditHandler(eventLog, eventSerializer, log))
	eventBus.Subscribe(financeapp.NewLedgerEventHandler(log).WithMetrics(ledgerMetrics))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize application services
	clock := shared.SystemClock{}
	ledgerService := financeapp.NewLedgerService(financeapp.LedgerServiceConfig{
		DocumentRepo:     documentRepo,
		Clock:            clock,
		Locker:           locker,
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.Idempotency.TTL,
		EventBus:         eventBus,
		EventLog:         eventLog,
		EventDecoder:     eventSerializer,
		Logger:           log,
		AgingScheme:      finance.AgingScheme(cfg.Ledger.AgingScheme),
	})
	reconciliationService := financeapp.NewReconciliationService(financeapp.ReconciliationServiceConfig{
		AccountRepo:        accountRepo,
		TransactionRepo:    transactionRepo,
		ReconciliationRepo: reconciliationRepo,
		Clock:              clock,
		Locker:             locker,
		EventBus:           eventBus,
		Logger:             log,
	})
	importService := financeapp.NewStatementImportService(financeapp.StatementImportServiceConfig{
		AccountRepo:      accountRepo,
		TransactionRepo:  transactionRepo,
		Parser:           csvimport.NewStatementParser(),
		Archive:          archive,
		IdempotencyStore: idempotencyStore,
		Clock:            clock,
		Locker:           locker,
		EventBus:         eventBus,
		Logger:           log,
		MaxFileSize:      cfg.Ledger.MaxStatementSize(),
	})

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Register custom validators and JSON field names for errors
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	// Middleware order: request ID first so every log line and span carries it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       cfg.Telemetry.MetricsEnabled,
		Logger:        log,
	}))
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:   cfg.Telemetry.ProfilingEnabled,
		SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
	}))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Statement uploads get the statement limit plus room for the multipart envelope
	engine.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		MaxBytes: cfg.HTTP.MaxBodySize,
		RouteLimits: map[string]int64{
			"/api/v1/bank-accounts/:id/statements": cfg.Ledger.MaxStatementSize() + multipartOverhead,
		},
	}))
	engine.Use(middleware.Timeout(cfg.HTTP.WriteTimeout))

	// Routes
	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Root(http.MethodGet, "/health", handler.NewSystemHandler(cfg.App.Name, version, db).Health).
		Register(handler.NewDocumentHandler(ledgerService)).
		Register(handler.NewReconciliationHandler(reconciliationService, importService)).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newLocker returns a Redis locker when a client is available, otherwise a
// process-local keyed mutex
func newLocker(client *redis.Client, cfg config.LockConfig, log *zap.Logger) shared.Locker {
	if client == nil {
		log.Info("Using in-process locker")
		return lock.NewKeyedMutex()
	}
	lockerCfg := lock.DefaultRedisLockerConfig()
	lockerCfg.TTL = cfg.TTL
	lockerCfg.RetryInterval = cfg.RetryInterval
	log.Info("Using Redis locker")
	return lock.NewRedisLocker(client, lockerCfg, log)
}

func shutdownWithTimeout(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("Error shutting down "+name, zap.Error(err))
	}
}
