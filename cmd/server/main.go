package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	costingapp "github.com/glasserp/backend/internal/application/costing"
	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/glasserp/backend/internal/infrastructure/cache"
	"github.com/glasserp/backend/internal/infrastructure/config"
	"github.com/glasserp/backend/internal/infrastructure/event"
	"github.com/glasserp/backend/internal/infrastructure/logger"
	"github.com/glasserp/backend/internal/infrastructure/persistence"
	"github.com/glasserp/backend/internal/interfaces/http/handler"
	"github.com/glasserp/backend/internal/interfaces/http/middleware"
	"github.com/glasserp/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting costing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Idempotency store: Redis when enabled, in-process fallback otherwise
	var idempotencyStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		store, err := cache.NewRedisIdempotencyStore(cache.RedisOptions{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		idempotencyStore = store
		log.Info("Redis idempotency store connected", zap.String("addr", cfg.Redis.Addr()))
	} else {
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	eventBus := event.NewInMemoryEventBus(log)

	txScope := persistence.NewGormTransactionScope(db.DB)
	costingService := costingapp.NewCostingService(
		txScope,
		eventBus,
		log,
		costing.ShortfallPolicy(cfg.Costing.ShortfallPolicy),
	)

	// A detected ledger violation triggers a history replay
	repairHandler := costingapp.NewRepairHandler(costingService, log)
	eventBus.Subscribe(repairHandler, repairHandler.EventTypes()...)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.CORS())
	engine.Use(middleware.Secure())
	engine.Use(middleware.Idempotency(idempotencyStore, cfg.Costing.IdempotencyTTL, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewCostingHandler(costingService))
	r.Register(handler.NewHealthHandler(db, version))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
