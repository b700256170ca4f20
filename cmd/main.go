package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"orgmanager/internal/caching"
	"orgmanager/internal/config"
	"orgmanager/internal/handlers"
	"orgmanager/internal/jobs/background"
	"orgmanager/internal/logger"
	"orgmanager/internal/metrics"
	"orgmanager/internal/middleware"
	"orgmanager/internal/repositories"
	"orgmanager/internal/services"
	"orgmanager/pkg/database"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.toml", "path to the optional TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Env, cfg.ServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck // stderr sync errors are not actionable

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	zl.Info("starting", append(cfg.LogFields(), zap.String("version", version))...)
	if cfg.GeneratedSecret() {
		zl.Warn("JWT_SECRET not set, using a generated secret; tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.PoolConfig{
		ConnString: cfg.Database.URL,
		MaxConns:   cfg.Database.MaxConns,
		MinConns:   cfg.Database.MinConns,
	}, zl)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repositories.RunMigrations(ctx, pool, zl); err != nil {
		return err
	}

	// Optional dependencies
	cache := caching.NewNoopCacheService()
	if cfg.Redis.Addr != "" {
		cache = caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL.Duration)
		if err := cache.Ping(ctx); err != nil {
			zl.Warn("redis unreachable, organization reads will bypass the cache", zap.Error(err))
		}
	}

	objects := services.NewNoopObjectStore()
	if cfg.Minio.Endpoint != "" {
		objects, err = services.NewMinioObjectStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
		if err != nil {
			return err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to prepare bucket %q: %w", cfg.Minio.Bucket, err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Repositories
	orgRepo := repositories.NewOrganizationRepo(pool)
	adminRepo := repositories.NewAdminRepo(pool)
	partitionRepo := repositories.NewPartitionRepo(pool)

	// Services
	timeout := cfg.Database.StorageTimeout.Duration
	credentialSvc := services.NewCredentialService(cfg.Credentials())
	tokenSvc, err := services.NewTokenService(cfg.Tokens())
	if err != nil {
		return err
	}
	authSvc, err := services.NewAuthService(adminRepo, credentialSvc, tokenSvc, zl, timeout)
	if err != nil {
		return err
	}
	partitions := services.NewPartitionManager(partitionRepo, objects, zl)
	orgSvc := services.NewOrganizationService(orgRepo, adminRepo, partitions, credentialSvc, cache, zl, m, timeout)

	scheduler, err := background.NewJobScheduler(orgSvc, zl, cfg.Jobs.ReconcileInterval.Duration, cfg.Jobs.OrphanGracePeriod.Duration)
	if err != nil {
		return err
	}
	scheduler.Start()
	if next, err := scheduler.NextRun(); err == nil {
		zl.Info("reconciliation scheduled", zap.Time("next_run", next))
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			zl.Error("scheduler shutdown failed", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(m.Middleware())
	e.Use(logger.Middleware(zl))
	e.Use(echoMiddleware.CORS())

	handlers.RegisterRoutes(e, handlers.Routes{
		Organizations: handlers.NewOrganizationHandlers(orgSvc),
		Auth:          handlers.NewAuthHandlers(authSvc),
		Health: handlers.NewHealthHandlers(version,
			handlers.DependencyCheck{Name: "database", Critical: true, Pinger: pool},
			handlers.DependencyCheck{Name: "redis", Pinger: cache},
			handlers.DependencyCheck{Name: "storage", Pinger: objects},
		),
		AuthService: authSvc,
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		zl.Info("http server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zl.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
