package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-appeals-api/api/swagger"
	"github.com/noah-isme/sma-appeals-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-appeals-api/internal/middleware"
	"github.com/noah-isme/sma-appeals-api/internal/repository"
	"github.com/noah-isme/sma-appeals-api/internal/service"
	"github.com/noah-isme/sma-appeals-api/pkg/cache"
	"github.com/noah-isme/sma-appeals-api/pkg/config"
	"github.com/noah-isme/sma-appeals-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-appeals-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-appeals-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-appeals-api/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the appeals HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logr, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logr.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logr)
	},
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	tracingOn := cfg.Tracing.Active()
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		tracingOn = false
		logr.Warn("tracing disabled", zap.Error(err))
	} else if tracingOn {
		logr.Info("tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Error("tracing shutdown failed", zap.Error(err))
		}
	}()

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	checks := map[string]handler.ReadinessCheck{}

	store, db, err := openStore(ctx, cfg, logr, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close() //nolint:errcheck
		checks["database"] = db.PingContext
	}

	appealOpts := []service.AppealServiceOption{
		service.WithAccessPolicy(service.AccessPolicy{
			AllowUnassignedReviewerAccess: cfg.Appeals.AllowUnassignedReviewerAccess,
		}),
		service.WithAppealMetrics(metricsSvc),
		service.WithDeadlineHorizon(cfg.Appeals.DeadlineHorizonDays),
		service.WithCaseIDAllocator(service.NewCaseIDAllocator(store,
			service.WithCaseIDAttempts(cfg.Appeals.CaseIDMaxAttempts))),
	}

	tokenCfg := service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}
	principalSvc := service.NewPrincipalService(nil, logr, tokenCfg)
	if db != nil && cfg.Appeals.ResolveUsers {
		users := repository.NewUserRepository(db)
		appealOpts = append(appealOpts, service.WithUserDirectory(users))
		principalSvc = service.NewPrincipalService(users, logr, tokenCfg)
	}

	if cfg.Appeals.CacheEnabled {
		if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
			logr.Warn("redis unavailable, appeal cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(client, logr)
			appealOpts = append(appealOpts, service.WithAppealCache(
				service.NewCacheService(cacheRepo, metricsSvc, cfg.Appeals.CacheTTL, logr, true)))
			checks["redis"] = redisCheck(client)
		}
	}

	appealSvc := service.NewAppealService(store, logr, appealOpts...)

	if cfg.Sweep.Enabled {
		sweeper := service.NewDeadlineSweeper(store, metricsSvc, logr, cfg.Appeals.DeadlineHorizonDays)
		if err := sweeper.Start(ctx, cfg.Sweep.Interval); err != nil {
			logr.Error("failed to start deadline sweeper", zap.Error(err))
		}
		defer sweeper.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if tracingOn {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, cfg.Metrics.Path))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(principalSvc))
	handler.RegisterAppealRoutes(api, handler.NewAppealHandler(appealSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Appeals.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func redisCheck(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
