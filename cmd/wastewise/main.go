package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"wastewise/internal/backend"
	"wastewise/internal/cache"
	"wastewise/internal/cli"
	"wastewise/internal/config"
	apphttp "wastewise/internal/http"
	wlog "wastewise/internal/log"
	"wastewise/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), wlog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration",
			wlog.FieldError, err,
			"valid_backends", backend.GetBackendTypeStrings())
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.With(wlog.FieldComponent, wlog.ComponentBackend).Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend",
			wlog.FieldError, err,
			"backend", cfg.DataBackend)
		os.Exit(1)
	}

	summaries := cache.NewLRUCache[services.Dashboard](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(summaries)
	cacheManager.StartCleanup(cfg.SummaryCacheTTL)

	loc := cfg.Location()
	dashboard := services.NewDashboardService(result.Store, summaries)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Logs:               services.NewLogService(result.Store, result.Publisher, dashboard, loc),
		Dashboard:          dashboard,
		Challenges:         services.NewChallengeService(result.Store, result.Store, result.Store, loc),
		Ping:               result.Ping,
		SchemaVersion:      result.SchemaVersion,
		SummaryCacheSize:   summaries.Size,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins(),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", wlog.FieldError, err)
		}
		cacheManager.Stop()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", wlog.FieldError, err)
			}
		}
	})

	logServerStart(logger, cfg)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", wlog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

func logServerStart(logger *wlog.Logger, cfg *config.Config) {
	logger.Info("Starting wastewise server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Location().String(),
		"sync_enabled", cfg.AMQPURL != "")
}
