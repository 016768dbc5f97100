package main

import (
	"context"
	"errors"
	"os"
	"time"

	"wastewise/internal/amqp"
	"wastewise/internal/cli"
	wlog "wastewise/internal/log"
	gsheet "wastewise/internal/sheets/google"
	"wastewise/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), wlog.ComponentWorker)
	logger.Info("Starting wastewise-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed",
			wlog.FieldError, err,
			wlog.FieldErrorType, wlog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheetsClient, err := gsheet.NewClient(context.Background(), gsheet.Config{
		SpreadsheetID:       cfg.GoogleSpreadsheetID,
		LogSheetName:        cfg.GoogleLogSheetName,
		ChallengesSheetName: cfg.GoogleChallengesSheetName,
		CredentialsJSON:     cfg.GoogleServiceAccountJSON,
		CredentialsFile:     cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", wlog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", wlog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, repo, sheetsClient, sheetsClient, cfg.SyncBatchSize)
	scheduler := worker.NewScheduler(syncWorker, worker.SchedulerConfig{
		SyncInterval:    cfg.SyncInterval,
		RefreshInterval: cfg.ChallengeRefreshInterval,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler stop failed", wlog.FieldError, err)
		}
	})

	// Errors here are not fatal: the scheduler retries both on its next tick.
	if err := syncWorker.RefreshChallenges(ctx); err != nil {
		logger.Error("Initial challenge refresh failed", wlog.FieldError, err)
	}
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", wlog.FieldError, err)
	}

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", wlog.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeLogSync(ctx, syncWorker.HandleLogSync)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", wlog.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
