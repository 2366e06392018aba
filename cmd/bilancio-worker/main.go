package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/analytics"
	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/services"
	gsheet "bilancio/internal/sheets/google"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("bilancio-worker needs AMQP_URL")
		os.Exit(1)
	}

	flush := cli.InitSentry(cfg, "bilancio-worker", logger)
	defer flush()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Sheets is optional: without it the worker only delivers reminders.
	var sheetsClient *gsheet.Client
	if cfg.GoogleSpreadsheetID != "" {
		var err error
		sheetsClient, err = gsheet.NewFromConfig(context.Background(), cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	locale := analytics.LocaleFor(cfg.Locale)

	var (
		syncer worker.Syncer
		sweep  *services.SyncProcessor
		plans  *worker.PlanSync
	)
	if sheetsClient != nil {
		txSyncer := services.NewTransactionSyncer(repo, sheetsClient, logger)
		syncer = txSyncer
		sweep = services.NewSyncProcessor(repo, txSyncer, services.SyncProcessorConfig{
			PollInterval: cfg.SyncInterval,
			BatchSize:    cfg.SyncBatchSize,
			MinAge:       services.DefaultSyncProcessorConfig().MinAge,
		}, logger)
		plans = worker.NewPlanSync(sheetsClient, repo, 24*time.Hour, logger)
	}
	handler := worker.NewHandler(syncer, cli.NewNotifier(cfg, logger), locale.Tag, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if sweep != nil {
			if err := sweep.Stop(ctx); err != nil {
				logger.Error("Sync processor shutdown error", log.FieldError, err)
			}
		}
	})

	if plans != nil {
		// Rows queued while the worker was down are picked up by the sweep.
		if err := plans.SyncIfStale(ctx); err != nil {
			logger.Error("Plan sync failed", log.FieldError, err)
			cli.ReportError(err, map[string]string{"operation": log.OpSync})
		}
		// Rows that ran out of attempts get a fresh round on every start.
		if _, err := sweep.RetryFailed(ctx); err != nil {
			logger.Error("Failed to requeue errored syncs", log.FieldError, err)
		}
		if err := sweep.Start(ctx); err != nil {
			logger.Error("Failed to start sync processor", log.FieldError, err)
		}
		go refreshPlans(ctx, plans, logger)
	}

	go func() {
		err := amqpClient.Consume(ctx, handler.Handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			cli.ReportError(err, map[string]string{"component": log.ComponentAMQP})
			os.Exit(1)
		}
	}()

	logger.Info("Worker running",
		"queue", cfg.AMQPQueue,
		"sheets_sync", sheetsClient != nil,
		"telegram", cfg.TelegramEnabled())

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// refreshPlans checks once an hour whether the daily plan copy is due.
func refreshPlans(ctx context.Context, plans *worker.PlanSync, logger *log.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := plans.SyncIfStale(ctx); err != nil {
				logger.Error("Periodic plan sync failed", log.FieldError, err)
			}
		}
	}
}
