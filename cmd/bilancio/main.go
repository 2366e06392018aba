package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/adapters"
	"bilancio/internal/analytics"
	"bilancio/internal/backend"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	flush := cli.InitSentry(cfg, "bilancio", logger)
	defer flush()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	locale := analytics.LocaleFor(cfg.Locale)
	dashboard := services.NewDashboardService(res.Backend, services.DashboardConfig{
		Locale:   locale,
		TopN:     cfg.DefaultTopN,
		CacheTTL: cfg.CacheTTL,
	}, logger)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(dashboard.Cache())
	if cfg.CacheTTL > 0 {
		cacheManager.StartCleanup(cfg.CacheTTL)
	}

	// The sqlite backend feeds Sheets through the broker when there is one.
	// Without a broker this process syncs on its own.
	var (
		publisher services.SyncPublisher
		sweep     *services.SyncProcessor
	)
	switch {
	case res.AMQP != nil:
		publisher = res.AMQP
	case res.SQLite != nil && res.Sheets != nil:
		syncer := services.NewTransactionSyncer(res.SQLite, res.Sheets, logger)
		publisher = worker.NewDirectPublisher(worker.NewHandler(syncer, nil, locale.Tag, logger))
		sweep = services.NewSyncProcessor(res.SQLite, syncer, services.SyncProcessorConfig{
			PollInterval: cfg.SyncInterval,
			BatchSize:    cfg.SyncBatchSize,
		}, logger)

		plans := worker.NewPlanSync(res.Sheets, res.SQLite, 24*time.Hour, logger)
		if err := plans.SyncIfStale(context.Background()); err != nil {
			logger.Error("Plan sync failed, serving local copy", log.FieldError, err)
			cli.ReportError(err, map[string]string{"operation": log.OpSync})
		}
	}
	transactions := services.NewTransactionService(res.Backend, publisher, dashboard, logger)

	var font []byte
	if cfg.ReportFontFile != "" {
		font, err = os.ReadFile(cfg.ReportFontFile)
		if err != nil {
			logger.Warn("Could not read report font, PDF reports disabled", log.FieldError, err)
			font = nil
		}
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		Dashboard:    dashboard,
		Transactions: transactions,
		Backend:      adapters.NewStorePinger(res.Backend),
		ReportFont:   font,
		Location:     cfg.Location(),
		Logger:       logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if sweep != nil {
			if err := sweep.Stop(ctx); err != nil {
				logger.Error("Sync processor shutdown error", log.FieldError, err)
			}
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if sweep != nil {
		// Rows that ran out of attempts get a fresh round on every start.
		if _, err := sweep.RetryFailed(ctx); err != nil {
			logger.Error("Failed to requeue errored syncs", log.FieldError, err)
		}
		if err := sweep.Start(ctx); err != nil {
			logger.Error("Failed to start sync processor", log.FieldError, err)
		}
	}

	logger.Info("Starting bilancio server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"locale", locale.Tag.String(),
		"timezone", cfg.Location().String(),
		"pdf_reports", font != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
