package main

import (
	"context"
	"os"
	"time"

	"bilancio/internal/analytics"
	"bilancio/internal/backend"
	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentReminder)
	logger.Info("Starting reminder-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	flush := cli.InitSentry(cfg, "reminder-worker", logger)
	defer flush()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The reminder run only reads; a spreadsheet next to sqlite is not needed.
	if bcfg.Type != backend.SheetsBackend {
		bcfg.Sheets = nil
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	locale := analytics.LocaleFor(cfg.Locale)

	// Reminders go through the broker when bilancio-worker is listening,
	// otherwise they are delivered from here.
	var publisher services.ReminderPublisher
	if res.AMQP != nil {
		publisher = res.AMQP
		logger.Info("Reminders will be delivered by bilancio-worker")
	} else {
		handler := worker.NewHandler(nil, cli.NewNotifier(cfg, logger), locale.Tag, logger)
		publisher = worker.NewDirectPublisher(handler)
	}

	processor, err := services.NewReminderProcessor(res.Backend, publisher, services.ReminderConfig{
		Locale:    locale,
		Cadence:   cfg.ReminderCadence,
		Threshold: cfg.BudgetAlertThreshold,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize reminder processor", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Reminder processor configured",
		"interval", cfg.ReminderInterval,
		"cadence", cfg.ReminderCadence,
		"threshold", cfg.BudgetAlertThreshold,
		"timezone", cfg.Location().String())

	loc := cfg.Location()
	run := func(now time.Time) {
		// Periods and reminder keys follow the configured calendar day.
		now = now.In(loc)
		count, err := processor.ProcessReminders(ctx, now)
		if err != nil {
			logger.Error("Reminder run failed", log.FieldError, err)
			cli.ReportError(err, map[string]string{"operation": log.OpEvaluate})
			return
		}
		logger.Info("Reminder run complete",
			"reminders_sent", count,
			"next_check", now.Add(cfg.ReminderInterval).Format("15:04:05"))
	}

	run(time.Now())

	go func() {
		ticker := time.NewTicker(cfg.ReminderInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				run(now)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Reminder worker stopped gracefully")
}
