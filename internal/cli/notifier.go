package cli

import (
	"bilancio/internal/config"
	"bilancio/internal/log"
	"bilancio/internal/notify"
)

// NewNotifier returns the Telegram notifier when a bot is configured and
// falls back to logging reminders otherwise.
func NewNotifier(cfg *config.Config, logger *log.Logger) notify.Notifier {
	if !cfg.TelegramEnabled() {
		logger.Info("Telegram not configured, reminders go to the log")
		return notify.NewLogNotifier(logger)
	}
	n, err := notify.NewTelegramNotifier(notify.TelegramOptions{
		Token:  cfg.TelegramBotToken,
		ChatID: cfg.TelegramChatID,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Telegram notifier, falling back to log", log.FieldError, err)
		return notify.NewLogNotifier(logger)
	}
	logger.Info("Telegram notifier enabled")
	return n
}
