// Package worker handles messages consumed from the broker.
package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"bilancio/internal/amqp"
	"bilancio/internal/log"
	"bilancio/internal/notify"
	"bilancio/internal/storage"
)

// Syncer copies a stored transaction to the spreadsheet.
type Syncer interface {
	SyncTransaction(ctx context.Context, id string, version int64) error
}

// Handler dispatches deliveries by message type.
type Handler struct {
	syncer   Syncer
	notifier notify.Notifier
	lang     language.Tag
	logger   *log.Logger
}

// NewHandler builds a handler. A nil syncer drops sync messages, which is
// what a worker without Sheets access should do.
func NewHandler(syncer Syncer, notifier notify.Notifier, lang language.Tag, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Handler{
		syncer:   syncer,
		notifier: notifier,
		lang:     lang,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Handle is an amqp.Handler.
func (h *Handler) Handle(ctx context.Context, d amqp.Delivery) error {
	switch d.Type {
	case amqp.TypeTransactionSync:
		msg, err := amqp.TransactionSyncMessageFromJSON(d.Body)
		if err != nil {
			return fmt.Errorf("%w: decode sync message: %v", amqp.ErrPermanent, err)
		}
		return h.HandleSync(ctx, msg)
	case amqp.TypeReminder:
		msg, err := amqp.ReminderMessageFromJSON(d.Body)
		if err != nil {
			return fmt.Errorf("%w: decode reminder: %v", amqp.ErrPermanent, err)
		}
		return h.HandleReminder(ctx, *msg)
	}
	return fmt.Errorf("%w: unknown message type %q", amqp.ErrPermanent, d.Type)
}

// HandleSync processes a single transaction sync message.
func (h *Handler) HandleSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	h.logger.InfoContext(ctx, "Processing sync message",
		"id", msg.ID, "version", msg.Version, log.FieldMessageType, amqp.TypeTransactionSync)

	if h.syncer == nil {
		h.logger.WarnContext(ctx, "No Sheets client configured, dropping sync message", "id", msg.ID)
		return nil
	}
	err := h.syncer.SyncTransaction(ctx, msg.ID, msg.Version)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrSyncExhausted) {
		return fmt.Errorf("%w: %v", amqp.ErrPermanent, err)
	}
	return err
}

// HandleReminder renders msg and sends it through the notifier.
func (h *Handler) HandleReminder(ctx context.Context, msg amqp.ReminderMessage) error {
	text := notify.FormatReminder(msg, h.lang)
	err := h.notifier.Send(ctx, text)
	if errors.Is(err, notify.ErrRejected) {
		return fmt.Errorf("%w: %v", amqp.ErrPermanent, err)
	}
	if err != nil {
		return fmt.Errorf("send reminder %s: %w", msg.Key, err)
	}
	h.logger.InfoContext(ctx, "Reminder delivered",
		"key", msg.Key, "kind", string(msg.Kind), log.FieldOperation, log.OpNotify)
	return nil
}
