package worker

import (
	"context"

	"bilancio/internal/amqp"
)

// DirectPublisher runs the handler in-process. It replaces the broker when
// AMQP is not configured, so reminders and syncs still happen synchronously.
type DirectPublisher struct {
	handler *Handler
}

func NewDirectPublisher(h *Handler) *DirectPublisher {
	return &DirectPublisher{handler: h}
}

func (p *DirectPublisher) PublishReminder(ctx context.Context, msg amqp.ReminderMessage) error {
	return p.handler.HandleReminder(ctx, msg)
}

func (p *DirectPublisher) PublishTransactionSync(ctx context.Context, id string, version int64) error {
	return p.handler.HandleSync(ctx, amqp.NewTransactionSyncMessage(id, version))
}
