package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/sheets"
)

// SyncPublisher announces a stored transaction that still has to reach Sheets.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, version int64) error
}

// Invalidator drops cached dashboard data.
type Invalidator interface {
	Invalidate()
}

// TransactionService records transactions in the configured backend.
type TransactionService struct {
	writer    sheets.TransactionWriter
	publisher SyncPublisher
	cache     Invalidator
	logger    *log.Logger
}

// NewTransactionService wires the writer with optional sync publishing and
// cache invalidation. publisher is only set when the writer is the local
// database and Sheets is fed asynchronously.
func NewTransactionService(writer sheets.TransactionWriter, publisher SyncPublisher, cache Invalidator, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Nop()
	}
	return &TransactionService{
		writer:    writer,
		publisher: publisher,
		cache:     cache,
		logger:    logger.WithComponent(log.ComponentTx),
	}
}

// Create validates and stores tx and returns the backend reference.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	ref, err := s.writer.AppendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate()
	}

	// Version 1 for a freshly created row.
	if s.publisher != nil {
		if err := s.publisher.PublishTransactionSync(ctx, ref, 1); err != nil {
			// The sweep picks the row up later.
			s.logger.ErrorContext(ctx, "Failed to publish sync message",
				"id", ref, log.FieldError, err.Error())
		}
	}

	s.logger.InfoContext(ctx, "Transaction created",
		append([]any{log.FieldSheetsRef, ref},
			log.NewFields().
				WithOperation(log.OpCreate).
				WithTransaction(string(tx.Type), tx.Category, tx.Amount.Cents).
				ToSlice()...)...)
	return ref, nil
}
