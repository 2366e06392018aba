package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bilancio/internal/log"
	"bilancio/internal/sheets"
	"bilancio/internal/storage"
)

// SyncStore is the local side of the SQLite to Sheets sync.
type SyncStore interface {
	GetTransaction(ctx context.Context, id string) (*storage.StoredTransaction, error)
	PendingSync(ctx context.Context, limit int) ([]storage.PendingSyncTransaction, error)
	MarkSynced(ctx context.Context, id string) error
	RecordSyncFailure(ctx context.Context, id string, maxAttempts int) error
	ResetFailedSyncs(ctx context.Context) (int, error)
}

// DefaultMaxSyncAttempts is how many failed appends a row gets before it is
// parked in error.
const DefaultMaxSyncAttempts = 5

// TransactionSyncer copies one stored transaction to Sheets. Calls are
// serialized so that a message and the sweep never append the same row twice.
type TransactionSyncer struct {
	store       SyncStore
	sheets      sheets.TransactionWriter
	logger      *log.Logger
	maxAttempts int
	mu          sync.Mutex
}

func NewTransactionSyncer(store SyncStore, writer sheets.TransactionWriter, logger *log.Logger) *TransactionSyncer {
	if logger == nil {
		logger = log.Nop()
	}
	return &TransactionSyncer{
		store:       store,
		sheets:      writer,
		logger:      logger.WithComponent(log.ComponentWorker),
		maxAttempts: DefaultMaxSyncAttempts,
	}
}

// SyncTransaction appends transaction id to Sheets unless it is already
// synced or version is older than the stored row. A missing row is a
// permanent failure and is reported as storage.ErrNotFound. A failed append
// leaves the row pending for a retry until its attempts run out, after which
// the error wraps storage.ErrSyncExhausted.
func (s *TransactionSyncer) SyncTransaction(ctx context.Context, id string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if stored.SyncStatus == storage.SyncSynced {
		s.logger.DebugContext(ctx, "Transaction already synced", "id", id)
		return nil
	}
	if stored.SyncStatus == storage.SyncError {
		return fmt.Errorf("transaction %s: %w", id, storage.ErrSyncExhausted)
	}
	if version < stored.Version {
		s.logger.InfoContext(ctx, "Skipping stale sync message",
			"id", id, "message_version", version, "stored_version", stored.Version)
		return nil
	}

	ref, err := s.sheets.AppendTransaction(ctx, stored.Transaction)
	if err != nil {
		if failErr := s.store.RecordSyncFailure(ctx, id, s.maxAttempts); failErr != nil {
			if errors.Is(failErr, storage.ErrSyncExhausted) {
				return fmt.Errorf("append to sheets: %w (%w)", err, failErr)
			}
			s.logger.ErrorContext(ctx, "Failed to record sync failure", "id", id, log.FieldError, failErr.Error())
		}
		return fmt.Errorf("append to sheets: %w", err)
	}
	if err := s.store.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction synced to Sheets",
		append([]any{"id", id, log.FieldSheetsRef, ref},
			log.NewFields().WithOperation(log.OpSync).ToSlice()...)...)
	return nil
}

// SyncProcessorConfig holds configuration for the sync sweep.
type SyncProcessorConfig struct {
	// PollInterval is how often to look for pending rows (default: 1m)
	PollInterval time.Duration

	// BatchSize is the max number of rows handled per sweep (default: 10)
	BatchSize int

	// MinAge leaves recent rows to their AMQP message (default: 30s)
	MinAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: time.Minute,
		BatchSize:    10,
		MinAge:       30 * time.Second,
	}
}

// SyncProcessor periodically syncs rows whose message was lost.
type SyncProcessor struct {
	store  SyncStore
	syncer *TransactionSyncer
	config SyncProcessorConfig
	logger *log.Logger
	now    func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(store SyncStore, syncer *TransactionSyncer, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if logger == nil {
		logger = log.Nop()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	return &SyncProcessor{
		store:  store,
		syncer: syncer,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// RetryFailed requeues rows that ran out of attempts.
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int, error) {
	return p.store.ResetFailedSyncs(ctx)
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Catch up on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch syncs one batch of pending rows and returns how many were
// written to Sheets.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.store.PendingSync(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to load pending transactions", log.FieldError, err.Error())
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	cutoff := p.now().Add(-p.config.MinAge)
	synced := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !item.CreatedAt.IsZero() && item.CreatedAt.After(cutoff) {
			continue
		}
		if err := p.syncer.SyncTransaction(ctx, item.ID, item.Version); err != nil {
			p.logger.ErrorContext(ctx, "Failed to sync pending transaction",
				"id", item.ID, log.FieldError, err.Error())
			continue
		}
		synced++
	}

	if synced > 0 {
		p.logger.InfoContext(ctx, "Sync sweep completed", "pending", len(items), "synced", synced)
	}
	return synced
}
