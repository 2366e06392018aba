package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type fakeSyncStore struct {
	mu   sync.Mutex
	rows map[string]*storage.StoredTransaction
}

func newFakeSyncStore(rows ...storage.StoredTransaction) *fakeSyncStore {
	s := &fakeSyncStore{rows: map[string]*storage.StoredTransaction{}}
	for i := range rows {
		r := rows[i]
		s.rows[r.ID] = &r
	}
	return s
}

func (s *fakeSyncStore) GetTransaction(_ context.Context, id string) (*storage.StoredTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *fakeSyncStore) PendingSync(_ context.Context, limit int) ([]storage.PendingSyncTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.PendingSyncTransaction
	for _, r := range s.rows {
		if r.SyncStatus == storage.SyncPending {
			out = append(out, storage.PendingSyncTransaction{ID: r.ID, Version: r.Version, CreatedAt: r.CreatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeSyncStore) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.SyncStatus = storage.SyncSynced
	r.Version++
	return nil
}

func (s *fakeSyncStore) RecordSyncFailure(_ context.Context, id string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.Attempts++
	if r.Attempts >= maxAttempts {
		r.SyncStatus = storage.SyncError
		return storage.ErrSyncExhausted
	}
	return nil
}

func (s *fakeSyncStore) ResetFailedSyncs(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.SyncStatus == storage.SyncError {
			r.SyncStatus = storage.SyncPending
			r.Attempts = 0
			n++
		}
	}
	return n, nil
}

func (s *fakeSyncStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].SyncStatus
}

type fakeSheetsWriter struct {
	mu  sync.Mutex
	txs []core.Transaction
	err error
	// failures is how many calls fail with err before the writer recovers;
	// zero means err is returned every time.
	failures int
	calls    int
}

func (w *fakeSheetsWriter) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil && (w.failures == 0 || w.calls <= w.failures) {
		return "", w.err
	}
	w.txs = append(w.txs, tx)
	return fmt.Sprintf("Transactions!A%d:F%d", len(w.txs)+1, len(w.txs)+1), nil
}

func (w *fakeSheetsWriter) appended() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.txs)
}

func pendingRow(id string, createdAt time.Time) storage.StoredTransaction {
	return storage.StoredTransaction{
		Transaction: core.Transaction{
			ID: id, Date: core.NewDate(2025, 10, 6), Type: core.Expense,
			Description: "pan", Category: "Comida", Amount: core.Money{Cents: 250},
		},
		SyncStatus: storage.SyncPending,
		Version:    1,
		CreatedAt:  createdAt,
	}
}

func TestTransactionSyncer_SyncTransaction(t *testing.T) {
	ctx := context.Background()
	old := refTime.Add(-time.Hour)

	t.Run("appends once and marks synced", func(t *testing.T) {
		store := newFakeSyncStore(pendingRow("a", old))
		writer := &fakeSheetsWriter{}
		syncer := NewTransactionSyncer(store, writer, nil)

		if err := syncer.SyncTransaction(ctx, "a", 1); err != nil {
			t.Fatalf("SyncTransaction() error = %v", err)
		}
		if store.status("a") != storage.SyncSynced || writer.appended() != 1 {
			t.Fatalf("expected synced row, status=%s appended=%d", store.status("a"), writer.appended())
		}
		// Redelivered message.
		if err := syncer.SyncTransaction(ctx, "a", 1); err != nil {
			t.Fatalf("redelivery error = %v", err)
		}
		if writer.appended() != 1 {
			t.Errorf("synced rows must not be appended again, got %d", writer.appended())
		}
	})

	t.Run("stale version is skipped", func(t *testing.T) {
		row := pendingRow("a", old)
		row.Version = 3
		store := newFakeSyncStore(row)
		writer := &fakeSheetsWriter{}

		if err := NewTransactionSyncer(store, writer, nil).SyncTransaction(ctx, "a", 1); err != nil {
			t.Fatalf("SyncTransaction() error = %v", err)
		}
		if writer.appended() != 0 || store.status("a") != storage.SyncPending {
			t.Errorf("stale message should be a no-op")
		}
	})

	t.Run("redelivery after a sheets failure succeeds", func(t *testing.T) {
		store := newFakeSyncStore(pendingRow("a", old))
		writer := &fakeSheetsWriter{err: errBoom, failures: 1}
		syncer := NewTransactionSyncer(store, writer, nil)

		err := syncer.SyncTransaction(ctx, "a", 1)
		if !errors.Is(err, errBoom) || errors.Is(err, storage.ErrSyncExhausted) {
			t.Fatalf("expected retryable sheets error, got %v", err)
		}
		if store.status("a") != storage.SyncPending {
			t.Fatalf("status = %s, want pending after one failure", store.status("a"))
		}

		if err := syncer.SyncTransaction(ctx, "a", 1); err != nil {
			t.Fatalf("redelivered message error = %v", err)
		}
		if store.status("a") != storage.SyncSynced || writer.appended() != 1 {
			t.Errorf("status=%s appended=%d, want synced once", store.status("a"), writer.appended())
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		store := newFakeSyncStore(pendingRow("a", old))
		writer := &fakeSheetsWriter{err: errBoom}
		syncer := NewTransactionSyncer(store, writer, nil)
		syncer.maxAttempts = 2

		if err := syncer.SyncTransaction(ctx, "a", 1); errors.Is(err, storage.ErrSyncExhausted) {
			t.Fatalf("first failure must be retryable, got %v", err)
		}
		err := syncer.SyncTransaction(ctx, "a", 1)
		if !errors.Is(err, storage.ErrSyncExhausted) || !errors.Is(err, errBoom) {
			t.Fatalf("expected exhausted sheets error, got %v", err)
		}
		if store.status("a") != storage.SyncError {
			t.Errorf("status = %s, want error", store.status("a"))
		}

		// Further copies of the message are not retried.
		if err := syncer.SyncTransaction(ctx, "a", 1); !errors.Is(err, storage.ErrSyncExhausted) {
			t.Errorf("expected ErrSyncExhausted for parked row, got %v", err)
		}
		if writer.calls != 2 {
			t.Errorf("sheets calls = %d, want 2", writer.calls)
		}
	})

	t.Run("missing row", func(t *testing.T) {
		err := NewTransactionSyncer(newFakeSyncStore(), &fakeSheetsWriter{}, nil).SyncTransaction(ctx, "nope", 1)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSyncProcessor_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	store := newFakeSyncStore(
		pendingRow("a", refTime.Add(-time.Hour)),
		pendingRow("b", refTime.Add(-time.Minute)),
		pendingRow("c", refTime.Add(-5*time.Second)),
	)
	writer := &fakeSheetsWriter{}
	p := NewSyncProcessor(store, NewTransactionSyncer(store, writer, nil), SyncProcessorConfig{
		PollInterval: time.Hour,
		BatchSize:    10,
		MinAge:       30 * time.Second,
	}, nil)
	p.now = func() time.Time { return refTime }

	if got := p.ProcessBatch(ctx); got != 2 {
		t.Fatalf("ProcessBatch() = %d, want 2", got)
	}
	if store.status("c") != storage.SyncPending {
		t.Error("rows younger than MinAge belong to their message")
	}

	p.now = func() time.Time { return refTime.Add(time.Minute) }
	if got := p.ProcessBatch(ctx); got != 1 || writer.appended() != 3 {
		t.Fatalf("second sweep synced %d, appended %d", got, writer.appended())
	}
	if got := p.ProcessBatch(ctx); got != 0 {
		t.Errorf("nothing left, got %d", got)
	}
}

func TestSyncProcessor_RetriesFailedAppends(t *testing.T) {
	ctx := context.Background()
	store := newFakeSyncStore(pendingRow("a", refTime.Add(-time.Hour)))
	writer := &fakeSheetsWriter{err: errBoom, failures: 1}
	syncer := NewTransactionSyncer(store, writer, nil)
	p := NewSyncProcessor(store, syncer, SyncProcessorConfig{PollInterval: time.Hour, BatchSize: 10}, nil)
	p.now = func() time.Time { return refTime }

	// The message attempt fails; the sweep picks the row up again.
	if err := syncer.SyncTransaction(ctx, "a", 1); err == nil {
		t.Fatal("expected first append to fail")
	}
	if got := p.ProcessBatch(ctx); got != 1 {
		t.Fatalf("ProcessBatch() = %d, want 1", got)
	}
	if store.status("a") != storage.SyncSynced || writer.appended() != 1 {
		t.Errorf("status=%s appended=%d", store.status("a"), writer.appended())
	}
}

func TestTransactionSyncer_SQLiteRetry(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "sync.db"), nil)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	id, err := repo.AppendTransaction(ctx, pendingRow("", time.Time{}).Transaction)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	writer := &fakeSheetsWriter{err: errBoom, failures: 1}
	syncer := NewTransactionSyncer(repo, writer, nil)

	if err := syncer.SyncTransaction(ctx, id, 1); !errors.Is(err, errBoom) {
		t.Fatalf("expected sheets error, got %v", err)
	}
	stored, err := repo.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.SyncStatus != storage.SyncPending || stored.Version != 1 {
		t.Fatalf("after failure status=%s version=%d, want pending v1", stored.SyncStatus, stored.Version)
	}

	// The requeued message still carries version 1.
	if err := syncer.SyncTransaction(ctx, id, 1); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if stored, _ := repo.GetTransaction(ctx, id); stored.SyncStatus != storage.SyncSynced {
		t.Errorf("status = %s, want synced", stored.SyncStatus)
	}
	if writer.appended() != 1 {
		t.Errorf("appended = %d, want 1", writer.appended())
	}
}

func TestSyncProcessor_RetryFailed(t *testing.T) {
	ctx := context.Background()
	store := newFakeSyncStore(pendingRow("a", refTime.Add(-time.Hour)))
	writer := &fakeSheetsWriter{err: errBoom, failures: 1}
	syncer := NewTransactionSyncer(store, writer, nil)
	syncer.maxAttempts = 1
	p := NewSyncProcessor(store, syncer, SyncProcessorConfig{PollInterval: time.Hour, BatchSize: 10}, nil)
	p.now = func() time.Time { return refTime }

	if got := p.ProcessBatch(ctx); got != 0 || store.status("a") != storage.SyncError {
		t.Fatalf("expected parked row, synced=%d status=%s", got, store.status("a"))
	}
	if got := p.ProcessBatch(ctx); got != 0 {
		t.Fatalf("errored rows are not swept, got %d", got)
	}

	n, err := p.RetryFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed() = %d, %v", n, err)
	}
	if got := p.ProcessBatch(ctx); got != 1 || store.status("a") != storage.SyncSynced {
		t.Errorf("after retry synced=%d status=%s", got, store.status("a"))
	}
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != time.Minute {
		t.Errorf("expected PollInterval 1m, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MinAge != 30*time.Second {
		t.Errorf("expected MinAge 30s, got %v", config.MinAge)
	}
}

func TestSyncProcessor_Lifecycle(t *testing.T) {
	store := newFakeSyncStore()
	p := NewSyncProcessor(store, NewTransactionSyncer(store, &fakeSheetsWriter{}, nil), SyncProcessorConfig{
		PollInterval: 10 * time.Millisecond,
	}, nil)

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !p.IsRunning() {
		t.Error("processor should be running after Start")
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop() on stopped processor should be a no-op, got %v", err)
	}
}
