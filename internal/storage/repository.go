package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bilancio/internal/backup"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/sheets"
)

// ErrNotFound aliases the port sentinel so callers can match either.
var ErrNotFound = sheets.ErrNotFound

// ErrSyncExhausted is returned once a transaction has failed to reach Sheets
// as many times as allowed. The row stays in error until ResetFailedSyncs.
var ErrSyncExhausted = errors.New("sync attempts exhausted")

var _ sheets.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r := &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}
	r.logger.Info("Database ready", "path", dbPath, "schema_version", version)
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendTransaction stores tx as pending sync and returns its id.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	row, err := r.queries.CreateTransaction(ctx, transactionParams(tx, SyncPending))
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		append([]any{"id", row.ID},
			log.NewFields().WithTransaction(row.Type, row.Category, row.AmountCents).ToSlice()...)...)
	return row.ID, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsBetween(ctx, dayKey(from), dayKey(to))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// StoredTransaction is a transaction with its sync bookkeeping.
type StoredTransaction struct {
	core.Transaction
	SyncStatus string
	Version    int64
	Attempts   int
	CreatedAt  time.Time
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (*StoredTransaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	tx, err := row.toCore()
	if err != nil {
		return nil, err
	}
	return &StoredTransaction{
		Transaction: tx,
		SyncStatus:  row.SyncStatus,
		Version:     row.Version,
		Attempts:    int(row.SyncAttempts),
		CreatedAt:   row.CreatedAt.Time,
	}, nil
}

// PendingSync returns up to limit transactions not yet written to Sheets,
// oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.queries.GetPendingSyncTransactions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	out := make([]PendingSyncTransaction, len(rows))
	for i, row := range rows {
		out[i] = PendingSyncTransaction{
			ID:        row.ID,
			Version:   row.Version,
			Attempts:  int(row.SyncAttempts),
			CreatedAt: row.CreatedAt.Time,
		}
	}
	return out, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	n, err := r.queries.MarkTransactionSynced(ctx, id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// RecordSyncFailure counts a failed Sheets append. The row stays pending for
// the next attempt until maxAttempts is reached, then moves to error and
// ErrSyncExhausted is returned. The version is left alone so a requeued
// message for the same row is still current.
func (r *SQLiteRepository) RecordSyncFailure(ctx context.Context, id string, maxAttempts int) error {
	row, err := r.queries.RecordTransactionSyncFailure(ctx, int64(maxAttempts), id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("record sync failure: %w", err)
	}
	if row.SyncStatus == SyncError {
		r.logger.ErrorContext(ctx, "Transaction sync failed permanently", "id", id, "attempts", row.SyncAttempts)
		return fmt.Errorf("transaction %s after %d attempts: %w", id, row.SyncAttempts, ErrSyncExhausted)
	}
	r.logger.WarnContext(ctx, "Transaction sync failed, will retry", "id", id, "attempts", row.SyncAttempts)
	return nil
}

// ResetFailedSyncs puts every errored row back in the queue with a fresh
// attempt count.
func (r *SQLiteRepository) ResetFailedSyncs(ctx context.Context) (int, error) {
	n, err := r.queries.ResetFailedSyncs(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset failed syncs: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Failed syncs requeued", "count", n)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ListTaxonomy(ctx context.Context) ([]string, []core.Account, error) {
	cats, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list categories: %w", err)
	}
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]core.Account, len(rows))
	for i, a := range rows {
		accounts[i] = core.Account{ID: a.ID, Name: a.Name, Kind: core.AccountKind(a.Kind)}
	}
	return cats, accounts, nil
}

// SyncTaxonomy merges categories and accounts into the local tables. Nothing
// is removed, so transactions never lose their category.
func (r *SQLiteRepository) SyncTaxonomy(ctx context.Context, cats []string, accounts []core.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin taxonomy sync: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	for _, c := range cats {
		if err := q.InsertCategory(ctx, c); err != nil {
			return fmt.Errorf("insert category %q: %w", c, err)
		}
	}
	for _, a := range accounts {
		if err := a.Validate(); err != nil {
			r.logger.WarnContext(ctx, "Skipping invalid account", "id", a.ID, log.FieldError, err.Error())
			continue
		}
		if err := q.UpsertAccount(ctx, Account{ID: a.ID, Name: a.Name, Kind: string(a.Kind)}); err != nil {
			return fmt.Errorf("upsert account %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit taxonomy sync: %w", err)
	}
	r.logger.InfoContext(ctx, "Taxonomy synced", "categories", len(cats), "accounts", len(accounts))
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		b, err := row.toCore()
		if err != nil {
			return nil, fmt.Errorf("budget %s: %w", row.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// UpsertBudget validates and stores b, assigning an id when missing.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := r.queries.UpsertBudget(ctx, budgetRow(b)); err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	r.logger.InfoContext(ctx, "Budget saved", log.NewFields().WithBudget(b.ID).ToSlice()...)
	return b, nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.queries.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	out := make([]core.Goal, 0, len(rows))
	for _, row := range rows {
		g, err := row.toCore()
		if err != nil {
			return nil, fmt.Errorf("goal %s: %w", row.ID, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// UpsertGoal validates and stores g. An already completed goal stays
// completed even if g says otherwise.
func (r *SQLiteRepository) UpsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if err := r.queries.UpsertGoal(ctx, goalRow(g)); err != nil {
		return core.Goal{}, fmt.Errorf("upsert goal: %w", err)
	}
	r.logger.InfoContext(ctx, "Goal saved", log.NewFields().WithGoal(g.ID).ToSlice()...)
	return g, nil
}

func (r *SQLiteRepository) MarkGoalCompleted(ctx context.Context, id string) error {
	n, err := r.queries.MarkGoalCompleted(ctx, id)
	if err != nil {
		return fmt.Errorf("mark goal completed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}
	r.logger.InfoContext(ctx, "Goal marked completed", log.NewFields().WithGoal(id).ToSlice()...)
	return nil
}

func (r *SQLiteRepository) LastReminder(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := r.queries.GetReminder(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get reminder: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reminder %s: %w", key, err)
	}
	return at, true, nil
}

func (r *SQLiteRepository) RecordReminder(ctx context.Context, key string, at time.Time) error {
	if err := r.queries.UpsertReminder(ctx, key, at.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}

// Snapshot reads every record inside one transaction.
func (r *SQLiteRepository) Snapshot(ctx context.Context, now time.Time) (backup.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return backup.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	view := &SQLiteRepository{db: r.db, queries: r.queries.WithTx(tx), logger: r.logger}
	snap, err := backup.Collect(ctx, view, now)
	if err != nil {
		return backup.Snapshot{}, err
	}
	return snap, tx.Commit()
}

// Restore loads snap into the database. Existing transactions are kept,
// restored ones are marked synced so they are not appended to Sheets again.
func (r *SQLiteRepository) Restore(ctx context.Context, snap backup.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	for _, c := range snap.Categories {
		if err := q.InsertCategory(ctx, c); err != nil {
			return fmt.Errorf("restore category %q: %w", c, err)
		}
	}
	for _, a := range snap.Accounts {
		if err := q.UpsertAccount(ctx, Account{ID: a.ID, Name: a.Name, Kind: string(a.Kind)}); err != nil {
			return fmt.Errorf("restore account %s: %w", a.ID, err)
		}
	}
	for _, t := range snap.Transactions {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if err := q.InsertTransactionIfMissing(ctx, transactionParams(t, SyncSynced)); err != nil {
			return fmt.Errorf("restore transaction %s: %w", t.ID, err)
		}
	}
	for _, b := range snap.Budgets {
		if err := q.UpsertBudget(ctx, budgetRow(b)); err != nil {
			return fmt.Errorf("restore budget %s: %w", b.ID, err)
		}
	}
	for _, g := range snap.Goals {
		if err := q.UpsertGoal(ctx, goalRow(g)); err != nil {
			return fmt.Errorf("restore goal %s: %w", g.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	r.logger.InfoContext(ctx, "Snapshot restored",
		"transactions", len(snap.Transactions), "budgets", len(snap.Budgets), "goals", len(snap.Goals))
	return nil
}

// dayKey returns the first calendar day (UTC) whose midnight is not before t.
// Dates are stored as YYYY-MM-DD, so date >= dayKey(from) AND date < dayKey(to)
// selects exactly the days in [from, to).
func dayKey(t time.Time) string {
	t = t.UTC()
	d := t.Truncate(24 * time.Hour)
	if d.Before(t) {
		d = d.Add(24 * time.Hour)
	}
	return d.Format(time.DateOnly)
}

func transactionParams(tx core.Transaction, status string) CreateTransactionParams {
	return CreateTransactionParams{
		ID:          tx.ID,
		Date:        tx.Date.String(),
		Type:        string(tx.Type),
		Description: tx.Description,
		Category:    tx.Category,
		AmountCents: tx.Amount.Cents,
		Account:     tx.Account,
		SyncStatus:  status,
	}
}

func (t Transaction) toCore() (core.Transaction, error) {
	date, err := core.ParseDate(t.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return core.Transaction{
		ID:          t.ID,
		Date:        date,
		Type:        core.TransactionType(t.Type),
		Description: t.Description,
		Category:    t.Category,
		Amount:      core.Money{Cents: t.AmountCents},
		Account:     t.Account,
	}, nil
}

func budgetRow(b core.Budget) Budget {
	return Budget{
		ID:          b.ID,
		Name:        b.Name,
		AmountCents: b.Amount.Cents,
		Currency:    currencyOr(b.Currency),
		PeriodType:  string(b.PeriodType),
		StartDate:   b.StartDate.String(),
		EndDate:     b.EndDate.String(),
		IsGlobal:    b.IsGlobal,
		CategoryIDs: encodeIDs(b.CategoryIDs),
		AccountIDs:  encodeIDs(b.AccountIDs),
		IsPaused:    b.IsPaused,
	}
}

func (b Budget) toCore() (core.Budget, error) {
	start, end, err := decodeDates(b.StartDate, b.EndDate)
	if err != nil {
		return core.Budget{}, err
	}
	cats, err := decodeIDs(b.CategoryIDs)
	if err != nil {
		return core.Budget{}, err
	}
	accounts, err := decodeIDs(b.AccountIDs)
	if err != nil {
		return core.Budget{}, err
	}
	return core.Budget{
		ID:          b.ID,
		Name:        b.Name,
		Amount:      core.Money{Cents: b.AmountCents},
		Currency:    b.Currency,
		PeriodType:  core.PeriodType(b.PeriodType),
		StartDate:   start,
		EndDate:     end,
		IsGlobal:    b.IsGlobal,
		CategoryIDs: cats,
		AccountIDs:  accounts,
		IsPaused:    b.IsPaused,
	}, nil
}

func goalRow(g core.Goal) Goal {
	return Goal{
		ID:          g.ID,
		Name:        g.Name,
		GoalType:    string(g.GoalType),
		TargetCents: g.TargetAmount.Cents,
		Currency:    currencyOr(g.Currency),
		PeriodType:  string(g.PeriodType),
		StartDate:   g.StartDate.String(),
		EndDate:     g.EndDate.String(),
		IsGlobal:    g.IsGlobal,
		CategoryIDs: encodeIDs(g.CategoryIDs),
		AccountIDs:  encodeIDs(g.AccountIDs),
		IsCompleted: g.IsCompleted,
	}
}

func (g Goal) toCore() (core.Goal, error) {
	start, end, err := decodeDates(g.StartDate, g.EndDate)
	if err != nil {
		return core.Goal{}, err
	}
	cats, err := decodeIDs(g.CategoryIDs)
	if err != nil {
		return core.Goal{}, err
	}
	accounts, err := decodeIDs(g.AccountIDs)
	if err != nil {
		return core.Goal{}, err
	}
	return core.Goal{
		ID:           g.ID,
		Name:         g.Name,
		GoalType:     core.GoalType(g.GoalType),
		TargetAmount: core.Money{Cents: g.TargetCents},
		Currency:     g.Currency,
		PeriodType:   core.PeriodType(g.PeriodType),
		StartDate:    start,
		EndDate:      end,
		IsGlobal:     g.IsGlobal,
		CategoryIDs:  cats,
		AccountIDs:   accounts,
		IsCompleted:  g.IsCompleted,
	}, nil
}

func decodeDates(start, end string) (core.Date, core.Date, error) {
	var s, e core.Date
	var err error
	if start != "" {
		if s, err = core.ParseDate(start); err != nil {
			return s, e, err
		}
	}
	if end != "" {
		if e, err = core.ParseDate(end); err != nil {
			return s, e, err
		}
	}
	return s, e, nil
}

func encodeIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func decodeIDs(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode ids: %w", err)
	}
	return ids, nil
}

func currencyOr(c string) string {
	if c == "" {
		return "EUR"
	}
	return c
}
