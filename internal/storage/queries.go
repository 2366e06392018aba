package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const transactionColumns = `id, date, type, description, category, amount_cents, account, sync_status, version, sync_attempts, created_at, synced_at`

func scanTransaction(row interface{ Scan(...any) error }) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Date, &t.Type, &t.Description, &t.Category, &t.AmountCents,
		&t.Account, &t.SyncStatus, &t.Version, &t.SyncAttempts, &t.CreatedAt, &t.SyncedAt)
	return t, err
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (id, date, type, description, category, amount_cents, account, sync_status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns

type CreateTransactionParams struct {
	ID          string
	Date        string
	Type        string
	Description string
	Category    string
	AmountCents int64
	Account     string
	SyncStatus  string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.ID, arg.Date, arg.Type, arg.Description, arg.Category, arg.AmountCents, arg.Account, arg.SyncStatus)
	return scanTransaction(row)
}

const insertTransactionIfMissing = `-- name: InsertTransactionIfMissing :exec
INSERT OR IGNORE INTO transactions (id, date, type, description, category, amount_cents, account, sync_status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransactionIfMissing(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, insertTransactionIfMissing,
		arg.ID, arg.Date, arg.Type, arg.Description, arg.Category, arg.AmountCents, arg.Account, arg.SyncStatus)
	return err
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTransactionsBetween = `-- name: ListTransactionsBetween :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE date >= ? AND date < ?
ORDER BY date, created_at, id`

func (q *Queries) ListTransactionsBetween(ctx context.Context, from, to string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsBetween, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getPendingSyncTransactions = `-- name: GetPendingSyncTransactions :many
SELECT id, version, sync_attempts, created_at FROM transactions
WHERE sync_status = 'pending'
ORDER BY created_at, id
LIMIT ?`

type GetPendingSyncTransactionsRow struct {
	ID           string
	Version      int64
	SyncAttempts int64
	CreatedAt    sql.NullTime
}

func (q *Queries) GetPendingSyncTransactions(ctx context.Context, limit int64) ([]GetPendingSyncTransactionsRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncTransactions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPendingSyncTransactionsRow
	for rows.Next() {
		var i GetPendingSyncTransactionsRow
		if err := rows.Scan(&i.ID, &i.Version, &i.SyncAttempts, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markTransactionSynced = `-- name: MarkTransactionSynced :execrows
UPDATE transactions
SET sync_status = 'synced', synced_at = CURRENT_TIMESTAMP, version = version + 1
WHERE id = ?`

func (q *Queries) MarkTransactionSynced(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markTransactionSynced, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const recordTransactionSyncFailure = `-- name: RecordTransactionSyncFailure :one
UPDATE transactions
SET sync_attempts = sync_attempts + 1,
    sync_status = CASE WHEN sync_attempts + 1 >= ? THEN 'error' ELSE 'pending' END
WHERE id = ?
RETURNING sync_status, sync_attempts`

type RecordTransactionSyncFailureRow struct {
	SyncStatus   string
	SyncAttempts int64
}

func (q *Queries) RecordTransactionSyncFailure(ctx context.Context, maxAttempts int64, id string) (RecordTransactionSyncFailureRow, error) {
	var i RecordTransactionSyncFailureRow
	err := q.db.QueryRowContext(ctx, recordTransactionSyncFailure, maxAttempts, id).Scan(&i.SyncStatus, &i.SyncAttempts)
	return i, err
}

const resetFailedSyncs = `-- name: ResetFailedSyncs :execrows
UPDATE transactions
SET sync_status = 'pending', sync_attempts = 0
WHERE sync_status = 'error'`

func (q *Queries) ResetFailedSyncs(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, resetFailedSyncs)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCategories = `-- name: ListCategories :many
SELECT name FROM categories ORDER BY sort_order, name`

func (q *Queries) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	return items, rows.Err()
}

const insertCategory = `-- name: InsertCategory :exec
INSERT OR IGNORE INTO categories (name, sort_order)
VALUES (?, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM categories))`

func (q *Queries) InsertCategory(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, insertCategory, name)
	return err
}

const listAccounts = `-- name: ListAccounts :many
SELECT id, name, kind FROM accounts ORDER BY name`

func (q *Queries) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const upsertAccount = `-- name: UpsertAccount :exec
INSERT INTO accounts (id, name, kind) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, kind = excluded.kind`

func (q *Queries) UpsertAccount(ctx context.Context, arg Account) error {
	_, err := q.db.ExecContext(ctx, upsertAccount, arg.ID, arg.Name, arg.Kind)
	return err
}

const budgetColumns = `id, name, amount_cents, currency, period_type, start_date, end_date, is_global, category_ids, account_ids, is_paused`

const listBudgets = `-- name: ListBudgets :many
SELECT ` + budgetColumns + ` FROM budgets ORDER BY name, id`

func (q *Queries) ListBudgets(ctx context.Context) ([]Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.Name, &b.AmountCents, &b.Currency, &b.PeriodType, &b.StartDate,
			&b.EndDate, &b.IsGlobal, &b.CategoryIDs, &b.AccountIDs, &b.IsPaused); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const upsertBudget = `-- name: UpsertBudget :exec
INSERT INTO budgets (` + budgetColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    amount_cents = excluded.amount_cents,
    currency = excluded.currency,
    period_type = excluded.period_type,
    start_date = excluded.start_date,
    end_date = excluded.end_date,
    is_global = excluded.is_global,
    category_ids = excluded.category_ids,
    account_ids = excluded.account_ids,
    is_paused = excluded.is_paused,
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertBudget(ctx context.Context, b Budget) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, b.ID, b.Name, b.AmountCents, b.Currency, b.PeriodType,
		b.StartDate, b.EndDate, b.IsGlobal, b.CategoryIDs, b.AccountIDs, b.IsPaused)
	return err
}

const goalColumns = `id, name, goal_type, target_cents, currency, period_type, start_date, end_date, is_global, category_ids, account_ids, is_completed`

const listGoals = `-- name: ListGoals :many
SELECT ` + goalColumns + ` FROM goals ORDER BY name, id`

func (q *Queries) ListGoals(ctx context.Context) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, listGoals)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.Name, &g.GoalType, &g.TargetCents, &g.Currency, &g.PeriodType,
			&g.StartDate, &g.EndDate, &g.IsGlobal, &g.CategoryIDs, &g.AccountIDs, &g.IsCompleted); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

// The completion flag only ever moves from 0 to 1.
const upsertGoal = `-- name: UpsertGoal :exec
INSERT INTO goals (` + goalColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    goal_type = excluded.goal_type,
    target_cents = excluded.target_cents,
    currency = excluded.currency,
    period_type = excluded.period_type,
    start_date = excluded.start_date,
    end_date = excluded.end_date,
    is_global = excluded.is_global,
    category_ids = excluded.category_ids,
    account_ids = excluded.account_ids,
    is_completed = MAX(goals.is_completed, excluded.is_completed),
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertGoal(ctx context.Context, g Goal) error {
	_, err := q.db.ExecContext(ctx, upsertGoal, g.ID, g.Name, g.GoalType, g.TargetCents, g.Currency, g.PeriodType,
		g.StartDate, g.EndDate, g.IsGlobal, g.CategoryIDs, g.AccountIDs, g.IsCompleted)
	return err
}

const markGoalCompleted = `-- name: MarkGoalCompleted :execrows
UPDATE goals SET is_completed = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) MarkGoalCompleted(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markGoalCompleted, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getReminder = `-- name: GetReminder :one
SELECT sent_at FROM reminder_log WHERE key = ?`

func (q *Queries) GetReminder(ctx context.Context, key string) (string, error) {
	var sentAt string
	err := q.db.QueryRowContext(ctx, getReminder, key).Scan(&sentAt)
	return sentAt, err
}

const upsertReminder = `-- name: UpsertReminder :exec
INSERT INTO reminder_log (key, sent_at) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET sent_at = excluded.sent_at`

func (q *Queries) UpsertReminder(ctx context.Context, key, sentAt string) error {
	_, err := q.db.ExecContext(ctx, upsertReminder, key, sentAt)
	return err
}
