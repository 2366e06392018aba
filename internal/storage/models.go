package storage

import (
	"database/sql"
	"time"
)

// Sync states of a transaction row.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type Transaction struct {
	ID           string
	Date         string
	Type         string
	Description  string
	Category     string
	AmountCents  int64
	Account      string
	SyncStatus   string
	Version      int64
	SyncAttempts int64
	CreatedAt    sql.NullTime
	SyncedAt     sql.NullTime
}

type Budget struct {
	ID          string
	Name        string
	AmountCents int64
	Currency    string
	PeriodType  string
	StartDate   string
	EndDate     string
	IsGlobal    bool
	CategoryIDs string
	AccountIDs  string
	IsPaused    bool
}

type Goal struct {
	ID          string
	Name        string
	GoalType    string
	TargetCents int64
	Currency    string
	PeriodType  string
	StartDate   string
	EndDate     string
	IsGlobal    bool
	CategoryIDs string
	AccountIDs  string
	IsCompleted bool
}

type Account struct {
	ID   string
	Name string
	Kind string
}

// PendingSyncTransaction is the minimal data a sync message needs.
type PendingSyncTransaction struct {
	ID        string
	Version   int64
	Attempts  int
	CreatedAt time.Time
}
