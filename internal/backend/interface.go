package backend

import (
	"context"

	"bilancio/internal/amqp"
	"bilancio/internal/sheets"
	gsheet "bilancio/internal/sheets/google"
	"bilancio/internal/storage"
)

// Backend is the store the API reads from and writes new transactions to.
type Backend interface {
	sheets.Store
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
// The optional handles are set only when the corresponding service is
// configured and reachable.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc

	// SQLite is the local database of the sqlite backend.
	SQLite *storage.SQLiteRepository
	// Sheets is the spreadsheet: the backend itself, or the sync target of
	// the sqlite backend.
	Sheets *gsheet.Client
	// AMQP carries sync messages when the sqlite backend has a broker.
	AMQP *amqp.Client
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific. Optional for sqlite, where it enables sync.
	Sheets *SheetsConfig

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
