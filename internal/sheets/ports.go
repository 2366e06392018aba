package sheets

import (
	"context"
	"errors"
	"time"

	"bilancio/internal/core"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	TransactionReader interface {
		// ListTransactions returns transactions dated in [from, to).
		ListTransactions(ctx context.Context, from, to time.Time) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (ref string, err error)
	}

	TaxonomyReader interface {
		ListTaxonomy(ctx context.Context) (categories []string, accounts []core.Account, err error)
	}

	BudgetReader interface {
		ListBudgets(ctx context.Context) ([]core.Budget, error)
	}

	GoalReader interface {
		ListGoals(ctx context.Context) ([]core.Goal, error)
	}

	// GoalCompleter persists the completion latch. Implementations only ever
	// set the flag; nothing clears it.
	GoalCompleter interface {
		MarkGoalCompleted(ctx context.Context, id string) error
	}

	// ReminderLog remembers when a reminder key was last sent.
	ReminderLog interface {
		LastReminder(ctx context.Context, key string) (at time.Time, ok bool, err error)
		RecordReminder(ctx context.Context, key string, at time.Time) error
	}

	// Store is the full set of ports a data backend provides.
	Store interface {
		TransactionReader
		TransactionWriter
		TaxonomyReader
		BudgetReader
		GoalReader
		GoalCompleter
		ReminderLog
	}
)
