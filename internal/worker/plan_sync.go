package worker

import (
	"context"
	"fmt"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/sheets"
)

// planSyncKey is the log entry holding the last successful plan sync.
const planSyncKey = "sync:plans"

// PlanSource is the spreadsheet side: where categories, accounts, budgets and
// goals are maintained by hand.
type PlanSource interface {
	sheets.TaxonomyReader
	sheets.BudgetReader
	sheets.GoalReader
}

// PlanStore is the local database the API reads from.
type PlanStore interface {
	SyncTaxonomy(ctx context.Context, cats []string, accounts []core.Account) error
	UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	UpsertGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	sheets.ReminderLog
}

// PlanSync copies taxonomy, budgets and goals from Sheets into SQLite.
type PlanSync struct {
	src    PlanSource
	dst    PlanStore
	maxAge time.Duration
	logger *log.Logger
	now    func() time.Time
}

func NewPlanSync(src PlanSource, dst PlanStore, maxAge time.Duration, logger *log.Logger) *PlanSync {
	if logger == nil {
		logger = log.Nop()
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &PlanSync{src: src, dst: dst, maxAge: maxAge, logger: logger.WithComponent(log.ComponentWorker), now: time.Now}
}

// SyncIfStale syncs when no sync happened within maxAge.
func (s *PlanSync) SyncIfStale(ctx context.Context) error {
	last, ok, err := s.dst.LastReminder(ctx, planSyncKey)
	if err != nil {
		s.logger.WarnContext(ctx, "Could not determine last plan sync, syncing", log.FieldError, err.Error())
	}
	if ok && s.now().Sub(last) < s.maxAge {
		s.logger.InfoContext(ctx, "Plans are fresh",
			"last_sync", last.Format(time.RFC3339),
			"age", s.now().Sub(last).Round(time.Minute))
		return nil
	}
	return s.Sync(ctx)
}

// Sync copies everything. Goals keep their local completion flag because the
// store never clears it.
func (s *PlanSync) Sync(ctx context.Context) error {
	cats, accounts, err := s.src.ListTaxonomy(ctx)
	if err != nil {
		return fmt.Errorf("load taxonomy from Sheets: %w", err)
	}
	if err := s.dst.SyncTaxonomy(ctx, cats, accounts); err != nil {
		return fmt.Errorf("sync taxonomy: %w", err)
	}

	budgets, err := s.src.ListBudgets(ctx)
	if err != nil {
		return fmt.Errorf("load budgets from Sheets: %w", err)
	}
	for _, b := range budgets {
		if _, err := s.dst.UpsertBudget(ctx, b); err != nil {
			return fmt.Errorf("upsert budget %s: %w", b.ID, err)
		}
	}

	goals, err := s.src.ListGoals(ctx)
	if err != nil {
		return fmt.Errorf("load goals from Sheets: %w", err)
	}
	for _, g := range goals {
		if _, err := s.dst.UpsertGoal(ctx, g); err != nil {
			return fmt.Errorf("upsert goal %s: %w", g.ID, err)
		}
	}

	if err := s.dst.RecordReminder(ctx, planSyncKey, s.now()); err != nil {
		s.logger.WarnContext(ctx, "Failed to record plan sync time", log.FieldError, err.Error())
	}
	s.logger.InfoContext(ctx, "Plans synced from Sheets",
		"categories", len(cats),
		"accounts", len(accounts),
		"budgets", len(budgets),
		"goals", len(goals))
	return nil
}
