package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/sheets/memory"
	"bilancio/internal/storage"
)

func TestPlanSync(t *testing.T) {
	ctx := context.Background()

	src := memory.New([]string{"Comida", "Mascotas"}, []core.Account{{ID: "visa", Name: "Visa", Kind: core.Card}})
	if _, err := src.AddBudget(ctx, core.Budget{
		ID: "pets", Name: "Mascotas", Amount: core.Money{Cents: 5000}, Currency: "EUR",
		PeriodType: core.Monthly, CategoryIDs: []string{"Mascotas"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := src.AddGoal(ctx, core.Goal{
		ID: "save", Name: "Ahorro", GoalType: core.SavingsGoal, TargetAmount: core.Money{Cents: 10000},
		Currency: "EUR", PeriodType: core.Monthly, IsGlobal: true,
	}); err != nil {
		t.Fatal(err)
	}

	dst, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "plans.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dst.Close() })

	// Completion latched locally must survive a sync from an unlatched sheet.
	if _, err := dst.UpsertGoal(ctx, core.Goal{
		ID: "save", Name: "Ahorro", GoalType: core.SavingsGoal, TargetAmount: core.Money{Cents: 10000},
		Currency: "EUR", PeriodType: core.Monthly, IsGlobal: true, IsCompleted: true,
	}); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
	s := NewPlanSync(src, dst, 24*time.Hour, nil)
	s.now = func() time.Time { return now }

	if err := s.SyncIfStale(ctx); err != nil {
		t.Fatalf("SyncIfStale() error = %v", err)
	}

	cats, accounts, _ := dst.ListTaxonomy(ctx)
	if cats[len(cats)-1] != "Mascotas" {
		t.Errorf("expected Mascotas in local categories, got %v", cats)
	}
	found := false
	for _, a := range accounts {
		found = found || a.ID == "visa"
	}
	if !found {
		t.Errorf("expected visa account, got %+v", accounts)
	}

	budgets, _ := dst.ListBudgets(ctx)
	if len(budgets) != 1 || budgets[0].ID != "pets" {
		t.Errorf("unexpected budgets %+v", budgets)
	}
	goals, _ := dst.ListGoals(ctx)
	if len(goals) != 1 || !goals[0].IsCompleted {
		t.Errorf("goal completion must stay latched, got %+v", goals)
	}

	// Fresh within maxAge: a second run reads nothing new.
	if _, err := src.AddBudget(ctx, core.Budget{
		ID: "late", Name: "Late", Amount: core.Money{Cents: 1}, Currency: "EUR",
		PeriodType: core.Monthly, IsGlobal: true,
	}); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return now.Add(time.Hour) }
	if err := s.SyncIfStale(ctx); err != nil {
		t.Fatal(err)
	}
	if budgets, _ := dst.ListBudgets(ctx); len(budgets) != 1 {
		t.Errorf("fresh plans should not be resynced, got %d budgets", len(budgets))
	}

	s.now = func() time.Time { return now.Add(25 * time.Hour) }
	if err := s.SyncIfStale(ctx); err != nil {
		t.Fatal(err)
	}
	if budgets, _ := dst.ListBudgets(ctx); len(budgets) != 2 {
		t.Errorf("stale plans should be resynced, got %d budgets", len(budgets))
	}
}
