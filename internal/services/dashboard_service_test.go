package services

import (
	"context"
	"reflect"
	"testing"
	"time"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
)

func newTestDashboard(t *testing.T) (*DashboardService, *countingStore) {
	t.Helper()
	store := &countingStore{Store: newFixtureStore(t)}
	svc := NewDashboardService(store, DashboardConfig{
		Locale:   analytics.Spanish,
		CacheTTL: time.Minute,
	}, nil)
	return svc, store
}

func TestDashboardService_Balance(t *testing.T) {
	svc, _ := newTestDashboard(t)

	got, err := svc.Balance(context.Background(), analytics.Month, refTime)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if len(got.Labels) != 5 {
		t.Fatalf("expected 5 weekly buckets in October, got %v", got.Labels)
	}
	wantExpenses := []int64{12000, 58000, 4000, 0, 0}
	if !reflect.DeepEqual(got.Expenses, wantExpenses) {
		t.Errorf("expenses = %v, want %v", got.Expenses, wantExpenses)
	}
	income, expenses := got.Totals()
	if income != 200000 || expenses != 74000 {
		t.Errorf("totals = %d/%d, want 200000/74000", income, expenses)
	}
}

func TestDashboardService_Categories(t *testing.T) {
	svc, _ := newTestDashboard(t)

	got, err := svc.Categories(context.Background(), analytics.Month, core.Expense, 2, refTime)
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	want := analytics.Ranking{
		Labels: []string{"Casa", "Comida", analytics.OtherLabel},
		Values: []int64{50000, 20000, 4000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Categories() = %+v, want %+v", got, want)
	}

	if _, err := svc.Categories(context.Background(), analytics.Month, core.Expense, 0, refTime); err == nil {
		t.Error("expected error for topN 0")
	}
}

func TestDashboardService_Trend(t *testing.T) {
	svc, _ := newTestDashboard(t)
	ctx := context.Background()

	t.Run("default selection", func(t *testing.T) {
		got, err := svc.Trend(ctx, analytics.Month, nil, refTime)
		if err != nil {
			t.Fatalf("Trend() error = %v", err)
		}
		if len(got.Series) != analytics.DefaultTrendCategories {
			t.Fatalf("expected %d series, got %+v", analytics.DefaultTrendCategories, got.Series)
		}
		if got.Series[0].Category != "Casa" || !reflect.DeepEqual(got.Series[0].Values, []int64{0, 50000, 0, 0, 0}) {
			t.Errorf("unexpected first series %+v", got.Series[0])
		}
	})

	t.Run("explicit selection", func(t *testing.T) {
		got, err := svc.Trend(ctx, analytics.Month, []string{"Comida"}, refTime)
		if err != nil {
			t.Fatalf("Trend() error = %v", err)
		}
		if len(got.Series) != 1 || !reflect.DeepEqual(got.Series[0].Values, []int64{12000, 8000, 0, 0, 0}) {
			t.Errorf("unexpected series %+v", got.Series)
		}
	})

	t.Run("empty period", func(t *testing.T) {
		got, err := svc.Trend(ctx, analytics.Month, nil, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("Trend() error = %v", err)
		}
		if len(got.Labels) == 0 || len(got.Series) != 0 {
			t.Errorf("expected labels and no series, got %+v", got)
		}
	})
}

func TestDashboardService_Budgets(t *testing.T) {
	svc, store := newTestDashboard(t)
	mustAddBudget(t, store.Store, core.Budget{
		ID: "food", Name: "Comida", Amount: core.Money{Cents: 25000},
		PeriodType: core.Monthly, CategoryIDs: []string{"comida"},
	})
	mustAddBudget(t, store.Store, core.Budget{
		ID: "paused", Name: "Ocio", Amount: core.Money{Cents: 100},
		PeriodType: core.Monthly, IsGlobal: true, IsPaused: true,
	})
	mustAddBudget(t, store.Store, core.Budget{
		ID: "week", Name: "Semana", Amount: core.Money{Cents: 3000},
		PeriodType: core.Weekly, IsGlobal: true,
	})

	got, err := svc.Budgets(context.Background(), refTime)
	if err != nil {
		t.Fatalf("Budgets() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("paused budgets must be skipped, got %+v", got)
	}

	food := got[0]
	if food.BudgetID != "food" || food.Spent != 20000 || food.PercentageUsed == nil || *food.PercentageUsed != 80 || food.Exceeded {
		t.Errorf("unexpected food status %+v", food)
	}
	if food.DaysRemaining != 16 {
		t.Errorf("food days remaining = %d, want 16", food.DaysRemaining)
	}

	week := got[1]
	// Monday 13 to Sunday 19: Ocio 3000 and the uncategorized 1000.
	if week.Spent != 4000 || !week.Exceeded {
		t.Errorf("unexpected weekly status %+v", week)
	}
}

func TestDashboardService_GoalsLatchCompletion(t *testing.T) {
	svc, store := newTestDashboard(t)
	ctx := context.Background()
	mustAddGoal(t, store.Store, core.Goal{
		ID: "save", Name: "Ahorro", GoalType: core.SavingsGoal,
		TargetAmount: core.Money{Cents: 100000}, PeriodType: core.Monthly, IsGlobal: true,
	})
	mustAddGoal(t, store.Store, core.Goal{
		ID: "house", Name: "Casa", GoalType: core.SpendingReduction,
		TargetAmount: core.Money{Cents: 30000}, PeriodType: core.Monthly, CategoryIDs: []string{"Casa"},
	})

	got, err := svc.Goals(ctx, refTime)
	if err != nil {
		t.Fatalf("Goals() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(got))
	}
	if got[0].CurrentAmount != 126000 || !got[0].Reached || !got[0].Completed {
		t.Errorf("unexpected savings status %+v", got[0])
	}
	if got[1].CurrentAmount != -20000 || got[1].OnTrack || got[1].Completed {
		t.Errorf("unexpected reduction status %+v", got[1])
	}

	goals, _ := store.ListGoals(ctx)
	if !goals[0].IsCompleted || goals[1].IsCompleted {
		t.Errorf("only the reached goal should be persisted as completed: %+v", goals)
	}

	// A later month with no income keeps the latch.
	got, err = svc.Goals(ctx, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Goals() error = %v", err)
	}
	if got[0].Reached || !got[0].Completed {
		t.Errorf("completion must stay latched, got %+v", got[0])
	}
}

func TestDashboardService_CacheAndInvalidate(t *testing.T) {
	svc, store := newTestDashboard(t)
	ctx := context.Background()

	for range 3 {
		if _, err := svc.Balance(ctx, analytics.Month, refTime); err != nil {
			t.Fatal(err)
		}
	}
	if store.Reads() != 1 {
		t.Fatalf("expected one read for the cached window, got %d", store.Reads())
	}

	if _, err := store.AppendTransaction(ctx, core.Transaction{
		Date: core.NewDate(2025, 10, 20), Type: core.Expense, Description: "late",
		Category: "Ocio", Amount: core.Money{Cents: 500},
	}); err != nil {
		t.Fatal(err)
	}
	svc.Invalidate()

	got, err := svc.Balance(ctx, analytics.Month, refTime)
	if err != nil {
		t.Fatal(err)
	}
	if store.Reads() != 2 {
		t.Errorf("expected a fresh read after Invalidate, got %d", store.Reads())
	}
	if _, expenses := got.Totals(); expenses != 74500 {
		t.Errorf("expenses = %d, want 74500", expenses)
	}
}

func TestDashboardService_OverviewAndReport(t *testing.T) {
	svc, store := newTestDashboard(t)
	svc.now = func() time.Time { return refTime }
	mustAddBudget(t, store.Store, core.Budget{
		ID: "food", Name: "Comida", Amount: core.Money{Cents: 25000},
		PeriodType: core.Monthly, CategoryIDs: []string{"Comida"},
	})
	mustAddGoal(t, store.Store, core.Goal{
		ID: "income", Name: "Ingresos", GoalType: core.IncomeGoal,
		TargetAmount: core.Money{Cents: 400000}, PeriodType: core.Monthly, IsGlobal: true,
	})

	ov, err := svc.Overview(context.Background(), analytics.Month, refTime)
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if ov.TotalIncome != 200000 || ov.TotalExpenses != 74000 || ov.Net != 126000 {
		t.Errorf("unexpected totals %+v", ov)
	}
	if ov.Interval.Start != time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected interval %+v", ov.Interval)
	}
	if len(ov.Income.Labels) != 1 || ov.Income.Labels[0] != "Salario" {
		t.Errorf("unexpected income ranking %+v", ov.Income)
	}
	if len(ov.Budgets) != 1 || len(ov.Goals) != 1 {
		t.Errorf("expected one budget and one goal, got %d/%d", len(ov.Budgets), len(ov.Goals))
	}

	data, err := svc.Report(context.Background(), analytics.Month, refTime)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if data.Title != "Octubre 2025" {
		t.Errorf("title = %q", data.Title)
	}
	if data.Filename("xlsx") != "bilancio-month-2025-10-01.xlsx" {
		t.Errorf("filename = %q", data.Filename("xlsx"))
	}
	if _, _, net := data.Totals(); net != 126000 {
		t.Errorf("net = %d", net)
	}
}

func TestDashboardService_Taxonomy(t *testing.T) {
	svc, _ := newTestDashboard(t)
	got, err := svc.Taxonomy(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Categories) != 4 || len(got.Accounts) != 1 || got.Accounts[0].ID != "banco" {
		t.Errorf("unexpected taxonomy %+v", got)
	}
}

// mapCache is an unbounded cache.Cache that records what the service does.
type mapCache struct {
	items   map[string][]core.Transaction
	sets    int
	cleared int
}

func (m *mapCache) Get(key string) ([]core.Transaction, bool) {
	v, ok := m.items[key]
	return v, ok
}
func (m *mapCache) Set(key string, v []core.Transaction) { m.sets++; m.items[key] = v }
func (m *mapCache) Delete(key string)                    { delete(m.items, key) }
func (m *mapCache) Clear()                               { m.cleared++; clear(m.items) }
func (m *mapCache) Size() int                            { return len(m.items) }
func (m *mapCache) CleanExpired() int                    { return 0 }

func TestDashboardService_UsesInjectedCache(t *testing.T) {
	svc, store := newTestDashboard(t)
	mc := &mapCache{items: map[string][]core.Transaction{}}
	svc.txs = mc
	ctx := context.Background()

	for range 2 {
		if _, err := svc.Balance(ctx, analytics.Month, refTime); err != nil {
			t.Fatal(err)
		}
	}
	if mc.sets != 1 || mc.Size() != 1 || store.Reads() != 1 {
		t.Fatalf("sets=%d size=%d reads=%d, want one cached window", mc.sets, mc.Size(), store.Reads())
	}

	svc.Invalidate()
	if mc.cleared != 1 || mc.Size() != 0 {
		t.Errorf("Invalidate should clear the cache, cleared=%d size=%d", mc.cleared, mc.Size())
	}
	if svc.Cache() != mc {
		t.Error("Cache() should expose the injected cache for cleanup")
	}
}
