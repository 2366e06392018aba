package services

import (
	"context"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/analytics"
	"bilancio/internal/core"
	"bilancio/internal/sheets/memory"
)

func seedReminderPlans(t *testing.T, s *memory.Store) {
	t.Helper()
	mustAddBudget(t, s, core.Budget{
		ID: "food", Name: "Comida", Amount: core.Money{Cents: 25000},
		PeriodType: core.Monthly, CategoryIDs: []string{"Comida"},
	})
	mustAddBudget(t, s, core.Budget{
		ID: "week", Name: "Semana", Amount: core.Money{Cents: 3000},
		PeriodType: core.Weekly, IsGlobal: true,
	})
	mustAddBudget(t, s, core.Budget{
		ID: "fun", Name: "Ocio", Amount: core.Money{Cents: 100000},
		PeriodType: core.Monthly, CategoryIDs: []string{"Ocio"},
	})
	mustAddGoal(t, s, core.Goal{
		ID: "save", Name: "Ahorro", GoalType: core.SavingsGoal,
		TargetAmount: core.Money{Cents: 100000}, PeriodType: core.Monthly, IsGlobal: true,
	})
	mustAddGoal(t, s, core.Goal{
		ID: "house", Name: "Casa", GoalType: core.SpendingReduction,
		TargetAmount: core.Money{Cents: 30000}, PeriodType: core.Monthly, CategoryIDs: []string{"Casa"},
	})
}

func newTestReminderProcessor(t *testing.T, store ReminderSource, pub ReminderPublisher) *ReminderProcessor {
	t.Helper()
	p, err := NewReminderProcessor(store, pub, ReminderConfig{
		Locale:    analytics.Spanish,
		Cadence:   CadenceDaily,
		Threshold: 80,
	}, nil)
	if err != nil {
		t.Fatalf("NewReminderProcessor() error = %v", err)
	}
	return p
}

func TestReminderProcessor_ProcessReminders(t *testing.T) {
	ctx := context.Background()
	store := newFixtureStore(t)
	seedReminderPlans(t, store)
	pub := &fakeReminderPublisher{}
	p := newTestReminderProcessor(t, store, pub)

	sent, err := p.ProcessReminders(ctx, refTime)
	if err != nil {
		t.Fatalf("ProcessReminders() error = %v", err)
	}
	if sent != 4 {
		t.Fatalf("expected 4 reminders, got %d: %+v", sent, pub.msgs)
	}
	kinds := pub.kinds()
	want := map[amqp.ReminderKind]int{
		amqp.BudgetWarning:  1,
		amqp.BudgetExceeded: 1,
		amqp.GoalCompleted:  1,
		amqp.GoalBehind:     1,
	}
	for k, n := range want {
		if kinds[k] != n {
			t.Errorf("kind %s: got %d, want %d", k, kinds[k], n)
		}
	}

	warning := pub.msgs[0]
	if warning.Key != "budget:food:budget_warning:2025-10-01" || warning.PeriodEnd != "2025-10-31" {
		t.Errorf("unexpected warning %+v", warning)
	}
	if warning.Percentage == nil || *warning.Percentage != 80 || warning.CurrentCents != 20000 {
		t.Errorf("unexpected warning amounts %+v", warning)
	}
	if !warning.Timestamp.Equal(refTime) {
		t.Errorf("timestamp = %v", warning.Timestamp)
	}

	goals, _ := store.ListGoals(ctx)
	if !goals[0].IsCompleted {
		t.Error("reached goal should be latched in the store")
	}

	t.Run("same day sends nothing", func(t *testing.T) {
		sent, err := p.ProcessReminders(ctx, refTime.Add(2*time.Hour))
		if err != nil || sent != 0 {
			t.Fatalf("expected no reminders, got %d err=%v", sent, err)
		}
	})

	t.Run("next day repeats all but the completion", func(t *testing.T) {
		sent, err := p.ProcessReminders(ctx, refTime.AddDate(0, 0, 1))
		if err != nil {
			t.Fatal(err)
		}
		if sent != 3 {
			t.Fatalf("expected 3 reminders, got %d", sent)
		}
		if pub.kinds()[amqp.GoalCompleted] != 1 {
			t.Error("goal completion must be announced once")
		}
	})
}

func TestReminderProcessor_PublishFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	store := newFixtureStore(t)
	seedReminderPlans(t, store)

	failing := &fakeReminderPublisher{err: errBoom}
	sent, err := newTestReminderProcessor(t, store, failing).ProcessReminders(ctx, refTime)
	if err != nil || sent != 0 {
		t.Fatalf("expected nothing sent, got %d err=%v", sent, err)
	}
	if _, ok, _ := store.LastReminder(ctx, "budget:food:budget_warning:2025-10-01"); ok {
		t.Fatal("failed deliveries must not be recorded")
	}

	pub := &fakeReminderPublisher{}
	sent, err = newTestReminderProcessor(t, store, pub).ProcessReminders(ctx, refTime)
	if err != nil || sent != 4 {
		t.Fatalf("expected the retry to send 4, got %d err=%v", sent, err)
	}
}

func TestNewReminderProcessor(t *testing.T) {
	store := memory.New(nil, nil)
	if _, err := NewReminderProcessor(store, &fakeReminderPublisher{}, ReminderConfig{Cadence: "hourly"}, nil); err == nil {
		t.Error("expected error for unknown cadence")
	}
	if _, err := NewReminderProcessor(store, nil, ReminderConfig{Cadence: CadenceDaily}, nil); err == nil {
		t.Error("expected error without publisher")
	}
}

func TestBudgetReminder(t *testing.T) {
	pct := func(v float64) *float64 { return &v }
	period := analytics.Interval{
		Start: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name   string
		status analytics.BudgetStatus
		want   amqp.ReminderKind
		ok     bool
	}{
		{"below threshold", analytics.BudgetStatus{PercentageUsed: pct(79.9)}, "", false},
		{"at threshold", analytics.BudgetStatus{PercentageUsed: pct(80)}, amqp.BudgetWarning, true},
		{"exceeded", analytics.BudgetStatus{PercentageUsed: pct(100), Exceeded: true}, amqp.BudgetExceeded, true},
		{"zero amount with spending", analytics.BudgetStatus{Exceeded: true}, amqp.BudgetExceeded, true},
		{"zero amount without spending", analytics.BudgetStatus{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.status.BudgetID = "b1"
			tt.status.Period = period
			msg, ok := budgetReminder(tt.status, 80)
			if ok != tt.ok || msg.Kind != tt.want {
				t.Errorf("budgetReminder() = %q/%v, want %q/%v", msg.Kind, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestGoalReminder(t *testing.T) {
	tests := []struct {
		name   string
		status analytics.GoalStatus
		want   amqp.ReminderKind
		ok     bool
	}{
		{"on track", analytics.GoalStatus{Target: 100, OnTrack: true}, "", false},
		{"behind", analytics.GoalStatus{Target: 100}, amqp.GoalBehind, true},
		{"no target is never behind", analytics.GoalStatus{}, "", false},
		{"completed wins", analytics.GoalStatus{Target: 100, Completed: true}, amqp.GoalCompleted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.status.GoalID = "g1"
			msg, ok := goalReminder(tt.status)
			if ok != tt.ok || msg.Kind != tt.want {
				t.Errorf("goalReminder() = %q/%v, want %q/%v", msg.Kind, ok, tt.want, tt.ok)
			}
		})
	}
	if msg, _ := goalReminder(analytics.GoalStatus{GoalID: "g1", Completed: true}); msg.Key != "goal:g1:goal_completed" {
		t.Errorf("completion key = %q", msg.Key)
	}
}
