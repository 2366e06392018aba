package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

// tenDayGoal runs from Oct 1 to Oct 10 2025, so on Oct 5 exactly half the
// period has elapsed.
func tenDayGoal(typ core.GoalType, target int64) core.Goal {
	return core.Goal{
		ID:           "g1",
		Name:         "Goal",
		GoalType:     typ,
		TargetAmount: core.Money{Cents: target},
		Currency:     "EUR",
		PeriodType:   core.Custom,
		StartDate:    core.NewDate(2025, 10, 1),
		EndDate:      core.NewDate(2025, 10, 10),
		IsGlobal:     true,
	}
}

func TestEvaluateGoalIncome(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2025, 10, 2), core.Income, "Work", 300, ""),
		tx(core.NewDate(2025, 10, 3), core.Income, "Gift", 200, ""),
		tx(core.NewDate(2025, 10, 3), core.Expense, "Food", 9999, ""),
		tx(core.NewDate(2025, 10, 11), core.Income, "Work", 9999, ""),
	}
	s, err := EvaluateGoal(tenDayGoal(core.IncomeGoal, 1000), txs, date(2025, 10, 5), Spanish)
	require.NoError(t, err)

	assert.Equal(t, int64(500), s.CurrentAmount)
	require.NotNil(t, s.PercentageAchieved)
	assert.Equal(t, 50.0, *s.PercentageAchieved)
	assert.Equal(t, 10, s.PeriodDays)
	assert.Equal(t, 5, s.DaysRemaining)
	assert.Equal(t, 5, s.DaysElapsed)
	assert.Equal(t, 0.5, s.ElapsedFraction)
	assert.True(t, s.OnTrack, "equal fractions are on track")
	assert.False(t, s.Reached)
}

func TestEvaluateGoalBehindSchedule(t *testing.T) {
	txs := []core.Transaction{tx(core.NewDate(2025, 10, 2), core.Income, "Work", 499, "")}
	s, err := EvaluateGoal(tenDayGoal(core.IncomeGoal, 1000), txs, date(2025, 10, 5), Spanish)
	require.NoError(t, err)
	assert.False(t, s.OnTrack)
}

func TestEvaluateGoalSavingsNegative(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2025, 10, 2), core.Income, "Work", 1500, ""),
		tx(core.NewDate(2025, 10, 3), core.Expense, "Food", 2000, ""),
		tx(core.NewDate(2025, 10, 3), core.Transfer, "", 700, ""),
	}
	s, err := EvaluateGoal(tenDayGoal(core.SavingsGoal, 1000), txs, date(2025, 10, 5), Spanish)
	require.NoError(t, err)

	assert.Equal(t, int64(-500), s.CurrentAmount)
	require.NotNil(t, s.PercentageAchieved)
	assert.Equal(t, -50.0, *s.PercentageAchieved)
	assert.False(t, s.OnTrack)
}

func TestEvaluateGoalSpendingReduction(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2025, 10, 2), core.Expense, "Food", 300, ""),
		tx(core.NewDate(2025, 10, 2), core.Income, "Work", 5000, ""),
	}
	s, err := EvaluateGoal(tenDayGoal(core.SpendingReduction, 1000), txs, date(2025, 10, 5), Spanish)
	require.NoError(t, err)

	assert.Equal(t, int64(700), s.CurrentAmount)
	assert.Equal(t, 70.0, *s.PercentageAchieved)
	assert.True(t, s.OnTrack)
}

func TestEvaluateGoalScope(t *testing.T) {
	g := tenDayGoal(core.IncomeGoal, 1000)
	g.IsGlobal = false
	g.CategoryIDs = []string{"work"}

	txs := []core.Transaction{
		tx(core.NewDate(2025, 10, 2), core.Income, "Work", 300, ""),
		tx(core.NewDate(2025, 10, 2), core.Income, "Gift", 200, ""),
	}
	s, err := EvaluateGoal(g, txs, date(2025, 10, 5), Spanish)
	require.NoError(t, err)
	assert.Equal(t, int64(300), s.CurrentAmount)
}

func TestEvaluateGoalZeroTarget(t *testing.T) {
	txs := []core.Transaction{tx(core.NewDate(2025, 10, 2), core.Income, "Work", 300, "")}
	s, err := EvaluateGoal(tenDayGoal(core.IncomeGoal, 0), txs, date(2025, 10, 5), Spanish)
	require.NoError(t, err)

	assert.Nil(t, s.PercentageAchieved)
	assert.False(t, s.OnTrack)
	assert.False(t, s.Reached)
}

func TestGoalCompletionLatch(t *testing.T) {
	g := tenDayGoal(core.IncomeGoal, 1000)
	now := date(2025, 10, 8)

	first := []core.Transaction{tx(core.NewDate(2025, 10, 2), core.Income, "Work", 1050, "")}
	s, err := EvaluateGoal(g, first, now, Spanish)
	require.NoError(t, err)
	assert.Equal(t, 105.0, *s.PercentageAchieved)
	assert.True(t, s.Reached)

	g, changed := ApplyCompletion(g, s)
	assert.True(t, changed)
	assert.True(t, g.IsCompleted)

	// a later correction drops progress below target
	second := []core.Transaction{tx(core.NewDate(2025, 10, 2), core.Income, "Work", 900, "")}
	s, err = EvaluateGoal(g, second, now, Spanish)
	require.NoError(t, err)
	assert.Equal(t, 90.0, *s.PercentageAchieved)
	assert.False(t, s.Reached)
	assert.True(t, s.Completed)

	g, changed = ApplyCompletion(g, s)
	assert.False(t, changed)
	assert.True(t, g.IsCompleted)
}

func TestLatchCompletion(t *testing.T) {
	reached := GoalStatus{Reached: true}
	pending := GoalStatus{}

	assert.False(t, LatchCompletion(false, pending))
	assert.True(t, LatchCompletion(false, reached))
	assert.True(t, LatchCompletion(true, pending))
	assert.True(t, LatchCompletion(true, reached))
}

func TestEvaluateGoalMonthly(t *testing.T) {
	g := tenDayGoal(core.SavingsGoal, 31000)
	g.PeriodType = core.Monthly
	g.StartDate, g.EndDate = core.Date{}, core.Date{}

	txs := []core.Transaction{tx(core.NewDate(2025, 10, 1), core.Income, "Work", 10000, "")}
	s, err := EvaluateGoal(g, txs, date(2025, 10, 10), Spanish)
	require.NoError(t, err)

	// 10 of 31 days elapsed needs 10000 of 31000
	assert.Equal(t, 10, s.DaysElapsed)
	assert.True(t, s.OnTrack)
}

func TestEvaluateGoalInvalidPeriod(t *testing.T) {
	g := tenDayGoal(core.IncomeGoal, 1000)
	g.StartDate = core.Date{}
	_, err := EvaluateGoal(g, nil, date(2025, 10, 5), Spanish)
	assert.Error(t, err)
}
