package analytics

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

type GoalStatus struct {
	GoalID        string        `json:"goal_id"`
	Name          string        `json:"name"`
	GoalType      core.GoalType `json:"goal_type"`
	Currency      string        `json:"currency"`
	Period        Interval      `json:"period"`
	Target        int64         `json:"target"`
	CurrentAmount int64         `json:"current_amount"`
	// PercentageAchieved may be negative. It is nil when the target is zero.
	PercentageAchieved *float64 `json:"percentage_achieved"`
	DaysRemaining      int      `json:"days_remaining"`
	DaysElapsed        int      `json:"days_elapsed"`
	PeriodDays         int      `json:"period_days"`
	ElapsedFraction    float64  `json:"elapsed_fraction"`
	OnTrack            bool     `json:"on_track"`
	Reached            bool     `json:"reached"`
	// Completed is the stored flag latched with Reached.
	Completed bool `json:"completed"`
}

// EvaluateGoal measures progress towards g in the period containing now.
func EvaluateGoal(g core.Goal, txs []core.Transaction, now time.Time, loc Locale) (GoalStatus, error) {
	period, err := PeriodInterval(g.PeriodType, now, g.StartDate, g.EndDate, loc)
	if err != nil {
		return GoalStatus{}, fmt.Errorf("goal %s: %w", g.ID, err)
	}
	return EvaluateGoalIn(g, txs, period, now), nil
}

// EvaluateGoalIn is EvaluateGoal with the period already resolved.
func EvaluateGoalIn(g core.Goal, txs []core.Transaction, period Interval, now time.Time) GoalStatus {
	scope := g.Scope()
	var income, expense int64
	for _, tx := range txs {
		if !countable(tx) || !period.Contains(tx.Date.Time) || !scope.Matches(tx) {
			continue
		}
		switch tx.Type {
		case core.Income:
			income += tx.Amount.Cents
		case core.Expense:
			expense += tx.Amount.Cents
		}
	}

	target := g.TargetAmount.Cents
	var current int64
	switch g.GoalType {
	case core.IncomeGoal:
		current = income
	case core.SavingsGoal:
		current = income - expense
	case core.SpendingReduction:
		current = target - expense
	}

	p := pacingOf(period, now)
	s := GoalStatus{
		GoalID:          g.ID,
		Name:            g.Name,
		GoalType:        g.GoalType,
		Currency:        g.Currency,
		Period:          period,
		Target:          target,
		CurrentAmount:   current,
		DaysRemaining:   p.remaining,
		DaysElapsed:     p.elapsed,
		PeriodDays:      p.total,
		ElapsedFraction: float64(p.elapsed) / float64(p.total),
	}
	if target > 0 {
		pct := percentOf(current, target)
		s.PercentageAchieved = &pct
		s.Reached = pct >= 100
		// current/target >= elapsed/total, compared without division
		s.OnTrack = current*int64(p.total) >= target*int64(p.elapsed)
	}
	s.Completed = LatchCompletion(g.IsCompleted, s)
	return s
}

// LatchCompletion returns the completion flag to store after an evaluation.
// Once true it never goes back to false.
func LatchCompletion(previous bool, s GoalStatus) bool {
	return previous || s.Reached
}

// ApplyCompletion latches g.IsCompleted and reports whether it changed.
func ApplyCompletion(g core.Goal, s GoalStatus) (core.Goal, bool) {
	latched := LatchCompletion(g.IsCompleted, s)
	changed := latched != g.IsCompleted
	g.IsCompleted = latched
	return g, changed
}
