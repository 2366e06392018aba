package analytics

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

type BudgetStatus struct {
	BudgetID  string   `json:"budget_id"`
	Name      string   `json:"name"`
	Currency  string   `json:"currency"`
	Period    Interval `json:"period"`
	Amount    int64    `json:"amount"`
	Spent     int64    `json:"spent"`
	Remaining int64    `json:"remaining"`
	// PercentageUsed is nil when the budget amount is zero.
	PercentageUsed *float64 `json:"percentage_used"`
	Exceeded       bool     `json:"exceeded"`
	DaysRemaining  int      `json:"days_remaining"`
	DaysElapsed    int      `json:"days_elapsed"`
	PeriodDays     int      `json:"period_days"`
	DailySpent     float64  `json:"daily_spent"`
	// DailyAvailable is nil on the last day of the period and after it.
	DailyAvailable *float64 `json:"daily_available"`
	Active         bool     `json:"active"`
}

// EvaluateBudget computes spending for the budget period containing now.
func EvaluateBudget(b core.Budget, txs []core.Transaction, now time.Time, loc Locale) (BudgetStatus, error) {
	period, err := PeriodInterval(b.PeriodType, now, b.StartDate, b.EndDate, loc)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("budget %s: %w", b.ID, err)
	}
	return EvaluateBudgetIn(b, txs, period, now), nil
}

// EvaluateBudgetIn is EvaluateBudget with the period already resolved.
func EvaluateBudgetIn(b core.Budget, txs []core.Transaction, period Interval, now time.Time) BudgetStatus {
	scope := b.Scope()
	var spent int64
	for _, tx := range txs {
		if tx.Type == core.Expense && countable(tx) && period.Contains(tx.Date.Time) && scope.Matches(tx) {
			spent += tx.Amount.Cents
		}
	}

	p := pacingOf(period, now)
	s := BudgetStatus{
		BudgetID:      b.ID,
		Name:          b.Name,
		Currency:      b.Currency,
		Period:        period,
		Amount:        b.Amount.Cents,
		Spent:         spent,
		Remaining:     b.Amount.Cents - spent,
		DaysRemaining: p.remaining,
		DaysElapsed:   p.elapsed,
		PeriodDays:    p.total,
		DailySpent:    float64(spent) / float64(p.elapsed),
		Active:        !b.IsPaused,
	}
	if b.Amount.Cents != 0 {
		pct := percentOf(spent, b.Amount.Cents)
		s.PercentageUsed = &pct
		s.Exceeded = pct >= 100
	} else {
		s.Exceeded = spent > 0
	}
	if p.remaining > 0 {
		daily := float64(s.Remaining) / float64(p.remaining)
		s.DailyAvailable = &daily
	}
	return s
}

// ActiveBudgets drops paused budgets.
func ActiveBudgets(budgets []core.Budget) []core.Budget {
	out := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		if !b.IsPaused {
			out = append(out, b)
		}
	}
	return out
}

type pacing struct {
	total     int
	remaining int
	elapsed   int
}

// pacingOf counts whole days from today to the last day of the period.
// Before the period starts every day remains; after it ends none do.
func pacingOf(period Interval, now time.Time) pacing {
	total := period.Days()
	today := core.DateOf(now).Time
	remaining := daysBetween(today, period.Last())
	if remaining < 0 {
		remaining = 0
	}
	if remaining > total {
		remaining = total
	}
	return pacing{
		total:     total,
		remaining: remaining,
		elapsed:   max(1, total-remaining),
	}
}

func percentOf(part, whole int64) float64 {
	return float64(part) * 100 / float64(whole)
}
