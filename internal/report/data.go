// Package report renders a period summary as an Excel workbook or a PDF.
package report

import (
	"errors"
	"time"

	"bilancio/internal/analytics"
)

// ErrNoFont is returned by WritePDF when no TTF font was provided.
var ErrNoFont = errors.New("pdf report needs a TTF font")

// Data is everything a report shows. All amounts are in cents.
type Data struct {
	Title       string
	Period      analytics.Period
	Interval    analytics.Interval
	GeneratedAt time.Time
	Currency    string

	Balance  analytics.Balance
	Expenses analytics.Ranking
	Income   analytics.Ranking
	Budgets  []analytics.BudgetStatus
	Goals    []analytics.GoalStatus
}

// Totals returns income, expenses and their difference over the period.
func (d Data) Totals() (income, expenses, net int64) {
	income, expenses = d.Balance.Totals()
	return income, expenses, income - expenses
}

// Filename is the download name for ext ("xlsx" or "pdf").
func (d Data) Filename(ext string) string {
	return "bilancio-" + string(d.Period) + "-" + d.Interval.Start.Format("2006-01-02") + "." + ext
}

func euros(cents int64) float64 {
	return float64(cents) / 100
}
