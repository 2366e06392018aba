package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Weekly  PeriodType = "weekly"
	Monthly PeriodType = "monthly"
	Yearly  PeriodType = "yearly"
	Custom  PeriodType = "custom"
)

const (
	IncomeGoal        GoalType = "income"
	SavingsGoal       GoalType = "savings"
	SpendingReduction GoalType = "spending_reduction"
)

type (
	PeriodType string
	GoalType   string

	// Scope restricts a budget or goal to a subset of transactions.
	Scope struct {
		Global      bool     `json:"global"`
		CategoryIDs []string `json:"category_ids,omitempty"`
		AccountIDs  []string `json:"account_ids,omitempty"`
	}

	Budget struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		Amount      Money      `json:"amount"`
		Currency    string     `json:"currency"`
		PeriodType  PeriodType `json:"period_type"`
		StartDate   Date       `json:"start_date"`
		EndDate     Date       `json:"end_date"`
		IsGlobal    bool       `json:"is_global"`
		CategoryIDs []string   `json:"category_ids,omitempty"`
		AccountIDs  []string   `json:"account_ids,omitempty"`
		IsPaused    bool       `json:"is_paused"`
	}

	Goal struct {
		ID           string     `json:"id"`
		Name         string     `json:"name"`
		GoalType     GoalType   `json:"goal_type"`
		TargetAmount Money      `json:"target_amount"`
		Currency     string     `json:"currency"`
		PeriodType   PeriodType `json:"period_type"`
		StartDate    Date       `json:"start_date"`
		EndDate      Date       `json:"end_date"`
		IsGlobal     bool       `json:"is_global"`
		CategoryIDs  []string   `json:"category_ids,omitempty"`
		AccountIDs   []string   `json:"account_ids,omitempty"`
		IsCompleted  bool       `json:"is_completed"`
	}
)

func ParsePeriodType(s string) (PeriodType, error) {
	switch p := PeriodType(strings.ToLower(strings.TrimSpace(s))); p {
	case Weekly, Monthly, Yearly, Custom:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

func ParseGoalType(s string) (GoalType, error) {
	switch g := GoalType(strings.ToLower(strings.TrimSpace(s))); g {
	case IncomeGoal, SavingsGoal, SpendingReduction:
		return g, nil
	}
	return "", fmt.Errorf("invalid goal type: %q", s)
}

// Matches reports whether t falls inside the scope. A transaction matches a
// restricted scope when its category or its account is listed.
func (s Scope) Matches(t Transaction) bool {
	if s.Global {
		return true
	}
	return containsFold(s.CategoryIDs, t.Category) || containsFold(s.AccountIDs, t.Account)
}

func (s Scope) Validate() error {
	if s.Global || len(s.CategoryIDs) > 0 || len(s.AccountIDs) > 0 {
		return nil
	}
	return ErrInvalidScope
}

func (b Budget) Scope() Scope {
	return Scope{Global: b.IsGlobal, CategoryIDs: b.CategoryIDs, AccountIDs: b.AccountIDs}
}

func (g Goal) Scope() Scope {
	return Scope{Global: g.IsGlobal, CategoryIDs: g.CategoryIDs, AccountIDs: g.AccountIDs}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := validatePeriod(b.PeriodType, b.StartDate, b.EndDate); err != nil {
		return err
	}
	return b.Scope().Validate()
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if _, err := ParseGoalType(string(g.GoalType)); err != nil {
		return err
	}
	if g.TargetAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := validatePeriod(g.PeriodType, g.StartDate, g.EndDate); err != nil {
		return err
	}
	return g.Scope().Validate()
}

func validatePeriod(p PeriodType, start, end Date) error {
	if _, err := ParsePeriodType(string(p)); err != nil {
		return err
	}
	if p != Custom {
		return nil
	}
	if start.IsEmpty() || end.IsEmpty() {
		return errors.New("custom period requires start and end date")
	}
	if end.Before(start.Time) {
		return errors.New("end date must not be before start date")
	}
	return nil
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}
