package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
)

// Budgets sheet columns.
const (
	budgetID = iota
	budgetName
	budgetAmount
	budgetCurrency
	budgetPeriod
	budgetStart
	budgetEnd
	budgetGlobal
	budgetCategories
	budgetAccounts
	budgetPaused
	budgetWidth
)

// Goals sheet columns.
const (
	goalID = iota
	goalName
	goalType
	goalTarget
	goalCurrency
	goalPeriod
	goalStart
	goalEnd
	goalGlobal
	goalCategories
	goalAccounts
	goalCompleted
	goalWidth
)

// goalCompletedCol is the A1 column letter of goalCompleted.
const goalCompletedCol = "L"

func parseBudgetRow(cols []string) (core.Budget, error) {
	cols = pad(cols, budgetWidth)
	amount, err := parseOptionalAmount(cols[budgetAmount])
	if err != nil {
		return core.Budget{}, fmt.Errorf("amount: %w", err)
	}
	start, end, err := parseDates(cols[budgetStart], cols[budgetEnd])
	if err != nil {
		return core.Budget{}, err
	}
	b := core.Budget{
		ID:          cols[budgetID],
		Name:        cols[budgetName],
		Amount:      amount,
		Currency:    currencyOr(cols[budgetCurrency]),
		PeriodType:  core.PeriodType(strings.ToLower(cols[budgetPeriod])),
		StartDate:   start,
		EndDate:     end,
		IsGlobal:    parseBool(cols[budgetGlobal]),
		CategoryIDs: splitIDs(cols[budgetCategories]),
		AccountIDs:  splitIDs(cols[budgetAccounts]),
		IsPaused:    parseBool(cols[budgetPaused]),
	}
	if b.ID == "" {
		return core.Budget{}, fmt.Errorf("budget %q: missing id", b.Name)
	}
	return b, b.Validate()
}

func parseGoalRow(cols []string) (core.Goal, error) {
	cols = pad(cols, goalWidth)
	target, err := parseOptionalAmount(cols[goalTarget])
	if err != nil {
		return core.Goal{}, fmt.Errorf("target: %w", err)
	}
	start, end, err := parseDates(cols[goalStart], cols[goalEnd])
	if err != nil {
		return core.Goal{}, err
	}
	g := core.Goal{
		ID:           cols[goalID],
		Name:         cols[goalName],
		GoalType:     core.GoalType(strings.ToLower(cols[goalType])),
		TargetAmount: target,
		Currency:     currencyOr(cols[goalCurrency]),
		PeriodType:   core.PeriodType(strings.ToLower(cols[goalPeriod])),
		StartDate:    start,
		EndDate:      end,
		IsGlobal:     parseBool(cols[goalGlobal]),
		CategoryIDs:  splitIDs(cols[goalCategories]),
		AccountIDs:   splitIDs(cols[goalAccounts]),
		IsCompleted:  parseBool(cols[goalCompleted]),
	}
	if g.ID == "" {
		return core.Goal{}, fmt.Errorf("goal %q: missing id", g.Name)
	}
	return g, g.Validate()
}

// parseTaxonomy reads category names from column A and accounts from
// columns B (name) and C (kind). Columns may have different lengths.
func parseTaxonomy(rows [][]string) ([]string, []core.Account) {
	var cats []string
	var accounts []core.Account
	seenCat := map[string]bool{}
	seenAcc := map[string]bool{}
	for _, row := range rows {
		row = pad(row, 3)
		if c := row[0]; c != "" && !strings.HasPrefix(c, "#") && !seenCat[c] {
			seenCat[c] = true
			cats = append(cats, c)
		}
		name := row[1]
		if name == "" || seenAcc[strings.ToLower(name)] {
			continue
		}
		seenAcc[strings.ToLower(name)] = true
		kind := core.AccountKind(strings.ToLower(row[2]))
		if kind == "" {
			kind = core.Bank
		}
		accounts = append(accounts, core.Account{ID: strings.ToLower(name), Name: name, Kind: kind})
	}
	return cats, accounts
}

func parseOptionalAmount(s string) (core.Money, error) {
	if strings.TrimSpace(s) == "" {
		return core.Money{}, nil
	}
	return core.ParseAmount(s)
}

func parseDates(start, end string) (core.Date, core.Date, error) {
	var s, e core.Date
	var err error
	if start != "" {
		if s, err = core.ParseDate(start); err != nil {
			return s, e, fmt.Errorf("start date: %w", err)
		}
	}
	if end != "" {
		if e, err = core.ParseDate(end); err != nil {
			return s, e, fmt.Errorf("end date: %w", err)
		}
	}
	return s, e, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "x", "si", "sí", "verdadero":
		return true
	}
	return false
}

// splitIDs splits a cell holding "a; b, c" into trimmed ids.
func splitIDs(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func currencyOr(s string) string {
	if s == "" {
		return "EUR"
	}
	return strings.ToUpper(s)
}

func pad(cols []string, n int) []string {
	for len(cols) < n {
		cols = append(cols, "")
	}
	return cols
}

// toStrings flattens a row returned by the Values API. Numbers are written
// without exponents so that large amounts and serial dates survive.
func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case nil:
			out[i] = ""
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(n)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

// transactionValues is the row written for tx. Amounts go out as numbers so
// the sheet's locale never reinterprets the decimal separator.
func transactionValues(tx core.Transaction) []any {
	return []any{
		tx.Date.String(),
		string(tx.Type),
		tx.Description,
		tx.Category,
		tx.Amount.Decimal().InexactFloat64(),
		tx.Account,
	}
}

func formatReminderTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
