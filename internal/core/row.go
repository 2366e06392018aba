package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column layout of a transaction row, shared by the spreadsheet and any other
// row-shaped source.
const (
	ColDate = iota
	ColType
	ColDescription
	ColCategory
	ColAmount
	ColAccount
	RowWidth
)

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

// Spreadsheet serial day numbers count from 1899-12-30.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxSerialDay = 2958465 // 9999-12-31

// ParseDate parses the date formats found in transaction sources.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 1 && f <= maxSerialDay {
		return DateOf(serialEpoch.AddDate(0, 0, int(f))), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseTransactionType accepts the English and Spanish spellings used in sheets.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "ingreso", "ingresos":
		return Income, nil
	case "expense", "gasto", "gastos":
		return Expense, nil
	case "transfer", "transferencia":
		return Transfer, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// ParseTransactionRow converts a [date, type, description, category, amount,
// account] row. The account column is optional.
func ParseTransactionRow(row []string) (Transaction, error) {
	if len(row) < ColAccount {
		return Transaction{}, fmt.Errorf("short row: %d columns", len(row))
	}
	date, err := ParseDate(row[ColDate])
	if err != nil {
		return Transaction{}, err
	}
	typ, err := ParseTransactionType(row[ColType])
	if err != nil {
		return Transaction{}, err
	}
	amount, err := ParseAmount(row[ColAmount])
	if err != nil {
		return Transaction{}, err
	}
	t := Transaction{
		Date:        date,
		Type:        typ,
		Description: strings.TrimSpace(row[ColDescription]),
		Category:    strings.TrimSpace(row[ColCategory]),
		Amount:      amount,
	}
	if len(row) > ColAccount {
		t.Account = strings.TrimSpace(row[ColAccount])
	}
	return t, nil
}

// ParseTransactionRows parses every row, skipping malformed ones. It returns
// the parsed transactions and how many rows were skipped.
func ParseTransactionRows(rows [][]string) ([]Transaction, int) {
	out := make([]Transaction, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		t, err := ParseTransactionRow(row)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, t)
	}
	return out, skipped
}

// TransactionRow is the inverse of ParseTransactionRow.
func TransactionRow(t Transaction) []string {
	row := make([]string, RowWidth)
	row[ColDate] = t.Date.String()
	row[ColType] = string(t.Type)
	row[ColDescription] = t.Description
	row[ColCategory] = t.Category
	row[ColAmount] = t.Amount.String()
	row[ColAccount] = t.Account
	return row
}
