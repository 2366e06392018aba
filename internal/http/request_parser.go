// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data:
// dashboard query parameters and the transaction body.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
)

// maxBodyBytes bounds POST bodies; a transaction is a handful of short fields.
const maxBodyBytes = 64 << 10

// errBadParam marks client errors found while parsing parameters.
var errBadParam = errors.New("invalid parameter")

// DashboardParams holds the parsed query of a chart endpoint.
type DashboardParams struct {
	Period     analytics.Period
	Ref        time.Time
	Type       core.TransactionType
	TopN       int
	Categories []string
}

// ParseDashboardParams reads period, date, type, top and categories. Missing
// values default to the current month, today, expenses and defaultTopN.
// Today is the calendar day of now in now's location; Ref is always that
// day's midnight in UTC, the same form an explicit date takes.
func ParseDashboardParams(query url.Values, now time.Time, defaultTopN int) (DashboardParams, error) {
	p := DashboardParams{
		Period: analytics.Month,
		Ref:    core.DateOf(now).Time,
		Type:   core.Expense,
		TopN:   defaultTopN,
	}

	if v := strings.TrimSpace(query.Get("period")); v != "" {
		period, err := analytics.ParsePeriod(v)
		if err != nil {
			return p, fmt.Errorf("%w: period must be week, month or year", errBadParam)
		}
		p.Period = period
	}
	if v := strings.TrimSpace(query.Get("date")); v != "" {
		ref, err := parseDate(v)
		if err != nil {
			return p, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadParam)
		}
		p.Ref = ref.Time
	}
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		typ, err := core.ParseTransactionType(v)
		if err != nil || typ == core.Transfer {
			return p, fmt.Errorf("%w: type must be income or expense", errBadParam)
		}
		p.Type = typ
	}
	if v := strings.TrimSpace(query.Get("top")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, fmt.Errorf("%w: top must be a positive integer", errBadParam)
		}
		p.TopN = n
	}
	p.Categories = parseList(query["categories"])
	return p, nil
}

// parseList accepts both repeated parameters and comma-separated values.
func parseList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = sanitizeInput(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// TransactionInput is the body of POST /api/transactions.
type TransactionInput struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Account     string `json:"account"`
}

// Transaction converts the input. A missing date means today.
func (in TransactionInput) Transaction(now time.Time) (core.Transaction, error) {
	date := core.DateOf(now)
	if v := strings.TrimSpace(in.Date); v != "" {
		d, err := parseDate(v)
		if err != nil {
			return core.Transaction{}, core.ErrInvalidDate
		}
		date = d
	}
	typ, err := core.ParseTransactionType(in.Type)
	if err != nil {
		return core.Transaction{}, core.ErrInvalidType
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	return core.Transaction{
		Date:        date,
		Type:        typ,
		Description: sanitizeInput(in.Description),
		Category:    sanitizeInput(in.Category),
		Amount:      amount,
		Account:     sanitizeInput(in.Account),
	}, nil
}

// RequestBodyParser reads JSON or form-encoded bodies into a TransactionInput.
type RequestBodyParser struct {
	body        []byte
	contentType string
	err         error
}

// NewRequestBodyParser reads the body once, bounded by maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errors.New("request body too large")
	}
	return p
}

// IsJSON reports whether the body should be decoded as JSON.
func (p *RequestBodyParser) IsJSON() bool {
	if strings.HasPrefix(p.contentType, "application/json") {
		return true
	}
	trimmed := strings.TrimSpace(string(p.body))
	return strings.HasPrefix(trimmed, "{")
}

// Transaction decodes the body.
func (p *RequestBodyParser) Transaction() (TransactionInput, error) {
	var in TransactionInput
	if p.err != nil {
		return in, p.err
	}
	if p.IsJSON() {
		dec := json.NewDecoder(strings.NewReader(string(p.body)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return in, fmt.Errorf("decode json: %w", err)
		}
		return in, nil
	}

	form, err := url.ParseQuery(string(p.body))
	if err != nil {
		return in, fmt.Errorf("decode form: %w", err)
	}
	return TransactionInput{
		Date:        form.Get("date"),
		Type:        form.Get("type"),
		Description: form.Get("description"),
		Category:    form.Get("category"),
		Amount:      form.Get("amount"),
		Account:     form.Get("account"),
	}, nil
}
