package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/log"
	ports "bilancio/internal/sheets"
)

// Options names the spreadsheet and its tabs. Every sheet carries a header
// row, so reads start at row 2.
type Options struct {
	SpreadsheetID     string
	TransactionsSheet string
	BudgetsSheet      string
	GoalsSheet        string
	TaxonomySheet     string
	RemindersSheet    string
}

// OptionsFromConfig maps the GOOGLE_* settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SpreadsheetID:     cfg.GoogleSpreadsheetID,
		TransactionsSheet: cfg.GoogleTransactionsSheet,
		BudgetsSheet:      cfg.GoogleBudgetsSheet,
		GoalsSheet:        cfg.GoogleGoalsSheet,
		TaxonomySheet:     cfg.GoogleTaxonomySheet,
		RemindersSheet:    cfg.GoogleRemindersSheet,
	}
}

type Client struct {
	svc    *gsheet.Service
	opts   Options
	logger *log.Logger
}

var _ ports.Store = (*Client)(nil)

// New wraps an initialized Sheets service.
func New(svc *gsheet.Service, opts Options, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{svc: svc, opts: opts, logger: logger.WithComponent(log.ComponentSheets)}
}

// NewFromConfig authenticates with the configured credentials and returns a
// ready client.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.GoogleSpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := NewService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, OptionsFromConfig(cfg), logger), nil
}

// AppendTransaction appends tx below the last row of the transactions sheet
// and returns the A1 range that was written.
func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:F", c.opts.TransactionsSheet)
	vr := &gsheet.ValueRange{Values: [][]any{transactionValues(tx)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.opts.SpreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.opts.TransactionsSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Transaction appended",
		log.NewFields().
			WithOperation(log.OpAppend).
			WithTransaction(string(tx.Type), tx.Category, tx.Amount.Cents).
			ToSlice()...)
	return ref, nil
}

// ListTransactions reads the whole transactions sheet and keeps rows dated
// in [from, to). Rows that fail to parse are skipped and counted. Each
// transaction's ID is its sheet row, e.g. "Transactions!7".
func (c *Client) ListTransactions(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	rows, err := c.read(ctx, c.opts.TransactionsSheet, "A2:F")
	if err != nil {
		return nil, err
	}

	var out []core.Transaction
	skipped := 0
	for i, row := range rows {
		tx, err := core.ParseTransactionRow(row)
		if err != nil {
			if !isBlank(row) {
				skipped++
			}
			continue
		}
		if tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		// Values start at row 2, below the header.
		tx.ID = fmt.Sprintf("%s!%d", c.opts.TransactionsSheet, i+2)
		out = append(out, tx)
	}
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped malformed transaction rows",
			log.NewFields().WithOperation(log.OpParse).WithRowsSkipped(skipped).ToSlice()...)
	}
	return out, nil
}

// ListTaxonomy reads categories from column A and accounts from columns B:C
// of the taxonomy sheet.
func (c *Client) ListTaxonomy(ctx context.Context) ([]string, []core.Account, error) {
	rows, err := c.read(ctx, c.opts.TaxonomySheet, "A2:C")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read taxonomy: %w", err)
	}
	cats, accounts := parseTaxonomy(rows)
	return cats, accounts, nil
}

func (c *Client) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := c.read(ctx, c.opts.BudgetsSheet, "A2:K")
	if err != nil {
		return nil, err
	}
	var out []core.Budget
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		b, err := parseBudgetRow(row)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping invalid budget row",
				"row", i+2, log.FieldError, err.Error())
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *Client) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := c.read(ctx, c.opts.GoalsSheet, "A2:L")
	if err != nil {
		return nil, err
	}
	var out []core.Goal
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		g, err := parseGoalRow(row)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping invalid goal row",
				"row", i+2, log.FieldError, err.Error())
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// MarkGoalCompleted sets the is_completed cell of goal id. The cell is never
// cleared by this client.
func (c *Client) MarkGoalCompleted(ctx context.Context, id string) error {
	ids, err := c.read(ctx, c.opts.GoalsSheet, "A2:A")
	if err != nil {
		return err
	}
	row := -1
	for i, cols := range ids {
		if len(cols) > 0 && strings.EqualFold(cols[0], id) {
			row = i + 2
			break
		}
	}
	if row < 0 {
		return fmt.Errorf("goal %s: %w", id, ports.ErrNotFound)
	}

	cell := fmt.Sprintf("%s!%s%d", c.opts.GoalsSheet, goalCompletedCol, row)
	vr := &gsheet.ValueRange{Values: [][]any{{true}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.opts.SpreadsheetID, cell, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", cell, err)
	}
	c.logger.InfoContext(ctx, "Goal marked completed", log.NewFields().WithGoal(id).ToSlice()...)
	return nil
}

// LastReminder scans the reminders sheet for the latest entry of key.
func (c *Client) LastReminder(ctx context.Context, key string) (time.Time, bool, error) {
	rows, err := c.read(ctx, c.opts.RemindersSheet, "A2:B")
	if err != nil {
		return time.Time{}, false, err
	}
	var last time.Time
	found := false
	for _, row := range rows {
		if len(row) < 2 || row[0] != key {
			continue
		}
		at, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			continue
		}
		if !found || at.After(last) {
			last, found = at, true
		}
	}
	return last, found, nil
}

func (c *Client) RecordReminder(ctx context.Context, key string, at time.Time) error {
	rng := fmt.Sprintf("%s!A:B", c.opts.RemindersSheet)
	vr := &gsheet.ValueRange{Values: [][]any{{key, formatReminderTime(at)}}}
	if _, err := c.svc.Spreadsheets.Values.Append(c.opts.SpreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("append to %s: %w", c.opts.RemindersSheet, err)
	}
	return nil
}

// read returns sheet!cells with numbers and dates unformatted so that the
// spreadsheet locale does not leak into parsing.
func (c *Client) read(ctx context.Context, sheet, cells string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cells)
	resp, err := c.svc.Spreadsheets.Values.Get(c.opts.SpreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = toStrings(row)
	}
	return out, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
