package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/analytics"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/report"
	"bilancio/internal/sheets"
)

// DashboardSource is what the dashboard reads from the data backend.
type DashboardSource interface {
	sheets.TransactionReader
	sheets.TaxonomyReader
	sheets.BudgetReader
	sheets.GoalReader
	sheets.GoalCompleter
}

type DashboardConfig struct {
	Locale    analytics.Locale
	TopN      int
	CacheTTL  time.Duration
	CacheSize int
	Currency  string
}

// Overview is the single-request dashboard payload.
type Overview struct {
	Period        analytics.Period         `json:"period"`
	Interval      analytics.Interval       `json:"interval"`
	Balance       analytics.Balance        `json:"balance"`
	TotalIncome   int64                    `json:"total_income"`
	TotalExpenses int64                    `json:"total_expenses"`
	Net           int64                    `json:"net"`
	Expenses      analytics.Ranking        `json:"expenses"`
	Income        analytics.Ranking        `json:"income"`
	Budgets       []analytics.BudgetStatus `json:"budgets"`
	Goals         []analytics.GoalStatus   `json:"goals"`
}

type Taxonomy struct {
	Categories []string       `json:"categories"`
	Accounts   []core.Account `json:"accounts"`
}

// DashboardService turns stored transactions into chart and status payloads.
type DashboardService struct {
	src    DashboardSource
	cfg    DashboardConfig
	txs    cache.Cache[[]core.Transaction]
	logger *log.Logger
	now    func() time.Time
}

func NewDashboardService(src DashboardSource, cfg DashboardConfig, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = analytics.DefaultTopN
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.Locale.Uncategorized == "" {
		cfg.Locale = analytics.Spanish
	}
	return &DashboardService{
		src:    src,
		cfg:    cfg,
		txs:    cache.NewLRUCache[[]core.Transaction](cfg.CacheSize, cfg.CacheTTL),
		logger: logger.WithComponent(log.ComponentDashboard),
		now:    time.Now,
	}
}

// Cache exposes the transaction window cache for periodic cleanup.
func (s *DashboardService) Cache() cache.Cleaner { return s.txs }

// Invalidate drops every cached transaction window.
func (s *DashboardService) Invalidate() { s.txs.Clear() }

func (s *DashboardService) TopN() int { return s.cfg.TopN }

// Balance returns income and expenses per bucket of the period containing ref.
func (s *DashboardService) Balance(ctx context.Context, p analytics.Period, ref time.Time) (analytics.Balance, error) {
	buckets, txs, err := s.period(ctx, p, ref)
	if err != nil {
		return analytics.Balance{}, err
	}
	return analytics.AggregateBalance(txs, buckets)
}

// Categories ranks categories of type typ over the period containing ref.
func (s *DashboardService) Categories(ctx context.Context, p analytics.Period, typ core.TransactionType, topN int, ref time.Time) (analytics.Ranking, error) {
	buckets, txs, err := s.period(ctx, p, ref)
	if err != nil {
		return analytics.Ranking{}, err
	}
	return s.rank(txs, buckets, typ, topN)
}

// Trend plots expenses of the selected categories per bucket. With no
// selection the largest categories are shown.
func (s *DashboardService) Trend(ctx context.Context, p analytics.Period, categories []string, ref time.Time) (analytics.Trend, error) {
	buckets, txs, err := s.period(ctx, p, ref)
	if err != nil {
		return analytics.Trend{}, err
	}
	perBucket, err := analytics.SumByCategoryPerBucket(txs, buckets, s.filter())
	if err != nil {
		return analytics.Trend{}, err
	}
	if len(categories) == 0 {
		// Empty when nothing was spent, which plots no series.
		categories = analytics.DefaultSelection(perBucket, analytics.DefaultTrendCategories)
	}
	return analytics.BuildTrend(buckets, perBucket, categories)
}

// Budgets evaluates every active budget for the period containing ref.
func (s *DashboardService) Budgets(ctx context.Context, ref time.Time) ([]analytics.BudgetStatus, error) {
	budgets, err := s.src.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	budgets = analytics.ActiveBudgets(budgets)

	periods := make([]analytics.Interval, 0, len(budgets))
	kept := budgets[:0]
	for _, b := range budgets {
		iv, err := analytics.PeriodInterval(b.PeriodType, ref, b.StartDate, b.EndDate, s.cfg.Locale)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping budget with unusable period",
				log.NewFields().WithBudget(b.ID).WithError(err).ToSlice()...)
			continue
		}
		kept = append(kept, b)
		periods = append(periods, iv)
	}

	txs, err := s.window(ctx, periods)
	if err != nil {
		return nil, err
	}
	out := make([]analytics.BudgetStatus, len(kept))
	for i, b := range kept {
		out[i] = analytics.EvaluateBudgetIn(b, txs, periods[i], ref)
	}
	return out, nil
}

// Goals evaluates every goal for the period containing ref and persists
// newly reached completions.
func (s *DashboardService) Goals(ctx context.Context, ref time.Time) ([]analytics.GoalStatus, error) {
	goals, err := s.src.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	statuses, err := evaluateGoals(ctx, s.src, goals, ref, s.cfg.Locale, s.window, s.logger)
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

// Overview loads balance, rankings, budgets and goals concurrently.
func (s *DashboardService) Overview(ctx context.Context, p analytics.Period, ref time.Time) (Overview, error) {
	buckets, err := analytics.Buckets(p, ref, s.cfg.Locale)
	if err != nil {
		return Overview{}, err
	}
	span, err := analytics.Span(buckets)
	if err != nil {
		return Overview{}, err
	}

	out := Overview{Period: p, Interval: span}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.transactions(gctx, span)
		if err != nil {
			return err
		}
		if out.Balance, err = analytics.AggregateBalance(txs, buckets); err != nil {
			return err
		}
		if out.Expenses, err = s.rank(txs, buckets, core.Expense, s.cfg.TopN); err != nil {
			return err
		}
		out.Income, err = s.rank(txs, buckets, core.Income, s.cfg.TopN)
		return err
	})
	g.Go(func() error {
		var err error
		out.Budgets, err = s.Budgets(gctx, ref)
		return err
	})
	g.Go(func() error {
		var err error
		out.Goals, err = s.Goals(gctx, ref)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	out.TotalIncome, out.TotalExpenses = out.Balance.Totals()
	out.Net = out.TotalIncome - out.TotalExpenses
	return out, nil
}

// Report collects the overview of the period containing ref for export.
func (s *DashboardService) Report(ctx context.Context, p analytics.Period, ref time.Time) (report.Data, error) {
	ov, err := s.Overview(ctx, p, ref)
	if err != nil {
		return report.Data{}, err
	}
	return report.Data{
		Title:       reportTitle(p, ov.Interval, s.cfg.Locale),
		Period:      p,
		Interval:    ov.Interval,
		GeneratedAt: s.now().UTC(),
		Currency:    s.cfg.Currency,
		Balance:     ov.Balance,
		Expenses:    ov.Expenses,
		Income:      ov.Income,
		Budgets:     ov.Budgets,
		Goals:       ov.Goals,
	}, nil
}

func (s *DashboardService) Taxonomy(ctx context.Context) (Taxonomy, error) {
	cats, accounts, err := s.src.ListTaxonomy(ctx)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("list taxonomy: %w", err)
	}
	if cats == nil {
		cats = []string{}
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	return Taxonomy{Categories: cats, Accounts: accounts}, nil
}

func (s *DashboardService) period(ctx context.Context, p analytics.Period, ref time.Time) ([]analytics.Bucket, []core.Transaction, error) {
	buckets, err := analytics.Buckets(p, ref, s.cfg.Locale)
	if err != nil {
		return nil, nil, err
	}
	span, err := analytics.Span(buckets)
	if err != nil {
		return nil, nil, err
	}
	txs, err := s.transactions(ctx, span)
	if err != nil {
		return nil, nil, err
	}
	return buckets, txs, nil
}

func (s *DashboardService) rank(txs []core.Transaction, buckets []analytics.Bucket, typ core.TransactionType, topN int) (analytics.Ranking, error) {
	sum, err := analytics.SumByCategory(txs, buckets, typ, s.filter())
	if err != nil {
		return analytics.Ranking{}, err
	}
	return analytics.Rank(sum, topN)
}

func (s *DashboardService) filter() analytics.CategoryFilter {
	return analytics.CategoryFilter{Uncategorized: s.cfg.Locale.Uncategorized}
}

// window loads the transactions covering every interval in one read.
func (s *DashboardService) window(ctx context.Context, ivs []analytics.Interval) ([]core.Transaction, error) {
	if len(ivs) == 0 {
		return nil, nil
	}
	return s.transactions(ctx, cover(ivs))
}

func (s *DashboardService) transactions(ctx context.Context, iv analytics.Interval) ([]core.Transaction, error) {
	key := iv.Start.Format("2006-01-02") + "/" + iv.End.Format("2006-01-02")
	if txs, ok := s.txs.Get(key); ok {
		return txs, nil
	}
	txs, err := s.src.ListTransactions(ctx, iv.Start, iv.End)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	s.txs.Set(key, txs)
	s.logger.DebugContext(ctx, "Loaded transaction window", "key", key, "count", len(txs))
	return txs, nil
}

// cover returns the smallest interval containing all of ivs.
func cover(ivs []analytics.Interval) analytics.Interval {
	out := ivs[0]
	for _, iv := range ivs[1:] {
		if iv.Start.Before(out.Start) {
			out.Start = iv.Start
		}
		if iv.End.After(out.End) {
			out.End = iv.End
		}
	}
	return out
}

// evaluateGoals evaluates goals against one transaction window and latches
// completions. A failed write only costs a retry on the next evaluation.
func evaluateGoals(
	ctx context.Context,
	completer sheets.GoalCompleter,
	goals []core.Goal,
	ref time.Time,
	loc analytics.Locale,
	window func(context.Context, []analytics.Interval) ([]core.Transaction, error),
	logger *log.Logger,
) ([]analytics.GoalStatus, error) {
	periods := make([]analytics.Interval, 0, len(goals))
	kept := make([]core.Goal, 0, len(goals))
	for _, g := range goals {
		iv, err := analytics.PeriodInterval(g.PeriodType, ref, g.StartDate, g.EndDate, loc)
		if err != nil {
			logger.WarnContext(ctx, "Skipping goal with unusable period",
				log.NewFields().WithGoal(g.ID).WithError(err).ToSlice()...)
			continue
		}
		kept = append(kept, g)
		periods = append(periods, iv)
	}

	txs, err := window(ctx, periods)
	if err != nil {
		return nil, err
	}
	out := make([]analytics.GoalStatus, len(kept))
	for i, g := range kept {
		st := analytics.EvaluateGoalIn(g, txs, periods[i], ref)
		if _, changed := analytics.ApplyCompletion(g, st); changed {
			if err := completer.MarkGoalCompleted(ctx, g.ID); err != nil {
				logger.ErrorContext(ctx, "Failed to persist goal completion",
					log.NewFields().WithGoal(g.ID).WithError(err).ToSlice()...)
			} else {
				logger.InfoContext(ctx, "Goal completed",
					log.NewFields().WithGoal(g.ID).WithOperation(log.OpEvaluate).ToSlice()...)
			}
		}
		out[i] = st
	}
	return out, nil
}

func reportTitle(p analytics.Period, iv analytics.Interval, loc analytics.Locale) string {
	switch p {
	case analytics.Year:
		return fmt.Sprintf("%d", iv.Start.Year())
	case analytics.Month:
		return strings.TrimSpace(fmt.Sprintf("%s %d", loc.MonthName(iv.Start.Month()), iv.Start.Year()))
	}
	return iv.Start.Format("2006-01-02") + " / " + iv.Last().Format("2006-01-02")
}
