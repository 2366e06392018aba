package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/analytics"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/sheets"
)

// ReminderPublisher hands a reminder to the delivery side.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, msg amqp.ReminderMessage) error
}

// ReminderSource is what the reminder run reads and writes.
type ReminderSource interface {
	sheets.TransactionReader
	sheets.BudgetReader
	sheets.GoalReader
	sheets.GoalCompleter
	sheets.ReminderLog
}

type ReminderConfig struct {
	Locale analytics.Locale
	// Cadence names a registered CadenceChecker.
	Cadence string
	// Threshold is the percentage of a budget that triggers a warning.
	Threshold float64
}

// ReminderProcessor checks budgets and goals and publishes the reminders
// that are due.
type ReminderProcessor struct {
	src       ReminderSource
	publisher ReminderPublisher
	cadence   CadenceChecker
	cfg       ReminderConfig
	logger    *log.Logger
}

func NewReminderProcessor(src ReminderSource, publisher ReminderPublisher, cfg ReminderConfig, logger *log.Logger) (*ReminderProcessor, error) {
	if src == nil || publisher == nil {
		return nil, errors.New("reminder processor needs a source and a publisher")
	}
	cadence, err := GetCadenceChecker(cfg.Cadence)
	if err != nil {
		return nil, err
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 80
	}
	if cfg.Locale.Uncategorized == "" {
		cfg.Locale = analytics.Spanish
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &ReminderProcessor{
		src:       src,
		publisher: publisher,
		cadence:   cadence,
		cfg:       cfg,
		logger:    logger.WithComponent(log.ComponentReminder),
	}, nil
}

// ProcessReminders evaluates active budgets and all goals at now and returns
// how many reminders were published.
func (p *ReminderProcessor) ProcessReminders(ctx context.Context, now time.Time) (int, error) {
	budgets, err := p.src.ListBudgets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list budgets: %w", err)
	}
	goals, err := p.src.ListGoals(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list goals: %w", err)
	}
	budgets = analytics.ActiveBudgets(budgets)

	p.logger.InfoContext(ctx, "Processing reminders",
		"budgets", len(budgets),
		"goals", len(goals),
		"processing_date", now.Format("2006-01-02"))

	sent := 0
	for _, st := range p.budgetStatuses(ctx, budgets, now) {
		msg, ok := budgetReminder(st, p.cfg.Threshold)
		if !ok {
			continue
		}
		if p.deliver(ctx, msg, now, true) {
			sent++
		}
	}

	statuses, err := evaluateGoals(ctx, p.src, goals, now, p.cfg.Locale, p.window, p.logger)
	if err != nil {
		return sent, err
	}
	for _, st := range statuses {
		msg, ok := goalReminder(st)
		if !ok {
			continue
		}
		// A completion is announced once, whatever the cadence.
		if p.deliver(ctx, msg, now, msg.Kind != amqp.GoalCompleted) {
			sent++
		}
	}

	p.logger.InfoContext(ctx, "Reminder run completed", "sent", sent)
	return sent, nil
}

func (p *ReminderProcessor) budgetStatuses(ctx context.Context, budgets []core.Budget, now time.Time) []analytics.BudgetStatus {
	periods := make([]analytics.Interval, 0, len(budgets))
	kept := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		iv, err := analytics.PeriodInterval(b.PeriodType, now, b.StartDate, b.EndDate, p.cfg.Locale)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping budget with unusable period",
				log.NewFields().WithBudget(b.ID).WithError(err).ToSlice()...)
			continue
		}
		kept = append(kept, b)
		periods = append(periods, iv)
	}
	txs, err := p.window(ctx, periods)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to load transactions for budgets", log.FieldError, err.Error())
		return nil
	}
	out := make([]analytics.BudgetStatus, len(kept))
	for i, b := range kept {
		out[i] = analytics.EvaluateBudgetIn(b, txs, periods[i], now)
	}
	return out
}

func (p *ReminderProcessor) window(ctx context.Context, ivs []analytics.Interval) ([]core.Transaction, error) {
	if len(ivs) == 0 {
		return nil, nil
	}
	iv := cover(ivs)
	return p.src.ListTransactions(ctx, iv.Start, iv.End)
}

// deliver publishes msg unless the reminder log says it was sent recently.
// Without cadence, any earlier delivery suppresses it.
func (p *ReminderProcessor) deliver(ctx context.Context, msg amqp.ReminderMessage, now time.Time, cadence bool) bool {
	last, ok, err := p.src.LastReminder(ctx, msg.Key)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to read reminder log", "key", msg.Key, log.FieldError, err.Error())
		return false
	}
	if ok && (!cadence || !p.cadence.IsDue(last, now)) {
		return false
	}

	msg.Timestamp = now
	if err := p.publisher.PublishReminder(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish reminder",
			"key", msg.Key, log.FieldError, err.Error())
		return false
	}
	if err := p.src.RecordReminder(ctx, msg.Key, now); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record reminder", "key", msg.Key, log.FieldError, err.Error())
	}
	p.logger.InfoContext(ctx, "Reminder published",
		append([]any{"key", msg.Key, "kind", string(msg.Kind)},
			log.NewFields().WithOperation(log.OpNotify).ToSlice()...)...)
	return true
}

// budgetReminder picks the reminder for st, if any. Exceeded wins over warning.
func budgetReminder(st analytics.BudgetStatus, threshold float64) (amqp.ReminderMessage, bool) {
	var kind amqp.ReminderKind
	switch {
	case st.Exceeded:
		kind = amqp.BudgetExceeded
	case st.PercentageUsed != nil && *st.PercentageUsed >= threshold:
		kind = amqp.BudgetWarning
	default:
		return amqp.ReminderMessage{}, false
	}
	return amqp.ReminderMessage{
		Kind:          kind,
		Key:           reminderKey("budget", st.BudgetID, kind, st.Period.Start),
		SubjectID:     st.BudgetID,
		Name:          st.Name,
		Currency:      st.Currency,
		PeriodStart:   core.DateOf(st.Period.Start).String(),
		PeriodEnd:     core.DateOf(st.Period.Last()).String(),
		TargetCents:   st.Amount,
		CurrentCents:  st.Spent,
		Percentage:    st.PercentageUsed,
		DaysRemaining: st.DaysRemaining,
	}, true
}

// goalReminder picks the reminder for st, if any. Completed goals are
// announced once; goals without a positive target are never behind.
func goalReminder(st analytics.GoalStatus) (amqp.ReminderMessage, bool) {
	var kind amqp.ReminderKind
	key := ""
	switch {
	case st.Completed:
		kind = amqp.GoalCompleted
		key = "goal:" + st.GoalID + ":" + string(kind)
	case st.Target > 0 && !st.OnTrack:
		kind = amqp.GoalBehind
		key = reminderKey("goal", st.GoalID, kind, st.Period.Start)
	default:
		return amqp.ReminderMessage{}, false
	}
	return amqp.ReminderMessage{
		Kind:          kind,
		Key:           key,
		SubjectID:     st.GoalID,
		Name:          st.Name,
		Currency:      st.Currency,
		PeriodStart:   core.DateOf(st.Period.Start).String(),
		PeriodEnd:     core.DateOf(st.Period.Last()).String(),
		TargetCents:   st.Target,
		CurrentCents:  st.CurrentAmount,
		Percentage:    st.PercentageAchieved,
		DaysRemaining: st.DaysRemaining,
	}, true
}

func reminderKey(subject, id string, kind amqp.ReminderKind, periodStart time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", subject, id, kind, periodStart.Format("2006-01-02"))
}
