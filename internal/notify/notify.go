// Package notify delivers reminder texts to the user.
package notify

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
)

// Notifier sends a rendered reminder.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// LogNotifier writes reminders to the log. It stands in for Telegram when no
// bot token is configured.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &LogNotifier{logger: logger.WithComponent(log.ComponentNotify)}
}

func (n *LogNotifier) Send(ctx context.Context, text string) error {
	n.logger.InfoContext(ctx, "Reminder", "text", text, log.FieldOperation, log.OpNotify)
	return nil
}

type templates struct {
	warning, exceeded, behind, completed string
	daysLeft                             string
}

var (
	spanishTemplates = templates{
		warning:   "⚠️ Presupuesto %s: has gastado %s de %s (%s).",
		exceeded:  "🚨 Presupuesto %s superado: %s de %s (%s).",
		behind:    "🐢 Objetivo %s va con retraso: %s de %s (%s).",
		completed: "🎉 Objetivo %s cumplido: %s de %s (%s).",
		daysLeft:  " Quedan %d días del periodo %s – %s.",
	}
	englishTemplates = templates{
		warning:   "⚠️ Budget %s: you spent %s of %s (%s).",
		exceeded:  "🚨 Budget %s exceeded: %s of %s (%s).",
		behind:    "🐢 Goal %s is behind schedule: %s of %s (%s).",
		completed: "🎉 Goal %s reached: %s of %s (%s).",
		daysLeft:  " %d days left in %s – %s.",
	}
	templateMatcher = language.NewMatcher([]language.Tag{language.Spanish, language.English})
)

func templatesFor(tag language.Tag) templates {
	_, idx, _ := templateMatcher.Match(tag)
	if idx == 1 {
		return englishTemplates
	}
	return spanishTemplates
}

// FormatReminder renders msg in the language closest to tag.
func FormatReminder(msg amqp.ReminderMessage, tag language.Tag) string {
	t := templatesFor(tag)
	var tmpl string
	switch msg.Kind {
	case amqp.BudgetWarning:
		tmpl = t.warning
	case amqp.BudgetExceeded:
		tmpl = t.exceeded
	case amqp.GoalBehind:
		tmpl = t.behind
	case amqp.GoalCompleted:
		tmpl = t.completed
	default:
		return fmt.Sprintf("%s: %s", msg.Kind, msg.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, tmpl,
		msg.Name,
		amount(msg.CurrentCents, msg.Currency),
		amount(msg.TargetCents, msg.Currency),
		percent(msg.Percentage))
	if msg.Kind != amqp.GoalCompleted && msg.DaysRemaining > 0 {
		fmt.Fprintf(&b, t.daysLeft, msg.DaysRemaining, msg.PeriodStart, msg.PeriodEnd)
	}
	return b.String()
}

func amount(cents int64, currency string) string {
	if currency == "" {
		currency = "EUR"
	}
	return core.Money{Cents: cents}.String() + " " + currency
}

func percent(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", *p)
}
