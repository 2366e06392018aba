package amqp

import (
	"encoding/json"
	"time"
)

// Message types. They double as routing keys and as the AMQP Type header.
const (
	TypeTransactionSync = "transaction.sync"
	TypeReminder        = "reminder"
)

// TransactionSyncMessage asks the worker to copy a stored transaction to the
// spreadsheet. The worker loads the full row from the database.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id string, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

type ReminderKind string

const (
	BudgetWarning  ReminderKind = "budget_warning"
	BudgetExceeded ReminderKind = "budget_exceeded"
	GoalBehind     ReminderKind = "goal_behind"
	GoalCompleted  ReminderKind = "goal_completed"
)

// ReminderMessage carries everything needed to render a reminder without
// reading the store again.
type ReminderMessage struct {
	Kind          ReminderKind `json:"kind"`
	Key           string       `json:"key"`
	SubjectID     string       `json:"subject_id"`
	Name          string       `json:"name"`
	Currency      string       `json:"currency"`
	PeriodStart   string       `json:"period_start"`
	PeriodEnd     string       `json:"period_end"`
	TargetCents   int64        `json:"target_cents"`
	CurrentCents  int64        `json:"current_cents"`
	Percentage    *float64     `json:"percentage"`
	DaysRemaining int          `json:"days_remaining"`
	Timestamp     time.Time    `json:"timestamp"`
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
