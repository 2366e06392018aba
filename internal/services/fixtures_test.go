package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/sheets/memory"
)

// refTime is a Wednesday; October 2025 starts on a Wednesday too.
var refTime = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

// newFixtureStore seeds October 2025 with:
//
//	income   200000  Salario
//	expense   20000  Comida (12000 + 8000)
//	expense   50000  Casa
//	expense    3000  Ocio
//	expense    1000  uncategorized
//
// plus one September expense that must never be counted.
func newFixtureStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New([]string{"Comida", "Casa", "Ocio", "Salario"}, []core.Account{
		{ID: "banco", Name: "Banco", Kind: core.Bank},
	})

	txs := []core.Transaction{
		{Date: core.NewDate(2025, 9, 30), Type: core.Expense, Description: "old", Category: "Comida", Amount: core.Money{Cents: 9999}},
		{Date: core.NewDate(2025, 10, 2), Type: core.Income, Description: "nomina", Category: "Salario", Amount: core.Money{Cents: 200000}, Account: "banco"},
		{Date: core.NewDate(2025, 10, 3), Type: core.Expense, Description: "super", Category: "Comida", Amount: core.Money{Cents: 12000}},
		{Date: core.NewDate(2025, 10, 8), Type: core.Expense, Description: "alquiler", Category: "Casa", Amount: core.Money{Cents: 50000}},
		{Date: core.NewDate(2025, 10, 9), Type: core.Expense, Description: "mercado", Category: "Comida", Amount: core.Money{Cents: 8000}},
		{Date: core.NewDate(2025, 10, 14), Type: core.Expense, Description: "cine", Category: "Ocio", Amount: core.Money{Cents: 3000}},
		{Date: core.NewDate(2025, 10, 15), Type: core.Expense, Description: "varios", Amount: core.Money{Cents: 1000}},
	}
	for _, tx := range txs {
		if _, err := s.AppendTransaction(ctx, tx); err != nil {
			t.Fatalf("seed transaction %q: %v", tx.Description, err)
		}
	}
	return s
}

func mustAddBudget(t *testing.T, s *memory.Store, b core.Budget) core.Budget {
	t.Helper()
	if b.Currency == "" {
		b.Currency = "EUR"
	}
	out, err := s.AddBudget(context.Background(), b)
	if err != nil {
		t.Fatalf("add budget %q: %v", b.Name, err)
	}
	return out
}

func mustAddGoal(t *testing.T, s *memory.Store, g core.Goal) core.Goal {
	t.Helper()
	if g.Currency == "" {
		g.Currency = "EUR"
	}
	out, err := s.AddGoal(context.Background(), g)
	if err != nil {
		t.Fatalf("add goal %q: %v", g.Name, err)
	}
	return out
}

// countingStore counts transaction reads to observe the cache.
type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	reads int
}

func (c *countingStore) ListTransactions(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.Store.ListTransactions(ctx, from, to)
}

func (c *countingStore) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

type fakeReminderPublisher struct {
	mu   sync.Mutex
	msgs []amqp.ReminderMessage
	err  error
}

func (p *fakeReminderPublisher) PublishReminder(_ context.Context, msg amqp.ReminderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakeReminderPublisher) kinds() map[amqp.ReminderKind]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[amqp.ReminderKind]int{}
	for _, m := range p.msgs {
		out[m.Kind]++
	}
	return out
}

type fakeSyncPublisher struct {
	ids      []string
	versions []int64
	err      error
}

func (p *fakeSyncPublisher) PublishTransactionSync(_ context.Context, id string, version int64) error {
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, id)
	p.versions = append(p.versions, version)
	return nil
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate() { f.calls++ }

var errBoom = errors.New("boom")
