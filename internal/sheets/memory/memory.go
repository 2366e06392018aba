package memory

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/sheets"
)

var _ sheets.Store = (*Store)(nil)

// Store keeps every record in memory. It backs local development and tests.
type Store struct {
	mu        sync.RWMutex
	cats      []string
	accounts  []core.Account
	txs       []core.Transaction
	budgets   []core.Budget
	goals     []core.Goal
	reminders map[string]time.Time
}

func New(cats []string, accounts []core.Account) *Store {
	return &Store{
		cats:      dedupe(cats),
		accounts:  append([]core.Account(nil), accounts...),
		reminders: make(map[string]time.Time),
	}
}

// NewFromFiles seeds a store from base:
//
//	seed_categories.txt   one category per line
//	seed_accounts.txt     "name,kind" per line
//	transactions.csv      rows in spreadsheet column order
//	budgets.json, goals.json
//
// Missing files are fine. Malformed transaction rows are skipped and counted.
func NewFromFiles(base string) (*Store, int, error) {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"Comida", "Casa", "Transporte", "Ocio", "Salario"}
	}
	var accounts []core.Account
	for _, line := range readLines(filepath.Join(base, "seed_accounts.txt")) {
		name, kind, _ := strings.Cut(line, ",")
		accounts = append(accounts, core.Account{
			ID:   strings.ToLower(strings.TrimSpace(name)),
			Name: strings.TrimSpace(name),
			Kind: core.AccountKind(strings.ToLower(strings.TrimSpace(kind))),
		})
	}
	if len(accounts) == 0 {
		accounts = []core.Account{{ID: "cash", Name: "Cash", Kind: core.Cash}}
	}
	s := New(cats, accounts)

	skipped, err := s.loadTransactions(filepath.Join(base, "transactions.csv"))
	if err != nil {
		return nil, 0, err
	}
	if err := readJSON(filepath.Join(base, "budgets.json"), &s.budgets); err != nil {
		return nil, 0, err
	}
	if err := readJSON(filepath.Join(base, "goals.json"), &s.goals); err != nil {
		return nil, 0, err
	}
	return s, skipped, nil
}

func (s *Store) loadTransactions(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	txs, skipped := core.ParseTransactionRows(rows)
	for i := range txs {
		txs[i].ID = uuid.NewString()
	}
	s.txs = txs
	return skipped, nil
}

func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return "mem:" + tx.ID, nil
}

func (s *Store) ListTransactions(_ context.Context, from, to time.Time) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if !tx.Date.Before(from) && tx.Date.Before(to) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func (s *Store) ListTaxonomy(_ context.Context) ([]string, []core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.cats...), append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) ListBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Budget(nil), s.budgets...), nil
}

func (s *Store) ListGoals(_ context.Context) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Goal(nil), s.goals...), nil
}

// AddBudget validates and stores b, assigning an id when missing.
func (s *Store) AddBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = append(s.budgets, b)
	return b, nil
}

// AddGoal validates and stores g, assigning an id when missing.
func (s *Store) AddGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, g)
	return g, nil
}

func (s *Store) MarkGoalCompleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals[i].IsCompleted = true
			return nil
		}
	}
	return fmt.Errorf("goal %s: %w", id, sheets.ErrNotFound)
}

func (s *Store) LastReminder(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.reminders[key]
	return at, ok, nil
}

func (s *Store) RecordReminder(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[key] = at
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// dedupe trims values and drops blanks and repeats, keeping input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
