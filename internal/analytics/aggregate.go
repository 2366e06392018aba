package analytics

import (
	"encoding/json"
	"strings"

	"bilancio/internal/core"
)

// Balance holds per-bucket income and expense totals in cents.
type Balance struct {
	Labels   []string `json:"labels"`
	Income   []int64  `json:"income"`
	Expenses []int64  `json:"expenses"`
}

// Totals sums every bucket.
func (b Balance) Totals() (income, expenses int64) {
	for i := range b.Income {
		income += b.Income[i]
		expenses += b.Expenses[i]
	}
	return income, expenses
}

// AggregateBalance sums income and expenses into buckets. Transactions outside
// every bucket are ignored; transfers count as neither.
func AggregateBalance(txs []core.Transaction, buckets []Bucket) (Balance, error) {
	if len(buckets) == 0 {
		return Balance{}, ErrNoBuckets
	}
	out := Balance{
		Labels:   Labels(buckets),
		Income:   make([]int64, len(buckets)),
		Expenses: make([]int64, len(buckets)),
	}
	for _, tx := range txs {
		if !countable(tx) {
			continue
		}
		i := BucketIndex(buckets, tx.Date.Time)
		if i < 0 {
			continue
		}
		switch tx.Type {
		case core.Income:
			out.Income[i] += tx.Amount.Cents
		case core.Expense:
			out.Expenses[i] += tx.Amount.Cents
		}
	}
	return out, nil
}

// CategoryFilter narrows a category aggregation. An empty Only admits every
// category. Uncategorized replaces empty category names.
type CategoryFilter struct {
	Only          []string
	Uncategorized string
}

func (f CategoryFilter) label(category string) string {
	if c := strings.TrimSpace(category); c != "" {
		return c
	}
	return f.Uncategorized
}

func (f CategoryFilter) allows(label string) bool {
	if len(f.Only) == 0 {
		return true
	}
	for _, c := range f.Only {
		if strings.EqualFold(strings.TrimSpace(c), label) {
			return true
		}
	}
	return false
}

// SumByCategory totals transactions of type typ per category over the whole
// span of buckets.
func SumByCategory(txs []core.Transaction, buckets []Bucket, typ core.TransactionType, f CategoryFilter) (*CategorySum, error) {
	span, err := Span(buckets)
	if err != nil {
		return nil, err
	}
	sum := NewCategorySum()
	for _, tx := range txs {
		if tx.Type != typ || !countable(tx) || !span.Contains(tx.Date.Time) {
			continue
		}
		if label := f.label(tx.Category); f.allows(label) {
			sum.Add(label, tx.Amount.Cents)
		}
	}
	return sum, nil
}

// SumByCategoryPerBucket returns one expense CategorySum per bucket.
func SumByCategoryPerBucket(txs []core.Transaction, buckets []Bucket, f CategoryFilter) ([]*CategorySum, error) {
	if len(buckets) == 0 {
		return nil, ErrNoBuckets
	}
	out := make([]*CategorySum, len(buckets))
	for i := range out {
		out[i] = NewCategorySum()
	}
	for _, tx := range txs {
		if tx.Type != core.Expense || !countable(tx) {
			continue
		}
		i := BucketIndex(buckets, tx.Date.Time)
		if i < 0 {
			continue
		}
		if label := f.label(tx.Category); f.allows(label) {
			out[i].Add(label, tx.Amount.Cents)
		}
	}
	return out, nil
}

// countable drops rows that slipped past parsing with a non-positive amount.
func countable(tx core.Transaction) bool {
	return tx.Amount.Cents > 0 && !tx.Date.IsEmpty()
}

// CategorySum maps category names to cents, remembering the order in which
// categories were first seen.
type CategorySum struct {
	order  []string
	totals map[string]int64
}

func NewCategorySum() *CategorySum {
	return &CategorySum{totals: make(map[string]int64)}
}

func (s *CategorySum) Add(category string, cents int64) {
	if s.totals == nil {
		s.totals = make(map[string]int64)
	}
	if _, ok := s.totals[category]; !ok {
		s.order = append(s.order, category)
	}
	s.totals[category] += cents
}

func (s *CategorySum) Get(category string) int64 {
	if s == nil {
		return 0
	}
	return s.totals[category]
}

func (s *CategorySum) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Categories returns category names in first-seen order.
func (s *CategorySum) Categories() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *CategorySum) Total() int64 {
	var total int64
	if s == nil {
		return total
	}
	for _, v := range s.totals {
		total += v
	}
	return total
}

func (s *CategorySum) MarshalJSON() ([]byte, error) {
	if s == nil || s.totals == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.totals)
}

type categoryEntry struct {
	name  string
	value int64
}

func (s *CategorySum) entries() []categoryEntry {
	out := make([]categoryEntry, 0, s.Len())
	if s == nil {
		return out
	}
	for _, name := range s.order {
		out = append(out, categoryEntry{name: name, value: s.totals[name]})
	}
	return out
}
