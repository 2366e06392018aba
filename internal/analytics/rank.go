package analytics

import (
	"fmt"
	"sort"
)

const (
	DefaultTopN = 7
	OtherLabel  = "Other"
)

// Ranking is a category breakdown ready for a pie or bar chart.
type Ranking struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

// Rank keeps the topN largest categories and folds the rest into OtherLabel.
// Equal totals keep their first-seen order.
func Rank(sum *CategorySum, topN int) (Ranking, error) {
	if topN <= 0 {
		return Ranking{}, fmt.Errorf("%w: %d", ErrInvalidTopN, topN)
	}
	if sum == nil {
		return Ranking{}, ErrNilSum
	}

	entries := sortedEntries(sum)
	out := Ranking{Labels: []string{}, Values: []int64{}}
	var other int64
	for i, e := range entries {
		if i < topN {
			out.Labels = append(out.Labels, e.name)
			out.Values = append(out.Values, e.value)
			continue
		}
		other += e.value
	}
	if other > 0 {
		out.Labels = append(out.Labels, OtherLabel)
		out.Values = append(out.Values, other)
	}
	return out, nil
}

func sortedEntries(sum *CategorySum) []categoryEntry {
	entries := sum.entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].value > entries[j].value
	})
	return entries
}
