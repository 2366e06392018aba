package analytics

import (
	"sort"
	"strings"
)

// DefaultTrendCategories is how many categories a trend chart shows when the
// caller selects none.
const DefaultTrendCategories = 3

type Series struct {
	Category string  `json:"category"`
	Values   []int64 `json:"values"`
}

type Trend struct {
	Labels        []string `json:"labels"`
	Series        []Series `json:"series"`
	AllCategories []string `json:"all_categories"`
}

// BuildTrend aligns one series per selected category to the bucket labels.
// An empty selection plots every category found.
func BuildTrend(buckets []Bucket, perBucket []*CategorySum, selected []string) (Trend, error) {
	if len(buckets) == 0 {
		return Trend{}, ErrNoBuckets
	}
	if len(perBucket) != len(buckets) {
		return Trend{}, ErrBucketMismatch
	}

	all := discoverCategories(perBucket)
	if len(selected) == 0 {
		selected = all
	}

	out := Trend{
		Labels:        Labels(buckets),
		Series:        []Series{},
		AllCategories: all,
	}
	seen := make(map[string]bool, len(selected))
	for _, c := range selected {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		values := make([]int64, len(buckets))
		for i, sum := range perBucket {
			values[i] = sum.Get(c)
		}
		out.Series = append(out.Series, Series{Category: c, Values: values})
	}
	return out, nil
}

// DefaultSelection returns up to n categories with the largest total across
// all buckets.
func DefaultSelection(perBucket []*CategorySum, n int) []string {
	if n <= 0 {
		return nil
	}
	totals := NewCategorySum()
	for _, sum := range perBucket {
		for _, e := range sum.entries() {
			totals.Add(e.name, e.value)
		}
	}
	entries := sortedEntries(totals)
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

func discoverCategories(perBucket []*CategorySum) []string {
	set := make(map[string]struct{})
	for _, sum := range perBucket {
		for _, c := range sum.Categories() {
			set[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
