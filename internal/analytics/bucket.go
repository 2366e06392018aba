package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"
)

const (
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
)

const day = 24 * time.Hour

// Period is a dashboard reporting period.
type Period string

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Week, Month, Year:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// PeriodType maps a reporting period to the budget/goal period of the same length.
func (p Period) PeriodType() core.PeriodType {
	switch p {
	case Week:
		return core.Weekly
	case Year:
		return core.Yearly
	}
	return core.Monthly
}

// Interval is the half-open range [Start, End) of UTC calendar days.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Days returns the number of calendar days covered.
func (i Interval) Days() int {
	return daysBetween(i.Start, i.End)
}

// Last returns the last calendar day inside the interval.
func (i Interval) Last() time.Time {
	return i.End.AddDate(0, 0, -1)
}

type Bucket struct {
	Label string `json:"label"`
	Interval
}

// Buckets splits the period containing ref into labeled, contiguous buckets.
// Buckets are produced even when no transaction falls in them.
func Buckets(p Period, ref time.Time, loc Locale) ([]Bucket, error) {
	today := core.DateOf(ref).Time
	switch p {
	case Week:
		return weekBuckets(today, loc), nil
	case Month:
		return monthBuckets(today, loc), nil
	case Year:
		return yearBuckets(today, loc), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, p)
}

func weekBuckets(today time.Time, loc Locale) []Bucket {
	start := weekStart(today, loc.WeekStart)
	out := make([]Bucket, 7)
	for i := range out {
		d := start.AddDate(0, 0, i)
		out[i] = Bucket{
			Label:    loc.Days[d.Weekday()],
			Interval: Interval{Start: d, End: d.AddDate(0, 0, 1)},
		}
	}
	return out
}

// monthBuckets slices the month into calendar weeks, clipping the first and
// last slice at the month boundaries.
func monthBuckets(today time.Time, loc Locale) []Bucket {
	start := firstOfMonth(today)
	end := start.AddDate(0, 1, 0)

	var out []Bucket
	for cur := start; cur.Before(end); {
		next := weekStart(cur, loc.WeekStart).AddDate(0, 0, 7)
		if next.After(end) {
			next = end
		}
		out = append(out, Bucket{
			Label:    loc.dayMonth(cur) + " - " + loc.dayMonth(next.AddDate(0, 0, -1)),
			Interval: Interval{Start: cur, End: next},
		})
		cur = next
	}
	if len(out) == 0 {
		out = append(out, Bucket{
			Label:    loc.MonthName(start.Month()),
			Interval: Interval{Start: start, End: end},
		})
	}
	return out
}

func yearBuckets(today time.Time, loc Locale) []Bucket {
	out := make([]Bucket, 12)
	for i := range out {
		m := time.Date(today.Year(), time.Month(i+1), 1, 0, 0, 0, 0, time.UTC)
		out[i] = Bucket{
			Label:    loc.ShortMonths[i],
			Interval: Interval{Start: m, End: m.AddDate(0, 1, 0)},
		}
	}
	return out
}

// PeriodInterval returns the single interval of a budget or goal period
// containing ref. Custom periods run from start to end inclusive.
func PeriodInterval(pt core.PeriodType, ref time.Time, start, end core.Date, loc Locale) (Interval, error) {
	today := core.DateOf(ref).Time
	switch pt {
	case core.Weekly:
		s := weekStart(today, loc.WeekStart)
		return Interval{Start: s, End: s.AddDate(0, 0, 7)}, nil
	case core.Monthly:
		s := firstOfMonth(today)
		return Interval{Start: s, End: s.AddDate(0, 1, 0)}, nil
	case core.Yearly:
		s := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return Interval{Start: s, End: s.AddDate(1, 0, 0)}, nil
	case core.Custom:
		if start.IsEmpty() || end.IsEmpty() {
			return Interval{}, errors.New("custom period requires start and end date")
		}
		s, e := core.DateOf(start.Time).Time, core.DateOf(end.Time).Time
		if e.Before(s) {
			return Interval{}, errors.New("custom period ends before it starts")
		}
		return Interval{Start: s, End: e.AddDate(0, 0, 1)}, nil
	}
	return Interval{}, fmt.Errorf("%w: %q", core.ErrInvalidPeriod, pt)
}

// Span returns the overall interval covered by buckets.
func Span(buckets []Bucket) (Interval, error) {
	if len(buckets) == 0 {
		return Interval{}, ErrNoBuckets
	}
	return Interval{Start: buckets[0].Start, End: buckets[len(buckets)-1].End}, nil
}

// Labels returns the bucket labels in order.
func Labels(buckets []Bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Label
	}
	return out
}

// BucketIndex returns the index of the first bucket containing t, or -1.
func BucketIndex(buckets []Bucket, t time.Time) int {
	for i, b := range buckets {
		if b.Contains(t) {
			return i
		}
	}
	return -1
}

func weekStart(t time.Time, first time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(first) + 7) % 7
	return t.AddDate(0, 0, -offset)
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / day)
}
