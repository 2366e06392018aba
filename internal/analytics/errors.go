// Package analytics turns transactions, budgets and goals into chart series
// and progress figures.
//
// Everything here is a pure function of its arguments: the current instant
// and the locale are always passed in, and no state survives between calls.
// Amounts are integer cents; formatting is left to the caller.
package analytics

import "errors"

var (
	ErrUnknownPeriod  = errors.New("unknown period")
	ErrNoBuckets      = errors.New("bucket list is empty")
	ErrBucketMismatch = errors.New("per-bucket sums do not match bucket count")
	ErrInvalidTopN    = errors.New("topN must be positive")
	ErrNilSum         = errors.New("category sum is nil")
)
