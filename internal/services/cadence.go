// Package services provides business logic and orchestration services.
//
// This file holds the strategies that decide whether a reminder may be sent
// again. Each cadence (daily, weekly, monthly) answers IsDue for the time the
// same reminder was last delivered.

package services

import (
	"fmt"
	"strings"
	"time"
)

const (
	CadenceDaily   = "daily"
	CadenceWeekly  = "weekly"
	CadenceMonthly = "monthly"
)

// CadenceChecker is the strategy interface for reminder repetition.
type CadenceChecker interface {
	// IsDue reports whether a reminder last sent at lastSent may be sent at now.
	// A zero lastSent means it was never sent.
	IsDue(lastSent, now time.Time) bool
}

// DailyCadence allows one reminder per calendar day.
type DailyCadence struct{}

func (DailyCadence) IsDue(lastSent, now time.Time) bool {
	if lastSent.IsZero() {
		return true
	}
	return lastSent.UTC().Format("2006-01-02") != now.UTC().Format("2006-01-02")
}

// WeeklyCadence allows a reminder once 7 days have passed.
type WeeklyCadence struct{}

func (WeeklyCadence) IsDue(lastSent, now time.Time) bool {
	if lastSent.IsZero() {
		return true
	}
	return now.Sub(lastSent) >= 7*24*time.Hour
}

// MonthlyCadence allows one reminder per calendar month.
type MonthlyCadence struct{}

func (MonthlyCadence) IsDue(lastSent, now time.Time) bool {
	if lastSent.IsZero() {
		return true
	}
	l, n := lastSent.UTC(), now.UTC()
	return l.Year() != n.Year() || l.Month() != n.Month()
}

var cadenceStrategies = map[string]CadenceChecker{
	CadenceDaily:   DailyCadence{},
	CadenceWeekly:  WeeklyCadence{},
	CadenceMonthly: MonthlyCadence{},
}

// GetCadenceChecker returns the checker registered under name.
func GetCadenceChecker(name string) (CadenceChecker, error) {
	checker, ok := cadenceStrategies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown reminder cadence: %s", name)
	}
	return checker, nil
}

// RegisterCadenceChecker adds or replaces the checker for name.
func RegisterCadenceChecker(name string, checker CadenceChecker) {
	cadenceStrategies[strings.ToLower(name)] = checker
}
