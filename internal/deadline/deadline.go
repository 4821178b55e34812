// Package deadline converts a due date and completion progress into an
// alert tier and a human-readable remaining-time label.
package deadline

import (
	"strconv"
	"time"
)

// Tier is the due-date severity bucket.
type Tier string

const (
	TierOverdue  Tier = "overdue"
	TierCritical Tier = "critical"
	TierWarning  Tier = "warning"
	TierUpcoming Tier = "upcoming"
)

// Thresholds holds the tier cutoffs in calendar days. Zero values fall back
// to the defaults; the historical per-page thresholds were inconsistent, so
// callers tune these per category instead of hard-coding.
type Thresholds struct {
	CriticalDays int `json:"critical_days" yaml:"critical_days"`
	WarningDays  int `json:"warning_days" yaml:"warning_days"`
}

// DefaultThresholds returns the normalized defaults: critical within 2 days,
// warning within 5.
func DefaultThresholds() Thresholds {
	return Thresholds{CriticalDays: 2, WarningDays: 5}
}

func (t Thresholds) orDefaults() Thresholds {
	d := DefaultThresholds()
	if t.CriticalDays > 0 {
		d.CriticalDays = t.CriticalDays
	}
	if t.WarningDays > 0 {
		d.WarningDays = t.WarningDays
	}
	return d
}

// Alert is the derived classification for a due date. It is recomputed on
// demand and never stored.
type Alert struct {
	DaysRemaining int    `json:"days_remaining"`
	Tier          Tier   `json:"tier" enum:"overdue,critical,warning,upcoming"`
	Label         string `json:"label"`
	Progress      int    `json:"progress"`
}

// Classify buckets a due date against now. Days remaining are counted at
// calendar-day granularity in the due date's location, so an item due later
// today yields 0 regardless of time of day. Pure and deterministic.
func Classify(due, now time.Time, progress int, th Thresholds) Alert {
	th = th.orDefaults()
	days := daysBetween(now, due)
	a := Alert{
		DaysRemaining: days,
		Progress:      clampProgress(progress),
		Label:         label(days),
	}
	switch {
	case days < 0:
		a.Tier = TierOverdue
	case days <= th.CriticalDays:
		a.Tier = TierCritical
	case days <= th.WarningDays:
		a.Tier = TierWarning
	default:
		a.Tier = TierUpcoming
	}
	return a
}

// daysBetween counts whole calendar days from now's date to due's date.
func daysBetween(now, due time.Time) int {
	loc := due.Location()
	now = now.In(loc)
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, loc)
	return int(dueDay.Sub(nowDay).Hours() / 24)
}

func label(days int) string {
	switch {
	case days == 0:
		return "Due today"
	case days < 0:
		return strconv.Itoa(-days) + dayWord(-days) + " overdue"
	default:
		return strconv.Itoa(days) + dayWord(days) + " remaining"
	}
}

func dayWord(n int) string {
	if n == 1 {
		return " day"
	}
	return " days"
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
