// Package control turns a declarative control configuration into typed
// planning artifacts: the date window, fetch selects, case columns, rule
// and error expressions, and the temp/result table names of one run.
package control

import (
	"fmt"
	"time"

	"github.com/t3eHawk/rapo/internal/domain/model"
)

// DateTimeFormat is the textual form dates take inside generated SQL.
const DateTimeFormat = "2006-01-02 15:04:05"

// Window bounds the records a run fetches, inclusive on both ends.
type Window struct {
	From time.Time
	To   time.Time
}

// WindowFromTrigger derives the window from the scheduler moment and the
// configured period. The anchor day is the moment's day at midnight; the
// window starts period_back units before it and spans period_number units.
func WindowFromTrigger(
	moment time.Time,
	periodBack, periodNumber int,
	periodType model.PeriodType,
) (Window, error) {
	if periodNumber < 1 {
		periodNumber = 1
	}
	anchor := midnight(moment)
	switch periodType {
	case model.PeriodTypeDay, "":
		from := anchor.AddDate(0, 0, -periodBack)
		to := endOfDay(from.AddDate(0, 0, periodNumber-1))
		return Window{From: from, To: to}, nil
	case model.PeriodTypeWeek:
		from := anchor.AddDate(0, 0, -periodBack*7)
		to := endOfDay(from.AddDate(0, 0, periodNumber*7-1))
		return Window{From: from, To: to}, nil
	case model.PeriodTypeMonth:
		from := monthStart(anchor, -periodBack)
		to := monthEnd(from, periodNumber-1)
		return Window{From: from, To: to}, nil
	}
	return Window{}, fmt.Errorf("unknown period type: %q", periodType)
}

// WindowForDay spans a single calendar day.
func WindowForDay(day time.Time) Window {
	from := midnight(day)
	return Window{From: from, To: endOfDay(from)}
}

// WindowBetween uses explicit caller-supplied endpoints.
func WindowBetween(from, to time.Time) Window {
	return Window{From: from, To: to}
}

// Shift widens the bounds by whole seconds. Reconciliation applies its
// time shift to both fetch windows.
func (w Window) Shift(fromSeconds, toSeconds int) Window {
	return Window{
		From: w.From.Add(time.Duration(fromSeconds) * time.Second),
		To:   w.To.Add(time.Duration(toSeconds) * time.Second),
	}
}

// FromText renders the lower bound for SQL embedding.
func (w Window) FromText() string { return w.From.Format(DateTimeFormat) }

// ToText renders the upper bound for SQL embedding.
func (w Window) ToText() string { return w.To.Format(DateTimeFormat) }

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// monthStart walks whole calendar months from the anchor's month without
// day normalization surprises near month ends.
func monthStart(anchor time.Time, months int) time.Time {
	total := anchor.Year()*12 + int(anchor.Month()) - 1 + months
	year, month := total/12, time.Month(total%12+1)
	return time.Date(year, month, 1, 0, 0, 0, 0, anchor.Location())
}

// monthEnd is the last second of the month a given number of months after
// the one holding t.
func monthEnd(t time.Time, months int) time.Time {
	total := t.Year()*12 + int(t.Month()) - 1 + months
	year, month := total/12, time.Month(total%12+1)
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 23, 59, 59, 0, t.Location())
}
