// Package schedule implements the calendar matcher deciding which controls
// fire on a given scheduler tick.
package schedule

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field is one calendar field expression. The grammar, matched against the
// current component value:
//
//	empty or *   always
//	N            equality
//	/N           every N (never for /0)
//	A-B          inclusive range
//	A,B,...      membership
//
// Anything else never matches. Values arrive from JSON as strings, numbers
// or null interchangeably.
type Field string

// UnmarshalJSON accepts string, number and null forms of a field.
func (f *Field) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*f = Field(asString)
		return nil
	}
	var asNumber int64
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return err
	}
	*f = Field(strconv.FormatInt(asNumber, 10))
	return nil
}

// Matches evaluates the field expression against the current value.
func (f Field) Matches(now int) bool {
	value := strings.TrimSpace(string(f))
	if value == "" || value == "*" {
		return true
	}
	if n, err := strconv.Atoi(value); err == nil {
		return now == n
	}
	if after, ok := strings.CutPrefix(value, "/"); ok {
		n, err := strconv.Atoi(after)
		if err != nil || n == 0 {
			return false
		}
		return now%n == 0
	}
	if lo, hi, ok := cutRange(value); ok {
		return lo <= now && now <= hi
	}
	if parts := strings.Split(value, ","); len(parts) >= 2 {
		for _, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return false
			}
			if n == now {
				return true
			}
		}
		return false
	}
	return false
}

func cutRange(value string) (int, int, bool) {
	a, b, ok := strings.Cut(value, "-")
	if !ok {
		return 0, 0, false
	}
	lo, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// Record is the parsed schedule of one control.
type Record struct {
	Mday Field `json:"mday"`
	Wday Field `json:"wday"`
	Hour Field `json:"hour"`
	Min  Field `json:"min"`
	Sec  Field `json:"sec"`
}

// Matches reports whether all five fields match the moment. Weekdays use
// 1=Monday through 7=Sunday.
func (r Record) Matches(moment time.Time) bool {
	return r.Mday.Matches(moment.Day()) &&
		r.Wday.Matches(Weekday(moment)) &&
		r.Hour.Matches(moment.Hour()) &&
		r.Min.Matches(moment.Minute()) &&
		r.Sec.Matches(moment.Second())
}

// Weekday converts to the Monday=1 .. Sunday=7 convention.
func Weekday(moment time.Time) int {
	return (int(moment.Weekday())+6)%7 + 1
}

// Entry pairs a control name with its schedule and activity flag.
type Entry struct {
	Name   string
	Active bool
	Record Record
}

// Snapshot is the in-memory schedule map walked once per tick.
type Snapshot map[string]Entry

// ParseRecord reads a schedule_config JSON document. A missing document
// yields an always-empty record that never needs special casing: all
// fields stay blank and therefore always match.
func ParseRecord(raw json.RawMessage) (Record, error) {
	var record Record
	if len(raw) == 0 {
		return record, nil
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Due returns the sorted names of active entries matching the moment.
func (s Snapshot) Due(moment time.Time) []string {
	var names []string
	for name, entry := range s {
		if !entry.Active {
			continue
		}
		if entry.Record.Matches(moment) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
