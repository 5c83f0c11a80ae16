// Package timeutil provides calendar helpers for competition months.
// All month arithmetic happens in a single configurable location so that
// a period starting "on the 1st" means the same instant for every caller.
package timeutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var location atomic.Pointer[time.Location]

func init() {
	location.Store(time.UTC)
}

// SetLocation changes the location used for month boundaries.
// A nil location resets to UTC.
func SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	location.Store(loc)
}

// Location returns the location used for month boundaries.
func Location() *time.Location {
	return location.Load()
}

// LoadLocation resolves an IANA zone name, treating "" and "UTC" as UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock abstracts the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time in the configured location.
func (SystemClock) Now() time.Time {
	return time.Now().In(Location())
}

// FixedClock always returns the same instant. Used in tests and CLI replays.
type FixedClock struct {
	At time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return c.At
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTH BOUNDARIES
// ══════════════════════════════════════════════════════════════════════════════

// StartOfMonth returns 00:00 of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	l := t.In(Location())
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, Location())
}

// EndOfMonth returns the last nanosecond of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	la, lb := a.In(Location()), b.In(Location())
	return la.Year() == lb.Year() && la.Month() == lb.Month()
}

// MonthLayout is the "YYYY-MM" reference layout.
const MonthLayout = "2006-01"

// ParseMonth parses "YYYY-MM" into the start of that month.
func ParseMonth(value string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, strings.TrimSpace(value), Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid month %q: %w", value, err)
	}
	return t, nil
}

// FormatMonth renders t as "YYYY-MM".
func FormatMonth(t time.Time) string {
	return t.In(Location()).Format(MonthLayout)
}

// HumanMonth renders t as "January 2024".
func HumanMonth(t time.Time) string {
	return t.In(Location()).Format("January 2006")
}

// ══════════════════════════════════════════════════════════════════════════════
// CHAT TIMESTAMPS
// ══════════════════════════════════════════════════════════════════════════════

// Chat timestamp styles understood by the client.
const (
	StyleShortTime    = "t"
	StyleLongDateTime = "F"
	StyleRelative     = "R"
)

// ChatTimestamp renders a client-localized timestamp tag such as <t:1700000000:R>.
func ChatTimestamp(t time.Time, style string) string {
	if style == "" {
		return fmt.Sprintf("<t:%d>", t.Unix())
	}
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}
