package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron schedule:
// minute hour day-of-month month day-of-week.
// Examples:
//   - "55 * * * *"   - five minutes before every hour
//   - "*/30 * * * *" - every half hour
//   - "0 0 1 * *"    - first of the month at midnight
type CronExpression struct {
	raw      string
	minutes  []int
	hours    []int
	days     []int
	months   []int
	weekdays []int
}

// Common presets.
const (
	EveryHour            = "0 * * * *"
	Every30Minutes       = "*/30 * * * *"
	BeforeEveryHour      = "55 * * * *"
	FirstOfMonthMidnight = "0 0 1 * *"
)

// ParseCronExpression parses a cron expression string.
// Supports: *, */n, n, n-m, n-m/s, n,m,o
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		name     string
		dst      *[]int
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}

	for i, spec := range specs {
		values, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = values
	}

	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

// parseField expands one field into its sorted set of values.
func parseField(field string, min, max int) ([]int, error) {
	seen := make(map[int]struct{})

	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty list element in %q", field)
		}

		step := 1
		if rng, stepStr, ok := strings.Cut(part, "/"); ok {
			s, err := strconv.Atoi(stepStr)
			if err != nil || s <= 0 {
				return nil, fmt.Errorf("invalid step value: %s", stepStr)
			}
			step = s
			part = rng
		}

		start, end := min, max
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			lo, hi, _ := strings.Cut(part, "-")
			var err error
			if start, err = strconv.Atoi(lo); err != nil {
				return nil, fmt.Errorf("invalid range start: %s", lo)
			}
			if end, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("invalid range end: %s", hi)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid value: %s", part)
			}
			start = v
			if step == 1 {
				end = v
			}
		}

		if start < min || end > max || start > end {
			return nil, fmt.Errorf("value out of range [%d-%d]: %s", min, max, part)
		}
		for v := start; v <= end; v += step {
			seen[v] = struct{}{}
		}
	}

	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time,
// evaluated in the time's location. Zero if nothing matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)

	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if !contains(ce.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !contains(ce.days, t.Day()) || !contains(ce.weekdays, int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !contains(ce.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if contains(ce.minutes, t.Minute()) {
			return t
		}
		t = t.Add(time.Minute)
	}

	return time.Time{}
}

func contains(sorted []int, val int) bool {
	i := sort.SearchInts(sorted, val)
	return i < len(sorted) && sorted[i] == val
}
