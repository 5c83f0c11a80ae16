package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at a fixed interval, optionally aligned to a
// wall-clock boundary of the same length.
type IntervalSchedule struct {
	Interval time.Duration
	Aligned  bool
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// NewAlignedSchedule fires on multiples of interval since the Unix epoch.
func NewAlignedSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval, Aligned: true}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if s.Interval <= 0 {
		return time.Time{}
	}
	if s.Aligned {
		return t.Truncate(s.Interval).Add(s.Interval)
	}
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	if s.Aligned {
		return fmt.Sprintf("@every %s (aligned)", s.Interval)
	}
	return fmt.Sprintf("@every %s", s.Interval)
}
