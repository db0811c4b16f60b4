// Package cronclock answers "when was this job last scheduled to run?"
// for cron-style recurrence expressions.
//
// Expressions use the six-field form (seconds minutes hours dom month dow).
// The five-field Jenkins-style form is accepted too: the parser treats the
// seconds field as optional, which is equivalent to prepending "0".
package cronclock

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// InvalidScheduleError reports a cron expression that failed to parse.
// It is raised at config load time; jobs carrying one are skipped, not retried.
type InvalidScheduleError struct {
	Expr string
	Err  error
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid cron schedule %q: %v", e.Expr, e.Err)
}

func (e *InvalidScheduleError) Unwrap() error { return e.Err }

// Schedule is a compiled recurrence expression.
type Schedule struct {
	expr  string
	sched cron.Schedule
}

// Compile parses expr. Errors wrap InvalidScheduleError.
func Compile(expr string) (*Schedule, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, &InvalidScheduleError{Expr: expr, Err: fmt.Errorf("empty expression")}
	}
	sched, err := parser.Parse(trimmed)
	if err != nil {
		return nil, &InvalidScheduleError{Expr: expr, Err: err}
	}
	return &Schedule{expr: trimmed, sched: sched}, nil
}

// Expression returns the original (trimmed) expression text.
func (s *Schedule) Expression() string { return s.expr }

// MostRecentFiring returns the latest scheduled firing in [now-lookback, now].
// The second return is false when the recurrence produces no firing inside the
// window; callers must choose a lookback at least twice the alert threshold so
// any recurrence no sparser than the threshold is guaranteed a hit.
func (s *Schedule) MostRecentFiring(now time.Time, lookback time.Duration) (time.Time, bool) {
	if lookback <= 0 {
		return time.Time{}, false
	}

	from := now.Add(-lookback)

	// cron.Schedule.Next is strictly-after and truncates to whole seconds,
	// so step back one second to keep a firing exactly at the window start.
	// The scan can then surface a firing up to one second before the window
	// when now carries sub-second components; the Before(from) check keeps
	// the lower bound exact.
	var last time.Time
	found := false
	for t := s.sched.Next(from.Add(-time.Second)); !t.IsZero() && !t.After(now); t = s.sched.Next(t) {
		if t.Before(from) {
			continue
		}
		last = t
		found = true
	}
	return last, found
}

// Next returns the first scheduled firing strictly after t.
func (s *Schedule) Next(t time.Time) time.Time { return s.sched.Next(t) }
