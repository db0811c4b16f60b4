// Package monitor decides whether monitored jobs are running on schedule
// and turns overdue verdicts into de-duplicated alerts.
package monitor

import (
	"errors"
	"fmt"
	"time"

	"cronwatch/internal/cronclock"
	"cronwatch/internal/jenkins"
)

// ErrLookbackExhausted means the evaluator could not find a scheduled firing
// inside its lookback window, so it has no baseline to judge against. Treated
// as inability to evaluate: logged, no verdict, no alert.
var ErrLookbackExhausted = errors.New("no scheduled firing within lookback window")

// Job is a resolved job ready for evaluation.
type Job struct {
	Name                  string
	Schedule              *cronclock.Schedule
	Threshold             time.Duration
	AlertOnRetrievalError bool
}

type Status int

const (
	StatusHealthy Status = iota
	StatusOverdue
)

func (s Status) String() string {
	if s == StatusOverdue {
		return "overdue"
	}
	return "healthy"
}

// Verdict is the per-tick compliance decision. Expected is the most recent
// scheduled firing when the schedule check ran, zero otherwise.
type Verdict struct {
	Status   Status
	Reason   string
	Expected time.Time
}

// Evaluate decides whether a job is overdue given its latest observed build.
// Pure function of its arguments: the same (job, now, latest) triple always
// yields the same verdict.
//
// The timing rule allows a run to lag the moment it was *scheduled* for by up
// to the threshold. Both ages truncate to whole minutes, and the truncation
// must be identical on both sides of the comparison: the overdue boundary is
// exactly ageOfBuild > ageOfSchedule + threshold in integer minutes.
func Evaluate(job Job, now time.Time, latest *jenkins.BuildSnapshot) (Verdict, error) {
	if latest == nil {
		return Verdict{Status: StatusOverdue, Reason: "job has no build history"}, nil
	}

	// A failed run is alert-worthy even when it ran on time.
	if latest.Outcome == jenkins.OutcomeFailed {
		result := "FAILURE"
		if latest.Result != nil {
			result = *latest.Result
		}
		return Verdict{
			Status: StatusOverdue,
			Reason: fmt.Sprintf("last build finished with a non-success result (%s)", result),
		}, nil
	}

	// Running (and unknown) builds are not failure signals; fall through to
	// the schedule check.
	lookback := 2 * job.Threshold
	expected, ok := job.Schedule.MostRecentFiring(now, lookback)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: job %q, lookback %s", ErrLookbackExhausted, job.Name, lookback)
	}

	ageOfBuild := int64(now.Sub(latest.Timestamp) / time.Minute)
	ageOfSchedule := int64(now.Sub(expected) / time.Minute)
	thresholdMins := int64(job.Threshold / time.Minute)

	if ageOfBuild > ageOfSchedule+thresholdMins {
		return Verdict{
			Status: StatusOverdue,
			Reason: fmt.Sprintf("last build is %dm old; latest scheduled run was %dm ago (threshold %dm)",
				ageOfBuild, ageOfSchedule, thresholdMins),
			Expected: expected,
		}, nil
	}
	return Verdict{
		Status:   StatusHealthy,
		Reason:   "last build is within the allowed lag of its schedule",
		Expected: expected,
	}, nil
}
