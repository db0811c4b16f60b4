package monitor

import (
	"errors"
	"testing"
	"time"

	"cronwatch/internal/cronclock"
	"cronwatch/internal/jenkins"
)

func mustSchedule(t *testing.T, expr string) *cronclock.Schedule {
	t.Helper()
	s, err := cronclock.Compile(expr)
	if err != nil {
		t.Fatalf("Compile(%q): %v", expr, err)
	}
	return s
}

func strptr(s string) *string { return &s }

func successAt(ts time.Time) *jenkins.BuildSnapshot {
	return &jenkins.BuildSnapshot{
		Number:    15,
		Timestamp: ts,
		Outcome:   jenkins.OutcomeSuccess,
		Result:    strptr("SUCCESS"),
	}
}

func TestEvaluateSchedule(t *testing.T) {
	t.Parallel()

	midnight := time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)
	daily := "0 0 0 * * *"

	tests := []struct {
		name  string
		expr  string
		now   time.Time
		build *jenkins.BuildSnapshot
		want  Status
	}{
		{
			// 88m since the build, 88m since the scheduled firing,
			// threshold 90m: within the allowed lag.
			name:  "ran on time, still inside threshold",
			expr:  daily,
			now:   time.Date(2025, 12, 7, 1, 28, 5, 0, time.UTC),
			build: successAt(midnight),
			want:  StatusHealthy,
		},
		{
			// Last build is from the previous midnight: 1560m old
			// against a 120m schedule age plus 90m threshold.
			name:  "missed the most recent firing",
			expr:  daily,
			now:   time.Date(2025, 12, 7, 2, 0, 0, 0, time.UTC),
			build: successAt(time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)),
			want:  StatusOverdue,
		},
		{
			// Hourly schedule, build 120m old, firing 30m ago: build age
			// equals schedule age plus threshold exactly. Overdue requires
			// strictly greater.
			name:  "exact threshold boundary is healthy",
			expr:  "0 0 * * * *",
			now:   time.Date(2025, 12, 7, 1, 30, 0, 0, time.UTC),
			build: successAt(time.Date(2025, 12, 6, 23, 30, 0, 0, time.UTC)),
			want:  StatusHealthy,
		},
		{
			name:  "one minute past the boundary is overdue",
			expr:  "0 0 * * * *",
			now:   time.Date(2025, 12, 7, 1, 30, 0, 0, time.UTC),
			build: successAt(time.Date(2025, 12, 6, 23, 29, 0, 0, time.UTC)),
			want:  StatusOverdue,
		},
		{
			name: "running build falls through to schedule check",
			expr: daily,
			now:  time.Date(2025, 12, 7, 0, 30, 0, 0, time.UTC),
			build: &jenkins.BuildSnapshot{
				Number:    16,
				Timestamp: time.Date(2025, 12, 7, 0, 0, 30, 0, time.UTC),
				Outcome:   jenkins.OutcomeRunning,
			},
			want: StatusHealthy,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := Job{Name: "nightly-build", Schedule: mustSchedule(t, tt.expr), Threshold: 90 * time.Minute}

			v, err := Evaluate(job, tt.now, tt.build)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if v.Status != tt.want {
				t.Fatalf("status = %v (%s), want %v", v.Status, v.Reason, tt.want)
			}

			// Same inputs must give the same verdict.
			again, err := Evaluate(job, tt.now, tt.build)
			if err != nil {
				t.Fatalf("Evaluate (second call): %v", err)
			}
			if again != v {
				t.Fatalf("verdict not stable: %+v then %+v", v, again)
			}
		})
	}
}

func TestEvaluateNoBuildHistory(t *testing.T) {
	t.Parallel()
	job := Job{Name: "fresh", Schedule: mustSchedule(t, "0 0 0 * * *"), Threshold: time.Hour}

	v, err := Evaluate(job, time.Now(), nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Status != StatusOverdue {
		t.Fatalf("status = %v, want overdue", v.Status)
	}
	if v.Reason != "job has no build history" {
		t.Fatalf("reason = %q", v.Reason)
	}
}

func TestEvaluateFailedBuildAlwaysOverdue(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 12, 7, 0, 5, 0, 0, time.UTC)
	job := Job{Name: "nightly-build", Schedule: mustSchedule(t, "0 0 0 * * *"), Threshold: 90 * time.Minute}

	// The build ran on schedule minutes ago; a failure result alone makes it
	// alert-worthy.
	v, err := Evaluate(job, now, &jenkins.BuildSnapshot{
		Number:    20,
		Timestamp: time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC),
		Outcome:   jenkins.OutcomeFailed,
		Result:    strptr("ABORTED"),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Status != StatusOverdue {
		t.Fatalf("status = %v, want overdue", v.Status)
	}
	if want := "last build finished with a non-success result (ABORTED)"; v.Reason != want {
		t.Fatalf("reason = %q, want %q", v.Reason, want)
	}
}

func TestEvaluateLookbackExhausted(t *testing.T) {
	t.Parallel()

	// Daily schedule but a 10m threshold: the 20m lookback window cannot
	// contain a firing at midday.
	job := Job{Name: "daily", Schedule: mustSchedule(t, "0 0 0 * * *"), Threshold: 10 * time.Minute}
	now := time.Date(2025, 12, 7, 12, 0, 0, 0, time.UTC)

	_, err := Evaluate(job, now, successAt(now.Add(-5*time.Minute)))
	if !errors.Is(err, ErrLookbackExhausted) {
		t.Fatalf("err = %v, want ErrLookbackExhausted", err)
	}
}
