package monitor

import (
	"fmt"
	"strings"
	"time"

	"cronwatch/internal/alert"
	"cronwatch/internal/jenkins"
)

const alertTimeLayout = "2006-01-02 15:04:05 MST"

// overdueEvent renders an overdue verdict into a human-readable alert.
func overdueEvent(baseURL string, job Job, snap *jenkins.BuildSnapshot, verdict Verdict, now time.Time) alert.Event {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\n", job.Name)
	fmt.Fprintf(&b, "Status: %s\n\n", verdict.Reason)

	if job.Schedule != nil {
		fmt.Fprintf(&b, "Schedule: %s\n", job.Schedule.Expression())
	}
	if !verdict.Expected.IsZero() {
		fmt.Fprintf(&b, "Last expected run: %s\n", verdict.Expected.UTC().Format(alertTimeLayout))
	}
	if snap != nil {
		fmt.Fprintf(&b, "Last build: #%d at %s (%s)\n",
			snap.Number, snap.Timestamp.UTC().Format(alertTimeLayout), snapshotResult(snap))
		fmt.Fprintf(&b, "Time since last build: %dm\n", int64(now.Sub(snap.Timestamp)/time.Minute))
	} else {
		b.WriteString("Last build: none\n")
	}
	fmt.Fprintf(&b, "Alert threshold: %dm\n\n", int64(job.Threshold/time.Minute))

	fmt.Fprintf(&b, "Job URL: %s\n", jenkins.JobPageURL(baseURL, job.Name))

	return alert.Event{
		JobName: job.Name,
		Subject: fmt.Sprintf("[cronwatch] job %q is overdue", job.Name),
		Body:    b.String(),
	}
}

func snapshotResult(snap *jenkins.BuildSnapshot) string {
	if snap.Result != nil && *snap.Result != "" {
		return *snap.Result
	}
	return snap.Outcome.String()
}

// retrievalErrorEvent renders a failed check into an alert for jobs that
// opted in to alert_on_retrieval_error.
func retrievalErrorEvent(baseURL string, job Job, cause error, now time.Time) alert.Event {
	var b strings.Builder
	fmt.Fprintf(&b, "Job: %s\n", job.Name)
	fmt.Fprintf(&b, "Status: could not retrieve job state\n\n")
	fmt.Fprintf(&b, "Error: %v\n", cause)
	fmt.Fprintf(&b, "Checked at: %s\n\n", now.UTC().Format(alertTimeLayout))
	fmt.Fprintf(&b, "Job URL: %s\n", jenkins.JobPageURL(baseURL, job.Name))

	return alert.Event{
		JobName: job.Name,
		Subject: fmt.Sprintf("[cronwatch] cannot check job %q", job.Name),
		Body:    b.String(),
	}
}
