// Package alert delivers alert events to the configured sinks through an
// async pipeline: queue + worker pool + rate limit + bounded retry. Delivery
// failure is logged and never propagates back into the monitoring tick.
package alert

import (
	"context"
	"time"
)

// Event is one alert to deliver. Constructed by the monitor, consumed by
// sinks; never stored beyond the optional journal.
type Event struct {
	JobName  string
	Subject  string
	Body     string
	RaisedAt time.Time
}

// Sink is a delivery target. Implementations must be safe for concurrent use.
type Sink interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// Journal records fired alerts for later inspection. Write-only: nothing in
// the alerting path ever reads it back.
type Journal interface {
	AppendAlert(ctx context.Context, ev Event, sink string, delivered bool) error
}
