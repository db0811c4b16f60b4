package monitor

import (
	"testing"
	"time"
)

func TestGateOneAlertPerWindow(t *testing.T) {
	t.Parallel()
	g := NewGate(time.Hour)
	start := time.Date(2025, 12, 7, 2, 0, 0, 0, time.UTC)

	// A job stuck overdue, checked every minute for three hours, must fire
	// on the first tick and then exactly once per elapsed cooldown window.
	var lastSent time.Time
	fired := 0
	for tick := 0; tick <= 180; tick++ {
		now := start.Add(time.Duration(tick) * time.Minute)
		if g.ShouldFire(lastSent, now) {
			lastSent = now
			fired++
		}
	}
	if fired != 3 {
		t.Fatalf("fired %d times over 3h with 1h cooldown, want 3", fired)
	}
}

func TestGateFirstAlertAlwaysFires(t *testing.T) {
	t.Parallel()
	g := NewGate(time.Hour)
	if !g.ShouldFire(time.Time{}, time.Now()) {
		t.Fatal("zero lastSent must fire")
	}
}

func TestGateDefaultCooldown(t *testing.T) {
	t.Parallel()
	if got := NewGate(0).Cooldown(); got != time.Hour {
		t.Fatalf("default cooldown = %s, want 1h", got)
	}
}

func TestGateMemorySurvivesHealthyTicks(t *testing.T) {
	t.Parallel()
	g := NewGate(time.Hour)
	start := time.Date(2025, 12, 7, 2, 0, 0, 0, time.UTC)

	lastSent := start // alerted at start

	// The job recovers and goes overdue again 20 minutes later. The earlier
	// alert still suppresses the new one until the window passes.
	if g.ShouldFire(lastSent, start.Add(20*time.Minute)) {
		t.Fatal("alert 20m after the previous one must be suppressed")
	}
	if !g.ShouldFire(lastSent, start.Add(61*time.Minute)) {
		t.Fatal("alert after the window passed must fire")
	}
}
