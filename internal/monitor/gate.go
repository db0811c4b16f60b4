package monitor

import "time"

// Gate applies the per-job alert cooldown. A job whose verdict stays overdue
// across many ticks gets exactly one alert per cooldown window; a healthy
// tick returns the job to quiet without clearing the cooldown memory, so a
// flapping job cannot alert faster than the window allows.
type Gate struct {
	cooldown time.Duration
}

func NewGate(cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &Gate{cooldown: cooldown}
}

func (g *Gate) Cooldown() time.Duration { return g.cooldown }

// ShouldFire reports whether a new alert may go out at now, given when the
// previous alert for the job was sent (zero when none ever was).
func (g *Gate) ShouldFire(lastAlertSent, now time.Time) bool {
	return lastAlertSent.IsZero() || now.Sub(lastAlertSent) > g.cooldown
}
