package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// mustDuration re-parses a duration string already checked by Validate.
func mustDuration(raw string, def time.Duration) time.Duration {
	d, err := ParseDurationOrDefault("", raw, def)
	if err != nil {
		return def
	}
	return d
}

// CheckIntervalOrDefault resolves monitor.check_interval.
func (m MonitorConfig) CheckIntervalOrDefault() time.Duration {
	return mustDuration(m.CheckInterval, DefaultCheckInterval)
}

// AlertCooldownOrDefault resolves monitor.alert_cooldown.
func (m MonitorConfig) AlertCooldownOrDefault() time.Duration {
	return mustDuration(m.AlertCooldown, DefaultAlertCooldown)
}

// TimeoutOrDefault resolves jenkins.timeout.
func (c JenkinsConfig) TimeoutOrDefault() time.Duration {
	return mustDuration(c.Timeout, DefaultHTTPTimeout)
}

// RetryBaseDelayOrDefault resolves jenkins.retry_base_delay.
func (c JenkinsConfig) RetryBaseDelayOrDefault() time.Duration {
	return mustDuration(c.RetryBaseDelay, DefaultRetryBaseDelay)
}

// MaxAttemptsOrDefault resolves jenkins.max_attempts.
func (c JenkinsConfig) MaxAttemptsOrDefault() int {
	if c.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

// AlertThresholdOrDefault resolves a job's alert_threshold.
func (j JobConfig) AlertThresholdOrDefault() time.Duration {
	return mustDuration(j.AlertThreshold, DefaultAlertThreshold)
}
