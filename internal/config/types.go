// Package config loads and watches the cronwatch configuration file.
//
// Config files are YAML (or JSON); YAML is coerced to JSON so both formats
// share one strict decoder that rejects unknown fields. All durations are Go
// duration strings (e.g. "500ms", "90m", "1h").
package config

import "time"

type Config struct {
	Jenkins JenkinsConfig  `json:"jenkins" validate:"required"`
	Monitor MonitorConfig  `json:"monitor"`
	Logging LoggingConfig  `json:"logging"`
	Alerts  AlertsConfig   `json:"alerts"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Pprof   PprofConfig    `json:"pprof"`
	Jobs    []JobConfig    `json:"jobs" validate:"min=1,dive"`
}

// PprofConfig controls the optional debug HTTP listener. Off by default and
// bound to loopback; it can be toggled by a config reload without a restart.
type PprofConfig struct {
	Enabled              bool   `json:"enabled"`
	Address              string `json:"address,omitempty"` // default "127.0.0.1:6060"
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
}

// JenkinsConfig points at the upstream job API.
type JenkinsConfig struct {
	URL      string `json:"url" validate:"required,url"`
	Username string `json:"username,omitempty"`
	APIToken string `json:"api_token,omitempty"`

	Timeout string `json:"timeout,omitempty"` // default "30s"
	// MaxAttempts bounds per-request retries, first attempt included.
	MaxAttempts    int    `json:"max_attempts,omitempty" validate:"omitempty,min=1"` // default 3
	RetryBaseDelay string `json:"retry_base_delay,omitempty"`                        // default "500ms"
}

// MonitorConfig controls the check loop and alert policy defaults.
type MonitorConfig struct {
	CheckInterval string `json:"check_interval,omitempty"` // default "1m"
	AlertCooldown string `json:"alert_cooldown,omitempty"` // default "1h"
	// AlertOnRetrievalError is the global default; jobs may override it.
	AlertOnRetrievalError bool `json:"alert_on_retrieval_error"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// AlertsConfig controls the async alert pipeline and its sinks. When no sink
// is configured, fired alerts are logged instead of delivered.
type AlertsConfig struct {
	Workers    int `json:"workers,omitempty" validate:"omitempty,min=1"`
	QueueSize  int `json:"queue_size,omitempty" validate:"omitempty,min=1"`
	RatePerSec int `json:"rate_per_sec,omitempty" validate:"omitempty,min=1"`

	RetryMax      int    `json:"retry_max,omitempty" validate:"omitempty,min=0"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`

	Email    *EmailConfig    `json:"email,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// EmailConfig configures the SendGrid sink.
type EmailConfig struct {
	APIKey   string   `json:"api_key" validate:"required"`
	From     string   `json:"from" validate:"required,email"`
	FromName string   `json:"from_name,omitempty"`
	To       []string `json:"to" validate:"min=1,dive,email"`
}

// TelegramConfig configures the Telegram sink.
type TelegramConfig struct {
	Token  string `json:"token" validate:"required"`
	ChatID int64  `json:"chat_id" validate:"required"`
}

// StorageConfig controls the optional sqlite alert journal.
type StorageConfig struct {
	Driver      string `json:"driver" validate:"required,oneof=sqlite"`
	Path        string `json:"path" validate:"required"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// JobConfig declares one monitored job.
type JobConfig struct {
	Name string `json:"name" validate:"required"`
	// Schedule is a cron expression (5 or 6 fields). When empty, the monitor
	// tries to discover it from the job's config.xml.
	Schedule string `json:"schedule,omitempty"`
	// AlertThreshold is how far a run may lag its scheduled time before the
	// job counts as overdue. Default "60m".
	AlertThreshold string `json:"alert_threshold,omitempty"`
	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty"`
	// AlertOnRetrievalError overrides monitor.alert_on_retrieval_error.
	AlertOnRetrievalError *bool `json:"alert_on_retrieval_error,omitempty"`
}

// IsEnabled resolves the tri-state Enabled flag.
func (j JobConfig) IsEnabled() bool { return j.Enabled == nil || *j.Enabled }

// Defaults used when the corresponding config field is omitted.
const (
	DefaultCheckInterval  = time.Minute
	DefaultAlertCooldown  = time.Hour
	DefaultAlertThreshold = 60 * time.Minute
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
)
