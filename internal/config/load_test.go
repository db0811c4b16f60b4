package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cronwatch/pkg/logx"
)

const sampleYAML = `
jenkins:
  url: https://ci.example.com/
  username: monitor
  api_token: secret
  max_attempts: 5
monitor:
  check_interval: 30s
  alert_cooldown: 2h
  alert_on_retrieval_error: true
logging:
  level: debug
  console: true
  file:
    enabled: false
alerts:
  rate_per_sec: 2
jobs:
  - name: nightly-build
    schedule: "0 0 0 * * *"
    alert_threshold: 90m
  - name: folder/hourly-tests
    schedule: "0 * * * *"
    enabled: false
    alert_on_retrieval_error: false
  - name: discovered
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, "cronwatch.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Jenkins.URL != "https://ci.example.com/" {
		t.Fatalf("jenkins url = %q", cfg.Jenkins.URL)
	}
	if cfg.Jenkins.MaxAttemptsOrDefault() != 5 {
		t.Fatalf("max attempts = %d, want 5", cfg.Jenkins.MaxAttemptsOrDefault())
	}
	if got := cfg.Monitor.CheckIntervalOrDefault(); got != 30*time.Second {
		t.Fatalf("check interval = %v, want 30s", got)
	}
	if got := cfg.Monitor.AlertCooldownOrDefault(); got != 2*time.Hour {
		t.Fatalf("alert cooldown = %v, want 2h", got)
	}
	if len(cfg.Jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(cfg.Jobs))
	}

	nightly := cfg.Jobs[0]
	if !nightly.IsEnabled() {
		t.Fatal("enabled should default to true")
	}
	if got := nightly.AlertThresholdOrDefault(); got != 90*time.Minute {
		t.Fatalf("threshold = %v, want 90m", got)
	}

	hourly := cfg.Jobs[1]
	if hourly.IsEnabled() {
		t.Fatal("explicit enabled: false must stick")
	}
	if hourly.AlertOnRetrievalError == nil || *hourly.AlertOnRetrievalError {
		t.Fatal("per-job alert_on_retrieval_error override lost")
	}

	if cfg.Jobs[2].Schedule != "" {
		t.Fatalf("discovered job should have empty schedule, got %q", cfg.Jobs[2].Schedule)
	}
	if got := cfg.Jobs[2].AlertThresholdOrDefault(); got != DefaultAlertThreshold {
		t.Fatalf("default threshold = %v, want %v", got, DefaultAlertThreshold)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	body := `
jenkins:
  url: https://ci.example.com/
  tiemout: 30s
jobs:
  - name: x
`
	if _, err := Load(writeConfig(t, "bad.yaml", body)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsMissingJobs(t *testing.T) {
	t.Parallel()
	body := `
jenkins:
  url: https://ci.example.com/
jobs: []
`
	if _, err := Load(writeConfig(t, "empty.yaml", body)); err == nil {
		t.Fatal("expected error for empty jobs list")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Parallel()
	body := `
jenkins:
  url: https://ci.example.com/
jobs:
  - name: x
    alert_threshold: ninety minutes
`
	if _, err := Load(writeConfig(t, "dur.yaml", body)); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadRejectsDuplicateJobNames(t *testing.T) {
	t.Parallel()
	body := `
jenkins:
  url: https://ci.example.com/
jobs:
  - name: x
  - name: x
`
	if _, err := Load(writeConfig(t, "dup.yaml", body)); err == nil {
		t.Fatal("expected error for duplicate job names")
	}
}

func TestLoadAcceptsInvalidCron(t *testing.T) {
	t.Parallel()
	// An invalid cron expression is a per-job condition handled by the
	// monitor, not a config-level rejection.
	body := `
jenkins:
  url: https://ci.example.com/
jobs:
  - name: broken
    schedule: "H/5 * * * *"
`
	if _, err := Load(writeConfig(t, "cron.yaml", body)); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestManagerReloadPublishes(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "cronwatch.yaml", sampleYAML)
	m := NewManager(path, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	updated := sampleYAML + `  - name: extra-job
    schedule: "@hourly"
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload()

	select {
	case cfg := <-ch:
		if len(cfg.Jobs) != 4 {
			t.Fatalf("reloaded jobs = %d, want 4", len(cfg.Jobs))
		}
	default:
		t.Fatal("expected a published config")
	}
}

func TestManagerReloadKeepsLastGoodConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "cronwatch.yaml", sampleYAML)
	m := NewManager(path, logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte("jenkins: [broken"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload()

	cfg := m.Get()
	if cfg == nil || len(cfg.Jobs) != 3 {
		t.Fatal("bad reload must keep the previous config")
	}
}
