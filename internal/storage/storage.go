// Package storage keeps the on-disk alert journal. The journal is an audit
// trail of every alert the notifier attempted; nothing on the alerting path
// reads it back.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cronwatch/internal/alert"
	"cronwatch/internal/config"
	"cronwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultBusyTimeout = 5 * time.Second

// Journal appends alert delivery records to a sqlite file. It satisfies
// alert.Journal.
type Journal struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the journal from config. A nil cfg means journaling is
// disabled and Open returns (nil, nil); the notifier treats a nil journal as
// a no-op.
func Open(cfg *config.StorageConfig, log logx.Logger) (*Journal, error) {
	if cfg == nil {
		return nil, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver != "sqlite" {
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	j := &Journal{db: db, log: log}
	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, string(b))
	return err
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// AppendAlert records one delivery attempt. sink names the channel the event
// went to ("email", "telegram", or "log" when no sinks are configured).
func (j *Journal) AppendAlert(ctx context.Context, ev alert.Event, sink string, delivered bool) error {
	if j == nil || j.db == nil {
		return nil
	}
	raised := ev.RaisedAt
	if raised.IsZero() {
		raised = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO alerts(raised_at, sent_at, job, subject, body, sink, delivered)
		 VALUES(?,?,?,?,?,?,?)`,
		raised.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		ev.JobName, ev.Subject, ev.Body, sink, delivered,
	)
	return err
}
