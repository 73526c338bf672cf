// Package history persists one record per supervisor invocation so
// operators can see past runs and exit codes after the container is gone.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	ended_at TEXT,
	web_command TEXT NOT NULL,
	bot_command TEXT NOT NULL,
	foreground TEXT NOT NULL,
	port INTEGER NOT NULL,
	primary_exit INTEGER,
	secondary_exits INTEGER NOT NULL DEFAULT 0,
	last_secondary_exit INTEGER,
	restarts INTEGER NOT NULL DEFAULT 0
);
`

// Run is one supervisor invocation.
type Run struct {
	ID                int64
	StartedAt         time.Time
	EndedAt           *time.Time
	WebCommand        string
	BotCommand        string
	Foreground        string
	Port              int
	PrimaryExit       *int
	SecondaryExits    int
	LastSecondaryExit *int
	Restarts          int
}

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin records the start of a run and returns its ID.
func (s *Store) Begin(ctx context.Context, webCmd, botCmd []string, foreground string, port int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, web_command, bot_command, foreground, port) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		strings.Join(webCmd, " "),
		strings.Join(botCmd, " "),
		foreground,
		port,
	)
	if err != nil {
		return 0, fmt.Errorf("recording run start: %w", err)
	}
	return res.LastInsertId()
}

// RecordSecondaryExit bumps the secondary exit counter and stores the code.
func (s *Store) RecordSecondaryExit(ctx context.Context, id int64, exitCode int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET secondary_exits = secondary_exits + 1, last_secondary_exit = ? WHERE id = ?`,
		exitCode, id)
	return err
}

// RecordRestart bumps the restart counter.
func (s *Store) RecordRestart(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET restarts = restarts + 1 WHERE id = ?`, id)
	return err
}

// Finish records the primary's exit code and the end time.
func (s *Store) Finish(ctx context.Context, id int64, primaryExit int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET primary_exit = ?, ended_at = ? WHERE id = ?`,
		primaryExit, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, web_command, bot_command, foreground, port,
		        primary_exit, secondary_exits, last_secondary_exit, restarts
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			startedAt string
			endedAt   sql.NullString
			primary   sql.NullInt64
			lastSec   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &startedAt, &endedAt, &r.WebCommand, &r.BotCommand,
			&r.Foreground, &r.Port, &primary, &r.SecondaryExits, &lastSec, &r.Restarts); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if endedAt.Valid {
			t, err := time.Parse(time.RFC3339, endedAt.String)
			if err == nil {
				r.EndedAt = &t
			}
		}
		if primary.Valid {
			v := int(primary.Int64)
			r.PrimaryExit = &v
		}
		if lastSec.Valid {
			v := int(lastSec.Int64)
			r.LastSecondaryExit = &v
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
