package store

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

	"slotter/internal/resolver"
	logx "slotter/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

var (
	ErrInvalidSpan = errors.New("store: event start must precede end")
	ErrNotApplied  = errors.New("store: winner already transitioned")
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FetchPendingCandidates reads all pending rows and applies the window
// predicate in Go, so boundary semantics stay exact down to the nanosecond
// regardless of SQLite's datetime comparison rules. Rows whose timestamps do
// not parse, or whose span is inverted, are skipped and counted; one bad row
// never aborts the run.
func (s *sqliteStore) FetchPendingCandidates(ctx context.Context, win resolver.Window) ([]resolver.Event, int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_at, end_at, status FROM events WHERE status = ? ORDER BY id`,
		string(resolver.StatusPending),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		events  []resolver.Event
		skipped int
	)
	for rows.Next() {
		e, ok, err := s.scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			skipped++
			continue
		}
		if win.Covers(e) {
			events = append(events, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, skipped, nil
}

// ApplyDecision commits one group's outcome atomically: the winner's confirm
// and every loser's fail either all land or none do. All updates are guarded
// by status='pending', so a retried run never rewrites an event that already
// transitioned.
func (s *sqliteStore) ApplyDecision(ctx context.Context, d resolver.Decision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Format(time.RFC3339Nano)

	res, err := tx.ExecContext(ctx,
		`UPDATE events SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(resolver.StatusConfirmed), now, d.WinnerID, string(resolver.StatusPending),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Winner left pending since the fetch (e.g. an operator edit).
		// Abort the whole group; it re-enters the pool next run.
		return fmt.Errorf("%w: event %d", ErrNotApplied, d.WinnerID)
	}

	if len(d.LoserIDs) > 0 {
		// One batched write for all losers sharing the same outcome.
		ph := strings.TrimSuffix(strings.Repeat("?,", len(d.LoserIDs)), ",")
		args := make([]any, 0, len(d.LoserIDs)+3)
		args = append(args, string(resolver.StatusFailed), now)
		for _, id := range d.LoserIDs {
			args = append(args, id)
		}
		args = append(args, string(resolver.StatusPending))
		_, err = tx.ExecContext(ctx,
			`UPDATE events SET status = ?, updated_at = ? WHERE id IN (`+ph+`) AND status = ?`,
			args...,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) InsertEvent(ctx context.Context, title string, start, end time.Time) (resolver.Event, error) {
	if !start.Before(end) {
		return resolver.Event{}, ErrInvalidSpan
	}
	now := time.Now().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events(title, start_at, end_at, status, created_at, updated_at)
		 VALUES(?,?,?,?,?,?)`,
		strings.TrimSpace(title),
		start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano),
		string(resolver.StatusPending), now, now,
	)
	if err != nil {
		return resolver.Event{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return resolver.Event{}, err
	}
	return resolver.Event{
		ID:     id,
		Title:  strings.TrimSpace(title),
		Start:  start,
		End:    end,
		Status: resolver.StatusPending,
	}, nil
}

func (s *sqliteStore) ListEvents(ctx context.Context, win resolver.Window) ([]resolver.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_at, end_at, status FROM events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []resolver.Event
	for rows.Next() {
		e, ok, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		if ok && win.Covers(e) {
			events = append(events, e)
		}
	}
	return events, rows.Err()
}

// scanEvent decodes one row. ok=false flags a data-integrity defect
// (unparseable timestamp or inverted span); the row is logged and skipped.
func (s *sqliteStore) scanEvent(rows *sql.Rows) (resolver.Event, bool, error) {
	var (
		id               int64
		title            string
		startRaw, endRaw string
		status           string
	)
	if err := rows.Scan(&id, &title, &startRaw, &endRaw, &status); err != nil {
		return resolver.Event{}, false, err
	}

	start, err := time.Parse(time.RFC3339Nano, startRaw)
	if err != nil {
		s.log.Warn("event has unparseable start; skipping",
			logx.Int64("id", id), logx.String("start_at", startRaw), logx.Err(err))
		return resolver.Event{}, false, nil
	}
	end, err := time.Parse(time.RFC3339Nano, endRaw)
	if err != nil {
		s.log.Warn("event has unparseable end; skipping",
			logx.Int64("id", id), logx.String("end_at", endRaw), logx.Err(err))
		return resolver.Event{}, false, nil
	}
	if !start.Before(end) {
		s.log.Warn("event span is inverted; skipping",
			logx.Int64("id", id), logx.Time("start", start), logx.Time("end", end))
		return resolver.Event{}, false, nil
	}

	return resolver.Event{
		ID:     id,
		Title:  title,
		Start:  start,
		End:    end,
		Status: resolver.Status(status),
	}, true, nil
}
