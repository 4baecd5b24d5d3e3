// Package history keeps a record of finished synchronization cycles in a
// local SQLite database.
//
// The store is written by the daemon and the run command through Recorder
// and read by `reposync status`. The sync engine itself never reads it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/reposync/internal/syncer"
)

// DefaultKeep is the number of cycles retained when none is configured.
const DefaultKeep = 1000

// Entry is one recorded cycle.
//
// Cycle numbers count up across every process writing the store, so a
// cron-driven `reposync run` does not record each cycle as 1.
type Entry struct {
	ID            int64
	Cycle         uint64
	Workspace     string
	Branch        string
	StartedAt     time.Time
	FinishedAt    time.Time
	Phase         string
	Reconcile     string
	Restore       string
	Publish       string
	StashConflict bool
	LocalTip      string
	RemoteTip     string
	Error         string
}

// EntryFrom builds the entry recorded for res.
func EntryFrom(h syncer.Handle, res syncer.Result) Entry {
	e := Entry{
		Cycle:         res.Cycle,
		Workspace:     h.Path,
		Branch:        h.Branch,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		Phase:         res.Phase.String(),
		Reconcile:     res.Reconcile.String(),
		Restore:       res.Restore.String(),
		Publish:       res.Publish.String(),
		StashConflict: res.StashConflict(),
		LocalTip:      res.State.LocalTip,
		RemoteTip:     res.State.RemoteTip,
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

// OK reports whether the cycle ended DONE.
func (e Entry) OK() bool {
	return e.Phase == syncer.PhaseDone.String()
}

// Duration returns how long the cycle ran.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store is the cycle history database.
type Store struct {
	conn *sql.DB
	path string
	keep int
}

// Open opens (creating if needed) the history database at path. At most
// keep cycles are retained; keep <= 0 means DefaultKeep.
//
// The caller must Close the store.
func Open(path string, keep int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// The daemon and a concurrent status command share the file; one
	// connection per process is enough.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if keep <= 0 {
		keep = DefaultKeep
	}
	s := &Store{conn: conn, path: path, keep: keep}
	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close history database: %w", err)
	}
	s.conn = nil
	return nil
}

// Times are stored as unix milliseconds.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle INTEGER NOT NULL,
		workspace TEXT NOT NULL,
		branch TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		phase TEXT NOT NULL,
		reconcile TEXT NOT NULL,
		restore TEXT NOT NULL,
		publish TEXT NOT NULL,
		stash_conflict INTEGER NOT NULL DEFAULT 0,
		local_tip TEXT NOT NULL DEFAULT '',
		remote_tip TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// Record inserts e and prunes the oldest cycles beyond the retention limit.
// e.Cycle is ignored; the stored cycle number is one past the highest
// already recorded. It returns the new row id.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO cycles (
		cycle, workspace, branch, started_at, finished_at,
		phase, reconcile, restore, publish, stash_conflict,
		local_tip, remote_tip, error
	) VALUES (
		(SELECT COALESCE(MAX(cycle), 0) + 1 FROM cycles),
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
	)`,
		e.Workspace, e.Branch,
		e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
		e.Phase, e.Reconcile, e.Restore, e.Publish, e.StashConflict,
		e.LocalTip, e.RemoteTip, e.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record cycle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read cycle id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
	DELETE FROM cycles WHERE id NOT IN (
		SELECT id FROM cycles ORDER BY id DESC LIMIT ?
	)`, s.keep); err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// Recent returns up to limit cycles, newest first. A non-zero since
// excludes cycles started before it; limit <= 0 means no limit.
func (s *Store) Recent(ctx context.Context, limit int, since time.Time) ([]Entry, error) {
	var sinceMs int64
	if !since.IsZero() {
		sinceMs = since.UnixMilli()
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, cycle, workspace, branch, started_at, finished_at,
		phase, reconcile, restore, publish, stash_conflict,
		local_tip, remote_tip, error
	FROM cycles
	WHERE started_at >= ?
	ORDER BY id DESC
	LIMIT ?`, sinceMs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			cycle             int64
			started, finished int64
		)
		if err := rows.Scan(&e.ID, &cycle, &e.Workspace, &e.Branch, &started, &finished,
			&e.Phase, &e.Reconcile, &e.Restore, &e.Publish, &e.StashConflict,
			&e.LocalTip, &e.RemoteTip, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Cycle = uint64(cycle)
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

// Count returns the number of recorded cycles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cycles: %w", err)
	}
	return n, nil
}
