// Package history keeps a local SQLite index of layout runs.
//
// Every pipeline run (cached or solved) is recorded with its map hash,
// parameters, solver outcome and timing, so "oreflow history" can list past
// work without re-solving anything.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded pipeline run.
type Run struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	MapPath     string        `json:"map_path"`
	MapHash     string        `json:"map_hash"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	MachineRate float64       `json:"max_machine_output"`
	BeltRate    float64       `json:"max_belt_output"`
	OreCounting string        `json:"ore_counting"`
	Status      string        `json:"status"`
	Objective   float64       `json:"objective"`
	Machines    int           `json:"machines"`
	Belts       int           `json:"belts"`
	Nodes       int           `json:"nodes"`
	Duration    time.Duration `json:"duration"`
	CacheHit    bool          `json:"cache_hit"`
	Error       string        `json:"error,omitempty"`
}

// Store is a SQLite-backed run index. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty history path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			map_path TEXT NOT NULL,
			map_hash TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			machine_rate REAL NOT NULL,
			belt_rate REAL NOT NULL,
			ore_counting TEXT NOT NULL,
			status TEXT NOT NULL,
			objective REAL NOT NULL,
			machines INTEGER NOT NULL,
			belts INTEGER NOT NULL,
			nodes INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			cache_hit INTEGER NOT NULL,
			error TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS runs_map_hash ON runs(map_hash);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts r. Recording the same ID twice replaces the earlier row.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs (
		id, started_at, map_path, map_hash, width, height, machine_rate, belt_rate,
		ore_counting, status, objective, machines, belts, nodes, duration_ms, cache_hit, error
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.StartedAt.UnixMilli(), r.MapPath, r.MapHash, r.Width, r.Height,
		r.MachineRate, r.BeltRate, r.OreCounting, r.Status, r.Objective,
		r.Machines, r.Belts, r.Nodes, r.Duration.Milliseconds(), boolInt(r.CacheHit), r.Error,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

const selectRuns = `SELECT id, started_at, map_path, map_hash, width, height, machine_rate, belt_rate,
	ore_counting, status, objective, machines, belts, nodes, duration_ms, cache_hit, error FROM runs`

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	q := selectRuns + ` ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the run with the given ID. The boolean is false when no such
// run exists.
func (s *Store) Get(ctx context.Context, id string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return r, true, nil
}

// Prune deletes runs that started before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		started  int64
		duration int64
		hit      int
	)
	err := sc.Scan(&r.ID, &started, &r.MapPath, &r.MapHash, &r.Width, &r.Height,
		&r.MachineRate, &r.BeltRate, &r.OreCounting, &r.Status, &r.Objective,
		&r.Machines, &r.Belts, &r.Nodes, &duration, &hit, &r.Error)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.Duration = time.Duration(duration) * time.Millisecond
	r.CacheHit = hit != 0
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
