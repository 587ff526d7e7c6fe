package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	demo        TEXT NOT NULL,
	backend     TEXT NOT NULL,
	shots       INTEGER NOT NULL,
	counts      TEXT NOT NULL,
	verdict     TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_demo_created ON runs (demo, created_at DESC);
`

// Run is one recorded demo execution.
type Run struct {
	ID        uuid.UUID
	Demo      string
	Backend   string
	Shots     int
	Counts    backend.Counts
	Verdict   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Store keeps run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database at path if needed and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create history directory")
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open history")
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping history")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate history")
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Record stores run, filling in the id and timestamp when unset.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return errors.Wrap(err, "encode counts")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, demo, backend, shots, counts, verdict, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Demo, run.Backend, run.Shots, string(counts),
		run.Verdict, run.Duration.Milliseconds(), run.CreatedAt,
	)
	return errors.Wrapf(err, "record run %s", run.ID)
}

// List returns the latest runs, newest first. An empty demo matches all.
func (s *Store) List(ctx context.Context, demo string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, demo, backend, shots, counts, verdict, duration_ms, created_at
		 FROM runs
		 WHERE ? = '' OR demo = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		demo, demo, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run      Run
			id       string
			counts   string
			duration int64
		)
		if err := rows.Scan(&id, &run.Demo, &run.Backend, &run.Shots, &counts,
			&run.Verdict, &duration, &run.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "run id %q", id)
		}
		if err := json.Unmarshal([]byte(counts), &run.Counts); err != nil {
			return nil, errors.Wrapf(err, "counts of run %s", id)
		}
		run.Duration = time.Duration(duration) * time.Millisecond
		out = append(out, run)
	}
	return out, errors.Wrap(rows.Err(), "iterate runs")
}
