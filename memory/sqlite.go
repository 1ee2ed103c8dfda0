package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tanishra/smartinfo/core"
)

// ErrClosed is returned by a persister used after Close.
var ErrClosed = errors.New("memory database is closed")

// SQLitePersister stores turns in a sqlite database, one row per turn.
type SQLitePersister struct {
	path string

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

var _ Persister = (*SQLitePersister)(nil)

// NewSQLitePersister creates a persister for the database at path. Use
// ":memory:" for an ephemeral database.
func NewSQLitePersister(path string) *SQLitePersister {
	return &SQLitePersister{path: path}
}

// Init opens the database and creates the schema. It is idempotent.
func (p *SQLitePersister) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", p.path)
	if err != nil {
		return err
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}

	schema := `
CREATE TABLE IF NOT EXISTS turns (
  turn_id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  query TEXT NOT NULL,
  response TEXT NOT NULL,
  created_unix_nano INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, turn_id);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	p.db = db
	return nil
}

func (p *SQLitePersister) ensureDB(ctx context.Context) (*sql.DB, error) {
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, ErrClosed
	}
	return p.db, nil
}

// Load returns up to limit most recent turns for the session in chronological order.
func (p *SQLitePersister) Load(ctx context.Context, sessionID string, limit int) ([]core.Turn, error) {
	db, err := p.ensureDB(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(
		ctx,
		`SELECT query, response, created_unix_nano FROM (
		   SELECT turn_id, query, response, created_unix_nano FROM turns
		   WHERE session_id = ? ORDER BY turn_id DESC LIMIT ?
		 ) ORDER BY turn_id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var (
			t  core.Turn
			ns int64
		)
		if err := rows.Scan(&t.Query, &t.Response, &ns); err != nil {
			return nil, err
		}
		t.Timestamp = time.Unix(0, ns)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Append inserts a turn for the session.
func (p *SQLitePersister) Append(ctx context.Context, sessionID string, turn core.Turn) error {
	db, err := p.ensureDB(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(
		ctx,
		`INSERT INTO turns(session_id, query, response, created_unix_nano) VALUES(?, ?, ?, ?)`,
		sessionID, turn.Query, turn.Response, turn.Timestamp.UnixNano(),
	)
	return err
}

// Clear removes every turn of the session.
func (p *SQLitePersister) Clear(ctx context.Context, sessionID string) error {
	db, err := p.ensureDB(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID)
	return err
}

// Close releases the database handle.
func (p *SQLitePersister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
