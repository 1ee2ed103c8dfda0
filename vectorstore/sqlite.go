package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/embed"
)

// SQLiteStore persists entries in a sqlite database and scores them by a
// full scan. It suits indexes of up to a few hundred thousand chunks.
type SQLiteStore struct {
	path string

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a store for the database at path. Use ":memory:"
// for an ephemeral database.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema. It is idempotent.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}

	schema := `
CREATE TABLE IF NOT EXISTS index_entries (
  doc_id TEXT NOT NULL,
  chunk_index INTEGER NOT NULL,
  seq INTEGER NOT NULL,
  text TEXT NOT NULL,
  start_offset INTEGER NOT NULL,
  end_offset INTEGER NOT NULL,
  overlap INTEGER NOT NULL,
  pages TEXT NOT NULL,
  metadata TEXT NOT NULL,
  vector BLOB NOT NULL,
  PRIMARY KEY (doc_id, chunk_index)
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) ensureDB(ctx context.Context) (*sql.DB, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, docID string, entries []core.IndexEntry) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete entries of %q: %w", docID, err)
	}

	dims, err := storedDimensions(ctx, tx)
	if err != nil {
		return err
	}
	if err := checkDimensions(dims, entries); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO index_entries (doc_id, chunk_index, seq, text, start_offset, end_offset, overlap, pages, metadata, vector)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		pages, err := json.Marshal(e.Chunk.Pages)
		if err != nil {
			return err
		}
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx,
			docID, e.Chunk.Index, e.Seq, e.Chunk.Text,
			e.Chunk.Start, e.Chunk.End, e.Chunk.Overlap,
			string(pages), string(meta), encodeVector(e.Vector),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", e.Chunk.ID(), err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]core.ScoredChunk, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []core.ScoredChunk{}, nil
	}

	dims, err := storedDimensions(ctx, db)
	if err != nil {
		return nil, err
	}
	if dims != 0 && dims != len(vector) {
		return nil, dimensionError(dims, len(vector))
	}

	rows, err := db.QueryContext(ctx, `
SELECT doc_id, chunk_index, seq, text, start_offset, end_offset, overlap, pages, metadata, vector
FROM index_entries`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	hits := make([]core.ScoredChunk, 0)
	for rows.Next() {
		var (
			e           core.IndexEntry
			pages, meta string
			blob        []byte
		)
		if err := rows.Scan(
			&e.Chunk.DocumentID, &e.Chunk.Index, &e.Seq, &e.Chunk.Text,
			&e.Chunk.Start, &e.Chunk.End, &e.Chunk.Overlap,
			&pages, &meta, &blob,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(pages), &e.Chunk.Pages); err != nil {
			return nil, fmt.Errorf("decode pages of %s: %w", e.Chunk.ID(), err)
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", e.Chunk.ID(), err)
		}
		e.Vector = decodeVector(blob)

		hits = append(hits, core.ScoredChunk{
			Chunk:  e.Chunk,
			Source: source(e),
			Score:  embed.Cosine(vector, e.Vector),
			Seq:    e.Seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return Rank(hits, k), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, docID string) error {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM index_entries WHERE doc_id = ?`, docID)
	return err
}

func (s *SQLiteStore) Seq(ctx context.Context, docID string) (int64, bool, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return 0, false, err
	}

	var seq int64
	err = db.QueryRowContext(ctx, `SELECT seq FROM index_entries WHERE doc_id = ? LIMIT 1`, docID).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, err := s.ensureDB(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_entries`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// storedDimensions reports the vector width of any stored entry, or zero
// when the table is empty.
func storedDimensions(ctx context.Context, q queryRower) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT length(vector) FROM index_entries LIMIT 1`).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n / 4, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
