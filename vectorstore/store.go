// Package vectorstore is an isolated, in-memory sqlite-vec index. Each Store
// owns a private database that disappears when the Store is closed.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the store's dimension.
	ErrDimensionMismatch = errors.New("vectorstore: embedding dimension mismatch")

	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("vectorstore: store closed")
)

// Record is one row to insert: a section and its embedding.
type Record struct {
	Label     string
	Title     string
	Content   string
	Source    string
	Metadata  map[string]string
	Embedding []float32
}

// Match is a search hit.
type Match struct {
	ID       int64             `json:"id"`
	Label    string            `json:"label"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score"`
}

// Store wraps a private in-memory SQLite database.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	name   string
	dim    int
	closed bool
}

// Open creates a fresh in-memory database with room for dim-length vectors.
func Open(ctx context.Context, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vectorstore: invalid dimension %d", dim)
	}

	// A unique name keeps concurrently open stores from sharing a cache.
	name := uuid.NewString()
	db, err := sql.Open("sqlite3", "file:"+name+"?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The database lives as long as one connection stays open.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL(dim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, name: name, dim: dim}, nil
}

// Close releases the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Dim returns the configured embedding dimension.
func (s *Store) Dim() int {
	return s.dim
}

// Name returns the database's unique name.
func (s *Store) Name() string {
	return s.name
}

// Insert adds records in one transaction and returns their row IDs in
// order. Inserts are additive; identical records are stored twice.
func (s *Store) Insert(ctx context.Context, records []Record) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	for i, r := range records {
		if len(r.Embedding) != s.dim {
			return nil, fmt.Errorf("%w: record %d has %d values, store expects %d",
				ErrDimensionMismatch, i, len(r.Embedding), s.dim)
		}
	}

	ids := make([]int64, len(records))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rowStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sections (label, title, content, source, metadata)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer rowStmt.Close()

		vecStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO vec_sections (section_id, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer vecStmt.Close()

		for i, r := range records {
			res, err := rowStmt.ExecContext(ctx, r.Label, r.Title, r.Content, r.Source, marshalMeta(r.Metadata))
			if err != nil {
				return err
			}
			ids[i], err = res.LastInsertId()
			if err != nil {
				return err
			}
			if _, err := vecStmt.ExecContext(ctx, ids[i], serializeFloat32(r.Embedding)); err != nil {
				return fmt.Errorf("inserting embedding for row %d: %w", ids[i], err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Search performs a KNN search returning up to k nearest rows, closest
// first. Ties in distance are broken by insertion order.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d values, store expects %d",
			ErrDimensionMismatch, len(query), s.dim)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.section_id, v.distance,
			s.label, s.title, s.content, s.source, s.metadata
		FROM vec_sections v
		JOIN sections s ON s.id = v.section_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		var distance float64
		var title, metadata sql.NullString
		if err := rows.Scan(&m.ID, &distance,
			&m.Label, &title, &m.Content, &m.Source, &metadata); err != nil {
			return nil, err
		}
		m.Title = title.String
		m.Metadata = unmarshalMeta(metadata.String)
		// Convert distance to similarity score (1 - distance for cosine)
		m.Score = 1.0 - distance
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// vec0 only orders by distance; equal distances go by insertion order.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_sections").Scan(&n)
	return n, err
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// marshalMeta serialises a metadata map to a JSON string.
// Returns "{}" for nil or empty maps.
func marshalMeta(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalMeta(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}
