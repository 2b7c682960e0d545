// Package store persists embedded fragments in SQLite and answers
// nearest-neighbour queries over them.
//
// The default build uses the pure-Go modernc driver and ranks with a Go
// cosine function registered on the connection. Building with
// -tags sqlite_vec (cgo) switches to mattn/go-sqlite3 with the sqlite-vec
// extension. Both store vectors as little-endian float32 blobs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"pbjrag/internal/blessing"
	"pbjrag/internal/logging"
	"pbjrag/internal/types"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the dimension the store was first populated with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// Filters narrows a search. Zero values match everything.
type Filters struct {
	Tier   blessing.Tier
	Phase  blessing.Phase
	File   string
	Kind   string
	MinEPC float64
}

// Result is one search hit. Similarity is the cosine similarity to the query.
type Result struct {
	Fragment   types.Fragment `json:"fragment"`
	Similarity float64        `json:"similarity"`
}

// FragmentStore is a SQLite-backed vector store for fragments. Safe for
// concurrent use; writes are serialized.
type FragmentStore struct {
	db   *sql.DB
	path string

	mu     sync.RWMutex
	dims   int
	closed bool
}

// Open creates or opens the store at path. ":memory:" is accepted.
func Open(path string) (*FragmentStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening fragment store at %s (backend=%s)", path, backendName)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("%s failed: %v", pragma, err)
		}
	}

	s := &FragmentStore{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadDimensions(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("Fragment store ready: dims=%d", s.dims)
	return s, nil
}

func (s *FragmentStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS fragments (
			id TEXT PRIMARY KEY,
			file TEXT NOT NULL,
			kind TEXT NOT NULL,
			tier TEXT NOT NULL,
			phase TEXT NOT NULL,
			epc REAL NOT NULL,
			content TEXT NOT NULL,
			payload TEXT NOT NULL,
			embedding BLOB NOT NULL,
			indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_file ON fragments(file)`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_tier ON fragments(tier)`,
		`CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return RunMigrations(s.db)
}

func (s *FragmentStore) loadDimensions() error {
	var v string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = 'dimensions'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store metadata: %w", err)
	}
	d, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("corrupt dimensions %q: %w", v, err)
	}
	s.dims = d
	return nil
}

// Backend names the SQLite driver in use.
func (s *FragmentStore) Backend() string { return backendName }

// Dimensions returns the pinned vector size, 0 while the store is empty.
func (s *FragmentStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// IndexFragments upserts fragments with their embeddings in one transaction.
// The first indexed vector pins the store's dimension.
func (s *FragmentStore) IndexFragments(ctx context.Context, fragments []types.Fragment, embeddings [][]float32) error {
	if len(fragments) != len(embeddings) {
		return fmt.Errorf("got %d fragments but %d embeddings", len(fragments), len(embeddings))
	}
	if len(fragments) == 0 {
		return nil
	}

	timer := logging.StartTimer(logging.CategoryStore, "IndexFragments")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	dims := s.dims
	if dims == 0 {
		dims = len(embeddings[0])
	}
	for i, e := range embeddings {
		if len(e) != dims || dims == 0 {
			return fmt.Errorf("fragment %s has %d dimensions, store has %d: %w", fragments[i].ID(), len(e), dims, ErrDimensionMismatch)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO fragments
		(id, file, kind, tier, phase, epc, content, payload, embedding, start_line, end_line, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range fragments {
		payload, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to encode fragment %s: %w", f.ID(), err)
		}
		blob, err := encodeVector(embeddings[i])
		if err != nil {
			return fmt.Errorf("failed to encode embedding for %s: %w", f.ID(), err)
		}
		if _, err := stmt.ExecContext(ctx,
			f.ID(), f.Chunk.File, string(f.Chunk.Kind), string(f.Blessing.Tier), string(f.Blessing.Phase),
			f.Blessing.EPC, f.Chunk.Content, string(payload), blob,
			f.Chunk.StartLine, f.Chunk.EndLine, ComputeContentHash(f.Chunk.Content),
		); err != nil {
			return fmt.Errorf("failed to insert fragment %s: %w", f.ID(), err)
		}
	}

	if s.dims == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO store_meta (key, value) VALUES ('dimensions', ?)`, strconv.Itoa(dims)); err != nil {
			return fmt.Errorf("failed to record dimensions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.dims = dims
	logging.StoreDebug("Indexed %d fragments (dims=%d)", len(fragments), dims)
	return nil
}

// Search returns the topK fragments closest to query that pass filters,
// best first, ties by ascending ID.
func (s *FragmentStore) Search(ctx context.Context, query []float32, filters Filters, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.dims == 0 {
		return []Result{}, nil
	}
	if len(query) != s.dims {
		return nil, fmt.Errorf("query has %d dimensions, store has %d: %w", len(query), s.dims, ErrDimensionMismatch)
	}

	blob, err := encodeVector(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	var where []string
	args := []interface{}{blob}
	if filters.Tier != "" {
		where = append(where, "tier = ?")
		args = append(args, string(filters.Tier))
	}
	if filters.Phase != "" {
		where = append(where, "phase = ?")
		args = append(args, string(filters.Phase))
	}
	if filters.File != "" {
		where = append(where, "file = ?")
		args = append(args, filters.File)
	}
	if filters.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filters.Kind)
	}
	if filters.MinEPC > 0 {
		where = append(where, "epc >= ?")
		args = append(args, filters.MinEPC)
	}

	q := fmt.Sprintf("SELECT payload, %s(embedding, ?) AS distance FROM fragments", distanceFunc)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY distance ASC, id ASC LIMIT ?"
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, topK)
	for rows.Next() {
		var payload string
		var distance float64
		if err := rows.Scan(&payload, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var f types.Fragment
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			return nil, fmt.Errorf("failed to decode fragment: %w", err)
		}
		results = append(results, Result{Fragment: f, Similarity: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search iteration failed: %w", err)
	}
	logging.StoreDebug("Search returned %d results (topK=%d)", len(results), topK)
	return results, nil
}

// Embedding returns the stored vector for a fragment ID.
func (s *FragmentStore) Embedding(ctx context.Context, id string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT embedding FROM fragments WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("fragment %s: %w", id, err)
	}
	return decodeVector(blob)
}

// DeleteFiles removes every fragment from the given files and returns how
// many rows were deleted.
func (s *FragmentStore) DeleteFiles(ctx context.Context, files []string) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(files)), ",")
	args := make([]interface{}, len(files))
	for i, f := range files {
		args[i] = f
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM fragments WHERE file IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete fragments: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Count returns the number of stored fragments.
func (s *FragmentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fragments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fragments: %w", err)
	}
	return n, nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *FragmentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	logging.Store("Closing fragment store %s", s.path)
	return s.db.Close()
}
