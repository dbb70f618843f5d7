// Package sqlitevec persists VectorStore collections in a pure-Go SQLite
// database, modeled on a sqlite-vec-style persistence layer
// package: one table per logical store, JSON-encoded metadata, a BLOB-
// encoded float32 embedding, and brute-force cosine similarity search
// (the vec0 extension itself needs cgo, which this module avoids).
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/archon-run/archon/internal/vectorstore/embeddings"
	"github.com/archon-run/archon/pkg/models"
)

// Backend implements vectorstore.Store on top of a single SQLite file, one
// table per collection name.
type Backend struct {
	db       *sql.DB
	embedder embeddings.Provider
}

// Config configures the sqlite-backed vector store.
type Config struct {
	Path string // file path, or ":memory:"
}

// New opens (creating if needed) the sqlite-backed vector store.
func New(cfg Config, embedder embeddings.Provider) (*Backend, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitevec: open %s: %w", path, err)
	}
	b := &Backend{db: db, embedder: embedder}
	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) init() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			document TEXT NOT NULL,
			metadata TEXT,
			embedding BLOB,
			ts DATETIME NOT NULL,
			success INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (collection, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("sqlitevec: create table: %w", err)
	}
	_, err = b.db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_ts ON records(collection, ts)`)
	if err != nil {
		return fmt.Errorf("sqlitevec: create index: %w", err)
	}
	return nil
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func successOf(meta map[string]any) bool {
	if v, ok := meta["success"].(bool); ok {
		return v
	}
	return true
}

// Upsert stores (or replaces) a record by id within its collection.
func (b *Backend) Upsert(ctx context.Context, collection models.Collection, id, document string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	ts := time.Now()
	if v, ok := metadata["ts"]; ok {
		if t, ok := v.(time.Time); ok {
			ts = t
		}
	} else {
		metadata["ts"] = ts
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("sqlitevec: marshal metadata: %w", err)
	}

	var embedding []byte
	if b.embedder != nil {
		if emb, err := b.embedder.Embed(ctx, document); err == nil {
			embedding = encodeEmbedding(emb)
		}
	}

	success := 1
	if !successOf(metadata) {
		success = 0
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, document, metadata, embedding, ts, success)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document=excluded.document, metadata=excluded.metadata,
			embedding=excluded.embedding, ts=excluded.ts, success=excluded.success
	`, string(collection), id, document, string(metaJSON), embedding, ts, success)
	if err != nil {
		return fmt.Errorf("sqlitevec: upsert: %w", err)
	}
	return nil
}

type row struct {
	id        string
	document  string
	metadata  map[string]any
	embedding []float32
	ts        time.Time
}

func (b *Backend) loadCollection(ctx context.Context, collection models.Collection) ([]row, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, document, metadata, embedding, ts FROM records WHERE collection = ?`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("sqlitevec: query: %w", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		var metaJSON string
		var emb []byte
		if err := rows.Scan(&r.id, &r.document, &metaJSON, &emb, &r.ts); err != nil {
			return nil, fmt.Errorf("sqlitevec: scan: %w", err)
		}
		r.metadata = map[string]any{}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &r.metadata)
		}
		if len(emb) > 0 {
			r.embedding = decodeEmbedding(emb)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Query returns the n nearest records to text by cosine distance, or a
// substring match ranking when no embedder is configured.
func (b *Backend) Query(ctx context.Context, collection models.Collection, text string, n int) ([]QueryResult, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := b.loadCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var queryEmb []float32
	if b.embedder != nil {
		queryEmb, _ = b.embedder.Embed(ctx, text)
	}
	needle := strings.ToLower(strings.TrimSpace(text))

	results := make([]QueryResult, 0, len(rows))
	for _, r := range rows {
		dist := float32(1.0)
		if queryEmb != nil && len(r.embedding) > 0 {
			dist = cosineDistance(queryEmb, r.embedding)
		} else if queryEmb == nil && needle != "" && strings.Contains(strings.ToLower(r.document), needle) {
			dist = 0
		}
		results = append(results, QueryResult{
			ID: r.id, Document: r.document, Metadata: r.metadata, Distance: dist,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

func cosineDistance(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

// Delete removes records by id within collection.
func (b *Backend) Delete(ctx context.Context, collection models.Collection, ids []string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitevec: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("sqlitevec: prepare delete: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, string(collection), id); err != nil {
			return fmt.Errorf("sqlitevec: delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteByFilter removes records matching predicate, loading the collection
// first since SQLite has no notion of the caller's predicate function.
func (b *Backend) DeleteByFilter(ctx context.Context, collection models.Collection, predicate func(map[string]any) bool) (int, error) {
	rows, err := b.loadCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	var toDelete []string
	for _, r := range rows {
		if predicate(r.metadata) {
			toDelete = append(toDelete, r.id)
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	if err := b.Delete(ctx, collection, toDelete); err != nil {
		return 0, err
	}
	return len(toDelete), nil
}

// Count returns the number of records in collection.
func (b *Backend) Count(ctx context.Context, collection models.Collection) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, string(collection)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitevec: count: %w", err)
	}
	return n, nil
}

// CleanupOld deletes records older than maxAge, preserving successful ones
// when keepSuccessful is true.
func (b *Backend) CleanupOld(ctx context.Context, collection models.Collection, maxAge time.Duration, keepSuccessful bool) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	if keepSuccessful {
		res, err := b.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND ts < ? AND success = 0`, string(collection), cutoff)
		if err != nil {
			return 0, fmt.Errorf("sqlitevec: cleanup: %w", err)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}
	res, err := b.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND ts < ?`, string(collection), cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlitevec: cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// LimitSize prunes the oldest records in collection until at most maxCount
// remain.
func (b *Backend) LimitSize(ctx context.Context, collection models.Collection, maxCount int) (int, error) {
	count, err := b.Count(ctx, collection)
	if err != nil {
		return 0, err
	}
	if count <= maxCount {
		return 0, nil
	}
	toDelete := count - maxCount
	res, err := b.db.ExecContext(ctx, `
		DELETE FROM records WHERE rowid IN (
			SELECT rowid FROM records WHERE collection = ? ORDER BY ts ASC LIMIT ?
		)
	`, string(collection), toDelete)
	if err != nil {
		return 0, fmt.Errorf("sqlitevec: limit size: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close releases the underlying database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// QueryResult mirrors vectorstore.QueryResult without importing the parent
// package, which would create an import cycle (the parent wraps this type).
type QueryResult struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float32
}
