// Package vector persists document embeddings and answers nearest
// neighbor queries over them. The index is brute-force: every stored
// vector is scored against the query, which is fine at the scale of a
// per-installation template catalog.
package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ErrBackendUnavailable reports that the similarity tier cannot answer
// at all (no embedder, no storage). Callers that treat similarity as
// optional should collapse it to a plain miss.
var ErrBackendUnavailable = errors.New("vector: backend unavailable")

// Embedder turns a document into a vector. Available reports whether
// the backend is usable at all, so a store with no credentials can
// degrade instead of erroring on every call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Available() bool
}

// SimilarMatch is a nearest neighbor above the caller's threshold.
type SimilarMatch struct {
	Fingerprint string
	TemplateID  int64
	Similarity  float64
}

const embeddingSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	fingerprint TEXT PRIMARY KEY,
	document    TEXT NOT NULL,
	template_id INTEGER NOT NULL,
	embedding   BLOB NOT NULL,
	created_at  TIMESTAMP NOT NULL
);`

// Store keeps one embedding per template fingerprint in SQLite.
type Store struct {
	db       *sql.DB
	embedder Embedder
	logger   *slog.Logger
}

// NewStore prepares the embeddings table on db. A nil db or embedder
// yields a store whose every lookup reports ErrBackendUnavailable.
func NewStore(ctx context.Context, db *sql.DB, embedder Embedder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, embedder: embedder, logger: logger}
	if db != nil {
		if _, err := db.ExecContext(ctx, embeddingSchema); err != nil {
			return nil, fmt.Errorf("create embeddings table: %w", err)
		}
	}
	return s, nil
}

func (s *Store) available() bool {
	return s.db != nil && s.embedder != nil && s.embedder.Available()
}

// SaveEmbedding embeds document and upserts it under fingerprint.
// It is best-effort: when the backend is unavailable or the embedding
// call fails it reports false without an error, so template persistence
// never depends on the similarity tier.
func (s *Store) SaveEmbedding(ctx context.Context, fingerprint, document string, templateID int64) bool {
	if !s.available() {
		s.logger.Debug("vector.save.skipped", "fingerprint", fingerprint)
		return false
	}
	vec, err := s.embedder.Embed(ctx, document)
	if err != nil {
		s.logger.Warn("vector.save.embed_failed", "fingerprint", fingerprint, "error", err)
		return false
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embeddings (fingerprint, document, template_id, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			document = excluded.document,
			template_id = excluded.template_id,
			embedding = excluded.embedding`,
		fingerprint, document, templateID, encodeVector(vec), time.Now().UTC())
	if err != nil {
		s.logger.Warn("vector.save.store_failed", "fingerprint", fingerprint, "error", err)
		return false
	}
	s.logger.Debug("vector.save.ok", "fingerprint", fingerprint, "dims", len(vec))
	return true
}

// FindSimilar embeds document and returns the nearest stored neighbor
// whose similarity reaches threshold, or nil when none does.
// Similarity is 1/(1+d) with d the Euclidean distance.
func (s *Store) FindSimilar(ctx context.Context, document string, threshold float64) (*SimilarMatch, error) {
	if !s.available() {
		return nil, ErrBackendUnavailable
	}
	query, err := s.embedder.Embed(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint, template_id, embedding FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	defer rows.Close()

	var best *SimilarMatch
	for rows.Next() {
		var fp string
		var templateID int64
		var blob []byte
		if err := rows.Scan(&fp, &templateID, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			s.logger.Warn("vector.search.bad_row", "fingerprint", fp, "error", err)
			continue
		}
		sim := similarity(query, vec)
		if best == nil || sim > best.Similarity {
			best = &SimilarMatch{Fingerprint: fp, TemplateID: templateID, Similarity: sim}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}

	if best == nil || best.Similarity < threshold {
		return nil, nil
	}
	return best, nil
}

// DeleteEmbedding removes the embedding for fingerprint, if any.
func (s *Store) DeleteEmbedding(ctx context.Context, fingerprint string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// CountEmbeddings returns the number of stored embeddings.
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// similarity maps Euclidean distance into (0, 1], where 1 is identical.
func similarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return 1 / (1 + math.Sqrt(sum))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}
