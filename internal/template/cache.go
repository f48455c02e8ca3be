// Package template is the two-tier template cache: an exact tier keyed
// by content fingerprint, and a similarity tier answered by the vector
// store. The similarity tier is strictly optional; every degradation
// there collapses into a cache miss.
package template

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/fingerprint"
	"github.com/AdielsonMedeiros/POC-PDF/internal/repository"
	"github.com/AdielsonMedeiros/POC-PDF/internal/vector"
)

// LookupTier says which tier answered a Lookup.
type LookupTier string

const (
	TierExact      LookupTier = "cache-exact"
	TierSimilarity LookupTier = "cache-similarity"
	TierMiss       LookupTier = "miss"
)

// Similarity is the subset of the vector store the cache needs.
type Similarity interface {
	SaveEmbedding(ctx context.Context, fingerprint, document string, templateID int64) bool
	FindSimilar(ctx context.Context, document string, threshold float64) (*vector.SimilarMatch, error)
	DeleteEmbedding(ctx context.Context, fingerprint string) error
}

// Cache answers template lookups by document text.
type Cache struct {
	repo       repository.TemplateRepository
	similarity Similarity
	threshold  float64
	logger     *slog.Logger
}

// NewCache builds a cache over repo. similarity may be nil, in which
// case only the exact tier answers.
func NewCache(repo repository.TemplateRepository, similarity Similarity, threshold float64, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{repo: repo, similarity: similarity, threshold: threshold, logger: logger}
}

// Lookup resolves fullText to a stored template. The exact fingerprint
// tier is consulted first, then the similarity tier. A nil template
// with TierMiss means no tier answered; similarity tier failures are
// logged and treated as misses.
func (c *Cache) Lookup(ctx context.Context, fullText string) (*entity.Template, LookupTier, error) {
	fp := fingerprint.Exact(fullText)

	tpl, err := c.repo.Load(ctx, fp)
	switch {
	case err == nil:
		c.logger.Info("cache.hit.exact", "fingerprint", fp, "fields", tpl.FieldCount)
		return tpl, TierExact, nil
	case !errors.Is(err, repository.ErrTemplateNotFound):
		return nil, TierMiss, err
	}

	if c.similarity == nil {
		return nil, TierMiss, nil
	}

	key := fingerprint.SimilarityKey(fullText)
	match, err := c.similarity.FindSimilar(ctx, key, c.threshold)
	if err != nil {
		if !errors.Is(err, vector.ErrBackendUnavailable) {
			c.logger.Warn("cache.similarity.failed", "error", err)
		}
		return nil, TierMiss, nil
	}
	if match == nil {
		return nil, TierMiss, nil
	}

	tpl, err = c.repo.Load(ctx, match.Fingerprint)
	if err != nil {
		// embedding pointing at a deleted template is stale, drop it
		if errors.Is(err, repository.ErrTemplateNotFound) {
			c.logger.Warn("cache.similarity.stale", "fingerprint", match.Fingerprint)
			_ = c.similarity.DeleteEmbedding(ctx, match.Fingerprint)
			return nil, TierMiss, nil
		}
		return nil, TierMiss, err
	}
	c.logger.Info("cache.hit.similarity", "fingerprint", match.Fingerprint, "similarity", match.Similarity)
	return tpl, TierSimilarity, nil
}

// Store persists mappings under fullText's exact fingerprint, then
// best-effort indexes the document in the similarity tier.
func (c *Cache) Store(ctx context.Context, fullText string, mappings []entity.FieldMapping, name, description *string) (string, error) {
	fp := fingerprint.Exact(fullText)
	id, err := c.repo.Save(ctx, fp, mappings, name, description)
	if err != nil {
		return "", err
	}
	c.logger.Info("cache.store.ok", "fingerprint", fp, "fields", len(mappings))

	if c.similarity != nil {
		c.similarity.SaveEmbedding(ctx, fp, fingerprint.SimilarityKey(fullText), id)
	}
	return fp, nil
}

// LookupExact resolves an already-computed fingerprint through the
// exact tier only. Documents with no extractable text are keyed by a
// fingerprint of their raw bytes, which the similarity tier cannot
// serve.
func (c *Cache) LookupExact(ctx context.Context, fp string) (*entity.Template, LookupTier, error) {
	tpl, err := c.repo.Load(ctx, fp)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, TierMiss, nil
		}
		return nil, TierMiss, err
	}
	c.logger.Info("cache.hit.exact", "fingerprint", fp, "fields", tpl.FieldCount)
	return tpl, TierExact, nil
}

// StoreExact persists mappings under an already-computed fingerprint,
// bypassing the similarity tier.
func (c *Cache) StoreExact(ctx context.Context, fp string, mappings []entity.FieldMapping, name, description *string) error {
	_, err := c.repo.Save(ctx, fp, mappings, name, description)
	if err != nil {
		return err
	}
	c.logger.Info("cache.store.ok", "fingerprint", fp, "fields", len(mappings))
	return nil
}

// Delete removes the template for fingerprint and its embedding.
func (c *Cache) Delete(ctx context.Context, fp string) (bool, error) {
	deleted, err := c.repo.Delete(ctx, fp)
	if err != nil {
		return false, err
	}
	if deleted && c.similarity != nil {
		if err := c.similarity.DeleteEmbedding(ctx, fp); err != nil {
			c.logger.Warn("cache.delete.embedding_failed", "fingerprint", fp, "error", err)
		}
	}
	return deleted, nil
}
