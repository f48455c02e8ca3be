package repository

import (
	"context"
	"errors"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

// ErrTemplateNotFound is returned by Load for a fingerprint with no stored
// template. A template saved with zero mappings is found, not absent.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateRepository is the read/write contract for persisted templates.
// Implementations own the stored rows; callers always receive copies.
//
// Save is an upsert: when a template already exists for the fingerprint its
// whole mapping set is replaced and name/description are only overwritten by
// non-nil values (COALESCE semantics). The returned id is stable across
// upserts and usable for embedding association.
type TemplateRepository interface {
	Save(ctx context.Context, fingerprint string, mappings []entity.FieldMapping, name, description *string) (int64, error)
	Load(ctx context.Context, fingerprint string) (*entity.Template, error)
	Exists(ctx context.Context, fingerprint string) (bool, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, fingerprint string) (bool, error)
	List(ctx context.Context) ([]entity.Template, error)
	Close() error
}

// validMappings filters out zero-area boxes before persistence.
func validMappings(mappings []entity.FieldMapping) []entity.FieldMapping {
	out := make([]entity.FieldMapping, 0, len(mappings))
	for _, m := range mappings {
		if m.Valid() {
			out = append(out, m)
		}
	}
	return out
}
