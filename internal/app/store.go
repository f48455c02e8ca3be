package app

import (
	"context"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
	"github.com/AdielsonMedeiros/POC-PDF/internal/repository"
	"github.com/AdielsonMedeiros/POC-PDF/internal/template"
)

// AdminStore is the template admin surface handed to the HTTP server
// and the admin CLI. Delete routes through the cache so the associated
// embedding is removed with the template.
type AdminStore struct {
	repo  repository.TemplateRepository
	cache *template.Cache
}

func NewAdminStore(repo repository.TemplateRepository, cache *template.Cache) *AdminStore {
	return &AdminStore{repo: repo, cache: cache}
}

func (s *AdminStore) List(ctx context.Context) ([]entity.Template, error) {
	return s.repo.List(ctx)
}

func (s *AdminStore) Load(ctx context.Context, fingerprint string) (*entity.Template, error) {
	return s.repo.Load(ctx, fingerprint)
}

func (s *AdminStore) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *AdminStore) Delete(ctx context.Context, fingerprint string) (bool, error) {
	if s.cache != nil {
		return s.cache.Delete(ctx, fingerprint)
	}
	return s.repo.Delete(ctx, fingerprint)
}
