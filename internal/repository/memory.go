package repository

import (
	"context"
	"sync"
	"time"

	"github.com/AdielsonMedeiros/POC-PDF/internal/entity"
)

// MemoryRepository keeps templates in process memory. It backs tests and
// zero-configuration runs; semantics mirror the SQL backends.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byFP   map[string]*entity.Template
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, byFP: make(map[string]*entity.Template)}
}

func (r *MemoryRepository) Save(_ context.Context, fingerprint string, mappings []entity.FieldMapping, name, description *string) (int64, error) {
	mappings = validMappings(mappings)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	tpl, ok := r.byFP[fingerprint]
	if !ok {
		tpl = &entity.Template{ID: r.nextID, Fingerprint: fingerprint, CreatedAt: now}
		r.nextID++
		r.byFP[fingerprint] = tpl
	}
	if name != nil {
		tpl.Name = *name
	}
	if description != nil {
		tpl.Description = *description
	}
	tpl.FieldCount = len(mappings)
	tpl.UpdatedAt = now
	tpl.Mappings = append([]entity.FieldMapping(nil), mappings...)
	return tpl.ID, nil
}

func (r *MemoryRepository) Load(_ context.Context, fingerprint string) (*entity.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.byFP[fingerprint]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	cp := *tpl
	cp.Mappings = append([]entity.FieldMapping{}, tpl.Mappings...)
	return &cp, nil
}

func (r *MemoryRepository) Exists(_ context.Context, fingerprint string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byFP[fingerprint]
	return ok, nil
}

func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byFP), nil
}

func (r *MemoryRepository) Delete(_ context.Context, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byFP[fingerprint]; !ok {
		return false, nil
	}
	delete(r.byFP, fingerprint)
	return true, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]entity.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.Template, 0, len(r.byFP))
	for _, tpl := range r.byFP {
		cp := *tpl
		cp.Mappings = append([]entity.FieldMapping{}, tpl.Mappings...)
		out = append(out, cp)
	}
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }
