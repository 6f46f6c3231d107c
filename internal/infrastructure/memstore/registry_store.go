package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/catalog"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
)

// ParticipantRepository is an in-memory participant.Repository.
type ParticipantRepository struct {
	mu       sync.RWMutex
	contexts map[string]*participant.Context
}

func NewParticipantRepository() *ParticipantRepository {
	return &ParticipantRepository{contexts: make(map[string]*participant.Context)}
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*participant.Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pc, ok := r.contexts[id]
	if !ok {
		return nil, nil
	}
	c := *pc
	return &c, nil
}

func (r *ParticipantRepository) Create(ctx context.Context, pc *participant.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *pc
	r.contexts[pc.ID] = &c
	return nil
}

func (r *ParticipantRepository) List(ctx context.Context, limit, offset int) ([]*participant.Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*participant.Context, 0, len(r.contexts))
	for _, pc := range r.contexts {
		c := *pc
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, limit, offset), nil
}

// DefinitionRepository is an in-memory catalog.Repository.
type DefinitionRepository struct {
	mu          sync.RWMutex
	definitions map[string]*catalog.Definition
}

func NewDefinitionRepository() *DefinitionRepository {
	return &DefinitionRepository{definitions: make(map[string]*catalog.Definition)}
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*catalog.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[id]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (r *DefinitionRepository) Create(ctx context.Context, d *catalog.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *d
	r.definitions[d.ID] = &c
	return nil
}

func (r *DefinitionRepository) List(ctx context.Context, limit, offset int) ([]*catalog.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*catalog.Definition, 0, len(r.definitions))
	for _, d := range r.definitions {
		c := *d
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, limit, offset), nil
}
