package zone

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	zones map[string]*Zone
}

// NewInMemoryRepository creates a new in-memory zone repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		zones: make(map[string]*Zone),
	}
}

// Get retrieves a zone by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := r.zones[id]
	if !ok {
		return nil, ErrZoneNotFound
	}

	cpy := *z
	return &cpy, nil
}

// List retrieves every zone.
func (r *InMemoryRepository) List(_ context.Context) ([]*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zones := make([]*Zone, 0, len(r.zones))
	for _, z := range r.zones {
		cpy := *z
		zones = append(zones, &cpy)
	}
	return zones, nil
}

// Create stores a new zone.
func (r *InMemoryRepository) Create(_ context.Context, z *Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *z
	r.zones[z.ID] = &cpy
	return nil
}

// Update replaces an existing zone.
func (r *InMemoryRepository) Update(_ context.Context, z *Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.zones[z.ID]; !ok {
		return ErrZoneNotFound
	}

	cpy := *z
	r.zones[z.ID] = &cpy
	return nil
}

// Delete removes a zone by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.zones, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
