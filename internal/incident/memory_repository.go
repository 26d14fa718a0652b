package incident

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/safenet/safenet/internal/geo"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu        sync.RWMutex
	incidents map[string]*Incident
}

// NewInMemoryRepository creates a new in-memory incident repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		incidents: make(map[string]*Incident),
	}
}

// Get retrieves an incident by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inc, ok := r.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}

	cpy := *inc
	return &cpy, nil
}

// Create appends a new incident.
func (r *InMemoryRepository) Create(_ context.Context, inc *Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *inc
	r.incidents[inc.ID] = &cpy
	return nil
}

// UpdateStatus changes an incident's status.
func (r *InMemoryRepository) UpdateStatus(_ context.Context, id string, status Status, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inc, ok := r.incidents[id]
	if !ok {
		return ErrIncidentNotFound
	}
	inc.Status = status
	inc.UpdatedAt = updatedAt
	return nil
}

// ListNear retrieves incidents within radiusMeters of p since the cutoff.
func (r *InMemoryRepository) ListNear(_ context.Context, p geo.Point, radiusMeters float64, since time.Time) ([]*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Incident
	for _, inc := range r.incidents {
		if inc.OccurredAt.Before(since) {
			continue
		}
		if geo.Distance(p, inc.Location) > radiusMeters {
			continue
		}
		cpy := *inc
		result = append(result, &cpy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})
	return result, nil
}

// ListSince retrieves every incident since the cutoff.
func (r *InMemoryRepository) ListSince(_ context.Context, since time.Time) ([]*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Incident
	for _, inc := range r.incidents {
		if inc.OccurredAt.Before(since) {
			continue
		}
		cpy := *inc
		result = append(result, &cpy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
