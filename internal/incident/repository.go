package incident

import (
	"context"
	"time"

	"github.com/safenet/safenet/internal/geo"
)

// Repository defines the interface for incident persistence.
type Repository interface {
	// Get retrieves an incident by ID.
	Get(ctx context.Context, id string) (*Incident, error)

	// Create appends a new incident to the ledger.
	Create(ctx context.Context, inc *Incident) error

	// UpdateStatus changes an incident's status. Transition rules are
	// enforced by the service, not the repository.
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error

	// ListNear retrieves incidents within radiusMeters of p that occurred at
	// or after since, newest first.
	ListNear(ctx context.Context, p geo.Point, radiusMeters float64, since time.Time) ([]*Incident, error)

	// ListSince retrieves every incident that occurred at or after since.
	// The risk model uses it to recompute buckets from scratch.
	ListSince(ctx context.Context, since time.Time) ([]*Incident, error)
}
