package zone

import "context"

// Repository defines the interface for zone persistence.
type Repository interface {
	// Get retrieves a zone by ID. Returns ErrZoneNotFound if absent.
	Get(ctx context.Context, id string) (*Zone, error)

	// List retrieves every zone. Used to rebuild the spatial index on start.
	List(ctx context.Context) ([]*Zone, error)

	// Create stores a new zone.
	Create(ctx context.Context, z *Zone) error

	// Update replaces an existing zone. Returns ErrZoneNotFound if absent.
	Update(ctx context.Context, z *Zone) error

	// Delete removes a zone by ID.
	Delete(ctx context.Context, id string) error
}
