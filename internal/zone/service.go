package zone

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/spatial"
)

// Validation constants.
const MaxNameLength = 80

// CreateInput describes a zone to create.
type CreateInput struct {
	Name           string
	Classification Classification
	Geometry       spatial.Geometry
}

// UpdatePatch describes a partial zone update. Nil fields are left alone.
type UpdatePatch struct {
	Name           *string
	Classification *Classification
	Geometry       *spatial.Geometry
}

// Match is a zone paired with its distance from a query point.
type Match struct {
	Zone           *Zone
	DistanceMeters float64
}

// Service is the zone registry. It owns zone records and keeps the spatial
// index transactionally in sync: no reader observes a zone in the registry
// without its index entry or vice versa.
type Service struct {
	repo   Repository
	index  *spatial.Index
	logger zerolog.Logger

	// mu makes registry+index mutations atomic with respect to spatial reads.
	mu       sync.RWMutex
	onDelete []func(zoneID string)
}

// ServiceConfig holds dependencies for the zone service.
type ServiceConfig struct {
	Repository Repository
	Index      *spatial.Index
	Logger     zerolog.Logger
}

// NewService creates a new zone service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:   cfg.Repository,
		index:  cfg.Index,
		logger: cfg.Logger,
	}
}

// OnDelete registers a hook invoked after a zone is deleted. The geofence
// monitor uses it to drop in-flight state referencing the zone.
func (s *Service) OnDelete(fn func(zoneID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// Rebuild loads every stored zone into the spatial index. Called on startup.
func (s *Service) Rebuild(ctx context.Context) error {
	zones, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing zones: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, z := range zones {
		if err := s.index.Insert(z.ID, z.Geometry); err != nil {
			s.logger.Warn().Err(err).Str("zone_id", z.ID).Msg("skipping zone with bad stored geometry")
		}
	}
	s.logger.Info().Int("zones", len(zones)).Msg("spatial index rebuilt")
	return nil
}

// Create validates and stores a new zone, indexing it atomically.
func (s *Service) Create(ctx context.Context, owner string, input CreateInput) (*Zone, error) {
	if fieldErrors := validateInput(input.Name, input.Classification); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}
	if err := input.Geometry.Validate(); err != nil {
		return nil, err
	}
	if owner == "" {
		owner = SystemOwner
	}

	now := time.Now()
	z := &Zone{
		ID:             "zn_" + uuid.New().String()[:22],
		Name:           input.Name,
		Classification: input.Classification,
		Geometry:       input.Geometry,
		Owner:          owner,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Create(ctx, z); err != nil {
		return nil, err
	}
	if err := s.index.Insert(z.ID, z.Geometry); err != nil {
		// Geometry already validated; an index failure here means a bug, but
		// the registry must not keep a record the index lacks.
		_ = s.repo.Delete(ctx, z.ID)
		return nil, err
	}

	s.logger.Info().
		Str("zone_id", z.ID).
		Str("classification", string(z.Classification)).
		Msg("zone created")

	cpy := *z
	return &cpy, nil
}

// Update applies a patch to an existing zone, replacing its index entry
// atomically.
func (s *Service) Update(ctx context.Context, id string, patch UpdatePatch) (*Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := *z

	if patch.Name != nil {
		z.Name = *patch.Name
	}
	if patch.Classification != nil {
		z.Classification = *patch.Classification
	}
	if patch.Geometry != nil {
		if err := patch.Geometry.Validate(); err != nil {
			return nil, err
		}
		z.Geometry = *patch.Geometry
	}
	if fieldErrors := validateInput(z.Name, z.Classification); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}
	z.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, z); err != nil {
		return nil, err
	}
	if err := s.index.Insert(z.ID, z.Geometry); err != nil {
		// The index still carries the old geometry; put the registry
		// record back so the two keep agreeing.
		_ = s.repo.Update(ctx, &prev)
		return nil, err
	}

	cpy := *z
	return &cpy, nil
}

// Delete removes a zone from the registry and index, then fires the
// invalidation hooks.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()

	if _, err := s.repo.Get(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.index.Remove(id)
	hooks := append([]func(string){}, s.onDelete...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}

	s.logger.Info().Str("zone_id", id).Msg("zone deleted")
	return nil
}

// Get retrieves a zone by ID.
func (s *Service) Get(ctx context.Context, id string) (*Zone, error) {
	return s.repo.Get(ctx, id)
}

// Containing returns the zones whose geometry contains p.
func (s *Service) Containing(ctx context.Context, p geo.Point) ([]*Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.index.Query(p)
	if err != nil {
		return nil, err
	}

	zones := make([]*Zone, 0, len(ids))
	for _, id := range ids {
		z, err := s.repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrZoneNotFound) {
				continue
			}
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// Near returns zones within radiusMeters of p, closest first.
func (s *Service) Near(ctx context.Context, p geo.Point, radiusMeters float64) ([]Match, error) {
	const maxCandidates = 100

	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors, err := s.index.Nearest(p, maxCandidates)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, n := range neighbors {
		if n.DistanceMeters > radiusMeters {
			break
		}
		z, err := s.repo.Get(ctx, n.ZoneID)
		if err != nil {
			if errors.Is(err, ErrZoneNotFound) {
				continue
			}
			return nil, err
		}
		matches = append(matches, Match{Zone: z, DistanceMeters: n.DistanceMeters})
	}
	return matches, nil
}

func validateInput(name string, class Classification) []models.FieldError {
	var errs []models.FieldError

	if name == "" {
		errs = append(errs, models.FieldError{Field: "name", Message: "is required"})
	} else if len(name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 80 characters"})
	}

	if !class.Valid() {
		errs = append(errs, models.FieldError{Field: "classification", Message: "must be safe, caution, or danger"})
	}

	return errs
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
