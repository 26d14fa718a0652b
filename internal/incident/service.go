package incident

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/geo"
)

// Validation constants.
const (
	MaxDescriptionLength = 500

	// Reports older than this are accepted but carry little weight by the
	// time the risk model decays them.
	maxReportAge = 90 * 24 * time.Hour
)

// Publisher emits incident events for downstream consumers. The worker
// listens for them to recompute risk buckets.
type Publisher interface {
	PublishIncidentReported(ctx context.Context, inc *Incident) error
}

// ReportInput describes an incident to report.
type ReportInput struct {
	Type        Type
	Severity    Severity
	Location    geo.Point
	Description string
	OccurredAt  time.Time
}

// Service is the incident ledger. Writes append or advance status; nothing
// is ever removed.
type Service struct {
	repo      Repository
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time

	mu         sync.RWMutex
	onReported []func(*Incident)
}

// ServiceConfig holds dependencies for the incident service.
type ServiceConfig struct {
	Repository Repository
	Publisher  Publisher
	Logger     zerolog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewService creates a new incident service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      cfg.Repository,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       now,
	}
}

// OnReported registers a hook invoked synchronously after an incident is
// stored. The in-process risk model uses it to fold new reports in without
// waiting for the event bus.
func (s *Service) OnReported(fn func(*Incident)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReported = append(s.onReported, fn)
}

// Report validates and appends a new incident, then notifies listeners.
func (s *Service) Report(ctx context.Context, reportedBy string, input ReportInput) (*Incident, error) {
	if err := input.Location.Validate(); err != nil {
		return nil, err
	}
	if fieldErrors := validateReport(input, s.now()); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := s.now()
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	inc := &Incident{
		ID:          "inc_" + uuid.New().String()[:22],
		Type:        input.Type,
		Severity:    input.Severity,
		Status:      StatusActive,
		Location:    input.Location,
		Description: input.Description,
		ReportedBy:  reportedBy,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, inc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("incident_id", inc.ID).
		Str("type", string(inc.Type)).
		Str("severity", string(inc.Severity)).
		Msg("incident reported")

	s.notify(ctx, inc)

	cpy := *inc
	return &cpy, nil
}

// UpdateStatus advances an incident's status, enforcing forward-only
// transitions.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Incident, error) {
	if !next.Valid() {
		return nil, &ValidationError{Errors: []models.FieldError{
			{Field: "status", Message: "must be active, verified, or resolved"},
		}}
	}

	inc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inc.Status.CanTransitionTo(next) {
		return nil, ErrInvalidStatusTransition
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, next, now); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("incident_id", id).
		Str("from", string(inc.Status)).
		Str("to", string(next)).
		Msg("incident status updated")

	inc.Status = next
	inc.UpdatedAt = now
	return inc, nil
}

// Get retrieves an incident by ID.
func (s *Service) Get(ctx context.Context, id string) (*Incident, error) {
	return s.repo.Get(ctx, id)
}

// ListNear retrieves incidents within radiusMeters of p since the cutoff.
func (s *Service) ListNear(ctx context.Context, p geo.Point, radiusMeters float64, since time.Time) ([]*Incident, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListNear(ctx, p, radiusMeters, since)
}

// notify runs the in-process hooks and publishes the event. A publish
// failure is logged, not surfaced: the periodic recompute sweep will pick
// the report up regardless.
func (s *Service) notify(ctx context.Context, inc *Incident) {
	s.mu.RLock()
	hooks := append([]func(*Incident){}, s.onReported...)
	s.mu.RUnlock()

	for _, fn := range hooks {
		cpy := *inc
		fn(&cpy)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishIncidentReported(ctx, inc); err != nil {
			s.logger.Error().Err(err).Str("incident_id", inc.ID).Msg("failed to publish incident event")
		}
	}
}

func validateReport(input ReportInput, now time.Time) []models.FieldError {
	var errs []models.FieldError

	if !input.Type.Valid() {
		errs = append(errs, models.FieldError{Field: "type", Message: "unknown incident type"})
	}
	if !input.Severity.Valid() {
		errs = append(errs, models.FieldError{Field: "severity", Message: "must be low, medium, or high"})
	}
	if len(input.Description) > MaxDescriptionLength {
		errs = append(errs, models.FieldError{Field: "description", Message: "must be at most 500 characters"})
	}
	if !input.OccurredAt.IsZero() {
		if input.OccurredAt.After(now.Add(time.Minute)) {
			errs = append(errs, models.FieldError{Field: "occurredAt", Message: "must not be in the future"})
		} else if now.Sub(input.OccurredAt) > maxReportAge {
			errs = append(errs, models.FieldError{Field: "occurredAt", Message: "is too far in the past"})
		}
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
