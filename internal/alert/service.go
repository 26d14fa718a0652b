package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/monitor"
	"github.com/safenet/safenet/internal/zone"
)

// Service fans alerts out to every configured channel. A channel failing
// does not stop delivery to the others.
type Service struct {
	dispatchers []Dispatcher
	logger      zerolog.Logger
	now         func() time.Time
}

// ServiceConfig holds dependencies for the alert service.
type ServiceConfig struct {
	Dispatchers []Dispatcher
	Logger      zerolog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewService creates a new alert service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		dispatchers: cfg.Dispatchers,
		logger:      cfg.Logger,
		now:         now,
	}
}

// Trigger raises an emergency alert from the subject's current position.
func (s *Service) Trigger(ctx context.Context, subjectID string, location geo.Point, message string) (*Alert, error) {
	if err := location.Validate(); err != nil {
		return nil, err
	}

	a := Alert{
		ID:        "alr_" + uuid.New().String()[:22],
		Kind:      KindEmergency,
		SubjectID: subjectID,
		Location:  location,
		Message:   message,
		CreatedAt: s.now(),
	}

	s.logger.Warn().
		Str("alert_id", a.ID).
		Str("subject_id", subjectID).
		Msg("emergency alert triggered")

	s.deliver(ctx, a)
	return &a, nil
}

// HandleTransition implements monitor.Sink. Entering a caution or danger
// zone raises an alert; leaving a safe zone does too. Everything else is
// just logged.
func (s *Service) HandleTransition(ctx context.Context, ev monitor.Event) {
	s.logger.Info().
		Str("subject_id", ev.SubjectID).
		Str("zone_id", ev.ZoneID).
		Str("direction", string(ev.Direction)).
		Float64("confidence", ev.Confidence).
		Msg("zone transition")

	var kind Kind
	switch {
	case ev.Direction == monitor.DirectionEnter && ev.Classification != zone.ClassSafe:
		kind = KindZoneEntry
	case ev.Direction == monitor.DirectionExit && ev.Classification == zone.ClassSafe:
		kind = KindZoneExit
	default:
		return
	}

	a := Alert{
		ID:             "alr_" + uuid.New().String()[:22],
		Kind:           kind,
		SubjectID:      ev.SubjectID,
		Location:       ev.Fix.Point,
		ZoneID:         ev.ZoneID,
		ZoneName:       ev.ZoneName,
		Classification: ev.Classification,
		Confidence:     ev.Confidence,
		CreatedAt:      s.now(),
	}
	s.deliver(ctx, a)
}

// NotifyRouteRisk raises an alert for a route whose aggregate score fell
// below the caller's threshold. Location is the route's starting point.
func (s *Service) NotifyRouteRisk(ctx context.Context, subjectID string, start geo.Point, score float64) *Alert {
	a := Alert{
		ID:         "alr_" + uuid.New().String()[:22],
		Kind:       KindRouteRisk,
		SubjectID:  subjectID,
		Location:   start,
		RouteScore: score,
		CreatedAt:  s.now(),
	}

	s.logger.Warn().
		Str("alert_id", a.ID).
		Str("subject_id", subjectID).
		Float64("route_score", score).
		Msg("risky route scored")

	s.deliver(ctx, a)
	return &a
}

// ChannelHealth is a point-in-time view of one dispatch channel.
type ChannelHealth struct {
	Name    string
	Healthy bool
	Detail  string
}

type healthReporter interface {
	Health() ChannelHealth
}

// ChannelHealth reports the state of every configured channel. Channels
// that cannot report on themselves are assumed healthy.
func (s *Service) ChannelHealth() []ChannelHealth {
	out := make([]ChannelHealth, 0, len(s.dispatchers))
	for _, d := range s.dispatchers {
		if hr, ok := d.(healthReporter); ok {
			out = append(out, hr.Health())
			continue
		}
		out = append(out, ChannelHealth{Name: d.Name(), Healthy: true})
	}
	return out
}

func (s *Service) deliver(ctx context.Context, a Alert) {
	for _, d := range s.dispatchers {
		if err := d.Dispatch(ctx, a); err != nil {
			s.logger.Error().
				Err(err).
				Str("alert_id", a.ID).
				Str("channel", d.Name()).
				Msg("alert delivery failed")
		}
	}
}

var _ monitor.Sink = (*Service)(nil)
