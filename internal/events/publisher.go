// Package events publishes domain events to Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/incident"
)

// Event types carried in the "event_type" message attribute.
const (
	TypeIncidentReported = "incident_reported"
)

// IncidentReportedEvent is the wire payload for a new incident report.
type IncidentReportedEvent struct {
	IncidentID string    `json:"incident_id"`
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher publishes domain events to a Pub/Sub topic.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// PublisherConfig holds configuration for the event publisher.
type PublisherConfig struct {
	ProjectID string
	Topic     string
	Logger    zerolog.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		logger:    cfg.Logger,
	}, nil
}

// PublishIncidentReported publishes an incident report event and waits for
// the server acknowledgement.
func (p *Publisher) PublishIncidentReported(ctx context.Context, inc *incident.Incident) error {
	payload, err := json.Marshal(IncidentReportedEvent{
		IncidentID: inc.ID,
		Type:       string(inc.Type),
		Severity:   string(inc.Severity),
		Status:     string(inc.Status),
		Lat:        inc.Location.Lat,
		Lon:        inc.Location.Lon,
		OccurredAt: inc.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event_type": TypeIncidentReported},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.logger.Debug().Str("incident_id", inc.ID).Msg("incident event published")
	return nil
}

// Close stops the publisher and releases the client.
func (p *Publisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// Ensure Publisher satisfies the incident service's publisher contract.
var _ incident.Publisher = (*Publisher)(nil)
