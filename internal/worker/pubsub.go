package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/events"
)

// PubSubHandler consumes incident events and keeps the risk model current.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	job              *RecomputeJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Job              *RecomputeJob
	Logger           zerolog.Logger
}

// SweepMessage requests a full recompute sweep. Published by ops tooling or
// a scheduler.
type SweepMessage struct {
	JobType string `json:"job_type"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		job:              cfg.Job,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var err error
	eventType := msg.Attributes["event_type"]
	switch eventType {
	case events.TypeIncidentReported:
		err = h.handleIncidentReported(ctx, msg.Data)
	case "":
		err = h.handleJobMessage(ctx, msg.Data, &logger)
	default:
		logger.Warn().Str("event_type", eventType).Msg("unknown event type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("message handling failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("event_type", eventType).
		Dur("duration", time.Since(startTime)).
		Msg("message handled")

	msg.Ack()
}

func (h *PubSubHandler) handleIncidentReported(ctx context.Context, data []byte) error {
	var ev events.IncidentReportedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("parsing incident event: %w", err)
	}
	return h.job.ObserveIncident(ctx, ev.IncidentID)
}

func (h *PubSubHandler) handleJobMessage(ctx context.Context, data []byte, logger *zerolog.Logger) error {
	var job SweepMessage
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("parsing job message: %w", err)
	}

	switch job.JobType {
	case "risk_sweep":
		_, err := h.job.Run(ctx)
		return err
	default:
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		return nil
	}
}
