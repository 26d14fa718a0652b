package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Webhook delivery errors.
var (
	// ErrChannelUnavailable is returned while the channel's circuit breaker
	// is open.
	ErrChannelUnavailable = errors.New("alert channel unavailable")
)

// WebhookConfig holds configuration for a webhook alert channel.
type WebhookConfig struct {
	// Name identifies the channel for logging and circuit breaker naming.
	Name string

	// URL receives the alert as a JSON POST.
	URL string

	// Timeout is the per-request timeout. Default: 10 seconds.
	Timeout time.Duration

	// MaxRetries bounds retry attempts per alert. Default: 3.
	MaxRetries uint64

	// InitialInterval is the initial retry backoff. Default: 100ms.
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff. Default: 5 seconds.
	MaxInterval time.Duration

	// BreakerTimeout is how long the circuit stays open before probing
	// again. Default: 60 seconds.
	BreakerTimeout time.Duration
}

// WebhookDispatcher delivers alerts to an HTTP endpoint. Transient failures
// are retried with exponential backoff; a failing endpoint trips a circuit
// breaker so emergency paths fail fast instead of stacking up timeouts.
type WebhookDispatcher struct {
	cfg     WebhookConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[int]
}

// NewWebhookDispatcher creates a webhook alert channel.
func NewWebhookDispatcher(cfg WebhookConfig) *WebhookDispatcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	})

	return &WebhookDispatcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

// Name identifies the channel.
func (d *WebhookDispatcher) Name() string { return d.cfg.Name }

// Dispatch posts the alert as JSON. 5xx responses and network errors are
// retried; 4xx responses are not.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.InitialInterval
	bo.MaxInterval = d.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	operation := func() error {
		status, err := d.breaker.Execute(func() (int, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(payload))
			if err != nil {
				return 0, err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := d.client.Do(req)
			if err != nil {
				return 0, err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return resp.StatusCode, fmt.Errorf("webhook returned %d", resp.StatusCode)
			}
			return resp.StatusCode, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrChannelUnavailable)
			}
			return err
		}
		if status >= 400 {
			return backoff.Permanent(fmt.Errorf("webhook rejected alert with %d", status))
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, d.cfg.MaxRetries), ctx))
}

// BreakerState exposes the circuit breaker state for the ops endpoint.
func (d *WebhookDispatcher) BreakerState() gobreaker.State {
	return d.breaker.State()
}

// Health reports the channel state for the ops endpoint.
func (d *WebhookDispatcher) Health() ChannelHealth {
	state := d.breaker.State()
	return ChannelHealth{
		Name:    d.cfg.Name,
		Healthy: state != gobreaker.StateOpen,
		Detail:  state.String(),
	}
}

var _ Dispatcher = (*WebhookDispatcher)(nil)
