// Package worker provides background risk recomputation for SafeNet.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/incident"
	"github.com/safenet/safenet/internal/risk"
)

// DefaultSweepInterval is how often the full recompute sweep runs when no
// interval is configured. The sweep reconciles anything the event stream
// missed and ages old reports out.
const DefaultSweepInterval = 15 * time.Minute

// RecomputeJob rebuilds risk buckets from the incident ledger.
type RecomputeJob struct {
	model  *risk.Model
	ledger incident.Repository
	logger zerolog.Logger
}

// RecomputeJobConfig holds configuration for creating a RecomputeJob.
type RecomputeJobConfig struct {
	Model  *risk.Model
	Ledger incident.Repository
	Logger zerolog.Logger
}

// NewRecomputeJob creates a new recompute job processor.
func NewRecomputeJob(cfg RecomputeJobConfig) *RecomputeJob {
	return &RecomputeJob{
		model:  cfg.Model,
		ledger: cfg.Ledger,
		logger: cfg.Logger,
	}
}

// RecomputeResult contains the outcome of one sweep.
type RecomputeResult struct {
	StartTime time.Time
	Duration  time.Duration
	Buckets   int
}

// Run executes a full recompute sweep.
func (j *RecomputeJob) Run(ctx context.Context) (*RecomputeResult, error) {
	start := time.Now()

	if err := j.model.Recompute(ctx, j.ledger); err != nil {
		return nil, err
	}

	result := &RecomputeResult{
		StartTime: start,
		Duration:  time.Since(start),
		Buckets:   j.model.BucketCount(),
	}

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("buckets", result.Buckets).
		Msg("risk sweep completed")
	return result, nil
}

// ObserveIncident folds one incident into the model without a full sweep.
func (j *RecomputeJob) ObserveIncident(ctx context.Context, incidentID string) error {
	inc, err := j.ledger.Get(ctx, incidentID)
	if err != nil {
		return err
	}
	j.model.Observe(inc)

	j.logger.Debug().Str("incident_id", incidentID).Msg("incident folded into risk model")
	return nil
}

// RunPeriodic runs sweeps on the given interval until the context is
// cancelled. Failures are logged and the loop continues.
func (j *RecomputeJob) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.Error().Err(err).Msg("risk sweep failed")
			}
		}
	}
}
