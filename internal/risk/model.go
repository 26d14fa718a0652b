package risk

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/incident"
)

// Level classifies a score against the fixed thresholds.
type Level string

const (
	LevelSafe    Level = "safe"
	LevelCaution Level = "caution"
	LevelDanger  Level = "danger"
)

// Assess maps a score to its level.
func Assess(score float64) Level {
	switch {
	case score < DangerThreshold:
		return LevelDanger
	case score < CautionThreshold:
		return LevelCaution
	default:
		return LevelSafe
	}
}

// Score is the risk assessment for one cell and part of day.
type Score struct {
	Value   float64 `json:"value"`
	Level   Level   `json:"level"`
	Part    DayPart `json:"dayPart"`
	Samples int     `json:"samples"`
}

type bucketKey struct {
	cell geo.Cell
	part DayPart
}

type contribution struct {
	weight     float64
	occurredAt time.Time
}

// Model keeps one bucket per (cell, part of day). A bucket holds the
// severity-weighted contributions of the incidents that hit it, keyed by
// incident ID so folding the same report in twice is a no-op. Decay is
// applied at query time, which makes Recompute a pure function of the
// ledger.
type Model struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.RWMutex
	buckets map[bucketKey]map[string]contribution
}

// NewModel creates a risk model with the given configuration.
func NewModel(cfg Config, logger zerolog.Logger) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		cfg:     cfg,
		logger:  logger,
		buckets: make(map[bucketKey]map[string]contribution),
	}, nil
}

// Observe folds a single incident into its bucket. Resolved incidents no
// longer count and are dropped from the bucket instead.
func (m *Model) Observe(inc *incident.Incident) {
	key := bucketKey{
		cell: geo.CellOf(inc.Location, m.cfg.CellSizeMeters),
		part: DayPartAt(inc.OccurredAt),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if inc.Status == incident.StatusResolved {
		if b, ok := m.buckets[key]; ok {
			delete(b, inc.ID)
			if len(b) == 0 {
				delete(m.buckets, key)
			}
		}
		return
	}

	b, ok := m.buckets[key]
	if !ok {
		b = make(map[string]contribution)
		m.buckets[key] = b
	}
	b[inc.ID] = contribution{
		weight:     m.cfg.severityWeight(inc.Severity),
		occurredAt: inc.OccurredAt,
	}
}

// Recompute rebuilds every bucket from the ledger. The result depends only
// on the ledger contents, so running it twice in a row changes nothing.
func (m *Model) Recompute(ctx context.Context, ledger incident.Repository) error {
	since := time.Now().Add(-m.cfg.Window)
	incidents, err := ledger.ListSince(ctx, since)
	if err != nil {
		return err
	}

	fresh := make(map[bucketKey]map[string]contribution)
	kept := 0
	for _, inc := range incidents {
		if inc.Status == incident.StatusResolved {
			continue
		}
		key := bucketKey{
			cell: geo.CellOf(inc.Location, m.cfg.CellSizeMeters),
			part: DayPartAt(inc.OccurredAt),
		}
		b, ok := fresh[key]
		if !ok {
			b = make(map[string]contribution)
			fresh[key] = b
		}
		b[inc.ID] = contribution{
			weight:     m.cfg.severityWeight(inc.Severity),
			occurredAt: inc.OccurredAt,
		}
		kept++
	}

	m.mu.Lock()
	m.buckets = fresh
	m.mu.Unlock()

	m.logger.Info().
		Int("incidents", kept).
		Int("buckets", len(fresh)).
		Msg("risk buckets recomputed")
	return nil
}

// Score assesses the cell containing p for the part of day at refTime.
// Contributions decay exponentially with age relative to refTime; the score
// starts at MaxScore and is clamped to [0, MaxScore].
func (m *Model) Score(p geo.Point, at time.Time) (Score, error) {
	if err := p.Validate(); err != nil {
		return Score{}, err
	}

	key := bucketKey{
		cell: geo.CellOf(p, m.cfg.CellSizeMeters),
		part: DayPartAt(at),
	}

	m.mu.RLock()
	b := m.buckets[key]

	var penalty float64
	samples := 0
	for _, c := range b {
		age := at.Sub(c.occurredAt)
		if age < 0 {
			age = 0
		}
		if age > m.cfg.Window {
			continue
		}
		decay := math.Exp2(-age.Hours() / m.cfg.HalfLife.Hours())
		penalty += c.weight * decay
		samples++
	}
	m.mu.RUnlock()

	value := MaxScore - penalty
	if value < 0 {
		value = 0
	}
	if value > MaxScore {
		value = MaxScore
	}

	return Score{
		Value:   value,
		Level:   Assess(value),
		Part:    key.part,
		Samples: samples,
	}, nil
}

// BucketCount returns the number of non-empty buckets. Exposed for the ops
// endpoint.
func (m *Model) BucketCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets)
}
