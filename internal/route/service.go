// Package route scores walking routes against the risk model.
package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/risk"
)

// ErrDegenerateRoute is returned for routes with no usable length.
var ErrDegenerateRoute = errors.New("degenerate route")

// Scoring parameters.
const (
	// SampleIntervalMeters is the spacing between scored points along the
	// route.
	SampleIntervalMeters = 75

	// WalkSpeedMetersPerSecond estimates when the walker reaches each
	// sample, so scores use the right part of day.
	WalkSpeedMetersPerSecond = 1.4

	// NeutralScore stands in for cells the model has no observations for.
	NeutralScore = 2.5

	// lowConfidenceFraction: above this share of no-data samples the result
	// is flagged low confidence.
	lowConfidenceFraction = 0.5

	cacheTTL = 5 * time.Minute
)

// RiskSource assesses single points. Satisfied by the risk model.
type RiskSource interface {
	Score(p geo.Point, at time.Time) (risk.Score, error)
}

// FlaggedSegment is a stretch of route scoring below the caution threshold.
type FlaggedSegment struct {
	Start        geo.Point  `json:"start"`
	End          geo.Point  `json:"end"`
	LengthMeters float64    `json:"lengthMeters"`
	WorstScore   float64    `json:"worstScore"`
	Level        risk.Level `json:"level"`
}

// Result is a scored route.
type Result struct {
	Score           float64          `json:"score"`
	Level           risk.Level       `json:"level"`
	LowConfidence   bool             `json:"lowConfidence"`
	LengthMeters    float64          `json:"lengthMeters"`
	DurationSeconds float64          `json:"durationSeconds"`
	Samples         int              `json:"samples"`
	Flagged         []FlaggedSegment `json:"flagged,omitempty"`
}

// Service scores routes, caching results per route shape and part of day.
type Service struct {
	risks  RiskSource
	cache  Cache
	logger zerolog.Logger
}

// ServiceConfig holds dependencies for the route service.
type ServiceConfig struct {
	Risks  RiskSource
	Cache  Cache // optional
	Logger zerolog.Logger
}

// NewService creates a new route scoring service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		risks:  cfg.Risks,
		cache:  cfg.Cache,
		logger: cfg.Logger,
	}
}

// Score assesses a walking route departing at departAt. The route is sampled
// every SampleIntervalMeters, each sample is scored for the part of day the
// walker reaches it, and the samples are combined into a length-weighted
// mean.
func (s *Service) Score(ctx context.Context, path []geo.Point, departAt time.Time) (*Result, error) {
	if len(path) < 2 {
		return nil, ErrDegenerateRoute
	}
	for _, p := range path {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	length := geo.PathLength(path)
	if length <= 0 {
		return nil, ErrDegenerateRoute
	}

	key := cacheKey(path, departAt)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var result Result
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return &result, nil
			}
		} else if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("route cache read failed")
		}
	}

	result := s.score(path, length, departAt)

	if s.cache != nil {
		if encoded, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, string(encoded), cacheTTL); err != nil {
				s.logger.Warn().Err(err).Msg("route cache write failed")
			}
		}
	}

	return result, nil
}

func (s *Service) score(path []geo.Point, length float64, departAt time.Time) *Result {
	samples := geo.SamplePath(path, SampleIntervalMeters)

	type scored struct {
		point  geo.Point
		value  float64
		noData bool
	}

	points := make([]scored, 0, len(samples))
	elapsed := 0.0
	for i, p := range samples {
		if i > 0 {
			elapsed += geo.Distance(samples[i-1], p) / WalkSpeedMetersPerSecond
		}
		at := departAt.Add(time.Duration(elapsed * float64(time.Second)))

		assessment, err := s.risks.Score(p, at)
		if err != nil {
			// Path points are validated above; treat a scoring failure as
			// missing data rather than failing the whole route.
			points = append(points, scored{point: p, value: NeutralScore, noData: true})
			continue
		}
		if assessment.Samples == 0 {
			points = append(points, scored{point: p, value: NeutralScore, noData: true})
			continue
		}
		points = append(points, scored{point: p, value: assessment.Value})
	}

	// Length-weighted mean: each sample carries half the span to each
	// neighbor.
	var total, weightSum float64
	noData := 0
	for i, sc := range points {
		var w float64
		if i > 0 {
			w += geo.Distance(points[i-1].point, sc.point) / 2
		}
		if i < len(points)-1 {
			w += geo.Distance(sc.point, points[i+1].point) / 2
		}
		if w == 0 {
			w = 1
		}
		total += sc.value * w
		weightSum += w
		if sc.noData {
			noData++
		}
	}
	value := total / weightSum

	var flagged []FlaggedSegment
	runStart := -1
	worst := risk.MaxScore
	for i, sc := range points {
		below := sc.value < risk.CautionThreshold && !sc.noData
		if below {
			if runStart < 0 {
				runStart = i
				worst = sc.value
			} else if sc.value < worst {
				worst = sc.value
			}
		}
		if (!below || i == len(points)-1) && runStart >= 0 {
			end := i
			if !below {
				end = i - 1
			}
			seg := FlaggedSegment{
				Start:      points[runStart].point,
				End:        points[end].point,
				WorstScore: worst,
				Level:      risk.Assess(worst),
			}
			for j := runStart; j < end; j++ {
				seg.LengthMeters += geo.Distance(points[j].point, points[j+1].point)
			}
			flagged = append(flagged, seg)
			runStart = -1
			worst = risk.MaxScore
		}
	}

	return &Result{
		Score:           value,
		Level:           risk.Assess(value),
		LowConfidence:   float64(noData)/float64(len(points)) > lowConfidenceFraction,
		LengthMeters:    length,
		DurationSeconds: length / WalkSpeedMetersPerSecond,
		Samples:         len(points),
		Flagged:         flagged,
	}
}

// cacheKey hashes the route shape and tags it with the departure part of
// day, so the same path asked about at 9am and 11pm are distinct entries.
func cacheKey(path []geo.Point, departAt time.Time) string {
	digest := xxhash.Sum64String(geo.EncodePolyline(path))
	return fmt.Sprintf("route:%x:%s", digest, risk.DayPartAt(departAt))
}
