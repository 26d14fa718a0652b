// Package risk maintains time-decayed safety scores for grid cells, split by
// part of day.
package risk

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/safenet/safenet/internal/incident"
	"github.com/safenet/safenet/internal/spatial"
)

// Score thresholds. A score below DangerThreshold is dangerous, below
// CautionThreshold warrants caution, anything else is fine.
const (
	MaxScore         = 5.0
	CautionThreshold = 3.5
	DangerThreshold  = 2.5
)

// Config holds risk model parameters.
type Config struct {
	// HalfLife is the age at which an incident's weight has halved.
	HalfLife time.Duration

	// Window bounds how far back the model looks. Incidents older than this
	// contribute nothing worth keeping.
	Window time.Duration

	// CellSizeMeters sets the grid resolution incidents are bucketed into.
	CellSizeMeters float64

	// Severity weights. Must increase with severity.
	WeightLow    float64
	WeightMedium float64
	WeightHigh   float64
}

// DefaultConfig returns the default risk model configuration.
func DefaultConfig() Config {
	return Config{
		HalfLife:       14 * 24 * time.Hour,
		Window:         90 * 24 * time.Hour,
		CellSizeMeters: spatial.DefaultCellSizeMeters,
		WeightLow:      0.3,
		WeightMedium:   0.6,
		WeightHigh:     1.0,
	}
}

// ConfigFromEnv returns configuration from environment variables, falling
// back to defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("RISK_HALF_LIFE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HalfLife = d
		}
	}
	if v := os.Getenv("RISK_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Window = d
		}
	}
	if v := os.Getenv("RISK_CELL_SIZE_M"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CellSizeMeters = f
		}
	}

	return cfg
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.HalfLife <= 0 {
		return fmt.Errorf("half life must be positive, got %s", c.HalfLife)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	if c.CellSizeMeters <= 0 {
		return fmt.Errorf("cell size must be positive, got %f", c.CellSizeMeters)
	}
	if c.WeightLow <= 0 || c.WeightMedium <= c.WeightLow || c.WeightHigh <= c.WeightMedium {
		return fmt.Errorf("severity weights must be positive and strictly increasing")
	}
	return nil
}

func (c Config) severityWeight(s incident.Severity) float64 {
	switch s {
	case incident.SeverityHigh:
		return c.WeightHigh
	case incident.SeverityMedium:
		return c.WeightMedium
	default:
		return c.WeightLow
	}
}
