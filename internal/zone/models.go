// Package zone owns the registry of geofenced zones and keeps the spatial
// index in sync with it.
package zone

import (
	"errors"
	"time"

	"github.com/safenet/safenet/internal/spatial"
)

// Registry errors.
var (
	ErrZoneNotFound = errors.New("zone not found")

	// ErrInvalidGeometry re-exports the spatial sentinel so callers can match
	// without importing spatial.
	ErrInvalidGeometry = spatial.ErrInvalidGeometry
)

// Classification labels what a zone means for the person being tracked.
type Classification string

const (
	ClassSafe    Classification = "safe"
	ClassCaution Classification = "caution"
	ClassDanger  Classification = "danger"
)

// Valid reports whether the classification is a known value.
func (c Classification) Valid() bool {
	switch c {
	case ClassSafe, ClassCaution, ClassDanger:
		return true
	}
	return false
}

// SystemOwner marks zones seeded by the service rather than a user.
const SystemOwner = "system"

// Zone is a named geofenced area.
type Zone struct {
	ID             string
	Name           string
	Classification Classification
	Geometry       spatial.Geometry
	Owner          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
