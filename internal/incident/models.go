// Package incident owns the append-only ledger of reported safety incidents.
package incident

import (
	"errors"
	"time"

	"github.com/safenet/safenet/internal/geo"
)

// Ledger errors.
var (
	ErrIncidentNotFound        = errors.New("incident not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// Type categorizes what was reported.
type Type string

const (
	TypeHarassment Type = "harassment"
	TypeTheft      Type = "theft"
	TypeSuspicious Type = "suspicious"
	TypeUnsafeArea Type = "unsafe-area"
	TypeAssault    Type = "assault"
	TypeOther      Type = "other"
)

// Valid reports whether the type is a known value.
func (t Type) Valid() bool {
	switch t {
	case TypeHarassment, TypeTheft, TypeSuspicious, TypeUnsafeArea, TypeAssault, TypeOther:
		return true
	}
	return false
}

// Severity grades how serious an incident is. It drives the weight the risk
// model assigns to the report.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Status tracks the moderation lifecycle of a report. Reports only move
// forward: active to verified, active to resolved, verified to resolved.
type Status string

const (
	StatusActive   Status = "active"
	StatusVerified Status = "verified"
	StatusResolved Status = "resolved"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusVerified, StatusResolved:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusVerified || next == StatusResolved
	case StatusVerified:
		return next == StatusResolved
	}
	return false
}

// Incident is one entry in the ledger. Entries are never deleted; resolution
// is a status change.
type Incident struct {
	ID          string
	Type        Type
	Severity    Severity
	Status      Status
	Location    geo.Point
	Description string
	ReportedBy  string
	OccurredAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
