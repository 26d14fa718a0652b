// Package alert builds and delivers safety alerts to outbound channels.
package alert

import (
	"context"
	"time"

	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/zone"
)

// Kind distinguishes what triggered an alert.
type Kind string

const (
	// KindEmergency is an explicit call for help from the subject.
	KindEmergency Kind = "emergency"

	// KindZoneEntry fires when a subject is confirmed inside a flagged zone.
	KindZoneEntry Kind = "zone_entry"

	// KindZoneExit fires when a subject leaves a safe zone.
	KindZoneExit Kind = "zone_exit"

	// KindRouteRisk fires when a scored route's aggregate falls below the
	// configured threshold.
	KindRouteRisk Kind = "route_risk"
)

// Alert is one outbound notification.
type Alert struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	SubjectID string    `json:"subjectId"`
	Location  geo.Point `json:"location"`
	Message   string    `json:"message,omitempty"`

	// Zone fields are set for zone-triggered alerts.
	ZoneID         string              `json:"zoneId,omitempty"`
	ZoneName       string              `json:"zoneName,omitempty"`
	Classification zone.Classification `json:"classification,omitempty"`
	Confidence     float64             `json:"confidence,omitempty"`

	// RouteScore is set for route-risk alerts.
	RouteScore float64 `json:"routeScore,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Dispatcher delivers alerts to one channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, a Alert) error
	Name() string
}
