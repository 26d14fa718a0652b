package models

// Marker is one entry on the safety map: a zone or a recent incident near
// the queried position.
type Marker struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"` // "zone" or "incident"
	Location       Point   `json:"location"`
	DistanceMeters float64 `json:"distanceMeters"`

	// Zone markers.
	Name           string `json:"name,omitempty"`
	Classification string `json:"classification,omitempty"`

	// Incident markers.
	Type     string `json:"type,omitempty"`
	Severity string `json:"severity,omitempty"`
	Status   string `json:"status,omitempty"`
}

// MarkerList wraps the markers response.
type MarkerList struct {
	Markers []Marker `json:"markers"`
}
