package models

// Geometry is the wire representation of a zone geometry. Exactly one of
// the circle fields or the ring must be set, selected by Type.
type Geometry struct {
	Type         string  `json:"type"` // "circle" or "polygon"
	Center       *Point  `json:"center,omitempty"`
	RadiusMeters float64 `json:"radiusMeters,omitempty"`
	Ring         []Point `json:"ring,omitempty"`
}

// ZoneInput is the request body for creating a zone.
type ZoneInput struct {
	Name           string   `json:"name"`
	Classification string   `json:"classification"`
	Geometry       Geometry `json:"geometry"`
}

// ZonePatch is the request body for updating a zone. Absent fields are left
// unchanged.
type ZonePatch struct {
	Name           *string   `json:"name,omitempty"`
	Classification *string   `json:"classification,omitempty"`
	Geometry       *Geometry `json:"geometry,omitempty"`
}

// Zone is the response representation of a zone.
type Zone struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Classification string    `json:"classification"`
	Geometry       Geometry  `json:"geometry"`
	Owner          string    `json:"owner"`
	CreatedAt      Timestamp `json:"createdAt"`
	UpdatedAt      Timestamp `json:"updatedAt"`
}

// ZoneList wraps a list of zones.
type ZoneList struct {
	Zones []Zone `json:"zones"`
}
