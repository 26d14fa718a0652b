package models

// RouteScoreRequest is the request body for scoring a route. The path may be
// given as explicit points or as an encoded polyline; points win when both
// are present.
type RouteScoreRequest struct {
	Path          []Point    `json:"path,omitempty"`
	Polyline      string     `json:"polyline,omitempty"`
	DepartureTime *Timestamp `json:"departureTime,omitempty"`
}

// RouteSegment is a flagged stretch of a scored route.
type RouteSegment struct {
	Start        Point   `json:"start"`
	End          Point   `json:"end"`
	LengthMeters float64 `json:"lengthMeters"`
	WorstScore   float64 `json:"worstScore"`
	Level        string  `json:"level"`
}

// RouteScore is the response representation of a scored route.
type RouteScore struct {
	Score           float64        `json:"score"`
	Level           string         `json:"level"`
	LowConfidence   bool           `json:"lowConfidence"`
	LengthMeters    float64        `json:"lengthMeters"`
	DurationSeconds float64        `json:"durationSeconds"`
	Samples         int            `json:"samples"`
	Flagged         []RouteSegment `json:"flagged,omitempty"`
}

// RiskScore is the response for a point risk query.
type RiskScore struct {
	Score   float64 `json:"score"`
	Level   string  `json:"level"`
	DayPart string  `json:"dayPart"`
	Samples int     `json:"samples"`
}
