package models

// FixInput is the request body for submitting a location fix.
type FixInput struct {
	Location       Point      `json:"location"`
	AccuracyMeters float64    `json:"accuracyMeters,omitempty"`
	Timestamp      *Timestamp `json:"timestamp,omitempty"`
	Sequence       uint64     `json:"sequence"`
}

// TrackStatus is the response for tracking lifecycle operations.
type TrackStatus struct {
	SubjectID string `json:"subjectId"`
	Tracked   bool   `json:"tracked"`
}
