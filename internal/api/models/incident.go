package models

// IncidentInput is the request body for reporting an incident.
type IncidentInput struct {
	Type        string     `json:"type"`
	Severity    string     `json:"severity"`
	Location    Point      `json:"location"`
	Description string     `json:"description,omitempty"`
	OccurredAt  *Timestamp `json:"occurredAt,omitempty"`
}

// IncidentStatusInput is the request body for a status update.
type IncidentStatusInput struct {
	Status string `json:"status"`
}

// Incident is the response representation of an incident.
type Incident struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	Location    Point     `json:"location"`
	Description string    `json:"description,omitempty"`
	ReportedBy  string    `json:"reportedBy,omitempty"`
	OccurredAt  Timestamp `json:"occurredAt"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// IncidentList wraps a list of incidents.
type IncidentList struct {
	Incidents []Incident `json:"incidents"`
}
