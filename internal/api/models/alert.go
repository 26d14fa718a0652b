package models

// EmergencyAlertInput is the request body for raising an emergency alert.
type EmergencyAlertInput struct {
	Location Point  `json:"location"`
	Message  string `json:"message,omitempty"`
}

// EmergencyAlert acknowledges a raised alert. The shape matches what the
// mobile clients already expect.
type EmergencyAlert struct {
	Success   bool      `json:"success"`
	AlertID   string    `json:"alertId"`
	Timestamp Timestamp `json:"timestamp"`
}
