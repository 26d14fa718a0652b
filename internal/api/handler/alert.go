package handler

import (
	"encoding/json"
	"net/http"

	"github.com/safenet/safenet/internal/alert"
	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/api/response"
)

// EmergencyHandler handles explicit emergency alerts.
type EmergencyHandler struct {
	alerts *alert.Service
}

// NewEmergencyHandler creates a new EmergencyHandler.
func NewEmergencyHandler(alerts *alert.Service) *EmergencyHandler {
	return &EmergencyHandler{alerts: alerts}
}

// RaiseAlert handles POST /v1/emergency/alert.
func (h *EmergencyHandler) RaiseAlert(w http.ResponseWriter, r *http.Request) {
	var input models.EmergencyAlertInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	raised, err := h.alerts.Trigger(r.Context(), GetUserID(r.Context()), input.Location.Geo(), input.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusAccepted, models.EmergencyAlert{
		Success:   true,
		AlertID:   raised.ID,
		Timestamp: models.Timestamp(raised.CreatedAt),
	})
}
