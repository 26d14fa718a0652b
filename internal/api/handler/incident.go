package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/api/response"
	"github.com/safenet/safenet/internal/incident"
)

// IncidentHandler handles incident ledger endpoints.
type IncidentHandler struct {
	incidents *incident.Service
}

// NewIncidentHandler creates a new IncidentHandler.
func NewIncidentHandler(incidents *incident.Service) *IncidentHandler {
	return &IncidentHandler{incidents: incidents}
}

// ReportIncident handles POST /v1/map/incidents.
func (h *IncidentHandler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	var input models.IncidentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	report := incident.ReportInput{
		Type:        incident.Type(input.Type),
		Severity:    incident.Severity(input.Severity),
		Location:    input.Location.Geo(),
		Description: input.Description,
	}
	if input.OccurredAt != nil {
		report.OccurredAt = input.OccurredAt.Time()
	}

	created, err := h.incidents.Report(r.Context(), GetUserID(r.Context()), report)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/incidents/"+created.ID, toIncidentModel(created))
}

// GetIncident handles GET /v1/incidents/{incidentId}.
func (h *IncidentHandler) GetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.incidents.Get(r.Context(), chi.URLParam(r, "incidentId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toIncidentModel(inc))
}

// UpdateIncidentStatus handles PATCH /v1/incidents/{incidentId}/status.
func (h *IncidentHandler) UpdateIncidentStatus(w http.ResponseWriter, r *http.Request) {
	var input models.IncidentStatusInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	updated, err := h.incidents.UpdateStatus(r.Context(), chi.URLParam(r, "incidentId"), incident.Status(input.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toIncidentModel(updated))
}

// ListIncidents handles GET /v1/incidents.
func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	center, err := parsePoint(r, "lat", "lng")
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	radius := parseFloatQuery(r, "radius", defaultMarkerRadiusMeters)
	since := time.Now().Add(-defaultIncidentWindow)

	incidents, err := h.incidents.ListNear(r.Context(), center, radius, since)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := models.IncidentList{Incidents: make([]models.Incident, 0, len(incidents))}
	for _, inc := range incidents {
		out.Incidents = append(out.Incidents, toIncidentModel(inc))
	}
	response.JSON(w, r, http.StatusOK, out)
}

func toIncidentModel(inc *incident.Incident) models.Incident {
	return models.Incident{
		ID:          inc.ID,
		Type:        string(inc.Type),
		Severity:    string(inc.Severity),
		Status:      string(inc.Status),
		Location:    models.FromGeo(inc.Location),
		Description: inc.Description,
		ReportedBy:  inc.ReportedBy,
		OccurredAt:  models.Timestamp(inc.OccurredAt),
		CreatedAt:   models.Timestamp(inc.CreatedAt),
	}
}
