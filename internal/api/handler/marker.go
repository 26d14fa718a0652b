package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/api/response"
	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/incident"
	"github.com/safenet/safenet/internal/zone"
)

// MarkerHandler serves the combined safety map: zones and recent incidents
// near a position.
type MarkerHandler struct {
	zones     *zone.Service
	incidents *incident.Service
}

// NewMarkerHandler creates a new MarkerHandler.
func NewMarkerHandler(zones *zone.Service, incidents *incident.Service) *MarkerHandler {
	return &MarkerHandler{zones: zones, incidents: incidents}
}

// GetMarkers handles GET /v1/map/markers.
func (h *MarkerHandler) GetMarkers(w http.ResponseWriter, r *http.Request) {
	center, err := parsePoint(r, "lat", "lng")
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	radius := parseFloatQuery(r, "radius", defaultMarkerRadiusMeters)
	if radius > maxMarkerRadiusMeters {
		radius = maxMarkerRadiusMeters
	}

	matches, err := h.zones.Near(r.Context(), center, radius)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	since := time.Now().Add(-defaultIncidentWindow)
	incidents, err := h.incidents.ListNear(r.Context(), center, radius, since)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	markers := make([]models.Marker, 0, len(matches)+len(incidents))
	for _, m := range matches {
		markers = append(markers, models.Marker{
			ID:             m.Zone.ID,
			Kind:           "zone",
			Location:       models.FromGeo(m.Zone.Geometry.Centroid()),
			DistanceMeters: m.DistanceMeters,
			Name:           m.Zone.Name,
			Classification: string(m.Zone.Classification),
		})
	}
	for _, inc := range incidents {
		// Resolved reports are history, not live hazards.
		if inc.Status == incident.StatusResolved {
			continue
		}
		markers = append(markers, models.Marker{
			ID:             inc.ID,
			Kind:           "incident",
			Location:       models.FromGeo(inc.Location),
			DistanceMeters: geo.Distance(center, inc.Location),
			Type:           string(inc.Type),
			Severity:       string(inc.Severity),
			Status:         string(inc.Status),
		})
	}
	sort.Slice(markers, func(i, j int) bool {
		return markers[i].DistanceMeters < markers[j].DistanceMeters
	})

	response.JSON(w, r, http.StatusOK, models.MarkerList{Markers: markers})
}
