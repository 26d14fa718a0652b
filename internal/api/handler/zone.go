package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/api/response"
	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/spatial"
	"github.com/safenet/safenet/internal/zone"
)

// ZoneHandler handles zone registry endpoints.
type ZoneHandler struct {
	zones *zone.Service
}

// NewZoneHandler creates a new ZoneHandler.
func NewZoneHandler(zones *zone.Service) *ZoneHandler {
	return &ZoneHandler{zones: zones}
}

// CreateZone handles POST /v1/zones.
func (h *ZoneHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	var input models.ZoneInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	geom, err := toGeometry(input.Geometry)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	created, err := h.zones.Create(r.Context(), GetUserID(r.Context()), zone.CreateInput{
		Name:           input.Name,
		Classification: zone.Classification(input.Classification),
		Geometry:       geom,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/zones/"+created.ID, toZoneModel(created))
}

// GetZone handles GET /v1/zones/{zoneId}.
func (h *ZoneHandler) GetZone(w http.ResponseWriter, r *http.Request) {
	z, err := h.zones.Get(r.Context(), chi.URLParam(r, "zoneId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toZoneModel(z))
}

// UpdateZone handles PATCH /v1/zones/{zoneId}.
func (h *ZoneHandler) UpdateZone(w http.ResponseWriter, r *http.Request) {
	var input models.ZonePatch
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	patch := zone.UpdatePatch{Name: input.Name}
	if input.Classification != nil {
		class := zone.Classification(*input.Classification)
		patch.Classification = &class
	}
	if input.Geometry != nil {
		geom, err := toGeometry(*input.Geometry)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		patch.Geometry = &geom
	}

	updated, err := h.zones.Update(r.Context(), chi.URLParam(r, "zoneId"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toZoneModel(updated))
}

// ListZones handles GET /v1/zones.
func (h *ZoneHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	center, err := parsePoint(r, "lat", "lng")
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	radius := parseFloatQuery(r, "radius", defaultMarkerRadiusMeters)

	matches, err := h.zones.Near(r.Context(), center, radius)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := models.ZoneList{Zones: make([]models.Zone, 0, len(matches))}
	for _, m := range matches {
		out.Zones = append(out.Zones, toZoneModel(m.Zone))
	}
	response.JSON(w, r, http.StatusOK, out)
}

// DeleteZone handles DELETE /v1/zones/{zoneId}.
func (h *ZoneHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := h.zones.Delete(r.Context(), chi.URLParam(r, "zoneId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

func toGeometry(g models.Geometry) (spatial.Geometry, error) {
	switch g.Type {
	case "polygon":
		ring := make([]geo.Point, 0, len(g.Ring))
		for _, p := range g.Ring {
			ring = append(ring, p.Geo())
		}
		return spatial.Polygon(ring), nil
	case "circle":
		var center geo.Point
		if g.Center != nil {
			center = g.Center.Geo()
		}
		return spatial.Circle(center, g.RadiusMeters), nil
	default:
		return spatial.Geometry{}, spatial.ErrInvalidGeometry
	}
}

func toGeometryModel(g spatial.Geometry) models.Geometry {
	if g.Kind == spatial.KindPolygon {
		ring := make([]models.Point, 0, len(g.Ring))
		for _, p := range g.Ring {
			ring = append(ring, models.FromGeo(p))
		}
		return models.Geometry{Type: "polygon", Ring: ring}
	}
	center := models.FromGeo(g.Center)
	return models.Geometry{Type: "circle", Center: &center, RadiusMeters: g.RadiusMeters}
}

func toZoneModel(z *zone.Zone) models.Zone {
	return models.Zone{
		ID:             z.ID,
		Name:           z.Name,
		Classification: string(z.Classification),
		Geometry:       toGeometryModel(z.Geometry),
		Owner:          z.Owner,
		CreatedAt:      models.Timestamp(z.CreatedAt),
		UpdatedAt:      models.Timestamp(z.UpdatedAt),
	}
}
