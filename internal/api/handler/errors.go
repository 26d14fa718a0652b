package handler

import (
	"errors"
	"net/http"

	"github.com/safenet/safenet/internal/api/response"
	"github.com/safenet/safenet/internal/database"
	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/incident"
	"github.com/safenet/safenet/internal/route"
	"github.com/safenet/safenet/internal/zone"
)

// writeServiceError maps domain errors to problem responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var zoneValidation *zone.ValidationError
	var incidentValidation *incident.ValidationError

	switch {
	case errors.As(err, &zoneValidation):
		response.BadRequest(w, r, "validation failed", zoneValidation.Errors)
	case errors.As(err, &incidentValidation):
		response.BadRequest(w, r, "validation failed", incidentValidation.Errors)
	case errors.Is(err, geo.ErrInvalidCoordinate):
		response.BadRequest(w, r, "invalid coordinate", nil)
	case errors.Is(err, zone.ErrInvalidGeometry):
		response.BadRequest(w, r, "invalid geometry", nil)
	case errors.Is(err, route.ErrDegenerateRoute):
		response.BadRequest(w, r, "route has no usable length", nil)
	case errors.Is(err, zone.ErrZoneNotFound):
		response.NotFound(w, r, "zone not found")
	case errors.Is(err, incident.ErrIncidentNotFound):
		response.NotFound(w, r, "incident not found")
	case errors.Is(err, incident.ErrInvalidStatusTransition):
		response.Conflict(w, r, "status transition not allowed")
	case errors.Is(err, database.ErrStorageUnavailable):
		response.ServiceUnavailable(w, r, "storage temporarily unavailable")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
