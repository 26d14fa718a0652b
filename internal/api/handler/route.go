package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/safenet/safenet/internal/alert"
	"github.com/safenet/safenet/internal/api/models"
	"github.com/safenet/safenet/internal/api/response"
	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/route"
)

// RouteHandler handles route scoring endpoints. Routes whose aggregate score
// falls below alertThreshold raise a route-risk alert for the caller.
type RouteHandler struct {
	routes         *route.Service
	alerts         *alert.Service
	alertThreshold float64
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(routes *route.Service, alerts *alert.Service, alertThreshold float64) *RouteHandler {
	return &RouteHandler{routes: routes, alerts: alerts, alertThreshold: alertThreshold}
}

// ScoreRoute handles POST /v1/routes:score.
func (h *RouteHandler) ScoreRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var path []geo.Point
	switch {
	case len(req.Path) > 0:
		path = make([]geo.Point, 0, len(req.Path))
		for _, p := range req.Path {
			path = append(path, p.Geo())
		}
	case req.Polyline != "":
		path = geo.DecodePolyline(req.Polyline)
	default:
		response.BadRequest(w, r, "path or polyline is required", nil)
		return
	}

	departAt := time.Now()
	if req.DepartureTime != nil {
		departAt = req.DepartureTime.Time()
	}

	result, err := h.routes.Score(r.Context(), path, departAt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if h.alerts != nil && result.Score < h.alertThreshold {
		h.alerts.NotifyRouteRisk(r.Context(), GetUserID(r.Context()), path[0], result.Score)
	}

	response.JSON(w, r, http.StatusOK, toRouteScoreModel(result))
}

func toRouteScoreModel(res *route.Result) models.RouteScore {
	out := models.RouteScore{
		Score:           res.Score,
		Level:           string(res.Level),
		LowConfidence:   res.LowConfidence,
		LengthMeters:    res.LengthMeters,
		DurationSeconds: res.DurationSeconds,
		Samples:         res.Samples,
	}
	for _, seg := range res.Flagged {
		out.Flagged = append(out.Flagged, models.RouteSegment{
			Start:        models.FromGeo(seg.Start),
			End:          models.FromGeo(seg.End),
			LengthMeters: seg.LengthMeters,
			WorstScore:   seg.WorstScore,
			Level:        string(seg.Level),
		})
	}
	return out
}
