package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/safenet/safenet/internal/geo"
)

// Query defaults for proximity endpoints.
const (
	defaultMarkerRadiusMeters = 2000.0
	maxMarkerRadiusMeters     = 10000.0
	defaultIncidentWindow     = 30 * 24 * time.Hour
)

// parsePoint reads a coordinate pair from query parameters.
func parsePoint(r *http.Request, latKey, lngKey string) (geo.Point, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get(latKey), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%s must be a number", latKey)
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get(lngKey), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%s must be a number", lngKey)
	}

	p := geo.Point{Lat: lat, Lon: lng}
	if err := p.Validate(); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}

// parseFloatQuery reads an optional float query parameter.
func parseFloatQuery(r *http.Request, key string, fallback float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
