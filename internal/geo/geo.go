// Package geo provides the shared geographic primitives for SafeNet:
// coordinates, distance math, grid cells, and path utilities.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned for NaN, infinite, or out-of-range coordinates.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const (
	earthRadiusMeters = 6371000

	// metersPerDegreeLat is the approximate north-south length of one degree
	// of latitude. Good to within 1% everywhere, which is ample at city scale.
	metersPerDegreeLat = 111320
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// Validate checks that the point is a real coordinate on the globe.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("%w: not a finite number", ErrInvalidCoordinate)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, p.Lon)
	}
	return nil
}

// Distance calculates the great-circle distance between two points in meters
// using the haversine formula.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Cell identifies a square of the uniform degree-space grid used by both the
// spatial index and the risk model. Cells are latStep x latStep degrees, so
// their east-west span in meters shrinks by cos(lat) toward the poles;
// distance bounds derived from the cell size must use that shorter span.
type Cell struct {
	X int
	Y int
}

// String returns a stable key form, e.g. "c_520_48".
func (c Cell) String() string {
	return fmt.Sprintf("c_%d_%d", c.X, c.Y)
}

// CellOf returns the grid cell containing p for the given cell size in meters.
func CellOf(p Point, sizeMeters float64) Cell {
	step := sizeMeters / metersPerDegreeLat
	return Cell{
		X: int(math.Floor(p.Lon / step)),
		Y: int(math.Floor(p.Lat / step)),
	}
}

// CellCenter returns the center point of a cell for the given cell size.
func CellCenter(c Cell, sizeMeters float64) Point {
	step := sizeMeters / metersPerDegreeLat
	return Point{
		Lat: (float64(c.Y) + 0.5) * step,
		Lon: (float64(c.X) + 0.5) * step,
	}
}

// BoundingBox returns the min/max corner points of a circle of the given
// radius around center. Used to prefilter candidates before exact distance
// checks.
func BoundingBox(center Point, radiusMeters float64) (min, max Point) {
	dLat := radiusMeters / metersPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLon := radiusMeters / (metersPerDegreeLat * cosLat)

	min = Point{Lat: center.Lat - dLat, Lon: center.Lon - dLon}
	max = Point{Lat: center.Lat + dLat, Lon: center.Lon + dLon}
	return min, max
}
