// Package spatial provides the in-memory spatial index used for zone
// containment and nearest-zone queries. Zones are indexed into a uniform
// degree-space grid sized to the largest expected zone radius.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/safenet/safenet/internal/geo"
)

// ErrInvalidGeometry is returned for degenerate zone geometries: non-positive
// radii, rings with fewer than three vertices, collinear rings, or
// self-intersecting rings.
var ErrInvalidGeometry = errors.New("invalid geometry")

// GeometryKind discriminates circle and polygon geometries.
type GeometryKind string

const (
	KindCircle  GeometryKind = "circle"
	KindPolygon GeometryKind = "polygon"
)

// Geometry is a zone footprint: a circle (center + radius) or a simple
// polygon ring.
type Geometry struct {
	Kind GeometryKind

	// Circle fields.
	Center       geo.Point
	RadiusMeters float64

	// Polygon ring, in order, without a closing duplicate vertex.
	Ring []geo.Point
}

// Circle builds a circular geometry.
func Circle(center geo.Point, radiusMeters float64) Geometry {
	return Geometry{Kind: KindCircle, Center: center, RadiusMeters: radiusMeters}
}

// Polygon builds a polygon geometry from an ordered ring.
func Polygon(ring []geo.Point) Geometry {
	return Geometry{Kind: KindPolygon, Ring: ring}
}

// Validate checks the geometry invariants.
func (g Geometry) Validate() error {
	switch g.Kind {
	case KindCircle:
		if err := g.Center.Validate(); err != nil {
			return err
		}
		if g.RadiusMeters <= 0 || math.IsNaN(g.RadiusMeters) || math.IsInf(g.RadiusMeters, 0) {
			return fmt.Errorf("%w: radius must be positive", ErrInvalidGeometry)
		}
		return nil
	case KindPolygon:
		if len(g.Ring) < 3 {
			return fmt.Errorf("%w: ring needs at least 3 vertices", ErrInvalidGeometry)
		}
		for _, v := range g.Ring {
			if err := v.Validate(); err != nil {
				return err
			}
		}
		if ringCollinear(g.Ring) {
			return fmt.Errorf("%w: ring vertices are collinear", ErrInvalidGeometry)
		}
		if ringSelfIntersects(g.Ring) {
			return fmt.Errorf("%w: ring is self-intersecting", ErrInvalidGeometry)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidGeometry, g.Kind)
	}
}

// Contains reports whether p lies inside the geometry. Polygons are tested
// with ray casting in a locally projected planar frame, which is accurate at
// city scale.
func (g Geometry) Contains(p geo.Point) bool {
	switch g.Kind {
	case KindCircle:
		return geo.Distance(p, g.Center) <= g.RadiusMeters
	case KindPolygon:
		return pointInRing(p, g.Ring)
	default:
		return false
	}
}

// Centroid returns a representative interior point: the circle center, or the
// vertex average for polygons.
func (g Geometry) Centroid() geo.Point {
	if g.Kind == KindCircle {
		return g.Center
	}
	var lat, lon float64
	for _, v := range g.Ring {
		lat += v.Lat
		lon += v.Lon
	}
	n := float64(len(g.Ring))
	return geo.Point{Lat: lat / n, Lon: lon / n}
}

// Extent returns the maximum distance in meters from the centroid to the
// geometry boundary. Used for grid coverage and nearest-query bounds.
func (g Geometry) Extent() float64 {
	if g.Kind == KindCircle {
		return g.RadiusMeters
	}
	c := g.Centroid()
	var max float64
	for _, v := range g.Ring {
		if d := geo.Distance(c, v); d > max {
			max = d
		}
	}
	return max
}

// DistanceTo returns the distance in meters from p to the geometry boundary,
// or 0 if p is inside.
func (g Geometry) DistanceTo(p geo.Point) float64 {
	switch g.Kind {
	case KindCircle:
		d := geo.Distance(p, g.Center) - g.RadiusMeters
		if d < 0 {
			return 0
		}
		return d
	case KindPolygon:
		if pointInRing(p, g.Ring) {
			return 0
		}
		return ringEdgeDistance(p, g.Ring)
	default:
		return math.Inf(1)
	}
}

// BoundaryDistance returns the distance from p to the geometry boundary
// regardless of side: positive both inside and outside. The geofence monitor
// uses it to judge whether a fix's accuracy radius straddles the boundary.
func (g Geometry) BoundaryDistance(p geo.Point) float64 {
	switch g.Kind {
	case KindCircle:
		return math.Abs(geo.Distance(p, g.Center) - g.RadiusMeters)
	case KindPolygon:
		return ringEdgeDistance(p, g.Ring)
	default:
		return math.Inf(1)
	}
}

// planar projects a point into a planar frame centered on origin, in meters.
func planar(p, origin geo.Point) (x, y float64) {
	const metersPerDeg = 111320
	cosLat := math.Cos(origin.Lat * math.Pi / 180)
	x = (p.Lon - origin.Lon) * metersPerDeg * cosLat
	y = (p.Lat - origin.Lat) * metersPerDeg
	return x, y
}

// pointInRing runs the even-odd ray casting test in a planar frame anchored
// at the first ring vertex.
func pointInRing(p geo.Point, ring []geo.Point) bool {
	origin := ring[0]
	px, py := planar(p, origin)

	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := planar(ring[i], origin)
		xj, yj := planar(ring[j], origin)

		if (yi > py) != (yj > py) &&
			px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// ringEdgeDistance returns the minimum planar distance from p to any ring edge.
func ringEdgeDistance(p geo.Point, ring []geo.Point) float64 {
	origin := ring[0]
	px, py := planar(p, origin)

	min := math.Inf(1)
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		ax, ay := planar(ring[j], origin)
		bx, by := planar(ring[i], origin)
		if d := pointSegmentDistance(px, py, ax, ay, bx, by); d < min {
			min = d
		}
		j = i
	}
	return min
}

func pointSegmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(px-cx, py-cy)
}

// ringCollinear reports whether all ring vertices lie on one line.
func ringCollinear(ring []geo.Point) bool {
	origin := ring[0]
	ax, ay := planar(ring[1], origin)
	for _, v := range ring[2:] {
		bx, by := planar(v, origin)
		if math.Abs(ax*by-ay*bx) > 1e-6 {
			return false
		}
	}
	return true
}

// ringSelfIntersects tests every non-adjacent edge pair for crossing.
// O(n^2), fine for the ring sizes users draw.
func ringSelfIntersects(ring []geo.Point) bool {
	n := len(ring)
	origin := ring[0]

	type seg struct{ ax, ay, bx, by float64 }
	segs := make([]seg, n)
	for i := 0; i < n; i++ {
		ax, ay := planar(ring[i], origin)
		bx, by := planar(ring[(i+1)%n], origin)
		segs[i] = seg{ax, ay, bx, by}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Skip adjacent edges (sharing a vertex), including the wrap pair.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(
				segs[i].ax, segs[i].ay, segs[i].bx, segs[i].by,
				segs[j].ax, segs[j].ay, segs[j].bx, segs[j].by,
			) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	d1 := cross(cx, cy, dx, dy, ax, ay)
	d2 := cross(cx, cy, dx, dy, bx, by)
	d3 := cross(ax, ay, bx, by, cx, cy)
	d4 := cross(ax, ay, bx, by, dx, dy)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}
