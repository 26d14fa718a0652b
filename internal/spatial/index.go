package spatial

import (
	"math"
	"sort"
	"sync"

	"github.com/safenet/safenet/internal/geo"
)

// DefaultCellSizeMeters matches the largest expected zone radius so that a
// zone rarely spans more than a handful of cells.
const DefaultCellSizeMeters = 500

// maxSearchRings bounds nearest-query ring expansion (~50 km at the default
// cell size).
const maxSearchRings = 100

// minCosLat floors the latitude correction near the poles, matching the
// bounding-box math in the geo package.
const minCosLat = 0.01

// Neighbor is one result of a nearest-zone query.
type Neighbor struct {
	ZoneID string
	// DistanceMeters is the distance to the zone boundary, 0 if inside.
	DistanceMeters float64
}

// Index is a uniform-grid spatial index over zone geometries. Safe for
// concurrent use: many readers, writes serialized internally.
type Index struct {
	cellSize float64

	mu    sync.RWMutex
	cells map[geo.Cell]map[string]struct{}
	geoms map[string]Geometry
}

// NewIndex creates an index with the given grid cell size in meters.
// Non-positive sizes fall back to DefaultCellSizeMeters.
func NewIndex(cellSizeMeters float64) *Index {
	if cellSizeMeters <= 0 {
		cellSizeMeters = DefaultCellSizeMeters
	}
	return &Index{
		cellSize: cellSizeMeters,
		cells:    make(map[geo.Cell]map[string]struct{}),
		geoms:    make(map[string]Geometry),
	}
}

// Insert adds or replaces the geometry for a zone.
func (ix *Index) Insert(zoneID string, g Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(zoneID)
	ix.geoms[zoneID] = g
	for _, c := range ix.coveredCells(g) {
		bucket, ok := ix.cells[c]
		if !ok {
			bucket = make(map[string]struct{})
			ix.cells[c] = bucket
		}
		bucket[zoneID] = struct{}{}
	}
	return nil
}

// Remove drops a zone from the index. Removing an unknown zone is a no-op.
func (ix *Index) Remove(zoneID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(zoneID)
}

func (ix *Index) removeLocked(zoneID string) {
	g, ok := ix.geoms[zoneID]
	if !ok {
		return
	}
	delete(ix.geoms, zoneID)
	for _, c := range ix.coveredCells(g) {
		if bucket, ok := ix.cells[c]; ok {
			delete(bucket, zoneID)
			if len(bucket) == 0 {
				delete(ix.cells, c)
			}
		}
	}
}

// Query returns the IDs of all zones whose geometry contains p.
func (ix *Index) Query(p geo.Point) ([]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var ids []string
	for id := range ix.cells[geo.CellOf(p, ix.cellSize)] {
		if ix.geoms[id].Contains(p) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Nearest returns up to k zones ordered by boundary distance from p.
// Expands the grid search ring by ring and stops once no closer zone can
// exist in rings not yet visited.
func (ix *Index) Nearest(p geo.Point, k int) ([]Neighbor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	center := geo.CellOf(p, ix.cellSize)
	seen := make(map[string]struct{})
	var found []Neighbor

	// Cells are square in degrees, so their east-west span shrinks by
	// cos(lat) in meters. The per-ring bound must use the shorter span or
	// the search stops before reaching zones that are nearer going east or
	// west.
	cosLat := math.Cos(p.Lat * math.Pi / 180)
	if cosLat < minCosLat {
		cosLat = minCosLat
	}
	metersPerRing := ix.cellSize * cosLat

	for ring := 0; ring <= maxSearchRings; ring++ {
		// Any zone discovered in ring r has its nearest registered cell at
		// least (r-1) cells away, so once the kth best beats that bound no
		// further ring can improve the result.
		if len(found) >= k {
			bound := float64(ring-1) * metersPerRing
			sort.Slice(found, func(a, b int) bool { return found[a].DistanceMeters < found[b].DistanceMeters })
			if found[k-1].DistanceMeters <= bound {
				break
			}
		}

		for _, c := range ringCells(center, ring) {
			for id := range ix.cells[c] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				found = append(found, Neighbor{
					ZoneID:         id,
					DistanceMeters: ix.geoms[id].DistanceTo(p),
				})
			}
		}
	}

	sort.Slice(found, func(a, b int) bool {
		if found[a].DistanceMeters != found[b].DistanceMeters {
			return found[a].DistanceMeters < found[b].DistanceMeters
		}
		return found[a].ZoneID < found[b].ZoneID
	})
	if len(found) > k {
		found = found[:k]
	}
	return found, nil
}

// Len returns the number of indexed zones.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.geoms)
}

// coveredCells returns every grid cell the geometry's bounding box touches.
func (ix *Index) coveredCells(g Geometry) []geo.Cell {
	c := g.Centroid()
	extent := g.Extent()
	min, max := geo.BoundingBox(c, extent)

	lo := geo.CellOf(min, ix.cellSize)
	hi := geo.CellOf(max, ix.cellSize)

	// Guard against absurd extents blowing up the cell count.
	const maxSpan = 64
	if hi.X-lo.X > maxSpan {
		hi.X = lo.X + maxSpan
	}
	if hi.Y-lo.Y > maxSpan {
		hi.Y = lo.Y + maxSpan
	}

	var cells []geo.Cell
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			cells = append(cells, geo.Cell{X: x, Y: y})
		}
	}
	return cells
}

// ringCells returns the cells at exactly Chebyshev distance ring from center.
func ringCells(center geo.Cell, ring int) []geo.Cell {
	if ring == 0 {
		return []geo.Cell{center}
	}

	cells := make([]geo.Cell, 0, 8*ring)
	for x := center.X - ring; x <= center.X+ring; x++ {
		cells = append(cells,
			geo.Cell{X: x, Y: center.Y - ring},
			geo.Cell{X: x, Y: center.Y + ring},
		)
	}
	for y := center.Y - ring + 1; y <= center.Y+ring-1; y++ {
		cells = append(cells,
			geo.Cell{X: center.X - ring, Y: y},
			geo.Cell{X: center.X + ring, Y: y},
		)
	}
	return cells
}
