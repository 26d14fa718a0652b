package spatial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/spatial"
)

func TestGeometry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		geom    spatial.Geometry
		wantErr error
	}{
		{
			name: "valid circle",
			geom: spatial.Circle(geo.Point{Lat: 40.70, Lon: -74.00}, 100),
		},
		{
			name:    "zero radius",
			geom:    spatial.Circle(geo.Point{Lat: 40.70, Lon: -74.00}, 0),
			wantErr: spatial.ErrInvalidGeometry,
		},
		{
			name:    "negative radius",
			geom:    spatial.Circle(geo.Point{Lat: 40.70, Lon: -74.00}, -5),
			wantErr: spatial.ErrInvalidGeometry,
		},
		{
			name:    "circle center out of range",
			geom:    spatial.Circle(geo.Point{Lat: 95, Lon: 0}, 100),
			wantErr: geo.ErrInvalidCoordinate,
		},
		{
			name: "valid triangle",
			geom: spatial.Polygon([]geo.Point{
				{Lat: 40.700, Lon: -74.000},
				{Lat: 40.702, Lon: -74.000},
				{Lat: 40.701, Lon: -73.998},
			}),
		},
		{
			name: "too few vertices",
			geom: spatial.Polygon([]geo.Point{
				{Lat: 40.700, Lon: -74.000},
				{Lat: 40.702, Lon: -74.000},
			}),
			wantErr: spatial.ErrInvalidGeometry,
		},
		{
			name: "collinear ring",
			geom: spatial.Polygon([]geo.Point{
				{Lat: 40.700, Lon: -74.000},
				{Lat: 40.701, Lon: -74.000},
				{Lat: 40.702, Lon: -74.000},
			}),
			wantErr: spatial.ErrInvalidGeometry,
		},
		{
			name: "self-intersecting bowtie",
			geom: spatial.Polygon([]geo.Point{
				{Lat: 40.700, Lon: -74.000},
				{Lat: 40.702, Lon: -73.998},
				{Lat: 40.702, Lon: -74.000},
				{Lat: 40.700, Lon: -73.998},
			}),
			wantErr: spatial.ErrInvalidGeometry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.geom.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCircle_Contains(t *testing.T) {
	center := geo.Point{Lat: 40.70, Lon: -74.00}
	c := spatial.Circle(center, 100)

	assert.True(t, c.Contains(center))
	// ~15m away.
	assert.True(t, c.Contains(geo.Point{Lat: 40.7001, Lon: -74.0001}))
	// ~1.1km away.
	assert.False(t, c.Contains(geo.Point{Lat: 40.71, Lon: -74.00}))
}

func TestPolygon_Contains(t *testing.T) {
	// Roughly a 400m x 400m square.
	square := spatial.Polygon([]geo.Point{
		{Lat: 40.700, Lon: -74.000},
		{Lat: 40.700, Lon: -73.996},
		{Lat: 40.704, Lon: -73.996},
		{Lat: 40.704, Lon: -74.000},
	})
	require.NoError(t, square.Validate())

	assert.True(t, square.Contains(geo.Point{Lat: 40.702, Lon: -73.998}))
	assert.False(t, square.Contains(geo.Point{Lat: 40.706, Lon: -73.998}))
	assert.False(t, square.Contains(geo.Point{Lat: 40.702, Lon: -73.990}))
}

func TestGeometry_DistanceTo(t *testing.T) {
	center := geo.Point{Lat: 40.70, Lon: -74.00}
	c := spatial.Circle(center, 100)

	// Inside is zero.
	assert.Zero(t, c.DistanceTo(center))

	// ~1113m from center, so ~1013m from the boundary.
	outside := geo.Point{Lat: 40.71, Lon: -74.00}
	assert.InDelta(t, 1013, c.DistanceTo(outside), 20)
}

func TestGeometry_BoundaryDistance(t *testing.T) {
	center := geo.Point{Lat: 40.70, Lon: -74.00}
	c := spatial.Circle(center, 100)

	// At the center the boundary is one radius away.
	assert.InDelta(t, 100, c.BoundaryDistance(center), 0.5)

	// Just inside the boundary it is small.
	near := geo.Point{Lat: 40.7008, Lon: -74.00} // ~89m north
	assert.Less(t, c.BoundaryDistance(near), 20.0)
}
