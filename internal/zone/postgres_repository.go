package zone

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safenet/safenet/internal/database"
	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/spatial"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// Polygon rings are stored polyline-encoded in the ring column; circle rows
// leave it empty.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL zone repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const zoneColumns = `
	id, name, classification, kind,
	center_lat, center_lon, radius_m, ring,
	owner, created_at, updated_at
`

// Get retrieves a zone by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	z, err := scanZone(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, database.Classify(err)
	}
	return z, nil
}

// List retrieves every zone.
func (r *PostgresRepository) List(ctx context.Context) ([]*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()

	var zones []*Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err)
	}
	return zones, nil
}

// Create stores a new zone.
func (r *PostgresRepository) Create(ctx context.Context, z *Zone) error {
	query := `
		INSERT INTO zones (
			id, name, classification, kind,
			center_lat, center_lon, radius_m, ring,
			owner, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	center := z.Geometry.Centroid()
	err := database.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, query,
			z.ID,
			z.Name,
			string(z.Classification),
			string(z.Geometry.Kind),
			center.Lat,
			center.Lon,
			z.Geometry.RadiusMeters,
			geo.EncodePolyline(z.Geometry.Ring),
			z.Owner,
			z.CreatedAt,
			z.UpdatedAt,
		)
		return err
	})
	return err
}

// Update replaces an existing zone.
func (r *PostgresRepository) Update(ctx context.Context, z *Zone) error {
	query := `
		UPDATE zones SET
			name = $2,
			classification = $3,
			kind = $4,
			center_lat = $5,
			center_lon = $6,
			radius_m = $7,
			ring = $8,
			updated_at = $9
		WHERE id = $1
	`

	center := z.Geometry.Centroid()
	return database.Retry(ctx, func() error {
		result, err := r.pool.Exec(ctx, query,
			z.ID,
			z.Name,
			string(z.Classification),
			string(z.Geometry.Kind),
			center.Lat,
			center.Lon,
			z.Geometry.RadiusMeters,
			geo.EncodePolyline(z.Geometry.Ring),
			z.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return ErrZoneNotFound
		}
		return nil
	})
}

// Delete removes a zone by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM zones WHERE id = $1`
	return database.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, query, id)
		return err
	})
}

// scanZone reads one zone row.
func scanZone(row pgx.Row) (*Zone, error) {
	var (
		z       Zone
		kind    string
		class   string
		lat     float64
		lon     float64
		radius  float64
		encoded string
	)

	err := row.Scan(
		&z.ID,
		&z.Name,
		&class,
		&kind,
		&lat,
		&lon,
		&radius,
		&encoded,
		&z.Owner,
		&z.CreatedAt,
		&z.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	z.Classification = Classification(class)
	switch spatial.GeometryKind(kind) {
	case spatial.KindPolygon:
		z.Geometry = spatial.Polygon(geo.DecodePolyline(encoded))
	default:
		z.Geometry = spatial.Circle(geo.Point{Lat: lat, Lon: lon}, radius)
	}
	return &z, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
