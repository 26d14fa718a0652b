package incident

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safenet/safenet/internal/database"
	"github.com/safenet/safenet/internal/geo"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// Proximity queries prefilter on a lat/lon bounding box, then refine with the
// haversine distance in Go. Keeps the schema free of PostGIS.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL incident repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const incidentColumns = `
	id, type, severity, status, lat, lon,
	description, reported_by, occurred_at, created_at, updated_at
`

// Get retrieves an incident by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	inc, err := scanIncident(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIncidentNotFound
		}
		return nil, database.Classify(err)
	}
	return inc, nil
}

// Create appends a new incident.
func (r *PostgresRepository) Create(ctx context.Context, inc *Incident) error {
	query := `
		INSERT INTO incidents (
			id, type, severity, status, lat, lon,
			description, reported_by, occurred_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	return database.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, query,
			inc.ID,
			string(inc.Type),
			string(inc.Severity),
			string(inc.Status),
			inc.Location.Lat,
			inc.Location.Lon,
			inc.Description,
			inc.ReportedBy,
			inc.OccurredAt,
			inc.CreatedAt,
			inc.UpdatedAt,
		)
		return err
	})
}

// UpdateStatus changes an incident's status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	query := `UPDATE incidents SET status = $2, updated_at = $3 WHERE id = $1`

	return database.Retry(ctx, func() error {
		result, err := r.pool.Exec(ctx, query, id, string(status), updatedAt)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return ErrIncidentNotFound
		}
		return nil
	})
}

// ListNear retrieves incidents within radiusMeters of p since the cutoff.
func (r *PostgresRepository) ListNear(ctx context.Context, p geo.Point, radiusMeters float64, since time.Time) ([]*Incident, error) {
	min, max := geo.BoundingBox(p, radiusMeters)

	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE lat BETWEEN $1 AND $2
		  AND lon BETWEEN $3 AND $4
		  AND occurred_at >= $5
		ORDER BY occurred_at DESC
	`

	rows, err := r.pool.Query(ctx, query, min.Lat, max.Lat, min.Lon, max.Lon, since)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()

	var incidents []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		// Bounding box is a superset of the circle.
		if geo.Distance(p, inc.Location) > radiusMeters {
			continue
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err)
	}
	return incidents, nil
}

// ListSince retrieves every incident since the cutoff, oldest first.
func (r *PostgresRepository) ListSince(ctx context.Context, since time.Time) ([]*Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE occurred_at >= $1 ORDER BY occurred_at`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, database.Classify(err)
	}
	defer rows.Close()

	var incidents []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err)
	}
	return incidents, nil
}

// scanIncident reads one incident row.
func scanIncident(row pgx.Row) (*Incident, error) {
	var (
		inc      Incident
		typ      string
		severity string
		status   string
	)

	err := row.Scan(
		&inc.ID,
		&typ,
		&severity,
		&status,
		&inc.Location.Lat,
		&inc.Location.Lon,
		&inc.Description,
		&inc.ReportedBy,
		&inc.OccurredAt,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inc.Type = Type(typ)
	inc.Severity = Severity(severity)
	inc.Status = Status(status)
	return &inc, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
