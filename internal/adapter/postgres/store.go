package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadmetrics/defect-analytics/internal/domain"
)

// meters per degree of latitude; longitude degrees shrink with cos(lat).
const metersPerDegree = 111320.0

// Store implements domain.DefectStore on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed defect store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const defectColumns = "id, vehicle_id, defect_type, severity, latitude, longitude, notes, reported_at"

// FetchByFilter retrieves defects matching the query, newest first.
func (s *Store) FetchByFilter(ctx context.Context, q domain.FilterQuery) ([]domain.Defect, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Type != nil {
		where = append(where, "defect_type = "+arg(*q.Type))
	}
	if q.Severity != nil {
		where = append(where, "severity = "+arg(*q.Severity))
	}
	if q.BBox != nil {
		where = append(where, "latitude >= "+arg(q.BBox.LatMin))
		where = append(where, "latitude <= "+arg(q.BBox.LatMax))
		where = append(where, "longitude >= "+arg(q.BBox.LngMin))
		where = append(where, "longitude <= "+arg(q.BBox.LngMax))
	}
	if q.Since != nil {
		where = append(where, "reported_at >= "+arg(*q.Since))
	}
	if q.Until != nil {
		where = append(where, "reported_at < "+arg(*q.Until))
	}

	query := "SELECT " + defectColumns + " FROM defects"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY reported_at DESC"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}
	if q.Skip > 0 {
		query += " OFFSET " + arg(q.Skip)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query defects: %w", err)
	}
	defer rows.Close()

	return scanDefects(rows)
}

// FetchByRadius returns candidate defects inside a bounding box sized to the
// radius. The box over-approximates the circle; callers apply the geodesic
// distance filter.
func (s *Store) FetchByRadius(ctx context.Context, center domain.Coordinate, radiusMeters float64) ([]domain.Defect, error) {
	latDelta := radiusMeters / metersPerDegree
	cosLat := math.Cos(center.Latitude * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01 // near the poles every longitude is close
	}
	lngDelta := radiusMeters / (metersPerDegree * cosLat)

	bbox := &domain.BBox{
		LatMin: center.Latitude - latDelta,
		LatMax: center.Latitude + latDelta,
		LngMin: center.Longitude - lngDelta,
		LngMax: center.Longitude + lngDelta,
	}
	return s.FetchByFilter(ctx, domain.FilterQuery{BBox: bbox})
}

// PersistBatch inserts all defects in one transaction. Either every defect is
// stored or none are; assigned IDs come back in input order.
func (s *Store) PersistBatch(ctx context.Context, defects []domain.Defect) ([]int64, error) {
	if len(defects) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	batch := &pgx.Batch{}
	for _, d := range defects {
		batch.Queue(`
			INSERT INTO defects (vehicle_id, defect_type, severity, latitude, longitude, notes, reported_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, d.VehicleID, d.Type, d.Severity, d.Coordinate.Latitude, d.Coordinate.Longitude, d.Notes, d.ReportedAt)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]int64, len(defects))
	for i := range defects {
		if err := results.QueryRow().Scan(&ids[i]); err != nil {
			results.Close() //nolint:errcheck
			return nil, fmt.Errorf("postgres: failed to insert defect %d of batch: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("postgres: failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: failed to commit batch: %w", err)
	}
	return ids, nil
}

// Insert stores one defect and returns it with its assigned ID.
func (s *Store) Insert(ctx context.Context, d domain.Defect) (domain.Defect, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO defects (vehicle_id, defect_type, severity, latitude, longitude, notes, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, d.VehicleID, d.Type, d.Severity, d.Coordinate.Latitude, d.Coordinate.Longitude, d.Notes, d.ReportedAt).Scan(&d.ID)
	if err != nil {
		return domain.Defect{}, fmt.Errorf("postgres: failed to insert defect: %w", err)
	}
	return d, nil
}

// GetByID retrieves one defect, or domain.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (domain.Defect, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+defectColumns+" FROM defects WHERE id = $1", id)
	d, err := scanDefect(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Defect{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Defect{}, fmt.Errorf("postgres: failed to get defect %d: %w", id, err)
	}
	return d, nil
}

// Update changes the mutable fields of an accepted defect.
func (s *Store) Update(ctx context.Context, id int64, upd domain.DefectUpdate) (domain.Defect, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE defects
		SET defect_type = COALESCE($2, defect_type),
		    severity    = COALESCE($3, severity),
		    notes       = COALESCE($4, notes)
		WHERE id = $1
		RETURNING `+defectColumns,
		id, upd.Type, upd.Severity, upd.Notes)

	d, err := scanDefect(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Defect{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Defect{}, fmt.Errorf("postgres: failed to update defect %d: %w", id, err)
	}
	return d, nil
}

// Delete removes a defect, or returns domain.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM defects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete defect %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpsertDailyStatistics stores the statistics blob for the date with a single
// atomic statement. Re-running for the same date overwrites the row; the
// unique constraint on date makes concurrent runs converge instead of
// duplicating.
func (s *Store) UpsertDailyStatistics(ctx context.Context, date time.Time, statistics []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO defect_statistics (date, statistics, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (date) DO UPDATE
		SET statistics = EXCLUDED.statistics, updated_at = now()
	`, date.UTC().Truncate(24*time.Hour), statistics)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert statistics for %s: %w", date.Format("2006-01-02"), err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func scanDefects(rows pgx.Rows) ([]domain.Defect, error) {
	var defects []domain.Defect
	for rows.Next() {
		d, err := scanDefect(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan defect row: %w", err)
		}
		defects = append(defects, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: defect rows: %w", err)
	}
	return defects, nil
}

func scanDefect(row pgx.Row) (domain.Defect, error) {
	var d domain.Defect
	err := row.Scan(
		&d.ID, &d.VehicleID, &d.Type, &d.Severity,
		&d.Coordinate.Latitude, &d.Coordinate.Longitude,
		&d.Notes, &d.ReportedAt,
	)
	return d, err
}
