package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/contracts"
)

// DriverRepo keeps the durable last-known state that backs the polling fallback.
type DriverRepo struct {
	db dbtx
}

func NewDriverRepo(db dbtx) *DriverRepo {
	return &DriverRepo{db: db}
}

// SaveLastLocation mirrors a live record. Older records never overwrite newer ones.
func (repo *DriverRepo) SaveLastLocation(ctx context.Context, rec tracking.LocationRecord) error {
	_, err := repo.db.Exec(ctx, `
		UPDATE drivers
		SET last_latitude = $2,
			last_longitude = $3,
			is_on_duty = $4,
			last_location_update = $5
		WHERE id::text = $1
		  AND (last_location_update IS NULL OR last_location_update <= $5)
	`, rec.DriverID, rec.Latitude, rec.Longitude, rec.IsOnDuty, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("update driver last location: %w", err)
	}
	return nil
}

func (repo *DriverRepo) SetDuty(ctx context.Context, driverID string, onDuty bool) error {
	_, err := repo.db.Exec(ctx, `UPDATE drivers SET is_on_duty = $2 WHERE id::text = $1`, driverID, onDuty)
	if err != nil {
		return fmt.Errorf("update driver duty: %w", err)
	}
	return nil
}

// DriverSnapshots lists every active driver with its last durable position.
func (repo *DriverRepo) DriverSnapshots(ctx context.Context) ([]contracts.DriverSnapshot, error) {
	rows, err := repo.db.Query(ctx, `
		SELECT d.id::text, u.name, d.last_latitude, d.last_longitude, d.is_on_duty, d.last_location_update
		FROM drivers d
		JOIN users u ON u.id = d.user_id
		WHERE u.status = 'ACTIVE'
		ORDER BY u.name, d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("select driver snapshots: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanSnapshot)
	if err != nil {
		return nil, fmt.Errorf("scan driver snapshots: %w", err)
	}
	if out == nil {
		out = []contracts.DriverSnapshot{}
	}
	return out, nil
}

func scanSnapshot(row pgx.CollectableRow) (contracts.DriverSnapshot, error) {
	var (
		s          contracts.DriverSnapshot
		lastUpdate *time.Time
	)
	if err := row.Scan(&s.DriverID, &s.DriverName, &s.LastLatitude, &s.LastLongitude, &s.IsOnDuty, &lastUpdate); err != nil {
		return contracts.DriverSnapshot{}, err
	}
	if lastUpdate != nil {
		utc := lastUpdate.UTC()
		s.LastLocationUpdate = &utc
	}
	return s, nil
}
