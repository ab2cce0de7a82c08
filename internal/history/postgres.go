package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/gocomet/ride-sdk/internal/domain/booking"
	"github.com/gocomet/ride-sdk/internal/domain/ride"
	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
)

// PostgresStore archives completed rides in a ride_history table.
// Rows are inserted once and never updated.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed archive
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the ride_history table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ride_history (
			id UUID PRIMARY KEY,
			rider_id UUID NOT NULL,
			driver_id UUID,
			vehicle_type TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			pickup_latitude DOUBLE PRECISION NOT NULL,
			pickup_longitude DOUBLE PRECISION NOT NULL,
			pickup_address TEXT,
			dropoff_latitude DOUBLE PRECISION NOT NULL,
			dropoff_longitude DOUBLE PRECISION NOT NULL,
			dropoff_address TEXT,
			fare BIGINT NOT NULL,
			estimated_duration_minutes INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		)`)
	return apperrors.Wrap(err, "ensure ride_history schema")
}

// Append inserts one completed ride. Conflicting ids are ignored so a
// replayed archive effect stays idempotent.
func (s *PostgresStore) Append(ctx context.Context, r ride.Ride) error {
	completedAt := time.Now()
	if r.CompletedAt != nil {
		completedAt = *r.CompletedAt
	}

	var driverID interface{}
	if r.DriverID != nil {
		driverID = r.DriverID.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ride_history (
			id, rider_id, driver_id, vehicle_type, payment_method,
			pickup_latitude, pickup_longitude, pickup_address,
			dropoff_latitude, dropoff_longitude, dropoff_address,
			fare, estimated_duration_minutes, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.RiderID, driverID, r.VehicleType, r.PaymentMethod,
		r.Pickup.Latitude, r.Pickup.Longitude, r.Pickup.Address,
		r.Dropoff.Latitude, r.Dropoff.Longitude, r.Dropoff.Address,
		r.Fare, r.EstimatedDurationMinutes, r.CreatedAt, completedAt,
	)
	return apperrors.Wrap(err, "append ride history")
}

// List returns archived rides for a rider, oldest first
func (s *PostgresStore) List(ctx context.Context, riderID uuid.UUID) ([]ride.Ride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rider_id, driver_id, vehicle_type, payment_method,
			pickup_latitude, pickup_longitude, pickup_address,
			dropoff_latitude, dropoff_longitude, dropoff_address,
			fare, estimated_duration_minutes, created_at, completed_at
		FROM ride_history
		WHERE rider_id = $1
		ORDER BY completed_at ASC`, riderID)
	if err != nil {
		return nil, apperrors.Wrap(err, "query ride history")
	}
	defer rows.Close()

	out := make([]ride.Ride, 0)
	for rows.Next() {
		var (
			r           ride.Ride
			driverID    sql.NullString
			vehicle     string
			payment     string
			completedAt time.Time
		)
		if err := rows.Scan(
			&r.ID, &r.RiderID, &driverID, &vehicle, &payment,
			&r.Pickup.Latitude, &r.Pickup.Longitude, &r.Pickup.Address,
			&r.Dropoff.Latitude, &r.Dropoff.Longitude, &r.Dropoff.Address,
			&r.Fare, &r.EstimatedDurationMinutes, &r.CreatedAt, &completedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "scan ride history row")
		}

		r.Status = ride.StatusCompleted
		r.VehicleType = booking.VehicleType(vehicle)
		r.PaymentMethod = booking.PaymentMethod(payment)
		r.CompletedAt = &completedAt
		if driverID.Valid {
			if id, err := uuid.Parse(driverID.String); err == nil {
				r.DriverID = &id
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
