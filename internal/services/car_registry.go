package services

import (
	"context"
	"database/sql"

	"github.com/motorent/backend/internal/models"
)

// CarRegistry owns the per-car availability flag. Reservation is a single
// conditional UPDATE, so two concurrent bookings for the same car resolve to
// exactly one winner without any application-level locking.
type CarRegistry struct {
	db *sql.DB
}

func NewCarRegistry(db *sql.DB) *CarRegistry {
	return &CarRegistry{db: db}
}

// GetCar reads one catalog record.
func (r *CarRegistry) GetCar(ctx context.Context, carID string) (*models.Car, error) {
	var car models.Car
	err := r.db.QueryRowContext(ctx, `
		SELECT id, make, model, registration_number, seats, price_per_day, available, image_url, created_at
		FROM cars
		WHERE id = $1`, carID).Scan(&car.ID, &car.Make, &car.Model, &car.RegistrationNumber,
		&car.Seats, &car.PricePerDay, &car.Available, &car.ImageURL, &car.CreatedAt)
	if isNoRows(err) {
		return nil, ErrCarNotFound
	}
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	return &car, nil
}

// TryReserveTx flips the availability flag to false if and only if it is
// currently true. The WHERE clause makes the check-and-set atomic: a
// concurrent reservation sees zero affected rows and fails with
// ErrCarUnavailable instead of double-booking.
func (r *CarRegistry) TryReserveTx(tx *sql.Tx, carID string) error {
	result, err := tx.Exec(`
		UPDATE cars SET available = FALSE
		WHERE id = $1 AND available = TRUE`, carID)
	if err != nil {
		return classifyStorageErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classifyStorageErr(err)
	}
	if affected == 0 {
		// Distinguish a missing car from a taken one.
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM cars WHERE id = $1)`, carID).Scan(&exists); err != nil {
			return classifyStorageErr(err)
		}
		if !exists {
			return ErrCarNotFound
		}
		return ErrCarUnavailable
	}
	return nil
}

// ReleaseTx sets the car available again. Releasing an already-available car
// is a no-op, which keeps cancellation and completion idempotent at this
// layer.
func (r *CarRegistry) ReleaseTx(tx *sql.Tx, carID string) error {
	_, err := tx.Exec(`
		UPDATE cars SET available = TRUE
		WHERE id = $1`, carID)
	return classifyStorageErr(err)
}
