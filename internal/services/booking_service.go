package services

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/motorent/backend/internal/models"
	"github.com/shopspring/decimal"
)

// BookingService owns the booking records and their state machine. Drafts are
// created here in pending; the paid transitions only ever run inside a
// coordinator unit of work.
type BookingService struct {
	db   *sql.DB
	cars *CarRegistry
	now  func() time.Time
}

func NewBookingService(db *sql.DB, cars *CarRegistry) *BookingService {
	return &BookingService{
		db:   db,
		cars: cars,
		now:  time.Now,
	}
}

// RentalDays converts a rental period to billable days: ceiling of the
// calendar-day difference, minimum one day. A 3-hour rental bills one day.
func RentalDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// CreateDraft validates the request, prices it against the car's current
// daily rate and persists a pending booking. A pending booking is only an
// intent: it touches no wallet and no availability flag.
func (s *BookingService) CreateDraft(ctx context.Context, customerID, carID string, start, end time.Time, pickup, dropoff string) (*models.Booking, error) {
	if !end.After(start) {
		return nil, ErrInvalidDateRange
	}
	if end.Before(s.now()) {
		return nil, ErrDatesInPast
	}

	car, err := s.cars.GetCar(ctx, carID)
	if err != nil {
		return nil, err
	}

	totalPrice := car.PricePerDay.Mul(decimal.NewFromInt(int64(RentalDays(start, end))))

	booking := &models.Booking{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		CarID:           carID,
		StartDate:       start,
		EndDate:         end,
		TotalPrice:      totalPrice,
		PickupLocation:  pickup,
		DropoffLocation: dropoff,
		Status:          models.BookingPending,
		CreatedAt:       s.now(),
		UpdatedAt:       s.now(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, customer_id, car_id, start_date, end_date, total_price,
			pickup_location, dropoff_location, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		booking.ID, booking.CustomerID, booking.CarID, booking.StartDate, booking.EndDate,
		booking.TotalPrice, booking.PickupLocation, booking.DropoffLocation, booking.Status,
		booking.CreatedAt, booking.UpdatedAt)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	return booking, nil
}

// Get loads one booking.
func (s *BookingService) Get(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, car_id, start_date, end_date, total_price,
			pickup_location, dropoff_location, status, created_at, updated_at
		FROM bookings
		WHERE id = $1`, bookingID).Scan(&booking.ID, &booking.CustomerID, &booking.CarID,
		&booking.StartDate, &booking.EndDate, &booking.TotalPrice, &booking.PickupLocation,
		&booking.DropoffLocation, &booking.Status, &booking.CreatedAt, &booking.UpdatedAt)
	if isNoRows(err) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	return &booking, nil
}

// ListByCustomer returns a customer's bookings, newest first.
func (s *BookingService) ListByCustomer(ctx context.Context, customerID string) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, car_id, start_date, end_date, total_price,
			pickup_location, dropoff_location, status, created_at, updated_at
		FROM bookings
		WHERE customer_id = $1
		ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		var booking models.Booking
		if err := rows.Scan(&booking.ID, &booking.CustomerID, &booking.CarID,
			&booking.StartDate, &booking.EndDate, &booking.TotalPrice, &booking.PickupLocation,
			&booking.DropoffLocation, &booking.Status, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
			return nil, classifyStorageErr(err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageErr(err)
	}
	return bookings, nil
}

// LockTx loads a booking row FOR UPDATE so a coordinator operation observes
// and transitions its status without racing a concurrent retry.
func (s *BookingService) LockTx(tx *sql.Tx, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := tx.QueryRow(`
		SELECT id, customer_id, car_id, start_date, end_date, total_price,
			pickup_location, dropoff_location, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE`, bookingID).Scan(&booking.ID, &booking.CustomerID, &booking.CarID,
		&booking.StartDate, &booking.EndDate, &booking.TotalPrice, &booking.PickupLocation,
		&booking.DropoffLocation, &booking.Status, &booking.CreatedAt, &booking.UpdatedAt)
	if isNoRows(err) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	return &booking, nil
}

// TransitionTx moves a locked booking to the next status, enforcing the
// state machine. The caller must hold the row lock from LockTx.
func (s *BookingService) TransitionTx(tx *sql.Tx, booking *models.Booking, to string) error {
	if !models.CanTransition(booking.Status, to) {
		return ErrInvalidTransition
	}
	_, err := tx.Exec(`
		UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		to, s.now(), booking.ID)
	if err != nil {
		return classifyStorageErr(err)
	}
	booking.Status = to
	booking.UpdatedAt = s.now()
	return nil
}
