package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReviewService(t *testing.T) (*ReviewService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	service := NewReviewService(db, NewBookingService(db, NewCarRegistry(db)))
	return service, mock, func() { db.Close() }
}

func TestReviewService_Create(t *testing.T) {
	t.Run("persists a review for the caller's booking", func(t *testing.T) {
		service, mock, closeDB := newReviewService(t)
		defer closeDB()

		mock.ExpectQuery("SELECT id, customer_id, car_id, .+ FROM bookings WHERE id = \\$1").
			WithArgs("b-1").
			WillReturnRows(bookingRows("b-1", "alice", "car-7", "60.00", "completed"))
		mock.ExpectExec("INSERT INTO reviews").
			WithArgs(sqlmock.AnyArg(), "b-1", "car-7", "alice", 5, "Smooth ride", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		review, err := service.Create(context.Background(), "alice", "car-7", "b-1", 5, "Smooth ride")
		require.NoError(t, err)
		assert.Equal(t, 5, review.Rating)
		assert.Equal(t, "b-1", review.BookingID)
		assert.NotEmpty(t, review.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second review of the same booking is rejected", func(t *testing.T) {
		service, mock, closeDB := newReviewService(t)
		defer closeDB()

		mock.ExpectQuery("SELECT id, customer_id, car_id, .+ FROM bookings WHERE id = \\$1").
			WithArgs("b-1").
			WillReturnRows(bookingRows("b-1", "alice", "car-7", "60.00", "completed"))
		mock.ExpectExec("INSERT INTO reviews").
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := service.Create(context.Background(), "alice", "car-7", "b-1", 4, "")
		assert.ErrorIs(t, err, ErrAlreadyReviewed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else's booking reads as missing", func(t *testing.T) {
		service, mock, closeDB := newReviewService(t)
		defer closeDB()

		mock.ExpectQuery("SELECT id, customer_id, car_id, .+ FROM bookings WHERE id = \\$1").
			WithArgs("b-1").
			WillReturnRows(bookingRows("b-1", "alice", "car-7", "60.00", "completed"))

		_, err := service.Create(context.Background(), "mallory", "car-7", "b-1", 1, "never rented it")
		assert.ErrorIs(t, err, ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("booking for a different car is rejected", func(t *testing.T) {
		service, mock, closeDB := newReviewService(t)
		defer closeDB()

		mock.ExpectQuery("SELECT id, customer_id, car_id, .+ FROM bookings WHERE id = \\$1").
			WithArgs("b-1").
			WillReturnRows(bookingRows("b-1", "alice", "car-7", "60.00", "completed"))

		_, err := service.Create(context.Background(), "alice", "car-9", "b-1", 3, "")
		assert.ErrorIs(t, err, ErrReviewCarMismatch)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReviewService_ListByCar(t *testing.T) {
	service, mock, closeDB := newReviewService(t)
	defer closeDB()

	mock.ExpectQuery("SELECT id, booking_id, car_id, customer_id, rating, comment, created_at FROM reviews WHERE car_id = \\$1 ORDER BY created_at DESC").
		WithArgs("car-7").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "booking_id", "car_id", "customer_id", "rating", "comment", "created_at",
		}).
			AddRow("r-2", "b-2", "car-7", "bob", 4, "Clean car", time.Now()).
			AddRow("r-1", "b-1", "car-7", "alice", 5, "Smooth ride", time.Now().Add(-time.Hour)))

	reviews, err := service.ListByCar(context.Background(), "car-7")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "r-2", reviews[0].ID)
	assert.Equal(t, 5, reviews[1].Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}
