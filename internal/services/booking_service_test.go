package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentalDays(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"exact three days", base, base.Add(72 * time.Hour), 3},
		{"partial day rounds up", base, base.Add(50 * time.Hour), 3},
		{"three hours bills one day", base, base.Add(3 * time.Hour), 1},
		{"one full day", base, base.Add(24 * time.Hour), 1},
		{"just over a day", base, base.Add(25 * time.Hour), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RentalDays(tt.start, tt.end))
		})
	}
}

func carRows(id, pricePerDay string, available bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "make", "model", "registration_number", "seats", "price_per_day",
		"available", "image_url", "created_at",
	}).AddRow(id, "Toyota", "Corolla", "KJA-412-XA", 5, pricePerDay, available, "", time.Now())
}

func TestBookingService_CreateDraft(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	cars := NewCarRegistry(db)
	service := NewBookingService(db, cars)
	service.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)

	t.Run("prices the draft and persists it pending", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, make, model, registration_number, seats, price_per_day").
			WithArgs("car-7").
			WillReturnRows(carRows("car-7", "20.00", true))
		mock.ExpectExec("INSERT INTO bookings").
			WithArgs(sqlmock.AnyArg(), "alice", "car-7", start, end, sqlmock.AnyArg(),
				"Airport", "Downtown", "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		booking, err := service.CreateDraft(context.Background(), "alice", "car-7",
			start, end, "Airport", "Downtown")
		require.NoError(t, err)
		assert.Equal(t, "pending", booking.Status)
		assert.True(t, booking.TotalPrice.Equal(decimal.RequireFromString("60")),
			"3 days at 20/day, got %s", booking.TotalPrice)
		assert.NotEmpty(t, booking.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects end before start", func(t *testing.T) {
		_, err := service.CreateDraft(context.Background(), "alice", "car-7",
			end, start, "Airport", "Downtown")
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})

	t.Run("rejects equal start and end", func(t *testing.T) {
		_, err := service.CreateDraft(context.Background(), "alice", "car-7",
			start, start, "Airport", "Downtown")
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})

	t.Run("rejects a period entirely in the past", func(t *testing.T) {
		pastStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		pastEnd := pastStart.Add(48 * time.Hour)
		_, err := service.CreateDraft(context.Background(), "alice", "car-7",
			pastStart, pastEnd, "Airport", "Downtown")
		assert.ErrorIs(t, err, ErrDatesInPast)
	})

	t.Run("unknown car", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, make, model").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "make", "model", "registration_number", "seats", "price_per_day",
				"available", "image_url", "created_at",
			}))

		_, err := service.CreateDraft(context.Background(), "alice", "ghost",
			start, end, "Airport", "Downtown")
		assert.ErrorIs(t, err, ErrCarNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending draft writes nothing but the booking row", func(t *testing.T) {
		// The insert above is the only statement: no wallet, no car update.
		mock.ExpectQuery("SELECT id, make, model").
			WithArgs("car-7").
			WillReturnRows(carRows("car-7", "20.00", true))
		mock.ExpectExec("INSERT INTO bookings").
			WillReturnResult(sqlmock.NewResult(1, 1))

		_, err := service.CreateDraft(context.Background(), "alice", "car-7",
			start, end, "Airport", "Downtown")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingService_ListByCustomer(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	service := NewBookingService(db, NewCarRegistry(db))

	mock.ExpectQuery("SELECT id, customer_id, car_id, .+ FROM bookings WHERE customer_id = \\$1 ORDER BY created_at DESC").
		WithArgs("alice").
		WillReturnRows(bookingRows("b-1", "alice", "car-7", "60.00", "confirmed"))

	bookings, err := service.ListByCustomer(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "b-1", bookings[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
