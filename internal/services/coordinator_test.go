package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/motorent/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) (*BookingCoordinator, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	wallets := NewWalletService(db)
	cars := NewCarRegistry(db)
	bookings := NewBookingService(db, cars)
	coordinator := NewBookingCoordinator(db, wallets, cars, bookings, "platform", 5*time.Second)
	return coordinator, mock, func() { db.Close() }
}

func bookingRows(id, customerID, carID, totalPrice, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "customer_id", "car_id", "start_date", "end_date", "total_price",
		"pickup_location", "dropoff_location", "status", "created_at", "updated_at",
	}).AddRow(id, customerID, carID, now, now.Add(72*time.Hour), totalPrice,
		"Airport", "Downtown", status, now, now)
}

func expectBookingLock(mock sqlmock.Sqlmock, rows *sqlmock.Rows, id string) {
	mock.ExpectQuery("SELECT id, customer_id, car_id, .+ FROM bookings WHERE id = \\$1 FOR UPDATE").
		WithArgs(id).
		WillReturnRows(rows)
}

func TestBookingCoordinator_PayAndConfirm(t *testing.T) {
	t.Run("debits customer, reserves car and confirms atomically", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-1", "alice", "car-7", "60.00", models.BookingPending), "b-1")
		mock.ExpectQuery("SELECT available FROM cars WHERE id = \\$1").
			WithArgs("car-7").
			WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(true))
		expectWalletLock(mock, "alice", "100.00", false, 1)
		expectWalletLock(mock, "platform", "0.00", false, 1)
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("alice", "debit", sqlmock.AnyArg(), sqlmock.AnyArg(), "b-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("platform", "credit", sqlmock.AnyArg(), sqlmock.AnyArg(), "b-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec("UPDATE wallets SET balance").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "alice", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE wallets SET balance").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "platform", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE cars SET available = FALSE WHERE id = \\$1 AND available = TRUE").
			WithArgs("car-7").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE bookings SET status = \\$1").
			WithArgs(models.BookingConfirmed, sqlmock.AnyArg(), "b-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := coordinator.PayAndConfirm(context.Background(), "b-1")
		require.NoError(t, err)
		assert.Equal(t, models.BookingConfirmed, result.Booking.Status)
		assert.True(t, result.Balance.Equal(decimal.RequireFromString("40")),
			"100 - 60 should leave 40, got %s", result.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds aborts the whole unit of work", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-2", "alice", "car-7", "60.00", models.BookingPending), "b-2")
		mock.ExpectQuery("SELECT available FROM cars").
			WithArgs("car-7").
			WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(true))
		expectWalletLock(mock, "alice", "10.00", false, 1)
		expectWalletLock(mock, "platform", "0.00", false, 1)
		// No ledger writes, no car update, no status update: rollback.
		mock.ExpectRollback()

		_, err := coordinator.PayAndConfirm(context.Background(), "b-2")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("car taken before payment fails fast without debiting", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-3", "alice", "car-7", "60.00", models.BookingPending), "b-3")
		mock.ExpectQuery("SELECT available FROM cars").
			WithArgs("car-7").
			WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(false))
		mock.ExpectRollback()

		_, err := coordinator.PayAndConfirm(context.Background(), "b-3")
		assert.ErrorIs(t, err, ErrCarUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("losing the reservation race rolls back the transfer", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-4", "alice", "car-7", "60.00", models.BookingPending), "b-4")
		mock.ExpectQuery("SELECT available FROM cars").
			WithArgs("car-7").
			WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(true))
		expectWalletLock(mock, "alice", "100.00", false, 1)
		expectWalletLock(mock, "platform", "0.00", false, 1)
		mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec("UPDATE wallets SET balance").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE wallets SET balance").WillReturnResult(sqlmock.NewResult(0, 1))
		// Another transaction won the car between our pre-check and here.
		mock.ExpectExec("UPDATE cars SET available = FALSE").
			WithArgs("car-7").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("car-7").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := coordinator.PayAndConfirm(context.Background(), "b-4")
		assert.ErrorIs(t, err, ErrCarUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retry on confirmed booking returns InvalidTransition, no double charge", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-5", "alice", "car-7", "60.00", models.BookingConfirmed), "b-5")
		mock.ExpectRollback()

		_, err := coordinator.PayAndConfirm(context.Background(), "b-5")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing booking", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		emptyRows := sqlmock.NewRows([]string{
			"id", "customer_id", "car_id", "start_date", "end_date", "total_price",
			"pickup_location", "dropoff_location", "status", "created_at", "updated_at",
		})
		mock.ExpectBegin()
		expectBookingLock(mock, emptyRows, "nope")
		mock.ExpectRollback()

		_, err := coordinator.PayAndConfirm(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingCoordinator_CancelAndRefund(t *testing.T) {
	t.Run("refunds customer, releases car and cancels atomically", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-1", "alice", "car-7", "60.00", models.BookingConfirmed), "b-1")
		expectWalletLock(mock, "alice", "40.00", false, 2)
		expectWalletLock(mock, "platform", "60.00", false, 2)
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("platform", "debit", sqlmock.AnyArg(), sqlmock.AnyArg(), "b-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(3, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("alice", "credit", sqlmock.AnyArg(), sqlmock.AnyArg(), "b-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(4, 1))
		mock.ExpectExec("UPDATE wallets SET balance").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "platform", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE wallets SET balance").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "alice", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE cars SET available = TRUE").
			WithArgs("car-7").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE bookings SET status = \\$1").
			WithArgs(models.BookingCancelled, sqlmock.AnyArg(), "b-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		// Balance read-back for the response, inside the same unit of work.
		expectWalletLock(mock, "alice", "100.00", false, 3)
		mock.ExpectCommit()

		result, err := coordinator.CancelAndRefund(context.Background(), "b-1")
		require.NoError(t, err)
		assert.Equal(t, models.BookingCancelled, result.Booking.Status)
		assert.True(t, result.RefundAmount.Equal(decimal.RequireFromString("60")))
		assert.True(t, result.Balance.Equal(decimal.RequireFromString("100")),
			"round trip must restore the pre-booking balance")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelling a pending booking is rejected", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-2", "alice", "car-7", "60.00", models.BookingPending), "b-2")
		mock.ExpectRollback()

		_, err := coordinator.CancelAndRefund(context.Background(), "b-2")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("drained platform wallet surfaces RefundUnavailable", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-3", "alice", "car-7", "60.00", models.BookingConfirmed), "b-3")
		expectWalletLock(mock, "alice", "40.00", false, 2)
		expectWalletLock(mock, "platform", "10.00", false, 2)
		mock.ExpectRollback()

		_, err := coordinator.CancelAndRefund(context.Background(), "b-3")
		assert.ErrorIs(t, err, ErrRefundUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingCoordinator_Complete(t *testing.T) {
	t.Run("completes and releases the car in one unit of work", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-1", "alice", "car-7", "60.00", models.BookingConfirmed), "b-1")
		mock.ExpectExec("UPDATE bookings SET status = \\$1").
			WithArgs(models.BookingCompleted, sqlmock.AnyArg(), "b-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE cars SET available = TRUE").
			WithArgs("car-7").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		booking, err := coordinator.Complete(context.Background(), "b-1")
		require.NoError(t, err)
		assert.Equal(t, models.BookingCompleted, booking.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completing a cancelled booking is rejected", func(t *testing.T) {
		coordinator, mock, closeDB := newCoordinator(t)
		defer closeDB()

		mock.ExpectBegin()
		expectBookingLock(mock, bookingRows("b-2", "alice", "car-7", "60.00", models.BookingCancelled), "b-2")
		mock.ExpectRollback()

		_, err := coordinator.Complete(context.Background(), "b-2")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
