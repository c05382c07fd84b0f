package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/motorent/backend/internal/audit"
	"github.com/motorent/backend/internal/models"
	"github.com/shopspring/decimal"
)

// BookingCoordinator runs every operation that must change wallet balances,
// car availability and booking status together. Each operation is one
// database transaction with a bounded timeout: it commits all three writes or
// none of them. Commit is the durability boundary; caller cancellation after
// commit never rolls anything back.
//
// Lock order inside a unit of work is fixed: booking row first, then wallet
// rows (ascending account id), then the car's conditional update.
type BookingCoordinator struct {
	db             *sql.DB
	wallets        *WalletService
	cars           *CarRegistry
	bookings       *BookingService
	audit          *audit.Logger
	platformID     string
	storageTimeout time.Duration
}

// PaymentResult is what a successful pay or cancel returns to the handler.
type PaymentResult struct {
	Booking      *models.Booking `json:"booking"`
	Balance      decimal.Decimal `json:"balance"`
	RefundAmount decimal.Decimal `json:"refund_amount,omitempty"`
}

func NewBookingCoordinator(db *sql.DB, wallets *WalletService, cars *CarRegistry, bookings *BookingService, platformAccountID string, storageTimeout time.Duration) *BookingCoordinator {
	if storageTimeout <= 0 {
		storageTimeout = 5 * time.Second
	}
	return &BookingCoordinator{
		db:             db,
		wallets:        wallets,
		cars:           cars,
		bookings:       bookings,
		audit:          audit.NewLogger(),
		platformID:     platformAccountID,
		storageTimeout: storageTimeout,
	}
}

// PayAndConfirm charges the customer for a pending booking, reserves the car
// and confirms the booking, all in one unit of work. Retrying after a commit
// finds the booking confirmed and returns ErrInvalidTransition instead of
// charging twice.
func (c *BookingCoordinator) PayAndConfirm(ctx context.Context, bookingID string) (*PaymentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storageTimeout)
	defer cancel()

	reference := uuid.NewString()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	defer tx.Rollback()

	booking, err := c.bookings.LockTx(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingPending {
		return nil, ErrInvalidTransition
	}

	// Fast-fail on a taken car before any money moves. The conditional
	// update below still guards against a race with this check.
	var carAvailable bool
	err = tx.QueryRow(`SELECT available FROM cars WHERE id = $1`, booking.CarID).Scan(&carAvailable)
	if isNoRows(err) {
		return nil, ErrCarNotFound
	}
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	if !carAvailable {
		return nil, ErrCarUnavailable
	}

	description := fmt.Sprintf("Car booking payment (%s)", booking.CarID)
	newBalance, err := c.wallets.TransferTx(tx, booking.CustomerID, c.platformID,
		booking.TotalPrice, description, reference, &booking.ID)
	if err != nil {
		c.audit.LogError(reference, booking.CustomerID, err)
		return nil, err
	}

	if err := c.cars.TryReserveTx(tx, booking.CarID); err != nil {
		return nil, err
	}

	if err := c.bookings.TransitionTx(tx, booking, models.BookingConfirmed); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyStorageErr(err)
	}

	c.audit.LogTransfer(reference, booking.ID, booking.CustomerID, c.platformID,
		booking.TotalPrice, "CONFIRMED")
	log.Printf("[BOOKING] %s confirmed: %s paid %s", booking.ID, booking.CustomerID,
		booking.TotalPrice.StringFixed(2))

	return &PaymentResult{Booking: booking, Balance: newBalance}, nil
}

// CancelAndRefund reverses a confirmed booking: refunds the customer from the
// platform wallet, releases the car and cancels the booking, atomically.
func (c *BookingCoordinator) CancelAndRefund(ctx context.Context, bookingID string) (*PaymentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storageTimeout)
	defer cancel()

	reference := uuid.NewString()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	defer tx.Rollback()

	booking, err := c.bookings.LockTx(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingConfirmed {
		return nil, ErrInvalidTransition
	}

	description := fmt.Sprintf("Car booking refund (%s)", booking.CarID)
	_, err = c.wallets.TransferTx(tx, c.platformID, booking.CustomerID,
		booking.TotalPrice, description, reference, &booking.ID)
	if err != nil {
		// The platform wallet should always cover refunds of money it
		// received. If it cannot, something upstream drained it.
		if errors.Is(err, ErrInsufficientFunds) {
			err = ErrRefundUnavailable
		}
		c.audit.LogError(reference, c.platformID, err)
		return nil, err
	}

	if err := c.cars.ReleaseTx(tx, booking.CarID); err != nil {
		return nil, err
	}

	if err := c.bookings.TransitionTx(tx, booking, models.BookingCancelled); err != nil {
		return nil, err
	}

	// Read the customer's balance after the refund, while still inside the
	// unit of work, so the response reflects exactly this commit.
	customer, err := c.wallets.lockWalletTx(tx, booking.CustomerID)
	if err != nil {
		return nil, classifyStorageErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyStorageErr(err)
	}

	c.audit.LogTransfer(reference, booking.ID, c.platformID, booking.CustomerID,
		booking.TotalPrice, "REFUNDED")
	log.Printf("[BOOKING] %s cancelled: refunded %s to %s", booking.ID,
		booking.TotalPrice.StringFixed(2), booking.CustomerID)

	return &PaymentResult{
		Booking:      booking,
		Balance:      customer.Balance,
		RefundAmount: booking.TotalPrice,
	}, nil
}

// Complete marks a confirmed booking completed and releases the car. No money
// moves, but the status flip and the availability flip still commit together.
func (c *BookingCoordinator) Complete(ctx context.Context, bookingID string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storageTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	defer tx.Rollback()

	booking, err := c.bookings.LockTx(tx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingConfirmed {
		return nil, ErrInvalidTransition
	}

	if err := c.bookings.TransitionTx(tx, booking, models.BookingCompleted); err != nil {
		return nil, err
	}
	if err := c.cars.ReleaseTx(tx, booking.CarID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyStorageErr(err)
	}

	c.audit.LogBookingEvent(booking.ID, "COMPLETE", "rental period ended, car released")
	return booking, nil
}
