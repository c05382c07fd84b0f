package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors for the booking engine. Handlers map these onto HTTP
// status codes; everything else surfaces as an internal error.
var (
	// Not-found family.
	ErrBookingNotFound = errors.New("booking not found")
	ErrCarNotFound     = errors.New("car not found")

	// Validation family. The caller must fix the request; retrying is useless.
	ErrInvalidDateRange  = errors.New("end date must be after start date")
	ErrDatesInPast       = errors.New("rental period is entirely in the past")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrSameAccount       = errors.New("transfer accounts must differ")
	ErrReviewCarMismatch = errors.New("booking is for a different car")

	// State-conflict family.
	ErrInvalidTransition = errors.New("invalid booking state transition")
	ErrCarUnavailable    = errors.New("car is not available")
	ErrAlreadyReviewed   = errors.New("booking already reviewed")

	// Funds family.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrRefundUnavailable = errors.New("platform wallet cannot cover refund")

	// ErrWalletFrozen means the wallet failed reconciliation and is locked
	// against further writes until someone investigates the ledger.
	ErrWalletFrozen = errors.New("wallet is frozen pending reconciliation")

	// ErrInvariantViolation means the cached balance no longer matches the
	// ledger sum. It is never repaired automatically; the ledger wins.
	ErrInvariantViolation = errors.New("wallet balance does not match ledger")

	// ErrStorageTransient marks timeouts and lock contention. Safe to retry
	// with backoff; the unit of work was rolled back.
	ErrStorageTransient = errors.New("transient storage failure, retry")
)

// postgres error codes that indicate the transaction lost a race rather
// than hit a real fault: serialization_failure and deadlock_detected.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// isUniqueViolation reports whether err is a postgres unique-constraint hit.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}

// classifyStorageErr folds driver-level failures into the taxonomy. Timeouts
// and lock-ordering casualties become ErrStorageTransient so callers know the
// operation is safe to retry; anything else passes through untouched.
func classifyStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrStorageTransient
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqSerializationFailure, pqDeadlockDetected:
			return ErrStorageTransient
		}
	}
	return err
}

// isNoRows reports whether err is the database/sql missing-row marker.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
