package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking lifecycle states
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// Booking represents one rental reservation. A pending booking is a
// reservation intent only: it has no effect on wallets or car availability
// until PayAndConfirm commits.
type Booking struct {
	ID              string          `json:"id" db:"id"`
	CustomerID      string          `json:"customer_id" db:"customer_id"`
	CarID           string          `json:"car_id" db:"car_id"`
	StartDate       time.Time       `json:"start_date" db:"start_date"`
	EndDate         time.Time       `json:"end_date" db:"end_date"`
	TotalPrice      decimal.Decimal `json:"total_price" db:"total_price"`
	PickupLocation  string          `json:"pickup_location" db:"pickup_location"`
	DropoffLocation string          `json:"dropoff_location" db:"dropoff_location"`
	Status          string          `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// bookingTransitions is the full transition table. Confirmation and
// cancellation only ever happen inside a coordinator unit of work.
var bookingTransitions = map[string][]string{
	BookingPending:   {BookingConfirmed},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
	BookingCompleted: {},
	BookingCancelled: {},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
