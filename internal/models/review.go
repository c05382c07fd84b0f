package models

import "time"

// Review is a customer's rating of a car after renting it. One review per
// booking, enforced by a unique constraint on booking_id.
type Review struct {
	ID         string    `json:"id" db:"id"`
	BookingID  string    `json:"booking_id" db:"booking_id"`
	CarID      string    `json:"car_id" db:"car_id"`
	CustomerID string    `json:"customer_id" db:"customer_id"`
	Rating     int       `json:"rating" db:"rating"` // 1 to 5
	Comment    string    `json:"comment" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
