package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Car is the slice of the catalog record this service reads. Catalog CRUD
// lives elsewhere; only the availability flag is written here, and only by
// the booking coordinator.
type Car struct {
	ID                 string          `json:"id" db:"id"`
	Make               string          `json:"make" db:"make"`
	Model              string          `json:"model" db:"model"`
	RegistrationNumber string          `json:"registration_number" db:"registration_number"`
	Seats              int             `json:"seats" db:"seats"`
	PricePerDay        decimal.Decimal `json:"price_per_day" db:"price_per_day"`
	Available          bool            `json:"available" db:"available"`
	ImageURL           string          `json:"image_url" db:"image_url"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}
