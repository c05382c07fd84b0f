package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/motorent/backend/internal/models"
)

// ReviewService owns car reviews. A review is tied to one booking: the
// booking proves the customer actually rented the car, and its id carries a
// unique constraint so each rental is reviewed at most once.
type ReviewService struct {
	db       *sql.DB
	bookings *BookingService
}

func NewReviewService(db *sql.DB, bookings *BookingService) *ReviewService {
	return &ReviewService{
		db:       db,
		bookings: bookings,
	}
}

// Create persists a review for one of the caller's bookings. The booking must
// belong to the caller and reference the reviewed car; a second review for
// the same booking fails with ErrAlreadyReviewed.
func (s *ReviewService) Create(ctx context.Context, customerID, carID, bookingID string, rating int, comment string) (*models.Review, error) {
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != customerID {
		return nil, ErrBookingNotFound
	}
	if booking.CarID != carID {
		return nil, ErrReviewCarMismatch
	}

	review := &models.Review{
		ID:         uuid.NewString(),
		BookingID:  bookingID,
		CarID:      carID,
		CustomerID: customerID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, booking_id, car_id, customer_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		review.ID, review.BookingID, review.CarID, review.CustomerID,
		review.Rating, review.Comment, review.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	return review, nil
}

// ListByCar returns a car's reviews, newest first.
func (s *ReviewService) ListByCar(ctx context.Context, carID string) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, booking_id, car_id, customer_id, rating, comment, created_at
		FROM reviews
		WHERE car_id = $1
		ORDER BY created_at DESC`, carID)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var review models.Review
		if err := rows.Scan(&review.ID, &review.BookingID, &review.CarID,
			&review.CustomerID, &review.Rating, &review.Comment, &review.CreatedAt); err != nil {
			return nil, classifyStorageErr(err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageErr(err)
	}
	return reviews, nil
}
