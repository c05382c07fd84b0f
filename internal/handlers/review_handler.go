package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/motorent/backend/internal/middleware"
	"github.com/motorent/backend/internal/services"
)

type ReviewHandler struct {
	reviews   *services.ReviewService
	validator *services.ValidationHelper
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviews:   reviews,
		validator: services.NewValidationHelper(),
	}
}

type createReviewRequest struct {
	BookingID string `json:"bookingId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=1000"`
}

// CreateReview posts a review for a car the caller has booked
// @Summary Review a car
// @Description Post a rating for one of the caller's bookings of this car. Each booking can be reviewed once.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Param request body createReviewRequest true "Review"
// @Success 201 {object} models.Review
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /cars/{id}/reviews [post]
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.CallerIdentity(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	carID := chi.URLParam(r, "id")
	review, err := h.reviews.Create(r.Context(), identity.AccountID, carID,
		req.BookingID, req.Rating, req.Comment)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}

	services.SendJSONResponse(w, http.StatusCreated, review)
}

// ListReviews returns a car's reviews
// @Summary List car reviews
// @Tags reviews
// @Produce json
// @Param id path string true "Car ID"
// @Success 200 {array} models.Review
// @Router /cars/{id}/reviews [get]
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	carID := chi.URLParam(r, "id")

	reviews, err := h.reviews.ListByCar(r.Context(), carID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, reviews)
}
