package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/motorent/backend/internal/middleware"
	"github.com/motorent/backend/internal/models"
	"github.com/motorent/backend/internal/services"
)

type BookingHandler struct {
	bookings    *services.BookingService
	coordinator *services.BookingCoordinator
	vouchers    *services.VoucherService
	validator   *services.ValidationHelper
}

func NewBookingHandler(bookings *services.BookingService, coordinator *services.BookingCoordinator, vouchers *services.VoucherService) *BookingHandler {
	return &BookingHandler{
		bookings:    bookings,
		coordinator: coordinator,
		vouchers:    vouchers,
		validator:   services.NewValidationHelper(),
	}
}

// statusForError maps the service error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrBookingNotFound), errors.Is(err, services.ErrCarNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidDateRange),
		errors.Is(err, services.ErrDatesInPast),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrSameAccount),
		errors.Is(err, services.ErrReviewCarMismatch):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrCarUnavailable),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrRefundUnavailable),
		errors.Is(err, services.ErrAlreadyReviewed),
		errors.Is(err, services.ErrWalletFrozen):
		return http.StatusConflict
	case errors.Is(err, services.ErrStorageTransient),
		errors.Is(err, services.ErrVoucherUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type createBookingRequest struct {
	CarID           string `json:"carId" validate:"required"`
	StartDate       string `json:"startDate" validate:"required"`
	EndDate         string `json:"endDate" validate:"required"`
	PickupLocation  string `json:"pickupLocation" validate:"required,max=200"`
	DropoffLocation string `json:"dropoffLocation" validate:"required,max=200"`
}

// parseDate accepts RFC3339 timestamps or plain dates from the storefront.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// CreateBooking creates a pending booking draft
// @Summary Create booking
// @Description Create a pending booking with a computed total price. No money moves until payment.
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createBookingRequest true "Booking request"
// @Success 201 {object} models.Booking
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /bookings [post]
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.CallerIdentity(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		services.SendErrorResponse(w, "Invalid startDate", http.StatusBadRequest, nil)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		services.SendErrorResponse(w, "Invalid endDate", http.StatusBadRequest, nil)
		return
	}

	booking, err := h.bookings.CreateDraft(r.Context(), identity.AccountID, req.CarID,
		start, end, req.PickupLocation, req.DropoffLocation)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}

	services.SendJSONResponse(w, http.StatusCreated, booking)
}

// ListBookings returns the caller's bookings
// @Summary List bookings
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Booking
// @Router /bookings [get]
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.CallerIdentity(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	bookings, err := h.bookings.ListByCustomer(r.Context(), identity.AccountID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, bookings)
}

// GetBooking returns one booking for its owner or an admin
// @Summary Get booking
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 404 {object} services.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadOwnedBooking(w, r)
	if !ok {
		return
	}
	services.SendJSONResponse(w, http.StatusOK, booking)
}

// PayBooking charges the caller's wallet and confirms the booking
// @Summary Pay for a booking
// @Description Debit the customer wallet, credit the platform wallet, reserve the car and confirm the booking as one atomic operation.
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} services.PaymentResult
// @Failure 402 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /bookings/{id}/pay [post]
func (h *BookingHandler) PayBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadOwnedBooking(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.PayAndConfirm(r.Context(), booking.ID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, result)
}

// CancelBooking refunds and cancels a confirmed booking
// @Summary Cancel a booking
// @Description Refund the customer from the platform wallet, release the car and cancel the booking as one atomic operation.
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} services.PaymentResult
// @Failure 409 {object} services.ErrorResponse
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadOwnedBooking(w, r)
	if !ok {
		return
	}

	result, err := h.coordinator.CancelAndRefund(r.Context(), booking.ID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, result)
}

// CompleteBooking marks a rental as finished (admin only)
// @Summary Complete a booking
// @Description Transition a confirmed booking to completed and release the car. No financial effect.
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} models.Booking
// @Failure 409 {object} services.ErrorResponse
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")

	booking, err := h.coordinator.Complete(r.Context(), bookingID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, booking)
}

// GetVoucher issues a QR pickup voucher for a confirmed booking
// @Summary Get pickup voucher
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} object{code=string,qrImage=string}
// @Failure 409 {object} services.ErrorResponse
// @Router /bookings/{id}/voucher [get]
func (h *BookingHandler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadOwnedBooking(w, r)
	if !ok {
		return
	}

	code, qrImage, err := h.vouchers.Generate(r.Context(), booking)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}

	services.SendJSONResponse(w, http.StatusOK, map[string]any{
		"code":    code,
		"qrImage": qrImage,
	})
}

// RedeemVoucher consumes a scanned pickup voucher (admin only)
// @Summary Redeem pickup voucher
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{code=string} true "Voucher code"
// @Success 200 {object} models.Booking
// @Failure 404 {object} services.ErrorResponse
// @Router /vouchers/redeem [post]
func (h *BookingHandler) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	bookingID, err := h.vouchers.Redeem(r.Context(), req.Code)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}

	booking, err := h.bookings.Get(r.Context(), bookingID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, booking)
}

// loadOwnedBooking loads the booking in the URL and enforces that the caller
// owns it or is an admin.
func (h *BookingHandler) loadOwnedBooking(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	identity, ok := middleware.CallerIdentity(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, false
	}

	bookingID := chi.URLParam(r, "id")
	booking, err := h.bookings.Get(r.Context(), bookingID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return nil, false
	}

	if booking.CustomerID != identity.AccountID && !identity.IsAdmin() {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return nil, false
	}
	return booking, true
}

// decodeJSON reads a single JSON object from the body with the usual limits.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
