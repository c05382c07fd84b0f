package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/motorent/backend/internal/models"
	"github.com/skip2/go-qrcode"
)

// ErrVoucherUnavailable is returned when Redis is down and vouchers cannot
// be issued or redeemed.
var ErrVoucherUnavailable = errors.New("voucher service unavailable")

// VoucherService issues QR pickup vouchers for confirmed bookings. The desk
// scans the code at pickup and redeems it against Redis; codes expire on
// their own after the configured TTL.
type VoucherService struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewVoucherService(redisClient *redis.Client, ttl time.Duration) *VoucherService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &VoucherService{
		redis: redisClient,
		ttl:   ttl,
	}
}

type voucherPayload struct {
	BookingID      string `json:"bookingId"`
	CarID          string `json:"carId"`
	CustomerID     string `json:"customerId"`
	PickupLocation string `json:"pickupLocation"`
	StartDate      int64  `json:"startDate"`
	Nonce          string `json:"nonce"`
}

// Generate issues a voucher for a confirmed booking and returns the opaque
// code plus a base64 PNG of its QR rendering.
func (s *VoucherService) Generate(ctx context.Context, booking *models.Booking) (string, string, error) {
	if s.redis == nil {
		return "", "", ErrVoucherUnavailable
	}
	if booking.Status != models.BookingConfirmed {
		return "", "", ErrInvalidTransition
	}

	nonce, err := generateNonce()
	if err != nil {
		return "", "", err
	}

	payload := voucherPayload{
		BookingID:      booking.ID,
		CarID:          booking.CarID,
		CustomerID:     booking.CustomerID,
		PickupLocation: booking.PickupLocation,
		StartDate:      booking.StartDate.Unix(),
		Nonce:          nonce,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("voucher:%s", code)
	if err := s.redis.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		return "", "", ErrVoucherUnavailable
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return code, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Redeem validates a scanned voucher code and consumes it. Read and delete
// are one GETDEL, so concurrent scans of the same code resolve to exactly one
// winner; the loser sees the key gone.
func (s *VoucherService) Redeem(ctx context.Context, code string) (string, error) {
	if s.redis == nil {
		return "", ErrVoucherUnavailable
	}

	key := fmt.Sprintf("voucher:%s", code)
	data, err := s.redis.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrBookingNotFound
	}
	if err != nil {
		return "", ErrVoucherUnavailable
	}

	var payload voucherPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", ErrBookingNotFound
	}
	return payload.BookingID, nil
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
