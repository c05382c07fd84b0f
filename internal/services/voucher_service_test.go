package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/motorent/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmedBooking() *models.Booking {
	return &models.Booking{
		ID:             "b-1",
		CustomerID:     "alice",
		CarID:          "car-7",
		StartDate:      time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC),
		PickupLocation: "Airport",
		Status:         models.BookingConfirmed,
	}
}

func TestVoucherService_Generate(t *testing.T) {
	redisClient, mock := redismock.NewClientMock()
	service := NewVoucherService(redisClient, time.Hour)

	t.Run("issues a voucher for a confirmed booking", func(t *testing.T) {
		mock.Regexp().ExpectSet(`voucher:.+`, `.+`, time.Hour).SetVal("OK")

		code, qrImage, err := service.Generate(context.Background(), confirmedBooking())
		require.NoError(t, err)
		assert.NotEmpty(t, qrImage)

		decoded, err := base64.URLEncoding.DecodeString(code)
		require.NoError(t, err)
		var payload voucherPayload
		require.NoError(t, json.Unmarshal(decoded, &payload))
		assert.Equal(t, "b-1", payload.BookingID)
		assert.Equal(t, "car-7", payload.CarID)
		assert.NotEmpty(t, payload.Nonce)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses unconfirmed bookings", func(t *testing.T) {
		booking := confirmedBooking()
		booking.Status = models.BookingPending

		_, _, err := service.Generate(context.Background(), booking)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unavailable without redis", func(t *testing.T) {
		noRedis := NewVoucherService(nil, time.Hour)
		_, _, err := noRedis.Generate(context.Background(), confirmedBooking())
		assert.ErrorIs(t, err, ErrVoucherUnavailable)
	})
}

func TestVoucherService_Redeem(t *testing.T) {
	redisClient, mock := redismock.NewClientMock()
	service := NewVoucherService(redisClient, time.Hour)

	payload := voucherPayload{
		BookingID:  "b-1",
		CarID:      "car-7",
		CustomerID: "alice",
		Nonce:      "abc123",
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	code := base64.URLEncoding.EncodeToString(data)

	t.Run("consumes the code in one atomic read-and-delete", func(t *testing.T) {
		mock.ExpectGetDel("voucher:" + code).SetVal(string(data))

		bookingID, err := service.Redeem(context.Background(), code)
		require.NoError(t, err)
		assert.Equal(t, "b-1", bookingID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second scan of the same code loses", func(t *testing.T) {
		mock.ExpectGetDel("voucher:" + code).SetVal(string(data))
		mock.ExpectGetDel("voucher:" + code).RedisNil()

		_, err := service.Redeem(context.Background(), code)
		require.NoError(t, err)

		_, err = service.Redeem(context.Background(), code)
		assert.ErrorIs(t, err, ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown or expired code", func(t *testing.T) {
		mock.ExpectGetDel("voucher:bogus").RedisNil()

		_, err := service.Redeem(context.Background(), "bogus")
		assert.ErrorIs(t, err, ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
