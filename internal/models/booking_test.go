package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{BookingPending, BookingConfirmed},
		{BookingConfirmed, BookingCompleted},
		{BookingConfirmed, BookingCancelled},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s should be allowed", pair[0], pair[1])
	}

	denied := [][2]string{
		{BookingPending, BookingCancelled},
		{BookingPending, BookingCompleted},
		{BookingConfirmed, BookingConfirmed},
		{BookingCompleted, BookingCancelled},
		{BookingCompleted, BookingConfirmed},
		{BookingCancelled, BookingConfirmed},
		{BookingCancelled, BookingCompleted},
		{"bogus", BookingConfirmed},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s should be rejected", pair[0], pair[1])
	}
}

func TestLedgerEntrySigned(t *testing.T) {
	amount := decimal.RequireFromString("60")

	debit := LedgerEntry{Direction: EntryDebit, Amount: amount}
	assert.True(t, debit.Signed().Equal(amount.Neg()))

	credit := LedgerEntry{Direction: EntryCredit, Amount: amount}
	assert.True(t, credit.Signed().Equal(amount))
}
