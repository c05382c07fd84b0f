package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// AuditEvent is one structured line in the financial audit trail. Every
// committed transfer, refund and invariant failure produces one.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference"`
	BookingID string    `json:"booking_id,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) LogTransfer(reference, bookingID, fromAccount, toAccount string, amount decimal.Decimal, status string) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "TRANSFER",
		Reference: reference,
		BookingID: bookingID,
		Amount:    amount.StringFixed(2),
		Status:    status,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	}
	l.log(event)
}

func (l *Logger) LogBookingEvent(bookingID, operation, details string) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: operation,
		BookingID: bookingID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	}
	l.log(event)
}

func (l *Logger) LogError(reference, accountID string, err error) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		Reference: reference,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	}
	l.log(event)
}

// LogInvariantViolation records a wallet whose cached balance diverged from
// its ledger sum. These are escalated, never auto-repaired.
func (l *Logger) LogInvariantViolation(accountID string, cached, ledger decimal.Decimal) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: "INVARIANT_VIOLATION",
		AccountID: accountID,
		Status:    "FROZEN",
		Details: map[string]string{
			"cached_balance": cached.StringFixed(2),
			"ledger_balance": ledger.StringFixed(2),
		},
	}
	l.log(event)
}

func (l *Logger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
