package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry directions
const (
	EntryDebit  = "debit"
	EntryCredit = "credit"
)

// Wallet holds the cached balance for one account. The balance is derived
// state: it must always equal the signed sum of the wallet's ledger entries.
// A wallet that fails that check is frozen until reconciled manually.
type Wallet struct {
	AccountID string          `json:"account_id" db:"account_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Frozen    bool            `json:"frozen" db:"frozen"`
	Version   int             `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is one directional money movement. Entries are append-only:
// no code path updates or deletes a row once written.
type LedgerEntry struct {
	ID          int64           `json:"id" db:"id"`
	WalletID    string          `json:"wallet_id" db:"wallet_id"`
	Direction   string          `json:"direction" db:"direction"` // debit or credit
	Amount      decimal.Decimal `json:"amount" db:"amount"`       // always positive
	Description string          `json:"description" db:"description"`
	BookingID   *string         `json:"booking_id,omitempty" db:"booking_id"`
	Reference   string          `json:"reference" db:"reference"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Signed returns the entry amount with its direction applied.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == EntryDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// WalletStatement is the wallet read model returned by the API.
type WalletStatement struct {
	AccountID    string          `json:"account_id"`
	Balance      decimal.Decimal `json:"balance"`
	Transactions []LedgerEntry   `json:"transactions"`
}
