package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/motorent/backend/internal/audit"
	"github.com/motorent/backend/internal/models"
	"github.com/shopspring/decimal"
)

// WalletService owns per-account balances. Every balance mutation appends a
// ledger entry in the same database transaction; the cached balance column is
// derived state that Reconcile can always check against the ledger sum.
//
// All mutating methods have *sql.Tx variants so the booking coordinator can
// compose them with availability and status updates in one unit of work.
type WalletService struct {
	db    *sql.DB
	audit *audit.Logger
}

func NewWalletService(db *sql.DB) *WalletService {
	return &WalletService{
		db:    db,
		audit: audit.NewLogger(),
	}
}

// GetBalance returns the account balance, creating a zero-balance wallet on
// first access. It never fails for a valid account id.
func (s *WalletService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	defer tx.Rollback()

	wallet, err := s.lockWalletTx(tx, accountID)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	return wallet.Balance, nil
}

// Statement returns the balance together with the wallet's ledger entries,
// newest first.
func (s *WalletService) Statement(ctx context.Context, accountID string) (*models.WalletStatement, error) {
	balance, err := s.GetBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_id, direction, amount, description, booking_id, reference, created_at
		FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, classifyStorageErr(err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.WalletID, &entry.Direction, &entry.Amount,
			&entry.Description, &entry.BookingID, &entry.Reference, &entry.CreatedAt); err != nil {
			return nil, classifyStorageErr(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageErr(err)
	}

	return &models.WalletStatement{
		AccountID:    accountID,
		Balance:      balance,
		Transactions: entries,
	}, nil
}

// Debit decreases the balance and appends a debit ledger entry.
func (s *WalletService) Debit(ctx context.Context, accountID string, amount decimal.Decimal, description, reference string, bookingID *string) (decimal.Decimal, error) {
	return s.mutate(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		return s.DebitTx(tx, accountID, amount, description, reference, bookingID)
	})
}

// Credit increases the balance and appends a credit ledger entry. Credits
// have no upper bound.
func (s *WalletService) Credit(ctx context.Context, accountID string, amount decimal.Decimal, description, reference string, bookingID *string) (decimal.Decimal, error) {
	return s.mutate(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		return s.CreditTx(tx, accountID, amount, description, reference, bookingID)
	})
}

// Transfer debits one account and credits another as a single atomic step.
func (s *WalletService) Transfer(ctx context.Context, fromAccountID, toAccountID string, amount decimal.Decimal, description, reference string, bookingID *string) (decimal.Decimal, error) {
	return s.mutate(ctx, func(tx *sql.Tx) (decimal.Decimal, error) {
		return s.TransferTx(tx, fromAccountID, toAccountID, amount, description, reference, bookingID)
	})
}

func (s *WalletService) mutate(ctx context.Context, op func(tx *sql.Tx) (decimal.Decimal, error)) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	defer tx.Rollback()

	newBalance, err := op(tx)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	return newBalance, nil
}

// DebitTx performs a debit inside an existing transaction.
func (s *WalletService) DebitTx(tx *sql.Tx, accountID string, amount decimal.Decimal, description, reference string, bookingID *string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}

	wallet, err := s.lockWalletTx(tx, accountID)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	if wallet.Frozen {
		return decimal.Zero, ErrWalletFrozen
	}
	if amount.GreaterThan(wallet.Balance) {
		return decimal.Zero, ErrInsufficientFunds
	}

	newBalance := wallet.Balance.Sub(amount)
	if err := s.appendEntryTx(tx, accountID, models.EntryDebit, amount, description, reference, bookingID); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	if err := s.updateBalanceTx(tx, accountID, newBalance, wallet.Version); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	return newBalance, nil
}

// CreditTx performs a credit inside an existing transaction.
func (s *WalletService) CreditTx(tx *sql.Tx, accountID string, amount decimal.Decimal, description, reference string, bookingID *string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}

	wallet, err := s.lockWalletTx(tx, accountID)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	if wallet.Frozen {
		return decimal.Zero, ErrWalletFrozen
	}

	newBalance := wallet.Balance.Add(amount)
	if err := s.appendEntryTx(tx, accountID, models.EntryCredit, amount, description, reference, bookingID); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	if err := s.updateBalanceTx(tx, accountID, newBalance, wallet.Version); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	return newBalance, nil
}

// TransferTx moves amount between two wallets inside an existing transaction
// and returns the payer's new balance. Wallet rows are locked in ascending
// account-id order so two opposing transfers cannot deadlock.
func (s *WalletService) TransferTx(tx *sql.Tx, fromAccountID, toAccountID string, amount decimal.Decimal, description, reference string, bookingID *string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	// A self-transfer would lock the same row twice at one version and could
	// only ever fail the optimistic update.
	if fromAccountID == toAccountID {
		return decimal.Zero, ErrSameAccount
	}

	firstLock, secondLock := fromAccountID, toAccountID
	if fromAccountID > toAccountID {
		firstLock, secondLock = toAccountID, fromAccountID
	}

	first, err := s.lockWalletTx(tx, firstLock)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	second, err := s.lockWalletTx(tx, secondLock)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}

	from, to := first, second
	if firstLock != fromAccountID {
		from, to = second, first
	}

	if from.Frozen || to.Frozen {
		return decimal.Zero, ErrWalletFrozen
	}
	if amount.GreaterThan(from.Balance) {
		return decimal.Zero, ErrInsufficientFunds
	}

	if err := s.appendEntryTx(tx, from.AccountID, models.EntryDebit, amount, description, reference, bookingID); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	if err := s.appendEntryTx(tx, to.AccountID, models.EntryCredit, amount, description, reference, bookingID); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	if err := s.updateBalanceTx(tx, from.AccountID, from.Balance.Sub(amount), from.Version); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	if err := s.updateBalanceTx(tx, to.AccountID, to.Balance.Add(amount), to.Version); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}

	return from.Balance.Sub(amount), nil
}

// Reconcile recomputes the ledger sum for a wallet and compares it to the
// cached balance. On mismatch the wallet is frozen, the divergence is logged
// for manual reconciliation, and ErrInvariantViolation is returned. The
// ledger is never rewritten to make the numbers agree.
func (s *WalletService) Reconcile(ctx context.Context, accountID string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	defer tx.Rollback()

	wallet, err := s.lockWalletTx(tx, accountID)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}

	var ledgerSum decimal.Decimal
	err = tx.QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE wallet_id = $1`, accountID).Scan(&ledgerSum)
	if err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}

	if !ledgerSum.Equal(wallet.Balance) {
		if _, err := tx.Exec(`
			UPDATE wallets SET frozen = TRUE, updated_at = $1 WHERE account_id = $2`,
			time.Now(), accountID); err != nil {
			return decimal.Zero, classifyStorageErr(err)
		}
		if err := tx.Commit(); err != nil {
			return decimal.Zero, classifyStorageErr(err)
		}
		s.audit.LogInvariantViolation(accountID, wallet.Balance, ledgerSum)
		return ledgerSum, ErrInvariantViolation
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, classifyStorageErr(err)
	}
	return ledgerSum, nil
}

// lockWalletTx loads a wallet row FOR UPDATE, lazily creating it with a zero
// balance on first touch. Wallets are never deleted.
func (s *WalletService) lockWalletTx(tx *sql.Tx, accountID string) (*models.Wallet, error) {
	if _, err := tx.Exec(`
		INSERT INTO wallets (account_id) VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING`, accountID); err != nil {
		return nil, err
	}

	var wallet models.Wallet
	err := tx.QueryRow(`
		SELECT account_id, balance, frozen, version, created_at, updated_at
		FROM wallets
		WHERE account_id = $1
		FOR UPDATE`, accountID).Scan(&wallet.AccountID, &wallet.Balance, &wallet.Frozen,
		&wallet.Version, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *WalletService) appendEntryTx(tx *sql.Tx, walletID, direction string, amount decimal.Decimal, description, reference string, bookingID *string) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (wallet_id, direction, amount, description, booking_id, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		walletID, direction, amount, description, bookingID, reference, time.Now())
	return err
}

func (s *WalletService) updateBalanceTx(tx *sql.Tx, accountID string, balance decimal.Decimal, version int) error {
	result, err := tx.Exec(`
		UPDATE wallets SET balance = $1, version = version + 1, updated_at = $2
		WHERE account_id = $3 AND version = $4`,
		balance, time.Now(), accountID, version)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStorageTransient
	}
	return nil
}
