package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockpedia/paper-trader/internal/database"
)

// AccountRepository handles account database operations
type AccountRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB, log zerolog.Logger) *AccountRepository {
	return &AccountRepository{
		db:  db,
		log: log.With().Str("repo", "account").Logger(),
	}
}

// Get returns an account outside a transaction (display reads).
// Returns ErrAccountNotFound when the user has no account row.
func (r *AccountRepository) Get(userID string) (*Account, error) {
	row := r.db.QueryRow(
		"SELECT user_id, cash_balance, created_at, updated_at FROM accounts WHERE user_id = ?",
		userID,
	)
	return scanAccount(row)
}

// GetTx returns an account inside a transaction
func (r *AccountRepository) GetTx(tx *sql.Tx, userID string) (*Account, error) {
	row := tx.QueryRow(
		"SELECT user_id, cash_balance, created_at, updated_at FROM accounts WHERE user_id = ?",
		userID,
	)
	return scanAccount(row)
}

// GetOrCreateTx returns the account for userID, provisioning it with the
// starting balance on first touch. Account creation happens at most once per
// user; the row is never deleted afterwards.
func (r *AccountRepository) GetOrCreateTx(tx *sql.Tx, userID string, startingBalance decimal.Decimal) (*Account, bool, error) {
	account, err := r.GetTx(tx, userID)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	_, err = tx.Exec(
		"INSERT INTO accounts (user_id, cash_balance, created_at, updated_at) VALUES (?, ?, ?, ?)",
		userID,
		startingBalance.String(),
		now.Format(database.TimeFormat),
		now.Format(database.TimeFormat),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create account: %w", err)
	}

	r.log.Info().
		Str("user_id", userID).
		Str("starting_balance", startingBalance.String()).
		Msg("Account created")

	return &Account{
		UserID:      userID,
		CashBalance: startingBalance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, true, nil
}

// UpdateBalanceTx sets the cash balance inside a transaction. The caller is
// responsible for having validated the new balance.
func (r *AccountRepository) UpdateBalanceTx(tx *sql.Tx, userID string, balance decimal.Decimal) error {
	now := time.Now().UTC().Format(database.TimeFormat)

	result, err := tx.Exec(
		"UPDATE accounts SET cash_balance = ?, updated_at = ? WHERE user_id = ?",
		balance.String(), now, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check balance update: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}

	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var account Account
	var balance, createdAt, updatedAt string

	err := row.Scan(&account.UserID, &balance, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.CashBalance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid cash_balance %q: %w", balance, err)
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		account.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		account.UpdatedAt = t
	}

	return &account, nil
}
