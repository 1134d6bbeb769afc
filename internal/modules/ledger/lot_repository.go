package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockpedia/paper-trader/internal/database"
)

// LotRepository handles lot database operations. All mutations are
// transaction-scoped; the engine owns the transaction boundary.
type LotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *sql.DB, log zerolog.Logger) *LotRepository {
	return &LotRepository{
		db:  db,
		log: log.With().Str("repo", "lot").Logger(),
	}
}

const lotColumns = "lot_id, user_id, symbol, quantity, unit_cost, acquired_seq, acquired_at"

// lotOrder is the canonical FIFO order: acquisition sequence ascending,
// lot_id ascending as the fixed tie-break.
const lotOrder = "ORDER BY acquired_seq ASC, lot_id ASC"

// GetBySymbolTx returns a user's live lots for one symbol in FIFO order,
// inside a transaction
func (r *LotRepository) GetBySymbolTx(tx *sql.Tx, userID, symbol string) ([]Lot, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM lots WHERE user_id = ? AND symbol = ? %s",
		lotColumns, lotOrder,
	)

	rows, err := tx.Query(query, userID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	return collectLots(rows)
}

// GetAllForUser returns all of a user's live lots in FIFO order per symbol
// (display/valuation reads, outside any transaction)
func (r *LotRepository) GetAllForUser(userID string) ([]Lot, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM lots WHERE user_id = ? ORDER BY symbol ASC, acquired_seq ASC, lot_id ASC",
		lotColumns,
	)

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	return collectLots(rows)
}

// DistinctSymbols returns every symbol currently held by any user
func (r *LotRepository) DistinctSymbols() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT symbol FROM lots")
	if err != nil {
		return nil, fmt.Errorf("failed to query held symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// NextSeqTx returns the next acquisition sequence value for (user, symbol).
// Computed inside the mutating transaction, so the sequence is strictly
// increasing per user+symbol.
func (r *LotRepository) NextSeqTx(tx *sql.Tx, userID, symbol string) (int64, error) {
	var maxSeq sql.NullInt64
	err := tx.QueryRow(
		"SELECT MAX(acquired_seq) FROM lots WHERE user_id = ? AND symbol = ?",
		userID, symbol,
	).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("failed to get max acquired_seq: %w", err)
	}

	if !maxSeq.Valid {
		return 1, nil
	}
	return maxSeq.Int64 + 1, nil
}

// InsertTx creates a new lot inside a transaction and returns it with its
// assigned lot_id
func (r *LotRepository) InsertTx(tx *sql.Tx, lot Lot) (Lot, error) {
	result, err := tx.Exec(
		`INSERT INTO lots (user_id, symbol, quantity, unit_cost, acquired_seq, acquired_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		lot.UserID,
		lot.Symbol,
		lot.Quantity,
		lot.UnitCost.String(),
		lot.AcquiredSeq,
		lot.AcquiredAt.Format(database.TimeFormat),
	)
	if err != nil {
		return lot, fmt.Errorf("failed to insert lot: %w", err)
	}

	lot.LotID, err = result.LastInsertId()
	if err != nil {
		return lot, fmt.Errorf("failed to get lot id: %w", err)
	}

	return lot, nil
}

// DecrementTx reduces a lot's quantity inside a transaction. The remaining
// quantity must stay positive; zero-quantity lots are deleted instead.
func (r *LotRepository) DecrementTx(tx *sql.Tx, lotID, byQuantity int64) error {
	result, err := tx.Exec(
		"UPDATE lots SET quantity = quantity - ? WHERE lot_id = ? AND quantity > ?",
		byQuantity, lotID, byQuantity,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement lot %d: %w", lotID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check lot decrement: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("%w: lot %d cannot absorb decrement of %d", ErrInvariantViolated, lotID, byQuantity)
	}

	return nil
}

// DeleteTx removes a fully consumed lot inside a transaction
func (r *LotRepository) DeleteTx(tx *sql.Tx, lotID int64) error {
	result, err := tx.Exec("DELETE FROM lots WHERE lot_id = ?", lotID)
	if err != nil {
		return fmt.Errorf("failed to delete lot %d: %w", lotID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check lot delete: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("%w: lot %d missing on delete", ErrInvariantViolated, lotID)
	}

	return nil
}

func collectLots(rows *sql.Rows) ([]Lot, error) {
	var lots []Lot
	for rows.Next() {
		var lot Lot
		var unitCost, acquiredAt string

		err := rows.Scan(
			&lot.LotID,
			&lot.UserID,
			&lot.Symbol,
			&lot.Quantity,
			&unitCost,
			&lot.AcquiredSeq,
			&acquiredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}

		lot.UnitCost, err = decimal.NewFromString(unitCost)
		if err != nil {
			return nil, fmt.Errorf("invalid unit_cost %q: %w", unitCost, err)
		}

		if t, err := time.Parse(time.RFC3339Nano, acquiredAt); err == nil {
			lot.AcquiredAt = t
		}

		lots = append(lots, lot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return lots, nil
}
