package watchlist

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockpedia/paper-trader/internal/database"
)

// Repository handles watchlist database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new watchlist repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// Add inserts a symbol onto a user's watchlist. Returns ErrDuplicateSymbol
// when the (user, symbol) pair already exists.
func (r *Repository) Add(userID, symbol, name string) (*Entry, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if name == "" {
		name = symbol
	}
	now := time.Now().UTC()

	result, err := r.db.Exec(
		"INSERT INTO watchlist (user_id, symbol, name, added_at) VALUES (?, ?, ?, ?)",
		userID, symbol, name, now.Format(database.TimeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, symbol)
		}
		return nil, fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist entry id: %w", err)
	}

	r.log.Info().Str("user_id", userID).Str("symbol", symbol).Msg("Watchlist entry added")

	return &Entry{
		ID:      id,
		UserID:  userID,
		Symbol:  symbol,
		Name:    name,
		AddedAt: now,
	}, nil
}

// Remove deletes a symbol from a user's watchlist. Returns the number of
// rows removed (0 when the symbol was not watched).
func (r *Repository) Remove(userID, symbol string) (int64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	result, err := r.db.Exec(
		"DELETE FROM watchlist WHERE user_id = ? AND symbol = ?",
		userID, symbol,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to remove watchlist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check watchlist removal: %w", err)
	}

	r.log.Info().Str("user_id", userID).Str("symbol", symbol).Int64("rows_affected", affected).Msg("Watchlist entry removed")
	return affected, nil
}

// GetForUser returns a user's watchlist, newest first
func (r *Repository) GetForUser(userID string) ([]Entry, error) {
	rows, err := r.db.Query(
		"SELECT id, user_id, symbol, name, added_at FROM watchlist WHERE user_id = ? ORDER BY added_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var addedAt string
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Symbol, &entry.Name, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, addedAt); err == nil {
			entry.AddedAt = t
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist: %w", err)
	}

	return entries, nil
}

// Contains checks whether a symbol is on a user's watchlist
func (r *Repository) Contains(userID, symbol string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var one int
	err := r.db.QueryRow(
		"SELECT 1 FROM watchlist WHERE user_id = ? AND symbol = ? LIMIT 1",
		userID, symbol,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist: %w", err)
	}
	return true, nil
}

// SymbolsForUser returns only the symbols on a user's watchlist
func (r *Repository) SymbolsForUser(userID string) ([]string, error) {
	rows, err := r.db.Query("SELECT symbol FROM watchlist WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist symbols: %w", err)
	}
	defer rows.Close()

	return collectSymbols(rows)
}

// DistinctSymbols returns every symbol watched by any user (quote refresh)
func (r *Repository) DistinctSymbols() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT symbol FROM watchlist")
	if err != nil {
		return nil, fmt.Errorf("failed to query watched symbols: %w", err)
	}
	defer rows.Close()

	return collectSymbols(rows)
}

func collectSymbols(rows *sql.Rows) ([]string, error) {
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

// isUniqueViolation detects the sqlite unique constraint failure
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
