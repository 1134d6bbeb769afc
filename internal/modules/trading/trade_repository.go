package trading

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockpedia/paper-trader/internal/database"
)

// TradeRepository handles trade journal database operations
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trade").Logger(),
	}
}

// CreateTx inserts a trade record inside an existing transaction
func (r *TradeRepository) CreateTx(tx *sql.Tx, trade Trade) error {
	var realizedPnL sql.NullString
	if trade.RealizedPnL != nil {
		realizedPnL = sql.NullString{String: trade.RealizedPnL.String(), Valid: true}
	}

	var idempotencyKey sql.NullString
	if trade.IdempotencyKey != "" {
		idempotencyKey = sql.NullString{String: trade.IdempotencyKey, Valid: true}
	}

	query := `
		INSERT INTO trades
		(trade_id, user_id, symbol, side, quantity, price,
		 realized_pnl, balance_after, idempotency_key, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		trade.TradeID,
		trade.UserID,
		strings.ToUpper(strings.TrimSpace(trade.Symbol)),
		string(trade.Side),
		trade.Quantity,
		trade.Price.String(),
		realizedPnL,
		trade.BalanceAfter.String(),
		idempotencyKey,
		trade.ExecutedAt.Format(database.TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	return nil
}

// GetByIdempotencyKeyTx looks up a journaled trade by idempotency key inside
// an existing transaction. Keys are scoped per user: the same key from two
// users names two independent trades. Returns nil when no trade of this
// user carries the key.
func (r *TradeRepository) GetByIdempotencyKeyTx(tx *sql.Tx, userID, key string) (*Trade, error) {
	query := `
		SELECT trade_id, user_id, symbol, side, quantity, price,
		       realized_pnl, balance_after, idempotency_key, executed_at
		FROM trades
		WHERE user_id = ? AND idempotency_key = ?
	`

	trade, err := scanTrade(tx.QueryRow(query, userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade by idempotency key: %w", err)
	}

	return &trade, nil
}

// GetHistory retrieves a user's trade history, most recent first
func (r *TradeRepository) GetHistory(userID string, limit int) ([]Trade, error) {
	query := `
		SELECT trade_id, user_id, symbol, side, quantity, price,
		       realized_pnl, balance_after, idempotency_key, executed_at
		FROM trades
		WHERE user_id = ?
		ORDER BY executed_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade history: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// GetBySymbol retrieves a user's trades for one symbol, most recent first
func (r *TradeRepository) GetBySymbol(userID, symbol string, limit int) ([]Trade, error) {
	query := `
		SELECT trade_id, user_id, symbol, side, quantity, price,
		       realized_pnl, balance_after, idempotency_key, executed_at
		FROM trades
		WHERE user_id = ? AND symbol = ?
		ORDER BY executed_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, userID, strings.ToUpper(strings.TrimSpace(symbol)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades by symbol: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row scanner) (Trade, error) {
	var trade Trade
	var side, price, balanceAfter, executedAt string
	var realizedPnL, idempotencyKey sql.NullString

	err := row.Scan(
		&trade.TradeID,
		&trade.UserID,
		&trade.Symbol,
		&side,
		&trade.Quantity,
		&price,
		&realizedPnL,
		&balanceAfter,
		&idempotencyKey,
		&executedAt,
	)
	if err != nil {
		return trade, err
	}

	trade.Side = Side(side)

	trade.Price, err = decimal.NewFromString(price)
	if err != nil {
		return trade, fmt.Errorf("invalid price %q: %w", price, err)
	}

	trade.BalanceAfter, err = decimal.NewFromString(balanceAfter)
	if err != nil {
		return trade, fmt.Errorf("invalid balance_after %q: %w", balanceAfter, err)
	}

	if realizedPnL.Valid {
		pnl, err := decimal.NewFromString(realizedPnL.String)
		if err != nil {
			return trade, fmt.Errorf("invalid realized_pnl %q: %w", realizedPnL.String, err)
		}
		trade.RealizedPnL = &pnl
	}

	if idempotencyKey.Valid {
		trade.IdempotencyKey = idempotencyKey.String
	}

	if t, err := time.Parse(time.RFC3339Nano, executedAt); err == nil {
		trade.ExecutedAt = t
	}

	return trade, nil
}
