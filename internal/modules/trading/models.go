package trading

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the order direction (BUY or SELL)
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// IsValid checks if the side is valid
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// IsBuy returns true for a BUY order
func (s Side) IsBuy() bool {
	return s == SideBuy
}

// IsSell returns true for a SELL order
func (s Side) IsSell() bool {
	return s == SideSell
}

// SideFromString creates a Side from a string (case-insensitive)
func SideFromString(value string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid side: %q", value)
	}
}

// Trade is one journaled order execution. Rows are append-only and written
// in the same transaction as the ledger mutation they record.
type Trade struct {
	TradeID        string           `json:"trade_id"`
	UserID         string           `json:"user_id"`
	Symbol         string           `json:"symbol"`
	Side           Side             `json:"side"`
	Quantity       int64            `json:"quantity"`
	Price          decimal.Decimal  `json:"price"`
	RealizedPnL    *decimal.Decimal `json:"realized_pnl,omitempty"` // sells only
	BalanceAfter   decimal.Decimal  `json:"balance_after"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	ExecutedAt     time.Time        `json:"executed_at"`
}
