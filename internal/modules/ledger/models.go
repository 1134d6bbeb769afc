package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockpedia/paper-trader/internal/modules/trading"
)

// Account holds one user's virtual cash balance
type Account struct {
	UserID      string          `json:"user_id"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Lot is one acquisition event for a symbol. Lots are immutable except for
// the quantity decrement on sells; a lot is deleted when its quantity
// reaches zero.
type Lot struct {
	LotID       int64           `json:"lot_id"`
	UserID      string          `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	AcquiredSeq int64           `json:"acquired_seq"`
	AcquiredAt  time.Time       `json:"acquired_at"`
}

// CostBasis returns quantity * unit cost for the lot
func (l Lot) CostBasis() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(l.Quantity))
}

// Position is the derived aggregate view over a symbol's live lots. It is
// never stored; it is recomputed from lots inside the same transaction.
type Position struct {
	Symbol        string          `json:"symbol"`
	TotalQuantity int64           `json:"total_quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
}

// averageCostPlaces is the rounding precision for the weighted mean.
const averageCostPlaces = 8

// NewPosition aggregates live lots into a position. All lots must belong to
// the same symbol.
func NewPosition(symbol string, lots []Lot) Position {
	pos := Position{
		Symbol:      symbol,
		AverageCost: decimal.Zero,
		CostBasis:   decimal.Zero,
	}

	for _, lot := range lots {
		pos.TotalQuantity += lot.Quantity
		pos.CostBasis = pos.CostBasis.Add(lot.CostBasis())
	}

	if pos.TotalQuantity > 0 {
		pos.AverageCost = pos.CostBasis.DivRound(decimal.NewFromInt(pos.TotalQuantity), averageCostPlaces)
	}

	return pos
}

// OrderRequest is a validated buy/sell request against the ledger
type OrderRequest struct {
	UserID         string          `json:"user_id"`
	Symbol         string          `json:"symbol"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// Validate checks and normalizes the request. Violations wrap
// ErrInvalidOrder so handlers can map them to a 400.
func (r *OrderRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if !r.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}

	r.UserID = strings.TrimSpace(r.UserID)
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))

	return nil
}

// Total returns quantity * price for the order
func (r *OrderRequest) Total() decimal.Decimal {
	return r.Price.Mul(decimal.NewFromInt(r.Quantity))
}

// OrderResult is the outcome of a committed buy or sell
type OrderResult struct {
	Account     Account          `json:"account"`
	Position    Position         `json:"position"`
	Trade       trading.Trade    `json:"trade"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"` // sells only
	Replayed    bool             `json:"replayed,omitempty"`     // idempotency key hit
}
