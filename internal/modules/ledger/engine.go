package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockpedia/paper-trader/internal/database"
	"github.com/stockpedia/paper-trader/internal/events"
	"github.com/stockpedia/paper-trader/internal/modules/trading"
)

// identityTolerance bounds the allowed drift in the weighted-average
// identity check (sum of lot cost bases vs quantity * average cost).
var identityTolerance = decimal.New(1, -6)

// Engine validates and applies buy/sell orders against one user's cash
// balance and lots. Every operation runs under a per-user lock and inside a
// single database transaction: either the cash mutation and the lot
// mutations all commit, or none do.
type Engine struct {
	db              *database.DB
	accounts        *AccountRepository
	lots            *LotRepository
	trades          *trading.TradeRepository
	eventManager    *events.Manager
	locks           *lockManager
	startingBalance decimal.Decimal
	txTimeout       time.Duration
	log             zerolog.Logger
}

// EngineConfig holds engine dependencies
type EngineConfig struct {
	DB              *database.DB
	Accounts        *AccountRepository
	Lots            *LotRepository
	Trades          *trading.TradeRepository
	EventManager    *events.Manager
	StartingBalance decimal.Decimal
	TxTimeout       time.Duration
	Log             zerolog.Logger
}

// NewEngine creates a new ledger engine
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		db:              cfg.DB,
		accounts:        cfg.Accounts,
		lots:            cfg.Lots,
		trades:          cfg.Trades,
		eventManager:    cfg.EventManager,
		locks:           newLockManager(),
		startingBalance: cfg.StartingBalance,
		txTimeout:       cfg.TxTimeout,
		log:             cfg.Log.With().Str("component", "ledger").Logger(),
	}
}

// Buy debits quantity*price from the user's cash balance and creates a new
// lot at the supplied price. The price comes from the caller; the engine is
// price-agnostic and purely arithmetic.
func (e *Engine) Buy(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return e.execute(ctx, req, trading.SideBuy)
}

// Sell consumes the user's lots for the symbol in FIFO order (acquisition
// sequence ascending, lot_id as tie-break) and credits quantity*price.
// Realized P&L is proceeds minus the consumed cost basis; it is journaled
// and returned but takes no part in balance arithmetic.
func (e *Engine) Sell(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return e.execute(ctx, req, trading.SideSell)
}

// Snapshot returns the user's account and per-symbol positions. Read-only
// and unserialized: a read racing a concurrent mutation may be slightly
// stale, which is acceptable for display.
func (e *Engine) Snapshot(userID string) (*Account, []Position, error) {
	account, err := e.accounts.Get(userID)
	if err != nil {
		return nil, nil, err
	}

	lots, err := e.lots.GetAllForUser(userID)
	if err != nil {
		return nil, nil, err
	}

	return account, positionsFromLots(lots), nil
}

// execute runs one order under the per-user lock and a bounded transaction
func (e *Engine) execute(ctx context.Context, req OrderRequest, side trading.Side) (*OrderResult, error) {
	lock := e.locks.get(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.txTimeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, e.mapTxErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	// Idempotency: a replayed key returns the journaled outcome untouched.
	// Keys are scoped per user; another user's key never matches.
	if req.IdempotencyKey != "" {
		prior, err := e.trades.GetByIdempotencyKeyTx(tx, req.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, e.mapTxErr(err)
		}
		if prior != nil {
			result, err := e.replayResult(tx, req, *prior)
			if err != nil {
				return nil, e.mapTxErr(err)
			}
			if err := tx.Commit(); err != nil {
				return nil, e.mapTxErr(err)
			}
			return result, nil
		}
	}

	account, created, err := e.accounts.GetOrCreateTx(tx, req.UserID, e.startingBalance)
	if err != nil {
		return nil, e.mapTxErr(err)
	}
	if created {
		e.eventManager.Emit(events.AccountCreated, "ledger", map[string]interface{}{
			"user_id": req.UserID,
		})
	}

	var result *OrderResult
	if side.IsBuy() {
		result, err = e.applyBuy(tx, req, account)
	} else {
		result, err = e.applySell(tx, req, account)
	}
	if err != nil {
		if isBusinessErr(err) {
			e.eventManager.Emit(events.OrderRejected, "ledger", map[string]interface{}{
				"user_id": req.UserID,
				"symbol":  req.Symbol,
				"side":    string(side),
				"reason":  err.Error(),
			})
			return nil, err
		}
		return nil, e.mapTxErr(err)
	}

	if err := verifyInvariants(result.Account, result.Position); err != nil {
		e.log.Error().
			Err(err).
			Str("user_id", req.UserID).
			Str("symbol", req.Symbol).
			Msg("Invariant check failed, aborting transaction")
		return nil, err
	}

	if err := e.trades.CreateTx(tx, result.Trade); err != nil {
		return nil, e.mapTxErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, e.mapTxErr(err)
	}

	e.eventManager.Emit(events.OrderExecuted, "ledger", map[string]interface{}{
		"user_id":  req.UserID,
		"symbol":   req.Symbol,
		"side":     string(side),
		"quantity": req.Quantity,
		"price":    req.Price.String(),
	})

	return result, nil
}

// applyBuy debits cash and creates the new lot
func (e *Engine) applyBuy(tx *sql.Tx, req OrderRequest, account *Account) (*OrderResult, error) {
	cost := req.Total()
	if account.CashBalance.LessThan(cost) {
		return nil, fmt.Errorf("%w: balance %s, order total %s",
			ErrInsufficientFunds, account.CashBalance, cost)
	}

	newBalance := account.CashBalance.Sub(cost)
	if err := e.accounts.UpdateBalanceTx(tx, req.UserID, newBalance); err != nil {
		return nil, err
	}

	seq, err := e.lots.NextSeqTx(tx, req.UserID, req.Symbol)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = e.lots.InsertTx(tx, Lot{
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Quantity:    req.Quantity,
		UnitCost:    req.Price,
		AcquiredSeq: seq,
		AcquiredAt:  now,
	})
	if err != nil {
		return nil, err
	}

	lots, err := e.lots.GetBySymbolTx(tx, req.UserID, req.Symbol)
	if err != nil {
		return nil, err
	}

	account.CashBalance = newBalance
	account.UpdatedAt = now

	return &OrderResult{
		Account:  *account,
		Position: NewPosition(req.Symbol, lots),
		Trade: trading.Trade{
			TradeID:        uuid.NewString(),
			UserID:         req.UserID,
			Symbol:         req.Symbol,
			Side:           trading.SideBuy,
			Quantity:       req.Quantity,
			Price:          req.Price,
			BalanceAfter:   newBalance,
			IdempotencyKey: req.IdempotencyKey,
			ExecutedAt:     now,
		},
	}, nil
}

// lotConsumption is one step of the FIFO walk, computed against the
// in-memory lot snapshot before any write happens
type lotConsumption struct {
	lot     Lot
	take    int64
	deplete bool
}

// applySell walks lots FIFO, applies the consumption plan, and credits cash
func (e *Engine) applySell(tx *sql.Tx, req OrderRequest, account *Account) (*OrderResult, error) {
	lots, err := e.lots.GetBySymbolTx(tx, req.UserID, req.Symbol)
	if err != nil {
		return nil, err
	}

	var held int64
	for _, lot := range lots {
		held += lot.Quantity
	}
	if held < req.Quantity {
		return nil, fmt.Errorf("%w: holding %d, order quantity %d",
			ErrInsufficientHoldings, held, req.Quantity)
	}

	// Plan the whole walk first so failures leave no partial consumption.
	var plan []lotConsumption
	remaining := req.Quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, lotConsumption{
			lot:     lot,
			take:    take,
			deplete: take == lot.Quantity,
		})
		remaining -= take
	}

	costBasis := decimal.Zero
	var surviving []Lot
	for _, step := range plan {
		costBasis = costBasis.Add(step.lot.UnitCost.Mul(decimal.NewFromInt(step.take)))
		if step.deplete {
			if err := e.lots.DeleteTx(tx, step.lot.LotID); err != nil {
				return nil, err
			}
			continue
		}
		if err := e.lots.DecrementTx(tx, step.lot.LotID, step.take); err != nil {
			return nil, err
		}
		rest := step.lot
		rest.Quantity -= step.take
		surviving = append(surviving, rest)
	}

	// Lots after the last planned step survive untouched.
	surviving = append(surviving, lots[len(plan):]...)

	proceeds := req.Total()
	newBalance := account.CashBalance.Add(proceeds)
	if err := e.accounts.UpdateBalanceTx(tx, req.UserID, newBalance); err != nil {
		return nil, err
	}

	realizedPnL := proceeds.Sub(costBasis)
	now := time.Now().UTC()

	account.CashBalance = newBalance
	account.UpdatedAt = now

	return &OrderResult{
		Account:     *account,
		Position:    NewPosition(req.Symbol, surviving),
		RealizedPnL: &realizedPnL,
		Trade: trading.Trade{
			TradeID:        uuid.NewString(),
			UserID:         req.UserID,
			Symbol:         req.Symbol,
			Side:           trading.SideSell,
			Quantity:       req.Quantity,
			Price:          req.Price,
			RealizedPnL:    &realizedPnL,
			BalanceAfter:   newBalance,
			IdempotencyKey: req.IdempotencyKey,
			ExecutedAt:     now,
		},
	}, nil
}

// replayResult rebuilds a response for an idempotency key that was already
// applied, without mutating anything
func (e *Engine) replayResult(tx *sql.Tx, req OrderRequest, prior trading.Trade) (*OrderResult, error) {
	account, err := e.accounts.GetTx(tx, req.UserID)
	if err != nil {
		return nil, err
	}

	lots, err := e.lots.GetBySymbolTx(tx, req.UserID, req.Symbol)
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("user_id", req.UserID).
		Str("idempotency_key", req.IdempotencyKey).
		Str("trade_id", prior.TradeID).
		Msg("Idempotency key replay, returning journaled outcome")

	return &OrderResult{
		Account:     *account,
		Position:    NewPosition(req.Symbol, lots),
		Trade:       prior,
		RealizedPnL: prior.RealizedPnL,
		Replayed:    true,
	}, nil
}

// verifyInvariants checks the books before commit. A failure here is a
// programming error and aborts the transaction.
func verifyInvariants(account Account, pos Position) error {
	if account.CashBalance.IsNegative() {
		return fmt.Errorf("%w: negative cash balance %s for %s",
			ErrInvariantViolated, account.CashBalance, account.UserID)
	}
	if pos.TotalQuantity < 0 {
		return fmt.Errorf("%w: negative quantity %d for %s",
			ErrInvariantViolated, pos.TotalQuantity, pos.Symbol)
	}

	// Weighted-average identity: cost basis == quantity * average cost
	// within the rounding tolerance of the average.
	derived := pos.AverageCost.Mul(decimal.NewFromInt(pos.TotalQuantity))
	if derived.Sub(pos.CostBasis).Abs().GreaterThan(identityTolerance) {
		return fmt.Errorf("%w: weighted-average identity broken for %s: basis %s, derived %s",
			ErrInvariantViolated, pos.Symbol, pos.CostBasis, derived)
	}

	return nil
}

// positionsFromLots groups lots (already ordered by symbol) into aggregates
func positionsFromLots(lots []Lot) []Position {
	positions := []Position{}
	start := 0
	for i := 1; i <= len(lots); i++ {
		if i == len(lots) || lots[i].Symbol != lots[start].Symbol {
			positions = append(positions, NewPosition(lots[start].Symbol, lots[start:i]))
			start = i
		}
	}
	return positions
}

// isBusinessErr reports whether err belongs to the caller-recoverable
// taxonomy rather than the infrastructure one
func isBusinessErr(err error) bool {
	return errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientHoldings) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInvariantViolated)
}

// mapTxErr folds store failures into the error taxonomy
func (e *Engine) mapTxErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case isLockContention(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// isLockContention detects SQLite busy/locked failures
func isLockContention(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}
