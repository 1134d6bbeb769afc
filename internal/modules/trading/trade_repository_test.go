package trading

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpedia/paper-trader/internal/database"
)

func newTestRepo(t *testing.T) (*TradeRepository, *database.DB) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return NewTradeRepository(db.Conn(), zerolog.Nop()), db
}

func insertTrade(t *testing.T, repo *TradeRepository, db *database.DB, trade Trade) {
	t.Helper()

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(tx, trade))
	require.NoError(t, tx.Commit())
}

func sampleTrade(userID, symbol string, side Side, executedAt time.Time) Trade {
	return Trade{
		TradeID:      uuid.NewString(),
		UserID:       userID,
		Symbol:       symbol,
		Side:         side,
		Quantity:     10,
		Price:        decimal.NewFromInt(100),
		BalanceAfter: decimal.NewFromInt(999000),
		ExecutedAt:   executedAt,
	}
}

func TestCreateAndGetHistory(t *testing.T) {
	repo, db := newTestRepo(t)

	now := time.Now().UTC()
	pnl := decimal.NewFromInt(320)

	buy := sampleTrade("u1", "TCS", SideBuy, now.Add(-time.Minute))
	sell := sampleTrade("u1", "TCS", SideSell, now)
	sell.RealizedPnL = &pnl

	insertTrade(t, repo, db, buy)
	insertTrade(t, repo, db, sell)

	trades, err := repo.GetHistory("u1", 50)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	// Most recent first.
	assert.Equal(t, sell.TradeID, trades[0].TradeID)
	assert.Equal(t, SideSell, trades[0].Side)
	require.NotNil(t, trades[0].RealizedPnL)
	assert.True(t, trades[0].RealizedPnL.Equal(pnl))

	assert.Equal(t, buy.TradeID, trades[1].TradeID)
	assert.Nil(t, trades[1].RealizedPnL, "buys journal no realized P&L")
	assert.True(t, trades[1].Price.Equal(decimal.NewFromInt(100)))
}

func TestGetHistory_RespectsLimit(t *testing.T) {
	repo, db := newTestRepo(t)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		insertTrade(t, repo, db, sampleTrade("u1", "TCS", SideBuy, now.Add(time.Duration(i)*time.Second)))
	}

	trades, err := repo.GetHistory("u1", 3)
	require.NoError(t, err)
	assert.Len(t, trades, 3)
}

func TestGetBySymbol(t *testing.T) {
	repo, db := newTestRepo(t)

	now := time.Now().UTC()
	insertTrade(t, repo, db, sampleTrade("u1", "TCS", SideBuy, now))
	insertTrade(t, repo, db, sampleTrade("u1", "INFY", SideBuy, now))

	trades, err := repo.GetBySymbol("u1", "tcs", 50)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "TCS", trades[0].Symbol)
}

func TestGetByIdempotencyKeyTx(t *testing.T) {
	repo, db := newTestRepo(t)

	trade := sampleTrade("u1", "TCS", SideBuy, time.Now().UTC())
	trade.IdempotencyKey = "key-1"
	insertTrade(t, repo, db, trade)

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	found, err := repo.GetByIdempotencyKeyTx(tx, "u1", "key-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, trade.TradeID, found.TradeID)
	assert.Equal(t, "key-1", found.IdempotencyKey)

	missing, err := repo.GetByIdempotencyKeyTx(tx, "u1", "key-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// The key is scoped per user; another user never sees it.
	missing, err = repo.GetByIdempotencyKeyTx(tx, "u2", "key-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIdempotencyKeyUniquePerUser(t *testing.T) {
	repo, db := newTestRepo(t)

	first := sampleTrade("u1", "TCS", SideBuy, time.Now().UTC())
	first.IdempotencyKey = "key-1"
	insertTrade(t, repo, db, first)

	// Same user, same key: the store rejects the duplicate.
	second := sampleTrade("u1", "TCS", SideBuy, time.Now().UTC())
	second.IdempotencyKey = "key-1"

	tx, err := db.Conn().Begin()
	require.NoError(t, err)
	err = repo.CreateTx(tx, second)
	assert.Error(t, err, "duplicate idempotency key must be rejected by the store")
	_ = tx.Rollback()

	// A different user may carry the same key.
	other := sampleTrade("u2", "TCS", SideBuy, time.Now().UTC())
	other.IdempotencyKey = "key-1"
	insertTrade(t, repo, db, other)
}

func TestGetHistory_OrderSurvivesTrimmedFractions(t *testing.T) {
	repo, db := newTestRepo(t)

	// A whole-second timestamp and a later fractional one: with a trimmed
	// fraction the TEXT ordering would invert these.
	wholeSecond := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	later := wholeSecond.Add(500 * time.Millisecond)

	first := sampleTrade("u1", "TCS", SideBuy, wholeSecond)
	second := sampleTrade("u1", "TCS", SideSell, later)
	insertTrade(t, repo, db, first)
	insertTrade(t, repo, db, second)

	trades, err := repo.GetHistory("u1", 50)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, second.TradeID, trades[0].TradeID)
	assert.Equal(t, first.TradeID, trades[1].TradeID)
}

func TestSideHelpers(t *testing.T) {
	assert.True(t, SideBuy.IsValid())
	assert.True(t, SideSell.IsValid())
	assert.False(t, Side("hold").IsValid())

	side, err := SideFromString("BUY")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, side)

	_, err = SideFromString("short")
	assert.Error(t, err)
}
