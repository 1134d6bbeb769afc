package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/stockpedia/paper-trader/internal/modules/trading"
)

// TestEngineProperties drives random buy/sell sequences against the engine
// and checks, after every applied order, that the books still balance: cash
// never goes negative, quantities never go negative, and cash plus net flows
// always reconciles with the starting balance.
func TestEngineProperties(t *testing.T) {
	symbols := []string{"AAA", "BBB", "CCC"}

	rapid.Check(t, func(rt *rapid.T) {
		e := newTestEngine(t)
		ctx := context.Background()

		expectedCash := decimal.NewFromInt(1000000)
		expectedQty := map[string]int64{}
		accountExists := false

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			symbol := rapid.SampledFrom(symbols).Draw(rt, "symbol")
			qty := int64(rapid.IntRange(1, 50).Draw(rt, "qty"))
			price := decimal.NewFromInt(int64(rapid.IntRange(1, 500).Draw(rt, "price"))).
				Div(decimal.NewFromInt(4)) // quarter-point prices

			req := OrderRequest{UserID: "prop", Symbol: symbol, Quantity: qty, Price: price}
			total := price.Mul(decimal.NewFromInt(qty))

			var result *OrderResult
			var err error
			if rapid.Bool().Draw(rt, "isBuy") {
				result, err = e.Buy(ctx, req)
				if errors.Is(err, ErrInsufficientFunds) {
					require.True(rt, expectedCash.LessThan(total),
						"rejected a buy the model says was affordable")
					continue
				}
				require.NoError(rt, err)
				expectedCash = expectedCash.Sub(total)
				expectedQty[symbol] += qty
			} else {
				result, err = e.Sell(ctx, req)
				if errors.Is(err, ErrInsufficientHoldings) {
					require.Less(rt, expectedQty[symbol], qty,
						"rejected a sell the model says was covered")
					continue
				}
				require.NoError(rt, err)
				expectedCash = expectedCash.Add(total)
				expectedQty[symbol] -= qty
				require.Equal(rt, trading.SideSell, result.Trade.Side)
			}
			accountExists = true

			require.False(rt, result.Account.CashBalance.IsNegative())
			require.True(rt, result.Account.CashBalance.Equal(expectedCash),
				"cash drifted: engine %s, model %s", result.Account.CashBalance, expectedCash)
			require.Equal(rt, expectedQty[symbol], result.Position.TotalQuantity)
			require.GreaterOrEqual(rt, result.Position.TotalQuantity, int64(0))
		}

		if !accountExists {
			return
		}

		account, positions, err := e.Snapshot("prop")
		require.NoError(rt, err)
		require.True(rt, account.CashBalance.Equal(expectedCash))

		seen := map[string]int64{}
		for _, pos := range positions {
			seen[pos.Symbol] = pos.TotalQuantity
			// Weighted-average identity over the surviving lots.
			derived := pos.AverageCost.Mul(decimal.NewFromInt(pos.TotalQuantity))
			require.True(rt, derived.Sub(pos.CostBasis).Abs().LessThanOrEqual(identityTolerance),
				"identity broken for %s: basis %s, derived %s", pos.Symbol, pos.CostBasis, derived)
		}
		for symbol, qty := range expectedQty {
			require.Equal(rt, qty, seen[symbol], "quantity mismatch for %s", symbol)
		}
	})
}
