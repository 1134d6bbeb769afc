package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockpedia/paper-trader/internal/modules/ledger"
)

// SymbolValuation joins one held symbol with its latest quote
type SymbolValuation struct {
	Symbol           string          `json:"symbol"`
	Quantity         int64           `json:"quantity"`
	AverageCost      decimal.Decimal `json:"average_cost"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	Price            decimal.Decimal `json:"price"`
	PriceAsOf        time.Time       `json:"price_as_of,omitempty"`
	MarketValue      decimal.Decimal `json:"market_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealized_pnl_pct"`
	Stale            bool            `json:"stale,omitempty"`
}

// Valuation is the portfolio-wide aggregate
type Valuation struct {
	TotalInvested    decimal.Decimal   `json:"total_invested"`
	TotalMarketValue decimal.Decimal   `json:"total_market_value"`
	UnrealizedPnL    decimal.Decimal   `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal   `json:"unrealized_pnl_pct"`
	Symbols          []SymbolValuation `json:"symbols"`
}

// PortfolioView is the full GET portfolio response: balance, positions and
// their valuation
type PortfolioView struct {
	Account   ledger.Account    `json:"account"`
	Positions []ledger.Position `json:"positions"`
	Valuation Valuation         `json:"valuation"`
}
