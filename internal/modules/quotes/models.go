package quotes

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one symbol's latest known price from the external feed
type Quote struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	PercentChange decimal.Decimal `json:"percent_change"`
	Currency      string          `json:"currency,omitempty"`
	AsOf          time.Time       `json:"as_of"`
	Stale         bool            `json:"stale,omitempty"` // set on cache reads past the freshness window
}
