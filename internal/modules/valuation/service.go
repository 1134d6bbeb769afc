package valuation

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/stockpedia/paper-trader/internal/modules/ledger"
	"github.com/stockpedia/paper-trader/internal/modules/quotes"
)

// QuoteGateway supplies the latest known quote per symbol
type QuoteGateway interface {
	Lookup(symbol string) (quotes.Quote, bool)
}

// Service computes unrealized P&L by joining live lots with quotes.
// Read-only; it never mutates the account or holding stores.
type Service struct {
	accounts *ledger.AccountRepository
	lots     *ledger.LotRepository
	gateway  QuoteGateway
	log      zerolog.Logger
}

// NewService creates a new valuation service
func NewService(
	accounts *ledger.AccountRepository,
	lots *ledger.LotRepository,
	gateway QuoteGateway,
	log zerolog.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		lots:     lots,
		gateway:  gateway,
		log:      log.With().Str("service", "valuation").Logger(),
	}
}

// Portfolio returns the full view: account, positions, valuation
func (s *Service) Portfolio(userID string) (*PortfolioView, error) {
	account, err := s.accounts.Get(userID)
	if err != nil {
		return nil, err
	}

	lots, err := s.lots.GetAllForUser(userID)
	if err != nil {
		return nil, err
	}

	positions := groupPositions(lots)

	return &PortfolioView{
		Account:   *account,
		Positions: positions,
		Valuation: s.valueOf(positions),
	}, nil
}

// Value computes the valuation for a user's holdings
func (s *Service) Value(userID string) (*Valuation, error) {
	lots, err := s.lots.GetAllForUser(userID)
	if err != nil {
		return nil, err
	}

	valuation := s.valueOf(groupPositions(lots))
	return &valuation, nil
}

func (s *Service) valueOf(positions []ledger.Position) Valuation {
	valuation := Valuation{
		TotalInvested:    decimal.Zero,
		TotalMarketValue: decimal.Zero,
		UnrealizedPnL:    decimal.Zero,
		UnrealizedPnLPct: decimal.Zero,
		Symbols:          []SymbolValuation{},
	}

	for _, pos := range positions {
		sv := SymbolValuation{
			Symbol:      pos.Symbol,
			Quantity:    pos.TotalQuantity,
			AverageCost: pos.AverageCost,
			CostBasis:   pos.CostBasis,
		}

		quote, found := s.gateway.Lookup(pos.Symbol)
		if found {
			sv.Price = quote.Price
			sv.PriceAsOf = quote.AsOf
			sv.Stale = quote.Stale
		} else {
			// Never quoted: value at cost and flag stale rather than
			// failing the whole valuation.
			sv.Price = pos.AverageCost
			sv.Stale = true
		}

		sv.MarketValue = sv.Price.Mul(decimal.NewFromInt(pos.TotalQuantity))
		sv.UnrealizedPnL = sv.MarketValue.Sub(pos.CostBasis)
		sv.UnrealizedPnLPct = percentOf(sv.UnrealizedPnL, pos.CostBasis)

		valuation.TotalInvested = valuation.TotalInvested.Add(pos.CostBasis)
		valuation.TotalMarketValue = valuation.TotalMarketValue.Add(sv.MarketValue)
		valuation.Symbols = append(valuation.Symbols, sv)
	}

	valuation.UnrealizedPnL = valuation.TotalMarketValue.Sub(valuation.TotalInvested)
	valuation.UnrealizedPnLPct = percentOf(valuation.UnrealizedPnL, valuation.TotalInvested)

	return valuation
}

// percentOf returns part/whole * 100, defined as 0 when whole is 0
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(decimal.NewFromInt(100)).DivRound(whole, 4)
}

// groupPositions folds symbol-ordered lots into position aggregates
func groupPositions(lots []ledger.Lot) []ledger.Position {
	positions := []ledger.Position{}
	start := 0
	for i := 1; i <= len(lots); i++ {
		if i == len(lots) || lots[i].Symbol != lots[start].Symbol {
			positions = append(positions, ledger.NewPosition(lots[start].Symbol, lots[start:i]))
			start = i
		}
	}
	return positions
}
