package quotes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockpedia/paper-trader/internal/events"
)

// SymbolSource lists symbols that need live quotes (held lots, watchlists)
type SymbolSource interface {
	DistinctSymbols() ([]string, error)
}

// RefreshJob polls the quote feed for every tracked symbol and updates the
// cache. Registered with the scheduler on the configured cron spec.
type RefreshJob struct {
	client       *Client
	cache        *Cache
	sources      []SymbolSource
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewRefreshJob creates a new quote refresh job
func NewRefreshJob(
	client *Client,
	cache *Cache,
	sources []SymbolSource,
	eventManager *events.Manager,
	log zerolog.Logger,
) *RefreshJob {
	return &RefreshJob{
		client:       client,
		cache:        cache,
		sources:      sources,
		eventManager: eventManager,
		log:          log.With().Str("job", "quote_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "quote_refresh"
}

// Run fetches quotes for the union of all source symbols
func (j *RefreshJob) Run() error {
	symbols, err := j.trackedSymbols()
	if err != nil {
		j.eventManager.EmitError("quotes", err, map[string]interface{}{
			"step": "collect_symbols",
		})
		return err
	}
	if len(symbols) == 0 {
		return nil
	}

	j.eventManager.Emit(events.QuoteRefreshStart, "quotes", map[string]interface{}{
		"symbols": len(symbols),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	fetched, err := j.client.GetQuotes(ctx, symbols)
	if err != nil {
		// Last known prices stay in the cache; the next tick retries.
		j.eventManager.EmitError("quotes", err, map[string]interface{}{
			"step": "fetch_quotes",
		})
		return fmt.Errorf("failed to refresh quotes: %w", err)
	}

	for _, quote := range fetched {
		j.cache.Put(quote)
	}

	j.eventManager.Emit(events.QuoteRefreshComplete, "quotes", map[string]interface{}{
		"requested": len(symbols),
		"updated":   len(fetched),
	})

	return nil
}

// trackedSymbols merges and dedupes symbols from all sources
func (j *RefreshJob) trackedSymbols() ([]string, error) {
	seen := make(map[string]bool)
	for _, source := range j.sources {
		symbols, err := source.DistinctSymbols()
		if err != nil {
			return nil, fmt.Errorf("failed to list tracked symbols: %w", err)
		}
		for _, symbol := range symbols {
			seen[symbol] = true
		}
	}

	result := make([]string, 0, len(seen))
	for symbol := range seen {
		result = append(result, symbol)
	}
	sort.Strings(result)
	return result, nil
}
