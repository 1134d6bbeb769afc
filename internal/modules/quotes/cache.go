package quotes

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache keeps the last known quote per symbol. Entries are never evicted:
// a quote past the freshness window is still served, flagged stale, so one
// unreachable feed symbol never fails a whole valuation.
type Cache struct {
	mu         sync.RWMutex
	quotes     map[string]cacheEntry
	staleAfter time.Duration
	now        func() time.Time // injectable for tests
}

type cacheEntry struct {
	quote     Quote
	fetchedAt time.Time
}

// NewCache creates a new quote cache
func NewCache(staleAfter time.Duration) *Cache {
	return &Cache{
		quotes:     make(map[string]cacheEntry),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Put stores a fresh quote
func (c *Cache) Put(quote Quote) {
	symbol := strings.ToUpper(strings.TrimSpace(quote.Symbol))
	quote.Symbol = symbol
	quote.Stale = false

	c.mu.Lock()
	c.quotes[symbol] = cacheEntry{quote: quote, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Lookup returns the last known quote for a symbol. The second return is
// false only when the symbol has never been quoted. Quotes past the
// freshness window come back with Stale set.
func (c *Cache) Lookup(symbol string) (Quote, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	c.mu.RLock()
	entry, ok := c.quotes[symbol]
	c.mu.RUnlock()

	if !ok {
		return Quote{}, false
	}

	quote := entry.quote
	if c.now().Sub(entry.fetchedAt) > c.staleAfter {
		quote.Stale = true
	}
	return quote, true
}

// All returns every cached quote, sorted by symbol
func (c *Cache) All() []Quote {
	c.mu.RLock()
	result := make([]Quote, 0, len(c.quotes))
	for _, entry := range c.quotes {
		quote := entry.quote
		if c.now().Sub(entry.fetchedAt) > c.staleAfter {
			quote.Stale = true
		}
		result = append(result, quote)
	}
	c.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}
