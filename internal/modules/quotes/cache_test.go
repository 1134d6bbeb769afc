package quotes

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutAndLookup(t *testing.T) {
	c := NewCache(5 * time.Minute)

	c.Put(Quote{Symbol: "tcs", Price: decimal.NewFromInt(100)})

	quote, ok := c.Lookup("TCS")
	require.True(t, ok)
	assert.Equal(t, "TCS", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(100)))
	assert.False(t, quote.Stale)
}

func TestCache_LookupUnknownSymbol(t *testing.T) {
	c := NewCache(5 * time.Minute)

	_, ok := c.Lookup("NOPE")
	assert.False(t, ok)
}

func TestCache_StaleAfterWindow(t *testing.T) {
	c := NewCache(5 * time.Minute)

	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Put(Quote{Symbol: "INFY", Price: decimal.NewFromInt(50)})

	// Just inside the window: still fresh.
	c.now = func() time.Time { return base.Add(5 * time.Minute) }
	quote, ok := c.Lookup("INFY")
	require.True(t, ok)
	assert.False(t, quote.Stale)

	// Past the window: served, but flagged.
	c.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }
	quote, ok = c.Lookup("INFY")
	require.True(t, ok)
	assert.True(t, quote.Stale)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(50)),
		"stale quotes keep their last known price")
}

func TestCache_RefreshClearsStaleness(t *testing.T) {
	c := NewCache(time.Minute)

	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	c.Put(Quote{Symbol: "SBIN", Price: decimal.NewFromInt(700)})

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	quote, _ := c.Lookup("SBIN")
	require.True(t, quote.Stale)

	// A fresh Put resets the clock even if the payload carried Stale.
	c.Put(Quote{Symbol: "SBIN", Price: decimal.NewFromInt(710), Stale: true})
	quote, _ = c.Lookup("SBIN")
	assert.False(t, quote.Stale)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(710)))
}

func TestCache_AllSortedBySymbol(t *testing.T) {
	c := NewCache(5 * time.Minute)

	c.Put(Quote{Symbol: "ZEE", Price: decimal.NewFromInt(1)})
	c.Put(Quote{Symbol: "ABB", Price: decimal.NewFromInt(2)})
	c.Put(Quote{Symbol: "LT", Price: decimal.NewFromInt(3)})

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "ABB", all[0].Symbol)
	assert.Equal(t, "LT", all[1].Symbol)
	assert.Equal(t, "ZEE", all[2].Symbol)
}
