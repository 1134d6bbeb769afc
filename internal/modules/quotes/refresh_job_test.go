package quotes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpedia/paper-trader/internal/events"
)

// listSource is a fixed SymbolSource
type listSource []string

func (s listSource) DistinctSymbols() ([]string, error) { return s, nil }

func newFeedServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, zerolog.Nop())
}

func TestRefreshJob_UpdatesCache(t *testing.T) {
	var requestedSymbols string
	client := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		requestedSymbols = r.URL.Query().Get("symbols")
		_ = json.NewEncoder(w).Encode([]Quote{
			{Symbol: "tcs", Price: decimal.NewFromInt(100)},
			{Symbol: "INFY", Price: decimal.NewFromInt(50)},
		})
	})

	cache := NewCache(5 * time.Minute)
	job := NewRefreshJob(
		client,
		cache,
		[]SymbolSource{listSource{"TCS"}, listSource{"INFY", "TCS"}},
		events.NewManager(zerolog.Nop()),
		zerolog.Nop(),
	)

	require.NoError(t, job.Run())

	// Sources are merged and deduped.
	assert.Equal(t, "INFY,TCS", requestedSymbols)

	quote, ok := cache.Lookup("TCS")
	require.True(t, ok)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(100)))
	assert.False(t, quote.AsOf.IsZero(), "missing feed timestamps get defaulted")

	_, ok = cache.Lookup("INFY")
	assert.True(t, ok)
}

func TestRefreshJob_NoSymbolsSkipsFetch(t *testing.T) {
	client := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("feed must not be called with no tracked symbols")
	})

	job := NewRefreshJob(
		client,
		NewCache(5*time.Minute),
		[]SymbolSource{listSource{}},
		events.NewManager(zerolog.Nop()),
		zerolog.Nop(),
	)

	assert.NoError(t, job.Run())
}

func TestRefreshJob_FeedFailureKeepsLastKnown(t *testing.T) {
	client := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	cache := NewCache(5 * time.Minute)
	cache.Put(Quote{Symbol: "TCS", Price: decimal.NewFromInt(100)})

	job := NewRefreshJob(
		client,
		cache,
		[]SymbolSource{listSource{"TCS"}},
		events.NewManager(zerolog.Nop()),
		zerolog.Nop(),
	)

	assert.Error(t, job.Run())

	// The cached price survives the failed refresh.
	quote, ok := cache.Lookup("TCS")
	require.True(t, ok)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(100)))
}

func TestClient_UnknownSymbolsAbsent(t *testing.T) {
	client := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		// The feed only knows one of the two requested symbols.
		_ = json.NewEncoder(w).Encode([]Quote{
			{Symbol: "TCS", Price: decimal.NewFromInt(100)},
		})
	})

	quotes, err := client.GetQuotes(context.Background(), []string{"TCS", "GHOST"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "TCS", quotes[0].Symbol)
}
