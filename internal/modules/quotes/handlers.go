package quotes

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for live quote data
type Handlers struct {
	cache *Cache
	log   zerolog.Logger
}

// NewHandlers creates a new quotes handlers instance
func NewHandlers(cache *Cache, log zerolog.Logger) *Handlers {
	return &Handlers{
		cache: cache,
		log:   log.With().Str("handler", "quotes").Logger(),
	}
}

// HandleLiveQuotes returns all cached quotes for the tracked universe
// GET /api/stocks/live
func (h *Handlers) HandleLiveQuotes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.cache.All()) // Ignore encode error - already committed response
}
