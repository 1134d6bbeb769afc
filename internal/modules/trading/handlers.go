package trading

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the trade journal
type Handlers struct {
	tradeRepo *TradeRepository
	log       zerolog.Logger
}

// NewHandlers creates a new trading handlers instance
func NewHandlers(tradeRepo *TradeRepository, log zerolog.Logger) *Handlers {
	return &Handlers{
		tradeRepo: tradeRepo,
		log:       log.With().Str("handler", "trading").Logger(),
	}
}

// HandleGetTrades returns a user's trade history
// GET /api/trades/{userID}?limit=&symbol=
func (h *Handlers) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "userID is required", http.StatusBadRequest)
		return
	}

	limit := 50
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var trades []Trade
	var err error
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		trades, err = h.tradeRepo.GetBySymbol(userID, symbol, limit)
	} else {
		trades, err = h.tradeRepo.GetHistory(userID, limit)
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get trade history")
		http.Error(w, "Failed to get trade history", http.StatusInternalServerError)
		return
	}

	if trades == nil {
		trades = []Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(trades) // Ignore encode error - already committed response
}
