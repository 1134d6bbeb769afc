package watchlist

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stockpedia/paper-trader/internal/events"
)

// Handlers contains HTTP handlers for the watchlist API
type Handlers struct {
	repo         *Repository
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewHandlers creates a new watchlist handlers instance
func NewHandlers(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo:         repo,
		eventManager: eventManager,
		log:          log.With().Str("handler", "watchlist").Logger(),
	}
}

type entryPayload struct {
	UserID string `json:"user_id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
}

// HandleGetWatchlist returns a user's watchlist, newest first
// GET /api/watchlist/{userID}
func (h *Handlers) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entries, err := h.repo.GetForUser(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get watchlist")
		http.Error(w, "Failed to get watchlist", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// HandleAdd adds a symbol to a user's watchlist
// POST /api/watchlist/add
func (h *Handlers) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var payload entryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.UserID == "" || payload.Symbol == "" {
		http.Error(w, "user_id and symbol are required", http.StatusBadRequest)
		return
	}

	entry, err := h.repo.Add(payload.UserID, payload.Symbol, payload.Name)
	if errors.Is(err, ErrDuplicateSymbol) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", payload.UserID).Msg("Failed to add watchlist entry")
		http.Error(w, "Failed to add watchlist entry", http.StatusInternalServerError)
		return
	}

	h.eventManager.Emit(events.WatchlistUpdated, "watchlist", map[string]interface{}{
		"user_id": payload.UserID,
		"symbol":  entry.Symbol,
		"action":  "added",
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(entry)
}

// HandleRemove removes a symbol from a user's watchlist
// DELETE /api/watchlist/remove
func (h *Handlers) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var payload entryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.UserID == "" || payload.Symbol == "" {
		http.Error(w, "user_id and symbol are required", http.StatusBadRequest)
		return
	}

	removed, err := h.repo.Remove(payload.UserID, payload.Symbol)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", payload.UserID).Msg("Failed to remove watchlist entry")
		http.Error(w, "Failed to remove watchlist entry", http.StatusInternalServerError)
		return
	}
	if removed == 0 {
		http.Error(w, "symbol not in watchlist", http.StatusNotFound)
		return
	}

	h.eventManager.Emit(events.WatchlistUpdated, "watchlist", map[string]interface{}{
		"user_id": payload.UserID,
		"symbol":  payload.Symbol,
		"action":  "removed",
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "symbol removed from watchlist"})
}

// HandleCheck reports whether a symbol is on a user's watchlist
// GET /api/watchlist/{userID}/check/{symbol}
func (h *Handlers) HandleCheck(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	symbol := chi.URLParam(r, "symbol")

	inWatchlist, err := h.repo.Contains(userID, symbol)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to check watchlist")
		http.Error(w, "Failed to check watchlist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"in_watchlist": inWatchlist})
}

// HandleGetSymbols returns only the symbols on a user's watchlist
// GET /api/watchlist/{userID}/symbols
func (h *Handlers) HandleGetSymbols(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	symbols, err := h.repo.SymbolsForUser(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get watchlist symbols")
		http.Error(w, "Failed to get watchlist symbols", http.StatusInternalServerError)
		return
	}

	if symbols == nil {
		symbols = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(symbols)
}
