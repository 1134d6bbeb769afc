package valuation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stockpedia/paper-trader/internal/modules/ledger"
)

// Handlers contains HTTP handlers for portfolio reads
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new valuation handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "valuation").Logger(),
	}
}

// HandleGetPortfolio returns balance, positions and valuation for a user
// GET /api/portfolio/{userID}
func (h *Handlers) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "userID is required", http.StatusBadRequest)
		return
	}

	view, err := h.service.Portfolio(userID)
	if err != nil {
		status := ledger.StatusForError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to build portfolio view")
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view) // Ignore encode error - already committed response
}
