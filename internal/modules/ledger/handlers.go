package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// orderEngine is the surface handlers need from the engine
type orderEngine interface {
	Buy(ctx context.Context, req OrderRequest) (*OrderResult, error)
	Sell(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// Handlers contains HTTP handlers for order execution
type Handlers struct {
	engine orderEngine
	log    zerolog.Logger
}

// NewHandlers creates a new ledger handlers instance
func NewHandlers(engine orderEngine, log zerolog.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		log:    log.With().Str("handler", "ledger").Logger(),
	}
}

// orderPayload mirrors the original client contract: user_id comes from the
// authenticated upstream, never trusted as a raw client value here.
type orderPayload struct {
	UserID         string          `json:"user_id"`
	Symbol         string          `json:"symbol"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// HandleBuy executes a buy order
// POST /api/portfolio/buy
func (h *Handlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleOrder(w, r, h.engine.Buy)
}

// HandleSell executes a sell order
// POST /api/portfolio/sell
func (h *Handlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	h.handleOrder(w, r, h.engine.Sell)
}

func (h *Handlers) handleOrder(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, OrderRequest) (*OrderResult, error),
) {
	var payload orderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := apply(r.Context(), OrderRequest{
		UserID:         payload.UserID,
		Symbol:         payload.Symbol,
		Quantity:       payload.Quantity,
		Price:          payload.Price,
		IdempotencyKey: payload.IdempotencyKey,
	})
	if err != nil {
		status := StatusForError(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("user_id", payload.UserID).Msg("Order failed")
		} else {
			h.log.Info().Err(err).Str("user_id", payload.UserID).Msg("Order rejected")
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result) // Ignore encode error - already committed response
}

// StatusForError maps the ledger error taxonomy to HTTP status codes.
// Business rejections are 4xx, infrastructure failures 5xx.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientHoldings):
		return http.StatusBadRequest
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
