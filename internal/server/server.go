package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/stockpedia/paper-trader/internal/config"
	"github.com/stockpedia/paper-trader/internal/modules/ledger"
	"github.com/stockpedia/paper-trader/internal/modules/quotes"
	"github.com/stockpedia/paper-trader/internal/modules/trading"
	"github.com/stockpedia/paper-trader/internal/modules/valuation"
	"github.com/stockpedia/paper-trader/internal/modules/watchlist"
)

// Config holds server configuration
type Config struct {
	Port    int
	Log     zerolog.Logger
	Config  *config.Config
	DevMode bool

	LedgerHandlers    *ledger.Handlers
	ValuationHandlers *valuation.Handlers
	TradingHandlers   *trading.Handlers
	WatchlistHandlers *watchlist.Handlers
	QuoteHandlers     *quotes.Handlers
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/portfolio", func(r chi.Router) {
			r.Post("/buy", cfg.LedgerHandlers.HandleBuy)
			r.Post("/sell", cfg.LedgerHandlers.HandleSell)
			r.Get("/{userID}", cfg.ValuationHandlers.HandleGetPortfolio)
		})

		r.Route("/trades", func(r chi.Router) {
			r.Get("/{userID}", cfg.TradingHandlers.HandleGetTrades)
		})

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/live", cfg.QuoteHandlers.HandleLiveQuotes)
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Post("/add", cfg.WatchlistHandlers.HandleAdd)
			r.Delete("/remove", cfg.WatchlistHandlers.HandleRemove)
			r.Get("/{userID}", cfg.WatchlistHandlers.HandleGetWatchlist)
			r.Get("/{userID}/check/{symbol}", cfg.WatchlistHandlers.HandleCheck)
			r.Get("/{userID}/symbols", cfg.WatchlistHandlers.HandleGetSymbols)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
