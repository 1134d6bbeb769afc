package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockpedia/paper-trader/internal/config"
	"github.com/stockpedia/paper-trader/internal/database"
	"github.com/stockpedia/paper-trader/internal/events"
	"github.com/stockpedia/paper-trader/internal/modules/ledger"
	"github.com/stockpedia/paper-trader/internal/modules/quotes"
	"github.com/stockpedia/paper-trader/internal/modules/trading"
	"github.com/stockpedia/paper-trader/internal/modules/valuation"
	"github.com/stockpedia/paper-trader/internal/modules/watchlist"
	"github.com/stockpedia/paper-trader/internal/scheduler"
	"github.com/stockpedia/paper-trader/internal/server"
	"github.com/stockpedia/paper-trader/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Logger not up yet; fall back to a default one for the fatal.
		fallback := logger.New(logger.Config{})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting StockPedia paper-trading server")

	startingBalance, err := decimal.NewFromString(cfg.StartingBalance)
	if err != nil || !startingBalance.IsPositive() {
		log.Fatal().Str("starting_balance", cfg.StartingBalance).Msg("Invalid starting balance")
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	eventManager := events.NewManager(log)

	// Repositories
	accountRepo := ledger.NewAccountRepository(db.Conn(), log)
	lotRepo := ledger.NewLotRepository(db.Conn(), log)
	tradeRepo := trading.NewTradeRepository(db.Conn(), log)
	watchlistRepo := watchlist.NewRepository(db.Conn(), log)

	// Ledger engine
	engine := ledger.NewEngine(ledger.EngineConfig{
		DB:              db,
		Accounts:        accountRepo,
		Lots:            lotRepo,
		Trades:          tradeRepo,
		EventManager:    eventManager,
		StartingBalance: startingBalance,
		TxTimeout:       cfg.TxTimeout,
		Log:             log,
	})

	// Quote gateway
	quoteClient := quotes.NewClient(cfg.QuoteFeedURL, log)
	quoteCache := quotes.NewCache(cfg.QuoteStaleAfter)

	// Valuation
	valuationService := valuation.NewService(accountRepo, lotRepo, quoteCache, log)

	// Initialize scheduler with the quote refresh job
	sched := scheduler.New(log)
	refreshJob := quotes.NewRefreshJob(
		quoteClient,
		quoteCache,
		[]quotes.SymbolSource{lotRepo, watchlistRepo},
		eventManager,
		log,
	)
	if err := sched.AddJob(cfg.QuoteRefresh, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register quote refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// Warm the cache before serving traffic; failures are non-fatal.
	if err := sched.RunNow(refreshJob); err != nil {
		log.Warn().Err(err).Msg("Initial quote refresh failed")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:              cfg.Port,
		Log:               log,
		Config:            cfg,
		DevMode:           cfg.DevMode,
		LedgerHandlers:    ledger.NewHandlers(engine, log),
		ValuationHandlers: valuation.NewHandlers(valuationService, log),
		TradingHandlers:   trading.NewHandlers(tradeRepo, log),
		WatchlistHandlers: watchlist.NewHandlers(watchlistRepo, eventManager, log),
		QuoteHandlers:     quotes.NewHandlers(quoteCache, log),
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
