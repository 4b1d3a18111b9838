package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swingtrader/internal/clients/sentiment"
	"swingtrader/internal/config"
	"swingtrader/internal/database"
	"swingtrader/internal/domain"
	"swingtrader/internal/events"
	"swingtrader/internal/jobs"
	"swingtrader/internal/market"
	"swingtrader/internal/metrics"
	"swingtrader/internal/portfolio"
	"swingtrader/internal/scheduler"
	"swingtrader/internal/server"
	"swingtrader/internal/trading"
	"swingtrader/pkg/logger"
)

const jobTimeout = 5 * time.Minute

func main() {
	// Load configuration first so the log level is honored
	cfg, err := config.Load()
	if err != nil {
		bootstrapLog := logger.New(logger.Config{Level: "info", Pretty: true})
		bootstrapLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting swing trader")

	loc := cfg.Location()

	// Database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Repositories and event bus
	tradeRepo := trading.NewTradeRepository(db.Conn(), log)
	snapshotRepo := portfolio.NewSnapshotRepository(db.Conn(), log)
	eventManager := events.NewManager(log)

	// Trade log, rehydrated from persisted history
	tradeLog := trading.NewTradeLog()
	history, err := tradeRepo.GetAll()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load trade history")
	}
	cash := cfg.StartingCash
	realized := decimal.Zero
	for _, trade := range history {
		tradeLog.Append(trade)
		if trade.Side == domain.TradeSideSell && trade.PnL != nil {
			realized = realized.Add(*trade.PnL)
		}
	}
	cash = cash.Add(realized)
	log.Info().
		Int("trades", len(history)).
		Str("cash", cash.String()).
		Msg("Trade history loaded")
	if last := len(history) - 1; last >= 0 && history[last].Side == domain.TradeSideBuy {
		// Restored cash assumes a flat book; a trailing BUY means the
		// process died with a position open and its debit is not restored.
		log.Warn().
			Str("ticker", history[last].Ticker).
			Msg("Last persisted trade is a BUY; restored cash does not reflect the open position")
	}

	// Market data
	marketClient := market.NewClient(market.ClientConfig{
		QuoteURL: cfg.QuoteServiceURL,
		QuoteKey: cfg.QuoteAPIKey,
		NewsURL:  cfg.NewsServiceURL,
		NewsKey:  cfg.NewsAPIKey,
		Timeout:  cfg.QuoteTimeout,
		Retries:  cfg.QuoteRetries,
	}, log)
	oracle := market.NewOracle(marketClient, log)
	newsFeed := market.NewNewsFeed(marketClient, log)
	clock := market.NewClock(loc)

	// Portfolio and trading engine
	ledger := portfolio.NewLedger(cfg.StartingCash, marketClient, tradeLog, loc, log)
	ledger.Restore(cash, realized)

	executor := trading.NewExecutor(ledger, oracle, tradeLog, tradeRepo, eventManager, log)
	sizer := trading.NewSizer(trading.SizerConfig{
		MaxPositions:    cfg.MaxPositions,
		MaxCashUsage:    cfg.MaxCashUsage,
		MaxRiskPerTrade: cfg.MaxRiskPerTrade,
	})
	controller := trading.NewController(ledger, executor, sizer, eventManager, cfg.TradePacing, cfg.AutoTrading, log)

	metricsService := metrics.NewService(tradeLog, ledger, snapshotRepo, cfg.StartingCash, log)
	ranker := sentiment.NewClient(cfg.SentimentServiceURL, cfg.QuoteTimeout, log)

	// Scheduler and jobs, evaluated in the exchange timezone
	sched := scheduler.New(loc, log)
	refresh := registerJobs(sched, controller, ranker, tradeRepo, snapshotRepo, cfg, loc, log)
	sched.Start()
	defer sched.Stop()

	// Prime the equity curve so reporting has a fresh point immediately
	if err := sched.RunNow(refresh); err != nil {
		log.Warn().Err(err).Msg("Initial portfolio refresh failed")
	}

	// HTTP server
	srv := server.New(server.Config{
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Log:        log,
		Controller: controller,
		Trades:     tradeLog,
		Metrics:    metricsService,
		Clock:      clock,
		News:       newsFeed,
		Events:     eventManager,
	})

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	controller *trading.Controller,
	ranker *sentiment.Client,
	trades *trading.TradeRepository,
	snapshots *portfolio.SnapshotRepository,
	cfg *config.Config,
	loc *time.Location,
	log zerolog.Logger,
) *jobs.PortfolioRefreshJob {
	morning := jobs.NewMorningCycleJob(controller, ranker, cfg.Universe, jobTimeout, log)
	if err := sched.AddJob(cfg.MorningSchedule, morning); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.MorningSchedule).Msg("Failed to register morning job")
	}

	evening := jobs.NewEveningLiquidationJob(controller, jobTimeout, log)
	if err := sched.AddJob(cfg.EveningSchedule, evening); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.EveningSchedule).Msg("Failed to register evening job")
	}

	refresh := jobs.NewPortfolioRefreshJob(controller, snapshots, trades, loc, jobTimeout, log)
	if err := sched.AddJob(cfg.RefreshSchedule, refresh); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.RefreshSchedule).Msg("Failed to register refresh job")
	}

	return refresh
}
