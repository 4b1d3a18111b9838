package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
	"swingtrader/internal/events"
	"swingtrader/internal/portfolio"
)

// PriceOracle delivers a price for any ticker. It never fails; the market
// oracle degrades to synthetic prices on feed outages.
type PriceOracle interface {
	Quote(ctx context.Context, ticker string) decimal.Decimal
}

// TradePersister records a trade durably before the ledger acknowledges it
type TradePersister interface {
	Create(trade domain.Trade) error
}

// Executor turns buy/sell intents into ledger mutations plus immutable
// trade records. All money-safety checks live here and in the ledger's
// apply methods; quotes are fetched before the ledger lock is taken.
type Executor struct {
	ledger *portfolio.Ledger
	oracle PriceOracle
	trades *TradeLog
	repo   TradePersister
	events *events.Manager
	log    zerolog.Logger
}

// NewExecutor creates a new order executor. repo and eventManager may be
// nil (no persistence, no event fan-out).
func NewExecutor(
	ledger *portfolio.Ledger,
	oracle PriceOracle,
	trades *TradeLog,
	repo TradePersister,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		ledger: ledger,
		oracle: oracle,
		trades: trades,
		repo:   repo,
		events: eventManager,
		log:    log.With().Str("service", "executor").Logger(),
	}
}

// Buy purchases as many whole shares of ticker as the dollar budget allows.
// Fails with ErrInsufficientShares when the budget buys less than one
// share, ErrAlreadyHeld when a position is already open, and
// ErrInsufficientCash when the cost exceeds available cash at execution
// time. An error means nothing was mutated or recorded.
func (e *Executor) Buy(ctx context.Context, ticker string, budget decimal.Decimal) (domain.Trade, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return domain.Trade{}, fmt.Errorf("ticker cannot be empty")
	}
	if budget.Sign() <= 0 {
		return domain.Trade{}, fmt.Errorf("budget must be positive, got %s", budget)
	}

	price := e.oracle.Quote(ctx, ticker)
	shares := budget.Div(price).IntPart()
	if shares <= 0 {
		return domain.Trade{}, domain.ErrInsufficientShares
	}

	tmpl := domain.Trade{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		Side:      domain.TradeSideBuy,
		Shares:    shares,
		Price:     price,
		Timestamp: time.Now(),
		Status:    domain.TradeStatusFilled,
	}

	trade, err := e.ledger.ApplyBuy(tmpl, e.persist)
	if err != nil {
		return domain.Trade{}, err
	}

	e.record(trade)
	e.log.Info().
		Str("ticker", ticker).
		Int64("shares", trade.Shares).
		Str("price", trade.Price.String()).
		Msg("BUY executed")

	return trade, nil
}

// Sell liquidates the full held position for ticker at the current quote.
// Fails with ErrNoPosition when the ticker is not held; nothing is mutated
// on error.
func (e *Executor) Sell(ctx context.Context, ticker string) (domain.Trade, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return domain.Trade{}, fmt.Errorf("ticker cannot be empty")
	}

	price := e.oracle.Quote(ctx, ticker)

	tmpl := domain.Trade{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		Side:      domain.TradeSideSell,
		Timestamp: time.Now(),
		Status:    domain.TradeStatusFilled,
	}

	trade, err := e.ledger.ApplySell(tmpl, price, e.persist)
	if err != nil {
		return domain.Trade{}, err
	}

	e.record(trade)
	e.log.Info().
		Str("ticker", ticker).
		Int64("shares", trade.Shares).
		Str("price", trade.Price.String()).
		Str("pnl", trade.PnL.String()).
		Msg("SELL executed")

	return trade, nil
}

func (e *Executor) persist(trade domain.Trade) error {
	if e.repo == nil {
		return nil
	}
	if err := e.repo.Create(trade); err != nil {
		return fmt.Errorf("failed to persist trade: %w", err)
	}
	return nil
}

func (e *Executor) record(trade domain.Trade) {
	e.trades.Append(trade)

	if e.events == nil {
		return
	}
	data := map[string]interface{}{
		"ticker":      trade.Ticker,
		"side":        string(trade.Side),
		"shares":      trade.Shares,
		"price":       trade.Price.String(),
		"total_value": trade.TotalValue.String(),
	}
	if trade.PnL != nil {
		data["pnl"] = trade.PnL.String()
	}
	e.events.Emit(events.TradeExecuted, "trading", data)
}
