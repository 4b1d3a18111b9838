package portfolio

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
	"swingtrader/internal/market"
)

// RealizedSource reports realized P&L from recorded SELL trades. The trade
// log implements it; the ledger uses it to derive the daily P&L figure.
type RealizedSource interface {
	RealizedSince(t time.Time) decimal.Decimal
}

// Ledger is the single source of truth for money state: cash, open
// positions and realized P&L. All mutations happen under one mutex; the
// order executor is the only writer of cash and positions, mark-to-market
// the only writer of current prices.
type Ledger struct {
	mu        sync.RWMutex
	cash      decimal.Decimal
	positions map[string]domain.Position
	totalPnL  decimal.Decimal

	quotes   market.QuoteSource
	realized RealizedSource
	loc      *time.Location
	log      zerolog.Logger
}

// NewLedger creates a ledger with the given starting cash balance.
// The quote source is used by mark-to-market only; it is deliberately the
// fallible feed so that an outage leaves last known prices in place.
func NewLedger(
	startingCash decimal.Decimal,
	quotes market.QuoteSource,
	realized RealizedSource,
	loc *time.Location,
	log zerolog.Logger,
) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{
		cash:      startingCash,
		positions: make(map[string]domain.Position),
		quotes:    quotes,
		realized:  realized,
		loc:       loc,
		log:       log.With().Str("component", "ledger").Logger(),
	}
}

// Cash returns the current cash balance
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// Tickers returns the held tickers in lexicographic order
func (l *Ledger) Tickers() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tickersLocked()
}

func (l *Ledger) tickersLocked() []string {
	tickers := make([]string, 0, len(l.positions))
	for t := range l.positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// ApplyBuy atomically executes a buy against the ledger. The template trade
// carries ID, ticker, side, shares, price and timestamp; the ledger fills
// the total value. persist is called inside the critical section before any
// state changes, so a persistence failure aborts the whole operation and no
// partial trade is ever recorded.
func (l *Ledger) ApplyBuy(tmpl domain.Trade, persist func(domain.Trade) error) (domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.positions[tmpl.Ticker]; held {
		return domain.Trade{}, domain.ErrAlreadyHeld
	}

	cost := tmpl.Price.Mul(decimal.NewFromInt(tmpl.Shares))
	if cost.GreaterThan(l.cash) {
		return domain.Trade{}, domain.ErrInsufficientCash
	}

	tmpl.TotalValue = cost
	if persist != nil {
		if err := persist(tmpl); err != nil {
			return domain.Trade{}, err
		}
	}

	l.cash = l.cash.Sub(cost)
	l.positions[tmpl.Ticker] = domain.Position{
		Ticker:       tmpl.Ticker,
		Shares:       tmpl.Shares,
		AvgPrice:     tmpl.Price,
		CurrentPrice: tmpl.Price,
	}

	return tmpl, nil
}

// ApplySell atomically closes the full position for the template's ticker
// at the given price. The ledger fills shares, total value and realized
// P&L from the held position. Same all-or-nothing contract as ApplyBuy.
func (l *Ledger) ApplySell(tmpl domain.Trade, price decimal.Decimal, persist func(domain.Trade) error) (domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, held := l.positions[tmpl.Ticker]
	if !held {
		return domain.Trade{}, domain.ErrNoPosition
	}

	total := price.Mul(decimal.NewFromInt(pos.Shares))
	pnl := total.Sub(pos.CostBasis())

	tmpl.Shares = pos.Shares
	tmpl.Price = price
	tmpl.TotalValue = total
	tmpl.PnL = &pnl

	if persist != nil {
		if err := persist(tmpl); err != nil {
			return domain.Trade{}, err
		}
	}

	l.cash = l.cash.Add(total)
	delete(l.positions, tmpl.Ticker)
	l.totalPnL = l.totalPnL.Add(pnl)

	return tmpl, nil
}

// MarkToMarket refreshes current prices and position values. Quotes are
// fetched before the write lock is taken; a failed quote for one ticker is
// logged and skipped so its position keeps the last known price.
func (l *Ledger) MarkToMarket(ctx context.Context) {
	tickers := l.Tickers()
	if len(tickers) == 0 {
		return
	}

	prices := make(map[string]decimal.Decimal, len(tickers))
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			l.log.Warn().Err(err).Msg("Mark-to-market cancelled")
			break
		}
		if l.quotes == nil {
			break
		}
		price, err := l.quotes.Quote(ctx, ticker)
		if err != nil || price.Sign() <= 0 {
			l.log.Warn().Err(err).Str("ticker", ticker).Msg("Skipping ticker in mark-to-market")
			continue
		}
		prices[ticker] = price
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for ticker, price := range prices {
		pos, held := l.positions[ticker]
		if !held {
			// Sold while quotes were in flight
			continue
		}
		pos.CurrentPrice = price
		l.positions[ticker] = pos
	}
}

// Snapshot returns a copy-on-read view of the portfolio. Concurrent
// mutation cannot invalidate it.
func (l *Ledger) Snapshot() domain.PortfolioSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make([]domain.Position, 0, len(l.positions))
	total := l.cash
	for _, ticker := range l.tickersLocked() {
		pos := l.positions[ticker]
		positions = append(positions, pos)
		total = total.Add(pos.TotalValue())
	}

	now := time.Now()
	daily := decimal.Zero
	if l.realized != nil {
		daily = l.realized.RealizedSince(startOfDay(now, l.loc))
	}

	return domain.PortfolioSnapshot{
		Cash:       l.cash,
		Positions:  positions,
		TotalValue: total,
		DailyPnL:   daily,
		TotalPnL:   l.totalPnL,
		Timestamp:  now,
	}
}

// Restore seeds cash and cumulative realized P&L from persisted trade
// history. Called once at startup before any trading; positions are
// expected flat overnight.
func (l *Ledger) Restore(cash, realizedPnL decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = cash
	l.totalPnL = realizedPnL
	l.log.Info().
		Str("cash", cash.String()).
		Str("realized_pnl", realizedPnL.String()).
		Msg("Ledger restored from trade history")
}

// Reset clears all positions and restores the starting cash balance. Used
// only on explicit data clear.
func (l *Ledger) Reset(startingCash decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = startingCash
	l.positions = make(map[string]domain.Position)
	l.totalPnL = decimal.Zero
	l.log.Info().Str("cash", startingCash.String()).Msg("Ledger reset")
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
