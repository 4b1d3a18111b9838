package trading

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"swingtrader/internal/domain"
	"swingtrader/internal/events"
	"swingtrader/internal/portfolio"
)

// Controller orchestrates trading cycles: the morning full cycle
// (liquidate, size, filter, buy) and the evening liquidation-only cycle.
// Scheduled and API-triggered invocations serialize on a cycle-level
// mutex; the ledger lock itself is only held per mutation, never across
// network calls.
type Controller struct {
	ledger   *portfolio.Ledger
	executor *Executor
	sizer    *Sizer
	events   *events.Manager
	pacing   time.Duration
	log      zerolog.Logger

	cycleMu     sync.Mutex
	autoTrading atomic.Bool
}

// NewController creates a trading session controller
func NewController(
	ledger *portfolio.Ledger,
	executor *Executor,
	sizer *Sizer,
	eventManager *events.Manager,
	pacing time.Duration,
	autoTrading bool,
	log zerolog.Logger,
) *Controller {
	c := &Controller{
		ledger:   ledger,
		executor: executor,
		sizer:    sizer,
		events:   eventManager,
		pacing:   pacing,
		log:      log.With().Str("service", "session").Logger(),
	}
	c.autoTrading.Store(autoTrading)
	return c
}

// AutoTradingEnabled reports whether scheduled cycles may trade
func (c *Controller) AutoTradingEnabled() bool {
	return c.autoTrading.Load()
}

// SetAutoTrading toggles scheduled trading
func (c *Controller) SetAutoTrading(enabled bool) {
	c.autoTrading.Store(enabled)
	c.log.Info().Bool("enabled", enabled).Msg("Auto-trading toggled")
}

// Snapshot returns the current portfolio state without re-pricing
func (c *Controller) Snapshot() domain.PortfolioSnapshot {
	return c.ledger.Snapshot()
}

// RunTradingCycle runs a full cycle against the given pre-ranked
// candidates: mark-to-market, liquidate everything, size the new
// allocation, filter for bullish sentiment, then buy each survivor.
// A single ticker's failure is logged and skipped; the cycle continues.
// Returns the successful buy trades; the error is non-nil only on
// cancellation.
func (c *Controller) RunTradingCycle(ctx context.Context, candidates []domain.Candidate) ([]domain.Trade, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	c.log.Info().Int("candidates", len(candidates)).Msg("Starting trading cycle")

	c.ledger.MarkToMarket(ctx)

	sold := c.liquidate(ctx)
	if len(sold) > 0 {
		c.log.Info().Int("closed", len(sold)).Msg("Existing positions liquidated")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Allocation is split across the full candidate slate; the sentiment
	// filter then decides which of those slots actually get filled.
	target := c.sizer.TargetCount(len(candidates))
	eligible := filterBullish(candidates)
	if target == 0 || len(eligible) == 0 {
		c.log.Info().Msg("No bullish candidates, nothing to buy")
		return []domain.Trade{}, nil
	}
	if len(eligible) > target {
		eligible = eligible[:target]
	}

	snap := c.ledger.Snapshot()
	size := c.sizer.PositionSize(snap.Cash, snap.TotalValue, target)
	if size.Sign() <= 0 {
		c.log.Warn().Str("cash", snap.Cash.String()).Msg("Allocation too small, nothing to buy")
		return []domain.Trade{}, nil
	}

	c.log.Info().
		Str("cash", snap.Cash.String()).
		Int("positions", len(eligible)).
		Str("per_position", size.String()).
		Msg("Opening positions")

	bought := make([]domain.Trade, 0, len(eligible))
	for i, cand := range eligible {
		if err := ctx.Err(); err != nil {
			c.log.Warn().Err(err).Msg("Trading cycle cancelled")
			return bought, err
		}

		trade, err := c.executor.Buy(ctx, cand.Ticker, size)
		if err != nil {
			c.log.Warn().Err(err).
				Str("ticker", cand.Ticker).
				Float64("score", cand.Score).
				Msg("Buy failed, skipping ticker")
			if c.events != nil {
				c.events.EmitError("session", err, map[string]interface{}{
					"operation": "buy",
					"ticker":    cand.Ticker,
				})
			}
			continue
		}
		bought = append(bought, trade)

		if i < len(eligible)-1 {
			if err := c.pace(ctx); err != nil {
				return bought, err
			}
		}
	}

	c.ledger.MarkToMarket(ctx)

	c.log.Info().Int("opened", len(bought)).Msg("Trading cycle complete")
	if c.events != nil {
		c.events.Emit(events.MorningTrades, "session", map[string]interface{}{
			"opened": len(bought),
			"closed": len(sold),
		})
	}

	return bought, nil
}

// LiquidateAll sells every open position. Per-ticker failures are logged
// and skipped. Liquidating an empty portfolio is a no-op returning an
// empty batch.
func (c *Controller) LiquidateAll(ctx context.Context) ([]domain.Trade, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	sold := c.liquidate(ctx)

	c.log.Info().Int("closed", len(sold)).Msg("Liquidation complete")
	if c.events != nil {
		c.events.Emit(events.EveningTrades, "session", map[string]interface{}{
			"closed": len(sold),
		})
	}

	return sold, ctx.Err()
}

// RefreshMarkToMarket refreshes position values and publishes the
// resulting snapshot
func (c *Controller) RefreshMarkToMarket(ctx context.Context) domain.PortfolioSnapshot {
	c.ledger.MarkToMarket(ctx)
	snap := c.ledger.Snapshot()

	if c.events != nil {
		c.events.Emit(events.PortfolioUpdate, "session", map[string]interface{}{
			"total_value": snap.TotalValue.String(),
			"cash":        snap.Cash.String(),
			"positions":   len(snap.Positions),
		})
	}

	return snap
}

// liquidate sells all open positions in deterministic ticker order.
// Callers hold cycleMu.
func (c *Controller) liquidate(ctx context.Context) []domain.Trade {
	tickers := c.ledger.Tickers()
	sold := make([]domain.Trade, 0, len(tickers))

	for i, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}

		trade, err := c.executor.Sell(ctx, ticker)
		if err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Sell failed, skipping ticker")
			if c.events != nil {
				c.events.EmitError("session", err, map[string]interface{}{
					"operation": "sell",
					"ticker":    ticker,
				})
			}
			continue
		}
		sold = append(sold, trade)

		if i < len(tickers)-1 {
			if err := c.pace(ctx); err != nil {
				break
			}
		}
	}

	return sold
}

// pace waits the configured inter-trade delay, preempted by cancellation
func (c *Controller) pace(ctx context.Context) error {
	if c.pacing <= 0 {
		return nil
	}
	select {
	case <-time.After(c.pacing):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// filterBullish keeps candidates with positive sentiment, preserving the
// caller-provided (descending score) order
func filterBullish(candidates []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Ticker == "" || cand.Score <= 0 {
			continue
		}
		out = append(out, cand)
	}
	return out
}
