package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"swingtrader/internal/portfolio"
	"swingtrader/internal/trading"
)

// PortfolioRefreshJob re-prices open positions on a short interval and
// records today's point on the persisted equity curve.
type PortfolioRefreshJob struct {
	controller *trading.Controller
	snapshots  *portfolio.SnapshotRepository
	trades     *trading.TradeRepository
	loc        *time.Location
	timeout    time.Duration
	log        zerolog.Logger
}

// NewPortfolioRefreshJob creates a new portfolio refresh job
func NewPortfolioRefreshJob(
	controller *trading.Controller,
	snapshots *portfolio.SnapshotRepository,
	trades *trading.TradeRepository,
	loc *time.Location,
	timeout time.Duration,
	log zerolog.Logger,
) *PortfolioRefreshJob {
	return &PortfolioRefreshJob{
		controller: controller,
		snapshots:  snapshots,
		trades:     trades,
		loc:        loc,
		timeout:    timeout,
		log:        log.With().Str("job", "portfolio_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PortfolioRefreshJob) Name() string {
	return "portfolio_refresh"
}

// Run marks the portfolio to market and upserts today's snapshot row
func (j *PortfolioRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	snap := j.controller.RefreshMarkToMarket(ctx)

	daily := portfolio.DailySnapshot{
		Date:        time.Now().In(j.loc).Format("2006-01-02"),
		TotalValue:  snap.TotalValue,
		Cash:        snap.Cash,
		RealizedPnL: snap.TotalPnL,
	}
	if err := j.snapshots.Upsert(daily); err != nil {
		return fmt.Errorf("failed to persist daily snapshot: %w", err)
	}

	tradedToday, err := j.trades.CountToday(j.loc)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to count today's trades")
	}

	j.log.Debug().
		Str("total_value", snap.TotalValue.String()).
		Int("positions", len(snap.Positions)).
		Int("trades_today", tradedToday).
		Msg("Portfolio refreshed")

	return nil
}
