package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"swingtrader/internal/trading"
)

// EveningLiquidationJob closes every open position before market close
type EveningLiquidationJob struct {
	controller *trading.Controller
	timeout    time.Duration
	log        zerolog.Logger
}

// NewEveningLiquidationJob creates a new evening liquidation job
func NewEveningLiquidationJob(controller *trading.Controller, timeout time.Duration, log zerolog.Logger) *EveningLiquidationJob {
	return &EveningLiquidationJob{
		controller: controller,
		timeout:    timeout,
		log:        log.With().Str("job", "evening_liquidation").Logger(),
	}
}

// Name returns the job name
func (j *EveningLiquidationJob) Name() string {
	return "evening_liquidation"
}

// Run liquidates all open positions
func (j *EveningLiquidationJob) Run() error {
	if !j.controller.AutoTradingEnabled() {
		j.log.Info().Msg("Auto-trading disabled, skipping evening liquidation")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	trades, err := j.controller.LiquidateAll(ctx)
	if err != nil {
		return fmt.Errorf("evening liquidation failed: %w", err)
	}

	j.log.Info().
		Int("positions_closed", len(trades)).
		Msg("Evening liquidation completed")

	return nil
}
