package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"swingtrader/internal/clients/sentiment"
	"swingtrader/internal/trading"
)

// MorningCycleJob ranks the configured universe and runs the full
// trading cycle at market open.
type MorningCycleJob struct {
	controller *trading.Controller
	ranker     *sentiment.Client
	universe   []string
	timeout    time.Duration
	log        zerolog.Logger
}

// NewMorningCycleJob creates a new morning cycle job
func NewMorningCycleJob(
	controller *trading.Controller,
	ranker *sentiment.Client,
	universe []string,
	timeout time.Duration,
	log zerolog.Logger,
) *MorningCycleJob {
	return &MorningCycleJob{
		controller: controller,
		ranker:     ranker,
		universe:   universe,
		timeout:    timeout,
		log:        log.With().Str("job", "morning_cycle").Logger(),
	}
}

// Name returns the job name
func (j *MorningCycleJob) Name() string {
	return "morning_cycle"
}

// Run executes the morning trading cycle
func (j *MorningCycleJob) Run() error {
	if !j.controller.AutoTradingEnabled() {
		j.log.Info().Msg("Auto-trading disabled, skipping morning cycle")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	candidates, err := j.ranker.Rank(ctx, j.universe)
	if err != nil {
		return fmt.Errorf("failed to rank universe: %w", err)
	}

	trades, err := j.controller.RunTradingCycle(ctx, candidates)
	if err != nil {
		return fmt.Errorf("morning cycle failed: %w", err)
	}

	j.log.Info().
		Int("candidates", len(candidates)).
		Int("trades", len(trades)).
		Msg("Morning cycle completed")

	return nil
}
