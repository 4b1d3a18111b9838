package trading

import (
	"github.com/shopspring/decimal"
)

// SizerConfig holds the position sizing policy
type SizerConfig struct {
	MaxPositions    int             // upper bound on positions per cycle
	MaxCashUsage    decimal.Decimal // fraction of available cash a cycle may deploy
	MaxRiskPerTrade decimal.Decimal // fraction of portfolio value per position
}

// Sizer computes the per-position dollar allocation for a trading cycle.
// The allocation times the target count never exceeds
// availableCash x MaxCashUsage.
type Sizer struct {
	cfg SizerConfig
}

// NewSizer creates a position sizer with the given policy
func NewSizer(cfg SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// TargetCount returns how many positions a cycle should open given the
// number of candidates
func (s *Sizer) TargetCount(candidateCount int) int {
	if candidateCount < s.cfg.MaxPositions {
		return candidateCount
	}
	return s.cfg.MaxPositions
}

// PositionSize returns the whole-dollar budget per position:
// floor(min(availableCash x maxCashUsage / targetCount,
// portfolioValue x maxRiskPerTrade)). Zero when targetCount < 1 or no
// cash is deployable.
func (s *Sizer) PositionSize(availableCash, portfolioValue decimal.Decimal, targetCount int) decimal.Decimal {
	if targetCount < 1 {
		return decimal.Zero
	}

	perPosition := availableCash.Mul(s.cfg.MaxCashUsage).Div(decimal.NewFromInt(int64(targetCount)))
	riskCap := portfolioValue.Mul(s.cfg.MaxRiskPerTrade)
	if riskCap.LessThan(perPosition) {
		perPosition = riskCap
	}

	size := perPosition.Floor()
	if size.Sign() < 0 {
		return decimal.Zero
	}
	return size
}
