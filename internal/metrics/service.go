package metrics

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
	"swingtrader/internal/portfolio"
	"swingtrader/internal/trading"
	"swingtrader/pkg/formulas"
)

// Performance summarizes trading results
type Performance struct {
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	WinRate       float64         `json:"win_rate"` // percent of closed trades with positive P&L
	DailyPnL      decimal.Decimal `json:"daily_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	TotalReturn   float64         `json:"total_return"` // percent vs starting cash
	MaxDrawdown   float64         `json:"max_drawdown"` // fraction of peak equity
	Volatility    float64         `json:"volatility"`   // annualized, from daily equity returns
	SharpeRatio   float64         `json:"sharpe_ratio"`
}

// EquitySource provides the persisted daily equity curve
type EquitySource interface {
	EquityCurve() ([]float64, error)
}

// Service computes performance metrics from the trade log, the live
// portfolio snapshot, and the persisted equity curve.
type Service struct {
	trades       *trading.TradeLog
	ledger       *portfolio.Ledger
	equity       EquitySource
	startingCash decimal.Decimal
	log          zerolog.Logger
}

// NewService creates a metrics service. equity may be nil (no curve stats).
func NewService(
	trades *trading.TradeLog,
	ledger *portfolio.Ledger,
	equity EquitySource,
	startingCash decimal.Decimal,
	log zerolog.Logger,
) *Service {
	return &Service{
		trades:       trades,
		ledger:       ledger,
		equity:       equity,
		startingCash: startingCash,
		log:          log.With().Str("service", "metrics").Logger(),
	}
}

// Compute returns the current performance metrics
func (s *Service) Compute() Performance {
	all := s.trades.All()
	snap := s.ledger.Snapshot()

	var closed, winning int
	for _, trade := range all {
		if trade.Side != domain.TradeSideSell || trade.PnL == nil {
			continue
		}
		closed++
		if trade.PnL.Sign() > 0 {
			winning++
		}
	}

	winRate := 0.0
	if closed > 0 {
		winRate = float64(winning) / float64(closed) * 100
	}

	totalReturn := 0.0
	if s.startingCash.Sign() > 0 {
		totalReturn, _ = snap.TotalValue.Sub(s.startingCash).
			Div(s.startingCash).
			Mul(decimal.NewFromInt(100)).
			Float64()
	}

	perf := Performance{
		TotalTrades:   len(all),
		WinningTrades: winning,
		WinRate:       winRate,
		DailyPnL:      snap.DailyPnL,
		TotalPnL:      snap.TotalPnL,
		TotalReturn:   totalReturn,
	}

	if s.equity != nil {
		curve, err := s.equity.EquityCurve()
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to load equity curve, skipping curve stats")
			return perf
		}
		returns := formulas.CalculateReturns(curve)
		perf.MaxDrawdown = formulas.CalculateMaxDrawdown(curve)
		perf.Volatility = formulas.AnnualizedVolatility(returns)
		perf.SharpeRatio = formulas.SharpeRatio(returns)
	}

	return perf
}
