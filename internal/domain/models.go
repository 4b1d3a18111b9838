package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide represents the trade direction (BUY or SELL)
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// IsValid checks if the trade side is valid
func (ts TradeSide) IsValid() bool {
	return ts == TradeSideBuy || ts == TradeSideSell
}

// TradeSideFromString creates TradeSide from string (case-insensitive)
func TradeSideFromString(value string) (TradeSide, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY":
		return TradeSideBuy, nil
	case "SELL":
		return TradeSideSell, nil
	default:
		return "", fmt.Errorf("invalid trade side: %q", value)
	}
}

// TradeStatusFilled marks a trade that completed against the ledger.
const TradeStatusFilled = "FILLED"

// Trade is an immutable record of an executed order. SELL trades carry the
// realized P&L; BUY trades leave PnL nil.
type Trade struct {
	ID         string           `json:"id"`
	Ticker     string           `json:"ticker"`
	Side       TradeSide        `json:"side"`
	Shares     int64            `json:"shares"`
	Price      decimal.Decimal  `json:"price"`
	TotalValue decimal.Decimal  `json:"total_value"`
	PnL        *decimal.Decimal `json:"pnl,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Status     string           `json:"status"`
}

// Validate validates trade data and normalizes the ticker
func (t *Trade) Validate() error {
	if strings.TrimSpace(t.Ticker) == "" {
		return fmt.Errorf("ticker cannot be empty")
	}
	if !t.Side.IsValid() {
		return fmt.Errorf("invalid trade side: %q", t.Side)
	}
	if t.Shares <= 0 {
		return fmt.Errorf("shares must be positive")
	}
	if t.Price.Sign() <= 0 {
		return fmt.Errorf("price must be positive")
	}

	t.Ticker = strings.ToUpper(strings.TrimSpace(t.Ticker))
	return nil
}

// Position represents the currently held shares of a single ticker.
// A ticker appears at most once in a portfolio; sells always close the
// whole position.
type Position struct {
	Ticker       string          `json:"ticker"`
	Shares       int64           `json:"shares"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// TotalValue returns shares x current price
func (p Position) TotalValue() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Shares))
}

// CostBasis returns shares x average price
func (p Position) CostBasis() decimal.Decimal {
	return p.AvgPrice.Mul(decimal.NewFromInt(p.Shares))
}

// UnrealizedPnL returns the mark-to-market gain/loss of the open position
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.TotalValue().Sub(p.CostBasis())
}

// Candidate is a sentiment-ranked ticker produced by the external analyzer.
// Positive scores are bullish; only those are eligible for buying.
type Candidate struct {
	Ticker string  `json:"ticker"`
	Score  float64 `json:"score"`
}

// PortfolioSnapshot is an immutable copy of portfolio state for reporting.
// Positions are sorted by ticker.
type PortfolioSnapshot struct {
	Cash       decimal.Decimal `json:"cash"`
	Positions  []Position      `json:"positions"`
	TotalValue decimal.Decimal `json:"total_value"`
	DailyPnL   decimal.Decimal `json:"daily_pnl"`
	TotalPnL   decimal.Decimal `json:"total_pnl"`
	Timestamp  time.Time       `json:"timestamp"`
}
