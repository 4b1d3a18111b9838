package trading

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
)

// DefaultRecentLimit bounds Recent queries when the caller passes no limit.
const DefaultRecentLimit = 50

// TradeLog is the append-only, time-ordered record of executed trades.
// Appends are atomic; readers always get copies and never observe a
// partially written trade.
type TradeLog struct {
	mu     sync.RWMutex
	trades []domain.Trade
}

// NewTradeLog creates an empty trade log
func NewTradeLog() *TradeLog {
	return &TradeLog{}
}

// Append records a trade
func (tl *TradeLog) Append(trade domain.Trade) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.trades = append(tl.trades, trade)
}

// Recent returns up to limit trades sorted by timestamp descending, most
// recent first. A non-positive limit means DefaultRecentLimit.
func (tl *TradeLog) Recent(limit int) []domain.Trade {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	tl.mu.RLock()
	out := make([]domain.Trade, len(tl.trades))
	copy(out, tl.trades)
	tl.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// All returns a copy of every recorded trade in append order
func (tl *TradeLog) All() []domain.Trade {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	out := make([]domain.Trade, len(tl.trades))
	copy(out, tl.trades)
	return out
}

// Len returns the number of recorded trades
func (tl *TradeLog) Len() int {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return len(tl.trades)
}

// RealizedSince sums the realized P&L of SELL trades executed at or after t
func (tl *TradeLog) RealizedSince(t time.Time) decimal.Decimal {
	tl.mu.RLock()
	defer tl.mu.RUnlock()

	sum := decimal.Zero
	for _, trade := range tl.trades {
		if trade.Side != domain.TradeSideSell || trade.PnL == nil {
			continue
		}
		if trade.Timestamp.Before(t) {
			continue
		}
		sum = sum.Add(*trade.PnL)
	}
	return sum
}
