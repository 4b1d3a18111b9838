package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingtrader/internal/domain"
	"swingtrader/internal/events"
	"swingtrader/internal/portfolio"
)

func newTestController(cash string, prices map[string]decimal.Decimal) (*Controller, *portfolio.Ledger, *TradeLog) {
	tradeLog := NewTradeLog()
	ledger := portfolio.NewLedger(dec(cash), nil, tradeLog, time.UTC, zerolog.Nop())
	executor := NewExecutor(ledger, &stubOracle{prices: prices}, tradeLog, nil, nil, zerolog.Nop())
	sizer := defaultSizer()
	controller := NewController(ledger, executor, sizer, nil, 0, true, zerolog.Nop())
	return controller, ledger, tradeLog
}

func TestController_RunTradingCycle_BuysOnlyBullishCandidates(t *testing.T) {
	controller, ledger, _ := newTestController("100000", map[string]decimal.Decimal{
		"AAPL": dec("150"),
		"TSLA": dec("200"),
		"GME":  dec("20"),
	})

	candidates := []domain.Candidate{
		{Ticker: "AAPL", Score: 8},
		{Ticker: "TSLA", Score: 5},
		{Ticker: "GME", Score: -3},
	}

	trades, err := controller.RunTradingCycle(context.Background(), candidates)
	require.NoError(t, err)

	require.Len(t, trades, 2, "bearish GME must be excluded")
	assert.Equal(t, "AAPL", trades[0].Ticker)
	assert.Equal(t, "TSLA", trades[1].Ticker)

	// Per-position budget over the full 3-candidate slate:
	// min(100000*0.8/3, 100000*0.1) = 10000
	assert.Equal(t, int64(66), trades[0].Shares)
	assert.Equal(t, int64(50), trades[1].Shares)

	assert.Equal(t, []string{"AAPL", "TSLA"}, ledger.Tickers())
	assert.True(t, ledger.Cash().Sign() > 0)
}

func TestController_RunTradingCycle_SizesOverFullCandidateSlate(t *testing.T) {
	// A mostly-bearish slate must not concentrate the cash budget into
	// the few bullish names: the per-position allocation is computed
	// from the full candidate count, not the post-filter survivors.
	prices := map[string]decimal.Decimal{"AAPL": dec("100"), "TSLA": dec("100")}
	candidates := make([]domain.Candidate, 0, 10)
	candidates = append(candidates,
		domain.Candidate{Ticker: "AAPL", Score: 7},
		domain.Candidate{Ticker: "TSLA", Score: 3},
	)
	for _, ticker := range []string{"GME", "AMC", "BBBY", "NOK", "BB", "PLTR", "WISH", "CLOV"} {
		candidates = append(candidates, domain.Candidate{Ticker: ticker, Score: -1})
	}

	controller, ledger, _ := newTestController("100000", prices)

	trades, err := controller.RunTradingCycle(context.Background(), candidates)
	require.NoError(t, err)

	require.Len(t, trades, 2)
	// min(100000*0.8/10, 100000*0.1) = 8000 per position, 80 shares at 100
	assert.Equal(t, int64(80), trades[0].Shares)
	assert.Equal(t, int64(80), trades[1].Shares)
	assert.Equal(t, []string{"AAPL", "TSLA"}, ledger.Tickers())
}

func TestController_RunTradingCycle_LiquidatesExistingPositionsFirst(t *testing.T) {
	controller, ledger, tradeLog := newTestController("100000", map[string]decimal.Decimal{
		"AAPL": dec("150"),
		"MSFT": dec("300"),
	})

	_, err := controller.RunTradingCycle(context.Background(), []domain.Candidate{{Ticker: "MSFT", Score: 4}})
	require.NoError(t, err)
	require.Equal(t, []string{"MSFT"}, ledger.Tickers())

	_, err = controller.RunTradingCycle(context.Background(), []domain.Candidate{{Ticker: "AAPL", Score: 6}})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, ledger.Tickers(), "previous position must be closed before new buys")

	var sells int
	for _, trade := range tradeLog.All() {
		if trade.Side == domain.TradeSideSell {
			sells++
		}
	}
	assert.Equal(t, 1, sells)
}

func TestController_RunTradingCycle_NoBullishCandidates(t *testing.T) {
	controller, ledger, _ := newTestController("100000", nil)

	trades, err := controller.RunTradingCycle(context.Background(), []domain.Candidate{
		{Ticker: "AAPL", Score: -1},
		{Ticker: "TSLA", Score: 0},
	})
	require.NoError(t, err)

	assert.Empty(t, trades)
	assert.True(t, ledger.Cash().Equal(dec("100000")))
}

func TestController_RunTradingCycle_SkipsFailedTickers(t *testing.T) {
	// PENNY's budget buys zero shares at an absurd price, so that buy
	// fails and the cycle moves on
	controller, ledger, _ := newTestController("100000", map[string]decimal.Decimal{
		"PENNY": dec("999999"),
		"TSLA":  dec("200"),
	})

	trades, err := controller.RunTradingCycle(context.Background(), []domain.Candidate{
		{Ticker: "PENNY", Score: 9},
		{Ticker: "TSLA", Score: 5},
	})
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.Equal(t, "TSLA", trades[0].Ticker)
	assert.Equal(t, []string{"TSLA"}, ledger.Tickers())
}

func TestController_RunTradingCycle_EmitsErrorEventOnFailedBuy(t *testing.T) {
	tradeLog := NewTradeLog()
	ledger := portfolio.NewLedger(dec("100000"), nil, tradeLog, time.UTC, zerolog.Nop())
	prices := map[string]decimal.Decimal{"PENNY": dec("999999"), "TSLA": dec("200")}
	executor := NewExecutor(ledger, &stubOracle{prices: prices}, tradeLog, nil, nil, zerolog.Nop())

	manager := events.NewManager(zerolog.Nop())
	var errored []events.Event
	manager.Subscribe(func(e events.Event) {
		if e.Type == events.ErrorOccurred {
			errored = append(errored, e)
		}
	})

	controller := NewController(ledger, executor, defaultSizer(), manager, 0, true, zerolog.Nop())

	trades, err := controller.RunTradingCycle(context.Background(), []domain.Candidate{
		{Ticker: "PENNY", Score: 9},
		{Ticker: "TSLA", Score: 5},
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	require.Len(t, errored, 1)
	details, ok := errored[0].Data["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "PENNY", details["ticker"])
	assert.Equal(t, "buy", details["operation"])
}

func TestController_RunTradingCycle_CancelledContext(t *testing.T) {
	controller, ledger, _ := newTestController("100000", map[string]decimal.Decimal{
		"AAPL": dec("150"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := controller.RunTradingCycle(ctx, []domain.Candidate{{Ticker: "AAPL", Score: 8}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ledger.Tickers())
}

func TestController_LiquidateAll_EmptyPortfolioIsNoOp(t *testing.T) {
	controller, _, _ := newTestController("100000", nil)

	trades, err := controller.LiquidateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trades)

	// Idempotent: a second run changes nothing
	trades, err = controller.LiquidateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestController_LiquidateAll_ClosesEverything(t *testing.T) {
	controller, ledger, _ := newTestController("100000", map[string]decimal.Decimal{
		"AAPL": dec("150"),
		"TSLA": dec("200"),
	})

	_, err := controller.RunTradingCycle(context.Background(), []domain.Candidate{
		{Ticker: "AAPL", Score: 8},
		{Ticker: "TSLA", Score: 5},
	})
	require.NoError(t, err)
	require.Len(t, ledger.Tickers(), 2)

	trades, err := controller.LiquidateAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, trades, 2)
	assert.Empty(t, ledger.Tickers())
	// Sells happen in deterministic ticker order
	assert.Equal(t, "AAPL", trades[0].Ticker)
	assert.Equal(t, "TSLA", trades[1].Ticker)
}

type selectivePersister struct {
	failTicker string
}

func (p *selectivePersister) Create(trade domain.Trade) error {
	if trade.Ticker == p.failTicker {
		return errors.New("write failed")
	}
	return nil
}

func TestController_LiquidateAll_SkipsFailedSells(t *testing.T) {
	tradeLog := NewTradeLog()
	ledger := portfolio.NewLedger(dec("100000"), nil, tradeLog, time.UTC, zerolog.Nop())
	prices := map[string]decimal.Decimal{"AAPL": dec("150"), "MSFT": dec("300")}

	// Open both positions with persistence working
	executor := NewExecutor(ledger, &stubOracle{prices: prices}, tradeLog, nil, nil, zerolog.Nop())
	_, err := executor.Buy(context.Background(), "AAPL", dec("1500"))
	require.NoError(t, err)
	_, err = executor.Buy(context.Background(), "MSFT", dec("3000"))
	require.NoError(t, err)

	// Liquidate with a repo that rejects AAPL's sell
	failing := NewExecutor(ledger, &stubOracle{prices: prices}, tradeLog, &selectivePersister{failTicker: "AAPL"}, nil, zerolog.Nop())
	controller := NewController(ledger, failing, defaultSizer(), nil, 0, true, zerolog.Nop())

	trades, err := controller.LiquidateAll(context.Background())
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.Equal(t, "MSFT", trades[0].Ticker)
	assert.Equal(t, []string{"AAPL"}, ledger.Tickers(), "failed sell leaves the position open")
}

func TestController_AutoTradingToggle(t *testing.T) {
	controller, _, _ := newTestController("100000", nil)

	assert.True(t, controller.AutoTradingEnabled())
	controller.SetAutoTrading(false)
	assert.False(t, controller.AutoTradingEnabled())
	controller.SetAutoTrading(true)
	assert.True(t, controller.AutoTradingEnabled())
}

func TestController_RefreshMarkToMarket_EmitsPortfolioUpdate(t *testing.T) {
	tradeLog := NewTradeLog()
	ledger := portfolio.NewLedger(dec("100000"), nil, tradeLog, time.UTC, zerolog.Nop())
	executor := NewExecutor(ledger, &stubOracle{}, tradeLog, nil, nil, zerolog.Nop())

	manager := events.NewManager(zerolog.Nop())
	var got []events.Event
	manager.Subscribe(func(e events.Event) { got = append(got, e) })

	controller := NewController(ledger, executor, defaultSizer(), manager, 0, true, zerolog.Nop())

	snap := controller.RefreshMarkToMarket(context.Background())
	assert.True(t, snap.TotalValue.Equal(dec("100000")))

	require.Len(t, got, 1)
	assert.Equal(t, events.PortfolioUpdate, got[0].Type)
}
