package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingtrader/internal/clients/sentiment"
	"swingtrader/internal/database"
	"swingtrader/internal/domain"
	"swingtrader/internal/portfolio"
	"swingtrader/internal/trading"
)

type fixedOracle struct{}

func (fixedOracle) Quote(context.Context, string) decimal.Decimal {
	return decimal.NewFromInt(100)
}

func newController(autoTrading bool) *trading.Controller {
	tradeLog := trading.NewTradeLog()
	ledger := portfolio.NewLedger(decimal.NewFromInt(100000), nil, tradeLog, time.UTC, zerolog.Nop())
	executor := trading.NewExecutor(ledger, fixedOracle{}, tradeLog, nil, nil, zerolog.Nop())
	sizer := trading.NewSizer(trading.SizerConfig{
		MaxPositions:    10,
		MaxCashUsage:    decimal.NewFromFloat(0.8),
		MaxRiskPerTrade: decimal.NewFromFloat(0.1),
	})
	return trading.NewController(ledger, executor, sizer, nil, 0, autoTrading, zerolog.Nop())
}

func TestMorningCycleJob_RunsFullCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": [{"ticker": "AAPL", "score": 8.0}, {"ticker": "GME", "score": -2.0}]}`))
	}))
	defer srv.Close()

	controller := newController(true)
	ranker := sentiment.NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	job := NewMorningCycleJob(controller, ranker, []string{"AAPL", "GME"}, time.Minute, zerolog.Nop())

	assert.Equal(t, "morning_cycle", job.Name())
	require.NoError(t, job.Run())

	snap := controller.Snapshot()
	require.Len(t, snap.Positions, 1, "only the bullish candidate is bought")
	assert.Equal(t, "AAPL", snap.Positions[0].Ticker)
}

func TestMorningCycleJob_SkipsWhenAutoTradingDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("ranker must not be called when auto-trading is off")
	}))
	defer srv.Close()

	controller := newController(false)
	ranker := sentiment.NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	job := NewMorningCycleJob(controller, ranker, []string{"AAPL"}, time.Minute, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, controller.Snapshot().Positions)
}

func TestMorningCycleJob_RankerFailureIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	controller := newController(true)
	ranker := sentiment.NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	job := NewMorningCycleJob(controller, ranker, []string{"AAPL"}, time.Minute, zerolog.Nop())

	assert.Error(t, job.Run())
}

func TestEveningLiquidationJob_ClosesPositions(t *testing.T) {
	controller := newController(true)
	_, err := controller.RunTradingCycle(context.Background(), []domain.Candidate{{Ticker: "AAPL", Score: 4}})
	require.NoError(t, err)
	require.NotEmpty(t, controller.Snapshot().Positions)

	job := NewEveningLiquidationJob(controller, time.Minute, zerolog.Nop())
	assert.Equal(t, "evening_liquidation", job.Name())
	require.NoError(t, job.Run())
	assert.Empty(t, controller.Snapshot().Positions)
}

func TestEveningLiquidationJob_SkipsWhenAutoTradingDisabled(t *testing.T) {
	controller := newController(false)
	job := NewEveningLiquidationJob(controller, time.Minute, zerolog.Nop())
	require.NoError(t, job.Run())
}

func TestPortfolioRefreshJob_PersistsDailySnapshot(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	repo := portfolio.NewSnapshotRepository(db.Conn(), zerolog.Nop())
	tradeRepo := trading.NewTradeRepository(db.Conn(), zerolog.Nop())
	controller := newController(true)

	job := NewPortfolioRefreshJob(controller, repo, tradeRepo, time.UTC, time.Minute, zerolog.Nop())
	assert.Equal(t, "portfolio_refresh", job.Name())
	require.NoError(t, job.Run())

	curve, err := repo.EquityCurve()
	require.NoError(t, err)
	require.Len(t, curve, 1)
	assert.InDelta(t, 100000, curve[0], 0.001)

	// A second run the same day replaces the row instead of appending
	require.NoError(t, job.Run())
	curve, err = repo.EquityCurve()
	require.NoError(t, err)
	assert.Len(t, curve, 1)
}
