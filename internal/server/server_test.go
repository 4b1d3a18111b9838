package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingtrader/internal/domain"
	"swingtrader/internal/events"
	"swingtrader/internal/market"
	"swingtrader/internal/metrics"
	"swingtrader/internal/portfolio"
	"swingtrader/internal/trading"
)

type fixedOracle struct{}

func (fixedOracle) Quote(context.Context, string) decimal.Decimal {
	return decimal.NewFromInt(100)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	tradeLog := trading.NewTradeLog()
	ledger := portfolio.NewLedger(decimal.NewFromInt(100000), nil, tradeLog, time.UTC, zerolog.Nop())
	executor := trading.NewExecutor(ledger, fixedOracle{}, tradeLog, nil, nil, zerolog.Nop())
	sizer := trading.NewSizer(trading.SizerConfig{
		MaxPositions:    10,
		MaxCashUsage:    decimal.NewFromFloat(0.8),
		MaxRiskPerTrade: decimal.NewFromFloat(0.1),
	})
	controller := trading.NewController(ledger, executor, sizer, nil, 0, true, zerolog.Nop())
	metricsService := metrics.NewService(tradeLog, ledger, nil, decimal.NewFromInt(100000), zerolog.Nop())

	return New(Config{
		Port:       0,
		Log:        zerolog.Nop(),
		Controller: controller,
		Trades:     tradeLog,
		Metrics:    metricsService,
		Clock:      market.NewClock(time.UTC),
		News:       market.NewNewsFeed(nil, zerolog.Nop()),
		Events:     events.NewManager(zerolog.Nop()),
	})
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_PortfolioEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Portfolio domain.PortfolioSnapshot `json:"portfolio"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Portfolio.Cash.Equal(decimal.NewFromInt(100000)))
}

func TestServer_ExecuteCycleAndTrades(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/trade/execute",
		`{"candidates": [{"ticker": "AAPL", "score": 8}, {"ticker": "GME", "score": -3}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Trades []domain.Trade `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Trades, 1)
	assert.Equal(t, "AAPL", body.Trades[0].Ticker)

	rec = doRequest(t, srv, http.MethodGet, "/api/trades?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var trades struct {
		Trades []domain.Trade `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	assert.Len(t, trades.Trades, 1)
}

func TestServer_TradesRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/trades?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Liquidate(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/trade/execute",
		`{"candidates": [{"ticker": "AAPL", "score": 8}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/liquidate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Trades    []domain.Trade           `json:"trades"`
		Portfolio domain.PortfolioSnapshot `json:"portfolio"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Trades, 1)
	assert.Empty(t, body.Portfolio.Positions)
}

func TestServer_SettingsToggle(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"auto_trading":true`)

	rec = doRequest(t, srv, http.MethodPost, "/api/settings", `{"auto_trading": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"auto_trading":false`)

	rec = doRequest(t, srv, http.MethodGet, "/api/settings", "")
	assert.Contains(t, rec.Body.String(), `"auto_trading":false`)
}

func TestServer_MarketStatus(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/market-status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status market.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	if status.IsOpen {
		assert.NotNil(t, status.NextClose)
	} else {
		assert.NotNil(t, status.NextOpen)
	}
}

func TestServer_News(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/news/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ticker   string           `json:"ticker"`
		Articles []market.Article `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Ticker)
	assert.NotEmpty(t, body.Articles)
}

func TestServer_ExecuteCycleRejectsBadBody(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/trade/execute", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
