package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"swingtrader/internal/domain"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "swingtrader",
	})
}

// handlePortfolio returns the current snapshot plus performance metrics
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio": s.controller.Snapshot(),
		"metrics":   s.metrics.Compute(),
	})
}

// handleTrades returns recent trades, newest first
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": s.trades.Recent(limit),
	})
}

// handleMetrics returns performance metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Compute())
}

// handleMarketStatus returns whether the exchange is open
func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.clock.Status(time.Now()))
}

// handleNews returns recent articles for a ticker
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	if ticker == "" {
		s.writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":   ticker,
		"articles": s.news.News(r.Context(), ticker),
	})
}

// handleGetSettings returns mutable runtime settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"auto_trading": s.controller.AutoTradingEnabled(),
	})
}

type settingsRequest struct {
	AutoTrading *bool `json:"auto_trading"`
}

// handleUpdateSettings toggles runtime settings
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AutoTrading != nil {
		s.controller.SetAutoTrading(*req.AutoTrading)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"auto_trading": s.controller.AutoTradingEnabled(),
	})
}

type executeRequest struct {
	Candidates []domain.Candidate `json:"candidates"`
}

// handleExecuteCycle runs a full trading cycle from supplied candidates
func (s *Server) handleExecuteCycle(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trades, err := s.controller.RunTradingCycle(r.Context(), req.Candidates)
	if err != nil {
		s.log.Error().Err(err).Msg("Trading cycle aborted")
		s.writeError(w, http.StatusServiceUnavailable, "trading cycle aborted")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades":    trades,
		"portfolio": s.controller.Snapshot(),
	})
}

// handleLiquidate closes every open position
func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	trades, err := s.controller.LiquidateAll(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Liquidation aborted")
		s.writeError(w, http.StatusServiceUnavailable, "liquidation aborted")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades":    trades,
		"portfolio": s.controller.Snapshot(),
	})
}
