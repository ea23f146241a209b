package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/risk"
	"fortis-trading-bot/internal/signals"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBacktestDays  = 3650
)

// handleHealth reports the state of the database, vault and scanner
// GET /health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	body := gin.H{"uptime": time.Since(s.started).Round(time.Second).String()}

	if s.deps.Store != nil {
		body["database"] = "healthy"
		if err := s.deps.Store.HealthCheck(ctx); err != nil {
			body["database"] = "unhealthy"
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	if s.deps.Vault != nil {
		body["vault"] = "healthy"
		if err := s.deps.Vault.Health(ctx); err != nil {
			body["vault"] = "unhealthy"
			if code == http.StatusOK {
				status = "degraded"
			}
		}
	}

	if s.deps.Feed != nil {
		if last := s.deps.Feed.GetLastResult(); last != nil {
			body["last_scan"] = last.EndTime
		}
	}
	if s.hub != nil {
		body["ws_clients"] = s.hub.GetClientCount()
	}

	body["status"] = status
	c.JSON(code, body)
}

// handleGetSignals lists recent signals, from the database when configured
// GET /api/signals?symbol=BTCUSDT&limit=50
func (s *Server) handleGetSignals(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	symbol := strings.ToUpper(c.Query("symbol"))

	var list []*signals.Signal
	switch {
	case s.deps.Store != nil:
		var err error
		list, err = s.deps.Store.RecentSignals(c.Request.Context(), symbol, limit)
		if err != nil {
			s.log.WithError(err).Error("Failed to load signals")
			errorResponse(c, http.StatusInternalServerError, "Failed to load signals")
			return
		}
	case s.deps.Feed != nil:
		list = s.deps.Feed.RecentSignals(symbol, limit)
	}
	if list == nil {
		list = []*signals.Signal{}
	}
	successResponse(c, list)
}

// handleInvalidateSignal marks an alerted signal invalid
// POST /api/signals/:id/invalidate
func (s *Server) handleInvalidateSignal(c *gin.Context) {
	if s.deps.Feed == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Scanner is not running")
		return
	}
	id := c.Param("id")
	if !s.deps.Feed.InvalidateSignal(id) {
		errorResponse(c, http.StatusNotFound, "Signal not found")
		return
	}
	successResponse(c, gin.H{"id": id, "is_valid": false})
}

// handleLastScan returns the most recent scan cycle
// GET /api/scan/last
func (s *Server) handleLastScan(c *gin.Context) {
	if s.deps.Feed == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Scanner is not running")
		return
	}
	last := s.deps.Feed.GetLastResult()
	if last == nil {
		errorResponse(c, http.StatusNotFound, "No scan completed yet")
		return
	}
	successResponse(c, last)
}

// handleGetBacktests lists persisted backtest runs
// GET /api/backtests?limit=50
func (s *Server) handleGetBacktests(c *gin.Context) {
	if s.deps.Store == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Database is not configured")
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	runs, err := s.deps.Store.RecentBacktests(c.Request.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to load backtests")
		errorResponse(c, http.StatusInternalServerError, "Failed to load backtests")
		return
	}
	successResponse(c, runs)
}

// handleRunBacktest replays the trailing history of a pair
// POST /api/backtests
// Body: {"symbol": "BTCUSDT", "timeframe": "4h", "days": 365}
func (s *Server) handleRunBacktest(c *gin.Context) {
	if s.deps.Backtester == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Backtests are not available")
		return
	}

	var req struct {
		Symbol    string `json:"symbol" binding:"required"`
		Timeframe string `json:"timeframe" binding:"required"`
		Days      int    `json:"days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Days == 0 {
		req.Days = 365
	}
	if req.Days < 0 || req.Days > maxBacktestDays {
		errorResponse(c, http.StatusBadRequest, "days must be between 1 and 3650")
		return
	}
	tf, err := market.ParseTimeframe(req.Timeframe)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.deps.Backtester.RunDays(c.Request.Context(), strings.ToUpper(req.Symbol), tf, req.Days)
	if err != nil {
		if errors.Is(err, backtest.ErrInsufficientData) {
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.log.WithError(err).Error("Backtest failed", "symbol", req.Symbol)
		errorResponse(c, http.StatusBadGateway, "Backtest failed: "+err.Error())
		return
	}

	summary := backtestSummary(result)
	if s.config.PersistBacktest && s.deps.Store != nil {
		id, err := s.deps.Store.SaveBacktest(c.Request.Context(), result)
		if err != nil {
			s.log.WithError(err).Warn("Failed to persist backtest")
		} else {
			summary["id"] = id
		}
	}
	successResponse(c, summary)
}

func backtestSummary(r *backtest.Result) gin.H {
	return gin.H{
		"symbol":          r.Symbol,
		"timeframe":       r.Timeframe,
		"start_date":      r.StartDate,
		"end_date":        r.EndDate,
		"initial_capital": r.InitialCapital,
		"final_capital":   r.FinalCapital,
		"total_trades":    r.TotalTrades(),
		"win_rate":        r.WinRate(),
		"total_pnl":       r.TotalPnL(),
		"total_return":    r.TotalReturn(),
		"profit_factor":   r.ProfitFactor(),
		"max_drawdown":    r.MaxDrawdown(),
		"trades":          r.TradeLog(),
		"risk":            r.Risk,
	}
}

// handleRiskStats returns the live risk ledger
// GET /api/risk/stats
func (s *Server) handleRiskStats(c *gin.Context) {
	if s.deps.Risk == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Risk manager is not configured")
		return
	}
	successResponse(c, s.deps.Risk.Stats())
}

// handlePositionSize sizes a trade plan against the live ledger. With a
// target and direction the plan is also checked for risk:reward.
// GET /api/risk/position-size?entry=100&stop=98&target=104&direction=BULLISH
func (s *Server) handlePositionSize(c *gin.Context) {
	if s.deps.Risk == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Risk manager is not configured")
		return
	}

	entry, err1 := strconv.ParseFloat(c.Query("entry"), 64)
	stop, err2 := strconv.ParseFloat(c.Query("stop"), 64)
	if err1 != nil || err2 != nil || entry <= 0 || stop <= 0 {
		errorResponse(c, http.StatusBadRequest, "entry and stop must be positive numbers")
		return
	}

	sizing, err := s.deps.Risk.CalculatePositionSize(entry, stop)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	body := gin.H{"sizing": sizing}
	if raw := c.Query("target"); raw != "" {
		target, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "target must be a number")
			return
		}
		dir := market.Direction(strings.ToUpper(c.DefaultQuery("direction", string(market.Bullish))))
		body["validation"] = risk.ValidateTrade(entry, stop, target, dir)
	}
	successResponse(c, body)
}

func queryLimit(c *gin.Context) (int, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 || limit > maxListLimit {
		errorResponse(c, http.StatusBadRequest, "limit must be between 1 and 500")
		return 0, false
	}
	return limit, true
}
