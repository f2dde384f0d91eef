package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"whaletracker/internal/models"
	"whaletracker/internal/papertrade"
)

type PaperTradingHandler struct {
	Simulator *papertrade.Simulator
}

func (h *PaperTradingHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/paper-trading")
	g.GET("/stats", h.stats)
	g.GET("/positions", h.positions)
	g.GET("/history", h.history)
	g.GET("/metrics", h.metrics)
	g.POST("/positions/:id/close", h.close)
}

type paperTradeView struct {
	ID               uint64           `json:"id"`
	RecommendationID uint64           `json:"recommendation_id"`
	MarketID         string           `json:"market_id"`
	Question         string           `json:"question,omitempty"`
	Direction        models.Direction `json:"direction"`
	EntryPrice       decimal.Decimal  `json:"entry_price"`
	EntryTime        time.Time        `json:"entry_time"`
	BetSize          decimal.Decimal  `json:"bet_size"`
	WhaleScore       int              `json:"whale_score"`
	ExitPrice        *decimal.Decimal `json:"exit_price,omitempty"`
	ExitTime         *time.Time       `json:"exit_time,omitempty"`
	PnL              *decimal.Decimal `json:"pnl,omitempty"`
	IsClosed         bool             `json:"is_closed"`
}

func toPaperTradeView(t models.PaperTrade) paperTradeView {
	v := paperTradeView{
		ID:               t.ID,
		RecommendationID: t.RecommendationID,
		MarketID:         t.MarketID,
		Direction:        t.Direction,
		EntryPrice:       t.EntryPrice,
		EntryTime:        t.EntryTime,
		BetSize:          t.BetSize,
		WhaleScore:       t.WhaleScore,
		ExitPrice:        t.ExitPrice,
		ExitTime:         t.ExitTime,
		PnL:              t.PnL,
		IsClosed:         t.IsClosed,
	}
	if t.Market != nil {
		v.Question = t.Market.Question
	}
	return v
}

func toPaperTradeViews(items []models.PaperTrade) []paperTradeView {
	out := make([]paperTradeView, 0, len(items))
	for _, t := range items {
		out = append(out, toPaperTradeView(t))
	}
	return out
}

// @Summary Paper trading performance
// @Tags paper-trading
// @Param days query int false "lookback days (1-365, default 7)"
// @Success 200 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/paper-trading/stats [get]
func (h *PaperTradingHandler) stats(c *gin.Context) {
	if h.Simulator == nil {
		repoUnavailable(c)
		return
	}
	stats, err := h.Simulator.PerformanceStats(c.Request.Context(), clampQuery(c, "days", 7, 1, 365))
	if err != nil {
		storeError(c, err)
		return
	}
	Ok(c, stats, nil)
}

// @Summary Open paper positions
// @Tags paper-trading
// @Param limit query int false "max items (1-500, default 100)"
// @Success 200 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/paper-trading/positions [get]
func (h *PaperTradingHandler) positions(c *gin.Context) {
	if h.Simulator == nil {
		repoUnavailable(c)
		return
	}
	items, err := h.Simulator.OpenPositions(c.Request.Context(), clampQuery(c, "limit", 100, 1, 500))
	if err != nil {
		storeError(c, err)
		return
	}
	Ok(c, toPaperTradeViews(items), map[string]any{"count": len(items)})
}

// @Summary Closed paper trades
// @Tags paper-trading
// @Param limit query int false "max items (1-500, default 50)"
// @Success 200 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/paper-trading/history [get]
func (h *PaperTradingHandler) history(c *gin.Context) {
	if h.Simulator == nil {
		repoUnavailable(c)
		return
	}
	items, err := h.Simulator.History(c.Request.Context(), clampQuery(c, "limit", 50, 1, 500))
	if err != nil {
		storeError(c, err)
		return
	}
	Ok(c, toPaperTradeViews(items), map[string]any{"count": len(items)})
}

type metricView struct {
	Date          string          `json:"date"`
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       float64         `json:"win_rate"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	AvgWhaleScore float64         `json:"avg_whale_score"`
}

// @Summary Daily performance metrics
// @Tags paper-trading
// @Param days query int false "lookback days (1-365, default 30)"
// @Success 200 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/paper-trading/metrics [get]
func (h *PaperTradingHandler) metrics(c *gin.Context) {
	if h.Simulator == nil {
		repoUnavailable(c)
		return
	}
	items, err := h.Simulator.DailyMetrics(c.Request.Context(), clampQuery(c, "days", 30, 1, 365))
	if err != nil {
		storeError(c, err)
		return
	}
	out := make([]metricView, 0, len(items))
	for _, m := range items {
		out = append(out, metricView{
			Date:          m.Date.Format("2006-01-02"),
			TotalTrades:   m.TotalTrades,
			WinningTrades: m.WinningTrades,
			LosingTrades:  m.LosingTrades,
			WinRate:       m.WinRate,
			TotalPnL:      m.TotalPnL,
			AvgWhaleScore: m.AvgWhaleScore,
		})
	}
	Ok(c, out, nil)
}

type closePositionRequest struct {
	ExitPrice *decimal.Decimal `json:"exit_price"`
}

// @Summary Close an open paper position
// @Tags paper-trading
// @Param id path int true "paper trade id"
// @Param body body closePositionRequest true "exit price in YES terms"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/paper-trading/positions/{id}/close [post]
func (h *PaperTradingHandler) close(c *gin.Context) {
	if h.Simulator == nil {
		repoUnavailable(c)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req closePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if req.ExitPrice == nil {
		Error(c, http.StatusBadRequest, "exit_price is required", nil)
		return
	}
	if req.ExitPrice.IsNegative() || req.ExitPrice.GreaterThan(decimal.NewFromInt(1)) {
		Error(c, http.StatusBadRequest, "exit_price must be within [0, 1]", nil)
		return
	}
	trade, err := h.Simulator.Close(c.Request.Context(), id, *req.ExitPrice)
	switch {
	case errors.Is(err, papertrade.ErrTradeNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
		return
	case errors.Is(err, papertrade.ErrTradeClosed):
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	case err != nil:
		storeError(c, err)
		return
	}
	Ok(c, toPaperTradeView(*trade), nil)
}
