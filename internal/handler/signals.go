package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"whaletracker/internal/models"
	"whaletracker/internal/repository"
)

type SignalHandler struct {
	Repo repository.Repository
}

func (h *SignalHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/signals", h.list)
}

type signalView struct {
	ID         uint64            `json:"id"`
	MarketID   string            `json:"market_id"`
	SignalType models.SignalKind `json:"signal_type"`
	Value      float64           `json:"value"`
	Threshold  float64           `json:"threshold"`
	Metadata   json.RawMessage   `json:"metadata,omitempty"`
	DetectedAt time.Time         `json:"detected_at"`
}

func toSignalViews(items []models.Signal) []signalView {
	out := make([]signalView, 0, len(items))
	for _, s := range items {
		out = append(out, signalView{
			ID:         s.ID,
			MarketID:   s.MarketID,
			SignalType: s.SignalType,
			Value:      s.Value,
			Threshold:  s.Threshold,
			Metadata:   json.RawMessage(s.Metadata),
			DetectedAt: s.DetectedAt,
		})
	}
	return out
}

// @Summary List recent signals
// @Tags signals
// @Param hours query int false "lookback hours (1-720, default 24)"
// @Param limit query int false "max items (1-1000, default 100)"
// @Param offset query int false "offset"
// @Param market_id query string false "market id"
// @Param type query string false "volume_spike|smart_money|book_imbalance|liquidity_drain|large_order"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/signals [get]
func (h *SignalHandler) list(c *gin.Context) {
	if h.Repo == nil {
		repoUnavailable(c)
		return
	}
	params := repository.ListSignalsParams{
		Limit:   clampQuery(c, "limit", 100, 1, 1000),
		Offset:  clampQuery(c, "offset", 0, 0, 1<<30),
		OrderBy: "detected_at",
		Asc:     boolPtr(false),
	}
	since := sinceHours(c, 24, 720)
	params.Since = &since
	if v := strings.TrimSpace(c.Query("market_id")); v != "" {
		params.MarketID = &v
	}
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		kind := models.SignalKind(v)
		if !kind.Valid() {
			Error(c, http.StatusBadRequest, "invalid signal type", nil)
			return
		}
		params.Type = &kind
	}
	listSignals(c, h.Repo, params)
}

func listSignals(c *gin.Context, repo repository.Repository, params repository.ListSignalsParams) {
	items, err := repo.ListSignals(c.Request.Context(), params)
	if err != nil {
		storeError(c, err)
		return
	}
	total, err := repo.CountSignals(c.Request.Context(), params)
	if err != nil {
		storeError(c, err)
		return
	}
	Ok(c, toSignalViews(items), paginationMeta(params.Limit, params.Offset, total))
}
