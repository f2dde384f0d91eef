package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"whaletracker/internal/models"
	"whaletracker/internal/recommendation"
	"whaletracker/internal/repository"
)

type RecommendationHandler struct {
	Repo repository.Repository
}

func (h *RecommendationHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/recommendations", h.list)
}

type recommendationView struct {
	ID           uint64                        `json:"id"`
	MarketID     string                        `json:"market_id"`
	Question     string                        `json:"question"`
	Slug         string                        `json:"slug,omitempty"`
	Direction    models.Direction              `json:"direction"`
	WhaleScore   int                           `json:"whale_score"`
	Confidence   models.Confidence             `json:"confidence"`
	SignalsFired []models.SignalKind           `json:"signals_fired"`
	Breakdown    map[models.SignalKind]float64 `json:"breakdown"`
	CurrentPrice float64                       `json:"current_price"`
	Volume       float64                       `json:"volume"`
	Liquidity    float64                       `json:"liquidity"`
	ExpiresAt    *time.Time                    `json:"expires_at,omitempty"`
	CreatedAt    time.Time                     `json:"created_at"`
}

func toRecommendationView(rec models.Recommendation) recommendationView {
	v := recommendationView{
		ID:           rec.ID,
		MarketID:     rec.MarketID,
		Direction:    rec.Direction,
		WhaleScore:   rec.WhaleScore,
		Confidence:   rec.Confidence,
		SignalsFired: recommendation.FiredKinds(rec),
		Breakdown:    map[models.SignalKind]float64{},
		CurrentPrice: rec.CurrentPrice,
		Volume:       rec.Volume,
		Liquidity:    rec.Liquidity,
		ExpiresAt:    rec.ExpiresAt,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Market != nil {
		v.Question = rec.Market.Question
		v.Slug = rec.Market.Slug
	}
	if len(rec.Breakdown) > 0 {
		_ = json.Unmarshal(rec.Breakdown, &v.Breakdown)
	}
	return v
}

// @Summary List active recommendations
// @Description Ranked by whale score, most recent first on ties.
// @Tags recommendations
// @Param limit query int false "max items (1-100, default 10)"
// @Success 200 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/recommendations [get]
func (h *RecommendationHandler) list(c *gin.Context) {
	if h.Repo == nil {
		repoUnavailable(c)
		return
	}
	limit := clampQuery(c, "limit", 10, 1, 100)
	items, err := h.Repo.ListActiveRecommendations(c.Request.Context(), limit)
	if err != nil {
		storeError(c, err)
		return
	}
	out := make([]recommendationView, 0, len(items))
	for _, rec := range items {
		out = append(out, toRecommendationView(rec))
	}
	Ok(c, out, map[string]any{"count": len(out)})
}
