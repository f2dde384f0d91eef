package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"whaletracker/internal/models"
	"whaletracker/internal/repository"
)

type MarketHandler struct {
	Repo repository.Repository
}

func (h *MarketHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/markets")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/signals", h.signals)
}

type snapshotView struct {
	Timestamp       time.Time `json:"timestamp"`
	Volume          float64   `json:"volume"`
	Liquidity       float64   `json:"liquidity"`
	YesPrice        float64   `json:"yes_price"`
	NoPrice         float64   `json:"no_price"`
	YesBid          *float64  `json:"yes_bid"`
	YesAsk          *float64  `json:"yes_ask"`
	NoBid           *float64  `json:"no_bid"`
	NoAsk           *float64  `json:"no_ask"`
	BuyOrdersCount  int       `json:"buy_orders_count"`
	SellOrdersCount int       `json:"sell_orders_count"`
	TotalBuyVolume  float64   `json:"total_buy_volume"`
	TotalSellVolume float64   `json:"total_sell_volume"`
}

type marketView struct {
	ID          string        `json:"id"`
	ConditionID string        `json:"condition_id"`
	Question    string        `json:"question"`
	Category    string        `json:"category,omitempty"`
	Slug        string        `json:"slug,omitempty"`
	YesTokenID  string        `json:"yes_token_id"`
	NoTokenID   string        `json:"no_token_id"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Latest      *snapshotView `json:"latest,omitempty"`
}

func toMarketView(m models.Market, snap *models.Snapshot) marketView {
	v := marketView{
		ID:          m.ID,
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Category:    m.Category,
		Slug:        m.Slug,
		YesTokenID:  m.YesTokenID,
		NoTokenID:   m.NoTokenID,
		UpdatedAt:   m.UpdatedAt,
	}
	if snap != nil {
		v.Latest = &snapshotView{
			Timestamp:       snap.Timestamp,
			Volume:          snap.Volume,
			Liquidity:       snap.Liquidity,
			YesPrice:        snap.YesPrice,
			NoPrice:         snap.NoPrice,
			YesBid:          snap.YesBid,
			YesAsk:          snap.YesAsk,
			NoBid:           snap.NoBid,
			NoAsk:           snap.NoAsk,
			BuyOrdersCount:  snap.BuyOrdersCount,
			SellOrdersCount: snap.SellOrdersCount,
			TotalBuyVolume:  snap.TotalBuyVolume,
			TotalSellVolume: snap.TotalSellVolume,
		}
	}
	return v
}

// @Summary List tracked markets
// @Description Each market carries its latest observation.
// @Tags markets
// @Param limit query int false "max items (1-500, default 100)"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/markets [get]
func (h *MarketHandler) list(c *gin.Context) {
	if h.Repo == nil {
		repoUnavailable(c)
		return
	}
	ctx := c.Request.Context()
	params := repository.ListMarketsParams{
		Limit:   clampQuery(c, "limit", 100, 1, 500),
		Offset:  clampQuery(c, "offset", 0, 0, 1<<30),
		OrderBy: "updated_at",
		Asc:     boolPtr(false),
	}
	items, err := h.Repo.ListMarkets(ctx, params)
	if err != nil {
		storeError(c, err)
		return
	}
	total, err := h.Repo.CountMarkets(ctx, params)
	if err != nil {
		storeError(c, err)
		return
	}
	ids := make([]string, 0, len(items))
	for _, m := range items {
		ids = append(ids, m.ID)
	}
	snaps, err := h.Repo.ListLatestSnapshots(ctx, ids)
	if err != nil {
		storeError(c, err)
		return
	}
	latest := make(map[string]*models.Snapshot, len(snaps))
	for i := range snaps {
		latest[snaps[i].MarketID] = &snaps[i]
	}
	out := make([]marketView, 0, len(items))
	for _, m := range items {
		out = append(out, toMarketView(m, latest[m.ID]))
	}
	Ok(c, out, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Get a tracked market
// @Tags markets
// @Param id path string true "market id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/markets/{id} [get]
func (h *MarketHandler) get(c *gin.Context) {
	if h.Repo == nil {
		repoUnavailable(c)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid market id", nil)
		return
	}
	m, err := h.Repo.GetMarketByID(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	if m == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	snap, err := h.Repo.GetLatestSnapshot(c.Request.Context(), id)
	if err != nil {
		storeError(c, err)
		return
	}
	Ok(c, toMarketView(*m, snap), nil)
}

// @Summary List signals of one market
// @Tags markets
// @Param id path string true "market id"
// @Param hours query int false "lookback hours (1-720, default 24)"
// @Param limit query int false "max items (1-1000, default 100)"
// @Success 200 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/markets/{id}/signals [get]
func (h *MarketHandler) signals(c *gin.Context) {
	if h.Repo == nil {
		repoUnavailable(c)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid market id", nil)
		return
	}
	since := sinceHours(c, 24, 720)
	listSignals(c, h.Repo, repository.ListSignalsParams{
		Limit:    clampQuery(c, "limit", 100, 1, 1000),
		MarketID: &id,
		Since:    &since,
		OrderBy:  "detected_at",
		Asc:      boolPtr(false),
	})
}
