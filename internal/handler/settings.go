package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"whaletracker/internal/service"
)

type SettingsHandler struct {
	Settings *service.SystemSettingsService
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settings/switches")
	g.GET("", h.listSwitches)
	g.PUT("/:name", h.putSwitch)
}

// @Summary List feature switches
// @Tags settings
// @Success 200 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/settings/switches [get]
func (h *SettingsHandler) listSwitches(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	items, err := h.Settings.ListSwitches(c.Request.Context())
	if err != nil {
		storeError(c, err)
		return
	}
	Ok(c, items, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Flip a feature switch
// @Tags settings
// @Param name path string true "switch name, e.g. paper_trading"
// @Param body body putSwitchRequest true "new state"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/settings/switches/{name} [put]
func (h *SettingsHandler) putSwitch(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	key := service.FeaturePrefix + name
	if !service.KnownFeature(key) {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		storeError(c, err)
		return
	}
	Ok(c, gin.H{
		"name":    name,
		"key":     key,
		"enabled": *req.Enabled,
	}, nil)
}
