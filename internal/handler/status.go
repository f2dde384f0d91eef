package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"whaletracker/internal/poller"
)

type StatusHandler struct {
	Poller *poller.Poller
}

func (h *StatusHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/status", h.status)
	r.POST("/api/v1/poll", h.poll)
}

// @Summary Last poll cycle report
// @Tags status
// @Success 200 {object} apiResponse
// @Router /api/v1/status [get]
func (h *StatusHandler) status(c *gin.Context) {
	if h.Poller == nil {
		Error(c, http.StatusInternalServerError, "poller unavailable", nil)
		return
	}
	report := h.Poller.LastReport()
	Ok(c, gin.H{
		"ran":         report != nil,
		"last_report": report,
	}, nil)
}

// @Summary Run one poll cycle now
// @Tags status
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/poll [post]
func (h *StatusHandler) poll(c *gin.Context) {
	if h.Poller == nil {
		Error(c, http.StatusInternalServerError, "poller unavailable", nil)
		return
	}
	// A client disconnect must not abort a cycle mid-swap.
	report, err := h.Poller.RunOnce(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, poller.ErrCycleRunning) {
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{"report": report})
		return
	}
	Ok(c, report, nil)
}
