package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

func repoUnavailable(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "repo unavailable", nil)
}

// storeError reports a failed store call. Store failures are upstream
// failures from the API's point of view.
func storeError(c *gin.Context, err error) {
	Error(c, http.StatusBadGateway, err.Error(), nil)
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

// clampQuery reads an int query param and keeps it within [min, max].
func clampQuery(c *gin.Context, key string, def, min, max int) int {
	v := intQuery(c, key, def)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// sinceHours converts an hours=N lookback param to an absolute cutoff.
func sinceHours(c *gin.Context, def, max int) time.Time {
	hours := clampQuery(c, "hours", def, 1, max)
	return time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
}

func boolPtr(v bool) *bool { return &v }

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
