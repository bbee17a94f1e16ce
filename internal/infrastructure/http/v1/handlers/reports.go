package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chargegate/internal/core/apperror"
	"chargegate/internal/domain/reports"
)

// ReportsHandler serves operational aggregates.
type ReportsHandler struct {
	BaseHandler
	svc *reports.Service
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(svc *reports.Service) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

// ChargeVolume handles GET /api/reports/charges?from=&to=.
// Bounds default to the last 24 hours.
func (h *ReportsHandler) ChargeVolume(c *gin.Context) {
	now := time.Now().UTC()
	from, to := now.Add(-24*time.Hour), now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("from must be RFC3339").WithDetail("value", raw))
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("to must be RFC3339").WithDetail("value", raw))
			return
		}
		to = parsed
	}

	lines, err := h.svc.ChargeVolume(c.Request.Context(), from, to)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":    from.Format(time.RFC3339),
		"to":      to.Format(time.RFC3339),
		"volumes": lines,
	})
}

// Outbox handles GET /api/reports/outbox.
func (h *ReportsHandler) Outbox(c *gin.Context) {
	st, err := h.svc.Outbox(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.Error(c, err)
		return
	}

	body := gin.H{"counts": st.Counts}
	if st.OldestPendingAge != nil {
		body["oldestPendingSeconds"] = int64(st.OldestPendingAge.Seconds())
	}
	c.JSON(http.StatusOK, body)
}
