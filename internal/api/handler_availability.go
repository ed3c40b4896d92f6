package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/scheduling"
)

// defaultAlertLimit applies when GET /api/alerts omits limit.
const defaultAlertLimit = 50

// GetAvailability handles GET /api/availability.
func (h *Handler) GetAvailability(c *gin.Context) {
	var (
		q   scheduling.SnapshotQuery
		err error
	)
	if q.From, err = queryTime(c, "from"); err != nil {
		h.writeError(c, err)
		return
	}
	if q.To, err = queryTime(c, "to"); err != nil {
		h.writeError(c, err)
		return
	}
	if q.LookaheadHours, err = queryInt(c, "lookaheadHours"); err != nil {
		h.writeError(c, err)
		return
	}
	if q.LimitUpcoming, err = queryInt(c, "limitUpcoming"); err != nil {
		h.writeError(c, err)
		return
	}

	snap, err := h.svc.Snapshot(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ListAlerts handles GET /api/alerts.
func (h *Handler) ListAlerts(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.writeError(c, err)
		return
	}
	n := defaultAlertLimit
	if limit != nil {
		n = *limit
	}
	alerts, err := h.svc.ListAlerts(c.Request.Context(), n)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if alerts == nil {
		alerts = []model.IntegrityAlert{}
	}
	c.JSON(http.StatusOK, alerts)
}
