package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/engine"
	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/scheduling"
)

// defaultSlotCount applies when the slots query omits count.
const defaultSlotCount = 5

type createBayRequest struct {
	BayNumber   string `json:"bayNumber"`
	Description string `json:"description"`
}

type patchBayRequest struct {
	BayNumber   *string          `json:"bayNumber"`
	Description *string          `json:"description"`
	Status      *model.BayStatus `json:"status"`
}

// SlotsResponse represents the API response for a slot search.
type SlotsResponse struct {
	BayID string          `json:"bayId"`
	Slots []engine.Window `json:"slots"`
}

// ListBays handles GET /api/bays.
func (h *Handler) ListBays(c *gin.Context) {
	bays, err := h.svc.ListBays(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if bays == nil {
		bays = []model.Bay{}
	}
	c.JSON(http.StatusOK, bays)
}

// CreateBay handles POST /api/bays.
func (h *Handler) CreateBay(c *gin.Context) {
	var req createBayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	bay, err := h.svc.CreateBay(c.Request.Context(), scheduling.BayInput{
		BayNumber:   req.BayNumber,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bay)
}

// GetBay handles GET /api/bays/:bay_id.
func (h *Handler) GetBay(c *gin.Context) {
	bay, err := h.svc.GetBay(c.Request.Context(), c.Param("bay_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bay)
}

// PatchBay handles PATCH /api/bays/:bay_id.
func (h *Handler) PatchBay(c *gin.Context) {
	var req patchBayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	bay, err := h.svc.UpdateBay(c.Request.Context(), c.Param("bay_id"), scheduling.BayPatch{
		BayNumber:   req.BayNumber,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bay)
}

// DeleteBay handles DELETE /api/bays/:bay_id.
func (h *Handler) DeleteBay(c *gin.Context) {
	if err := h.svc.DeleteBay(c.Request.Context(), c.Param("bay_id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FindSlots handles GET /api/bays/:bay_id/slots.
func (h *Handler) FindSlots(c *gin.Context) {
	minutes, err := queryInt(c, "durationMinutes")
	if err != nil {
		h.writeError(c, err)
		return
	}
	if minutes == nil {
		h.writeError(c, apperr.Invalid("durationMinutes", "is required"))
		return
	}
	searchFrom, err := queryTime(c, "searchFrom")
	if err != nil {
		h.writeError(c, err)
		return
	}
	count, err := queryInt(c, "count")
	if err != nil {
		h.writeError(c, err)
		return
	}
	n := defaultSlotCount
	if count != nil {
		n = *count
	}

	bayID := c.Param("bay_id")
	slots, err := h.svc.FindSlots(c.Request.Context(), scheduling.SlotQuery{
		BayID:          bayID,
		Duration:       time.Duration(*minutes) * time.Minute,
		SearchFrom:     searchFrom,
		Count:          n,
		ExcludeTaskIDs: queryList(c, "excludeTaskIds"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if slots == nil {
		slots = []engine.Window{}
	}
	c.JSON(http.StatusOK, SlotsResponse{BayID: bayID, Slots: slots})
}
