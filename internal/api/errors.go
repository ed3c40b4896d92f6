package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bay-scheduler-backend/internal/apperr"
)

type conflictBody struct {
	TaskID string    `json:"taskId"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// writeError maps err onto an HTTP status and a JSON body.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		ce *apperr.ConflictError
		ie *apperr.IntegrityError
	)
	code := apperr.Code(err)

	switch {
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, gin.H{
			"error":    err.Error(),
			"code":     code,
			"conflict": conflictBody{TaskID: ce.TaskID, Start: ce.Start, End: ce.End},
		})
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": code})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": code})
	case errors.Is(err, apperr.ErrSlotConflict),
		errors.Is(err, apperr.ErrBayInactive),
		errors.Is(err, apperr.ErrNotScheduled),
		errors.Is(err, apperr.ErrAlreadyScheduled),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrBayInUse),
		errors.Is(err, apperr.ErrDuplicate),
		errors.Is(err, apperr.ErrStaleVersion):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": code})
	case errors.As(err, &ie):
		h.log.Error("integrity violation", zap.String("bay_id", ie.BayID), zap.Strings("task_ids", ie.TaskIDs))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "integrity violation, operators have been alerted",
			"code":    code,
			"bayId":   ie.BayID,
			"taskIds": ie.TaskIDs,
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out", "code": "timeout"})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": code})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error(), "code": "validation"})
}
