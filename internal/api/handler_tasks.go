package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/scheduling"
)

type createOrderRequest struct {
	OrderNumber  string `json:"orderNumber"`
	CustomerName string `json:"customerName"`
}

type createTaskRequest struct {
	OrderID string         `json:"orderId"`
	Kind    model.TaskKind `json:"kind"`
}

type scheduleRequest struct {
	BayID string    `json:"bayId"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type beginRequest struct {
	Assignments []model.Assignment `json:"assignments"`
}

type extendRequest struct {
	ActualEnd time.Time `json:"actualEnd"`
}

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.svc.CreateOrder(c.Request.Context(), scheduling.OrderInput{
		OrderNumber:  req.OrderNumber,
		CustomerName: req.CustomerName,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// CreateTask handles POST /api/tasks.
func (h *Handler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	task, err := h.svc.CreateTask(c.Request.Context(), scheduling.TaskInput{OrderID: req.OrderID, Kind: req.Kind})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// ListTasks handles GET /api/tasks.
func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.svc.ListTasks(c.Request.Context(), scheduling.TaskQuery{
		BayID:   c.Query("bayId"),
		Status:  model.TaskStatus(c.Query("status")),
		OrderID: c.Query("orderId"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTask handles GET /api/tasks/:task_id.
func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// AssignTask handles POST /api/tasks/:task_id/assign.
func (h *Handler) AssignTask(c *gin.Context) {
	h.schedule(c, h.svc.Assign)
}

// RescheduleTask handles PUT /api/tasks/:task_id/schedule.
func (h *Handler) RescheduleTask(c *gin.Context) {
	h.schedule(c, h.svc.Reschedule)
}

type scheduleFunc func(ctx context.Context, taskID string, req scheduling.ScheduleRequest) (*model.Task, error)

func (h *Handler) schedule(c *gin.Context, op scheduleFunc) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	task, err := op(c.Request.Context(), c.Param("task_id"), scheduling.ScheduleRequest{
		BayID: req.BayID,
		Start: req.Start,
		End:   req.End,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// BeginTask handles POST /api/tasks/:task_id/begin. The body is optional.
func (h *Handler) BeginTask(c *gin.Context) {
	var req beginRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	task, err := h.svc.Begin(c.Request.Context(), c.Param("task_id"), req.Assignments)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// ExtendTask handles POST /api/tasks/:task_id/extend.
func (h *Handler) ExtendTask(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	task, err := h.svc.Extend(c.Request.Context(), c.Param("task_id"), req.ActualEnd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CompleteTask handles POST /api/tasks/:task_id/complete.
func (h *Handler) CompleteTask(c *gin.Context) {
	task, err := h.svc.Complete(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
