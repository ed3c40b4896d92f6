package api

import (
	"go.uber.org/zap"

	"bay-scheduler-backend/internal/scheduling"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc *scheduling.Service
	log *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *scheduling.Service, log *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With(zap.String("component", "api")),
	}
}
