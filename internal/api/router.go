package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bay-scheduler-backend/config"
	"bay-scheduler-backend/internal/metrics"
	"bay-scheduler-backend/internal/mw"
	"bay-scheduler-backend/internal/scheduling"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, svc *scheduling.Service, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(log), metrics.Middleware())

	handler := NewHandler(svc, log)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Read views tolerate being a few hundred milliseconds stale; any write flushes them.
	cacheStore := cache.New(cfg.CacheTTL, time.Minute)
	var caching gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.CacheTTL > 0 {
		caching = mw.Cache(cacheStore, cfg.CacheTTL)
	}

	api := r.Group("/api")
	api.Use(
		mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader),
		mw.Timeout(cfg.RequestTimeout),
		mw.Invalidate(cacheStore),
	)
	{
		api.GET("/bays", handler.ListBays)
		api.POST("/bays", handler.CreateBay)
		api.GET("/bays/:bay_id", handler.GetBay)
		api.PATCH("/bays/:bay_id", handler.PatchBay)
		api.DELETE("/bays/:bay_id", handler.DeleteBay)
		api.GET("/bays/:bay_id/slots", caching, handler.FindSlots)

		api.POST("/orders", handler.CreateOrder)

		api.POST("/tasks", handler.CreateTask)
		api.GET("/tasks", handler.ListTasks)
		api.GET("/tasks/:task_id", handler.GetTask)
		api.POST("/tasks/:task_id/assign", handler.AssignTask)
		api.PUT("/tasks/:task_id/schedule", handler.RescheduleTask)
		api.POST("/tasks/:task_id/begin", handler.BeginTask)
		api.POST("/tasks/:task_id/extend", handler.ExtendTask)
		api.POST("/tasks/:task_id/complete", handler.CompleteTask)

		api.GET("/availability", caching, handler.GetAvailability)
		api.GET("/alerts", handler.ListAlerts)
	}

	return r
}
