package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	metricsPkg "appointment-notifier/internal/metrics"
	"appointment-notifier/internal/service"
	"appointment-notifier/internal/service/scheduler"
)

// Pinger reports whether the appointment store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// MailChecker is implemented by notifiers that can verify their mail credentials
type MailChecker interface {
	TestConnection(ctx context.Context) error
}

const mailCheckTimeout = 5 * time.Second

// Handlers contains all HTTP handlers
type Handlers struct {
	db        Pinger
	notifier  service.Notifier
	scheduler *scheduler.Scheduler
	metrics   *metricsPkg.Metrics
	now       func() time.Time
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db Pinger, notifier service.Notifier, scheduler *scheduler.Scheduler, metrics *metricsPkg.Metrics) *Handlers {
	return &Handlers{
		db:        db,
		notifier:  notifier,
		scheduler: scheduler,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/", h.Root)
	router.POST("/send", h.Send)
	router.POST("/sendReminder", h.SendReminder)
	router.POST("/sendDailyCustomers", h.SendDailyCustomers)

	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.POST("/scheduler/rotate", h.RotateCache)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// Root is the liveness endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.String(http.StatusOK, "Hello, this is the appointment notifier.")
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if err := h.db.Ping(c.Request.Context()); err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if checker, ok := h.notifier.(MailChecker); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), mailCheckTimeout)
		err := checker.TestConnection(ctx)
		cancel()
		response.Mail = "ok"
		if err != nil {
			response.Status = "error"
			response.Mail = "error"
			logrus.Errorf("Mail health check failed: %v", err)
		}
	}

	if h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
		response.Metrics["last_run"] = h.scheduler.GetLastRun().Format(time.RFC3339)
		response.Metrics["next_digest"] = h.scheduler.GetNextDigest().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}
	response.Metrics["dedup_cache_size"] = strconv.Itoa(h.scheduler.CacheSize())

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
