package handlers

import (
	"context"
	"net/http"
	"time"

	"payflow/internal/caching"
	"payflow/pkg/database"

	"github.com/labstack/echo/v4"
)

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db       database.Pinger
	redisSvc caching.CacheService
}

func NewHealthHandlers(db database.Pinger, redisSvc caching.CacheService) *HealthHandlers {
	return &HealthHandlers{db: db, redisSvc: redisSvc}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
}

// HealthCheck checks downstream dependencies and reports per-service status.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Version:   "1.0.0",
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			health.Services["database"] = "unhealthy"
			health.Status = "degraded"
		} else {
			health.Services["database"] = "healthy"
		}
	}

	if h.redisSvc != nil {
		if err := h.redisSvc.Ping(ctx); err != nil {
			health.Services["redis"] = "unhealthy"
			health.Status = "degraded"
		} else {
			health.Services["redis"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusPartialContent
	}
	return c.JSON(statusCode, health)
}

// ReadinessCheck reports whether the service can take traffic.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// LivenessCheck reports that the process is up.
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}
