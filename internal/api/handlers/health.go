package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"harvest-engine/internal/logging"
	"harvest-engine/internal/orchestrator"
	"harvest-engine/pkg/models"
)

// Version is stamped at build time with -ldflags "-X harvest-engine/internal/api/handlers.Version=..."
var Version = "dev"

var startTime = time.Now()

// HealthHandler handles GET /health. Down answers 503 so load balancers can act on it.
func HealthHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		check := orch.GetHealthCheck()

		logging.GetGlobalLogger().Debug("Health check requested", map[string]interface{}{
			"request_id": requestID(c),
			"status":     check.Status,
		})

		status := http.StatusOK
		if check.Status == models.HealthDown {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, models.HealthResponse{
			HealthCheck: check,
			Version:     Version,
			Uptime:      time.Since(startTime),
		})
	}
}

// Readiness is something that must be up before traffic is accepted
type Readiness interface {
	IsHealthy() bool
}

// ReadinessHandler handles GET /health/ready
func ReadinessHandler(deps ...Readiness) echo.HandlerFunc {
	return func(c echo.Context) error {
		for _, d := range deps {
			if d != nil && !d.IsHealthy() {
				return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
					"status":    "not_ready",
					"timestamp": time.Now(),
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ready",
			"timestamp": time.Now(),
			"version":   Version,
		})
	}
}

// LivenessHandler handles GET /health/live
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}
