package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"harvest-engine/internal/grpc/interceptors"
	"harvest-engine/internal/scraper/workers"
)

// WorkerStatusResponse describes the shared worker pool and rate limiter
type WorkerStatusResponse struct {
	Status    string                            `json:"status"`
	Pool      workers.PoolStats                 `json:"pool"`
	Hosts     map[string]map[string]interface{} `json:"hosts"`
	RequestID string                            `json:"request_id"`
	Timestamp time.Time                         `json:"timestamp"`
}

// WorkerStatsHandler handles GET /api/v1/workers/stats
func WorkerStatsHandler(pool *workers.WorkerPool, limiter *workers.RateLimiter) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats := pool.GetStats()
		status := "idle"
		if stats.InFlight > 0 {
			status = "busy"
		}
		if stats.Waiting > 0 {
			status = "saturated"
		}

		return c.JSON(http.StatusOK, WorkerStatusResponse{
			Status:    status,
			Pool:      stats,
			Hosts:     limiter.GetAllStats(),
			RequestID: requestID(c),
			Timestamp: time.Now(),
		})
	}
}

// DomainStatsHandler handles GET /api/v1/domains/:domain/stats
func DomainStatsHandler(limiter *workers.RateLimiter) echo.HandlerFunc {
	return func(c echo.Context) error {
		domain := strings.ToLower(c.Param("domain"))
		stats, ok := limiter.GetAllStats()[domain]
		if !ok {
			return errorJSON(c, http.StatusNotFound, "not_found", "no requests recorded for "+domain)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"domain":        domain,
			"stats":         stats,
			"circuit_state": limiter.CircuitState(domain).String(),
			"request_id":    requestID(c),
		})
	}
}

// GRPCMetricsHandler handles GET /api/v1/metrics/grpc
func GRPCMetricsHandler(collector *interceptors.MetricsCollector) echo.HandlerFunc {
	return func(c echo.Context) error {
		if collector == nil {
			return c.JSON(http.StatusOK, map[string]interface{}{"methods": map[string]interface{}{}})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"methods": collector.GetAllMetrics()})
	}
}
