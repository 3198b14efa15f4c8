package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// BrowserStats is implemented by the headless browser pool
type BrowserStats interface {
	IsHealthy() bool
	Stats() map[string]interface{}
}

// BrowserMetricsResponse represents the browser pool metrics response
type BrowserMetricsResponse struct {
	Status  string                 `json:"status"`
	Metrics map[string]interface{} `json:"metrics"`
}

// BrowserMetricsHandler handles GET /api/v1/metrics/browser; a nil pool means the browser strategy is off
func BrowserMetricsHandler(pool BrowserStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		if pool == nil {
			return c.JSON(http.StatusOK, BrowserMetricsResponse{
				Status:  "disabled",
				Metrics: map[string]interface{}{},
			})
		}

		healthy := pool.IsHealthy()
		metrics := pool.Stats()
		metrics["is_healthy"] = healthy
		status := "ok"
		if !healthy {
			status = "unhealthy"
		}
		return c.JSON(http.StatusOK, BrowserMetricsResponse{Status: status, Metrics: metrics})
	}
}
