package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"harvest-engine/internal/api/handlers"
	"harvest-engine/internal/api/middleware"
	"harvest-engine/internal/background"
	"harvest-engine/internal/config"
	"harvest-engine/internal/grpc/interceptors"
	"harvest-engine/internal/orchestrator"
	"harvest-engine/internal/scraper/workers"
)

// Dependencies are the services the HTTP surface exposes. Browser is nil when the browser strategy is off.
type Dependencies struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Tasks        *background.TaskManager
	Pool         *workers.WorkerPool
	Limiter      *workers.RateLimiter
	Browser      handlers.BrowserStats
	GRPCMetrics  *interceptors.MetricsCollector
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	cfg := deps.Config
	orch := deps.Orchestrator

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig(cfg.Server.AllowedOrigins))
	e.Use(middleware.BodyLimit(cfg.Server.MaxBodySize))
	// synchronous scrapes get the long budget, everything else the read timeout
	e.Use(middleware.SelectiveTimeoutConfig(cfg.Server.ReadTimeout, cfg.Server.RequestTimeout))

	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler(orch))
		health.GET("/live", handlers.LivenessHandler)
		health.GET("/ready", handlers.ReadinessHandler(deps.Tasks))
	}

	v1 := e.Group("/api/v1")
	{
		scrape := v1.Group("/scrape")
		{
			scrape.POST("", handlers.ScrapeBatchHandler(orch))
			scrape.POST("/company", handlers.ScrapeCompanyHandler(orch))
			scrape.POST("/async", handlers.ScrapeAsyncHandler(deps.Tasks))
		}

		runs := v1.Group("/runs")
		{
			runs.GET("", handlers.ListRunsHandler(deps.Tasks))
			runs.GET("/:id", handlers.RunStatusHandler(deps.Tasks))
		}

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", handlers.ListJobsHandler(orch))
			jobs.GET("/search", handlers.SearchJobsHandler(orch))
			jobs.GET("/filter", handlers.FilterJobsHandler(orch))
			jobs.DELETE("", handlers.ClearJobsHandler(orch))
		}
		v1.GET("/companies/:id/jobs", handlers.CompanyJobsHandler(orch))

		metrics := v1.Group("/metrics")
		{
			metrics.GET("", handlers.MetricsHandler(orch))
			metrics.GET("/browser", handlers.BrowserMetricsHandler(deps.Browser))
			metrics.GET("/grpc", handlers.GRPCMetricsHandler(deps.GRPCMetrics))
		}

		v1.GET("/workers/stats", handlers.WorkerStatsHandler(deps.Pool, deps.Limiter))
		v1.GET("/domains/:domain/stats", handlers.DomainStatsHandler(deps.Limiter))
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "harvest-engine",
			"version": handlers.Version,
			"status":  "running",
		})
	})
}
