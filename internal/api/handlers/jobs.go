package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"harvest-engine/internal/api/validation"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/orchestrator"
	"harvest-engine/pkg/models"
)

func jobsJSON(c echo.Context, jobs []models.ScrapedJob) error {
	if jobs == nil {
		jobs = []models.ScrapedJob{}
	}
	return c.JSON(http.StatusOK, models.JobsResponse{Jobs: jobs, Count: len(jobs)})
}

// ListJobsHandler handles GET /api/v1/jobs
func ListJobsHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		return jobsJSON(c, orch.GetAllJobs())
	}
}

// CompanyJobsHandler handles GET /api/v1/companies/:id/jobs
func CompanyJobsHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		return jobsJSON(c, orch.GetJobsByCompany(c.Param("id")))
	}
}

// SearchJobsHandler handles GET /api/v1/jobs/search?q=
func SearchJobsHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.SearchRequest
		if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		}
		if err := validation.Validator().Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", "query parameter q must be at least 2 characters")
		}
		return jobsJSON(c, orch.SearchJobs(req.Query))
	}
}

// FilterJobsHandler handles GET /api/v1/jobs/filter with FilterCriteria query params
func FilterJobsHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var criteria models.FilterCriteria
		if err := (&echo.DefaultBinder{}).BindQueryParams(c, &criteria); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		}
		if err := validation.Validator().Struct(&criteria); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}
		return jobsJSON(c, orch.FilterJobs(criteria))
	}
}

// ClearJobsHandler handles DELETE /api/v1/jobs
func ClearJobsHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		removed := orch.StoreSize()
		if err := orch.ClearJobs(c.Request().Context()); err != nil {
			return errorFrom(c, err)
		}
		logging.LogWithRequestID(requestID(c)).Info("Job store cleared", map[string]interface{}{"removed": removed})
		return c.JSON(http.StatusOK, map[string]interface{}{"cleared": removed})
	}
}

// MetricsHandler handles GET /api/v1/metrics with the last run's metrics
func MetricsHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := orch.LastMetrics()
		if metrics == nil {
			return errorJSON(c, http.StatusNotFound, "not_found", "no scrape run has completed yet")
		}
		return c.JSON(http.StatusOK, metrics)
	}
}
