package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"harvest-engine/internal/api/validation"
	"harvest-engine/internal/background"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/orchestrator"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// ScrapeBatchHandler handles POST /api/v1/scrape and blocks until the batch finishes
func ScrapeBatchHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := requestID(c)
		logger := logging.LogWithRequestID(id)

		var req models.ScrapeBatchRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		}
		if err := validation.Validator().Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		logger.Info("Batch scrape requested", map[string]interface{}{"companies": len(req.Companies)})

		outcome, err := orch.ScrapeCompanies(c.Request().Context(), req.Companies)
		if err != nil {
			logger.Warn("Batch scrape rejected", map[string]interface{}{"error": err.Error()})
			return errorFrom(c, err)
		}

		return c.JSON(http.StatusOK, models.BatchResponse{
			Results:   outcome.Results,
			Metrics:   outcome.Metrics,
			RequestID: id,
		})
	}
}

// ScrapeCompanyHandler handles POST /api/v1/scrape/company. A failed scrape
// is still a 200; the result carries the error.
func ScrapeCompanyHandler(orch *orchestrator.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := requestID(c)
		logger := logging.LogWithRequestID(id)

		var req models.ScrapeCompanyRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		}
		if err := validation.Validator().Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		result, newJobs, err := orch.ScrapeCompany(c.Request().Context(), &req.Company)
		if err != nil {
			return errorFrom(c, err)
		}

		logger.Info("Company scrape finished", map[string]interface{}{
			"company_id": req.Company.ID,
			"success":    result.Success,
			"strategy":   result.StrategyUsed,
			"new_jobs":   newJobs,
		})
		return c.JSON(http.StatusOK, models.CompanyResponse{Result: result, NewJobs: newJobs, RequestID: id})
	}
}

// ScrapeAsyncHandler handles POST /api/v1/scrape/async: 202 with a process id to poll
func ScrapeAsyncHandler(tm *background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.ScrapeBatchRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		}
		if err := validation.Validator().Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err.Error())
		}

		task, err := tm.Submit(c.Request().Context(), req.Companies)
		if err != nil {
			return errorFrom(c, err)
		}
		c.Response().Header().Set(echo.HeaderLocation, "/api/v1/runs/"+task.ProcessID)
		return c.JSON(http.StatusAccepted, task)
	}
}

// RunStatusHandler handles GET /api/v1/runs/:id
func RunStatusHandler(tm *background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		processID := c.Param("id")
		if processID == "" {
			return errorFrom(c, utils.NewValidationError("process id is required"))
		}
		task, err := tm.GetTaskResult(c.Request().Context(), processID)
		if err != nil {
			return errorFrom(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

// ListRunsHandler handles GET /api/v1/runs
func ListRunsHandler(tm *background.TaskManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := tm.ListTasks(c.Request().Context())
		if err != nil {
			return errorFrom(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"runs": tasks, "count": len(tasks)})
	}
}
