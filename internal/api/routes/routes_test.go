package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest-engine/internal/background"
	"harvest-engine/internal/config"
	"harvest-engine/internal/dedup"
	"harvest-engine/internal/normalize"
	"harvest-engine/internal/orchestrator"
	"harvest-engine/internal/scraper/workers"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

type stubEngine struct {
	block   chan struct{}
	entered chan struct{}
}

func (s *stubEngine) ScrapeCompany(ctx context.Context, company *models.CompanyConfig) *models.ScrapingResult {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	now := time.Now()
	build := func(title, location string) models.ScrapedJob {
		return normalize.Build(company, normalize.RawJob{Title: title, Location: location}, models.MethodAPI, now)
	}
	switch company.ID {
	case "acme":
		return &models.ScrapingResult{CompanyID: company.ID, CompanyName: company.Name, Success: true, StrategyUsed: "ats",
			Jobs: []models.ScrapedJob{
				build("Senior Backend Engineer", "Remote"),
				build("Sr. Backend Engineer", "Remote"),
				build("Junior Data Analyst", "Chicago, IL"),
			}}
	case "globex":
		return &models.ScrapingResult{CompanyID: company.ID, CompanyName: company.Name, Success: true, StrategyUsed: "ats",
			Jobs: []models.ScrapedJob{build("Product Designer", "London, UK")}}
	}
	return &models.ScrapingResult{CompanyID: company.ID, Jobs: []models.ScrapedJob{},
		Error: &models.ScrapingError{Kind: string(utils.KindNoJobs), Message: "No jobs found"}}
}

func (s *stubEngine) ScrapeCompanies(ctx context.Context, companies []models.CompanyConfig) []*models.ScrapingResult {
	out := make([]*models.ScrapingResult, len(companies))
	for i := range companies {
		out[i] = s.ScrapeCompany(ctx, &companies[i])
	}
	return out
}

type testServer struct {
	e     *echo.Echo
	orch  *orchestrator.Orchestrator
	tasks *background.TaskManager
}

func newTestServer(t *testing.T, engine *stubEngine) *testServer {
	t.Helper()
	cfg := config.Default()
	orch := orchestrator.New(cfg, engine, dedup.New(cfg, nil), orchestrator.Probes{})
	tasks := background.NewTaskManager(orch, time.Hour)
	require.NoError(t, tasks.Start(context.Background()))
	limiter := workers.NewRateLimiter(cfg)

	t.Cleanup(func() {
		_ = tasks.Stop(context.Background())
		limiter.Stop()
	})

	e := echo.New()
	SetupRoutes(e, Dependencies{
		Config:       cfg,
		Orchestrator: orch,
		Tasks:        tasks,
		Pool:         workers.NewWorkerPool(cfg),
		Limiter:      limiter,
	})
	return &testServer{e: e, orch: orch, tasks: tasks}
}

func (s *testServer) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

const batchBody = `{"companies":[
	{"id":"acme","name":"Acme","career_page_url":"https://acme.example/careers","ats":{"type":"greenhouse","board_id":"acme"}},
	{"id":"globex","name":"Globex","career_page_url":"https://globex.example/jobs"}
]}`

func TestScrapeThenQuery(t *testing.T) {
	s := newTestServer(t, &stubEngine{})

	rec, body := s.do(t, http.MethodPost, "/api/v1/scrape", batchBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	metrics := body["metrics"].(map[string]interface{})
	assert.EqualValues(t, 4, metrics["total_jobs_scraped"])
	assert.EqualValues(t, 3, metrics["new_jobs_added"])
	assert.NotEmpty(t, body["request_id"])

	_, body = s.do(t, http.MethodGet, "/api/v1/jobs", "")
	assert.EqualValues(t, 3, body["count"])

	_, body = s.do(t, http.MethodGet, "/api/v1/jobs/search?q=backend", "")
	assert.EqualValues(t, 1, body["count"])

	_, body = s.do(t, http.MethodGet, "/api/v1/jobs/filter?work_type=remote", "")
	assert.EqualValues(t, 1, body["count"])

	_, body = s.do(t, http.MethodGet, "/api/v1/companies/acme/jobs", "")
	assert.EqualValues(t, 2, body["count"])

	rec, _ = s.do(t, http.MethodGet, "/api/v1/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(t, http.MethodDelete, "/api/v1/jobs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["cleared"])
	assert.Zero(t, s.orch.StoreSize())
}

func TestScrapeCompany(t *testing.T) {
	s := newTestServer(t, &stubEngine{})

	rec, body := s.do(t, http.MethodPost, "/api/v1/scrape/company",
		`{"company":{"id":"globex","name":"Globex","career_page_url":"https://globex.example/jobs"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, body["new_jobs"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/scrape/company",
		`{"company":{"id":"hooli","name":"Hooli","career_page_url":"https://hooli.example"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, false, result["success"])
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t, &stubEngine{})

	cases := []struct {
		name, method, target, body string
	}{
		{"empty batch", http.MethodPost, "/api/v1/scrape", `{"companies":[]}`},
		{"malformed json", http.MethodPost, "/api/v1/scrape", `{"companies":`},
		{"unknown strategy", http.MethodPost, "/api/v1/scrape",
			`{"companies":[{"id":"acme","name":"Acme","scrape_config":{"strategies":["telepathy"]}}]}`},
		{"unknown ats", http.MethodPost, "/api/v1/scrape/company",
			`{"company":{"id":"acme","name":"Acme","ats":{"type":"taleo"}}}`},
		{"missing name", http.MethodPost, "/api/v1/scrape/company", `{"company":{"id":"acme"}}`},
		{"short query", http.MethodGet, "/api/v1/jobs/search?q=a", ""},
		{"bad work type", http.MethodGet, "/api/v1/jobs/filter?work_type=space", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := s.do(t, tc.method, tc.target, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestBatchInProgressConflicts(t *testing.T) {
	engine := &stubEngine{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := newTestServer(t, engine)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.orch.ScrapeCompanies(context.Background(), []models.CompanyConfig{{ID: "acme", Name: "Acme"}})
	}()
	<-engine.entered

	rec, body := s.do(t, http.MethodPost, "/api/v1/scrape", batchBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", body["error"])

	rec, _ = s.do(t, http.MethodPost, "/api/v1/scrape/async", batchBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/jobs", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, body = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, true, body["running"])

	close(engine.block)
	<-done
}

func TestAsyncRunLifecycle(t *testing.T) {
	s := newTestServer(t, &stubEngine{})

	rec, body := s.do(t, http.MethodPost, "/api/v1/scrape/async", batchBody)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	processID := body["process_id"].(string)
	assert.Equal(t, "/api/v1/runs/"+processID, rec.Header().Get(echo.HeaderLocation))

	assert.Eventually(t, func() bool {
		_, run := s.do(t, http.MethodGet, "/api/v1/runs/"+processID, "")
		return run["status"] == string(background.TaskStatusSuccess)
	}, 2*time.Second, 10*time.Millisecond)

	_, body = s.do(t, http.MethodGet, "/api/v1/runs", "")
	assert.EqualValues(t, 1, body["count"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestHealthAndOps(t *testing.T) {
	s := newTestServer(t, &stubEngine{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "trace-123")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-123", rec.Header().Get(echo.HeaderXRequestID))

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthHealthy, health["status"])

	rec, _ = s.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, body := s.do(t, http.MethodGet, "/api/v1/metrics/browser", "")
	assert.Equal(t, "disabled", body["status"])

	_, body = s.do(t, http.MethodGet, "/api/v1/workers/stats", "")
	assert.Equal(t, "idle", body["status"])

	require.NoError(t, s.tasks.Stop(context.Background()))
	rec, _ = s.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
