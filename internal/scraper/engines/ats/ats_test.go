package ats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest-engine/internal/scraper/fetcher"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

func newClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := fetcher.NewWithClient(srv.Client(), nil, fetcher.Options{})
	return New(f), srv
}

func TestGreenhouse_MapsPostings(t *testing.T) {
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobs":[
			{"id":1,"title":"Backend Engineer","absolute_url":"https://boards.greenhouse.io/acme/jobs/1",
			 "updated_at":"2026-02-01T10:00:00-05:00","content":"&lt;p&gt;We use Go and Kubernetes.&lt;/p&gt;",
			 "location":{"name":"Remote - US"},"departments":[{"name":"Engineering"}]},
			{"id":2,"title":""}
		]}`))
	})

	company := &models.CompanyConfig{ID: "acme", Name: "Acme", ATS: &models.ATSConfig{Type: "Greenhouse", BoardID: "acme", APIURL: srv.URL}}
	jobs, err := client.Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job := jobs[0]
	assert.Equal(t, "Backend Engineer", job.Title)
	assert.Equal(t, models.MethodAPI, job.Source.ScrapeMethod)
	assert.Equal(t, models.SourceATS, job.Source.Type)
	assert.Equal(t, "greenhouse", job.Source.ATSVendor)
	assert.Equal(t, "Engineering", job.Department)
	assert.True(t, job.Location.IsRemote)
	assert.Equal(t, "We use Go and Kubernetes.", job.Description)
	assert.Contains(t, job.Skills, "Go")
}

func TestLever_ListsAndSalary(t *testing.T) {
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{
			"id":"abc","text":"Product Designer","hostedUrl":"https://jobs.lever.co/acme/abc","createdAt":1767225600000,
			"descriptionPlain":"Design things.","workplaceType":"hybrid",
			"categories":{"location":"Berlin","team":"Design","commitment":"Full-time"},
			"lists":[{"text":"Requirements","content":"<li>Figma</li><li>3 years of product design</li>"},
			         {"text":"What you will do","content":"<li>Own the design system</li>"}],
			"salaryRange":{"min":70000,"max":90000,"currency":"EUR","interval":"per-year-salary"}
		}]`))
	})

	company := &models.CompanyConfig{ID: "acme", Name: "Acme", ATS: &models.ATSConfig{Type: "lever", BoardID: "acme", APIURL: srv.URL}}
	jobs, err := client.Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job := jobs[0]
	assert.Equal(t, models.WorkTypeHybrid, job.WorkType)
	assert.Equal(t, "Design", job.Department)
	assert.Equal(t, []string{"Figma", "3 years of product design"}, job.Requirements)
	assert.Equal(t, []string{"Own the design system"}, job.Responsibilities)
	assert.True(t, job.Salary.IsDisclosed)
	assert.Equal(t, "EUR", job.Salary.Currency)
	assert.Equal(t, 2026, job.PostedDate.Year())
}

func TestAshby_SkipsUnlistedAndReadsCompensation(t *testing.T) {
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jobs":[
			{"title":"Staff Engineer","location":"New York","isRemote":true,"jobUrl":"https://jobs.ashbyhq.com/acme/1",
			 "compensation":{"summaryComponents":[{"compensationType":"Salary","interval":"1 YEAR","currencyCode":"USD","minValue":200000,"maxValue":250000}]}},
			{"title":"Hidden Role","isListed":false}
		]}`))
	})

	company := &models.CompanyConfig{ID: "acme", Name: "Acme", ATS: &models.ATSConfig{Type: "ashby", BoardID: "acme", APIURL: srv.URL}}
	jobs, err := client.Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Location.IsRemote)
	assert.Equal(t, 200000.0, jobs[0].Salary.Min)
	assert.Equal(t, "yearly", jobs[0].Salary.Period)
}

func TestSmartRecruiters_Pages(t *testing.T) {
	var mu sync.Mutex
	var offsets []string
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		offsets = append(offsets, r.URL.Query().Get("offset"))
		mu.Unlock()
		if r.URL.Query().Get("offset") == "0" {
			_, _ = w.Write([]byte(`{"totalFound":2,"content":[{"id":"1","name":"QA Engineer","location":{"city":"Austin","region":"TX","country":"us"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"totalFound":2,"content":[{"id":"2","name":"Support Lead","location":{"remote":true}}]}`))
	})

	company := &models.CompanyConfig{ID: "acme", Name: "Acme", ATS: &models.ATSConfig{Type: "smartrecruiters", BoardID: "Acme", APIURL: srv.URL + "/v1/companies/Acme/postings"}}
	jobs, err := client.Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	mu.Lock()
	assert.Equal(t, []string{"0", "1"}, offsets)
	mu.Unlock()
	assert.Equal(t, "https://jobs.smartrecruiters.com/Acme/1", jobs[0].ExternalURL)
	assert.True(t, jobs[1].Location.IsRemote)
}

func TestWorkday_PostsAndPages(t *testing.T) {
	var mu sync.Mutex
	var bodies []workdayRequest
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req workdayRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		bodies = append(bodies, req)
		mu.Unlock()

		postings := make([]map[string]string, 0, workdayPageSize)
		n := workdayPageSize
		if req.Offset > 0 {
			n = 5
		}
		for i := 0; i < n; i++ {
			postings = append(postings, map[string]string{"title": "Analyst", "externalPath": "/job/Chicago/Analyst_R1", "locationsText": "Chicago, IL", "postedOn": "Posted 3 Days Ago"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"total": workdayPageSize + 5, "jobPostings": postings})
	})

	company := &models.CompanyConfig{
		ID: "acme", Name: "Acme",
		CareerPageURL: "https://acme.wd5.myworkdayjobs.com/en-US/External",
		ATS:           &models.ATSConfig{Type: "workday", APIURL: srv.URL},
	}
	jobs, err := client.Extract(context.Background(), company)
	require.NoError(t, err)
	assert.Len(t, jobs, workdayPageSize+5)
	mu.Lock()
	require.Len(t, bodies, 2)
	assert.Equal(t, workdayPageSize, bodies[1].Offset)
	mu.Unlock()
	assert.Equal(t, "https://acme.wd5.myworkdayjobs.com/External/job/Chicago/Analyst_R1", jobs[0].ExternalURL)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -3), jobs[0].PostedDate, time.Minute)
	assert.True(t, jobs[0].PostedDate.Before(jobs[0].ScrapedAt))
}

func TestParseWorkdayPosted(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		text string
		want time.Time
	}{
		{"Posted Today", now},
		{"Posted Yesterday", now.AddDate(0, 0, -1)},
		{"Posted 3 Days Ago", now.AddDate(0, 0, -3)},
		{"Posted 30+ Days Ago", now.AddDate(0, 0, -30)},
		{"", time.Time{}},
		{"Recently", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, parseWorkdayPosted(tt.text, now))
		})
	}
}

func TestParseWorkdayBoard(t *testing.T) {
	b, err := parseWorkdayBoard("https://acme.wd1.myworkdayjobs.com/en-US/Careers")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.wd1.myworkdayjobs.com/wday/cxs/acme/Careers/jobs", b.jobsEndpoint())

	_, err = parseWorkdayBoard("https://example.com")
	assert.Equal(t, utils.KindConfiguration, utils.KindOf(err))
}

func TestExtract_Errors(t *testing.T) {
	client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jobs":[]}`))
	})

	_, err := client.Extract(context.Background(), &models.CompanyConfig{ID: "x", Name: "X", ATS: &models.ATSConfig{Type: "taleo", BoardID: "x"}})
	assert.Equal(t, utils.KindUnsupported, utils.KindOf(err))

	_, err = client.Extract(context.Background(), &models.CompanyConfig{ID: "x", Name: "X", ATS: &models.ATSConfig{Type: "greenhouse", APIURL: srv.URL}})
	assert.Equal(t, utils.KindNoJobs, utils.KindOf(err))

	_, err = client.Extract(context.Background(), &models.CompanyConfig{ID: "x", Name: "X", ATS: &models.ATSConfig{Type: "lever"}})
	assert.Equal(t, utils.KindConfiguration, utils.KindOf(err))

	assert.False(t, client.Supports(&models.CompanyConfig{ID: "x", Name: "X"}))
}
