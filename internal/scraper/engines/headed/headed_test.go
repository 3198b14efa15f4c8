package headed

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest-engine/internal/config"
	"harvest-engine/internal/scraper/captcha"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

type fakeSession struct {
	pages       []string // HTML returned by successive HTML calls; the last one repeats
	snapshot    string
	navigateErr error
	scripts     []string
	scrolled    int
	waitedFor   string
	released    bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error { return s.navigateErr }

func (s *fakeSession) WaitForSelector(ctx context.Context, selector string) error {
	s.waitedFor = selector
	return errors.New("timeout")
}

func (s *fakeSession) AutoScroll(ctx context.Context, steps int, delay time.Duration) error {
	s.scrolled = steps
	return nil
}

func (s *fakeSession) EvalJSON(ctx context.Context, js string, out interface{}) error {
	if js == snapshotScript {
		if s.snapshot == "" {
			return nil
		}
		return json.Unmarshal([]byte(s.snapshot), out)
	}
	s.scripts = append(s.scripts, js)
	return nil
}

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	page := s.pages[0]
	if len(s.pages) > 1 {
		s.pages = s.pages[1:]
	}
	return page, nil
}

func (s *fakeSession) Release() { s.released = true }

type fakePool struct {
	session *fakeSession
	err     error
}

func (p *fakePool) Acquire(ctx context.Context) (Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}
func (p *fakePool) IsHealthy() bool                    { return true }
func (p *fakePool) Shutdown(ctx context.Context) error { return nil }

type fakeRenderer struct {
	html  string
	calls int
}

func (r *fakeRenderer) Enabled() bool { return r != nil }
func (r *fakeRenderer) Render(ctx context.Context, url string) (string, error) {
	r.calls++
	return r.html, nil
}

type fakeSolver struct{ solved captcha.Challenge }

func (s *fakeSolver) Enabled() bool { return true }
func (s *fakeSolver) Solve(ctx context.Context, c captcha.Challenge, pageURL string) (string, error) {
	s.solved = c
	return "tok-123", nil
}

var company = &models.CompanyConfig{ID: "acme", Name: "Acme", CareerPageURL: "https://acme.example/careers"}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Browser.DefaultWait = 0
	cfg.Browser.ScrollSteps = 3
	return cfg
}

func TestExtract_ReadsWindowState(t *testing.T) {
	session := &fakeSession{
		pages:    []string{`<html><body><div id="app"></div></body></html>`},
		snapshot: `{"state":{"jobs":[{"title":"Site Reliability Engineer","location":"Berlin","jobId":"7","url":"/jobs/7"}]},"cards":[]}`,
	}
	e := New(testConfig(), &fakePool{session: session}, nil, nil)

	jobs, err := e.Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	assert.Equal(t, "Site Reliability Engineer", jobs[0].Title)
	assert.Equal(t, "Berlin", jobs[0].Location.Raw)
	assert.Equal(t, models.MethodHeadless, jobs[0].Source.ScrapeMethod)
	assert.True(t, session.released)
}

func TestExtract_PrefersJSONLDOverCards(t *testing.T) {
	html := `<script type="application/ld+json">{"@type":"JobPosting","title":"Product Designer","jobLocation":{"address":{"addressLocality":"Oslo"}}}</script>`
	session := &fakeSession{
		pages:    []string{html},
		snapshot: `{"state":null,"cards":[{"title":"Some Other Role","url":"https://acme.example/x"}]}`,
	}

	jobs, err := New(testConfig(), &fakePool{session: session}, nil, nil).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Product Designer", jobs[0].Title)
}

func TestExtract_CardsAndScrolling(t *testing.T) {
	session := &fakeSession{
		pages:    []string{`<div></div>`},
		snapshot: `{"state":null,"cards":[{"title":"Backend Engineer","url":"https://acme.example/jobs/1","location":"Remote"},{"title":"  "}]}`,
	}
	c := *company
	c.ScrapeConfig.AutoScroll = true
	c.ScrapeConfig.WaitForSelector = ".job-row"

	jobs, err := New(testConfig(), &fakePool{session: session}, nil, nil).Extract(context.Background(), &c)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	assert.Equal(t, 3, session.scrolled)
	assert.Equal(t, ".job-row", session.waitedFor)
	assert.True(t, jobs[0].Location.IsRemote)
	assert.Equal(t, "https://acme.example/jobs/1", jobs[0].ExternalURL)
}

func TestExtract_CardsSkipNavigationText(t *testing.T) {
	session := &fakeSession{
		pages:    []string{`<div></div>`},
		snapshot: `{"state":null,"cards":[{"title":"Apply","url":"https://acme.example/jobs/1"},{"title":"Sign in"},{"title":"Data Engineer","url":"https://acme.example/jobs/2"}]}`,
	}

	jobs, err := New(testConfig(), &fakePool{session: session}, nil, nil).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Data Engineer", jobs[0].Title)
}

func TestExtract_SolvesCaptchaBeforeReading(t *testing.T) {
	challengePage := `<form><div class="g-recaptcha" data-sitekey="site-key-1"></div><textarea name="g-recaptcha-response"></textarea></form>`
	session := &fakeSession{
		pages:    []string{challengePage, `<ul><li class="job"><a href="/jobs/3">Data Engineer II</a></li></ul>`},
		snapshot: `{"state":null,"cards":[{"title":"Data Engineer II","url":"https://acme.example/jobs/3"}]}`,
	}
	solver := &fakeSolver{}

	jobs, err := New(testConfig(), &fakePool{session: session}, nil, solver).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	assert.Equal(t, captcha.KindRecaptcha, solver.solved.Kind)
	assert.Equal(t, "site-key-1", solver.solved.SiteKey)
	require.Len(t, session.scripts, 1)
	assert.True(t, strings.Contains(session.scripts[0], `"tok-123"`))
}

func TestExtract_CaptchaWithoutSolverIsUnsupported(t *testing.T) {
	session := &fakeSession{pages: []string{`<div class="cf-turnstile" data-sitekey="k"></div>`}}

	_, err := New(testConfig(), &fakePool{session: session}, nil, nil).Extract(context.Background(), company)
	assert.Equal(t, utils.KindUnsupported, utils.KindOf(err))
}

func TestExtract_FallsBackToRenderer(t *testing.T) {
	renderer := &fakeRenderer{html: `<div class="job-card"><a href="/jobs/9"><h3>Security Analyst</h3></a><span class="location">Dublin</span></div>`}
	pool := &fakePool{err: utils.NewNetworkError(0, "failed to launch browser")}

	jobs, err := New(testConfig(), pool, renderer, nil).Extract(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, renderer.calls)
	assert.Equal(t, "Security Analyst", jobs[0].Title)
}

func TestExtract_NoJobs(t *testing.T) {
	session := &fakeSession{pages: []string{`<html><body><p>We are not hiring right now.</p></body></html>`}}

	_, err := New(testConfig(), &fakePool{session: session}, nil, nil).Extract(context.Background(), company)
	assert.Equal(t, utils.KindNoJobs, utils.KindOf(err))
}

func TestSupports(t *testing.T) {
	cfg := testConfig()
	assert.True(t, New(cfg, &fakePool{}, nil, nil).Supports(company))
	assert.False(t, New(cfg, &fakePool{}, nil, nil).Supports(&models.CompanyConfig{Name: "NoURL"}))

	cfg.Browser.Enabled = false
	assert.False(t, New(cfg, &fakePool{}, nil, nil).Supports(company))
	assert.True(t, New(cfg, nil, &fakeRenderer{}, nil).Supports(company))
}
