// Package headed drives a real browser for career pages that only render with JavaScript.
package headed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/internal/normalize"
	"harvest-engine/internal/scraper/captcha"
	"harvest-engine/internal/scraper/engines/embedded"
	"harvest-engine/internal/scraper/engines/pattern"
	"harvest-engine/internal/scraper/engines/structured"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// Renderer fetches post-JavaScript HTML from a remote service
type Renderer interface {
	Enabled() bool
	Render(ctx context.Context, url string) (string, error)
}

// snapshotScript reads framework state off window and sweeps job-like cards out of the live DOM
const snapshotScript = `() => {
  const pick = () => {
    try {
      if (window.__NEXT_DATA__) return window.__NEXT_DATA__.props || window.__NEXT_DATA__;
      if (window.__NUXT__) return window.__NUXT__;
      if (window.__INITIAL_STATE__) return window.__INITIAL_STATE__;
      if (window.__PRELOADED_STATE__) return window.__PRELOADED_STATE__;
      if (window.__APOLLO_STATE__) return window.__APOLLO_STATE__;
    } catch (e) {}
    return null;
  };
  const cards = [];
  const seen = new Set();
  const selectors = ['[class*="job"] a', '[class*="position"] a', '[class*="opening"] a', '[data-testid*="job"] a', 'li a[href*="job"]', 'a[href*="/jobs/"]', 'a[href*="/careers/"]'];
  for (const sel of selectors) {
    document.querySelectorAll(sel).forEach((a) => {
      const title = (a.innerText || '').trim().split('\n')[0];
      if (!title || title.length < 5 || title.length > 150 || seen.has(a.href)) return;
      seen.add(a.href);
      const card = a.closest('li, article, tr, [class*="job"], [class*="position"]');
      const loc = card && card.querySelector('[class*="location"]');
      cards.push({title: title, url: a.href, location: loc ? loc.innerText.trim() : ''});
    });
  }
  let state = null;
  try { state = JSON.parse(JSON.stringify(pick())); } catch (e) {}
  return JSON.stringify({state: state, cards: cards});
}`

type snapshot struct {
	State interface{} `json:"state"`
	Cards []struct {
		Title    string `json:"title"`
		URL      string `json:"url"`
		Location string `json:"location"`
	} `json:"cards"`
}

// Extractor is the last-resort strategy: render, wait, scroll, then read the page every way the cheaper strategies do
type Extractor struct {
	cfg        *config.Config
	pool       BrowserPool
	renderer   Renderer
	solver     captcha.Solver
	structured *structured.Extractor
	embedded   *embedded.Extractor
	pattern    *pattern.Extractor
	logger     types.Logger
	now        func() time.Time
}

// New creates the headless strategy. pool, renderer and solver may each be nil.
func New(cfg *config.Config, pool BrowserPool, renderer Renderer, solver captcha.Solver) *Extractor {
	return &Extractor{
		cfg:        cfg,
		pool:       pool,
		renderer:   renderer,
		solver:     solver,
		structured: structured.New(nil),
		embedded:   embedded.New(nil, cfg.Scraper.EmbeddedMaxDepth),
		pattern:    pattern.New(nil, cfg.Scraper.MaxPatternJobs),
		logger:     logging.Component("headless_extractor"),
		now:        time.Now,
	}
}

func (e *Extractor) Name() string { return config.StrategyBrowser }

func (e *Extractor) Supports(company *models.CompanyConfig) bool {
	if company.CareerPageURL == "" {
		return false
	}
	return e.browserEnabled() || e.rendererEnabled()
}

func (e *Extractor) browserEnabled() bool {
	return e.cfg.Browser.Enabled && e.pool != nil
}

func (e *Extractor) rendererEnabled() bool {
	return e.renderer != nil && e.renderer.Enabled()
}

func (e *Extractor) Extract(ctx context.Context, company *models.CompanyConfig) ([]models.ScrapedJob, error) {
	var (
		raws []normalize.RawJob
		err  error
	)
	if e.browserEnabled() {
		raws, err = e.viaBrowser(ctx, company)
	} else {
		err = utils.NewUnsupportedError("local browser disabled")
	}

	if err != nil && utils.KindOf(err) != utils.KindNoJobs && e.rendererEnabled() && ctx.Err() == nil {
		e.logger.Info("Browser failed, rendering through Firecrawl", map[string]interface{}{
			"company": company.Name,
			"error":   err.Error(),
		})
		html, rerr := e.renderer.Render(ctx, company.CareerPageURL)
		if rerr != nil {
			return nil, rerr
		}
		raws, err = e.fromRendered(html, snapshot{}, company), nil
	}
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, utils.NewNoJobsError("rendered page contained no jobs")
	}

	now := e.now()
	jobs := make([]models.ScrapedJob, 0, len(raws))
	for _, raw := range raws {
		jobs = append(jobs, normalize.Build(company, raw, models.MethodHeadless, now))
	}
	return jobs, nil
}

func (e *Extractor) viaBrowser(ctx context.Context, company *models.CompanyConfig) ([]normalize.RawJob, error) {
	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Release()

	navCtx, cancel := context.WithTimeout(ctx, e.navigationTimeout())
	err = session.Navigate(navCtx, company.CareerPageURL)
	cancel()
	if err != nil {
		return nil, err
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if challenge, found := captcha.Detect(html); found {
		if err := e.solveChallenge(ctx, session, challenge, company.CareerPageURL); err != nil {
			return nil, err
		}
	}

	sc := company.ScrapeConfig
	if sc.WaitForSelector != "" {
		if err := session.WaitForSelector(ctx, sc.WaitForSelector); err != nil {
			// the selector is a hint; whatever rendered is still worth reading
			e.logger.Warn("Wait selector never appeared", map[string]interface{}{
				"company":  company.Name,
				"selector": sc.WaitForSelector,
				"error":    err.Error(),
			})
		}
	} else if err := sleep(ctx, e.settleTime(sc)); err != nil {
		return nil, err
	}

	if sc.AutoScroll {
		if err := session.AutoScroll(ctx, e.cfg.Browser.ScrollSteps, e.cfg.Browser.ScrollDelay); err != nil {
			return nil, err
		}
	}

	var snap snapshot
	if err := session.EvalJSON(ctx, snapshotScript, &snap); err != nil {
		e.logger.Debug("Page snapshot failed", map[string]interface{}{"company": company.Name, "error": err.Error()})
	}

	html, err = session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Page rendered", map[string]interface{}{
		"company": company.Name,
		"sources": describeSources(html, snap),
		"bytes":   len(html),
	})
	return e.fromRendered(html, snap, company), nil
}

// fromRendered tries the richest source first and stops at the first that yields jobs
func (e *Extractor) fromRendered(html string, snap snapshot, company *models.CompanyConfig) []normalize.RawJob {
	if raws, err := e.structured.ExtractFromHTML(html); err == nil && len(raws) > 0 {
		return raws
	}
	if snap.State != nil {
		if raws := e.embedded.FromState(snap.State); len(raws) > 0 {
			return raws
		}
	}
	if raws := e.fromCards(snap); len(raws) > 0 {
		return raws
	}
	if raws := e.embedded.ExtractFromHTML(html); len(raws) > 0 {
		return raws
	}
	raws, err := e.pattern.ExtractFromHTML(html, company.CareerPageURL, company.ScrapeConfig.Selectors)
	if err != nil {
		e.logger.Debug("Pattern sweep of rendered page failed", map[string]interface{}{"error": err.Error()})
	}
	return raws
}

func (e *Extractor) fromCards(snap snapshot) []normalize.RawJob {
	max := e.cfg.Scraper.MaxPatternJobs
	var raws []normalize.RawJob
	for _, card := range snap.Cards {
		if max > 0 && len(raws) >= max {
			break
		}
		title := normalize.CleanText(card.Title)
		if !pattern.PlausibleTitle(title) {
			continue
		}
		raws = append(raws, normalize.RawJob{Title: title, URL: card.URL, Location: card.Location})
	}
	return raws
}

func (e *Extractor) solveChallenge(ctx context.Context, session Session, challenge captcha.Challenge, pageURL string) error {
	if e.solver == nil || !e.solver.Enabled() {
		return utils.NewUnsupportedError(fmt.Sprintf("page is behind a %s challenge and no solver is configured", challenge.Kind))
	}

	token, err := e.solver.Solve(ctx, challenge, pageURL)
	if err != nil {
		return err
	}
	if err := session.EvalJSON(ctx, injectTokenScript(challenge.Kind, token), nil); err != nil {
		return err
	}
	e.logger.Info("Captcha solved", map[string]interface{}{"kind": challenge.Kind, "url": pageURL})

	return sleep(ctx, e.cfg.Browser.DefaultWait)
}

// injectTokenScript fills the widget's response field and submits the enclosing form, if any
func injectTokenScript(kind, token string) string {
	field := "g-recaptcha-response"
	if kind == captcha.KindTurnstile {
		field = "cf-turnstile-response"
	}
	quoted, _ := json.Marshal(token)
	return fmt.Sprintf(`() => {
  const token = %s;
  document.querySelectorAll('[name="%s"], #%s').forEach((el) => { el.value = token; el.innerHTML = token; });
  const form = document.querySelector('[name="%s"]')?.closest('form');
  if (form) form.submit();
  return "null";
}`, quoted, field, field, field)
}

func (e *Extractor) navigationTimeout() time.Duration {
	if e.cfg.Browser.NavigationTimeout > 0 {
		return e.cfg.Browser.NavigationTimeout
	}
	return 45 * time.Second
}

func (e *Extractor) settleTime(sc models.ScrapeConfig) time.Duration {
	if sc.WaitMs > 0 {
		return time.Duration(sc.WaitMs) * time.Millisecond
	}
	return e.cfg.Browser.DefaultWait
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return utils.NewTimeoutError("interrupted while waiting for page").WithCause(ctx.Err())
	}
}

// describeSources is used in debug logs to show what a rendered page exposed
func describeSources(html string, snap snapshot) string {
	var parts []string
	if strings.Contains(html, "application/ld+json") {
		parts = append(parts, "jsonld")
	}
	if snap.State != nil {
		parts = append(parts, "state")
	}
	if len(snap.Cards) > 0 {
		parts = append(parts, fmt.Sprintf("cards=%d", len(snap.Cards)))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
