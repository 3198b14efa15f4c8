package headed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/pkg/utils"
)

// BrowserPool hands out isolated pages of a shared browser
type BrowserPool interface {
	Acquire(ctx context.Context) (Session, error)
	IsHealthy() bool
	Shutdown(ctx context.Context) error
}

// Session is one page; Release must always be called
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, selector string) error
	AutoScroll(ctx context.Context, steps int, delay time.Duration) error
	EvalJSON(ctx context.Context, js string, out interface{}) error
	HTML(ctx context.Context) (string, error)
	Release()
}

// RodPool launches one Chrome lazily and bounds the number of open pages
type RodPool struct {
	cfg      *config.Config
	launcher *launcher.Launcher
	slots    chan struct{}
	logger   types.Logger

	mu      sync.Mutex
	browser *rod.Browser

	pagesOpened atomic.Int64
	launchFails atomic.Int64
}

// NewRodPool prepares the launcher; Chrome starts on first Acquire
func NewRodPool(cfg *config.Config) *RodPool {
	logger := logging.Component("browser_pool")

	l := launcher.New().
		Headless(cfg.Browser.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("no-default-browser-check")

	if chromePath := systemChromePath(cfg.Browser.BinPath); chromePath != "" {
		l = l.Bin(chromePath)
		logger.Info("Using system Chrome browser", map[string]interface{}{"chrome_path": chromePath})
	} else {
		logger.Warn("System Chrome not found, Rod will download browser", nil)
	}
	if cfg.Scraper.UserAgent != "" {
		l = l.Set("user-agent", cfg.Scraper.UserAgent)
	}

	maxPages := cfg.Workers.MaxConcurrent
	if maxPages < 1 {
		maxPages = 1
	}
	return &RodPool{
		cfg:      cfg,
		launcher: l,
		slots:    make(chan struct{}, maxPages),
		logger:   logger,
	}
}

// Acquire waits for a page slot and opens a fresh (stealth) page
func (p *RodPool) Acquire(ctx context.Context) (Session, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, utils.NewTimeoutError("waiting for a browser page").WithCause(ctx.Err())
	}

	browser, err := p.ensureBrowser()
	if err != nil {
		<-p.slots
		return nil, err
	}

	page, err := p.newPage(browser)
	if err != nil {
		<-p.slots
		// the browser may have died; drop it so the next Acquire relaunches
		p.resetBrowser(browser)
		return nil, utils.NewNetworkError(0, "failed to open browser page").WithCause(err)
	}

	p.pagesOpened.Add(1)
	return &rodSession{page: page, release: func() { <-p.slots }}, nil
}

func (p *RodPool) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		return p.browser, nil
	}

	u, err := p.launcher.Launch()
	if err != nil {
		p.launchFails.Add(1)
		return nil, utils.NewConfigurationError("failed to launch browser").WithCause(err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		p.launchFails.Add(1)
		return nil, utils.NewNetworkError(0, "failed to connect to browser").WithCause(err)
	}

	p.browser = browser
	p.logger.Info("Browser launched", map[string]interface{}{"max_pages": cap(p.slots)})
	return browser, nil
}

func (p *RodPool) newPage(browser *rod.Browser) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if p.cfg.Browser.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, err
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1920, Height: 1080, DeviceScaleFactor: 1}); err != nil {
		p.logger.Warn("Failed to set viewport", map[string]interface{}{"error": err.Error()})
	}
	if p.cfg.Scraper.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: p.cfg.Scraper.UserAgent}); err != nil {
			p.logger.Warn("Failed to set user agent", map[string]interface{}{"error": err.Error()})
		}
	}
	return page, nil
}

func (p *RodPool) resetBrowser(broken *rod.Browser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser == broken {
		_ = broken.Close()
		p.browser = nil
	}
}

// IsHealthy is true before the first launch and while the launched browser answers
func (p *RodPool) IsHealthy() bool {
	p.mu.Lock()
	browser := p.browser
	p.mu.Unlock()

	if browser == nil {
		return p.launchFails.Load() == 0
	}
	_, err := browser.Pages()
	return err == nil
}

// Stats reports page usage
func (p *RodPool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"pages_opened": p.pagesOpened.Load(),
		"pages_open":   len(p.slots),
		"max_pages":    cap(p.slots),
		"launch_fails": p.launchFails.Load(),
	}
}

// Shutdown closes the browser and removes the launcher's user data
func (p *RodPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.browser != nil {
		err = p.browser.Close()
		p.browser = nil
	}
	p.launcher.Cleanup()
	p.logger.Info("Browser pool shut down", nil)
	return err
}

type rodSession struct {
	page    *rod.Page
	release func()
	once    sync.Once
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return classify(ctx, "navigation failed", err)
	}
	if err := page.WaitLoad(); err != nil {
		return classify(ctx, "page did not finish loading", err)
	}
	return nil
}

func (s *rodSession) WaitForSelector(ctx context.Context, selector string) error {
	if _, err := s.page.Context(ctx).Element(selector); err != nil {
		return classify(ctx, fmt.Sprintf("selector %q not found", selector), err)
	}
	return nil
}

func (s *rodSession) AutoScroll(ctx context.Context, steps int, delay time.Duration) error {
	for i := 0; i < steps; i++ {
		if _, err := s.page.Context(ctx).Eval(`() => window.scrollBy(0, window.innerHeight)`); err != nil {
			return classify(ctx, "scroll failed", err)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return utils.NewTimeoutError("scrolling interrupted").WithCause(ctx.Err())
		}
	}
	return nil
}

// EvalJSON runs a function expression that returns a JSON string and decodes it into out
func (s *rodSession) EvalJSON(ctx context.Context, js string, out interface{}) error {
	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return classify(ctx, "script evaluation failed", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), out); err != nil {
		return utils.NewParseError("script returned invalid JSON").WithCause(err)
	}
	return nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", classify(ctx, "failed to get page HTML", err)
	}
	return html, nil
}

func (s *rodSession) Release() {
	s.once.Do(func() {
		_ = s.page.Close()
		s.release()
	})
}

func classify(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return utils.NewTimeoutError(msg).WithCause(err)
	}
	return utils.NewNetworkError(0, msg).WithCause(err)
}

// systemChromePath prefers browser.bin_path, then CHROME_BIN, then common install locations
func systemChromePath(configured string) string {
	candidates := []string{configured, os.Getenv("CHROME_BIN"), os.Getenv("CHROME_PATH")}
	candidates = append(candidates,
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/opt/google/chrome/chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	)
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
