// Package firecrawl renders pages through the Firecrawl API when no local browser can.
package firecrawl

import (
	"context"
	"time"

	"github.com/mendableai/firecrawl-go"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/pkg/utils"
)

// Renderer returns the post-JavaScript HTML of a page
type Renderer struct {
	app    *firecrawl.FirecrawlApp
	logger types.Logger
}

// NewRenderer creates a renderer; without firecrawl.api_key it is disabled
func NewRenderer(cfg *config.Config) *Renderer {
	logger := logging.Component("firecrawl")
	r := &Renderer{logger: logger}
	if cfg.Firecrawl.APIKey == "" {
		return r
	}

	app, err := firecrawl.NewFirecrawlApp(cfg.Firecrawl.APIKey, cfg.Firecrawl.APIURL)
	if err != nil {
		logger.Error("Failed to initialize Firecrawl", map[string]interface{}{"error": err.Error()})
		return r
	}
	r.app = app
	logger.Info("Firecrawl renderer initialized", map[string]interface{}{"api_url": cfg.Firecrawl.APIURL})
	return r
}

// Enabled reports whether an API key was configured
func (r *Renderer) Enabled() bool {
	return r != nil && r.app != nil
}

// Render scrapes url in html format. The SDK call is not cancellable, so ctx only bounds the wait.
func (r *Renderer) Render(ctx context.Context, url string) (string, error) {
	if !r.Enabled() {
		return "", utils.NewConfigurationError("firecrawl is not configured")
	}

	type result struct {
		doc *firecrawl.FirecrawlDocument
		err error
	}
	done := make(chan result, 1)
	started := time.Now()
	go func() {
		doc, err := r.app.ScrapeURL(url, &firecrawl.ScrapeParams{Formats: []string{"html"}})
		done <- result{doc, err}
	}()

	select {
	case <-ctx.Done():
		return "", utils.NewTimeoutError("firecrawl render timed out").WithCause(ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", utils.NewNetworkError(0, "firecrawl scrape failed").WithCause(res.err)
		}
		if res.doc == nil || res.doc.HTML == "" {
			return "", utils.NewParseError("firecrawl returned no HTML")
		}
		r.logger.Debug("Rendered page with Firecrawl", map[string]interface{}{
			"url":            url,
			"content_length": len(res.doc.HTML),
			"duration":       time.Since(started).String(),
		})
		return res.doc.HTML, nil
	}
}
