// Package fetcher is the bounded HTTP client shared by every HTTP-based strategy.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/pkg/utils"
)

// Limiter gates outbound requests; *workers.RateLimiter satisfies it
type Limiter interface {
	Wait(ctx context.Context, host string) error
	RecordSuccess(host string)
	RecordFailure(host string, err error)
}

// Options bound every request made through a Fetcher
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	CacheTTL  time.Duration
}

// Request describes one outbound call
type Request struct {
	Method  string
	URL     string
	Body    []byte
	Headers map[string]string
}

// Response is a fully-read, size-checked response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Fetcher performs size-bounded, rate-limited HTTP requests and classifies failures
type Fetcher struct {
	client  *http.Client
	limiter Limiter
	opts    Options
	logger  types.Logger
	cache   *pageCache
}

// New creates a fetcher from workers/scraper configuration
func New(cfg *config.Config, limiter Limiter) *Fetcher {
	return NewWithClient(&http.Client{}, limiter, Options{
		Timeout:   cfg.Workers.RequestTimeout,
		MaxBytes:  cfg.Scraper.MaxResponseBytes,
		UserAgent: cfg.Scraper.UserAgent,
		CacheTTL:  cfg.Scraper.PageCacheTTL,
	})
}

// NewWithClient allows tests to inject an http.Client; limiter may be nil
func NewWithClient(client *http.Client, limiter Limiter, opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	return &Fetcher{
		client:  client,
		limiter: limiter,
		opts:    opts,
		logger:  logging.Component("fetcher"),
		cache:   newPageCache(opts.CacheTTL, 128),
	}
}

// MaxBytes is the response ceiling enforced by this fetcher
func (f *Fetcher) MaxBytes() int64 {
	return f.opts.MaxBytes
}

// Do executes req under the per-request timeout. Non-2xx statuses are errors:
// 429 is a rate-limit error, everything else a network error carrying the status.
func (f *Fetcher) Do(ctx context.Context, req Request) (*Response, error) {
	host := utils.Hostname(req.URL)
	if host == "" {
		return nil, utils.NewNetworkError(0, fmt.Sprintf("invalid url %q", req.URL))
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, utils.NewNetworkError(0, "failed to build request").WithCause(err)
	}
	httpReq.Header.Set("User-Agent", f.opts.UserAgent)
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		classified := classifyTransportError(ctx, err)
		f.recordFailure(host, classified)
		return nil, classified
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, utils.NewRateLimitError(fmt.Sprintf("%s returned 429", host))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := utils.NewNetworkError(resp.StatusCode, fmt.Sprintf("%s %s returned %d", method, req.URL, resp.StatusCode))
		if resp.StatusCode >= 500 {
			f.recordFailure(host, statusErr)
		}
		return nil, statusErr
	}

	if resp.ContentLength > f.opts.MaxBytes {
		return nil, utils.NewOversizedError(f.opts.MaxBytes, fmt.Sprintf("declared content-length %d", resp.ContentLength))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		classified := classifyTransportError(ctx, err)
		f.recordFailure(host, classified)
		return nil, classified
	}
	if int64(len(data)) > f.opts.MaxBytes {
		return nil, utils.NewOversizedError(f.opts.MaxBytes, "body exceeded ceiling while reading")
	}

	if f.limiter != nil {
		f.limiter.RecordSuccess(host)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data, URL: resp.Request.URL.String()}, nil
}

// GetPage fetches an HTML page, sharing recent results between strategies of the same cascade
func (f *Fetcher) GetPage(ctx context.Context, pageURL string) (string, error) {
	if html, ok := f.cache.get(pageURL); ok {
		return html, nil
	}
	resp, err := f.Do(ctx, Request{URL: pageURL, Headers: map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}})
	if err != nil {
		return "", err
	}
	html := string(resp.Body)
	f.cache.put(pageURL, html)
	return html, nil
}

// GetJSON fetches url and decodes the body into out
func (f *Fetcher) GetJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := f.Do(ctx, Request{URL: url, Headers: map[string]string{"Accept": "application/json"}})
	if err != nil {
		return err
	}
	return decodeJSON(resp.Body, out)
}

// PostJSON sends payload as JSON and decodes the response into out
func (f *Fetcher) PostJSON(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return utils.NewParseError("failed to encode request body").WithCause(err)
	}
	resp, err := f.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     url,
		Body:    body,
		Headers: map[string]string{"Accept": "application/json", "Content-Type": "application/json"},
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp.Body, out)
}

// InvalidatePage drops a cached page
func (f *Fetcher) InvalidatePage(pageURL string) {
	f.cache.delete(pageURL)
}

func (f *Fetcher) recordFailure(host string, err error) {
	if f.limiter != nil {
		f.limiter.RecordFailure(host, err)
	}
	f.logger.Debug("Request failed", map[string]interface{}{"host": host, "error": err.Error()})
}

func decodeJSON(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return utils.NewParseError("invalid JSON response").WithCause(err)
	}
	return nil
}

func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return utils.NewTimeoutError("request timed out").WithCause(err)
	}
	return utils.NewNetworkError(0, strings.TrimSpace(err.Error())).WithCause(err)
}

// pageCache keeps recently fetched pages for a short TTL
type pageCache struct {
	ttl     time.Duration
	max     int
	mu      sync.Mutex
	entries map[string]cachedPage
}

type cachedPage struct {
	html      string
	fetchedAt time.Time
}

func newPageCache(ttl time.Duration, max int) *pageCache {
	return &pageCache{ttl: ttl, max: max, entries: make(map[string]cachedPage)}
}

func (c *pageCache) get(key string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.fetchedAt) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.html, true
}

func (c *pageCache) put(key, html string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if time.Since(e.fetchedAt) > c.ttl {
				delete(c.entries, k)
				continue
			}
			if oldestKey == "" || e.fetchedAt.Before(oldest) {
				oldestKey, oldest = k, e.fetchedAt
			}
		}
		if len(c.entries) >= c.max {
			delete(c.entries, oldestKey)
		}
	}
	c.entries[key] = cachedPage{html: html, fetchedAt: time.Now()}
}

func (c *pageCache) delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
