// Package captcha detects challenge widgets on rendered pages and solves them through 2Captcha.
package captcha

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2captcha/2captcha-go"
	"github.com/PuerkitoBio/goquery"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/pkg/utils"
)

// Challenge kinds
const (
	KindRecaptcha = "recaptcha"
	KindTurnstile = "turnstile"
)

// Challenge is a captcha widget found on a page
type Challenge struct {
	Kind    string
	SiteKey string
}

// Detect looks for reCAPTCHA and Turnstile widgets carrying a data-sitekey
func Detect(html string) (Challenge, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Challenge{}, false
	}

	var found Challenge
	doc.Find("[data-sitekey]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		key, _ := s.Attr("data-sitekey")
		if key == "" {
			return true
		}
		class, _ := s.Attr("class")
		found = Challenge{Kind: KindRecaptcha, SiteKey: key}
		if strings.Contains(class, "cf-turnstile") {
			found.Kind = KindTurnstile
		}
		return false
	})
	if found.SiteKey == "" && doc.Find(`iframe[src*="challenges.cloudflare.com"]`).Length() > 0 {
		return Challenge{Kind: KindTurnstile}, true
	}
	return found, found.SiteKey != ""
}

// Solver turns a challenge into a response token
type Solver interface {
	Enabled() bool
	Solve(ctx context.Context, challenge Challenge, pageURL string) (string, error)
}

// TwoCaptchaSolver implements Solver with the 2Captcha service
type TwoCaptchaSolver struct {
	enabled bool
	client  *api2captcha.Client
	logger  types.Logger
}

// NewTwoCaptchaSolver creates a solver from captcha.* settings
func NewTwoCaptchaSolver(cfg *config.Config) *TwoCaptchaSolver {
	logger := logging.Component("2captcha")

	client := api2captcha.NewClient(cfg.Captcha.APIKey)
	client.DefaultTimeout = int(cfg.Captcha.Timeout.Seconds())
	client.RecaptchaTimeout = int(cfg.Captcha.Timeout.Seconds())
	client.PollingInterval = 5

	enabled := cfg.Captcha.Enabled && cfg.Captcha.APIKey != ""
	if cfg.Captcha.Enabled && !enabled {
		logger.Warn("Captcha solving enabled without an API key - solving disabled", nil)
	}

	return &TwoCaptchaSolver{enabled: enabled, client: client, logger: logger}
}

func (s *TwoCaptchaSolver) Enabled() bool { return s.enabled }

// Solve submits the challenge and waits for the token or ctx, whichever comes first
func (s *TwoCaptchaSolver) Solve(ctx context.Context, challenge Challenge, pageURL string) (string, error) {
	if !s.enabled {
		return "", utils.NewConfigurationError("captcha solving is disabled")
	}
	if challenge.SiteKey == "" {
		return "", utils.NewUnsupportedError("captcha challenge has no site key")
	}

	var req api2captcha.Request
	switch challenge.Kind {
	case KindTurnstile:
		turnstile := api2captcha.CloudflareTurnstile{SiteKey: challenge.SiteKey, Url: pageURL}
		req = turnstile.ToRequest()
	default:
		recaptcha := api2captcha.ReCaptcha{SiteKey: challenge.SiteKey, Url: pageURL}
		req = recaptcha.ToRequest()
	}

	type result struct {
		code string
		id   string
		err  error
	}
	done := make(chan result, 1)
	started := time.Now()
	go func() {
		code, id, err := s.client.Solve(req)
		done <- result{code, id, err}
	}()

	select {
	case <-ctx.Done():
		return "", utils.NewTimeoutError("captcha solving cancelled").WithCause(ctx.Err())
	case r := <-done:
		if r.err != nil {
			s.logger.Warn("Captcha solving failed", map[string]interface{}{
				"kind":       challenge.Kind,
				"page_url":   pageURL,
				"captcha_id": r.id,
				"error":      r.err.Error(),
			})
			return "", utils.NewNetworkError(0, fmt.Sprintf("failed to solve %s", challenge.Kind)).WithCause(r.err)
		}
		s.logger.Info("Captcha solved", map[string]interface{}{
			"kind":         challenge.Kind,
			"page_url":     pageURL,
			"solving_time": time.Since(started).String(),
		})
		return r.code, nil
	}
}
