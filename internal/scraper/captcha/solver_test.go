package captcha

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"harvest-engine/internal/config"
	"harvest-engine/pkg/utils"
)

func TestDetect(t *testing.T) {
	ch, ok := Detect(`<form><div class="g-recaptcha" data-sitekey="6Lc-key"></div></form>`)
	assert.True(t, ok)
	assert.Equal(t, Challenge{Kind: KindRecaptcha, SiteKey: "6Lc-key"}, ch)

	ch, ok = Detect(`<div class="cf-turnstile" data-sitekey="0x4AAA"></div>`)
	assert.True(t, ok)
	assert.Equal(t, KindTurnstile, ch.Kind)

	_, ok = Detect(`<ul><li>Backend Engineer</li></ul>`)
	assert.False(t, ok)
}

func TestSolver_DisabledWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.Captcha.Enabled = true

	s := NewTwoCaptchaSolver(cfg)
	assert.False(t, s.Enabled())
	_, err := s.Solve(context.Background(), Challenge{Kind: KindRecaptcha, SiteKey: "k"}, "https://acme.example")
	assert.Equal(t, utils.KindConfiguration, utils.KindOf(err))
}
