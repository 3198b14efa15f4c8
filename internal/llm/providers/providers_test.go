package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest-engine/internal/config"
	"harvest-engine/pkg/utils"
)

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.LLM.Timeout = 5 * time.Second
	cfg.LLM.Groq.APIKey = "test-key"
	cfg.LLM.Groq.BaseURL = url
	cfg.LLM.Ollama.BaseURL = url
	return cfg
}

func TestGroq_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req groqRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		assert.Len(t, req.Messages, 2)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"jobs\":[]}"}}]}`))
	}))
	defer srv.Close()

	reply, err := NewGroqProvider(testConfig(srv.URL)).Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"jobs":[]}`, reply)
}

func TestGroq_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGroqProvider(testConfig(srv.URL)).Complete(context.Background(), "s", "u")
	assert.Equal(t, utils.KindRateLimit, utils.KindOf(err))
}

func TestGroq_NotConfigured(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.LLM.Groq.APIKey = ""
	p := NewGroqProvider(cfg)
	assert.False(t, p.IsConfigured())
	_, err := p.Complete(context.Background(), "s", "u")
	assert.Equal(t, utils.KindConfiguration, utils.KindOf(err))
}

func TestOllama_CompleteAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/chat":
			var req ollamaRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "json", req.Format)
			assert.False(t, req.Stream)
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"jobs\":[]}"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(testConfig(srv.URL))
	require.NoError(t, p.IsHealthy(context.Background()))
	reply, err := p.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, `{"jobs":[]}`, reply)
}

func TestClaude_NotConfigured(t *testing.T) {
	p := NewClaudeProvider(testConfig("http://unused"))
	assert.False(t, p.IsConfigured())
	assert.Equal(t, utils.KindConfiguration, utils.KindOf(p.IsHealthy(context.Background())))
}
