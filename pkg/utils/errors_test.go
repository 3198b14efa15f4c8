package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("strategy ats: %w", NewRateLimitError("429 from vendor"))

	assert.Equal(t, KindRateLimit, KindOf(wrapped))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("fetch: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindNetwork, KindOf(errors.New("connection reset")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNetworkError(0, "dial tcp: connection refused")))
	assert.True(t, IsRetryable(NewNetworkError(http.StatusBadGateway, "502")))
	assert.True(t, IsRetryable(NewTimeoutError("deadline")))

	assert.False(t, IsRetryable(NewNetworkError(http.StatusNotFound, "404")))
	assert.False(t, IsRetryable(NewOversizedError(1024, "content-length 4096")))
	assert.False(t, IsRetryable(NewNoJobsError("empty board")))
	assert.False(t, IsRetryable(NewParseError("bad json")))
	assert.False(t, IsRetryable(NewRateLimitError("429")))
}

func TestScrapeError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNoJobsError("nothing on page"))
	assert.True(t, errors.Is(err, &ScrapeError{Kind: KindNoJobs}))
	assert.False(t, errors.Is(err, &ScrapeError{Kind: KindParse}))
}

func TestResolveURLAndTruncate(t *testing.T) {
	assert.Equal(t, "https://acme.com/jobs/42", ResolveURL("https://acme.com/careers/", "/jobs/42"))
	assert.Equal(t, "https://acme.com/careers/42", ResolveURL("https://acme.com/careers/", "42"))
	assert.Equal(t, "https://other.io/x", ResolveURL("https://acme.com/", "https://other.io/x"))
	assert.Equal(t, "", ResolveURL("https://acme.com/", "  "))

	assert.Equal(t, "héll", Truncate("héllo", 5))
	assert.Equal(t, "h", Truncate("héllo", 2))
}
