package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"harvest-engine/pkg/utils"
)

// maxReplyBytes bounds provider responses
const maxReplyBytes = 4 << 20

// postJSON sends payload and decodes a 2xx reply into out. 429 becomes a rate-limit error.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return utils.NewInternalServerError("failed to encode LLM request").WithCause(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return utils.NewConfigurationError("invalid LLM endpoint").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(ctx, client, req, out)
}

func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return utils.NewConfigurationError("invalid LLM endpoint").WithCause(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(ctx, client, req, out)
}

func do(ctx context.Context, client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return utils.NewTimeoutError("LLM request timed out").WithCause(err)
		}
		return utils.NewNetworkError(0, "LLM request failed").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return utils.NewNetworkError(0, "failed to read LLM response").WithCause(err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return utils.NewRateLimitError(fmt.Sprintf("%s returned 429", req.URL.Host))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return utils.NewNetworkError(resp.StatusCode, fmt.Sprintf("LLM API returned %d: %s", resp.StatusCode, utils.Truncate(string(data), 240)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return utils.NewParseError("invalid LLM API response").WithCause(err)
	}
	return nil
}
