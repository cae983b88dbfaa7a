package detectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// maxErrorBody caps how much of an upstream error body ends up in messages.
const maxErrorBody = 512

// httpCaller posts JSON to a provider and decodes the JSON reply, retrying
// rate limits and 5xx responses with a Fibonacci backoff.
type httpCaller struct {
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration
}

func newHTTPCaller(cfg Config) *httpCaller {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &httpCaller{
		client:      client,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.RetryBackoff,
	}
}

func (c *httpCaller) postJSON(ctx context.Context, url string, headers map[string]string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	base := c.backoffBase
	if base <= 0 {
		base = DefaultRetryBackoff
	}

	backoff := retry.WithMaxRetries(uint64(max(c.maxRetries, 0)), retry.NewFibonacci(base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.postOnce(ctx, url, headers, payload, out)

		var de *Error
		if errors.As(err, &de) && de.retryable() {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *httpCaller) postOnce(ctx context.Context, url string, headers map[string]string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return newError(KindTimeout, err)
		}
		return newError(KindUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return newError(KindTimeout, err)
		}
		return malformed("decoding response body: %v", err)
	}

	return nil
}
