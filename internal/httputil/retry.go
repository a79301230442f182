package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NoRetry performs exactly one attempt. The feed clients use it by default;
// callers opt into retries through configuration.
var NoRetry = RetryConfig{MaxAttempts: 1}

// Do executes an HTTP request, retrying transport errors and 5xx responses
// with exponential backoff. The buildReq function is called on each attempt
// to produce a fresh request.
//
// The final attempt is returned as-is: a 5xx response comes back with a nil
// error and an unread body so the caller can classify the status itself.
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, log zerolog.Logger, buildReq func() (*http.Request, error)) (*http.Response, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = NoRetry.MaxAttempts
	}

	delay := cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if attempt >= cfg.MaxAttempts || (err == nil && resp.StatusCode < 500) {
			return resp, err
		}

		var lastErr error
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}

		log.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("retry_in", delay).
			Str("url", req.URL.Redacted()).
			Msg("request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
