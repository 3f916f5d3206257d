package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/siftnews/sift/internal/logging"
)

// postWithRetry executes a JSON POST with retry logic for transient
// errors. Retries up to 3 times on network failure, HTTP 429 or 5xx with
// exponential backoff (1s, 2s, 4s). Honors the Retry-After header on 429
// responses, capped at 30s. Response bodies are capped at 1 MiB.
func postWithRetry(ctx context.Context, client *http.Client, url string, headers map[string]string, jsonBody []byte) ([]byte, error) {
	maxRetries := 3
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoffs[attempt]):
				}
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoffs[attempt]):
				}
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		// Retry on 429 (rate limited) or 5xx (server error).
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))

			if attempt < maxRetries {
				delay := backoffs[attempt]

				if resp.StatusCode == http.StatusTooManyRequests {
					if ra := resp.Header.Get("Retry-After"); ra != "" {
						if seconds, parseErr := strconv.Atoi(ra); parseErr == nil && seconds > 0 {
							delay = time.Duration(seconds) * time.Second
							if delay > 30*time.Second {
								delay = 30 * time.Second
							}
						}
					}
				}

				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}

		// Non-retryable error (e.g. 400, 401, 403).
		logging.Error("API error", "url", url, "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}
