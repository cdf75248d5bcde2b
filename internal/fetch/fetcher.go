// Package fetch retrieves remote media assets over HTTP(S) and persists them
// to local files. A fetch succeeds only when the server answered 2xx and the
// resulting file is non-empty; anything else is reported as an Error with
// enough context to diagnose without retrying.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const maxErrorBodyBytes = 4096

// Error describes a failed asset fetch.
type Error struct {
	URL        string
	StatusCode int // 0 when the failure happened before a response arrived
	Reason     string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

// Fetcher retrieves a single remote asset to a destination path.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

// HTTPFetcher is the production Fetcher. Each fetch is bounded by a
// per-request timeout; the response body is streamed to disk rather than
// buffered in memory.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewHTTPFetcher(timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{URL: url, Reason: err.Error()}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return &Error{URL: url, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &Error{URL: url, StatusCode: resp.StatusCode, Reason: string(body)}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return &Error{URL: url, Reason: fmt.Sprintf("cannot create destination dir: %v", err)}
	}

	file, err := os.Create(destPath)
	if err != nil {
		return &Error{URL: url, Reason: fmt.Sprintf("cannot create %s: %v", destPath, err)}
	}

	written, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		return &Error{URL: url, Reason: fmt.Sprintf("write body: %v", copyErr)}
	}
	if closeErr != nil {
		return &Error{URL: url, Reason: fmt.Sprintf("close %s: %v", destPath, closeErr)}
	}

	// A 2xx with an empty body is still a failed fetch: the caller must never
	// feed a zero-length clip to the concatenation step.
	if written == 0 {
		return &Error{URL: url, StatusCode: resp.StatusCode, Reason: "downloaded file is empty"}
	}

	if f.logger != nil {
		f.logger.Debug("asset fetched",
			"url", url,
			"bytes", written,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return nil
}
