// Package blob downloads document bytes from their stored locations.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxFetchSize caps downloads at 50 MiB. Documents above this are
// rejected rather than buffered into memory.
const DefaultMaxFetchSize = 50 << 20

// HTTPFetcher downloads documents over HTTP(S).
type HTTPFetcher struct {
	client  *http.Client
	maxSize int64
}

// NewHTTPFetcher creates a new HTTPFetcher instance
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		maxSize: DefaultMaxFetchSize,
	}
}

// Fetch downloads the document at url. Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("document at %s exceeds %d byte limit", url, f.maxSize)
	}

	return data, nil
}
