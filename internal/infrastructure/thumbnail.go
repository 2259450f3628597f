package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxThumbnailBytes caps what a thumbnail response may return
const maxThumbnailBytes = 5 << 20

// HTTPThumbnailFetcher downloads thumbnails with a bounded wait
type HTTPThumbnailFetcher struct {
	client *http.Client
}

// NewHTTPThumbnailFetcher creates a fetcher whose requests give up after timeout
func NewHTTPThumbnailFetcher(timeout time.Duration) *HTTPThumbnailFetcher {
	return &HTTPThumbnailFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the image bytes at url
func (f *HTTPThumbnailFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnail request failed: %s", resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
}
