// Package imagery fetches still frames from camera image URLs.
package imagery

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/curbwatch/curbwatch/pkg/config"
)

// Fetcher retrieves camera frames over HTTP.  Every fetch carries its own
// timeout so one stalled camera cannot hold up the rest of the cycle.
type Fetcher struct {
	cfg    config.ImageryData
	client *http.Client
}

// NewFetcher creates an image fetcher
func NewFetcher(cfg config.ImageryData) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout.Duration},
	}
}

// Fetch returns the raw image bytes for the given URL.  Timeouts and HTTP
// errors are reported as plain errors; the caller treats any failure here the
// same way it treats an undecodable image.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout.Duration)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating image request: %v", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading image body: %v", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image fetch returned empty body")
	}

	return data, nil
}
