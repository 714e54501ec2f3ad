package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/curbwatch/curbwatch/internal/log"
	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/pkg/config"
)

// PlowClient fetches recent plow passes from a Socrata-style open-data
// endpoint.  Plow data is best effort; the pipeline logs failures here and
// classifies without it.
type PlowClient struct {
	cfg    config.PlowDirectoryData
	client *http.Client
}

// Socrata serves every field as a string.
type plowRecord struct {
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	LastVisited string `json:"last_visited"`
}

// NewPlowClient creates a plow activity client
func NewPlowClient(cfg config.PlowDirectoryData) *PlowClient {
	return &PlowClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout.Duration},
	}
}

// RecentPasses returns plow passes at or after since, most recent first.
// Records with unparseable fields are skipped.
func (p *PlowClient) RecentPasses(ctx context.Context, since time.Time) ([]types.PlowPass, error) {
	v := url.Values{}
	v.Set("$limit", strconv.Itoa(p.cfg.Limit))
	v.Set("$order", "last_visited DESC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"?"+v.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating plow activity request: %v", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: plow activity: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: plow activity returned %s", ErrUnavailable, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading plow activity response: %v", ErrUnavailable, err)
	}

	var records []plowRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: decoding plow activity response: %v", ErrUnavailable, err)
	}

	passes := make([]types.PlowPass, 0, len(records))
	for _, rec := range records {
		lat, latErr := strconv.ParseFloat(rec.Latitude, 64)
		lon, lonErr := strconv.ParseFloat(rec.Longitude, 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		passedAt, err := parseSocrataTime(rec.LastVisited)
		if err != nil {
			continue
		}
		if passedAt.Before(since) {
			continue
		}

		passes = append(passes, types.PlowPass{
			Location: types.Location{Latitude: lat, Longitude: lon},
			PassedAt: passedAt,
		})
	}

	log.Debugf("plow activity returned %d passes (%d usable since %s)",
		len(records), len(passes), since.Format(time.RFC3339))
	return passes, nil
}

// parseSocrataTime handles the floating timestamp format Socrata emits, with
// and without fractional seconds.
func parseSocrataTime(raw string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
