package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/curbwatch/curbwatch/internal/log"
	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/pkg/config"
)

// StopClient fetches transit stops from a BusTime-style stops-for-location
// endpoint.  The query area (center + radius) covers the whole camera
// deployment and comes from configuration.
type StopClient struct {
	cfg    config.StopDirectoryData
	client *http.Client
}

type stopsForLocationResponse struct {
	Code int    `json:"code"`
	Text string `json:"text"`
	Data struct {
		Stops []stopRecord `json:"stops"`
	} `json:"data"`
}

type stopRecord struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// NewStopClient creates a stop directory client
func NewStopClient(cfg config.StopDirectoryData) *StopClient {
	return &StopClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout.Duration},
	}
}

// ListStops returns the stops within the configured coverage area.  A
// rejected API key returns ErrUnauthorized; this is the one upstream failure
// that needs operator action rather than silent degradation.
func (s *StopClient) ListStops(ctx context.Context) ([]types.Stop, error) {
	v := url.Values{}
	v.Set("key", s.cfg.APIKey)
	v.Set("lat", strconv.FormatFloat(s.cfg.Latitude, 'f', 6, 64))
	v.Set("lon", strconv.FormatFloat(s.cfg.Longitude, 'f', 6, 64))
	v.Set("radius", strconv.FormatFloat(s.cfg.RadiusMeters, 'f', 0, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"?"+v.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating stop directory request: %v", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: stop directory: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: stop directory returned %s", ErrUnauthorized, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: stop directory returned %s", ErrUnavailable, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading stop directory response: %v", ErrUnavailable, err)
	}

	response := &stopsForLocationResponse{}
	if err := json.Unmarshal(body, response); err != nil {
		return nil, fmt.Errorf("%w: decoding stop directory response: %v", ErrUnavailable, err)
	}

	// BusTime reports auth failures inside a 200 body.
	if response.Code == http.StatusUnauthorized || response.Code == http.StatusForbidden {
		return nil, fmt.Errorf("%w: stop directory response code %d: %s", ErrUnauthorized, response.Code, response.Text)
	}

	stops := make([]types.Stop, 0, len(response.Data.Stops))
	for _, rec := range response.Data.Stops {
		stops = append(stops, types.Stop{
			ID:       rec.ID,
			Name:     rec.Name,
			Location: types.Location{Latitude: rec.Lat, Longitude: rec.Lon},
		})
	}

	log.Debugf("stop directory returned %d stops", len(stops))
	return stops, nil
}
