package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/curbwatch/curbwatch/internal/log"
	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/pkg/config"
)

// CameraClient fetches the camera directory (NYCTMC-style JSON array).
type CameraClient struct {
	cfg    config.CameraDirectoryData
	client *http.Client
}

type cameraRecord struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ImageURL  string  `json:"imageUrl"`
	IsOnline  string  `json:"isOnline"`
}

// NewCameraClient creates a camera directory client
func NewCameraClient(cfg config.CameraDirectoryData) *CameraClient {
	return &CameraClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout.Duration},
	}
}

// ListCameras returns the cameras currently advertised by the directory.
// Cameras marked offline are dropped here; cameras with bad coordinates are
// kept and filtered later by the matcher so they still show up in snapshot
// metadata.
func (c *CameraClient) ListCameras(ctx context.Context) ([]types.Camera, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating camera directory request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: camera directory: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: camera directory returned %s", ErrUnavailable, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading camera directory response: %v", ErrUnavailable, err)
	}

	var records []cameraRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: decoding camera directory response: %v", ErrUnavailable, err)
	}

	cameras := make([]types.Camera, 0, len(records))
	for _, rec := range records {
		if rec.IsOnline == "false" {
			continue
		}
		cameras = append(cameras, types.Camera{
			ID:       rec.ID,
			Name:     rec.Name,
			Location: types.Location{Latitude: rec.Latitude, Longitude: rec.Longitude},
			ImageURL: rec.ImageURL,
		})
	}

	log.Debugf("camera directory returned %d cameras (%d online)", len(records), len(cameras))
	return cameras, nil
}
