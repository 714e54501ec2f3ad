// Package config defines the curbwatch configuration model and its providers.
package config

import (
	"fmt"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)
}

// Duration wraps time.Duration so intervals can be written as "90s" or "5m"
// in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %v", raw, err)
	}
	d.Duration = parsed
	return nil
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Poll        PollData        `yaml:"poll"`
	Directories DirectoriesData `yaml:"directories"`
	Imagery     ImageryData     `yaml:"imagery"`
	Matcher     MatcherData     `yaml:"matcher"`
	Vision      VisionData      `yaml:"vision"`
	Classifier  ClassifierData  `yaml:"classifier"`
	REST        RESTServerData  `yaml:"rest"`
	Demo        DemoData        `yaml:"demo"`
}

// PollData controls the pipeline cycle cadence.
type PollData struct {
	Interval             Duration `yaml:"interval"`
	CycleTimeout         Duration `yaml:"cycle_timeout"`
	MaxConcurrentFetches int      `yaml:"max_concurrent_fetches"`
}

// DirectoriesData holds the three upstream directory endpoints.
type DirectoriesData struct {
	Cameras CameraDirectoryData `yaml:"cameras"`
	Stops   StopDirectoryData   `yaml:"stops"`
	Plows   PlowDirectoryData   `yaml:"plows"`
}

type CameraDirectoryData struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// StopDirectoryData configures the stops-for-location query.  APIKey is
// normally left empty in the file and supplied via the CURBWATCH_STOPS_API_KEY
// environment variable (loaded from .env by the binary).
type StopDirectoryData struct {
	URL          string   `yaml:"url"`
	APIKey       string   `yaml:"api_key,omitempty"`
	Latitude     float64  `yaml:"latitude"`
	Longitude    float64  `yaml:"longitude"`
	RadiusMeters float64  `yaml:"radius_meters"`
	Timeout      Duration `yaml:"timeout"`
}

type PlowDirectoryData struct {
	URL     string   `yaml:"url"`
	Limit   int      `yaml:"limit"`
	Timeout Duration `yaml:"timeout"`
}

type ImageryData struct {
	FetchTimeout Duration `yaml:"fetch_timeout"`
}

// MatcherData sizes the camera-to-stop association radius.
type MatcherData struct {
	LinkRadiusMeters float64 `yaml:"link_radius_meters"`
}

// VisionData holds the snow heuristic thresholds.  All values are on the
// 0-255 scale unless noted.
type VisionData struct {
	BrightnessThreshold float64 `yaml:"brightness_threshold"`
	SaturationThreshold float64 `yaml:"saturation_threshold"`
	CurbBandFraction    float64 `yaml:"curb_band_fraction"`
	NightLuminance      float64 `yaml:"night_luminance"`
	MinBrightness       float64 `yaml:"min_brightness"`
}

// ClassifierData holds the status policy thresholds (coverage fractions in
// [0,1]) and the plow corroboration window.
type ClassifierData struct {
	CurbBlockedAbove   float64  `yaml:"curb_blocked_above"`
	GroundBlockedAbove float64  `yaml:"ground_blocked_above"`
	ClearBelow         float64  `yaml:"clear_below"`
	PlowRadiusMeters   float64  `yaml:"plow_radius_meters"`
	PlowWindow         Duration `yaml:"plow_window"`
}

type RESTServerData struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
	Port       int    `yaml:"port"`
}

// DemoData configures the always-blocked demonstration stop.  The override is
// applied after classification and is clearly separable from the detection
// algorithm; disable it outside demos.
type DemoData struct {
	Enabled bool   `yaml:"enabled"`
	StopID  string `yaml:"stop_id,omitempty"`
}

// ApplyDefaults fills zero-valued fields with the stock thresholds.
func (c *ConfigData) ApplyDefaults() {
	if c.Poll.Interval.Duration == 0 {
		c.Poll.Interval.Duration = 5 * time.Minute
	}
	if c.Poll.CycleTimeout.Duration == 0 {
		c.Poll.CycleTimeout.Duration = 90 * time.Second
	}
	if c.Poll.MaxConcurrentFetches == 0 {
		c.Poll.MaxConcurrentFetches = 8
	}
	if c.Directories.Cameras.Timeout.Duration == 0 {
		c.Directories.Cameras.Timeout.Duration = 30 * time.Second
	}
	if c.Directories.Stops.Timeout.Duration == 0 {
		c.Directories.Stops.Timeout.Duration = 10 * time.Second
	}
	if c.Directories.Stops.RadiusMeters == 0 {
		c.Directories.Stops.RadiusMeters = 2000
	}
	if c.Directories.Plows.Timeout.Duration == 0 {
		c.Directories.Plows.Timeout.Duration = 10 * time.Second
	}
	if c.Directories.Plows.Limit == 0 {
		c.Directories.Plows.Limit = 100
	}
	if c.Imagery.FetchTimeout.Duration == 0 {
		c.Imagery.FetchTimeout.Duration = 10 * time.Second
	}
	if c.Matcher.LinkRadiusMeters == 0 {
		c.Matcher.LinkRadiusMeters = 100
	}
	if c.Vision.BrightnessThreshold == 0 {
		c.Vision.BrightnessThreshold = 200
	}
	if c.Vision.SaturationThreshold == 0 {
		c.Vision.SaturationThreshold = 25
	}
	if c.Vision.CurbBandFraction == 0 {
		c.Vision.CurbBandFraction = 0.40
	}
	if c.Vision.NightLuminance == 0 {
		c.Vision.NightLuminance = 90
	}
	if c.Vision.MinBrightness == 0 {
		c.Vision.MinBrightness = 120
	}
	if c.Classifier.CurbBlockedAbove == 0 {
		c.Classifier.CurbBlockedAbove = 0.40
	}
	if c.Classifier.GroundBlockedAbove == 0 {
		c.Classifier.GroundBlockedAbove = 0.50
	}
	if c.Classifier.ClearBelow == 0 {
		c.Classifier.ClearBelow = 0.20
	}
	if c.Classifier.PlowRadiusMeters == 0 {
		c.Classifier.PlowRadiusMeters = 250
	}
	if c.Classifier.PlowWindow.Duration == 0 {
		c.Classifier.PlowWindow.Duration = 12 * time.Hour
	}
	if c.REST.Port == 0 {
		c.REST.Port = 8080
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *ConfigData) Validate() error {
	if c.Directories.Cameras.URL == "" {
		return fmt.Errorf("directories.cameras.url is required")
	}
	if c.Directories.Stops.URL == "" {
		return fmt.Errorf("directories.stops.url is required")
	}
	if c.Vision.CurbBandFraction <= 0 || c.Vision.CurbBandFraction > 1 {
		return fmt.Errorf("vision.curb_band_fraction must be in (0, 1]")
	}
	if c.Classifier.ClearBelow > c.Classifier.CurbBlockedAbove {
		return fmt.Errorf("classifier.clear_below must not exceed classifier.curb_blocked_above")
	}
	if c.Classifier.ClearBelow > c.Classifier.GroundBlockedAbove {
		return fmt.Errorf("classifier.clear_below must not exceed classifier.ground_blocked_above")
	}
	if c.Demo.Enabled && c.Demo.StopID == "" {
		return fmt.Errorf("demo.stop_id is required when demo.enabled is true")
	}
	return nil
}
