package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file, applies
// defaults, pulls the stop-directory API key from the environment when the
// file leaves it blank, and validates the result.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config := &ConfigData{}
	if err := yaml.Unmarshal(cfgFile, config); err != nil {
		return nil, fmt.Errorf("error parsing %s: %v", y.filename, err)
	}

	config.ApplyDefaults()

	if config.Directories.Stops.APIKey == "" {
		config.Directories.Stops.APIKey = os.Getenv("CURBWATCH_STOPS_API_KEY")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
