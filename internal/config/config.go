// Package config loads the service-level configuration (listen address,
// camera device, model directory, logging level) that the CLI harness
// hands to the runtime. It is the ambient counterpart to the model
// manifest (internal/model), which configures a single loaded model
// instead of the process.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Camera  CameraConfig  `yaml:"camera"`
	Model   ModelConfig   `yaml:"model"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the HTTP service.
type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// CameraConfig configures the capture worker's default device.
type CameraConfig struct {
	DeviceID     int `yaml:"device_id"`
	RequestWidth int `yaml:"request_width"`
	RequestHeight int `yaml:"request_height"`
	AutoStart    bool `yaml:"auto_start"`
}

// ModelConfig configures the initial model to load at startup, if any.
type ModelConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and validates a YAML config file, filling in defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 0 // streaming responses must not be capped
	}
	if c.Camera.RequestWidth == 0 {
		c.Camera.RequestWidth = 1280
	}
	if c.Camera.RequestHeight == 0 {
		c.Camera.RequestHeight = 720
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the config for values the runtime cannot operate on.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return fmt.Errorf("http.address cannot be empty")
	}
	if c.Camera.DeviceID < 0 {
		return fmt.Errorf("camera.device_id cannot be negative")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
