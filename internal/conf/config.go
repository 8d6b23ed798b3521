// Package conf loads and validates the galleria settings from config files,
// environment variables and command line flags via viper.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Log rotation strategies for file loggers.
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// LogConfig holds settings for a rotating log output.
type LogConfig struct {
	Enabled  bool   // true to enable this log output
	Path     string // directory for log files
	Rotation string // rotation strategy: daily, weekly or size
	MaxSize  int64  // max log size in bytes for size rotation
}

// BackendSettings holds the connection configuration for the image table API.
type BackendSettings struct {
	URL               string        // base URL of the REST interface
	APIKey            string        // credential sent in the apikey header
	Timeout           time.Duration // per-request timeout
	RequestsPerSecond float64       // client-side rate limit
	PageSize          int           // rows requested per page
	Owner             string        // optional owner filter (opaque user id)
}

// GallerySettings holds tunables for the gallery state controller.
type GallerySettings struct {
	PageSize          int // records per fetched page
	PrefetchThreshold int // distance from the end that triggers the next page
}

// ImageCacheSettings holds tunables for the remote image cache.
type ImageCacheSettings struct {
	TTL           time.Duration // how long decoded images stay cached
	MaxBytes      int64         // maximum accepted image payload size
	ThumbnailSize int           // bounding box for generated thumbnails
}

// TelemetrySettings controls the optional Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable the metrics endpoint
	Listen  string // listen address and port
}

// MainSettings holds application-wide settings.
type MainSettings struct {
	Name string    // instance name used in logs
	Log  LogConfig // file logger configuration
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug      bool
	Main       MainSettings
	Backend    BackendSettings
	Gallery    GallerySettings
	ImageCache ImageCacheSettings
	Telemetry  TelemetrySettings
}

// Load reads configuration from the given file (or the default search paths
// when empty), applies environment overrides and returns validated settings.
func Load(configFile string) (*Settings, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "galleria"))
		}
	}

	v.SetEnvPrefix("GALLERIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file is fine, defaults plus env apply
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes the settings as YAML to the given path, creating parent
// directories as needed.
func Save(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}
