// Package config loads the service configuration with koanf:
//
//  1. built-in defaults
//  2. optional YAML file (--config, CONFIG_PATH or ./config.yaml)
//  3. environment variables, highest priority
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Solar-crew/solar-detector/internal/core"
	"github.com/Solar-crew/solar-detector/internal/domain/model"
	"github.com/Solar-crew/solar-detector/internal/domain/repository"
	"github.com/Solar-crew/solar-detector/internal/infrastructure/sentinel"
	"github.com/Solar-crew/solar-detector/internal/logging"
)

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/solar-detector/config.yaml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

// Proximity sources.
const (
	ProximityOverpass = "overpass"
	ProximityStatic   = "static"
)

type Config struct {
	Server     ServerConfig              `koanf:"server"`
	Provider   sentinel.Config           `koanf:"provider"`
	Overpass   repository.OverpassConfig `koanf:"overpass"`
	Proximity  ProximityConfig           `koanf:"proximity"`
	Database   DatabaseConfig            `koanf:"database"`
	Weights    model.Weights             `koanf:"weights"`
	Thresholds core.Thresholds           `koanf:"thresholds"`
	Cloud      core.CloudOptions         `koanf:"cloud"`
	Slope      core.SlopeOptions         `koanf:"slope"`
	Logging    logging.Config            `koanf:"logging"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type ProximityConfig struct {
	// Source is "overpass" or "static".
	Source string `koanf:"source"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
	// SaveResults stores every computed score in the analyses table.
	SaveResults bool `koanf:"save_results"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    3 * time.Minute,
			RequestTimeout:  150 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Provider:   sentinel.DefaultConfig(),
		Overpass:   repository.DefaultOverpassConfig(),
		Proximity:  ProximityConfig{Source: ProximityStatic},
		Database:   DatabaseConfig{},
		Weights:    model.Weights{Cloud: 0.4, Elevation: 0.3, Road: 0.2, Grid: 0.1},
		Thresholds: core.DefaultThresholds(),
		Cloud:      core.DefaultCloudOptions(),
		Slope:      core.DefaultSlopeOptions(),
		Logging:    logging.Config{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names (lowercased) to config paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	// Copernicus Data Space
	"cds_client_id":   "provider.client_id",
	"cds_username":    "provider.username",
	"cds_password":    "provider.password",
	"cds_token_url":   "provider.token_url",
	"cds_catalog_url": "provider.catalog_url",
	"cds_process_url": "provider.process_url",
	"cds_timeout":     "provider.timeout",
	"cds_rps":         "provider.requests_per_second",

	// weights
	"w_cloud":     "weights.cloud",
	"w_elevation": "weights.elevation",
	"w_road":      "weights.road",
	"w_grid":      "weights.grid",

	"cloud_max_records":     "cloud.max_records",
	"cloud_min_valid_ratio": "cloud.min_valid_ratio",
	"cloud_concurrency":     "cloud.concurrency",
	"slope_resolution":      "slope.resolution",

	"postgres_url":     "database.url",
	"save_results":     "database.save_results",
	"overpass_url":     "overpass.endpoint",
	"proximity_source": "proximity.source",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"http_addr":  "server.addr",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Cloud.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Slope.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Proximity.Source {
	case ProximityOverpass:
		if c.Overpass.Endpoint == "" {
			errs = append(errs, errors.New("overpass.endpoint is required for the overpass proximity source"))
		}
	case ProximityStatic:
	default:
		errs = append(errs, fmt.Errorf("proximity.source must be %q or %q, got %q",
			ProximityOverpass, ProximityStatic, c.Proximity.Source))
	}

	if c.Database.SaveResults && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required when save_results is enabled"))
	}
	if c.Provider.CatalogURL == "" || c.Provider.ProcessURL == "" || c.Provider.TokenURL == "" {
		errs = append(errs, errors.New("provider token, catalog and process URLs are required"))
	}

	return errors.Join(errs...)
}

// HasCredentials reports whether provider credentials are configured.
func (c *Config) HasCredentials() bool {
	return c.Provider.Username != "" && c.Provider.Password != ""
}
