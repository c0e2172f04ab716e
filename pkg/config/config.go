// Package config loads ipsentry configuration from a YAML file with
// sane defaults for every knob.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ipsentry configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Geo     GeoConfig     `yaml:"geo"`
	Risk    RiskConfig    `yaml:"risk"`
	Score   ScoreConfig   `yaml:"score"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GeoConfig contains geolocation resolver settings.
type GeoConfig struct {
	PositiveTTLSeconds int `yaml:"positive_ttl_seconds"`
	NegativeTTLSeconds int `yaml:"negative_ttl_seconds"`
	TimeoutSeconds     int `yaml:"timeout_seconds"`
	MaxRetries         int `yaml:"max_retries"`
	BulkConcurrency    int `yaml:"bulk_concurrency"`

	// BulkLimit caps the number of distinct IPs accepted per bulk
	// lookup request.
	BulkLimit int `yaml:"bulk_limit"`

	// Providers lists the fallback chain in order. Recognized names:
	// "mmdb", "ip-api", "ipapi".
	Providers []string `yaml:"providers"`

	// CityDBPath/ASNDBPath enable the local MaxMind provider when set.
	CityDBPath string `yaml:"city_db_path"`
	ASNDBPath  string `yaml:"asn_db_path"`
}

// RiskConfig contains the port sets consulted by the risk classifier.
// The lists ship as configuration, not constants: the well-known-bad
// values below are illustrative, not a vetted threat feed.
type RiskConfig struct {
	HighRiskPorts []int `yaml:"high_risk_ports"`
	ExpectedPorts []int `yaml:"expected_ports"`
}

// ScoreConfig contains the grade thresholds (inclusive lower bounds).
type ScoreConfig struct {
	Excellent int `yaml:"excellent"`
	Good      int `yaml:"good"`
	Moderate  int `yaml:"moderate"`
	HighRisk  int `yaml:"high_risk"`
}

// StorageConfig selects the scan-history backend.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`

	// MaxScans bounds how many scan records are retained.
	MaxScans int `yaml:"max_scans"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	File string `yaml:"file"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8080},
		Geo: GeoConfig{
			PositiveTTLSeconds: 3600,
			NegativeTTLSeconds: 300,
			TimeoutSeconds:     5,
			MaxRetries:         3,
			BulkConcurrency:    10,
			BulkLimit:          50,
			Providers:          []string{"ip-api", "ipapi"},
		},
		Risk: RiskConfig{
			HighRiskPorts: []int{23, 69, 1337, 1433, 3389, 4444, 5555, 6666, 6667, 8081, 12345, 31337},
			ExpectedPorts: []int{22, 25, 53, 80, 123, 443, 587, 993, 995, 5061},
		},
		Score: ScoreConfig{
			Excellent: 90,
			Good:      75,
			Moderate:  60,
			HighRisk:  40,
		},
		Storage: StorageConfig{
			Driver:   "memory",
			Path:     "ipsentry.db",
			MaxScans: 100,
		},
	}
}

// Load reads configuration from a YAML file. Fields absent from the
// file keep their defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Geo.PositiveTTLSeconds <= 0 {
		return fmt.Errorf("geo positive TTL must be positive, got %d", c.Geo.PositiveTTLSeconds)
	}
	if c.Geo.NegativeTTLSeconds <= 0 {
		return fmt.Errorf("geo negative TTL must be positive, got %d", c.Geo.NegativeTTLSeconds)
	}
	if c.Geo.MaxRetries < 1 {
		return fmt.Errorf("geo max retries must be at least 1, got %d", c.Geo.MaxRetries)
	}
	if c.Geo.BulkConcurrency < 1 {
		return fmt.Errorf("geo bulk concurrency must be at least 1, got %d", c.Geo.BulkConcurrency)
	}
	for _, name := range c.Geo.Providers {
		switch name {
		case "mmdb", "ip-api", "ipapi":
		default:
			return fmt.Errorf("unknown geo provider %q", name)
		}
	}
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if !(c.Score.Excellent > c.Score.Good && c.Score.Good > c.Score.Moderate && c.Score.Moderate > c.Score.HighRisk) {
		return fmt.Errorf("grade thresholds must be strictly descending")
	}
	return nil
}

// PositiveTTL returns the positive cache TTL as a duration.
func (c *GeoConfig) PositiveTTL() time.Duration {
	return time.Duration(c.PositiveTTLSeconds) * time.Second
}

// NegativeTTL returns the negative cache TTL as a duration.
func (c *GeoConfig) NegativeTTL() time.Duration {
	return time.Duration(c.NegativeTTLSeconds) * time.Second
}

// Timeout returns the per-attempt provider timeout as a duration.
func (c *GeoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
