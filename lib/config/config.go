// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// ConfigEnvVar names the environment variable read by [Load].
const ConfigEnvVar = "SCENIC_CONFIG"

// Config is the relay configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	Capture CaptureConfig `yaml:"capture"`
	Paths   PathsConfig   `yaml:"paths"`
	Segment SegmentConfig `yaml:"segment"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Zero values leave the base value untouched.
type ConfigOverrides struct {
	Capture *CaptureConfig `yaml:"capture,omitempty"`
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Segment *SegmentConfig `yaml:"segment,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// CaptureConfig sizes the in-memory event buffer and the queue of
// sealed segments waiting to ship.
type CaptureConfig struct {
	// MaxBytes is the hard byte budget of one event buffer, framing
	// included. A full buffer is sealed into a segment.
	MaxBytes uint64 `yaml:"max_bytes"`

	// FlushInterval seals a non-empty buffer even when it is not full.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// QueueMaxBytes bounds the sealed segments held in memory while
	// the sink is unavailable. The oldest segments are dropped first.
	QueueMaxBytes int64 `yaml:"queue_max_bytes"`
}

// PathsConfig configures filesystem locations.
type PathsConfig struct {
	// Root is the base directory for relay state. Available to the
	// other paths as ${SCENIC_ROOT}.
	Root string `yaml:"root"`

	// Socket is the Unix socket producers submit annotations to.
	Socket string `yaml:"socket"`

	// OutputDir receives shipped segment files.
	OutputDir string `yaml:"output_dir"`

	// LogFile, when set, receives logs instead of stderr. The file is
	// rotated by size.
	LogFile string `yaml:"log_file"`
}

// SegmentConfig configures sealed segment encoding.
type SegmentConfig struct {
	// Compression is one of none, lz4, zstd, auto.
	Compression string `yaml:"compression"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is a TCP address such as "127.0.0.1:9464". Empty disables
	// the endpoint.
	Listen string `yaml:"listen"`
}

// Compression algorithm names accepted by segment.compression.
var compressionNames = []string{"none", "lz4", "zstd", "auto"}

// Default returns the configuration used as a base before the file is
// applied.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "scenic")

	return &Config{
		Environment: Development,
		Capture: CaptureConfig{
			MaxBytes:      4 << 20,
			FlushInterval: 10 * time.Second,
			QueueMaxBytes: 64 << 20,
		},
		Paths: PathsConfig{
			Root:      defaultRoot,
			Socket:    "${SCENIC_ROOT}/relay.sock",
			OutputDir: "${SCENIC_ROOT}/segments",
		},
		Segment: SegmentConfig{
			Compression: "auto",
		},
	}
}

// Load loads configuration from the SCENIC_CONFIG environment variable.
// There is no fallback when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your scenic.yaml config file, or use --config flag", ConfigEnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from path on top of [Default], applies
// the section for the configured environment, and expands variables in
// path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.ExpandVariables()

	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if capture := overrides.Capture; capture != nil {
		if capture.MaxBytes != 0 {
			c.Capture.MaxBytes = capture.MaxBytes
		}
		if capture.FlushInterval != 0 {
			c.Capture.FlushInterval = capture.FlushInterval
		}
		if capture.QueueMaxBytes != 0 {
			c.Capture.QueueMaxBytes = capture.QueueMaxBytes
		}
	}

	if paths := overrides.Paths; paths != nil {
		if paths.Root != "" {
			c.Paths.Root = paths.Root
		}
		if paths.Socket != "" {
			c.Paths.Socket = paths.Socket
		}
		if paths.OutputDir != "" {
			c.Paths.OutputDir = paths.OutputDir
		}
		if paths.LogFile != "" {
			c.Paths.LogFile = paths.LogFile
		}
	}

	if overrides.Segment != nil && overrides.Segment.Compression != "" {
		c.Segment.Compression = overrides.Segment.Compression
	}

	if overrides.Metrics != nil && overrides.Metrics.Listen != "" {
		c.Metrics.Listen = overrides.Metrics.Listen
	}
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. ${SCENIC_ROOT} resolves to Paths.Root. Callers that change
// paths after loading (command-line overrides) call it again.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"SCENIC_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["SCENIC_ROOT"] = c.Paths.Root

	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Paths.OutputDir = expandVars(c.Paths.OutputDir, vars)
	c.Paths.LogFile = expandVars(c.Paths.LogFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces each ${NAME} with vars[NAME], then the process
// environment, then the pattern's default.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	// A buffer must hold at least one length prefix to accept anything.
	if c.Capture.MaxBytes < 4 {
		errs = append(errs, fmt.Errorf("capture.max_bytes must be at least 4, got %d", c.Capture.MaxBytes))
	}
	if c.Capture.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("capture.flush_interval must be positive, got %s", c.Capture.FlushInterval))
	}
	switch {
	case c.Capture.QueueMaxBytes <= 0:
		errs = append(errs, fmt.Errorf("capture.queue_max_bytes must be positive, got %d", c.Capture.QueueMaxBytes))
	case c.Capture.QueueMaxBytes > math.MaxInt:
		errs = append(errs, fmt.Errorf("capture.queue_max_bytes %d exceeds the platform limit %d", c.Capture.QueueMaxBytes, math.MaxInt))
	case uint64(c.Capture.QueueMaxBytes) < c.Capture.MaxBytes:
		// A sealed buffer can be stored uncompressed.
		errs = append(errs, fmt.Errorf("capture.queue_max_bytes %d is smaller than capture.max_bytes %d", c.Capture.QueueMaxBytes, c.Capture.MaxBytes))
	}

	if c.Paths.Socket == "" {
		errs = append(errs, errors.New("paths.socket is required"))
	}
	if c.Paths.OutputDir == "" {
		errs = append(errs, errors.New("paths.output_dir is required"))
	}

	if !slices.Contains(compressionNames, c.Segment.Compression) {
		errs = append(errs, fmt.Errorf("segment.compression must be one of: %v", compressionNames))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the output directory and the socket's parent
// directory.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.OutputDir, filepath.Dir(c.Paths.Socket)} {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
