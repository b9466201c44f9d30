// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "scenic.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Capture.MaxBytes != 4<<20 {
		t.Errorf("expected max_bytes=4MiB, got %d", cfg.Capture.MaxBytes)
	}
	if cfg.Capture.FlushInterval != 10*time.Second {
		t.Errorf("expected flush_interval=10s, got %s", cfg.Capture.FlushInterval)
	}
	if cfg.Segment.Compression != "auto" {
		t.Errorf("expected compression=auto, got %s", cfg.Segment.Compression)
	}
	if cfg.Metrics.Listen != "" {
		t.Errorf("expected metrics disabled by default, got %q", cfg.Metrics.Listen)
	}
}

func TestLoad_RequiresScenicConfig(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SCENIC_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "SCENIC_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithScenicConfig(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
paths:
  root: /test/root
`)
	t.Setenv(ConfigEnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Paths.Socket != "/test/root/relay.sock" {
		t.Errorf("expected socket under root, got %s", cfg.Paths.Socket)
	}
	if cfg.Paths.OutputDir != "/test/root/segments" {
		t.Errorf("expected output_dir under root, got %s", cfg.Paths.OutputDir)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging

capture:
  max_bytes: 65536
  flush_interval: 250ms
  queue_max_bytes: 1048576

paths:
  root: /custom/root
  socket: /custom/relay.sock
  log_file: ${SCENIC_ROOT}/relay.log

segment:
  compression: zstd

metrics:
  listen: 127.0.0.1:9464
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Capture.MaxBytes != 65536 {
		t.Errorf("expected max_bytes=65536, got %d", cfg.Capture.MaxBytes)
	}
	if cfg.Capture.FlushInterval != 250*time.Millisecond {
		t.Errorf("expected flush_interval=250ms, got %s", cfg.Capture.FlushInterval)
	}
	if cfg.Capture.QueueMaxBytes != 1<<20 {
		t.Errorf("expected queue_max_bytes=1MiB, got %d", cfg.Capture.QueueMaxBytes)
	}
	if cfg.Paths.Socket != "/custom/relay.sock" {
		t.Errorf("expected socket=/custom/relay.sock, got %s", cfg.Paths.Socket)
	}
	if cfg.Paths.LogFile != "/custom/root/relay.log" {
		t.Errorf("expected log_file=/custom/root/relay.log, got %s", cfg.Paths.LogFile)
	}
	if cfg.Segment.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.Segment.Compression)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("expected metrics listen address, got %q", cfg.Metrics.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config does not validate: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	configPath := writeConfig(t, "capture:\n  flush_interval: soon\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

capture:
  max_bytes: 1024

paths:
  root: /default/root

segment:
  compression: lz4

development:
  segment:
    compression: none

production:
  capture:
    max_bytes: 8388608
  paths:
    root: /prod/root
  segment:
    compression: zstd
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Capture.MaxBytes != 8<<20 {
		t.Errorf("expected max_bytes from production override, got %d", cfg.Capture.MaxBytes)
	}
	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}
	// Expansion runs after overrides, so derived paths follow the
	// overridden root.
	if cfg.Paths.Socket != "/prod/root/relay.sock" {
		t.Errorf("expected socket under production root, got %s", cfg.Paths.Socket)
	}
	if cfg.Segment.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.Segment.Compression)
	}
	// Unset override fields keep base values.
	if cfg.Capture.FlushInterval != 10*time.Second {
		t.Errorf("expected default flush_interval, got %s", cfg.Capture.FlushInterval)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("SCENIC_ROOT", "/env/root")
	t.Setenv("SCENIC_ENVIRONMENT", "staging")

	configPath := writeConfig(t, `
environment: development
paths:
  root: /file/root
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Socket != "/file/root/relay.sock" {
		t.Errorf("expected ${SCENIC_ROOT} to resolve to the file root, got %s", cfg.Paths.Socket)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/scenic", map[string]string{"HOME": "/home/user"}, "/home/user/scenic"},
		{"${SCENIC_TEST_MISSING:-default}", map[string]string{}, "default"},
		{"${PRESENT:-default}", map[string]string{"PRESENT": "value"}, "value"},
		{"${A}/${B}", map[string]string{"A": "first", "B": "second"}, "first/second"},
		{"no variables here", map[string]string{}, "no variables here"},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"invalid environment", func(c *Config) { c.Environment = "invalid" }, true},
		{"max bytes below one prefix", func(c *Config) { c.Capture.MaxBytes = 3 }, true},
		{"max bytes of exactly one prefix", func(c *Config) { c.Capture.MaxBytes = 4 }, false},
		{"zero flush interval", func(c *Config) { c.Capture.FlushInterval = 0 }, true},
		{"negative queue budget", func(c *Config) { c.Capture.QueueMaxBytes = -1 }, true},
		{"queue smaller than one buffer", func(c *Config) {
			c.Capture.MaxBytes = 1 << 20
			c.Capture.QueueMaxBytes = 1<<20 - 1
		}, true},
		{"buffer near the uint64 limit", func(c *Config) {
			c.Capture.MaxBytes = math.MaxUint64 - 50
			c.Capture.QueueMaxBytes = 100
		}, true},
		{"queue equal to one buffer", func(c *Config) {
			c.Capture.MaxBytes = 1 << 20
			c.Capture.QueueMaxBytes = 1 << 20
		}, false},
		{"empty socket path", func(c *Config) { c.Paths.Socket = "" }, true},
		{"empty output dir", func(c *Config) { c.Paths.OutputDir = "" }, true},
		{"unknown compression", func(c *Config) { c.Segment.Compression = "brotli" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Capture.MaxBytes = 0
	cfg.Segment.Compression = "brotli"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"capture.max_bytes", "segment.compression"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = tmpDir
	cfg.Paths.Socket = filepath.Join(tmpDir, "run", "relay.sock")
	cfg.Paths.OutputDir = filepath.Join(tmpDir, "segments")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}
	for _, path := range []string{filepath.Join(tmpDir, "run"), cfg.Paths.OutputDir} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("%s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", path)
		}
	}
}
