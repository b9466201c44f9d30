// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/scenic-foundation/scenic/lib/clock"
	"github.com/scenic-foundation/scenic/lib/config"
	"github.com/scenic-foundation/scenic/lib/segment"
	"github.com/scenic-foundation/scenic/lib/service"
	"github.com/scenic-foundation/scenic/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// relayFlags holds the flags that are not configuration overrides.
type relayFlags struct {
	configPath  string
	logFormat   string
	logLevel    string
	relayID     string
	showVersion bool
}

// parseFlags parses args, loads the configuration, and applies every
// flag the user set explicitly on top of it. The returned config has
// been validated. pflag.ErrHelp is returned after usage is printed.
func parseFlags(args []string, output io.Writer) (*config.Config, *relayFlags, error) {
	var flags relayFlags
	var overrides config.Config

	flagSet := pflag.NewFlagSet("scenic-relay", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&flags.configPath, "config", "", "path to the scenic.yaml config file (default: $"+config.ConfigEnvVar+")")
	flagSet.StringVar(&flags.logFormat, "log-format", "text", "log format: text or json")
	flagSet.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.StringVar(&flags.relayID, "relay-id", "", "UUID identifying this relay in sealed segments (default: random per start)")
	flagSet.BoolVar(&flags.showVersion, "version", false, "print version information and exit")

	flagSet.Uint64Var(&overrides.Capture.MaxBytes, "max-bytes", 0, "byte budget of one event buffer, framing included")
	flagSet.DurationVar(&overrides.Capture.FlushInterval, "flush-interval", 0, "seal a non-empty event buffer this often")
	flagSet.Int64Var(&overrides.Capture.QueueMaxBytes, "queue-max-bytes", 0, "bound on sealed segments waiting to ship")
	flagSet.StringVar(&overrides.Paths.Socket, "socket", "", "Unix socket producers submit annotations to")
	flagSet.StringVar(&overrides.Paths.OutputDir, "output-dir", "", "directory receiving shipped segments")
	flagSet.StringVar(&overrides.Paths.LogFile, "log-file", "", "write logs to this file, rotated by size, instead of stderr")
	flagSet.StringVar(&overrides.Segment.Compression, "compression", "", "segment compression: none, lz4, zstd or auto")
	flagSet.StringVar(&overrides.Metrics.Listen, "metrics-listen", "", "serve Prometheus metrics on this TCP address")

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if flags.showVersion {
		return nil, &flags, nil
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, nil, err
	}

	if flagSet.Changed("max-bytes") {
		cfg.Capture.MaxBytes = overrides.Capture.MaxBytes
	}
	if flagSet.Changed("flush-interval") {
		cfg.Capture.FlushInterval = overrides.Capture.FlushInterval
	}
	if flagSet.Changed("queue-max-bytes") {
		cfg.Capture.QueueMaxBytes = overrides.Capture.QueueMaxBytes
	}
	if flagSet.Changed("socket") {
		cfg.Paths.Socket = overrides.Paths.Socket
	}
	if flagSet.Changed("output-dir") {
		cfg.Paths.OutputDir = overrides.Paths.OutputDir
	}
	if flagSet.Changed("log-file") {
		cfg.Paths.LogFile = overrides.Paths.LogFile
	}
	if flagSet.Changed("compression") {
		cfg.Segment.Compression = overrides.Segment.Compression
	}
	if flagSet.Changed("metrics-listen") {
		cfg.Metrics.Listen = overrides.Metrics.Listen
	}
	cfg.ExpandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, &flags, nil
}

// loadConfig reads --config, then $SCENIC_CONFIG. With neither, the
// built-in defaults are used.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if os.Getenv(config.ConfigEnvVar) != "" {
		return config.Load()
	}
	cfg := config.Default()
	cfg.ExpandVariables()
	return cfg, nil
}

// newLogger builds the process logger. With logFile set, records go
// to a size-rotated file instead of stderr; the returned closer
// releases it.
func newLogger(format, level, logFile string) (*slog.Logger, io.Closer, error) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}

	var writer io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		writer, closer = rotating, rotating
	}

	options := &slog.HandlerOptions{Level: logLevel}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(writer, options)), closer, nil
	case "json":
		return slog.New(slog.NewJSONHandler(writer, options)), closer, nil
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
	}
}

func run() error {
	cfg, flags, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if flags.showVersion {
		fmt.Printf("scenic-relay %s\n", version.Info())
		return nil
	}

	logger, logCloser, err := newLogger(flags.logFormat, flags.logLevel, cfg.Paths.LogFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	compression, err := segment.ParseCompression(cfg.Segment.Compression)
	if err != nil {
		return err
	}

	relayID := uuid.New()
	if flags.relayID != "" {
		relayID, err = uuid.Parse(flags.relayID)
		if err != nil {
			return fmt.Errorf("invalid --relay-id: %w", err)
		}
	}

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	sink, err := segment.NewDirectorySink(cfg.Paths.OutputDir)
	if err != nil {
		return err
	}
	defer sink.Close()

	relay, err := newRelay(relayConfig{
		MaxBytes:      cfg.Capture.MaxBytes,
		// Validate bounds the queue size by math.MaxInt.
		QueueMaxBytes: int(cfg.Capture.QueueMaxBytes),
		Compression:   compression,
		RelayID:       relayID,
		Clock:         clock.Real(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Listen != "" {
		if _, err := serveMetrics(ctx, cfg.Metrics.Listen, newMetricsRegistry(relay), logger); err != nil {
			return err
		}
	}

	socketServer := service.NewSocketServer(cfg.Paths.Socket, logger)
	relay.registerActions(socketServer)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	go relay.runFlushLoop(ctx, cfg.Capture.FlushInterval)

	// The shipper outlives ctx so that its drain pass sees the final
	// seal made below.
	shipperContext, cancelShipper := context.WithCancel(context.Background())
	defer cancelShipper()
	shipperDone := make(chan struct{})
	go func() {
		runShipper(shipperContext, relay.queue, sink, relay.clock, &relay.shipped, logger)
		close(shipperDone)
	}()

	logger.Info("scenic relay running",
		"version", version.Info(),
		"relay_id", relayID,
		"environment", cfg.Environment,
		"socket", cfg.Paths.Socket,
		"output_dir", cfg.Paths.OutputDir,
		"max_bytes", cfg.Capture.MaxBytes,
		"flush_interval", cfg.Capture.FlushInterval,
		"queue_max_bytes", cfg.Capture.QueueMaxBytes,
		"compression", compression,
	)

	// Serve returns early only when the socket cannot be opened.
	var serveErr error
	select {
	case <-ctx.Done():
		serveErr = <-socketDone
	case serveErr = <-socketDone:
		stop()
	}
	logger.Info("shutting down")
	shutdownStarted := time.Now()
	if serveErr != nil {
		logger.Error("socket server error", "error", serveErr)
	}

	relay.close()
	cancelShipper()
	<-shipperDone

	logger.Info("relay stopped",
		"segments_sealed", relay.sealed.Load(),
		"segments_shipped", relay.shipped.Load(),
		"segments_dropped", relay.queue.Dropped(),
		"unshipped", relay.queue.Len(),
		"shutdown_duration", time.Since(shutdownStarted),
	)
	return serveErr
}
