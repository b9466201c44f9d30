// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Scenic-annotate submits annotations to a running scenic-relay and
// reports its status.
//
// Usage:
//
//	scenic-annotate submit --source camera-7 --kind motion --attr zone=lobby [--body-file frame.jpg]
//	scenic-annotate status
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/scenic-foundation/scenic/lib/config"
	"github.com/scenic-foundation/scenic/lib/schema/annotation"
	"github.com/scenic-foundation/scenic/lib/service"
	"github.com/scenic-foundation/scenic/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "submit":
		return runSubmit(ctx, args[1:], stdout, stderr)
	case "status":
		return runStatus(ctx, args[1:], stdout, stderr)
	case "--version", "version":
		fmt.Fprintf(stdout, "scenic-annotate %s\n", version.Info())
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `usage: scenic-annotate <command> [flags]

commands:
  submit   submit one annotation to the relay
  status   print relay counters
`)
}

// defaultSocket resolves the relay socket the same way the relay does
// when no flag is given.
func defaultSocket() string {
	cfg := config.Default()
	if os.Getenv(config.ConfigEnvVar) != "" {
		if loaded, err := config.Load(); err == nil {
			cfg = loaded
		}
	}
	cfg.ExpandVariables()
	return cfg.Paths.Socket
}

func runSubmit(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		socketPath string
		source     string
		kind       string
		attributes []string
		bodyFile   string
		timeout    time.Duration
	)
	flagSet := pflag.NewFlagSet("submit", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&socketPath, "socket", "", "relay socket (default: from $"+config.ConfigEnvVar+" or built-in defaults)")
	flagSet.StringVar(&source, "source", "", "producer name (required)")
	flagSet.StringVar(&kind, "kind", "", "annotation kind, [a-z0-9._-] (required)")
	flagSet.StringArrayVar(&attributes, "attr", nil, "attribute as key=value (repeatable)")
	flagSet.StringVar(&bodyFile, "body-file", "", "attach the contents of this file as the body (- for stdin)")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	record := annotation.Annotation{Kind: kind}
	if len(attributes) > 0 {
		record.Attributes = make(map[string]string, len(attributes))
		for _, attribute := range attributes {
			key, value, found := strings.Cut(attribute, "=")
			if !found || key == "" {
				return fmt.Errorf("--attr %q: want key=value", attribute)
			}
			record.Attributes[key] = value
		}
	}
	if bodyFile != "" {
		body, err := readBody(bodyFile)
		if err != nil {
			return err
		}
		record.Body = body
	}

	request := annotation.SubmitRequest{Source: source, Annotations: []annotation.Annotation{record}}
	if err := request.Validate(); err != nil {
		return err
	}
	// The relay stamps source and timestamp; check the rest here.
	stamped := record
	stamped.Source = source
	if err := stamped.Validate(); err != nil {
		return err
	}

	if socketPath == "" {
		socketPath = defaultSocket()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var response annotation.SubmitResponse
	err := service.NewClient(socketPath).Call(ctx, "submit", map[string]any{
		"source":      request.Source,
		"annotations": request.Annotations,
	}, &response)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "accepted %d\n", response.Accepted)
	return nil
}

func readBody(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

func runStatus(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var socketPath string
	var timeout time.Duration
	flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&socketPath, "socket", "", "relay socket (default: from $"+config.ConfigEnvVar+" or built-in defaults)")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if socketPath == "" {
		socketPath = defaultSocket()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var status annotation.StatusResponse
	if err := service.NewClient(socketPath).Call(ctx, "status", nil, &status); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "relay               %s\n", status.RelayID)
	fmt.Fprintf(stdout, "uptime              %s\n", (time.Duration(status.UptimeSeconds * float64(time.Second))).Round(time.Second))
	fmt.Fprintf(stdout, "buffer              %d / %d bytes\n", status.KernelBytes, status.KernelMaxBytes)
	fmt.Fprintf(stdout, "queue               %d segments, %d bytes\n", status.QueueEntries, status.QueueBytes)
	fmt.Fprintf(stdout, "annotations         %d accepted, %d rejected\n", status.AnnotationsAccepted, status.AnnotationsRejected)
	fmt.Fprintf(stdout, "segments            %d sealed, %d shipped, %d dropped\n", status.SegmentsSealed, status.SegmentsShipped, status.SegmentsDropped)
	fmt.Fprintf(stdout, "sequence            %d\n", status.Sequence)
	return nil
}
