// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "scenic"
	metricsSubsystem = "relay"
)

// newMetricsRegistry exposes the relay's counters on a dedicated
// registry. Every metric is read from the relay at scrape time, so the
// status action and /metrics never disagree.
func newMetricsRegistry(r *Relay) *prometheus.Registry {
	counter := func(name, help string, value func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value()) })
	}
	gauge := func(name, help string, value func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		}, value)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),

		counter("annotations_accepted_total", "Annotations committed to an event buffer.", r.accepted.Load),
		counter("annotations_rejected_total", "Annotations refused by validation or by the buffer budget.", r.rejected.Load),
		counter("segments_sealed_total", "Event buffers sealed into segments.", r.sealed.Load),
		counter("segments_shipped_total", "Segments delivered to the sink.", r.shipped.Load),
		counter("segments_dropped_total", "Segments evicted from or refused by the queue before shipping.", r.queue.Dropped),

		gauge("kernel_bytes", "Committed bytes in the current event buffer.", func() float64 {
			return float64(r.kernel.Len())
		}),
		gauge("kernel_max_bytes", "Byte budget of one event buffer.", func() float64 {
			return float64(r.maxBytes)
		}),
		gauge("queue_entries", "Sealed segments waiting to ship.", func() float64 {
			return float64(r.queue.Len())
		}),
		gauge("queue_bytes", "Encoded bytes of sealed segments waiting to ship.", func() float64 {
			return float64(r.queue.SizeBytes())
		}),
	)
	return registry
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	return mux
}

// serveMetrics listens on address and serves /metrics until ctx is
// cancelled. The listener is opened before returning so that a bad
// address fails startup; serving continues in the background.
func serveMetrics(ctx context.Context, address string, gatherer prometheus.Gatherer, logger *slog.Logger) (net.Addr, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", address, err)
	}

	server := &http.Server{
		Handler:           metricsHandler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownContext, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownContext)
	}()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("metrics endpoint listening", "address", listener.Addr().String())
	return listener.Addr(), nil
}
