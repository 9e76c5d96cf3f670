/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


/*
Package metrics provides Prometheus-compatible metrics for matsearch.

METRIC CATEGORIES:
==================
- Requests: total and failed, per API operation
- Latency: average latency per operation
- Results: rows returned by searches, rows exported
- Datasets: switches, uploads, active version, rows in main

PROMETHEUS ENDPOINT:
====================
Metrics are exposed at /metrics in Prometheus text format.

EXAMPLE METRICS:
================

	matsearch_requests_total{op="search"} 1234
	matsearch_requests_failed_total{op="search"} 3
	matsearch_request_latency_avg_microseconds{op="search"} 812.50
	matsearch_dataset_active{version="user"} 1
	matsearch_main_rows 5210
*/
package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"matsearch/internal/cache"
	"matsearch/internal/config"
	"matsearch/internal/logging"
)

// Metrics holds all matsearch metrics.
type Metrics struct {
	// Result metrics
	SearchRows atomic.Uint64 // Rows returned by searches
	ExportRows atomic.Uint64 // Rows written by exports

	// Dataset metrics
	Switches atomic.Uint64 // Successful dataset selections
	Uploads  atomic.Uint64 // Uploaded datasets
	MainRows atomic.Int64  // Rows in the main dataset after the last rebuild

	active atomic.Value // string: main, user or temp

	cacheStats atomic.Value // func() cache.Stats of the property range cache

	// Per-operation metrics
	ops sync.Map // operation name -> *OperationMetrics
}

// OperationMetrics holds metrics for one API operation.
type OperationMetrics struct {
	Total        atomic.Uint64
	Failed       atomic.Uint64
	LatencySum   atomic.Uint64 // microseconds
	LatencyCount atomic.Uint64
}

// AverageLatency returns the average latency in microseconds.
func (o *OperationMetrics) AverageLatency() float64 {
	count := o.LatencyCount.Load()
	if count == 0 {
		return 0
	}
	return float64(o.LatencySum.Load()) / float64(count)
}

// Global metrics instance
var globalMetrics = &Metrics{}

// Get returns the global metrics instance.
func Get() *Metrics {
	return globalMetrics
}

// Operation returns the metrics of a named operation.
func (m *Metrics) Operation(name string) *OperationMetrics {
	if om, ok := m.ops.Load(name); ok {
		return om.(*OperationMetrics)
	}
	actual, _ := m.ops.LoadOrStore(name, &OperationMetrics{})
	return actual.(*OperationMetrics)
}

// RecordRequest records a completed request for an operation.
func (m *Metrics) RecordRequest(op string, latency time.Duration, failed bool) {
	om := m.Operation(op)
	om.Total.Add(1)
	om.LatencySum.Add(uint64(latency.Microseconds()))
	om.LatencyCount.Add(1)
	if failed {
		om.Failed.Add(1)
	}
}

// SetActive records the active dataset version.
func (m *Metrics) SetActive(version string) {
	m.active.Store(version)
}

// Active returns the last recorded active dataset version.
func (m *Metrics) Active() string {
	v, _ := m.active.Load().(string)
	return v
}

// SetCacheStats registers the statistics source of the property range cache.
func (m *Metrics) SetCacheStats(fn func() cache.Stats) {
	m.cacheStats.Store(fn)
}

// WritePrometheus writes every metric in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	var names []string
	m.ops.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)

	fmt.Fprintf(w, "# HELP matsearch_requests_total Requests handled\n")
	fmt.Fprintf(w, "# TYPE matsearch_requests_total counter\n")
	for _, n := range names {
		fmt.Fprintf(w, "matsearch_requests_total{op=%q} %d\n", n, m.Operation(n).Total.Load())
	}

	fmt.Fprintf(w, "# HELP matsearch_requests_failed_total Failed requests\n")
	fmt.Fprintf(w, "# TYPE matsearch_requests_failed_total counter\n")
	for _, n := range names {
		fmt.Fprintf(w, "matsearch_requests_failed_total{op=%q} %d\n", n, m.Operation(n).Failed.Load())
	}

	fmt.Fprintf(w, "# HELP matsearch_request_latency_avg_microseconds Average request latency\n")
	fmt.Fprintf(w, "# TYPE matsearch_request_latency_avg_microseconds gauge\n")
	for _, n := range names {
		fmt.Fprintf(w, "matsearch_request_latency_avg_microseconds{op=%q} %.2f\n", n, m.Operation(n).AverageLatency())
	}

	fmt.Fprintf(w, "# HELP matsearch_search_rows_total Rows returned by searches\n")
	fmt.Fprintf(w, "# TYPE matsearch_search_rows_total counter\n")
	fmt.Fprintf(w, "matsearch_search_rows_total %d\n", m.SearchRows.Load())

	fmt.Fprintf(w, "# HELP matsearch_export_rows_total Rows exported\n")
	fmt.Fprintf(w, "# TYPE matsearch_export_rows_total counter\n")
	fmt.Fprintf(w, "matsearch_export_rows_total %d\n", m.ExportRows.Load())

	if fn, ok := m.cacheStats.Load().(func() cache.Stats); ok {
		st := fn()
		fmt.Fprintf(w, "# HELP matsearch_properties_cache_hits_total Property range cache hits\n")
		fmt.Fprintf(w, "# TYPE matsearch_properties_cache_hits_total counter\n")
		fmt.Fprintf(w, "matsearch_properties_cache_hits_total %d\n", st.Hits)

		fmt.Fprintf(w, "# HELP matsearch_properties_cache_misses_total Property range cache misses\n")
		fmt.Fprintf(w, "# TYPE matsearch_properties_cache_misses_total counter\n")
		fmt.Fprintf(w, "matsearch_properties_cache_misses_total %d\n", st.Misses)

		fmt.Fprintf(w, "# HELP matsearch_properties_cache_entries Cached property range results\n")
		fmt.Fprintf(w, "# TYPE matsearch_properties_cache_entries gauge\n")
		fmt.Fprintf(w, "matsearch_properties_cache_entries %d\n", st.Entries)
	}

	fmt.Fprintf(w, "# HELP matsearch_dataset_switches_total Dataset selections\n")
	fmt.Fprintf(w, "# TYPE matsearch_dataset_switches_total counter\n")
	fmt.Fprintf(w, "matsearch_dataset_switches_total %d\n", m.Switches.Load())

	fmt.Fprintf(w, "# HELP matsearch_uploads_total Uploaded datasets\n")
	fmt.Fprintf(w, "# TYPE matsearch_uploads_total counter\n")
	fmt.Fprintf(w, "matsearch_uploads_total %d\n", m.Uploads.Load())

	fmt.Fprintf(w, "# HELP matsearch_main_rows Rows in the main dataset\n")
	fmt.Fprintf(w, "# TYPE matsearch_main_rows gauge\n")
	fmt.Fprintf(w, "matsearch_main_rows %d\n", m.MainRows.Load())

	fmt.Fprintf(w, "# HELP matsearch_dataset_active Active dataset version (1=active)\n")
	fmt.Fprintf(w, "# TYPE matsearch_dataset_active gauge\n")
	active := m.Active()
	for _, v := range []string{"main", "user", "temp"} {
		on := 0
		if v == active {
			on = 1
		}
		fmt.Fprintf(w, "matsearch_dataset_active{version=%q} %d\n", v, on)
	}
}

// Server provides an HTTP server for Prometheus metrics.
type Server struct {
	config *config.MetricsConfig
	server *http.Server
	logger *logging.Logger
}

// NewServer creates a new metrics server.
func NewServer(cfg *config.MetricsConfig) *Server {
	s := &Server{
		config: cfg,
		logger: logging.NewLogger("metrics"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the metrics HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves metrics until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting metrics server", "addr", s.config.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("Stopping metrics server")
	return s.server.Shutdown(shutdownCtx)
}

// handleMetrics handles the /metrics endpoint in Prometheus format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	Get().WritePrometheus(w)
}
