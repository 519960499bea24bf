/*
Copyright 2020 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package obs carries the engine's self-observability metrics: a private
// Prometheus registry exposed at /metrics, independent from any metric
// backend the engine queries on behalf of an experiment.
package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and histograms this binary reports about itself.
type Metrics struct {
	registry *prometheus.Registry

	fetchFailuresTotal prometheus.Counter
	fetchDuration      prometheus.Histogram
	secretCacheHits    prometheus.Counter
	secretCacheMisses  prometheus.Counter
	requestDuration    *prometheus.HistogramVec
}

// New creates a Metrics value and registers its collectors on a fresh,
// private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iter8_analytics",
			Subsystem: "metric",
			Name:      "fetch_failures_total",
			Help:      "Total number of metric-backend fetch failures.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iter8_analytics",
			Subsystem: "metric",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of metric-backend fetch requests.",
		}),
		secretCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iter8_analytics",
			Subsystem: "secret_cache",
			Name:      "hits_total",
			Help:      "Total number of secret cache hits.",
		}),
		secretCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "iter8_analytics",
			Subsystem: "secret_cache",
			Name:      "misses_total",
			Help:      "Total number of secret cache misses.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "iter8_analytics",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests served by this binary.",
		}, []string{"path", "status"}),
	}

	m.registry.MustRegister(
		m.fetchFailuresTotal,
		m.fetchDuration,
		m.secretCacheHits,
		m.secretCacheMisses,
		m.requestDuration,
	)
	return m
}

// Handler serves the registered collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records the outcome and latency of one metric-backend fetch.
// Safe to call on a nil *Metrics so a Server wired without a registry doesn't
// need to guard every call site.
func (m *Metrics) ObserveFetch(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(duration.Seconds())
	if err != nil {
		m.fetchFailuresTotal.Inc()
	}
}

// ObserveSecretCache records a secret cache lookup outcome. Safe to call on a
// nil *Metrics.
func (m *Metrics) ObserveSecretCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.secretCacheHits.Inc()
		return
	}
	m.secretCacheMisses.Inc()
}

// ObserveRequest records the latency of one HTTP request handled by this
// binary. Safe to call on a nil *Metrics.
func (m *Metrics) ObserveRequest(path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(path, status).Observe(duration.Seconds())
}
