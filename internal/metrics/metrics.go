// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics defines the Prometheus collectors for the index cache and
// lookups. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache request results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultStale   = "stale"
	ResultCorrupt = "corrupt"
	ResultError   = "error"
)

// Build statuses.
const (
	BuildOK       = "ok"
	BuildFailed   = "failed"
	BuildFallback = "fallback"
)

// Lookup results.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

// Metrics holds the Prometheus collectors.
type Metrics struct {
	CacheRequestsTotal *prometheus.CounterVec
	CacheBuildsTotal   *prometheus.CounterVec
	CacheWaitsTotal    *prometheus.CounterVec
	CacheBuildDuration prometheus.Histogram
	LookupsTotal       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration. Collectors already registered with reg, for example by
// another dictionary, are shared.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sdengine_cache_requests_total",
				Help: "Index cache requests by result (hit, miss, stale, corrupt, error).",
			},
			[]string{"result"},
		),
		CacheBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sdengine_cache_builds_total",
				Help: "Index builds by status (ok, failed, fallback).",
			},
			[]string{"status"},
		),
		CacheWaitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sdengine_cache_waits_total",
				Help: "Waits on another process's rebuild by outcome.",
			},
			[]string{"outcome"},
		),
		CacheBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sdengine_cache_build_duration_seconds",
				Help:    "Index build latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sdengine_lookups_total",
				Help: "Headword lookups by result (found, not_found, error).",
			},
			[]string{"result"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.CacheRequestsTotal, err = register(reg, m.CacheRequestsTotal); err != nil {
		return nil, err
	}
	if m.CacheBuildsTotal, err = register(reg, m.CacheBuildsTotal); err != nil {
		return nil, err
	}
	if m.CacheWaitsTotal, err = register(reg, m.CacheWaitsTotal); err != nil {
		return nil, err
	}
	if m.CacheBuildDuration, err = register(reg, m.CacheBuildDuration); err != nil {
		return nil, err
	}
	if m.LookupsTotal, err = register(reg, m.LookupsTotal); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c and returns the collector to use. If an equal
// collector is already registered the existing one is returned.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		//nolint:wrapcheck // registration errors are descriptive.
		return c, err
	}
	return c, nil
}

// CacheRequest records a cache request result.
func (m *Metrics) CacheRequest(result string) {
	if m == nil {
		return
	}
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// CacheBuild records a build with the given status and duration.
func (m *Metrics) CacheBuild(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CacheBuildsTotal.WithLabelValues(status).Inc()
	if status != BuildFailed {
		m.CacheBuildDuration.Observe(d.Seconds())
	}
}

// CacheWait records the outcome of waiting for another owner.
func (m *Metrics) CacheWait(outcome string) {
	if m == nil {
		return
	}
	m.CacheWaitsTotal.WithLabelValues(outcome).Inc()
}

// Lookup records a lookup result.
func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(result).Inc()
}
