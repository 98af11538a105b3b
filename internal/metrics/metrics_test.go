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

package metrics_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ianlewis/sdengine/internal/metrics"
)

func TestNew_Shared(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a.CacheRequest(metrics.ResultHit)
	b.CacheRequest(metrics.ResultHit)
	b.CacheRequest(metrics.ResultMiss)

	got := testutil.ToFloat64(a.CacheRequestsTotal.WithLabelValues(metrics.ResultHit))
	if diff := cmp.Diff(2.0, got); diff != "" {
		t.Errorf("hits (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, testutil.CollectAndCount(a.CacheRequestsTotal)); diff != "" {
		t.Errorf("series (-want, +got):\n%s", diff)
	}
}

func TestMetrics_Nil(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	m.CacheRequest(metrics.ResultHit)
	m.CacheBuild(metrics.BuildOK, time.Second)
	m.CacheWait("timeout")
	m.Lookup(metrics.LookupFound)
}

func TestMetrics_CacheBuild(t *testing.T) {
	t.Parallel()

	m, err := metrics.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.CacheBuild(metrics.BuildOK, time.Second)
	m.CacheBuild(metrics.BuildFailed, time.Second)

	if diff := cmp.Diff(1.0, testutil.ToFloat64(m.CacheBuildsTotal.WithLabelValues(metrics.BuildFailed))); diff != "" {
		t.Errorf("failed builds (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, testutil.CollectAndCount(m.CacheBuildDuration)); diff != "" {
		t.Errorf("duration series (-want, +got):\n%s", diff)
	}
}
