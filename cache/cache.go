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

package cache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ianlewis/sdengine/idx"
	"github.com/ianlewis/sdengine/internal/logging"
	"github.com/ianlewis/sdengine/internal/metrics"
)

// BuildFunc returns the records of an index. It is called when there is no
// usable cache entry. The sequence stops at the first error.
type BuildFunc func() iter.Seq2[*idx.Word, error]

// Options are options for a Cache.
type Options struct {
	// Compression is the compression used for stored entries.
	Compression Compression

	// StaleAfter is the age after which an owner marker is considered
	// abandoned.
	StaleAfter time.Duration

	// WaitTimeout is how long to wait for another process's rebuild before
	// building without the cache.
	WaitTimeout time.Duration

	// PollInterval is the interval at which the entry is checked while
	// waiting for another process's rebuild.
	PollInterval time.Duration

	// Logger is the logger to use. Defaults to [slog.Default].
	Logger *slog.Logger

	// Registerer registers the cache metrics if not nil.
	Registerer prometheus.Registerer
}

// DefaultOptions are the default options for a Cache.
var DefaultOptions = &Options{
	Compression:  CompressionZstd,
	StaleAfter:   10 * time.Minute,
	WaitTimeout:  30 * time.Second,
	PollInterval: 100 * time.Millisecond,
}

// Cache is a persistent cache of parsed .idx files. It is safe for
// concurrent use.
type Cache struct {
	backend      Backend
	compression  Compression
	staleAfter   time.Duration
	waitTimeout  time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	group        singleflight.Group

	host  string
	pid   int
	token string
	now   func() time.Time
}

// New returns a new Cache storing entries in b. Zero durations in options are
// replaced with their defaults.
func New(b Backend, options *Options) (*Cache, error) {
	if options == nil {
		options = DefaultOptions
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	m, err := metrics.New(options.Registerer)
	if err != nil {
		return nil, fmt.Errorf("registering cache metrics: %w", err)
	}

	c := &Cache{
		backend:      b,
		compression:  options.Compression,
		staleAfter:   options.StaleAfter,
		waitTimeout:  options.WaitTimeout,
		pollInterval: options.PollInterval,
		logger:       logging.Component(options.Logger, "index-cache"),
		metrics:      m,
		host:         hostname(),
		pid:          os.Getpid(),
		token:        token,
		now:          time.Now,
	}
	if c.staleAfter <= 0 {
		c.staleAfter = DefaultOptions.StaleAfter
	}
	if c.waitTimeout <= 0 {
		c.waitTimeout = DefaultOptions.WaitTimeout
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultOptions.PollInterval
	}
	return c, nil
}

// GetOrBuild returns the records of the index identified by id. A stored
// entry matching id is returned without calling build. Otherwise build is
// called and its records are stored, unless another process is already
// rebuilding the entry in which case this call waits for it.
//
// Concurrent calls for the same location share one lookup or rebuild. The
// shared work is not tied to any caller's ctx: a canceled caller returns
// ctx's error while the others keep waiting, and a rebuild that has started
// completes and is stored. Errors from build are returned. Backend errors are
// logged and the records are built without the cache.
func (c *Cache) GetOrBuild(ctx context.Context, id Identity, build BuildFunc) ([]*idx.Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("getting index: %w", err)
	}

	ch := c.group.DoChan(id.Location, func() (any, error) {
		return c.getOrBuild(context.WithoutCancel(ctx), id, build)
	})
	select {
	case <-ctx.Done():
		c.metrics.CacheWait("canceled")
		return nil, fmt.Errorf("getting index: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			//nolint:wrapcheck // wrapped by getOrBuild.
			return nil, r.Err
		}
		//nolint:forcetypeassert // getOrBuild always returns []*idx.Word.
		return r.Val.([]*idx.Word), nil
	}
}

// getOrBuild is shared by concurrent callers for a location. ctx is never
// canceled.
func (c *Cache) getOrBuild(ctx context.Context, id Identity, build BuildFunc) ([]*idx.Word, error) {
	key := id.Location
	if words, ok := c.lookup(ctx, id); ok {
		return words, nil
	}

	deadline := c.now().Add(c.waitTimeout)
	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)
	waited := false
	for {
		m, err := c.claim(ctx, key)
		if err != nil {
			c.logger.Error("cache unavailable, building index", "key", key, "error", err)
			return c.buildDirect(build)
		}
		if m != nil {
			return c.buildAndStore(ctx, id, m, build)
		}

		if !waited {
			c.logger.Info("waiting for index rebuild by another process", "key", key)
			waited = true
		}
		if !c.now().Before(deadline) {
			c.metrics.CacheWait("timeout")
			c.logger.Warn("timed out waiting for index rebuild, building index", "key", key,
				"timeout", c.waitTimeout)
			return c.buildDirect(build)
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for index rebuild: %w", err)
		}
		if words, ok := c.lookup(ctx, id); ok {
			c.metrics.CacheWait("done")
			return words, nil
		}
	}
}

// lookup returns the stored records for id if there is a fresh entry.
func (c *Cache) lookup(ctx context.Context, id Identity) ([]*idx.Word, bool) {
	key := id.Location
	b, err := c.backend.Get(ctx, KeyspaceEntries, key)
	if errors.Is(err, ErrNotFound) {
		c.metrics.CacheRequest(metrics.ResultMiss)
		c.logger.Debug("cache miss", "key", key)
		return nil, false
	}
	if err != nil {
		c.metrics.CacheRequest(metrics.ResultError)
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, false
	}

	fp, words, err := decodeEntry(b)
	if err != nil {
		c.metrics.CacheRequest(metrics.ResultCorrupt)
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	if fp != id.fingerprint() {
		c.metrics.CacheRequest(metrics.ResultStale)
		c.logger.Debug("cache entry stale", "key", key)
		return nil, false
	}

	c.metrics.CacheRequest(metrics.ResultHit)
	c.logger.Debug("cache hit", "key", key, "records", len(words))
	return words, true
}

// buildAndStore builds and stores the entry while holding the owner marker m.
func (c *Cache) buildAndStore(ctx context.Context, id Identity, m []byte, build BuildFunc) ([]*idx.Word, error) {
	key := id.Location
	defer c.release(ctx, key, m)

	// Another process may have stored the entry before we claimed it.
	if words, ok := c.lookup(ctx, id); ok {
		return words, nil
	}

	start := c.now()
	words, err := collect(build)
	if err != nil {
		c.metrics.CacheBuild(metrics.BuildFailed, c.now().Sub(start))
		return nil, err
	}
	c.metrics.CacheBuild(metrics.BuildOK, c.now().Sub(start))

	b, err := encodeEntry(id.fingerprint(), words, c.compression)
	if err != nil {
		c.logger.Error("encoding cache entry", "key", key, "error", err)
		return words, nil
	}
	if err := c.backend.Put(ctx, KeyspaceEntries, key, b); err != nil {
		c.logger.Error("cache put failed", "key", key, "error", err)
		return words, nil
	}
	c.logger.Info("stored index", "key", key, "records", len(words), "bytes", len(b))
	return words, nil
}

// buildDirect builds the records without storing them.
func (c *Cache) buildDirect(build BuildFunc) ([]*idx.Word, error) {
	start := c.now()
	words, err := collect(build)
	if err != nil {
		c.metrics.CacheBuild(metrics.BuildFailed, c.now().Sub(start))
		return nil, err
	}
	c.metrics.CacheBuild(metrics.BuildFallback, c.now().Sub(start))
	return words, nil
}

// Invalidate removes the stored entry for id. Removing a missing entry is
// not an error.
func (c *Cache) Invalidate(ctx context.Context, id Identity) error {
	if err := c.backend.Delete(ctx, KeyspaceEntries, id.Location); err != nil {
		return fmt.Errorf("invalidating %q: %w", id.Location, err)
	}
	return nil
}

// collect gathers the records produced by build.
func collect(build BuildFunc) ([]*idx.Word, error) {
	var words []*idx.Word
	for w, err := range build() {
		if err != nil {
			return nil, fmt.Errorf("building index: %w", err)
		}
		words = append(words, w)
	}
	return words, nil
}
