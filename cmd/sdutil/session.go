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
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/ianlewis/sdengine"
	"github.com/ianlewis/sdengine/cache"
	"github.com/ianlewis/sdengine/cache/boltstore"
	"github.com/ianlewis/sdengine/cache/redisstore"
	"github.com/ianlewis/sdengine/cache/sqlstore"
	"github.com/ianlewis/sdengine/idx"
	"github.com/ianlewis/sdengine/internal/config"
	"github.com/ianlewis/sdengine/internal/logging"
)

// session holds the state shared by commands for a single run.
type session struct {
	cfg    *config.Config
	dirs   []string
	logger *slog.Logger
	reg    *prometheus.Registry

	cache  *cache.Cache
	closer io.Closer

	// cacheDown is set when the backend could not be opened.
	cacheDown bool
}

// setup loads the configuration. The cache backend is opened when first
// needed.
func (s *session) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSdutil, err)
	}
	s.cfg = cfg
	s.logger = logging.New(c.App.ErrWriter, cfg.Logging.Level, cfg.Logging.Format)

	s.dirs = c.StringSlice("data-dir")
	if !c.IsSet("data-dir") && len(cfg.DataDirs) > 0 {
		s.dirs = cfg.DataDirs
	}

	if cfg.Metrics.Textfile != "" {
		s.reg = prometheus.NewRegistry()
	}
	return nil
}

// teardown closes the cache backend and writes metrics.
func (s *session) teardown(*cli.Context) error {
	var errs []error
	if s.closer != nil {
		errs = append(errs, s.closer.Close())
	}
	if s.reg != nil {
		if err := prometheus.WriteToTextfile(s.cfg.Metrics.Textfile, s.reg); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrSdutil, err)
	}
	return nil
}

// registerer returns the metrics registry or nil if metrics are disabled.
func (s *session) registerer() prometheus.Registerer {
	if s.reg == nil {
		return nil
	}
	return s.reg
}

// indexCache returns the index cache or nil if caching is disabled. If the
// backend cannot be opened the error is returned when required is set.
// Otherwise it is logged and indexes are read without the cache.
func (s *session) indexCache(ctx context.Context, required bool) (*cache.Cache, error) {
	if s.cache != nil || s.cfg.Cache.Backend == config.BackendNone {
		return s.cache, nil
	}
	if s.cacheDown && !required {
		return nil, nil
	}

	b, closer, err := openBackend(ctx, &s.cfg.Cache)
	if err != nil {
		if required || errors.Is(err, ErrUnsupported) {
			return nil, err
		}
		s.cacheDown = true
		s.logger.Warn("cache unavailable, reading indexes directly",
			"backend", s.cfg.Cache.Backend, "error", err)
		return nil, nil
	}
	compression, err := cache.ParseCompression(s.cfg.Cache.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSdutil, err)
	}
	c, err := cache.New(b, &cache.Options{
		Compression:  compression,
		StaleAfter:   s.cfg.Cache.StaleAfter,
		WaitTimeout:  s.cfg.Cache.WaitTimeout,
		PollInterval: s.cfg.Cache.PollInterval,
		Logger:       s.logger,
		Registerer:   s.registerer(),
	})
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("%w: %w", ErrSdutil, err)
	}
	s.cache = c
	s.closer = closer
	return s.cache, nil
}

// openDicts opens the dictionaries in the data directories. cacheRequired
// is passed to indexCache.
func (s *session) openDicts(ctx context.Context, cacheRequired bool) ([]*stardict.Stardict, []error, error) {
	c, err := s.indexCache(ctx, cacheRequired)
	if err != nil {
		return nil, nil, err
	}
	order, err := idx.ParseSortOrder(s.cfg.Order)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSdutil, err)
	}
	opts := &stardict.Options{
		Cache:      c,
		Order:      order,
		Logger:     s.logger,
		Registerer: s.registerer(),
	}

	var dicts []*stardict.Stardict
	var errs []error
	for _, path := range s.dirs {
		openDicts, openErrs := stardict.OpenAll(path, opts)

		dicts = append(dicts, openDicts...)
		errs = append(errs, openErrs...)
	}
	return dicts, errs, nil
}

// closeDicts closes dictionaries and logs errors.
func (s *session) closeDicts(dicts []*stardict.Stardict) {
	for _, d := range dicts {
		if err := d.Close(); err != nil {
			s.logger.Warn("closing dictionary", "path", d.Path(), "error", err)
		}
	}
}

// openBackend opens the configured cache backend. The returned closer is nil
// if the backend needs no cleanup.
func openBackend(ctx context.Context, cfg *config.CacheConfig) (cache.Backend, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return cache.NewMemoryBackend(), nil, nil
	case config.BackendSQLite:
		st, err := sqlstore.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrSdutil, err)
		}
		return st, st, nil
	case config.BackendPostgres:
		st, err := sqlstore.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrSdutil, err)
		}
		return st, st, nil
	case config.BackendBolt:
		st, err := boltstore.Open(cfg.Path, cfg.WaitTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrSdutil, err)
		}
		return st, st, nil
	case config.BackendRedis:
		st, err := redisstore.Open(ctx, &redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrSdutil, err)
		}
		return st, st, nil
	default:
		return nil, nil, fmt.Errorf("%w: cache backend %q", ErrUnsupported, cfg.Backend)
	}
}
