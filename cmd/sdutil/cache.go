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
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func cacheCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the index cache",
		Subcommands: []*cli.Command{
			{
				Name:  "warm",
				Usage: "Parse and cache the index of every dictionary",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "jobs",
						Usage: "parse up to `N` indexes at once",
						Value: runtime.NumCPU(),
					},
				},
				Action: func(c *cli.Context) error {
					return s.warm(c)
				},
			},
			{
				Name:  "clear",
				Usage: "Remove every dictionary's index from the cache",
				Action: func(c *cli.Context) error {
					return s.clear(c)
				},
			},
		},
	}
}

func (s *session) warm(c *cli.Context) error {
	dicts, errs, err := s.openDicts(c.Context, true)
	if err != nil {
		return err
	}
	defer s.closeDicts(dicts)
	for _, err := range errs {
		fmt.Fprintln(c.App.ErrWriter, err)
	}

	var failed atomic.Int32
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(max(c.Int("jobs"), 1))
	for _, d := range dicts {
		g.Go(func() error {
			index, err := d.Index(ctx)
			if err != nil {
				failed.Add(1)
				s.logger.Error("warming cache", "path", d.Path(), "error", err)
				return nil
			}
			s.logger.Info("warmed cache", "path", d.Path(), "records", index.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrSdutil, err)
	}

	fmt.Fprintf(c.App.Writer, "%d dictionaries cached\n", len(dicts)-int(failed.Load()))
	if n := int(failed.Load()) + len(errs); n > 0 {
		return fmt.Errorf("%w: %d dictionaries failed", ErrSdutil, n)
	}
	return nil
}

func (s *session) clear(c *cli.Context) error {
	dicts, errs, err := s.openDicts(c.Context, true)
	if err != nil {
		return err
	}
	defer s.closeDicts(dicts)
	for _, err := range errs {
		fmt.Fprintln(c.App.ErrWriter, err)
	}

	failed := 0
	for _, d := range dicts {
		if err := d.Invalidate(c.Context); err != nil {
			failed++
			s.logger.Error("clearing cache", "path", d.Path(), "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d dictionaries failed", ErrSdutil, failed)
	}
	return nil
}
