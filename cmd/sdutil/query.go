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
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ianlewis/sdengine"
)

func queryCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Query dictionaries",
		UsageText: "query WORD...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("%w: missing query", ErrFlagParse)
			}
			query := strings.Join(c.Args().Slice(), " ")

			dicts, errs, err := s.openDicts(c.Context, false)
			if err != nil {
				return err
			}
			defer s.closeDicts(dicts)
			for _, err := range errs {
				fmt.Fprintln(c.App.ErrWriter, err)
			}

			found := false
			for _, d := range dicts {
				entries, err := d.Lookup(c.Context, query)
				if errors.Is(err, stardict.ErrNotFound) {
					continue
				}
				if err != nil {
					fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", d.Bookname(), err)
					continue
				}

				found = true
				fmt.Fprintf(c.App.Writer, "==> %s <==\n", d.Bookname())
				for _, e := range entries {
					if e.Err != nil {
						fmt.Fprintf(c.App.ErrWriter, "%s: %s: %v\n", d.Bookname(), e.Headword, e.Err)
						continue
					}
					fmt.Fprintln(c.App.Writer, e)
				}
			}

			if !found {
				return fmt.Errorf("%w: %q", ErrNoResults, query)
			}
			return nil
		},
	}
}
