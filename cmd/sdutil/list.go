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

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"
)

func listCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List dictionaries",
		UsageText: "list",
		Action: func(c *cli.Context) error {
			dicts, errs, err := s.openDicts(c.Context, false)
			if err != nil {
				return err
			}
			defer s.closeDicts(dicts)
			for _, err := range errs {
				fmt.Fprintln(c.App.ErrWriter, err)
			}

			tbl := table.New("Name", "Author", "Words", "Synonyms", "Version", "Path").
				WithWriter(c.App.Writer)
			for _, d := range dicts {
				tbl.AddRow(d.Bookname(), d.Author(), d.WordCount(), d.SynWordCount(), d.Version(), d.Path())
			}
			tbl.Print()

			if len(errs) > 0 {
				return fmt.Errorf("%w: %d dictionaries could not be opened", ErrSdutil, len(errs))
			}
			return nil
		},
	}
}
