// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//go:build !windows
package main

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUniqueDirs(t *testing.T) {
	t.Parallel()

	a := filepath.Join("data", "stardict", "dic")
	b := filepath.Join("home", ".stardict", "dic")

	tests := []struct {
		name     string
		dirs     []string
		expected []string
	}{
		{
			name:     "empty",
			dirs:     nil,
			expected: nil,
		},
		{
			name:     "keeps order",
			dirs:     []string{b, a},
			expected: []string{b, a},
		},
		{
			name:     "duplicates",
			dirs:     []string{a, b, a},
			expected: []string{a, b},
		},
		{
			name:     "unclean",
			dirs:     []string{a + string(filepath.Separator), b, filepath.Join(a, "..", "dic")},
			expected: []string{a, b},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(test.expected, uniqueDirs(test.dirs)); diff != "" {
				t.Errorf("uniqueDirs (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultDataDirs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STARDICT_DATA_DIR", dir)

	got := defaultDataDirs()
	want := filepath.Join(dir, "dic")
	for _, d := range got {
		if d == want {
			return
		}
	}
	t.Errorf("defaultDataDirs() = %q, missing %q", got, want)
}
