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

package index_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ianlewis/sdengine/internal/index"
)

type pair struct {
	Key   string
	Value int
}

func lowerCompare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func newIndex(values []pair) *index.Index[pair] {
	return index.New(values, func(p pair) string { return p.Key }, lowerCompare)
}

func TestIndex_Search(t *testing.T) {
	t.Parallel()

	values := []pair{
		{"foo", 0},
		{"bar", 1},
		{"Baz", 2},
		{"BAR", 3},
		{"qux", 4},
		{"bar", 5},
	}

	tests := []struct {
		name     string
		query    string
		expected []pair
	}{
		{
			name:     "single result",
			query:    "foo",
			expected: []pair{{"foo", 0}},
		},
		{
			name:     "run keeps input order",
			query:    "bar",
			expected: []pair{{"bar", 1}, {"BAR", 3}, {"bar", 5}},
		},
		{
			name:     "query is compared",
			query:    "BAZ",
			expected: []pair{{"Baz", 2}},
		},
		{
			name:     "first key",
			query:    "Bar",
			expected: []pair{{"bar", 1}, {"BAR", 3}, {"bar", 5}},
		},
		{
			name:     "last key",
			query:    "qux",
			expected: []pair{{"qux", 4}},
		},
		{
			name:     "before first",
			query:    "a",
			expected: nil,
		},
		{
			name:     "between keys",
			query:    "fo",
			expected: nil,
		},
		{
			name:     "after last",
			query:    "zzz",
			expected: nil,
		},
	}

	x := newIndex(values)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(test.expected, x.Search(test.query)); diff != "" {
				t.Fatalf("Search (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestIndex_Empty(t *testing.T) {
	t.Parallel()

	x := newIndex(nil)
	if diff := cmp.Diff(0, x.Len()); diff != "" {
		t.Errorf("Len (-want, +got):\n%s", diff)
	}
	if got := x.Search("foo"); got != nil {
		t.Errorf("Search: got %v, want nil", got)
	}
}

func TestIndex_All(t *testing.T) {
	t.Parallel()

	x := newIndex([]pair{{"c", 0}, {"A", 1}, {"b", 2}, {"a", 3}})

	var keys []string
	var got []int
	for k, v := range x.All() {
		keys = append(keys, k)
		got = append(got, v.Value)
	}
	if diff := cmp.Diff([]string{"A", "a", "b", "c"}, keys); diff != "" {
		t.Errorf("All keys (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 3, 2, 0}, got); diff != "" {
		t.Errorf("All values (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(4, x.Len()); diff != "" {
		t.Errorf("Len (-want, +got):\n%s", diff)
	}
}
