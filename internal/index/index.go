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

// Package index implements an in-memory index of values sorted by a string
// key.
package index

import (
	"iter"
	"slices"
)

type entry[V any] struct {
	key   string
	value V
}

// Index is an immutable slice of values sorted by key. It is safe for
// concurrent use.
type Index[V any] struct {
	entries []entry[V]
	cmp     func(string, string) int
}

// New returns an index of values keyed by key(v). cmp(a, b) must define a
// strict weak ordering on keys. Values with equal keys keep their relative
// order from values.
func New[V any](values []V, key func(V) string, cmp func(string, string) int) *Index[V] {
	entries := make([]entry[V], 0, len(values))
	for _, v := range values {
		entries = append(entries, entry[V]{key: key(v), value: v})
	}
	slices.SortStableFunc(entries, func(a, b entry[V]) int {
		return cmp(a.key, b.key)
	})

	return &Index[V]{
		entries: entries,
		cmp:     cmp,
	}
}

// Len returns the number of values in the index.
func (x *Index[V]) Len() int {
	return len(x.entries)
}

// Search returns every value whose key compares equal to query, in index
// order. It returns nil if there is none.
func (x *Index[V]) Search(query string) []V {
	i, found := slices.BinarySearchFunc(x.entries, query, func(e entry[V], q string) int {
		return x.cmp(e.key, q)
	})
	if !found {
		return nil
	}

	var result []V
	for _, e := range x.entries[i:] {
		if x.cmp(e.key, query) != 0 {
			break
		}
		result = append(result, e.value)
	}
	return result
}

// All iterates over the keys and values in index order.
func (x *Index[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, e := range x.entries {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}
