// Copyright 2021 Google LLC
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

package idx

import (
	"io"
	"sort"
)

// Word is an .idx file entry.
type Word struct {
	Word   string
	Offset uint64
	Size   uint64
}

// Idx is an in-memory index table. Records are kept in file order, which is
// sorted by the index's SortOrder, and searched with a binary search.
type Idx struct {
	words []*Word
	order SortOrder
}

// New returns a new in-memory index read from r. The reader is closed when
// the index has been read.
func New(r io.ReadCloser, options *ScannerOptions) (*Idx, error) {
	s, err := NewScanner(r, options)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	idx := &Idx{
		order: s.opts.Order,
	}
	for s.Scan() {
		idx.words = append(idx.words, s.Word())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	return idx, nil
}

// FromWords returns an index over words, which must already be sorted by
// order. The slice is retained by the index.
func FromWords(words []*Word, order SortOrder) *Idx {
	return &Idx{
		words: words,
		order: order,
	}
}

// Len returns the number of records in the index.
func (idx *Idx) Len() int {
	return len(idx.words)
}

// At returns the i-th record of the index or nil if i is out of range.
func (idx *Idx) At(i int) *Word {
	if i < 0 || i >= len(idx.words) {
		return nil
	}
	return idx.words[i]
}

// Words returns the records of the index in order. The returned slice must
// not be modified.
func (idx *Idx) Words() []*Word {
	return idx.words
}

// Order returns the sort order of the index.
func (idx *Idx) Order() SortOrder {
	return idx.order
}

// Search performs a query of the index and returns matching words.
// Multiple words may have the same headword. All matches are returned in
// index order.
func (idx *Idx) Search(query string) []*Word {
	i, found := sort.Find(len(idx.words), func(i int) int {
		return idx.order.Match(query, idx.words[i].Word)
	})
	if !found {
		return nil
	}

	j := i + 1
	for j < len(idx.words) && idx.order.Match(query, idx.words[j].Word) == 0 {
		j++
	}
	return idx.words[i:j]
}
