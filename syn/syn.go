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

// Package syn implements reading .syn synonym files.
package syn

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/transform"

	"github.com/ianlewis/sdengine/idx"
	"github.com/ianlewis/sdengine/internal/folding"
	"github.com/ianlewis/sdengine/internal/index"
)

// Word is a .syn file entry.
type Word struct {
	// Word is the synonym word.
	Word string

	// OriginalWordIndex is the index into the .idx index.
	OriginalWordIndex uint32
}

type foldedWord struct {
	folded string
	word   *Word
}

func (w *foldedWord) key() string {
	return w.folded
}

// Options are options for the syn data.
type Options struct {
	// Folder returns a [transform.Transformer] that performs folding (e.g.
	// case folding, whitespace folding, etc.) on synonyms and queries.
	Folder func() transform.Transformer

	// Order is the comparison used to match folded synonyms.
	Order idx.SortOrder

	// WordCount is the expected number of synonyms. Zero skips the check.
	WordCount uint64
}

// DefaultOptions is the default options for a Syn.
var DefaultOptions = &Options{
	Folder: func() transform.Transformer {
		return transform.Nop
	},
	Order: idx.FoldedOrder,
}

// Syn is is the synonym index. It is largely a map of synonym words to related
// index entries.
type Syn struct {
	// index is sorted by the folded word value.
	index *index.Index[*foldedWord]

	// foldTransformer performs folding on text.
	foldTransformer func() transform.Transformer
}

// New returns a new Syn by reading the data from r. r is closed when New
// returns.
func New(r io.ReadCloser, options *Options) (*Syn, error) {
	if options == nil {
		options = DefaultOptions
	}

	syn := Syn{
		foldTransformer: DefaultOptions.Folder,
	}
	if options.Folder != nil {
		syn.foldTransformer = options.Folder
	}

	s, err := NewScanner(r)
	if err != nil {
		return nil, fmt.Errorf("creating synonym index scanner: %w", err)
	}
	defer s.Close()

	var words []*foldedWord
	for s.Scan() {
		word := s.Word()
		folded, err := folding.String(syn.foldTransformer, word.Word)
		if err != nil {
			return nil, fmt.Errorf("folding word %q: %w", word.Word, err)
		}

		words = append(words, &foldedWord{
			folded: folded,
			word:   word,
		})
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scanning synonym index: %w", err)
	}
	if options.WordCount != 0 && uint64(len(words)) != options.WordCount {
		return nil, fmt.Errorf("scanning synonym index: %w: got %d records, want %d",
			idx.ErrWordCount, len(words), options.WordCount)
	}

	// We need to re-sort based on the folded word.
	syn.index = index.New(words, (*foldedWord).key, options.Order.Match)

	return &syn, nil
}

// NewFromIfoPath returns a new in-memory synonym index for the .syn file next
// to the given .ifo file. The file may be compressed with gzip.
func NewFromIfoPath(ifoPath string, options *Options) (*Syn, error) {
	path, err := FindPath(ifoPath)
	if err != nil {
		return nil, err
	}
	r, err := idx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening .syn file: %w", err)
	}
	s, err := New(r, options)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return s, nil
}

// FindPath returns the path of the .syn file given the path to the .ifo file.
// The returned error wraps [os.ErrNotExist] if there is no .syn file.
func FindPath(ifoPath string) (string, error) {
	baseName := strings.TrimSuffix(ifoPath, filepath.Ext(ifoPath))

	synExts := []string{
		".syn",
		".syn.gz",
		".syn.GZ",
		".syn.dz",
		".syn.DZ",
		".SYN",
		".SYN.gz",
		".SYN.GZ",
		".SYN.dz",
		".SYN.DZ",
	}
	for _, ext := range synExts {
		p := baseName + ext
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("opening .syn file: %w", err)
		}
	}
	return "", fmt.Errorf("opening .syn file: %w", os.ErrNotExist)
}

// Len returns the number of synonyms.
func (syn *Syn) Len() int {
	return syn.index.Len()
}

// Search performs a query of the index and returns matching words.
func (syn *Syn) Search(query string) ([]*Word, error) {
	foldedQuery, err := folding.String(syn.foldTransformer, query)
	if err != nil {
		return nil, fmt.Errorf("folding query %q: %w", query, err)
	}

	result := syn.index.Search(foldedQuery)

	var words []*Word
	for _, w := range result {
		words = append(words, w.word)
	}

	return words, nil
}
