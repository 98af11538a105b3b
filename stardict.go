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

package stardict

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/transform"

	"github.com/ianlewis/sdengine/cache"
	"github.com/ianlewis/sdengine/dict"
	"github.com/ianlewis/sdengine/dz"
	"github.com/ianlewis/sdengine/idx"
	"github.com/ianlewis/sdengine/ifo"
	"github.com/ianlewis/sdengine/internal/folding"
	"github.com/ianlewis/sdengine/internal/logging"
	"github.com/ianlewis/sdengine/internal/metrics"
	"github.com/ianlewis/sdengine/syn"
)

// DefaultLinkPrefix marks a definition that refers to another headword.
const DefaultLinkPrefix = "@@@LINK="

// Options are options for opening dictionaries.
type Options struct {
	// Cache stores parsed indexes. If nil the index is parsed from the .idx
	// file when first used.
	Cache *cache.Cache

	// Order is the sort order of the .idx file.
	Order idx.SortOrder

	// Folder returns a [transform.Transformer] applied to queries and
	// synonyms before searching. Headwords in the .idx file are not folded
	// so the folder should not change what Order considers equal.
	Folder func() transform.Transformer

	// LinkPrefix marks definitions that refer to another headword.
	LinkPrefix string

	// Dictzip are options for reading dictzip compressed .dict files.
	Dictzip *dz.Options

	// Logger is the logger to use. Defaults to [slog.Default].
	Logger *slog.Logger

	// Registerer registers lookup metrics if not nil.
	Registerer prometheus.Registerer
}

// DefaultOptions is the default options for a Stardict.
var DefaultOptions = &Options{
	Order:      idx.FoldedOrder,
	Folder:     folding.Whitespace,
	LinkPrefix: DefaultLinkPrefix,
}

// Stardict is a stardict dictionary. It is safe for concurrent use.
type Stardict struct {
	ifoPath string
	options Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	version          string
	bookname         string
	wordcount        uint64
	synwordcount     uint64
	idxfilesize      uint64
	idxoffsetbits    int
	author           string
	email            string
	website          string
	description      string
	date             string
	sametypesequence []dict.DataType

	idxMu sync.Mutex
	idx   *idx.Idx

	dictMu sync.Mutex
	dict   *dict.Dict

	synMu     sync.Mutex
	syn       *syn.Syn
	synLoaded bool
}

// OpenAll opens all dictionaries under a directory. This function will return
// all successfully opened dictionaries along with any errors that occurred.
func OpenAll(path string, options *Options) ([]*Stardict, []error) {
	var dicts []*Stardict
	var errs []error
	if err := filepath.WalkDir(path, func(path string, info fs.DirEntry, err error) error {
		// Walking the file path will ignore errors.
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if !info.IsDir() && (filepath.Ext(info.Name()) == ".ifo" || filepath.Ext(info.Name()) == ".IFO") {
			dict, err := Open(path, options)
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			dicts = append(dicts, dict)
		}
		return nil
	}); err != nil {
		errs = append(errs, err)
		return nil, errs
	}
	return dicts, errs
}

// Open opens a Stardict dictionary from the given .ifo file path. Only the
// .ifo file is read. The other files are opened when first used.
func Open(path string, options *Options) (*Stardict, error) {
	if options == nil {
		options = DefaultOptions
	}

	ifoExt := filepath.Ext(path)
	if ifoExt != ".ifo" && ifoExt != ".IFO" {
		return nil, fmt.Errorf("%w: %v", errBadExtension, ifoExt)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	info, err := ifo.New(f)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	m, err := metrics.New(options.Registerer)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	s := &Stardict{
		ifoPath:       path,
		options:       *options,
		metrics:       m,
		idxoffsetbits: 32,
	}
	if s.options.Folder == nil {
		s.options.Folder = DefaultOptions.Folder
	}
	if s.options.LinkPrefix == "" {
		s.options.LinkPrefix = DefaultOptions.LinkPrefix
	}

	if err := s.readMetadata(info); err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	s.logger = logging.Component(options.Logger, "stardict").With("bookname", s.bookname)

	return s, nil
}

// readMetadata validates and reads the .ifo values.
func (s *Stardict) readMetadata(info *ifo.Ifo) error {
	if info.Magic() != ifo.FileMagic {
		return errBadMagic
	}

	// Validate the version before anything else.
	s.version = info.Value("version")
	switch s.version {
	case "2.4.2":
	case "3.0.0":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormatVersion, s.version)
	}

	s.bookname = info.Value("bookname")
	if s.bookname == "" {
		return fmt.Errorf("%w: missing bookname", ErrInvalidMetadata)
	}

	var err error
	if s.wordcount, err = parseCount(info, "wordcount", true); err != nil {
		return err
	}
	if s.idxfilesize, err = parseCount(info, "idxfilesize", true); err != nil {
		return err
	}
	if s.synwordcount, err = parseCount(info, "synwordcount", false); err != nil {
		return err
	}

	idxoffsetbits := info.Value("idxoffsetbits")
	if idxoffsetbits != "" && s.version == "3.0.0" {
		switch idxoffsetbits {
		case "32":
			s.idxoffsetbits = 32
		case "64":
			s.idxoffsetbits = 64
		default:
			return fmt.Errorf("%w: idxoffsetbits %q", ErrInvalidMetadata, idxoffsetbits)
		}
	}

	for _, r := range []byte(info.Value("sametypesequence")) {
		s.sametypesequence = append(s.sametypesequence, dict.DataType(r))
	}

	s.author = info.Value("author")
	s.email = info.Value("email")
	s.website = info.Value("website")
	s.description = info.Value("description")
	s.date = info.Value("date")

	return nil
}

func parseCount(info *ifo.Ifo, key string, required bool) (uint64, error) {
	v := info.Value(key)
	if v == "" && !required {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s: %w", ErrInvalidMetadata, key, err)
	}
	return n, nil
}

// Path returns the path to the .ifo file.
func (s *Stardict) Path() string {
	return s.ifoPath
}

// Bookname returns the dictionary name.
func (s *Stardict) Bookname() string {
	return s.bookname
}

// Description returns the dictionary description.
func (s *Stardict) Description() string {
	return s.description
}

// Author returns the dictionary author.
func (s *Stardict) Author() string {
	return s.author
}

// Email returns the dictionary contact email.
func (s *Stardict) Email() string {
	return s.email
}

// Website returns the dictionary website url.
func (s *Stardict) Website() string {
	return s.website
}

// Date returns the dictionary creation date.
func (s *Stardict) Date() string {
	return s.date
}

// WordCount returns the dictionary word count.
func (s *Stardict) WordCount() uint64 {
	return s.wordcount
}

// SynWordCount returns the number of synonyms.
func (s *Stardict) SynWordCount() uint64 {
	return s.synwordcount
}

// IdxFileSize returns the declared uncompressed size of the .idx file.
func (s *Stardict) IdxFileSize() uint64 {
	return s.idxfilesize
}

// IdxOffsetBits returns the width of offsets in the .idx file.
func (s *Stardict) IdxOffsetBits() int {
	return s.idxoffsetbits
}

// SameTypeSequence returns the types of every word's data if the dictionary
// declares them.
func (s *Stardict) SameTypeSequence() []dict.DataType {
	return s.sametypesequence
}

// Version returns the dictionary format version.
func (s *Stardict) Version() string {
	return s.version
}

// IdxPath returns the path of the .idx file.
func (s *Stardict) IdxPath() (string, error) {
	//nolint:wrapcheck // error includes the file type.
	return idx.FindPath(s.ifoPath)
}

// Index returns an in-memory version of the dictionary's index. The index is
// read through the cache if one is configured.
func (s *Stardict) Index(ctx context.Context) (*idx.Idx, error) {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	if s.idx != nil {
		return s.idx, nil
	}

	path, err := s.IdxPath()
	if err != nil {
		return nil, err
	}

	opts := &idx.ScannerOptions{
		OffsetBits: s.idxoffsetbits,
		Order:      s.options.Order,
		WordCount:  s.wordcount,
		IndexSize:  s.idxfilesize,
	}
	// Records are checked against the data size when the .dict file can be
	// opened. Otherwise the failure is reported per definition.
	if d, err := s.Dict(); err == nil {
		opts.DictSize = uint64(d.Size()) //nolint:gosec // sizes are non-negative.
	}
	build := func() iter.Seq2[*idx.Word, error] {
		return idx.ScanFile(path, opts)
	}

	var words []*idx.Word
	if s.options.Cache != nil {
		id, err := cache.IdentityOf(path)
		if err != nil {
			return nil, err
		}
		id.Variant = scanVariant(opts)
		words, err = s.options.Cache.GetOrBuild(ctx, id, build)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
	} else {
		for w, err := range build() {
			if err != nil {
				return nil, fmt.Errorf("reading %q: %w", path, err)
			}
			words = append(words, w)
		}
	}

	s.idx = idx.FromWords(words, s.options.Order)
	s.logger.Debug("index loaded", "path", path, "records", len(words))
	return s.idx, nil
}

// scanVariant describes the options that affect which records a scan
// accepts.
func scanVariant(opts *idx.ScannerOptions) string {
	return fmt.Sprintf("order=%s offsetbits=%d dictsize=%d", opts.Order, opts.OffsetBits, opts.DictSize)
}

// Invalidate removes the dictionary's index from the cache and memory.
func (s *Stardict) Invalidate(ctx context.Context) error {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	s.idx = nil
	if s.options.Cache == nil {
		return nil
	}

	path, err := s.IdxPath()
	if err != nil {
		return err
	}
	id, err := cache.IdentityOf(path)
	if err != nil {
		return err
	}
	//nolint:wrapcheck // error includes the index location.
	return s.options.Cache.Invalidate(ctx, id)
}

// Dict returns the dictionary's dict. The returned error wraps
// [ErrDictUnavailable] if the .dict file cannot be opened.
func (s *Stardict) Dict() (*dict.Dict, error) {
	s.dictMu.Lock()
	defer s.dictMu.Unlock()

	if s.dict != nil {
		return s.dict, nil
	}
	d, err := dict.NewFromIfoPath(s.ifoPath, &dict.Options{
		SameTypeSequence: s.sametypesequence,
		Dictzip:          s.options.Dictzip,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDictUnavailable, err)
	}
	s.dict = d
	return s.dict, nil
}

// Syn returns the dictionary's synonym index. It returns nil if the
// dictionary has no .syn file.
func (s *Stardict) Syn() (*syn.Syn, error) {
	s.synMu.Lock()
	defer s.synMu.Unlock()

	if s.synLoaded {
		return s.syn, nil
	}
	sy, err := syn.NewFromIfoPath(s.ifoPath, &syn.Options{
		Folder:    s.options.Folder,
		Order:     s.options.Order,
		WordCount: s.synwordcount,
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err //nolint:wrapcheck // error includes the path.
	}
	s.syn = sy
	s.synLoaded = true
	return s.syn, nil
}

// Close closes the dictionary's open files.
func (s *Stardict) Close() error {
	s.dictMu.Lock()
	defer s.dictMu.Unlock()

	if s.dict == nil {
		return nil
	}
	err := s.dict.Close()
	s.dict = nil
	//nolint:wrapcheck // dict errors are wrapped.
	return err
}
