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

package idx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// gzipMagic is the first two bytes of a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// FindPath returns the path of the .idx file next to the given .ifo file.
func FindPath(ifoPath string) (string, error) {
	baseName := strings.TrimSuffix(ifoPath, filepath.Ext(ifoPath))

	idxExts := []string{
		".idx",
		".idx.gz",
		".idx.dz",
		".IDX",
		".IDX.gz",
		".IDX.GZ",
		".IDX.DZ",
	}
	for _, ext := range idxExts {
		p := baseName + ext
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("opening .idx file: %w", err)
		}
	}
	return "", fmt.Errorf("opening .idx file: %w", os.ErrNotExist)
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Open opens the .idx file at path. An index wrapped in gzip is decompressed
// transparently. Compression is detected from the file content.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening .idx file: %w", err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	if string(magic) != string(gzipMagic) {
		return &readCloser{Reader: br, closers: []io.Closer{f}}, nil
	}

	z, err := gzip.NewReader(br)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating .idx gzip reader: %w", err)
	}
	return &readCloser{Reader: z, closers: []io.Closer{z, f}}, nil
}

// ScanFile returns a sequence of the records in the .idx file at path. Each
// iteration opens and scans the file from the start.
func ScanFile(path string, options *ScannerOptions) iter.Seq2[*Word, error] {
	return func(yield func(*Word, error) bool) {
		r, err := Open(path)
		if err != nil {
			yield(nil, err)
			return
		}
		s, err := NewScanner(r, options)
		if err != nil {
			_ = r.Close()
			yield(nil, err)
			return
		}
		defer s.Close()

		for w, err := range s.Words() {
			if !yield(w, err) {
				return
			}
		}
	}
}
