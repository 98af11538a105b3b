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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

var (
	// ErrOutOfOrder indicates a record sorts before the record preceding it.
	ErrOutOfOrder = errors.New("record out of order")

	// ErrEmptyHeadword indicates a record with an empty headword.
	ErrEmptyHeadword = errors.New("empty headword")

	// ErrWordCount indicates the number of records differs from the
	// wordcount declared in the .ifo file.
	ErrWordCount = errors.New("word count mismatch")

	// ErrIndexSize indicates the size of the index differs from the
	// idxfilesize declared in the .ifo file.
	ErrIndexSize = errors.New("index size mismatch")
)

// StructuralError is returned when the index content is malformed. Index is
// the zero-based position of the offending record.
type StructuralError struct {
	Index int
	Word  string
	Err   error
}

// Error implements [error.Error].
func (e *StructuralError) Error() string {
	if e.Word == "" {
		return fmt.Sprintf("index record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("index record %d (%q): %v", e.Index, e.Word, e.Err)
}

// Unwrap returns the underlying error.
func (e *StructuralError) Unwrap() error {
	return e.Err
}

// maxRecordSize is the largest record the scanner will buffer.
const maxRecordSize = 1 << 20

// Scanner scans an index from start to end.
type Scanner struct {
	r     io.ReadCloser
	s     *bufio.Scanner
	codec Codec
	opts  ScannerOptions

	word  *Word
	prev  *Word
	count int
	size  uint64
	err   error
}

// ScannerOptions are options for scanning an .idx file.
type ScannerOptions struct {
	// OffsetBits are the number of bits in the offset fields. Valid values for
	// OffsetBits are either 32 or 64.
	OffsetBits int

	// DictSize is the uncompressed size of the .dict file. Records past the
	// end of the dictionary are rejected. Zero disables the check.
	DictSize uint64

	// Order is the sort order the index must follow.
	Order SortOrder

	// WordCount is the expected number of records. Zero disables the check.
	WordCount uint64

	// IndexSize is the expected size of the uncompressed index in bytes.
	// Zero disables the check.
	IndexSize uint64
}

// DefaultScannerOptions is the default options for a Scanner.
var DefaultScannerOptions = &ScannerOptions{
	OffsetBits: 32,
	Order:      FoldedOrder,
}

// NewScanner return a new index scanner that scans the index from start to
// end. The Scanner assumes ownership of the reader and should be closed with the
// Close method.
func NewScanner(r io.ReadCloser, options *ScannerOptions) (*Scanner, error) {
	if options == nil {
		options = DefaultScannerOptions
	}

	codec := StarDictCodec(options.OffsetBits)
	codec.DictSize = options.DictSize
	if err := codec.validate(); err != nil {
		return nil, err
	}
	s := &Scanner{
		r:     r,
		s:     bufio.NewScanner(bufio.NewReader(r)),
		codec: codec,
		opts:  *options,
	}
	s.s.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	s.s.Split(s.splitIndex)
	return s, nil
}

// Scan advances the index to the next index entry. It returns false if the
// scan stops either by reaching the end of the index or an error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	s.word = nil

	if !s.s.Scan() {
		if err := s.s.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("%w: %w", ErrMalformedRecord, err)
			}
			s.err = &StructuralError{Index: s.count, Err: err}
			return false
		}
		s.err = s.checkTotals()
		return false
	}

	token := s.s.Bytes()
	w, _, err := s.codec.Decode(token, 0)
	if err != nil {
		s.err = &StructuralError{Index: s.count, Err: err}
		return false
	}
	if w.Word == "" {
		s.err = &StructuralError{Index: s.count, Err: ErrEmptyHeadword}
		return false
	}
	if s.prev != nil && s.opts.Order.Compare(s.prev.Word, w.Word) > 0 {
		s.err = &StructuralError{
			Index: s.count,
			Word:  w.Word,
			Err:   fmt.Errorf("%w: %q sorts after %q", ErrOutOfOrder, s.prev.Word, w.Word),
		}
		return false
	}

	s.word = w
	s.prev = w
	s.count++
	s.size += uint64(len(token))
	return true
}

func (s *Scanner) checkTotals() error {
	if s.opts.WordCount > 0 && uint64(s.count) != s.opts.WordCount {
		return &StructuralError{
			Index: s.count,
			Err:   fmt.Errorf("%w: declared %d, found %d", ErrWordCount, s.opts.WordCount, s.count),
		}
	}
	if s.opts.IndexSize > 0 && s.size != s.opts.IndexSize {
		return &StructuralError{
			Index: s.count,
			Err:   fmt.Errorf("%w: declared %d, found %d", ErrIndexSize, s.opts.IndexSize, s.size),
		}
	}
	return nil
}

// Err returns the first error encountered.
func (s *Scanner) Err() error {
	return s.err
}

// Close closes the underlying reader.
func (s *Scanner) Close() error {
	err := s.r.Close()
	if err != nil {
		return fmt.Errorf("closing idx file: %w", err)
	}
	return nil
}

// Word gets the current entry in the index.
func (s *Scanner) Word() *Word {
	return s.word
}

// Words returns an iterator over the remaining records. A scan error is
// yielded as the final element. The iterator can only be consumed once.
func (s *Scanner) Words() iter.Seq2[*Word, error] {
	return func(yield func(*Word, error) bool) {
		for s.Scan() {
			if !yield(s.Word(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// splitIndex splits an index entry in the index file.
func (s *Scanner) splitIndex(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		// Found zero byte.
		tokenSize := i + 1 + s.codec.tailSize()
		if len(data) >= tokenSize {
			return tokenSize, data[:tokenSize], nil
		}
	}

	if atEOF {
		// Return the partial record. Decoding reports it as malformed.
		return len(data), data, nil
	}

	// Request more data.
	return 0, nil, nil
}
