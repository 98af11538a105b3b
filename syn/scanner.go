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

package syn

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ianlewis/sdengine/idx"
)

// ErrMalformedRecord indicates a .syn record could not be decoded.
var ErrMalformedRecord = errors.New("malformed synonym record")

// recordTail is the size of the original word index following the
// terminator.
const recordTail = 4

// Scanner scans a synonym index from start to end.
type Scanner struct {
	r     io.ReadCloser
	s     *bufio.Scanner
	word  *Word
	count int
	err   error
}

// NewScanner return a new synonym index scanner that scans the index from start to
// end. The Scanner assumes ownership of the reader and should be closed with the
// Close method.
func NewScanner(r io.ReadCloser) (*Scanner, error) {
	s := &Scanner{
		r: r,
		s: bufio.NewScanner(bufio.NewReader(r)),
	}
	s.s.Split(splitRecord)
	return s, nil
}

// NewScannerFromIfoPath returns a scanner for the .syn file next to the given
// .ifo file.
func NewScannerFromIfoPath(ifoPath string) (*Scanner, error) {
	path, err := FindPath(ifoPath)
	if err != nil {
		return nil, err
	}
	r, err := idx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening .syn file: %w", err)
	}
	return NewScanner(r)
}

// Scan advances the index to the next index entry. It returns false if the
// scan stops either by reaching the end of the index or an error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	if !s.s.Scan() {
		return false
	}

	b := s.s.Bytes()
	i := bytes.IndexByte(b, 0)
	if i < 0 || len(b)-i-1 != recordTail {
		s.err = fmt.Errorf("%w: record %d", ErrMalformedRecord, s.count)
		s.word = nil
		return false
	}
	s.word = &Word{
		Word:              string(b[:i]),
		OriginalWordIndex: binary.BigEndian.Uint32(b[i+1:]),
	}
	s.count++
	return true
}

// Err returns the first error encountered.
func (s *Scanner) Err() error {
	if s.err != nil {
		return s.err
	}
	if err := s.s.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%w: record %d: %w", ErrMalformedRecord, s.count, err)
		}
		return fmt.Errorf("reading .syn file: %w", err)
	}
	return nil
}

// Close closes the underlying reader.
func (s *Scanner) Close() error {
	err := s.r.Close()
	if err != nil {
		return fmt.Errorf("closing syn file: %w", err)
	}
	return nil
}

// Word gets the current entry in the index.
func (s *Scanner) Word() *Word {
	return s.word
}

// splitRecord splits a synonym record in the .syn file.
func splitRecord(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		// Found zero byte. The record continues for the 32 bit
		// original_word_index.
		tokenSize := i + 1 + recordTail
		if len(data) >= tokenSize {
			return tokenSize, data[:tokenSize], nil
		}
	}

	if atEOF {
		// Truncated record. It is reported by Scan.
		return len(data), data, nil
	}

	// Request more data.
	return 0, nil, nil
}
