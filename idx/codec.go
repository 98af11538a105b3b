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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidIdxOffset indicates that the OffsetBits is an invalid value.
	ErrInvalidIdxOffset = errors.New("invalid idxoffsetbits")

	// ErrMalformedRecord indicates that a record could not be encoded or
	// decoded.
	ErrMalformedRecord = errors.New("malformed index record")
)

// Codec encodes and decodes single index records. A record is the headword
// followed by a zero byte terminator, the offset and the size. The offset and
// size are unsigned big-endian integers of OffsetBits and SizeBits bits.
type Codec struct {
	// OffsetBits is the width of the offset field. Either 32 or 64.
	OffsetBits int

	// SizeBits is the width of the size field. Either 32 or 64.
	SizeBits int

	// DictSize is the declared uncompressed size of the .dict file. Records
	// addressing data past DictSize are rejected when decoding. Zero disables
	// the check.
	DictSize uint64
}

// StarDictCodec returns the codec for .idx files with the given idxoffsetbits.
func StarDictCodec(offsetBits int) Codec {
	return Codec{
		OffsetBits: offsetBits,
		SizeBits:   32,
	}
}

func (c Codec) validate() error {
	if c.OffsetBits != 32 && c.OffsetBits != 64 {
		return fmt.Errorf("%w: %v", ErrInvalidIdxOffset, c.OffsetBits)
	}
	if c.SizeBits != 32 && c.SizeBits != 64 {
		return fmt.Errorf("%w: invalid size width %v", ErrMalformedRecord, c.SizeBits)
	}
	return nil
}

// tailSize returns the size of the fixed width fields following the headword
// terminator.
func (c Codec) tailSize() int {
	return c.OffsetBits/8 + c.SizeBits/8
}

// Append appends the encoded record to dst and returns the extended buffer.
func (c Codec) Append(dst []byte, w *Word) ([]byte, error) {
	if err := c.validate(); err != nil {
		return dst, err
	}
	if strings.IndexByte(w.Word, 0) >= 0 {
		return dst, fmt.Errorf("%w: headword %q contains a zero byte", ErrMalformedRecord, w.Word)
	}
	if c.OffsetBits == 32 && w.Offset > math.MaxUint32 {
		return dst, fmt.Errorf("%w: offset %d does not fit in 32 bits", ErrMalformedRecord, w.Offset)
	}
	if c.SizeBits == 32 && w.Size > math.MaxUint32 {
		return dst, fmt.Errorf("%w: size %d does not fit in 32 bits", ErrMalformedRecord, w.Size)
	}

	dst = append(dst, w.Word...)
	dst = append(dst, 0)
	if c.OffsetBits == 64 {
		dst = binary.BigEndian.AppendUint64(dst, w.Offset)
	} else {
		//nolint:gosec // bounds checked above.
		dst = binary.BigEndian.AppendUint32(dst, uint32(w.Offset))
	}
	if c.SizeBits == 64 {
		dst = binary.BigEndian.AppendUint64(dst, w.Size)
	} else {
		//nolint:gosec // bounds checked above.
		dst = binary.BigEndian.AppendUint32(dst, uint32(w.Size))
	}
	return dst, nil
}

// Decode decodes the record starting at b[cursor:]. It returns the record
// and the number of bytes consumed.
func (c Codec) Decode(b []byte, cursor int) (*Word, int, error) {
	if err := c.validate(); err != nil {
		return nil, 0, err
	}
	if cursor < 0 || cursor > len(b) {
		return nil, 0, fmt.Errorf("%w: cursor %d outside buffer of %d bytes", ErrMalformedRecord, cursor, len(b))
	}

	rec := b[cursor:]
	i := bytes.IndexByte(rec, 0)
	if i < 0 {
		return nil, 0, fmt.Errorf("%w: missing headword terminator", ErrMalformedRecord)
	}
	n := i + 1 + c.tailSize()
	if len(rec) < n {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrMalformedRecord, n, len(rec))
	}

	w := &Word{
		Word: string(rec[:i]),
	}
	p := rec[i+1:]
	if c.OffsetBits == 64 {
		w.Offset = binary.BigEndian.Uint64(p)
		p = p[8:]
	} else {
		w.Offset = uint64(binary.BigEndian.Uint32(p))
		p = p[4:]
	}
	if c.SizeBits == 64 {
		w.Size = binary.BigEndian.Uint64(p)
	} else {
		w.Size = uint64(binary.BigEndian.Uint32(p))
	}

	if c.DictSize > 0 {
		end := w.Offset + w.Size
		if end < w.Offset || end > c.DictSize {
			return nil, 0, fmt.Errorf("%w: %q at offset %d size %d exceeds dictionary size %d",
				ErrMalformedRecord, w.Word, w.Offset, w.Size, c.DictSize)
		}
	}

	return w, n, nil
}
