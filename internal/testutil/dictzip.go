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

package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"
	"testing"

	"github.com/klauspost/compress/flate"
)

// DictzipOptions are options for MakeDictzip.
type DictzipOptions struct {
	// ChunkLen is the uncompressed chunk size.
	ChunkLen int

	// SeparateFinalBlock writes the final deflate block after the last chunk
	// instead of inside it, as the dictzip(1) tool does.
	SeparateFinalBlock bool

	// Name is written as the gzip FNAME field.
	Name string

	// Comment is written as the gzip FCOMMENT field.
	Comment string

	// ChunkSizeAdjust is added to the recorded size of the first chunk.
	ChunkSizeAdjust int

	// ISize overrides the ISIZE trailer field when non-zero.
	ISize uint32
}

// MakeDictzip compresses data in the dictzip format.
func MakeDictzip(t *testing.T, data []byte, opts *DictzipOptions) []byte {
	t.Helper()
	if opts == nil || opts.ChunkLen <= 0 {
		t.Fatal("MakeDictzip: chunk length required")
	}

	var body bytes.Buffer
	fw, err := flate.NewWriter(&body, flate.BestCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}

	var sizes []int
	for off := 0; off < len(data); off += opts.ChunkLen {
		end := min(off+opts.ChunkLen, len(data))
		start := body.Len()

		// Each chunk is an independent deflate stream so no chunk refers back
		// to the data of another chunk.
		fw.Reset(&body)
		if _, err := fw.Write(data[off:end]); err != nil {
			t.Fatalf("flate.Write: %v", err)
		}
		if end == len(data) && !opts.SeparateFinalBlock {
			err = fw.Close()
		} else {
			err = fw.Flush()
		}
		if err != nil {
			t.Fatalf("flate: %v", err)
		}
		sizes = append(sizes, body.Len()-start)
	}
	if len(data) == 0 || opts.SeparateFinalBlock {
		fw.Reset(&body)
		if err := fw.Close(); err != nil {
			t.Fatalf("flate.Close: %v", err)
		}
	}

	if len(sizes) > math.MaxUint16 {
		t.Fatalf("MakeDictzip: too many chunks: %d", len(sizes))
	}
	if len(sizes) > 0 {
		sizes[0] += opts.ChunkSizeAdjust
	}

	ra := binary.LittleEndian.AppendUint16(nil, 1)
	//nolint:gosec // test code
	ra = binary.LittleEndian.AppendUint16(ra, uint16(opts.ChunkLen))
	//nolint:gosec // checked above
	ra = binary.LittleEndian.AppendUint16(ra, uint16(len(sizes)))
	for _, s := range sizes {
		if s > math.MaxUint16 || s < 0 {
			t.Fatalf("MakeDictzip: chunk size %d out of range", s)
		}
		//nolint:gosec // checked above
		ra = binary.LittleEndian.AppendUint16(ra, uint16(s))
	}

	flg := byte(1 << 2) // FEXTRA
	if opts.Name != "" {
		flg |= 1 << 3
	}
	if opts.Comment != "" {
		flg |= 1 << 4
	}

	b := []byte{0x1f, 0x8b, 8, flg, 0, 0, 0, 0, 2, 3}
	//nolint:gosec // test code
	b = binary.LittleEndian.AppendUint16(b, uint16(4+len(ra)))
	b = append(b, 'R', 'A')
	//nolint:gosec // test code
	b = binary.LittleEndian.AppendUint16(b, uint16(len(ra)))
	b = append(b, ra...)
	if opts.Name != "" {
		b = append(b, opts.Name...)
		b = append(b, 0)
	}
	if opts.Comment != "" {
		b = append(b, opts.Comment...)
		b = append(b, 0)
	}
	b = append(b, body.Bytes()...)
	b = binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(data))
	isize := opts.ISize
	if isize == 0 {
		//nolint:gosec // ISIZE is the size modulo 2^32.
		isize = uint32(len(data))
	}
	b = binary.LittleEndian.AppendUint32(b, isize)
	return b
}
