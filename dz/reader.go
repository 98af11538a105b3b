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

package dz

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrInflateFailure indicates a chunk did not decompress to its expected
	// size.
	ErrInflateFailure = errors.New("chunk inflate failure")

	// ErrRangeOutOfBounds indicates a read past the uncompressed size.
	ErrRangeOutOfBounds = errors.New("range out of bounds")
)

// Options are options for a Reader.
type Options struct {
	// CacheChunks is the number of decompressed chunks kept in memory.
	// Zero disables caching.
	CacheChunks int
}

// DefaultOptions is the default options for a Reader.
var DefaultOptions = &Options{
	CacheChunks: 16,
}

// Reader provides random access to the uncompressed content of a dictzip
// file. It is safe for concurrent use.
type Reader struct {
	r     io.ReaderAt
	hdr   *Header
	cache *chunkCache
}

// NewReader reads the dictzip header of r, a file of size fileSize, and
// returns a Reader for its uncompressed content.
func NewReader(r io.ReaderAt, fileSize int64, options *Options) (*Reader, error) {
	if options == nil {
		options = DefaultOptions
	}

	hdr, err := ReadHeader(r, fileSize)
	if err != nil {
		return nil, err
	}

	return &Reader{
		r:     r,
		hdr:   hdr,
		cache: newChunkCache(options.CacheChunks),
	}, nil
}

// Header returns the parsed dictzip header.
func (z *Reader) Header() *Header {
	return z.hdr
}

// Size returns the uncompressed size.
func (z *Reader) Size() int64 {
	return z.hdr.Size
}

// ReadAt implements [io.ReaderAt]. Only the chunks overlapping
// [off, off+len(p)) are decompressed. Reading past the uncompressed size
// fails with ErrRangeOutOfBounds and reads nothing.
func (z *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int64(len(p)) > z.hdr.Size-off {
		return 0, fmt.Errorf("%w: [%d, %d) of %d bytes", ErrRangeOutOfBounds, off, off+int64(len(p)), z.hdr.Size)
	}
	if len(p) == 0 {
		return 0, nil
	}

	chunkLen := int64(z.hdr.ChunkLen)
	first := int(off / chunkLen)
	last := int((off + int64(len(p)) - 1) / chunkLen)

	n := 0
	for i := first; i <= last; i++ {
		c, err := z.chunk(i)
		if err != nil {
			return n, err
		}
		start := int64(0)
		if i == first {
			start = off - int64(i)*chunkLen
		}
		n += copy(p[n:], c[start:])
	}
	return n, nil
}

// chunk returns the uncompressed content of chunk i.
func (z *Reader) chunk(i int) ([]byte, error) {
	if b, ok := z.cache.get(i); ok {
		return b, nil
	}

	compressed := make([]byte, z.hdr.ChunkSizes[i])
	if _, err := z.r.ReadAt(compressed, z.hdr.Offsets[i]); err != nil {
		return nil, fmt.Errorf("reading chunk %d: %w", i, err)
	}

	fr := flate.NewReader(bytes.NewReader(compressed))
	defer fr.Close()

	b := make([]byte, z.hdr.chunkSize(i))
	if _, err := io.ReadFull(fr, b); err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %w", ErrInflateFailure, i, err)
	}
	// The chunk must not hold more data than its expected size.
	var extra [1]byte
	if n, _ := fr.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("%w: chunk %d larger than %d bytes", ErrInflateFailure, i, len(b))
	}

	z.cache.put(i, b)
	return b, nil
}
