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
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrNotGzip indicates the file is not a gzip file.
	ErrNotGzip = errors.New("not a gzip file")

	// ErrNoChunkDirectory indicates a gzip file without a dictzip chunk
	// directory. The file can only be read sequentially.
	ErrNoChunkDirectory = errors.New("no dictzip chunk directory")

	// ErrUnsupportedVersion indicates an unknown chunk directory version.
	ErrUnsupportedVersion = errors.New("unsupported dictzip version")

	// ErrCorruptChunkDirectory indicates the chunk directory is inconsistent
	// with the rest of the file.
	ErrCorruptChunkDirectory = errors.New("corrupt chunk directory")
)

const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8

	flagHdrCrc  = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4

	// trailerSize is the size of the gzip CRC32 and ISIZE trailer.
	trailerSize = 8

	// raVersion is the only chunk directory version in use.
	raVersion = 1
)

// Header is a parsed dictzip header.
type Header struct {
	// ModTime is the gzip modification time.
	ModTime time.Time

	// Name is the original file name, if present.
	Name string

	// Comment is the gzip comment, if present.
	Comment string

	// ChunkLen is the uncompressed size of every chunk but the last.
	ChunkLen int

	// ChunkSizes are the compressed sizes of each chunk.
	ChunkSizes []int

	// Offsets are the file offsets of each chunk's compressed data.
	Offsets []int64

	// DataOffset is the file offset of the first chunk.
	DataOffset int64

	// Size is the uncompressed size of the file.
	Size int64
}

// headerReader reads the variable length gzip header and keeps track of the
// number of bytes read.
type headerReader struct {
	br *bufio.Reader
	n  int64
}

func (h *headerReader) read(n int) ([]byte, error) {
	b := make([]byte, n)
	m, err := io.ReadFull(h.br, b)
	h.n += int64(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (h *headerReader) readString() (string, error) {
	s, err := h.br.ReadString(0)
	h.n += int64(len(s))
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

// ReadHeader reads and validates the dictzip header and chunk directory of
// the file r of size fileSize.
func ReadHeader(r io.ReaderAt, fileSize int64) (*Header, error) {
	h := &headerReader{
		br: bufio.NewReader(io.NewSectionReader(r, 0, fileSize)),
	}

	fixed, err := h.read(10)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotGzip, err)
	}
	if fixed[0] != gzipID1 || fixed[1] != gzipID2 || fixed[2] != gzipDeflate {
		return nil, ErrNotGzip
	}
	flg := fixed[3]
	hdr := &Header{}
	if mtime := binary.LittleEndian.Uint32(fixed[4:8]); mtime > 0 {
		hdr.ModTime = time.Unix(int64(mtime), 0)
	}

	if flg&flagExtra == 0 {
		return nil, ErrNoChunkDirectory
	}
	xlenBytes, err := h.read(2)
	if err != nil {
		return nil, fmt.Errorf("%w: reading extra field: %w", ErrCorruptChunkDirectory, err)
	}
	extra, err := h.read(int(binary.LittleEndian.Uint16(xlenBytes)))
	if err != nil {
		return nil, fmt.Errorf("%w: reading extra field: %w", ErrCorruptChunkDirectory, err)
	}
	ra, err := findRA(extra)
	if err != nil {
		return nil, err
	}
	if err := hdr.parseRA(ra); err != nil {
		return nil, err
	}

	if flg&flagName != 0 {
		if hdr.Name, err = h.readString(); err != nil {
			return nil, fmt.Errorf("%w: reading name: %w", ErrCorruptChunkDirectory, err)
		}
	}
	if flg&flagComment != 0 {
		if hdr.Comment, err = h.readString(); err != nil {
			return nil, fmt.Errorf("%w: reading comment: %w", ErrCorruptChunkDirectory, err)
		}
	}
	if flg&flagHdrCrc != 0 {
		if _, err := h.read(2); err != nil {
			return nil, fmt.Errorf("%w: reading header crc: %w", ErrCorruptChunkDirectory, err)
		}
	}
	hdr.DataOffset = h.n

	if err := hdr.validate(r, fileSize); err != nil {
		return nil, err
	}
	return hdr, nil
}

// findRA returns the data of the RA subfield of the gzip extra field.
func findRA(extra []byte) ([]byte, error) {
	for len(extra) > 0 {
		if len(extra) < 4 {
			return nil, fmt.Errorf("%w: truncated extra subfield", ErrCorruptChunkDirectory)
		}
		si1, si2 := extra[0], extra[1]
		n := int(binary.LittleEndian.Uint16(extra[2:4]))
		if len(extra) < 4+n {
			return nil, fmt.Errorf("%w: extra subfield length %d exceeds extra field", ErrCorruptChunkDirectory, n)
		}
		if si1 == 'R' && si2 == 'A' {
			return extra[4 : 4+n], nil
		}
		extra = extra[4+n:]
	}
	return nil, ErrNoChunkDirectory
}

func (hdr *Header) parseRA(ra []byte) error {
	if len(ra) < 6 {
		return fmt.Errorf("%w: RA subfield too short", ErrCorruptChunkDirectory)
	}
	if ver := binary.LittleEndian.Uint16(ra[0:2]); ver != raVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, ver)
	}
	hdr.ChunkLen = int(binary.LittleEndian.Uint16(ra[2:4]))
	count := int(binary.LittleEndian.Uint16(ra[4:6]))
	if len(ra) != 6+2*count {
		return fmt.Errorf("%w: RA subfield of %d bytes for %d chunks", ErrCorruptChunkDirectory, len(ra), count)
	}
	if hdr.ChunkLen == 0 && count > 0 {
		return fmt.Errorf("%w: zero chunk length", ErrCorruptChunkDirectory)
	}

	hdr.ChunkSizes = make([]int, count)
	for i := range count {
		hdr.ChunkSizes[i] = int(binary.LittleEndian.Uint16(ra[6+2*i:]))
	}
	return nil
}

// validate checks the chunk directory against the file's size and gzip
// trailer and computes the chunk offsets and uncompressed size.
func (hdr *Header) validate(r io.ReaderAt, fileSize int64) error {
	payload := fileSize - hdr.DataOffset - trailerSize
	if payload < 0 {
		return fmt.Errorf("%w: file too short", ErrCorruptChunkDirectory)
	}

	hdr.Offsets = make([]int64, len(hdr.ChunkSizes)+1)
	hdr.Offsets[0] = hdr.DataOffset
	for i, size := range hdr.ChunkSizes {
		hdr.Offsets[i+1] = hdr.Offsets[i] + int64(size)
	}
	end := hdr.Offsets[len(hdr.ChunkSizes)]
	if end > hdr.DataOffset+payload {
		return fmt.Errorf("%w: chunks end at %d past compressed data end %d",
			ErrCorruptChunkDirectory, end, hdr.DataOffset+payload)
	}

	// Bytes between the last chunk and the trailer may only hold the empty
	// final deflate block.
	if slack := hdr.DataOffset + payload - end; slack > 0 {
		b := make([]byte, slack)
		if _, err := r.ReadAt(b, end); err != nil {
			return fmt.Errorf("%w: reading final block: %w", ErrCorruptChunkDirectory, err)
		}
		n, err := io.Copy(io.Discard, flate.NewReader(bytes.NewReader(b)))
		if err != nil || n != 0 {
			return fmt.Errorf("%w: %d bytes of unaccounted data after the last chunk",
				ErrCorruptChunkDirectory, slack)
		}
	}

	trailer := make([]byte, trailerSize)
	if _, err := r.ReadAt(trailer, fileSize-trailerSize); err != nil {
		return fmt.Errorf("%w: reading trailer: %w", ErrCorruptChunkDirectory, err)
	}
	isize := binary.LittleEndian.Uint32(trailer[4:])

	count := int64(len(hdr.ChunkSizes))
	if count == 0 {
		if isize != 0 {
			return fmt.Errorf("%w: no chunks for %d bytes", ErrCorruptChunkDirectory, isize)
		}
		hdr.Size = 0
		return nil
	}

	// ISIZE is the uncompressed size modulo 2^32. The chunk directory bounds
	// the real size to the last chunk's window.
	lo := (count-1)*int64(hdr.ChunkLen) + 1
	hi := count * int64(hdr.ChunkLen)
	//nolint:gosec // modular arithmetic is intended.
	size := lo + int64(isize-uint32(lo))
	if size > hi {
		return fmt.Errorf("%w: uncompressed size %d does not fit %d chunks of %d bytes",
			ErrCorruptChunkDirectory, isize, count, hdr.ChunkLen)
	}
	hdr.Size = size
	return nil
}

// chunkSize returns the uncompressed size of chunk i.
func (hdr *Header) chunkSize(i int) int {
	if i == len(hdr.ChunkSizes)-1 {
		return int(hdr.Size - int64(i)*int64(hdr.ChunkLen))
	}
	return hdr.ChunkLen
}
