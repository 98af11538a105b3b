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

// Package dict implements reading .dict files.
package dict

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/k3a/html2text"
	"github.com/klauspost/compress/gzip"

	"github.com/ianlewis/sdengine/dz"
	"github.com/ianlewis/sdengine/idx"
)

var (
	errInvalidType = errors.New("invalid type")

	// ErrInvalidData indicates that a word's data does not match its types.
	ErrInvalidData = errors.New("invalid word data")

	// ErrRangeOutOfBounds indicates an index entry addresses data past the
	// end of the dictionary.
	ErrRangeOutOfBounds = dz.ErrRangeOutOfBounds
)

// Compression is the compression format of a .dict file.
type Compression int

const (
	// CompressionNone is an uncompressed .dict file.
	CompressionNone Compression = iota

	// CompressionGzip is a .dict file compressed with plain gzip. It must be
	// decompressed in full to be read.
	CompressionGzip

	// CompressionDictzip is a .dict file compressed with dictzip which
	// supports random access.
	CompressionDictzip
)

// String implements [fmt.Stringer].
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionDictzip:
		return "dictzip"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// Dict represents a Stardict dictionary's dictionary data.
type Dict struct {
	r                io.ReaderAt
	closer           io.Closer
	size             int64
	compression      Compression
	sametypesequence []DataType
}

// Word is a full dictionary entry.
type Word struct {
	Data []*Data
}

// DataType is a type of data in a word. Data types are specified by a single
// byte at the beginning of a word. Lower case characters represent string-like
// data that is terminated by a null terminator ('\0'). Upper case characters
// represent file-like data that starts with a 32-bit size followed by file
// data.
type DataType byte

const (
	// UTFTextType is utf-8 text.
	UTFTextType = DataType('m')

	// LocaleTextType is text in a locale encoding.
	LocaleTextType = DataType('l')

	// PangoTextType is utf-8 text in the Pango text format.
	PangoTextType = DataType('g')

	// PhoneticType is utf-8 text representing an English phonetic string.
	PhoneticType = DataType('t')

	// XDXFType is utf-8 encoded xml in XDXF format.
	XDXFType = DataType('x')

	// YinBiaoOrKataType is utf-8 encoded Yin Biao or Kana phonetic string.
	YinBiaoOrKataType = DataType('y')

	// PowerWordType is a utf-8 encoded KingSoft PowerWord XML format.
	PowerWordType = DataType('p')

	// MediaWikiType is utf-8 encoded text in MediaWiki format.
	MediaWikiType = DataType('w')

	// HTMLType is utf-8 encoded HTML text.
	HTMLType = DataType('h')

	// WordNetType is WordNet data.
	WordNetType = DataType('n')

	// ResourceFileListType is a list of files in resource storage.
	ResourceFileListType = DataType('r')

	// WavType is .wav sound file data.
	WavType = DataType('W')

	// PictureType is image file data. This was used by the
	// stardict-advertisement-plugin. Images are better stored in a resource
	// file list.
	PictureType = DataType('P')

	// ExperimentalType is reserved for experimental features.
	ExperimentalType = DataType('X')
)

// IsString returns true if the data type is string-like. String-like data is
// terminated by a null byte rather than prefixed by its size.
func (t DataType) IsString() bool {
	return 'a' <= t && t <= 'z'
}

// Data is a data entry in a Word.
type Data struct {
	Type DataType
	Data []byte
}

// String returns a plain text rendering of the data. Data types without a
// text rendering return an empty string.
func (d *Data) String() string {
	switch d.Type {
	case UTFTextType, LocaleTextType, PhoneticType, YinBiaoOrKataType:
		return string(d.Data)
	case HTMLType:
		return html2text.HTML2Text(string(d.Data))
	default:
		return ""
	}
}

// Options are options for reading dictionary data.
type Options struct {
	// SameTypeSequence is the sametypesequence of the dictionary.
	SameTypeSequence []DataType

	// Dictzip are options for reading dictzip files.
	Dictzip *dz.Options
}

// DefaultOptions is the default options for a Dict.
var DefaultOptions = &Options{}

// New returns a new Dict from the given reader of size bytes. The compression
// format is detected from the data. If r implements [io.Closer], Dict takes
// ownership of the reader and it is closed by the Dict's Close method.
func New(r io.ReaderAt, size int64, options *Options) (*Dict, error) {
	if options == nil {
		options = DefaultOptions
	}

	// verify sametypesequence
	for _, s := range options.SameTypeSequence {
		switch s {
		case UTFTextType,
			LocaleTextType,
			PangoTextType,
			PhoneticType,
			XDXFType,
			YinBiaoOrKataType,
			PowerWordType,
			MediaWikiType,
			HTMLType,
			WordNetType,
			ResourceFileListType,
			WavType,
			PictureType,
			ExperimentalType:
		default:
			return nil, fmt.Errorf("%w: %v", errInvalidType, s)
		}
	}

	d := &Dict{
		r:                r,
		size:             size,
		sametypesequence: options.SameTypeSequence,
	}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}

	c, err := Detect(r, size)
	if err != nil {
		return nil, err
	}
	d.compression = c

	switch c {
	case CompressionDictzip:
		z, err := dz.NewReader(r, size, options.Dictzip)
		if err != nil {
			return nil, fmt.Errorf("reading dictzip header: %w", err)
		}
		d.r = z
		d.size = z.Size()
	case CompressionGzip:
		gz, err := gzip.NewReader(io.NewSectionReader(r, 0, size))
		if err != nil {
			return nil, fmt.Errorf("reading gzip dictionary: %w", err)
		}
		b, err := io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("reading gzip dictionary: %w", err)
		}
		d.r = bytes.NewReader(b)
		d.size = int64(len(b))
	case CompressionNone:
	}

	return d, nil
}

// Detect returns the compression format of the dictionary data from its
// header. A gzip file without a chunk directory is plain gzip. A chunk
// directory that is present but invalid is an error.
func Detect(r io.ReaderAt, size int64) (Compression, error) {
	magic := make([]byte, 2)
	if n, _ := r.ReadAt(magic, 0); n < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return CompressionNone, nil
	}

	_, err := dz.ReadHeader(r, size)
	switch {
	case err == nil:
		return CompressionDictzip, nil
	case errors.Is(err, dz.ErrNoChunkDirectory):
		return CompressionGzip, nil
	default:
		return CompressionNone, fmt.Errorf("reading dictzip header: %w", err)
	}
}

// Open opens the .dict file at path.
func Open(path string, options *Options) (*Dict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening .dict file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("opening .dict file: %w", err)
	}

	d, err := New(f, fi.Size(), options)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return d, nil
}

// NewFromIfoPath opens the .dict file for the given .ifo file path.
func NewFromIfoPath(ifoPath string, options *Options) (*Dict, error) {
	path, err := FindPath(ifoPath)
	if err != nil {
		return nil, err
	}
	return Open(path, options)
}

// FindPath returns the path of the .dict file next to the given .ifo file.
func FindPath(ifoPath string) (string, error) {
	baseName := strings.TrimSuffix(ifoPath, filepath.Ext(ifoPath))

	dictExts := []string{
		".dict.dz",
		".dict",
		".dict.gz",
		".DICT",
		".DICT.dz",
		".DICT.DZ",
		".DICT.GZ",
	}
	for _, ext := range dictExts {
		p := baseName + ext
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("opening .dict file: %w", err)
		}
	}
	return "", fmt.Errorf("opening .dict file: %w", os.ErrNotExist)
}

// Size returns the uncompressed size of the dictionary data.
func (d *Dict) Size() int64 {
	return d.size
}

// Compression returns the compression format of the dictionary.
func (d *Dict) Compression() Compression {
	return d.compression
}

// Close closes the underlying reader.
func (d *Dict) Close() error {
	if d.closer == nil {
		return nil
	}
	if err := d.closer.Close(); err != nil {
		return fmt.Errorf("closing dict: %w", err)
	}
	return nil
}

// Raw returns the raw data for the given index entry.
func (d *Dict) Raw(e *idx.Word) ([]byte, error) {
	end := e.Offset + e.Size
	if end < e.Offset || e.Offset > math.MaxInt64 || end > uint64(d.size) {
		return nil, fmt.Errorf("%w: %q at offset %d size %d of %d bytes",
			ErrRangeOutOfBounds, e.Word, e.Offset, e.Size, d.size)
	}

	b := make([]byte, e.Size)
	//nolint:gosec // offset size is bounds checked above.
	if _, err := d.r.ReadAt(b, int64(e.Offset)); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	return b, nil
}

// Word retrieves the word for the given index entry from the
// dictionary.
func (d *Dict) Word(e *idx.Word) (*Word, error) {
	b, err := d.Raw(e)
	if err != nil {
		return nil, err
	}
	return d.Parse(b)
}

// Parse splits raw word data into typed data entries.
func (d *Dict) Parse(b []byte) (*Word, error) {
	var wordData []*Data
	if len(d.sametypesequence) > 0 {
		// When sametypesequence is specified, that determines the type of the
		// word's data. The last entry's size is implied by the word size so it
		// has neither a null terminator nor a size.
		for i, t := range d.sametypesequence {
			var data []byte
			var err error
			if i == len(d.sametypesequence)-1 {
				data, b = b, nil
			} else {
				data, b, err = splitData(t, b)
				if err != nil {
					return nil, err
				}
			}
			wordData = append(wordData, &Data{
				Type: t,
				Data: data,
			})
		}
	} else {
		for len(b) > 0 {
			t := DataType(b[0])
			b = b[1:]

			data, rest, err := splitData(t, b)
			if err != nil {
				return nil, err
			}
			b = rest
			wordData = append(wordData, &Data{
				Type: t,
				Data: data,
			})
		}
	}

	return &Word{
		Data: wordData,
	}, nil
}

// splitData splits the data of type t from the front of b.
func splitData(t DataType, b []byte) ([]byte, []byte, error) {
	if t.IsString() {
		// Data is a string like sequence.
		i := bytes.IndexByte(b, 0)
		if i < 0 {
			// Tolerate a missing terminator on the final entry.
			return b, nil, nil
		}
		return b[:i], b[i+1:], nil
	}

	// Data is a file like sequence.
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated size of %q data", ErrInvalidData, t)
	}
	size := binary.BigEndian.Uint32(b)
	if uint64(size) > uint64(len(b)-4) {
		return nil, nil, fmt.Errorf("%w: %q data of %d bytes exceeds word", ErrInvalidData, t, size)
	}
	return b[4 : 4+size], b[4+size:], nil
}
