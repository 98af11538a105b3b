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

package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ianlewis/sdengine/idx"
)

// ErrCacheCorrupt indicates a stored entry could not be decoded.
var ErrCacheCorrupt = errors.New("cache entry corrupt")

var errUnknownCompression = errors.New("unknown compression")

// Compression is the compression of a stored entry's records.
type Compression uint8

const (
	// CompressionNone stores records uncompressed.
	CompressionNone Compression = iota

	// CompressionLZ4 compresses records with LZ4 block compression.
	CompressionLZ4

	// CompressionZstd compresses records with Zstandard.
	CompressionZstd
)

// ParseCompression parses the name of a compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownCompression, s)
	}
}

// String implements [fmt.Stringer].
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// Entry layout. Integers are little-endian.
//
//	magic       [4]byte "SDXC"
//	version     uint8
//	compression uint8
//	reserved    uint16
//	size        int64   source file size
//	modTime     int64   source file modification time (ns)
//	count       uint64  number of records
//	rawLen      uint64  uncompressed payload length
//	variant     uint32  CRC-32 (IEEE) of the parse settings
//	payload     []byte  records, compressed
//	crc         uint32  CRC-32 (IEEE) of everything above
const (
	entryMagic      = "SDXC"
	entryVersion    = 2
	entryHeaderSize = 44
	entryCRCSize    = 4

	// minRecordSize is the encoded size of a record with a one byte
	// headword.
	minRecordSize = 1 + 1 + 8 + 8

	// maxPayload bounds the allocation made for a payload.
	maxPayload = math.MaxInt32
)

// recordCodec encodes records in the payload.
var recordCodec = idx.Codec{OffsetBits: 64, SizeBits: 64}

var zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
})

var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil)
})

// encodeEntry serializes the records with their fingerprint.
func encodeEntry(fp fingerprint, words []*idx.Word, c Compression) ([]byte, error) {
	var raw []byte
	for _, w := range words {
		var err error
		raw, err = recordCodec.Append(raw, w)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", w.Word, err)
		}
	}

	payload, c, err := compress(raw, c)
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, entryHeaderSize+len(payload)+entryCRCSize)
	b = append(b, entryMagic...)
	b = append(b, entryVersion, byte(c), 0, 0)
	//nolint:gosec // stored as the bit pattern.
	b = binary.LittleEndian.AppendUint64(b, uint64(fp.size))
	//nolint:gosec // stored as the bit pattern.
	b = binary.LittleEndian.AppendUint64(b, uint64(fp.modTime))
	b = binary.LittleEndian.AppendUint64(b, uint64(len(words)))
	b = binary.LittleEndian.AppendUint64(b, uint64(len(raw)))
	b = binary.LittleEndian.AppendUint32(b, fp.variant)
	b = append(b, payload...)
	b = binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
	return b, nil
}

// decodeEntry deserializes an entry. All errors wrap ErrCacheCorrupt.
func decodeEntry(b []byte) (fingerprint, []*idx.Word, error) {
	var fp fingerprint
	if len(b) < entryHeaderSize+entryCRCSize {
		return fp, nil, fmt.Errorf("%w: %d bytes", ErrCacheCorrupt, len(b))
	}
	if string(b[:4]) != entryMagic {
		return fp, nil, fmt.Errorf("%w: bad magic", ErrCacheCorrupt)
	}
	if b[4] != entryVersion {
		return fp, nil, fmt.Errorf("%w: version %d", ErrCacheCorrupt, b[4])
	}

	body, sum := b[:len(b)-entryCRCSize], binary.LittleEndian.Uint32(b[len(b)-entryCRCSize:])
	if crc32.ChecksumIEEE(body) != sum {
		return fp, nil, fmt.Errorf("%w: checksum mismatch", ErrCacheCorrupt)
	}

	c := Compression(b[5])
	//nolint:gosec // stored as the bit pattern.
	fp.size = int64(binary.LittleEndian.Uint64(b[8:]))
	//nolint:gosec // stored as the bit pattern.
	fp.modTime = int64(binary.LittleEndian.Uint64(b[16:]))
	count := binary.LittleEndian.Uint64(b[24:])
	rawLen := binary.LittleEndian.Uint64(b[32:])
	fp.variant = binary.LittleEndian.Uint32(b[40:])
	if rawLen > maxPayload || count > rawLen/minRecordSize {
		return fp, nil, fmt.Errorf("%w: %d records in %d bytes", ErrCacheCorrupt, count, rawLen)
	}

	raw, err := decompress(body[entryHeaderSize:], c, int(rawLen))
	if err != nil {
		return fp, nil, fmt.Errorf("%w: %w", ErrCacheCorrupt, err)
	}

	words := make([]*idx.Word, 0, count)
	cursor := 0
	for cursor < len(raw) {
		w, n, err := recordCodec.Decode(raw, cursor)
		if err != nil {
			return fp, nil, fmt.Errorf("%w: record %d: %w", ErrCacheCorrupt, len(words), err)
		}
		words = append(words, w)
		cursor += n
	}
	if uint64(len(words)) != count {
		return fp, nil, fmt.Errorf("%w: got %d records, want %d", ErrCacheCorrupt, len(words), count)
	}
	return fp, words, nil
}

// compress compresses raw. It returns the compression actually used, which
// is CompressionNone if the data did not compress.
func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4: %w", err)
		}
		if n == 0 {
			// Incompressible.
			return raw, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, 0, fmt.Errorf("zstd: %w", err)
		}
		return enc.EncodeAll(raw, nil), CompressionZstd, nil
	default:
		return nil, 0, fmt.Errorf("%w: %v", errUnknownCompression, c)
	}
}

// decompress decompresses a payload to exactly rawLen bytes.
func decompress(payload []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("payload is %d bytes, want %d", len(payload), rawLen)
		}
		return payload, nil
	case CompressionLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("lz4: decompressed %d bytes, want %d", n, rawLen)
		}
		return raw, nil
	case CompressionZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		raw, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if len(raw) != rawLen {
			return nil, fmt.Errorf("zstd: decompressed %d bytes, want %d", len(raw), rawLen)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %v", errUnknownCompression, c)
	}
}
