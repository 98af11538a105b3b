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

package dz_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ianlewis/sdengine/dz"
	"github.com/ianlewis/sdengine/internal/testutil"
)

func TestReadHeader(t *testing.T) {
	t.Parallel()

	b := testutil.MakeDictzip(t, []byte(plaintext), &testutil.DictzipOptions{
		ChunkLen: 10,
		Name:     "dictionary.dict",
		Comment:  "a comment",
	})

	hdr, err := dz.ReadHeader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	if diff := cmp.Diff("dictionary.dict", hdr.Name); diff != "" {
		t.Errorf("Name (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff("a comment", hdr.Comment); diff != "" {
		t.Errorf("Comment (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(10, hdr.ChunkLen); diff != "" {
		t.Errorf("ChunkLen (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, len(hdr.ChunkSizes)); diff != "" {
		t.Errorf("len(ChunkSizes) (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(int64(20), hdr.Size); diff != "" {
		t.Errorf("Size (-want, +got):\n%s", diff)
	}
	// 10 fixed + 2 XLEN + 4 subfield header + 10 RA + names.
	wantOffset := int64(26 + len("dictionary.dict") + 1 + len("a comment") + 1)
	if diff := cmp.Diff(wantOffset, hdr.DataOffset); diff != "" {
		t.Errorf("DataOffset (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(hdr.DataOffset+int64(hdr.ChunkSizes[0]), hdr.Offsets[1]); diff != "" {
		t.Errorf("Offsets[1] (-want, +got):\n%s", diff)
	}
}

func TestReadHeader_Empty(t *testing.T) {
	t.Parallel()

	b := testutil.MakeDictzip(t, nil, &testutil.DictzipOptions{ChunkLen: 10})
	hdr, err := dz.ReadHeader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if diff := cmp.Diff(int64(0), hdr.Size); diff != "" {
		t.Errorf("Size (-want, +got):\n%s", diff)
	}
}

func TestReadHeader_Errors(t *testing.T) {
	t.Parallel()

	valid := func(t *testing.T, opts *testutil.DictzipOptions) []byte {
		t.Helper()
		if opts == nil {
			opts = &testutil.DictzipOptions{}
		}
		opts.ChunkLen = 10
		return testutil.MakeDictzip(t, []byte(plaintext), opts)
	}

	tests := []struct {
		name string
		data func(t *testing.T) []byte
		err  error
	}{
		{
			name: "not gzip",
			data: func(*testing.T) []byte {
				return []byte("plain text dictionary data")
			},
			err: dz.ErrNotGzip,
		},
		{
			name: "short file",
			data: func(*testing.T) []byte {
				return []byte{0x1f, 0x8b}
			},
			err: dz.ErrNotGzip,
		},
		{
			name: "plain gzip",
			data: func(t *testing.T) []byte {
				return testutil.Gzip(t, []byte(plaintext))
			},
			err: dz.ErrNoChunkDirectory,
		},
		{
			name: "unsupported version",
			data: func(t *testing.T) []byte {
				b := valid(t, nil)
				b[16] = 2
				return b
			},
			err: dz.ErrUnsupportedVersion,
		},
		{
			name: "chunk count disagrees with subfield length",
			data: func(t *testing.T) []byte {
				b := valid(t, nil)
				b[20] = 3
				return b
			},
			err: dz.ErrCorruptChunkDirectory,
		},
		{
			name: "chunks past end of data",
			data: func(t *testing.T) []byte {
				return valid(t, &testutil.DictzipOptions{ChunkSizeAdjust: 1})
			},
			err: dz.ErrCorruptChunkDirectory,
		},
		{
			name: "unaccounted data after chunks",
			data: func(t *testing.T) []byte {
				return valid(t, &testutil.DictzipOptions{ChunkSizeAdjust: -1})
			},
			err: dz.ErrCorruptChunkDirectory,
		},
		{
			name: "isize too large",
			data: func(t *testing.T) []byte {
				return valid(t, &testutil.DictzipOptions{ISize: 25})
			},
			err: dz.ErrCorruptChunkDirectory,
		},
		{
			name: "isize too small",
			data: func(t *testing.T) []byte {
				return valid(t, &testutil.DictzipOptions{ISize: 5})
			},
			err: dz.ErrCorruptChunkDirectory,
		},
		{
			name: "truncated",
			data: func(t *testing.T) []byte {
				return valid(t, nil)[:24]
			},
			err: dz.ErrCorruptChunkDirectory,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			b := test.data(t)
			_, err := dz.ReadHeader(bytes.NewReader(b), int64(len(b)))
			if diff := cmp.Diff(test.err, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("ReadHeader (-want, +got):\n%s", diff)
			}
		})
	}
}
