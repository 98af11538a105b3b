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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/ianlewis/go-dictzip"

	"github.com/ianlewis/sdengine/dz"
	"github.com/ianlewis/sdengine/internal/testutil"
)

const plaintext = "abcdefghijKLMNOPQRST"

func newReader(t *testing.T, b []byte, opts *dz.Options) *dz.Reader {
	t.Helper()

	z, err := dz.NewReader(bytes.NewReader(b), int64(len(b)), opts)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return z
}

func TestReader_ReadAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		off    int64
		length int
	}{
		{
			name:   "spans chunk boundary",
			off:    8,
			length: 6,
		},
		{
			name:   "within first chunk",
			off:    2,
			length: 5,
		},
		{
			name:   "within last chunk",
			off:    12,
			length: 8,
		},
		{
			name:   "whole file",
			off:    0,
			length: 20,
		},
		{
			name:   "empty at end",
			off:    20,
			length: 0,
		},
	}

	for _, sep := range []bool{false, true} {
		b := testutil.MakeDictzip(t, []byte(plaintext), &testutil.DictzipOptions{
			ChunkLen:           10,
			SeparateFinalBlock: sep,
		})

		for _, test := range tests {
			t.Run(fmt.Sprintf("%s/separate=%v", test.name, sep), func(t *testing.T) {
				t.Parallel()

				z := newReader(t, b, nil)
				got := make([]byte, test.length)
				n, err := z.ReadAt(got, test.off)
				if err != nil {
					t.Fatalf("ReadAt: %v", err)
				}
				if diff := cmp.Diff(test.length, n); diff != "" {
					t.Errorf("ReadAt n (-want, +got):\n%s", diff)
				}
				want := plaintext[test.off : test.off+int64(test.length)]
				if diff := cmp.Diff(want, string(got)); diff != "" {
					t.Errorf("ReadAt (-want, +got):\n%s", diff)
				}
			})
		}
	}
}

func TestReader_AllRanges(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20))
	for _, chunkLen := range []int{1, 7, 64, 1000} {
		b := testutil.MakeDictzip(t, data, &testutil.DictzipOptions{ChunkLen: chunkLen})
		z := newReader(t, b, &dz.Options{CacheChunks: 2})

		if diff := cmp.Diff(int64(len(data)), z.Size()); diff != "" {
			t.Fatalf("Size (-want, +got):\n%s", diff)
		}

		// Every range starting at every 13th offset.
		for off := 0; off < len(data); off += 13 {
			for length := 0; off+length <= len(data); length += 17 {
				got := make([]byte, length)
				if _, err := z.ReadAt(got, int64(off)); err != nil {
					t.Fatalf("chunk %d: ReadAt(%d, %d): %v", chunkLen, off, length, err)
				}
				if !bytes.Equal(data[off:off+length], got) {
					t.Fatalf("chunk %d: ReadAt(%d, %d) = %q", chunkLen, off, length, got)
				}
			}
		}
	}
}

func TestReader_OutOfBounds(t *testing.T) {
	t.Parallel()

	b := testutil.MakeDictzip(t, []byte(plaintext), &testutil.DictzipOptions{ChunkLen: 10})
	z := newReader(t, b, nil)

	tests := []struct {
		name   string
		off    int64
		length int
	}{
		{"past end", 15, 6},
		{"after end", 21, 0},
		{"negative offset", -1, 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			n, err := z.ReadAt(make([]byte, test.length), test.off)
			if diff := cmp.Diff(dz.ErrRangeOutOfBounds, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("ReadAt (-want, +got):\n%s", diff)
			}
			if n != 0 {
				t.Errorf("ReadAt n = %d, want 0", n)
			}
		})
	}
}

func TestReader_InflateFailure(t *testing.T) {
	t.Parallel()

	t.Run("garbage chunk", func(t *testing.T) {
		t.Parallel()

		b := testutil.MakeDictzip(t, []byte(plaintext), &testutil.DictzipOptions{ChunkLen: 10})
		z := newReader(t, b, nil)

		// Overwrite the first chunk's data.
		hdr := z.Header()
		for i := hdr.Offsets[0]; i < hdr.Offsets[1]; i++ {
			b[i] = 0xff
		}

		_, err := z.ReadAt(make([]byte, 4), 0)
		if diff := cmp.Diff(dz.ErrInflateFailure, err, cmpopts.EquateErrors()); diff != "" {
			t.Fatalf("ReadAt (-want, +got):\n%s", diff)
		}

		// The second chunk is still readable.
		got := make([]byte, 4)
		if _, err := z.ReadAt(got, 12); err != nil {
			t.Fatalf("ReadAt: %v", err)
		}
		if diff := cmp.Diff(plaintext[12:16], string(got)); diff != "" {
			t.Fatalf("ReadAt (-want, +got):\n%s", diff)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		t.Parallel()

		b := testutil.MakeDictzip(t, []byte(plaintext), &testutil.DictzipOptions{ChunkLen: 10})
		// Claim chunks of 11 bytes. ISIZE is still consistent but each
		// chunk inflates to the wrong size.
		b[18] = 11
		z := newReader(t, b, nil)

		_, err := z.ReadAt(make([]byte, 2), 0)
		if diff := cmp.Diff(dz.ErrInflateFailure, err, cmpopts.EquateErrors()); diff != "" {
			t.Fatalf("ReadAt first chunk (-want, +got):\n%s", diff)
		}
		_, err = z.ReadAt(make([]byte, 2), 15)
		if diff := cmp.Diff(dz.ErrInflateFailure, err, cmpopts.EquateErrors()); diff != "" {
			t.Fatalf("ReadAt last chunk (-want, +got):\n%s", diff)
		}
	})
}

func TestReader_Concurrent(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat("0123456789", 100))
	b := testutil.MakeDictzip(t, data, &testutil.DictzipOptions{ChunkLen: 32})
	z := newReader(t, b, &dz.Options{CacheChunks: 3})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for off := w; off+50 <= len(data); off += 37 {
				got := make([]byte, 50)
				if _, err := z.ReadAt(got, int64(off)); err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(data[off:off+50], got) {
					errs <- fmt.Errorf("ReadAt(%d) = %q", off, got)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// TestReader_DictzipWriter checks that files written by the dictzip writer
// are read correctly.
func TestReader_DictzipWriter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	for i := range 5000 {
		fmt.Fprintf(&sb, "line %d of the dictionary with some text to compress\n", i)
	}
	data := []byte(sb.String())

	path := filepath.Join(t.TempDir(), "dictionary.dict.dz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := dictzip.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	z := newReader(t, b, nil)
	if diff := cmp.Diff(int64(len(data)), z.Size()); diff != "" {
		t.Fatalf("Size (-want, +got):\n%s", diff)
	}

	for _, r := range [][2]int{{0, 100}, {len(data) / 2, 70000}, {len(data) - 10, 10}} {
		got := make([]byte, r[1])
		if _, err := z.ReadAt(got, int64(r[0])); err != nil {
			t.Fatalf("ReadAt(%d, %d): %v", r[0], r[1], err)
		}
		if !bytes.Equal(data[r[0]:r[0]+r[1]], got) {
			t.Fatalf("ReadAt(%d, %d): content mismatch", r[0], r[1])
		}
	}
}
