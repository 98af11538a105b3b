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

package idx_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ianlewis/sdengine/idx"
	"github.com/ianlewis/sdengine/internal/testutil"
)

func TestScanFile(t *testing.T) {
	t.Parallel()

	words := []*idx.Word{
		{Word: "apple", Offset: 0, Size: 5},
		{Word: "banana", Offset: 5, Size: 6},
		{Word: "cherry", Offset: 11, Size: 6},
	}
	raw := testutil.MakeIndex(words, 32)

	tests := []struct {
		name string
		ext  string
		data []byte
	}{
		{
			name: "plain",
			ext:  ".idx",
			data: raw,
		},
		{
			name: "gzip",
			ext:  ".idx.gz",
			data: testutil.Gzip(t, raw),
		},
		{
			// Compression is detected from the content.
			name: "gzip without extension",
			ext:  ".idx",
			data: testutil.Gzip(t, raw),
		},
		{
			name: "upper case",
			ext:  ".IDX",
			data: raw,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			ifoPath := filepath.Join(dir, "dictionary.ifo")
			if err := os.WriteFile(filepath.Join(dir, "dictionary"+test.ext), test.data, 0o600); err != nil {
				t.Fatal(err)
			}

			path, err := idx.FindPath(ifoPath)
			if err != nil {
				t.Fatalf("FindPath: %v", err)
			}

			seq := idx.ScanFile(path, &idx.ScannerOptions{
				OffsetBits: 32,
				WordCount:  3,
				IndexSize:  uint64(len(raw)),
			})

			// The sequence can be consumed more than once.
			for range 2 {
				var got []*idx.Word
				for w, err := range seq {
					if err != nil {
						t.Fatalf("ScanFile: %v", err)
					}
					got = append(got, w)
				}
				if diff := cmp.Diff(words, got); diff != "" {
					t.Fatalf("ScanFile (-want, +got):\n%s", diff)
				}
			}
		})
	}
}

func TestScanFile_Missing(t *testing.T) {
	t.Parallel()

	var gotErr error
	for _, err := range idx.ScanFile(filepath.Join(t.TempDir(), "missing.idx"), nil) {
		gotErr = err
	}
	if diff := cmp.Diff(os.ErrNotExist, gotErr, cmpopts.EquateErrors()); diff != "" {
		t.Fatalf("ScanFile (-want, +got):\n%s", diff)
	}
}

func TestFindPath_Missing(t *testing.T) {
	t.Parallel()

	_, err := idx.FindPath(filepath.Join(t.TempDir(), "dictionary.ifo"))
	if diff := cmp.Diff(os.ErrNotExist, err, cmpopts.EquateErrors()); diff != "" {
		t.Fatalf("FindPath (-want, +got):\n%s", diff)
	}
}

func TestIdx_At(t *testing.T) {
	t.Parallel()

	words := []*idx.Word{
		{Word: "apple", Offset: 0, Size: 5},
		{Word: "banana", Offset: 5, Size: 6},
	}
	index := idx.FromWords(words, idx.FoldedOrder)

	if diff := cmp.Diff(2, index.Len()); diff != "" {
		t.Errorf("Len (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(words[1], index.At(1)); diff != "" {
		t.Errorf("At(1) (-want, +got):\n%s", diff)
	}
	if got := index.At(2); got != nil {
		t.Errorf("At(2) = %v, want nil", got)
	}
	if got := index.At(-1); got != nil {
		t.Errorf("At(-1) = %v, want nil", got)
	}
}
