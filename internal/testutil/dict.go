// Copyright 2024 Google LLC
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

package testutil

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ianlewis/go-dictzip"

	"github.com/ianlewis/sdengine/dict"
)

// MakeDictOptions are options for MakeTempDict.
type MakeDictOptions struct {
	// Ext is an option file extension for the dict file. Defaluts to
	// '.dict.dz' if DictZip is true. Otherwise '.dict'.
	Ext string

	// DictZip indicates that the dict file should be compressed with DictZip.
	DictZip bool

	// SameTypeSequence is the sametypesequence option.
	SameTypeSequence []dict.DataType
}

// GetExt returns the file extension for the dict file.
func (o *MakeDictOptions) GetExt() string {
	if o != nil {
		if o.Ext != "" {
			return o.Ext
		}
		if o.DictZip {
			return ".dict.dz"
		}
	}
	return ".dict"
}

// MakeTempDict writes a .dict file named "dictionary" plus the extension to
// a temporary directory and returns its path.
func MakeTempDict(t *testing.T, words []*dict.Word, opts *MakeDictOptions) string {
	t.Helper()
	if opts == nil {
		opts = &MakeDictOptions{}
	}

	path := filepath.Join(t.TempDir(), "dictionary"+opts.GetExt())
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	d := MakeDict(t, words, opts.SameTypeSequence)

	if opts.DictZip {
		z, err := dictzip.NewWriter(f)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := z.Write(d); err != nil {
			t.Fatal(err)
		}
		if err := z.Close(); err != nil {
			t.Fatal(err)
		}
	} else {
		if _, err := f.Write(d); err != nil {
			t.Fatal(err)
		}
	}

	return path
}

// MakeDict creates a test .dict file.
func MakeDict(t *testing.T, words []*dict.Word, sameTypeSequence []dict.DataType) []byte {
	t.Helper()

	b := []byte{}
	for _, w := range words {
		b = append(b, MakeWord(t, w, sameTypeSequence)...)
	}
	return b
}

// MakeWord encodes the data of a single word.
func MakeWord(t *testing.T, w *dict.Word, sameTypeSequence []dict.DataType) []byte {
	t.Helper()

	b := []byte{}
	for i, d := range w.Data {
		last := len(sameTypeSequence) > 0 && i == len(w.Data)-1
		if len(sameTypeSequence) == 0 {
			b = append(b, byte(d.Type))
		}
		if 'a' <= d.Type && d.Type <= 'z' {
			// Data is a string like sequence.
			b = append(b, d.Data...)
			// Null terminator is not present on the last data item when
			// using a sametypesequence.
			if !last {
				b = append(b, 0)
			}
		} else {
			// Data is a file like sequence. The size is not present on the
			// last data item when using a sametypesequence.
			if !last {
				dataLen := len(d.Data)
				if dataLen > math.MaxUint32 {
					t.Fatalf("word data too long: %d", dataLen)
				}
				//nolint:gosec // checked above
				b = binary.BigEndian.AppendUint32(b, uint32(dataLen))
			}
			b = append(b, d.Data...)
		}
	}
	return b
}
