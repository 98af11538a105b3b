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
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/ianlewis/sdengine/idx"
)

// MakeIndex make a test index given a list of words.
func MakeIndex(words []*idx.Word, idxoffsetbits int) []byte {
	b := []byte{}
	for _, w := range words {
		b = append(b, []byte(w.Word)...)
		b = append(b, 0) // Add the zero byte terminator.
		if w.Size > math.MaxUint32 {
			panic(fmt.Sprintf("word size too large %d", w.Size))
		}
		switch idxoffsetbits {
		case 32:
			if w.Offset > math.MaxUint32 {
				panic(fmt.Sprintf("word offset too large %d > %d", w.Offset, idxoffsetbits))
			}
			//nolint:gosec // test code, offset size determined by idxoffsetbits
			b = binary.BigEndian.AppendUint32(b, uint32(w.Offset))
		case 64:
			b = binary.BigEndian.AppendUint64(b, w.Offset)
		default:
			panic(fmt.Sprintf("unsupported offset bits: %d", idxoffsetbits))
		}
		//nolint:gosec // bounds checked above.
		b = binary.BigEndian.AppendUint32(b, uint32(w.Size))
	}
	return b
}

// Gzip compresses b with gzip.
func Gzip(t *testing.T, b []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	z := gzip.NewWriter(&buf)
	if _, err := z.Write(b); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := z.Close(); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	return buf.Bytes()
}
