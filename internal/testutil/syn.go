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
	"encoding/binary"
	"testing"

	"github.com/ianlewis/sdengine/syn"
)

// MakeSyn makes a test .syn file given a list of synonyms.
func MakeSyn(t *testing.T, words []*syn.Word) []byte {
	t.Helper()

	b := []byte{}
	for _, w := range words {
		b = append(b, []byte(w.Word)...)
		b = append(b, 0)
		b = binary.BigEndian.AppendUint32(b, w.OriginalWordIndex)
	}
	return b
}
