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

package idx

import (
	"errors"
	"fmt"
	"strings"
)

var errUnknownSortOrder = errors.New("unknown sort order")

// SortOrder is the order of headwords in an index file.
type SortOrder int

const (
	// FoldedOrder is the order used by StarDict itself. Headwords are compared
	// ignoring ASCII case and ties are broken by comparing the raw bytes.
	FoldedOrder SortOrder = iota

	// ByteOrder compares the raw headword bytes.
	ByteOrder
)

// ParseSortOrder parses the name of a sort order.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(s) {
	case "", "folded":
		return FoldedOrder, nil
	case "byte", "bytes":
		return ByteOrder, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownSortOrder, s)
	}
}

// String implements [fmt.Stringer].
func (o SortOrder) String() string {
	switch o {
	case FoldedOrder:
		return "folded"
	case ByteOrder:
		return "byte"
	default:
		return fmt.Sprintf("SortOrder(%d)", int(o))
	}
}

// Compare is the total order headwords in an index must follow.
func (o SortOrder) Compare(a, b string) int {
	if o == ByteOrder {
		return strings.Compare(a, b)
	}
	if c := asciiFoldCompare(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Match compares a and b under the equivalence used for lookups. Headwords
// that Match a query are always adjacent in an index sorted by Compare.
func (o SortOrder) Match(a, b string) int {
	if o == ByteOrder {
		return strings.Compare(a, b)
	}
	return asciiFoldCompare(a, b)
}

func asciiFoldCompare(a, b string) int {
	n := min(len(a), len(b))
	for i := range n {
		ca, cb := asciiLower(a[i]), asciiLower(b[i])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func asciiLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
