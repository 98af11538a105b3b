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

package stardict

import (
	"errors"

	"github.com/ianlewis/sdengine/dict"
	"github.com/ianlewis/sdengine/dz"
)

var (
	// ErrNotFound indicates that no record matches the headword. It is a
	// normal negative result rather than a failure of the dictionary.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedFormatVersion indicates the .ifo file declares a version
	// that is not supported.
	ErrUnsupportedFormatVersion = errors.New("unsupported format version")

	// ErrInvalidMetadata indicates that a required .ifo value is missing or
	// malformed.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrRedirectChain indicates that a redirect led to another redirect.
	// Only a single hop is followed.
	ErrRedirectChain = errors.New("redirect chain")

	// ErrBrokenLink indicates that the target of a link definition has no
	// record.
	ErrBrokenLink = errors.New("link target not found")

	// ErrInvalidSynonym indicates a synonym that refers to a record past the
	// end of the index.
	ErrInvalidSynonym = errors.New("invalid synonym")

	// ErrDictUnavailable indicates the .dict file could not be opened.
	ErrDictUnavailable = errors.New("dictionary data unavailable")

	errBadMagic     = errors.New("bad magic data")
	errBadExtension = errors.New("bad extension")
)

// definitionErrors are the errors confined to a single definition.
var definitionErrors = []error{
	dz.ErrCorruptChunkDirectory,
	dz.ErrInflateFailure,
	dz.ErrNotGzip,
	dz.ErrUnsupportedVersion,
	dict.ErrRangeOutOfBounds,
	dict.ErrInvalidData,
	ErrRedirectChain,
	ErrBrokenLink,
	ErrInvalidSynonym,
	ErrDictUnavailable,
}

// IsDefinitionError reports whether err only affects a single definition.
// Other definitions of the same lookup, and other lookups in the same
// dictionary, are still usable.
func IsDefinitionError(err error) bool {
	for _, target := range definitionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
