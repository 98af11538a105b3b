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

// Package folding implements text folding transformers for queries and
// headwords.
package folding

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Whitespace returns a transformer that only performs whitespace folding.
func Whitespace() transform.Transformer {
	return &WhitespaceFolder{}
}

// Full returns a transformer that removes diacritics and punctuation, folds
// case and folds whitespace. The returned transformer is not safe for
// concurrent use.
func Full() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.In(unicode.P)),
		cases.Fold(),
		&WhitespaceFolder{},
		norm.NFC,
	)
}

// String applies the transformer returned by folder to s. A nil folder
// returns s unchanged.
func String(folder func() transform.Transformer, s string) (string, error) {
	if folder == nil {
		return s, nil
	}
	//nolint:wrapcheck // returned as is for callers to wrap.
	folded, _, err := transform.String(folder(), s)
	return folded, err
}
