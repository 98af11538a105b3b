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
	"strings"

	"github.com/ianlewis/sdengine/dict"
	"github.com/ianlewis/sdengine/idx"
)

// Entry is a single definition returned by a lookup.
type Entry struct {
	// Headword is the headword of the matching index record.
	Headword string

	// Record is the index record holding the definition. When a link was
	// followed it is the link target's record.
	Record *idx.Word

	// Via is the synonym that matched the query, if any.
	Via string

	// Link is the link target that was followed, if any.
	Link string

	// Data is the definition's data. It is nil if Err is set.
	Data []*dict.Data

	// Err is the error encountered reading this definition.
	Err error
}

// Title return the entry's title.
func (e *Entry) Title() string {
	return e.Headword
}

// String returns a plain text representation of the Entry.
func (e *Entry) String() string {
	var sb strings.Builder
	sb.WriteString(e.Headword)
	sb.WriteString("\n")
	for _, d := range e.Data {
		if s := d.String(); s != "" {
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
