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

// Package ifo implements reading .ifo files.
package ifo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// FileMagic is the magic line that starts every .ifo file.
const FileMagic = "StarDict's dict ifo file"

var (
	errEmpty      = errors.New("empty .ifo file")
	errInvalidKey = errors.New("invalid key")
	errNoVersion  = errors.New("missing version")
)

var keyRegex = regexp.MustCompile("^[a-zA-Z0-9-_]+$")

// Ifo is the metadata of a dictionary.
type Ifo struct {
	magic    string
	metadata map[string]string
}

// New returns a new Ifo read from r. The first line is the magic string and
// the first key must be "version". The magic string is not validated.
func New(r io.Reader) (*Ifo, error) {
	s := bufio.NewScanner(r)
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return nil, fmt.Errorf("reading .ifo file: %w", err)
		}
		return nil, errEmpty
	}

	i := &Ifo{
		magic:    strings.TrimRight(s.Text(), "\r"),
		metadata: map[string]string{},
	}

	for s.Scan() {
		line := strings.TrimRight(s.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, _ := strings.Cut(line, "=")
		key = strings.TrimRight(key, " ")
		value = strings.TrimLeft(value, " ")
		if !keyRegex.MatchString(key) {
			return nil, fmt.Errorf("%w: %q", errInvalidKey, key)
		}
		if len(i.metadata) == 0 && key != "version" {
			return nil, errNoVersion
		}
		i.metadata[key] = value
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading .ifo file: %w", err)
	}
	if _, ok := i.metadata["version"]; !ok {
		return nil, errNoVersion
	}

	return i, nil
}

// Magic returns the magic string.
func (i *Ifo) Magic() string {
	return i.magic
}

// Value returns the value for the given key or an empty string.
func (i *Ifo) Value(key string) string {
	return i.metadata[key]
}

// Len returns the number of keys.
func (i *Ifo) Len() int {
	return len(i.metadata)
}
