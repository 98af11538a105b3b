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

package cache

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"
)

// Identity identifies a version of an .idx file.
type Identity struct {
	// Location is the absolute path of the file. It is the cache key.
	Location string

	// Size is the size of the file in bytes.
	Size int64

	// ModTime is the modification time of the file.
	ModTime time.Time

	// Variant describes the settings the records are parsed with. Entries
	// stored under a different Variant are not returned.
	Variant string
}

// IdentityOf returns the Identity of the file at path.
func IdentityOf(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Identity{}, fmt.Errorf("resolving %q: %w", path, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return Identity{}, fmt.Errorf("reading index file info: %w", err)
	}
	return Identity{
		Location: abs,
		Size:     fi.Size(),
		ModTime:  fi.ModTime(),
	}, nil
}

// fingerprint is the part of an Identity stored with an entry.
type fingerprint struct {
	size    int64
	modTime int64
	variant uint32
}

func (id Identity) fingerprint() fingerprint {
	return fingerprint{
		size:    id.Size,
		modTime: id.ModTime.UnixNano(),
		variant: crc32.ChecksumIEEE([]byte(id.Variant)),
	}
}
