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
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/ianlewis/sdengine/idx"
	"github.com/ianlewis/sdengine/ifo"
	"github.com/ianlewis/sdengine/syn"
)

// Dictionary describes a test dictionary written by WriteDictionary.
type Dictionary struct {
	// Name is the base name of the files. Defaults to "dictionary".
	Name string

	// Ifo are .ifo values. They override the values computed from the
	// other fields. An empty value removes the key.
	Ifo map[string]string

	// Index are the .idx records.
	Index []*idx.Word

	// OffsetBits is the .idx offset width. Defaults to 32.
	OffsetBits int

	// GzipIndex writes the index as .idx.gz.
	GzipIndex bool

	// Dict is the content of the .dict file. No file is written if nil.
	Dict []byte

	// DictExt is the extension of the .dict file. Defaults to ".dict".
	DictExt string

	// Syn are the .syn records. No file is written if nil.
	Syn []*syn.Word
}

// WriteDictionary writes the files of d to dir and returns the path of the
// .ifo file.
func WriteDictionary(t *testing.T, dir string, d *Dictionary) string {
	t.Helper()

	name := d.Name
	if name == "" {
		name = "dictionary"
	}
	bits := d.OffsetBits
	if bits == 0 {
		bits = 32
	}
	base := filepath.Join(dir, name)

	index := MakeIndex(d.Index, bits)
	values := map[string]string{
		"version":     "3.0.0",
		"bookname":    "Test Dictionary",
		"wordcount":   strconv.Itoa(len(d.Index)),
		"idxfilesize": strconv.Itoa(len(index)),
	}
	if bits != 32 {
		values["idxoffsetbits"] = strconv.Itoa(bits)
	}
	if d.Syn != nil {
		values["synwordcount"] = strconv.Itoa(len(d.Syn))
	}
	maps.Copy(values, d.Ifo)

	var sb strings.Builder
	sb.WriteString(ifo.FileMagic + "\n")
	// version must be the first key.
	if v := values["version"]; v != "" {
		fmt.Fprintf(&sb, "version=%s\n", v)
	}
	for _, k := range slices.Sorted(maps.Keys(values)) {
		if k == "version" || values[k] == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s=%s\n", k, values[k])
	}
	writeFile(t, base+".ifo", []byte(sb.String()))

	if d.GzipIndex {
		writeFile(t, base+".idx.gz", Gzip(t, index))
	} else {
		writeFile(t, base+".idx", index)
	}

	if d.Dict != nil {
		ext := d.DictExt
		if ext == "" {
			ext = ".dict"
		}
		writeFile(t, base+ext, d.Dict)
	}

	if d.Syn != nil {
		writeFile(t, base+".syn", MakeSyn(t, d.Syn))
	}

	return base + ".ifo"
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatal(err)
	}
}
