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

package dict_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ianlewis/sdengine/dict"
	"github.com/ianlewis/sdengine/dz"
	"github.com/ianlewis/sdengine/idx"
	"github.com/ianlewis/sdengine/internal/testutil"
)

// TestData_String tests Data.String.
func TestData_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     *dict.Data
		expected string
	}{
		{
			name: "UTFTextType",
			data: &dict.Data{
				Type: dict.UTFTextType,
				Data: []byte("ユニコード"),
			},
			expected: "ユニコード",
		},
		{
			name: "PhoneticType",
			data: &dict.Data{
				Type: dict.PhoneticType,
				Data: []byte("ゆにこーど"),
			},
			expected: "ゆにこーど",
		},
		{
			name: "HTMLType",
			data: &dict.Data{
				Type: dict.HTMLType,
				Data: []byte("<html><head><title>Title</title></head><body>Body</body></html>"),
			},
			expected: "Body",
		},
		{
			name: "XDXFType",
			data: &dict.Data{
				Type: dict.XDXFType,
				Data: []byte("Some XDXF Format"),
			},
			// TODO(#22): Support other formats.
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(test.expected, test.data.String()); diff != "" {
				t.Fatalf("Data.String (-want, +got):\n%s", diff)
			}
		})
	}
}

// TestDict_Word tests Dict.Word.
func TestDict_Word(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		dict             []*dict.Word
		index            *idx.Word
		expected         *dict.Word
		sametypesequence []dict.DataType
	}{
		{
			name: "utf",
			dict: []*dict.Word{
				{
					Data: []*dict.Data{
						{
							Type: dict.UTFTextType,
							Data: []byte{'h', 'o', 'g', 'e'},
						},
					},
				},
			},
			index: &idx.Word{
				Word:   "hoge",
				Offset: 0,
				Size:   6,
			},
			expected: &dict.Word{
				Data: []*dict.Data{
					{
						Type: dict.UTFTextType,
						Data: []byte{'h', 'o', 'g', 'e'},
					},
				},
			},
		},
		{
			name: "utf sametype",
			sametypesequence: []dict.DataType{
				dict.UTFTextType,
			},
			dict: []*dict.Word{
				{
					Data: []*dict.Data{
						{
							Type: dict.UTFTextType,
							Data: []byte{'h', 'o', 'g', 'e'},
						},
					},
				},
			},
			index: &idx.Word{
				Word:   "hoge",
				Offset: 0,
				Size:   4,
			},
			expected: &dict.Word{
				Data: []*dict.Data{
					{
						Type: dict.UTFTextType,
						Data: []byte{'h', 'o', 'g', 'e'},
					},
				},
			},
		},
		{
			name: "file type",
			dict: []*dict.Word{
				{
					Data: []*dict.Data{
						{
							Type: dict.WavType,
							Data: []byte{'h', 'o', 'g', 'e'},
						},
					},
				},
			},
			index: &idx.Word{
				Word:   "hoge",
				Offset: 0,
				Size:   9, // 1 (type) + 4 (file size) + 4 data
			},
			expected: &dict.Word{
				Data: []*dict.Data{
					{
						Type: dict.WavType,
						Data: []byte{'h', 'o', 'g', 'e'},
					},
				},
			},
		},
		{
			name: "file sametype",
			sametypesequence: []dict.DataType{
				dict.WavType,
			},
			dict: []*dict.Word{
				{
					Data: []*dict.Data{
						{
							Type: dict.WavType,
							Data: []byte{'h', 'o', 'g', 'e'},
						},
					},
				},
			},
			index: &idx.Word{
				Word:   "hoge",
				Offset: 0,
				Size:   4, // size is implied for the last data item
			},
			expected: &dict.Word{
				Data: []*dict.Data{
					{
						Type: dict.WavType,
						Data: []byte{'h', 'o', 'g', 'e'},
					},
				},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			b := testutil.MakeDict(t, test.dict, test.sametypesequence)
			d, err := dict.New(bytes.NewReader(b), int64(len(b)), &dict.Options{
				SameTypeSequence: test.sametypesequence,
			})
			if err != nil {
				t.Fatal(err)
			}
			defer d.Close()

			w, err := d.Word(test.index)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(test.expected, w); diff != "" {
				t.Fatalf("Dict.Word (-want, +got):\n%s", diff)
			}
		})
	}
}

// TestDict_NewFromIfoPath tests NewFromIfoPath.
func TestDict_NewFromIfoPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		extension        string
		dict             []*dict.Word
		index            *idx.Word
		expected         *dict.Word
		sametypesequence []dict.DataType
	}{
		{
			name:      "utf",
			extension: ".dict",
			dict: []*dict.Word{
				{
					Data: []*dict.Data{
						{
							Type: dict.UTFTextType,
							Data: []byte{'h', 'o', 'g', 'e'},
						},
					},
				},
			},
			index: &idx.Word{
				Word:   "hoge",
				Offset: 0,
				Size:   6,
			},
			expected: &dict.Word{
				Data: []*dict.Data{
					{
						Type: dict.UTFTextType,
						Data: []byte{'h', 'o', 'g', 'e'},
					},
				},
			},
		},
		{
			name:      "utf sametype",
			extension: ".DICT",
			sametypesequence: []dict.DataType{
				dict.UTFTextType,
			},
			dict: []*dict.Word{
				{
					Data: []*dict.Data{
						{
							Type: dict.UTFTextType,
							Data: []byte{'h', 'o', 'g', 'e'},
						},
					},
				},
			},
			index: &idx.Word{
				Word:   "hoge",
				Offset: 0,
				Size:   4,
			},
			expected: &dict.Word{
				Data: []*dict.Data{
					{
						Type: dict.UTFTextType,
						Data: []byte{'h', 'o', 'g', 'e'},
					},
				},
			},
		},
		{
			name:      "file type",
			extension: ".dict",
			dict: []*dict.Word{
				{
					Data: []*dict.Data{
						{
							Type: dict.WavType,
							Data: []byte{'h', 'o', 'g', 'e'},
						},
					},
				},
			},
			index: &idx.Word{
				Word:   "hoge",
				Offset: 0,
				Size:   9, // 1 (type) + 4 (file size) + 4 data
			},
			expected: &dict.Word{
				Data: []*dict.Data{
					{
						Type: dict.WavType,
						Data: []byte{'h', 'o', 'g', 'e'},
					},
				},
			},
		},
		{
			name:      "file sametype",
			extension: ".dict",
			sametypesequence: []dict.DataType{
				dict.WavType,
			},
			dict: []*dict.Word{
				{
					Data: []*dict.Data{
						{
							Type: dict.WavType,
							Data: []byte{'h', 'o', 'g', 'e'},
						},
					},
				},
			},
			index: &idx.Word{
				Word:   "hoge",
				Offset: 0,
				Size:   4, // size is implied for the last data item
			},
			expected: &dict.Word{
				Data: []*dict.Data{
					{
						Type: dict.WavType,
						Data: []byte{'h', 'o', 'g', 'e'},
					},
				},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			path := testutil.MakeTempDict(t, test.dict, &testutil.MakeDictOptions{
				Ext:              test.extension,
				SameTypeSequence: test.sametypesequence,
			})

			ifoPath := filepath.Join(filepath.Dir(path), "dictionary.ifo")
			d, err := dict.NewFromIfoPath(ifoPath, &dict.Options{
				SameTypeSequence: test.sametypesequence,
			})
			if err != nil {
				t.Fatal(err)
			}
			defer d.Close()

			w, err := d.Word(test.index)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(test.expected, w); diff != "" {
				t.Fatalf("Dict.Word (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestDict_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		sametypesequence []dict.DataType
		data             []byte

		expected *dict.Word
		err      error
	}{
		{
			name:             "sametype text and phonetic",
			sametypesequence: []dict.DataType{dict.PhoneticType, dict.UTFTextType},
			data:             []byte("hə'ləʊ\x00hello"),
			expected: &dict.Word{
				Data: []*dict.Data{
					{Type: dict.PhoneticType, Data: []byte("hə'ləʊ")},
					{Type: dict.UTFTextType, Data: []byte("hello")},
				},
			},
		},
		{
			name:             "sametype file then text",
			sametypesequence: []dict.DataType{dict.WavType, dict.UTFTextType},
			data:             []byte("\x00\x00\x00\x02ABtext"),
			expected: &dict.Word{
				Data: []*dict.Data{
					{Type: dict.WavType, Data: []byte("AB")},
					{Type: dict.UTFTextType, Data: []byte("text")},
				},
			},
		},
		{
			name: "typed sequence",
			data: []byte("tfoo\x00mbar\x00P\x00\x00\x00\x01Z"),
			expected: &dict.Word{
				Data: []*dict.Data{
					{Type: dict.PhoneticType, Data: []byte("foo")},
					{Type: dict.UTFTextType, Data: []byte("bar")},
					{Type: dict.PictureType, Data: []byte("Z")},
				},
			},
		},
		{
			name: "file size past end",
			data: []byte("W\x00\x00\x00\x09AB"),
			err:  dict.ErrInvalidData,
		},
		{
			name: "truncated file size",
			data: []byte("W\x00\x00"),
			err:  dict.ErrInvalidData,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			d, err := dict.New(bytes.NewReader(nil), 0, &dict.Options{
				SameTypeSequence: test.sametypesequence,
			})
			if err != nil {
				t.Fatal(err)
			}

			w, err := d.Parse(test.data)
			if diff := cmp.Diff(test.err, err, cmpopts.EquateErrors()); diff != "" {
				t.Fatalf("Parse error (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(test.expected, w); diff != "" {
				t.Fatalf("Parse (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestNew_InvalidSameTypeSequence(t *testing.T) {
	t.Parallel()

	_, err := dict.New(bytes.NewReader(nil), 0, &dict.Options{
		SameTypeSequence: []dict.DataType{'!'},
	})
	if err == nil {
		t.Fatal("New: expected failure")
	}
}

func TestNew_Compression(t *testing.T) {
	t.Parallel()

	plain := []byte("applebananacherry")

	tests := []struct {
		name string
		data func(t *testing.T) []byte

		compression dict.Compression
	}{
		{
			name: "none",
			data: func(*testing.T) []byte {
				return plain
			},
			compression: dict.CompressionNone,
		},
		{
			name: "gzip",
			data: func(t *testing.T) []byte {
				return testutil.Gzip(t, plain)
			},
			compression: dict.CompressionGzip,
		},
		{
			name: "dictzip",
			data: func(t *testing.T) []byte {
				return testutil.MakeDictzip(t, plain, &testutil.DictzipOptions{ChunkLen: 4})
			},
			compression: dict.CompressionDictzip,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			b := test.data(t)
			d, err := dict.New(bytes.NewReader(b), int64(len(b)), nil)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if diff := cmp.Diff(test.compression, d.Compression()); diff != "" {
				t.Errorf("Compression (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(int64(len(plain)), d.Size()); diff != "" {
				t.Errorf("Size (-want, +got):\n%s", diff)
			}

			got, err := d.Raw(&idx.Word{Word: "banana", Offset: 5, Size: 6})
			if err != nil {
				t.Fatalf("Raw: %v", err)
			}
			if diff := cmp.Diff("banana", string(got)); diff != "" {
				t.Errorf("Raw (-want, +got):\n%s", diff)
			}

			_, err = d.Raw(&idx.Word{Word: "durian", Offset: 11, Size: 7})
			if diff := cmp.Diff(dict.ErrRangeOutOfBounds, err, cmpopts.EquateErrors()); diff != "" {
				t.Errorf("Raw out of bounds (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestNew_CorruptDictzip(t *testing.T) {
	t.Parallel()

	b := testutil.MakeDictzip(t, []byte("applebananacherry"), &testutil.DictzipOptions{
		ChunkLen:        4,
		ChunkSizeAdjust: 1,
	})
	_, err := dict.New(bytes.NewReader(b), int64(len(b)), nil)
	if diff := cmp.Diff(dz.ErrCorruptChunkDirectory, err, cmpopts.EquateErrors()); diff != "" {
		t.Fatalf("New (-want, +got):\n%s", diff)
	}
}

func TestOpen_Dictzip(t *testing.T) {
	t.Parallel()

	words := []*dict.Word{
		{Data: []*dict.Data{{Type: dict.UTFTextType, Data: []byte("hoge")}}},
		{Data: []*dict.Data{{Type: dict.UTFTextType, Data: []byte("fuga")}}},
	}
	path := testutil.MakeTempDict(t, words, &testutil.MakeDictOptions{DictZip: true})

	d, err := dict.Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if diff := cmp.Diff(dict.CompressionDictzip, d.Compression()); diff != "" {
		t.Errorf("Compression (-want, +got):\n%s", diff)
	}

	w, err := d.Word(&idx.Word{Word: "fuga", Offset: 6, Size: 6})
	if err != nil {
		t.Fatalf("Word: %v", err)
	}
	if diff := cmp.Diff(words[1], w); diff != "" {
		t.Errorf("Word (-want, +got):\n%s", diff)
	}
}
