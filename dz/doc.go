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

// Package dz implements random access reads of dictzip files.
//
// A dictzip file is a gzip file whose deflate stream is split into chunks of
// a fixed uncompressed size. Each chunk ends with a full flush so it can be
// inflated on its own. The compressed size of every chunk is recorded in the
// "RA" subfield of the gzip extra field:
//
//	+---+---+---+---+---+---+---+---+---+---+---+---+
//	|VER=1  |CHLEN  |CHCNT  |SIZE 1 |  ...  |SIZE N |
//	+---+---+---+---+---+---+---+---+---+---+---+---+
//
// All fields are 16 bit little-endian integers. CHLEN is the uncompressed
// size of each chunk and CHCNT is the number of chunks.
//
// See the dictzip(1) manual page for details.
package dz
