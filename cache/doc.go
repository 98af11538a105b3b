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

// Package cache implements a persistent cache of parsed .idx files.
//
// Entries are stored in a [Backend] keyed by the location of the .idx file.
// Each entry records the size and modification time of the file it was built
// from and is ignored once the file changes.
//
// Rebuilds are coordinated between processes sharing a backend with an owner
// marker. The process that claims the marker builds and stores the entry while
// other processes wait for it, up to a timeout, or build the index themselves
// without storing it. A marker left behind by a process that exited is taken
// over once it is stale.
//
// The cache is an optimization. Backend failures and entries that cannot be
// decoded are logged and the index is built from the file instead.
package cache
