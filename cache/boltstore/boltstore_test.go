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

package boltstore_test

import (
	"context"
	"iter"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ianlewis/sdengine/cache"
	"github.com/ianlewis/sdengine/cache/backendtest"
	"github.com/ianlewis/sdengine/cache/boltstore"
	"github.com/ianlewis/sdengine/idx"
)

func TestStore(t *testing.T) {
	t.Parallel()

	backendtest.Run(t, func(t *testing.T) cache.Backend {
		t.Helper()

		s, err := boltstore.Open(filepath.Join(t.TempDir(), "cache", "index.bolt"), time.Second)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() {
			if err := s.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
		return s
	})
}

func TestStore_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.bolt")

	s, err := boltstore.Open(path, time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Put(ctx, cache.KeyspaceEntries, "/dict/a.idx", []byte("entry")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = boltstore.Open(path, time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, cache.KeyspaceEntries, "/dict/a.idx")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff([]byte("entry"), got); diff != "" {
		t.Errorf("Get (-want, +got):\n%s", diff)
	}
}

func TestStore_OpenWhileInUse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.bolt")

	first, err := boltstore.Open(path, time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()
	if err := first.Put(ctx, cache.KeyspaceEntries, "/dict/a.idx", []byte("entry")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The first Store is still open.
	second, err := boltstore.Open(path, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx, cache.KeyspaceEntries, "/dict/a.idx")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff([]byte("entry"), got); diff != "" {
		t.Errorf("Get (-want, +got):\n%s", diff)
	}
	if err := second.Put(ctx, cache.KeyspaceEntries, "/dict/b.idx", []byte("other")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := first.Get(ctx, cache.KeyspaceEntries, "/dict/b.idx"); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestStore_SharedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "index.bolt")
	id := cache.Identity{Location: "/dict/fruit.idx", Size: 17, ModTime: time.Unix(1, 0)}
	words := []*idx.Word{
		{Word: "apple", Offset: 0, Size: 5},
		{Word: "banana", Offset: 5, Size: 6},
	}

	var calls atomic.Int32
	build := func() iter.Seq2[*idx.Word, error] {
		calls.Add(1)
		return func(yield func(*idx.Word, error) bool) {
			time.Sleep(50 * time.Millisecond)
			for _, w := range words {
				if !yield(w, nil) {
					return
				}
			}
		}
	}

	// Each Store and Cache pair stands in for a separate process sharing
	// the database file.
	const processes = 3
	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, processes*callers)
	for range processes {
		s, err := boltstore.Open(path, 5*time.Second)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		c, err := cache.New(s, &cache.Options{PollInterval: 5 * time.Millisecond})
		if err != nil {
			t.Fatalf("cache.New: %v", err)
		}

		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := c.GetOrBuild(context.Background(), id, build)
				if err != nil {
					errs <- err
					return
				}
				if diff := cmp.Diff(words, got); diff != "" {
					t.Errorf("GetOrBuild (-want, +got):\n%s", diff)
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("GetOrBuild: %v", err)
	}
	if diff := cmp.Diff(int32(1), calls.Load()); diff != "" {
		t.Errorf("build calls (-want, +got):\n%s", diff)
	}
}
