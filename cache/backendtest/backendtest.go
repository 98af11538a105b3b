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

// Package backendtest implements tests shared by [cache.Backend]
// implementations.
package backendtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ianlewis/sdengine/cache"
)

// Run runs the backend tests. newBackend is called for each test and must
// return an empty backend.
func Run(t *testing.T, newBackend func(t *testing.T) cache.Backend) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Get(context.Background(), cache.KeyspaceEntries, "missing")
		if diff := cmp.Diff(cache.ErrNotFound, err, cmpopts.EquateErrors()); diff != "" {
			t.Fatalf("Get (-want, +got):\n%s", diff)
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		mustPut(t, b, cache.KeyspaceEntries, "/dict/a.idx", []byte("one"))
		mustPut(t, b, cache.KeyspaceEntries, "/dict/a.idx", []byte("two"))
		mustPut(t, b, cache.KeyspaceOwners, "/dict/a.idx", []byte("owner"))

		got, err := b.Get(ctx, cache.KeyspaceEntries, "/dict/a.idx")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if diff := cmp.Diff([]byte("two"), got); diff != "" {
			t.Errorf("Get (-want, +got):\n%s", diff)
		}

		got, err = b.Get(ctx, cache.KeyspaceOwners, "/dict/a.idx")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if diff := cmp.Diff([]byte("owner"), got); diff != "" {
			t.Errorf("Get owners (-want, +got):\n%s", diff)
		}
	})

	t.Run("BinaryValue", func(t *testing.T) {
		b := newBackend(t)

		want := make([]byte, 1024)
		for i := range want {
			want[i] = byte(i)
		}
		mustPut(t, b, cache.KeyspaceEntries, "binary", want)

		got, err := b.Get(context.Background(), cache.KeyspaceEntries, "binary")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Get (-want, +got):\n%s", diff)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		mustPut(t, b, cache.KeyspaceEntries, "key", []byte("value"))
		if err := b.Delete(ctx, cache.KeyspaceEntries, "key"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := b.Get(ctx, cache.KeyspaceEntries, "key"); !cmp.Equal(cache.ErrNotFound, err, cmpopts.EquateErrors()) {
			t.Fatalf("Get after Delete: %v", err)
		}
		// Deleting again is not an error.
		if err := b.Delete(ctx, cache.KeyspaceEntries, "key"); err != nil {
			t.Fatalf("Delete missing: %v", err)
		}
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		steps := []struct {
			name     string
			oldValue []byte
			newValue []byte
			swapped  bool
			value    []byte
		}{
			{"put if absent", nil, []byte("a"), true, []byte("a")},
			{"put if absent when present", nil, []byte("b"), false, []byte("a")},
			{"swap wrong old", []byte("x"), []byte("b"), false, []byte("a")},
			{"swap", []byte("a"), []byte("b"), true, []byte("b")},
			{"delete wrong old", []byte("a"), nil, false, []byte("b")},
			{"delete", []byte("b"), nil, true, nil},
			{"swap missing", []byte("b"), []byte("c"), false, nil},
			{"put if absent after delete", nil, []byte("c"), true, []byte("c")},
		}
		for _, step := range steps {
			swapped, err := b.CompareAndSwap(ctx, cache.KeyspaceOwners, "key", step.oldValue, step.newValue)
			if err != nil {
				t.Fatalf("%s: CompareAndSwap: %v", step.name, err)
			}
			if swapped != step.swapped {
				t.Fatalf("%s: CompareAndSwap = %v, want %v", step.name, swapped, step.swapped)
			}

			got, err := b.Get(ctx, cache.KeyspaceOwners, "key")
			if step.value == nil {
				if !cmp.Equal(cache.ErrNotFound, err, cmpopts.EquateErrors()) {
					t.Fatalf("%s: Get = %q, %v; want not found", step.name, got, err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("%s: Get: %v", step.name, err)
			}
			if diff := cmp.Diff(step.value, got); diff != "" {
				t.Fatalf("%s: Get (-want, +got):\n%s", step.name, diff)
			}
		}
	})

	t.Run("CompareAndSwapInvalid", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.CompareAndSwap(context.Background(), cache.KeyspaceOwners, "key", nil, nil)
		if diff := cmp.Diff(cache.ErrInvalidSwap, err, cmpopts.EquateErrors()); diff != "" {
			t.Fatalf("CompareAndSwap (-want, +got):\n%s", diff)
		}
	})

	t.Run("CompareAndSwapExclusive", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		const n = 16
		var wins atomic.Int32
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := b.CompareAndSwap(ctx, cache.KeyspaceOwners, "contended", nil, fmt.Appendf(nil, "owner-%d", i))
				if err != nil {
					errs <- err
					return
				}
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("CompareAndSwap: %v", err)
		}
		if got := wins.Load(); got != 1 {
			t.Fatalf("CompareAndSwap succeeded %d times, want 1", got)
		}
	})
}

func mustPut(t *testing.T, b cache.Backend, keyspace, key string, value []byte) {
	t.Helper()
	if err := b.Put(context.Background(), keyspace, key, value); err != nil {
		t.Fatalf("Put(%q, %q): %v", keyspace, key, err)
	}
}
