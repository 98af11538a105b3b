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
	"bytes"
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by a Backend when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidSwap is returned by CompareAndSwap when both old and new are
	// nil.
	ErrInvalidSwap = errors.New("compare and swap without old or new value")
)

// Keyspaces used by the cache.
const (
	// KeyspaceEntries holds serialized index entries.
	KeyspaceEntries = "entries"

	// KeyspaceOwners holds rebuild owner markers.
	KeyspaceOwners = "owners"
)

// Backend is a key value store. Implementations must be safe for concurrent
// use, and CompareAndSwap must be atomic with respect to every other process
// using the same store.
type Backend interface {
	// Get returns the value of key. It returns an error wrapping ErrNotFound
	// if the key does not exist.
	Get(ctx context.Context, keyspace, key string) ([]byte, error)

	// Put sets the value of key.
	Put(ctx context.Context, keyspace, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, keyspace, key string) error

	// CompareAndSwap sets key to newValue if its current value is oldValue and
	// reports whether it did. A nil oldValue matches a missing key and a nil
	// newValue deletes the key.
	CompareAndSwap(ctx context.Context, keyspace, key string, oldValue, newValue []byte) (bool, error)
}

// MemoryBackend is a Backend held in memory. It is only shared within a
// process.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: map[string]map[string][]byte{},
	}
}

// Get implements [Backend.Get].
func (m *MemoryBackend) Get(_ context.Context, keyspace, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[keyspace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Put implements [Backend.Put].
func (m *MemoryBackend) Put(_ context.Context, keyspace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(keyspace, key, value)
	return nil
}

// Delete implements [Backend.Delete].
func (m *MemoryBackend) Delete(_ context.Context, keyspace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data[keyspace], key)
	return nil
}

// CompareAndSwap implements [Backend.CompareAndSwap].
func (m *MemoryBackend) CompareAndSwap(_ context.Context, keyspace, key string, oldValue, newValue []byte) (bool, error) {
	if oldValue == nil && newValue == nil {
		return false, ErrInvalidSwap
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.data[keyspace][key]
	if oldValue == nil {
		if ok {
			return false, nil
		}
	} else if !ok || !bytes.Equal(cur, oldValue) {
		return false, nil
	}

	if newValue == nil {
		delete(m.data[keyspace], key)
	} else {
		m.put(keyspace, key, newValue)
	}
	return true, nil
}

func (m *MemoryBackend) put(keyspace, key string, value []byte) {
	ks, ok := m.data[keyspace]
	if !ok {
		ks = map[string][]byte{}
		m.data[keyspace] = ks
	}
	ks[key] = bytes.Clone(value)
}
