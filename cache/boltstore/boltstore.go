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

// Package boltstore implements a [cache.Backend] on a bbolt database file.
//
// bbolt allows a single writer process per file and holds its file lock for
// as long as the database is open. The Store opens the database for each
// operation so that several processes can share one file.
package boltstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ianlewis/sdengine/cache"
)

// DefaultTimeout is the lock timeout used when Open is given none.
const DefaultTimeout = 5 * time.Second

// Store is a [cache.Backend] with a bucket per keyspace.
type Store struct {
	path    string
	timeout time.Duration

	// mu serializes operations within the process. Other processes are
	// excluded by the file lock.
	mu sync.Mutex
}

// Open opens or creates the database at path. Each operation waits for up to
// timeout while another process holds the file.
func Open(path string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s := &Store{
		path:    path,
		timeout: timeout,
	}
	// Create the file so that read-only opens succeed.
	db, err := s.open(false)
	if err != nil {
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("closing bolt database: %w", err)
	}
	return s, nil
}

// Close releases the Store. The database is only open during operations so
// there is nothing to close.
func (*Store) Close() error {
	return nil
}

// Get implements [cache.Backend.Get].
func (s *Store) Get(ctx context.Context, keyspace, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", keyspace, key, err)
	}

	var value []byte
	err := s.with(true, func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(keyspace))
			if b == nil {
				return nil
			}
			// Values are only valid for the life of the transaction.
			if v := b.Get([]byte(key)); v != nil {
				value = bytes.Clone(v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", keyspace, key, err)
	}
	if value == nil {
		return nil, fmt.Errorf("%w: %s/%s", cache.ErrNotFound, keyspace, key)
	}
	return value, nil
}

// Put implements [cache.Backend.Put].
func (s *Store) Put(ctx context.Context, keyspace, key string, value []byte) error {
	return s.update(ctx, keyspace, key, func(b *bolt.Bucket) error {
		return b.Put([]byte(key), value)
	})
}

// Delete implements [cache.Backend.Delete].
func (s *Store) Delete(ctx context.Context, keyspace, key string) error {
	return s.update(ctx, keyspace, key, func(b *bolt.Bucket) error {
		return b.Delete([]byte(key))
	})
}

// CompareAndSwap implements [cache.Backend.CompareAndSwap]. The comparison
// and write happen in one read-write transaction.
func (s *Store) CompareAndSwap(ctx context.Context, keyspace, key string, oldValue, newValue []byte) (bool, error) {
	if oldValue == nil && newValue == nil {
		return false, cache.ErrInvalidSwap
	}

	var swapped bool
	err := s.update(ctx, keyspace, key, func(b *bolt.Bucket) error {
		k := []byte(key)
		current := b.Get(k)
		switch {
		case oldValue == nil && current != nil:
			return nil
		case oldValue != nil && (current == nil || !bytes.Equal(current, oldValue)):
			return nil
		}

		swapped = true
		if newValue == nil {
			return b.Delete(k)
		}
		return b.Put(k, newValue)
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *Store) update(ctx context.Context, keyspace, key string, fn func(*bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("updating %s/%s: %w", keyspace, key, err)
	}
	err := s.with(false, func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists([]byte(keyspace))
			if err != nil {
				return err //nolint:wrapcheck // wrapped below.
			}
			return fn(b)
		})
	})
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", keyspace, key, err)
	}
	return nil
}

// with opens the database, calls fn and closes the database again.
func (s *Store) with(readOnly bool, fn func(*bolt.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open(readOnly)
	if err != nil {
		return err
	}
	err = fn(db)
	if cerr := db.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("closing bolt database: %w", cerr))
	}
	return err
}

func (s *Store) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{
		Timeout:  s.timeout,
		ReadOnly: readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	return db, nil
}
