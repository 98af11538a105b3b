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

// Package sqlstore implements a [cache.Backend] on a SQL database. SQLite
// and PostgreSQL are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	// Database drivers.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ianlewis/sdengine/cache"
)

// Dialect holds the SQL that differs between databases.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string

	// BlobType is the column type for values.
	BlobType string

	// Numbered reports whether placeholders are numbered ($1) rather
	// than '?'.
	Numbered bool
}

var (
	// SQLite is the dialect for github.com/mattn/go-sqlite3.
	SQLite = Dialect{Name: "sqlite3", BlobType: "BLOB"}

	// Postgres is the dialect for github.com/lib/pq.
	Postgres = Dialect{Name: "postgres", BlobType: "BYTEA", Numbered: true}
)

// rebind rewrites '?' placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Store is a [cache.Backend] storing keys in a single table.
type Store struct {
	db      *sql.DB
	dialect Dialect

	get, put, del, insert, update, deleteIf string
}

// New returns a new Store using db and creates its table if needed. The
// caller retains ownership of db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		get:     dialect.rebind(`SELECT value FROM sdengine_cache WHERE keyspace = ? AND key = ?`),
		put: dialect.rebind(`INSERT INTO sdengine_cache (keyspace, key, value) VALUES (?, ?, ?)
			ON CONFLICT (keyspace, key) DO UPDATE SET value = excluded.value`),
		del: dialect.rebind(`DELETE FROM sdengine_cache WHERE keyspace = ? AND key = ?`),
		insert: dialect.rebind(`INSERT INTO sdengine_cache (keyspace, key, value) VALUES (?, ?, ?)
			ON CONFLICT (keyspace, key) DO NOTHING`),
		update:   dialect.rebind(`UPDATE sdengine_cache SET value = ? WHERE keyspace = ? AND key = ? AND value = ?`),
		deleteIf: dialect.rebind(`DELETE FROM sdengine_cache WHERE keyspace = ? AND key = ? AND value = ?`),
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sdengine_cache (
		keyspace TEXT NOT NULL,
		key TEXT NOT NULL,
		value %s NOT NULL,
		PRIMARY KEY (keyspace, key)
	)`, dialect.BlobType)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating cache table: %w", err)
	}
	return s, nil
}

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open(SQLite.Name, "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// Writers within the process share one connection.
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db, SQLite)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to the PostgreSQL database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(Postgres.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s, err := New(ctx, db, Postgres)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing %s database: %w", s.dialect.Name, err)
	}
	return nil
}

// Get implements [cache.Backend.Get].
func (s *Store) Get(ctx context.Context, keyspace, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.get, keyspace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", cache.ErrNotFound, keyspace, key)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", keyspace, key, err)
	}
	return value, nil
}

// Put implements [cache.Backend.Put].
func (s *Store) Put(ctx context.Context, keyspace, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.put, keyspace, key, value); err != nil {
		return fmt.Errorf("putting %s/%s: %w", keyspace, key, err)
	}
	return nil
}

// Delete implements [cache.Backend.Delete].
func (s *Store) Delete(ctx context.Context, keyspace, key string) error {
	if _, err := s.db.ExecContext(ctx, s.del, keyspace, key); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", keyspace, key, err)
	}
	return nil
}

// CompareAndSwap implements [cache.Backend.CompareAndSwap]. Each case is a
// single conditional statement.
func (s *Store) CompareAndSwap(ctx context.Context, keyspace, key string, oldValue, newValue []byte) (bool, error) {
	var res sql.Result
	var err error
	switch {
	case oldValue == nil && newValue == nil:
		return false, cache.ErrInvalidSwap
	case oldValue == nil:
		res, err = s.db.ExecContext(ctx, s.insert, keyspace, key, newValue)
	case newValue == nil:
		res, err = s.db.ExecContext(ctx, s.deleteIf, keyspace, key, oldValue)
	default:
		res, err = s.db.ExecContext(ctx, s.update, newValue, keyspace, key, oldValue)
	}
	if err != nil {
		return false, fmt.Errorf("swapping %s/%s: %w", keyspace, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swapping %s/%s: %w", keyspace, key, err)
	}
	return n == 1, nil
}
