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

// Package redisstore implements a [cache.Backend] on Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ianlewis/sdengine/cache"
)

// casScript swaps KEYS[1] from ARGV[1] to ARGV[2]. ARGV[3] and ARGV[4]
// flag an absent old value and a delete respectively.
var casScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if ARGV[3] == "1" then
	if current then return 0 end
elseif current ~= ARGV[1] then
	return 0
end
if ARGV[4] == "1" then
	redis.call("DEL", KEYS[1])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// Options are options for connecting to Redis.
type Options struct {
	// Addr is the host:port of the server.
	Addr string

	// Password is the optional server password.
	Password string

	// DB is the database number.
	DB int

	// Prefix is prepended to every key.
	Prefix string
}

// Store is a [cache.Backend] storing values as Redis strings.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// New returns a Store using rdb. The caller retains ownership of rdb.
func New(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

// Open connects to the server and verifies the connection.
func Open(ctx context.Context, opts *Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return New(rdb, opts.Prefix), nil
}

// Close closes the client.
func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("closing redis client: %w", err)
	}
	return nil
}

func (s *Store) key(keyspace, key string) string {
	return s.prefix + ":" + keyspace + ":" + key
}

// Get implements [cache.Backend.Get].
func (s *Store) Get(ctx context.Context, keyspace, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.key(keyspace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s/%s", cache.ErrNotFound, keyspace, key)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", keyspace, key, err)
	}
	return v, nil
}

// Put implements [cache.Backend.Put].
func (s *Store) Put(ctx context.Context, keyspace, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(keyspace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("putting %s/%s: %w", keyspace, key, err)
	}
	return nil
}

// Delete implements [cache.Backend.Delete].
func (s *Store) Delete(ctx context.Context, keyspace, key string) error {
	if err := s.rdb.Del(ctx, s.key(keyspace, key)).Err(); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", keyspace, key, err)
	}
	return nil
}

// CompareAndSwap implements [cache.Backend.CompareAndSwap] with a server
// side script.
func (s *Store) CompareAndSwap(ctx context.Context, keyspace, key string, oldValue, newValue []byte) (bool, error) {
	if oldValue == nil && newValue == nil {
		return false, cache.ErrInvalidSwap
	}

	n, err := casScript.Run(ctx, s.rdb, []string{s.key(keyspace, key)},
		oldValue, newValue, flag(oldValue == nil), flag(newValue == nil)).Int()
	if err != nil {
		return false, fmt.Errorf("swapping %s/%s: %w", keyspace, key, err)
	}
	return n == 1, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
