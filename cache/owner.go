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
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// marker records the process rebuilding an entry.
type marker struct {
	Host    string    `json:"host"`
	PID     int       `json:"pid"`
	Token   string    `json:"token"`
	Claimed time.Time `json:"claimed"`
}

// newToken returns a random token identifying a Cache.
func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating owner token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// newMarker returns an encoded marker for this Cache claimed now.
func (c *Cache) newMarker() ([]byte, error) {
	b, err := json.Marshal(marker{
		Host:    c.host,
		PID:     c.pid,
		Token:   c.token,
		Claimed: c.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding owner marker: %w", err)
	}
	return b, nil
}

// stale reports whether the owner recorded in b can be taken over. A marker
// is stale if it cannot be decoded, was claimed longer than StaleAfter ago or
// belongs to a process on this host that no longer exists.
func (c *Cache) stale(b []byte) (bool, string) {
	var m marker
	if err := json.Unmarshal(b, &m); err != nil {
		return true, "undecodable"
	}
	if c.now().Sub(m.Claimed) > c.staleAfter {
		return true, "expired"
	}
	if m.Host == c.host && !processAlive(m.PID) {
		return true, "owner exited"
	}
	return false, ""
}

// claim tries to become the owner of key. It returns the marker written on
// success and nil if another live owner holds the key.
func (c *Cache) claim(ctx context.Context, key string) ([]byte, error) {
	m, err := c.newMarker()
	if err != nil {
		return nil, err
	}

	ok, err := c.backend.CompareAndSwap(ctx, KeyspaceOwners, key, nil, m)
	if err != nil {
		return nil, fmt.Errorf("claiming owner marker: %w", err)
	}
	if ok {
		return m, nil
	}

	cur, err := c.backend.Get(ctx, KeyspaceOwners, key)
	if errors.Is(err, ErrNotFound) {
		// Released since the swap. The next attempt will claim it.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading owner marker: %w", err)
	}

	stale, reason := c.stale(cur)
	if !stale {
		return nil, nil
	}
	ok, err = c.backend.CompareAndSwap(ctx, KeyspaceOwners, key, cur, m)
	if err != nil {
		return nil, fmt.Errorf("taking over owner marker: %w", err)
	}
	if !ok {
		return nil, nil
	}
	c.logger.Info("took over stale owner marker", "key", key, "reason", reason)
	return m, nil
}

// release removes the marker if it is still ours.
func (c *Cache) release(ctx context.Context, key string, m []byte) {
	ok, err := c.backend.CompareAndSwap(ctx, KeyspaceOwners, key, m, nil)
	if err != nil {
		c.logger.Error("releasing owner marker", "key", key, "error", err)
		return
	}
	if !ok {
		c.logger.Warn("owner marker was taken over during rebuild", "key", key)
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
