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

package dz

import (
	"container/list"
	"sync"
)

type chunkEntry struct {
	index int
	data  []byte
}

// chunkCache is a fixed capacity LRU cache of decompressed chunks.
type chunkCache struct {
	mu        sync.Mutex
	capacity  int
	items     map[int]*list.Element
	evictList *list.List
}

func newChunkCache(capacity int) *chunkCache {
	return &chunkCache{
		capacity:  capacity,
		items:     make(map[int]*list.Element),
		evictList: list.New(),
	}
}

func (c *chunkCache) get(i int) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[i]; ok {
		c.evictList.MoveToFront(e)
		return e.Value.(*chunkEntry).data, true
	}
	return nil, false
}

func (c *chunkCache) put(i int, b []byte) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[i]; ok {
		c.evictList.MoveToFront(e)
		return
	}
	c.items[i] = c.evictList.PushFront(&chunkEntry{index: i, data: b})
	for c.evictList.Len() > c.capacity {
		e := c.evictList.Back()
		c.evictList.Remove(e)
		delete(c.items, e.Value.(*chunkEntry).index)
	}
}

func (c *chunkCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}
