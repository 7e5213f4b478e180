// Copyright (c) 2026 - The Event Horizon authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package disruptor

import (
	"container/list"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/aggregate"
)

type cacheKey struct {
	aggregateType rh.AggregateType
	id            string
}

type cacheEntry struct {
	key cacheKey
	agg aggregate.Aggregate
}

// aggregateCache is a LRU cache of aggregates owned by one worker. It is only
// touched from that worker's goroutine and has no locking.
type aggregateCache struct {
	size  int
	ll    *list.List
	items map[cacheKey]*list.Element
}

func newAggregateCache(size int) *aggregateCache {
	return &aggregateCache{
		size:  size,
		ll:    list.New(),
		items: make(map[cacheKey]*list.Element),
	}
}

func (c *aggregateCache) get(key cacheKey) (aggregate.Aggregate, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}

	c.ll.MoveToFront(el)

	return el.Value.(*cacheEntry).agg, true
}

func (c *aggregateCache) put(key cacheKey, agg aggregate.Aggregate) {
	if c.size == 0 {
		return
	}

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).agg = agg
		c.ll.MoveToFront(el)

		return
	}

	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, agg: agg})

	if c.ll.Len() > c.size {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *aggregateCache) evict(key cacheKey) {
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

func (c *aggregateCache) len() int {
	return c.ll.Len()
}
