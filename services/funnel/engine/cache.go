// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for the result cache.
var (
	resultCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lagcast_result_cache_hits_total",
		Help: "Number of result cache hits",
	})

	resultCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lagcast_result_cache_misses_total",
		Help: "Number of result cache misses",
	})

	resultCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lagcast_result_cache_evictions_total",
		Help: "Number of results evicted at capacity",
	})
)

// DefaultCacheCapacity is the default maximum number of cached results.
const DefaultCacheCapacity = 256

// ResultCache memoizes pass results by cache key with LRU eviction and
// request coalescing.
//
// Description:
//
//	Results are immutable and keyed by (scope, scenario, graph version),
//	so a cached result is exactly as good as a recomputed one. Concurrent
//	misses for the same key are coalesced into a single pass via
//	singleflight; failed passes are never cached.
//
// Thread Safety: All methods are safe for concurrent use.
type ResultCache struct {
	engine *Engine

	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // Front = most recent, Back = least recent

	// group coalesces concurrent misses for the same key.
	group singleflight.Group
}

// cacheEntry holds one cached result and its structured key.
type cacheEntry struct {
	key    CacheKey
	result *Result
}

// NewResultCache creates a result cache in front of the given engine.
//
// Inputs:
//   - engine: the engine to run on cache misses. Must not be nil.
//   - capacity: maximum cached results. Non-positive selects
//     DefaultCacheCapacity.
//
// Outputs:
//   - *ResultCache: the cache. Never nil.
func NewResultCache(engine *Engine, capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &ResultCache{
		engine:   engine,
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Run returns the cached result for the snapshot's key, computing it once
// on a miss.
//
// Description:
//
//	Concurrent callers with equal keys share one computation. The context
//	of the caller that triggers the computation is the one the pass runs
//	under; a caller joining an in-flight computation waits for it.
//
// Inputs:
//   - ctx: cancellation context.
//   - snap: the pass inputs.
//
// Outputs:
//   - *Result: the cached or freshly computed result.
//   - error: whatever Engine.Run reports. Errors are not cached.
//
// Thread Safety: Safe for concurrent use.
func (c *ResultCache) Run(ctx context.Context, snap *Snapshot) (*Result, error) {
	if snap == nil || snap.Graph == nil {
		// Let the engine surface its own validation error.
		return c.engine.Run(ctx, snap)
	}
	key := CacheKey{
		ScopeKey:     snap.Scope.Key(),
		ScenarioKey:  snap.Scenario.Key(),
		GraphVersion: snap.Graph.Version(),
	}

	flat := key.String()
	if r, ok := c.lookup(flat); ok {
		resultCacheHits.Inc()
		return r, nil
	}
	resultCacheMisses.Inc()

	resultI, err, _ := c.group.Do(flat, func() (any, error) {
		// Double-check inside the flight: a sibling may have filled the
		// slot between our miss and this closure running.
		if r, ok := c.lookup(flat); ok {
			return r, nil
		}
		r, err := c.engine.Run(ctx, snap)
		if err != nil {
			return nil, err
		}
		c.store(flat, key, r)
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	result, ok := resultI.(*Result)
	if !ok {
		return nil, fmt.Errorf("unexpected type from result cache group: got %T", resultI)
	}
	return result, nil
}

// Get returns the cached result for a key without computing anything.
func (c *ResultCache) Get(key CacheKey) (*Result, bool) {
	if r, ok := c.lookup(key.String()); ok {
		resultCacheHits.Inc()
		return r, true
	}
	resultCacheMisses.Inc()
	return nil, false
}

// Invalidate removes one key from the cache.
//
// Outputs:
//   - bool: true if the key was present.
func (c *ResultCache) Invalidate(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key.String()]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

// InvalidateGraph removes every cached result computed against the given
// graph version. Called when a graph is rebuilt so stale topology can never
// serve another query.
//
// Outputs:
//   - int: number of entries removed.
func (c *ResultCache) InvalidateGraph(version string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*cacheEntry).key.GraphVersion == version {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Purge clears all entries.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// lookup retrieves a result and marks it most recently used.
func (c *ResultCache) lookup(flat string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[flat]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry).result, true
	}
	return nil, false
}

// store inserts a result, evicting the least recently used entry at
// capacity.
func (c *ResultCache) store(flat string, key CacheKey, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[flat]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).result = r
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
			resultCacheEvictions.Inc()
		}
	}

	elem := c.order.PushFront(&cacheEntry{key: key, result: r})
	c.items[flat] = elem
}

// removeElement removes an element from both the list and map.
// Caller must hold the lock.
func (c *ResultCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry).key.String())
}
