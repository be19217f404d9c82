// Copyright 2023 Dolthub, Inc.
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

package conversion

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dolthub/go-relational-compiler/sql"
)

// DefaultCacheSize is the number of scalar conversion results kept when no
// size is configured.
const DefaultCacheSize = 1024

type cacheKey struct {
	source string
	target string
}

// Cache memoizes scalar conversion searches. Every entry remembers the types
// its search visited, so that a change to the conversion graph only evicts
// the entries it could affect.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[cacheKey, *Context]
	byType  map[string]map[cacheKey]struct{}
	metrics *sql.CacheMetrics
}

var _ sql.CatalogListener = (*Cache)(nil)

// NewCache creates a cache holding up to size results.
func NewCache(size int, metrics *sql.CacheMetrics) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c := &Cache{
		byType:  make(map[string]map[cacheKey]struct{}),
		metrics: metrics,
	}
	entries, err := lru.NewWithEvict[cacheKey, *Context](size, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// onEvict runs with c.mu held, since the lru only evicts from Add and Remove.
func (c *Cache) onEvict(key cacheKey, ctx *Context) {
	c.unindex(key, ctx)
}

func (c *Cache) unindex(key cacheKey, ctx *Context) {
	for _, name := range ctx.Visited {
		if keys, ok := c.byType[name]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byType, name)
			}
		}
	}
	if keys, ok := c.byType[key.target]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byType, key.target)
		}
	}
}

// Get returns the cached result for the pair of types.
func (c *Cache) Get(source, target *sql.ScalarType) (*Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, ok := c.entries.Get(cacheKey{source.Name(), target.Name()})
	if c.metrics != nil {
		if ok {
			c.metrics.Hits.Inc()
		} else {
			c.metrics.Misses.Inc()
		}
	}
	return ctx, ok
}

// Put stores a scalar conversion result.
func (c *Cache) Put(ctx *Context) {
	source, ok := ctx.Source.(*sql.ScalarType)
	if !ok {
		return
	}
	target, ok := ctx.Target.(*sql.ScalarType)
	if !ok {
		return
	}
	key := cacheKey{source.Name(), target.Name()}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, ctx)
	for _, name := range ctx.Visited {
		c.index(name, key)
	}
	c.index(key.target, key)
}

func (c *Cache) index(name string, key cacheKey) {
	keys, ok := c.byType[name]
	if !ok {
		keys = make(map[cacheKey]struct{})
		c.byType[name] = keys
	}
	keys[key] = struct{}{}
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// InvalidateType evicts every entry whose search touched the named type.
func (c *Cache) InvalidateType(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.byType[name]
	for key := range keys {
		if c.entries.Remove(key) && c.metrics != nil {
			c.metrics.Invalidations.Inc()
		}
	}
	delete(c.byType, name)
}

// Purge evicts every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.byType = make(map[string]map[cacheKey]struct{})
}

// ConversionChanged evicts the entries whose search expanded the source of
// the changed conversion.
func (c *Cache) ConversionChanged(conv *sql.Conversion) {
	c.InvalidateType(conv.Source.Name())
}

// ScalarTypeChanged evicts the entries involving the changed type.
func (c *Cache) ScalarTypeChanged(t *sql.ScalarType) {
	c.InvalidateType(t.Name())
}

// OperatorChanged is a no-op: conversion results do not depend on operator
// overloads other than the conversion operators themselves.
func (c *Cache) OperatorChanged(string) {}
