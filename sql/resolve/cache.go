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

package resolve

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure"

	"github.com/dolthub/go-relational-compiler/sql"
)

// DefaultOperatorCacheSize is the number of resolved calls kept when no size
// is configured.
const DefaultOperatorCacheSize = 512

type operatorKey struct {
	Name  string
	Args  []string
	Path  []string
	Exact bool
}

func operatorCacheKey(name string, call sql.Signature, path sql.NameResolutionPath, exact bool) (uint64, error) {
	key := operatorKey{Name: name, Path: path, Exact: exact}
	for _, arg := range call {
		key.Args = append(key.Args, arg.Modifier.String()+arg.Type.String())
	}
	return hashstructure.Hash(key, nil)
}

type cachedMatch struct {
	names []string
	types []string
	match *Match
}

// OperatorCache memoizes the resolution of catalog operator calls. Entries
// are evicted when an operator map they were resolved from changes, or when
// a conversion their arguments relied on changes.
type OperatorCache struct {
	mu      sync.Mutex
	entries *lru.Cache[uint64, *cachedMatch]
	byName  map[string]map[uint64]struct{}
	byType  map[string]map[uint64]struct{}
	metrics *sql.CacheMetrics
}

var _ sql.CatalogListener = (*OperatorCache)(nil)

// NewOperatorCache creates a cache holding up to size resolved calls.
func NewOperatorCache(size int, metrics *sql.CacheMetrics) (*OperatorCache, error) {
	if size <= 0 {
		size = DefaultOperatorCacheSize
	}
	c := &OperatorCache{
		byName:  make(map[string]map[uint64]struct{}),
		byType:  make(map[string]map[uint64]struct{}),
		metrics: metrics,
	}
	entries, err := lru.NewWithEvict[uint64, *cachedMatch](size, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func (c *OperatorCache) onEvict(key uint64, e *cachedMatch) {
	for _, name := range e.names {
		unindex(c.byName, name, key)
	}
	for _, name := range e.types {
		unindex(c.byType, name, key)
	}
}

func index(idx map[string]map[uint64]struct{}, name string, key uint64) {
	keys, ok := idx[name]
	if !ok {
		keys = make(map[uint64]struct{})
		idx[name] = keys
	}
	keys[key] = struct{}{}
}

func unindex(idx map[string]map[uint64]struct{}, name string, key uint64) {
	if keys, ok := idx[name]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(idx, name)
		}
	}
}

// Get returns the cached match for the key.
func (c *OperatorCache) Get(key uint64) (*Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key)
	if c.metrics != nil {
		if ok {
			c.metrics.Hits.Inc()
		} else {
			c.metrics.Misses.Inc()
		}
	}
	if !ok {
		return nil, false
	}
	return e.match, true
}

// Put caches a match resolved for the call name against the operator map
// with the given name. Visited holds the scalar types every overload's
// argument searches touched.
func (c *OperatorCache) Put(key uint64, callName, mapName string, m *Match, visited []string) {
	e := &cachedMatch{match: m, names: []string{callName, mapName, sql.Unqualified(mapName)}}
	for _, t := range m.Operator.Signature.Types() {
		e.types = append(e.types, t.String())
	}
	e.types = append(e.types, visited...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, e)
	for _, name := range e.names {
		index(c.byName, name, key)
	}
	for _, name := range e.types {
		index(c.byType, name, key)
	}
}

// Len returns the number of cached matches.
func (c *OperatorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *OperatorCache) invalidate(byName bool, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.byType
	if byName {
		idx = c.byName
	}
	for key := range idx[name] {
		if c.entries.Remove(key) && c.metrics != nil {
			c.metrics.Invalidations.Inc()
		}
	}
	delete(idx, name)
}

// Purge evicts every entry.
func (c *OperatorCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	c.byName = make(map[string]map[uint64]struct{})
	c.byType = make(map[string]map[uint64]struct{})
}

// OperatorChanged evicts every call resolved by the named operator.
func (c *OperatorCache) OperatorChanged(name string) {
	c.invalidate(true, name)
	c.invalidate(true, sql.Unqualified(name))
}

// ConversionChanged evicts the calls whose argument conversions searched
// from the source of the changed conversion.
func (c *OperatorCache) ConversionChanged(conv *sql.Conversion) {
	c.invalidate(false, conv.Source.Name())
}

// ScalarTypeChanged evicts the calls involving the changed type.
func (c *OperatorCache) ScalarTypeChanged(t *sql.ScalarType) {
	c.invalidate(false, t.Name())
}
