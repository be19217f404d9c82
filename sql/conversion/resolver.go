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

// Package conversion finds implicit conversion paths between types.
package conversion

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dolthub/go-relational-compiler/sql"
)

// Resolver finds conversion paths over the conversion graph of a catalog.
// It is safe for concurrent use.
type Resolver struct {
	graph sql.ConversionGraph
	cache *Cache
}

// NewResolver creates a resolver. The cache may be nil.
func NewResolver(graph sql.ConversionGraph, cache *Cache) *Resolver {
	return &Resolver{graph: graph, cache: cache}
}

// Cache returns the cache of the resolver, if any.
func (r *Resolver) Cache() *Cache { return r.cache }

// FindConversionPath searches the best conversion from source to target.
// When allowArityWidening is true, a row or table source may convert to a
// target that has more columns.
func (r *Resolver) FindConversionPath(source, target sql.Type, allowArityWidening bool) *Context {
	if sql.IsNil(source) || source.Is(target) {
		return &Context{Source: source, Target: target, CanConvert: true}
	}

	switch src := source.(type) {
	case *sql.ScalarType:
		tgt, ok := target.(*sql.ScalarType)
		if !ok {
			return &Context{Source: source, Target: target}
		}
		return r.scalar(src, tgt)
	case *sql.RowType:
		tgt, ok := target.(*sql.RowType)
		if !ok {
			return &Context{Source: source, Target: target}
		}
		return r.columns(source, target, src.Columns, tgt.Columns, allowArityWidening)
	case *sql.TableType:
		tgt, ok := target.(*sql.TableType)
		if !ok {
			return &Context{Source: source, Target: target}
		}
		return r.columns(source, target, src.Columns, tgt.Columns, allowArityWidening)
	case *sql.ListType:
		tgt, ok := target.(*sql.ListType)
		if !ok || src.Element == nil || tgt.Element == nil {
			return &Context{Source: source, Target: target}
		}
		return r.element(source, target, src.Element, tgt.Element, allowArityWidening)
	case *sql.CursorType:
		tgt, ok := target.(*sql.CursorType)
		if !ok {
			return &Context{Source: source, Target: target}
		}
		return r.element(source, target, src.Table, tgt.Table, allowArityWidening)
	}

	return &Context{Source: source, Target: target}
}

func (r *Resolver) element(source, target, srcElem, tgtElem sql.Type, allowArityWidening bool) *Context {
	elem := r.FindConversionPath(srcElem, tgtElem, allowArityWidening)
	return &Context{
		Source:     source,
		Target:     target,
		CanConvert: elem.CanConvert,
		Element:    elem,
		Visited:    elem.Visited,
	}
}

func (r *Resolver) columns(source, target sql.Type, src, tgt sql.Columns, allowArityWidening bool) *Context {
	ctx := &Context{Source: source, Target: target, CanConvert: true}
	visited := make(map[string]struct{})

	for _, col := range src {
		idx := tgt.IndexOf(col.Name)
		if idx < 0 {
			ctx.MissingFromTarget = append(ctx.MissingFromTarget, col.Name)
			ctx.CanConvert = false
			continue
		}
		cc := r.FindConversionPath(col.Type, tgt[idx].Type, allowArityWidening)
		for _, v := range cc.Visited {
			visited[v] = struct{}{}
		}
		ctx.Columns = append(ctx.Columns, ColumnContext{Name: col.Name, Context: cc})
		if !cc.CanConvert {
			ctx.CanConvert = false
		}
	}

	if !allowArityWidening {
		for _, col := range tgt {
			if src.IndexOf(col.Name) < 0 {
				ctx.MissingFromSource = append(ctx.MissingFromSource, col.Name)
				ctx.CanConvert = false
			}
		}
	}

	ctx.Visited = maps.Keys(visited)
	slices.Sort(ctx.Visited)
	return ctx
}

func (r *Resolver) scalar(source, target *sql.ScalarType) *Context {
	if r.cache != nil {
		if ctx, ok := r.cache.Get(source, target); ok {
			return ctx
		}
	}

	s := &search{
		graph:   r.graph,
		target:  target,
		visited: map[string]struct{}{source.Name(): {}},
		onPath:  map[string]bool{source.Name(): true},
	}
	s.walk(source, nil, 0)

	ctx := &Context{Source: source, Target: target, Candidates: s.candidates}
	ctx.Visited = maps.Keys(s.visited)
	slices.Sort(ctx.Visited)
	if len(s.candidates) == 1 {
		ctx.CanConvert = true
		ctx.Path = s.candidates[0]
	}

	if r.cache != nil && len(s.candidates) <= 1 {
		r.cache.Put(ctx)
	}
	return ctx
}

// search is a depth-first walk over the conversion graph. Narrowing scores
// never increase along a path, so a partial path worse than the best
// complete one can be pruned.
type search struct {
	graph      sql.ConversionGraph
	target     *sql.ScalarType
	visited    map[string]struct{}
	onPath     map[string]bool
	candidates []Path
	bestScore  int
	bestLen    int
}

func (s *search) hasBest() bool { return len(s.candidates) > 0 }

func (s *search) walk(current *sql.ScalarType, path Path, score int) {
	for _, c := range s.graph.ConversionsFrom(current) {
		next := c.Target
		if s.onPath[next.Name()] {
			continue
		}
		s.visited[next.Name()] = struct{}{}

		nextScore := score
		if c.IsNarrowing {
			nextScore--
		}
		nextLen := len(path) + 1

		if next.Is(s.target) {
			s.record(append(append(Path(nil), path...), c), nextScore)
			continue
		}

		if s.hasBest() && (nextScore < s.bestScore || (nextScore == s.bestScore && nextLen >= s.bestLen)) {
			continue
		}

		s.onPath[next.Name()] = true
		s.walk(next, append(append(Path(nil), path...), c), nextScore)
		delete(s.onPath, next.Name())
	}
}

func (s *search) record(p Path, score int) {
	switch {
	case !s.hasBest() || score > s.bestScore || (score == s.bestScore && len(p) < s.bestLen):
		s.candidates = []Path{p}
		s.bestScore = score
		s.bestLen = len(p)
	case score == s.bestScore && len(p) == s.bestLen:
		s.candidates = append(s.candidates, p)
	}
}
