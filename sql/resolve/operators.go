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
	"fmt"
	"strings"

	"github.com/dolthub/go-relational-compiler/internal/similartext"
	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/conversion"
)

// ArgumentMatch describes how a single argument binds to a parameter.
type ArgumentMatch struct {
	// Exact arguments need no conversion.
	Exact bool
	// Conversion is set for arguments that need an implicit conversion, or
	// that failed to convert.
	Conversion *conversion.Context
}

// Match is the result of matching a call signature against one overload.
type Match struct {
	Operator   *sql.Operator
	Arguments  []ArgumentMatch
	CanConvert bool
	// Failed holds the positions of the arguments that cannot convert.
	Failed         []int
	NarrowingScore int
	PathLength     int
}

// IsExact reports whether every argument matches without conversion.
func (m *Match) IsExact() bool {
	if !m.CanConvert {
		return false
	}
	for _, a := range m.Arguments {
		if !a.Exact {
			return false
		}
	}
	return true
}

// IsNarrowing reports whether any argument conversion narrows.
func (m *Match) IsNarrowing() bool {
	return m.NarrowingScore < 0
}

// better reports whether m is a strictly better match than o.
func (m *Match) better(o *Match) bool {
	if m.NarrowingScore != o.NarrowingScore {
		return m.NarrowingScore > o.NarrowingScore
	}
	return m.PathLength < o.PathLength
}

func (m *Match) ties(o *Match) bool {
	return m.NarrowingScore == o.NarrowingScore && m.PathLength == o.PathLength
}

// closer reports whether m is a more useful diagnostic candidate than o.
func (m *Match) closer(o *Match) bool {
	if len(m.Failed) != len(o.Failed) {
		return len(m.Failed) < len(o.Failed)
	}
	return m.better(o)
}

func (m *Match) describeFailures(call sql.Signature) string {
	var parts []string
	for _, i := range m.Failed {
		arg := m.Arguments[i]
		reason := fmt.Sprintf("no conversion from %s to %s", call[i].Type, m.Operator.Signature[i].Type)
		if arg.Conversion != nil && arg.Conversion.IsAmbiguous() {
			reason = fmt.Sprintf("ambiguous conversion from %s to %s", call[i].Type, m.Operator.Signature[i].Type)
		} else if call[i].Modifier == sql.ModifierVar || m.Operator.Signature[i].Modifier == sql.ModifierVar {
			reason = fmt.Sprintf("var argument of type %s must be exactly %s", call[i].Type, m.Operator.Signature[i].Type)
		}
		parts = append(parts, fmt.Sprintf("argument %d: %s", i+1, reason))
	}
	return strings.Join(parts, ", ")
}

// OperatorResolver selects the overload of an operator that best matches a
// call signature. It is safe for concurrent use as long as each compilation
// uses its own Scope.
type OperatorResolver struct {
	catalog     sql.Catalog
	conversions *conversion.Resolver
	cache       *OperatorCache
	opts        Options
}

// NewOperatorResolver creates an operator resolver. The cache may be nil.
func NewOperatorResolver(catalog sql.Catalog, conversions *conversion.Resolver, cache *OperatorCache, opts Options) *OperatorResolver {
	return &OperatorResolver{catalog: catalog, conversions: conversions, cache: cache, opts: opts}
}

// Conversions returns the conversion resolver used to match arguments.
func (r *OperatorResolver) Conversions() *conversion.Resolver { return r.conversions }

// Cache returns the operator cache, if any.
func (r *OperatorResolver) Cache() *OperatorCache { return r.cache }

type operatorSource struct {
	m         *sql.OperatorMap
	cacheable bool
}

// ResolveOperator resolves a call to the named operator with the given
// argument signature. When exact is true only overloads that need no
// conversion are accepted.
func (r *OperatorResolver) ResolveOperator(ctx *sql.Context, scope *Scope, name string, call sql.Signature, exact bool) (*Match, error) {
	sources, err := r.operatorMaps(ctx, scope, name)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, sql.ErrUnknownOperator.New(name, similartext.Find(r.operatorNames(), name))
	}

	var closest *Match
	arityMatched := false
	for _, src := range sources {
		var key uint64
		cacheable := src.cacheable && r.cache != nil && isCacheableCall(call)
		if cacheable {
			key, err = operatorCacheKey(name, call, scope.Path, exact)
			if err != nil {
				return nil, err
			}
			if m, ok := r.cache.Get(key); ok {
				return r.finish(ctx, scope, m)
			}
		}

		res := r.matchMap(src.m, call, exact)
		arityMatched = arityMatched || res.arity
		if res.closest != nil && (closest == nil || res.closest.closer(closest)) {
			closest = res.closest
		}
		if res.best == nil {
			continue
		}
		if len(res.ties) > 0 {
			descs := []string{res.best.Operator.String()}
			for _, t := range res.ties {
				descs = append(descs, t.Operator.String())
			}
			return nil, sql.ErrAmbiguousOperatorCall.New(name, call, descs)
		}
		if cacheable && !res.best.Operator.IsSessionObject() && !res.best.Operator.IsATObject() {
			r.cache.Put(key, name, src.m.Name(), res.best, append(res.visited, typeNames(call)...))
		}
		return r.finish(ctx, scope, res.best)
	}

	if !arityMatched {
		return nil, sql.ErrNoSignatureForArity.New(name, len(call))
	}
	detail := ""
	if closest != nil {
		if exact && closest.CanConvert {
			detail = fmt.Sprintf("; closest candidate %s requires conversions", closest.Operator)
		} else {
			detail = fmt.Sprintf("; closest candidate %s: %s", closest.Operator, closest.describeFailures(call))
		}
	}
	return nil, sql.ErrNoOperatorMatch.New(name, call, detail)
}

func (r *OperatorResolver) finish(ctx *sql.Context, scope *Scope, m *Match) (*Match, error) {
	if m.Operator.IsDeferred() {
		if scope.Recompiler == nil {
			return nil, sql.ErrDeclarationNotFound.New(m.Operator.Name())
		}
		if err := scope.Recompiler.RecompileOperator(ctx, m.Operator); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type mapMatch struct {
	best *Match
	// ties are the overloads matching exactly as well as best.
	ties []*Match
	// closest is the failing overload reported in diagnostics.
	closest *Match
	// arity reports whether any overload accepts the number of arguments.
	arity bool
	// visited holds every scalar type the argument searches touched.
	visited []string
}

// matchMap matches the call against every overload of a map.
func (r *OperatorResolver) matchMap(m *sql.OperatorMap, call sql.Signature, exact bool) mapMatch {
	var res mapMatch
	for _, op := range m.Operators() {
		min, max := op.Signature.Arity()
		if len(call) < min || len(call) > max {
			continue
		}
		res.arity = true

		match := r.match(op, call)
		for _, arg := range match.Arguments {
			if arg.Conversion != nil {
				res.visited = append(res.visited, arg.Conversion.Visited...)
			}
		}

		if !match.CanConvert || (exact && !match.IsExact()) {
			if res.closest == nil || match.closer(res.closest) {
				res.closest = match
			}
			continue
		}

		switch {
		case res.best == nil || match.better(res.best):
			res.best = match
			res.ties = nil
		case match.ties(res.best):
			res.ties = append(res.ties, match)
		}
	}
	return res
}

func (r *OperatorResolver) match(op *sql.Operator, call sql.Signature) *Match {
	m := &Match{Operator: op, CanConvert: true, Arguments: make([]ArgumentMatch, len(call))}
	for i, arg := range call {
		param := op.Signature[i]
		if sql.IsNil(arg.Type) || arg.Type.Is(param.Type) {
			m.Arguments[i] = ArgumentMatch{Exact: true}
			continue
		}
		if arg.Modifier == sql.ModifierVar || param.Modifier == sql.ModifierVar {
			m.CanConvert = false
			m.Failed = append(m.Failed, i)
			continue
		}

		cc := r.conversions.FindConversionPath(arg.Type, param.Type, false)
		m.Arguments[i] = ArgumentMatch{Conversion: cc}
		if !cc.CanConvert {
			m.CanConvert = false
			m.Failed = append(m.Failed, i)
			continue
		}
		m.NarrowingScore += cc.NarrowingScore()
		m.PathLength += cc.PathLength()
	}
	return m
}

// operatorMaps collects the operator maps that may hold the named operator,
// in resolution order: transaction overlay, plan and session aliases,
// plan-local operators and finally the catalog.
func (r *OperatorResolver) operatorMaps(ctx *sql.Context, scope *Scope, name string) ([]operatorSource, error) {
	var sources []operatorSource

	if tx := activeTransaction(ctx); tx != nil {
		tx.Lock()
		global, ok := tx.ResolveOperatorName(name)
		tx.Unlock()
		if ok {
			tx.PushGlobalContext()
			m, names := r.catalog.ResolveOperatorName(ctx, global, nil)
			tx.PopGlobalContext()
			if len(names) > 0 {
				return nil, sql.ErrAmbiguousIdentifier.New(name, names)
			}
			if m != nil {
				sources = append(sources, operatorSource{m: m})
			}
		}
	}

	tiers := []*sql.SessionObjects{scope.PlanOperatorNames}
	if ctx.Session != nil {
		tiers = append(tiers, ctx.Session.Operators)
	}
	for _, tier := range tiers {
		global, ok := tier.Lookup(name)
		if !ok {
			continue
		}
		m, names := r.catalog.ResolveOperatorName(ctx, global, nil)
		if len(names) > 0 {
			return nil, sql.ErrAmbiguousIdentifier.New(name, names)
		}
		if m != nil {
			sources = append(sources, operatorSource{m: m})
		}
	}

	if m, ok := scope.PlanOperators(name); ok {
		sources = append(sources, operatorSource{m: m})
	}

	m, err := r.catalogOperators(ctx, scope, name)
	if err != nil {
		return nil, err
	}
	if m != nil {
		sources = append(sources, operatorSource{m: m, cacheable: true})
	}
	return sources, nil
}

func (r *OperatorResolver) catalogOperators(ctx *sql.Context, scope *Scope, name string) (*sql.OperatorMap, error) {
	if ns := r.opts.DefaultNamespace; ns != "" && !strings.HasPrefix(name, ns+".") {
		m, names := r.catalog.ResolveOperatorName(ctx, sql.Qualified(ns, name), scope.Path)
		if len(names) > 0 {
			return nil, sql.ErrAmbiguousIdentifier.New(name, names)
		}
		if m != nil {
			return m, nil
		}
	}
	m, names := r.catalog.ResolveOperatorName(ctx, name, scope.Path)
	if len(names) > 0 {
		return nil, sql.ErrAmbiguousIdentifier.New(name, names)
	}
	return m, nil
}

func (r *OperatorResolver) operatorNames() []string {
	type operatorLister interface {
		OperatorNames() []string
	}
	if l, ok := r.catalog.(operatorLister); ok {
		return l.OperatorNames()
	}
	return nil
}

func typeNames(call sql.Signature) []string {
	names := make([]string, len(call))
	for i, arg := range call {
		names[i] = arg.Type.String()
	}
	return names
}

func isCacheableCall(call sql.Signature) bool {
	for _, arg := range call {
		if _, ok := arg.Type.(*sql.ScalarType); !ok {
			return false
		}
	}
	return true
}
