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
	"strings"

	"github.com/dolthub/go-relational-compiler/internal/similartext"
	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// maxAliasDepth bounds the chain of session aliases followed during a
// single resolution.
const maxAliasDepth = 8

// Options configures name and operator resolution.
type Options struct {
	// DefaultNamespace is tried as a prefix before the bare name.
	DefaultNamespace string
	// DefaultDevice is asked for unknown names when the catalog can
	// reconcile with its devices.
	DefaultDevice string
}

// BindingScope restricts where an identifier may be found.
type BindingScope uint8

const (
	// BindAll searches the stack first, then every global tier.
	BindAll BindingScope = iota
	// BindLocal only searches the stack.
	BindLocal
	// BindGlobal skips the stack.
	BindGlobal
)

// ResolvedKind is the kind of a resolved identifier.
type ResolvedKind uint8

const (
	ResolvedStack ResolvedKind = iota
	ResolvedStackColumn
	ResolvedObject
)

// Resolved is a successfully resolved identifier.
type Resolved struct {
	Kind     ResolvedKind
	Location stack.Location
	Symbol   *stack.Symbol
	Object   sql.Object
	// Shadowed names hidden by the selected stack entry.
	Shadowed []string
}

// NameResolver resolves identifiers against the stack, the transaction
// overlay, session objects and the catalog, in that order. It is safe for
// concurrent use as long as each compilation uses its own Scope.
type NameResolver struct {
	catalog sql.Catalog
	opts    Options
}

// NewNameResolver creates a name resolver.
func NewNameResolver(catalog sql.Catalog, opts Options) *NameResolver {
	return &NameResolver{catalog: catalog, opts: opts}
}

// Options returns the options of the resolver.
func (r *NameResolver) Options() Options { return r.opts }

// Catalog returns the catalog of the resolver.
func (r *NameResolver) Catalog() sql.Catalog { return r.catalog }

// ResolveIdentifier resolves name. It returns nil without an error when the
// name is not found anywhere.
func (r *NameResolver) ResolveIdentifier(ctx *sql.Context, scope *Scope, name string, bind BindingScope) (*Resolved, error) {
	if bind != BindGlobal && scope.Stack != nil {
		res := scope.Stack.ResolveVariable(name)
		if len(res.Ambiguous) > 0 {
			return nil, sql.ErrAmbiguousIdentifier.New(name, res.Ambiguous)
		}
		if res.Found {
			kind := ResolvedStack
			if res.Location.IsColumn() {
				kind = ResolvedStackColumn
			}
			return &Resolved{Kind: kind, Location: res.Location, Symbol: res.Symbol, Shadowed: res.Shadowed}, nil
		}
	}

	if bind == BindLocal {
		return nil, nil
	}

	obj, err := r.resolveGlobal(ctx, scope, name, 0)
	if err != nil || obj == nil {
		return nil, err
	}

	obj, err = r.bind(ctx, scope, obj)
	if err != nil {
		return nil, err
	}
	return &Resolved{Kind: ResolvedObject, Object: obj}, nil
}

// ResolveObject resolves name in the global tiers only.
func (r *NameResolver) ResolveObject(ctx *sql.Context, scope *Scope, name string) (sql.Object, error) {
	res, err := r.ResolveIdentifier(ctx, scope, name, BindGlobal)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Object, nil
}

// Suggest returns a suggestion suffix for an unknown name.
func (r *NameResolver) Suggest(scope *Scope, name string) string {
	var names []string
	if scope != nil && scope.Stack != nil {
		names = append(names, scope.Stack.VisibleNames()...)
	}
	names = append(names, r.catalog.ObjectNames()...)
	return similartext.Find(names, name)
}

func (r *NameResolver) resolveGlobal(ctx *sql.Context, scope *Scope, name string, depth int) (sql.Object, error) {
	if depth > maxAliasDepth {
		return nil, sql.ErrInternal.New("session alias chain too deep resolving " + name)
	}

	if tx := activeTransaction(ctx); tx != nil {
		tx.Lock()
		global, ok := tx.ResolveName(name)
		tx.Unlock()
		if ok {
			tx.PushGlobalContext()
			obj, names := r.catalog.ResolveName(ctx, global, nil)
			tx.PopGlobalContext()
			if len(names) > 0 {
				return nil, sql.ErrAmbiguousIdentifier.New(name, names)
			}
			if obj != nil {
				return obj, nil
			}
		}
	}

	tiers := []*sql.SessionObjects{scope.PlanObjects}
	if ctx.Session != nil {
		tiers = append(tiers, ctx.Session.Objects)
	}
	for _, tier := range tiers {
		if global, ok := tier.Lookup(name); ok {
			return r.resolveGlobal(ctx, scope, global, depth+1)
		}
	}

	return r.resolveCatalog(ctx, scope, name)
}

func (r *NameResolver) resolveCatalog(ctx *sql.Context, scope *Scope, name string) (sql.Object, error) {
	if ns := r.opts.DefaultNamespace; ns != "" && !strings.HasPrefix(name, ns+".") {
		obj, names := r.catalog.ResolveName(ctx, sql.Qualified(ns, name), scope.Path)
		if len(names) > 0 {
			return nil, sql.ErrAmbiguousIdentifier.New(name, names)
		}
		if obj != nil {
			return obj, nil
		}
	}

	obj, names := r.catalog.ResolveName(ctx, name, scope.Path)
	if len(names) > 0 {
		return nil, sql.ErrAmbiguousIdentifier.New(name, names)
	}
	if obj != nil {
		return obj, nil
	}

	reconciler, ok := r.catalog.(sql.DeviceReconciler)
	if !ok || r.opts.DefaultDevice == "" || scope.reconciling {
		return nil, nil
	}

	scope.reconciling = true
	defer func() { scope.reconciling = false }()

	changed, err := reconciler.Reconcile(ctx, r.opts.DefaultDevice, name)
	if err != nil || !changed {
		return nil, err
	}
	return r.resolveCatalog(ctx, scope, name)
}

// bind applies the side effects of resolving a global object: stale derived
// table variables are re-inferred and, inside a transaction, the object is
// replaced by its transaction-local copy.
func (r *NameResolver) bind(ctx *sql.Context, scope *Scope, obj sql.Object) (sql.Object, error) {
	if tv, ok := obj.(*sql.TableVar); ok && tv.IsDerived && tv.ShouldReinferReferences() && scope.Reinferrer != nil {
		if err := scope.Reinferrer.ReinferReferences(ctx, tv); err != nil {
			return nil, err
		}
	}

	tx := ctx.Transaction()
	if tx == nil || tx.IsGlobalContext() || tx.IsLookup() || obj.IsATObject() {
		return obj, nil
	}

	tx.Lock()
	defer tx.Unlock()
	return tx.EnsureMapped(ctx, obj)
}

func activeTransaction(ctx *sql.Context) sql.Transaction {
	tx := ctx.Transaction()
	if tx == nil || tx.IsGlobalContext() || tx.IsLookup() {
		return nil
	}
	return tx
}
