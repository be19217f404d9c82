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

// Package planbuilder compiles syntax trees into typed plan trees.
package planbuilder

import (
	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/conversion"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/resolve"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// SystemLibrary is the library of the built-in scalar types literals are
// typed with.
const SystemLibrary = "System"

// Options configures a Compiler.
type Options struct {
	// DefaultNamespace is tried as a prefix of unqualified names.
	DefaultNamespace string
	// DefaultDevice is asked for names the catalog does not know.
	DefaultDevice string
	// Path is the library search path for unqualified names.
	Path sql.NameResolutionPath
	// CollisionPolicy decides how case-insensitive collisions resolve.
	CollisionPolicy stack.CollisionPolicy
	// ArityWidening lets row and table values convert to types with more
	// columns.
	ArityWidening bool
}

// Compiler holds the state shared by every compilation against a catalog.
// It is safe for concurrent use; each compilation gets its own Builder.
type Compiler struct {
	catalog      sql.Catalog
	names        *resolve.NameResolver
	operators    *resolve.OperatorResolver
	conversions  *conversion.Resolver
	declarations sql.DeclarationStore
	parser       ast.Parser
	opts         Options
}

// NewCompiler creates a compiler over the given catalog. The caches may be
// nil.
func NewCompiler(cat sql.Catalog, conversions *conversion.Cache, operators *resolve.OperatorCache, opts Options) *Compiler {
	ropts := resolve.Options{DefaultNamespace: opts.DefaultNamespace, DefaultDevice: opts.DefaultDevice}
	convs := conversion.NewResolver(cat, conversions)
	return &Compiler{
		catalog:     cat,
		names:       resolve.NewNameResolver(cat, ropts),
		operators:   resolve.NewOperatorResolver(cat, convs, operators, ropts),
		conversions: convs,
		opts:        opts,
	}
}

// WithDeclarations sets the store and parser used to recompile deferred
// operators.
func (c *Compiler) WithDeclarations(store sql.DeclarationStore, parser ast.Parser) *Compiler {
	nc := *c
	nc.declarations = store
	nc.parser = parser
	return &nc
}

// Catalog returns the catalog the compiler resolves against.
func (c *Compiler) Catalog() sql.Catalog { return c.catalog }

// Options returns the options of the compiler.
func (c *Compiler) Options() Options { return c.opts }

// Compile compiles a statement. The returned tree holds a NoOp in place of
// every statement that failed to compile; the messages describe why.
func (c *Compiler) Compile(ctx *sql.Context, stmt ast.Statement) (plan.Node, *sql.Messages) {
	b := c.NewBuilder(ctx)
	return b.Build(stmt), b.Messages()
}

// CompileExpression compiles a standalone expression.
func (c *Compiler) CompileExpression(ctx *sql.Context, expr ast.Expression) (plan.Node, *sql.Messages) {
	b := c.NewBuilder(ctx)
	return b.BuildExpression(expr), b.Messages()
}

// NewBuilder creates a builder for a single compilation.
func (c *Compiler) NewBuilder(ctx *sql.Context) *Builder {
	return newBuilder(ctx, c, stack.New(c.opts.CollisionPolicy), newRecompileSet())
}
