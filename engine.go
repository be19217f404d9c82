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

// Package relc is the entry point of the relational compiler. An Engine
// compiles parsed statements against a catalog and optimizes the result.
package relc

import (
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/analyzer"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/conversion"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/planbuilder"
	"github.com/dolthub/go-relational-compiler/sql/resolve"
)

// Engine compiles statements. It is safe for concurrent use.
type Engine struct {
	Catalog  sql.Catalog
	Compiler *planbuilder.Compiler
	// Conversions and Operators are the resolution caches shared by every
	// compilation of the engine.
	Conversions *conversion.Cache
	Operators   *resolve.OperatorCache

	config   Config
	analyzer *analyzer.Builder
}

type options struct {
	registerer   prometheus.Registerer
	declarations sql.DeclarationStore
	parser       ast.Parser
	postRules    []analyzer.Rule
}

// Option configures an Engine.
type Option func(*options)

// WithRegisterer registers the cache metrics of the engine with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithDeclarations sets the store and parser used to recompile deferred
// operators.
func WithDeclarations(store sql.DeclarationStore, parser ast.Parser) Option {
	return func(o *options) {
		o.declarations = store
		o.parser = parser
	}
}

// WithPostRule adds an optimizer rule that runs after the default ones.
func WithPostRule(id analyzer.RuleId, fn analyzer.RuleFunc) Option {
	return func(o *options) {
		o.postRules = append(o.postRules, analyzer.Rule{Id: id, Apply: fn})
	}
}

// New creates an Engine over the given catalog. When the catalog reports
// its changes, the caches of the engine subscribe to them.
func New(cat sql.Catalog, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	conversions, err := conversion.NewCache(cfg.ConversionCacheSize, sql.NewCacheMetrics(o.registerer, "conversion_cache"))
	if err != nil {
		return nil, err
	}
	operators, err := resolve.NewOperatorCache(cfg.OperatorCacheSize, sql.NewCacheMetrics(o.registerer, "operator_cache"))
	if err != nil {
		return nil, err
	}
	if oc, ok := cat.(sql.ObservableCatalog); ok {
		oc.Subscribe(conversions)
		oc.Subscribe(operators)
	}

	compiler := planbuilder.NewCompiler(cat, conversions, operators, cfg.compilerOptions())
	if o.declarations != nil {
		compiler = compiler.WithDeclarations(o.declarations, o.parser)
	}

	ab := analyzer.NewBuilder(cat).SkipPass(cfg.skippedPasses()...)
	if cfg.Debug {
		ab = ab.WithDebug()
	}
	for _, r := range o.postRules {
		ab = ab.AddPostRule(r.Id, r.Apply)
	}

	return &Engine{
		Catalog:     cat,
		Compiler:    compiler,
		Conversions: conversions,
		Operators:   operators,
		config:      cfg,
		analyzer:    ab,
	}, nil
}

// NewDefault creates an Engine with the default configuration.
func NewDefault(cat sql.Catalog) *Engine {
	e, err := New(cat, DefaultConfig())
	if err != nil {
		// The default configuration is valid.
		panic(err)
	}
	return e
}

// Config returns the configuration of the engine.
func (e *Engine) Config() Config { return e.config }

// Compile compiles a statement and, when it compiled without errors and
// optimization is on, optimizes it. The messages hold every error and
// warning raised along the way.
func (e *Engine) Compile(ctx *sql.Context, stmt ast.Statement) (plan.Node, *sql.Messages) {
	span, ctx := ctx.Span("compile")
	defer span.Finish()

	node, messages := e.Compiler.Compile(ctx, stmt)
	if messages.HasErrors() {
		span.SetTag("errors", len(messages.Errors()))
		ctx.GetLogger().WithField("errors", len(messages.Errors())).Debug("compilation failed")
		return node, messages
	}
	if !e.config.Optimize {
		return node, messages
	}

	// The analyzer keeps per-run debug state, so every compilation gets its
	// own.
	a := e.analyzer.Build()
	return a.Analyze(ctx, node, messages), messages
}

// Result is the outcome of compiling one statement of a batch.
type Result struct {
	Node     plan.Node
	Messages *sql.Messages
}

// CompileBatch compiles independent statements in parallel, at most
// Parallelism at a time. Results are in the order of the statements. The
// error is only set when ctx is done before every statement compiled.
func (e *Engine) CompileBatch(ctx *sql.Context, stmts []ast.Statement) ([]Result, error) {
	span, ctx := ctx.Span("compile_batch")
	span.SetTag("statements", len(stmts))
	defer span.Finish()

	results := make([]Result, len(stmts))
	eg, egCtx := errgroup.WithContext(ctx)
	if e.config.Parallelism > 0 {
		eg.SetLimit(e.config.Parallelism)
	}
	for i, stmt := range stmts {
		i, stmt := i, stmt
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			node, messages := e.Compile(ctx.WithContext(egCtx), stmt)
			results[i] = Result{Node: node, Messages: messages}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
