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

package planbuilder

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/resolve"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// Builder compiles one statement or expression. It is not safe for
// concurrent use.
type Builder struct {
	ctx      *sql.Context
	c        *Compiler
	stack    *stack.Stack
	scope    *resolve.Scope
	messages *sql.Messages

	// loops and handlers count the enclosing loops and error handlers.
	loops    int
	handlers int

	recompiling *recompileSet
	systemTypes map[string]*sql.ScalarType
}

var _ resolve.Recompiler = (*Builder)(nil)
var _ resolve.Reinferrer = (*Builder)(nil)

func newBuilder(ctx *sql.Context, c *Compiler, stk *stack.Stack, recompiling *recompileSet) *Builder {
	b := &Builder{
		ctx:         ctx,
		c:           c,
		stack:       stk,
		messages:    sql.NewMessages(),
		recompiling: recompiling,
		systemTypes: make(map[string]*sql.ScalarType),
	}
	b.scope = resolve.NewScope(stk, c.opts.Path)
	b.scope.Recompiler = b
	b.scope.Reinferrer = b
	return b
}

// Messages returns the diagnostics collected so far.
func (b *Builder) Messages() *sql.Messages { return b.messages }

// Stack returns the symbol stack of the builder.
func (b *Builder) Stack() *stack.Stack { return b.stack }

// Scope returns the resolution scope of the builder.
func (b *Builder) Scope() *resolve.Scope { return b.scope }

type compileErr struct {
	err error
}

// handleErr aborts the construct being compiled. The error is recovered at
// the enclosing statement boundary.
func (b *Builder) handleErr(n ast.Node, err error) {
	pos := n.Pos()
	panic(compileErr{sql.NewCompileError(err, pos.Line, pos.Column)})
}

// handleFatal aborts the whole compilation.
func (b *Builder) handleFatal(n ast.Node, err error) {
	pos := n.Pos()
	panic(compileErr{sql.NewFatalError(err, pos.Line, pos.Column)})
}

func (b *Builder) warn(n ast.Node, err error) {
	pos := n.Pos()
	b.messages.Warn(err, pos.Line, pos.Column)
}

// Build compiles a statement. Failed statements are replaced by NoOp nodes
// and reported in the messages. A fatal error stops the compilation and
// yields a NoOp for the whole statement.
func (b *Builder) Build(stmt ast.Statement) (node plan.Node) {
	span, ctx := b.ctx.Span("compile_statement")
	defer span.Finish()

	prev := b.ctx
	b.ctx = ctx
	defer func() { b.ctx = prev }()

	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(compileErr)
			if !ok {
				panic(r)
			}
			span.SetTag("failed", true)
			b.record(stmt, ce.err)
			node = plan.NewNoOp(stmt.Pos())
		}
	}()

	guard := b.stack.PushFrame()
	defer guard.Release()
	return b.buildStatementSafe(stmt)
}

// BuildExpression compiles a standalone expression. It returns nil when
// the expression fails to compile.
func (b *Builder) BuildExpression(expr ast.Expression) (node plan.Node) {
	span, ctx := b.ctx.Span("compile_expression")
	defer span.Finish()

	prev := b.ctx
	b.ctx = ctx
	defer func() { b.ctx = prev }()

	defer func() {
		if r := recover(); r != nil {
			b.record(expr, recoveredError(expr, r))
			node = nil
		}
	}()
	return b.buildExpr(expr)
}

// buildStatementSafe compiles a statement and collects any non-fatal error
// it raises, returning a NoOp in its place.
func (b *Builder) buildStatementSafe(stmt ast.Statement) (node plan.Node) {
	depth := b.stack.Len()
	defer func() {
		if r := recover(); r != nil {
			err := recoveredError(stmt, r)
			if sql.IsFatal(err) {
				panic(compileErr{err})
			}
			if b.stack.Len() != depth {
				panic(compileErr{sql.NewFatalError(sql.ErrInternal.New("unbalanced symbol stack"), 0, 0)})
			}
			b.record(stmt, err)
			node = plan.NewNoOp(stmt.Pos())
		}
	}()
	return b.buildStatement(stmt)
}

// recoveredError turns a recovered panic value into a located error. Any
// panic other than a raised compile error becomes an internal error.
func recoveredError(n ast.Node, r interface{}) error {
	pos := n.Pos()
	switch r := r.(type) {
	case compileErr:
		return r.err
	case error:
		return sql.NewCompileError(sql.ErrInternal.New(r), pos.Line, pos.Column)
	default:
		return sql.NewCompileError(sql.ErrInternal.New(fmt.Sprint(r)), pos.Line, pos.Column)
	}
}

func (b *Builder) record(n ast.Node, err error) {
	pos := n.Pos()
	severity := sql.Error
	if sql.IsFatal(err) {
		severity = sql.Fatal
	}
	b.messages.Add(severity, err, pos.Line, pos.Column)
	b.ctx.GetLogger().WithFields(logrus.Fields{
		"statement": fmt.Sprintf("%T", n),
		"line":      pos.Line,
		"column":    pos.Column,
	}).Debugf("compile error: %s", err)
}

// sub creates a builder for an isolated compilation, such as the body of a
// recompiled operator. It shares the recursion guard but not the stack.
func (b *Builder) sub() *Builder {
	return newBuilder(b.ctx, b.c, stack.New(b.c.opts.CollisionPolicy), b.recompiling)
}
