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

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/resolve"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

func (b *Builder) buildStatement(stmt ast.Statement) plan.Node {
	switch s := stmt.(type) {
	case *ast.Block:
		return b.buildBlock(s)
	case *ast.VariableStatement:
		return b.buildVariable(s)
	case *ast.AssignmentStatement:
		return b.buildAssignment(s)
	case *ast.IfStatement:
		return b.buildIf(s)
	case *ast.CaseStatement:
		return b.buildCase(s)
	case *ast.WhileStatement:
		return b.buildWhile(s)
	case *ast.ForEachStatement:
		return b.buildForEach(s)
	case *ast.BreakStatement:
		if b.loops == 0 {
			b.handleErr(s, sql.ErrInvalidContext.New("break", "outside of a loop"))
		}
		return plan.NewBreak(s.Pos())
	case *ast.ContinueStatement:
		if b.loops == 0 {
			b.handleErr(s, sql.ErrInvalidContext.New("continue", "outside of a loop"))
		}
		return plan.NewContinue(s.Pos())
	case *ast.TryStatement:
		return b.buildTry(s)
	case *ast.RaiseStatement:
		return b.buildRaise(s)
	case *ast.ExpressionStatement:
		return b.buildExpr(s.Expression)
	default:
		b.handleErr(stmt, sql.ErrInternal.New(fmt.Sprintf("unknown statement %T", stmt)))
	}
	return nil
}

// scopedStatement compiles a nested statement inside its own frame.
func (b *Builder) scopedStatement(stmt ast.Statement) plan.Node {
	guard := b.stack.PushFrame()
	defer guard.Release()
	return b.buildStatement(stmt)
}

// buildBlock compiles every statement of the block, collecting the errors
// of each one separately. Variables stay in scope until the end of the
// block.
func (b *Builder) buildBlock(s *ast.Block) plan.Node {
	guard := b.stack.PushFrame()
	defer guard.Release()

	statements := make([]plan.Node, len(s.Statements))
	for i, stmt := range s.Statements {
		statements[i] = b.buildStatementSafe(stmt)
	}
	return plan.NewBlock(s.Pos(), statements)
}

func (b *Builder) buildVariable(s *ast.VariableStatement) plan.Node {
	if ok, collisions := b.stack.IsValidNewIdentifier(s.Name); !ok {
		b.handleErr(s, sql.ErrDuplicateIdentifier.New(s.Name, collisions))
	}

	var typ sql.Type
	if s.Type != nil {
		typ = b.buildType(s.Type)
	}

	var def plan.Node
	if s.Default != nil {
		def = b.windowed(func() plan.Node { return b.buildExpr(s.Default) })
		if typ == nil {
			typ = def.Type()
		} else {
			def = b.convert(s.Default, def, typ)
		}
	}
	if typ == nil || sql.IsNil(typ) {
		b.handleFatal(s, sql.ErrMissingType.New(s.Name))
	}
	if s.IsConstant && def == nil {
		b.handleErr(s, sql.ErrInvalidContext.New(fmt.Sprintf("constant %q without a value", s.Name), "in a declaration"))
	}

	node := plan.NewVariable(s.Pos(), s.Name, typ, s.IsConstant, def)
	b.stack.Push(node.Symbol())
	return node
}

func (b *Builder) buildAssignment(s *ast.AssignmentStatement) plan.Node {
	res, err := b.c.names.ResolveIdentifier(b.ctx, b.scope, s.Target, resolve.BindLocal)
	if err != nil {
		b.handleErr(s, err)
	}
	if res == nil {
		b.handleErr(s, sql.ErrUnknownIdentifier.New(s.Target, b.c.names.Suggest(b.scope, s.Target)))
	}
	if res.Kind == resolve.ResolvedStackColumn {
		b.handleErr(s, sql.ErrInvalidContext.New(fmt.Sprintf("assignment to column %q", s.Target), "outside of an update"))
	}
	if res.Symbol.IsConstant {
		b.handleErr(s, sql.ErrConstantAssignment.New(s.Target))
	}

	value := b.convert(s.Value, b.buildExpr(s.Value), res.Symbol.Type)
	res.Symbol.IsModified = true
	return plan.NewAssignment(s.Pos(), res.Location, value)
}

func (b *Builder) buildIf(s *ast.IfStatement) plan.Node {
	cond := b.condition(s.Condition)
	b.checkReachable(s, cond, s.Else != nil)

	then := b.scopedStatement(s.Then)
	var els plan.Node
	if s.Else != nil {
		els = b.scopedStatement(s.Else)
	}
	return plan.NewIf(s.Pos(), nil, cond, then, els)
}

func (b *Builder) buildCase(s *ast.CaseStatement) plan.Node {
	var selector plan.Node
	if s.Selector != nil {
		selector = b.buildExpr(s.Selector)
	}

	whens := make([]plan.Node, len(s.Items))
	thens := make([]plan.Node, len(s.Items))
	for i, item := range s.Items {
		whens[i] = b.caseWhen(item.When, selector)
		thens[i] = b.scopedStatement(item.Then)
	}
	var els plan.Node
	if s.Else != nil {
		els = b.scopedStatement(s.Else)
	}
	return plan.NewCase(s.Pos(), nil, whens, thens, els)
}

func (b *Builder) buildWhile(s *ast.WhileStatement) plan.Node {
	cond := b.condition(s.Condition)

	b.loops++
	defer func() { b.loops-- }()
	return plan.NewWhile(s.Pos(), cond, b.scopedStatement(s.Body))
}

// buildForEach compiles a loop over a list, table or cursor. Without a
// variable the columns of each row are in scope directly.
func (b *Builder) buildForEach(s *ast.ForEachStatement) plan.Node {
	source := b.buildExpr(s.Expression)

	var elem sql.Type
	switch t := source.Type().(type) {
	case *sql.ListType:
		elem = t.Element
	case *sql.TableType:
		elem = t.RowType()
	case *sql.CursorType:
		elem = t.Table.RowType()
	default:
		b.handleErr(s.Expression, sql.ErrTypeMismatch.New("a list, table or cursor", describeType(source.Type())))
	}
	if elem == nil {
		b.handleErr(s.Expression, sql.ErrMissingType.New("list element"))
	}

	if s.Variable == "" {
		if _, ok := elem.(*sql.RowType); !ok {
			b.handleErr(s, sql.ErrTypeMismatch.New("rows", elem))
		}
	} else if ok, collisions := b.stack.IsValidNewIdentifier(s.Variable); !ok {
		b.handleErr(s, sql.ErrDuplicateIdentifier.New(s.Variable, collisions))
	}

	guard := b.stack.PushFrame()
	defer guard.Release()
	b.stack.Push(stack.NewSymbol(s.Variable, elem))

	b.loops++
	defer func() { b.loops-- }()
	body := b.buildStatement(s.Body)
	return plan.NewForEach(s.Pos(), s.Variable, elem, source, body)
}

func (b *Builder) buildTry(s *ast.TryStatement) plan.Node {
	body := b.scopedStatement(s.Body)

	var errType sql.Type
	if s.Variable != "" {
		errType = b.systemType(s, "Error")
	}
	var handler plan.Node
	if s.Handler != nil {
		handler = b.buildHandler(s, errType)
	}
	return plan.NewTry(s.Pos(), body, s.Variable, errType, handler)
}

func (b *Builder) buildHandler(s *ast.TryStatement, errType sql.Type) plan.Node {
	guard := b.stack.PushFrame()
	defer guard.Release()
	if s.Variable != "" {
		b.stack.Push(stack.NewSymbol(s.Variable, errType))
	}

	b.handlers++
	defer func() { b.handlers-- }()
	return b.buildStatement(s.Handler)
}

func (b *Builder) buildRaise(s *ast.RaiseStatement) plan.Node {
	if s.Expression == nil {
		if b.handlers == 0 {
			b.handleErr(s, sql.ErrInvalidContext.New("raise without an error", "outside of an error handler"))
		}
		return plan.NewRaise(s.Pos(), nil)
	}
	err := b.convert(s.Expression, b.buildExpr(s.Expression), b.systemType(s, "Error"))
	return plan.NewRaise(s.Pos(), err)
}
