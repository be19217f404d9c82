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
	"strings"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/resolve"
)

// binaryOperators maps infix operator symbols to the operators that
// implement them.
var binaryOperators = map[string]string{
	ast.OpAdd:          "iAddition",
	ast.OpSubtract:     "iSubtraction",
	ast.OpMultiply:     "iMultiplication",
	ast.OpDivide:       "iDivision",
	ast.OpEqual:        "iEqual",
	ast.OpNotEqual:     "iNotEqual",
	ast.OpLess:         "iLess",
	ast.OpLessOrEqual:  "iInclusiveLess",
	ast.OpGreater:      "iGreater",
	ast.OpGreaterEqual: "iInclusiveGreater",
	ast.OpAnd:          "iAnd",
	ast.OpOr:           "iOr",
}

var unaryOperators = map[string]string{
	ast.OpNegate: "iNegate",
	ast.OpNot:    "iNot",
}

func (b *Builder) buildExpr(e ast.Expression) plan.Node {
	switch v := e.(type) {
	case *ast.ValueLiteral:
		return b.buildLiteral(v)
	case *ast.NilLiteral:
		return plan.NewLiteral(v.Pos(), sql.Nil, nil)
	case *ast.IdentifierExpression:
		return b.buildIdentifier(v, v.Name)
	case *ast.QualifierExpression:
		return b.buildQualifier(v)
	case *ast.CallExpression:
		return b.buildCall(v, v.Name, b.buildArgs(v.Arguments))
	case *ast.BinaryExpression:
		name, ok := binaryOperators[strings.ToLower(v.Operator)]
		if !ok {
			b.handleErr(v, sql.ErrUnknownOperator.New(v.Operator, ""))
		}
		return b.buildCall(v, name, b.buildArgs([]ast.Expression{v.Left, v.Right}))
	case *ast.UnaryExpression:
		name, ok := unaryOperators[strings.ToLower(v.Operator)]
		if !ok {
			b.handleErr(v, sql.ErrUnknownOperator.New(v.Operator, ""))
		}
		return b.buildCall(v, name, b.buildArgs([]ast.Expression{v.Operand}))
	case *ast.IfExpression:
		return b.buildIfExpr(v)
	case *ast.CaseExpression:
		return b.buildCaseExpr(v)
	case *ast.RowSelector:
		return b.buildRowSelector(v)
	case *ast.TableSelector:
		return b.buildTableSelector(v)
	case *ast.ListSelector:
		return b.buildListSelector(v)
	case *ast.RestrictExpression:
		return b.buildRestrict(v)
	case *ast.ProjectExpression:
		return b.buildProject(v)
	case *ast.RemoveExpression:
		return b.buildRemove(v)
	case *ast.RenameExpression:
		return b.buildRename(v)
	case *ast.ExtendExpression:
		return b.buildExtend(v)
	case *ast.JoinExpression:
		return b.buildJoin(v)
	case nil:
		b.handleErr(ast.At(0, 0), sql.ErrInternal.New("missing expression"))
	default:
		b.handleErr(e, sql.ErrInternal.New(fmt.Sprintf("unknown expression %T", e)))
	}
	return nil
}

// scoped compiles f inside its own stack frame.
func (b *Builder) scoped(f func() plan.Node) plan.Node {
	guard := b.stack.PushFrame()
	defer guard.Release()
	return f()
}

// windowed compiles f with the enclosing stack entries hidden.
func (b *Builder) windowed(f func() plan.Node) plan.Node {
	guard := b.stack.PushWindow(0)
	defer guard.Release()
	return f()
}

func (b *Builder) buildArgs(exprs []ast.Expression) []plan.Node {
	args := make([]plan.Node, len(exprs))
	for i, e := range exprs {
		args[i] = b.buildExpr(e)
		if args[i].Type() == nil {
			b.handleErr(e, sql.ErrTypeMismatch.New("a value", "an operator call without a result"))
		}
	}
	return args
}

func (b *Builder) buildIdentifier(n ast.Node, name string) plan.Node {
	res, err := b.c.names.ResolveIdentifier(b.ctx, b.scope, name, resolve.BindAll)
	if err != nil {
		b.handleErr(n, err)
	}
	if res == nil {
		b.handleErr(n, sql.ErrUnknownIdentifier.New(name, b.c.names.Suggest(b.scope, name)))
	}
	return b.resolvedNode(n, name, res)
}

// resolvedNode builds the reference node for a resolved identifier.
func (b *Builder) resolvedNode(n ast.Node, name string, res *resolve.Resolved) plan.Node {
	if len(res.Shadowed) > 0 {
		b.warn(n, sql.WarnShadowedIdentifier.New(name, res.Shadowed))
	}

	switch res.Kind {
	case resolve.ResolvedStack:
		return plan.NewStackReference(n.Pos(), res.Location.Name, res.Location.Index, res.Symbol.Type)
	case resolve.ResolvedStackColumn:
		row := res.Symbol.Type.(*sql.RowType)
		col := row.Columns[res.Location.Column]
		return plan.NewStackColumnReference(n.Pos(), col.Name, res.Location.Index, res.Location.Column, col.Type)
	}

	if tv, ok := res.Object.(*sql.TableVar); ok {
		return plan.NewTableVarReference(n.Pos(), tv)
	}
	b.handleErr(n, sql.ErrTypeMismatch.New("a value", res.Object.ObjectKind()))
	return nil
}

func flattenQualifier(e ast.Expression) []ast.Expression {
	if q, ok := e.(*ast.QualifierExpression); ok {
		return append(flattenQualifier(q.Left), flattenQualifier(q.Right)...)
	}
	return []ast.Expression{e}
}

// buildQualifier compiles a dotted chain. The longest prefix that does not
// resolve is collapsed with the next part until a name resolves; what is
// left of the chain extracts columns from the resolved value.
func (b *Builder) buildQualifier(q *ast.QualifierExpression) plan.Node {
	parts := flattenQualifier(q)

	if call, ok := parts[len(parts)-1].(*ast.CallExpression); ok {
		prefix := b.qualifierNames(q, parts[:len(parts)-1])
		qualified := &ast.CallExpression{
			Position:  call.Position,
			Name:      strings.Join(append(prefix, call.Name), "."),
			Arguments: call.Arguments,
		}
		return b.buildExpr(qualified)
	}

	if _, ok := parts[0].(*ast.IdentifierExpression); !ok {
		node := b.buildExpr(parts[0])
		return b.extractColumns(q, node, b.qualifierNames(q, parts[1:]))
	}

	names := b.qualifierNames(q, parts)
	for i := 1; i <= len(names); i++ {
		name := strings.Join(names[:i], ".")
		res, err := b.c.names.ResolveIdentifier(b.ctx, b.scope, name, resolve.BindAll)
		if err != nil {
			b.handleErr(q, err)
		}
		if res == nil {
			continue
		}
		return b.extractColumns(q, b.resolvedNode(q, name, res), names[i:])
	}
	b.handleErr(q, sql.ErrUnableToResolveQualifier.New(strings.Join(names, ".")))
	return nil
}

func (b *Builder) qualifierNames(q *ast.QualifierExpression, parts []ast.Expression) []string {
	names := make([]string, len(parts))
	for i, p := range parts {
		id, ok := p.(*ast.IdentifierExpression)
		if !ok {
			b.handleErr(q, sql.ErrUnableToResolveQualifier.New(fmt.Sprintf("%T", p)))
		}
		names[i] = id.Name
	}
	return names
}

func (b *Builder) extractColumns(n ast.Node, node plan.Node, columns []string) plan.Node {
	for _, col := range columns {
		row, ok := node.Type().(*sql.RowType)
		if !ok {
			b.handleErr(n, sql.ErrTypeMismatch.New("a row", describeType(node.Type())))
		}
		idx := row.Columns.IndexOf(col)
		if idx < 0 {
			b.handleErr(n, sql.ErrUnknownColumn.New(row, col))
		}
		node = plan.NewColumnExtractor(n.Pos(), node, row.Columns[idx].Name, idx, row.Columns[idx].Type)
	}
	return node
}

func describeType(t sql.Type) string {
	if t == nil {
		return "no value"
	}
	return t.String()
}

func signatureOf(args []plan.Node) sql.Signature {
	sig := make(sql.Signature, len(args))
	for i, a := range args {
		sig[i] = sql.SignatureElement{Type: a.Type()}
	}
	return sig
}

func (b *Builder) resolveOperator(name string, args []plan.Node) (*resolve.Match, error) {
	return b.c.operators.ResolveOperator(b.ctx, b.scope, name, signatureOf(args), false)
}

func (b *Builder) buildCall(n ast.Node, name string, args []plan.Node) plan.Node {
	m, err := b.resolveOperator(name, args)
	if err != nil {
		b.handleErr(n, err)
	}
	return plan.NewCall(n.Pos(), m.Operator, b.bindArguments(n, m, args))
}

// bindArguments applies the argument conversions of a match and checks the
// arguments passed to var parameters.
func (b *Builder) bindArguments(n ast.Node, m *resolve.Match, args []plan.Node) []plan.Node {
	if m.Operator.IsDeprecated {
		b.warn(n, sql.WarnDeprecatedOperator.New(m.Operator))
	}
	bound := make([]plan.Node, len(args))
	for i, arg := range args {
		if i < len(m.Operator.Signature) && m.Operator.Signature[i].Modifier == sql.ModifierVar {
			b.checkVarArgument(n, arg)
		}
		if i < len(m.Arguments) && !m.Arguments[i].Exact {
			bound[i] = b.applyConversion(n, arg, m.Arguments[i].Conversion)
			continue
		}
		bound[i] = arg
	}
	return bound
}

func (b *Builder) checkVarArgument(n ast.Node, arg plan.Node) {
	ref, ok := arg.(*plan.StackReference)
	if !ok {
		b.handleErr(n, sql.ErrInvalidContext.New("passing an expression to a var parameter", "in an operator call"))
	}
	sym := b.stack.Peek(ref.Index)
	if sym.IsConstant {
		b.handleErr(n, sql.ErrConstantAssignment.New(ref.Name))
	}
	sym.IsModified = true
}

// checkReachable warns about the branch a literal condition never takes.
func (b *Builder) checkReachable(n ast.Node, cond plan.Node, hasElse bool) {
	lit, ok := cond.(*plan.Literal)
	if !ok {
		return
	}
	v, ok := lit.Value.(bool)
	if !ok {
		return
	}
	switch {
	case !v:
		b.warn(n, sql.WarnUnreachableBranch.New("then"))
	case hasElse:
		b.warn(n, sql.WarnUnreachableBranch.New("else"))
	}
}

func (b *Builder) buildIfExpr(v *ast.IfExpression) plan.Node {
	cond := b.condition(v.Condition)
	b.checkReachable(v, cond, true)

	then := b.scoped(func() plan.Node { return b.buildExpr(v.Then) })
	var els plan.Node = plan.NewLiteral(v.Pos(), sql.Nil, nil)
	if v.Else != nil {
		els = b.scoped(func() plan.Node { return b.buildExpr(v.Else) })
	}

	typ := b.unify(v, then.Type(), els.Type())
	if typ == nil {
		b.handleErr(v, sql.ErrTypeMismatch.New("a value", "an operator call without a result"))
	}
	return plan.NewIf(v.Pos(), typ, cond, b.convert(v, then, typ), b.convert(v, els, typ))
}

func (b *Builder) buildCaseExpr(v *ast.CaseExpression) plan.Node {
	var selector plan.Node
	if v.Selector != nil {
		selector = b.buildExpr(v.Selector)
	}

	whens := make([]plan.Node, len(v.Items))
	thens := make([]plan.Node, len(v.Items))
	var typ sql.Type
	for i, item := range v.Items {
		whens[i] = b.caseWhen(item.When, selector)
		thens[i] = b.scoped(func() plan.Node { return b.buildExpr(item.Then) })
		typ = b.unify(item.Then, typ, thens[i].Type())
	}
	var els plan.Node
	if v.Else != nil {
		els = b.scoped(func() plan.Node { return b.buildExpr(v.Else) })
		typ = b.unify(v.Else, typ, els.Type())
	}
	if typ == nil {
		b.handleErr(v, sql.ErrMissingType.New("case expression"))
	}

	for i := range thens {
		thens[i] = b.convert(v.Items[i].Then, thens[i], typ)
	}
	if els != nil {
		els = b.convert(v.Else, els, typ)
	}
	return plan.NewCase(v.Pos(), typ, whens, thens, els)
}

// caseWhen compiles a when clause into a condition. Against a selector the
// condition is the equality of the selector and the value.
func (b *Builder) caseWhen(when ast.Expression, selector plan.Node) plan.Node {
	if selector == nil {
		return b.condition(when)
	}
	eq := b.buildCall(when, binaryOperators[ast.OpEqual], []plan.Node{selector, b.buildExpr(when)})
	return b.convert(when, eq, b.systemType(when, "Boolean"))
}

func (b *Builder) buildRowSelector(v *ast.RowSelector) plan.Node {
	values := make([]plan.Node, len(v.Columns))
	columns := make(sql.Columns, len(v.Columns))
	for i, c := range v.Columns {
		if idx := columns[:i].IndexOf(c.Name); idx >= 0 {
			b.handleErr(v, sql.ErrDuplicateIdentifier.New(c.Name, []string{columns[idx].Name}))
		}
		values[i] = b.buildExpr(c.Expression)
		if values[i].Type() == nil {
			b.handleErr(c.Expression, sql.ErrTypeMismatch.New("a value", "an operator call without a result"))
		}
		columns[i] = sql.Column{Name: c.Name, Type: values[i].Type()}
	}

	node := plan.NewRowSelector(v.Pos(), sql.NewRowType(columns...), values)
	if v.Type == nil {
		return node
	}
	return b.convert(v, node, b.buildType(v.Type))
}

func (b *Builder) buildTableSelector(v *ast.TableSelector) plan.Node {
	var typ *sql.TableType
	if v.Type != nil {
		typ = b.buildType(v.Type).(*sql.TableType)
	}

	rows := make([]plan.Node, len(v.Rows))
	for i, r := range v.Rows {
		row := b.buildExpr(r)
		rt, ok := row.Type().(*sql.RowType)
		if !ok {
			b.handleErr(r, sql.ErrTypeMismatch.New("a row", describeType(row.Type())))
		}
		if typ == nil {
			typ = sql.NewTableType(rt.Columns...)
		}
		rows[i] = b.convert(r, row, typ.RowType())
	}
	if typ == nil {
		b.handleErr(v, sql.ErrMissingType.New("table selector"))
	}
	return plan.NewTableSelector(v.Pos(), typ, rows)
}

func (b *Builder) buildListSelector(v *ast.ListSelector) plan.Node {
	var elem sql.Type
	if v.Type != nil {
		elem = b.buildType(v.Type).(*sql.ListType).Element
	}

	elements := make([]plan.Node, len(v.Elements))
	inferred := elem
	for i, e := range v.Elements {
		elements[i] = b.buildExpr(e)
		if elem == nil {
			inferred = b.unify(e, inferred, elements[i].Type())
		}
	}
	if inferred == nil || sql.IsNil(inferred) {
		b.handleErr(v, sql.ErrMissingType.New("list selector"))
	}
	for i, e := range v.Elements {
		elements[i] = b.convert(e, elements[i], inferred)
	}
	return plan.NewListSelector(v.Pos(), sql.NewListType(inferred), elements)
}
