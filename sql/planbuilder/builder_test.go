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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/go-relational-compiler/memory"
	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

func at(line int) ast.Position { return ast.At(line, 1) }

func lit(v interface{}) *ast.ValueLiteral {
	return &ast.ValueLiteral{Position: at(1), Value: v}
}

func ident(name string) *ast.IdentifierExpression {
	return &ast.IdentifierExpression{Position: at(1), Name: name}
}

func identAt(line int, name string) *ast.IdentifierExpression {
	return &ast.IdentifierExpression{Position: at(line), Name: name}
}

func named(name string) *ast.NamedTypeSpecifier {
	return &ast.NamedTypeSpecifier{Position: at(1), Name: name}
}

func binary(op string, left, right ast.Expression) *ast.BinaryExpression {
	return &ast.BinaryExpression{Position: at(1), Operator: op, Left: left, Right: right}
}

func exprStmt(line int, e ast.Expression) *ast.ExpressionStatement {
	return &ast.ExpressionStatement{Position: at(line), Expression: e}
}

func varStmt(line int, name string, typ ast.TypeSpecifier, def ast.Expression) *ast.VariableStatement {
	return &ast.VariableStatement{Position: at(line), Name: name, Type: typ, Default: def}
}

func block(stmts ...ast.Statement) *ast.Block {
	return &ast.Block{Position: at(1), Statements: stmts}
}

func scalar(t *testing.T, c *memory.Catalog, name string) *sql.ScalarType {
	t.Helper()
	typ, ok := c.ScalarType(name)
	require.True(t, ok, "missing type %s", name)
	return typ
}

// newTestCompiler creates a compiler over a system catalog holding the
// Sales.Orders table.
func newTestCompiler(t *testing.T) (*Compiler, *memory.Catalog) {
	t.Helper()
	c := memory.NewSystemCatalog()
	orders := sql.NewTableType(
		sql.Column{Name: "ID", Type: scalar(t, c, "System.Integer")},
		sql.Column{Name: "Amount", Type: scalar(t, c, "System.Decimal")},
		sql.Column{Name: "Shipped", Type: scalar(t, c, "System.Boolean")},
	)
	require.NoError(t, c.AddTableVar(sql.NewTableVar("Sales.Orders", orders, memory.SystemDevice, []string{"ID"})))
	return NewCompiler(c, nil, nil, Options{}), c
}

func requireError(t *testing.T, m *sql.Messages, kind interface{ Is(error) bool }) *sql.Message {
	t.Helper()
	errs := m.Errors()
	require.Len(t, errs, 1, "messages: %v", m.Items())
	require.True(t, kind.Is(errs[0].Err), "unexpected error %s", errs[0].Err)
	return errs[0]
}

func TestLocalBindingWins(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)
	integer := scalar(t, c, "System.Integer")
	x := sql.NewTableType(sql.Column{Name: "ID", Type: integer})
	require.NoError(c.AddTableVar(sql.NewTableVar("x", x, memory.SystemDevice)))

	node, msgs := comp.Compile(sql.NewEmptyContext(), block(
		varStmt(1, "x", named("System.Integer"), nil),
		exprStmt(2, ident("x")),
	))
	require.False(msgs.HasErrors(), "%v", msgs.Items())

	ref, ok := node.(*plan.Block).Statements[1].(*plan.StackReference)
	require.True(ok, "unexpected node %s", node)
	require.Equal(integer, ref.Type())
	require.Equal(0, ref.Index)
}

func TestImplicitWidening(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)
	dec := scalar(t, c, "System.Decimal")

	node, msgs := comp.Compile(sql.NewEmptyContext(), block(
		varStmt(1, "a", named("System.Integer"), nil),
		varStmt(2, "b", named("System.Decimal"), nil),
		exprStmt(3, binary(ast.OpAdd, ident("a"), ident("b"))),
	))
	require.False(msgs.HasErrors(), "%v", msgs.Items())

	call, ok := node.(*plan.Block).Statements[2].(*plan.Call)
	require.True(ok)
	require.Equal(dec, call.Type())

	conv, ok := call.Args[0].(*plan.Convert)
	require.True(ok, "unexpected argument %s", call.Args[0])
	require.IsType(&plan.StackReference{}, conv.Child)
	require.IsType(&plan.StackReference{}, call.Args[1])
}

func TestCaseWhensAreConditions(t *testing.T) {
	tests := []struct {
		name     string
		stmt     ast.Statement
		operand  string
		selector interface{}
	}{
		{
			name: "expression without selector",
			stmt: exprStmt(2, &ast.CaseExpression{
				Position: at(2),
				Items:    []ast.CaseExpressionItem{{When: binary(ast.OpEqual, ident("x"), lit(1)), Then: lit(10)}},
				Else:     lit(20),
			}),
			operand:  "System.Integer",
			selector: &plan.StackReference{},
		},
		{
			name: "expression with selector of the same type",
			stmt: exprStmt(2, &ast.CaseExpression{
				Position: at(2),
				Selector: ident("x"),
				Items:    []ast.CaseExpressionItem{{When: lit(1), Then: lit(10)}, {When: lit(2), Then: lit(11)}},
				Else:     lit(20),
			}),
			operand:  "System.Integer",
			selector: &plan.StackReference{},
		},
		{
			name: "expression with selector converted",
			stmt: exprStmt(2, &ast.CaseExpression{
				Position: at(2),
				Selector: ident("x"),
				Items:    []ast.CaseExpressionItem{{When: lit(1.5), Then: lit(10)}},
				Else:     lit(20),
			}),
			operand:  "System.Decimal",
			selector: &plan.Convert{},
		},
		{
			name: "statement with selector converted",
			stmt: &ast.CaseStatement{
				Position: at(2),
				Selector: ident("x"),
				Items:    []ast.CaseItem{{When: lit(1.5), Then: exprStmt(3, ident("x"))}},
			},
			operand:  "System.Decimal",
			selector: &plan.Convert{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			comp, c := newTestCompiler(t)
			boolean := scalar(t, c, "System.Boolean")
			operand := scalar(t, c, tt.operand)

			node, msgs := comp.Compile(sql.NewEmptyContext(), block(
				varStmt(1, "x", named("System.Integer"), nil),
				tt.stmt,
			))
			require.False(msgs.HasErrors(), "%v", msgs.Items())

			cs, ok := node.(*plan.Block).Statements[1].(*plan.Case)
			require.True(ok, "unexpected node %s", node)
			require.NotEmpty(cs.Whens)
			for _, when := range cs.Whens {
				call, ok := when.(*plan.Call)
				require.True(ok, "unexpected when %s", when)
				require.Equal("System.iEqual", call.Operator.Name())
				require.Equal(boolean, call.Type())
				require.Len(call.Args, 2)
				require.IsType(tt.selector, call.Args[0])
				require.Equal(operand, call.Args[0].Type())
				require.Equal(operand, call.Args[1].Type())
			}
		})
	}
}

func TestRestrictThenProject(t *testing.T) {
	require := require.New(t)
	comp, _ := newTestCompiler(t)

	expr := &ast.ProjectExpression{
		Position: at(1),
		Source: &ast.RestrictExpression{
			Position:  at(1),
			Source:    ident("Orders"),
			Condition: ident("Shipped"),
		},
		Columns: []string{"ID"},
	}
	node, msgs := comp.CompileExpression(sql.NewEmptyContext(), expr)
	require.False(msgs.HasErrors(), "%v", msgs.Items())

	project, ok := node.(*plan.Project)
	require.True(ok, "unexpected node %s", node)
	require.Equal([]string{"ID"}, project.Columns)
	require.Equal("table{ID: System.Integer}", project.Type().String())

	restrict, ok := project.Source.(*plan.Restrict)
	require.True(ok)
	require.IsType(&plan.TableVarReference{}, restrict.Source)
	cond, ok := restrict.Condition.(*plan.StackColumnReference)
	require.True(ok)
	require.Equal("Shipped", cond.Name)
}

func TestCallArity(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)
	integer := scalar(t, c, "System.Integer")
	require.NoError(c.AddOperator(sql.NewOperator("Lib.g", sql.NewSignature(integer), integer)))
	require.NoError(c.AddOperator(sql.NewOperator("Lib.g", sql.NewSignature(integer, integer), integer)))

	call := &ast.CallExpression{Position: ast.At(4, 2), Name: "g", Arguments: []ast.Expression{lit(1), lit(2), lit(3)}}
	node, msgs := comp.Compile(sql.NewEmptyContext(), exprStmt(4, call))

	require.IsType(&plan.NoOp{}, node)
	msg := requireError(t, msgs, sql.ErrNoSignatureForArity)
	require.Equal(4, msg.Line)
	require.Equal(2, msg.Column)
}

func TestRowAssignmentMissingColumn(t *testing.T) {
	require := require.New(t)
	comp, _ := newTestCompiler(t)

	target := &ast.RowTypeSpecifier{Position: at(1), Columns: []ast.ColumnSpecifier{
		{Name: "a", Type: named("System.Integer")},
	}}
	value := &ast.RowSelector{Position: at(2), Columns: []ast.NamedExpression{
		{Name: "a", Expression: lit(1)},
		{Name: "b", Expression: lit(2)},
	}}
	node, msgs := comp.Compile(sql.NewEmptyContext(), block(
		varStmt(1, "r", target, nil),
		&ast.AssignmentStatement{Position: at(2), Target: "r", Value: value},
	))

	require.IsType(&plan.NoOp{}, node.(*plan.Block).Statements[1])
	msg := requireError(t, msgs, sql.ErrNoConversion)
	require.Contains(msg.Err.Error(), `"b"`)
	require.Contains(msg.Err.Error(), "present in the source but missing from the target")
}

func TestRowAssignmentArityWidening(t *testing.T) {
	require := require.New(t)
	_, c := newTestCompiler(t)
	comp := NewCompiler(c, nil, nil, Options{ArityWidening: true})

	target := &ast.RowTypeSpecifier{Position: at(1), Columns: []ast.ColumnSpecifier{
		{Name: "a", Type: named("System.Integer")},
		{Name: "b", Type: named("System.Integer")},
	}}
	value := &ast.RowSelector{Position: at(2), Columns: []ast.NamedExpression{
		{Name: "a", Expression: lit(1)},
	}}
	_, msgs := comp.Compile(sql.NewEmptyContext(), block(
		varStmt(1, "r", target, nil),
		&ast.AssignmentStatement{Position: at(2), Target: "r", Value: value},
	))
	require.False(msgs.HasErrors(), "%v", msgs.Items())
}

func TestStackBalance(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)
	b := comp.NewBuilder(sql.NewEmptyContext())
	b.Stack().Push(stack.NewSymbol("outer", scalar(t, c, "System.Integer")))

	expr := &ast.IfExpression{
		Position:  at(1),
		Condition: lit(false),
		Then:      ident("missing"),
		Else:      lit(1),
	}
	require.Nil(b.BuildExpression(expr))
	require.Equal(1, b.Stack().Len())
	requireError(t, b.Messages(), sql.ErrUnknownIdentifier)

	node := b.Build(block(
		varStmt(1, "x", nil, lit(1)),
		exprStmt(2, expr),
	))
	require.IsType(&plan.Block{}, node)
	require.Equal(1, b.Stack().Len())
}

func TestBlockCollectsErrors(t *testing.T) {
	require := require.New(t)
	comp, _ := newTestCompiler(t)

	node, msgs := comp.Compile(sql.NewEmptyContext(), block(
		varStmt(1, "x", nil, lit(1)),
		exprStmt(2, identAt(2, "y")),
		exprStmt(3, identAt(3, "x")),
		exprStmt(4, identAt(4, "z")),
	))

	stmts := node.(*plan.Block).Statements
	require.Len(stmts, 4)
	require.IsType(&plan.Variable{}, stmts[0])
	require.IsType(&plan.NoOp{}, stmts[1])
	require.IsType(&plan.StackReference{}, stmts[2])
	require.IsType(&plan.NoOp{}, stmts[3])

	errs := msgs.Errors()
	require.Len(errs, 2)
	require.Equal(2, errs[0].Line)
	require.Equal(4, errs[1].Line)
	require.True(sql.ErrUnknownIdentifier.Is(errs[0].Err))
	require.False(msgs.HasFatal())
}

func TestFatalStopsCompilation(t *testing.T) {
	require := require.New(t)
	comp, _ := newTestCompiler(t)

	node, msgs := comp.Compile(sql.NewEmptyContext(), block(
		varStmt(1, "x", nil, &ast.NilLiteral{Position: at(1)}),
		exprStmt(2, ident("y")),
	))

	require.IsType(&plan.NoOp{}, node)
	require.True(msgs.HasFatal())
	msg := requireError(t, msgs, sql.ErrMissingType)
	require.Equal(sql.Fatal, msg.Severity)
}

func TestInvalidContext(t *testing.T) {
	tests := []struct {
		name string
		stmt ast.Statement
		err  interface{ Is(error) bool }
	}{
		{
			name: "break outside of a loop",
			stmt: &ast.BreakStatement{Position: at(1)},
			err:  sql.ErrInvalidContext,
		},
		{
			name: "break in a loop",
			stmt: &ast.WhileStatement{Position: at(1), Condition: lit(true), Body: &ast.BreakStatement{Position: at(2)}},
		},
		{
			name: "continue outside of a loop",
			stmt: block(&ast.ContinueStatement{Position: at(1)}),
			err:  sql.ErrInvalidContext,
		},
		{
			name: "reraise outside of a handler",
			stmt: &ast.RaiseStatement{Position: at(1)},
			err:  sql.ErrInvalidContext,
		},
		{
			name: "reraise in a handler",
			stmt: &ast.TryStatement{
				Position: at(1),
				Body:     exprStmt(1, lit(1)),
				Variable: "e",
				Handler:  &ast.RaiseStatement{Position: at(2)},
			},
		},
		{
			name: "raise a string",
			stmt: &ast.RaiseStatement{Position: at(1), Expression: lit("boom")},
			err:  sql.ErrNoConversion,
		},
		{
			name: "assign a constant",
			stmt: block(
				&ast.VariableStatement{Position: at(1), Name: "c", Default: lit(1), IsConstant: true},
				&ast.AssignmentStatement{Position: at(2), Target: "c", Value: lit(2)},
			),
			err: sql.ErrConstantAssignment,
		},
		{
			name: "redeclare a variable",
			stmt: block(varStmt(1, "x", nil, lit(1)), varStmt(2, "X", nil, lit(2))),
			err:  sql.ErrDuplicateIdentifier,
		},
	}

	comp, _ := newTestCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, msgs := comp.Compile(sql.NewEmptyContext(), tt.stmt)
			if tt.err == nil {
				require.False(t, msgs.HasErrors(), "%v", msgs.Items())
				return
			}
			requireError(t, msgs, tt.err)
		})
	}
}

func TestNarrowingWarning(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)

	long := &ast.ValueLiteral{Position: at(1), Value: 5, TypeName: "System.Long"}
	node, msgs := comp.Compile(sql.NewEmptyContext(), varStmt(1, "i", named("System.Integer"), long))
	require.False(msgs.HasErrors(), "%v", msgs.Items())

	warnings := msgs.Warnings()
	require.Len(warnings, 1)
	require.True(sql.WarnNarrowingConversion.Is(warnings[0].Err))

	v := node.(*plan.Variable)
	require.Equal(scalar(t, c, "System.Integer"), v.VarType)
	require.IsType(&plan.Convert{}, v.Default)
}

func TestUnreachableBranch(t *testing.T) {
	require := require.New(t)
	comp, _ := newTestCompiler(t)

	stmt := &ast.IfStatement{
		Position:  at(1),
		Condition: lit(true),
		Then:      exprStmt(1, lit(1)),
		Else:      exprStmt(2, lit(2)),
	}
	_, msgs := comp.Compile(sql.NewEmptyContext(), stmt)
	require.False(msgs.HasErrors())
	require.Len(msgs.Warnings(), 1)
	require.Equal("else branch is never taken", msgs.Warnings()[0].Err.Error())
}

func TestForEach(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)
	integer := scalar(t, c, "System.Integer")

	list := &ast.ListSelector{Position: at(1), Elements: []ast.Expression{lit(1), lit(2)}}
	loop := &ast.ForEachStatement{
		Position:   at(1),
		Variable:   "v",
		Expression: list,
		Body:       exprStmt(2, binary(ast.OpAdd, ident("v"), lit(1))),
	}
	node, msgs := comp.Compile(sql.NewEmptyContext(), loop)
	require.False(msgs.HasErrors(), "%v", msgs.Items())
	f := node.(*plan.ForEach)
	require.Equal(integer, f.VarType)

	rows := &ast.ForEachStatement{
		Position:   at(1),
		Expression: ident("Orders"),
		Body:       exprStmt(2, ident("Amount")),
	}
	node, msgs = comp.Compile(sql.NewEmptyContext(), rows)
	require.False(msgs.HasErrors(), "%v", msgs.Items())
	ref, ok := node.(*plan.ForEach).Body.(*plan.StackColumnReference)
	require.True(ok)
	require.Equal(1, ref.Column)
}

func TestQualifiedColumn(t *testing.T) {
	require := require.New(t)
	comp, _ := newTestCompiler(t)

	row := &ast.RowTypeSpecifier{Position: at(1), Columns: []ast.ColumnSpecifier{
		{Name: "a", Type: named("System.Integer")},
		{Name: "b", Type: named("System.String")},
	}}
	q := &ast.QualifierExpression{Position: at(2), Left: ident("r"), Right: ident("b")}
	node, msgs := comp.Compile(sql.NewEmptyContext(), block(
		varStmt(1, "r", row, nil),
		exprStmt(2, q),
	))
	require.False(msgs.HasErrors(), "%v", msgs.Items())

	ce, ok := node.(*plan.Block).Statements[1].(*plan.ColumnExtractor)
	require.True(ok)
	require.Equal("b", ce.Column)
	require.Equal(1, ce.Index)

	qualifiedTable := &ast.QualifierExpression{Position: at(1), Left: ident("Sales"), Right: ident("Orders")}
	node, msgs = comp.CompileExpression(sql.NewEmptyContext(), qualifiedTable)
	require.False(msgs.HasErrors(), "%v", msgs.Items())
	require.IsType(&plan.TableVarReference{}, node)

	unknown := &ast.QualifierExpression{Position: at(1), Left: ident("Nope"), Right: ident("Orders")}
	_, msgs = comp.CompileExpression(sql.NewEmptyContext(), unknown)
	requireError(t, msgs, sql.ErrUnableToResolveQualifier)
}

func TestRelationalErrors(t *testing.T) {
	orders := ident("Orders")
	tests := []struct {
		name string
		expr ast.Expression
		err  interface{ Is(error) bool }
	}{
		{
			name: "project unknown column",
			expr: &ast.ProjectExpression{Position: at(1), Source: orders, Columns: []string{"Nope"}},
			err:  sql.ErrUnknownColumn,
		},
		{
			name: "extend existing column",
			expr: &ast.ExtendExpression{Position: at(1), Source: orders, Columns: []ast.NamedExpression{{Name: "ID", Expression: lit(1)}}},
			err:  sql.ErrDuplicateIdentifier,
		},
		{
			name: "rename onto existing column",
			expr: &ast.RenameExpression{Position: at(1), Source: orders, Columns: []ast.RenameColumn{{Old: "ID", New: "Amount"}}},
			err:  sql.ErrDuplicateIdentifier,
		},
		{
			name: "join with overlapping columns",
			expr: &ast.JoinExpression{Position: at(1), Left: orders, Right: orders, Condition: lit(true)},
			err:  sql.ErrDuplicateIdentifier,
		},
		{
			name: "restrict a scalar",
			expr: &ast.RestrictExpression{Position: at(1), Source: lit(1), Condition: lit(true)},
			err:  sql.ErrTypeMismatch,
		},
	}

	comp, _ := newTestCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, msgs := comp.CompileExpression(sql.NewEmptyContext(), tt.expr)
			require.Nil(t, node)
			requireError(t, msgs, tt.err)
		})
	}
}

func TestRelationalTypes(t *testing.T) {
	orders := ident("Orders")
	tests := []struct {
		name     string
		expr     ast.Expression
		expected string
	}{
		{
			name:     "remove",
			expr:     &ast.RemoveExpression{Position: at(1), Source: orders, Columns: []string{"Amount"}},
			expected: "table{ID: System.Integer, Shipped: System.Boolean}",
		},
		{
			name:     "rename",
			expr:     &ast.RenameExpression{Position: at(1), Source: orders, Columns: []ast.RenameColumn{{Old: "ID", New: "OrderID"}}},
			expected: "table{OrderID: System.Integer, Amount: System.Decimal, Shipped: System.Boolean}",
		},
		{
			name: "extend",
			expr: &ast.ExtendExpression{Position: at(1), Source: orders, Columns: []ast.NamedExpression{
				{Name: "Next", Expression: binary(ast.OpAdd, ident("ID"), lit(1))},
			}},
			expected: "table{ID: System.Integer, Amount: System.Decimal, Shipped: System.Boolean, Next: System.Integer}",
		},
		{
			name:     "natural join",
			expr:     &ast.JoinExpression{Position: at(1), Kind: ast.LeftJoin, Left: orders, Right: orders},
			expected: "table{ID: System.Integer, Amount: System.Decimal, Shipped: System.Boolean}",
		},
		{
			name: "restrict a row",
			expr: &ast.RestrictExpression{
				Position:  at(1),
				Source:    &ast.RowSelector{Position: at(1), Columns: []ast.NamedExpression{{Name: "a", Expression: lit(1)}}},
				Condition: binary(ast.OpGreater, ident("a"), lit(0)),
			},
			expected: "table{a: System.Integer}",
		},
	}

	comp, _ := newTestCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, msgs := comp.CompileExpression(sql.NewEmptyContext(), tt.expr)
			require.False(t, msgs.HasErrors(), "%v", msgs.Items())
			require.Equal(t, tt.expected, node.Type().String())
		})
	}
}

func TestRedundantProjection(t *testing.T) {
	require := require.New(t)
	comp, _ := newTestCompiler(t)

	expr := &ast.ProjectExpression{Position: at(1), Source: ident("Orders"), Columns: []string{"Shipped", "ID", "Amount"}}
	_, msgs := comp.CompileExpression(sql.NewEmptyContext(), expr)
	require.False(msgs.HasErrors())
	require.Len(msgs.Warnings(), 1)
	require.True(sql.WarnRedundantConstruct.Is(msgs.Warnings()[0].Err))
}

type fakeParser struct {
	operators map[string]*ast.OperatorDeclaration
}

func (p *fakeParser) ParseExpression(text string) (ast.Expression, error) {
	return nil, fmt.Errorf("unexpected expression %q", text)
}

func (p *fakeParser) ParseOperator(text string) (*ast.OperatorDeclaration, error) {
	decl, ok := p.operators[text]
	if !ok {
		return nil, fmt.Errorf("unknown declaration %q", text)
	}
	return decl, nil
}

// brokenParser fails the way a buggy parser would, by panicking.
type brokenParser struct{}

func (brokenParser) ParseExpression(string) (ast.Expression, error) {
	panic("parser state corrupted")
}

func (brokenParser) ParseOperator(string) (*ast.OperatorDeclaration, error) {
	panic("parser state corrupted")
}

func operatorDecl(name, param string, body ast.Expression) *ast.OperatorDeclaration {
	return &ast.OperatorDeclaration{
		Position:   at(10),
		Name:       name,
		Parameters: []ast.Parameter{{Name: param, Type: named("System.Integer")}},
		ReturnType: named("System.Integer"),
		Body:       exprStmt(10, body),
	}
}

func TestRecompileDeferredOperator(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)
	integer := scalar(t, c, "System.Integer")

	op := sql.NewDeferredOperator("Lib.Double", sql.NewSignature(integer), integer)
	require.NoError(c.AddOperator(op))

	store := memory.NewDeclarationStore()
	require.NoError(store.PutDeclaration("Lib.Double", "double", nil))
	parser := &fakeParser{operators: map[string]*ast.OperatorDeclaration{
		"double": operatorDecl("Lib.Double", "n", binary(ast.OpAdd, ident("n"), ident("n"))),
	}}
	comp = comp.WithDeclarations(store, parser)

	call := &ast.CallExpression{Position: at(1), Name: "Double", Arguments: []ast.Expression{lit(2)}}
	node, msgs := comp.CompileExpression(sql.NewEmptyContext(), call)
	require.False(msgs.HasErrors(), "%v", msgs.Items())
	require.IsType(&plan.Call{}, node)

	require.False(op.IsDeferred())
	body, ok := op.Body().(plan.Node)
	require.True(ok)
	require.Equal(integer, body.Type())
}

func TestRecompileCircular(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)
	integer := scalar(t, c, "System.Integer")

	require.NoError(c.AddOperator(sql.NewDeferredOperator("Lib.Loop", sql.NewSignature(integer), integer)))
	store := memory.NewDeclarationStore()
	require.NoError(store.PutDeclaration("Lib.Loop", "loop", nil))
	parser := &fakeParser{operators: map[string]*ast.OperatorDeclaration{
		"loop": operatorDecl("Lib.Loop", "n", &ast.CallExpression{Position: at(10), Name: "Loop", Arguments: []ast.Expression{ident("n")}}),
	}}
	comp = comp.WithDeclarations(store, parser)

	call := &ast.CallExpression{Position: at(1), Name: "Loop", Arguments: []ast.Expression{lit(1)}}
	_, msgs := comp.CompileExpression(sql.NewEmptyContext(), call)
	errs := msgs.Errors()
	require.Len(errs, 1)
	require.True(sql.Is(sql.ErrCircularRecompile, errs[0].Err), "unexpected error %s", errs[0].Err)
}

func TestReinferDerivedReferences(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)

	def := &ast.RestrictExpression{Position: at(1), Source: ident("Orders"), Condition: ident("Shipped")}
	orders, _ := c.ResolveName(nil, "Sales.Orders", nil)
	view := sql.NewDerivedTableVar("Sales.Shipped", orders.(*sql.TableVar).Type, def)
	require.NoError(c.AddTableVar(view))

	node, msgs := comp.CompileExpression(sql.NewEmptyContext(), &ast.QualifierExpression{
		Position: at(1), Left: ident("Sales"), Right: ident("Shipped"),
	})
	require.False(msgs.HasErrors(), "%v", msgs.Items())
	require.IsType(&plan.TableVarReference{}, node)
	require.Equal([]string{"Sales.Orders"}, view.References())
	require.False(view.ShouldReinferReferences())
}

func TestPanicBecomesInternalError(t *testing.T) {
	require := require.New(t)
	comp, c := newTestCompiler(t)
	integer := scalar(t, c, "System.Integer")

	require.NoError(c.AddOperator(sql.NewDeferredOperator("Lib.Double", sql.NewSignature(integer), integer)))
	store := memory.NewDeclarationStore()
	require.NoError(store.PutDeclaration("Lib.Double", "double", nil))
	comp = comp.WithDeclarations(store, brokenParser{})

	call := &ast.CallExpression{Position: at(2), Name: "Double", Arguments: []ast.Expression{lit(2)}}
	node, msgs := comp.Compile(sql.NewEmptyContext(), block(
		exprStmt(2, call),
		exprStmt(3, lit(1)),
	))

	stmts := node.(*plan.Block).Statements
	require.Len(stmts, 2)
	require.IsType(&plan.NoOp{}, stmts[0])
	require.IsType(&plan.Literal{}, stmts[1])

	msg := requireError(t, msgs, sql.ErrInternal)
	require.Equal(2, msg.Line)
	require.Contains(msg.Err.Error(), "parser state corrupted")
}

func TestRecoveredError(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"error", fmt.Errorf("index out of range")},
		{"string", "index out of range"},
		{"other", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			err := recoveredError(exprStmt(7, lit(1)), tt.value)
			require.True(sql.Is(sql.ErrInternal, err), "unexpected error %s", err)
			ce, ok := err.(*sql.CompileError)
			require.True(ok)
			require.Equal(7, ce.Line)
		})
	}
}
