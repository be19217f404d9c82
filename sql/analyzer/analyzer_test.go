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

package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/go-relational-compiler/memory"
	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/planbuilder"
	"github.com/dolthub/go-relational-compiler/sql/transform"
)

const archiveDevice = "Archive"

func pos() ast.Position { return ast.At(1, 1) }

func ident(name string) *ast.IdentifierExpression {
	return &ast.IdentifierExpression{Position: pos(), Name: name}
}

func lit(v interface{}) *ast.ValueLiteral {
	return &ast.ValueLiteral{Position: pos(), Value: v}
}

func binary(op string, left, right ast.Expression) *ast.BinaryExpression {
	return &ast.BinaryExpression{Position: pos(), Operator: op, Left: left, Right: right}
}

func restrict(source, cond ast.Expression) *ast.RestrictExpression {
	return &ast.RestrictExpression{Position: pos(), Source: source, Condition: cond}
}

func project(source ast.Expression, columns ...string) *ast.ProjectExpression {
	return &ast.ProjectExpression{Position: pos(), Source: source, Columns: columns}
}

func join(kind ast.JoinKind, left, right, cond ast.Expression) *ast.JoinExpression {
	return &ast.JoinExpression{Position: pos(), Kind: kind, Left: left, Right: right, Condition: cond}
}

// newTestCatalog creates a system catalog with Sales.Orders on the memory
// device and Sales.Customers on an archive device that can only restrict.
func newTestCatalog(t *testing.T) *memory.Catalog {
	t.Helper()
	c := memory.NewSystemCatalog()
	typ := func(name string) *sql.ScalarType {
		st, ok := c.ScalarType(name)
		require.True(t, ok, "missing type %s", name)
		return st
	}

	orders := sql.NewTableType(
		sql.Column{Name: "ID", Type: typ("System.Integer")},
		sql.Column{Name: "Amount", Type: typ("System.Decimal")},
		sql.Column{Name: "Shipped", Type: typ("System.Boolean")},
	)
	customers := sql.NewTableType(
		sql.Column{Name: "CustID", Type: typ("System.Integer")},
		sql.Column{Name: "Name", Type: typ("System.String")},
	)
	c.AddDevice(memory.NewDevice(archiveDevice, "iRestrict"))
	require.NoError(t, c.AddTableVar(sql.NewTableVar("Sales.Orders", orders, memory.SystemDevice, []string{"ID"})))
	require.NoError(t, c.AddTableVar(sql.NewTableVar("Sales.Customers", customers, archiveDevice, []string{"CustID"})))
	return c
}

func compile(t *testing.T, c *memory.Catalog, expr ast.Expression) plan.Node {
	t.Helper()
	comp := planbuilder.NewCompiler(c, nil, nil, planbuilder.Options{})
	node, msgs := comp.CompileExpression(sql.NewEmptyContext(), expr)
	require.False(t, msgs.HasErrors(), "%v", msgs.Items())
	return node
}

func analyze(t *testing.T, a *Analyzer, n plan.Node) (plan.Node, *sql.Messages) {
	t.Helper()
	msgs := sql.NewMessages()
	return a.Analyze(sql.NewEmptyContext(), n, msgs), msgs
}

func TestPushRestrictionBelowProject(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	node := compile(t, c, restrict(project(ident("Orders"), "ID", "Shipped"), ident("Shipped")))

	result, msgs := analyze(t, NewDefault(c), node)
	require.Empty(msgs.Warnings())

	p, ok := result.(*plan.Project)
	require.True(ok, "unexpected plan %s", result)
	r, ok := p.Source.(*plan.Restrict)
	require.True(ok, "unexpected plan %s", result)
	require.IsType(&plan.TableVarReference{}, r.Source)

	ref, ok := r.Condition.(*plan.StackColumnReference)
	require.True(ok)
	require.Equal("Shipped", ref.Name)
	require.Equal(2, ref.Column)
	require.Equal(0, ref.Index)

	// The compiled tree is left untouched.
	require.IsType(&plan.Project{}, node.(*plan.Restrict).Source)
}

func TestPushRestrictionBelowRename(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	rename := &ast.RenameExpression{
		Position: pos(),
		Source:   ident("Orders"),
		Columns:  []ast.RenameColumn{{Old: "Shipped", New: "Done"}},
	}
	node := compile(t, c, restrict(rename, ident("Done")))

	result, _ := analyze(t, NewDefault(c), node)
	rn, ok := result.(*plan.Rename)
	require.True(ok, "unexpected plan %s", result)
	r := rn.Source.(*plan.Restrict)
	ref := r.Condition.(*plan.StackColumnReference)
	require.Equal("Shipped", ref.Name)
	require.Equal(2, ref.Column)
}

func TestRestrictionOnExtendedColumnStays(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	extend := &ast.ExtendExpression{
		Position: pos(),
		Source:   ident("Orders"),
		Columns: []ast.NamedExpression{
			{Name: "Double", Expression: binary(ast.OpMultiply, ident("Amount"), lit(2))},
		},
	}

	tests := []struct {
		name   string
		cond   ast.Expression
		pushed bool
	}{
		{"source column", ident("Shipped"), true},
		{"extended column", binary(ast.OpGreater, ident("Double"), lit(10)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := compile(t, c, restrict(extend, tt.cond))
			result, _ := analyze(t, NewDefault(c), node)
			if tt.pushed {
				require.IsType(&plan.Extend{}, result)
				require.IsType(&plan.Restrict{}, result.(*plan.Extend).Source)
			} else {
				require.IsType(&plan.Restrict{}, result)
			}
		})
	}
}

func TestPushRestrictionIntoJoin(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	on := binary(ast.OpEqual, ident("ID"), ident("CustID"))

	tests := []struct {
		name string
		kind ast.JoinKind
		cond ast.Expression
		side int
	}{
		{"inner left side", ast.InnerJoin, ident("Shipped"), 0},
		{"inner right side", ast.InnerJoin, binary(ast.OpEqual, ident("Name"), lit("ACME")), 1},
		{"left join keeps right side", ast.LeftJoin, binary(ast.OpEqual, ident("Name"), lit("ACME")), -1},
		{"right join keeps left side", ast.RightJoin, ident("Shipped"), -1},
		{"both sides", ast.InnerJoin, binary(ast.OpEqual, ident("ID"), ident("CustID")), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := compile(t, c, restrict(join(tt.kind, ident("Orders"), ident("Customers"), on), tt.cond))
			result, _ := analyze(t, NewDefault(c), node)
			if tt.side < 0 {
				require.IsType(&plan.Restrict{}, result)
				return
			}
			j, ok := result.(*plan.Join)
			require.True(ok, "unexpected plan %s", result)
			require.IsType(&plan.Restrict{}, j.Children()[tt.side])
			require.IsType(&plan.TableVarReference{}, j.Children()[1-tt.side])
		})
	}
}

func TestRemoveTrueRestriction(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	node := compile(t, c, restrict(ident("Orders"), lit(true)))

	result, msgs := analyze(t, NewDefault(c), node)
	require.IsType(&plan.TableVarReference{}, result)
	warnings := msgs.Warnings()
	require.Len(warnings, 1)
	require.True(sql.WarnRedundantConstruct.Is(warnings[0].Err))
}

func TestDevices(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)

	result, msgs := analyze(t, NewDefault(c), compile(t, c, restrict(ident("Orders"), ident("Shipped"))))
	require.Empty(msgs.Items())
	ann := result.Annotations()
	require.Equal([]string{memory.SystemDevice}, ann.PotentialDevices)
	require.Equal(memory.SystemDevice, ann.Device)
	require.True(ann.DeviceSupported)

	result, _ = analyze(t, NewDefault(c), compile(t, c, project(ident("Customers"), "Name")))
	ann = result.Annotations()
	require.Equal(archiveDevice, ann.Device)
	require.False(ann.DeviceSupported)

	on := binary(ast.OpEqual, ident("ID"), ident("CustID"))
	result, _ = analyze(t, NewDefault(c), compile(t, c, join(ast.InnerJoin, ident("Orders"), ident("Customers"), on)))
	ann = result.Annotations()
	require.Equal([]string{archiveDevice, memory.SystemDevice}, ann.PotentialDevices)
	require.Empty(ann.Device)
	j := result.(*plan.Join)
	require.Equal(memory.SystemDevice, j.Left.Annotations().Device)
	require.Equal(archiveDevice, j.Right.Annotations().Device)
}

func TestAccessPaths(t *testing.T) {
	c := newTestCatalog(t)
	tests := []struct {
		name string
		expr ast.Expression
		path plan.AccessPath
	}{
		{"key lookup", restrict(ident("Orders"), binary(ast.OpEqual, ident("ID"), lit(1))), plan.AccessKeyLookup},
		{"reversed key lookup", restrict(ident("Orders"), binary(ast.OpEqual, lit(1), ident("ID"))), plan.AccessKeyLookup},
		{
			"key lookup in conjunction",
			restrict(ident("Orders"), binary(ast.OpAnd, ident("Shipped"), binary(ast.OpEqual, ident("ID"), lit(1)))),
			plan.AccessKeyLookup,
		},
		{"filter", restrict(ident("Orders"), ident("Shipped")), plan.AccessFilter},
		{"non key equality", restrict(ident("Orders"), binary(ast.OpEqual, ident("Amount"), lit(1))), plan.AccessFilter},
		{"scan", project(ident("Orders"), "ID"), plan.AccessScan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _ := analyze(t, NewDefault(c), compile(t, c, tt.expr))
			require.Equal(t, tt.path, result.Annotations().AccessPath)
		})
	}
}

func TestTransactionJoin(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	on := binary(ast.OpEqual, ident("ID"), ident("CustID"))
	node := compile(t, c, join(ast.InnerJoin, ident("Orders"), ident("Customers"), on))

	// Read the orders through a transaction-local copy.
	node, _, err := transform.Node(node, func(n plan.Node) (plan.Node, transform.TreeIdentity, error) {
		r, ok := n.(*plan.TableVarReference)
		if !ok || r.TableVar.Name() != "Sales.Orders" {
			return n, transform.SameTree, nil
		}
		return plan.NewTableVarReference(r.Pos(), sql.NewATTableVar("Sales.Orders_AT", r.TableVar)), transform.NewTree, nil
	})
	require.NoError(err)

	result, _ := analyze(t, NewDefault(c), node)
	j := result.(*plan.Join)
	require.True(j.Annotations().IsTransactionJoin)
	require.False(j.Left.Annotations().IsLookup)
	require.True(j.Right.Annotations().IsLookup)

	result, _ = analyze(t, NewDefault(c), compile(t, c, join(ast.InnerJoin, ident("Orders"), ident("Customers"), on)))
	require.False(result.Annotations().IsTransactionJoin)
}

func TestSkipPass(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	node := compile(t, c, restrict(project(ident("Orders"), "ID", "Shipped"), ident("Shipped")))

	a := NewBuilder(c).SkipPass(normalizeRestrictionsId).Build()
	result, _ := analyze(t, a, node)
	require.IsType(&plan.Restrict{}, result)
	require.Equal(memory.SystemDevice, result.Annotations().Device)

	a = NewBuilder(c).SkipAll().Build()
	result, msgs := analyze(t, a, node)
	require.Same(node, result)
	require.Empty(msgs.Items())
}

func TestFailingPassKeepsPlan(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	node := compile(t, c, restrict(ident("Orders"), ident("Shipped")))

	tests := []struct {
		name string
		fn   RuleFunc
	}{
		{
			"error",
			func(*sql.Context, *Analyzer, plan.Node, *sql.Messages) (plan.Node, transform.TreeIdentity, error) {
				return nil, transform.SameTree, errors.New("boom")
			},
		},
		{
			"panic",
			func(*sql.Context, *Analyzer, plan.Node, *sql.Messages) (plan.Node, transform.TreeIdentity, error) {
				panic("boom")
			},
		},
		{
			"warnings of failed pass are dropped",
			func(_ *sql.Context, _ *Analyzer, n plan.Node, m *sql.Messages) (plan.Node, transform.TreeIdentity, error) {
				m.Warn(sql.WarnRedundantConstruct.New("test"), 1, 1)
				return nil, transform.SameTree, errors.New("boom")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewBuilder(c).AddPostRule(PostRuleId, tt.fn).Build()
			result, msgs := analyze(t, a, node)
			require.IsType(&plan.Restrict{}, result)
			require.Equal(plan.AccessFilter, result.Annotations().AccessPath)

			warnings := msgs.Warnings()
			require.Len(warnings, 1)
			require.True(sql.ErrOptimizerPass.Is(warnings[0].Err))
			require.False(msgs.HasErrors())
		})
	}
}

func TestUnknownDevice(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	orders, _ := c.ResolveName(sql.NewEmptyContext(), "Sales.Orders", nil)
	lost := sql.NewTableVar("Sales.Lost", orders.(*sql.TableVar).Type, "Nowhere", []string{"ID"})
	require.NoError(c.AddTableVar(lost))

	result, msgs := analyze(t, NewDefault(c), compile(t, c, restrict(ident("Lost"), ident("Shipped"))))
	warnings := msgs.Warnings()
	require.Len(warnings, 1)
	require.True(sql.ErrOptimizerPass.Is(warnings[0].Err))
	require.Contains(warnings[0].Err.Error(), "determineDevices")

	ann := result.Annotations()
	require.Equal([]string{"Nowhere"}, ann.PotentialDevices)
	require.Empty(ann.Device)
	require.Equal(plan.AccessFilter, ann.AccessPath)
}

func TestParseRuleId(t *testing.T) {
	require := require.New(t)
	for _, r := range DefaultRules() {
		id, ok := ParseRuleId(r.Id.String())
		require.True(ok)
		require.Equal(r.Id, id)
	}
	_, ok := ParseRuleId("resolveTables")
	require.False(ok)
}

func TestPassesInsideStatementScopes(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	integer, _ := c.ScalarType("System.Integer")

	// for each o in Orders do Customers where CustID = k, with k declared
	// in the enclosing block.
	stmt := &ast.Block{Position: pos(), Statements: []ast.Statement{
		&ast.VariableStatement{Position: pos(), Name: "k", Default: lit(1)},
		&ast.ForEachStatement{
			Position:   pos(),
			Variable:   "o",
			Expression: ident("Orders"),
			Body: &ast.ExpressionStatement{
				Position:   pos(),
				Expression: restrict(ident("Customers"), binary(ast.OpEqual, ident("CustID"), ident("k"))),
			},
		},
	}}
	comp := planbuilder.NewCompiler(c, nil, nil, planbuilder.Options{})
	node, msgs := comp.Compile(sql.NewEmptyContext(), stmt)
	require.False(msgs.HasErrors(), "%v", msgs.Items())

	result, msgs := analyze(t, NewDefault(c), node)
	require.Empty(msgs.Items())

	loop, ok := result.(*plan.Block).Statements[1].(*plan.ForEach)
	require.True(ok, "unexpected plan %s", result)
	require.Equal([]string{archiveDevice, memory.SystemDevice}, loop.Annotations().PotentialDevices)
	require.Empty(loop.Annotations().Device)

	r, ok := loop.Body.(*plan.Restrict)
	require.True(ok, "unexpected body %s", loop.Body)
	require.Equal(archiveDevice, r.Annotations().Device)
	require.True(r.Annotations().DeviceSupported)
	require.Equal(plan.AccessKeyLookup, r.Annotations().AccessPath)

	ref, ok := r.Condition.(*plan.Call).Args[1].(*plan.StackReference)
	require.True(ok)
	require.Equal(integer, ref.Type())
}
