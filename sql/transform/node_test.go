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

package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

var (
	integer = sql.NewScalarType("System.Integer", sql.NativeInteger)
	boolean = sql.NewScalarType("System.Boolean", sql.NativeBoolean)
	add     = sql.NewOperator("System.iAddition", sql.NewSignature(integer, integer), integer)
	equal   = sql.NewOperator("System.iEqual", sql.NewSignature(integer, integer), boolean)
)

func lit(v int64) *plan.Literal {
	return plan.NewLiteral(ast.Position{}, integer, v)
}

func sum(args ...plan.Node) *plan.Call {
	return plan.NewCall(ast.Position{}, add, args)
}

func literalValues(n plan.Node) []interface{} {
	var values []interface{}
	Inspect(n, func(n plan.Node) bool {
		if l, ok := n.(*plan.Literal); ok {
			values = append(values, l.Value)
		}
		return true
	})
	return values
}

func TestNode(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		name   string
		inp    plan.Node
		visit  NodeFunc
		values []interface{}
		same   TreeIdentity
	}{
		{
			name: "increment literals",
			inp:  sum(sum(lit(1), lit(2)), lit(3)),
			visit: func(n plan.Node) (plan.Node, TreeIdentity, error) {
				if l, ok := n.(*plan.Literal); ok {
					return lit(l.Value.(int64) + 1), NewTree, nil
				}
				return n, SameTree, nil
			},
			values: []interface{}{int64(2), int64(3), int64(4)},
			same:   NewTree,
		},
		{
			name: "fold inner call",
			inp:  sum(sum(lit(1), lit(2)), lit(3)),
			visit: func(n plan.Node) (plan.Node, TreeIdentity, error) {
				c, ok := n.(*plan.Call)
				if !ok || !allLiterals(c.Args) {
					return n, SameTree, nil
				}
				return lit(c.Args[0].(*plan.Literal).Value.(int64) + c.Args[1].(*plan.Literal).Value.(int64)), NewTree, nil
			},
			values: []interface{}{int64(6)},
			same:   NewTree,
		},
		{
			name: "unchanged",
			inp:  sum(lit(1), lit(2)),
			visit: func(n plan.Node) (plan.Node, TreeIdentity, error) {
				return n, SameTree, nil
			},
			values: []interface{}{int64(1), int64(2)},
			same:   SameTree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, same, err := Node(tt.inp, tt.visit)
			require.NoError(err)
			require.Equal(tt.same, same)
			require.Equal(tt.values, literalValues(res))
			if same {
				require.Same(tt.inp, res)
			}
		})
	}
}

func allLiterals(nodes []plan.Node) bool {
	for _, n := range nodes {
		if _, ok := n.(*plan.Literal); !ok {
			return false
		}
	}
	return true
}

func TestNodeKeepsInput(t *testing.T) {
	require := require.New(t)

	inp := sum(lit(1), lit(2))
	_, same, err := Node(inp, func(n plan.Node) (plan.Node, TreeIdentity, error) {
		if _, ok := n.(*plan.Literal); ok {
			return lit(0), NewTree, nil
		}
		return n, SameTree, nil
	})
	require.NoError(err)
	require.Equal(NewTree, same)
	require.Equal([]interface{}{int64(1), int64(2)}, literalValues(inp))
}

func TestNodeTopDown(t *testing.T) {
	require := require.New(t)

	var visited int
	res, same, err := NodeTopDown(sum(sum(lit(1), lit(2)), lit(3)), func(n plan.Node) (plan.Node, TreeIdentity, error) {
		visited++
		if c, ok := n.(*plan.Call); ok && c.Args[0].Kind() == plan.KindCall {
			return sum(lit(10), c.Args[1]), NewTree, nil
		}
		return n, SameTree, nil
	})
	require.NoError(err)
	require.Equal(NewTree, same)
	require.Equal([]interface{}{int64(10), int64(3)}, literalValues(res))
	require.Equal(3, visited)
}

func TestNodeError(t *testing.T) {
	require := require.New(t)

	boom := errors.New("boom")
	_, _, err := Node(sum(lit(1), lit(2)), func(n plan.Node) (plan.Node, TreeIdentity, error) {
		if _, ok := n.(*plan.Literal); ok {
			return nil, SameTree, boom
		}
		return n, SameTree, nil
	})
	require.Equal(boom, err)
}

func scopedTree() plan.Node {
	pos := ast.Position{}
	list := sql.NewListType(integer)
	x := plan.NewVariable(pos, "x", integer, false, lit(1))
	loop := plan.NewForEach(pos, "v", integer,
		plan.NewListSelector(pos, list, []plan.Node{lit(1), lit(2)}),
		plan.NewCall(pos, add, []plan.Node{
			plan.NewStackReference(pos, "v", 0, integer),
			plan.NewStackReference(pos, "x", 1, integer),
		}),
	)
	return plan.NewBlock(pos, []plan.Node{x, loop})
}

func TestNodeWithStack(t *testing.T) {
	require := require.New(t)

	stk := stack.New(stack.CollisionAmbiguous)
	visible := map[string][]string{}
	_, _, err := NodeWithStack(scopedTree(), stk, func(n plan.Node, stk *stack.Stack) (plan.Node, TreeIdentity, error) {
		switch n := n.(type) {
		case *plan.StackReference:
			visible[n.Name] = stk.VisibleNames()
			sym := stk.Peek(n.Index)
			require.NotNil(sym)
			require.Equal(n.Name, sym.Name)
		case *plan.Literal:
			if _, ok := visible["literal"]; !ok {
				visible["literal"] = stk.VisibleNames()
			}
		}
		return n, SameTree, nil
	})
	require.NoError(err)

	require.Equal([]string{"v", "x"}, visible["v"])
	require.Equal([]string{"v", "x"}, visible["x"])
	// The default of x is compiled in a window.
	require.Empty(visible["literal"])

	require.Equal(0, stk.Len())
	require.Equal(0, stk.FrameCount())
}

func TestNodeWithStackRowContext(t *testing.T) {
	require := require.New(t)

	pos := ast.Position{}
	orders := sql.NewTableVar("Sales.Orders", sql.NewTableType(
		sql.Column{Name: "ID", Type: integer},
		sql.Column{Name: "Amount", Type: integer},
	), "Memory")
	source := plan.NewTableVarReference(pos, orders)
	cond := plan.NewCall(pos, equal, []plan.Node{
		plan.NewStackColumnReference(pos, "ID", 0, 0, integer),
		lit(1),
	})
	restrict := plan.NewRestrict(pos, nil, source, cond)

	stk := stack.New(stack.CollisionAmbiguous)
	var names []string
	_, _, err := NodeWithStack(restrict, stk, func(n plan.Node, stk *stack.Stack) (plan.Node, TreeIdentity, error) {
		if _, ok := n.(*plan.StackColumnReference); ok {
			names = stk.VisibleNames()
		}
		return n, SameTree, nil
	})
	require.NoError(err)
	require.Equal([]string{"ID", "Amount"}, names)
	require.Equal(0, stk.Len())
}

func TestNodeWithStackBalancedOnError(t *testing.T) {
	require := require.New(t)

	boom := errors.New("boom")
	stk := stack.New(stack.CollisionAmbiguous)
	stk.Push(stack.NewSymbol("outer", integer))

	_, _, err := NodeWithStack(scopedTree(), stk, func(n plan.Node, stk *stack.Stack) (plan.Node, TreeIdentity, error) {
		if r, ok := n.(*plan.StackReference); ok && r.Name == "x" {
			return nil, SameTree, boom
		}
		return n, SameTree, nil
	})
	require.Equal(boom, err)
	require.Equal(1, stk.Len())
	require.Equal(0, stk.FrameCount())
}

func TestInspectWithStack(t *testing.T) {
	require := require.New(t)

	stk := stack.New(stack.CollisionAmbiguous)
	var depths []int
	InspectWithStack(scopedTree(), stk, func(n plan.Node, stk *stack.Stack) bool {
		if _, ok := n.(*plan.StackReference); ok {
			depths = append(depths, stk.Len())
		}
		return true
	})
	require.Equal([]int{2, 2}, depths)
	require.Equal(0, stk.Len())
}
