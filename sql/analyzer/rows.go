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
	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/stack"
	"github.com/dolthub/go-relational-compiler/sql/transform"
)

// errNotRebasable stops a rebase when a reference cannot be moved to the new
// row. It never leaves this package.
var errNotRebasable = sql.ErrInternal.New("reference cannot be rebased")

// rowStack returns a stack holding only the row context of row, the scope a
// row scoped child was compiled in, minus the enclosing symbols.
func rowStack(row *sql.RowType) *stack.Stack {
	stk := stack.New(stack.CollisionAmbiguous)
	stk.Push(stack.NewRowContext(row))
	return stk
}

// isRowReference reports whether a reference at the given index designates
// the bottom row of stk. References above it belong to inner scopes and
// references below it to enclosing ones.
func isRowReference(index int, stk *stack.Stack) bool {
	return index == stk.Len()-1
}

// rowColumns returns the names of the columns of row referenced by n, which
// was compiled with row innermost. whole is true when n references the row
// itself rather than its columns.
func rowColumns(n plan.Node, row *sql.RowType) (names []string, whole bool) {
	transform.InspectWithStack(n, rowStack(row), func(n plan.Node, stk *stack.Stack) bool {
		switch n := n.(type) {
		case *plan.StackColumnReference:
			if isRowReference(n.Index, stk) {
				names = append(names, row.Columns[n.Column].Name)
			}
		case *plan.StackReference:
			if isRowReference(n.Index, stk) {
				whole = true
			}
		}
		return true
	})
	return names, whole
}

// referencesRow reports whether n depends on the innermost row.
func referencesRow(n plan.Node, row *sql.RowType) bool {
	names, whole := rowColumns(n, row)
	return whole || len(names) > 0
}

// rebase rewrites the references n makes to the columns of from so that
// they address the columns of to. rename maps a column name of from to the
// name of the same column in to.
func rebase(n plan.Node, from, to *sql.RowType, rename func(string) string) (plan.Node, error) {
	result, _, err := transform.NodeWithStack(n, rowStack(from), func(n plan.Node, stk *stack.Stack) (plan.Node, transform.TreeIdentity, error) {
		switch n := n.(type) {
		case *plan.StackColumnReference:
			if !isRowReference(n.Index, stk) {
				return n, transform.SameTree, nil
			}
			old := from.Columns[n.Column]
			idx := to.Columns.IndexOf(rename(old.Name))
			if idx < 0 || !to.Columns[idx].Type.Equals(old.Type) {
				return nil, transform.SameTree, errNotRebasable
			}
			if idx == n.Column && to.Columns[idx].Name == n.Name {
				return n, transform.SameTree, nil
			}
			return plan.NewStackColumnReference(n.Pos(), to.Columns[idx].Name, n.Index, idx, n.Type()), transform.NewTree, nil
		case *plan.StackReference:
			if isRowReference(n.Index, stk) {
				return nil, transform.SameTree, errNotRebasable
			}
		}
		return n, transform.SameTree, nil
	})
	return result, err
}

func sameName(name string) string { return name }

func rowOf(n plan.Node) *sql.RowType {
	if n == nil || n.Type() == nil {
		return nil
	}
	row, _ := sql.RowOf(n.Type())
	return row
}
