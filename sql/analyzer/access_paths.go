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

// determineAccessPaths annotates the relational nodes that read a table
// variable directly. A restriction whose equalities cover a key of the table
// variable becomes a key lookup.
func determineAccessPaths(ctx *sql.Context, a *Analyzer, n plan.Node, _ *sql.Messages) (plan.Node, transform.TreeIdentity, error) {
	span, ctx := ctx.Span("determine_access_paths")
	defer span.Finish()

	return transform.NodeWithStack(n, stack.New(stack.CollisionAmbiguous), func(n plan.Node, _ *stack.Stack) (plan.Node, transform.TreeIdentity, error) {
		if n.Annotations().AccessPath != plan.AccessUnknown {
			return n, transform.SameTree, nil
		}
		path := accessPath(n)
		if path == plan.AccessUnknown {
			return n, transform.SameTree, nil
		}
		nn, err := annotate(n)
		if err != nil {
			return nil, transform.SameTree, err
		}
		nn.Annotations().AccessPath = path
		a.Log("%s at %d:%d reads by %s", n.Kind(), n.Pos().Line, n.Pos().Column, path)
		return nn, transform.NewTree, nil
	})
}

func accessPath(n plan.Node) plan.AccessPath {
	switch n := n.(type) {
	case *plan.Restrict:
		ref, ok := n.Source.(*plan.TableVarReference)
		if !ok {
			return plan.AccessUnknown
		}
		if _, ok := ref.TableVar.HasKey(equalityColumns(n.Condition, rowOf(ref))); ok {
			return plan.AccessKeyLookup
		}
		return plan.AccessFilter
	case *plan.Project, *plan.Rename, *plan.Extend, *plan.Join:
		for _, c := range n.Children() {
			if _, ok := c.(*plan.TableVarReference); ok {
				return plan.AccessScan
			}
		}
	}
	return plan.AccessUnknown
}

// equalityColumns returns the columns of row that cond, a conjunction,
// compares for equality with values that do not depend on the row.
func equalityColumns(cond plan.Node, row *sql.RowType) []string {
	if row == nil {
		return nil
	}
	var names []string
	for _, c := range conjuncts(cond) {
		call, ok := c.(*plan.Call)
		if !ok || sql.Unqualified(call.Operator.Name()) != "iEqual" || len(call.Args) != 2 {
			continue
		}
		for i, arg := range call.Args {
			col, ok := unconverted(arg).(*plan.StackColumnReference)
			if !ok || col.Index != 0 {
				continue
			}
			other := call.Args[1-i]
			if !referencesRow(other, row) && other.Characteristics().IsDeterministic {
				names = append(names, row.Columns[col.Column].Name)
				break
			}
		}
	}
	return names
}

func conjuncts(n plan.Node) []plan.Node {
	call, ok := n.(*plan.Call)
	if !ok || sql.Unqualified(call.Operator.Name()) != "iAnd" {
		return []plan.Node{n}
	}
	var result []plan.Node
	for _, arg := range call.Args {
		result = append(result, conjuncts(arg)...)
	}
	return result
}

func unconverted(n plan.Node) plan.Node {
	for {
		c, ok := n.(*plan.Convert)
		if !ok {
			return n
		}
		n = c.Child
	}
}
