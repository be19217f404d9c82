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

// prepareTransactionJoins marks joins between a side that only reads
// transaction-local table variables and a side that only reads global ones.
// The global side is read by lookup, so that the transaction copies only
// the rows the join touches.
func prepareTransactionJoins(ctx *sql.Context, a *Analyzer, n plan.Node, _ *sql.Messages) (plan.Node, transform.TreeIdentity, error) {
	span, ctx := ctx.Span("prepare_transaction_joins")
	defer span.Finish()

	return transform.NodeWithStack(n, stack.New(stack.CollisionAmbiguous), func(n plan.Node, _ *stack.Stack) (plan.Node, transform.TreeIdentity, error) {
		j, ok := n.(*plan.Join)
		if !ok || j.Annotations().IsTransactionJoin {
			return n, transform.SameTree, nil
		}

		left, right := tableVars(j.Left), tableVars(j.Right)
		var lookup int
		switch {
		case allAT(left, true) && allAT(right, false):
			lookup = 1
		case allAT(left, false) && allAT(right, true):
			lookup = 0
		default:
			return n, transform.SameTree, nil
		}

		children := j.Children()
		side, err := annotate(children[lookup])
		if err != nil {
			return nil, transform.SameTree, err
		}
		side.Annotations().IsLookup = true
		children[lookup] = side

		nj, err := j.WithChildren(children...)
		if err != nil {
			return nil, transform.SameTree, err
		}
		nj.Annotations().IsTransactionJoin = true
		a.Log("join at %d:%d crosses the transaction overlay", j.Pos().Line, j.Pos().Column)
		return nj, transform.NewTree, nil
	})
}

// tableVars returns the table variables read by n.
func tableVars(n plan.Node) []*sql.TableVar {
	var result []*sql.TableVar
	transform.Inspect(n, func(n plan.Node) bool {
		if r, ok := n.(*plan.TableVarReference); ok {
			result = append(result, r.TableVar)
		}
		return true
	})
	return result
}

// allAT reports whether tvs is not empty and every table variable in it is
// transaction-local, or every one global when at is false.
func allAT(tvs []*sql.TableVar, at bool) bool {
	if len(tvs) == 0 {
		return false
	}
	for _, tv := range tvs {
		if tv.IsATObject() != at {
			return false
		}
	}
	return true
}
