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
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/stack"
	"github.com/dolthub/go-relational-compiler/sql/transform"
)

// normalizeRestrictions moves restrictions below the projections, renames,
// extensions and joins they sit on, so that they apply as close to the table
// variables as possible. Restrictions whose condition is the literal true are
// removed.
func normalizeRestrictions(ctx *sql.Context, a *Analyzer, n plan.Node, messages *sql.Messages) (plan.Node, transform.TreeIdentity, error) {
	span, ctx := ctx.Span("normalize_restrictions")
	defer span.Finish()

	return transform.NodeWithStack(n, stack.New(stack.CollisionAmbiguous), func(n plan.Node, _ *stack.Stack) (plan.Node, transform.TreeIdentity, error) {
		r, ok := n.(*plan.Restrict)
		if !ok {
			return n, transform.SameTree, nil
		}
		if isLiteralTrue(r.Condition) {
			pos := r.Pos()
			messages.Warn(sql.WarnRedundantConstruct.New("restriction that always holds"), pos.Line, pos.Column)
			a.Log("removing restriction on literal true")
			return r.Source, transform.NewTree, nil
		}
		if !r.Condition.Characteristics().IsDeterministic {
			return n, transform.SameTree, nil
		}
		pushed, err := pushRestriction(r)
		if err != nil {
			return nil, transform.SameTree, err
		}
		if pushed == nil {
			return n, transform.SameTree, nil
		}
		a.Log("pushed restriction below %s", r.Source.Kind())
		return pushed, transform.NewTree, nil
	})
}

func isLiteralTrue(n plan.Node) bool {
	l, ok := n.(*plan.Literal)
	if !ok {
		return false
	}
	v, ok := l.Value.(bool)
	return ok && v
}

// pushRestriction returns the tree with r moved below its source, or nil
// when it cannot move.
func pushRestriction(r *plan.Restrict) (plan.Node, error) {
	row := rowOf(r.Source)
	if row == nil {
		return nil, nil
	}

	switch src := r.Source.(type) {
	case *plan.Project:
		return below(r, src, 0, row, sameName)
	case *plan.Rename:
		return below(r, src, 0, row, src.OldName)
	case *plan.Extend:
		names, whole := rowColumns(r.Condition, row)
		if whole {
			return nil, nil
		}
		for _, name := range names {
			for _, ext := range src.Names {
				if name == ext {
					return nil, nil
				}
			}
		}
		return below(r, src, 0, row, sameName)
	case *plan.Join:
		return intoJoin(r, src, row)
	}
	return nil, nil
}

// below rebuilds parent over a restriction of its child i. The condition
// must only use columns of the parent row that the child also has.
func below(r *plan.Restrict, parent plan.Node, i int, row *sql.RowType, rename func(string) string) (plan.Node, error) {
	children := parent.Children()
	source := children[i]
	srcRow := rowOf(source)
	if srcRow == nil {
		return nil, nil
	}
	cond, err := rebase(r.Condition, row, srcRow, rename)
	if err == errNotRebasable {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	newChildren := make([]plan.Node, len(children))
	copy(newChildren, children)
	newChildren[i] = plan.NewRestrict(r.Pos(), r.Operator, source, cond)
	return parent.WithChildren(newChildren...)
}

// intoJoin moves r to the side of j that has every column the condition
// uses. Inner joins accept both sides; outer joins only the side whose rows
// are all kept.
func intoJoin(r *plan.Restrict, j *plan.Join, row *sql.RowType) (plan.Node, error) {
	names, whole := rowColumns(r.Condition, row)
	if whole || len(names) == 0 {
		return nil, nil
	}

	if j.JoinKind != ast.RightJoin && covers(rowOf(j.Left), names) {
		return below(r, j, 0, row, sameName)
	}
	if j.JoinKind != ast.LeftJoin && covers(rowOf(j.Right), names) {
		return below(r, j, 1, row, sameName)
	}
	return nil, nil
}

func covers(row *sql.RowType, names []string) bool {
	if row == nil {
		return false
	}
	for _, name := range names {
		if row.Columns.IndexOf(name) < 0 {
			return false
		}
	}
	return true
}
