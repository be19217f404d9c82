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

var joinOperators = map[ast.JoinKind]string{
	ast.InnerJoin: "iJoin",
	ast.LeftJoin:  "iLeftJoin",
	ast.RightJoin: "iRightJoin",
}

// relationRow returns the row type of a relational operand. Lists of rows
// are accepted; they become tables when an operator requires one.
func (b *Builder) relationRow(n ast.Node, source plan.Node) *sql.RowType {
	if row, ok := sql.RowOf(source.Type()); ok {
		return row
	}
	if l, ok := source.Type().(*sql.ListType); ok {
		if row, ok := l.Element.(*sql.RowType); ok {
			return row
		}
	}
	b.handleErr(n, sql.ErrTypeMismatch.New("a relation", describeType(source.Type())))
	return nil
}

// withRows compiles f with the columns of the given rows in scope, the last
// row innermost.
func (b *Builder) withRows(f func() plan.Node, rows ...*sql.RowType) plan.Node {
	guard := b.stack.PushFrame()
	defer guard.Release()
	for _, row := range rows {
		b.stack.Push(stack.NewRowContext(row))
	}
	return f()
}

// resolveRelational resolves a relational operator. When no overload takes
// the operands as they are, rows and lists of rows are wrapped in table
// selectors and the resolution is retried.
func (b *Builder) resolveRelational(n ast.Node, name string, args ...plan.Node) (*resolve.Match, []plan.Node) {
	m, err := b.resolveOperator(name, args)
	if err != nil && sql.Is(sql.ErrNoOperatorMatch, err) {
		if wrapped, ok := wrapRelations(n, args); ok {
			if wm, werr := b.resolveOperator(name, wrapped); werr == nil {
				m, err, args = wm, nil, wrapped
			}
		}
	}
	if err != nil {
		b.handleErr(n, err)
	}
	return m, b.bindArguments(n, m, args)
}

func wrapRelations(n ast.Node, args []plan.Node) ([]plan.Node, bool) {
	wrapped := make([]plan.Node, len(args))
	changed := false
	for i, arg := range args {
		wrapped[i] = arg
		switch t := arg.Type().(type) {
		case *sql.RowType:
			if t.Generic {
				continue
			}
			wrapped[i] = plan.NewTableSelector(n.Pos(), sql.NewTableType(t.Columns...), []plan.Node{arg})
			changed = true
		case *sql.ListType:
			row, ok := t.Element.(*sql.RowType)
			list, isSelector := arg.(*plan.ListSelector)
			if !ok || !isSelector {
				continue
			}
			wrapped[i] = plan.NewTableSelector(n.Pos(), sql.NewTableType(row.Columns...), list.Elements)
			changed = true
		}
	}
	return wrapped, changed
}

func (b *Builder) buildRestrict(v *ast.RestrictExpression) plan.Node {
	source := b.buildExpr(v.Source)
	row := b.relationRow(v.Source, source)
	cond := b.withRows(func() plan.Node { return b.condition(v.Condition) }, row)

	m, args := b.resolveRelational(v, "iRestrict", source, cond)
	return plan.NewRestrict(v.Pos(), m.Operator, args[0], args[1])
}

// selectColumns returns the columns of row with the given names, in the
// order given.
func (b *Builder) selectColumns(n ast.Node, row *sql.RowType, names []string) sql.Columns {
	columns := make(sql.Columns, len(names))
	for i, name := range names {
		idx := row.Columns.IndexOf(name)
		if idx < 0 {
			b.handleErr(n, sql.ErrUnknownColumn.New(row, name))
		}
		if dup := columns[:i].IndexOf(name); dup >= 0 {
			b.handleErr(n, sql.ErrDuplicateIdentifier.New(name, []string{columns[dup].Name}))
		}
		columns[i] = row.Columns[idx]
	}
	return columns
}

func (b *Builder) buildProject(v *ast.ProjectExpression) plan.Node {
	source := b.buildExpr(v.Source)
	row := b.relationRow(v.Source, source)
	columns := b.selectColumns(v, row, v.Columns)
	if len(columns) == len(row.Columns) {
		b.warn(v, sql.WarnRedundantConstruct.New("projection over every column"))
	}

	m, args := b.resolveRelational(v, "iProject", source)
	return plan.NewProject(v.Pos(), m.Operator, sql.NewTableType(columns...), args[0], columns.Names())
}

// buildRemove compiles a remove as a projection over the columns that are
// kept.
func (b *Builder) buildRemove(v *ast.RemoveExpression) plan.Node {
	source := b.buildExpr(v.Source)
	row := b.relationRow(v.Source, source)
	removed := b.selectColumns(v, row, v.Columns)

	var kept sql.Columns
	for _, col := range row.Columns {
		if removed.IndexOf(col.Name) < 0 {
			kept = append(kept, col)
		}
	}
	if len(removed) == 0 {
		b.warn(v, sql.WarnRedundantConstruct.New("remove without columns"))
	}

	m, args := b.resolveRelational(v, "iRemove", source)
	return plan.NewProject(v.Pos(), m.Operator, sql.NewTableType(kept...), args[0], kept.Names())
}

func (b *Builder) buildRename(v *ast.RenameExpression) plan.Node {
	source := b.buildExpr(v.Source)
	row := b.relationRow(v.Source, source)

	columns := make(sql.Columns, len(row.Columns))
	copy(columns, row.Columns)
	renames := make([]plan.RenameColumn, len(v.Columns))
	for i, r := range v.Columns {
		idx := columns.IndexOf(r.Old)
		if idx < 0 {
			b.handleErr(v, sql.ErrUnknownColumn.New(row, r.Old))
		}
		if other := columns.IndexOf(r.New); other >= 0 && other != idx {
			b.handleErr(v, sql.ErrDuplicateIdentifier.New(r.New, []string{columns[other].Name}))
		}
		renames[i] = plan.RenameColumn{Old: columns[idx].Name, New: r.New}
		columns[idx] = sql.Column{Name: r.New, Type: columns[idx].Type}
	}

	m, args := b.resolveRelational(v, "iRename", source)
	return plan.NewRename(v.Pos(), m.Operator, sql.NewTableType(columns...), args[0], renames)
}

func (b *Builder) buildExtend(v *ast.ExtendExpression) plan.Node {
	source := b.buildExpr(v.Source)
	row := b.relationRow(v.Source, source)

	columns := make(sql.Columns, len(row.Columns), len(row.Columns)+len(v.Columns))
	copy(columns, row.Columns)
	names := make([]string, len(v.Columns))
	values := make([]plan.Node, len(v.Columns))
	for i, c := range v.Columns {
		if idx := columns.IndexOf(c.Name); idx >= 0 {
			b.handleErr(v, sql.ErrDuplicateIdentifier.New(c.Name, []string{columns[idx].Name}))
		}
		values[i] = b.withRows(func() plan.Node { return b.buildExpr(c.Expression) }, row)
		if values[i].Type() == nil {
			b.handleErr(c.Expression, sql.ErrTypeMismatch.New("a value", "an operator call without a result"))
		}
		names[i] = c.Name
		columns = append(columns, sql.Column{Name: c.Name, Type: values[i].Type()})
	}

	m, args := b.resolveRelational(v, "iExtend", source)
	return plan.NewExtend(v.Pos(), m.Operator, sql.NewTableType(columns...), args[0], names, values)
}

func (b *Builder) buildJoin(v *ast.JoinExpression) plan.Node {
	left := b.buildExpr(v.Left)
	right := b.buildExpr(v.Right)
	lrow := b.relationRow(v.Left, left)
	rrow := b.relationRow(v.Right, right)
	name := joinOperators[v.Kind]

	if v.Condition == nil {
		columns := b.naturalJoinColumns(v, lrow, rrow)
		m, args := b.resolveRelational(v, name, left, right)
		return plan.NewJoin(v.Pos(), m.Operator, v.Kind, sql.NewTableType(columns...), args[0], args[1], nil)
	}

	columns := make(sql.Columns, 0, len(lrow.Columns)+len(rrow.Columns))
	columns = append(columns, lrow.Columns...)
	for _, col := range rrow.Columns {
		if idx := lrow.Columns.IndexOf(col.Name); idx >= 0 {
			b.handleErr(v, sql.ErrDuplicateIdentifier.New(col.Name, []string{lrow.Columns[idx].Name}))
		}
		columns = append(columns, col)
	}
	cond := b.withRows(func() plan.Node { return b.condition(v.Condition) }, lrow, rrow)

	m, args := b.resolveRelational(v, name, left, right, cond)
	return plan.NewJoin(v.Pos(), m.Operator, v.Kind, sql.NewTableType(columns...), args[0], args[1], args[2])
}

// naturalJoinColumns merges the columns of both sides. Shared columns
// appear once and must have the same type.
func (b *Builder) naturalJoinColumns(n ast.Node, left, right *sql.RowType) sql.Columns {
	columns := make(sql.Columns, 0, len(left.Columns)+len(right.Columns))
	columns = append(columns, left.Columns...)
	for _, col := range right.Columns {
		idx := left.Columns.IndexOf(col.Name)
		if idx < 0 {
			columns = append(columns, col)
			continue
		}
		lt := left.Columns[idx].Type
		if !lt.Is(col.Type) && !col.Type.Is(lt) {
			b.handleErr(n, sql.ErrTypeMismatch.New(lt, fmt.Sprintf("%s for column %q", col.Type, col.Name)))
		}
	}
	return columns
}
