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

package plan

import (
	"fmt"
	"strings"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

func relationalHeader(name string, n Node, detail string) string {
	var sb strings.Builder
	sb.WriteString(name)
	if detail != "" {
		fmt.Fprintf(&sb, "(%s)", detail)
	}
	a := n.Annotations()
	if a.Device != "" {
		fmt.Fprintf(&sb, " on %s", a.Device)
	}
	if a.AccessPath != AccessUnknown {
		fmt.Fprintf(&sb, " [%s]", a.AccessPath)
	}
	return sb.String()
}

// Restrict keeps the rows of its source for which the condition holds. The
// condition is compiled with the source row in scope.
type Restrict struct {
	base
	Operator  *sql.Operator
	Source    Node
	Condition Node
}

var _ Node = (*Restrict)(nil)
var _ Scoped = (*Restrict)(nil)

// NewRestrict creates a new *Restrict node.
func NewRestrict(pos ast.Position, op *sql.Operator, source, cond Node) *Restrict {
	return &Restrict{base: newBase(source.Type(), pos, source, cond), Operator: op, Source: source, Condition: cond}
}

func (r *Restrict) Kind() Kind       { return KindRestrict }
func (r *Restrict) Children() []Node { return []Node{r.Source, r.Condition} }

func (r *Restrict) String() string {
	return printChildren(relationalHeader("Restrict", r, ""), r.Source, r.Condition)
}

// WithChildren implements the Node interface.
func (r *Restrict) WithChildren(children ...Node) (Node, error) {
	if len(children) != 2 {
		return nil, sql.ErrInvalidChildrenNumber.New(r, len(children), 2)
	}
	nr := *r
	nr.Source, nr.Condition = children[0], children[1]
	nr.typ = nr.Source.Type()
	return &nr, nil
}

// ChildScope implements the Scoped interface.
func (r *Restrict) ChildScope(i int) []*stack.Symbol {
	if i == 1 {
		return nonNilSymbols(RowContext(r.Source))
	}
	return nil
}

// Project keeps the named columns of its source. Remove compiles to a
// Project over the remaining columns.
type Project struct {
	base
	Operator *sql.Operator
	Source   Node
	Columns  []string
}

var _ Node = (*Project)(nil)

// NewProject creates a new *Project node with the given result type.
func NewProject(pos ast.Position, op *sql.Operator, typ sql.Type, source Node, columns []string) *Project {
	return &Project{base: newBase(typ, pos, source), Operator: op, Source: source, Columns: columns}
}

func (p *Project) Kind() Kind       { return KindProject }
func (p *Project) Children() []Node { return []Node{p.Source} }

func (p *Project) String() string {
	return printChildren(relationalHeader("Project", p, joinNames(p.Columns)), p.Source)
}

// WithChildren implements the Node interface.
func (p *Project) WithChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(p, len(children), 1)
	}
	np := *p
	np.Source = children[0]
	return &np, nil
}

// RenameColumn renames a single column.
type RenameColumn struct {
	Old string
	New string
}

// Rename renames columns of its source.
type Rename struct {
	base
	Operator *sql.Operator
	Source   Node
	Columns  []RenameColumn
}

var _ Node = (*Rename)(nil)

// NewRename creates a new *Rename node with the given result type.
func NewRename(pos ast.Position, op *sql.Operator, typ sql.Type, source Node, columns []RenameColumn) *Rename {
	return &Rename{base: newBase(typ, pos, source), Operator: op, Source: source, Columns: columns}
}

func (r *Rename) Kind() Kind       { return KindRename }
func (r *Rename) Children() []Node { return []Node{r.Source} }

func (r *Rename) String() string {
	parts := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		parts[i] = c.Old + " as " + c.New
	}
	return printChildren(relationalHeader("Rename", r, joinNames(parts)), r.Source)
}

// WithChildren implements the Node interface.
func (r *Rename) WithChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(r, len(children), 1)
	}
	nr := *r
	nr.Source = children[0]
	return &nr, nil
}

// NewName returns the name a source column has after the rename.
func (r *Rename) NewName(old string) string {
	for _, c := range r.Columns {
		if c.Old == old {
			return c.New
		}
	}
	return old
}

// OldName returns the source column a result column was renamed from.
func (r *Rename) OldName(name string) string {
	for _, c := range r.Columns {
		if c.New == name {
			return c.Old
		}
	}
	return name
}

// Extend adds computed columns to its source. The column values are
// compiled with the source row in scope.
type Extend struct {
	base
	Operator *sql.Operator
	Source   Node
	Names    []string
	Values   []Node
}

var _ Node = (*Extend)(nil)
var _ Scoped = (*Extend)(nil)

// NewExtend creates a new *Extend node with the given result type.
func NewExtend(pos ast.Position, op *sql.Operator, typ sql.Type, source Node, names []string, values []Node) *Extend {
	return &Extend{
		base:     newBase(typ, pos, append([]Node{source}, values...)...),
		Operator: op,
		Source:   source,
		Names:    names,
		Values:   values,
	}
}

func (e *Extend) Kind() Kind       { return KindExtend }
func (e *Extend) Children() []Node { return append([]Node{e.Source}, e.Values...) }

func (e *Extend) String() string {
	return printChildren(relationalHeader("Extend", e, joinNames(e.Names)), e.Children()...)
}

// WithChildren implements the Node interface.
func (e *Extend) WithChildren(children ...Node) (Node, error) {
	if len(children) != len(e.Values)+1 {
		return nil, sql.ErrInvalidChildrenNumber.New(e, len(children), len(e.Values)+1)
	}
	ne := *e
	ne.Source = children[0]
	ne.Values = children[1:]
	return &ne, nil
}

// ChildScope implements the Scoped interface.
func (e *Extend) ChildScope(i int) []*stack.Symbol {
	if i > 0 {
		return nonNilSymbols(RowContext(e.Source))
	}
	return nil
}

// Join combines the rows of two relations. A nil condition joins on the
// columns both sides share.
type Join struct {
	base
	Operator  *sql.Operator
	JoinKind  ast.JoinKind
	Left      Node
	Right     Node
	Condition Node
}

var _ Node = (*Join)(nil)
var _ Scoped = (*Join)(nil)

// NewJoin creates a new *Join node with the given result type.
func NewJoin(pos ast.Position, op *sql.Operator, kind ast.JoinKind, typ sql.Type, left, right, cond Node) *Join {
	j := &Join{base: newBase(typ, pos, left, right, cond), Operator: op, JoinKind: kind, Left: left, Right: right, Condition: cond}
	if kind != ast.InnerJoin {
		j.chars.IsNilable = true
	}
	return j
}

func (j *Join) Kind() Kind       { return KindJoin }
func (j *Join) Children() []Node { return nonNil(j.Left, j.Right, j.Condition) }

// IsNatural reports whether the join has no explicit condition.
func (j *Join) IsNatural() bool { return j.Condition == nil }

func (j *Join) String() string {
	detail := j.JoinKind.String()
	if j.IsNatural() {
		detail = "natural " + detail
	}
	if j.annotations.IsTransactionJoin {
		detail += ", transaction"
	}
	return printChildren(relationalHeader("Join", j, detail), j.Children()...)
}

// WithChildren implements the Node interface.
func (j *Join) WithChildren(children ...Node) (Node, error) {
	expected := len(j.Children())
	if len(children) != expected {
		return nil, sql.ErrInvalidChildrenNumber.New(j, len(children), expected)
	}
	nj := *j
	nj.Left, nj.Right = children[0], children[1]
	if expected == 3 {
		nj.Condition = children[2]
	}
	return &nj, nil
}

// ChildScope implements the Scoped interface. The condition sees the left
// row below the right row.
func (j *Join) ChildScope(i int) []*stack.Symbol {
	if i == 2 {
		return nonNilSymbols(RowContext(j.Left), RowContext(j.Right))
	}
	return nil
}

func nonNilSymbols(symbols ...*stack.Symbol) []*stack.Symbol {
	result := make([]*stack.Symbol, 0, len(symbols))
	for _, s := range symbols {
		if s != nil {
			result = append(result, s)
		}
	}
	return result
}
