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

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/conversion"
)

// Literal is a constant value.
type Literal struct {
	base
	Value interface{}
}

var _ Node = (*Literal)(nil)

// NewLiteral creates a new *Literal node. A nil value is the nil literal.
func NewLiteral(pos ast.Position, typ sql.Type, value interface{}) *Literal {
	l := &Literal{base: newBase(typ, pos), Value: value}
	l.chars.IsLiteral = true
	l.chars.IsNilable = value == nil
	return l
}

func (l *Literal) Kind() Kind       { return KindLiteral }
func (l *Literal) Children() []Node { return nil }

func (l *Literal) String() string {
	if l.Value == nil {
		return "nil\n"
	}
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q: %s\n", s, l.typ)
	}
	return fmt.Sprintf("%v: %s\n", l.Value, l.typ)
}

// WithChildren implements the Node interface.
func (l *Literal) WithChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(l, len(children), 0)
	}
	nl := *l
	return &nl, nil
}

// StackReference reads a symbol from the stack. Index is the distance from
// the top of the stack at the point of reference.
type StackReference struct {
	base
	Name  string
	Index int
}

var _ Node = (*StackReference)(nil)

// NewStackReference creates a new *StackReference node.
func NewStackReference(pos ast.Position, name string, index int, typ sql.Type) *StackReference {
	r := &StackReference{base: newBase(typ, pos), Name: name, Index: index}
	r.chars.IsNilable = true
	return r
}

func (r *StackReference) Kind() Kind       { return KindStackReference }
func (r *StackReference) Children() []Node { return nil }
func (r *StackReference) String() string   { return fmt.Sprintf("%s[%d]: %s\n", r.Name, r.Index, r.typ) }

// WithChildren implements the Node interface.
func (r *StackReference) WithChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(r, len(children), 0)
	}
	nr := *r
	return &nr, nil
}

// StackColumnReference reads a column of a row symbol on the stack.
type StackColumnReference struct {
	base
	Name   string
	Index  int
	Column int
}

var _ Node = (*StackColumnReference)(nil)

// NewStackColumnReference creates a new *StackColumnReference node.
func NewStackColumnReference(pos ast.Position, name string, index, column int, typ sql.Type) *StackColumnReference {
	r := &StackColumnReference{base: newBase(typ, pos), Name: name, Index: index, Column: column}
	r.chars.IsNilable = true
	return r
}

func (r *StackColumnReference) Kind() Kind       { return KindStackColumnReference }
func (r *StackColumnReference) Children() []Node { return nil }

func (r *StackColumnReference) String() string {
	return fmt.Sprintf("%s[%d.%d]: %s\n", r.Name, r.Index, r.Column, r.typ)
}

// WithChildren implements the Node interface.
func (r *StackColumnReference) WithChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(r, len(children), 0)
	}
	nr := *r
	return &nr, nil
}

// ColumnExtractor reads a column from a row valued expression.
type ColumnExtractor struct {
	base
	Column string
	Index  int
	Row    Node
}

var _ Node = (*ColumnExtractor)(nil)

// NewColumnExtractor creates a new *ColumnExtractor node.
func NewColumnExtractor(pos ast.Position, row Node, column string, index int, typ sql.Type) *ColumnExtractor {
	c := &ColumnExtractor{base: newBase(typ, pos, row), Column: column, Index: index, Row: row}
	c.chars.IsNilable = true
	return c
}

func (c *ColumnExtractor) Kind() Kind       { return KindColumnExtractor }
func (c *ColumnExtractor) Children() []Node { return []Node{c.Row} }

func (c *ColumnExtractor) String() string {
	return printChildren(fmt.Sprintf("Column %s: %s", c.Column, c.typ), c.Row)
}

// WithChildren implements the Node interface.
func (c *ColumnExtractor) WithChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), 1)
	}
	nc := *c
	nc.Row = children[0]
	return &nc, nil
}

// TableVarReference reads a table variable.
type TableVarReference struct {
	base
	TableVar *sql.TableVar
}

var _ Node = (*TableVarReference)(nil)

// NewTableVarReference creates a new *TableVarReference node.
func NewTableVarReference(pos ast.Position, tv *sql.TableVar) *TableVarReference {
	r := &TableVarReference{base: newBase(tv.Type, pos), TableVar: tv}
	r.chars.IsRepeatable = false
	return r
}

func (r *TableVarReference) Kind() Kind       { return KindTableVarReference }
func (r *TableVarReference) Children() []Node { return nil }
func (r *TableVarReference) String() string   { return fmt.Sprintf("TableVar(%s)\n", r.TableVar.Name()) }

// WithChildren implements the Node interface.
func (r *TableVarReference) WithChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(r, len(children), 0)
	}
	nr := *r
	return &nr, nil
}

// Call invokes an operator.
type Call struct {
	base
	Operator *sql.Operator
	Args     []Node
}

var _ Node = (*Call)(nil)

// NewCall creates a new *Call node. Its characteristics combine those of the
// operator and of the arguments; a call of a deterministic operator over
// literals is itself literal.
func NewCall(pos ast.Position, op *sql.Operator, args []Node) *Call {
	c := &Call{base: newBase(op.ReturnType, pos, args...), Operator: op, Args: args}
	oc := op.Characteristics
	c.chars.IsFunctional = c.chars.IsFunctional && oc.IsFunctional
	c.chars.IsDeterministic = c.chars.IsDeterministic && oc.IsDeterministic
	c.chars.IsRepeatable = c.chars.IsRepeatable && oc.IsRepeatable
	c.chars.IsNilable = c.chars.IsNilable || oc.IsNilable
	c.chars.IsLiteral = c.chars.IsDeterministic && c.chars.IsFunctional && allLiteral(args)
	return c
}

func (c *Call) Kind() Kind       { return KindCall }
func (c *Call) Children() []Node { return c.Args }

func (c *Call) String() string {
	return printChildren(fmt.Sprintf("Call %s: %s", c.Operator, typeString(c.typ)), c.Args...)
}

// WithChildren implements the Node interface.
func (c *Call) WithChildren(children ...Node) (Node, error) {
	if len(children) != len(c.Args) {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), len(c.Args))
	}
	nc := *c
	nc.Args = children
	return &nc, nil
}

// Convert applies a single scalar conversion to its child.
type Convert struct {
	base
	Conversion *sql.Conversion
	Child      Node
}

var _ Node = (*Convert)(nil)

// NewConvert creates a new *Convert node.
func NewConvert(pos ast.Position, conv *sql.Conversion, child Node) *Convert {
	c := &Convert{base: newBase(conv.Target, pos, child), Conversion: conv, Child: child}
	c.chars.IsLiteral = child.Characteristics().IsLiteral
	return c
}

// NewConversionPath wraps child in one Convert node per step of the path.
func NewConversionPath(pos ast.Position, path conversion.Path, child Node) Node {
	for _, conv := range path {
		child = NewConvert(pos, conv, child)
	}
	return child
}

func (c *Convert) Kind() Kind       { return KindConvert }
func (c *Convert) Children() []Node { return []Node{c.Child} }
func (c *Convert) String() string   { return printChildren("Convert "+c.Conversion.String(), c.Child) }

// WithChildren implements the Node interface.
func (c *Convert) WithChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), 1)
	}
	nc := *c
	nc.Child = children[0]
	return &nc, nil
}

// StructuralConvert converts a row, table, list or cursor value column by
// column, or element by element.
type StructuralConvert struct {
	base
	Context *conversion.Context
	Child   Node
}

var _ Node = (*StructuralConvert)(nil)

// NewStructuralConvert creates a new *StructuralConvert node.
func NewStructuralConvert(pos ast.Position, ctx *conversion.Context, child Node) *StructuralConvert {
	return &StructuralConvert{base: newBase(ctx.Target, pos, child), Context: ctx, Child: child}
}

func (c *StructuralConvert) Kind() Kind       { return KindStructuralConvert }
func (c *StructuralConvert) Children() []Node { return []Node{c.Child} }

func (c *StructuralConvert) String() string {
	return printChildren(fmt.Sprintf("StructuralConvert %s to %s", c.Context.Source, c.Context.Target), c.Child)
}

// WithChildren implements the Node interface.
func (c *StructuralConvert) WithChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), 1)
	}
	nc := *c
	nc.Child = children[0]
	return &nc, nil
}

// RowSelector builds a row value.
type RowSelector struct {
	base
	Columns []string
	Values  []Node
}

var _ Node = (*RowSelector)(nil)

// NewRowSelector creates a new *RowSelector node.
func NewRowSelector(pos ast.Position, typ *sql.RowType, values []Node) *RowSelector {
	r := &RowSelector{base: newBase(typ, pos, values...), Columns: typ.Columns.Names(), Values: values}
	r.chars.IsLiteral = allLiteral(values)
	return r
}

func (r *RowSelector) Kind() Kind       { return KindRowSelector }
func (r *RowSelector) Children() []Node { return r.Values }

func (r *RowSelector) String() string {
	return printChildren(fmt.Sprintf("Row(%s)", joinNames(r.Columns)), r.Values...)
}

// WithChildren implements the Node interface.
func (r *RowSelector) WithChildren(children ...Node) (Node, error) {
	if len(children) != len(r.Values) {
		return nil, sql.ErrInvalidChildrenNumber.New(r, len(children), len(r.Values))
	}
	nr := *r
	nr.Values = children
	return &nr, nil
}

// TableSelector builds a table value from row values.
type TableSelector struct {
	base
	Rows []Node
}

var _ Node = (*TableSelector)(nil)

// NewTableSelector creates a new *TableSelector node.
func NewTableSelector(pos ast.Position, typ *sql.TableType, rows []Node) *TableSelector {
	t := &TableSelector{base: newBase(typ, pos, rows...), Rows: rows}
	t.chars.IsLiteral = allLiteral(rows)
	return t
}

func (t *TableSelector) Kind() Kind       { return KindTableSelector }
func (t *TableSelector) Children() []Node { return t.Rows }

func (t *TableSelector) String() string {
	return printChildren(fmt.Sprintf("Table: %s", t.typ), t.Rows...)
}

// WithChildren implements the Node interface.
func (t *TableSelector) WithChildren(children ...Node) (Node, error) {
	nt := *t
	nt.Rows = children
	return &nt, nil
}

// ListSelector builds a list value.
type ListSelector struct {
	base
	Elements []Node
}

var _ Node = (*ListSelector)(nil)

// NewListSelector creates a new *ListSelector node.
func NewListSelector(pos ast.Position, typ *sql.ListType, elements []Node) *ListSelector {
	l := &ListSelector{base: newBase(typ, pos, elements...), Elements: elements}
	l.chars.IsLiteral = allLiteral(elements)
	return l
}

func (l *ListSelector) Kind() Kind       { return KindListSelector }
func (l *ListSelector) Children() []Node { return l.Elements }

func (l *ListSelector) String() string {
	return printChildren(fmt.Sprintf("List: %s", l.typ), l.Elements...)
}

// WithChildren implements the Node interface.
func (l *ListSelector) WithChildren(children ...Node) (Node, error) {
	nl := *l
	nl.Elements = children
	return &nl, nil
}
