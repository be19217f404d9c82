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

package sql

import (
	"fmt"
	"strings"
)

// TypeKind identifies the structural category of a Type.
type TypeKind uint8

const (
	ScalarTypeKind TypeKind = iota
	RowTypeKind
	TableTypeKind
	ListTypeKind
	CursorTypeKind
	GenericTypeKind
)

func (k TypeKind) String() string {
	switch k {
	case ScalarTypeKind:
		return "scalar"
	case RowTypeKind:
		return "row"
	case TableTypeKind:
		return "table"
	case ListTypeKind:
		return "list"
	case CursorTypeKind:
		return "cursor"
	case GenericTypeKind:
		return "generic"
	default:
		return fmt.Sprintf("TypeKind(%d)", uint8(k))
	}
}

// Type is the compile-time type of a value. Types are compared structurally
// for rows, tables, lists and cursors, and by identity for scalars.
type Type interface {
	fmt.Stringer
	// Kind returns the structural category of the type.
	Kind() TypeKind
	// Equals reports whether both types are structurally identical.
	Equals(Type) bool
	// Is reports whether a value of this type is also a value of the given
	// type, either because they are equal, because the given type is an
	// ancestor, or because the given type is generic and covers this one.
	Is(Type) bool
	// IsGeneric reports whether the type is a generic placeholder.
	IsGeneric() bool
}

// NativeKind describes how literal values of a scalar type are represented.
type NativeKind uint8

const (
	NativeNone NativeKind = iota
	NativeInteger
	NativeDecimal
	NativeString
	NativeBoolean
)

// ScalarType is a named, user or system declared atomic type. Scalar types
// may inherit from parent scalar types.
type ScalarType struct {
	name    string
	Parents []*ScalarType
	Native  NativeKind
	// Generic scalar types match any scalar type.
	Generic bool
}

var _ Type = (*ScalarType)(nil)
var _ Object = (*ScalarType)(nil)

// NewScalarType creates a new scalar type with the given parents.
func NewScalarType(name string, native NativeKind, parents ...*ScalarType) *ScalarType {
	return &ScalarType{name: name, Native: native, Parents: parents}
}

// Nil is the type of the nil literal. It converts trivially to every type.
var Nil = &ScalarType{name: "System.Nil"}

// GenericScalar is the placeholder type matching every scalar type.
var GenericScalar = &ScalarType{name: "System.Scalar", Generic: true}

// IsNil reports whether t is the type of the nil literal.
func IsNil(t Type) bool {
	s, ok := t.(*ScalarType)
	return ok && s == Nil
}

func (t *ScalarType) Name() string           { return t.name }
func (t *ScalarType) String() string         { return t.name }
func (t *ScalarType) Kind() TypeKind         { return ScalarTypeKind }
func (t *ScalarType) IsGeneric() bool        { return t.Generic }
func (t *ScalarType) ObjectKind() ObjectKind { return ScalarTypeObject }
func (t *ScalarType) IsSessionObject() bool  { return false }
func (t *ScalarType) IsATObject() bool       { return false }

func (t *ScalarType) Equals(o Type) bool {
	s, ok := o.(*ScalarType)
	return ok && s.name == t.name
}

func (t *ScalarType) Is(o Type) bool {
	switch o := o.(type) {
	case *GenericType:
		return true
	case *ScalarType:
		if o.Generic || o.name == t.name {
			return true
		}
		for _, p := range t.Parents {
			if p.Is(o) {
				return true
			}
		}
	}
	return false
}

// Column is a named, typed member of a row or table type.
type Column struct {
	Name string
	Type Type
}

// Columns is an ordered list of columns.
type Columns []Column

// IndexOf returns the position of the column with the given name, or -1.
func (c Columns) IndexOf(name string) int {
	for i, col := range c {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

// equalSet reports whether both column lists contain the same names with
// equal types, regardless of order.
func (c Columns) equalSet(o Columns) bool {
	if len(c) != len(o) {
		return false
	}
	for _, col := range c {
		idx := o.IndexOf(col.Name)
		if idx < 0 || !col.Type.Equals(o[idx].Type) {
			return false
		}
	}
	return true
}

func (c Columns) isSet(o Columns) bool {
	if len(c) != len(o) {
		return false
	}
	for _, col := range c {
		idx := o.IndexOf(col.Name)
		if idx < 0 || !col.Type.Is(o[idx].Type) {
			return false
		}
	}
	return true
}

func (c Columns) String() string {
	parts := make([]string, len(c))
	for i, col := range c {
		parts[i] = fmt.Sprintf("%s: %s", col.Name, col.Type)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// RowType is the type of a row value.
type RowType struct {
	Columns Columns
	Generic bool
}

var _ Type = (*RowType)(nil)

// NewRowType creates a row type with the given columns.
func NewRowType(columns ...Column) *RowType {
	return &RowType{Columns: columns}
}

// NewGenericRowType creates a row type that matches every row type.
func NewGenericRowType() *RowType {
	return &RowType{Generic: true}
}

func (t *RowType) Kind() TypeKind  { return RowTypeKind }
func (t *RowType) IsGeneric() bool { return t.Generic }

func (t *RowType) String() string {
	if t.Generic {
		return "generic row"
	}
	return "row" + t.Columns.String()
}

func (t *RowType) Equals(o Type) bool {
	r, ok := o.(*RowType)
	return ok && r.Generic == t.Generic && t.Columns.equalSet(r.Columns)
}

func (t *RowType) Is(o Type) bool {
	switch o := o.(type) {
	case *GenericType:
		return true
	case *RowType:
		return o.Generic || t.Columns.isSet(o.Columns)
	}
	return false
}

// TableType is the type of a relation value.
type TableType struct {
	Columns Columns
	Generic bool
}

var _ Type = (*TableType)(nil)

// NewTableType creates a table type with the given columns.
func NewTableType(columns ...Column) *TableType {
	return &TableType{Columns: columns}
}

// NewGenericTableType creates a table type that matches every table type.
func NewGenericTableType() *TableType {
	return &TableType{Generic: true}
}

func (t *TableType) Kind() TypeKind  { return TableTypeKind }
func (t *TableType) IsGeneric() bool { return t.Generic }

// RowType returns the type of the rows of this table.
func (t *TableType) RowType() *RowType {
	return &RowType{Columns: t.Columns, Generic: t.Generic}
}

func (t *TableType) String() string {
	if t.Generic {
		return "generic table"
	}
	return "table" + t.Columns.String()
}

func (t *TableType) Equals(o Type) bool {
	r, ok := o.(*TableType)
	return ok && r.Generic == t.Generic && t.Columns.equalSet(r.Columns)
}

func (t *TableType) Is(o Type) bool {
	switch o := o.(type) {
	case *GenericType:
		return true
	case *TableType:
		return o.Generic || t.Columns.isSet(o.Columns)
	}
	return false
}

// ListType is the type of an ordered list of values of the same type.
type ListType struct {
	Element Type
}

var _ Type = (*ListType)(nil)

func NewListType(element Type) *ListType {
	return &ListType{Element: element}
}

func (t *ListType) Kind() TypeKind  { return ListTypeKind }
func (t *ListType) IsGeneric() bool { return t.Element == nil || t.Element.IsGeneric() }

func (t *ListType) String() string {
	if t.Element == nil {
		return "generic list"
	}
	return fmt.Sprintf("list(%s)", t.Element)
}

func (t *ListType) Equals(o Type) bool {
	l, ok := o.(*ListType)
	if !ok {
		return false
	}
	if t.Element == nil || l.Element == nil {
		return t.Element == nil && l.Element == nil
	}
	return t.Element.Equals(l.Element)
}

func (t *ListType) Is(o Type) bool {
	switch o := o.(type) {
	case *GenericType:
		return true
	case *ListType:
		if o.Element == nil {
			return true
		}
		return t.Element != nil && t.Element.Is(o.Element)
	}
	return false
}

// CursorType is the type of a cursor over a table expression.
type CursorType struct {
	Table *TableType
}

var _ Type = (*CursorType)(nil)

func NewCursorType(table *TableType) *CursorType {
	return &CursorType{Table: table}
}

func (t *CursorType) Kind() TypeKind  { return CursorTypeKind }
func (t *CursorType) IsGeneric() bool { return t.Table.IsGeneric() }
func (t *CursorType) String() string  { return fmt.Sprintf("cursor(%s)", t.Table) }

func (t *CursorType) Equals(o Type) bool {
	c, ok := o.(*CursorType)
	return ok && t.Table.Equals(c.Table)
}

func (t *CursorType) Is(o Type) bool {
	switch o := o.(type) {
	case *GenericType:
		return true
	case *CursorType:
		return t.Table.Is(o.Table)
	}
	return false
}

// GenericType is the placeholder type that every type is.
type GenericType struct{}

var _ Type = (*GenericType)(nil)

// Generic is the fully generic placeholder type.
var Generic = &GenericType{}

func (t *GenericType) Kind() TypeKind  { return GenericTypeKind }
func (t *GenericType) IsGeneric() bool { return true }
func (t *GenericType) String() string  { return "generic" }

func (t *GenericType) Equals(o Type) bool {
	_, ok := o.(*GenericType)
	return ok
}

func (t *GenericType) Is(o Type) bool {
	_, ok := o.(*GenericType)
	return ok
}

// RowOf returns the row type describing a single element of t when t is a
// table, cursor or row type. The second return value is false otherwise.
func RowOf(t Type) (*RowType, bool) {
	switch t := t.(type) {
	case *RowType:
		return t, true
	case *TableType:
		return t.RowType(), true
	case *CursorType:
		return t.Table.RowType(), true
	}
	return nil, false
}

// IsStructural reports whether t is a row, table, list or cursor type.
func IsStructural(t Type) bool {
	switch t.Kind() {
	case RowTypeKind, TableTypeKind, ListTypeKind, CursorTypeKind:
		return true
	}
	return false
}
