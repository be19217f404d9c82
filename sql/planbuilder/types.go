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
	"strings"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
)

// buildType resolves a type specifier.
func (b *Builder) buildType(ts ast.TypeSpecifier) sql.Type {
	switch t := ts.(type) {
	case *ast.NamedTypeSpecifier:
		return b.resolveScalarType(t, t.Name)
	case *ast.RowTypeSpecifier:
		return sql.NewRowType(b.buildColumns(t, t.Columns)...)
	case *ast.TableTypeSpecifier:
		return sql.NewTableType(b.buildColumns(t, t.Columns)...)
	case *ast.ListTypeSpecifier:
		return sql.NewListType(b.buildType(t.Element))
	case *ast.CursorTypeSpecifier:
		return sql.NewCursorType(sql.NewTableType(b.buildColumns(t.Table, t.Table.Columns)...))
	case *ast.GenericTypeSpecifier:
		switch strings.ToLower(t.Kind) {
		case "":
			return sql.Generic
		case "scalar":
			return sql.GenericScalar
		case "row":
			return sql.NewGenericRowType()
		case "table":
			return sql.NewGenericTableType()
		case "list":
			return sql.NewListType(nil)
		}
		b.handleErr(t, sql.ErrUnknownIdentifier.New("generic "+t.Kind, ""))
	default:
		b.handleErr(ts, sql.ErrInternal.New("unknown type specifier"))
	}
	return nil
}

func (b *Builder) buildColumns(n ast.Node, specs []ast.ColumnSpecifier) sql.Columns {
	columns := make(sql.Columns, len(specs))
	for i, spec := range specs {
		if idx := columns[:i].IndexOf(spec.Name); idx >= 0 {
			b.handleErr(n, sql.ErrDuplicateIdentifier.New(spec.Name, []string{columns[idx].Name}))
		}
		columns[i] = sql.Column{Name: spec.Name, Type: b.buildType(spec.Type)}
	}
	return columns
}

func (b *Builder) resolveScalarType(n ast.Node, name string) *sql.ScalarType {
	obj, err := b.c.names.ResolveObject(b.ctx, b.scope, name)
	if err != nil {
		b.handleErr(n, err)
	}
	if obj == nil {
		b.handleErr(n, sql.ErrUnknownIdentifier.New(name, b.c.names.Suggest(nil, name)))
	}
	t, ok := obj.(*sql.ScalarType)
	if !ok {
		b.handleErr(n, sql.ErrTypeMismatch.New("a scalar type", obj.ObjectKind()))
	}
	return t
}

// systemType returns one of the built-in scalar types. A catalog without
// it cannot type the tree, so its absence is fatal.
func (b *Builder) systemType(n ast.Node, name string) *sql.ScalarType {
	if t, ok := b.systemTypes[name]; ok {
		return t
	}
	qualified := sql.Qualified(SystemLibrary, name)
	obj, _ := b.c.catalog.ResolveName(b.ctx, qualified, nil)
	t, ok := obj.(*sql.ScalarType)
	if !ok {
		b.handleFatal(n, sql.ErrMissingType.New(qualified))
	}
	b.systemTypes[name] = t
	return t
}

// unify returns the type two branch values share, converting one to the
// other when needed.
func (b *Builder) unify(n ast.Node, left, right sql.Type) sql.Type {
	switch {
	case left == nil || sql.IsNil(left):
		return right
	case right == nil || sql.IsNil(right):
		return left
	case right.Is(left):
		return left
	case left.Is(right):
		return right
	}
	if b.c.conversions.FindConversionPath(right, left, b.c.opts.ArityWidening).CanConvert {
		return left
	}
	if b.c.conversions.FindConversionPath(left, right, b.c.opts.ArityWidening).CanConvert {
		return right
	}
	b.handleErr(n, sql.ErrTypeMismatch.New(left, right))
	return nil
}
