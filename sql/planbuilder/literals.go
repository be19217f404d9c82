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

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/plan"
)

func (b *Builder) buildLiteral(v *ast.ValueLiteral) plan.Node {
	if v.Value == nil && v.TypeName == "" {
		return plan.NewLiteral(v.Pos(), sql.Nil, nil)
	}

	var typ *sql.ScalarType
	if v.TypeName != "" {
		typ = b.resolveScalarType(v, v.TypeName)
	} else {
		name := literalTypeName(v.Value)
		if name == "" {
			b.handleErr(v, sql.ErrTypeMismatch.New("a literal", fmt.Sprintf("%T", v.Value)))
		}
		typ = b.systemType(v, name)
	}

	value, err := normalizeLiteral(typ, v.Value)
	if err != nil {
		b.handleErr(v, sql.ErrTypeMismatch.New(typ, fmt.Sprintf("%v", v.Value)))
	}
	return plan.NewLiteral(v.Pos(), typ, value)
}

func literalTypeName(value interface{}) string {
	switch value.(type) {
	case bool:
		return "Boolean"
	case string:
		return "String"
	case float32, float64, decimal.Decimal:
		return "Decimal"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "Integer"
	default:
		return ""
	}
}

// normalizeLiteral converts a literal value to the representation of the
// native kind of its type.
func normalizeLiteral(typ *sql.ScalarType, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch typ.Native {
	case sql.NativeInteger:
		return cast.ToInt64E(value)
	case sql.NativeDecimal:
		switch v := value.(type) {
		case decimal.Decimal:
			return v, nil
		case string:
			return decimal.NewFromString(v)
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		}
		i, err := cast.ToInt64E(value)
		if err != nil {
			return nil, err
		}
		return decimal.NewFromInt(i), nil
	case sql.NativeString:
		return cast.ToStringE(value)
	case sql.NativeBoolean:
		return cast.ToBoolE(value)
	default:
		return value, nil
	}
}
