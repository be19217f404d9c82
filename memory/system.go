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

package memory

import (
	"fmt"

	"github.com/dolthub/go-relational-compiler/sql"
)

// SystemLibrary is the library holding the built-in types and operators.
const SystemLibrary = "System"

// SystemDevice is the name of the device registered by NewSystemCatalog.
const SystemDevice = "Memory"

// NewSystemCatalog creates a catalog seeded with the System library: the
// built-in scalar types, their conversions, the arithmetic, comparison and
// logical operators, the relational operators and a few functions.
func NewSystemCatalog() *Catalog {
	c := NewCatalog()
	if err := seedSystem(c); err != nil {
		panic(fmt.Sprintf("unable to seed system catalog: %s", err))
	}
	c.AddDevice(NewDevice(SystemDevice, AllOperators))
	return c
}

func system(name string) string {
	return sql.Qualified(SystemLibrary, name)
}

func seedSystem(c *Catalog) error {
	var (
		boolean = sql.NewScalarType(system("Boolean"), sql.NativeBoolean)
		integer = sql.NewScalarType(system("Integer"), sql.NativeInteger)
		long    = sql.NewScalarType(system("Long"), sql.NativeInteger)
		dec     = sql.NewScalarType(system("Decimal"), sql.NativeDecimal)
		str     = sql.NewScalarType(system("String"), sql.NativeString)
		errType = sql.NewScalarType(system("Error"), sql.NativeNone)
	)
	for _, t := range []*sql.ScalarType{boolean, integer, long, dec, str, errType} {
		if err := c.AddScalarType(t); err != nil {
			return err
		}
	}

	conversions := []struct {
		source, target *sql.ScalarType
		operator       string
		narrowing      bool
	}{
		{integer, long, "ToLong", false},
		{integer, dec, "ToDecimal", false},
		{long, dec, "ToDecimal", false},
		{dec, long, "ToLong", true},
		{long, integer, "ToInteger", true},
	}
	for _, conv := range conversions {
		op := sql.NewOperator(system(conv.operator), sql.NewSignature(conv.source), conv.target)
		err := c.AddConversion(&sql.Conversion{
			Source:      conv.source,
			Target:      conv.target,
			Operator:    op,
			IsNarrowing: conv.narrowing,
		})
		if err != nil {
			return err
		}
	}

	var ops []*sql.Operator
	add := func(name string, ret sql.Type, params ...sql.Type) *sql.Operator {
		op := sql.NewOperator(system(name), sql.NewSignature(params...), ret)
		ops = append(ops, op)
		return op
	}

	numeric := []*sql.ScalarType{integer, long, dec}
	for _, t := range numeric {
		add("iAddition", t, t, t)
		add("iSubtraction", t, t, t)
		add("iMultiplication", t, t, t)
		add("iNegate", t, t)
	}
	add("iAddition", str, str, str)
	add("iDivision", dec, dec, dec)

	for _, t := range append(numeric, str) {
		for _, cmp := range []string{"iEqual", "iNotEqual", "iLess", "iInclusiveLess", "iGreater", "iInclusiveGreater"} {
			add(cmp, boolean, t, t)
		}
	}
	add("iEqual", boolean, boolean, boolean)
	add("iNotEqual", boolean, boolean, boolean)

	add("iAnd", boolean, boolean, boolean)
	add("iOr", boolean, boolean, boolean)
	add("iNot", boolean, boolean)

	table := sql.NewGenericTableType()
	add("iRestrict", table, table, boolean)
	add("iProject", table, table)
	add("iRemove", table, table)
	add("iRename", table, table)
	add("iExtend", table, table)
	for _, join := range []string{"iJoin", "iLeftJoin", "iRightJoin"} {
		add(join, table, table, table)
		add(join, table, table, table, boolean)
	}

	add("Length", integer, str)
	add("Count", long, table)
	add("Error", errType, str)
	round := add("Round", dec, dec, integer)
	round.Signature[1].Optional = true
	random := add("Random", dec)
	random.Characteristics.IsDeterministic = false
	random.Characteristics.IsRepeatable = false

	for _, op := range ops {
		if err := c.AddOperator(op); err != nil {
			return err
		}
	}
	return nil
}

// ScalarType returns the scalar type with the given name.
func (c *Catalog) ScalarType(name string) (*sql.ScalarType, bool) {
	obj, _ := c.ResolveName(nil, name, nil)
	t, ok := obj.(*sql.ScalarType)
	return t, ok
}
