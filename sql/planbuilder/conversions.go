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
	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/conversion"
	"github.com/dolthub/go-relational-compiler/sql/plan"
)

// convert wraps node in the conversions needed to produce a value of the
// target type.
func (b *Builder) convert(n ast.Node, node plan.Node, target sql.Type) plan.Node {
	source := node.Type()
	if source == nil {
		b.handleErr(n, sql.ErrTypeMismatch.New(target, "a statement"))
	}
	if sql.IsNil(source) || source.Is(target) {
		return node
	}
	cc := b.c.conversions.FindConversionPath(source, target, b.c.opts.ArityWidening)
	if err := conversion.Check(cc); err != nil {
		b.handleErr(n, err)
	}
	return b.applyConversion(n, node, cc)
}

// applyConversion inserts the conversion nodes described by a successful
// conversion context.
func (b *Builder) applyConversion(n ast.Node, node plan.Node, cc *conversion.Context) plan.Node {
	if cc == nil || cc.IsExact() {
		return node
	}
	if cc.IsNarrowing() {
		b.warn(n, sql.WarnNarrowingConversion.New(cc.Source, cc.Target))
	}
	if len(cc.Path) > 0 {
		return plan.NewConversionPath(n.Pos(), cc.Path, node)
	}
	return plan.NewStructuralConvert(n.Pos(), cc, node)
}

// condition compiles a boolean expression.
func (b *Builder) condition(e ast.Expression) plan.Node {
	return b.convert(e, b.buildExpr(e), b.systemType(e, "Boolean"))
}
