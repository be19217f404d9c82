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
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/stack"
	"github.com/dolthub/go-relational-compiler/sql/transform"
)

// recompileSet holds the objects being recompiled by a compilation and its
// sub-compilations.
type recompileSet struct {
	names map[string]struct{}
}

func newRecompileSet() *recompileSet {
	return &recompileSet{names: make(map[string]struct{})}
}

func (s *recompileSet) enter(name string) bool {
	if _, ok := s.names[name]; ok {
		return false
	}
	s.names[name] = struct{}{}
	return true
}

func (s *recompileSet) exit(name string) {
	delete(s.names, name)
}

// RecompileOperator implements resolve.Recompiler. The stored declaration
// of the operator is parsed and its body compiled with only the parameters
// in scope.
func (b *Builder) RecompileOperator(ctx *sql.Context, op *sql.Operator) error {
	if b.c.declarations == nil || b.c.parser == nil {
		return sql.ErrDeclarationNotFound.New(op.Name())
	}
	if !b.recompiling.enter("operator " + op.Name()) {
		return sql.ErrCircularRecompile.New(op.Name())
	}
	defer b.recompiling.exit("operator " + op.Name())

	span, ctx := ctx.Span("recompile_operator")
	span.SetTag("operator", op.Name())
	defer span.Finish()

	text, err := b.c.declarations.Declaration(op.Name())
	if err != nil {
		return err
	}
	decl, err := b.c.parser.ParseOperator(text)
	if err != nil {
		return err
	}
	if len(decl.Parameters) != len(op.Signature) {
		return sql.ErrTypeMismatch.New(op.String(), decl.Name)
	}

	sub := b.sub()
	sub.ctx = ctx
	for i, p := range decl.Parameters {
		sym := stack.NewSymbol(p.Name, op.Signature[i].Type)
		sym.IsConstant = !p.Var
		sub.stack.Push(sym)
	}

	body := sub.buildStatementSafe(decl.Body)
	b.messages.Append(warningsOf(sub.messages))
	if err := sub.messages.Err(); err != nil {
		return err
	}

	ctx.GetLogger().Debugf("recompiled operator %s", op)
	op.Bind(body)
	return nil
}

// ReinferReferences implements resolve.Reinferrer. The definition of the
// derived table variable is compiled in isolation and the table variables
// it reads become its references.
func (b *Builder) ReinferReferences(ctx *sql.Context, tv *sql.TableVar) error {
	if tv.Definition == nil {
		tv.SetReferences(nil)
		return nil
	}
	if !b.recompiling.enter("table " + tv.Name()) {
		return sql.ErrCircularRecompile.New(tv.Name())
	}
	defer b.recompiling.exit("table " + tv.Name())

	sub := b.sub()
	sub.ctx = ctx
	node := sub.BuildExpression(tv.Definition)
	if err := sub.messages.Err(); err != nil {
		return err
	}

	refs := make(map[string]struct{})
	transform.Inspect(node, func(n plan.Node) bool {
		if r, ok := n.(*plan.TableVarReference); ok {
			name := r.TableVar.Name()
			if r.TableVar.Source != nil {
				name = r.TableVar.Source.Name()
			}
			refs[name] = struct{}{}
		}
		return true
	})
	names := maps.Keys(refs)
	slices.Sort(names)
	tv.SetReferences(names)
	return nil
}

func warningsOf(m *sql.Messages) *sql.Messages {
	w := sql.NewMessages()
	for _, msg := range m.Warnings() {
		w.Add(msg.Severity, msg.Err, msg.Line, msg.Column)
	}
	return w
}
