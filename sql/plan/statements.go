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
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// NoOp stands in for statements that have nothing to evaluate, including
// statements that failed to compile.
type NoOp struct {
	base
}

var _ Node = (*NoOp)(nil)

// NewNoOp creates a new *NoOp node.
func NewNoOp(pos ast.Position) *NoOp {
	return &NoOp{base: newBase(nil, pos)}
}

func (n *NoOp) Kind() Kind       { return KindNoOp }
func (n *NoOp) String() string   { return "NoOp\n" }
func (n *NoOp) Children() []Node { return nil }

// WithChildren implements the Node interface.
func (n *NoOp) WithChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(n, len(children), 0)
	}
	nn := *n
	return &nn, nil
}

// Block is a sequence of statements evaluated in order. Variables declared
// by a statement are visible to the statements after it.
type Block struct {
	base
	Statements []Node
}

var _ Node = (*Block)(nil)
var _ Scoped = (*Block)(nil)

// NewBlock creates a new *Block node.
func NewBlock(pos ast.Position, statements []Node) *Block {
	return &Block{base: newBase(nil, pos, statements...), Statements: statements}
}

func (b *Block) Kind() Kind       { return KindBlock }
func (b *Block) Children() []Node { return b.Statements }

func (b *Block) String() string {
	return printChildren("Block", b.Statements...)
}

// WithChildren implements the Node interface.
func (b *Block) WithChildren(children ...Node) (Node, error) {
	nb := *b
	nb.Statements = children
	return &nb, nil
}

// ChildScope implements the Scoped interface.
func (b *Block) ChildScope(i int) []*stack.Symbol {
	var symbols []*stack.Symbol
	for _, s := range b.Statements[:i] {
		if v, ok := s.(*Variable); ok {
			symbols = append(symbols, v.Symbol())
		}
	}
	return symbols
}

// Variable declares a variable, optionally initialized with a default value.
type Variable struct {
	base
	Name       string
	VarType    sql.Type
	IsConstant bool
	Default    Node
}

var _ Node = (*Variable)(nil)
var _ Windowed = (*Variable)(nil)

// NewVariable creates a new *Variable node. The default may be nil.
func NewVariable(pos ast.Position, name string, typ sql.Type, isConstant bool, def Node) *Variable {
	return &Variable{base: newBase(nil, pos, def), Name: name, VarType: typ, IsConstant: isConstant, Default: def}
}

func (v *Variable) Kind() Kind       { return KindVariable }
func (v *Variable) Children() []Node { return nonNil(v.Default) }

// Symbol returns the symbol the declaration pushes.
func (v *Variable) Symbol() *stack.Symbol {
	sym := stack.NewSymbol(v.Name, v.VarType)
	sym.IsConstant = v.IsConstant
	return sym
}

func (v *Variable) String() string {
	keyword := "Var"
	if v.IsConstant {
		keyword = "Const"
	}
	return printChildren(fmt.Sprintf("%s %s: %s", keyword, v.Name, v.VarType), v.Default)
}

// WithChildren implements the Node interface.
func (v *Variable) WithChildren(children ...Node) (Node, error) {
	expected := len(v.Children())
	if len(children) != expected {
		return nil, sql.ErrInvalidChildrenNumber.New(v, len(children), expected)
	}
	nv := *v
	if expected == 1 {
		nv.Default = children[0]
	}
	return &nv, nil
}

// ChildWindow implements the Windowed interface.
func (v *Variable) ChildWindow(int) bool { return true }

// Assignment stores a value in a variable on the stack.
type Assignment struct {
	base
	Target stack.Location
	Value  Node
}

var _ Node = (*Assignment)(nil)

// NewAssignment creates a new *Assignment node.
func NewAssignment(pos ast.Position, target stack.Location, value Node) *Assignment {
	return &Assignment{base: newBase(nil, pos, value), Target: target, Value: value}
}

func (a *Assignment) Kind() Kind       { return KindAssignment }
func (a *Assignment) Children() []Node { return []Node{a.Value} }

func (a *Assignment) String() string {
	return printChildren(fmt.Sprintf("Assign %s[%d]", a.Target.Name, a.Target.Index), a.Value)
}

// WithChildren implements the Node interface.
func (a *Assignment) WithChildren(children ...Node) (Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(a, len(children), 1)
	}
	na := *a
	na.Value = children[0]
	return &na, nil
}

// If evaluates one of two branches. It is used both for the statement, whose
// type is nil, and for the conditional expression.
type If struct {
	base
	Condition Node
	Then      Node
	// Else may be nil for statements.
	Else Node
}

var _ Node = (*If)(nil)

// NewIf creates a new *If node.
func NewIf(pos ast.Position, typ sql.Type, cond, then, els Node) *If {
	return &If{base: newBase(typ, pos, cond, then, els), Condition: cond, Then: then, Else: els}
}

func (n *If) Kind() Kind       { return KindIf }
func (n *If) Children() []Node { return nonNil(n.Condition, n.Then, n.Else) }

func (n *If) String() string {
	return printChildren("If", n.Children()...)
}

// WithChildren implements the Node interface.
func (n *If) WithChildren(children ...Node) (Node, error) {
	expected := len(n.Children())
	if len(children) != expected {
		return nil, sql.ErrInvalidChildrenNumber.New(n, len(children), expected)
	}
	nn := *n
	nn.Condition, nn.Then = children[0], children[1]
	if expected == 3 {
		nn.Else = children[2]
	}
	return &nn, nil
}

// Case selects the first branch whose condition holds. A case over a
// selector is compiled into conditions comparing the selector with each
// value. Like If it serves both statements and expressions.
type Case struct {
	base
	Whens []Node
	Thens []Node
	// Else may be nil.
	Else Node
}

var _ Node = (*Case)(nil)

// NewCase creates a new *Case node.
func NewCase(pos ast.Position, typ sql.Type, whens, thens []Node, els Node) *Case {
	all := append(append([]Node(nil), whens...), thens...)
	return &Case{
		base:  newBase(typ, pos, append(all, els)...),
		Whens: whens,
		Thens: thens,
		Else:  els,
	}
}

func (c *Case) Kind() Kind { return KindCase }

// Children returns each when and then pair, then the else branch when there
// is one.
func (c *Case) Children() []Node {
	var children []Node
	for i := range c.Whens {
		children = append(children, c.Whens[i], c.Thens[i])
	}
	return append(children, nonNil(c.Else)...)
}

func (c *Case) String() string {
	p := sql.NewTreePrinter()
	p.WriteNode("Case")
	var children []string
	for i := range c.Whens {
		children = append(children, printChildren("When", c.Whens[i], c.Thens[i]))
	}
	if c.Else != nil {
		children = append(children, printChildren("Else", c.Else))
	}
	p.WriteChildren(children...)
	return p.String()
}

// WithChildren implements the Node interface.
func (c *Case) WithChildren(children ...Node) (Node, error) {
	expected := len(c.Children())
	if len(children) != expected {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), expected)
	}
	nc := *c
	nc.Whens = make([]Node, len(c.Whens))
	nc.Thens = make([]Node, len(c.Thens))
	for i := range c.Whens {
		nc.Whens[i], nc.Thens[i] = children[2*i], children[2*i+1]
	}
	if c.Else != nil {
		nc.Else = children[len(children)-1]
	}
	return &nc, nil
}

// While evaluates its body as long as the condition holds.
type While struct {
	base
	Condition Node
	Body      Node
}

var _ Node = (*While)(nil)

// NewWhile creates a new *While node.
func NewWhile(pos ast.Position, cond, body Node) *While {
	return &While{base: newBase(nil, pos, cond, body), Condition: cond, Body: body}
}

func (w *While) Kind() Kind       { return KindWhile }
func (w *While) Children() []Node { return []Node{w.Condition, w.Body} }
func (w *While) String() string   { return printChildren("While", w.Condition, w.Body) }

// WithChildren implements the Node interface.
func (w *While) WithChildren(children ...Node) (Node, error) {
	if len(children) != 2 {
		return nil, sql.ErrInvalidChildrenNumber.New(w, len(children), 2)
	}
	nw := *w
	nw.Condition, nw.Body = children[0], children[1]
	return &nw, nil
}

// ForEach evaluates its body once for every element of a list, or every row
// of a table or cursor, bound to the loop variable.
type ForEach struct {
	base
	Variable string
	VarType  sql.Type
	Source   Node
	Body     Node
}

var _ Node = (*ForEach)(nil)
var _ Scoped = (*ForEach)(nil)

// NewForEach creates a new *ForEach node.
func NewForEach(pos ast.Position, variable string, varType sql.Type, source, body Node) *ForEach {
	return &ForEach{base: newBase(nil, pos, source, body), Variable: variable, VarType: varType, Source: source, Body: body}
}

func (f *ForEach) Kind() Kind       { return KindForEach }
func (f *ForEach) Children() []Node { return []Node{f.Source, f.Body} }

func (f *ForEach) String() string {
	return printChildren(fmt.Sprintf("ForEach %s: %s", f.Variable, f.VarType), f.Source, f.Body)
}

// WithChildren implements the Node interface.
func (f *ForEach) WithChildren(children ...Node) (Node, error) {
	if len(children) != 2 {
		return nil, sql.ErrInvalidChildrenNumber.New(f, len(children), 2)
	}
	nf := *f
	nf.Source, nf.Body = children[0], children[1]
	return &nf, nil
}

// ChildScope implements the Scoped interface.
func (f *ForEach) ChildScope(i int) []*stack.Symbol {
	if i == 1 {
		return []*stack.Symbol{stack.NewSymbol(f.Variable, f.VarType)}
	}
	return nil
}

// Break leaves the innermost loop.
type Break struct {
	base
}

var _ Node = (*Break)(nil)

// NewBreak creates a new *Break node.
func NewBreak(pos ast.Position) *Break {
	return &Break{base: newBase(nil, pos)}
}

func (b *Break) Kind() Kind       { return KindBreak }
func (b *Break) String() string   { return "Break\n" }
func (b *Break) Children() []Node { return nil }

// WithChildren implements the Node interface.
func (b *Break) WithChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(b, len(children), 0)
	}
	nb := *b
	return &nb, nil
}

// Continue starts the next iteration of the innermost loop.
type Continue struct {
	base
}

var _ Node = (*Continue)(nil)

// NewContinue creates a new *Continue node.
func NewContinue(pos ast.Position) *Continue {
	return &Continue{base: newBase(nil, pos)}
}

func (c *Continue) Kind() Kind       { return KindContinue }
func (c *Continue) String() string   { return "Continue\n" }
func (c *Continue) Children() []Node { return nil }

// WithChildren implements the Node interface.
func (c *Continue) WithChildren(children ...Node) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), 0)
	}
	nc := *c
	return &nc, nil
}

// Try evaluates its body and, when it raises, the handler with the error
// bound to Variable.
type Try struct {
	base
	Body Node
	// Variable is empty when the handler does not bind the error.
	Variable  string
	ErrorType sql.Type
	// Handler may be nil.
	Handler Node
}

var _ Node = (*Try)(nil)
var _ Scoped = (*Try)(nil)

// NewTry creates a new *Try node.
func NewTry(pos ast.Position, body Node, variable string, errorType sql.Type, handler Node) *Try {
	return &Try{base: newBase(nil, pos, body, handler), Body: body, Variable: variable, ErrorType: errorType, Handler: handler}
}

func (t *Try) Kind() Kind       { return KindTry }
func (t *Try) Children() []Node { return nonNil(t.Body, t.Handler) }

func (t *Try) String() string {
	header := "Try"
	if t.Variable != "" {
		header = fmt.Sprintf("Try except %s: %s", t.Variable, t.ErrorType)
	}
	return printChildren(header, t.Body, t.Handler)
}

// WithChildren implements the Node interface.
func (t *Try) WithChildren(children ...Node) (Node, error) {
	expected := len(t.Children())
	if len(children) != expected {
		return nil, sql.ErrInvalidChildrenNumber.New(t, len(children), expected)
	}
	nt := *t
	nt.Body = children[0]
	if expected == 2 {
		nt.Handler = children[1]
	}
	return &nt, nil
}

// ChildScope implements the Scoped interface.
func (t *Try) ChildScope(i int) []*stack.Symbol {
	if i == 1 && t.Variable != "" {
		return []*stack.Symbol{stack.NewSymbol(t.Variable, t.ErrorType)}
	}
	return nil
}

// Raise raises an error, or re-raises the error being handled when Error is
// nil.
type Raise struct {
	base
	Error Node
}

var _ Node = (*Raise)(nil)

// NewRaise creates a new *Raise node.
func NewRaise(pos ast.Position, err Node) *Raise {
	r := &Raise{base: newBase(nil, pos, err), Error: err}
	r.chars.IsFunctional = false
	return r
}

func (r *Raise) Kind() Kind       { return KindRaise }
func (r *Raise) Children() []Node { return nonNil(r.Error) }

func (r *Raise) String() string {
	if r.Error == nil {
		return "Reraise\n"
	}
	return printChildren("Raise", r.Error)
}

// WithChildren implements the Node interface.
func (r *Raise) WithChildren(children ...Node) (Node, error) {
	expected := len(r.Children())
	if len(children) != expected {
		return nil, sql.ErrInvalidChildrenNumber.New(r, len(children), expected)
	}
	nr := *r
	if expected == 1 {
		nr.Error = children[0]
	}
	return &nr, nil
}
