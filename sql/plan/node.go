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

// Package plan defines the nodes of the compiled plan tree.
package plan

import (
	"fmt"
	"strings"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/ast"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// Kind identifies the construct a plan node was compiled from. The set of
// kinds is closed.
type Kind uint8

const (
	KindNoOp Kind = iota
	KindBlock
	KindVariable
	KindAssignment
	KindIf
	KindCase
	KindWhile
	KindForEach
	KindBreak
	KindContinue
	KindTry
	KindRaise
	KindLiteral
	KindStackReference
	KindStackColumnReference
	KindColumnExtractor
	KindTableVarReference
	KindCall
	KindConvert
	KindStructuralConvert
	KindRowSelector
	KindTableSelector
	KindListSelector
	KindRestrict
	KindProject
	KindRename
	KindExtend
	KindJoin
)

var kindNames = [...]string{
	KindNoOp:                 "NoOp",
	KindBlock:                "Block",
	KindVariable:             "Variable",
	KindAssignment:           "Assignment",
	KindIf:                   "If",
	KindCase:                 "Case",
	KindWhile:                "While",
	KindForEach:              "ForEach",
	KindBreak:                "Break",
	KindContinue:             "Continue",
	KindTry:                  "Try",
	KindRaise:                "Raise",
	KindLiteral:              "Literal",
	KindStackReference:       "StackReference",
	KindStackColumnReference: "StackColumnReference",
	KindColumnExtractor:      "ColumnExtractor",
	KindTableVarReference:    "TableVarReference",
	KindCall:                 "Call",
	KindConvert:              "Convert",
	KindStructuralConvert:    "StructuralConvert",
	KindRowSelector:          "RowSelector",
	KindTableSelector:        "TableSelector",
	KindListSelector:         "ListSelector",
	KindRestrict:             "Restrict",
	KindProject:              "Project",
	KindRename:               "Rename",
	KindExtend:               "Extend",
	KindJoin:                 "Join",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Node is a node of the plan tree. Nodes are immutable once built;
// WithChildren returns a copy.
type Node interface {
	fmt.Stringer
	Kind() Kind
	// Type is the result type of the node, or nil for statements.
	Type() sql.Type
	Characteristics() sql.Characteristics
	Children() []Node
	WithChildren(children ...Node) (Node, error)
	// Pos is the source location the node was compiled from.
	Pos() ast.Position
	// Annotations returns the mutable optimizer annotations of the node.
	Annotations() *Annotations
}

// Scoped is implemented by nodes that bring symbols into scope for some of
// their children. The symbols returned for child i are pushed, in order, on
// top of the stack while that child is compiled or traversed.
type Scoped interface {
	ChildScope(i int) []*stack.Symbol
}

// Windowed is implemented by nodes whose children are compiled inside a
// window that hides the enclosing symbols.
type Windowed interface {
	ChildWindow(i int) bool
}

// Annotations are filled in by the optimizer.
type Annotations struct {
	// PotentialDevices lists the devices of the table variables the node
	// reads.
	PotentialDevices []string
	// Device is the device chosen to evaluate the node.
	Device string
	// DeviceSupported reports whether Device can evaluate the node itself.
	DeviceSupported bool
	// AccessPath describes how a relational node reads its source.
	AccessPath AccessPath
	// IsTransactionJoin marks joins that mix transaction-local and global
	// table variables.
	IsTransactionJoin bool
	// IsLookup marks the lookup side of a transaction join.
	IsLookup bool
}

// AccessPath is the way a relational node reads its rows.
type AccessPath uint8

const (
	AccessUnknown AccessPath = iota
	AccessScan
	AccessFilter
	AccessKeyLookup
)

func (a AccessPath) String() string {
	switch a {
	case AccessScan:
		return "scan"
	case AccessFilter:
		return "filter"
	case AccessKeyLookup:
		return "key lookup"
	default:
		return "unknown"
	}
}

type base struct {
	typ         sql.Type
	chars       sql.Characteristics
	pos         ast.Position
	annotations Annotations
}

func newBase(typ sql.Type, pos ast.Position, children ...Node) base {
	return base{typ: typ, pos: pos, chars: deriveCharacteristics(children...)}
}

func (b *base) Type() sql.Type                       { return b.typ }
func (b *base) Characteristics() sql.Characteristics { return b.chars }
func (b *base) Pos() ast.Position                    { return b.pos }
func (b *base) Annotations() *Annotations            { return &b.annotations }

// deriveCharacteristics combines the characteristics of the children: a node
// is functional, deterministic and repeatable when all its children are, and
// nilable when any of them is.
func deriveCharacteristics(children ...Node) sql.Characteristics {
	chars := sql.Characteristics{IsFunctional: true, IsDeterministic: true, IsRepeatable: true}
	for _, c := range children {
		if c == nil {
			continue
		}
		cc := c.Characteristics()
		chars.IsFunctional = chars.IsFunctional && cc.IsFunctional
		chars.IsDeterministic = chars.IsDeterministic && cc.IsDeterministic
		chars.IsRepeatable = chars.IsRepeatable && cc.IsRepeatable
		chars.IsNilable = chars.IsNilable || cc.IsNilable
	}
	return chars
}

func allLiteral(children []Node) bool {
	for _, c := range children {
		if !c.Characteristics().IsLiteral {
			return false
		}
	}
	return true
}

func nonNil(nodes ...Node) []Node {
	result := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			result = append(result, n)
		}
	}
	return result
}

func typeString(t sql.Type) string {
	if t == nil {
		return "<none>"
	}
	return t.String()
}

func printChildren(header string, children ...Node) string {
	p := sql.NewTreePrinter()
	p.WriteNode("%s", header)
	var strs []string
	for _, c := range children {
		if c != nil {
			strs = append(strs, c.String())
		}
	}
	p.WriteChildren(strs...)
	return p.String()
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

// RowContext returns the symbol a relational node pushes for its row
// scoped children, or nil when source is not relational.
func RowContext(source Node) *stack.Symbol {
	if source == nil || source.Type() == nil {
		return nil
	}
	row, ok := sql.RowOf(source.Type())
	if !ok {
		return nil
	}
	return stack.NewRowContext(row)
}
