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

// Package ast defines the syntax tree the compiler consumes. Trees are
// produced by an external parser.
package ast

// Position is a location in the source text.
type Position struct {
	Line   int
	Column int
}

// Pos returns the position itself, so embedding a Position satisfies Node.
func (p Position) Pos() Position { return p }

// At is a shorthand to build a position.
func At(line, column int) Position {
	return Position{Line: line, Column: column}
}

// Node is any element of the syntax tree.
type Node interface {
	Pos() Position
}

// Statement is a node that can appear in a statement list.
type Statement interface {
	Node
	statementNode()
}

// Expression is a node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// TypeSpecifier is a node that denotes a type.
type TypeSpecifier interface {
	Node
	typeSpecifierNode()
}

// Parser turns source text into syntax trees. The compiler uses it to
// recompile stored declarations.
type Parser interface {
	ParseExpression(text string) (Expression, error)
	ParseOperator(text string) (*OperatorDeclaration, error)
}

// OperatorDeclaration is the parsed form of a stored operator declaration.
type OperatorDeclaration struct {
	Position
	Name       string
	Parameters []Parameter
	ReturnType TypeSpecifier
	Body       Statement
}

// Parameter is a named operator parameter.
type Parameter struct {
	Name string
	Type TypeSpecifier
	// Var parameters may be assigned by the body.
	Var bool
}
