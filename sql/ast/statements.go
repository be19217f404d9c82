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

package ast

// Block is a sequence of statements with its own scope.
type Block struct {
	Position
	Statements []Statement
}

// VariableStatement declares a local variable.
type VariableStatement struct {
	Position
	Name       string
	Type       TypeSpecifier
	Default    Expression
	IsConstant bool
}

// AssignmentStatement assigns a value to a variable.
type AssignmentStatement struct {
	Position
	Target string
	Value  Expression
}

// IfStatement executes one of two statements.
type IfStatement struct {
	Position
	Condition Expression
	Then      Statement
	Else      Statement
}

// CaseItem is a single when clause.
type CaseItem struct {
	When Expression
	Then Statement
}

// CaseStatement executes the first matching clause. Without a selector
// every when expression must be a condition.
type CaseStatement struct {
	Position
	Selector Expression
	Items    []CaseItem
	Else     Statement
}

// WhileStatement repeats a statement while a condition holds.
type WhileStatement struct {
	Position
	Condition Expression
	Body      Statement
}

// ForEachStatement iterates over the rows of a table or the elements of a
// list. An empty variable name makes the columns of each row visible
// directly.
type ForEachStatement struct {
	Position
	Variable   string
	Expression Expression
	Body       Statement
}

// BreakStatement leaves the innermost loop.
type BreakStatement struct {
	Position
}

// ContinueStatement skips to the next iteration of the innermost loop.
type ContinueStatement struct {
	Position
}

// TryStatement runs a body with an error handler.
type TryStatement struct {
	Position
	Body Statement
	// Variable names the caught error inside the handler.
	Variable string
	Handler  Statement
}

// RaiseStatement raises an error. A nil expression re-raises the error being
// handled.
type RaiseStatement struct {
	Position
	Expression Expression
}

// ExpressionStatement evaluates an expression for its effects.
type ExpressionStatement struct {
	Position
	Expression Expression
}

func (*Block) statementNode()               {}
func (*VariableStatement) statementNode()   {}
func (*AssignmentStatement) statementNode() {}
func (*IfStatement) statementNode()         {}
func (*CaseStatement) statementNode()       {}
func (*WhileStatement) statementNode()      {}
func (*ForEachStatement) statementNode()    {}
func (*BreakStatement) statementNode()      {}
func (*ContinueStatement) statementNode()   {}
func (*TryStatement) statementNode()        {}
func (*RaiseStatement) statementNode()      {}
func (*ExpressionStatement) statementNode() {}
