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

// ValueLiteral is a constant value. TypeName optionally names the scalar
// type the value is given; otherwise it is inferred from the Go value.
type ValueLiteral struct {
	Position
	Value    interface{}
	TypeName string
}

// NilLiteral is the nil value.
type NilLiteral struct {
	Position
}

// IdentifierExpression references a name, possibly dotted.
type IdentifierExpression struct {
	Position
	Name string
}

// QualifierExpression is the dotted access Left.Right. It is either a
// qualified name or a column extraction, depending on what Left resolves to.
type QualifierExpression struct {
	Position
	Left  Expression
	Right Expression
}

// CallExpression invokes an operator by name.
type CallExpression struct {
	Position
	Name      string
	Arguments []Expression
}

// Operator symbols for unary and binary expressions.
const (
	OpAdd          = "+"
	OpSubtract     = "-"
	OpMultiply     = "*"
	OpDivide       = "/"
	OpEqual        = "="
	OpNotEqual     = "<>"
	OpLess         = "<"
	OpLessOrEqual  = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpAnd          = "and"
	OpOr           = "or"
	OpNot          = "not"
	OpNegate       = "-"
)

// BinaryExpression applies an infix operator.
type BinaryExpression struct {
	Position
	Operator string
	Left     Expression
	Right    Expression
}

// UnaryExpression applies a prefix operator.
type UnaryExpression struct {
	Position
	Operator string
	Operand  Expression
}

// IfExpression evaluates to one of two expressions.
type IfExpression struct {
	Position
	Condition Expression
	Then      Expression
	Else      Expression
}

// CaseExpressionItem is a single when clause of a case expression.
type CaseExpressionItem struct {
	When Expression
	Then Expression
}

// CaseExpression evaluates to the result of the first matching clause.
type CaseExpression struct {
	Position
	Selector Expression
	Items    []CaseExpressionItem
	Else     Expression
}

// NamedExpression pairs a column name with its value.
type NamedExpression struct {
	Name       string
	Expression Expression
}

// RowSelector builds a row value.
type RowSelector struct {
	Position
	Type    *RowTypeSpecifier
	Columns []NamedExpression
}

// TableSelector builds a table value from row expressions.
type TableSelector struct {
	Position
	Type *TableTypeSpecifier
	Rows []Expression
}

// ListSelector builds a list value.
type ListSelector struct {
	Position
	Type     *ListTypeSpecifier
	Elements []Expression
}

// RestrictExpression filters the rows of Source by Condition.
type RestrictExpression struct {
	Position
	Source    Expression
	Condition Expression
}

// ProjectExpression keeps only the named columns of Source.
type ProjectExpression struct {
	Position
	Source  Expression
	Columns []string
}

// RemoveExpression drops the named columns of Source.
type RemoveExpression struct {
	Position
	Source  Expression
	Columns []string
}

// RenameColumn maps an existing column name to a new one.
type RenameColumn struct {
	Old string
	New string
}

// RenameExpression renames columns of Source.
type RenameExpression struct {
	Position
	Source  Expression
	Columns []RenameColumn
}

// ExtendExpression adds computed columns to Source.
type ExtendExpression struct {
	Position
	Source  Expression
	Columns []NamedExpression
}

// JoinKind is the kind of a join expression.
type JoinKind uint8

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
)

func (k JoinKind) String() string {
	switch k {
	case LeftJoin:
		return "left"
	case RightJoin:
		return "right"
	default:
		return "inner"
	}
}

// JoinExpression combines two relations. Without a condition the join is
// natural over the common columns.
type JoinExpression struct {
	Position
	Kind      JoinKind
	Left      Expression
	Right     Expression
	Condition Expression
}

func (*ValueLiteral) expressionNode()         {}
func (*NilLiteral) expressionNode()           {}
func (*IdentifierExpression) expressionNode() {}
func (*QualifierExpression) expressionNode()  {}
func (*CallExpression) expressionNode()       {}
func (*BinaryExpression) expressionNode()     {}
func (*UnaryExpression) expressionNode()      {}
func (*IfExpression) expressionNode()         {}
func (*CaseExpression) expressionNode()       {}
func (*RowSelector) expressionNode()          {}
func (*TableSelector) expressionNode()        {}
func (*ListSelector) expressionNode()         {}
func (*RestrictExpression) expressionNode()   {}
func (*ProjectExpression) expressionNode()    {}
func (*RemoveExpression) expressionNode()     {}
func (*RenameExpression) expressionNode()     {}
func (*ExtendExpression) expressionNode()     {}
func (*JoinExpression) expressionNode()       {}

// ColumnSpecifier is a named column of a row or table type specifier.
type ColumnSpecifier struct {
	Name string
	Type TypeSpecifier
}

// NamedTypeSpecifier references a scalar type by name.
type NamedTypeSpecifier struct {
	Position
	Name string
}

// RowTypeSpecifier denotes a row type.
type RowTypeSpecifier struct {
	Position
	Columns []ColumnSpecifier
}

// TableTypeSpecifier denotes a table type.
type TableTypeSpecifier struct {
	Position
	Columns []ColumnSpecifier
}

// ListTypeSpecifier denotes a list type.
type ListTypeSpecifier struct {
	Position
	Element TypeSpecifier
}

// CursorTypeSpecifier denotes a cursor type.
type CursorTypeSpecifier struct {
	Position
	Table *TableTypeSpecifier
}

// GenericTypeSpecifier denotes a generic placeholder type. Kind is one of
// "", "scalar", "row", "table" or "list".
type GenericTypeSpecifier struct {
	Position
	Kind string
}

func (*NamedTypeSpecifier) typeSpecifierNode()   {}
func (*RowTypeSpecifier) typeSpecifierNode()     {}
func (*TableTypeSpecifier) typeSpecifierNode()   {}
func (*ListTypeSpecifier) typeSpecifierNode()    {}
func (*CursorTypeSpecifier) typeSpecifierNode()  {}
func (*GenericTypeSpecifier) typeSpecifierNode() {}
