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

package transform

import (
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// Visitor visits nodes in the plan.
type Visitor interface {
	// Visit method is invoked for each node encountered by Walk.
	// If the result Visitor is not nil, Walk visits each of the children
	// of the node with that visitor, followed by a call of Visit(nil)
	// to the returned visitor.
	Visit(node plan.Node) Visitor
}

// Walk traverses the plan tree in depth-first order. It starts by calling
// v.Visit(node); node must not be nil. If the visitor returned by
// v.Visit(node) is not nil, Walk is invoked recursively with the returned
// visitor for each children of the node, followed by a call of v.Visit(nil)
// to the returned visitor.
func Walk(v Visitor, node plan.Node) {
	if v = v.Visit(node); v == nil {
		return
	}

	for _, child := range node.Children() {
		Walk(v, child)
	}

	v.Visit(nil)
}

type inspector func(plan.Node) bool

func (f inspector) Visit(node plan.Node) Visitor {
	if node == nil {
		return nil
	}
	if f(node) {
		return f
	}
	return nil
}

// Inspect performs a pre-order traversal of the plan tree. It calls
// f(node) and, if f returns true, inspects the children of node. It returns
// false when the traversal was cut short.
func Inspect(node plan.Node, f func(plan.Node) bool) (cont bool) {
	if !f(node) {
		return false
	}
	for _, child := range node.Children() {
		if !Inspect(child, f) {
			return false
		}
	}
	return true
}

// InspectWithStack is Inspect with the symbol stack kept in the state the
// compiler had at every node, like NodeWithStack.
func InspectWithStack(node plan.Node, stk *stack.Stack, f func(plan.Node, *stack.Stack) bool) bool {
	if !f(node, stk) {
		return false
	}
	for i, child := range node.Children() {
		guard := EnterChild(node, i, stk)
		cont := InspectWithStack(child, stk, f)
		guard.Release()
		if !cont {
			return false
		}
	}
	return true
}

// Collect returns every node of the tree for which f returns true, in
// pre-order.
func Collect(node plan.Node, f func(plan.Node) bool) []plan.Node {
	var result []plan.Node
	Inspect(node, func(n plan.Node) bool {
		if f(n) {
			result = append(result, n)
		}
		return true
	})
	return result
}
