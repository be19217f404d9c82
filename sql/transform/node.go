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

// Package transform rewrites and traverses plan trees.
package transform

import (
	"github.com/dolthub/go-relational-compiler/sql/plan"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// TreeIdentity tracks whether a rewrite changed a tree.
type TreeIdentity bool

const (
	SameTree TreeIdentity = true
	NewTree  TreeIdentity = false
)

// NodeFunc is a function that rewrites a single node.
type NodeFunc func(n plan.Node) (plan.Node, TreeIdentity, error)

// StackNodeFunc is a NodeFunc that also receives the symbol stack as it is
// at the node being rewritten.
type StackNodeFunc func(n plan.Node, stk *stack.Stack) (plan.Node, TreeIdentity, error)

// Node applies a transformation function to the given tree from the bottom
// up. Each callback [f] returns a TreeIdentity that is aggregated into a
// final output indicating whether the tree was changed.
func Node(n plan.Node, f NodeFunc) (plan.Node, TreeIdentity, error) {
	children := n.Children()
	if len(children) == 0 {
		return f(n)
	}

	var newChildren []plan.Node
	for i, c := range children {
		c, same, err := Node(c, f)
		if err != nil {
			return nil, SameTree, err
		}
		if !same {
			if newChildren == nil {
				newChildren = make([]plan.Node, len(children))
				copy(newChildren, children)
			}
			newChildren[i] = c
		}
	}

	sameC := SameTree
	if len(newChildren) > 0 {
		sameC = NewTree
		var err error
		n, err = n.WithChildren(newChildren...)
		if err != nil {
			return nil, SameTree, err
		}
	}

	n, sameN, err := f(n)
	if err != nil {
		return nil, SameTree, err
	}
	return n, sameC && sameN, nil
}

// NodeTopDown applies a transformation function to the given tree from the
// top down. Children of the node returned by [f] are visited next.
func NodeTopDown(n plan.Node, f NodeFunc) (plan.Node, TreeIdentity, error) {
	n, sameN, err := f(n)
	if err != nil {
		return nil, SameTree, err
	}

	children := n.Children()
	var newChildren []plan.Node
	for i, c := range children {
		c, same, err := NodeTopDown(c, f)
		if err != nil {
			return nil, SameTree, err
		}
		if !same {
			if newChildren == nil {
				newChildren = make([]plan.Node, len(children))
				copy(newChildren, children)
			}
			newChildren[i] = c
		}
	}

	if len(newChildren) == 0 {
		return n, sameN, nil
	}
	n, err = n.WithChildren(newChildren...)
	if err != nil {
		return nil, SameTree, err
	}
	return n, NewTree, nil
}

// NodeWithStack applies a transformation function to the given tree from
// the bottom up, keeping stk in the state the compiler had at every node.
// A frame is pushed for every child, a window instead for children compiled
// in isolation, followed by the symbols the parent scopes to that child.
// The stack depth is the same on return, even when [f] fails.
func NodeWithStack(n plan.Node, stk *stack.Stack, f StackNodeFunc) (plan.Node, TreeIdentity, error) {
	children := n.Children()

	var newChildren []plan.Node
	for i, c := range children {
		c, same, err := childWithStack(n, i, c, stk, f)
		if err != nil {
			return nil, SameTree, err
		}
		if !same {
			if newChildren == nil {
				newChildren = make([]plan.Node, len(children))
				copy(newChildren, children)
			}
			newChildren[i] = c
		}
	}

	sameC := SameTree
	if len(newChildren) > 0 {
		sameC = NewTree
		var err error
		n, err = n.WithChildren(newChildren...)
		if err != nil {
			return nil, SameTree, err
		}
	}

	n, sameN, err := f(n, stk)
	if err != nil {
		return nil, SameTree, err
	}
	return n, sameC && sameN, nil
}

func childWithStack(parent plan.Node, i int, child plan.Node, stk *stack.Stack, f StackNodeFunc) (plan.Node, TreeIdentity, error) {
	guard := EnterChild(parent, i, stk)
	defer guard.Release()
	return NodeWithStack(child, stk, f)
}

// EnterChild prepares stk for the child i of parent and returns the guard
// that undoes it.
func EnterChild(parent plan.Node, i int, stk *stack.Stack) *stack.Guard {
	var guard *stack.Guard
	if w, ok := parent.(plan.Windowed); ok && w.ChildWindow(i) {
		guard = stk.PushWindow(0)
	} else {
		guard = stk.PushFrame()
	}
	if s, ok := parent.(plan.Scoped); ok {
		for _, sym := range s.ChildScope(i) {
			stk.Push(sym)
		}
	}
	return guard
}
