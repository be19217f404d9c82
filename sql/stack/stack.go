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

// Package stack implements the compile-time symbol stack that tracks the
// local variables and row contexts visible while a tree is compiled.
package stack

import (
	"fmt"
	"strings"

	"github.com/dolthub/go-relational-compiler/sql"
)

// Symbol is a single entry of the stack.
type Symbol struct {
	// Name is empty for row contexts, whose columns are visible directly.
	Name       string
	Type       sql.Type
	IsConstant bool
	IsModified bool
}

// NewSymbol creates a symbol.
func NewSymbol(name string, typ sql.Type) *Symbol {
	return &Symbol{Name: name, Type: typ}
}

// NewRowContext creates an unnamed symbol whose row columns are visible by
// name.
func NewRowContext(row *sql.RowType) *Symbol {
	return &Symbol{Type: row}
}

func (s *Symbol) String() string {
	if s.Name == "" {
		return fmt.Sprintf("<row %s>", s.Type)
	}
	return fmt.Sprintf("%s: %s", s.Name, s.Type)
}

// CollisionPolicy decides how case-insensitive name collisions are
// resolved.
type CollisionPolicy uint8

const (
	// CollisionAmbiguous reports every collision as ambiguous unless exactly
	// one candidate matches with the same case.
	CollisionAmbiguous CollisionPolicy = iota
	// CollisionPreferExact lets the innermost same-case match shadow the
	// others, which are reported as shadowed.
	CollisionPreferExact
)

// ParseCollisionPolicy parses the configuration name of a policy.
func ParseCollisionPolicy(s string) (CollisionPolicy, bool) {
	switch strings.ToLower(s) {
	case "", "ambiguous":
		return CollisionAmbiguous, true
	case "prefer-exact":
		return CollisionPreferExact, true
	}
	return CollisionAmbiguous, false
}

// Location addresses a symbol, or a column of a row symbol, relative to the
// top of the stack.
type Location struct {
	// Index is the distance from the top of the stack; 0 is the top.
	Index int
	// Column is the index of the column within a row symbol, or -1.
	Column int
	Name   string
}

// IsColumn reports whether the location addresses a row column.
func (l Location) IsColumn() bool { return l.Column >= 0 }

// Resolution is the outcome of resolving a variable name.
type Resolution struct {
	Location Location
	Symbol   *Symbol
	Found    bool
	// Ambiguous lists the colliding candidates when no single one wins.
	Ambiguous []string
	// Shadowed lists candidates hidden by the selected one.
	Shadowed []string
}

type window struct {
	base   int
	frames int
}

// Stack is the compile-time symbol stack. Frames delimit scopes; windows
// hide everything pushed before them except a bounded number of entries, so
// that sub-compilations only see their own locals.
type Stack struct {
	symbols  []*Symbol
	frames   []int
	windows  []window
	policy   CollisionPolicy
	maxDepth int
}

// New creates an empty stack.
func New(policy CollisionPolicy) *Stack {
	return &Stack{policy: policy}
}

// Len returns the number of symbols on the stack.
func (s *Stack) Len() int { return len(s.symbols) }

// MaxDepth returns the highest number of symbols the stack ever held.
func (s *Stack) MaxDepth() int { return s.maxDepth }

// FrameCount returns the number of open frames.
func (s *Stack) FrameCount() int { return len(s.frames) }

// Policy returns the collision policy of the stack.
func (s *Stack) Policy() CollisionPolicy { return s.policy }

func (s *Stack) base() int {
	if len(s.windows) == 0 {
		return 0
	}
	return s.windows[len(s.windows)-1].base
}

// Push adds a symbol on top of the stack.
func (s *Stack) Push(sym *Symbol) {
	s.symbols = append(s.symbols, sym)
	if len(s.symbols) > s.maxDepth {
		s.maxDepth = len(s.symbols)
	}
}

// Pop removes the top symbol. Popping below the current frame or window is
// an internal error and panics.
func (s *Stack) Pop() *Symbol {
	floor := s.base()
	if len(s.frames) > 0 && s.frames[len(s.frames)-1] > floor {
		floor = s.frames[len(s.frames)-1]
	}
	if len(s.symbols) <= floor {
		panic(sql.ErrInternal.New("symbol stack underflow"))
	}
	top := s.symbols[len(s.symbols)-1]
	s.symbols = s.symbols[:len(s.symbols)-1]
	return top
}

// Peek returns the symbol at the given distance from the top.
func (s *Stack) Peek(index int) *Symbol {
	i := len(s.symbols) - 1 - index
	if index < 0 || i < 0 {
		return nil
	}
	return s.symbols[i]
}

// Guard releases a frame or window. Release is idempotent, so guards can be
// released with defer right after they are taken.
type Guard struct {
	s        *Stack
	depth    int
	frames   int
	windows  int
	window   bool
	released bool
}

// Release pops the frame or window the guard was created for, removing
// every symbol pushed since.
func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	s := g.s
	if g.window {
		if len(s.windows) != g.windows+1 {
			panic(sql.ErrInternal.New("unbalanced symbol stack window"))
		}
		s.windows = s.windows[:g.windows]
	} else if len(s.frames) != g.frames+1 {
		panic(sql.ErrInternal.New("unbalanced symbol stack frame"))
	}
	if len(s.symbols) < g.depth {
		panic(sql.ErrInternal.New(fmt.Sprintf("symbol stack depth %d below frame depth %d", len(s.symbols), g.depth)))
	}
	for i := g.depth; i < len(s.symbols); i++ {
		s.symbols[i] = nil
	}
	s.symbols = s.symbols[:g.depth]
	s.frames = s.frames[:g.frames]
}

// PushFrame opens a new scope.
func (s *Stack) PushFrame() *Guard {
	g := &Guard{s: s, depth: len(s.symbols), frames: len(s.frames), windows: len(s.windows)}
	s.frames = append(s.frames, len(s.symbols))
	return g
}

// PushWindow opens a window that hides every symbol already on the stack
// except the top extraDepth ones. A window also opens a frame.
func (s *Stack) PushWindow(extraDepth int) *Guard {
	if extraDepth < 0 || extraDepth > len(s.symbols) {
		panic(sql.ErrInternal.New(fmt.Sprintf("invalid window depth %d", extraDepth)))
	}
	g := &Guard{s: s, depth: len(s.symbols), frames: len(s.frames), windows: len(s.windows), window: true}
	s.windows = append(s.windows, window{base: len(s.symbols) - extraDepth, frames: len(s.frames)})
	s.frames = append(s.frames, len(s.symbols))
	return g
}

type candidate struct {
	loc   Location
	sym   *Symbol
	exact bool
	desc  string
}

// ResolveVariable looks up a name among the visible symbols, searching from
// the top. Names match symbol names and the column names of row symbols,
// case-insensitively.
func (s *Stack) ResolveVariable(name string) Resolution {
	var candidates []candidate
	top := len(s.symbols) - 1
	for i := top; i >= s.base(); i-- {
		sym := s.symbols[i]
		if sym.Name != "" && strings.EqualFold(sym.Name, name) {
			candidates = append(candidates, candidate{
				loc:   Location{Index: top - i, Column: -1, Name: sym.Name},
				sym:   sym,
				exact: sym.Name == name,
				desc:  sym.Name,
			})
		}
		row, ok := sym.Type.(*sql.RowType)
		if !ok {
			continue
		}
		for ci, col := range row.Columns {
			if strings.EqualFold(col.Name, name) {
				desc := col.Name
				if sym.Name != "" {
					desc = sym.Name + "." + col.Name
				}
				candidates = append(candidates, candidate{
					loc:   Location{Index: top - i, Column: ci, Name: col.Name},
					sym:   sym,
					exact: col.Name == name,
					desc:  desc,
				})
			}
		}
	}

	switch len(candidates) {
	case 0:
		return Resolution{}
	case 1:
		return found(candidates[0], nil)
	}

	var exact []candidate
	for _, c := range candidates {
		if c.exact {
			exact = append(exact, c)
		}
	}

	if len(exact) == 1 {
		return found(exact[0], describeExcept(candidates, exact[0]))
	}

	if s.policy == CollisionPreferExact && len(exact) > 1 {
		return found(exact[0], describeExcept(candidates, exact[0]))
	}

	descs := make([]string, len(candidates))
	for i, c := range candidates {
		descs[i] = c.desc
	}
	return Resolution{Ambiguous: descs}
}

func found(c candidate, shadowed []string) Resolution {
	return Resolution{Location: c.loc, Symbol: c.sym, Found: true, Shadowed: shadowed}
}

func describeExcept(candidates []candidate, keep candidate) []string {
	var result []string
	for _, c := range candidates {
		if c.loc != keep.loc {
			result = append(result, c.desc)
		}
	}
	return result
}

// IsValidNewIdentifier reports whether a new symbol with the given name can
// be pushed without colliding with a visible one. The colliding names are
// returned otherwise.
func (s *Stack) IsValidNewIdentifier(name string) (bool, []string) {
	var collisions []string
	for i := len(s.symbols) - 1; i >= s.base(); i-- {
		sym := s.symbols[i]
		if sym.Name != "" && strings.EqualFold(sym.Name, name) {
			collisions = append(collisions, sym.Name)
		}
	}
	return len(collisions) == 0, collisions
}

// VisibleNames returns the names of every visible symbol and row column.
func (s *Stack) VisibleNames() []string {
	var names []string
	for i := len(s.symbols) - 1; i >= s.base(); i-- {
		sym := s.symbols[i]
		if sym.Name != "" {
			names = append(names, sym.Name)
		}
		if row, ok := sym.Type.(*sql.RowType); ok {
			names = append(names, row.Columns.Names()...)
		}
	}
	return names
}

func (s *Stack) String() string {
	var sb strings.Builder
	for i := len(s.symbols) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%d: %s\n", len(s.symbols)-1-i, s.symbols[i])
	}
	return sb.String()
}
