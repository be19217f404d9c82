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

// Package resolve binds identifiers and operator calls to symbols and
// catalog objects.
package resolve

import (
	"sync"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// Recompiler rebinds the body of a deferred operator.
type Recompiler interface {
	RecompileOperator(ctx *sql.Context, op *sql.Operator) error
}

// Reinferrer recomputes the references of a derived table variable.
type Reinferrer interface {
	ReinferReferences(ctx *sql.Context, tv *sql.TableVar) error
}

// Scope is the per compilation state the resolvers consult on top of the
// catalog. A Scope is not safe for concurrent use.
type Scope struct {
	Stack *stack.Stack
	Path  sql.NameResolutionPath
	// PlanObjects maps the aliases of objects created by this compilation.
	PlanObjects *sql.SessionObjects
	// PlanOperatorNames maps the aliases of operators created by this
	// compilation.
	PlanOperatorNames *sql.SessionObjects

	Recompiler Recompiler
	Reinferrer Reinferrer

	mu            sync.Mutex
	planOperators map[string]*sql.OperatorMap
	reconciling   bool
}

// NewScope creates a scope over the given stack.
func NewScope(stk *stack.Stack, path sql.NameResolutionPath) *Scope {
	return &Scope{
		Stack:             stk,
		Path:              path,
		PlanObjects:       sql.NewSessionObjects(),
		PlanOperatorNames: sql.NewSessionObjects(),
		planOperators:     make(map[string]*sql.OperatorMap),
	}
}

// AddPlanOperator registers an operator that only exists for the current
// compilation.
func (s *Scope) AddPlanOperator(op *sql.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.planOperators[op.Name()]
	if !ok {
		m = sql.NewOperatorMap(op.Name())
		s.planOperators[op.Name()] = m
	}
	return m.Add(op)
}

// PlanOperators returns the plan-local operator map with the given name.
func (s *Scope) PlanOperators(name string) (*sql.OperatorMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for mapName, m := range s.planOperators {
		if sql.MatchesName(mapName, name) {
			return m, true
		}
	}
	return nil, false
}
