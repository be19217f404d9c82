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

package memory

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dolthub/go-relational-compiler/sql"
)

type declaration struct {
	text         string
	dependencies []string
}

// DeclarationStore keeps declaration text in memory.
type DeclarationStore struct {
	mu           sync.RWMutex
	declarations map[string]declaration
}

var _ sql.DeclarationStore = (*DeclarationStore)(nil)

func NewDeclarationStore() *DeclarationStore {
	return &DeclarationStore{declarations: make(map[string]declaration)}
}

// Declaration implements sql.DeclarationStore.
func (s *DeclarationStore) Declaration(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.declarations[name]
	if !ok {
		return "", sql.ErrDeclarationNotFound.New(name)
	}
	return d.text, nil
}

// PutDeclaration implements sql.DeclarationStore.
func (s *DeclarationStore) PutDeclaration(name, text string, dependencies []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declarations[name] = declaration{text: text, dependencies: append([]string(nil), dependencies...)}
	return nil
}

// Dependents implements sql.DeclarationStore.
func (s *DeclarationStore) Dependents(name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var dependents []string
	for n, d := range s.declarations {
		if slices.Contains(d.dependencies, name) {
			dependents = append(dependents, n)
		}
	}
	slices.Sort(dependents)
	return dependents, nil
}

// DeleteDeclaration implements sql.DeclarationStore.
func (s *DeclarationStore) DeleteDeclaration(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.declarations[name]; !ok {
		return sql.ErrDeclarationNotFound.New(name)
	}
	delete(s.declarations, name)
	return nil
}
