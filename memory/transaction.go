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
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dolthub/go-relational-compiler/sql"
)

// Transaction is an application transaction whose overlay copies are kept in
// the catalog under transaction-private names. Callers must hold the lock
// while calling ResolveName, ResolveOperatorName, EnsureMapped, AddTableVar
// and AddOperator.
type Transaction struct {
	sync.Mutex
	id      string
	catalog *Catalog

	tables    map[string]string
	operators map[string]string

	global int32
	lookup int32
}

var _ sql.Transaction = (*Transaction)(nil)

// NewTransaction starts a transaction over the given catalog.
func NewTransaction(catalog *Catalog) *Transaction {
	return &Transaction{
		id:        uuid.NewString(),
		catalog:   catalog,
		tables:    make(map[string]string),
		operators: make(map[string]string),
	}
}

func (t *Transaction) ID() string { return t.id }

func (t *Transaction) IsGlobalContext() bool { return atomic.LoadInt32(&t.global) > 0 }
func (t *Transaction) IsLookup() bool        { return atomic.LoadInt32(&t.lookup) > 0 }
func (t *Transaction) PushGlobalContext()    { atomic.AddInt32(&t.global, 1) }
func (t *Transaction) PopGlobalContext()     { atomic.AddInt32(&t.global, -1) }
func (t *Transaction) PushLookup()           { atomic.AddInt32(&t.lookup, 1) }
func (t *Transaction) PopLookup()            { atomic.AddInt32(&t.lookup, -1) }

func (t *Transaction) privateName(name string) string {
	return "AT_" + t.id[:8] + "." + name
}

func lookup(names map[string]string, name string) (string, bool) {
	if global, ok := names[name]; ok {
		return global, true
	}
	var found string
	for alias, global := range names {
		if sql.MatchesName(alias, name) {
			if found != "" {
				return "", false
			}
			found = global
		}
	}
	return found, found != ""
}

// ResolveName implements sql.Transaction.
func (t *Transaction) ResolveName(name string) (string, bool) {
	return lookup(t.tables, name)
}

// ResolveOperatorName implements sql.Transaction.
func (t *Transaction) ResolveOperatorName(name string) (string, bool) {
	return lookup(t.operators, name)
}

// EnsureMapped implements sql.Transaction. Global table variables get a
// transaction-local copy on first use; other objects are returned as is.
func (t *Transaction) EnsureMapped(_ *sql.Context, obj sql.Object) (sql.Object, error) {
	tv, ok := obj.(*sql.TableVar)
	if !ok || tv.IsDerived || tv.IsSessionObject() {
		return obj, nil
	}

	if private, ok := t.tables[tv.Name()]; ok {
		if mapped, _ := t.catalog.ResolveName(nil, private, nil); mapped != nil {
			return mapped, nil
		}
	}

	at := sql.NewATTableVar(t.privateName(tv.Name()), tv)
	if err := t.catalog.AddTableVar(at); err != nil {
		return nil, err
	}
	t.tables[tv.Name()] = at.Name()
	return at, nil
}

// AddTableVar creates a table variable that only exists inside the
// transaction, visible under the given name.
func (t *Transaction) AddTableVar(name string, typ *sql.TableType, device string) (*sql.TableVar, error) {
	source := sql.NewTableVar(name, typ, device)
	at := sql.NewATTableVar(t.privateName(name), source)
	if err := t.catalog.AddTableVar(at); err != nil {
		return nil, err
	}
	t.tables[name] = at.Name()
	return at, nil
}

// AddOperator creates an operator that only exists inside the transaction.
func (t *Transaction) AddOperator(name string, signature sql.Signature, returnType sql.Type) (*sql.Operator, error) {
	private := t.privateName(name)
	op := sql.NewOperator(private, signature, returnType).AsATOperator()
	if err := t.catalog.AddOperator(op); err != nil {
		return nil, err
	}
	t.operators[name] = private
	return op, nil
}

// Tables returns the global names of the table variables mapped so far.
func (t *Transaction) Tables() []string {
	names := make([]string, 0, len(t.tables))
	for name := range t.tables {
		names = append(names, name)
	}
	return names
}
