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

	"github.com/dolthub/go-relational-compiler/sql"
)

// AllOperators makes a device support every operator.
const AllOperators = "*"

// Device is an in-memory storage device. It supports a fixed set of
// operators and may hold table variables the catalog has not seen yet.
type Device struct {
	name      string
	operators map[string]struct{}

	mu      sync.Mutex
	pending map[string]*sql.TableVar
}

var _ sql.Device = (*Device)(nil)

// NewDevice creates a device supporting the given operators, by unqualified
// name.
func NewDevice(name string, operators ...string) *Device {
	d := &Device{
		name:      name,
		operators: make(map[string]struct{}),
		pending:   make(map[string]*sql.TableVar),
	}
	for _, op := range operators {
		d.operators[op] = struct{}{}
	}
	return d
}

func (d *Device) Name() string { return d.name }

// Supports implements sql.Device.
func (d *Device) Supports(op *sql.Operator) bool {
	if _, ok := d.operators[AllOperators]; ok {
		return true
	}
	_, ok := d.operators[sql.Unqualified(op.Name())]
	return ok
}

// Store records a table variable held by the device that reconciliation
// will register with the catalog when it is first referenced.
func (d *Device) Store(tv *sql.TableVar) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tv.Device = d.name
	d.pending[tv.Name()] = tv
}

func (d *Device) takePending(name string) (*sql.TableVar, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, tv := range d.pending {
		if sql.MatchesName(key, name) {
			delete(d.pending, key)
			return tv, true
		}
	}
	return nil, false
}
