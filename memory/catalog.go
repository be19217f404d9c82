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
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dolthub/go-relational-compiler/sql"
)

// Catalog is an in-memory catalog of scalar types, table variables,
// operators, conversions and devices.
type Catalog struct {
	mu          sync.RWMutex
	objects     map[string]sql.Object
	operators   map[string]*sql.OperatorMap
	conversions map[string][]*sql.Conversion
	devices     map[string]*Device
	listeners   []sql.CatalogListener
}

var _ sql.ObservableCatalog = (*Catalog)(nil)
var _ sql.DeviceReconciler = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		objects:     make(map[string]sql.Object),
		operators:   make(map[string]*sql.OperatorMap),
		conversions: make(map[string][]*sql.Conversion),
		devices:     make(map[string]*Device),
	}
}

// Subscribe registers a listener for catalog changes.
func (c *Catalog) Subscribe(l sql.CatalogListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Catalog) notify(f func(l sql.CatalogListener)) {
	c.mu.RLock()
	listeners := append([]sql.CatalogListener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, l := range listeners {
		f(l)
	}
}

func (c *Catalog) addObject(obj sql.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.objects[obj.Name()]; ok {
		return sql.ErrDuplicateIdentifier.New(obj.Name(), []string{existing.Name()})
	}
	c.objects[obj.Name()] = obj
	return nil
}

// AddScalarType declares a scalar type.
func (c *Catalog) AddScalarType(t *sql.ScalarType) error {
	if err := c.addObject(t); err != nil {
		return err
	}
	c.notify(func(l sql.CatalogListener) { l.ScalarTypeChanged(t) })
	return nil
}

// DropScalarType removes a scalar type and every conversion involving it.
func (c *Catalog) DropScalarType(name string) error {
	c.mu.Lock()
	obj, ok := c.objects[name]
	t, isType := obj.(*sql.ScalarType)
	if !ok || !isType {
		c.mu.Unlock()
		return sql.ErrUnknownIdentifier.New(name, "")
	}
	delete(c.objects, name)
	delete(c.conversions, name)
	for source, convs := range c.conversions {
		kept := convs[:0]
		for _, conv := range convs {
			if conv.Target != t {
				kept = append(kept, conv)
			}
		}
		c.conversions[source] = kept
	}
	c.mu.Unlock()

	c.notify(func(l sql.CatalogListener) { l.ScalarTypeChanged(t) })
	return nil
}

// AddTableVar declares a table variable.
func (c *Catalog) AddTableVar(tv *sql.TableVar) error {
	return c.addObject(tv)
}

// DropTableVar removes a table variable. Derived table variables referencing
// it have their references invalidated.
func (c *Catalog) DropTableVar(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.objects[name].(*sql.TableVar); !ok {
		return sql.ErrUnknownIdentifier.New(name, "")
	}
	delete(c.objects, name)
	for _, obj := range c.objects {
		tv, ok := obj.(*sql.TableVar)
		if !ok || !tv.IsDerived {
			continue
		}
		if slices.Contains(tv.References(), name) {
			tv.InvalidateReferences()
		}
	}
	return nil
}

// AddOperator declares an operator overload.
func (c *Catalog) AddOperator(op *sql.Operator) error {
	c.mu.Lock()
	m, ok := c.operators[op.Name()]
	if !ok {
		m = sql.NewOperatorMap(op.Name())
		c.operators[op.Name()] = m
	}
	c.mu.Unlock()

	if err := m.Add(op); err != nil {
		return err
	}
	c.notify(func(l sql.CatalogListener) { l.OperatorChanged(op.Name()) })
	return nil
}

// RemoveOperator removes an operator overload.
func (c *Catalog) RemoveOperator(op *sql.Operator) bool {
	c.mu.RLock()
	m, ok := c.operators[op.Name()]
	c.mu.RUnlock()
	if !ok || !m.Remove(op) {
		return false
	}
	c.notify(func(l sql.CatalogListener) { l.OperatorChanged(op.Name()) })
	return true
}

// AddConversion declares a conversion between two scalar types. The
// conversion operator, when set, is declared as well.
func (c *Catalog) AddConversion(conv *sql.Conversion) error {
	if conv.Operator != nil {
		if err := c.AddOperator(conv.Operator); err != nil && !sql.ErrDuplicateIdentifier.Is(err) {
			return err
		}
	}
	c.mu.Lock()
	for _, existing := range c.conversions[conv.Source.Name()] {
		if existing.Target.Name() == conv.Target.Name() {
			c.mu.Unlock()
			return sql.ErrDuplicateIdentifier.New(conv.String(), []string{existing.String()})
		}
	}
	c.conversions[conv.Source.Name()] = append(c.conversions[conv.Source.Name()], conv)
	c.mu.Unlock()

	c.notify(func(l sql.CatalogListener) { l.ConversionChanged(conv) })
	return nil
}

// RemoveConversion removes the conversion between the given types.
func (c *Catalog) RemoveConversion(source, target *sql.ScalarType) bool {
	c.mu.Lock()
	convs := c.conversions[source.Name()]
	var removed *sql.Conversion
	for i, conv := range convs {
		if conv.Target.Name() == target.Name() {
			removed = conv
			c.conversions[source.Name()] = append(convs[:i:i], convs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if removed == nil {
		return false
	}
	c.notify(func(l sql.CatalogListener) { l.ConversionChanged(removed) })
	return true
}

// AddDevice registers a storage device.
func (c *Catalog) AddDevice(d *Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices[d.Name()] = d
}

// Device implements sql.Catalog.
func (c *Catalog) Device(name string) (sql.Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[name]
	if !ok {
		return nil, false
	}
	return d, true
}

// ConversionsFrom implements sql.ConversionGraph.
func (c *Catalog) ConversionsFrom(source *sql.ScalarType) []*sql.Conversion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*sql.Conversion(nil), c.conversions[source.Name()]...)
}

// ResolveName implements sql.Catalog. Session and transaction-local objects
// only resolve by their exact global name.
func (c *Catalog) ResolveName(_ *sql.Context, name string, path sql.NameResolutionPath) (sql.Object, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if obj, ok := c.objects[name]; ok {
		return obj, nil
	}
	var visible []string
	for key, obj := range c.objects {
		if !obj.IsSessionObject() && !obj.IsATObject() {
			visible = append(visible, key)
		}
	}
	key, names := resolve(visible, name, path)
	if key == "" {
		return nil, names
	}
	return c.objects[key], nil
}

// ResolveOperatorName implements sql.Catalog.
func (c *Catalog) ResolveOperatorName(_ *sql.Context, name string, path sql.NameResolutionPath) (*sql.OperatorMap, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.operators[name]; ok {
		return m, nil
	}
	var visible []string
	for key, m := range c.operators {
		if !isPrivate(m) {
			visible = append(visible, key)
		}
	}
	key, names := resolve(visible, name, path)
	if key == "" {
		return nil, names
	}
	return c.operators[key], nil
}

// isPrivate reports whether an operator map only holds session or
// transaction-local overloads. Those are reachable by their global name only.
func isPrivate(m *sql.OperatorMap) bool {
	ops := m.Operators()
	for _, op := range ops {
		if !op.IsSessionObject() && !op.IsATObject() {
			return false
		}
	}
	return len(ops) > 0
}

// resolve picks the single name designated by reference. Candidates in
// libraries earlier in the path win; several candidates at the same level
// are ambiguous.
func resolve(names []string, reference string, path sql.NameResolutionPath) (string, []string) {
	var matches []string
	for _, name := range names {
		if sql.MatchesName(name, reference) {
			matches = append(matches, name)
		}
	}
	slices.Sort(matches)

	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	}

	for _, lib := range path {
		var level []string
		for _, m := range matches {
			if strings.HasPrefix(m, lib+".") {
				level = append(level, m)
			}
		}
		switch len(level) {
		case 0:
			continue
		case 1:
			return level[0], nil
		default:
			return "", level
		}
	}
	return "", matches
}

// ObjectNames implements sql.Catalog.
func (c *Catalog) ObjectNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := maps.Keys(c.objects)
	slices.Sort(names)
	return names
}

// OperatorNames returns the names of every operator map.
func (c *Catalog) OperatorNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := maps.Keys(c.operators)
	slices.Sort(names)
	return names
}

// Reconcile implements sql.DeviceReconciler. Table variables the device
// holds but the catalog does not know yet are registered on demand.
func (c *Catalog) Reconcile(_ *sql.Context, device, name string) (bool, error) {
	c.mu.RLock()
	d, ok := c.devices[device]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}

	tv, ok := d.takePending(name)
	if !ok {
		return false, nil
	}
	if err := c.AddTableVar(tv); err != nil {
		return false, err
	}
	return true, nil
}
