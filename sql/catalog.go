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

package sql

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dolthub/go-relational-compiler/sql/ast"
)

// ObjectKind identifies the category of a catalog object.
type ObjectKind uint8

const (
	ScalarTypeObject ObjectKind = iota
	TableVarObject
	OperatorObject
)

func (k ObjectKind) String() string {
	switch k {
	case ScalarTypeObject:
		return "scalar type"
	case TableVarObject:
		return "table variable"
	case OperatorObject:
		return "operator"
	default:
		return "object"
	}
}

// Object is a named entity stored in a catalog.
type Object interface {
	// Name returns the fully qualified name of the object.
	Name() string
	ObjectKind() ObjectKind
	// IsSessionObject reports whether the object only lives for a session.
	IsSessionObject() bool
	// IsATObject reports whether the object is a transaction-local copy.
	IsATObject() bool
}

// NameResolutionPath is the ordered list of libraries searched when
// resolving unqualified names. Earlier entries take precedence.
type NameResolutionPath []string

// Unqualified returns the last segment of a dotted name.
func Unqualified(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Qualified joins a namespace and a name.
func Qualified(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// Library returns the leading segment of a dotted name, or the empty string.
func Library(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// MatchesName reports whether an object with the given fully qualified name
// is designated by the possibly partially qualified reference.
func MatchesName(objectName, reference string) bool {
	if objectName == reference {
		return true
	}
	return strings.HasSuffix(objectName, "."+reference)
}

// TableVar is a named relation variable, either stored in a device or derived
// from an expression over other table variables.
type TableVar struct {
	name    string
	Type    *TableType
	Keys    [][]string
	Device  string
	session bool
	at      bool
	// Source is the global table variable an AT copy stands in for.
	Source *TableVar

	IsDerived  bool
	Definition ast.Expression

	mu                sync.Mutex
	reinferReferences bool
	references        []string
}

var _ Object = (*TableVar)(nil)

// NewTableVar creates a base table variable.
func NewTableVar(name string, typ *TableType, device string, keys ...[]string) *TableVar {
	return &TableVar{name: name, Type: typ, Device: device, Keys: keys}
}

// NewDerivedTableVar creates a table variable defined by an expression.
// Its references are inferred on first use.
func NewDerivedTableVar(name string, typ *TableType, definition ast.Expression) *TableVar {
	return &TableVar{
		name:              name,
		Type:              typ,
		IsDerived:         true,
		Definition:        definition,
		reinferReferences: true,
	}
}

// NewSessionTableVar creates a table variable scoped to a session.
func NewSessionTableVar(name string, typ *TableType, device string) *TableVar {
	tv := NewTableVar(name, typ, device)
	tv.session = true
	return tv
}

// NewATTableVar creates a transaction-local copy of the given table variable.
func NewATTableVar(name string, source *TableVar) *TableVar {
	return &TableVar{
		name:   name,
		Type:   source.Type,
		Keys:   source.Keys,
		Device: source.Device,
		at:     true,
		Source: source,
	}
}

func (t *TableVar) Name() string           { return t.name }
func (t *TableVar) ObjectKind() ObjectKind { return TableVarObject }
func (t *TableVar) IsSessionObject() bool  { return t.session }
func (t *TableVar) IsATObject() bool       { return t.at }
func (t *TableVar) String() string         { return t.name }

// ShouldReinferReferences reports whether the references of a derived table
// variable must be inferred again before use.
func (t *TableVar) ShouldReinferReferences() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reinferReferences
}

// InvalidateReferences marks the references of a derived table variable as
// stale.
func (t *TableVar) InvalidateReferences() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.IsDerived {
		t.reinferReferences = true
	}
}

// SetReferences stores the inferred references and clears the stale flag.
func (t *TableVar) SetReferences(refs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.references = refs
	t.reinferReferences = false
}

// References returns the table variables a derived table variable reads.
func (t *TableVar) References() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.references...)
}

// HasKey reports whether the given column set covers one of the keys.
func (t *TableVar) HasKey(columns []string) ([]string, bool) {
	for _, key := range t.Keys {
		covered := true
		for _, k := range key {
			found := false
			for _, c := range columns {
				if c == k {
					found = true
					break
				}
			}
			if !found {
				covered = false
				break
			}
		}
		if covered && len(key) > 0 {
			return key, true
		}
	}
	return nil, false
}

// Modifier describes how an argument is passed to an operator.
type Modifier uint8

const (
	ModifierIn Modifier = iota
	ModifierVar
	ModifierConst
)

func (m Modifier) String() string {
	switch m {
	case ModifierVar:
		return "var "
	case ModifierConst:
		return "const "
	default:
		return ""
	}
}

// SignatureElement is a single parameter of an operator signature.
type SignatureElement struct {
	Type     Type
	Modifier Modifier
	// Optional parameters may be omitted from the end of a call.
	Optional bool
}

// Signature is the ordered list of parameters of an operator, or the list of
// argument types at a call site.
type Signature []SignatureElement

// NewSignature builds a signature of in parameters with the given types.
func NewSignature(types ...Type) Signature {
	s := make(Signature, len(types))
	for i, t := range types {
		s[i] = SignatureElement{Type: t}
	}
	return s
}

// Arity returns the minimum and maximum number of arguments accepted.
func (s Signature) Arity() (int, int) {
	min := len(s)
	for min > 0 && s[min-1].Optional {
		min--
	}
	return min, len(s)
}

// Types returns the parameter types.
func (s Signature) Types() []Type {
	types := make([]Type, len(s))
	for i, e := range s {
		types[i] = e.Type
	}
	return types
}

// Equals reports whether both signatures declare the same parameter types.
func (s Signature) Equals(o Signature) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Type.Equals(o[i].Type) || s[i].Modifier != o[i].Modifier {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		part := e.Modifier.String() + e.Type.String()
		if e.Optional {
			part += "?"
		}
		parts[i] = part
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Characteristics are the static properties of an operator or plan node.
type Characteristics struct {
	IsFunctional    bool
	IsDeterministic bool
	IsRepeatable    bool
	IsNilable       bool
	IsLiteral       bool
}

// Operator is a single overload of a named operator.
type Operator struct {
	name            string
	Signature       Signature
	ReturnType      Type
	Characteristics Characteristics
	IsDeprecated    bool
	session         bool
	at              bool

	mu sync.Mutex
	// Deferred operators have not had their body bound since they were
	// loaded from a declaration and must be recompiled before use.
	deferred bool
	body     interface{}
}

var _ Object = (*Operator)(nil)

// NewOperator creates a functional, deterministic operator overload.
func NewOperator(name string, signature Signature, returnType Type) *Operator {
	return &Operator{
		name:       name,
		Signature:  signature,
		ReturnType: returnType,
		Characteristics: Characteristics{
			IsFunctional:    true,
			IsDeterministic: true,
			IsRepeatable:    true,
		},
	}
}

// NewDeferredOperator creates an operator overload whose body must be
// recompiled from its stored declaration before it can be used.
func NewDeferredOperator(name string, signature Signature, returnType Type) *Operator {
	op := NewOperator(name, signature, returnType)
	op.deferred = true
	return op
}

// AsSessionOperator marks the operator as session scoped.
func (o *Operator) AsSessionOperator() *Operator {
	o.session = true
	return o
}

// AsATOperator marks the operator as a transaction-local copy.
func (o *Operator) AsATOperator() *Operator {
	o.at = true
	return o
}

func (o *Operator) Name() string           { return o.name }
func (o *Operator) ObjectKind() ObjectKind { return OperatorObject }
func (o *Operator) IsSessionObject() bool  { return o.session }
func (o *Operator) IsATObject() bool       { return o.at }

func (o *Operator) String() string {
	return o.name + o.Signature.String()
}

// IsDeferred reports whether the operator body still has to be bound.
func (o *Operator) IsDeferred() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deferred
}

// Body returns the bound body of the operator, if any.
func (o *Operator) Body() interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.body
}

// Bind stores the compiled body and clears the deferred flag.
func (o *Operator) Bind(body interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.body = body
	o.deferred = false
}

// Defer marks the operator as needing recompilation.
func (o *Operator) Defer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deferred = true
	o.body = nil
}

// OperatorMap holds every overload that shares an operator name.
type OperatorMap struct {
	name      string
	mu        sync.RWMutex
	operators []*Operator
}

// NewOperatorMap creates an empty operator map.
func NewOperatorMap(name string) *OperatorMap {
	return &OperatorMap{name: name}
}

func (m *OperatorMap) Name() string { return m.name }

// Add registers an overload. Overloads with identical signatures collide.
func (m *OperatorMap) Add(op *Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.operators {
		if o.Signature.Equals(op.Signature) {
			return ErrDuplicateIdentifier.New(op.String(), o.String())
		}
	}
	m.operators = append(m.operators, op)
	return nil
}

// Remove unregisters an overload and reports whether it was present.
func (m *OperatorMap) Remove(op *Operator) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.operators {
		if o == op {
			m.operators = append(m.operators[:i], m.operators[i+1:]...)
			return true
		}
	}
	return false
}

// Operators returns a snapshot of the registered overloads.
func (m *OperatorMap) Operators() []*Operator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Operator(nil), m.operators...)
}

// Len returns the number of overloads.
func (m *OperatorMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.operators)
}

// Conversion is a directed edge between two scalar types, implemented by a
// conversion operator.
type Conversion struct {
	Source      *ScalarType
	Target      *ScalarType
	Operator    *Operator
	IsNarrowing bool
}

func (c *Conversion) String() string {
	arrow := "->"
	if c.IsNarrowing {
		arrow = "~>"
	}
	return fmt.Sprintf("%s %s %s", c.Source, arrow, c.Target)
}

// ConversionGraph exposes the declared conversions between scalar types.
type ConversionGraph interface {
	// ConversionsFrom returns every conversion whose source is the given type.
	ConversionsFrom(source *ScalarType) []*Conversion
}

// Catalog is the read interface the compiler uses to look up declared
// objects. Implementations must be safe for concurrent use.
type Catalog interface {
	ConversionGraph
	// ResolveName looks up an object by name along the given path. When the
	// name designates more than one object at the same path level, the object
	// is nil and the colliding names are returned.
	ResolveName(ctx *Context, name string, path NameResolutionPath) (Object, []string)
	// ResolveOperatorName looks up an operator map the same way ResolveName
	// looks up objects.
	ResolveOperatorName(ctx *Context, name string, path NameResolutionPath) (*OperatorMap, []string)
	// ObjectNames returns the names of every visible object, used for
	// suggestions in diagnostics.
	ObjectNames() []string
	// Device returns the storage device with the given name.
	Device(name string) (Device, bool)
}

// Device is a storage device that can evaluate parts of a plan.
type Device interface {
	Name() string
	// Supports reports whether the device can evaluate the given operator.
	Supports(op *Operator) bool
}

// DeviceReconciler is implemented by catalogs whose devices may hold objects
// not yet known to the catalog.
type DeviceReconciler interface {
	// Reconcile asks the default device for an object with the given name
	// and registers it when found. It reports whether the catalog changed.
	Reconcile(ctx *Context, device, name string) (bool, error)
}

// CatalogListener is notified of catalog changes that invalidate cached
// resolutions.
type CatalogListener interface {
	ConversionChanged(c *Conversion)
	OperatorChanged(name string)
	ScalarTypeChanged(t *ScalarType)
}

// ObservableCatalog is a catalog that notifies listeners of changes.
type ObservableCatalog interface {
	Catalog
	Subscribe(l CatalogListener)
}

// DeclarationStore persists the source text of declarations so that objects
// can be recompiled on demand.
type DeclarationStore interface {
	// Declaration returns the stored text for the named object.
	Declaration(name string) (string, error)
	// PutDeclaration stores the text of a declaration and the names of the
	// objects it depends on.
	PutDeclaration(name, text string, dependencies []string) error
	// Dependents returns the names of objects that depend on the named one.
	Dependents(name string) ([]string, error)
	DeleteDeclaration(name string) error
}
