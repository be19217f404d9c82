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
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// SessionObjects maps the names a session uses for its private objects to
// the unique global names they are stored under in the catalog.
type SessionObjects struct {
	mu      sync.RWMutex
	objects map[string]string
}

// NewSessionObjects creates an empty session object map.
func NewSessionObjects() *SessionObjects {
	return &SessionObjects{objects: make(map[string]string)}
}

// GlobalName generates a unique global name for a session object.
func GlobalName(name string) string {
	return "Session_" + uuid.NewString() + "." + Unqualified(name)
}

// Add maps alias to a freshly generated global name and returns it.
func (s *SessionObjects) Add(alias string) string {
	global := GlobalName(alias)
	s.Set(alias, global)
	return global
}

// Set maps alias to the given global name.
func (s *SessionObjects) Set(alias, global string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[alias] = global
}

// Lookup returns the global name mapped to alias.
func (s *SessionObjects) Lookup(alias string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	global, ok := s.objects[alias]
	return global, ok
}

// Remove drops the mapping for alias.
func (s *SessionObjects) Remove(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, alias)
}

// Aliases returns every mapped alias.
func (s *SessionObjects) Aliases() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	aliases := make([]string, 0, len(s.objects))
	for alias := range s.objects {
		aliases = append(aliases, alias)
	}
	return aliases
}

var sessionIDs uint32

// Session holds the state of a single connection to the compiler.
type Session struct {
	id uint32
	// Objects maps session table variable names to global names.
	Objects *SessionObjects
	// Operators maps session operator names to global operator names.
	Operators *SessionObjects

	logger *logrus.Entry

	mu           sync.Mutex
	transactions []Transaction
}

// NewSession creates a new session with a unique id.
func NewSession() *Session {
	id := atomic.AddUint32(&sessionIDs, 1)
	return &Session{
		id:        id,
		Objects:   NewSessionObjects(),
		Operators: NewSessionObjects(),
		logger:    logrus.WithField("session", id),
	}
}

// ID returns the unique id of the session.
func (s *Session) ID() uint32 { return s.id }

// GetLogger returns the logger of the session.
func (s *Session) GetLogger() *logrus.Entry {
	return s.logger
}

// SetLogger replaces the logger of the session.
func (s *Session) SetLogger(l *logrus.Entry) {
	s.logger = l
}

// BeginTransaction pushes a transaction onto the session's transaction stack.
func (s *Session) BeginTransaction(tx Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, tx)
}

// EndTransaction pops the innermost transaction.
func (s *Session) EndTransaction() Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transactions) == 0 {
		return nil
	}
	tx := s.transactions[len(s.transactions)-1]
	s.transactions = s.transactions[:len(s.transactions)-1]
	return tx
}

// Transaction returns the innermost active transaction, or nil.
func (s *Session) Transaction() Transaction {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.transactions) == 0 {
		return nil
	}
	return s.transactions[len(s.transactions)-1]
}

// Transaction is the overlay of objects private to an application
// transaction. Lookups against the overlay must hold its lock.
type Transaction interface {
	sync.Locker
	ID() string
	// IsGlobalContext reports whether the transaction is temporarily
	// resolving against the global catalog.
	IsGlobalContext() bool
	// IsLookup reports whether the transaction is resolving lookup tables
	// of a transaction join.
	IsLookup() bool
	PushGlobalContext()
	PopGlobalContext()
	PushLookup()
	PopLookup()
	// ResolveName returns the global name of an overlay object.
	ResolveName(name string) (string, bool)
	// ResolveOperatorName returns the global name of an overlay operator.
	ResolveOperatorName(name string) (string, bool)
	// EnsureMapped returns the transaction-local copy of a global object,
	// creating it on first use.
	EnsureMapped(ctx *Context, obj Object) (Object, error)
}

// Context of the compilation.
type Context struct {
	context.Context
	*Session
	tracer opentracing.Tracer
}

// ContextOption is a function to configure the context.
type ContextOption func(*Context)

// WithSession adds the given session to the context.
func WithSession(s *Session) ContextOption {
	return func(ctx *Context) {
		ctx.Session = s
	}
}

// WithTracer adds the given tracer to the context.
func WithTracer(t opentracing.Tracer) ContextOption {
	return func(ctx *Context) {
		ctx.tracer = t
	}
}

// NewContext creates a new compilation context.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	c := &Context{
		Context: ctx,
		Session: NewSession(),
		tracer:  opentracing.NoopTracer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewEmptyContext returns a default context with default values.
func NewEmptyContext() *Context { return NewContext(context.TODO()) }

// Span creates a new tracing span with the given context.
// It will return the span and a new context that should be passed to all
// children of this span.
func (c *Context) Span(
	opName string,
	opts ...opentracing.StartSpanOption,
) (opentracing.Span, *Context) {
	parentSpan := opentracing.SpanFromContext(c.Context)
	if parentSpan != nil {
		opts = append(opts, opentracing.ChildOf(parentSpan.Context()))
	}
	span := c.tracer.StartSpan(opName, opts...)
	ctx := opentracing.ContextWithSpan(c.Context, span)

	return span, c.WithContext(ctx)
}

// WithContext returns a new context with the given underlying context.
func (c *Context) WithContext(ctx context.Context) *Context {
	nc := *c
	nc.Context = ctx
	return &nc
}
