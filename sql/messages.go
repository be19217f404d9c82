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
	"sync"

	"go.uber.org/multierr"
)

// Severity is the severity of a compiler message.
type Severity uint8

const (
	Information Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Information:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Message is a diagnostic produced during compilation.
type Message struct {
	Severity Severity
	Code     int
	Err      error
	Line     int
	Column   int
}

func (m *Message) String() string {
	if m.Line == 0 && m.Column == 0 {
		return fmt.Sprintf("%s %d: %s", m.Severity, m.Code, m.Err)
	}
	return fmt.Sprintf("%s %d (%d:%d): %s", m.Severity, m.Code, m.Line, m.Column, m.Err)
}

// Messages accumulates the diagnostics of a compilation. It is safe for
// concurrent use.
type Messages struct {
	mu    sync.Mutex
	items []*Message
}

// NewMessages creates an empty message list.
func NewMessages() *Messages {
	return &Messages{}
}

// Add appends a message with the given severity. Location information is
// taken from err when it is a CompileError.
func (m *Messages) Add(severity Severity, err error, line, column int) {
	if ce, ok := err.(*CompileError); ok {
		if ce.Line != 0 || ce.Column != 0 {
			line, column = ce.Line, ce.Column
		}
		if ce.Fatal && severity < Fatal {
			severity = Fatal
		}
		err = ce.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range multierr.Errors(err) {
		m.items = append(m.items, &Message{
			Severity: severity,
			Code:     ErrorCode(e),
			Err:      e,
			Line:     line,
			Column:   column,
		})
	}
}

// AddError appends err as an error, or as fatal when it is flagged so.
func (m *Messages) AddError(err error) {
	m.Add(Error, err, 0, 0)
}

// Warn appends a warning at the given location.
func (m *Messages) Warn(err error, line, column int) {
	m.Add(Warning, err, line, column)
}

// Append copies the messages of o into m.
func (m *Messages) Append(o *Messages) {
	if o == nil || o == m {
		return
	}
	items := o.Items()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
}

// Items returns a snapshot of the messages.
func (m *Messages) Items() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Message(nil), m.items...)
}

// Len returns the number of messages.
func (m *Messages) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Messages) bySeverity(min Severity) []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Message
	for _, msg := range m.items {
		if msg.Severity >= min {
			result = append(result, msg)
		}
	}
	return result
}

// Errors returns the messages of error or fatal severity.
func (m *Messages) Errors() []*Message {
	return m.bySeverity(Error)
}

// Warnings returns the messages of warning severity.
func (m *Messages) Warnings() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Message
	for _, msg := range m.items {
		if msg.Severity == Warning {
			result = append(result, msg)
		}
	}
	return result
}

// HasErrors reports whether any error or fatal message was recorded.
func (m *Messages) HasErrors() bool {
	return len(m.Errors()) > 0
}

// HasFatal reports whether a fatal message was recorded.
func (m *Messages) HasFatal() bool {
	return len(m.bySeverity(Fatal)) > 0
}

// Err combines every error message into a single error, or returns nil.
func (m *Messages) Err() error {
	var err error
	for _, msg := range m.Errors() {
		err = multierr.Append(err, &CompileError{
			Err:    msg.Err,
			Line:   msg.Line,
			Column: msg.Column,
			Fatal:  msg.Severity == Fatal,
		})
	}
	return err
}
