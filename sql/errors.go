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

	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrUnknownIdentifier is returned when a name cannot be resolved in any
	// scope.
	ErrUnknownIdentifier = errors.NewKind("unknown identifier %q%s")

	// ErrAmbiguousIdentifier is returned when a name designates more than one
	// symbol or object at the same precedence.
	ErrAmbiguousIdentifier = errors.NewKind("ambiguous identifier %q, could be any of: %v")

	// ErrUnableToResolveQualifier is returned when no prefix of a qualified
	// name resolves.
	ErrUnableToResolveQualifier = errors.NewKind("unable to resolve qualifier %q")

	// ErrUnknownColumn is returned when a row or table does not have the
	// referenced column.
	ErrUnknownColumn = errors.NewKind("%s does not have a column named %q")

	// ErrNoConversion is returned when no conversion path exists between two
	// types.
	ErrNoConversion = errors.NewKind("no conversion from %s to %s%s")

	// ErrAmbiguousConversion is returned when several equally good conversion
	// paths exist between two types.
	ErrAmbiguousConversion = errors.NewKind("ambiguous conversion from %s to %s, candidates: %v")

	// ErrColumnConversion is returned for a single mismatched column of a
	// structural conversion.
	ErrColumnConversion = errors.NewKind("column %q: %s")

	// ErrNoSignatureForArity is returned when no overload of an operator
	// accepts the number of arguments given.
	ErrNoSignatureForArity = errors.NewKind("no signature of operator %q takes %d arguments")

	// ErrAmbiguousOperatorCall is returned when several overloads match a call
	// equally well.
	ErrAmbiguousOperatorCall = errors.NewKind("ambiguous call to %s%s, matching overloads: %v")

	// ErrNoOperatorMatch is returned when no overload of an operator can be
	// called with the given argument types.
	ErrNoOperatorMatch = errors.NewKind("no overload of %s matches %s%s")

	// ErrUnknownOperator is returned when no operator with the given name
	// exists.
	ErrUnknownOperator = errors.NewKind("unknown operator %q%s")

	// ErrInvalidContext is returned when a statement appears where it is not
	// allowed, such as break outside of a loop.
	ErrInvalidContext = errors.NewKind("%s is not allowed %s")

	// ErrInternal is returned for unexpected failures inside the compiler.
	// This error is indicative of a bug.
	ErrInternal = errors.NewKind("internal compiler error: %v")

	// ErrInvalidChildrenNumber is returned when the WithChildren method of a
	// node is called with an invalid number of arguments.
	ErrInvalidChildrenNumber = errors.NewKind("%T: invalid children number, got %d, expected %d")

	// ErrDuplicateIdentifier is returned when a new name collides with a
	// visible one.
	ErrDuplicateIdentifier = errors.NewKind("duplicate identifier %q, conflicts with %v")

	// ErrTypeMismatch is returned when an expression has a type not allowed
	// where it appears.
	ErrTypeMismatch = errors.NewKind("expected a value of type %s, found %s")

	// ErrMissingType is returned when the type of a declaration cannot be
	// determined.
	ErrMissingType = errors.NewKind("cannot determine the type of %q")

	// ErrConstantAssignment is returned when assigning to a constant.
	ErrConstantAssignment = errors.NewKind("cannot assign to constant %q")

	// ErrOptimizerPass is reported as a warning when an optimizer pass fails.
	ErrOptimizerPass = errors.NewKind("optimizer pass %s failed: %v")

	// ErrUnknownDevice is returned when a table variable names a device the
	// catalog does not know.
	ErrUnknownDevice = errors.NewKind("unknown device %q")

	// ErrDeclarationNotFound is returned when no stored declaration exists for
	// an object that needs recompiling.
	ErrDeclarationNotFound = errors.NewKind("no declaration stored for %q")

	// ErrCircularRecompile is returned when recompiling an object requires
	// recompiling itself.
	ErrCircularRecompile = errors.NewKind("circular recompilation of %q")

	// ErrInvalidConfig is returned when a compiler configuration is malformed.
	ErrInvalidConfig = errors.NewKind("invalid configuration: %s")
)

// Warnings. These kinds are only ever attached to messages of warning
// severity.
var (
	WarnNarrowingConversion = errors.NewKind("narrowing conversion from %s to %s")
	WarnShadowedIdentifier  = errors.NewKind("identifier %q shadows %v")
	WarnDeprecatedOperator  = errors.NewKind("operator %s is deprecated")
	WarnUnreachableBranch   = errors.NewKind("%s branch is never taken")
	WarnRedundantConstruct  = errors.NewKind("redundant %s")
)

var errorCodes = map[*errors.Kind]int{
	ErrUnknownIdentifier:        1001,
	ErrAmbiguousIdentifier:      1002,
	ErrUnableToResolveQualifier: 1003,
	ErrUnknownColumn:            1004,
	ErrNoConversion:             1101,
	ErrAmbiguousConversion:      1102,
	ErrColumnConversion:         1103,
	ErrNoSignatureForArity:      1201,
	ErrAmbiguousOperatorCall:    1202,
	ErrNoOperatorMatch:          1203,
	ErrUnknownOperator:          1204,
	ErrInvalidContext:           1301,
	ErrDuplicateIdentifier:      1302,
	ErrTypeMismatch:             1303,
	ErrMissingType:              1304,
	ErrConstantAssignment:       1305,
	ErrOptimizerPass:            1401,
	ErrUnknownDevice:            1402,
	ErrDeclarationNotFound:      1501,
	ErrCircularRecompile:        1502,
	ErrInvalidConfig:            1601,
	ErrInternal:                 1901,
	ErrInvalidChildrenNumber:    1902,
	WarnNarrowingConversion:     2001,
	WarnShadowedIdentifier:      2002,
	WarnDeprecatedOperator:      2003,
	WarnUnreachableBranch:       2004,
	WarnRedundantConstruct:      2005,
}

// CompileError carries a compiler error together with the source location
// of the statement or expression that raised it.
type CompileError struct {
	Err    error
	Line   int
	Column int
	// Fatal errors abort the compilation of the remaining statements.
	Fatal bool
}

// NewCompileError attaches a source location to err. If err already has a
// location it is returned unchanged.
func NewCompileError(err error, line, column int) *CompileError {
	if ce, ok := err.(*CompileError); ok {
		return ce
	}
	return &CompileError{Err: err, Line: line, Column: column}
}

// NewFatalError returns err flagged as fatal.
func NewFatalError(err error, line, column int) *CompileError {
	ce := NewCompileError(err, line, column)
	ce.Fatal = true
	return ce
}

func (e *CompileError) Error() string {
	if e.Line == 0 && e.Column == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Err.Error())
}

// Cause returns the wrapped error.
func (e *CompileError) Cause() error { return e.Err }

func (e *CompileError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a fatal compile error.
func IsFatal(err error) bool {
	ce, ok := err.(*CompileError)
	return ok && ce.Fatal
}

// Is reports whether err, or the error a CompileError wraps, is of the given
// kind.
func Is(kind *errors.Kind, err error) bool {
	for err != nil {
		if kind.Is(err) {
			return true
		}
		ce, ok := err.(*CompileError)
		if !ok {
			return false
		}
		err = ce.Err
	}
	return false
}

// ErrorCode returns the numeric code of the kind of err, or 0 when err is not
// a known compiler error.
func ErrorCode(err error) int {
	if ce, ok := err.(*CompileError); ok {
		err = ce.Err
	}
	for kind, code := range errorCodes {
		if kind.Is(err) {
			return code
		}
	}
	return 0
}
