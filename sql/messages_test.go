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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestMessagesSeverity(t *testing.T) {
	require := require.New(t)

	m := NewMessages()
	m.Warn(WarnRedundantConstruct.New("projection over every column"), 3, 7)
	m.AddError(NewCompileError(ErrUnknownIdentifier.New("Foo", ""), 4, 1))
	m.AddError(NewFatalError(ErrMissingType.New("x"), 5, 2))

	require.Equal(3, m.Len())
	require.Len(m.Warnings(), 1)
	require.Len(m.Errors(), 2)
	require.True(m.HasErrors())
	require.True(m.HasFatal())

	w := m.Warnings()[0]
	require.Equal(Warning, w.Severity)
	require.Equal(2005, w.Code)
	require.Equal(3, w.Line)
	require.Equal(7, w.Column)

	errs := m.Errors()
	require.Equal(Error, errs[0].Severity)
	require.Equal(4, errs[0].Line)
	require.Equal(Fatal, errs[1].Severity)
}

func TestMessagesSplitsCombinedErrors(t *testing.T) {
	require := require.New(t)

	err := multierr.Combine(
		ErrInvalidConfig.New("a"),
		ErrInvalidConfig.New("b"),
	)
	m := NewMessages()
	m.Add(Error, err, 1, 1)
	require.Len(m.Errors(), 2)

	combined := m.Err()
	require.Len(multierr.Errors(combined), 2)
	for _, e := range multierr.Errors(combined) {
		require.True(Is(ErrInvalidConfig, e))
	}
}

func TestMessagesAppend(t *testing.T) {
	require := require.New(t)

	a := NewMessages()
	a.Warn(WarnDeprecatedOperator.New("Old"), 1, 1)
	b := NewMessages()
	b.AddError(ErrInternal.New("boom"))

	a.Append(b)
	a.Append(a)
	a.Append(nil)
	require.Equal(2, a.Len())
	require.Nil(NewMessages().Err())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrUnknownIdentifier.New("x", ""), 1001},
		{ErrNoOperatorMatch.New("iAddition", "(String)", ""), 1203},
		{NewCompileError(ErrCircularRecompile.New("f"), 2, 3), 1502},
		{ErrUnknownDevice.New("Nowhere"), 1402},
		{fmt.Errorf("plain"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}

func TestCompileError(t *testing.T) {
	require := require.New(t)

	ce := NewCompileError(ErrConstantAssignment.New("pi"), 2, 5)
	require.Equal(`2:5: cannot assign to constant "pi"`, ce.Error())
	require.Same(ce, NewCompileError(ce, 9, 9))
	require.False(IsFatal(ce))
	require.True(IsFatal(NewFatalError(ce, 0, 0)))
	require.True(Is(ErrConstantAssignment, ce))
	require.False(Is(ErrInternal, ce))
}
