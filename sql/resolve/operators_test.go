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

package resolve

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dolthub/go-relational-compiler/memory"
	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/conversion"
)

func newOperatorResolver(t *testing.T, c *memory.Catalog, metrics *sql.CacheMetrics) *OperatorResolver {
	t.Helper()
	convCache, err := conversion.NewCache(0, nil)
	require.NoError(t, err)
	opCache, err := NewOperatorCache(0, metrics)
	require.NoError(t, err)
	c.Subscribe(convCache)
	c.Subscribe(opCache)
	return NewOperatorResolver(c, conversion.NewResolver(c, convCache), opCache, Options{})
}

func TestResolveOperator(t *testing.T) {
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	long := scalar(t, c, "System.Long")
	dec := scalar(t, c, "System.Decimal")
	str := scalar(t, c, "System.String")
	boolean := scalar(t, c, "System.Boolean")

	tests := []struct {
		name     string
		operator string
		call     sql.Signature
		exact    bool
		expected string
		err      interface{ Is(error) bool }
	}{
		{"exact", "iAddition", sql.NewSignature(integer, integer), false, "System.iAddition(System.Integer, System.Integer)", nil},
		{"widening", "iAddition", sql.NewSignature(integer, dec), false, "System.iAddition(System.Decimal, System.Decimal)", nil},
		{"widening through long", "iAddition", sql.NewSignature(long, dec), false, "System.iAddition(System.Decimal, System.Decimal)", nil},
		{"nil argument", "iAddition", sql.NewSignature(sql.Nil, str), false, "System.iAddition(System.String, System.String)", nil},
		{"qualified", "System.iNot", sql.NewSignature(boolean), false, "System.iNot(System.Boolean)", nil},
		{"optional argument omitted", "Round", sql.NewSignature(dec), false, "System.Round(System.Decimal, System.Integer?)", nil},
		{"optional argument given", "Round", sql.NewSignature(integer, integer), false, "System.Round(System.Decimal, System.Integer?)", nil},
		{"exact required", "iAddition", sql.NewSignature(integer, dec), true, "", sql.ErrNoOperatorMatch},
		{"no arity", "Length", sql.NewSignature(str, str, str), false, "", sql.ErrNoSignatureForArity},
		{"no conversion", "Length", sql.NewSignature(boolean), false, "", sql.ErrNoOperatorMatch},
		{"unknown", "Lenght", sql.NewSignature(str), false, "", sql.ErrUnknownOperator},
	}

	r := newOperatorResolver(t, c, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			m, err := r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), tt.operator, tt.call, tt.exact)
			if tt.err != nil {
				require.Error(err)
				require.True(tt.err.Is(err), "unexpected error %s", err)
				return
			}
			require.NoError(err)
			require.Equal(tt.expected, m.Operator.String())
		})
	}
}

func TestResolveOperatorArgumentConversions(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	dec := scalar(t, c, "System.Decimal")
	r := newOperatorResolver(t, c, nil)

	m, err := r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "iAddition", sql.NewSignature(integer, dec), false)
	require.NoError(err)
	require.False(m.IsExact())
	require.False(m.IsNarrowing())
	require.Equal(1, m.PathLength)

	require.False(m.Arguments[0].Exact)
	require.Len(m.Arguments[0].Conversion.Path, 1)
	require.Equal("System.Integer -> System.Decimal", m.Arguments[0].Conversion.Path.String())
	require.True(m.Arguments[1].Exact)
}

func TestResolveOperatorNarrowing(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	dec := scalar(t, c, "System.Decimal")
	require.NoError(c.AddOperator(sql.NewOperator("Shop.Quantity", sql.NewSignature(integer), integer)))

	m, err := newOperatorResolver(t, c, nil).ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "Quantity", sql.NewSignature(dec), false)
	require.NoError(err)
	require.True(m.IsNarrowing())
	require.Equal(-2, m.NarrowingScore)
	require.Equal(2, m.PathLength)
}

func TestResolveOperatorAmbiguousOptional(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")

	one := sql.NewOperator("Shop.f", sql.NewSignature(integer), integer)
	two := sql.NewOperator("Shop.f", sql.NewSignature(integer, integer), integer)
	two.Signature[1].Optional = true
	require.NoError(c.AddOperator(one))
	require.NoError(c.AddOperator(two))

	_, err := newOperatorResolver(t, c, nil).ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "f", sql.NewSignature(integer), false)
	require.Error(err)
	require.True(sql.ErrAmbiguousOperatorCall.Is(err))
	require.Contains(err.Error(), one.String())
	require.Contains(err.Error(), two.String())
}

func TestResolveOperatorClosestCandidate(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	boolean := scalar(t, c, "System.Boolean")
	str := scalar(t, c, "System.String")

	_, err := newOperatorResolver(t, c, nil).ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "iAnd", sql.NewSignature(boolean, str), false)
	require.True(sql.ErrNoOperatorMatch.Is(err))
	require.Contains(err.Error(), "closest candidate System.iAnd(System.Boolean, System.Boolean)")
	require.Contains(err.Error(), "argument 2: no conversion from System.String to System.Boolean")
}

func TestResolveOperatorVarArguments(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	long := scalar(t, c, "System.Long")

	inc := sql.NewOperator("Shop.Increment", sql.Signature{{Type: long, Modifier: sql.ModifierVar}}, nil)
	require.NoError(c.AddOperator(inc))
	r := newOperatorResolver(t, c, nil)

	_, err := r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "Increment", sql.Signature{{Type: integer, Modifier: sql.ModifierVar}}, false)
	require.True(sql.ErrNoOperatorMatch.Is(err))
	require.Contains(err.Error(), "must be exactly")

	m, err := r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "Increment", sql.Signature{{Type: long, Modifier: sql.ModifierVar}}, false)
	require.NoError(err)
	require.Equal(inc, m.Operator)
}

func TestResolveOperatorCache(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	dec := scalar(t, c, "System.Decimal")

	metrics := sql.NewCacheMetrics(nil, "operator")
	r := newOperatorResolver(t, c, metrics)
	ctx := sql.NewEmptyContext()
	call := sql.NewSignature(integer, dec)

	first, err := r.ResolveOperator(ctx, NewScope(nil, nil), "iAddition", call, false)
	require.NoError(err)
	require.Equal(1, r.Cache().Len())

	second, err := r.ResolveOperator(ctx, NewScope(nil, nil), "iAddition", call, false)
	require.NoError(err)
	require.Same(first, second)
	require.Equal(float64(1), testutil.ToFloat64(metrics.Hits))

	cold, err := newOperatorResolver(t, memory.NewSystemCatalog(), nil).ResolveOperator(ctx, NewScope(nil, nil), "iAddition", call, false)
	require.NoError(err)
	require.Equal(first.Operator.String(), cold.Operator.String())
	require.Equal(first.NarrowingScore, cold.NarrowingScore)
	require.Equal(first.PathLength, cold.PathLength)

	// a new overload of the operator evicts the entry
	require.NoError(c.AddOperator(sql.NewOperator("System.iAddition", sql.NewSignature(integer, dec), dec)))
	require.Equal(0, r.Cache().Len())
	exact, err := r.ResolveOperator(ctx, NewScope(nil, nil), "iAddition", call, false)
	require.NoError(err)
	require.True(exact.IsExact())
	require.Equal(1, r.Cache().Len())

	// so does a conversion leaving one of the argument types
	money := sql.NewScalarType("Shop.Money", sql.NativeDecimal)
	require.NoError(c.AddScalarType(money))
	require.NoError(c.AddConversion(&sql.Conversion{Source: integer, Target: money}))
	require.Equal(0, r.Cache().Len())
	require.Equal(float64(2), testutil.ToFloat64(metrics.Invalidations))
}

func TestResolveOperatorCacheSkipsStructuralAndSession(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	r := newOperatorResolver(t, c, nil)

	m, err := r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "Count", sql.NewSignature(ordersType(t, c)), false)
	require.NoError(err)
	require.Equal("System.Count", m.Operator.Name())
	require.Equal(0, r.Cache().Len())

	ctx := sql.NewEmptyContext()
	global := ctx.Session.Operators.Add("Bonus")
	bonus := sql.NewOperator(global, sql.NewSignature(integer), integer).AsSessionOperator()
	require.NoError(c.AddOperator(bonus))

	m, err = r.ResolveOperator(ctx, NewScope(nil, nil), "Bonus", sql.NewSignature(integer), false)
	require.NoError(err)
	require.Equal(bonus, m.Operator)
	require.Equal(0, r.Cache().Len())

	_, err = r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "Bonus", sql.NewSignature(integer), false)
	require.True(sql.ErrUnknownOperator.Is(err))
}

func TestResolveOperatorPlanOperators(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	dec := scalar(t, c, "System.Decimal")
	require.NoError(c.AddOperator(sql.NewOperator("Shop.Tax", sql.NewSignature(dec), dec)))

	scope := NewScope(nil, nil)
	local := sql.NewOperator("Tax", sql.NewSignature(integer), integer)
	require.NoError(scope.AddPlanOperator(local))

	r := newOperatorResolver(t, c, nil)
	m, err := r.ResolveOperator(sql.NewEmptyContext(), scope, "Tax", sql.NewSignature(integer), false)
	require.NoError(err)
	require.Equal(local, m.Operator)

	m, err = r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "Tax", sql.NewSignature(integer), false)
	require.NoError(err)
	require.Equal("Shop.Tax", m.Operator.Name())
}

func TestResolveOperatorTransactionOverlay(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	require.NoError(c.AddOperator(sql.NewOperator("Shop.Discount", sql.NewSignature(integer), integer)))

	ctx := sql.NewEmptyContext()
	tx := memory.NewTransaction(c)
	ctx.Session.BeginTransaction(tx)
	tx.Lock()
	private, err := tx.AddOperator("Shop.Discount", sql.NewSignature(integer), integer)
	tx.Unlock()
	require.NoError(err)

	m, err := newOperatorResolver(t, c, nil).ResolveOperator(ctx, NewScope(nil, nil), "Discount", sql.NewSignature(integer), false)
	require.NoError(err)
	require.Equal(private, m.Operator)
}

type recompiler struct {
	compiled []string
}

func (r *recompiler) RecompileOperator(_ *sql.Context, op *sql.Operator) error {
	r.compiled = append(r.compiled, op.Name())
	op.Bind("body")
	return nil
}

func TestResolveOperatorDeferred(t *testing.T) {
	require := require.New(t)
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	op := sql.NewDeferredOperator("Shop.Later", sql.NewSignature(integer), integer)
	require.NoError(c.AddOperator(op))
	r := newOperatorResolver(t, c, nil)

	_, err := r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "Later", sql.NewSignature(integer), false)
	require.True(sql.ErrDeclarationNotFound.Is(err))

	scope := NewScope(nil, nil)
	rc := new(recompiler)
	scope.Recompiler = rc
	m, err := r.ResolveOperator(sql.NewEmptyContext(), scope, "Later", sql.NewSignature(integer), false)
	require.NoError(err)
	require.Equal(op, m.Operator)
	require.False(op.IsDeferred())
	require.Equal([]string{"Shop.Later"}, rc.compiled)
}

func TestResolveOperatorConcurrentUse(t *testing.T) {
	c := memory.NewSystemCatalog()
	integer := scalar(t, c, "System.Integer")
	long := scalar(t, c, "System.Long")
	dec := scalar(t, c, "System.Decimal")
	r := newOperatorResolver(t, c, nil)

	calls := []sql.Signature{
		sql.NewSignature(integer, dec),
		sql.NewSignature(long, integer),
		sql.NewSignature(dec, dec),
	}

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for _, call := range calls {
				if _, err := r.ResolveOperator(sql.NewEmptyContext(), NewScope(nil, nil), "iMultiplication", call, false); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 3, r.Cache().Len())
}
