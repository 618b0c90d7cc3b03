// Copyright 2020-2021 Dolthub, Inc.
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

package program

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/expression/function"
)

var testSchema = sql.Schema{
	{Name: "a", Type: sql.Int64},
	{Name: "b", Type: sql.Int64},
}

func gf(idx int, name string) *expression.GetField {
	return expression.NewGetFieldWithTable(idx, sql.Int64, "", name, false)
}

func lit(v int64) *expression.Literal {
	return expression.NewLiteral(v, sql.Int64)
}

func ref(idx int) *expression.LocalRef {
	return expression.NewLocalRef(idx, sql.Int64, false)
}

func call(op *expression.Operator, args ...sql.Expression) *expression.Call {
	return expression.NewCall(op, args...)
}

func buildTestProgram(t *testing.T) *Program {
	require := require.New(t)

	b := NewBuilder(testSchema)
	_, err := b.AddProject(call(function.Plus, gf(0, "a"), gf(1, "b")), "x")
	require.NoError(err)
	_, err = b.AddProject(expression.NewAlias("y", call(function.Plus, call(function.Plus, gf(0, "a"), gf(1, "b")), lit(1))), "")
	require.NoError(err)
	require.NoError(b.AddCondition(call(function.GreaterThan, gf(0, "a"), lit(1))))

	p, err := b.Program()
	require.NoError(err)
	return p
}

func TestBuilder(t *testing.T) {
	require := require.New(t)

	p := buildTestProgram(t)
	require.Equal(
		"exprs=[$0=a, $1=b, $2=($0 + $1), $3=1, $4=($2 + $3), $5=($0 > $3)], projects=[x=$2, y=$4], condition=$5",
		p.String(),
	)
	require.Equal([]string{"x", "y"}, p.Schema().Names())
	require.Equal(sql.Int64, p.Schema()[0].Type)
	require.False(p.IsTrivial())
	require.False(p.ContainsComplexExprs())

	exprs, err := p.ProjectExprs()
	require.NoError(err)
	require.Equal("(a + b) as x", exprs[0].String())
	require.Equal("((a + b) + 1) as y", exprs[1].String())
}

func TestBuilderConditionConjunction(t *testing.T) {
	require := require.New(t)

	b := NewBuilder(testSchema)
	require.NoError(b.AddIdentityProjects())
	require.NoError(b.AddCondition(call(function.GreaterThan, gf(0, "a"), lit(1))))
	require.NoError(b.AddCondition(call(function.LessThan, gf(1, "b"), lit(5))))

	p, err := b.Program()
	require.NoError(err)
	cond, err := p.Expand(p.Condition().Index())
	require.NoError(err)
	require.Equal("((a > 1) AND (b < 5))", cond.String())
}

func TestBuilderUnknownInput(t *testing.T) {
	b := NewBuilder(testSchema)
	_, err := b.AddExpr(gf(2, "c"))
	require.True(t, ErrUnknownInput.Is(err))
}

func TestEvaluate(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()
	p := buildTestProgram(t)

	row, ok, err := p.Evaluate(ctx, sql.NewRow(int64(2), int64(3)))
	require.NoError(err)
	require.True(ok)
	require.Equal(sql.NewRow(int64(5), int64(6)), row)

	_, ok, err = p.Evaluate(ctx, sql.NewRow(int64(1), int64(3)))
	require.NoError(err)
	require.False(ok)

	_, _, err = p.Evaluate(ctx, sql.NewRow(int64(1)))
	require.True(sql.ErrUnexpectedRowLength.Is(err))
}

func TestValidation(t *testing.T) {
	require := require.New(t)

	_, err := New(
		sql.Schema{{Name: "a", Type: sql.Int64}},
		[]sql.Expression{
			lit(1),
			call(function.Plus, ref(0), ref(2)),
			lit(2),
		},
		[]*expression.LocalRef{ref(7)},
		nil,
		ref(2),
	)
	require.Error(err)

	errs := multierr.Errors(err)
	require.Len(errs, 5)
	require.True(ErrInputSlot.Is(errs[0]))
	require.True(ErrForwardReference.Is(errs[1]))
	require.True(ErrRefOutOfRange.Is(errs[2]))
	require.True(ErrProjectNames.Is(errs[3]))
	require.True(ErrConditionType.Is(errs[4]))

	_, err = New(
		sql.Schema{{Name: "a", Type: sql.Int64}},
		[]sql.Expression{gf(0, "a"), ref(0)},
		nil, nil, nil,
	)
	require.True(ErrInvalidEntry.Is(err))
}

func TestIsTrivial(t *testing.T) {
	require := require.New(t)

	b := NewBuilder(testSchema)
	require.NoError(b.AddIdentityProjects())
	p, err := b.Program()
	require.NoError(err)
	require.True(p.IsTrivial())
	require.True(p.Schema().Equals(testSchema))

	b = NewBuilder(testSchema)
	_, err = b.AddProject(gf(1, "b"), "")
	require.NoError(err)
	_, err = b.AddProject(gf(0, "a"), "")
	require.NoError(err)
	p, err = b.Program()
	require.NoError(err)
	require.False(p.IsTrivial())
	require.Equal([]string{"b", "a"}, p.Names())
}

func TestNormalize(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	p, err := New(
		testSchema,
		[]sql.Expression{
			gf(0, "a"),
			gf(1, "b"),
			call(function.Mult, gf(0, "a"), lit(10)),
			call(function.Minus, ref(0), ref(1)),
			call(function.Mult, gf(0, "a"), lit(10)),
		},
		[]*expression.LocalRef{ref(2), ref(4)},
		[]string{"p", "q"},
		nil,
	)
	require.NoError(err)
	require.True(p.ContainsComplexExprs())

	n, err := p.Normalize()
	require.NoError(err)
	require.False(n.ContainsComplexExprs())
	require.Equal("exprs=[$0=a, $1=b, $2=10, $3=($0 * $2)], projects=[p=$3, q=$3]", n.String())

	for _, row := range []sql.Row{{int64(1), int64(2)}, {int64(-3), int64(0)}} {
		r1, _, err := p.Evaluate(ctx, row)
		require.NoError(err)
		r2, _, err := n.Evaluate(ctx, row)
		require.NoError(err)
		require.Equal(r1, r2)
	}
}

func TestMerge(t *testing.T) {
	require := require.New(t)
	ctx := sql.NewEmptyContext()

	b := NewBuilder(testSchema)
	_, err := b.AddProject(call(function.Plus, gf(0, "a"), gf(1, "b")), "s")
	require.NoError(err)
	_, err = b.AddProject(gf(0, "a"), "")
	require.NoError(err)
	require.NoError(b.AddCondition(call(function.GreaterThan, gf(1, "b"), lit(0))))
	bottom, err := b.Program()
	require.NoError(err)

	b = NewBuilder(bottom.Schema())
	_, err = b.AddProject(call(function.Mult, gf(0, "s"), lit(2)), "d")
	require.NoError(err)
	require.NoError(b.AddCondition(call(function.LessThan, gf(1, "a"), lit(10))))
	top, err := b.Program()
	require.NoError(err)

	merged, err := Merge(top, bottom)
	require.NoError(err)
	require.Equal([]string{"d"}, merged.Names())

	testCases := []struct {
		row      sql.Row
		expected sql.Row
	}{
		{sql.NewRow(int64(1), int64(2)), sql.NewRow(int64(6))},
		{sql.NewRow(int64(1), int64(-1)), nil},
		{sql.NewRow(int64(20), int64(1)), nil},
	}
	for _, tt := range testCases {
		row, ok, err := merged.Evaluate(ctx, tt.row)
		require.NoError(err)
		require.Equal(tt.expected != nil, ok)
		require.Equal(tt.expected, row)
	}

	_, err = Merge(bottom, top)
	require.True(ErrMergeMismatch.Is(err))
}

func TestBindVarDedupe(t *testing.T) {
	require := require.New(t)

	b := NewBuilder(testSchema)
	r1, err := b.AddExpr(expression.NewBindVar("v", sql.Int64))
	require.NoError(err)
	r2, err := b.AddExpr(expression.NewBindVar("v", sql.Int64))
	require.NoError(err)
	r3, err := b.AddExpr(expression.NewBindVar("w", sql.Int64))
	require.NoError(err)
	require.Equal(r1.Index(), r2.Index())
	require.NotEqual(r1.Index(), r3.Index())
}
