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

package analyzer

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/expression/function"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/program"
)

func splitTable(t *testing.T) *plan.ResolvedTable {
	return intTable(t, "t", []string{"a", "b"},
		sql.NewRow(int64(1), int64(2)),
		sql.NewRow(int64(5), int64(6)),
		sql.NewRow(int64(-3), int64(0)),
		sql.NewRow(int64(0), int64(7)),
	)
}

// splitBackends returns a backend X implementing a and c, and a backend Y
// implementing b and c.
func splitBackends(t *testing.T) []Backend {
	return []Backend{
		newBackend(t, BackendConfig{Name: "X", Operators: []string{"a", "c", ">"}, Literals: true, Conditions: true}),
		newBackend(t, BackendConfig{Name: "Y", Operators: []string{"b", "c"}, Literals: true}),
	}
}

func TestSplitTwoBackends(t *testing.T) {
	require := require.New(t)
	child := splitTable(t)
	calc := calcOver(t, child, func(b *program.Builder) {
		a := addExpr(t, b, expression.NewCall(opA, gf(0, "t", "a"), gf(1, "t", "b")))
		addProject(t, b, expression.NewCall(opB, a), "x")
	})

	s, err := NewCalcSplitter(nil, calc, splitBackends(t))
	require.NoError(err)

	la, err := s.chooseLevels()
	require.NoError(err)
	require.Equal([]int{-1, -1, 0, 1}, la.levels)
	require.Equal([]int{0, 1}, la.backends)

	result, err := s.Execute()
	require.NoError(err)

	calcs, base := calcChain(result)
	require.Equal([]string{"Y", "X"}, calcBackends(calcs))
	require.Equal(child, base)
	require.Equal([]string{"x"}, result.Schema().Names())
	require.Equal([]string{"$0"}, calcs[1].Schema().Names())

	requireSameRows(t, calc, result)
}

func TestSplitSingleBackend(t *testing.T) {
	require := require.New(t)
	child := splitTable(t)
	calc := calcOver(t, child, func(b *program.Builder) {
		c := addExpr(t, b, expression.NewCall(opC, gf(0, "t", "a")))
		addProject(t, b, expression.NewCall(opC, c), "x")
		addProject(t, b, gf(1, "t", "b"), "")
	})

	s, err := NewCalcSplitter(nil, calc, splitBackends(t))
	require.NoError(err)

	la, err := s.chooseLevels()
	require.NoError(err)
	require.Equal([]int{-1, -1, 0, 0}, la.levels)
	require.Equal([]int{0}, la.backends)

	result, err := s.Execute()
	require.NoError(err)

	calcs, base := calcChain(result)
	require.Equal([]string{"X"}, calcBackends(calcs))
	require.Equal(child, base)
	require.Equal([]string{"x", "b"}, result.Schema().Names())

	requireSameRows(t, calc, result)
}

func TestSplitCohorts(t *testing.T) {
	child := splitTable(t)
	calc := calcOver(t, child, func(b *program.Builder) {
		a := addExpr(t, b, expression.NewCall(opA, gf(0, "t", "a"), gf(1, "t", "b")))
		bb := addExpr(t, b, expression.NewCall(opB, a))
		addProject(t, b, expression.NewCall(opC, gf(0, "t", "a")), "p")
		addProject(t, b, expression.NewCall(opC, bb), "q")
	})

	t.Run("without cohorts", func(t *testing.T) {
		require := require.New(t)
		s, err := NewCalcSplitter(nil, calc, splitBackends(t))
		require.NoError(err)

		la, err := s.chooseLevels()
		require.NoError(err)
		require.Equal([]int{-1, -1, 0, 1, 0, 1}, la.levels)
	})

	t.Run("with cohorts", func(t *testing.T) {
		require := require.New(t)
		s, err := NewCalcSplitter(nil, calc, splitBackends(t))
		require.NoError(err)
		s = s.WithCohorts(func(*program.Program) [][]int {
			return [][]int{{4, 5}}
		})

		la, err := s.chooseLevels()
		require.NoError(err)
		require.Equal([]int{-1, -1, 0, 1, 1, 1}, la.levels)
		require.Equal([]int{0, 1}, la.backends)

		result, err := s.Execute()
		require.NoError(err)
		calcs, _ := calcChain(result)
		require.Equal([]string{"Y", "X"}, calcBackends(calcs))
		require.Equal([]string{"a", "$1"}, calcs[1].Schema().Names())

		requireSameRows(t, calc, result)
	})
}

func TestSplitCohortCycle(t *testing.T) {
	require := require.New(t)
	child := splitTable(t)
	calc := calcOver(t, child, func(b *program.Builder) {
		c := addExpr(t, b, expression.NewCall(opC, gf(0, "t", "a")))
		bb := addExpr(t, b, expression.NewCall(opB, c))
		addProject(t, b, expression.NewCall(opA, bb, gf(1, "t", "b")), "x")
	})

	// Entry 2 waits for the operands of entry 4, which depends on entry 2.
	cohorts := [][]int{{2, 4}}
	require.Equal([]int{0, 1, 2, 3, 4}, topologicalOrder(calc.Program.Exprs(), cohorts))

	s, err := NewCalcSplitter(nil, calc, splitBackends(t))
	require.NoError(err)
	s = s.WithCohorts(func(*program.Program) [][]int { return cohorts })

	la, err := s.chooseLevels()
	require.NoError(err)
	require.Equal([]int{-1, -1, 0, 1, 2}, la.levels)
	require.Equal([]int{0, 1, 0}, la.backends)

	result, err := s.Execute()
	require.NoError(err)
	calcs, _ := calcChain(result)
	require.Equal([]string{"X", "Y", "X"}, calcBackends(calcs))
	requireSameRows(t, calc, result)
}

func TestSplitCondition(t *testing.T) {
	require := require.New(t)
	child := splitTable(t)
	calc := calcOver(t, child, func(b *program.Builder) {
		a := addExpr(t, b, expression.NewCall(opA, gf(0, "t", "a"), gf(1, "t", "b")))
		bb := addExpr(t, b, expression.NewCall(opB, a))
		addProject(t, b, bb, "x")
		require.NoError(b.AddCondition(gt(bb, lit(10))))
	})

	s, err := NewCalcSplitter(nil, calc, splitBackends(t))
	require.NoError(err)

	la, err := s.chooseLevels()
	require.NoError(err)
	require.Equal([]int{0, 1, 0}, la.backends)
	// The literal is leveled like any other entry.
	require.Equal([]int{-1, -1, 0, 1, 0, 2}, la.levels)

	result, err := s.Execute()
	require.NoError(err)

	calcs, _ := calcChain(result)
	require.Equal([]string{"X", "Y", "X"}, calcBackends(calcs))
	require.NotNil(calcs[0].Program.Condition())
	require.Nil(calcs[1].Program.Condition())
	require.Nil(calcs[2].Program.Condition())

	rows, err := rowsOf(result)
	require.NoError(err)
	require.Equal([]sql.Row{{int64(22)}, {int64(14)}}, rows)
	requireSameRows(t, calc, result)
}

func TestSplitInputsOnly(t *testing.T) {
	child := splitTable(t)

	t.Run("trivial", func(t *testing.T) {
		require := require.New(t)
		calc := calcOver(t, child, func(b *program.Builder) {
			require.NoError(b.AddIdentityProjects())
		})
		s, err := NewCalcSplitter(nil, calc, splitBackends(t))
		require.NoError(err)

		result, err := s.Execute()
		require.NoError(err)
		require.Equal(child, result)
	})

	t.Run("renamed", func(t *testing.T) {
		require := require.New(t)
		calc := calcOver(t, child, func(b *program.Builder) {
			addProject(t, b, gf(0, "t", "a"), "z")
			addProject(t, b, gf(1, "t", "b"), "")
		})
		s, err := NewCalcSplitter(nil, calc, splitBackends(t))
		require.NoError(err)

		result, err := s.Execute()
		require.NoError(err)
		calcs, base := calcChain(result)
		require.Equal([]string{"X"}, calcBackends(calcs))
		require.Equal(child, base)
		require.Equal([]string{"z", "b"}, result.Schema().Names())
	})
}

func TestSplitErrors(t *testing.T) {
	child := splitTable(t)

	t.Run("cannot implement", func(t *testing.T) {
		require := require.New(t)
		opD := unaryOp("d", func(v int64) int64 { return v })
		calc := calcOver(t, child, func(b *program.Builder) {
			addProject(t, b, expression.NewCall(opD, gf(0, "t", "a")), "x")
		})
		s, err := NewCalcSplitter(nil, calc, splitBackends(t))
		require.NoError(err)

		_, err = s.Execute()
		require.True(ErrCannotImplement.Is(err))
	})

	t.Run("complex expression", func(t *testing.T) {
		require := require.New(t)
		schema := child.Schema()
		a, b := gf(0, "t", "a"), gf(1, "t", "b")
		nested := expression.NewCall(opB, expression.NewCall(opA, expression.NewLocalRef(0, sql.Int64, false), expression.NewLocalRef(1, sql.Int64, false)))
		p, err := program.New(
			schema,
			[]sql.Expression{a, b, nested},
			[]*expression.LocalRef{expression.NewLocalRef(2, sql.Int64, false)},
			[]string{"x"},
			nil,
		)
		require.NoError(err)

		s, err := NewCalcSplitter(nil, plan.NewCalc(p, child), splitBackends(t))
		require.NoError(err)
		_, err = s.Execute()
		require.True(ErrComplexExpression.Is(err))
	})

	t.Run("unhandled condition", func(t *testing.T) {
		require := require.New(t)
		v := plan.NewValues(sql.Schema{
			{Name: "a", Type: sql.Int64},
			{Name: "ok", Type: sql.Boolean},
		}, sql.NewRow(int64(1), true))
		calc := calcOver(t, v, func(b *program.Builder) {
			addProject(t, b, expression.NewGetField(0, sql.Int64, "a", false), "")
			require.NoError(b.AddCondition(expression.NewGetField(1, sql.Boolean, "ok", false)))
		})
		backends := []Backend{newBackend(t, BackendConfig{Name: "X"})}
		s, err := NewCalcSplitter(nil, calc, backends)
		require.NoError(err)

		_, err = s.Execute()
		require.True(ErrUnhandledCondition.Is(err))
	})

	t.Run("backends", func(t *testing.T) {
		require := require.New(t)
		calc := calcOver(t, child, func(b *program.Builder) {
			require.NoError(b.AddIdentityProjects())
		})

		_, err := NewCalcSplitter(nil, calc, nil)
		require.True(ErrNoBackends.Is(err))

		x := newBackend(t, BackendConfig{Name: "X"})
		_, err = NewCalcSplitter(nil, calc, []Backend{x, x})
		require.True(ErrDuplicateBackend.Is(err))
	})
}

func TestSplitterCanImplement(t *testing.T) {
	require := require.New(t)
	child := splitTable(t)
	calc := calcOver(t, child, func(b *program.Builder) {
		addProject(t, b, expression.NewCall(opC, gf(0, "t", "a")), "x")
	})
	other := calcOver(t, child, func(b *program.Builder) {
		addProject(t, b, expression.NewCall(opA, gf(0, "t", "a"), gf(1, "t", "b")), "x")
	})

	s, err := NewCalcSplitter(nil, calc, splitBackends(t))
	require.NoError(err)

	ok, err := s.CanImplement(calc, "X")
	require.NoError(err)
	require.True(ok)

	ok, err = s.CanImplement(other, "Y")
	require.NoError(err)
	require.False(ok)

	_, err = s.CanImplement(calc, "Z")
	require.True(ErrUnknownBackend.Is(err))
}

// randomCalc creates a calc over child whose program computes random
// arithmetic over its two input columns.
func randomCalc(seed int64, child sql.Node) (*plan.Calc, error) {
	r := rand.New(rand.NewSource(seed))
	ops := []*expression.Operator{function.Plus, function.Minus, function.Mult}

	b := program.NewBuilder(child.Schema())
	var refs []sql.Expression
	for i, col := range child.Schema() {
		ref, err := b.AddExpr(expression.NewGetField(i, col.Type, col.Name, col.Nullable))
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	n := 1 + r.Intn(8)
	for k := 0; k < n; k++ {
		var e sql.Expression
		if r.Intn(4) == 0 {
			e = lit(r.Int63n(10))
		} else {
			e = expression.NewCall(ops[r.Intn(len(ops))], refs[r.Intn(len(refs))], refs[r.Intn(len(refs))])
		}
		ref, err := b.AddExpr(e)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	if _, err := b.AddProject(refs[len(refs)-1], "out"); err != nil {
		return nil, err
	}
	if _, err := b.AddProject(refs[r.Intn(len(refs))], "extra"); err != nil {
		return nil, err
	}
	if r.Intn(2) == 0 {
		if err := b.AddCondition(gt(refs[r.Intn(len(refs))], lit(0))); err != nil {
			return nil, err
		}
	}

	p, err := b.Program()
	if err != nil {
		return nil, err
	}
	if p, err = p.Normalize(); err != nil {
		return nil, err
	}
	return plan.NewCalc(p, child), nil
}

// checkLevels verifies the level assignment of a program: every entry is
// computed at or after its operands, by a backend able to, and consecutive
// levels use different backends.
func checkLevels(p *program.Program, backends []Backend, la *levelAssignment) bool {
	exprs := p.Exprs()
	cond := -1
	if c := p.Condition(); c != nil {
		cond = c.Index()
	}

	for i, e := range exprs {
		if i < p.InputCount() {
			if la.levels[i] != -1 {
				return false
			}
			continue
		}

		level := la.levels[i]
		if level < 0 || level >= la.levelCount() {
			return false
		}
		if !backends[la.backends[level]].CanImplement(e, i == cond) {
			return false
		}
		for _, ref := range localRefs(e) {
			if la.levels[ref] > level {
				return false
			}
		}
	}

	for k := 1; k < la.levelCount(); k++ {
		if la.backends[k] == la.backends[k-1] {
			return false
		}
	}
	return true
}

// checkProjections verifies every level below the last passes on each
// entry a later level reads.
func checkProjections(p *program.Program, la *levelAssignment, maxUsing []int) bool {
	exprs := p.Exprs()
	levels := make([]int, len(la.levels))
	copy(levels, la.levels)
	if la.levelCount() > 1 {
		for i, e := range exprs {
			if isLiteral(e) {
				levels[i] = -1
			}
		}
	}

	for level := 0; level < la.levelCount()-1; level++ {
		projected := make(map[int]bool)
		for _, ord := range levelProjects(exprs, levels, maxUsing, level) {
			projected[ord] = true
		}

		for i, e := range exprs {
			if levels[i] <= level || isLiteral(e) {
				continue
			}
			for _, ref := range localRefs(e) {
				if !isLiteral(exprs[ref]) && levels[ref] <= level && !projected[ref] {
					return false
				}
			}
		}
	}
	return true
}

func TestSplitProperties(t *testing.T) {
	child := splitTable(t)
	backends := []Backend{
		newBackend(t, BackendConfig{Name: "X", Operators: []string{"+", "-", ">"}, Literals: true, Conditions: true}),
		newBackend(t, BackendConfig{Name: "Y", Operators: []string{"*", "-"}, Literals: true}),
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("levels are monotonic, alternating and implementable", prop.ForAll(
		func(seed int64) bool {
			calc, err := randomCalc(seed, child)
			if err != nil {
				return false
			}
			s, err := NewCalcSplitter(nil, calc, backends)
			if err != nil {
				return false
			}
			la, err := s.chooseLevels()
			if err != nil {
				return false
			}
			return checkLevels(calc.Program, backends, la) &&
				checkProjections(calc.Program, la, s.maxUsingLevels(la))
		},
		gen.Int64(),
	))

	properties.Property("split plans return the same rows", prop.ForAll(
		func(seed int64) bool {
			calc, err := randomCalc(seed, child)
			if err != nil {
				return false
			}
			s, err := NewCalcSplitter(nil, calc, backends)
			if err != nil {
				return false
			}
			result, err := s.Execute()
			if err != nil {
				return false
			}

			calcs, base := calcChain(result)
			if base != child || len(calcs) == 0 && !calc.Program.IsTrivial() {
				return false
			}
			for k := 1; k < len(calcs); k++ {
				if calcs[k].Backend == calcs[k-1].Backend {
					return false
				}
			}

			want, err := rowsOf(calc)
			if err != nil {
				return false
			}
			got, err := rowsOf(result)
			if err != nil {
				return false
			}
			return sameRows(want, got)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
