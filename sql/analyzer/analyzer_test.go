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
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/program"
)

func analyzeTestTree(t *testing.T) (sql.Node, *plan.ResolvedTable) {
	table := intTable(t, "t", []string{"a", "b", "c"},
		sql.NewRow(int64(1), int64(2), int64(3)),
		sql.NewRow(int64(-1), int64(5), int64(6)),
		sql.NewRow(int64(4), int64(0), int64(9)),
	)
	a, b := gf(0, "t", "a"), gf(1, "t", "b")
	node := plan.NewProject(
		[]sql.Expression{
			expression.NewAlias("s", plus(a, b)),
			expression.NewAlias("p", mult(plus(a, b), b)),
		},
		plan.NewFilter(gt(a, lit(0)), table),
	)
	return node, table
}

func TestAnalyzer_Analyze(t *testing.T) {
	require := require.New(t)
	node, table := analyzeTestTree(t)

	a, err := NewDefault(
		newBackend(t, BackendConfig{Name: "X", Operators: []string{"+", ">"}, Literals: true, Conditions: true}),
		newBackend(t, BackendConfig{Name: "Y", Operators: []string{"*"}}),
	)
	require.NoError(err)

	analyzed, err := a.Analyze(sql.NewEmptyContext(), node)
	require.NoError(err)

	calcs, base := calcChain(analyzed)
	require.Equal(table, base)
	require.Equal([]string{"Y", "X"}, calcBackends(calcs))
	require.Equal([]string{"s", "p"}, analyzed.Schema().Names())

	rows, err := rowsOf(analyzed)
	require.NoError(err)
	require.Equal([]sql.Row{
		{int64(3), int64(6)},
		{int64(4), int64(0)},
	}, rows)
	requireSameRows(t, node, analyzed)
}

func TestAnalyzeSingleBackend(t *testing.T) {
	require := require.New(t)
	node, table := analyzeTestTree(t)

	a, err := NewDefault(
		newBackend(t, BackendConfig{Name: "X", Operators: []string{"+", "*", ">"}, Literals: true, Conditions: true}),
	)
	require.NoError(err)

	analyzed, err := a.Analyze(sql.NewEmptyContext(), node)
	require.NoError(err)

	calcs, base := calcChain(analyzed)
	require.Equal(table, base)
	require.Equal([]string{"X"}, calcBackends(calcs))
	requireSameRows(t, node, analyzed)
}

func TestAnalyzeWithoutBackends(t *testing.T) {
	require := require.New(t)
	node, table := analyzeTestTree(t)

	a, err := NewDefault()
	require.NoError(err)

	analyzed, err := a.Analyze(sql.NewEmptyContext(), node)
	require.NoError(err)

	calcs, base := calcChain(analyzed)
	require.Equal(table, base)
	require.Equal([]string{""}, calcBackends(calcs))
	requireSameRows(t, node, analyzed)
}

func TestAnalyzeCannotImplement(t *testing.T) {
	require := require.New(t)
	node, table := analyzeTestTree(t)

	a, err := NewDefault(
		newBackend(t, BackendConfig{Name: "X", Operators: []string{"+", ">"}, Literals: true, Conditions: true}),
	)
	require.NoError(err)

	analyzed, err := a.Analyze(sql.NewEmptyContext(), node)
	require.NoError(err)

	calcs, base := calcChain(analyzed)
	require.Equal(table, base)
	require.Equal([]string{""}, calcBackends(calcs))
}

func TestProjectFilterToCalc(t *testing.T) {
	require := require.New(t)
	node, table := analyzeTestTree(t)

	result, err := getRule("project_filter_to_calc").Apply(sql.NewEmptyContext(), nil, node)
	require.NoError(err)

	calc, ok := result.(*plan.Calc)
	require.True(ok)
	require.Equal(table, calc.Child)
	require.Equal([]string{"s", "p"}, calc.Schema().Names())
	require.NotNil(calc.Program.Condition())
	requireSameRows(t, node, result)

	again, err := getRule("project_filter_to_calc").Apply(sql.NewEmptyContext(), nil, result)
	require.NoError(err)
	require.Same(result, again)
}

func TestSplitCalcsKeepsAssignedCalcs(t *testing.T) {
	child := intTable(t, "t", []string{"a", "b"})
	calc := calcOver(t, child, func(b *program.Builder) {
		addProject(t, b, mult(gf(0, "t", "a"), gf(1, "t", "b")), "p")
	})
	assigned := calc.WithBackend("Z")

	a, err := NewDefault(newBackend(t, BackendConfig{Name: "X", Operators: []string{"*"}}))
	require.NoError(t, err)

	runTestCases(t, a, []analyzerFnTestCase{
		{name: "assigned", node: assigned},
		{name: "unassigned", node: calc, expected: calc.WithBackend("X")},
	}, getRule("split_calcs"))
}

func TestBuilderErrors(t *testing.T) {
	require := require.New(t)
	x := newBackend(t, BackendConfig{Name: "X"})

	_, err := NewBuilder(x, x).Build()
	require.True(ErrDuplicateBackend.Is(err))
}

func TestBuilderRules(t *testing.T) {
	require := require.New(t)
	var pre, post []string

	a, err := NewBuilder().
		WithDebug().
		WithCohorts(func(*program.Program) [][]int { return [][]int{{0, 1}} }).
		AddPreAnalyzeRule("pre", func(ctx *sql.Context, a *Analyzer, n sql.Node) (sql.Node, error) {
			pre = append(pre, n.String())
			return n, nil
		}).
		AddPostAnalyzeRule("post", func(ctx *sql.Context, a *Analyzer, n sql.Node) (sql.Node, error) {
			post = append(post, n.String())
			return n, nil
		}).
		Build()
	require.NoError(err)
	require.True(a.Debug)
	require.Equal([][]int{{0, 1}}, a.Cohorts(nil))

	var descs []string
	for _, b := range a.Batches {
		descs = append(descs, b.Desc)
	}
	require.Equal([]string{"pre-analyzer", "once-before", "default-rules", "once-after", "post-analyzer"}, descs)

	node, _ := analyzeTestTree(t)
	_, err = a.Analyze(sql.NewEmptyContext(), node)
	require.NoError(err)
	require.Len(pre, 1)
	require.Len(post, 1)
	require.Equal(node.String(), pre[0])
}

func TestMaxIterations(t *testing.T) {
	require := require.New(t)
	schema := intSchema("t", "a")
	count := 0
	batch := &Batch{
		Desc:       "growing",
		Iterations: maxAnalysisIterations,
		Rules: []Rule{{"count", func(ctx *sql.Context, a *Analyzer, n sql.Node) (sql.Node, error) {
			count++
			return plan.NewValues(schema, sql.NewRow(int64(count))), nil
		}}},
	}

	a, err := NewDefault()
	require.NoError(err)
	n, err := batch.Eval(sql.NewEmptyContext(), a, plan.NewValues(schema))
	require.True(ErrMaxAnalysisIters.Is(err))
	require.Equal(maxAnalysisIterations, count)
	require.Equal(plan.NewValues(schema, sql.NewRow(int64(count))), n)

	// Analyze logs the error and goes on with the next batch.
	count = 0
	a.Batches = append([]*Batch{batch}, a.Batches...)
	_, err = a.Analyze(sql.NewEmptyContext(), plan.NewValues(schema))
	require.NoError(err)
	require.Equal(maxAnalysisIterations, count)
}

func TestAnalyzerLog(t *testing.T) {
	require := require.New(t)
	hook := test.NewGlobal()
	defer hook.Reset()

	a, err := NewDefault()
	require.NoError(err)

	a.Debug = false
	a.Log("hidden")
	require.Nil(hook.LastEntry())

	a.Debug = true
	a.PushDebugContext("batch")
	a.PushDebugContext("rule")
	a.Log("changed %d nodes", 2)
	require.Equal(logrus.InfoLevel, hook.LastEntry().Level)
	require.Equal("batch/rule: changed 2 nodes", hook.LastEntry().Message)

	a.PopDebugContext()
	a.PopDebugContext()
	a.PopDebugContext()
	a.Log("done")
	require.Equal("done", hook.LastEntry().Message)

	var nilAnalyzer *Analyzer
	nilAnalyzer.Log("ignored")
	nilAnalyzer.PushDebugContext("ignored")
	require.Equal("done", hook.LastEntry().Message)
}

func TestSplitCalcsSkipsFailedSplits(t *testing.T) {
	x := newBackend(t, BackendConfig{Name: "X", Operators: []string{"a"}})
	y := newBackend(t, BackendConfig{Name: "Y", Operators: []string{"b"}, Conditions: true})
	a, err := NewDefault(x, y)
	require.NoError(t, err)

	v := plan.NewValues(sql.Schema{
		{Name: "n", Type: sql.Int64},
		{Name: "ok", Type: sql.Boolean},
	}, sql.NewRow(int64(1), true), sql.NewRow(int64(2), false))
	n := expression.NewGetField(0, sql.Int64, "n", false)

	// X can compute the projection but not the condition, and no other
	// level is opened to hold it.
	unhandled := calcOver(t, v, func(b *program.Builder) {
		addProject(t, b, expression.NewCall(opA, n, n), "s")
		require.NoError(t, b.AddCondition(expression.NewGetField(1, sql.Boolean, "ok", false)))
	})

	nested, err := program.New(
		v.Schema(),
		[]sql.Expression{
			n,
			expression.NewGetField(1, sql.Boolean, "ok", false),
			expression.NewCall(opB, expression.NewCall(opA,
				expression.NewLocalRef(0, sql.Int64, false),
				expression.NewLocalRef(0, sql.Int64, false))),
		},
		[]*expression.LocalRef{expression.NewLocalRef(2, sql.Int64, false)},
		[]string{"x"},
		nil,
	)
	require.NoError(t, err)
	complexCalc := plan.NewCalc(nested, v)

	runTestCases(t, a, []analyzerFnTestCase{
		{name: "unhandled condition", node: unhandled},
		{name: "complex expression", node: complexCalc},
	}, getRule("split_calcs"))

	t.Run("analyze", func(t *testing.T) {
		require := require.New(t)
		analyzed, err := a.Analyze(sql.NewEmptyContext(), unhandled)
		require.NoError(err)

		calcs, base := calcChain(analyzed)
		require.Equal(v, base)
		require.Equal([]string{""}, calcBackends(calcs))
		requireSameRows(t, unhandled, analyzed)
	})
}
