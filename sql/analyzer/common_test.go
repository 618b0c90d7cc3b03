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
	"fmt"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/memory"
	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/expression/function"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/program"
	"github.com/dolthub/calcplanner/sql/rowexec"
)

func gt(left, right sql.Expression) sql.Expression {
	return expression.NewCall(function.GreaterThan, left, right)
}

func plus(left, right sql.Expression) sql.Expression {
	return expression.NewCall(function.Plus, left, right)
}

func mult(left, right sql.Expression) sql.Expression {
	return expression.NewCall(function.Mult, left, right)
}

func lit(n int64) sql.Expression {
	return expression.NewLiteral(n, sql.Int64)
}

func gf(idx int, table, name string) *expression.GetField {
	return expression.NewGetFieldWithTable(idx, sql.Int64, table, name, false)
}

func intSchema(table string, names ...string) sql.Schema {
	schema := make(sql.Schema, len(names))
	for i, name := range names {
		schema[i] = &sql.Column{Name: name, Type: sql.Int64, Source: table}
	}
	return schema
}

// intTable returns a table of int64 columns filled with the given rows.
func intTable(t *testing.T, name string, names []string, rows ...sql.Row) *plan.ResolvedTable {
	ctx := sql.NewEmptyContext()
	table := memory.NewTable(name, intSchema(name, names...))
	for _, r := range rows {
		require.NoError(t, table.Insert(ctx, r))
	}
	return plan.NewResolvedTable(table)
}

// unaryOp and binaryOp create operators that only exist for capability
// tests. Backends are configured with their names.
func unaryOp(name string, eval func(int64) int64) *expression.Operator {
	return &expression.Operator{
		Name:       name,
		Notation:   expression.FunctionNotation,
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: func([]sql.Type) sql.Type { return sql.Int64 },
		Eval: func(args []interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			return eval(args[0].(int64)), nil
		},
	}
}

func binaryOp(name string, eval func(int64, int64) int64) *expression.Operator {
	return &expression.Operator{
		Name:       name,
		Notation:   expression.FunctionNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: func([]sql.Type) sql.Type { return sql.Int64 },
		Eval: func(args []interface{}) (interface{}, error) {
			if args[0] == nil || args[1] == nil {
				return nil, nil
			}
			return eval(args[0].(int64), args[1].(int64)), nil
		},
	}
}

var (
	opA = binaryOp("a", func(l, r int64) int64 { return l + r })
	opB = unaryOp("b", func(v int64) int64 { return v * 2 })
	opC = unaryOp("c", func(v int64) int64 { return v - 1 })
)

func newBackend(t *testing.T, cfg BackendConfig) Backend {
	b, err := NewTableBackend(cfg)
	require.NoError(t, err)
	return b
}

// calcOver builds a calc over the table from a function that adds entries
// to the program.
func calcOver(t *testing.T, child sql.Node, build func(b *program.Builder)) *plan.Calc {
	b := program.NewBuilder(child.Schema())
	build(b)
	p, err := b.Program()
	require.NoError(t, err)
	return plan.NewCalc(p, child)
}

func addExpr(t *testing.T, b *program.Builder, e sql.Expression) *expression.LocalRef {
	ref, err := b.AddExpr(e)
	require.NoError(t, err)
	return ref
}

func addProject(t *testing.T, b *program.Builder, e sql.Expression, name string) {
	_, err := b.AddProject(e, name)
	require.NoError(t, err)
}

func rowsOf(n sql.Node) ([]sql.Row, error) {
	return rowexec.Rows(sql.NewEmptyContext(), n)
}

// sameRows reports whether both lists hold the same rows in the same order.
func sameRows(expected, actual []sql.Row) bool {
	return assert.ObjectsAreEqual(expected, actual)
}

// requireSameRows asserts both plans produce the same rows, in any order.
func requireSameRows(t *testing.T, expected, actual sql.Node) {
	ctx := sql.NewEmptyContext()
	want, err := rowexec.Rows(ctx, expected)
	require.NoError(t, err)
	got, err := rowexec.Rows(ctx, actual)
	require.NoError(t, err)
	require.ElementsMatch(t, want, got)
}

// calcChain returns the calcs from the given node down, and the first node
// under them that is not a calc.
func calcChain(n sql.Node) ([]*plan.Calc, sql.Node) {
	var calcs []*plan.Calc
	for {
		c, ok := n.(*plan.Calc)
		if !ok {
			return calcs, n
		}
		calcs = append(calcs, c)
		n = c.Child
	}
}

// calcBackends returns the backend of each calc.
func calcBackends(calcs []*plan.Calc) []string {
	names := make([]string, len(calcs))
	for i, c := range calcs {
		names[i] = c.Backend
	}
	return names
}

func getRule(name string) Rule {
	for _, rules := range [][]Rule{OnceBeforeDefault, DefaultRules, OnceAfterDefault} {
		for _, rule := range rules {
			if rule.Name == name {
				return rule
			}
		}
	}

	panic("missing rule")
}

// Common test struct for analyzer transformation tests. Name and node are required, other fields are optional.
// The expected node is optional: if omitted, the tests asserts that input == output. The optional err field is the
// kind of error expected, if any.
type analyzerFnTestCase struct {
	name     string
	node     sql.Node
	expected sql.Node
	err      *errors.Kind
}

func runTestCases(t *testing.T, a *Analyzer, testCases []analyzerFnTestCase, f Rule) {
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.Apply(sql.NewEmptyContext(), a, tt.node)
			if tt.err != nil {
				require.Error(t, err)
				require.True(t, tt.err.Is(err))
				return
			}
			require.NoError(t, err)

			expected := tt.expected
			if expected == nil {
				expected = tt.node
			}

			assertNodesEqualWithDiff(t, expected, result)
		})
	}
}

// assertNodesEqualWithDiff asserts the two nodes given to be equal and prints any diff according to their DebugString
// methods.
func assertNodesEqualWithDiff(t *testing.T, expected, actual sql.Node) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(sql.DebugString(expected)),
		B:        difflib.SplitLines(sql.DebugString(actual)),
		FromFile: "expected",
		FromDate: "",
		ToFile:   "actual",
		ToDate:   "",
		Context:  1,
	})
	require.NoError(t, err)

	if len(diff) > 0 {
		fmt.Println(diff)
	}

	assert.Equal(t, expected, actual)
}
