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
	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/program"
	"github.com/dolthub/calcplanner/sql/transform"
)

func trimFields(ctx *sql.Context, a *Analyzer, n sql.Node) (sql.Node, error) {
	span, _ := ctx.Span("trim_fields")
	defer span.Finish()

	return NewFieldTrimmer(a).Trim(n)
}

// projectFilterToCalc replaces projections and filters with calcs, and
// merges a calc with the calc below it when neither has a backend yet.
func projectFilterToCalc(ctx *sql.Context, a *Analyzer, n sql.Node) (sql.Node, error) {
	span, _ := ctx.Span("project_filter_to_calc")
	defer span.Finish()

	n, _, err := transform.Node(n, func(n sql.Node) (sql.Node, transform.TreeIdentity, error) {
		var calc *plan.Calc
		switch n := n.(type) {
		case *plan.Project:
			b := program.NewBuilder(n.Child.Schema())
			for _, e := range n.Projections {
				if _, err := b.AddProject(e, transform.ExpressionToColumn(e).Name); err != nil {
					return nil, transform.SameTree, err
				}
			}
			p, err := b.Program()
			if err != nil {
				return nil, transform.SameTree, err
			}
			calc = plan.NewCalc(p, n.Child)
		case *plan.Filter:
			b := program.NewBuilder(n.Child.Schema())
			if err := b.AddCondition(n.Expression); err != nil {
				return nil, transform.SameTree, err
			}
			if err := b.AddIdentityProjects(); err != nil {
				return nil, transform.SameTree, err
			}
			p, err := b.Program()
			if err != nil {
				return nil, transform.SameTree, err
			}
			calc = plan.NewCalc(p, n.Child)
		case *plan.Calc:
			calc = n
		default:
			return n, transform.SameTree, nil
		}

		bottom, ok := calc.Child.(*plan.Calc)
		if !ok || calc.Backend != "" || bottom.Backend != "" {
			if calc == n {
				return n, transform.SameTree, nil
			}
			a.Log("replaced %T with a calc", n)
			return calc, transform.NewTree, nil
		}

		merged, err := program.Merge(calc.Program, bottom.Program)
		if err != nil {
			return nil, transform.SameTree, err
		}
		a.Log("merged calcs")
		return plan.NewCalc(merged, bottom.Child), transform.NewTree, nil
	})
	return n, err
}

// splitCalcs assigns every calc without a backend to one. If no backend
// can evaluate the whole calc, it is split among several of them. Calcs
// that cannot be split are left as they are.
func splitCalcs(ctx *sql.Context, a *Analyzer, n sql.Node) (sql.Node, error) {
	if len(a.Backends) == 0 {
		return n, nil
	}

	span, _ := ctx.Span("split_calcs")
	defer span.Finish()

	n, _, err := transform.Node(n, func(n sql.Node) (sql.Node, transform.TreeIdentity, error) {
		calc, ok := n.(*plan.Calc)
		if !ok || calc.Backend != "" {
			return n, transform.SameTree, nil
		}

		for _, b := range a.Backends {
			if CanImplementProgram(b, calc.Program) {
				a.Log("calc evaluated by backend %s", b.Name())
				node, err := b.MakeNode(calc.Program, calc.Child)
				if err != nil {
					return nil, transform.SameTree, err
				}
				return node, transform.NewTree, nil
			}
		}

		s, err := NewCalcSplitter(a, calc, a.Backends)
		if err != nil {
			return nil, transform.SameTree, err
		}
		node, err := s.WithCohorts(a.Cohorts).Execute()
		if isSplitFailure(err) {
			a.Log("cannot split calc: %s", err)
			return n, transform.SameTree, nil
		}
		if err != nil {
			return nil, transform.SameTree, err
		}
		return node, transform.NewTree, nil
	})
	return n, err
}

// isSplitFailure reports whether err means the calc cannot be split, in
// which case it is left for other rules.
func isSplitFailure(err error) bool {
	return ErrCannotImplement.Is(err) ||
		ErrUnhandledCondition.Is(err) ||
		ErrComplexExpression.Is(err)
}
