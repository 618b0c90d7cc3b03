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
	"strings"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/exp/slices"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/program"
)

var (
	// ErrCannotImplement is returned when no backend can evaluate some
	// entry of a program.
	ErrCannotImplement = errors.NewKind("no backend can implement %s")

	// ErrComplexExpression is returned when splitting a program with an
	// entry whose operands are not references to other entries.
	ErrComplexExpression = errors.NewKind("cannot split a program with nested expressions: %s")

	// ErrUnhandledCondition is returned when no level of a split could
	// evaluate the condition.
	ErrUnhandledCondition = errors.NewKind("no level can evaluate the condition %s")

	// ErrSplitInternal is returned when splitting produced an inconsistent
	// result.
	ErrSplitInternal = errors.NewKind("splitting calc: %s")
)

// CohortFunc returns sets of entries of a program that should be evaluated
// by the same level if possible.
type CohortFunc func(p *program.Program) [][]int

func noCohorts(*program.Program) [][]int { return nil }

// CalcSplitter splits a calc into a chain of calcs, each of them evaluated
// by a single backend, such that consecutive calcs use different backends.
type CalcSplitter struct {
	a        *Analyzer
	calc     *plan.Calc
	backends []Backend
	cohorts  CohortFunc
}

// NewCalcSplitter creates a splitter for the calc. Backends are tried in
// the given order.
func NewCalcSplitter(a *Analyzer, calc *plan.Calc, backends []Backend) (*CalcSplitter, error) {
	if err := checkBackends(backends); err != nil {
		return nil, err
	}
	return &CalcSplitter{
		a:        a,
		calc:     calc,
		backends: backends,
		cohorts:  noCohorts,
	}, nil
}

// WithCohorts sets the function that gives the cohorts of the program.
func (s *CalcSplitter) WithCohorts(f CohortFunc) *CalcSplitter {
	if f == nil {
		f = noCohorts
	}
	s.cohorts = f
	return s
}

// CanImplement reports whether the named backend can evaluate the whole
// program of the calc.
func (s *CalcSplitter) CanImplement(calc *plan.Calc, name string) (bool, error) {
	b, err := findBackend(s.backends, name)
	if err != nil {
		return false, err
	}
	return CanImplementProgram(b, calc.Program), nil
}

// levelAssignment is the level of every entry of a program and the backend
// of every level.
type levelAssignment struct {
	// levels holds the level of each entry, or -1 for inputs.
	levels []int
	// backends holds the position of the backend of each level.
	backends []int
}

func (la *levelAssignment) levelCount() int {
	return len(la.backends)
}

// Execute splits the calc. The result is the last calc of the chain.
func (s *CalcSplitter) Execute() (sql.Node, error) {
	p := s.calc.Program
	if p.ContainsComplexExprs() {
		return nil, ErrComplexExpression.New(p)
	}

	la, err := s.chooseLevels()
	if err != nil {
		return nil, err
	}
	if la.levelCount() == 0 {
		// Only input columns: a single level still has to project them.
		la.backends = []int{s.conditionBackend()}
	}
	levelCount := la.levelCount()
	s.logLevels(la)

	exprs := p.Exprs()
	levels := slices.Clone(la.levels)
	maxUsing := s.maxUsingLevels(la)

	// Literals are evaluated where they are used rather than carried over
	// from one level to the next.
	if levelCount > 1 {
		for i, e := range exprs {
			if isLiteral(e) {
				levels[i] = -1
			}
		}
	}

	cond := -1
	if c := p.Condition(); c != nil {
		cond = c.Index()
	}

	var rel sql.Node = s.calc.Child
	inputs := identityOrdinals(p.InputCount())
	doneCondition := false
	for level := 0; level < levelCount; level++ {
		var projects []int
		var names []string
		if level == levelCount-1 {
			for _, ref := range p.Projects() {
				projects = append(projects, ref.Index())
			}
			names = p.Names()
		} else {
			projects = levelProjects(exprs, levels, maxUsing, level)
			names = make([]string, len(projects))
			for i, ord := range projects {
				names[i] = s.deriveFieldName(exprs[ord], i)
			}
		}

		backend := s.backends[la.backends[level]]
		levelCond := -1
		if cond >= 0 && !doneCondition && levels[cond] <= level && backend.SupportsCondition() {
			levelCond = cond
			doneCondition = true
		}

		lp, err := s.programForLevel(level, levelCount, rel.Schema(), levels, inputs, projects, names, levelCond)
		if err != nil {
			return nil, err
		}

		node, err := backend.MakeNode(lp, rel)
		if err != nil {
			return nil, err
		}
		if c, ok := node.(*plan.Calc); ok && c.Program.IsTrivial() &&
			slices.Equal(c.Schema().Names(), rel.Schema().Names()) {
			node = rel
		}

		rel = node
		inputs = projects
	}

	if cond >= 0 && !doneCondition {
		return nil, ErrUnhandledCondition.New(exprs[cond])
	}
	return rel, nil
}

// chooseLevels assigns every entry to the lowest level whose backend can
// evaluate it, opening new levels as needed.
func (s *CalcSplitter) chooseLevels() (*levelAssignment, error) {
	p := s.calc.Program
	exprs := p.Exprs()
	inputCount := p.InputCount()

	cond := -1
	if c := p.Condition(); c != nil {
		cond = c.Index()
	}

	la := &levelAssignment{levels: make([]int, len(exprs))}
	for i := range la.levels {
		la.levels[i] = -1
	}

	possible := make([]bool, len(s.backends))
	fillTrue(possible)

	cohorts := s.cohorts(p)
	for _, i := range topologicalOrder(exprs, cohorts) {
		if i < inputCount {
			continue
		}

		e := exprs[i]
		condition := i == cond

		level := maxInputLevel(e, la.levels)
		for _, j := range findCohort(cohorts, i) {
			if j == i || j < 0 || j >= len(exprs) {
				continue
			}
			if l := maxInputLevel(exprs[j], la.levels); l > level {
				level = l
			}
		}

	levelLoop:
		for ; ; level++ {
			if level < la.levelCount() {
				if s.backends[la.backends[level]].CanImplement(e, condition) {
					la.levels[i] = level
					break
				}
				continue
			}

			for b, backend := range s.backends {
				if !possible[b] || !backend.CanImplement(e, condition) {
					continue
				}

				la.levels[i] = level
				if level > 0 && la.backends[level-1] == b {
					return nil, ErrSplitInternal.New(fmt.Sprintf("levels %d and %d both use backend %s", level-1, level, backend.Name()))
				}

				// Narrow down the backends for the new level to the ones
				// that can evaluate this entry as well.
				for j := 0; j < b; j++ {
					possible[j] = false
				}
				for j := b + 1; j < len(s.backends); j++ {
					if possible[j] {
						possible[j] = s.backends[j].CanImplement(e, condition)
					}
				}

				la.backends = append(la.backends, firstSet(possible))
				fillTrue(possible)
				break levelLoop
			}

			if countSet(possible) >= len(s.backends) {
				return nil, ErrCannotImplement.New(e)
			}
			la.backends = append(la.backends, firstSet(possible))
			fillTrue(possible)
		}
	}

	return la, nil
}

// conditionBackend returns the first backend that can filter rows if the
// program has a condition, or the first backend otherwise.
func (s *CalcSplitter) conditionBackend() int {
	if s.calc.Program.Condition() != nil {
		for i, b := range s.backends {
			if b.SupportsCondition() {
				return i
			}
		}
	}
	return 0
}

// maxUsingLevels returns, for each entry, the highest level that uses it.
// Entries used by the projection or the condition are used by the level
// after the last one.
func (s *CalcSplitter) maxUsingLevels(la *levelAssignment) []int {
	p := s.calc.Program
	exprs := p.Exprs()
	maxUsing := make([]int, len(exprs))
	for i := range maxUsing {
		maxUsing[i] = -1
	}

	for i, e := range exprs {
		if isLiteral(e) {
			continue
		}
		for _, ref := range localRefs(e) {
			if la.levels[i] > maxUsing[ref] {
				maxUsing[ref] = la.levels[i]
			}
		}
	}

	for _, ref := range p.Projects() {
		maxUsing[ref.Index()] = la.levelCount()
	}
	if c := p.Condition(); c != nil {
		maxUsing[c.Index()] = la.levelCount()
	}
	return maxUsing
}

// levelProjects returns the entries a level below the last one passes on
// to the next: the ones known at that level that a later level needs.
func levelProjects(exprs []sql.Expression, levels, maxUsing []int, level int) []int {
	var projects []int
	for i, e := range exprs {
		if isLiteral(e) {
			continue
		}
		if levels[i] <= level && maxUsing[i] > level {
			projects = append(projects, i)
		}
	}
	return projects
}

// programForLevel creates the program of a level. Its inputs are the
// entries projected by the previous level, in order.
func (s *CalcSplitter) programForLevel(
	level, levelCount int,
	inputSchema sql.Schema,
	levels, inputs, projects []int,
	names []string,
	cond int,
) (*program.Program, error) {
	exprs := s.calc.Program.Exprs()
	b := program.NewBuilder(inputSchema)

	inverse := make([]int, len(exprs))
	for i := range inverse {
		inverse[i] = -1
	}
	for k, ord := range inputs {
		inverse[ord] = k
	}

	last := level == levelCount-1
	for i, e := range exprs {
		if levels[i] != level && !(last && levels[i] == -1 && isLiteral(e)) {
			continue
		}

		translated, err := translateEntry(e, exprs, levels, level, inverse, inputs, b)
		if err != nil {
			return nil, err
		}
		ref, err := b.AddExpr(translated)
		if err != nil {
			return nil, err
		}
		inverse[i] = ref.Index()
	}

	resolve := func(ord int) (*expression.LocalRef, error) {
		if inverse[ord] >= 0 {
			return b.AddExpr(expression.NewLocalRef(inverse[ord], exprs[ord].Type(), exprs[ord].IsNullable()))
		}
		if isLiteral(exprs[ord]) {
			return b.AddExpr(exprs[ord])
		}
		return nil, ErrSplitInternal.New(fmt.Sprintf("entry %d is not available at level %d", ord, level))
	}

	for k, ord := range projects {
		ref, err := resolve(ord)
		if err != nil {
			return nil, err
		}
		if _, err := b.AddProject(ref, names[k]); err != nil {
			return nil, err
		}
	}
	if cond >= 0 {
		ref, err := resolve(cond)
		if err != nil {
			return nil, err
		}
		if err := b.AddCondition(ref); err != nil {
			return nil, err
		}
	}

	lp, err := b.Program()
	if err != nil {
		return nil, err
	}
	return lp.Normalize()
}

// translateEntry points the operands of an entry to the entries of the
// level program being built. Operands computed at an earlier level are read
// from the level inputs, except literals, which are evaluated again.
func translateEntry(
	e sql.Expression,
	exprs []sql.Expression,
	levels []int,
	level int,
	inverse, inputs []int,
	b *program.Builder,
) (sql.Expression, error) {
	children := e.Children()
	if len(children) == 0 {
		return e, nil
	}

	translated := make([]sql.Expression, len(children))
	for k, child := range children {
		ref, ok := child.(*expression.LocalRef)
		if !ok {
			return nil, ErrComplexExpression.New(e)
		}

		op := ref.Index()
		if levels[op] < level {
			if isLiteral(exprs[op]) {
				translated[k] = exprs[op]
				continue
			}
			idx := slices.Index(inputs, op)
			if idx < 0 {
				return nil, ErrSplitInternal.New(fmt.Sprintf("entry %d is not an input of level %d", op, level))
			}
			translated[k] = expression.NewLocalRef(idx, ref.Type(), ref.IsNullable())
			continue
		}

		if inverse[op] < 0 {
			return nil, ErrSplitInternal.New(fmt.Sprintf("entry %d is used at level %d before it is computed", op, level))
		}
		translated[k] = expression.NewLocalRef(inverse[op], ref.Type(), ref.IsNullable())
	}
	return e.WithChildren(translated...)
}

// deriveFieldName names the column of an intermediate level. Input columns
// keep their name unless it is a generated one.
func (s *CalcSplitter) deriveFieldName(e sql.Expression, pos int) string {
	if gf, ok := e.(*expression.GetField); ok {
		inputSchema := s.calc.Program.InputSchema()
		if gf.Index() < len(inputSchema) {
			if name := inputSchema[gf.Index()].Name; !strings.HasPrefix(name, "$") {
				return name
			}
		}
	}
	return fmt.Sprintf("$%d", pos)
}

func (s *CalcSplitter) logLevels(la *levelAssignment) {
	if s.a == nil || !s.a.Debug {
		return
	}

	exprs := s.calc.Program.Exprs()
	s.a.Log("split %s into %d levels", s.calc.Program, la.levelCount())
	for level, b := range la.backends {
		var entries []string
		for i, e := range exprs {
			if la.levels[i] == level {
				entries = append(entries, fmt.Sprintf("$%d=%s", i, e))
			}
		}
		s.a.Log("level %d, backend %s: %s", level, s.backends[b].Name(), strings.Join(entries, ", "))
	}
}

// topologicalOrder returns the entries in an order where every entry comes
// after its operands. An entry in a cohort also waits for the operands of
// the other members of its cohort, as long as that does not create a cycle.
// Among the entries that can go next, the lowest one goes first, so without
// cohorts the order is the entry order.
func topologicalOrder(exprs []sql.Expression, cohorts [][]int) []int {
	n := len(exprs)
	successors := make([]*bitset.BitSet, n)
	for i := range successors {
		successors[i] = bitset.New(uint(n))
	}

	for i, e := range exprs {
		targets := findCohort(cohorts, i)
		if targets == nil {
			targets = []int{i}
		}
		for _, op := range localRefs(e) {
			for _, t := range targets {
				if t != op && t >= 0 && t < n {
					successors[op].Set(uint(t))
				}
			}
		}
	}

	inDegree := make([]int, n)
	for _, succ := range successors {
		for t, ok := succ.NextSet(0); ok; t, ok = succ.NextSet(t + 1) {
			inDegree[t]++
		}
	}

	ready := bitset.New(uint(n))
	remaining := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		remaining.Set(uint(i))
		if inDegree[i] == 0 {
			ready.Set(uint(i))
		}
	}

	order := make([]int, 0, n)
	for len(order) < n {
		next, ok := ready.NextSet(0)
		if !ok {
			// Cohort edges made a cycle. Every operand of the lowest
			// remaining entry is already in the order, so it can go next.
			next, _ = remaining.NextSet(0)
		}
		ready.Clear(next)
		remaining.Clear(next)
		order = append(order, int(next))

		succ := successors[next]
		for t, ok := succ.NextSet(0); ok; t, ok = succ.NextSet(t + 1) {
			inDegree[t]--
			if inDegree[t] == 0 && remaining.Test(t) {
				ready.Set(t)
			}
		}
	}
	return order
}

func findCohort(cohorts [][]int, i int) []int {
	for _, c := range cohorts {
		if slices.Contains(c, i) {
			return c
		}
	}
	return nil
}

// maxInputLevel returns the highest level of the entries e references, or
// 0 if there are none.
func maxInputLevel(e sql.Expression, levels []int) int {
	level := 0
	for _, ref := range localRefs(e) {
		if levels[ref] > level {
			level = levels[ref]
		}
	}
	return level
}

// localRefs returns the entries referenced anywhere in e.
func localRefs(e sql.Expression) []int {
	var refs []int
	sql.Inspect(e, func(e sql.Expression) bool {
		if ref, ok := e.(*expression.LocalRef); ok {
			refs = append(refs, ref.Index())
		}
		return true
	})
	return refs
}

func isLiteral(e sql.Expression) bool {
	_, ok := e.(*expression.Literal)
	return ok
}

func identityOrdinals(n int) []int {
	ords := make([]int, n)
	for i := range ords {
		ords[i] = i
	}
	return ords
}

func fillTrue(bs []bool) {
	for i := range bs {
		bs[i] = true
	}
}

func firstSet(bs []bool) int {
	for i, b := range bs {
		if b {
			return i
		}
	}
	return -1
}

func countSet(bs []bool) int {
	var n int
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
