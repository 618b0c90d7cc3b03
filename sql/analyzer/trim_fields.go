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

	"github.com/bits-and-blooms/bitset"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/mapping"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/transform"
)

var (
	// ErrTrimMappingMismatch is returned when trimming a node produces a
	// mapping that does not match the columns of the old and new nodes.
	ErrTrimMappingMismatch = errors.NewKind("trimming %T: %s")

	// ErrNonIdentityRootMapping is returned when trimming the root of a
	// tree changes its columns.
	ErrNonIdentityRootMapping = errors.NewKind("trimming the root node changed its columns: %s")

	// ErrUnexpectedMapping is returned when a node that needs every column
	// of its input gets a trimmed input.
	ErrUnexpectedMapping = errors.NewKind("%T needs every column of its input, got mapping %s")
)

// dummyColumn is the name of the column kept by a projection whose columns
// are all unused.
const dummyColumn = "DUMMY"

// TrimResult is a trimmed node with the mapping from the columns of the
// original node to its columns.
type TrimResult struct {
	Node    sql.Node
	Mapping *mapping.Mapping
}

// FieldTrimmer removes the columns no consumer reads from a tree of nodes.
type FieldTrimmer struct {
	a *Analyzer
}

// NewFieldTrimmer creates a new field trimmer. The analyzer is only used
// for logging and may be nil.
func NewFieldTrimmer(a *Analyzer) *FieldTrimmer {
	return &FieldTrimmer{a: a}
}

// Trim removes the unused columns from the tree. Every column of the root
// is kept.
func (t *FieldTrimmer) Trim(root sql.Node) (sql.Node, error) {
	res, err := t.trimFields(root, allFields(len(root.Schema())))
	if err != nil {
		return nil, err
	}
	if !res.Mapping.IsIdentity() {
		return nil, ErrNonIdentityRootMapping.New(res.Mapping)
	}
	return res.Node, nil
}

func allFields(n int) *bitset.BitSet {
	used := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		used.Set(uint(i))
	}
	return used
}

func unchanged(n sql.Node) TrimResult {
	return TrimResult{Node: n, Mapping: mapping.NewIdentity(len(n.Schema()))}
}

// trimFields trims n keeping at least the columns in used, and checks the
// result is consistent.
func (t *FieldTrimmer) trimFields(n sql.Node, used *bitset.BitSet) (TrimResult, error) {
	res, err := t.dispatch(n, used)
	if err != nil {
		return TrimResult{}, err
	}

	fieldCount := len(n.Schema())
	newFieldCount := len(res.Node.Schema())
	if res.Mapping.SourceCount() != fieldCount {
		return TrimResult{}, ErrTrimMappingMismatch.New(n,
			fmt.Sprintf("mapping has %d sources, node has %d columns", res.Mapping.SourceCount(), fieldCount))
	}
	if res.Mapping.TargetCount() != newFieldCount {
		return TrimResult{}, ErrTrimMappingMismatch.New(n,
			fmt.Sprintf("mapping has %d targets, new node has %d columns", res.Mapping.TargetCount(), newFieldCount))
	}
	if newFieldCount == 0 {
		return TrimResult{}, ErrTrimMappingMismatch.New(n, "new node has no columns")
	}

	if res.Node != n {
		t.a.Log("trimmed %T from %d to %d columns", n, fieldCount, newFieldCount)
	}
	return res, nil
}

func (t *FieldTrimmer) dispatch(n sql.Node, used *bitset.BitSet) (TrimResult, error) {
	switch n := n.(type) {
	case *plan.Project:
		return t.trimProject(n, used)
	case *plan.Filter:
		return t.trimFilter(n, used)
	case *plan.Sort:
		return t.trimSort(n, used)
	case *plan.JoinNode:
		return t.trimJoin(n, used)
	case *plan.SetOp:
		return t.trimSetOp(n, used)
	case *plan.GroupBy:
		return t.trimGroupBy(n, used)
	case *plan.Values:
		return t.trimValues(n, used)
	case *plan.InsertInto:
		return t.trimInsertInto(n)
	case *plan.TableFunction:
		return t.trimTableFunction(n)
	default:
		return unchanged(n), nil
	}
}

// trimChildRestore trims n and, if that changed its columns, puts a
// projection on top that gives back the original columns. Columns that were
// trimmed away are replaced by zero values.
func (t *FieldTrimmer) trimChildRestore(n sql.Node, used *bitset.BitSet) (sql.Node, error) {
	res, err := t.trimFields(n, used)
	if err != nil {
		return nil, err
	}
	if res.Mapping.IsIdentity() {
		return res.Node, nil
	}

	trimmed := res.Node.Schema()
	exprs := make([]sql.Expression, len(n.Schema()))
	for i, col := range n.Schema() {
		target := res.Mapping.TargetOpt(i)
		if target < 0 {
			exprs[i] = expression.NewAlias(col.Name, expression.NewLiteral(col.Type.Zero(), col.Type))
			continue
		}
		tc := trimmed[target]
		var e sql.Expression = expression.NewGetFieldWithTable(target, tc.Type, tc.Source, tc.Name, tc.Nullable)
		if tc.Name != col.Name {
			e = expression.NewAlias(col.Name, e)
		}
		exprs[i] = e
	}
	return plan.NewProject(exprs, res.Node), nil
}

// remapFields points the column references of e to the new positions given
// by m.
func remapFields(e sql.Expression, m *mapping.Mapping) (sql.Expression, error) {
	if e == nil {
		return nil, nil
	}
	ne, _, err := transform.Expr(e, func(e sql.Expression) (sql.Expression, transform.TreeIdentity, error) {
		gf, ok := e.(*expression.GetField)
		if !ok {
			return e, transform.SameTree, nil
		}
		target, err := m.Target(gf.Index())
		if err != nil {
			return nil, transform.SameTree, err
		}
		if target == gf.Index() {
			return e, transform.SameTree, nil
		}
		return gf.WithIndex(target), transform.NewTree, nil
	})
	return ne, err
}

// projectMapping returns a projection of n that puts the source of every
// target of m in that position. If m is the identity, n is returned.
func projectMapping(n sql.Node, m *mapping.Mapping) (sql.Node, error) {
	if m.IsIdentity() {
		return n, nil
	}
	schema := n.Schema()
	exprs := make([]sql.Expression, m.TargetCount())
	for i := range exprs {
		source, err := m.Source(i)
		if err != nil {
			return nil, err
		}
		col := schema[source]
		exprs[i] = expression.NewGetFieldWithTable(source, col.Type, col.Source, col.Name, col.Nullable)
	}
	return plan.NewProject(exprs, n), nil
}

// isIdentityProject reports whether the projection returns the columns of
// its input unchanged.
func isIdentityProject(exprs []sql.Expression, input sql.Schema) bool {
	if len(exprs) != len(input) {
		return false
	}
	for i, e := range exprs {
		gf, ok := e.(*expression.GetField)
		if !ok || gf.Index() != i || gf.Name() != input[i].Name {
			return false
		}
	}
	return true
}

func isDummyProject(p *plan.Project) bool {
	return len(p.Projections) == 1 && transform.ExpressionToColumn(p.Projections[0]).Name == dummyColumn
}

func (t *FieldTrimmer) trimProject(p *plan.Project, used *bitset.BitSet) (TrimResult, error) {
	fieldCount := len(p.Projections)
	input := p.Child

	inputUsed := bitset.New(uint(len(input.Schema())))
	for i, ok := used.NextSet(0); ok; i, ok = used.NextSet(i + 1) {
		expression.AddInputsUsed(inputUsed, p.Projections[i])
	}

	res, err := t.trimFields(input, inputUsed)
	if err != nil {
		return TrimResult{}, err
	}
	if res.Node == input && int(used.Count()) == fieldCount {
		return unchanged(p), nil
	}

	if used.Count() == 0 {
		if res.Node == input && isDummyProject(p) {
			return unchanged(p), nil
		}
		dummy := expression.NewAlias(dummyColumn, expression.NewLiteral(int64(0), sql.Int64))
		return TrimResult{
			Node:    plan.NewProject([]sql.Expression{dummy}, res.Node),
			Mapping: mapping.New(fieldCount, 1),
		}, nil
	}

	m := mapping.New(fieldCount, int(used.Count()))
	exprs := make([]sql.Expression, 0, used.Count())
	for i, ok := used.NextSet(0); ok; i, ok = used.NextSet(i + 1) {
		if err := m.Set(int(i), len(exprs)); err != nil {
			return TrimResult{}, err
		}
		e, err := remapFields(p.Projections[i], res.Mapping)
		if err != nil {
			return TrimResult{}, err
		}
		exprs = append(exprs, e)
	}

	if isIdentityProject(exprs, res.Node.Schema()) {
		return TrimResult{Node: res.Node, Mapping: m}, nil
	}
	return TrimResult{Node: plan.NewProject(exprs, res.Node), Mapping: m}, nil
}

func (t *FieldTrimmer) trimFilter(f *plan.Filter, used *bitset.BitSet) (TrimResult, error) {
	input := f.Child

	inputUsed := used.Clone()
	expression.AddInputsUsed(inputUsed, f.Expression)

	res, err := t.trimFields(input, inputUsed)
	if err != nil {
		return TrimResult{}, err
	}
	if res.Node == input && res.Mapping.IsIdentity() {
		return unchanged(f), nil
	}

	cond, err := remapFields(f.Expression, res.Mapping)
	if err != nil {
		return TrimResult{}, err
	}
	return TrimResult{Node: plan.NewFilter(cond, res.Node), Mapping: res.Mapping}, nil
}

func (t *FieldTrimmer) trimSort(s *plan.Sort, used *bitset.BitSet) (TrimResult, error) {
	input := s.Child

	inputUsed := used.Clone()
	for _, f := range s.SortFields {
		expression.AddInputsUsed(inputUsed, f.Column)
	}

	res, err := t.trimFields(input, inputUsed)
	if err != nil {
		return TrimResult{}, err
	}
	if res.Node == input && res.Mapping.IsIdentity() {
		return unchanged(s), nil
	}

	fields := make([]plan.SortField, len(s.SortFields))
	for i, f := range s.SortFields {
		col, err := remapFields(f.Column, res.Mapping)
		if err != nil {
			return TrimResult{}, err
		}
		fields[i] = plan.SortField{Column: col, Order: f.Order}
	}
	return TrimResult{Node: plan.NewSort(fields, res.Node), Mapping: res.Mapping}, nil
}

func (t *FieldTrimmer) trimJoin(j *plan.JoinNode, used *bitset.BitSet) (TrimResult, error) {
	fieldCount := len(j.Schema())
	sysCount := len(j.SystemFields)

	usedPlus := used.Clone()
	expression.AddInputsUsed(usedPlus, j.Filter)

	newSysCount := 0
	if i, ok := usedPlus.NextSet(0); ok && int(i) < sysCount {
		newSysCount = sysCount
	}

	inputs := j.Children()
	results := make([]TrimResult, len(inputs))
	changed := false
	newFieldCount := newSysCount
	offset := sysCount
	for k, input := range inputs {
		inputFieldCount := len(input.Schema())
		inputUsed := bitset.New(uint(inputFieldCount))
		for i := offset; i < offset+inputFieldCount; i++ {
			if usedPlus.Test(uint(i)) {
				inputUsed.Set(uint(i - offset))
			}
		}
		// Kept system fields are read from the leading columns of each input.
		for i := 0; i < newSysCount && i < inputFieldCount; i++ {
			inputUsed.Set(uint(i))
		}

		res, err := t.trimFields(input, inputUsed)
		if err != nil {
			return TrimResult{}, err
		}
		if res.Node != input {
			changed = true
		}
		results[k] = res
		newFieldCount += len(res.Node.Schema())
		offset += inputFieldCount
	}

	m := mapping.New(fieldCount, newFieldCount)
	for i := 0; i < newSysCount; i++ {
		if err := m.Set(i, i); err != nil {
			return TrimResult{}, err
		}
	}
	offset, newOffset := sysCount, newSysCount
	for k, res := range results {
		for _, pair := range res.Mapping.Pairs() {
			if err := m.Set(pair.Source+offset, pair.Target+newOffset); err != nil {
				return TrimResult{}, err
			}
		}
		offset += len(inputs[k].Schema())
		newOffset += len(res.Node.Schema())
	}

	if !changed && m.IsIdentity() {
		return unchanged(j), nil
	}

	cond, err := remapFields(j.Filter, m)
	if err != nil {
		return TrimResult{}, err
	}

	var sys sql.Schema
	if newSysCount > 0 {
		sys = j.SystemFields
	}
	return TrimResult{
		Node:    plan.NewJoinWithSystemFields(results[0].Node, results[1].Node, j.Op, cond, sys),
		Mapping: m,
	}, nil
}

func (t *FieldTrimmer) trimSetOp(s *plan.SetOp, used *bitset.BitSet) (TrimResult, error) {
	fieldCount := len(s.Schema())

	// Removing a column changes which rows are duplicates.
	if s.Distinct || s.Kind != plan.Union {
		used = allFields(fieldCount)
	}
	if used.Count() == 0 {
		used = bitset.New(uint(fieldCount))
		used.Set(uint(fieldCount - 1))
	}

	m := mapping.New(fieldCount, int(used.Count()))
	target := 0
	for i, ok := used.NextSet(0); ok; i, ok = used.NextSet(i + 1) {
		if err := m.Set(int(i), target); err != nil {
			return TrimResult{}, err
		}
		target++
	}

	changed := false
	inputs := s.Children()
	newInputs := make([]sql.Node, len(inputs))
	for k, input := range inputs {
		res, err := t.trimFields(input, used)
		if err != nil {
			return TrimResult{}, err
		}

		remaining, err := mapping.Divide(m, res.Mapping)
		if err != nil {
			return TrimResult{}, err
		}
		newInputs[k], err = projectMapping(res.Node, remaining)
		if err != nil {
			return TrimResult{}, err
		}
		if newInputs[k] != input {
			changed = true
		}
	}

	if !changed && m.IsIdentity() {
		return TrimResult{Node: s, Mapping: m}, nil
	}
	return TrimResult{Node: plan.NewSetOp(s.Kind, s.Distinct, newInputs...), Mapping: m}, nil
}

func (t *FieldTrimmer) trimGroupBy(g *plan.GroupBy, used *bitset.BitSet) (TrimResult, error) {
	fieldCount := len(g.Schema())
	sysCount, groupCount := len(g.SystemFields), len(g.Grouping)
	input := g.Child

	var keptSys, keptCalls []int
	for k := range g.SystemFields {
		if used.Test(uint(k)) {
			keptSys = append(keptSys, k)
		}
	}
	for j := range g.AggCalls {
		if used.Test(uint(sysCount + groupCount + j)) {
			keptCalls = append(keptCalls, j)
		}
	}
	if len(keptSys)+groupCount+len(keptCalls) == 0 {
		if len(g.AggCalls) > 0 {
			keptCalls = []int{0}
		} else {
			for k := range g.SystemFields {
				keptSys = append(keptSys, k)
			}
		}
	}

	inputUsed := bitset.New(uint(len(input.Schema())))
	for _, k := range keptSys {
		inputUsed.Set(uint(g.SystemFields[k]))
	}
	for _, idx := range g.Grouping {
		inputUsed.Set(uint(idx))
	}
	for _, j := range keptCalls {
		for _, arg := range g.AggCalls[j].Args {
			inputUsed.Set(uint(arg))
		}
	}

	res, err := t.trimFields(input, inputUsed)
	if err != nil {
		return TrimResult{}, err
	}
	if res.Node == input && len(keptSys) == sysCount && len(keptCalls) == len(g.AggCalls) {
		return unchanged(g), nil
	}

	newSys := make([]int, len(keptSys))
	for i, k := range keptSys {
		if newSys[i], err = res.Mapping.Target(g.SystemFields[k]); err != nil {
			return TrimResult{}, err
		}
	}
	newGrouping, err := res.Mapping.ApplyList(g.Grouping)
	if err != nil {
		return TrimResult{}, err
	}
	newCalls := make([]plan.AggregateCall, len(keptCalls))
	for i, j := range keptCalls {
		call := g.AggCalls[j]
		if call.Args, err = res.Mapping.ApplyList(call.Args); err != nil {
			return TrimResult{}, err
		}
		newCalls[i] = call
	}

	m := mapping.New(fieldCount, len(newSys)+groupCount+len(newCalls))
	for i, k := range keptSys {
		if err := m.Set(k, i); err != nil {
			return TrimResult{}, err
		}
	}
	for i := 0; i < groupCount; i++ {
		if err := m.Set(sysCount+i, len(newSys)+i); err != nil {
			return TrimResult{}, err
		}
	}
	for i, j := range keptCalls {
		if err := m.Set(sysCount+groupCount+j, len(newSys)+groupCount+i); err != nil {
			return TrimResult{}, err
		}
	}

	return TrimResult{
		Node:    plan.NewGroupByWithSystemFields(newSys, newGrouping, newCalls, res.Node),
		Mapping: m,
	}, nil
}

func (t *FieldTrimmer) trimValues(v *plan.Values, used *bitset.BitSet) (TrimResult, error) {
	fieldCount := len(v.Schema())
	if used.Count() == 0 {
		used = bitset.New(uint(fieldCount))
		used.Set(uint(fieldCount - 1))
	}
	if int(used.Count()) == fieldCount {
		return unchanged(v), nil
	}

	var cols []int
	for i, ok := used.NextSet(0); ok; i, ok = used.NextSet(i + 1) {
		cols = append(cols, int(i))
	}

	m := mapping.New(fieldCount, len(cols))
	schema := make(sql.Schema, len(cols))
	for i, c := range cols {
		if err := m.Set(c, i); err != nil {
			return TrimResult{}, err
		}
		schema[i] = v.Schema()[c]
	}

	tuples := make([]sql.Row, len(v.Tuples))
	for k, tuple := range v.Tuples {
		row := make(sql.Row, len(cols))
		for i, c := range cols {
			row[i] = tuple[c]
		}
		tuples[k] = row
	}
	return TrimResult{Node: plan.NewValues(schema, tuples...), Mapping: m}, nil
}

func (t *FieldTrimmer) trimInsertInto(i *plan.InsertInto) (TrimResult, error) {
	input := i.Child
	res, err := t.trimFields(input, allFields(len(input.Schema())))
	if err != nil {
		return TrimResult{}, err
	}
	if !res.Mapping.IsIdentity() {
		return TrimResult{}, ErrUnexpectedMapping.New(i, res.Mapping)
	}
	if res.Node == input {
		return unchanged(i), nil
	}

	n, err := i.WithChildren(res.Node)
	if err != nil {
		return TrimResult{}, err
	}
	return unchanged(n), nil
}

func (t *FieldTrimmer) trimTableFunction(f *plan.TableFunction) (TrimResult, error) {
	inputs := f.Children()
	newInputs := make([]sql.Node, len(inputs))
	changed := false
	for k, input := range inputs {
		n, err := t.trimChildRestore(input, allFields(len(input.Schema())))
		if err != nil {
			return TrimResult{}, err
		}
		if n != input {
			changed = true
		}
		newInputs[k] = n
	}
	if !changed {
		return unchanged(f), nil
	}

	n, err := f.WithChildren(newInputs...)
	if err != nil {
		return TrimResult{}, err
	}
	return unchanged(n), nil
}
