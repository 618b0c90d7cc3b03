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

package rowexec

import (
	"io"
	"sort"

	"github.com/mitchellh/hashstructure"
	opentracing "github.com/opentracing/opentracing-go"
	"go.uber.org/multierr"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression/function"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/program"
)

// spanIter finishes its span when the wrapped iterator is closed.
type spanIter struct {
	span opentracing.Span
	iter sql.RowIter
	rows int
	done bool
}

func newSpanIter(span opentracing.Span, iter sql.RowIter) sql.RowIter {
	return &spanIter{span: span, iter: iter}
}

func (i *spanIter) Next(ctx *sql.Context) (sql.Row, error) {
	row, err := i.iter.Next(ctx)
	if err == nil {
		i.rows++
	}
	return row, err
}

func (i *spanIter) Close(ctx *sql.Context) error {
	if !i.done {
		i.span.SetTag("rows", i.rows)
		i.span.Finish()
		i.done = true
	}
	return i.iter.Close(ctx)
}

type projectIter struct {
	p         []sql.Expression
	childIter sql.RowIter
}

func (i *projectIter) Next(ctx *sql.Context) (sql.Row, error) {
	childRow, err := i.childIter.Next(ctx)
	if err != nil {
		return nil, err
	}

	return project(ctx, i.p, childRow)
}

func (i *projectIter) Close(ctx *sql.Context) error {
	return i.childIter.Close(ctx)
}

func project(ctx *sql.Context, projections []sql.Expression, row sql.Row) (sql.Row, error) {
	fields := make(sql.Row, len(projections))
	for j, expr := range projections {
		f, err := expr.Eval(ctx, row)
		if err != nil {
			return nil, err
		}
		fields[j] = f
	}
	return fields, nil
}

type filterIter struct {
	cond      sql.Expression
	childIter sql.RowIter
}

func (i *filterIter) Next(ctx *sql.Context) (sql.Row, error) {
	for {
		row, err := i.childIter.Next(ctx)
		if err != nil {
			return nil, err
		}

		ok, err := matches(ctx, i.cond, row)
		if err != nil {
			return nil, err
		}
		if ok {
			return row, nil
		}
	}
}

func (i *filterIter) Close(ctx *sql.Context) error {
	return i.childIter.Close(ctx)
}

func matches(ctx *sql.Context, cond sql.Expression, row sql.Row) (bool, error) {
	v, err := cond.Eval(ctx, row)
	if err != nil {
		return false, err
	}
	return function.IsTrue(v)
}

// calcIter evaluates a program over each row of its child and drops the rows
// rejected by the program's condition.
type calcIter struct {
	p         *program.Program
	childIter sql.RowIter
}

func (i *calcIter) Next(ctx *sql.Context) (sql.Row, error) {
	for {
		row, err := i.childIter.Next(ctx)
		if err != nil {
			return nil, err
		}

		out, ok, err := i.p.Evaluate(ctx, row)
		if err != nil {
			return nil, err
		}
		if ok {
			return out, nil
		}
	}
}

func (i *calcIter) Close(ctx *sql.Context) error {
	return i.childIter.Close(ctx)
}

type sortIter struct {
	sortFields []plan.SortField
	childIter  sql.RowIter
	sortedRows []sql.Row
	idx        int
}

func newSortIter(fields []plan.SortField, child sql.RowIter) *sortIter {
	return &sortIter{
		sortFields: fields,
		childIter:  child,
		idx:        -1,
	}
}

func (i *sortIter) Next(ctx *sql.Context) (sql.Row, error) {
	if i.idx == -1 {
		err := i.computeSortedRows(ctx)
		if err != nil {
			return nil, err
		}
		i.idx = 0
	}

	if i.idx >= len(i.sortedRows) {
		return nil, io.EOF
	}
	row := i.sortedRows[i.idx]
	i.idx++
	return row, nil
}

func (i *sortIter) Close(ctx *sql.Context) error {
	i.sortedRows = nil
	return i.childIter.Close(ctx)
}

func (i *sortIter) computeSortedRows(ctx *sql.Context) error {
	var rows []sql.Row
	for {
		row, err := i.childIter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	sorter := &sorter{
		sortFields: i.sortFields,
		rows:       rows,
		ctx:        ctx,
	}
	sort.Stable(sorter)
	if sorter.lastError != nil {
		return sorter.lastError
	}
	i.sortedRows = rows
	return nil
}

type sorter struct {
	sortFields []plan.SortField
	rows       []sql.Row
	lastError  error
	ctx        *sql.Context
}

func (s *sorter) Len() int {
	return len(s.rows)
}

func (s *sorter) Swap(i, j int) {
	s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
}

func (s *sorter) Less(i, j int) bool {
	if s.lastError != nil {
		return false
	}

	a := s.rows[i]
	b := s.rows[j]
	for _, sf := range s.sortFields {
		av, err := sf.Column.Eval(s.ctx, a)
		if err != nil {
			s.lastError = ErrUnableSort.Wrap(err)
			return false
		}

		bv, err := sf.Column.Eval(s.ctx, b)
		if err != nil {
			s.lastError = ErrUnableSort.Wrap(err)
			return false
		}

		if sf.Order == plan.Descending {
			av, bv = bv, av
		}

		cmp, err := function.Compare(av, bv)
		if err != nil {
			s.lastError = ErrUnableSort.Wrap(err)
			return false
		}
		if cmp != 0 {
			return cmp < 0
		}
	}

	return false
}

// unionIter returns the rows of each input in turn.
type unionIter struct {
	iters []sql.RowIter
	idx   int
}

func (i *unionIter) Next(ctx *sql.Context) (sql.Row, error) {
	for i.idx < len(i.iters) {
		row, err := i.iters[i.idx].Next(ctx)
		if err == io.EOF {
			i.idx++
			continue
		}
		return row, err
	}
	return nil, io.EOF
}

func (i *unionIter) Close(ctx *sql.Context) error {
	var err error
	for _, iter := range i.iters {
		err = multierr.Append(err, iter.Close(ctx))
	}
	return err
}

// setOpIter materializes its inputs and combines them by counting equal
// rows. Rows come out in the order they were first seen.
type setOpIter struct {
	kind     plan.SetOpKind
	distinct bool
	iters    []sql.RowIter
	rows     []sql.Row
	idx      int
	computed bool
}

func (i *setOpIter) Next(ctx *sql.Context) (sql.Row, error) {
	if !i.computed {
		rows, err := i.compute(ctx)
		if err != nil {
			return nil, err
		}
		i.rows = rows
		i.computed = true
	}

	if i.idx >= len(i.rows) {
		return nil, io.EOF
	}
	row := i.rows[i.idx]
	i.idx++
	return row, nil
}

func (i *setOpIter) Close(ctx *sql.Context) error {
	i.rows = nil
	var err error
	for _, iter := range i.iters {
		err = multierr.Append(err, iter.Close(ctx))
	}
	return err
}

func (i *setOpIter) compute(ctx *sql.Context) ([]sql.Row, error) {
	set := newRowMultiset(len(i.iters))
	for input, iter := range i.iters {
		for {
			row, err := iter.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			if err := set.add(input, row); err != nil {
				return nil, err
			}
		}
	}

	var out []sql.Row
	for _, e := range set.entries {
		if i.distinct {
			for k, c := range e.counts {
				if c > 1 {
					e.counts[k] = 1
				}
			}
		}
		n := i.multiplicity(e.counts)
		if i.distinct && n > 1 {
			n = 1
		}
		for k := 0; k < n; k++ {
			out = append(out, e.row)
		}
	}
	return out, nil
}

// multiplicity is the number of times a row with the given per-input counts
// appears in the result of a set operation with ALL semantics.
func (i *setOpIter) multiplicity(counts []int) int {
	switch i.kind {
	case plan.Intersect:
		n := counts[0]
		for _, c := range counts[1:] {
			if c < n {
				n = c
			}
		}
		return n
	case plan.Except:
		n := counts[0]
		for _, c := range counts[1:] {
			n -= c
		}
		if n < 0 {
			n = 0
		}
		return n
	default:
		n := 0
		for _, c := range counts {
			n += c
		}
		return n
	}
}

type multisetEntry struct {
	row    sql.Row
	counts []int
}

// rowMultiset counts equal rows per input. Rows are bucketed by hash and
// compared value by value within a bucket.
type rowMultiset struct {
	inputs  int
	buckets map[uint64][]int
	entries []*multisetEntry
}

func newRowMultiset(inputs int) *rowMultiset {
	return &rowMultiset{inputs: inputs, buckets: make(map[uint64][]int)}
}

func (s *rowMultiset) add(input int, row sql.Row) error {
	h, err := hashstructure.Hash(row, nil)
	if err != nil {
		return err
	}

	for _, idx := range s.buckets[h] {
		e := s.entries[idx]
		eq, err := rowsEqual(e.row, row)
		if err != nil {
			return err
		}
		if eq {
			e.counts[input]++
			return nil
		}
	}

	e := &multisetEntry{row: row, counts: make([]int, s.inputs)}
	e.counts[input] = 1
	s.buckets[h] = append(s.buckets[h], len(s.entries))
	s.entries = append(s.entries, e)
	return nil
}

func rowsEqual(a, b sql.Row) (bool, error) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		cmp, err := function.Compare(a[i], b[i])
		if err != nil {
			return false, err
		}
		if cmp != 0 {
			return false, nil
		}
	}
	return true, nil
}

// joinIter is a nested loop join. The right side is materialized on the
// first call to Next.
type joinIter struct {
	op        plan.JoinType
	cond      sql.Expression
	leftIter  sql.RowIter
	rightIter sql.RowIter
	leftSize  int
	rightSize int

	rightRows    []sql.Row
	rightMatched []bool
	loaded       bool
	pending      []sql.Row
	leftDone     bool
	unmatchedIdx int
}

func (i *joinIter) Next(ctx *sql.Context) (sql.Row, error) {
	if !i.loaded {
		if err := i.loadRight(ctx); err != nil {
			return nil, err
		}
	}

	for {
		if len(i.pending) > 0 {
			row := i.pending[0]
			i.pending = i.pending[1:]
			return row, nil
		}

		if i.leftDone {
			return i.nextUnmatchedRight()
		}

		left, err := i.leftIter.Next(ctx)
		if err == io.EOF {
			i.leftDone = true
			continue
		}
		if err != nil {
			return nil, err
		}

		matched := false
		for idx, right := range i.rightRows {
			row := left.Append(right)
			ok, err := matches(ctx, i.cond, row)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				i.rightMatched[idx] = true
				i.pending = append(i.pending, row)
			}
		}

		if !matched && i.op.IsLeftOuter() {
			i.pending = append(i.pending, left.Append(make(sql.Row, i.rightSize)))
		}
	}
}

func (i *joinIter) nextUnmatchedRight() (sql.Row, error) {
	if !i.op.IsRightOuter() {
		return nil, io.EOF
	}
	for i.unmatchedIdx < len(i.rightRows) {
		idx := i.unmatchedIdx
		i.unmatchedIdx++
		if !i.rightMatched[idx] {
			return make(sql.Row, i.leftSize).Append(i.rightRows[idx]), nil
		}
	}
	return nil, io.EOF
}

func (i *joinIter) loadRight(ctx *sql.Context) error {
	for {
		row, err := i.rightIter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		i.rightRows = append(i.rightRows, row)
	}
	i.rightMatched = make([]bool, len(i.rightRows))
	i.loaded = true
	return nil
}

func (i *joinIter) Close(ctx *sql.Context) error {
	i.rightRows = nil
	return multierr.Append(i.leftIter.Close(ctx), i.rightIter.Close(ctx))
}
