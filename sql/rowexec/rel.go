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
	opentracing "github.com/opentracing/opentracing-go"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/plan"
)

var (
	// ErrTableNotReadable is returned when a table cannot produce rows.
	ErrTableNotReadable = errors.NewKind("table %s cannot be read")

	// ErrTableNotInsertable is returned when inserting into a table that does
	// not accept rows.
	ErrTableNotInsertable = errors.NewKind("table %s does not support inserts")

	// ErrUnableSort is returned when a sort key cannot be evaluated.
	ErrUnableSort = errors.NewKind("unable to sort")
)

func (b *BaseBuilder) buildResolvedTable(ctx *sql.Context, n *plan.ResolvedTable, row sql.Row) (sql.RowIter, error) {
	span, ctx := ctx.Span("plan.ResolvedTable")

	src, ok := n.Table.(sql.RowSource)
	if !ok {
		span.Finish()
		return nil, ErrTableNotReadable.New(n.Table.Name())
	}

	iter, err := src.RowIter(ctx)
	if err != nil {
		span.Finish()
		return nil, err
	}

	return newSpanIter(span, iter), nil
}

func (b *BaseBuilder) buildValues(ctx *sql.Context, n *plan.Values, row sql.Row) (sql.RowIter, error) {
	return sql.RowsToRowIter(n.Tuples...), nil
}

func (b *BaseBuilder) buildProject(ctx *sql.Context, n *plan.Project, row sql.Row) (sql.RowIter, error) {
	span, ctx := ctx.Span("plan.Project", opentracing.Tag{Key: "projections", Value: len(n.Projections)})

	i, err := b.buildNodeExec(ctx, n.Child, row)
	if err != nil {
		span.Finish()
		return nil, err
	}

	return newSpanIter(span, &projectIter{
		p:         n.Projections,
		childIter: i,
	}), nil
}

func (b *BaseBuilder) buildFilter(ctx *sql.Context, n *plan.Filter, row sql.Row) (sql.RowIter, error) {
	span, ctx := ctx.Span("plan.Filter")

	i, err := b.buildNodeExec(ctx, n.Child, row)
	if err != nil {
		span.Finish()
		return nil, err
	}

	return newSpanIter(span, &filterIter{cond: n.Expression, childIter: i}), nil
}

func (b *BaseBuilder) buildCalc(ctx *sql.Context, n *plan.Calc, row sql.Row) (sql.RowIter, error) {
	span, ctx := ctx.Span("plan.Calc", opentracing.Tag{Key: "backend", Value: n.Backend})

	i, err := b.buildNodeExec(ctx, n.Child, row)
	if err != nil {
		span.Finish()
		return nil, err
	}

	return newSpanIter(span, &calcIter{p: n.Program, childIter: i}), nil
}

func (b *BaseBuilder) buildSort(ctx *sql.Context, n *plan.Sort, row sql.Row) (sql.RowIter, error) {
	span, ctx := ctx.Span("plan.Sort")
	i, err := b.buildNodeExec(ctx, n.Child, row)
	if err != nil {
		span.Finish()
		return nil, err
	}
	return newSpanIter(span, newSortIter(n.SortFields, i)), nil
}

func (b *BaseBuilder) buildSetOp(ctx *sql.Context, n *plan.SetOp, row sql.Row) (sql.RowIter, error) {
	span, ctx := ctx.Span("plan.SetOp", opentracing.Tags{
		"kind":     n.Kind.String(),
		"distinct": n.Distinct,
	})

	iters := make([]sql.RowIter, 0, len(n.Children()))
	for _, child := range n.Children() {
		i, err := b.buildNodeExec(ctx, child, row)
		if err != nil {
			for _, i := range iters {
				_ = i.Close(ctx)
			}
			span.Finish()
			return nil, err
		}
		iters = append(iters, i)
	}

	if n.Kind == plan.Union && !n.Distinct {
		return newSpanIter(span, &unionIter{iters: iters}), nil
	}
	return newSpanIter(span, &setOpIter{kind: n.Kind, distinct: n.Distinct, iters: iters}), nil
}

func (b *BaseBuilder) buildJoinNode(ctx *sql.Context, n *plan.JoinNode, row sql.Row) (sql.RowIter, error) {
	if len(n.SystemFields) > 0 {
		return nil, ErrUnsupportedNode.New(n)
	}

	span, ctx := ctx.Span("plan.Join", opentracing.Tag{Key: "op", Value: n.Op.String()})

	l, err := b.buildNodeExec(ctx, n.Left(), row)
	if err != nil {
		span.Finish()
		return nil, err
	}

	r, err := b.buildNodeExec(ctx, n.Right(), row)
	if err != nil {
		_ = l.Close(ctx)
		span.Finish()
		return nil, err
	}

	return newSpanIter(span, &joinIter{
		op:        n.Op,
		cond:      n.Filter,
		leftIter:  l,
		rightIter: r,
		leftSize:  len(n.Left().Schema()),
		rightSize: len(n.Right().Schema()),
	}), nil
}
