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

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/plan"
)

// Inserter is a table that accepts new rows.
type Inserter interface {
	sql.Table
	Insert(ctx *sql.Context, row sql.Row) error
}

func (b *BaseBuilder) buildInsertInto(ctx *sql.Context, n *plan.InsertInto, row sql.Row) (sql.RowIter, error) {
	dst, ok := n.Destination.(Inserter)
	if !ok {
		return nil, ErrTableNotInsertable.New(n.Destination.Name())
	}

	span, ctx := ctx.Span("plan.Insert")
	i, err := b.buildNodeExec(ctx, n.Child, row)
	if err != nil {
		span.Finish()
		return nil, err
	}

	return newSpanIter(span, &insertIter{dst: dst, childIter: i}), nil
}

// insertIter writes every row of its child into the destination and then
// returns a single row with the number of rows written.
type insertIter struct {
	dst       Inserter
	childIter sql.RowIter
	done      bool
}

func (i *insertIter) Next(ctx *sql.Context) (sql.Row, error) {
	if i.done {
		return nil, io.EOF
	}

	var count int64
	for {
		row, err := i.childIter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := i.dst.Insert(ctx, row); err != nil {
			return nil, err
		}
		count++
	}

	i.done = true
	return sql.NewRow(count), nil
}

func (i *insertIter) Close(ctx *sql.Context) error {
	return i.childIter.Close(ctx)
}
