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
	"fmt"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/plan"
)

// ErrUnsupportedNode is returned when a node has no executor.
var ErrUnsupportedNode = errors.NewKind("cannot execute node of type %T")

// NodeExecBuilder converts a plan tree into a RowIter tree.
type NodeExecBuilder interface {
	Build(ctx *sql.Context, n sql.Node, r sql.Row) (sql.RowIter, error)
}

var DefaultBuilder = &BaseBuilder{}

var _ NodeExecBuilder = (*BaseBuilder)(nil)

type ExecBuilderFunc func(ctx *sql.Context, n sql.Node, r sql.Row) (sql.RowIter, error)

// BaseBuilder converts a plan tree into a RowIter tree. All relational nodes
// of the calc planner have a build statement. Calcs assigned to a backend are
// run by the override builder if one is given, and evaluated in process
// otherwise.
type BaseBuilder struct {
	// if override is provided, we try to build executor with this first
	override NodeExecBuilder
}

// panicSafeExecBuilder wraps another NodeExecBuilder and converts panics to
// errors, so a faulty backend executor cannot crash the caller.
type panicSafeExecBuilder struct {
	inner NodeExecBuilder
}

func newPanicSafeExecBuilder(inner NodeExecBuilder) NodeExecBuilder {
	if inner == nil {
		return nil
	}
	return &panicSafeExecBuilder{inner: inner}
}

func (p *panicSafeExecBuilder) Build(ctx *sql.Context, n sql.Node, r sql.Row) (iter sql.RowIter, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("exec builder panic: %v", rec)
			iter = nil
		}
	}()
	return p.inner.Build(ctx, n, r)
}

// NewOverrideBuilder returns a builder that tries override first for every
// node. The override returns a nil iterator and no error to decline a node.
func NewOverrideBuilder(override NodeExecBuilder) NodeExecBuilder {
	return &BaseBuilder{override: newPanicSafeExecBuilder(override)}
}

// Build implements the NodeExecBuilder interface.
func (b *BaseBuilder) Build(ctx *sql.Context, n sql.Node, r sql.Row) (sql.RowIter, error) {
	return b.buildNodeExec(ctx, n, r)
}

// Build converts the plan tree into a RowIter tree using the default builder.
func Build(ctx *sql.Context, n sql.Node) (sql.RowIter, error) {
	return DefaultBuilder.Build(ctx, n, nil)
}

// Rows executes the plan and collects all its rows.
func Rows(ctx *sql.Context, n sql.Node) ([]sql.Row, error) {
	iter, err := Build(ctx, n)
	if err != nil {
		return nil, err
	}
	return sql.RowIterToRows(ctx, iter)
}

func (b *BaseBuilder) buildNodeExec(ctx *sql.Context, n sql.Node, row sql.Row) (sql.RowIter, error) {
	if b.override != nil {
		iter, err := b.override.Build(ctx, n, row)
		if err != nil {
			return nil, err
		}
		if iter != nil {
			return iter, nil
		}
	}

	switch n := n.(type) {
	case *plan.ResolvedTable:
		return b.buildResolvedTable(ctx, n, row)
	case *plan.Values:
		return b.buildValues(ctx, n, row)
	case *plan.Project:
		return b.buildProject(ctx, n, row)
	case *plan.Filter:
		return b.buildFilter(ctx, n, row)
	case *plan.Calc:
		return b.buildCalc(ctx, n, row)
	case *plan.Sort:
		return b.buildSort(ctx, n, row)
	case *plan.SetOp:
		return b.buildSetOp(ctx, n, row)
	case *plan.JoinNode:
		return b.buildJoinNode(ctx, n, row)
	case *plan.InsertInto:
		return b.buildInsertInto(ctx, n, row)
	default:
		return nil, ErrUnsupportedNode.New(n)
	}
}
