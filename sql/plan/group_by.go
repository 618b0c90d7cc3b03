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

package plan

import (
	"fmt"
	"strings"

	"github.com/dolthub/calcplanner/sql"
)

// AggregateCall is a call to an aggregate function over columns of the
// input of a GroupBy.
type AggregateCall struct {
	// Func is the name of the aggregate function.
	Func     string
	Distinct bool
	// Args are positions of input columns.
	Args []int
	Type sql.Type
	Name string
}

func (c AggregateCall) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fmt.Sprintf("$%d", a)
	}
	distinct := ""
	if c.Distinct {
		distinct = "DISTINCT "
	}
	return fmt.Sprintf("%s(%s%s) as %s", c.Func, distinct, strings.Join(args, ", "), c.Name)
}

// GroupBy groups the rows of its child by some of its columns and computes
// aggregates over each group. Its rows are the system fields, followed by the
// grouping columns and one column per aggregate call. System fields and
// grouping columns are positions of input columns that are passed through.
type GroupBy struct {
	UnaryNode
	SystemFields []int
	Grouping     []int
	AggCalls     []AggregateCall
}

// NewGroupBy creates a new GroupBy node.
func NewGroupBy(grouping []int, aggCalls []AggregateCall, child sql.Node) *GroupBy {
	return NewGroupByWithSystemFields(nil, grouping, aggCalls, child)
}

// NewGroupByWithSystemFields creates a new GroupBy node whose rows start
// with the given input columns.
func NewGroupByWithSystemFields(sys, grouping []int, aggCalls []AggregateCall, child sql.Node) *GroupBy {
	return &GroupBy{
		UnaryNode:    UnaryNode{Child: child},
		SystemFields: sys,
		Grouping:     grouping,
		AggCalls:     aggCalls,
	}
}

// Schema implements the Node interface.
func (g *GroupBy) Schema() sql.Schema {
	child := g.Child.Schema()
	schema := make(sql.Schema, 0, len(g.SystemFields)+len(g.Grouping)+len(g.AggCalls))
	for _, idx := range g.SystemFields {
		schema = append(schema, child[idx])
	}
	for _, idx := range g.Grouping {
		schema = append(schema, child[idx])
	}
	for _, c := range g.AggCalls {
		schema = append(schema, &sql.Column{Name: c.Name, Type: c.Type, Nullable: true})
	}
	return schema
}

// WithChildren implements the Node interface.
func (g *GroupBy) WithChildren(children ...sql.Node) (sql.Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(g, len(children), 1)
	}
	return NewGroupByWithSystemFields(g.SystemFields, g.Grouping, g.AggCalls, children[0]), nil
}

func (g *GroupBy) String() string {
	pr := sql.NewTreePrinter()
	grouping := make([]string, len(g.Grouping))
	for i, idx := range g.Grouping {
		grouping[i] = fmt.Sprintf("$%d", idx)
	}
	aggs := make([]string, len(g.AggCalls))
	for i, c := range g.AggCalls {
		aggs[i] = c.String()
	}
	if len(g.SystemFields) > 0 {
		_ = pr.WriteNode("GroupBy(%v; %s; %s)", g.SystemFields, strings.Join(grouping, ", "), strings.Join(aggs, ", "))
	} else {
		_ = pr.WriteNode("GroupBy(%s; %s)", strings.Join(grouping, ", "), strings.Join(aggs, ", "))
	}
	_ = pr.WriteChildren(g.Child.String())
	return pr.String()
}
