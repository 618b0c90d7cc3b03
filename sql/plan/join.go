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

// JoinType is the kind of join.
type JoinType uint16

const (
	JoinTypeInner JoinType = iota
	JoinTypeLeftOuter
	JoinTypeRightOuter
	JoinTypeFullOuter
)

func (i JoinType) String() string {
	switch i {
	case JoinTypeInner:
		return "InnerJoin"
	case JoinTypeLeftOuter:
		return "LeftOuterJoin"
	case JoinTypeRightOuter:
		return "RightOuterJoin"
	case JoinTypeFullOuter:
		return "FullOuterJoin"
	default:
		return fmt.Sprintf("JoinType(%d)", uint16(i))
	}
}

// IsLeftOuter returns whether the rows of the right side can be NULL.
func (i JoinType) IsLeftOuter() bool {
	return i == JoinTypeLeftOuter || i == JoinTypeFullOuter
}

// IsRightOuter returns whether the rows of the left side can be NULL.
func (i JoinType) IsRightOuter() bool {
	return i == JoinTypeRightOuter || i == JoinTypeFullOuter
}

// JoinNode joins two nodes. Its rows are the system fields, followed by
// the columns of the left side and the columns of the right side. The
// condition is evaluated over that same row.
type JoinNode struct {
	BinaryNode
	Filter       sql.Expression
	Op           JoinType
	SystemFields sql.Schema
}

var _ sql.Expressioner = (*JoinNode)(nil)

// NewJoin creates a new join node.
func NewJoin(left, right sql.Node, op JoinType, cond sql.Expression) *JoinNode {
	return NewJoinWithSystemFields(left, right, op, cond, nil)
}

// NewJoinWithSystemFields creates a new join node whose rows start with the
// given system fields.
func NewJoinWithSystemFields(left, right sql.Node, op JoinType, cond sql.Expression, sys sql.Schema) *JoinNode {
	return &JoinNode{
		BinaryNode:   BinaryNode{left: left, right: right},
		Filter:       cond,
		Op:           op,
		SystemFields: sys,
	}
}

// Schema implements the Node interface.
func (j *JoinNode) Schema() sql.Schema {
	left, right := j.left.Schema(), j.right.Schema()
	schema := make(sql.Schema, 0, len(j.SystemFields)+len(left)+len(right))
	schema = append(schema, j.SystemFields...)
	schema = append(schema, nullable(left, j.Op.IsRightOuter())...)
	schema = append(schema, nullable(right, j.Op.IsLeftOuter())...)
	return schema
}

func nullable(s sql.Schema, force bool) sql.Schema {
	if !force {
		return s
	}
	ns := make(sql.Schema, len(s))
	for i, col := range s {
		c := *col
		c.Nullable = true
		ns[i] = &c
	}
	return ns
}

// JoinCond returns the join condition.
func (j *JoinNode) JoinCond() sql.Expression {
	return j.Filter
}

// Expressions implements the Expressioner interface.
func (j *JoinNode) Expressions() []sql.Expression {
	return []sql.Expression{j.Filter}
}

// WithExpressions implements the Expressioner interface.
func (j *JoinNode) WithExpressions(exprs ...sql.Expression) (sql.Node, error) {
	if len(exprs) != 1 {
		return nil, sql.ErrInvalidExpressionNumber.New(j, len(exprs), 1)
	}
	return NewJoinWithSystemFields(j.left, j.right, j.Op, exprs[0], j.SystemFields), nil
}

// WithChildren implements the Node interface.
func (j *JoinNode) WithChildren(children ...sql.Node) (sql.Node, error) {
	if len(children) != 2 {
		return nil, sql.ErrInvalidChildrenNumber.New(j, len(children), 2)
	}
	return NewJoinWithSystemFields(children[0], children[1], j.Op, j.Filter, j.SystemFields), nil
}

func (j *JoinNode) String() string {
	pr := sql.NewTreePrinter()
	if len(j.SystemFields) > 0 {
		_ = pr.WriteNode("%s(%s) [%s]", j.Op, j.Filter, strings.Join(j.SystemFields.Names(), ", "))
	} else {
		_ = pr.WriteNode("%s(%s)", j.Op, j.Filter)
	}
	_ = pr.WriteChildren(j.left.String(), j.right.String())
	return pr.String()
}
