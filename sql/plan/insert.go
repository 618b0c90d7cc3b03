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
	"github.com/dolthub/calcplanner/sql"
)

// OkResultSchema is the schema of nodes that modify tables.
var OkResultSchema = sql.Schema{
	{Name: "row_count", Type: sql.Int64},
}

// InsertInto writes the rows of its child into a table.
type InsertInto struct {
	UnaryNode
	Destination sql.Table
}

var _ sql.Node = (*InsertInto)(nil)

// NewInsertInto creates an InsertInto node.
func NewInsertInto(dst sql.Table, src sql.Node) *InsertInto {
	return &InsertInto{
		UnaryNode:   UnaryNode{Child: src},
		Destination: dst,
	}
}

// Schema implements the Node interface.
func (p *InsertInto) Schema() sql.Schema {
	return OkResultSchema
}

// WithChildren implements the Node interface.
func (p *InsertInto) WithChildren(children ...sql.Node) (sql.Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(p, len(children), 1)
	}
	return NewInsertInto(p.Destination, children[0]), nil
}

func (p *InsertInto) String() string {
	pr := sql.NewTreePrinter()
	_ = pr.WriteNode("Insert(%s)", p.Destination.Name())
	_ = pr.WriteChildren(p.Child.String())
	return pr.String()
}
