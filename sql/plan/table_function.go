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

// TableFunction is a function that produces rows from its arguments and the
// rows of its inputs. It sees every column of its inputs.
type TableFunction struct {
	Name   string
	Args   []sql.Expression
	inputs []sql.Node
	schema sql.Schema
}

var _ sql.Node = (*TableFunction)(nil)
var _ sql.Expressioner = (*TableFunction)(nil)

// NewTableFunction creates a new TableFunction node.
func NewTableFunction(name string, args []sql.Expression, schema sql.Schema, inputs ...sql.Node) *TableFunction {
	return &TableFunction{Name: name, Args: args, inputs: inputs, schema: schema}
}

// Schema implements the Node interface.
func (t *TableFunction) Schema() sql.Schema {
	return t.schema
}

// Children implements the Node interface.
func (t *TableFunction) Children() []sql.Node {
	return t.inputs
}

// WithChildren implements the Node interface.
func (t *TableFunction) WithChildren(children ...sql.Node) (sql.Node, error) {
	if len(children) != len(t.inputs) {
		return nil, sql.ErrInvalidChildrenNumber.New(t, len(children), len(t.inputs))
	}
	return NewTableFunction(t.Name, t.Args, t.schema, children...), nil
}

// Expressions implements the Expressioner interface.
func (t *TableFunction) Expressions() []sql.Expression {
	return t.Args
}

// WithExpressions implements the Expressioner interface.
func (t *TableFunction) WithExpressions(exprs ...sql.Expression) (sql.Node, error) {
	if len(exprs) != len(t.Args) {
		return nil, sql.ErrInvalidExpressionNumber.New(t, len(exprs), len(t.Args))
	}
	return NewTableFunction(t.Name, exprs, t.schema, t.inputs...), nil
}

func (t *TableFunction) String() string {
	pr := sql.NewTreePrinter()
	_ = pr.WriteNode("TableFunction %s(%s)", t.Name, exprsString(t.Args))
	_ = pr.WriteChildren(childrenStrings(t.inputs)...)
	return pr.String()
}
