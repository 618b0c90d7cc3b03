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

package expression

import (
	"fmt"
	"strings"

	"github.com/dolthub/calcplanner/sql"
)

// Notation is how a call to an operator is printed.
type Notation byte

const (
	// FunctionNotation prints name(arg1, arg2).
	FunctionNotation Notation = iota
	// InfixNotation prints (arg1 name arg2).
	InfixNotation
	// PrefixNotation prints name arg1.
	PrefixNotation
	// PostfixNotation prints arg1 name.
	PostfixNotation
)

// Operator describes a scalar operator or function. Operators are compared
// by name, so names must be unique within a registry.
type Operator struct {
	// Name of the operator, used for printing and for capability lookups.
	Name     string
	Notation Notation
	// MinArgs and MaxArgs bound the number of operands. MaxArgs < 0 means
	// no upper bound.
	MinArgs int
	MaxArgs int
	// ReturnType computes the result type from the operand types.
	ReturnType func(args []sql.Type) sql.Type
	// Nullable is true when the operator can return NULL for non-NULL
	// operands.
	Nullable bool
	// Eval computes the result from the evaluated operands.
	Eval func(args []interface{}) (interface{}, error)
}

// Call applies an operator to its operands.
type Call struct {
	op   *Operator
	args []sql.Expression
}

var _ sql.Expression = (*Call)(nil)

// NewCall creates a call to the given operator.
func NewCall(op *Operator, args ...sql.Expression) *Call {
	return &Call{op: op, args: args}
}

// Operator returns the called operator.
func (c *Call) Operator() *Operator { return c.op }

// Type implements the Expression interface.
func (c *Call) Type() sql.Type {
	types := make([]sql.Type, len(c.args))
	for i, a := range c.args {
		types[i] = a.Type()
	}
	return c.op.ReturnType(types)
}

// IsNullable implements the Expression interface.
func (c *Call) IsNullable() bool {
	if c.op.Nullable {
		return true
	}
	for _, a := range c.args {
		if a.IsNullable() {
			return true
		}
	}
	return false
}

// Eval implements the Expression interface.
func (c *Call) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	vals := make([]interface{}, len(c.args))
	for i, a := range c.args {
		v, err := a.Eval(ctx, row)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return c.op.Eval(vals)
}

// Children implements the Expression interface.
func (c *Call) Children() []sql.Expression {
	return c.args
}

// WithChildren implements the Expression interface.
func (c *Call) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	if len(children) != len(c.args) {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), len(c.args))
	}
	return NewCall(c.op, children...), nil
}

func (c *Call) String() string {
	return c.format(func(e sql.Expression) string { return e.String() })
}

func (c *Call) DebugString() string {
	return c.format(func(e sql.Expression) string { return sql.DebugString(e) })
}

func (c *Call) format(str func(sql.Expression) string) string {
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = str(a)
	}

	switch c.op.Notation {
	case InfixNotation:
		return "(" + strings.Join(args, " "+c.op.Name+" ") + ")"
	case PrefixNotation:
		return fmt.Sprintf("%s %s", c.op.Name, strings.Join(args, " "))
	case PostfixNotation:
		return fmt.Sprintf("%s %s", strings.Join(args, " "), c.op.Name)
	default:
		return fmt.Sprintf("%s(%s)", c.op.Name, strings.Join(args, ", "))
	}
}
