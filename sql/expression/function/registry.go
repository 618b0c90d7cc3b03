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

package function

import (
	"fmt"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
)

var (
	// ErrFunctionNotFound is thrown when a function is not found.
	ErrFunctionNotFound = errors.NewKind("function not found: %s")

	// ErrFunctionAlreadyRegistered is thrown when an operator with the same
	// name is registered twice.
	ErrFunctionAlreadyRegistered = errors.NewKind("function already registered: %s")

	// ErrInvalidArgumentNumber is returned when the number of arguments to call a
	// function is different from the function arity.
	ErrInvalidArgumentNumber = errors.NewKind("function '%s' expected %v arguments, %v received")
)

// Defaults is the list of operators every registry starts with.
var Defaults = []*expression.Operator{
	Plus,
	Minus,
	Mult,
	Div,
	Equals,
	NotEquals,
	LessThan,
	LessThanOrEqual,
	GreaterThan,
	GreaterThanOrEqual,
	And,
	Or,
	Not,
	IsNull,
	IsNotNull,
	Upper,
	Lower,
	Concat,
	Like,
	Abs,
	Sqrt,
	Coalesce,
}

// Registry is used to find operators by name.
type Registry map[string]*expression.Operator

// NewRegistry creates a new Registry with the default operators.
func NewRegistry() Registry {
	r := make(Registry)
	if err := r.Register(Defaults...); err != nil {
		panic(err)
	}
	return r
}

// Register adds the given operators to the registry.
func (r Registry) Register(ops ...*expression.Operator) error {
	for _, op := range ops {
		key := strings.ToLower(op.Name)
		if _, ok := r[key]; ok {
			return ErrFunctionAlreadyRegistered.New(op.Name)
		}
		r[key] = op
	}
	return nil
}

// Operator returns the operator with the given name.
func (r Registry) Operator(name string) (*expression.Operator, error) {
	op, ok := r[strings.ToLower(name)]
	if !ok {
		return nil, ErrFunctionNotFound.New(name)
	}
	return op, nil
}

// Call builds a call to the named operator after checking its arity.
func (r Registry) Call(name string, args ...sql.Expression) (*expression.Call, error) {
	op, err := r.Operator(name)
	if err != nil {
		return nil, err
	}
	if len(args) < op.MinArgs || (op.MaxArgs >= 0 && len(args) > op.MaxArgs) {
		return nil, ErrInvalidArgumentNumber.New(op.Name, arity(op), len(args))
	}
	return expression.NewCall(op, args...), nil
}

func arity(op *expression.Operator) string {
	switch {
	case op.MaxArgs < 0:
		return fmt.Sprintf("at least %d", op.MinArgs)
	case op.MaxArgs == op.MinArgs:
		return fmt.Sprint(op.MinArgs)
	default:
		return fmt.Sprintf("%d to %d", op.MinArgs, op.MaxArgs)
	}
}
