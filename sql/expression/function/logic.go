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
	"github.com/spf13/cast"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
)

var (
	// And is the three-valued logical conjunction.
	And = &expression.Operator{
		Name:       "AND",
		Notation:   expression.InfixNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: booleanType,
		Eval: func(args []interface{}) (interface{}, error) {
			l, r, err := booleans(args[0], args[1])
			if err != nil {
				return nil, err
			}
			if isFalse(l) || isFalse(r) {
				return false, nil
			}
			if l == nil || r == nil {
				return nil, nil
			}
			return true, nil
		},
	}

	// Or is the three-valued logical disjunction.
	Or = &expression.Operator{
		Name:       "OR",
		Notation:   expression.InfixNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: booleanType,
		Eval: func(args []interface{}) (interface{}, error) {
			l, r, err := booleans(args[0], args[1])
			if err != nil {
				return nil, err
			}
			if isTrue(l) || isTrue(r) {
				return true, nil
			}
			if l == nil || r == nil {
				return nil, nil
			}
			return false, nil
		},
	}

	// Not negates a boolean.
	Not = &expression.Operator{
		Name:       "NOT",
		Notation:   expression.PrefixNotation,
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: booleanType,
		Eval: func(args []interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			b, err := cast.ToBoolE(args[0])
			if err != nil {
				return nil, sql.ErrConvertingToType.New(args[0], sql.Boolean)
			}
			return !b, nil
		},
	}

	// IsNull is true when its operand is NULL.
	IsNull = &expression.Operator{
		Name:       "IS NULL",
		Notation:   expression.PostfixNotation,
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: booleanType,
		Eval: func(args []interface{}) (interface{}, error) {
			return args[0] == nil, nil
		},
	}

	// IsNotNull is true when its operand is not NULL.
	IsNotNull = &expression.Operator{
		Name:       "IS NOT NULL",
		Notation:   expression.PostfixNotation,
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: booleanType,
		Eval: func(args []interface{}) (interface{}, error) {
			return args[0] != nil, nil
		},
	}
)

func booleans(l, r interface{}) (interface{}, interface{}, error) {
	lb, err := sql.Boolean.Convert(l)
	if err != nil {
		return nil, nil, err
	}
	rb, err := sql.Boolean.Convert(r)
	if err != nil {
		return nil, nil, err
	}
	return lb, rb, nil
}

func isTrue(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func isFalse(v interface{}) bool {
	b, ok := v.(bool)
	return ok && !b
}

// IsTrue reports whether the given value is a boolean true.
func IsTrue(v interface{}) (bool, error) {
	if v == nil {
		return false, nil
	}
	b, err := sql.Boolean.Convert(v)
	if err != nil {
		return false, err
	}
	return b.(bool), nil
}
