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
	// Plus adds two numbers.
	Plus = &expression.Operator{
		Name:       "+",
		Notation:   expression.InfixNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: numericType,
		Eval: arithmetic(
			func(l, r int64) (interface{}, error) { return l + r, nil },
			func(l, r float64) (interface{}, error) { return l + r, nil },
		),
	}

	// Minus subtracts two numbers.
	Minus = &expression.Operator{
		Name:       "-",
		Notation:   expression.InfixNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: numericType,
		Eval: arithmetic(
			func(l, r int64) (interface{}, error) { return l - r, nil },
			func(l, r float64) (interface{}, error) { return l - r, nil },
		),
	}

	// Mult multiplies two numbers.
	Mult = &expression.Operator{
		Name:       "*",
		Notation:   expression.InfixNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: numericType,
		Eval: arithmetic(
			func(l, r int64) (interface{}, error) { return l * r, nil },
			func(l, r float64) (interface{}, error) { return l * r, nil },
		),
	}

	// Div divides two numbers. Division by zero is NULL.
	Div = &expression.Operator{
		Name:       "/",
		Notation:   expression.InfixNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: func([]sql.Type) sql.Type { return sql.Float64 },
		Nullable:   true,
		Eval: func(args []interface{}) (interface{}, error) {
			l, r, ok, err := floatOperands(args[0], args[1])
			if !ok || err != nil {
				return nil, err
			}
			if r == 0 {
				return nil, nil
			}
			return l / r, nil
		},
	}
)

func numericType(args []sql.Type) sql.Type {
	for _, t := range args {
		if sql.IsFloat(t) {
			return sql.Float64
		}
	}
	return sql.Int64
}

func isFloatValue(v interface{}) bool {
	switch v.(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

// floatOperands converts both operands to float64. ok is false if one of
// them is NULL.
func floatOperands(l, r interface{}) (lf, rf float64, ok bool, err error) {
	if l == nil || r == nil {
		return 0, 0, false, nil
	}
	if lf, err = cast.ToFloat64E(l); err != nil {
		return 0, 0, false, sql.ErrConvertingToType.New(l, sql.Float64)
	}
	if rf, err = cast.ToFloat64E(r); err != nil {
		return 0, 0, false, sql.ErrConvertingToType.New(r, sql.Float64)
	}
	return lf, rf, true, nil
}

func arithmetic(
	ints func(l, r int64) (interface{}, error),
	floats func(l, r float64) (interface{}, error),
) func([]interface{}) (interface{}, error) {
	return func(args []interface{}) (interface{}, error) {
		l, r := args[0], args[1]
		if l == nil || r == nil {
			return nil, nil
		}

		if !isFloatValue(l) && !isFloatValue(r) {
			li, lerr := cast.ToInt64E(l)
			ri, rerr := cast.ToInt64E(r)
			if lerr == nil && rerr == nil {
				return ints(li, ri)
			}
		}

		lf, rf, _, err := floatOperands(l, r)
		if err != nil {
			return nil, err
		}
		return floats(lf, rf)
	}
}
