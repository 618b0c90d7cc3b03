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
	"math"

	"github.com/spf13/cast"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
)

var (
	// Abs returns the absolute value of a number.
	Abs = &expression.Operator{
		Name:       "abs",
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: numericType,
		Eval: func(args []interface{}) (interface{}, error) {
			v := args[0]
			if v == nil {
				return nil, nil
			}
			if !isFloatValue(v) {
				if i, err := cast.ToInt64E(v); err == nil {
					if i < 0 {
						return -i, nil
					}
					return i, nil
				}
			}
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, sql.ErrConvertingToType.New(v, sql.Float64)
			}
			return math.Abs(f), nil
		},
	}

	// Sqrt returns the square root of a number, or NULL for negative
	// numbers.
	Sqrt = &expression.Operator{
		Name:       "sqrt",
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: func([]sql.Type) sql.Type { return sql.Float64 },
		Nullable:   true,
		Eval: func(args []interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			f, err := cast.ToFloat64E(args[0])
			if err != nil {
				return nil, sql.ErrConvertingToType.New(args[0], sql.Float64)
			}
			if f < 0 {
				return nil, nil
			}
			return math.Sqrt(f), nil
		},
	}

	// Coalesce returns the first operand that is not NULL.
	Coalesce = &expression.Operator{
		Name:    "coalesce",
		MinArgs: 1,
		MaxArgs: -1,
		ReturnType: func(args []sql.Type) sql.Type {
			for _, t := range args {
				if !t.Equals(sql.Null) {
					return t
				}
			}
			return sql.Null
		},
		Eval: func(args []interface{}) (interface{}, error) {
			for _, arg := range args {
				if arg != nil {
					return arg, nil
				}
			}
			return nil, nil
		},
	}
)
