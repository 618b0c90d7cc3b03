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
	"strings"

	"github.com/spf13/cast"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
)

var (
	// Equals is true when both operands are equal.
	Equals = comparison("=", func(c int) bool { return c == 0 })
	// NotEquals is true when the operands differ.
	NotEquals = comparison("<>", func(c int) bool { return c != 0 })
	// LessThan is true when the left operand is smaller.
	LessThan = comparison("<", func(c int) bool { return c < 0 })
	// LessThanOrEqual is true when the left operand is not greater.
	LessThanOrEqual = comparison("<=", func(c int) bool { return c <= 0 })
	// GreaterThan is true when the left operand is greater.
	GreaterThan = comparison(">", func(c int) bool { return c > 0 })
	// GreaterThanOrEqual is true when the left operand is not smaller.
	GreaterThanOrEqual = comparison(">=", func(c int) bool { return c >= 0 })
)

func booleanType([]sql.Type) sql.Type { return sql.Boolean }

func comparison(name string, accept func(int) bool) *expression.Operator {
	return &expression.Operator{
		Name:       name,
		Notation:   expression.InfixNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: booleanType,
		Eval: func(args []interface{}) (interface{}, error) {
			if args[0] == nil || args[1] == nil {
				return nil, nil
			}
			c, err := Compare(args[0], args[1])
			if err != nil {
				return nil, err
			}
			return accept(c), nil
		},
	}
}

// Compare returns -1, 0 or 1 if l is smaller, equal or greater than r.
// Numbers compare numerically, strings lexically and booleans with false
// before true. Mixed kinds are compared as numbers when both convert, and as
// strings otherwise. NULL sorts before every other value.
func Compare(l, r interface{}) (int, error) {
	switch {
	case l == nil && r == nil:
		return 0, nil
	case l == nil:
		return -1, nil
	case r == nil:
		return 1, nil
	}

	switch lv := l.(type) {
	case string:
		if rv, ok := r.(string); ok {
			return strings.Compare(lv, rv), nil
		}
	case bool:
		if rv, ok := r.(bool); ok {
			switch {
			case lv == rv:
				return 0, nil
			case !lv:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}

	lf, lerr := cast.ToFloat64E(l)
	rf, rerr := cast.ToFloat64E(r)
	if lerr == nil && rerr == nil {
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	ls, err := cast.ToStringE(l)
	if err != nil {
		return 0, sql.ErrConvertingToType.New(l, sql.Text)
	}
	rs, err := cast.ToStringE(r)
	if err != nil {
		return 0, sql.ErrConvertingToType.New(r, sql.Text)
	}
	return strings.Compare(ls, rs), nil
}
