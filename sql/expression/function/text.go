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
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
)

func textType([]sql.Type) sql.Type { return sql.Text }

var (
	// Upper returns the uppercase of the text provided.
	Upper = textFunction("upper", strings.ToUpper)
	// Lower returns the lowercase of the text provided.
	Lower = textFunction("lower", strings.ToLower)

	// Concat joins its operands into a single string. It is NULL if any
	// of them is NULL.
	Concat = &expression.Operator{
		Name:       "concat",
		MinArgs:    1,
		MaxArgs:    -1,
		ReturnType: textType,
		Eval: func(args []interface{}) (interface{}, error) {
			var sb strings.Builder
			for _, arg := range args {
				if arg == nil {
					return nil, nil
				}
				s, err := cast.ToStringE(arg)
				if err != nil {
					return nil, sql.ErrConvertingToType.New(arg, sql.Text)
				}
				sb.WriteString(s)
			}
			return sb.String(), nil
		},
	}

	// Like matches text against a pattern where % matches any sequence
	// and _ any single character.
	Like = &expression.Operator{
		Name:       "LIKE",
		Notation:   expression.InfixNotation,
		MinArgs:    2,
		MaxArgs:    2,
		ReturnType: booleanType,
		Eval: func(args []interface{}) (interface{}, error) {
			if args[0] == nil || args[1] == nil {
				return nil, nil
			}
			s, err := cast.ToStringE(args[0])
			if err != nil {
				return nil, sql.ErrConvertingToType.New(args[0], sql.Text)
			}
			p, err := cast.ToStringE(args[1])
			if err != nil {
				return nil, sql.ErrConvertingToType.New(args[1], sql.Text)
			}
			re, err := regexp.Compile(patternToRegex(p))
			if err != nil {
				return nil, err
			}
			return re.MatchString(s), nil
		},
	}
)

func textFunction(name string, f func(string) string) *expression.Operator {
	return &expression.Operator{
		Name:       name,
		MinArgs:    1,
		MaxArgs:    1,
		ReturnType: textType,
		Eval: func(args []interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			s, err := cast.ToStringE(args[0])
			if err != nil {
				return nil, sql.ErrConvertingToType.New(args[0], sql.Text)
			}
			return f(s), nil
		},
	}
}

func patternToRegex(pattern string) string {
	var buf strings.Builder
	buf.WriteString("(?s)^")
	var escaped bool
	for _, r := range pattern {
		switch {
		case escaped:
			buf.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			buf.WriteString(".*")
		case r == '_':
			buf.WriteString(".")
		default:
			buf.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	buf.WriteString("$")
	return buf.String()
}
