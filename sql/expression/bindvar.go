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
	"github.com/dolthub/calcplanner/sql"
)

// BindVar is a dynamic parameter whose value is supplied by the context at
// evaluation time.
type BindVar struct {
	Name    string
	varType sql.Type
}

var _ sql.Expression = (*BindVar)(nil)

// NewBindVar creates a new BindVar of the given type.
func NewBindVar(name string, typ sql.Type) *BindVar {
	return &BindVar{Name: name, varType: typ}
}

func (bv *BindVar) String() string {
	return "BindVar(" + bv.Name + ")"
}

func (bv *BindVar) Type() sql.Type {
	return bv.varType
}

func (bv *BindVar) IsNullable() bool {
	return true
}

func (bv *BindVar) Eval(ctx *sql.Context, _ sql.Row) (interface{}, error) {
	v, ok := ctx.Binding(bv.Name)
	if !ok {
		return nil, sql.ErrBindVarNotFound.New(bv.Name)
	}
	if v == nil {
		return nil, nil
	}
	return bv.varType.Convert(v)
}

func (bv *BindVar) Children() []sql.Expression {
	return nil
}

func (bv *BindVar) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(bv, len(children), 0)
	}
	return bv, nil
}
