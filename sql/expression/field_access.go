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

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/sql"
)

var (
	// ErrNotAStruct is returned when a field is accessed on an expression
	// whose type is not a struct.
	ErrNotAStruct = errors.NewKind("cannot access field %q of %s: not a struct")

	// ErrStructFieldNotFound is returned when the struct has no field with
	// the requested name.
	ErrStructFieldNotFound = errors.NewKind("struct %s has no field %q")
)

// FieldAccess reads a single field of a row-typed value.
type FieldAccess struct {
	UnaryExpression
	field int
	name  string
	typ   sql.Type
}

var _ sql.Expression = (*FieldAccess)(nil)

// NewFieldAccess creates an access to the field with the given name of the
// struct-typed child.
func NewFieldAccess(child sql.Expression, name string) (*FieldAccess, error) {
	st, ok := child.Type().(*sql.StructType)
	if !ok {
		return nil, ErrNotAStruct.New(name, child.Type())
	}
	idx := st.FieldIndex(name)
	if idx < 0 {
		return nil, ErrStructFieldNotFound.New(st, name)
	}
	return &FieldAccess{
		UnaryExpression: UnaryExpression{child},
		field:           idx,
		name:            st.Fields[idx].Name,
		typ:             st.Fields[idx].Type,
	}, nil
}

// Field returns the position of the accessed field in the struct.
func (f *FieldAccess) Field() int { return f.field }

// Name implements the Nameable interface.
func (f *FieldAccess) Name() string { return f.name }

// Type implements the Expression interface.
func (f *FieldAccess) Type() sql.Type { return f.typ }

// IsNullable implements the Expression interface.
func (f *FieldAccess) IsNullable() bool { return true }

// Eval implements the Expression interface.
func (f *FieldAccess) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	v, err := f.Child.Eval(ctx, row)
	if err != nil || v == nil {
		return nil, err
	}
	vals, ok := v.([]interface{})
	if !ok || f.field >= len(vals) {
		return nil, sql.ErrConvertingToType.New(v, f.Child.Type())
	}
	return vals[f.field], nil
}

// WithChildren implements the Expression interface.
func (f *FieldAccess) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(f, len(children), 1)
	}
	nf := *f
	nf.Child = children[0]
	return &nf, nil
}

func (f *FieldAccess) String() string {
	return fmt.Sprintf("%s.%s", f.Child, f.name)
}
