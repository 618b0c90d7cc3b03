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

package sql

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Type represents a SQL type.
type Type interface {
	fmt.Stringer
	// Convert a value of a compatible type to a most accurate type.
	Convert(v interface{}) (interface{}, error)
	// Zero returns the golang zero value for this type.
	Zero() interface{}
	// Equals returns whether the given type is the same as this one.
	Equals(t Type) bool
}

var (
	// Null represents the NULL type.
	Null Type = nullT{}
	// Boolean is a boolean type.
	Boolean Type = booleanT{}
	// Int64 is an integer of 64 bits.
	Int64 Type = numberT{name: "INT64"}
	// Float64 is a floating point number of 64 bits.
	Float64 Type = numberT{name: "FLOAT64", float: true}
	// Text is a string type.
	Text Type = textT{}
)

type nullT struct{}

func (nullT) String() string { return "NULL" }

func (nullT) Convert(v interface{}) (interface{}, error) {
	if v != nil {
		return nil, ErrConvertingToType.New(v, "NULL")
	}
	return nil, nil
}

func (nullT) Zero() interface{} { return nil }

func (t nullT) Equals(o Type) bool {
	_, ok := o.(nullT)
	return ok
}

type booleanT struct{}

func (booleanT) String() string { return "BOOLEAN" }

func (booleanT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil, ErrConvertingToType.New(v, "BOOLEAN")
	}
	return b, nil
}

func (booleanT) Zero() interface{} { return false }

func (t booleanT) Equals(o Type) bool {
	_, ok := o.(booleanT)
	return ok
}

type numberT struct {
	name  string
	float bool
}

func (t numberT) String() string { return t.name }

func (t numberT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if t.float {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, ErrConvertingToType.New(v, t.name)
		}
		return f, nil
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return nil, ErrConvertingToType.New(v, t.name)
	}
	return i, nil
}

func (t numberT) Zero() interface{} {
	if t.float {
		return float64(0)
	}
	return int64(0)
}

func (t numberT) Equals(o Type) bool {
	ot, ok := o.(numberT)
	return ok && ot == t
}

type textT struct{}

func (textT) String() string { return "TEXT" }

func (textT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, ErrConvertingToType.New(v, "TEXT")
	}
	return s, nil
}

func (textT) Zero() interface{} { return "" }

func (t textT) Equals(o Type) bool {
	_, ok := o.(textT)
	return ok
}

// StructField is a named field of a StructType.
type StructField struct {
	Name string
	Type Type
}

// StructType is the type of a row-valued expression. Values of this type are
// []interface{} with one element per field.
type StructType struct {
	Fields []StructField
}

// NewStructType creates a struct type with the given fields.
func NewStructType(fields ...StructField) *StructType {
	return &StructType{Fields: fields}
}

// FieldIndex returns the position of the field with the given name, or -1.
func (t *StructType) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

func (t *StructType) String() string {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = fmt.Sprintf("%s %s", f.Name, f.Type)
	}
	return fmt.Sprintf("STRUCT(%s)", strings.Join(fields, ", "))
}

func (t *StructType) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	vals, ok := v.([]interface{})
	if !ok || len(vals) != len(t.Fields) {
		return nil, ErrConvertingToType.New(v, t.String())
	}
	result := make([]interface{}, len(vals))
	for i, f := range t.Fields {
		val, err := f.Type.Convert(vals[i])
		if err != nil {
			return nil, err
		}
		result[i] = val
	}
	return result, nil
}

func (t *StructType) Zero() interface{} {
	zero := make([]interface{}, len(t.Fields))
	for i, f := range t.Fields {
		zero[i] = f.Type.Zero()
	}
	return zero
}

func (t *StructType) Equals(o Type) bool {
	ot, ok := o.(*StructType)
	if !ok || len(ot.Fields) != len(t.Fields) {
		return false
	}
	for i, f := range t.Fields {
		if f.Name != ot.Fields[i].Name || !f.Type.Equals(ot.Fields[i].Type) {
			return false
		}
	}
	return true
}

// IsNumber checks if t is a number type.
func IsNumber(t Type) bool {
	_, ok := t.(numberT)
	return ok
}

// IsFloat checks if t is a floating point number type.
func IsFloat(t Type) bool {
	n, ok := t.(numberT)
	return ok && n.float
}

// IsText checks if t is a text type.
func IsText(t Type) bool {
	_, ok := t.(textT)
	return ok
}

// IsBoolean checks if t is the boolean type.
func IsBoolean(t Type) bool {
	_, ok := t.(booleanT)
	return ok
}
