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

package plan

import (
	"github.com/dolthub/calcplanner/sql"
)

// SetOpKind is the kind of a set operation.
type SetOpKind byte

const (
	Union SetOpKind = iota
	Intersect
	Except
)

func (k SetOpKind) String() string {
	switch k {
	case Union:
		return "Union"
	case Intersect:
		return "Intersect"
	case Except:
		return "Except"
	default:
		return "invalid SetOpKind"
	}
}

// SetOp combines the rows of its inputs, which all have the same number of
// columns.
type SetOp struct {
	Kind     SetOpKind
	Distinct bool
	inputs   []sql.Node
}

var _ sql.Node = (*SetOp)(nil)

// NewSetOp creates a new set operation.
func NewSetOp(kind SetOpKind, distinct bool, inputs ...sql.Node) *SetOp {
	return &SetOp{Kind: kind, Distinct: distinct, inputs: inputs}
}

// NewUnion creates a UNION ALL, or a UNION DISTINCT if distinct is true.
func NewUnion(distinct bool, inputs ...sql.Node) *SetOp {
	return NewSetOp(Union, distinct, inputs...)
}

// Schema implements the Node interface.
func (s *SetOp) Schema() sql.Schema {
	return s.inputs[0].Schema()
}

// Children implements the Node interface.
func (s *SetOp) Children() []sql.Node {
	return s.inputs
}

// WithChildren implements the Node interface.
func (s *SetOp) WithChildren(children ...sql.Node) (sql.Node, error) {
	if len(children) != len(s.inputs) {
		return nil, sql.ErrInvalidChildrenNumber.New(s, len(children), len(s.inputs))
	}
	return NewSetOp(s.Kind, s.Distinct, children...), nil
}

func (s *SetOp) String() string {
	pr := sql.NewTreePrinter()
	if s.Distinct {
		_ = pr.WriteNode("%s distinct", s.Kind)
	} else {
		_ = pr.WriteNode("%s all", s.Kind)
	}
	_ = pr.WriteChildren(childrenStrings(s.inputs)...)
	return pr.String()
}
