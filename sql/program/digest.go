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

package program

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/hashstructure"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
)

// digest is the hashable shape of an entry. Operands of flat entries are
// local references, so two entries with the same digest compute the same
// value.
type digest struct {
	Kind     string
	Name     string
	Index    int
	Value    string
	Type     string
	Children []digest
}

func digestOf(e sql.Expression) digest {
	d := digest{Type: e.Type().String()}
	switch e := e.(type) {
	case *expression.GetField:
		d.Kind = "field"
		d.Index = e.Index()
	case *expression.LocalRef:
		d.Kind = "ref"
		d.Index = e.Index()
	case *expression.Literal:
		d.Kind = "literal"
		d.Value = fmt.Sprintf("%#v", e.Value())
	case *expression.BindVar:
		d.Kind = "bindvar"
		d.Name = e.Name
	case *expression.FieldAccess:
		d.Kind = "access"
		d.Index = e.Field()
	case *expression.Call:
		d.Kind = "call"
		d.Name = e.Operator().Name
	default:
		d.Kind = fmt.Sprintf("%T", e)
		d.Value = e.String()
	}

	for _, child := range e.Children() {
		d.Children = append(d.Children, digestOf(child))
	}
	return d
}

func hashEntry(e sql.Expression) (uint64, error) {
	return hashstructure.Hash(digestOf(e), nil)
}

// sameEntry reports whether two entries are structurally identical.
func sameEntry(a, b sql.Expression) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}

	switch a := a.(type) {
	case *expression.GetField:
		return a.Index() == b.(*expression.GetField).Index()
	case *expression.LocalRef:
		return a.Index() == b.(*expression.LocalRef).Index()
	case *expression.Literal:
		bl := b.(*expression.Literal)
		return reflect.DeepEqual(a.Value(), bl.Value()) && a.Type().Equals(bl.Type())
	case *expression.BindVar:
		bv := b.(*expression.BindVar)
		return a.Name == bv.Name && a.Type().Equals(bv.Type())
	case *expression.FieldAccess:
		if a.Field() != b.(*expression.FieldAccess).Field() {
			return false
		}
	case *expression.Call:
		if a.Operator() != b.(*expression.Call).Operator() {
			return false
		}
	default:
		return a == b
	}

	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !sameEntry(ac[i], bc[i]) {
			return false
		}
	}
	return true
}
