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
	"fmt"
	"strings"

	"github.com/dolthub/calcplanner/sql"
)

// Values is a node with a fixed list of rows.
type Values struct {
	Tuples []sql.Row
	schema sql.Schema
}

var _ sql.Node = (*Values)(nil)

// NewValues creates a Values node with the given schema and rows.
func NewValues(schema sql.Schema, tuples ...sql.Row) *Values {
	return &Values{Tuples: tuples, schema: schema}
}

// Schema implements the Node interface.
func (v *Values) Schema() sql.Schema {
	return v.schema
}

// Children implements the Node interface.
func (v *Values) Children() []sql.Node {
	return nil
}

// WithChildren implements the Node interface.
func (v *Values) WithChildren(children ...sql.Node) (sql.Node, error) {
	return NillaryWithChildren(v, children...)
}

func (v *Values) String() string {
	tuples := make([]string, len(v.Tuples))
	for i, t := range v.Tuples {
		vals := make([]string, len(t))
		for j, val := range t {
			vals[j] = fmt.Sprint(val)
		}
		tuples[i] = "(" + strings.Join(vals, ", ") + ")"
	}
	return fmt.Sprintf("Values(%s)", strings.Join(tuples, ", "))
}
