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

// ErrLocalRefOutOfBounds is returned when a local reference points outside
// of the values computed so far.
var ErrLocalRefOutOfBounds = errors.NewKind("local reference $%d out of bounds, %d values available")

// LocalRef references another entry of the same expression list by its
// position. When evaluated, the row is the vector of entry values computed
// so far.
type LocalRef struct {
	index    int
	refType  sql.Type
	nullable bool
}

var _ sql.Expression = (*LocalRef)(nil)

// NewLocalRef creates a new LocalRef to the entry at the given index.
func NewLocalRef(index int, typ sql.Type, nullable bool) *LocalRef {
	return &LocalRef{index: index, refType: typ, nullable: nullable}
}

// Index returns the position of the referenced entry.
func (r *LocalRef) Index() int { return r.index }

// WithIndex returns a copy of the reference pointing to the given entry.
func (r *LocalRef) WithIndex(n int) *LocalRef {
	r2 := *r
	r2.index = n
	return &r2
}

// Type implements the Expression interface.
func (r *LocalRef) Type() sql.Type { return r.refType }

// IsNullable implements the Expression interface.
func (r *LocalRef) IsNullable() bool { return r.nullable }

// Children implements the Expression interface.
func (*LocalRef) Children() []sql.Expression { return nil }

// WithChildren implements the Expression interface.
func (r *LocalRef) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvalidChildrenNumber.New(r, len(children), 0)
	}
	return r, nil
}

// Eval implements the Expression interface.
func (r *LocalRef) Eval(ctx *sql.Context, values sql.Row) (interface{}, error) {
	if r.index < 0 || r.index >= len(values) {
		return nil, ErrLocalRefOutOfBounds.New(r.index, len(values))
	}
	return values[r.index], nil
}

func (r *LocalRef) String() string {
	return fmt.Sprintf("$%d", r.index)
}
