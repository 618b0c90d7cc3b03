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
	"github.com/bits-and-blooms/bitset"

	"github.com/dolthub/calcplanner/sql"
)

// InputsUsed returns the set of input row positions referenced by the
// given expressions.
func InputsUsed(exprs ...sql.Expression) *bitset.BitSet {
	used := bitset.New(0)
	AddInputsUsed(used, exprs...)
	return used
}

// AddInputsUsed adds the input row positions referenced by the given
// expressions to the set.
func AddInputsUsed(used *bitset.BitSet, exprs ...sql.Expression) {
	for _, e := range exprs {
		if e == nil {
			continue
		}
		sql.Inspect(e, func(e sql.Expression) bool {
			if gf, ok := e.(*GetField); ok {
				used.Set(uint(gf.Index()))
			}
			return true
		})
	}
}

// LocalRefsUsed returns the positions of the entries referenced by the
// direct operands of e.
func LocalRefsUsed(e sql.Expression) []int {
	var refs []int
	for _, child := range e.Children() {
		if r, ok := child.(*LocalRef); ok {
			refs = append(refs, r.Index())
		}
	}
	return refs
}
