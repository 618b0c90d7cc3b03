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
	"testing"

	"github.com/stretchr/testify/require"
)

const expectedTree = `Calc(a, b)
 ├─ Union
 │   ├─ TableA
 │   └─ TableB
 └─ Union
     ├─ TableC
     └─ TableD
`

func TestTreePrinter(t *testing.T) {
	p := NewTreePrinter()
	p.WriteNode("Calc(%s, %s)", "a", "b")

	p2 := NewTreePrinter()
	p2.WriteNode("Union")
	p2.WriteChildren(
		"TableA",
		"TableB",
	)

	p3 := NewTreePrinter()
	p3.WriteNode("Union")
	p3.WriteChildren(
		"TableC",
		"TableD",
	)

	p.WriteChildren(
		p2.String(),
		p3.String(),
	)

	require.Equal(t, expectedTree, p.String())
}

func TestTreePrinterErrors(t *testing.T) {
	require := require.New(t)

	p := NewTreePrinter()
	err := p.WriteChildren("a")
	require.True(ErrNodeNotWritten.Is(err))

	require.NoError(p.WriteNode("Calc"))
	err = p.WriteNode("Calc")
	require.True(ErrNodeAlreadyWritten.Is(err))

	require.NoError(p.WriteChildren("a"))
	err = p.WriteChildren("b")
	require.True(ErrChildrenAlreadyWritten.Is(err))

	require.Equal("Calc\n └─ a\n", p.String())
}
