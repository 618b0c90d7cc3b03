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
	"github.com/dolthub/calcplanner/sql/program"
)

// Calc computes a program over the rows of its child: it filters them with
// the program's condition and projects the program's output columns. Backend
// is the name of the backend that runs the calc, or empty if it has not been
// assigned to one yet.
type Calc struct {
	UnaryNode
	Program *program.Program
	Backend string
}

var _ sql.Node = (*Calc)(nil)

// NewCalc creates a new Calc node not assigned to any backend.
func NewCalc(p *program.Program, child sql.Node) *Calc {
	return NewBackendCalc("", p, child)
}

// NewBackendCalc creates a new Calc node run by the given backend.
func NewBackendCalc(backend string, p *program.Program, child sql.Node) *Calc {
	return &Calc{
		UnaryNode: UnaryNode{Child: child},
		Program:   p,
		Backend:   backend,
	}
}

// Schema implements the Node interface.
func (c *Calc) Schema() sql.Schema {
	return c.Program.Schema()
}

// WithChildren implements the Node interface.
func (c *Calc) WithChildren(children ...sql.Node) (sql.Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvalidChildrenNumber.New(c, len(children), 1)
	}
	return NewBackendCalc(c.Backend, c.Program, children[0]), nil
}

// WithProgram returns a copy of the calc computing the given program.
func (c *Calc) WithProgram(p *program.Program) *Calc {
	return NewBackendCalc(c.Backend, p, c.Child)
}

// WithBackend returns a copy of the calc assigned to the given backend.
func (c *Calc) WithBackend(backend string) *Calc {
	return NewBackendCalc(backend, c.Program, c.Child)
}

func (c *Calc) String() string {
	pr := sql.NewTreePrinter()
	name := "Calc"
	if c.Backend != "" {
		name = fmt.Sprintf("Calc[%s]", c.Backend)
	}

	var parts []string
	if exprs, err := c.Program.ProjectExprs(); err == nil {
		for _, e := range exprs {
			parts = append(parts, e.String())
		}
	}
	if cond := c.Program.Condition(); cond != nil {
		if e, err := c.Program.Expand(cond.Index()); err == nil {
			parts = append(parts, "where "+e.String())
		}
	}

	_ = pr.WriteNode("%s(%s)", name, strings.Join(parts, ", "))
	_ = pr.WriteChildren(c.Child.String())
	return pr.String()
}

func (c *Calc) DebugString() string {
	pr := sql.NewTreePrinter()
	_ = pr.WriteNode("Calc[%s](%s)", c.Backend, c.Program)
	_ = pr.WriteChildren(sql.DebugString(c.Child))
	return pr.String()
}
