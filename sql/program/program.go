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

// Package program implements flat expression programs: an ordered list of
// expressions where every operand is a reference to an earlier entry, plus a
// projection and an optional condition over those entries.
package program

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/expression/function"
)

var (
	// ErrInputSlot is returned when one of the first entries of a program
	// is not the reference to the input column in that position.
	ErrInputSlot = errors.NewKind("entry %d must be a reference to input column %d, got %s")

	// ErrForwardReference is returned when an entry references itself or an
	// entry that comes after it.
	ErrForwardReference = errors.NewKind("entry %d references entry %d, which is not before it")

	// ErrInvalidEntry is returned when an entry has a kind that cannot be
	// stored in a program.
	ErrInvalidEntry = errors.NewKind("entry %d has invalid kind %T")

	// ErrRefOutOfRange is returned when a projection or the condition point
	// outside of the entry list.
	ErrRefOutOfRange = errors.NewKind("%s reference $%d out of range, program has %d entries")

	// ErrProjectNames is returned when the number of names differs from the
	// number of projections.
	ErrProjectNames = errors.NewKind("got %d names for %d projections")

	// ErrConditionType is returned when the condition is not boolean.
	ErrConditionType = errors.NewKind("condition must be boolean, got %s")
)

// Program is an immutable flat expression list over an input row. The first
// len(InputSchema) entries are references to the input columns in order;
// every later entry only references earlier entries.
type Program struct {
	inputSchema  sql.Schema
	exprs        []sql.Expression
	projects     []*expression.LocalRef
	names        []string
	condition    *expression.LocalRef
	outputSchema sql.Schema
}

// New validates and creates a program. All validation failures are
// reported together.
func New(
	inputSchema sql.Schema,
	exprs []sql.Expression,
	projects []*expression.LocalRef,
	names []string,
	condition *expression.LocalRef,
) (*Program, error) {
	p := &Program{
		inputSchema: inputSchema,
		exprs:       exprs,
		projects:    projects,
		names:       names,
		condition:   condition,
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.outputSchema = p.deriveSchema()
	return p, nil
}

func (p *Program) validate() error {
	var errs error
	n := len(p.inputSchema)
	if len(p.exprs) < n {
		errs = multierr.Append(errs, ErrInputSlot.New(len(p.exprs), len(p.exprs), "nothing"))
	}

	for i, e := range p.exprs {
		if i < n {
			if gf, ok := e.(*expression.GetField); !ok || gf.Index() != i {
				errs = multierr.Append(errs, ErrInputSlot.New(i, i, e))
			}
			continue
		}

		switch e.(type) {
		case *expression.LocalRef, *expression.Alias:
			errs = multierr.Append(errs, ErrInvalidEntry.New(i, e))
			continue
		}

		idx := i
		sql.Inspect(e, func(e sql.Expression) bool {
			switch e := e.(type) {
			case *expression.LocalRef:
				if e.Index() < 0 || e.Index() >= idx {
					errs = multierr.Append(errs, ErrForwardReference.New(idx, e.Index()))
				}
			case *expression.GetField:
				if e.Index() >= n {
					errs = multierr.Append(errs, ErrInputSlot.New(idx, e.Index(), e))
				}
			}
			return true
		})
	}

	for _, ref := range p.projects {
		if ref.Index() < 0 || ref.Index() >= len(p.exprs) {
			errs = multierr.Append(errs, ErrRefOutOfRange.New("project", ref.Index(), len(p.exprs)))
		}
	}
	if len(p.names) != len(p.projects) {
		errs = multierr.Append(errs, ErrProjectNames.New(len(p.names), len(p.projects)))
	}

	if p.condition != nil {
		idx := p.condition.Index()
		if idx < 0 || idx >= len(p.exprs) {
			errs = multierr.Append(errs, ErrRefOutOfRange.New("condition", idx, len(p.exprs)))
		} else if t := p.exprs[idx].Type(); !sql.IsBoolean(t) && !t.Equals(sql.Null) {
			errs = multierr.Append(errs, ErrConditionType.New(t))
		}
	}

	return errs
}

func (p *Program) deriveSchema() sql.Schema {
	schema := make(sql.Schema, len(p.projects))
	for i, ref := range p.projects {
		e := p.exprs[ref.Index()]
		col := &sql.Column{
			Name:     p.names[i],
			Type:     e.Type(),
			Nullable: e.IsNullable(),
		}
		if ref.Index() < len(p.inputSchema) {
			col.Source = p.inputSchema[ref.Index()].Source
		}
		schema[i] = col
	}
	return schema
}

// InputSchema returns the schema of the rows the program consumes.
func (p *Program) InputSchema() sql.Schema { return p.inputSchema }

// InputCount returns the number of input columns.
func (p *Program) InputCount() int { return len(p.inputSchema) }

// Exprs returns the entries of the program.
func (p *Program) Exprs() []sql.Expression { return p.exprs }

// Projects returns the references to the projected entries.
func (p *Program) Projects() []*expression.LocalRef { return p.projects }

// Names returns the names of the projected columns.
func (p *Program) Names() []string { return p.names }

// Condition returns the reference to the condition entry, or nil.
func (p *Program) Condition() *expression.LocalRef { return p.condition }

// Schema returns the schema of the rows the program produces.
func (p *Program) Schema() sql.Schema { return p.outputSchema }

// IsTrivial reports whether the program has no condition and projects
// exactly its input columns in order.
func (p *Program) IsTrivial() bool {
	if p.condition != nil || len(p.projects) != len(p.inputSchema) {
		return false
	}
	for i, ref := range p.projects {
		if ref.Index() != i {
			return false
		}
	}
	return true
}

// ContainsComplexExprs reports whether some entry has an operand that is
// not a reference to another entry.
func (p *Program) ContainsComplexExprs() bool {
	for _, e := range p.exprs[len(p.inputSchema):] {
		for _, child := range e.Children() {
			if _, ok := child.(*expression.LocalRef); !ok {
				return true
			}
		}
	}
	return false
}

// Expand rebuilds the expression tree of the entry at the given index,
// replacing local references with the entries they point to.
func (p *Program) Expand(idx int) (sql.Expression, error) {
	e := p.exprs[idx]
	children := e.Children()
	if len(children) == 0 {
		return e, nil
	}

	expanded := make([]sql.Expression, len(children))
	for i, child := range children {
		if ref, ok := child.(*expression.LocalRef); ok {
			c, err := p.Expand(ref.Index())
			if err != nil {
				return nil, err
			}
			expanded[i] = c
		} else {
			expanded[i] = child
		}
	}
	return e.WithChildren(expanded...)
}

// ProjectExprs returns the expanded expression trees of the projection,
// aliased with the projected names when they differ from the expression's
// own name.
func (p *Program) ProjectExprs() ([]sql.Expression, error) {
	exprs := make([]sql.Expression, len(p.projects))
	for i, ref := range p.projects {
		e, err := p.Expand(ref.Index())
		if err != nil {
			return nil, err
		}
		if n, ok := e.(sql.Nameable); !ok || n.Name() != p.names[i] {
			e = expression.NewAlias(p.names[i], e)
		}
		exprs[i] = e
	}
	return exprs, nil
}

// Evaluate computes the program over the given input row. It returns false
// if the row does not pass the condition.
func (p *Program) Evaluate(ctx *sql.Context, row sql.Row) (sql.Row, bool, error) {
	if len(row) != len(p.inputSchema) {
		return nil, false, sql.ErrUnexpectedRowLength.New(len(p.inputSchema), len(row))
	}

	values := make(sql.Row, len(p.exprs))
	copy(values, row)
	for i := len(row); i < len(p.exprs); i++ {
		v, err := p.exprs[i].Eval(ctx, values)
		if err != nil {
			return nil, false, err
		}
		values[i] = v
	}

	if p.condition != nil {
		ok, err := function.IsTrue(values[p.condition.Index()])
		if err != nil || !ok {
			return nil, false, err
		}
	}

	out := make(sql.Row, len(p.projects))
	for i, ref := range p.projects {
		out[i] = values[ref.Index()]
	}
	return out, true, nil
}

func (p *Program) String() string {
	var sb strings.Builder
	sb.WriteString("exprs=[")
	for i, e := range p.exprs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "$%d=%s", i, e)
	}
	sb.WriteString("], projects=[")
	for i, ref := range p.projects {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%s", p.names[i], ref)
	}
	sb.WriteString("]")
	if p.condition != nil {
		fmt.Fprintf(&sb, ", condition=%s", p.condition)
	}
	return sb.String()
}
