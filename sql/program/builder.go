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
	"strconv"

	"github.com/bits-and-blooms/bitset"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/expression/function"
	"github.com/dolthub/calcplanner/sql/transform"
)

var (
	// ErrUnknownInput is returned when an expression references an input
	// column the program does not have.
	ErrUnknownInput = errors.NewKind("reference to input column %d, input has %d columns")

	// ErrMergeMismatch is returned when the top program of a merge does not
	// consume the output of the bottom one.
	ErrMergeMismatch = errors.NewKind("cannot merge programs: top expects %d columns, bottom produces %d")
)

// Builder incrementally creates a Program. Expressions are flattened as they
// are added and structurally identical entries are only stored once.
type Builder struct {
	inputSchema sql.Schema
	exprs       []sql.Expression
	hashes      map[uint64][]int
	projects    []*expression.LocalRef
	names       []string
	condition   *expression.LocalRef
}

// NewBuilder creates a builder for programs over the given input schema.
func NewBuilder(inputSchema sql.Schema) *Builder {
	b := &Builder{
		inputSchema: inputSchema,
		hashes:      make(map[uint64][]int),
	}
	for i, col := range inputSchema {
		b.exprs = append(b.exprs, expression.NewGetFieldWithTable(i, col.Type, col.Source, col.Name, col.Nullable))
	}
	return b
}

func (b *Builder) ref(i int) *expression.LocalRef {
	e := b.exprs[i]
	return expression.NewLocalRef(i, e.Type(), e.IsNullable())
}

func (b *Builder) inputRefs() []*expression.LocalRef {
	refs := make([]*expression.LocalRef, len(b.inputSchema))
	for i := range refs {
		refs[i] = b.ref(i)
	}
	return refs
}

// AddExpr adds an expression tree to the program and returns a reference to
// the entry holding its value. GetFields in the tree are input columns and
// LocalRefs are entries already added to this builder.
func (b *Builder) AddExpr(e sql.Expression) (*expression.LocalRef, error) {
	switch e := e.(type) {
	case *expression.Alias:
		return b.AddExpr(e.Child)
	case *expression.GetField:
		if e.Index() < 0 || e.Index() >= len(b.inputSchema) {
			return nil, ErrUnknownInput.New(e.Index(), len(b.inputSchema))
		}
		return b.ref(e.Index()), nil
	case *expression.LocalRef:
		if e.Index() < 0 || e.Index() >= len(b.exprs) {
			return nil, ErrRefOutOfRange.New("local", e.Index(), len(b.exprs))
		}
		return b.ref(e.Index()), nil
	}

	children := e.Children()
	if len(children) > 0 {
		refs := make([]sql.Expression, len(children))
		for i, child := range children {
			ref, err := b.AddExpr(child)
			if err != nil {
				return nil, err
			}
			refs[i] = ref
		}

		var err error
		e, err = e.WithChildren(refs...)
		if err != nil {
			return nil, err
		}
	}

	return b.register(e)
}

func (b *Builder) register(e sql.Expression) (*expression.LocalRef, error) {
	h, err := hashEntry(e)
	if err != nil {
		return nil, err
	}

	for _, idx := range b.hashes[h] {
		if sameEntry(b.exprs[idx], e) {
			return b.ref(idx), nil
		}
	}

	idx := len(b.exprs)
	b.exprs = append(b.exprs, e)
	b.hashes[h] = append(b.hashes[h], idx)
	return b.ref(idx), nil
}

// AddProject adds an output column computing the given expression. If name
// is empty, the name of an alias or column is used, or "$" followed by the
// column position otherwise.
func (b *Builder) AddProject(e sql.Expression, name string) (*expression.LocalRef, error) {
	if name == "" {
		switch e := e.(type) {
		case *expression.Alias:
			name = e.Name()
		case *expression.GetField:
			name = e.Name()
		case *expression.LocalRef:
			if e.Index() >= 0 && e.Index() < len(b.inputSchema) {
				name = b.inputSchema[e.Index()].Name
			}
		}
	}
	if name == "" {
		name = "$" + strconv.Itoa(len(b.projects))
	}

	ref, err := b.AddExpr(e)
	if err != nil {
		return nil, err
	}
	b.projects = append(b.projects, ref)
	b.names = append(b.names, name)
	return ref, nil
}

// AddCondition adds a filter condition to the program. If there already is
// one, the result is the conjunction of both.
func (b *Builder) AddCondition(e sql.Expression) error {
	ref, err := b.AddExpr(e)
	if err != nil {
		return err
	}
	if b.condition != nil {
		ref, err = b.AddExpr(expression.NewCall(function.And, b.condition, ref))
		if err != nil {
			return err
		}
	}
	b.condition = ref
	return nil
}

// AddIdentityProjects projects every input column with its own name.
func (b *Builder) AddIdentityProjects() error {
	for i, col := range b.inputSchema {
		if _, err := b.AddProject(b.ref(i), col.Name); err != nil {
			return err
		}
	}
	return nil
}

// Program creates the program built so far.
func (b *Builder) Program() (*Program, error) {
	return New(b.inputSchema, b.exprs, b.projects, b.names, b.condition)
}

// addEntries copies the computed entries of p into the builder, using inputs
// for p's input columns. Only the entries in keep are copied, unless keep is
// nil. It returns, for each entry of p, its reference in the builder.
func (b *Builder) addEntries(p *Program, inputs []*expression.LocalRef, keep *bitset.BitSet) ([]*expression.LocalRef, error) {
	refs := make([]*expression.LocalRef, len(p.exprs))
	copy(refs, inputs)

	for i := len(p.inputSchema); i < len(p.exprs); i++ {
		if keep != nil && !keep.Test(uint(i)) {
			continue
		}

		e, _, err := transform.Expr(p.exprs[i], func(e sql.Expression) (sql.Expression, transform.TreeIdentity, error) {
			switch e := e.(type) {
			case *expression.LocalRef:
				return refs[e.Index()], transform.NewTree, nil
			case *expression.GetField:
				return inputs[e.Index()], transform.NewTree, nil
			default:
				return e, transform.SameTree, nil
			}
		})
		if err != nil {
			return nil, err
		}

		ref, err := b.AddExpr(e)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	return refs, nil
}

// reachable returns the entries needed to compute the projection and the
// condition.
func (p *Program) reachable() *bitset.BitSet {
	seen := bitset.New(uint(len(p.exprs)))
	var stack []int
	for _, ref := range p.projects {
		stack = append(stack, ref.Index())
	}
	if p.condition != nil {
		stack = append(stack, p.condition.Index())
	}

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen.Test(uint(idx)) {
			continue
		}
		seen.Set(uint(idx))
		sql.Inspect(p.exprs[idx], func(e sql.Expression) bool {
			if ref, ok := e.(*expression.LocalRef); ok {
				stack = append(stack, ref.Index())
			}
			return true
		})
	}
	return seen
}

// Normalize returns an equivalent program where entries that are not needed
// by the projection or the condition are removed, duplicated entries are
// merged and complex entries are flattened.
func (p *Program) Normalize() (*Program, error) {
	b := NewBuilder(p.inputSchema)
	refs, err := b.addEntries(p, b.inputRefs(), p.reachable())
	if err != nil {
		return nil, err
	}

	for i, ref := range p.projects {
		if _, err := b.AddProject(refs[ref.Index()], p.names[i]); err != nil {
			return nil, err
		}
	}
	if p.condition != nil {
		if err := b.AddCondition(refs[p.condition.Index()]); err != nil {
			return nil, err
		}
	}
	return b.Program()
}

// Merge returns a program equivalent to running bottom and then top over
// bottom's output. Both conditions apply.
func Merge(top, bottom *Program) (*Program, error) {
	if len(top.inputSchema) != len(bottom.projects) {
		return nil, ErrMergeMismatch.New(len(top.inputSchema), len(bottom.projects))
	}

	b := NewBuilder(bottom.inputSchema)
	bottomRefs, err := b.addEntries(bottom, b.inputRefs(), nil)
	if err != nil {
		return nil, err
	}

	topInputs := make([]*expression.LocalRef, len(bottom.projects))
	for i, ref := range bottom.projects {
		topInputs[i] = bottomRefs[ref.Index()]
	}
	topRefs, err := b.addEntries(top, topInputs, nil)
	if err != nil {
		return nil, err
	}

	if bottom.condition != nil {
		if err := b.AddCondition(bottomRefs[bottom.condition.Index()]); err != nil {
			return nil, err
		}
	}
	if top.condition != nil {
		if err := b.AddCondition(topRefs[top.condition.Index()]); err != nil {
			return nil, err
		}
	}
	for i, ref := range top.projects {
		if _, err := b.AddProject(topRefs[ref.Index()], top.names[i]); err != nil {
			return nil, err
		}
	}

	merged, err := b.Program()
	if err != nil {
		return nil, err
	}
	return merged.Normalize()
}
