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

package analyzer

import (
	"io"
	"os"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"
	"gopkg.in/yaml.v2"

	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/program"
)

var (
	// ErrDuplicateBackend is returned when two backends have the same name.
	ErrDuplicateBackend = errors.NewKind("duplicate backend %q")

	// ErrInvalidBackendConfig is returned when a backend definition is not
	// valid.
	ErrInvalidBackendConfig = errors.NewKind("invalid backend config: %s")

	// ErrUnknownBackend is returned when looking up a backend that does not
	// exist.
	ErrUnknownBackend = errors.NewKind("unknown backend %q")

	// ErrNoBackends is returned when splitting a calc with no backends.
	ErrNoBackends = errors.NewKind("at least one backend is required")
)

// Backend is an engine able to evaluate some kinds of expressions. Its
// answers must only depend on the expression it is asked about.
type Backend interface {
	// Name of the backend. Names are unique within an analyzer.
	Name() string
	// CanImplement reports whether the backend can evaluate e. If condition
	// is true, e is used to filter rows.
	CanImplement(e sql.Expression, condition bool) bool
	// SupportsCondition reports whether the backend can filter rows.
	SupportsCondition() bool
	// MakeNode creates the node that runs p over the rows of child.
	MakeNode(p *program.Program, child sql.Node) (sql.Node, error)
}

// BackendConfig defines a backend by the expressions it accepts.
type BackendConfig struct {
	Name string `yaml:"name"`
	// Operators are the names of the operators the backend can call.
	Operators   []string `yaml:"operators"`
	Literals    bool     `yaml:"literals"`
	BindVars    bool     `yaml:"bind_vars"`
	FieldAccess bool     `yaml:"field_access"`
	Conditions  bool     `yaml:"conditions"`
}

type backendsFile struct {
	Backends []BackendConfig `yaml:"backends"`
}

// TableBackend is a backend that accepts expressions from an allow-list.
// Column references are always accepted.
type TableBackend struct {
	name        string
	operators   map[string]struct{}
	literals    bool
	bindVars    bool
	fieldAccess bool
	conditions  bool
}

var _ Backend = (*TableBackend)(nil)

// NewTableBackend creates a backend from its definition.
func NewTableBackend(cfg BackendConfig) (*TableBackend, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, ErrInvalidBackendConfig.New("backend name cannot be empty")
	}

	ops := make(map[string]struct{}, len(cfg.Operators))
	for _, op := range cfg.Operators {
		ops[strings.ToLower(op)] = struct{}{}
	}

	return &TableBackend{
		name:        cfg.Name,
		operators:   ops,
		literals:    cfg.Literals,
		bindVars:    cfg.BindVars,
		fieldAccess: cfg.FieldAccess,
		conditions:  cfg.Conditions,
	}, nil
}

// Name implements the Backend interface.
func (b *TableBackend) Name() string { return b.name }

// SupportsCondition implements the Backend interface.
func (b *TableBackend) SupportsCondition() bool { return b.conditions }

// CanImplement implements the Backend interface.
func (b *TableBackend) CanImplement(e sql.Expression, condition bool) bool {
	if condition && !b.conditions {
		return false
	}

	ok := true
	sql.Inspect(e, func(e sql.Expression) bool {
		if !ok {
			return false
		}
		switch e := e.(type) {
		case *expression.Call:
			_, ok = b.operators[strings.ToLower(e.Operator().Name)]
		case *expression.Literal:
			ok = b.literals
		case *expression.BindVar:
			ok = b.bindVars
		case *expression.FieldAccess:
			ok = b.fieldAccess
		}
		return ok
	})
	return ok
}

// MakeNode implements the Backend interface.
func (b *TableBackend) MakeNode(p *program.Program, child sql.Node) (sql.Node, error) {
	return plan.NewBackendCalc(b.name, p, child), nil
}

func (b *TableBackend) String() string {
	return b.name
}

// CanImplementProgram reports whether the backend can evaluate every entry
// of the program, and its condition.
func CanImplementProgram(b Backend, p *program.Program) bool {
	if cond := p.Condition(); cond != nil && !b.CanImplement(p.Exprs()[cond.Index()], true) {
		return false
	}
	for _, e := range p.Exprs() {
		if !b.CanImplement(e, false) {
			return false
		}
	}
	return true
}

// LoadBackends reads backend definitions in YAML format.
func LoadBackends(r io.Reader) ([]Backend, error) {
	var f backendsFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, ErrInvalidBackendConfig.Wrap(err, err.Error())
	}

	if len(f.Backends) == 0 {
		return nil, ErrNoBackends.New()
	}

	backends := make([]Backend, 0, len(f.Backends))
	for _, cfg := range f.Backends {
		b, err := NewTableBackend(cfg)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	if err := checkBackends(backends); err != nil {
		return nil, err
	}
	return backends, nil
}

// LoadBackendsFile reads backend definitions from a YAML file.
func LoadBackendsFile(path string) ([]Backend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadBackends(f)
}

func checkBackends(backends []Backend) error {
	if len(backends) == 0 {
		return ErrNoBackends.New()
	}
	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		if _, ok := seen[b.Name()]; ok {
			return ErrDuplicateBackend.New(b.Name())
		}
		seen[b.Name()] = struct{}{}
	}
	return nil
}

func findBackend(backends []Backend, name string) (Backend, error) {
	for _, b := range backends {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, ErrUnknownBackend.New(name)
}
