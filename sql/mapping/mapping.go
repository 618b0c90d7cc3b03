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

// Package mapping implements partial injective mappings between column
// positions, used to describe how the columns of a rewritten node relate to
// the columns of the original one.
package mapping

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
	errors "gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrOutOfRange is returned when a source or target is outside the
	// bounds of the mapping.
	ErrOutOfRange = errors.NewKind("%s %d out of range [0, %d)")

	// ErrNotInjective is returned when two sources are mapped to the same
	// target.
	ErrNotInjective = errors.NewKind("target %d is already mapped from source %d")

	// ErrUnmapped is returned when a source has no target, or a target no
	// source, where one is required.
	ErrUnmapped = errors.NewKind("%s %d is not mapped")
)

// Mapping is a partial injective function from source positions in
// [0, SourceCount) to target positions in [0, TargetCount).
type Mapping struct {
	targets []int
	sources []int
}

// New creates an empty mapping with the given source and target counts.
func New(sourceCount, targetCount int) *Mapping {
	m := &Mapping{
		targets: make([]int, sourceCount),
		sources: make([]int, targetCount),
	}
	for i := range m.targets {
		m.targets[i] = -1
	}
	for i := range m.sources {
		m.sources[i] = -1
	}
	return m
}

// NewIdentity creates the identity mapping of size n.
func NewIdentity(n int) *Mapping {
	m := New(n, n)
	for i := 0; i < n; i++ {
		m.targets[i] = i
		m.sources[i] = i
	}
	return m
}

// SourceCount returns the number of sources.
func (m *Mapping) SourceCount() int { return len(m.targets) }

// TargetCount returns the number of targets.
func (m *Mapping) TargetCount() int { return len(m.sources) }

// Set maps source to target. Any previous mapping of either of them is
// replaced.
func (m *Mapping) Set(source, target int) error {
	if source < 0 || source >= len(m.targets) {
		return ErrOutOfRange.New("source", source, len(m.targets))
	}
	if target < 0 || target >= len(m.sources) {
		return ErrOutOfRange.New("target", target, len(m.sources))
	}
	if prev := m.sources[target]; prev >= 0 && prev != source {
		return ErrNotInjective.New(target, prev)
	}
	if prev := m.targets[source]; prev >= 0 {
		m.sources[prev] = -1
	}
	m.targets[source] = target
	m.sources[target] = source
	return nil
}

// TargetOpt returns the target of source, or -1 if it is not mapped or out
// of range.
func (m *Mapping) TargetOpt(source int) int {
	if source < 0 || source >= len(m.targets) {
		return -1
	}
	return m.targets[source]
}

// SourceOpt returns the source of target, or -1 if it is not mapped or out
// of range.
func (m *Mapping) SourceOpt(target int) int {
	if target < 0 || target >= len(m.sources) {
		return -1
	}
	return m.sources[target]
}

// Target returns the target of source, failing if there is none.
func (m *Mapping) Target(source int) (int, error) {
	t := m.TargetOpt(source)
	if t < 0 {
		return -1, ErrUnmapped.New("source", source)
	}
	return t, nil
}

// Source returns the source of target, failing if there is none.
func (m *Mapping) Source(target int) (int, error) {
	s := m.SourceOpt(target)
	if s < 0 {
		return -1, ErrUnmapped.New("target", target)
	}
	return s, nil
}

// Size returns the number of mapped pairs.
func (m *Mapping) Size() int {
	var n int
	for _, t := range m.targets {
		if t >= 0 {
			n++
		}
	}
	return n
}

// IsIdentity reports whether the mapping maps every position to itself.
func (m *Mapping) IsIdentity() bool {
	if len(m.targets) != len(m.sources) {
		return false
	}
	for i, t := range m.targets {
		if t != i {
			return false
		}
	}
	return true
}

// Pair is a source and its target.
type Pair struct {
	Source, Target int
}

// Pairs returns the mapped pairs in source order.
func (m *Mapping) Pairs() []Pair {
	var pairs []Pair
	for s, t := range m.targets {
		if t >= 0 {
			pairs = append(pairs, Pair{s, t})
		}
	}
	return pairs
}

// ApplyBits maps every set bit through the mapping. Bits without a target
// are an error.
func (m *Mapping) ApplyBits(bits *bitset.BitSet) (*bitset.BitSet, error) {
	result := bitset.New(uint(len(m.sources)))
	for i, ok := bits.NextSet(0); ok; i, ok = bits.NextSet(i + 1) {
		t, err := m.Target(int(i))
		if err != nil {
			return nil, err
		}
		result.Set(uint(t))
	}
	return result, nil
}

// ApplyList maps every element of the list through the mapping.
func (m *Mapping) ApplyList(list []int) ([]int, error) {
	result := make([]int, len(list))
	for i, s := range list {
		t, err := m.Target(s)
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// Divide returns the mapping r such that, for each pair (s, t) of m1,
// r maps m2's target of s to t. It answers: given a position of m2's
// output, where does it end up in m1's output? Every source of m1 must be
// mapped by m2.
func Divide(m1, m2 *Mapping) (*Mapping, error) {
	r := New(m2.TargetCount(), m1.TargetCount())
	for _, p := range m1.Pairs() {
		s, err := m2.Target(p.Source)
		if err != nil {
			return nil, err
		}
		if err := r.Set(s, p.Target); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (m *Mapping) String() string {
	pairs := make([]string, 0, len(m.targets))
	for _, p := range m.Pairs() {
		pairs = append(pairs, fmt.Sprintf("%d:%d", p.Source, p.Target))
	}
	return fmt.Sprintf("[size=%d, sourceCount=%d, targetCount=%d, elements=[%s]]",
		m.Size(), m.SourceCount(), m.TargetCount(), strings.Join(pairs, ", "))
}
