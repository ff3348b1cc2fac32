// Copyright 2025 go-highway Authors
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

package lower

import (
	"cmp"
	"slices"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

// Pattern rewrites one kind of root operation.
type Pattern struct {
	// Name identifies this pattern in logs and errors.
	Name string

	// Root is the operation kind the pattern is triggered on.
	Root ir.Kind

	// Priority orders patterns sharing a root (higher is tried first).
	// Patterns of equal priority are tried in registration order.
	Priority int

	// Match reports whether the pattern applies to op. It must not modify
	// the graph. Legality is derived from it: an op some pattern matches is
	// illegal. A nil Match matches every op of kind Root.
	Match func(g *ir.Graph, op *ir.Op, t target.Target) bool

	// Apply rewrites a matched op through rw. It may still decline with
	// (false, nil), and reports hard failures as errors.
	Apply func(rw *Rewriter, op *ir.Op) (bool, error)
}

func (p *Pattern) matches(g *ir.Graph, op *ir.Op, t target.Target) bool {
	return p.Match == nil || p.Match(g, op, t)
}

// PatternSet is a dispatch table from root kind to the ordered patterns
// that may rewrite it.
type PatternSet struct {
	byKind map[ir.Kind][]Pattern
	names  []string
}

// NewPatternSet returns a set holding patterns.
func NewPatternSet(patterns ...Pattern) *PatternSet {
	s := &PatternSet{byKind: make(map[ir.Kind][]Pattern)}
	s.Add(patterns...)
	return s
}

// Add registers patterns after those already present.
func (s *PatternSet) Add(patterns ...Pattern) {
	for _, p := range patterns {
		list := append(s.byKind[p.Root], p)
		slices.SortStableFunc(list, func(a, b Pattern) int {
			return cmp.Compare(b.Priority, a.Priority)
		})
		s.byKind[p.Root] = list
		s.names = append(s.names, p.Name)
	}
}

// For returns the patterns rooted at kind, in the order they are tried.
func (s *PatternSet) For(kind ir.Kind) []Pattern { return s.byKind[kind] }

// Has reports whether any pattern is rooted at kind.
func (s *PatternSet) Has(kind ir.Kind) bool { return len(s.byKind[kind]) > 0 }

// Matches reports whether any pattern rooted at op's kind matches op.
func (s *PatternSet) Matches(g *ir.Graph, op *ir.Op, t target.Target) bool {
	for i := range s.byKind[op.Kind] {
		if s.byKind[op.Kind][i].matches(g, op, t) {
			return true
		}
	}
	return false
}

// Names lists pattern names in registration order.
func (s *PatternSet) Names() []string { return slices.Clone(s.names) }
