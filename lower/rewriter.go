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
	"fmt"
	"slices"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

// Rewriter is handed to a pattern while it rewrites one root operation.
// Ops it creates are placed immediately before the root. If the pattern
// declines or fails, everything it created is discarded so the graph is
// left exactly as it was.
type Rewriter struct {
	g    *ir.Graph
	opts *Options

	root     *ir.Op
	created  []*ir.Op
	replaced []replacement
}

type replacement struct {
	op   *ir.Op
	with ir.Value
}

func newRewriter(g *ir.Graph, opts *Options) *Rewriter {
	return &Rewriter{g: g, opts: opts}
}

// Graph returns the graph being rewritten.
func (rw *Rewriter) Graph() *ir.Graph { return rw.g }

// Target returns the configuration of the generation being targeted.
func (rw *Rewriter) Target() target.Target { return rw.opts.Target }

// Shift returns the configured rounding shift.
func (rw *Rewriter) Shift() int { return rw.opts.Shift }

// AccType returns the accumulator type for t on the current generation.
func (rw *Rewriter) AccType(t ir.Type) (ir.Type, error) {
	return target.AccumulatorType(t, rw.opts.generation())
}

func (rw *Rewriter) begin(root *ir.Op) {
	rw.root = root
	rw.created = rw.created[:0]
	rw.replaced = rw.replaced[:0]
}

// Create inserts a single-result op of type t before the root and returns
// its result.
func (rw *Rewriter) Create(kind ir.Kind, t ir.Type, attrs ir.Attrs, operands ...ir.Value) ir.Value {
	op := rw.g.InsertBefore(rw.root, kind, []ir.Type{t}, operands, attrs)
	rw.created = append(rw.created, op)
	return op.Result(0)
}

// Replace records that every use of op's result must be rewired to v. The
// root is normally the op replaced; a pattern may also replace a user of
// the root, in which case the root must end up unused.
func (rw *Rewriter) Replace(op *ir.Op, v ir.Value) {
	rw.replaced = append(rw.replaced, replacement{op: op, with: v})
}

// EnsureInclude declares header at the start of the graph unless an
// identical declaration already exists.
func (rw *Rewriter) EnsureInclude(header string) {
	for _, op := range rw.g.Ops() {
		if op.Kind == ir.Include && op.Attrs.Str("name") == header {
			return
		}
	}
	op := rw.g.InsertAtStart(ir.Include, nil, nil, ir.Attrs{ir.A("name", header)})
	rw.created = append(rw.created, op)
}

func (rw *Rewriter) rollback() {
	for _, op := range slices.Backward(rw.created) {
		rw.g.Erase(op)
	}
	rw.created = rw.created[:0]
	rw.replaced = rw.replaced[:0]
}

func (rw *Rewriter) isReplaced(op *ir.Op) bool {
	return slices.ContainsFunc(rw.replaced, func(r replacement) bool { return r.op == op })
}

// commit applies the recorded replacements, removes the root and any
// producers left without users.
func (rw *Rewriter) commit() error {
	g := rw.g
	if len(rw.replaced) == 0 {
		return fmt.Errorf("%w: %s was not replaced", ErrReplacement, rw.root.Kind)
	}
	for _, r := range rw.replaced {
		if want, got := r.op.Type(), g.ValueType(r.with); want != got {
			return fmt.Errorf("%w: %s produces %v but its replacement is %v", ErrReplacement, r.op.Kind, want, got)
		}
	}
	if !rw.isReplaced(rw.root) {
		for _, user := range g.Users(rw.root.Result(0)) {
			if !rw.isReplaced(user) {
				return fmt.Errorf("%w: %s is still used by %s", ErrReplacement, rw.root.Kind, user.Kind)
			}
		}
	}

	var freed []*ir.Op
	release := func(op *ir.Op) {
		for _, v := range op.Operands {
			if def := g.DefiningOp(v); def != nil {
				freed = append(freed, def)
			}
		}
		g.Erase(op)
	}
	for _, r := range rw.replaced {
		g.ReplaceAllUses(r.op.Result(0), r.with)
		release(r.op)
	}
	if !rw.root.Erased() {
		release(rw.root)
	}
	eraseDeadProducers(g, freed)
	rw.created = rw.created[:0]
	rw.replaced = rw.replaced[:0]
	return nil
}

// eraseDeadProducers removes the given ops, and transitively their
// producers, once nothing reads them. Pinned ops are kept.
func eraseDeadProducers(g *ir.Graph, work []*ir.Op) {
	for len(work) > 0 {
		op := work[len(work)-1]
		work = work[:len(work)-1]
		if op.Erased() || op.Kind == ir.Arg || op.Kind.Pinned() || g.IsUsed(op) {
			continue
		}
		for _, v := range op.Operands {
			if def := g.DefiningOp(v); def != nil {
				work = append(work, def)
			}
		}
		g.Erase(op)
	}
}
