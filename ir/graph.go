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

// Package ir provides the dataflow graph that the vector lowering rewrites:
// an arena of operations with stable IDs, typed values, ordered attributes
// and a textual form for reading and printing graphs.
package ir

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidGraph is matched by every error Verify returns.
var ErrInvalidGraph = errors.New("ir: invalid graph")

// OpID is the stable arena index of an Op. IDs are never reused, even
// after the op is erased.
type OpID int32

// NoOp is the OpID of "no operation".
const NoOp OpID = -1

// Value names result Index of the op Op.
type Value struct {
	Op    OpID
	Index int
}

// NoValue is the invalid Value.
var NoValue = Value{Op: NoOp}

// Valid reports whether v refers to an op at all.
func (v Value) Valid() bool { return v.Op != NoOp }

// Op is a single operation in a Graph.
type Op struct {
	ID       OpID
	Kind     Kind
	Operands []Value
	Results  []Type
	Attrs    Attrs

	// Name is the printed name of graph arguments; other ops print as %N.
	Name string

	prev, next OpID
	erased     bool
}

// Result returns the i-th result of o.
func (o *Op) Result(i int) Value { return Value{Op: o.ID, Index: i} }

// Type returns the type of the first result, or None if o has no results.
func (o *Op) Type() Type {
	if len(o.Results) == 0 {
		return None
	}
	return o.Results[0]
}

// Erased reports whether o has been removed from its graph.
func (o *Op) Erased() bool { return o.erased }

// Graph is a single function body: an arena of ops linked in program order.
type Graph struct {
	Name string

	ops         []*Op
	first, last OpID
}

// NewGraph returns an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{Name: name, first: NoOp, last: NoOp}
}

func (g *Graph) newOp(kind Kind, results []Type, operands []Value, attrs Attrs) *Op {
	op := &Op{
		ID:       OpID(len(g.ops)),
		Kind:     kind,
		Operands: slices.Clone(operands),
		Results:  slices.Clone(results),
		Attrs:    attrs.Clone(),
		prev:     NoOp,
		next:     NoOp,
	}
	g.ops = append(g.ops, op)
	return op
}

// Append creates an op at the end of the program.
func (g *Graph) Append(kind Kind, results []Type, operands []Value, attrs Attrs) *Op {
	op := g.newOp(kind, results, operands, attrs)
	op.prev = g.last
	if g.last != NoOp {
		g.ops[g.last].next = op.ID
	} else {
		g.first = op.ID
	}
	g.last = op.ID
	return op
}

// InsertBefore creates an op immediately before anchor in program order.
func (g *Graph) InsertBefore(anchor *Op, kind Kind, results []Type, operands []Value, attrs Attrs) *Op {
	if anchor == nil {
		return g.Append(kind, results, operands, attrs)
	}
	op := g.newOp(kind, results, operands, attrs)
	op.next = anchor.ID
	op.prev = anchor.prev
	if anchor.prev != NoOp {
		g.ops[anchor.prev].next = op.ID
	} else {
		g.first = op.ID
	}
	anchor.prev = op.ID
	return op
}

// InsertAtStart creates an op at the very beginning of the program.
func (g *Graph) InsertAtStart(kind Kind, results []Type, operands []Value, attrs Attrs) *Op {
	if g.first == NoOp {
		return g.Append(kind, results, operands, attrs)
	}
	return g.InsertBefore(g.ops[g.first], kind, results, operands, attrs)
}

// AddArg appends a graph argument of type t.
func (g *Graph) AddArg(name string, t Type) Value {
	op := g.Append(Arg, []Type{t}, nil, nil)
	op.Name = name
	return op.Result(0)
}

// Op returns the op with the given ID, or nil if the ID is out of range.
func (g *Graph) Op(id OpID) *Op {
	if id < 0 || int(id) >= len(g.ops) {
		return nil
	}
	return g.ops[id]
}

// ValueType returns the type of v.
func (g *Graph) ValueType(v Value) Type {
	op := g.Op(v.Op)
	if op == nil || v.Index >= len(op.Results) {
		return None
	}
	return op.Results[v.Index]
}

// DefiningOp returns the live op that produces v. Graph arguments have no
// defining op and yield nil.
func (g *Graph) DefiningOp(v Value) *Op {
	op := g.Op(v.Op)
	if op == nil || op.erased || op.Kind == Arg {
		return nil
	}
	return op
}

// DefiningOpOf is DefiningOp filtered to a kind: it returns nil unless the
// producer of v has kind k.
func (g *Graph) DefiningOpOf(v Value, k Kind) *Op {
	if op := g.DefiningOp(v); op != nil && op.Kind == k {
		return op
	}
	return nil
}

// First returns the first live op, or nil for an empty graph.
func (g *Graph) First() *Op { return g.Op(g.first) }

// Next returns the op following o in program order, or nil.
func (g *Graph) Next(o *Op) *Op { return g.Op(o.next) }

// Ops returns the live ops in program order.
func (g *Graph) Ops() []*Op {
	var ops []*Op
	for id := g.first; id != NoOp; id = g.ops[id].next {
		ops = append(ops, g.ops[id])
	}
	return ops
}

// Len returns the number of live ops.
func (g *Graph) Len() int {
	n := 0
	for id := g.first; id != NoOp; id = g.ops[id].next {
		n++
	}
	return n
}

// Erase unlinks op from program order. The caller must have removed all
// uses of its results first.
func (g *Graph) Erase(op *Op) {
	if op == nil || op.erased {
		return
	}
	if op.prev != NoOp {
		g.ops[op.prev].next = op.next
	} else {
		g.first = op.next
	}
	if op.next != NoOp {
		g.ops[op.next].prev = op.prev
	} else {
		g.last = op.prev
	}
	op.prev, op.next = NoOp, NoOp
	op.erased = true
}

// Verify checks the structural invariants: every operand refers to a live
// result defined earlier in program order.
func (g *Graph) Verify() error {
	seen := make(map[OpID]bool, len(g.ops))
	for _, op := range g.Ops() {
		for i, v := range op.Operands {
			def := g.Op(v.Op)
			switch {
			case def == nil:
				return fmt.Errorf("%w: op %d (%s): operand %d refers to unknown op %d", ErrInvalidGraph, op.ID, op.Kind, i, v.Op)
			case def.erased:
				return fmt.Errorf("%w: op %d (%s): operand %d refers to erased op %d (%s)", ErrInvalidGraph, op.ID, op.Kind, i, v.Op, def.Kind)
			case !seen[v.Op]:
				return fmt.Errorf("%w: op %d (%s): operand %d is a forward reference to op %d", ErrInvalidGraph, op.ID, op.Kind, i, v.Op)
			case v.Index >= len(def.Results):
				return fmt.Errorf("%w: op %d (%s): operand %d uses missing result %d of op %d", ErrInvalidGraph, op.ID, op.Kind, i, v.Index, v.Op)
			}
		}
		seen[op.ID] = true
	}
	return nil
}
