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
	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

// Horizontal reductions are lowered to a tree: the vector is combined with
// itself shifted down by half the active window, log2(lanes) times, and
// lane 0 is read out.

var addReduceIntShapes = []shape{{64, 8}, {32, 16}, {32, 32}, {16, 32}}

func reducePatterns() []Pattern {
	return []Pattern{
		{Name: "reduce-min", Root: ir.Reduction, Match: matchReduceMinMax("minsi", "minui", "minf"), Apply: lowerReduceMinMax(ir.AIEMin)},
		{Name: "reduce-max", Root: ir.Reduction, Match: matchReduceMinMax("maxsi", "maxui", "maxf"), Apply: lowerReduceMinMax(ir.AIEMax)},
		{Name: "reduce-add-int", Root: ir.Reduction, Match: matchReduceAddInt, Apply: lowerReduceAddInt},
		{Name: "reduce-add-f32", Root: ir.Reduction, Match: matchReduceAddFloat(32, 16), Apply: lowerReduceAddF32},
		{Name: "reduce-add-bf16", Root: ir.Reduction, Match: matchReduceAddFloat(16, 16, 32), Apply: lowerReduceAddHalf},
	}
}

func reducedType(g *ir.Graph, op *ir.Op) ir.Type { return operandType(g, op, 0) }

// shiftTree combines cur with itself shifted by from, from/2, ... 1 lanes.
func (rw *Rewriter) shiftTree(k ir.Kind, cur ir.Value, from int) ir.Value {
	t := rw.typeOf(cur)
	bytes := ir.ElementBitWidth(t) / 8
	for id := from; id > 0; id /= 2 {
		cur = rw.binary(k, t, cur, rw.shift(t, cur, cur, id*bytes))
	}
	return cur
}

func matchReduceMinMax(kinds ...string) func(*ir.Graph, *ir.Op, target.Target) bool {
	return func(g *ir.Graph, op *ir.Op, _ target.Target) bool {
		kind := op.Attrs.Str("kind")
		for _, k := range kinds {
			if k == kind {
				return is512(reducedType(g, op))
			}
		}
		return false
	}
}

func lowerReduceMinMax(k ir.Kind) func(*Rewriter, *ir.Op) (bool, error) {
	return func(rw *Rewriter, op *ir.Op) (bool, error) {
		v := op.Operands[0]
		cur := rw.shiftTree(k, v, ir.LaneCount(rw.typeOf(v))/2)
		rw.Replace(op, rw.extElem(op.Type(), cur, 0))
		return true, nil
	}
}

func matchReduceAddInt(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := reducedType(g, op)
	return op.Attrs.Str("kind") == "add" && t.IsVector() && t.IsInt() && shapeOf(t).in(addReduceIntShapes...)
}

// lowerReduceAddInt adds the two halves of a two-register vector first.
func lowerReduceAddInt(rw *Rewriter, op *ir.Op) (bool, error) {
	v := op.Operands[0]
	t := rw.typeOf(v)
	lanes := ir.LaneCount(t)
	if t.BitWidth() == 1024 {
		half := t.WithLanes(lanes / 2)
		v = rw.binary(ir.AddElem, half, rw.ext(half, v, 0), rw.ext(half, v, 1))
		lanes /= 2
	}
	cur := rw.shiftTree(ir.AddElem, v, lanes/2)
	rw.Replace(op, rw.extElem(op.Type(), cur, 0))
	return true, nil
}

func matchReduceAddFloat(bits int, lanes ...int) func(*ir.Graph, *ir.Op, target.Target) bool {
	return func(g *ir.Graph, op *ir.Op, _ target.Target) bool {
		t := reducedType(g, op)
		if op.Attrs.Str("kind") != "add" || !t.IsVector() || !t.IsFloat() || ir.ElementBitWidth(t) != bits {
			return false
		}
		for _, n := range lanes {
			if ir.LaneCount(t) == n {
				return true
			}
		}
		return false
	}
}

// lowerReduceAddF32 adds in accumulator registers at every step.
func lowerReduceAddF32(rw *Rewriter, op *ir.Op) (bool, error) {
	cur := op.Operands[0]
	t := rw.typeOf(cur)
	for id := ir.LaneCount(t) / 2; id > 0; id /= 2 {
		sh := rw.shift(t, cur, cur, id*ir.ElementBitWidth(t)/8)
		cur = rw.elemInAcc(ir.AddElem, t, cur, sh)
	}
	rw.Replace(op, rw.extElem(op.Type(), cur, 0))
	return true, nil
}

// lowerReduceAddHalf reduces 16-bit floats in an f32 accumulator. A
// two-register input has its halves added first.
func lowerReduceAddHalf(rw *Rewriter, op *ir.Op) (bool, error) {
	v := op.Operands[0]
	t := rw.typeOf(v)
	half := t.WithLanes(16)
	acc := mustAcc(half, target.AIEML)
	var cur ir.Value
	if ir.LaneCount(t) == 32 {
		lo, hi := rw.ext(half, v, 0), rw.ext(half, v, 1)
		cur = rw.binary(ir.AddElem, acc, rw.ups(acc, lo, 0), rw.ups(acc, hi, 0))
	} else {
		cur = rw.ups(acc, v, 0)
	}
	cur = rw.shiftTree(ir.AddElem, cur, 8)
	s := rw.srs(half, cur, 0)
	rw.Replace(op, rw.extElem(op.Type(), rw.concat(half.WithLanes(32), s, s), 0))
	return true, nil
}
