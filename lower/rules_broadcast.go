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

func broadcastPatterns() []Pattern {
	return []Pattern{
		{Name: "fold-extract-broadcast", Root: ir.Broadcast, Match: matchExtractBroadcast, Apply: lowerExtractBroadcast},
		{Name: "broadcast-scalar", Root: ir.Broadcast, Match: matchScalarBroadcast, Apply: lowerScalarBroadcast},
	}
}

// broadcastFits reports whether a broadcast result of type rt can be built
// from native broadcasts of width w: half, one or two registers.
func broadcastFits(rt ir.Type, w int) bool {
	if !rt.IsVector() || w == 0 {
		return false
	}
	switch rt.BitWidth() {
	case w / 2, w, 2 * w:
		return true
	}
	return false
}

func matchExtractBroadcast(g *ir.Graph, op *ir.Op, t target.Target) bool {
	ex := g.DefiningOpOf(op.Operands[0], ir.Extract)
	if ex == nil || !ex.Attrs.Has("pos") || !broadcastFits(op.Type(), t.BroadcastWidth) {
		return false
	}
	src, rt := g.ValueType(ex.Operands[0]), op.Type()
	return src == rt || (src.Elem == rt.Elem && ir.LaneCount(src) == 2*ir.LaneCount(rt))
}

// lowerExtractBroadcast folds broadcast(extract(v, pos)) into a native
// broadcast of lane pos of v.
func lowerExtractBroadcast(rw *Rewriter, op *ir.Op) (bool, error) {
	ex := rw.Graph().DefiningOp(op.Operands[0])
	rt := op.Type()
	lanes := ir.LaneCount(rt)
	src, pos := ex.Operands[0], int(ex.Attrs.Int("pos"))
	if rw.typeOf(src) != rt {
		half := pos / lanes
		pos -= half * lanes
		src = rw.ext(rt, src, half)
	}
	width := rw.Target().BroadcastWidth
	native := rt.WithLanes(width / ir.ElementBitWidth(rt))
	switch rt.BitWidth() {
	case width:
		rw.Replace(op, rw.broadcast(rt, src, pos))
	case width / 2:
		b := rw.broadcast(native, rw.concat(native, src, src), pos)
		rw.Replace(op, rw.ext(rt, b, 0))
	default:
		nl := ir.LaneCount(native)
		half := pos / nl
		b := rw.broadcast(native, rw.ext(native, src, half), pos-half*nl)
		rw.Replace(op, rw.concat(rt, b, b))
	}
	return true, nil
}

func matchScalarBroadcast(g *ir.Graph, op *ir.Op, t target.Target) bool {
	if g.DefiningOpOf(op.Operands[0], ir.Extract) != nil {
		return false
	}
	return g.ValueType(op.Operands[0]).IsScalar() && broadcastFits(op.Type(), t.BroadcastWidth)
}

func lowerScalarBroadcast(rw *Rewriter, op *ir.Op) (bool, error) {
	rt := op.Type()
	width := rw.Target().BroadcastWidth
	native := rt.WithLanes(width / ir.ElementBitWidth(rt))
	switch rt.BitWidth() {
	case width:
		rw.Replace(op, rw.broadcastScalar(rt, op.Operands[0]))
	case width / 2:
		rw.Replace(op, rw.ext(rt, rw.broadcastScalar(native, op.Operands[0]), 0))
	default:
		b := rw.broadcastScalar(native, op.Operands[0])
		rw.Replace(op, rw.concat(rt, b, b))
	}
	return true, nil
}
