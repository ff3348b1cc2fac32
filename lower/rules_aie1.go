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

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

// AIE1 has no element-wise accumulator instructions: arithmetic maps one
// to one onto aievec.add/sub/mul, and multiply-accumulate is recovered
// afterwards from aievec.add(srs(aievec.mul)).

func aie1Patterns() []Pattern {
	return []Pattern{
		{Name: "aie1-addi", Root: ir.AddI, Match: matchAIE1AddI, Apply: lowerOneToOne(ir.AIEAdd)},
		{Name: "aie1-subi", Root: ir.SubI, Match: matchAIE1Binary, Apply: lowerOneToOne(ir.AIESub)},
		{Name: "aie1-muli", Root: ir.MulI, Match: matchAIE1Binary, Apply: lowerAIE1MulI},
		{Name: "aie1-addf", Root: ir.AddF, Match: matchAIE1Binary, Apply: lowerOneToOne(ir.AIEAdd)},
		{Name: "aie1-subf", Root: ir.SubF, Match: matchAIE1Binary, Apply: lowerOneToOne(ir.AIESub)},
		{Name: "aie1-mulf", Root: ir.MulF, Match: matchAIE1Binary, Apply: lowerOneToOne(ir.AIEMul)},
		{Name: "aie1-mac", Root: ir.AIEAdd, Match: matchAIE1MAC, Apply: lowerAIE1MAC},
		{Name: "aie1-fold-broadcast-mac", Root: ir.AIEMac, Match: matchBroadcastMAC, Apply: lowerBroadcastMAC},
	}
}

func matchAIE1Binary(_ *ir.Graph, op *ir.Op, t target.Target) bool {
	return t.SupportsVector(op.Type())
}

// matchAIE1AddI leaves adds of a product alone until the product is
// lowered, so that the sum can become a multiply-accumulate.
func matchAIE1AddI(g *ir.Graph, op *ir.Op, t target.Target) bool {
	return matchAIE1Binary(g, op, t) && !definedBy(g, op.Operands, ir.MulI)
}

func lowerOneToOne(k ir.Kind) func(*Rewriter, *ir.Op) (bool, error) {
	return func(rw *Rewriter, op *ir.Op) (bool, error) {
		rw.Replace(op, rw.binary(k, op.Type(), op.Operands[0], op.Operands[1]))
		return true, nil
	}
}

func lowerAIE1MulI(rw *Rewriter, op *ir.Op) (bool, error) {
	acc, err := rw.AccType(op.Type())
	if err != nil {
		return false, nil
	}
	mul := rw.binary(ir.AIEMul, acc, op.Operands[0], op.Operands[1])
	rw.Replace(op, rw.srs(op.Type(), mul, 0))
	return true, nil
}

// matchAIE1MAC fuses integer sums only. Float products on AIE1 are not
// accumulated and stay a separate aievec.mul.
func matchAIE1MAC(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	if !op.Type().IsInt() {
		return false
	}
	_, ok := matchMAC(g, op, ir.AIEMul)
	return ok
}

// lowerAIE1MAC fuses the product into the sum. The mac instruction reads
// its first multiplicand from a register twice as wide.
func lowerAIE1MAC(rw *Rewriter, op *ir.Op) (bool, error) {
	m, _ := matchMAC(rw.Graph(), op, ir.AIEMul)
	t := op.Type()
	acc, err := rw.AccType(rw.typeOf(m.acc))
	if err != nil {
		return false, nil
	}
	lhs := rw.concat(t.WithLanes(2*ir.LaneCount(t)), m.lhs, m.lhs)
	mac := rw.Create(ir.AIEMac, acc, ir.Attrs{ir.A("fmsub", false)}, lhs, m.rhs, rw.ups(acc, m.acc, 0))
	rw.Replace(op, rw.srs(t, mac, 0))
	return true, nil
}

// broadcastMAC is an aievec.mac one of whose multiplicands is a broadcast
// lane of vec.
type broadcastMAC struct {
	lhs ir.Value // the multiplicand that is not broadcast
	vec ir.Value // vector the broadcast lane is read from
	pos int
}

func matchBroadcastOperand(g *ir.Graph, mac *ir.Op) (broadcastMAC, bool) {
	concat := g.DefiningOpOf(mac.Operands[0], ir.Concat)
	if concat == nil || len(concat.Operands) == 0 {
		return broadcastMAC{}, false
	}
	lhs, bcast := mac.Operands[1], g.DefiningOpOf(concat.Operands[0], ir.Broadcast)
	if bcast == nil {
		lhs, bcast = concat.Operands[0], g.DefiningOpOf(mac.Operands[1], ir.Broadcast)
	}
	if bcast == nil {
		return broadcastMAC{}, false
	}
	ex := g.DefiningOpOf(bcast.Operands[0], ir.Extract)
	if ex == nil || !ex.Attrs.Has("pos") {
		return broadcastMAC{}, false
	}
	return broadcastMAC{lhs: lhs, vec: ex.Operands[0], pos: int(ex.Attrs.Int("pos"))}, true
}

func matchBroadcastMAC(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	if _, ok := matchBroadcastOperand(g, op); !ok {
		return false
	}
	t := operandType(g, op, 0)
	return t.IsInt() && (ir.ElementBitWidth(t) == 16 || ir.ElementBitWidth(t) == 32)
}

// splatAttrs configures a mac to multiply every x lane by lane pos of z.
// Attributes of mac that the splat does not set are kept.
func splatAttrs(mac *ir.Op, elemBits, pos int) ir.Attrs {
	attrs := mac.Attrs.Clone()
	switch elemBits {
	case 16:
		attrs.Set("xstart", "0")
		attrs.Set("xoffsets", "0x73727170")
		attrs.Set("xoffsets_hi", "0x77767574")
		attrs.Set("xsquare", "0x3120")
		attrs.Set("zstart", fmt.Sprint(pos))
		attrs.Set("zoffsets", "0")
		attrs.Set("zoffsets_hi", "0")
		attrs.Set("zstep", "1")
	case 32:
		attrs.Set("xstart", "0")
		attrs.Set("xoffsets", "0x76543210")
		attrs.Set("zstart", fmt.Sprint(pos))
		attrs.Set("zoffsets", "0x00000000")
	}
	return attrs
}

// lowerBroadcastMAC reads the broadcast lane straight from its source
// vector through the mac's z operand configuration.
func lowerBroadcastMAC(rw *Rewriter, op *ir.Op) (bool, error) {
	g := rw.Graph()
	b, _ := matchBroadcastOperand(g, op)
	lt := rw.typeOf(b.lhs)
	x := rw.concat(rw.typeOf(op.Operands[0]), b.lhs, rw.constant(lt, 0))
	attrs := splatAttrs(op, ir.ElementBitWidth(lt), b.pos)
	rw.Replace(op, rw.Create(ir.AIEMac, op.Type(), attrs, x, b.vec, op.Operands[2]))
	return true, nil
}
