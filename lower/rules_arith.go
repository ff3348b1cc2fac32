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

// Element-wise arithmetic for AIE-ML.

// addSubIntShapes are the integer vectors AIE-ML adds and subtracts.
var addSubIntShapes = []shape{{64, 8}, {32, 16}, {16, 32}, {32, 32}}

// macIntShapes are the integer vectors AIE-ML multiply-accumulates.
var macIntShapes = []shape{{32, 16}, {16, 32}}

func arithPatterns() []Pattern {
	return []Pattern{
		{Name: "add-int", Root: ir.AddI, Match: matchAddSubInt, Apply: lowerAddSubInt(ir.AddElem)},
		{Name: "sub-int", Root: ir.SubI, Match: matchAddSubInt, Apply: lowerAddSubInt(ir.SubElem)},
		{Name: "mac-int", Root: ir.AddI, Priority: 1, Match: matchMACInt, Apply: lowerMACInt},
		{Name: "mul-int", Root: ir.MulI, Match: matchMulInt, Apply: lowerMulInt},
		{Name: "add-float", Root: ir.AddF, Match: matchAddSubFloat, Apply: lowerAddSubFloat(ir.AddElem)},
		{Name: "sub-float", Root: ir.SubF, Match: matchAddSubFloat, Apply: lowerAddSubFloat(ir.SubElem)},
		{Name: "mac-float", Root: ir.AddF, Priority: 1, Match: matchMACFloat, Apply: lowerMACFloat},
		{Name: "mul-float", Root: ir.MulF, Match: matchMulFloat, Apply: lowerMulFloat},
		{Name: "min-int", Root: ir.MinSI, Match: matchMinMax, Apply: lowerMinMax(ir.AIEMin)},
		{Name: "max-int", Root: ir.MaxSI, Match: matchMinMax, Apply: lowerMinMax(ir.AIEMax)},
		{Name: "min-float", Root: ir.MinF, Match: matchMinMax, Apply: lowerMinMax(ir.AIEMin)},
		{Name: "max-float", Root: ir.MaxF, Match: matchMinMax, Apply: lowerMinMax(ir.AIEMax)},
		{Name: "cmp-int", Root: ir.CmpI, Match: matchCmp, Apply: lowerCmp},
		{Name: "cmp-float", Root: ir.CmpF, Match: matchCmp, Apply: lowerCmp},
		{Name: "select", Root: ir.Select, Match: matchSelect, Apply: lowerSelect},
		{Name: "neg", Root: ir.NegF, Match: matchNeg, Apply: lowerNeg},
		{Name: "bxor", Root: ir.XOrI, Match: matchBitwise, Apply: lowerXor},
		{Name: "bor", Root: ir.OrI, Match: matchBitwise, Apply: lowerBitwise(ir.BOr)},
		{Name: "band", Root: ir.AndI, Match: matchBitwise, Apply: lowerBitwise(ir.BAnd)},
		{Name: "shrsi", Root: ir.ShRSI, Match: matchShRSI, Apply: lowerShRSI},
	}
}

// elemInAcc applies k to lhs and rhs moved into accumulator registers,
// and moves the result back.
func (rw *Rewriter) elemInAcc(k ir.Kind, t ir.Type, lhs, rhs ir.Value) ir.Value {
	sum := rw.binary(k, t, rw.cast(t, lhs, true), rw.cast(t, rhs, true))
	return rw.cast(t, sum, false)
}

func matchAddSubInt(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := op.Type()
	return t.IsVector() && t.IsInt() && shapeOf(t).in(addSubIntShapes...) &&
		!definedBy(g, op.Operands, ir.MulI, ir.MulF)
}

func lowerAddSubInt(k ir.Kind) func(*Rewriter, *ir.Op) (bool, error) {
	return func(rw *Rewriter, op *ir.Op) (bool, error) {
		g := rw.Graph()
		t := op.Type()
		lhs, rhs := op.Operands[0], op.Operands[1]
		if ir.ElementBitWidth(t) != 32 {
			rw.Replace(op, rw.binary(k, t, lhs, rhs))
			return true, nil
		}
		lext, rext := g.DefiningOpOf(lhs, ir.ExtSI), g.DefiningOpOf(rhs, ir.ExtSI)
		switch {
		case lext == nil && rext == nil:
			if t.BitWidth() == 512 {
				rw.Replace(op, rw.binary(k, t, lhs, rhs))
			} else {
				rw.Replace(op, rw.elemInAcc(k, t, lhs, rhs))
			}
		case lext != nil && rext != nil:
			lval, rval := lext.Operands[0], rext.Operands[0]
			acc := mustAcc(rw.typeOf(lval), target.AIEML)
			sum := rw.binary(k, acc, rw.ups(acc, lval, 0), rw.ups(acc, rval, 0))
			rw.Replace(op, rw.cast(t, sum, false))
		default:
			lval, rval := lookThrough(g, lhs, ir.ExtSI), lookThrough(g, rhs, ir.ExtSI)
			extended, other := lval, rval
			if lext == nil {
				extended, other = rval, lval
			}
			et := rw.typeOf(extended)
			bits := ir.ElementBitWidth(et)
			if (bits != 8 && bits != 16) || bits*ir.LaneCount(t) != 256 {
				rw.Replace(op, rw.elemInAcc(k, t, lhs, rhs))
				return true, nil
			}
			if bits == 8 {
				acc := mustAcc(et, target.AIEML)
				up, c := rw.ups(acc, extended, 0), rw.cast(t, other, true)
				l, r := up, c
				if lext == nil {
					l, r = c, up
				}
				rw.Replace(op, rw.cast(t, rw.binary(k, acc, l, r), false))
				return true, nil
			}
			acc := mustAcc(t, target.AIEML)
			sum := rw.binary(k, acc, rw.ups(acc, lval, 0), rw.ups(acc, rval, 0))
			rw.Replace(op, rw.srs(t, sum, 0))
		}
		return true, nil
	}
}

func matchAddSubFloat(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := op.Type()
	if !t.IsVector() || !t.IsFloat() || ir.LaneCount(t) != 16 {
		return false
	}
	if b := ir.ElementBitWidth(t); b != 16 && b != 32 {
		return false
	}
	return !definedBy(g, op.Operands, ir.MulI, ir.MulF)
}

func lowerAddSubFloat(k ir.Kind) func(*Rewriter, *ir.Op) (bool, error) {
	return func(rw *Rewriter, op *ir.Op) (bool, error) {
		g := rw.Graph()
		t := op.Type()
		lhs, rhs := op.Operands[0], op.Operands[1]
		if ir.ElementBitWidth(t) == 16 {
			acc := mustAcc(t, target.AIEML)
			sum := rw.binary(k, acc, rw.ups(acc, lhs, 0), rw.ups(acc, rhs, 0))
			rw.Replace(op, rw.srs(t, sum, 0))
			return true, nil
		}
		lext, rext := g.DefiningOpOf(lhs, ir.ExtF), g.DefiningOpOf(rhs, ir.ExtF)
		switch {
		case lext == nil && rext == nil:
			rw.Replace(op, rw.elemInAcc(k, t, lhs, rhs))
		case lext != nil && rext != nil:
			lval, rval := lext.Operands[0], rext.Operands[0]
			acc := mustAcc(rw.typeOf(lval), target.AIEML)
			sum := rw.binary(k, acc, rw.ups(acc, lval, 0), rw.ups(acc, rval, 0))
			rw.Replace(op, rw.cast(t, sum, false))
		default:
			if lext != nil {
				acc := mustAcc(rw.typeOf(lext.Operands[0]), target.AIEML)
				up := rw.ups(acc, lext.Operands[0], 0)
				sum := rw.binary(k, acc, up, rw.cast(t, rhs, true))
				rw.Replace(op, rw.cast(t, sum, false))
			} else {
				acc := mustAcc(rw.typeOf(rext.Operands[0]), target.AIEML)
				up := rw.ups(acc, rext.Operands[0], 0)
				sum := rw.binary(k, acc, rw.cast(t, lhs, true), up)
				rw.Replace(op, rw.cast(t, sum, false))
			}
		}
		return true, nil
	}
}

// feedsMAC reports whether mul is consumed by a multiply-accumulate rule
// through its only user.
func feedsMAC(g *ir.Graph, mul *ir.Op) bool {
	user := g.SingleUser(mul.Result(0))
	if user == nil {
		return false
	}
	var m macMatch
	var ok bool
	switch {
	case mul.Kind == ir.MulI && user.Kind == ir.AddI:
		m, ok = macIntCandidate(g, user)
	case mul.Kind == ir.MulF && user.Kind == ir.AddF:
		m, ok = macFloatCandidate(g, user)
	}
	return ok && m.mul == mul
}

func macIntCandidate(g *ir.Graph, add *ir.Op) (macMatch, bool) {
	t := add.Type()
	if !t.IsVector() || !t.IsInt() || !shapeOf(t).in(macIntShapes...) {
		return macMatch{}, false
	}
	return matchMAC(g, add, ir.MulI)
}

func matchMACInt(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	_, ok := macIntCandidate(g, op)
	return ok
}

func lowerMACInt(rw *Rewriter, op *ir.Op) (bool, error) {
	m, _ := macIntCandidate(rw.Graph(), op)
	acc, err := rw.AccType(rw.typeOf(m.acc))
	if err != nil {
		return false, err
	}
	up := rw.ups(acc, m.acc, rw.Shift())
	mac := rw.Create(ir.MacElem, acc, ir.Attrs{ir.A("fmsub", false)}, m.lhs, m.rhs, up)
	rw.Replace(op, rw.srs(op.Type(), mac, rw.Shift()))
	return true, nil
}

// macFloatCandidate accepts 16 lanes of a 16-bit float, or 16 lanes of f32
// computed from products of extended 16-bit floats.
func macFloatCandidate(g *ir.Graph, add *ir.Op) (macMatch, bool) {
	t := add.Type()
	if !t.IsVector() || !t.IsFloat() || ir.LaneCount(t) != 16 {
		return macMatch{}, false
	}
	m, ok := matchMAC(g, add, ir.MulF)
	if !ok {
		return macMatch{}, false
	}
	switch ir.ElementBitWidth(t) {
	case 16:
		return m, g.ValueType(m.lhs) == t && g.ValueType(m.rhs) == t
	case 32:
		l, r := g.DefiningOpOf(m.lhs, ir.ExtF), g.DefiningOpOf(m.rhs, ir.ExtF)
		if l == nil || r == nil {
			return macMatch{}, false
		}
		lt := g.ValueType(l.Operands[0])
		return m, lt == g.ValueType(r.Operands[0]) && ir.ElementBitWidth(lt) == 16 && ir.LaneCount(lt) == 16
	}
	return macMatch{}, false
}

func matchMACFloat(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	_, ok := macFloatCandidate(g, op)
	return ok
}

func lowerMACFloat(rw *Rewriter, op *ir.Op) (bool, error) {
	g := rw.Graph()
	m, _ := macFloatCandidate(g, op)
	t := op.Type()
	fmsub := ir.Attrs{ir.A("fmsub", false)}
	if ir.ElementBitWidth(t) == 16 {
		acc := mustAcc(t, target.AIEML)
		wide := t.WithLanes(32)
		up := rw.ups(acc, m.acc, rw.Shift())
		mac := rw.Create(ir.MacElem, acc, fmsub, rw.bridge(m.lhs, wide), rw.bridge(m.rhs, wide), up)
		rw.Replace(op, rw.srs(t, mac, rw.Shift()))
		return true, nil
	}
	l, r := lookThrough(g, m.lhs, ir.ExtF), lookThrough(g, m.rhs, ir.ExtF)
	wide := rw.typeOf(l).WithLanes(32)
	acc := rw.cast(t, m.acc, true)
	mac := rw.Create(ir.MacElem, t, fmsub, rw.bridge(l, wide), rw.bridge(r, wide), acc)
	rw.Replace(op, rw.cast(t, mac, false))
	return true, nil
}

// mulPlan is how a multiply is fed to aievec.mul_elem.
type mulPlan struct {
	lhs, rhs ir.Value // multiplicands before extension
	input    ir.Type  // register-wide operand type of mul_elem
	acc      ir.Type
}

// planMul looks through ext ops of kind ext and sizes the multiply after
// the wider operand. It fails when an operand cannot be bridged.
func planMul(g *ir.Graph, op *ir.Op, ext ir.Kind) (mulPlan, bool) {
	lhs, rhs := lookThrough(g, op.Operands[0], ext), lookThrough(g, op.Operands[1], ext)
	lt, rt := g.ValueType(lhs), g.ValueType(rhs)
	if !lt.IsVector() || !rt.IsVector() {
		return mulPlan{}, false
	}
	wider := lt
	if ir.ElementBitWidth(rt) > ir.ElementBitWidth(lt) {
		wider = rt
	}
	acc, err := target.AccumulatorType(wider, target.AIEML)
	if err != nil {
		return mulPlan{}, false
	}
	input := wider.WithLanes(512 / ir.ElementBitWidth(wider))
	if !canBridge(lt, input) || !canBridge(rt, input) {
		return mulPlan{}, false
	}
	if ir.ElementBitWidth(acc) < ir.ElementBitWidth(op.Type()) {
		return mulPlan{}, false
	}
	return mulPlan{lhs: lhs, rhs: rhs, input: input, acc: acc}, true
}

// emitMul multiplies in the accumulator and narrows back to op's type.
func (rw *Rewriter) emitMul(op *ir.Op, p mulPlan) {
	t := op.Type()
	prod := rw.binary(ir.MulElem, p.acc, rw.bridge(p.lhs, p.input), rw.bridge(p.rhs, p.input))
	if ir.ElementBitWidth(p.acc) == ir.ElementBitWidth(t) {
		rw.Replace(op, rw.cast(t, prod, false))
	} else {
		rw.Replace(op, rw.srs(t, prod, rw.Shift()))
	}
}

func matchMulInt(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := op.Type()
	if !t.IsVector() || !t.IsInt() || feedsMAC(g, op) {
		return false
	}
	if !shapeOf(t).in(shape{32, 16}, shape{32, 8}, shape{16, 32}, shape{32, 32}) {
		return false
	}
	_, ok := planMul(g, op, ir.ExtSI)
	return ok
}

func lowerMulInt(rw *Rewriter, op *ir.Op) (bool, error) {
	p, _ := planMul(rw.Graph(), op, ir.ExtSI)
	rw.emitMul(op, p)
	return true, nil
}

func matchMulFloat(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := op.Type()
	if !t.IsVector() || !t.IsFloat() || ir.LaneCount(t) != 16 || feedsMAC(g, op) {
		return false
	}
	if b := ir.ElementBitWidth(t); b != 16 && b != 32 {
		return false
	}
	p, ok := planMul(g, op, ir.ExtF)
	if !ok {
		return false
	}
	lt := g.ValueType(p.lhs)
	return lt == g.ValueType(p.rhs) && ir.ElementBitWidth(lt) == 16
}

func lowerMulFloat(rw *Rewriter, op *ir.Op) (bool, error) {
	p, _ := planMul(rw.Graph(), op, ir.ExtF)
	rw.emitMul(op, p)
	return true, nil
}

func matchMinMax(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := op.Type()
	if op.Kind == ir.MinF || op.Kind == ir.MaxF {
		return is512(t) && t.IsFloat()
	}
	return is512(t) && t.IsInt()
}

func lowerMinMax(k ir.Kind) func(*Rewriter, *ir.Op) (bool, error) {
	return func(rw *Rewriter, op *ir.Op) (bool, error) {
		rw.Replace(op, rw.binary(k, op.Type(), op.Operands[0], op.Operands[1]))
		return true, nil
	}
}

// floatPredicates maps float comparisons onto the integer predicates of
// aievec.cmp.
var floatPredicates = map[string]string{
	"oeq": "eq", "ueq": "eq",
	"ugt": "ugt", "ogt": "sgt",
	"uge": "uge", "oge": "sge",
	"ult": "ult", "olt": "slt",
	"ule": "ule", "ole": "sle",
	"une": "ne", "one": "ne",
}

var intPredicates = []string{"eq", "ne", "slt", "ult", "sle", "ule", "sgt", "ugt", "sge", "uge"}

func cmpPredicate(op *ir.Op) (string, bool) {
	pred := op.Attrs.Str("predicate")
	if op.Kind == ir.CmpF {
		p, ok := floatPredicates[pred]
		return p, ok
	}
	for _, p := range intPredicates {
		if p == pred {
			return p, true
		}
	}
	return "", false
}

// maskType is the scalar holding one bit per lane of a lanes wide vector.
func maskType(lanes int) ir.Type {
	if lanes <= 32 {
		return ir.Scalar(ir.U32)
	}
	return ir.Scalar(ir.U64)
}

func matchCmp(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	_, ok := cmpPredicate(op)
	return ok && is512(operandType(g, op, 0))
}

func lowerCmp(rw *Rewriter, op *ir.Op) (bool, error) {
	pred, _ := cmpPredicate(op)
	lanes := ir.LaneCount(rw.typeOf(op.Operands[0]))
	mask := rw.Create(ir.AIECmp, maskType(lanes), ir.Attrs{ir.A("pred", pred)}, op.Operands[0], op.Operands[1])
	rw.Replace(op, rw.Create(ir.UnrealizedCast, op.Type(), nil, mask))
	return true, nil
}

func matchSelect(_ *ir.Graph, op *ir.Op, _ target.Target) bool { return is512(op.Type()) }

func lowerSelect(rw *Rewriter, op *ir.Op) (bool, error) {
	t := op.Type()
	mask := rw.Create(ir.UnrealizedCast, maskType(ir.LaneCount(t)), nil, op.Operands[0])
	rw.Replace(op, rw.Create(ir.Sel, t, nil, op.Operands[1], op.Operands[2], mask))
	return true, nil
}

func matchNeg(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := op.Type()
	if !t.IsVector() || !t.IsFloat() || ir.LaneCount(t) != 16 {
		return false
	}
	if b := ir.ElementBitWidth(t); b != 16 && b != 32 {
		return false
	}
	return !inSigmoid(g, op)
}

func lowerNeg(rw *Rewriter, op *ir.Op) (bool, error) {
	t := op.Type()
	acc := mustAcc(t, target.AIEML)
	if ir.ElementBitWidth(t) == 16 {
		neg := rw.Create(ir.Neg, acc, nil, rw.ups(acc, op.Operands[0], 0))
		rw.Replace(op, rw.srs(t, neg, 0))
		return true, nil
	}
	neg := rw.Create(ir.Neg, acc, nil, rw.cast(acc, op.Operands[0], true))
	rw.Replace(op, rw.cast(t, neg, false))
	return true, nil
}

func matchBitwise(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := operandType(g, op, 0)
	return t.IsVector() && t.IsInt() && t.BitWidth() == 512
}

func lowerBitwise(k ir.Kind) func(*Rewriter, *ir.Op) (bool, error) {
	return func(rw *Rewriter, op *ir.Op) (bool, error) {
		rw.Replace(op, rw.binary(k, op.Type(), op.Operands[0], op.Operands[1]))
		return true, nil
	}
}

// lowerXor emits a bitwise not when either operand is all ones.
func lowerXor(rw *Rewriter, op *ir.Op) (bool, error) {
	g := rw.Graph()
	lhs, rhs := op.Operands[0], op.Operands[1]
	switch {
	case g.IsSplatOf(lhs, -1):
		rw.Replace(op, rw.Create(ir.BNeg, op.Type(), nil, rhs))
	case g.IsSplatOf(rhs, -1):
		rw.Replace(op, rw.Create(ir.BNeg, op.Type(), nil, lhs))
	default:
		rw.Replace(op, rw.binary(ir.BXor, op.Type(), lhs, rhs))
	}
	return true, nil
}

// shiftAmountSource classifies the shift operand of a right shift: it must
// hold one value in every lane.
func shiftAmountSource(g *ir.Graph, v ir.Value) *ir.Op {
	def := g.DefiningOp(v)
	if def == nil {
		return nil
	}
	switch def.Kind {
	case ir.AIEBroadcast, ir.BroadcastScalar, ir.Constant:
		return def
	case ir.Broadcast:
		if g.ValueType(def.Operands[0]).IsScalar() {
			return def
		}
	}
	return nil
}

func matchShRSI(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := operandType(g, op, 0)
	return t.IsVector() && t.IsInt() && t.BitWidth() == 512 && shiftAmountSource(g, op.Operands[1]) != nil
}

// shiftAmount emits the scalar shift held by the lanes of src's result.
func (rw *Rewriter) shiftAmount(src *ir.Op, elem ir.Type) ir.Value {
	switch src.Kind {
	case ir.AIEBroadcast:
		return rw.extElem(elem, src.Result(0), int(src.Attrs.Int("idx")))
	case ir.Constant:
		v, _ := ir.ConstantValue(src)
		return rw.constant(elem, v)
	}
	return src.Operands[0]
}

func lowerShRSI(rw *Rewriter, op *ir.Op) (bool, error) {
	g := rw.Graph()
	t := rw.typeOf(op.Operands[0])
	amount := rw.shiftAmount(shiftAmountSource(g, op.Operands[1]), t.ElemType())
	if ir.ElementBitWidth(t) != 8 {
		acc := mustAcc(t, target.AIEML)
		rw.Replace(op, rw.srsBy(t, rw.ups(acc, op.Operands[0], 0), amount))
		return true, nil
	}
	half := t.WithLanes(ir.LaneCount(t) / 2)
	acc := mustAcc(half, target.AIEML)
	lo := rw.srsBy(half, rw.ups(acc, rw.ext(half, op.Operands[0], 0), 0), amount)
	hi := rw.srsBy(half, rw.ups(acc, rw.ext(half, op.Operands[0], 1), 0), amount)
	rw.Replace(op, rw.concat(t, lo, hi))
	return true, nil
}
