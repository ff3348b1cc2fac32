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
	"slices"

	"github.com/samber/lo"

	"github.com/ajroetker/go-aievec/ir"
)

// shape is a (lanes, element bits) pair as checked against hardware
// allow-lists.
type shape struct{ lanes, bits int }

func shapeOf(t ir.Type) shape { return shape{ir.LaneCount(t), ir.ElementBitWidth(t)} }

func (s shape) in(allowed ...shape) bool { return lo.Contains(allowed, s) }

func operandType(g *ir.Graph, op *ir.Op, i int) ir.Type {
	if i >= len(op.Operands) {
		return ir.None
	}
	return g.ValueType(op.Operands[i])
}

// is512 reports whether t is a vector of 8, 16 or 32 bit elements filling
// exactly one 512-bit register.
func is512(t ir.Type) bool {
	if !t.IsVector() {
		return false
	}
	switch ir.ElementBitWidth(t) {
	case 8, 16, 32:
		return t.BitWidth() == 512
	}
	return false
}

// definedBy reports whether any of vs is produced by an op of one of kinds.
func definedBy(g *ir.Graph, vs []ir.Value, kinds ...ir.Kind) bool {
	return lo.SomeBy(vs, func(v ir.Value) bool {
		def := g.DefiningOp(v)
		return def != nil && slices.Contains(kinds, def.Kind)
	})
}

// lookThrough returns the operand of v's producer when it has kind k, and
// v otherwise.
func lookThrough(g *ir.Graph, v ir.Value, k ir.Kind) ir.Value {
	if def := g.DefiningOpOf(v, k); def != nil {
		return def.Operands[0]
	}
	return v
}

// macMatch holds the operands of a multiply-accumulate found behind an add.
type macMatch struct {
	lhs, rhs ir.Value // multiplicands
	acc      ir.Value // the add operand that is not the product
	mul      *ir.Op   // the multiply the fusion consumes
}

// matchMAC looks for a multiply of kind mulKind feeding add, lhs first.
// When mulKind is an accumulator product (aievec.mul or aievec.mul_elem)
// the product must sit behind an aievec.srs: a bare aievec.mul is a float
// product with no accumulator to fuse into. The product must feed add
// alone so that it is consumed once.
func matchMAC(g *ir.Graph, add *ir.Op, mulKind ir.Kind) (macMatch, bool) {
	if len(add.Operands) != 2 {
		return macMatch{}, false
	}
	l, r := add.Operands[0], add.Operands[1]
	orders := [2][2]ir.Value{{l, r}, {r, l}}
	if !slices.Contains(srsProducts, mulKind) {
		for _, o := range orders {
			if mul := g.DefiningOpOf(o[0], mulKind); mul != nil && g.HasOneUse(o[0]) {
				return macMatch{lhs: mul.Operands[0], rhs: mul.Operands[1], acc: o[1], mul: mul}, true
			}
		}
		return macMatch{}, false
	}
	for _, o := range orders {
		srs := g.DefiningOpOf(o[0], ir.Srs)
		if srs == nil || !g.HasOneUse(o[0]) || !g.HasOneUse(srs.Operands[0]) {
			continue
		}
		for _, k := range srsProducts {
			if mul := g.DefiningOpOf(srs.Operands[0], k); mul != nil {
				return macMatch{lhs: mul.Operands[0], rhs: mul.Operands[1], acc: o[1], mul: mul}, true
			}
		}
	}
	return macMatch{}, false
}

// srsProducts are the accumulator products a MAC can absorb from behind
// an aievec.srs.
var srsProducts = []ir.Kind{ir.AIEMul, ir.MulElem}

// sigmoidMatch is a recognized 1/(1+exp(-x)).
type sigmoidMatch struct {
	input ir.Value // x
	chain []*ir.Op // ops between x and the division
}

// sigmoidTemplate tries to read den, the divisor of a division of one, as
// 1+exp(-x).
type sigmoidTemplate func(g *ir.Graph, den ir.Value) (sigmoidMatch, bool)

// sigmoidTemplates are tried in order. The second accepts the sum after it
// was lowered to accumulator adds.
var sigmoidTemplates = []sigmoidTemplate{sigmoidFromAddF, sigmoidFromAddElem}

// matchSigmoid recognizes div as a logistic sigmoid.
func matchSigmoid(g *ir.Graph, div *ir.Op) (sigmoidMatch, bool) {
	if div.Kind != ir.DivF || len(div.Operands) != 2 {
		return sigmoidMatch{}, false
	}
	if !g.IsSplatOf(div.Operands[0], 1) || !g.HasOneUse(div.Operands[1]) {
		return sigmoidMatch{}, false
	}
	for _, tmpl := range sigmoidTemplates {
		if m, ok := tmpl(g, div.Operands[1]); ok {
			return m, true
		}
	}
	return sigmoidMatch{}, false
}

// splitOne returns the operand of pair that is not a splat of one.
func splitOne(g *ir.Graph, a, b ir.Value) (ir.Value, bool) {
	switch {
	case g.IsSplatOf(b, 1):
		return a, true
	case g.IsSplatOf(a, 1):
		return b, true
	}
	return ir.NoValue, false
}

func sigmoidFromAddF(g *ir.Graph, den ir.Value) (sigmoidMatch, bool) {
	add := g.DefiningOpOf(den, ir.AddF)
	if add == nil {
		return sigmoidMatch{}, false
	}
	e, ok := splitOne(g, add.Operands[0], add.Operands[1])
	if !ok || !g.HasOneUse(e) {
		return sigmoidMatch{}, false
	}
	exp := g.DefiningOpOf(e, ir.Exp)
	if exp == nil {
		return sigmoidMatch{}, false
	}
	return negatedInput(g, exp.Operands[0], exp, add)
}

func sigmoidFromAddElem(g *ir.Graph, den ir.Value) (sigmoidMatch, bool) {
	srs := g.DefiningOpOf(den, ir.Srs)
	if srs == nil || !g.HasOneUse(srs.Operands[0]) {
		return sigmoidMatch{}, false
	}
	add := g.DefiningOpOf(srs.Operands[0], ir.AddElem)
	if add == nil {
		return sigmoidMatch{}, false
	}
	lu, ru := g.DefiningOpOf(add.Operands[0], ir.Ups), g.DefiningOpOf(add.Operands[1], ir.Ups)
	if lu == nil || ru == nil || !g.HasOneUse(add.Operands[0]) || !g.HasOneUse(add.Operands[1]) {
		return sigmoidMatch{}, false
	}
	e, ok := splitOne(g, lu.Operands[0], ru.Operands[0])
	if !ok || !g.HasOneUse(e) {
		return sigmoidMatch{}, false
	}
	chain := []*ir.Op{lu, ru, add, srs}
	def := g.DefiningOp(e)
	if def == nil {
		return sigmoidMatch{}, false
	}
	if def.Kind == ir.Srs {
		if !g.HasOneUse(def.Operands[0]) {
			return sigmoidMatch{}, false
		}
		chain = append(chain, def)
		if def = g.DefiningOp(def.Operands[0]); def == nil {
			return sigmoidMatch{}, false
		}
	}
	switch {
	case def.Kind == ir.Exp:
	case def.Kind == ir.Call && def.Attrs.Str("callee") == expCallee && len(def.Operands) == 1:
	default:
		return sigmoidMatch{}, false
	}
	return negatedInput(g, def.Operands[0], append(chain, def)...)
}

// negatedInput completes a sigmoid match once the exponential's operand v
// is known: v must be a negation read by nothing else.
func negatedInput(g *ir.Graph, v ir.Value, chain ...*ir.Op) (sigmoidMatch, bool) {
	neg := g.DefiningOpOf(v, ir.NegF)
	if neg == nil || !g.HasOneUse(v) {
		return sigmoidMatch{}, false
	}
	return sigmoidMatch{input: neg.Operands[0], chain: append(chain, neg)}, true
}

// inSigmoid reports whether op is an intermediate of a sigmoid chain that
// the division at its end will be rewritten from. Such ops are left alone so
// the chain stays recognizable.
func inSigmoid(g *ir.Graph, op *ir.Op) bool {
	cur := op
	for range 6 {
		user := g.SingleUser(cur.Result(0))
		if user == nil {
			return false
		}
		if user.Kind == ir.DivF {
			m, ok := matchSigmoid(g, user)
			return ok && slices.Contains(m.chain, op) && sigmoidShape(user.Type())
		}
		cur = user
	}
	return false
}

// sigmoidShape is the division type the sigmoid routine exists for.
func sigmoidShape(t ir.Type) bool {
	return t.IsVector() && t.IsFloat() && ir.ElementBitWidth(t) == 16 &&
		(ir.LaneCount(t) == 16 || ir.LaneCount(t) == 32)
}
