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

// Headers declaring the external routines math ops are lowered to.
const (
	lutHeader     = "lut_based_ops.h"
	vecMathHeader = "vec_math.h"
)

const expCallee = "getExpBf16"

func mathPatterns() []Pattern {
	return []Pattern{
		{Name: "exp", Root: ir.Exp, Match: matchExp, Apply: lowerExp},
		{Name: "inv", Root: ir.DivF, Match: matchInv, Apply: lowerInv},
		{Name: "tanh", Root: ir.Tanh, Match: halfFloat(16), Apply: lowerToCall("getTanhBf16", lutHeader)},
		{Name: "sqrt", Root: ir.Sqrt, Match: halfFloat(16, 32), Apply: lowerToCall("getSqrtBf16", vecMathHeader)},
		{Name: "rsqrt", Root: ir.Rsqrt, Match: halfFloat(16, 32), Apply: lowerToCall("getRsqrtBf16", vecMathHeader)},
		{Name: "erf", Root: ir.Erf, Match: halfFloat(16, 32), Apply: lowerToCall("getErfBf16", vecMathHeader)},
		{Name: "ceil", Root: ir.Ceil, Match: halfFloat(16, 32), Apply: lowerToCall("getCeilBf16", vecMathHeader)},
		{Name: "floor", Root: ir.Floor, Match: halfFloat(16, 32), Apply: lowerToCall("getFloorBf16", vecMathHeader)},
		{Name: "absf", Root: ir.AbsF, Match: matchAbs, Apply: lowerToCall("getAbs", vecMathHeader)},
		{Name: "absi", Root: ir.AbsI, Match: matchAbs, Apply: lowerToCall("getAbs", vecMathHeader)},
		{Name: "sigmoid", Root: ir.DivF, Priority: 1, Match: matchSigmoidDiv, Apply: lowerSigmoid},
	}
}

// halfFloat matches vectors of 16-bit floats with one of the lane counts.
func halfFloat(lanes ...int) func(*ir.Graph, *ir.Op, target.Target) bool {
	return func(_ *ir.Graph, op *ir.Op, _ target.Target) bool {
		t := op.Type()
		if !t.IsVector() || !t.IsFloat() || ir.ElementBitWidth(t) != 16 {
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

// lowerToCall replaces a unary op with a call of the same type.
func lowerToCall(callee, header string) func(*Rewriter, *ir.Op) (bool, error) {
	return func(rw *Rewriter, op *ir.Op) (bool, error) {
		rw.EnsureInclude(header)
		rw.Replace(op, rw.call(op.Type(), callee, op.Operands[0]))
		return true, nil
	}
}

func matchExp(g *ir.Graph, op *ir.Op, t target.Target) bool {
	return halfFloat(16)(g, op, t) && !inSigmoid(g, op)
}

// lowerExp calls the table based exponential, which returns an
// accumulator.
func lowerExp(rw *Rewriter, op *ir.Op) (bool, error) {
	t := op.Type()
	rw.EnsureInclude(lutHeader)
	e := rw.call(mustAcc(t, target.AIEML), expCallee, op.Operands[0])
	rw.Replace(op, rw.srs(t, e, 0))
	return true, nil
}

// matchInv matches a scalar f32 reciprocal whose only use truncates it.
func matchInv(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := op.Type()
	if !t.IsScalar() || t.Elem != ir.F32 {
		return false
	}
	user := g.SingleUser(op.Result(0))
	return user != nil && user.Kind == ir.TruncF && g.IsSplatOf(op.Operands[0], 1)
}

// lowerInv replaces the truncation with a call computing the truncated
// reciprocal directly. The division is left unused.
func lowerInv(rw *Rewriter, op *ir.Op) (bool, error) {
	trunc := rw.Graph().SingleUser(op.Result(0))
	rw.EnsureInclude(lutHeader)
	rw.Replace(trunc, rw.call(trunc.Type(), "getInvBf16", op.Operands[1]))
	return true, nil
}

func matchAbs(_ *ir.Graph, op *ir.Op, _ target.Target) bool {
	t := op.Type()
	return t.IsVector() && (t.BitWidth() == 512 || t.BitWidth() == 256)
}

func matchSigmoidDiv(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	if !sigmoidShape(op.Type()) {
		return false
	}
	_, ok := matchSigmoid(g, op)
	return ok
}

func lowerSigmoid(rw *Rewriter, op *ir.Op) (bool, error) {
	m, _ := matchSigmoid(rw.Graph(), op)
	rw.EnsureInclude(vecMathHeader)
	rw.Replace(op, rw.call(op.Type(), "getSigmoidBf16", m.input))
	return true, nil
}
