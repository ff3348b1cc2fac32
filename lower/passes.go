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

// Conversions run after the main lowering. Their rules use AIE-ML
// accumulator types whatever the configured generation.

// ExtOpsConversion lowers the element extensions and truncations that
// have a native accumulator form: 16-lane 16-bit float to f32 and back,
// and 32-lane integer widening or narrowing.
func ExtOpsConversion(t target.Target) Conversion {
	set := NewPatternSet(
		Pattern{Name: "extf", Root: ir.ExtF, Match: matchExtF, Apply: lowerExt},
		Pattern{Name: "extsi", Root: ir.ExtSI, Match: matchExtSI, Apply: lowerExt},
		Pattern{Name: "truncf", Root: ir.TruncF, Match: matchTruncF, Apply: lowerTrunc},
		Pattern{Name: "trunci", Root: ir.TruncI, Match: matchTruncI, Apply: lowerTrunc},
	)
	return Conversion{Name: "process-ext-ops", Patterns: set, Legality: matchedLegality(set, t)}
}

// conversionTypes returns the vector source and result types of a
// conversion op.
func conversionTypes(g *ir.Graph, op *ir.Op) (src, dst ir.Type, ok bool) {
	src, dst = operandType(g, op, 0), op.Type()
	return src, dst, src.IsVector() && dst.IsVector()
}

func matchExtF(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	src, dst, ok := conversionTypes(g, op)
	return ok && src.IsFloat() && dst.IsFloat() &&
		shapeOf(src) == shape{16, 16} && shapeOf(dst) == shape{16, 32}
}

func matchTruncF(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	src, dst, ok := conversionTypes(g, op)
	return ok && src.IsFloat() && dst.IsFloat() &&
		shapeOf(src) == shape{16, 32} && shapeOf(dst) == shape{16, 16}
}

func matchExtSI(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	src, dst, ok := conversionTypes(g, op)
	return ok && src.IsInt() && dst.IsInt() && ir.LaneCount(src) == 32 &&
		ir.LaneCount(dst) == 32 && ir.ElementBitWidth(dst) > ir.ElementBitWidth(src)
}

func matchTruncI(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	src, dst, ok := conversionTypes(g, op)
	return ok && src.IsInt() && dst.IsInt() && ir.LaneCount(src) == 32 &&
		ir.LaneCount(dst) == 32 && ir.ElementBitWidth(dst) < ir.ElementBitWidth(src)
}

// lowerExt moves the source into an accumulator and reads it back at the
// wider element type.
func lowerExt(rw *Rewriter, op *ir.Op) (bool, error) {
	src := op.Operands[0]
	acc, err := target.AccumulatorType(rw.typeOf(src), target.AIEML)
	if err != nil {
		return false, nil
	}
	up := rw.ups(acc, src, 0)
	if ir.ElementBitWidth(op.Type()) == 16 {
		rw.Replace(op, rw.srs(op.Type(), up, 0))
	} else {
		rw.Replace(op, rw.cast(op.Type(), up, false))
	}
	return true, nil
}

// lowerTrunc narrows through an accumulator. 32-bit integers are already
// accumulator sized.
func lowerTrunc(rw *Rewriter, op *ir.Op) (bool, error) {
	src := op.Operands[0]
	st := rw.typeOf(src)
	acc := st
	if !st.IsInt() || ir.ElementBitWidth(st) != 32 {
		var err error
		if acc, err = target.AccumulatorType(st, target.AIEML); err != nil {
			return false, nil
		}
	}
	var wide ir.Value
	if ir.ElementBitWidth(st) == 16 {
		wide = rw.ups(acc, src, 0)
	} else {
		wide = rw.cast(acc, src, true)
	}
	rw.Replace(op, rw.srs(op.Type(), wide, 0))
	return true, nil
}

// ExtendUPDConversion doubles every single-load upd and extracts the
// original half, so that loads of overlapping windows become identical and
// can be merged.
func ExtendUPDConversion(t target.Target) Conversion {
	set := NewPatternSet(Pattern{Name: "extend-upd", Root: ir.UPD, Match: matchShortUPD, Apply: lowerExtendUPD})
	return Conversion{Name: "extend-upd", Patterns: set, Legality: matchedLegality(set, t)}
}

// isSecondUPD reports whether upd fills the upper half of a vector
// started by another upd.
func isSecondUPD(upd *ir.Op) bool { return upd.Attrs.Int("index") == 1 }

func matchShortUPD(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	if isSecondUPD(op) {
		return false
	}
	users := g.Users(op.Result(0))
	if len(users) == 1 && users[0].Kind == ir.UPD {
		return false
	}
	for _, u := range users {
		if u.Kind != ir.Ext {
			return true
		}
	}
	return false
}

func lowerExtendUPD(rw *Rewriter, op *ir.Op) (bool, error) {
	t := op.Type()
	wide := rw.Create(ir.UPD, t.WithLanes(2*ir.LaneCount(t)), op.Attrs, op.Operands...)
	rw.Replace(op, rw.ext(t, wide, 0))
	return true, nil
}

// SimplifyUPDConversion folds the low half of a wide upd that nothing
// else reads back into a short upd.
func SimplifyUPDConversion(t target.Target) Conversion {
	set := NewPatternSet(Pattern{Name: "fuse-ext-into-upd", Root: ir.Ext, Match: matchExtOfUPD, Apply: lowerExtOfUPD})
	return Conversion{Name: "simplify-upd", Patterns: set, Legality: matchedLegality(set, t)}
}

func matchExtOfUPD(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	if op.Attrs.Int("index") != 0 {
		return false
	}
	upd := g.DefiningOpOf(op.Operands[0], ir.UPD)
	return upd != nil && g.HasOneUse(op.Operands[0])
}

func lowerExtOfUPD(rw *Rewriter, op *ir.Op) (bool, error) {
	upd := rw.Graph().DefiningOp(op.Operands[0])
	rw.Replace(op, rw.Create(ir.UPD, op.Type(), upd.Attrs, upd.Operands...))
	return true, nil
}
