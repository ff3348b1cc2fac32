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
	"math/bits"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

func memoryPatterns() []Pattern {
	return []Pattern{
		{Name: "transfer-read", Root: ir.TransferRead, Match: matchTransferRead, Apply: lowerTransferRead},
	}
}

func sliceMLPatterns() []Pattern {
	return []Pattern{
		{Name: "strided-slice-shift", Root: ir.ExtractStridedSlice, Match: matchStridedSlice, Apply: lowerStridedSliceShift},
	}
}

func sliceAIE1Patterns() []Pattern {
	return []Pattern{
		{Name: "strided-slice-select", Root: ir.ExtractStridedSlice, Match: matchStridedSlice, Apply: lowerStridedSliceSelect},
	}
}

// alignmentOffset returns how many bits past an alignment boundary the
// innermost index of a transfer read points. Dynamic indices count as
// aligned.
func alignmentOffset(g *ir.Graph, op *ir.Op, alignment int) int {
	if len(op.Operands) < 2 {
		return 0
	}
	idx, ok := g.SplatValue(op.Operands[len(op.Operands)-1])
	if !ok {
		return 0
	}
	return int(idx) * ir.ElementBitWidth(op.Type()) % alignment
}

func minorIdentity(op *ir.Op) bool {
	p := op.Attrs.Str("permutation")
	return p == "" || p == "minor_identity"
}

// readFits reports whether a read of size bits can be served by at most
// two upd instructions under cfg.
func readFits(size int, cfg target.UPDConfig) bool {
	switch {
	case size > cfg.MaxVectorSize:
		return false
	case size%cfg.Alignment != 0 && size != cfg.MinVectorSize:
		return false
	case size > cfg.MaxLoadSize && size != 2*cfg.MaxLoadSize:
		return false
	case size > cfg.MinVectorSize && bits.OnesCount(uint(size/cfg.Alignment)) != 1:
		return false
	}
	return true
}

func matchTransferRead(g *ir.Graph, op *ir.Op, t target.Target) bool {
	if op.Attrs.Bool("masked") {
		return true
	}
	if !minorIdentity(op) || alignmentOffset(g, op, t.UPD.Alignment) != 0 {
		return false
	}
	return readFits(op.Type().BitWidth(), t.UPD)
}

// lowerTransferRead loads the vector with one upd, or two when it is
// wider than a single load.
func lowerTransferRead(rw *Rewriter, op *ir.Op) (bool, error) {
	if op.Attrs.Bool("masked") {
		return false, ErrMaskedLoad
	}
	cfg := rw.Target().UPD
	rt := op.Type()
	v := rw.Create(ir.UPD, rt, ir.Attrs{ir.A("offset", 0), ir.A("index", 0)}, op.Operands...)
	if rt.BitWidth() > cfg.MaxLoadSize {
		operands := append(append([]ir.Value(nil), op.Operands...), v)
		v = rw.Create(ir.UPD, rt, ir.Attrs{ir.A("offset", cfg.MaxLoadSize), ir.A("index", 1)}, operands...)
	}
	rw.Replace(op, v)
	return true, nil
}

func matchStridedSlice(g *ir.Graph, op *ir.Op, _ target.Target) bool {
	src := operandType(g, op, 0)
	size := int(op.Attrs.Int("size"))
	return op.Attrs.Int("stride") == 1 && ir.LaneCount(src) == 2*size
}

// lowerStridedSliceShift splits the source in halves and shifts the slice
// into place.
func lowerStridedSliceShift(rw *Rewriter, op *ir.Op) (bool, error) {
	src := op.Operands[0]
	rt := op.Type()
	lo, hi := rw.ext(rt, src, 0), rw.ext(rt, src, 1)
	bytes := int(op.Attrs.Int("offset")) * ir.ElementBitWidth(rt) / 8
	rw.Replace(op, rw.shift(rt, lo, hi, bytes))
	return true, nil
}

// selectAttrs returns the aievec.select configuration rotating a vector of
// elemBits-wide lanes down by rot lanes.
func selectAttrs(elemBits, rot int) ir.Attrs {
	switch {
	case elemBits == 16 && rot%2 == 1:
		return ir.Attrs{
			ir.A("select", "0x11111111"),
			ir.A("xstart", fmt.Sprint(rot+1)),
			ir.A("xoffsets", "0x06040200"),
			ir.A("xoffsets_hi", "0x0e0c0a08"),
			ir.A("xsquare", "0x2103"),
			ir.A("ystart", fmt.Sprint(rot-1)),
			ir.A("yoffsets", "0x0503010f"),
			ir.A("yoffsets_hi", "0x0d0b0907"),
			ir.A("ysquare", "0x2103"),
		}
	case elemBits == 16:
		return ir.Attrs{
			ir.A("select", "0"),
			ir.A("xstart", fmt.Sprint(rot)),
			ir.A("xoffsets", "0x06040200"),
			ir.A("xoffsets_hi", "0x0e0c0a08"),
			ir.A("xsquare", "0x3210"),
			ir.A("ystart", "0"),
			ir.A("yoffsets", "0"),
			ir.A("yoffsets_hi", "0"),
			ir.A("ysquare", "0"),
		}
	case elemBits == 32:
		return ir.Attrs{
			ir.A("select", "0"),
			ir.A("xstart", fmt.Sprint(rot)),
			ir.A("xoffsets", "0x76543210"),
			ir.A("xsquare", "0x3210"),
			ir.A("ystart", "0"),
			ir.A("yoffsets", "0"),
			ir.A("ysquare", "0"),
		}
	}
	return nil
}

// lowerStridedSliceSelect rotates the source with a select and keeps the
// low half.
func lowerStridedSliceSelect(rw *Rewriter, op *ir.Op) (bool, error) {
	src := op.Operands[0]
	st := rw.typeOf(src)
	if ir.ElementBitWidth(st) == 8 {
		return false, ErrInt8Select
	}
	attrs := selectAttrs(ir.ElementBitWidth(st), int(op.Attrs.Int("offset")))
	if attrs == nil {
		return false, nil
	}
	sel := rw.Create(ir.AIESelect, st, attrs, src)
	rw.Replace(op, rw.ext(op.Type(), sel, 0))
	return true, nil
}
