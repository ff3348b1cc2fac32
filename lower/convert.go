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

// bridgeFunc emits the ops converting v from src to tgt.
type bridgeFunc func(rw *Rewriter, v ir.Value, src, tgt ir.Type) ir.Value

// bridgeFor picks the conversion from src to tgt. The supported pairs are a
// fixed table; any pair outside it returns nil and nothing is emitted.
func bridgeFor(src, tgt ir.Type) bridgeFunc {
	if !src.IsVector() || !tgt.IsVector() {
		return nil
	}
	if src == tgt {
		return func(_ *Rewriter, v ir.Value, _, _ ir.Type) ir.Value { return v }
	}
	sl, tl := ir.LaneCount(src), ir.LaneCount(tgt)
	sb, tb := ir.ElementBitWidth(src), ir.ElementBitWidth(tgt)
	switch {
	case src.Elem == tgt.Elem:
		if (sl == 16 && tl == 32 && src.IsFloat()) || (sl == 32 && tl == 64 && src.IsInt()) {
			return padWithZeros
		}
	case sl == tl && src.IsInt() && tgt.IsInt():
		switch {
		case sb == 16 && tb == 32 && sl == 16:
			return widenThroughAcc
		case sb == 8 && tb == 32 && sl == 16:
			return widenByConcat
		case sb == 8 && tb == 16 && sl == 32:
			return unpack
		}
	}
	return nil
}

// canBridge reports whether bridgeFor has a conversion for src to tgt.
func canBridge(src, tgt ir.Type) bool { return bridgeFor(src, tgt) != nil }

// bridge converts v to tgt. Callers check canBridge first.
func (rw *Rewriter) bridge(v ir.Value, tgt ir.Type) ir.Value {
	src := rw.typeOf(v)
	return bridgeFor(src, tgt)(rw, v, src, tgt)
}

// padWithZeros doubles the lanes of v, filling the top half with zeros.
func padWithZeros(rw *Rewriter, v ir.Value, src, tgt ir.Type) ir.Value {
	zeros := rw.ext(src, rw.zeros(tgt), 0)
	return rw.concat(tgt, v, zeros)
}

// widenThroughAcc sign-extends 16-bit lanes by going through an accumulator.
func widenThroughAcc(rw *Rewriter, v ir.Value, src, tgt ir.Type) ir.Value {
	acc := mustAcc(src, target.AIEML)
	return rw.cast(tgt, rw.ups(acc, v, 0), false)
}

// widenByConcat widens 16 8-bit lanes: the input is doubled to fill a
// register, widened, and the bottom half taken.
func widenByConcat(rw *Rewriter, v ir.Value, src, tgt ir.Type) ir.Value {
	doubled := src.WithLanes(32)
	acc := mustAcc(doubled, target.AIEML)
	wide := rw.cast(tgt.WithLanes(32), rw.ups(acc, rw.concat(doubled, v, v), 0), false)
	return rw.ext(tgt, wide, 0)
}

func unpack(rw *Rewriter, v ir.Value, _, tgt ir.Type) ir.Value {
	return rw.Create(ir.Unpack, tgt, nil, v)
}

// mustAcc is AccumulatorType for element types known to have one.
func mustAcc(t ir.Type, gen target.Generation) ir.Type {
	acc, err := target.AccumulatorType(t, gen)
	if err != nil {
		panic(err)
	}
	return acc
}
