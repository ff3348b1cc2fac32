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
)

// Builders for the target instructions rules emit. Each creates one op
// before the root and returns its result.

func (rw *Rewriter) typeOf(v ir.Value) ir.Type { return rw.g.ValueType(v) }

func (rw *Rewriter) constant(t ir.Type, v float64) ir.Value {
	return rw.Create(ir.Constant, t, ir.ConstantAttrs(t, v))
}

// ups moves src into accumulator type acc, scaling by shift.
func (rw *Rewriter) ups(acc ir.Type, src ir.Value, shift int) ir.Value {
	return rw.Create(ir.Ups, acc, ir.Attrs{ir.A("shift", shift)}, src)
}

// srs narrows accumulator src to t, rounding away shift bits.
func (rw *Rewriter) srs(t ir.Type, src ir.Value, shift int) ir.Value {
	return rw.Create(ir.Srs, t, ir.Attrs{ir.A("shift", shift)}, src)
}

// srsBy is srs with a shift amount computed at runtime.
func (rw *Rewriter) srsBy(t ir.Type, src, shift ir.Value) ir.Value {
	return rw.Create(ir.Srs, t, nil, src, shift)
}

// cast reinterprets src as t, in accumulator registers when isResAcc.
func (rw *Rewriter) cast(t ir.Type, src ir.Value, isResAcc bool) ir.Value {
	return rw.Create(ir.Cast, t, ir.Attrs{ir.A("isResAcc", isResAcc)}, src)
}

// ext extracts part index of src, sized as t.
func (rw *Rewriter) ext(t ir.Type, src ir.Value, index int) ir.Value {
	return rw.Create(ir.Ext, t, ir.Attrs{ir.A("index", index)}, src)
}

func (rw *Rewriter) concat(t ir.Type, srcs ...ir.Value) ir.Value {
	return rw.Create(ir.Concat, t, nil, srcs...)
}

// shift concatenates lhs and rhs and extracts t starting bytes into it.
func (rw *Rewriter) shift(t ir.Type, lhs, rhs ir.Value, bytes int) ir.Value {
	return rw.Create(ir.Shift, t, ir.Attrs{ir.A("shift", bytes)}, lhs, rhs)
}

func (rw *Rewriter) extElem(t ir.Type, src ir.Value, index int) ir.Value {
	return rw.Create(ir.ExtElem, t, ir.Attrs{ir.A("index", index)}, src)
}

func (rw *Rewriter) broadcast(t ir.Type, src ir.Value, idx int) ir.Value {
	return rw.Create(ir.AIEBroadcast, t, ir.Attrs{ir.A("idx", idx)}, src)
}

func (rw *Rewriter) broadcastScalar(t ir.Type, s ir.Value) ir.Value {
	return rw.Create(ir.BroadcastScalar, t, nil, s)
}

// call emits a call to an external routine returning t.
func (rw *Rewriter) call(t ir.Type, callee string, args ...ir.Value) ir.Value {
	return rw.Create(ir.Call, t, ir.Attrs{ir.A("callee", callee)}, args...)
}

// binary emits a two-operand op of kind k.
func (rw *Rewriter) binary(k ir.Kind, t ir.Type, lhs, rhs ir.Value) ir.Value {
	return rw.Create(k, t, nil, lhs, rhs)
}

// zeros returns a vector of type t filled with zeros through a scalar
// broadcast.
func (rw *Rewriter) zeros(t ir.Type) ir.Value {
	return rw.broadcastScalar(t, rw.constant(t.ElemType(), 0))
}
