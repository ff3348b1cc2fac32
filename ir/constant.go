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

package ir

// ConstantAttrs returns the attributes of a splat constant of type t holding
// v. Float values are rounded to the element precision of t.
func ConstantAttrs(t Type, v float64) Attrs {
	if t.Elem.IsFloat() {
		return Attrs{A("value", RoundToElem(t.Elem, v))}
	}
	return Attrs{A("value", int64(v))}
}

// ConstantValue returns the splat value of a constant op.
func ConstantValue(op *Op) (float64, bool) {
	if op == nil || op.Kind != Constant {
		return 0, false
	}
	v, ok := op.Attrs.Get("value")
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// SplatValue returns the value of v if it is produced by a splat constant.
func (g *Graph) SplatValue(v Value) (float64, bool) {
	return ConstantValue(g.DefiningOp(v))
}

// IsSplatOf reports whether v is a splat constant equal to want.
func (g *Graph) IsSplatOf(v Value, want float64) bool {
	got, ok := g.SplatValue(v)
	return ok && got == want
}
