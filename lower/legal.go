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

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

// registerArith are the generic element-wise ops the target only executes
// on whole registers. A vector instance of one that no rule rewrites and
// that does not fit a register is illegal.
var registerArith = []ir.Kind{
	ir.AddI, ir.SubI, ir.MulI, ir.AddF, ir.SubF, ir.MulF, ir.NegF,
	ir.MinSI, ir.MaxSI, ir.MinUI, ir.MaxUI, ir.MinF, ir.MaxF,
	ir.AndI, ir.OrI, ir.XOrI, ir.ShRSI,
}

// matchedLegality marks illegal exactly the ops some pattern of set
// matches, so legality and the rule set cannot disagree.
func matchedLegality(set *PatternSet, t target.Target) LegalityFunc {
	return func(g *ir.Graph, op *ir.Op) Legality {
		if set.Matches(g, op, t) {
			return Illegal
		}
		return Legal
	}
}

// loweringLegality is the legality of the main lowering. Loads and strided
// slices must always go; vector.broadcast is rewritten when a rule applies
// and kept otherwise.
func loweringLegality(set *PatternSet, t target.Target) LegalityFunc {
	matched := matchedLegality(set, t)
	return func(g *ir.Graph, op *ir.Op) Legality {
		switch op.Kind {
		case ir.TransferRead, ir.ExtractStridedSlice:
			return Illegal
		case ir.Broadcast:
			return Unknown
		}
		if matched(g, op) == Illegal {
			return Illegal
		}
		if rt := op.Type(); rt.IsVector() && slices.Contains(registerArith, op.Kind) && !t.SupportsVector(rt) {
			return Illegal
		}
		return Legal
	}
}
