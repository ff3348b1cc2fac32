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

package transforms

import (
	"context"
	"slices"

	"github.com/ajroetker/go-aievec/ir"
)

// Canonicalize removes every op whose results are unused and that has no
// effect beyond them. Chains of dead ops are removed in one call.
var Canonicalize = NewPass("canonicalize", func(_ context.Context, g *ir.Graph) error {
	EliminateDeadCode(g)
	return nil
})

// EliminateDeadCode erases dead pure ops and returns how many it erased.
func EliminateDeadCode(g *ir.Graph) int {
	ops := g.Ops()
	uses := make(map[ir.OpID]int, len(ops))
	for _, op := range ops {
		for _, v := range op.Operands {
			uses[v.Op]++
		}
	}
	erased := 0
	// Users follow their producers, so a backward walk sees every user
	// of an op before the op itself.
	for _, op := range slices.Backward(ops) {
		if op.Kind.Pinned() || uses[op.ID] > 0 {
			continue
		}
		for _, v := range op.Operands {
			uses[v.Op]--
		}
		g.Erase(op)
		erased++
	}
	return erased
}
