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
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/go-aievec/ir"
)

// CSE merges pure ops that compute the same thing: same kind, operands,
// attributes and result types. The later op's uses move to the earlier
// one, and the later op is erased.
var CSE = NewPass("cse", func(_ context.Context, g *ir.Graph) error {
	EliminateCommonSubexpressions(g)
	return nil
})

// readsMemory are kinds whose result depends on memory contents. They are
// only merged when no write separates them.
var readsMemory = []ir.Kind{ir.TransferRead, ir.UPD}

func cseKey(op *ir.Op) string {
	operands := lo.Map(op.Operands, func(v ir.Value, _ int) string {
		return fmt.Sprintf("%d#%d", v.Op, v.Index)
	})
	results := lo.Map(op.Results, func(t ir.Type, _ int) string { return t.String() })
	return fmt.Sprintf("%s(%s){%s}:%s", op.Kind, strings.Join(operands, ","), op.Attrs, strings.Join(results, ","))
}

// EliminateCommonSubexpressions runs CSE over g and returns how many ops
// were merged away.
func EliminateCommonSubexpressions(g *ir.Graph) int {
	seen := make(map[string]*ir.Op)
	merged := 0
	for _, op := range g.Ops() {
		if op.Kind == ir.TransferWrite {
			for k, prev := range seen {
				if lo.Contains(readsMemory, prev.Kind) {
					delete(seen, k)
				}
			}
		}
		if op.Kind.Pinned() || len(op.Results) == 0 {
			continue
		}
		key := cseKey(op)
		prev, ok := seen[key]
		if !ok {
			seen[key] = op
			continue
		}
		for i := range op.Results {
			g.ReplaceAllUses(op.Result(i), prev.Result(i))
		}
		g.Erase(op)
		merged++
	}
	return merged
}
