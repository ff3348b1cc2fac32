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

import "slices"

// Users returns the live ops that read v, in program order. An op that
// reads v twice is listed once.
func (g *Graph) Users(v Value) []*Op {
	var users []*Op
	for _, op := range g.Ops() {
		if slices.Contains(op.Operands, v) {
			users = append(users, op)
		}
	}
	return users
}

// UseCount returns the number of operand slots that read v.
func (g *Graph) UseCount(v Value) int {
	n := 0
	for _, op := range g.Ops() {
		for _, o := range op.Operands {
			if o == v {
				n++
			}
		}
	}
	return n
}

// HasOneUse reports whether v is read by exactly one operand slot.
func (g *Graph) HasOneUse(v Value) bool { return g.UseCount(v) == 1 }

// SingleUser returns the only user of v, or nil if v has zero or several uses.
func (g *Graph) SingleUser(v Value) *Op {
	if !g.HasOneUse(v) {
		return nil
	}
	return g.Users(v)[0]
}

// IsUsed reports whether any live op reads a result of op.
func (g *Graph) IsUsed(op *Op) bool {
	for _, user := range g.Ops() {
		for _, o := range user.Operands {
			if o.Op == op.ID {
				return true
			}
		}
	}
	return false
}

// ReplaceAllUses rewires every read of from to read to instead.
func (g *Graph) ReplaceAllUses(from, to Value) {
	for _, op := range g.Ops() {
		for i, o := range op.Operands {
			if o == from {
				op.Operands[i] = to
			}
		}
	}
}

// ReplaceAllUsesExcept is ReplaceAllUses but leaves the operands of except
// untouched.
func (g *Graph) ReplaceAllUsesExcept(from, to Value, except *Op) {
	for _, op := range g.Ops() {
		if op == except {
			continue
		}
		for i, o := range op.Operands {
			if o == from {
				op.Operands[i] = to
			}
		}
	}
}

// Kinds lists the kinds of the live ops in program order.
func (g *Graph) Kinds() []Kind {
	var kinds []Kind
	for _, op := range g.Ops() {
		kinds = append(kinds, op.Kind)
	}
	return kinds
}

// CountKind returns how many live ops have kind k.
func (g *Graph) CountKind(k Kind) int {
	n := 0
	for _, op := range g.Ops() {
		if op.Kind == k {
			n++
		}
	}
	return n
}
