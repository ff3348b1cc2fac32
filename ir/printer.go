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

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// namer assigns printed names to values: arguments keep their own names,
// everything else is numbered in program order.
type namer struct {
	names map[OpID]string
	next  int
}

func newNamer(g *Graph) *namer {
	n := &namer{names: make(map[OpID]string)}
	used := make(map[string]bool)
	for _, op := range g.Ops() {
		if op.Kind == Arg && op.Name != "" && !used[op.Name] {
			n.names[op.ID] = op.Name
			used[op.Name] = true
		}
	}
	for _, op := range g.Ops() {
		if _, ok := n.names[op.ID]; ok || len(op.Results) == 0 {
			continue
		}
		for {
			name := strconv.Itoa(n.next)
			n.next++
			if !used[name] {
				n.names[op.ID] = name
				break
			}
		}
	}
	return n
}

func (n *namer) value(v Value) string {
	name, ok := n.names[v.Op]
	if !ok {
		name = fmt.Sprintf("<op%d>", v.Op)
	}
	if v.Index > 0 {
		return fmt.Sprintf("%%%s#%d", name, v.Index)
	}
	return "%" + name
}

func (n *namer) op(g *Graph, op *Op) string {
	var sb strings.Builder
	if len(op.Results) > 0 {
		sb.WriteString(n.value(op.Result(0)))
		sb.WriteString(" = ")
	}
	sb.WriteString(op.Kind.String())
	for i, v := range op.Operands {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(n.value(v))
	}
	if len(op.Attrs) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(op.Attrs.String())
	}
	if len(op.Results) > 0 {
		sb.WriteString(" : ")
		sb.WriteString(op.Results[0].String())
	}
	return sb.String()
}

// Print writes g in textual form, one op per line.
func Print(w io.Writer, g *Graph) error {
	n := newNamer(g)
	bw := bufio.NewWriter(w)
	for _, op := range g.Ops() {
		if _, err := fmt.Fprintln(bw, n.op(g, op)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// String returns the textual form of g.
func (g *Graph) String() string {
	var sb strings.Builder
	_ = Print(&sb, g)
	return sb.String()
}

// Format returns the textual form of a single op, naming values the way
// Print would.
func (g *Graph) Format(op *Op) string {
	return newNamer(g).op(g, op)
}
