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
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

const addGraph = `
%a = arg : vector<16xi32>
%b = arg : vector<16xi32>
%s = arith.addi %a, %b : vector<16xi32>
return %s
`

// addsIllegal marks arith.addi illegal and everything else unknown.
func addsIllegal(_ *ir.Graph, op *ir.Op) Legality {
	if op.Kind == ir.AddI {
		return Illegal
	}
	return Unknown
}

func toAddElem(rw *Rewriter, op *ir.Op) (bool, error) {
	rw.Replace(op, rw.binary(ir.AddElem, op.Type(), op.Operands[0], op.Operands[1]))
	return true, nil
}

func convert(t *testing.T, src string, patterns ...Pattern) (*ir.Graph, Stats, error) {
	t.Helper()
	g := ir.MustParse(src)
	c := Conversion{Name: "test", Patterns: NewPatternSet(patterns...), Legality: addsIllegal}
	st, err := ApplyPartialConversion(context.Background(), g, c, nil)
	require.NoError(t, g.Verify())
	return g, st, err
}

func TestConversionApplies(t *testing.T) {
	g, st, err := convert(t, addGraph, Pattern{Name: "add", Root: ir.AddI, Apply: toAddElem})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"arg", "arg", "aievec.add_elem", "return"}, kindNames(g)); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, st.Rewrites)
	require.Equal(t, 2, st.Scans)
	require.Equal(t, map[string]int{"add": 1}, st.Applied)
}

func TestConversionDeclineRollsBack(t *testing.T) {
	var tried []string
	decline := Pattern{
		Name: "decline", Root: ir.AddI, Priority: 1,
		Apply: func(rw *Rewriter, op *ir.Op) (bool, error) {
			tried = append(tried, "decline")
			rw.binary(ir.SubElem, op.Type(), op.Operands[0], op.Operands[1])
			return false, nil
		},
	}
	fallback := Pattern{
		Name: "fallback", Root: ir.AddI,
		Apply: func(rw *Rewriter, op *ir.Op) (bool, error) {
			tried = append(tried, "fallback")
			return toAddElem(rw, op)
		},
	}
	// Registered lowest priority first; the higher one must still be tried first.
	g, st, err := convert(t, addGraph, fallback, decline)
	require.NoError(t, err)
	require.Equal(t, []string{"decline", "fallback"}, tried)
	require.Zero(t, g.CountKind(ir.SubElem), "declined pattern left ops behind:\n%s", g)
	require.Equal(t, 1, g.CountKind(ir.AddElem))
	require.Equal(t, map[string]int{"fallback": 1}, st.Applied)
}

func TestConversionMatchGates(t *testing.T) {
	never := func(*ir.Graph, *ir.Op, target.Target) bool { return false }
	g, _, err := convert(t, addGraph, Pattern{Name: "never", Root: ir.AddI, Match: never, Apply: toAddElem})

	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	require.ErrorIs(t, err, ErrPartialConversion)
	require.Equal(t, "test", ce.Conversion)
	require.Len(t, ce.Illegal, 1)
	require.Contains(t, ce.Illegal[0], "arith.addi")
	require.Equal(t, 1, g.CountKind(ir.AddI))
}

func TestConversionHardFailure(t *testing.T) {
	errBoom := errors.New("boom")
	g, st, err := convert(t, addGraph, Pattern{
		Name: "explode", Root: ir.AddI,
		Apply: func(rw *Rewriter, op *ir.Op) (bool, error) {
			rw.binary(ir.AddElem, op.Type(), op.Operands[0], op.Operands[1])
			return false, errBoom
		},
	})
	require.ErrorIs(t, err, errBoom)
	var oe *OpError
	require.ErrorAs(t, err, &oe)
	require.Equal(t, "explode", oe.Pattern)
	require.Contains(t, oe.Op, "arith.addi")
	require.Zero(t, g.CountKind(ir.AddElem))
	require.Zero(t, st.Rewrites)
}

func TestConversionRejectsBadReplacement(t *testing.T) {
	tests := []struct {
		name  string
		apply func(rw *Rewriter, op *ir.Op) (bool, error)
	}{
		{"wrong type", func(rw *Rewriter, op *ir.Op) (bool, error) {
			narrow := op.Type().WithLanes(8)
			rw.Replace(op, rw.ext(narrow, op.Operands[0], 0))
			return true, nil
		}},
		{"no replacement", func(rw *Rewriter, op *ir.Op) (bool, error) {
			rw.binary(ir.AddElem, op.Type(), op.Operands[0], op.Operands[1])
			return true, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, err := convert(t, addGraph, Pattern{Name: "bad", Root: ir.AddI, Apply: tt.apply})
			require.ErrorIs(t, err, ErrReplacement)
			require.Equal(t, 1, g.CountKind(ir.AddI))
			require.Zero(t, g.CountKind(ir.Ext)+g.CountKind(ir.AddElem))
		})
	}
}

func TestConversionUnknownOps(t *testing.T) {
	src := `
%a = arg : vector<16xi32>
%b = arg : vector<16xi32>
%d = arith.subi %a, %b : vector<16xi32>
%m = arith.muli %a, %b : vector<16xi32>
return %d, %m
`
	var seen []ir.Kind
	watch := func(g *ir.Graph, op *ir.Op, _ target.Target) bool {
		seen = append(seen, op.Kind)
		return false
	}
	g, st, err := convert(t, src, Pattern{Name: "sub", Root: ir.SubI, Match: watch})
	require.NoError(t, err)
	require.Equal(t, 1, st.Scans)
	require.Equal(t, []ir.Kind{ir.SubI}, seen, "only kinds with patterns are offered")
	require.Equal(t, 1, g.CountKind(ir.SubI))
	require.Equal(t, 1, g.CountKind(ir.MulI))
}

func TestConversionErasesDeadProducers(t *testing.T) {
	src := `
%a = arg : vector<16xi32>
%b = arg : vector<16xi32>
%n = arith.subi %a, %b : vector<16xi32>
%s = arith.addi %n, %b : vector<16xi32>
return %s
`
	g, _, err := convert(t, src, Pattern{
		Name: "drop-sub", Root: ir.AddI,
		Apply: func(rw *Rewriter, op *ir.Op) (bool, error) {
			rw.Replace(op, rw.binary(ir.AddElem, op.Type(), rw.Graph().DefiningOp(op.Operands[0]).Operands[0], op.Operands[1]))
			return true, nil
		},
	})
	require.NoError(t, err)
	require.Zero(t, g.CountKind(ir.SubI))
	require.Equal(t, 2, g.CountKind(ir.Arg))
}

func TestPatternSetOrder(t *testing.T) {
	s := NewPatternSet(
		Pattern{Name: "a", Root: ir.AddI},
		Pattern{Name: "b", Root: ir.AddI, Priority: 2},
		Pattern{Name: "c", Root: ir.SubI},
		Pattern{Name: "d", Root: ir.AddI},
	)
	names := func(ps []Pattern) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}
	require.Equal(t, []string{"b", "a", "d"}, names(s.For(ir.AddI)))
	require.Equal(t, []string{"a", "b", "c", "d"}, s.Names())
	require.True(t, s.Has(ir.SubI))
	require.False(t, s.Has(ir.MulI))
}

func TestLegalityString(t *testing.T) {
	for l, want := range map[Legality]string{Legal: "legal", Illegal: "illegal", Unknown: "unknown", Legality(9): "Legality(?)"} {
		require.Equal(t, want, l.String())
	}
}

func TestConversionCancelled(t *testing.T) {
	g := ir.MustParse(addGraph)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := Conversion{Name: "test", Patterns: NewPatternSet(Pattern{Name: "add", Root: ir.AddI, Apply: toAddElem}), Legality: addsIllegal}
	_, err := ApplyPartialConversion(ctx, g, c, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, g.CountKind(ir.AddI))
}
