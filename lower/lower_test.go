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
	"math/bits"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

// Inputs every rule family is exercised with. Each returns its result so
// that nothing is dead.
var propertyInputs = map[string]string{
	"mac-int": `
%a = arg : vector<16xi32>
%b = arg : vector<16xi32>
%c = arg : vector<16xi32>
%m = arith.muli %a, %b : vector<16xi32>
%s = arith.addi %m, %c : vector<16xi32>
return %s`,
	"mac-bf16": `
%a = arg : vector<16xbf16>
%b = arg : vector<16xbf16>
%c = arg : vector<16xbf16>
%m = arith.mulf %a, %b : vector<16xbf16>
%s = arith.addf %c, %m : vector<16xbf16>
return %s`,
	"add-i8-ext": `
%a = arg : vector<32xi8>
%b = arg : vector<32xi32>
%x = arith.extsi %a : vector<32xi32>
%s = arith.addi %x, %b : vector<32xi32>
return %s`,
	"sub-f32": `
%a = arg : vector<16xf32>
%b = arg : vector<16xf32>
%s = arith.subf %a, %b : vector<16xf32>
return %s`,
	"mul-i16": `
%a = arg : vector<32xi16>
%b = arg : vector<32xi16>
%p = arith.muli %a, %b : vector<32xi16>
return %p`,
	"mul-i8-by-i16": `
%a = arg : vector<32xi8>
%b = arg : vector<32xi16>
%x = arith.extsi %a : vector<32xi16>
%p = arith.muli %x, %b : vector<32xi16>
return %p`,
	"min-max": `
%a = arg : vector<16xf32>
%b = arg : vector<16xf32>
%lo = arith.minimumf %a, %b : vector<16xf32>
%hi = arith.maximumf %lo, %b : vector<16xf32>
return %hi`,
	"cmp-select": `
%a = arg : vector<32xi16>
%b = arg : vector<32xi16>
%m = arith.cmpi %a, %b {predicate = "slt"} : vector<32xi1>
%s = arith.select %m, %a, %b : vector<32xi16>
return %s`,
	"bitwise": `
%a = arg : vector<16xi32>
%b = arg : vector<16xi32>
%ones = arith.constant {value = -1} : vector<16xi32>
%x = arith.andi %a, %b : vector<16xi32>
%y = arith.ori %x, %b : vector<16xi32>
%z = arith.xori %y, %ones : vector<16xi32>
return %z`,
	"shrsi": `
%a = arg : vector<64xi8>
%s = arg : i8
%b = vector.broadcast %s : vector<64xi8>
%r = arith.shrsi %a, %b : vector<64xi8>
return %r`,
	"neg": `
%a = arg : vector<16xf32>
%n = arith.negf %a : vector<16xf32>
return %n`,
	"exp": `
%a = arg : vector<16xbf16>
%e = math.exp %a : vector<16xbf16>
return %e`,
	"inv": `
%a = arg : f32
%one = arith.constant {value = 1.0} : f32
%d = arith.divf %one, %a : f32
%t = arith.truncf %d : bf16
return %t`,
	"abs-erf": `
%a = arg : vector<32xbf16>
%b = math.absf %a : vector<32xbf16>
%e = math.erf %b : vector<32xbf16>
return %e`,
	"broadcast-1024": `
%v = arg : vector<32xi32>
%e = vector.extract %v {pos = 20} : i32
%b = vector.broadcast %e : vector<32xi32>
return %b`,
	"reduce-max": `
%v = arg : vector<64xi8>
%r = vector.reduction %v {kind = "maxsi"} : i8
return %r`,
	"reduce-bf16": `
%v = arg : vector<32xbf16>
%r = vector.reduction %v {kind = "add"} : bf16
return %r`,
	"read": `
%mem = arg : memref<4096xi8>
%c0 = arith.constant {value = 0} : index
%v = vector.transfer_read %mem, %c0 : vector<128xi8>
return %v`,
}

func mustLower(t *testing.T, src string, opts ...Option) (*ir.Graph, Stats) {
	t.Helper()
	g, err := ir.ParseString(src, t.Name())
	require.NoError(t, err)
	st, err := Lower(context.Background(), g, opts...)
	require.NoError(t, err, "lowering:\n%s", src)
	require.NoError(t, g.Verify())
	return g, st
}

func TestLowerIsIdempotent(t *testing.T) {
	for name, src := range propertyInputs {
		t.Run(name, func(t *testing.T) {
			g, st := mustLower(t, src)
			if st.Rewrites == 0 {
				t.Fatalf("first run applied no rewrite")
			}
			once := g.String()
			again, err := Lower(context.Background(), g)
			require.NoError(t, err)
			if again.Rewrites != 0 {
				t.Errorf("second run applied %d rewrites: %v", again.Rewrites, again.Applied)
			}
			if diff := cmp.Diff(once, g.String()); diff != "" {
				t.Errorf("second run changed the graph (-first +second):\n%s", diff)
			}
		})
	}
}

func TestLowerPreservesResultTypes(t *testing.T) {
	for name, src := range propertyInputs {
		t.Run(name, func(t *testing.T) {
			before := ir.MustParse(src)
			ret := func(g *ir.Graph) []ir.Type {
				for _, op := range g.Ops() {
					if op.Kind == ir.Return {
						var ts []ir.Type
						for _, v := range op.Operands {
							ts = append(ts, g.ValueType(v))
						}
						return ts
					}
				}
				return nil
			}
			want := ret(before)
			g, _ := mustLower(t, src)
			if diff := cmp.Diff(want, ret(g)); diff != "" {
				t.Errorf("returned types changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLowerLeavesNoGenericVectorArith(t *testing.T) {
	generic := []ir.Kind{ir.AddI, ir.SubI, ir.MulI, ir.AddF, ir.SubF, ir.MulF, ir.Exp, ir.Reduction, ir.TransferRead}
	for name, src := range propertyInputs {
		t.Run(name, func(t *testing.T) {
			g, _ := mustLower(t, src)
			for _, op := range g.Ops() {
				if op.Type().IsVector() && slices.Contains(generic, op.Kind) {
					t.Errorf("%s left in output:\n%s", op.Kind, g)
				}
			}
		})
	}
}

func TestMACConsumesMultiply(t *testing.T) {
	for _, name := range []string{"mac-int", "mac-bf16"} {
		t.Run(name, func(t *testing.T) {
			g, st := mustLower(t, propertyInputs[name])
			require.Equal(t, 1, g.CountKind(ir.MacElem), "output:\n%s", g)
			for _, k := range []ir.Kind{ir.MulElem, ir.MulI, ir.MulF, ir.AddI, ir.AddF} {
				if n := g.CountKind(k); n != 0 {
					t.Errorf("%d %s left next to the fused multiply-accumulate:\n%s", n, k, g)
				}
			}
			if st.Applied["mul-int"]+st.Applied["mul-float"] != 0 {
				t.Errorf("multiply lowered on its own: %v", st.Applied)
			}
		})
	}
}

func TestMACShift(t *testing.T) {
	g, _ := mustLower(t, propertyInputs["mac-int"], WithShift(7))
	for _, op := range g.Ops() {
		if op.Kind == ir.Ups || op.Kind == ir.Srs {
			if got := op.Attrs.Int("shift"); got != 7 {
				t.Errorf("%s shift = %d, want 7", op.Kind, got)
			}
		}
	}
}

func TestReductionSteps(t *testing.T) {
	tests := []struct {
		typ     string
		kind    string
		combine ir.Kind
	}{
		{"vector<64xi8>", "add", ir.AddElem},
		{"vector<32xi16>", "add", ir.AddElem},
		{"vector<16xi32>", "add", ir.AddElem},
		{"vector<32xi32>", "add", ir.AddElem},
		{"vector<16xf32>", "add", ir.AddElem},
		{"vector<16xbf16>", "add", ir.AddElem},
		{"vector<32xbf16>", "add", ir.AddElem},
		{"vector<16xi32>", "minsi", ir.AIEMin},
		{"vector<32xi16>", "maxui", ir.AIEMax},
		{"vector<16xf32>", "maxf", ir.AIEMax},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.typ, func(t *testing.T) {
			vt, err := ir.ParseType(tt.typ)
			require.NoError(t, err)
			src := "%v = arg : " + tt.typ + "\n" +
				`%r = vector.reduction %v {kind = "` + tt.kind + `"} : ` + vt.ElemType().String() + "\n" +
				"return %r\n"
			g, _ := mustLower(t, src)

			lanes := ir.LaneCount(vt)
			if got, want := g.CountKind(tt.combine), bits.Len(uint(lanes))-1; got != want {
				t.Errorf("%d %s steps, want log2(%d) = %d:\n%s", got, tt.combine, lanes, want, g)
			}
			if got := g.CountKind(ir.ExtElem); got != 1 {
				t.Errorf("%d ext_elem, want 1", got)
			}
			var shifts []int64
			for _, op := range g.Ops() {
				if op.Kind == ir.Shift {
					shifts = append(shifts, op.Attrs.Int("shift"))
				}
			}
			for i := 1; i < len(shifts); i++ {
				if shifts[i]*2 != shifts[i-1] {
					t.Errorf("shift distances %v do not halve", shifts)
					break
				}
			}
		})
	}
}

func TestIncludeDeclaredOnce(t *testing.T) {
	g, _ := mustLower(t, `
%a = arg : vector<16xbf16>
%b = arg : vector<16xbf16>
%x = math.sqrt %a : vector<16xbf16>
%y = math.rsqrt %b : vector<16xbf16>
%z = math.tanh %x : vector<16xbf16>
%w = math.tanh %y : vector<16xbf16>
return %z, %w`)
	headers := map[string]int{}
	for _, op := range g.Ops() {
		if op.Kind == ir.Include {
			headers[op.Attrs.Str("name")]++
		}
	}
	want := map[string]int{lutHeader: 1, vecMathHeader: 1}
	if diff := cmp.Diff(want, headers); diff != "" {
		t.Errorf("includes (-want +got):\n%s", diff)
	}
	require.Equal(t, ir.Include, g.First().Kind)
}

func TestLowerUnknownTarget(t *testing.T) {
	g := ir.MustParse(propertyInputs["neg"])
	_, err := Lower(context.Background(), g, WithTarget(target.Target{Name: "aie3"}))
	if !errors.Is(err, target.ErrUnknownGeneration) {
		t.Errorf("Lower() = %v, want ErrUnknownGeneration", err)
	}
}

func TestPartialConversionReportsOps(t *testing.T) {
	g := ir.MustParse(`
%a = arg : vector<3xi19>
%s = arith.addi %a, %a : vector<3xi19>
return %s`)
	_, err := Lower(context.Background(), g)
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Illegal, 1)
	require.Contains(t, ce.Illegal[0], "arith.addi")
	require.ErrorIs(t, err, ErrPartialConversion)
}

func TestLowerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Lower(ctx, ir.MustParse(propertyInputs["neg"]))
	require.ErrorIs(t, err, context.Canceled)
}
