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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-aievec/ir"
	"github.com/ajroetker/go-aievec/target"
)

func runConversion(t *testing.T, src string, c Conversion) *ir.Graph {
	t.Helper()
	g := ir.MustParse(src)
	_, err := ApplyPartialConversion(context.Background(), g, c, nil)
	require.NoError(t, err)
	require.NoError(t, g.Verify())
	return g
}

func TestExtOps(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "float round trip",
			src: `
%x = arg : vector<16xbf16>
%w = arith.extf %x : vector<16xf32>
%n = arith.truncf %w : vector<16xbf16>
return %n`,
			want: []string{"arg", "aievec.ups", "aievec.cast", "aievec.cast", "aievec.srs", "return"},
		},
		{
			name: "extsi to 16 bits",
			src: `
%x = arg : vector<32xi8>
%w = arith.extsi %x : vector<32xi16>
return %w`,
			want: []string{"arg", "aievec.ups", "aievec.srs", "return"},
		},
		{
			name: "extsi to 32 bits",
			src: `
%x = arg : vector<32xi16>
%w = arith.extsi %x : vector<32xi32>
return %w`,
			want: []string{"arg", "aievec.ups", "aievec.cast", "return"},
		},
		{
			name: "trunci from 32 bits",
			src: `
%x = arg : vector<32xi32>
%n = arith.trunci %x : vector<32xi16>
return %n`,
			want: []string{"arg", "aievec.cast", "aievec.srs", "return"},
		},
		{
			name: "trunci from 16 bits",
			src: `
%x = arg : vector<32xi16>
%n = arith.trunci %x : vector<32xi8>
return %n`,
			want: []string{"arg", "aievec.ups", "aievec.srs", "return"},
		},
		{
			name: "other shapes stay",
			src: `
%x = arg : vector<8xbf16>
%w = arith.extf %x : vector<8xf32>
%y = arg : vector<16xi16>
%z = arith.extsi %y : vector<16xi32>
return %w, %z`,
			want: []string{"arg", "arith.extf", "arg", "arith.extsi", "return"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := runConversion(t, tt.src, ExtOpsConversion(target.AIEMLTarget()))
			if diff := cmp.Diff(tt.want, kindNames(g)); diff != "" {
				t.Errorf("kinds (-want +got):\n%s\n%s", diff, g)
			}
		})
	}
}

func TestTruncUsesAccumulator(t *testing.T) {
	g := runConversion(t, `
%x = arg : vector<16xf32>
%n = arith.truncf %x : vector<16xbf16>
return %n`, ExtOpsConversion(target.AIEMLTarget()))
	for _, op := range g.Ops() {
		if op.Kind == ir.Cast {
			require.True(t, op.Attrs.Bool("isResAcc"))
			require.Equal(t, ir.MakeVectorType(16, ir.F32), op.Type())
		}
	}
}

const singleUPD = `
%mem = arg : memref<1024xi32>
%c0 = arith.constant {value = 0} : index
%u = aievec.upd %mem, %c0 {offset = 0, index = 0} : vector<16xi32>
return %u
`

func TestExtendUPD(t *testing.T) {
	g := runConversion(t, singleUPD, ExtendUPDConversion(target.AIEMLTarget()))
	want := []string{"arg", "arith.constant", "aievec.upd", "aievec.ext", "return"}
	if diff := cmp.Diff(want, kindNames(g)); diff != "" {
		t.Fatalf("kinds (-want +got):\n%s", diff)
	}
	for _, op := range g.Ops() {
		switch op.Kind {
		case ir.UPD:
			require.Equal(t, ir.MakeVectorType(32, ir.I32), op.Type())
			require.EqualValues(t, 0, op.Attrs.Int("offset"))
		case ir.Ext:
			require.Equal(t, ir.MakeVectorType(16, ir.I32), op.Type())
			require.EqualValues(t, 0, op.Attrs.Int("index"))
		}
	}
}

func TestExtendUPDSkipsChainedLoads(t *testing.T) {
	src := `
%mem = arg : memref<1024xi16>
%c0 = arith.constant {value = 0} : index
%a = aievec.upd %mem, %c0 {offset = 0, index = 0} : vector<32xi16>
%b = aievec.upd %mem, %c0, %a {offset = 256, index = 1} : vector<32xi16>
return %b
`
	g := runConversion(t, src, ExtendUPDConversion(target.AIE1Target()))
	require.Equal(t, 2, g.CountKind(ir.UPD))
	require.Zero(t, g.CountKind(ir.Ext))
}

func TestSimplifyUPDUndoesExtend(t *testing.T) {
	g := runConversion(t, singleUPD, ExtendUPDConversion(target.AIEMLTarget()))
	_, err := ApplyPartialConversion(context.Background(), g, SimplifyUPDConversion(target.AIEMLTarget()), nil)
	require.NoError(t, err)
	require.Zero(t, g.CountKind(ir.Ext))
	require.Equal(t, 1, g.CountKind(ir.UPD), "wide load not released:\n%s", g)
	var short int
	for _, op := range g.Ops() {
		if op.Kind == ir.UPD && op.Type() == ir.MakeVectorType(16, ir.I32) {
			short++
		}
	}
	require.Equal(t, 1, short)
}

func TestSimplifyUPDKeepsSharedLoads(t *testing.T) {
	src := `
%mem = arg : memref<1024xi32>
%c0 = arith.constant {value = 0} : index
%u = aievec.upd %mem, %c0 {offset = 0, index = 0} : vector<32xi32>
%lo = aievec.ext %u {index = 0} : vector<16xi32>
%hi = aievec.ext %u {index = 1} : vector<16xi32>
return %lo, %hi
`
	g := runConversion(t, src, SimplifyUPDConversion(target.AIEMLTarget()))
	require.Equal(t, 2, g.CountKind(ir.Ext))
	require.Equal(t, 1, g.CountKind(ir.UPD))
}
