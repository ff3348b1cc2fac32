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

// Kind identifies the operation an Op performs. Generic kinds come from
// the arith, math and vector vocabularies; target kinds are the aievec
// instruction set; emitc kinds model calls into external C headers.
type Kind int

const (
	KindInvalid Kind = iota

	// Graph structure.
	Arg
	Return

	// Generic arithmetic.
	Constant
	AddI
	SubI
	MulI
	AddF
	SubF
	MulF
	DivF
	NegF
	MinSI
	MaxSI
	MinUI
	MaxUI
	MinF
	MaxF
	CmpI
	CmpF
	Select
	AndI
	OrI
	XOrI
	ShRSI
	ExtF
	TruncF
	ExtSI
	TruncI

	// Generic math functions.
	Exp
	Tanh
	Sqrt
	Rsqrt
	Erf
	Ceil
	Floor
	AbsF
	AbsI

	// Generic vector operations.
	Broadcast
	Extract
	Reduction
	TransferRead
	TransferWrite
	ExtractStridedSlice

	// Target vector instructions.
	UPD
	Ext
	Concat
	Ups
	Srs
	Cast
	AIEBroadcast
	BroadcastScalar
	MacElem
	MulElem
	AddElem
	SubElem
	Shift
	ExtElem
	AIEMin
	AIEMax
	AIECmp
	Sel
	Neg
	BAnd
	BOr
	BXor
	BNeg
	Unpack
	AIESelect
	AIEAdd
	AIESub
	AIEMul
	AIEMac

	// External calls.
	Include
	Call
	UnrealizedCast

	numKinds
)

type kindInfo struct {
	name string
	// pinned ops are never removed by dead-code elimination.
	pinned bool
}

var kindTable = [numKinds]kindInfo{
	KindInvalid: {name: "<invalid>"},

	Arg:    {name: "arg", pinned: true},
	Return: {name: "return", pinned: true},

	Constant: {name: "arith.constant"},
	AddI:     {name: "arith.addi"},
	SubI:     {name: "arith.subi"},
	MulI:     {name: "arith.muli"},
	AddF:     {name: "arith.addf"},
	SubF:     {name: "arith.subf"},
	MulF:     {name: "arith.mulf"},
	DivF:     {name: "arith.divf"},
	NegF:     {name: "arith.negf"},
	MinSI:    {name: "arith.minsi"},
	MaxSI:    {name: "arith.maxsi"},
	MinUI:    {name: "arith.minui"},
	MaxUI:    {name: "arith.maxui"},
	MinF:     {name: "arith.minimumf"},
	MaxF:     {name: "arith.maximumf"},
	CmpI:     {name: "arith.cmpi"},
	CmpF:     {name: "arith.cmpf"},
	Select:   {name: "arith.select"},
	AndI:     {name: "arith.andi"},
	OrI:      {name: "arith.ori"},
	XOrI:     {name: "arith.xori"},
	ShRSI:    {name: "arith.shrsi"},
	ExtF:     {name: "arith.extf"},
	TruncF:   {name: "arith.truncf"},
	ExtSI:    {name: "arith.extsi"},
	TruncI:   {name: "arith.trunci"},

	Exp:   {name: "math.exp"},
	Tanh:  {name: "math.tanh"},
	Sqrt:  {name: "math.sqrt"},
	Rsqrt: {name: "math.rsqrt"},
	Erf:   {name: "math.erf"},
	Ceil:  {name: "math.ceil"},
	Floor: {name: "math.floor"},
	AbsF:  {name: "math.absf"},
	AbsI:  {name: "math.absi"},

	Broadcast:           {name: "vector.broadcast"},
	Extract:             {name: "vector.extract"},
	Reduction:           {name: "vector.reduction"},
	TransferRead:        {name: "vector.transfer_read"},
	TransferWrite:       {name: "vector.transfer_write", pinned: true},
	ExtractStridedSlice: {name: "vector.extract_strided_slice"},

	UPD:             {name: "aievec.upd"},
	Ext:             {name: "aievec.ext"},
	Concat:          {name: "aievec.concat"},
	Ups:             {name: "aievec.ups"},
	Srs:             {name: "aievec.srs"},
	Cast:            {name: "aievec.cast"},
	AIEBroadcast:    {name: "aievec.broadcast"},
	BroadcastScalar: {name: "aievec.broadcast_scalar"},
	MacElem:         {name: "aievec.mac_elem"},
	MulElem:         {name: "aievec.mul_elem"},
	AddElem:         {name: "aievec.add_elem"},
	SubElem:         {name: "aievec.sub_elem"},
	Shift:           {name: "aievec.shift"},
	ExtElem:         {name: "aievec.ext_elem"},
	AIEMin:          {name: "aievec.min"},
	AIEMax:          {name: "aievec.max"},
	AIECmp:          {name: "aievec.cmp"},
	Sel:             {name: "aievec.sel"},
	Neg:             {name: "aievec.neg"},
	BAnd:            {name: "aievec.band"},
	BOr:             {name: "aievec.bor"},
	BXor:            {name: "aievec.bxor"},
	BNeg:            {name: "aievec.bneg"},
	Unpack:          {name: "aievec.unpack"},
	AIESelect:       {name: "aievec.select"},
	AIEAdd:          {name: "aievec.add"},
	AIESub:          {name: "aievec.sub"},
	AIEMul:          {name: "aievec.mul"},
	AIEMac:          {name: "aievec.mac"},

	Include:        {name: "emitc.include", pinned: true},
	Call:           {name: "emitc.call", pinned: true},
	UnrealizedCast: {name: "builtin.unrealized_conversion_cast"},
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := Kind(1); k < numKinds; k++ {
		m[kindTable[k].name] = k
	}
	return m
}()

// String returns the qualified operation name, e.g. "arith.addi".
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return kindTable[KindInvalid].name
	}
	return kindTable[k].name
}

// Pinned reports whether ops of this kind have effects beyond their
// results and must survive dead-code elimination.
func (k Kind) Pinned() bool {
	return k > 0 && k < numKinds && kindTable[k].pinned
}

// IsTarget reports whether k is a native target instruction.
func (k Kind) IsTarget() bool { return k >= UPD && k <= AIEMac }

// KindByName looks up a Kind from its qualified name.
func KindByName(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}
