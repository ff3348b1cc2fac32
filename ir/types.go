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
	"fmt"
	"strconv"
	"strings"
)

// ElemKind classifies the element of a vector or scalar type.
type ElemKind uint8

const (
	// ElemInvalid is the zero value and never appears in a well-formed type.
	ElemInvalid ElemKind = iota

	// ElemInt is a signed (or signless) integer.
	ElemInt

	// ElemUint is an unsigned integer. The target uses these for compare masks.
	ElemUint

	// ElemFloat is an IEEE float (f16, f32, f64).
	ElemFloat

	// ElemBFloat is the 16-bit brain float.
	ElemBFloat

	// ElemIndex is the machine index type used for memory offsets.
	ElemIndex
)

// Elem is an element type: a kind plus a bit width.
type Elem struct {
	Kind ElemKind
	Bits int
}

// Commonly used element types.
var (
	I1    = Elem{ElemInt, 1}
	I8    = Elem{ElemInt, 8}
	I16   = Elem{ElemInt, 16}
	I32   = Elem{ElemInt, 32}
	I48   = Elem{ElemInt, 48}
	I64   = Elem{ElemInt, 64}
	I80   = Elem{ElemInt, 80}
	U32   = Elem{ElemUint, 32}
	U64   = Elem{ElemUint, 64}
	F16   = Elem{ElemFloat, 16}
	BF16  = Elem{ElemBFloat, 16}
	F32   = Elem{ElemFloat, 32}
	F64   = Elem{ElemFloat, 64}
	Index = Elem{ElemIndex, 64}
)

// IsFloat reports whether e is a floating-point element (including bf16).
func (e Elem) IsFloat() bool { return e.Kind == ElemFloat || e.Kind == ElemBFloat }

// IsInt reports whether e is an integer element (signed or unsigned).
func (e Elem) IsInt() bool { return e.Kind == ElemInt || e.Kind == ElemUint }

func (e Elem) String() string {
	switch e.Kind {
	case ElemInt:
		return "i" + strconv.Itoa(e.Bits)
	case ElemUint:
		return "u" + strconv.Itoa(e.Bits)
	case ElemFloat:
		return "f" + strconv.Itoa(e.Bits)
	case ElemBFloat:
		return "bf16"
	case ElemIndex:
		return "index"
	}
	return "<invalid>"
}

// Shape distinguishes scalar, vector and memory types.
type Shape uint8

const (
	ShapeScalar Shape = iota
	ShapeVector
	ShapeMemRef
)

// Type is the semantic type of a value. Types are comparable with ==.
type Type struct {
	Shape Shape
	Lanes int
	Elem  Elem
}

// None is the zero Type, used for ops without results.
var None Type

// Scalar returns the scalar type of element e.
func Scalar(e Elem) Type { return Type{Shape: ShapeScalar, Elem: e} }

// MakeVectorType returns the vector type with the given lane count and
// element type.
func MakeVectorType(lanes int, e Elem) Type {
	return Type{Shape: ShapeVector, Lanes: lanes, Elem: e}
}

// MemRef returns a one dimensional memory type.
func MemRef(n int, e Elem) Type { return Type{Shape: ShapeMemRef, Lanes: n, Elem: e} }

// IsVector reports whether t is a vector type.
func (t Type) IsVector() bool { return t.Shape == ShapeVector }

// IsScalar reports whether t is a scalar type with a valid element.
func (t Type) IsScalar() bool { return t.Shape == ShapeScalar && t.Elem.Kind != ElemInvalid }

// IsFloat reports whether the element of t is floating point.
func (t Type) IsFloat() bool { return t.Elem.IsFloat() }

// IsInt reports whether the element of t is an integer.
func (t Type) IsInt() bool { return t.Elem.IsInt() }

// ElemType returns the scalar type of t's element.
func (t Type) ElemType() Type { return Scalar(t.Elem) }

// BitWidth is the total width of t: lanes times element bits for vectors,
// the element width for scalars.
func (t Type) BitWidth() int {
	if t.Shape == ShapeVector {
		return t.Lanes * t.Elem.Bits
	}
	return t.Elem.Bits
}

// WithLanes returns a vector type with t's element and the given lane count.
func (t Type) WithLanes(lanes int) Type { return MakeVectorType(lanes, t.Elem) }

// LaneCount returns the number of lanes of a vector type, or 1 for a scalar.
func LaneCount(t Type) int {
	if t.Shape == ShapeVector {
		return t.Lanes
	}
	return 1
}

// ElementBitWidth returns the bit width of t's element.
func ElementBitWidth(t Type) int { return t.Elem.Bits }

func (t Type) String() string {
	switch t.Shape {
	case ShapeVector:
		return fmt.Sprintf("vector<%dx%s>", t.Lanes, t.Elem)
	case ShapeMemRef:
		return fmt.Sprintf("memref<%dx%s>", t.Lanes, t.Elem)
	}
	if t.Elem.Kind == ElemInvalid {
		return "()"
	}
	return t.Elem.String()
}

// ParseElem parses an element type name such as "i32", "u64" or "bf16".
func ParseElem(s string) (Elem, error) {
	switch s {
	case "bf16":
		return BF16, nil
	case "index":
		return Index, nil
	}
	if len(s) < 2 {
		return Elem{}, fmt.Errorf("invalid element type %q", s)
	}
	var kind ElemKind
	switch s[0] {
	case 'i':
		kind = ElemInt
	case 'u':
		kind = ElemUint
	case 'f':
		kind = ElemFloat
	default:
		return Elem{}, fmt.Errorf("invalid element type %q", s)
	}
	bits, err := strconv.Atoi(s[1:])
	if err != nil || bits <= 0 {
		return Elem{}, fmt.Errorf("invalid element type %q", s)
	}
	if kind == ElemFloat && bits != 16 && bits != 32 && bits != 64 {
		return Elem{}, fmt.Errorf("unsupported float width in %q", s)
	}
	return Elem{kind, bits}, nil
}

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	for _, p := range []struct {
		prefix string
		shape  Shape
	}{{"vector<", ShapeVector}, {"memref<", ShapeMemRef}} {
		if !strings.HasPrefix(s, p.prefix) {
			continue
		}
		if !strings.HasSuffix(s, ">") {
			return None, fmt.Errorf("unterminated type %q", s)
		}
		body := s[len(p.prefix) : len(s)-1]
		n, e, ok := strings.Cut(body, "x")
		if !ok {
			return None, fmt.Errorf("missing lane count in %q", s)
		}
		lanes, err := strconv.Atoi(n)
		if err != nil || lanes <= 0 {
			return None, fmt.Errorf("invalid lane count in %q", s)
		}
		elem, err := ParseElem(e)
		if err != nil {
			return None, err
		}
		return Type{Shape: p.shape, Lanes: lanes, Elem: elem}, nil
	}
	elem, err := ParseElem(s)
	if err != nil {
		return None, err
	}
	return Scalar(elem), nil
}
