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

import "math"

// Half-precision rounding for constants. Constant attributes are stored as
// float64 but hold only values representable in their element type, so a
// bf16 or f16 splat is rounded through its 16-bit encoding when parsed or
// built.

// bf16Bits encodes f as a bf16 constant, rounding to nearest even on the
// 16 bits dropped from the float32 mantissa.
func bf16Bits(f float32) uint16 {
	bits := math.Float32bits(f)
	if bits&0x7FFFFFFF > 0x7F800000 {
		// NaN constants become a quiet NaN with the same sign.
		return uint16(bits>>16) | 0x0040
	}
	// Bit 15 is the rounding bit. Adding 0x7FFF plus bit 16 truncates when
	// it is clear, rounds up past a non-zero tail, and breaks ties toward
	// an even bf16 mantissa.
	bits += 0x7FFF + (bits>>16)&1
	return uint16(bits >> 16)
}

// bf16Value decodes a bf16 constant. bf16 is the high half of a float32.
func bf16Value(b uint16) float32 { return math.Float32frombits(uint32(b) << 16) }

// f16Bits encodes f as an f16 constant with round-to-nearest-even.
// Constants too large for f16 become infinities and those below its
// smallest subnormal become signed zeros.
func f16Bits(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int((bits>>23)&0xFF) - 127 + 15 // rebias 127 -> 15
	mant := bits & 0x7FFFFF

	switch {
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		// Subnormal constant: shift the implicit leading 1 into the
		// mantissa, then round on bit 12.
		mant = (mant | 0x800000) >> uint(1-exp)
		if mant&0x1000 != 0 && mant&0x2FFF != 0 {
			mant += 0x2000
		}
		return sign | uint16(mant>>13)
	case exp == 0xFF-127+15:
		if mant != 0 {
			// NaN keeps the quiet bit and the top of its payload.
			return sign | 0x7E00 | uint16(mant>>13)
		}
		return sign | 0x7C00
	case exp >= 31:
		return sign | 0x7C00
	}

	// Bit 12 rounds. Round up when the tail below it is non-zero or the
	// kept mantissa is odd; a carry out of the mantissa bumps the exponent.
	if mant&0x1000 != 0 && mant&0x2FFF != 0 {
		mant += 0x2000
		if mant&0x800000 != 0 {
			mant = 0
			exp++
			if exp >= 31 {
				return sign | 0x7C00
			}
		}
	}
	return sign | uint16(exp<<10) | uint16(mant>>13)
}

// f16Value decodes an f16 constant, including zeros, subnormals,
// infinities and NaNs.
func f16Value(h uint16) float32 {
	bits := uint32(h)
	sign := bits >> 15
	exp := (bits >> 10) & 0x1F
	mant := bits & 0x3FF

	switch {
	case exp == 0:
		if mant == 0 {
			return math.Float32frombits(sign << 31)
		}
		// Subnormal: find the leading 1, drop it and rebias.
		exp = 1
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		mant &= 0x3FF
		exp = uint32(int32(exp) + 127 - 15)
	case exp == 31:
		if mant == 0 {
			return math.Float32frombits((sign << 31) | 0x7F800000)
		}
		return math.Float32frombits((sign << 31) | 0x7FC00000 | (mant << 13))
	default:
		exp = exp + 127 - 15
	}
	return math.Float32frombits((sign << 31) | (exp << 23) | (mant << 13))
}

// RoundToElem rounds v to the nearest value representable in e. Integer
// elements truncate toward zero; f64 is returned unchanged.
func RoundToElem(e Elem, v float64) float64 {
	switch {
	case e.Kind == ElemBFloat:
		return float64(bf16Value(bf16Bits(float32(v))))
	case e.Kind == ElemFloat && e.Bits == 16:
		return float64(f16Value(f16Bits(float32(v))))
	case e.Kind == ElemFloat && e.Bits == 32:
		return float64(float32(v))
	case e.IsInt():
		return math.Trunc(v)
	}
	return v
}
