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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPartialConversion is matched by the error returned when a
	// conversion ends with illegal operations that no pattern can rewrite.
	ErrPartialConversion = errors.New("failed to legalize all operations")

	// ErrMaskedLoad is returned for transfer reads carrying a mask.
	ErrMaskedLoad = errors.New("AIE doesn't support masked loads")

	// ErrInt8Select is returned for AIE1 strided slices of 8-bit integers.
	ErrInt8Select = errors.New("AIE1 doesn't support select ops on int8 types")

	// ErrReplacement is returned when a pattern replaces a value with one of
	// a different type, or neither replaces nor frees its root.
	ErrReplacement = errors.New("invalid replacement")
)

// ConversionError lists the operations left illegal by a conversion.
type ConversionError struct {
	Conversion string
	Illegal    []string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %v: %d illegal operation(s):\n  %s",
		e.Conversion, ErrPartialConversion, len(e.Illegal), strings.Join(e.Illegal, "\n  "))
}

func (e *ConversionError) Unwrap() error { return ErrPartialConversion }

// OpError is a hard failure raised by a pattern for a specific operation.
// It aborts the conversion immediately.
type OpError struct {
	Pattern string
	Op      string
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("pattern %s: %s: %v", e.Pattern, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
