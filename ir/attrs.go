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

// Attr is a named configuration value attached to an Op. Value holds one
// of int64, float64, string or bool.
type Attr struct {
	Name  string
	Value any
}

// Attrs is an ordered attribute list. Order is preserved for printing so
// that output is deterministic.
type Attrs []Attr

// A builds an Attr, normalizing Go int kinds to int64 and float32 to float64.
func A(name string, v any) Attr {
	switch x := v.(type) {
	case int:
		v = int64(x)
	case int32:
		v = int64(x)
	case uint32:
		v = int64(x)
	case float32:
		v = float64(x)
	}
	return Attr{Name: name, Value: v}
}

// Get returns the value named name.
func (as Attrs) Get(name string) (any, bool) {
	for _, a := range as {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is present.
func (as Attrs) Has(name string) bool {
	_, ok := as.Get(name)
	return ok
}

// Int returns an integer attribute, or 0 if absent or not an integer.
func (as Attrs) Int(name string) int64 {
	v, _ := as.Get(name)
	switch x := v.(type) {
	case int64:
		return x
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

// Float returns a numeric attribute as float64.
func (as Attrs) Float(name string) float64 {
	v, _ := as.Get(name)
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return 0
}

// Str returns a string attribute, or "" if absent.
func (as Attrs) Str(name string) string {
	v, _ := as.Get(name)
	s, _ := v.(string)
	return s
}

// Bool returns a boolean attribute, or false if absent.
func (as Attrs) Bool(name string) bool {
	v, _ := as.Get(name)
	b, _ := v.(bool)
	return b
}

// Set replaces the value of name, appending it if absent.
func (as *Attrs) Set(name string, v any) {
	a := A(name, v)
	for i := range *as {
		if (*as)[i].Name == name {
			(*as)[i] = a
			return
		}
	}
	*as = append(*as, a)
}

// Clone returns a copy of as.
func (as Attrs) Clone() Attrs {
	if as == nil {
		return nil
	}
	return append(Attrs(nil), as...)
}

// Equal reports whether both lists hold the same attributes in the same order.
func (as Attrs) Equal(other Attrs) bool {
	if len(as) != len(other) {
		return false
	}
	for i := range as {
		if as[i] != other[i] {
			return false
		}
	}
	return true
}

func formatAttrValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	}
	return fmt.Sprint(v)
}

func (as Attrs) String() string {
	if len(as) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, a := range as {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.Name)
		sb.WriteString(" = ")
		sb.WriteString(formatAttrValue(a.Value))
	}
	sb.WriteByte('}')
	return sb.String()
}

func parseAttrValue(s string) (any, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "true":
		return true, nil
	case s == "false":
		return false, nil
	case strings.HasPrefix(s, `"`):
		return strconv.Unquote(s)
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid attribute value %q", s)
	}
	return f, nil
}

// parseAttrs parses the body of an attribute dictionary (without braces).
func parseAttrs(body string) (Attrs, error) {
	var as Attrs
	for _, field := range splitTopLevel(body, ',') {
		if strings.TrimSpace(field) == "" {
			continue
		}
		name, val, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q missing '='", strings.TrimSpace(field))
		}
		v, err := parseAttrValue(val)
		if err != nil {
			return nil, err
		}
		as = append(as, Attr{Name: strings.TrimSpace(name), Value: v})
	}
	return as, nil
}

// splitTopLevel splits s on sep, ignoring separators inside quoted strings.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && inQuote:
			i++
		case c == '"':
			inQuote = !inQuote
		case c == sep && !inQuote:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
