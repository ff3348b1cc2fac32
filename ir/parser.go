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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrParse is matched (with errors.Is) by every error returned from Parse.
var ErrParse = errors.New("ir: parse error")

// ParseError reports a malformed line of textual IR.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes every ParseError match ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Parse reads a graph in the format written by Print. Lines may carry
// trailing "//" comments; blank lines are ignored.
func Parse(r io.Reader, name string) (*Graph, error) {
	p := &parser{g: NewGraph(name), values: make(map[string]Value)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(stripComment(sc.Text()))
		if text == "" {
			continue
		}
		if err := p.line(text); err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p.g, nil
}

// ParseString is Parse on a string.
func ParseString(src, name string) (*Graph, error) {
	return Parse(strings.NewReader(src), name)
}

// MustParse is ParseString that panics on error, for tests and fixtures.
func MustParse(src string) *Graph {
	g, err := ParseString(src, "main")
	if err != nil {
		panic(err)
	}
	return g
}

type parser struct {
	g      *Graph
	values map[string]Value
}

func (p *parser) line(text string) error {
	var result string
	if strings.HasPrefix(text, "%") {
		lhs, rhs, ok := strings.Cut(text, "=")
		if !ok {
			return errors.New("expected '=' after result name")
		}
		result = strings.TrimSpace(lhs)[1:]
		if result == "" {
			return errors.New("empty result name")
		}
		if _, dup := p.values[result]; dup {
			return fmt.Errorf("redefinition of %%%s", result)
		}
		text = strings.TrimSpace(rhs)
	}

	kindName, rest, _ := strings.Cut(text, " ")
	kind, ok := KindByName(kindName)
	if !ok {
		return fmt.Errorf("unknown operation %q", kindName)
	}

	var (
		operandText = rest
		attrText    string
		typeText    string
	)
	if open := strings.IndexByte(rest, '{'); open >= 0 {
		closeAt := matchingBrace(rest, open)
		if closeAt < 0 {
			return errors.New("unterminated attribute dictionary")
		}
		operandText = rest[:open]
		attrText = rest[open+1 : closeAt]
		rest = rest[closeAt+1:]
		if _, t, ok := strings.Cut(rest, ":"); ok {
			typeText = t
		}
	} else if o, t, ok := strings.Cut(rest, ":"); ok {
		operandText, typeText = o, t
	}

	var operands []Value
	for _, field := range strings.Split(operandText, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := p.value(field)
		if err != nil {
			return err
		}
		operands = append(operands, v)
	}

	attrs, err := parseAttrs(attrText)
	if err != nil {
		return err
	}

	var results []Type
	if result != "" {
		if strings.TrimSpace(typeText) == "" {
			return fmt.Errorf("missing result type for %%%s", result)
		}
		t, err := ParseType(typeText)
		if err != nil {
			return err
		}
		results = []Type{t}
	}
	if kind == Constant {
		if len(results) == 0 {
			return errors.New("constant without a result")
		}
		v, ok := attrs.Get("value")
		if !ok {
			return errors.New("constant without a value attribute")
		}
		f, isFloat := v.(float64)
		if i, isInt := v.(int64); isInt {
			f = float64(i)
		} else if !isFloat {
			return fmt.Errorf("constant value %v is not numeric", v)
		}
		attrs.Set("value", ConstantAttrs(results[0], f)[0].Value)
	}

	var op *Op
	if kind == Arg {
		if result == "" {
			return errors.New("arg without a name")
		}
		op = p.g.Append(Arg, results, nil, nil)
		op.Name = result
	} else {
		op = p.g.Append(kind, results, operands, attrs)
	}
	if result != "" {
		p.values[result] = op.Result(0)
	}
	return nil
}

func (p *parser) value(tok string) (Value, error) {
	if !strings.HasPrefix(tok, "%") {
		return NoValue, fmt.Errorf("operand %q is not a value", tok)
	}
	name := tok[1:]
	index := 0
	if base, idx, ok := strings.Cut(name, "#"); ok {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return NoValue, fmt.Errorf("invalid result index in %q", tok)
		}
		name, index = base, n
	}
	v, ok := p.values[name]
	if !ok {
		return NoValue, fmt.Errorf("use of undefined value %%%s", name)
	}
	if n := len(p.g.Op(v.Op).Results); index >= n {
		return NoValue, fmt.Errorf("%s: %%%s has %d results", tok, name, n)
	}
	v.Index = index
	return v, nil
}

// stripComment drops a trailing "//" comment. Slashes inside quoted
// attribute strings are kept.
func stripComment(s string) string {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case '/':
			if !inQuote && strings.HasPrefix(s[i:], "//") {
				return s[:i]
			}
		}
	}
	return s
}

func matchingBrace(s string, open int) int {
	inQuote := false
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case '}':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}
